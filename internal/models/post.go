package models

import (
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// AuthorSnapshot is a point-in-time copy of a user's display fields.
type AuthorSnapshot struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Post is stored at posts/{id}.
type Post struct {
	ID                string    `json:"id"`
	AuthorID          string    `json:"author_id"`
	AuthorHandle      string    `json:"author_handle"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorPhotoURL    string    `json:"author_photo_url,omitempty"`
	Content           string    `json:"content"`
	ImageURL          string    `json:"image_url,omitempty"`
	Likes             int64     `json:"likes"`
	Comments          int64     `json:"comments"`
	CreatedAt         time.Time `json:"created_at"`
}

func (p Post) Fields() store.Fields {
	f := store.Fields{
		"authorId":          p.AuthorID,
		"authorHandle":      p.AuthorHandle,
		"authorDisplayName": p.AuthorDisplayName,
		"authorPhotoURL":    p.AuthorPhotoURL,
		"content":           p.Content,
		"likes":             p.Likes,
		"comments":          p.Comments,
		"createdAt":         p.CreatedAt,
	}
	if p.ImageURL != "" {
		f["imageUrl"] = p.ImageURL
	}
	return f
}

// PostFromDocument reads a posts/{id} document.
func PostFromDocument(doc store.Document) Post {
	return Post{
		ID:                doc.ID(),
		AuthorID:          doc.String("authorId"),
		AuthorHandle:      doc.String("authorHandle"),
		AuthorDisplayName: doc.String("authorDisplayName"),
		AuthorPhotoURL:    doc.String("authorPhotoURL"),
		Content:           doc.String("content"),
		ImageURL:          doc.String("imageUrl"),
		Likes:             doc.Int("likes"),
		Comments:          doc.Int("comments"),
		CreatedAt:         doc.Time("createdAt"),
	}
}

// CreatePostRequest is the JSON form of a new post. Multipart submissions
// carry the same fields plus an optional "image" file.
type CreatePostRequest struct {
	Content string `json:"content" form:"content" validate:"max=2000"`
}

package models

import (
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// Comment is stored at posts/{postId}/comments/{id}.
type Comment struct {
	ID                  string    `json:"id"`
	PostID              string    `json:"post_id"`
	AuthorID            string    `json:"author_id"`
	AuthorHandle        string    `json:"author_handle"`
	AuthorDisplayName   string    `json:"author_display_name"`
	AuthorPhotoURL      string    `json:"author_photo_url,omitempty"`
	Content             string    `json:"content"`
	Likes               int64     `json:"likes"`
	ReplyToCommentID    string    `json:"reply_to_comment_id,omitempty"`
	ReplyToAuthorHandle string    `json:"reply_to_author_handle,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func (c Comment) Fields() store.Fields {
	f := store.Fields{
		"postId":            c.PostID,
		"authorId":          c.AuthorID,
		"authorHandle":      c.AuthorHandle,
		"authorDisplayName": c.AuthorDisplayName,
		"authorPhotoURL":    c.AuthorPhotoURL,
		"content":           c.Content,
		"likes":             c.Likes,
		"createdAt":         c.CreatedAt,
	}
	if c.ReplyToCommentID != "" {
		f["replyToCommentId"] = c.ReplyToCommentID
		f["replyToAuthorHandle"] = c.ReplyToAuthorHandle
	}
	return f
}

// CommentFromDocument reads a comment document.
func CommentFromDocument(doc store.Document) Comment {
	postID := doc.String("postId")
	if postID == "" {
		postID = doc.Path.Parent().Parent().ID()
	}
	return Comment{
		ID:                  doc.ID(),
		PostID:              postID,
		AuthorID:            doc.String("authorId"),
		AuthorHandle:        doc.String("authorHandle"),
		AuthorDisplayName:   doc.String("authorDisplayName"),
		AuthorPhotoURL:      doc.String("authorPhotoURL"),
		Content:             doc.String("content"),
		Likes:               doc.Int("likes"),
		ReplyToCommentID:    doc.String("replyToCommentId"),
		ReplyToAuthorHandle: doc.String("replyToAuthorHandle"),
		CreatedAt:           doc.Time("createdAt"),
	}
}

// ReplyTarget names the comment a new comment answers.
type ReplyTarget struct {
	CommentID    string `json:"comment_id" validate:"required"`
	AuthorHandle string `json:"author_handle"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string       `json:"content" validate:"max=500"`
	ReplyTo *ReplyTarget `json:"reply_to,omitempty"`
}

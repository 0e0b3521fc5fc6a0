package models

import (
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// NotificationType enumerates engagement events.
type NotificationType string

const (
	NotificationLikePost     NotificationType = "like_post"
	NotificationCommentPost  NotificationType = "comment_post"
	NotificationReplyComment NotificationType = "reply_comment"
	NotificationLikeComment  NotificationType = "like_comment"
	NotificationFollow       NotificationType = "follow"
)

// Notification is stored in the recipient's inbox at
// users/{toUserId}/notifications/{id}. Only Read ever changes.
type Notification struct {
	ID              string           `json:"id"`
	Type            NotificationType `json:"type"`
	FromUserID      string           `json:"from_user_id"`
	FromDisplayName string           `json:"from_display_name"`
	FromHandle      string           `json:"from_handle"`
	FromPhotoURL    string           `json:"from_photo_url,omitempty"`
	ToUserID        string           `json:"to_user_id"`
	PostID          string           `json:"post_id,omitempty"`
	CommentID       string           `json:"comment_id,omitempty"`
	ContentSnippet  string           `json:"content_snippet,omitempty"`
	Read            bool             `json:"read"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (n Notification) Fields() store.Fields {
	f := store.Fields{
		"type":            string(n.Type),
		"fromUserId":      n.FromUserID,
		"fromDisplayName": n.FromDisplayName,
		"fromHandle":      n.FromHandle,
		"fromPhotoURL":    n.FromPhotoURL,
		"toUserId":        n.ToUserID,
		"read":            n.Read,
		"createdAt":       n.CreatedAt,
	}
	if n.PostID != "" {
		f["postId"] = n.PostID
	}
	if n.CommentID != "" {
		f["commentId"] = n.CommentID
	}
	if n.ContentSnippet != "" {
		f["contentSnippet"] = n.ContentSnippet
	}
	return f
}

// NotificationFromDocument reads an inbox document.
func NotificationFromDocument(doc store.Document) Notification {
	return Notification{
		ID:              doc.ID(),
		Type:            NotificationType(doc.String("type")),
		FromUserID:      doc.String("fromUserId"),
		FromDisplayName: doc.String("fromDisplayName"),
		FromHandle:      doc.String("fromHandle"),
		FromPhotoURL:    doc.String("fromPhotoURL"),
		ToUserID:        doc.String("toUserId"),
		PostID:          doc.String("postId"),
		CommentID:       doc.String("commentId"),
		ContentSnippet:  doc.String("contentSnippet"),
		Read:            doc.Bool("read"),
		CreatedAt:       doc.Time("createdAt"),
	}
}

// GroupedNotifications buckets an inbox by age.
type GroupedNotifications struct {
	Today     []Notification `json:"today"`
	Yesterday []Notification `json:"yesterday"`
	ThisWeek  []Notification `json:"this_week"`
	Older     []Notification `json:"older"`
}

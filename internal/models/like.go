package models

import (
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// Like is the edge at posts/{postId}/likes/{uid} or
// posts/{postId}/comments/{commentId}/likes/{uid}. Its presence means uid
// currently likes the content.
type Like struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (l Like) Fields() store.Fields {
	return store.Fields{
		"userId":    l.UserID,
		"timestamp": l.Timestamp,
	}
}

func LikeFromDocument(doc store.Document) Like {
	return Like{
		UserID:    doc.ID(),
		Timestamp: doc.Time("timestamp"),
	}
}

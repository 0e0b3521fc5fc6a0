package models

import (
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// FollowEdge is one mirror of a follow relationship. Under
// users/{a}/following/{b} it describes b; under users/{b}/followers/{a} it
// describes a. The snapshot is taken when the edge is created.
type FollowEdge struct {
	UserID          string    `json:"user_id"`
	UserHandle      string    `json:"user_handle"`
	UserDisplayName string    `json:"user_display_name"`
	UserPhotoURL    string    `json:"user_photo_url,omitempty"`
	FollowedAt      time.Time `json:"followed_at"`
}

// NewFollowEdge describes u as the other party of an edge.
func NewFollowEdge(u User, at time.Time) FollowEdge {
	return FollowEdge{
		UserID:          u.UID,
		UserHandle:      u.Handle,
		UserDisplayName: u.DisplayName,
		UserPhotoURL:    u.PhotoURL,
		FollowedAt:      at,
	}
}

func (e FollowEdge) Fields() store.Fields {
	return store.Fields{
		"userId":          e.UserID,
		"userHandle":      e.UserHandle,
		"userDisplayName": e.UserDisplayName,
		"userPhotoURL":    e.UserPhotoURL,
		"followedAt":      e.FollowedAt,
	}
}

func FollowEdgeFromDocument(doc store.Document) FollowEdge {
	uid := doc.String("userId")
	if uid == "" {
		uid = doc.ID()
	}
	return FollowEdge{
		UserID:          uid,
		UserHandle:      doc.String("userHandle"),
		UserDisplayName: doc.String("userDisplayName"),
		UserPhotoURL:    doc.String("userPhotoURL"),
		FollowedAt:      doc.Time("followedAt"),
	}
}

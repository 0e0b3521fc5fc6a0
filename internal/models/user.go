package models

import (
	"regexp"
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// User is the public profile stored at users/{uid}. Followers and Following
// are denormalized counters kept in step with the follow edges.
type User struct {
	UID                string     `json:"uid"`
	Email              string     `json:"email,omitempty"`
	Handle             string     `json:"handle"`
	DisplayName        string     `json:"display_name"`
	PhotoURL           string     `json:"photo_url,omitempty"`
	Bio                string     `json:"bio,omitempty"`
	Followers          int64      `json:"followers"`
	Following          int64      `json:"following"`
	LastHandleChangeAt *time.Time `json:"last_handle_change_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Author captures the display fields copied onto posts, comments, edges and
// notifications. Copies are not refreshed when the profile changes, except
// for posts on a handle or name change.
func (u User) Author() AuthorSnapshot {
	return AuthorSnapshot{
		ID:          u.UID,
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

// Fields is the full document body.
func (u User) Fields() store.Fields {
	f := store.Fields{
		"uid":         u.UID,
		"email":       u.Email,
		"handle":      u.Handle,
		"displayName": u.DisplayName,
		"photoURL":    u.PhotoURL,
		"bio":         u.Bio,
		"followers":   u.Followers,
		"following":   u.Following,
		"createdAt":   u.CreatedAt,
	}
	if u.LastHandleChangeAt != nil {
		f["lastHandleChangeAt"] = *u.LastHandleChangeAt
	}
	return f
}

// UserFromDocument reads a users/{uid} document.
func UserFromDocument(doc store.Document) User {
	uid := doc.String("uid")
	if uid == "" {
		uid = doc.ID()
	}
	return User{
		UID:                uid,
		Email:              doc.String("email"),
		Handle:             doc.String("handle"),
		DisplayName:        doc.String("displayName"),
		PhotoURL:           doc.String("photoURL"),
		Bio:                doc.String("bio"),
		Followers:          doc.Int("followers"),
		Following:          doc.Int("following"),
		LastHandleChangeAt: doc.TimePtr("lastHandleChangeAt"),
		CreatedAt:          doc.Time("createdAt"),
	}
}

var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

// ValidHandle reports whether h is 3-30 letters, digits, '_' or '.'.
func ValidHandle(h string) bool {
	return handlePattern.MatchString(h)
}

// FirebaseLoginRequest carries the ID token issued by Firebase Auth.
type FirebaseLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// UpdateProfileRequest is a profile form submission. A changed handle needs
// confirmation before it is saved.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" form:"display_name" validate:"required,min=1,max=50"`
	Handle      string `json:"handle" form:"handle" validate:"required,handle"`
	Bio         string `json:"bio" form:"bio" validate:"max=160"`
}

// ConfirmHandleRequest confirms a pending handle change.
type ConfirmHandleRequest struct {
	PendingID string `json:"pending_id" validate:"required"`
}

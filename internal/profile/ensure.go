package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// Identity is what the identity provider knows about a signed-in user.
type Identity struct {
	UID      string
	Email    string
	Name     string
	PhotoURL string
}

// EnsureProfile returns uid's profile, creating it on first sign-in. The
// default handle is derived from the local part of the email address and
// always passes models.ValidHandle.
func (g *Guard) EnsureProfile(ctx context.Context, id Identity) (*models.User, error) {
	const op = "profile.EnsureProfile"

	u, err := g.users.GetUserByUID(ctx, id.UID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	handle := defaultHandle(id.Email, id.UID)
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = handle
	}
	u = &models.User{
		UID:         id.UID,
		Email:       id.Email,
		Handle:      handle,
		DisplayName: name,
		PhotoURL:    id.PhotoURL,
		CreatedAt:   g.now(),
	}
	if err := g.users.CreateUser(ctx, u); err != nil {
		// another sign-in created it first
		if errors.Is(err, store.ErrConflict) {
			return g.users.GetUserByUID(ctx, id.UID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

const (
	minHandleLen = 3
	maxHandleLen = 30
)

// defaultHandle keeps the characters of the email local part a handle may
// hold. Short results get the uid appended, long ones are cut.
func defaultHandle(email, uid string) string {
	local, _, _ := strings.Cut(email, "@")
	h := handleChars(local)
	if h == "" {
		h = "user"
	}
	if len(h) < minHandleLen {
		if suffix := handleChars(uid); suffix != "" {
			h += "_" + suffix
		}
	}
	for len(h) < minHandleLen {
		h += "_"
	}
	if len(h) > maxHandleLen {
		h = h[:maxHandleLen]
	}
	return h
}

func handleChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		}
		return -1
	}, s)
}

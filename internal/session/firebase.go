package session

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/auth"

	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
)

// FirebaseVerifier checks Firebase Auth ID tokens.
type FirebaseVerifier struct {
	Client *auth.Client
}

func (v FirebaseVerifier) Verify(ctx context.Context, idToken string) (profile.Identity, error) {
	token, err := v.Client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return profile.Identity{}, err
	}
	id := profile.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.Name = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		id.PhotoURL = picture
	}
	return id, nil
}

// NoVerifier rejects every token. It stands in when no identity provider
// is configured.
type NoVerifier struct{}

func (NoVerifier) Verify(context.Context, string) (profile.Identity, error) {
	return profile.Identity{}, errors.New("identity provider not configured")
}

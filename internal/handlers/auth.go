package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/session"
)

// Sessions starts and ends sessions.
type Sessions interface {
	SignIn(ctx context.Context, idToken string) (*session.Session, string, error)
	SignOut(sessionID string)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	sessions Sessions
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions Sessions) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// RegisterAuthRoutes registers the unauthenticated sign-in route
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// RegisterSessionRoutes registers routes that need a session
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/auth/signout", h.SignOut)
}

// FirebaseLogin verifies a Firebase ID token and issues a session token
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req models.FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	s, token, err := h.sessions.SignIn(c.Request().Context(), req.IDToken)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"token": token, "session": s})
}

// SignOut ends the current session
func (h *AuthHandler) SignOut(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	h.sessions.SignOut(s.ID)
	return ok(c, http.StatusOK, echo.Map{"signed_out": true})
}

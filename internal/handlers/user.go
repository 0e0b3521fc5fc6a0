package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// ProfileService applies profile edits through the handle guard.
type ProfileService interface {
	Save(ctx context.Context, uid string, c profile.Change) (*profile.Outcome, error)
	Confirm(ctx context.Context, uid, pendingID string) (*profile.Outcome, error)
	Cancel(uid, pendingID string) error
	State(uid string) (profile.State, *profile.Pending)
}

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	profiles       ProfileService
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles ProfileService, userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{profiles: profiles, userRepository: userRepo}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.POST("/profile/confirm", h.ConfirmHandle)
	g.DELETE("/profile/pending", h.CancelHandle)
	g.GET("/users/:uid", h.GetUser)
}

// GetUser returns another user's public profile
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.userRepository.GetUserByUID(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	user.Email = ""
	return ok(c, http.StatusOK, user)
}

// GetProfile returns the signed-in user's profile and any pending handle
// change
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	state, pending := h.profiles.State(user.UID)
	return ok(c, http.StatusOK, profile.Outcome{State: state, Profile: &user, Pending: pending})
}

// UpdateProfile saves a profile form. A changed handle is parked until
// confirmed.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	photo, f, err := formUpload(c, "photo")
	if err != nil {
		return err
	}
	if f != nil {
		defer f.Close()
	}

	out, err := h.profiles.Save(c.Request().Context(), user.UID, profile.Change{
		DisplayName: req.DisplayName,
		Handle:      req.Handle,
		Bio:         req.Bio,
		Photo:       photo,
	})
	if err != nil {
		return toHTTPError(err)
	}
	status := http.StatusOK
	if out.State == profile.PendingConfirmation {
		status = http.StatusAccepted
	}
	return ok(c, status, out)
}

// ConfirmHandle confirms the pending handle change
func (h *UserHandler) ConfirmHandle(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.ConfirmHandleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	out, err := h.profiles.Confirm(c.Request().Context(), user.UID, req.PendingID)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, out)
}

// CancelHandle discards the pending handle change
func (h *UserHandler) CancelHandle(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.profiles.Cancel(user.UID, c.QueryParam("pending_id")); err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"state": profile.Stable})
}

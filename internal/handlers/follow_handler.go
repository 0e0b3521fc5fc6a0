package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/view"
)

// FollowService toggles and lists follow edges.
type FollowService interface {
	ToggleFollow(ctx context.Context, actor models.User, targetUID string) (view.Toggle, error)
	Followers(ctx context.Context, uid string) ([]models.FollowEdge, error)
	Following(ctx context.Context, uid string) ([]models.FollowEdge, error)
}

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	follows FollowService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(follows FollowService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:uid/follow", h.ToggleFollow)
	g.GET("/users/:uid/followers", h.GetFollowers)
	g.GET("/users/:uid/following", h.GetFollowing)
}

// ToggleFollow follows the user, or unfollows when already following. The
// response carries the target's follow state and follower count.
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	state, err := h.follows.ToggleFollow(c.Request().Context(), actor, c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"following": state.Active, "followers": state.Count})
}

// GetFollowers lists who follows the user
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	edges, err := h.follows.Followers(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"followers": edges})
}

// GetFollowing lists who the user follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	edges, err := h.follows.Following(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"following": edges})
}

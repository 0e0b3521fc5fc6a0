package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/graph"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/view"
)

// LikeService toggles likes on posts and comments.
type LikeService interface {
	ToggleLike(ctx context.Context, actor models.User, target graph.LikeTarget) (view.Toggle, error)
}

// LikeHandler handles like-related HTTP requests
type LikeHandler struct {
	likes LikeService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likes LikeService) *LikeHandler {
	return &LikeHandler{likes: likes}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.TogglePostLike)
	g.POST("/posts/:post_id/comments/:comment_id/likes", h.ToggleCommentLike)
}

// TogglePostLike likes a post, or unlikes it when already liked
func (h *LikeHandler) TogglePostLike(c echo.Context) error {
	return h.toggle(c, graph.LikeTarget{PostID: c.Param("post_id")})
}

// ToggleCommentLike likes a comment, or unlikes it when already liked
func (h *LikeHandler) ToggleCommentLike(c echo.Context) error {
	return h.toggle(c, graph.LikeTarget{PostID: c.Param("post_id"), CommentID: c.Param("comment_id")})
}

func (h *LikeHandler) toggle(c echo.Context, target graph.LikeTarget) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	state, err := h.likes.ToggleLike(c.Request().Context(), actor, target)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"liked": state.Active, "likes": state.Count})
}

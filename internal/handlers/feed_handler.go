package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/feed"
)

// FeedService assembles timelines.
type FeedService interface {
	Feed(ctx context.Context, uid string, mode feed.Mode, limit int) (*feed.Result, error)
}

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	feeds FeedService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feeds FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// RegisterFeedRoutes registers feed routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed returns the following or global feed
func (h *FeedHandler) GetFeed(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	mode, err := feed.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return toHTTPError(err)
	}
	res, err := h.feeds.Feed(c.Request().Context(), user.UID, mode, queryLimit(c, 0, 100))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, res)
}

package handlers

import (
	"context"
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

// InboxService reads and updates a user's notifications.
type InboxService interface {
	List(ctx context.Context, uid string, limit int) ([]models.Notification, error)
	Grouped(ctx context.Context, uid string) (models.GroupedNotifications, error)
	Watch(ctx context.Context, uid string, limit int) iter.Seq2[[]models.Notification, error]
	MarkRead(ctx context.Context, uid, id string) error
	MarkAllRead(ctx context.Context, uid string) (int, error)
	UnreadCount(ctx context.Context, uid string) (int64, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	inbox  InboxService
	logger *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(inbox InboxService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, logger: logger}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.GET("/notifications/stream", h.StreamNotifications)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// GetNotifications returns the newest notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.inbox.List(c.Request().Context(), user.UID, queryLimit(c, 20, 50))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"notifications": list})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	grouped, err := h.inbox.Grouped(ctx, user.UID)
	if err != nil {
		return toHTTPError(err)
	}
	unread, err := h.inbox.UnreadCount(ctx, user.UID)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"notifications": grouped, "unread_count": unread})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.inbox.UnreadCount(c.Request().Context(), user.UID)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"count": count})
}

// StreamNotifications pushes the inbox whenever it changes
func (h *NotificationHandler) StreamNotifications(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return streamSSE(c, h.logger, h.inbox.Watch(c.Request().Context(), user.UID, queryLimit(c, 20, 50)))
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.inbox.MarkRead(c.Request().Context(), user.UID, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"read": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.inbox.MarkAllRead(c.Request().Context(), user.UID)
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"updated": n})
}

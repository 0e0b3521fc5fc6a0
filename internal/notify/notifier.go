// Package notify writes engagement notifications into recipients' inboxes.
// Delivery is best effort: failures are logged and counted, never returned
// to the action that triggered them.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// SnippetLength is the number of characters of the triggering text copied
// into a notification.
const SnippetLength = 50

const defaultTimeout = 5 * time.Second

// Event describes what happened. Actor is the user who acted; Text, when
// set, is the content a snippet is cut from.
type Event struct {
	Type      models.NotificationType
	Actor     models.AuthorSnapshot
	PostID    string
	CommentID string
	Text      string
}

// Config wires a Notifier.
type Config struct {
	Repository repositories.NotificationRepository
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Clock      func() time.Time
	IDs        func() string
	// Timeout bounds a single delivery. Delivery is detached from the
	// caller's cancellation so a finished request still notifies.
	Timeout time.Duration
}

// Notifier writes notifications for engagement events.
type Notifier struct {
	repo    repositories.NotificationRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	ids     func() string
	timeout time.Duration
}

// NewNotifier fills unset clock, ids, logger and timeout with defaults.
func NewNotifier(cfg Config) *Notifier {
	n := &Notifier{
		repo:    cfg.Repository,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		ids:     cfg.IDs,
		timeout: cfg.Timeout,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.clock == nil {
		n.clock = time.Now
	}
	if n.ids == nil {
		n.ids = uuid.NewString
	}
	if n.timeout <= 0 {
		n.timeout = defaultTimeout
	}
	return n
}

// Notify appends a notification to recipient's inbox and reports whether
// one was written. Self notifications are suppressed.
func (n *Notifier) Notify(ctx context.Context, recipient string, ev Event) bool {
	if recipient == "" || recipient == ev.Actor.ID {
		n.metrics.Notification(string(ev.Type), "suppressed")
		return false
	}
	note := &models.Notification{
		ID:              n.ids(),
		Type:            ev.Type,
		FromUserID:      ev.Actor.ID,
		FromDisplayName: ev.Actor.DisplayName,
		FromHandle:      ev.Actor.Handle,
		FromPhotoURL:    ev.Actor.PhotoURL,
		ToUserID:        recipient,
		PostID:          ev.PostID,
		CommentID:       ev.CommentID,
		ContentSnippet:  Snippet(ev.Text),
		Read:            false,
		CreatedAt:       n.clock().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.repo.CreateNotification(ctx, note); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("type", string(ev.Type)),
			zap.String("from", ev.Actor.ID),
			zap.String("to", recipient),
			zap.Error(err))
		n.metrics.Notification(string(ev.Type), "error")
		return false
	}
	n.metrics.Notification(string(ev.Type), "ok")
	return true
}

// Snippet cuts text to SnippetLength characters, appending "..." when it
// was longer.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLength {
		return text
	}
	return string(runes[:SnippetLength]) + "..."
}

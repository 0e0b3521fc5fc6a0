package notify

import (
	"context"
	"iter"
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// Inbox is the recipient side: reading and acknowledging notifications.
type Inbox struct {
	repo  repositories.NotificationRepository
	clock func() time.Time
}

// NewInbox reads from repo. A nil clock uses time.Now.
func NewInbox(repo repositories.NotificationRepository, clock func() time.Time) *Inbox {
	if clock == nil {
		clock = time.Now
	}
	return &Inbox{repo: repo, clock: clock}
}

// List returns the newest notifications first. A limit of 0 returns all.
func (i *Inbox) List(ctx context.Context, uid string, limit int) ([]models.Notification, error) {
	return i.repo.GetByRecipientID(ctx, uid, limit)
}

// Grouped buckets the inbox into today, yesterday, this week and older.
func (i *Inbox) Grouped(ctx context.Context, uid string) (models.GroupedNotifications, error) {
	return i.repo.GetGrouped(ctx, uid, i.clock())
}

// Watch streams the newest notifications until ctx ends.
func (i *Inbox) Watch(ctx context.Context, uid string, limit int) iter.Seq2[[]models.Notification, error] {
	return i.repo.Watch(ctx, uid, limit)
}

// MarkRead flags one of uid's notifications as read.
func (i *Inbox) MarkRead(ctx context.Context, uid, id string) error {
	return i.repo.MarkAsRead(ctx, uid, id)
}

// MarkAllRead flags every unread notification and returns how many changed.
func (i *Inbox) MarkAllRead(ctx context.Context, uid string) (int, error) {
	return i.repo.MarkAllAsRead(ctx, uid)
}

// UnreadCount counts unread notifications.
func (i *Inbox) UnreadCount(ctx context.Context, uid string) (int64, error) {
	return i.repo.GetUnreadCount(ctx, uid)
}

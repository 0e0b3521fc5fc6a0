package repositories

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// NotificationRepository defines the interface for inbox operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetByRecipientID(ctx context.Context, uid string, limit int) ([]models.Notification, error)
	GetGrouped(ctx context.Context, uid string, now time.Time) (models.GroupedNotifications, error)
	GetUnreadCount(ctx context.Context, uid string) (int64, error)
	MarkAsRead(ctx context.Context, uid, id string) error
	MarkAllAsRead(ctx context.Context, uid string) (int, error)
	Watch(ctx context.Context, uid string, limit int) iter.Seq2[[]models.Notification, error]
}

type storeNotificationRepository struct {
	store store.Store
}

// NewStoreNotificationRepository creates a NotificationRepository on a document store
func NewStoreNotificationRepository(s store.Store) NotificationRepository {
	return &storeNotificationRepository{store: s}
}

func (r *storeNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := r.store.Set(ctx, models.NotificationPath(n.ToUserID, n.ID), n.Fields(), false); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func inboxQuery(uid string, limit int) store.Query {
	return store.From(models.NotificationsCollection(uid)).
		OrderBy("createdAt", store.Desc).
		WithLimit(limit)
}

func (r *storeNotificationRepository) GetByRecipientID(ctx context.Context, uid string, limit int) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, inboxQuery(uid, limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notificationsFromDocuments(docs), nil
}

func (r *storeNotificationRepository) GetGrouped(ctx context.Context, uid string, now time.Time) (models.GroupedNotifications, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	all, err := r.GetByRecipientID(ctx, uid, 0)
	if err != nil {
		return models.GroupedNotifications{}, err
	}

	var grouped models.GroupedNotifications
	for _, n := range all {
		switch {
		case !n.CreatedAt.Before(todayStart):
			grouped.Today = append(grouped.Today, n)
		case !n.CreatedAt.Before(yesterdayStart):
			grouped.Yesterday = append(grouped.Yesterday, n)
		case !n.CreatedAt.Before(weekStart):
			grouped.ThisWeek = append(grouped.ThisWeek, n)
		case len(grouped.Older) < 50:
			grouped.Older = append(grouped.Older, n)
		}
	}
	return grouped, nil
}

func (r *storeNotificationRepository) GetUnreadCount(ctx context.Context, uid string) (int64, error) {
	docs, err := r.store.Query(ctx, store.From(models.NotificationsCollection(uid)).Where("read", store.Eq, false))
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return int64(len(docs)), nil
}

func (r *storeNotificationRepository) MarkAsRead(ctx context.Context, uid, id string) error {
	if err := r.store.Update(ctx, models.NotificationPath(uid, id), store.Fields{"read": true}); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllAsRead flips every unread notification, one batch per
// store.MaxBatchSize documents, and returns how many changed.
func (r *storeNotificationRepository) MarkAllAsRead(ctx context.Context, uid string) (int, error) {
	docs, err := r.store.Query(ctx, store.From(models.NotificationsCollection(uid)).Where("read", store.Eq, false))
	if err != nil {
		return 0, fmt.Errorf("list unread notifications: %w", err)
	}
	marked := 0
	for start := 0; start < len(docs); start += store.MaxBatchSize {
		end := min(start+store.MaxBatchSize, len(docs))
		ops := make([]store.Op, 0, end-start)
		for _, d := range docs[start:end] {
			ops = append(ops, store.UpdateOp(d.Path, store.Fields{"read": true}))
		}
		if err := r.store.RunBatch(ctx, ops); err != nil {
			return marked, fmt.Errorf("mark notifications read: %w", err)
		}
		marked += len(ops)
	}
	return marked, nil
}

func (r *storeNotificationRepository) Watch(ctx context.Context, uid string, limit int) iter.Seq2[[]models.Notification, error] {
	return func(yield func([]models.Notification, error) bool) {
		for snap, err := range r.store.Subscribe(ctx, inboxQuery(uid, limit)) {
			if err != nil {
				yield(nil, fmt.Errorf("watch notifications: %w", err))
				return
			}
			if !yield(notificationsFromDocuments(snap.Documents), nil) {
				return
			}
		}
	}
}

func notificationsFromDocuments(docs []store.Document) []models.Notification {
	out := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.NotificationFromDocument(d))
	}
	return out
}

// Package graph keeps relationship edges and their denormalized counters in
// step. Every mutation commits its edge change, its counter change and an
// existence guard on the edge as one store batch, so two racing toggles
// cannot both count.
package graph

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// Notifier delivers engagement events. Implementations must not fail the
// caller.
type Notifier interface {
	Notify(ctx context.Context, recipient string, ev notify.Event) bool
}

// Config wires an Engine.
type Config struct {
	Store    store.Store
	Users    repositories.UserRepository
	Posts    repositories.PostRepository
	Comments repositories.CommentRepository
	Follows  repositories.FollowRepository
	Likes    repositories.LikeRepository
	Notifier Notifier
	Media    media.Uploader
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
	IDs      func() string
}

// Engine applies relationship changes and their counters as single batches.
type Engine struct {
	store    store.Store
	users    repositories.UserRepository
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	follows  repositories.FollowRepository
	likes    repositories.LikeRepository
	notifier Notifier
	media    media.Uploader
	metrics  *metrics.Metrics
	logger   *zap.Logger
	clock    func() time.Time
	ids      func() string
}

var errMissingStore = errors.New("graph: store is required")

// NewEngine fills unset repositories from cfg.Store.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	e := &Engine{
		store:    cfg.Store,
		users:    cfg.Users,
		posts:    cfg.Posts,
		comments: cfg.Comments,
		follows:  cfg.Follows,
		likes:    cfg.Likes,
		notifier: cfg.Notifier,
		media:    cfg.Media,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
	}
	if e.users == nil {
		e.users = repositories.NewStoreUserRepository(cfg.Store)
	}
	if e.posts == nil {
		e.posts = repositories.NewStorePostRepository(cfg.Store)
	}
	if e.comments == nil {
		e.comments = repositories.NewStoreCommentRepository(cfg.Store)
	}
	if e.follows == nil {
		e.follows = repositories.NewStoreFollowRepository(cfg.Store)
	}
	if e.likes == nil {
		e.likes = repositories.NewStoreLikeRepository(cfg.Store)
	}
	if e.notifier == nil {
		e.notifier = discard{}
	}
	if e.media == nil {
		e.media = media.Disabled{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.ids == nil {
		e.ids = uuid.NewString
	}
	return e, nil
}

type discard struct{}

func (discard) Notify(context.Context, string, notify.Event) bool { return false }

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// exists reads whether the document at p is present.
func (e *Engine) exists(ctx context.Context, p store.Path) (bool, error) {
	doc, err := e.store.Get(ctx, p)
	if err != nil {
		return false, err
	}
	return doc.Exists, nil
}

// Package profile owns profile edits. Handle changes pass through a two
// state guard: a save that changes the handle is parked as a pending change
// until the user confirms it, and the cooldown is checked on both steps.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// State of a user's handle.
type State int

const (
	Stable State = iota
	PendingConfirmation
)

func (s State) String() string {
	if s == PendingConfirmation {
		return "pending_confirmation"
	}
	return "stable"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrNoPendingChange is returned when confirming or cancelling a change that
// does not exist, or no longer matches the given id.
var ErrNoPendingChange = errors.New("no pending handle change")

// Change is a profile form submission.
type Change struct {
	DisplayName string
	Handle      string
	Bio         string
	Photo       *media.Upload
}

// Pending is a handle change awaiting confirmation.
type Pending struct {
	ID          string    `json:"pending_id"`
	OldHandle   string    `json:"old_handle"`
	NewHandle   string    `json:"new_handle"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Outcome reports what a save or confirm did.
type Outcome struct {
	State   State        `json:"state"`
	Profile *models.User `json:"profile,omitempty"`
	Pending *Pending     `json:"pending,omitempty"`
	// PostsUpdated counts posts whose author fields were rewritten.
	PostsUpdated int `json:"posts_updated"`
}

// Config wires a Guard.
type Config struct {
	Store    store.Store
	Users    repositories.UserRepository
	Posts    repositories.PostRepository
	Media    media.Uploader
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
	IDs      func() string
	Cooldown time.Duration
}

// Guard applies profile changes. Pending changes live in memory, one per
// user; a newer save replaces an older pending change.
type Guard struct {
	store    store.Store
	users    repositories.UserRepository
	posts    repositories.PostRepository
	media    media.Uploader
	metrics  *metrics.Metrics
	logger   *zap.Logger
	clock    func() time.Time
	ids      func() string
	cooldown time.Duration

	mu      sync.Mutex
	pending map[string]*Pending
}

// NewGuard requires a store and fills everything else with defaults.
func NewGuard(cfg Config) (*Guard, error) {
	if cfg.Store == nil {
		return nil, errors.New("profile: store is required")
	}
	g := &Guard{
		store:    cfg.Store,
		users:    cfg.Users,
		posts:    cfg.Posts,
		media:    cfg.Media,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		cooldown: cfg.Cooldown,
		pending:  make(map[string]*Pending),
	}
	if g.users == nil {
		g.users = repositories.NewStoreUserRepository(cfg.Store)
	}
	if g.posts == nil {
		g.posts = repositories.NewStorePostRepository(cfg.Store)
	}
	if g.media == nil {
		g.media = media.Disabled{}
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.clock == nil {
		g.clock = time.Now
	}
	if g.ids == nil {
		g.ids = uuid.NewString
	}
	if g.cooldown <= 0 {
		g.cooldown = DefaultCooldown
	}
	return g, nil
}

func (g *Guard) now() time.Time {
	return g.clock().UTC()
}

// Save applies c to uid's profile. When c keeps the handle the change is
// written immediately. When it changes the handle and the cooldown allows
// it, the change is parked and the outcome is PendingConfirmation; nothing
// is written until Confirm.
func (g *Guard) Save(ctx context.Context, uid string, c Change) (*Outcome, error) {
	const op = "profile.Save"

	c.Handle = strings.TrimSpace(c.Handle)
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	if err := validate(c); err != nil {
		return nil, err
	}

	current, err := g.users.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	handleChanged := c.Handle != current.Handle
	if handleChanged {
		if err := CheckCooldown(current.LastHandleChangeAt, g.now(), g.cooldown); err != nil {
			return nil, err
		}
	}

	photoURL := current.PhotoURL
	if c.Photo != nil {
		url, err := g.media.Upload(ctx, media.ProfilePhotoKey(uid, c.Photo.Name), *c.Photo)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		photoURL = url
	}

	if !handleChanged {
		return g.apply(ctx, current, c.Handle, c.DisplayName, c.Bio, photoURL, false)
	}

	p := &Pending{
		ID:          g.ids(),
		OldHandle:   current.Handle,
		NewHandle:   c.Handle,
		DisplayName: c.DisplayName,
		Bio:         c.Bio,
		PhotoURL:    photoURL,
		CreatedAt:   g.now(),
	}
	g.mu.Lock()
	g.pending[uid] = p
	g.mu.Unlock()

	g.logger.Debug("handle change pending",
		zap.String("uid", uid),
		zap.String("from", p.OldHandle),
		zap.String("to", p.NewHandle))
	return &Outcome{State: PendingConfirmation, Profile: current, Pending: p}, nil
}

// Confirm writes the pending change with the given id, stamps the handle
// change time and cascades the new author fields onto uid's posts.
func (g *Guard) Confirm(ctx context.Context, uid, pendingID string) (*Outcome, error) {
	const op = "profile.Confirm"

	p, err := g.take(uid, pendingID)
	if err != nil {
		return nil, err
	}

	current, err := g.users.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.NewHandle != current.Handle {
		if err := CheckCooldown(current.LastHandleChangeAt, g.now(), g.cooldown); err != nil {
			return nil, err
		}
	}
	return g.apply(ctx, current, p.NewHandle, p.DisplayName, p.Bio, p.PhotoURL, p.NewHandle != current.Handle)
}

// Cancel drops the pending change. No field is written.
func (g *Guard) Cancel(uid, pendingID string) error {
	_, err := g.take(uid, pendingID)
	return err
}

// State reports whether uid has a change awaiting confirmation.
func (g *Guard) State(uid string) (State, *Pending) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pending[uid]; ok {
		cp := *p
		return PendingConfirmation, &cp
	}
	return Stable, nil
}

func (g *Guard) take(uid, pendingID string) (*Pending, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[uid]
	if !ok || (pendingID != "" && p.ID != pendingID) {
		return nil, ErrNoPendingChange
	}
	delete(g.pending, uid)
	return p, nil
}

func (g *Guard) apply(ctx context.Context, current *models.User, handle, displayName, bio, photoURL string, stamp bool) (*Outcome, error) {
	const op = "profile.apply"

	now := g.now()
	fields := store.Fields{
		"handle":      handle,
		"displayName": displayName,
		"bio":         bio,
		"photoURL":    photoURL,
	}
	if stamp {
		fields["lastHandleChangeAt"] = now
	}
	if err := g.users.UpdateUser(ctx, current.UID, fields); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated := *current
	updated.Handle = handle
	updated.DisplayName = displayName
	updated.Bio = bio
	updated.PhotoURL = photoURL
	if stamp {
		updated.LastHandleChangeAt = &now
	}
	out := &Outcome{State: Stable, Profile: &updated}

	if handle == current.Handle && displayName == current.DisplayName && photoURL == current.PhotoURL {
		return out, nil
	}
	n, err := g.cascade(ctx, current.UID, updated.Author(), photoURL != current.PhotoURL)
	out.PostsUpdated = n
	if err != nil {
		g.logger.Warn("author cascade incomplete",
			zap.String("uid", current.UID),
			zap.Int("updated", n),
			zap.Error(err))
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// cascade rewrites the author fields on every post by uid, one batch per
// MaxBatchSize posts.
func (g *Guard) cascade(ctx context.Context, uid string, author models.AuthorSnapshot, photo bool) (int, error) {
	posts, err := g.posts.GetPostsByUserID(ctx, uid, 0)
	if err != nil {
		return 0, err
	}
	fields := store.Fields{
		"authorHandle":      author.Handle,
		"authorDisplayName": author.DisplayName,
	}
	if photo {
		fields["authorPhotoURL"] = author.PhotoURL
	}

	written := 0
	for start := 0; start < len(posts); start += store.MaxBatchSize {
		chunk := posts[start:min(start+store.MaxBatchSize, len(posts))]
		ops := make([]store.Op, 0, len(chunk))
		for _, p := range chunk {
			ops = append(ops, store.UpdateOp(models.PostPath(p.ID), fields.Clone()))
		}
		if err := g.store.RunBatch(ctx, ops); err != nil {
			return written, err
		}
		written += len(chunk)
		g.metrics.CascadeWrites(len(chunk))
	}
	return written, nil
}

func validate(c Change) error {
	if c.DisplayName == "" {
		return &models.ValidationError{Field: "display_name", Message: "must not be empty"}
	}
	if !models.ValidHandle(c.Handle) {
		return &models.ValidationError{Field: "handle", Message: "must be 3-30 letters, digits, '_' or '.'"}
	}
	return nil
}

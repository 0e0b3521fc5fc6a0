// Package feed assembles post timelines from the follow graph.
package feed

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// Mode selects which posts a feed shows.
type Mode string

const (
	Following Mode = "following"
	Global    Mode = "global"
)

// ParseMode maps a query value to a Mode. Empty means Following.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Following:
		return Following, nil
	case Global:
		return Global, nil
	}
	return "", &models.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown feed mode %q", s)}
}

const (
	// DefaultFollowingCap bounds how many followed authors a following
	// feed queries. Larger follow sets are truncated, not paginated.
	DefaultFollowingCap = 10
	DefaultLimit        = 50
)

// Result is one assembled feed.
type Result struct {
	Mode  Mode          `json:"mode"`
	Posts []models.Post `json:"posts"`
	// NoFollowedUsers is set when a following feed is empty because the
	// user follows nobody, as opposed to followed users having no posts.
	NoFollowedUsers bool `json:"no_followed_users"`
	// Truncated is set when the follow set exceeded the cap.
	Truncated bool `json:"truncated"`
}

// Config wires an Assembler. Zero FollowingCap and Limit take the defaults.
type Config struct {
	Posts        repositories.PostRepository
	Comments     repositories.CommentRepository
	Follows      repositories.FollowRepository
	Logger       *zap.Logger
	FollowingCap int
	Limit        int
}

// Assembler builds feeds and post pages from the read repositories.
type Assembler struct {
	posts        repositories.PostRepository
	comments     repositories.CommentRepository
	follows      repositories.FollowRepository
	logger       *zap.Logger
	followingCap int
	limit        int
}

// NewAssembler fills unset limits and the logger with defaults.
func NewAssembler(cfg Config) *Assembler {
	a := &Assembler{
		posts:        cfg.Posts,
		comments:     cfg.Comments,
		follows:      cfg.Follows,
		logger:       cfg.Logger,
		followingCap: cfg.FollowingCap,
		limit:        cfg.Limit,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.followingCap <= 0 {
		a.followingCap = DefaultFollowingCap
	}
	if a.limit <= 0 {
		a.limit = DefaultLimit
	}
	return a
}

// Feed returns uid's timeline, newest first. A limit of zero uses the
// configured default.
func (a *Assembler) Feed(ctx context.Context, uid string, mode Mode, limit int) (*Result, error) {
	if limit <= 0 {
		limit = a.limit
	}
	switch mode {
	case Global:
		posts, err := a.posts.GetAllPosts(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("global feed: %w", err)
		}
		return &Result{Mode: Global, Posts: posts}, nil
	case Following:
		return a.following(ctx, uid, limit)
	}
	return nil, &models.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown feed mode %q", mode)}
}

func (a *Assembler) following(ctx context.Context, uid string, limit int) (*Result, error) {
	ids, err := a.follows.GetFollowingIDs(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("following feed: %w", err)
	}
	res := &Result{Mode: Following, Posts: []models.Post{}}
	if len(ids) == 0 {
		res.NoFollowedUsers = true
		return res, nil
	}
	if len(ids) > a.followingCap {
		a.logger.Debug("following set truncated",
			zap.String("uid", uid),
			zap.Int("following", len(ids)),
			zap.Int("cap", a.followingCap))
		ids = ids[:a.followingCap]
		res.Truncated = true
	}

	posts, err := a.posts.GetPostsByAuthors(ctx, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("following feed: %w", err)
	}
	res.Posts = posts
	return res, nil
}

// UserPosts lists uid's own posts, newest first.
func (a *Assembler) UserPosts(ctx context.Context, uid string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = a.limit
	}
	return a.posts.GetPostsByUserID(ctx, uid, limit)
}

// Post returns a single post.
func (a *Assembler) Post(ctx context.Context, postID string) (*models.Post, error) {
	return a.posts.GetPostByID(ctx, postID)
}

// Comments lists a post's comments, oldest first.
func (a *Assembler) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	return a.comments.GetCommentsByPostID(ctx, postID)
}

// WatchComments streams the comment list of a post until ctx ends or the
// consumer stops.
func (a *Assembler) WatchComments(ctx context.Context, postID string) iter.Seq2[[]models.Comment, error] {
	return a.comments.WatchCommentsByPostID(ctx, postID)
}

package graph

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// PostInput is a new post. Either Content or Image must be present.
type PostInput struct {
	Content string
	Image   *media.Upload
}

// CreatePost stores a post carrying actor's current display fields.
func (e *Engine) CreatePost(ctx context.Context, actor models.User, in PostInput) (*models.Post, error) {
	const op = "graph.CreatePost"

	content := strings.TrimSpace(in.Content)
	if content == "" && in.Image == nil {
		return nil, &models.ValidationError{Field: "content", Message: "post needs text or an image"}
	}

	now := e.now()
	var imageURL string
	if in.Image != nil {
		url, err := e.media.Upload(ctx, media.PostImageKey(actor.UID, in.Image.Name, now), *in.Image)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		imageURL = url
	}

	author := actor.Author()
	post := models.Post{
		ID:                e.ids(),
		AuthorID:          author.ID,
		AuthorHandle:      author.Handle,
		AuthorDisplayName: author.DisplayName,
		AuthorPhotoURL:    author.PhotoURL,
		Content:           content,
		ImageURL:          imageURL,
		Likes:             0,
		Comments:          0,
		CreatedAt:         now,
	}
	p := models.PostPath(post.ID)
	if err := e.store.RunBatch(ctx, []store.Op{
		store.RequireAbsent(p),
		store.SetOp(p, post.Fields(), false),
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.logger.Debug("post created", zap.String("post", post.ID), zap.String("author", actor.UID))
	return &post, nil
}

// DeletePost removes a post. Only its author may delete it. Likes and
// comments under it are left in place.
func (e *Engine) DeletePost(ctx context.Context, actor models.User, postID string) error {
	const op = "graph.DeletePost"

	post, err := e.posts.GetPostByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if post.AuthorID != actor.UID {
		return fmt.Errorf("%s: %w", op, models.ErrNotPermitted)
	}
	p := models.PostPath(postID)
	if err := e.store.RunBatch(ctx, []store.Op{
		store.RequireExists(p),
		store.DeleteOp(p),
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// LikeRepository defines the interface for like edge reads
type LikeRepository interface {
	HasUserLikedPost(ctx context.Context, postID, uid string) (bool, error)
	HasUserLikedComment(ctx context.Context, postID, commentID, uid string) (bool, error)
	GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error)
}

// StoreLikeRepository implements LikeRepository on a document store
type StoreLikeRepository struct {
	store store.Store
}

// NewStoreLikeRepository creates a new StoreLikeRepository
func NewStoreLikeRepository(s store.Store) *StoreLikeRepository {
	return &StoreLikeRepository{store: s}
}

// HasUserLikedPost checks for the like edge on a post
func (r *StoreLikeRepository) HasUserLikedPost(ctx context.Context, postID, uid string) (bool, error) {
	return r.exists(ctx, models.PostLikePath(postID, uid))
}

// HasUserLikedComment checks for the like edge on a comment
func (r *StoreLikeRepository) HasUserLikedComment(ctx context.Context, postID, commentID, uid string) (bool, error) {
	return r.exists(ctx, models.CommentLikePath(postID, commentID, uid))
}

// GetLikesByPostID lists the like edges of a post
func (r *StoreLikeRepository) GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error) {
	docs, err := r.store.Query(ctx, store.From(models.PostLikesCollection(postID)))
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	likes := make([]models.Like, 0, len(docs))
	for _, d := range docs {
		likes = append(likes, models.LikeFromDocument(d))
	}
	return likes, nil
}

func (r *StoreLikeRepository) exists(ctx context.Context, p store.Path) (bool, error) {
	doc, err := r.store.Get(ctx, p)
	if err != nil {
		return false, fmt.Errorf("get like: %w", err)
	}
	return doc.Exists, nil
}

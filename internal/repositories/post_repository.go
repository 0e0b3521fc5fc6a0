package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// PostRepository defines the interface for post reads. Post writes go
// through engine batches so counters and edges stay in step.
type PostRepository interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByUserID(ctx context.Context, uid string, limit int) ([]models.Post, error)
	// GetPostsByAuthors returns the newest posts of any of uids. uids must
	// not be empty.
	GetPostsByAuthors(ctx context.Context, uids []string, limit int) ([]models.Post, error)
	GetAllPosts(ctx context.Context, limit int) ([]models.Post, error)
}

// StorePostRepository implements PostRepository on a document store
type StorePostRepository struct {
	store store.Store
}

// NewStorePostRepository creates a new StorePostRepository
func NewStorePostRepository(s store.Store) *StorePostRepository {
	return &StorePostRepository{store: s}
}

// GetPostByID retrieves a post by ID
func (r *StorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	p := models.PostPath(id)
	doc, err := r.store.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if !doc.Exists {
		return nil, store.NotFoundError("get post", p)
	}
	post := models.PostFromDocument(doc)
	return &post, nil
}

// GetPostsByUserID retrieves a user's posts, newest first
func (r *StorePostRepository) GetPostsByUserID(ctx context.Context, uid string, limit int) ([]models.Post, error) {
	q := store.From(models.PostsCollection).
		Where("authorId", store.Eq, uid).
		OrderBy("createdAt", store.Desc).
		WithLimit(limit)
	return r.list(ctx, q)
}

// GetPostsByAuthors retrieves posts by any of the given authors, newest first
func (r *StorePostRepository) GetPostsByAuthors(ctx context.Context, uids []string, limit int) ([]models.Post, error) {
	q := store.From(models.PostsCollection).
		Where("authorId", store.In, uids).
		OrderBy("createdAt", store.Desc).
		WithLimit(limit)
	return r.list(ctx, q)
}

// GetAllPosts retrieves the newest posts across all authors
func (r *StorePostRepository) GetAllPosts(ctx context.Context, limit int) ([]models.Post, error) {
	q := store.From(models.PostsCollection).
		OrderBy("createdAt", store.Desc).
		WithLimit(limit)
	return r.list(ctx, q)
}

func (r *StorePostRepository) list(ctx context.Context, q store.Query) ([]models.Post, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, models.PostFromDocument(d))
	}
	return posts, nil
}

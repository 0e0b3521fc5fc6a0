package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// FollowRepository defines the interface for follow edge reads
type FollowRepository interface {
	IsFollowing(ctx context.Context, uid, target string) (bool, error)
	GetFollowers(ctx context.Context, uid string) ([]models.FollowEdge, error)
	GetFollowing(ctx context.Context, uid string) ([]models.FollowEdge, error)
	GetFollowingIDs(ctx context.Context, uid string) ([]string, error)
}

// StoreFollowRepository implements FollowRepository on a document store
type StoreFollowRepository struct {
	store store.Store
}

// NewStoreFollowRepository creates a new StoreFollowRepository
func NewStoreFollowRepository(s store.Store) *StoreFollowRepository {
	return &StoreFollowRepository{store: s}
}

// IsFollowing reports whether the follower-side mirror exists
func (r *StoreFollowRepository) IsFollowing(ctx context.Context, uid, target string) (bool, error) {
	doc, err := r.store.Get(ctx, models.FollowingPath(uid, target))
	if err != nil {
		return false, fmt.Errorf("is following: %w", err)
	}
	return doc.Exists, nil
}

// GetFollowers lists the followers of uid, most recent first
func (r *StoreFollowRepository) GetFollowers(ctx context.Context, uid string) ([]models.FollowEdge, error) {
	return r.edges(ctx, models.FollowersCollection(uid))
}

// GetFollowing lists the users uid follows, most recent first
func (r *StoreFollowRepository) GetFollowing(ctx context.Context, uid string) ([]models.FollowEdge, error) {
	return r.edges(ctx, models.FollowingCollection(uid))
}

// GetFollowingIDs returns the uids uid follows, most recent first
func (r *StoreFollowRepository) GetFollowingIDs(ctx context.Context, uid string) ([]string, error) {
	edges, err := r.GetFollowing(ctx, uid)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

func (r *StoreFollowRepository) edges(ctx context.Context, collection store.Path) ([]models.FollowEdge, error) {
	docs, err := r.store.Query(ctx, store.From(collection).OrderBy("followedAt", store.Desc))
	if err != nil {
		return nil, fmt.Errorf("list follow edges: %w", err)
	}
	edges := make([]models.FollowEdge, 0, len(docs))
	for _, d := range docs {
		edges = append(edges, models.FollowEdgeFromDocument(d))
	}
	return edges, nil
}

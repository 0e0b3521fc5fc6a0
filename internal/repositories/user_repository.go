package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	// GetUserByUID fails with a store NotFound error when the profile is missing.
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	// CreateUser writes a new profile and fails with Conflict if one exists.
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUser merges fields into an existing profile.
	UpdateUser(ctx context.Context, uid string, fields store.Fields) error
}

// StoreUserRepository implements UserRepository on a document store
type StoreUserRepository struct {
	store store.Store
}

// NewStoreUserRepository creates a new StoreUserRepository
func NewStoreUserRepository(s store.Store) *StoreUserRepository {
	return &StoreUserRepository{store: s}
}

// GetUserByUID retrieves a profile by Firebase UID
func (r *StoreUserRepository) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	p := models.UserPath(uid)
	doc, err := r.store.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !doc.Exists {
		return nil, store.NotFoundError("get user", p)
	}
	user := models.UserFromDocument(doc)
	return &user, nil
}

// CreateUser creates the profile document
func (r *StoreUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	p := models.UserPath(user.UID)
	err := r.store.RunBatch(ctx, []store.Op{
		store.RequireAbsent(p),
		store.SetOp(p, user.Fields(), false),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser merges profile fields
func (r *StoreUserRepository) UpdateUser(ctx context.Context, uid string, fields store.Fields) error {
	if err := r.store.Update(ctx, models.UserPath(uid), fields); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"
	"iter"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// CommentRepository defines the interface for comment reads
type CommentRepository interface {
	GetCommentByID(ctx context.Context, postID, commentID string) (*models.Comment, error)
	// GetCommentsByPostID lists a post's comments, oldest first.
	GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error)
	WatchCommentsByPostID(ctx context.Context, postID string) iter.Seq2[[]models.Comment, error]
}

// StoreCommentRepository implements CommentRepository on a document store
type StoreCommentRepository struct {
	store store.Store
}

// NewStoreCommentRepository creates a new StoreCommentRepository
func NewStoreCommentRepository(s store.Store) *StoreCommentRepository {
	return &StoreCommentRepository{store: s}
}

// GetCommentByID retrieves a single comment
func (r *StoreCommentRepository) GetCommentByID(ctx context.Context, postID, commentID string) (*models.Comment, error) {
	p := models.CommentPath(postID, commentID)
	doc, err := r.store.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if !doc.Exists {
		return nil, store.NotFoundError("get comment", p)
	}
	comment := models.CommentFromDocument(doc)
	return &comment, nil
}

func commentsQuery(postID string) store.Query {
	return store.From(models.CommentsCollection(postID)).OrderBy("createdAt", store.Asc)
}

// GetCommentsByPostID retrieves all comments of a post
func (r *StoreCommentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error) {
	docs, err := r.store.Query(ctx, commentsQuery(postID))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return commentsFromDocuments(docs), nil
}

// WatchCommentsByPostID streams the comment list of a post
func (r *StoreCommentRepository) WatchCommentsByPostID(ctx context.Context, postID string) iter.Seq2[[]models.Comment, error] {
	return func(yield func([]models.Comment, error) bool) {
		for snap, err := range r.store.Subscribe(ctx, commentsQuery(postID)) {
			if err != nil {
				yield(nil, fmt.Errorf("watch comments: %w", err))
				return
			}
			if !yield(commentsFromDocuments(snap.Documents), nil) {
				return
			}
		}
	}
}

func commentsFromDocuments(docs []store.Document) []models.Comment {
	comments := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, models.CommentFromDocument(d))
	}
	return comments
}

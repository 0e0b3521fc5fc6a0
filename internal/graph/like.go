package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
	"github.com/anonto42/nano-midea/socialgraph/internal/view"
)

// LikeTarget names a post, or a comment on a post when CommentID is set.
type LikeTarget struct {
	PostID    string
	CommentID string
}

func (t LikeTarget) isComment() bool {
	return t.CommentID != ""
}

func (t LikeTarget) contentPath() store.Path {
	if t.isComment() {
		return models.CommentPath(t.PostID, t.CommentID)
	}
	return models.PostPath(t.PostID)
}

func (t LikeTarget) edgePath(uid string) store.Path {
	if t.isComment() {
		return models.CommentLikePath(t.PostID, t.CommentID, uid)
	}
	return models.PostLikePath(t.PostID, uid)
}

func (t LikeTarget) kind() string {
	if t.isComment() {
		return "comment_like"
	}
	return "post_like"
}

func (t LikeTarget) notificationType() models.NotificationType {
	if t.isComment() {
		return models.NotificationLikeComment
	}
	return models.NotificationLikePost
}

// ToggleLike likes the target when actor has not liked it yet and removes
// the like otherwise. The edge, the likes counter and the edge guard commit
// together.
func (e *Engine) ToggleLike(ctx context.Context, actor models.User, target LikeTarget) (view.Toggle, error) {
	const op = "graph.ToggleLike"

	if target.PostID == "" {
		return view.Toggle{}, &models.ValidationError{Field: "post_id", Message: "must not be empty"}
	}

	content, err := e.store.Get(ctx, target.contentPath())
	if err != nil {
		return view.Toggle{}, fmt.Errorf("%s: %w", op, err)
	}
	if !content.Exists {
		return view.Toggle{}, fmt.Errorf("%s: %w", op, store.NotFoundError("get", target.contentPath()))
	}

	edge := target.edgePath(actor.UID)
	liked, err := e.exists(ctx, edge)
	if err != nil {
		return view.Toggle{}, fmt.Errorf("%s: %w", op, err)
	}

	pending := view.Begin(view.Toggle{Active: liked, Count: content.Int("likes")})
	var ops []store.Op
	if liked {
		ops = []store.Op{
			store.RequireExists(edge),
			store.DeleteOp(edge),
			store.IncrementOp(target.contentPath(), "likes", -1),
		}
	} else {
		like := models.Like{UserID: actor.UID, Timestamp: e.now()}
		ops = []store.Op{
			store.RequireAbsent(edge),
			store.SetOp(edge, like.Fields(), false),
			store.IncrementOp(target.contentPath(), "likes", 1),
		}
	}

	err = e.store.RunBatch(ctx, ops)
	e.metrics.Toggle(target.kind(), !liked, err)
	if err != nil {
		e.logger.Warn("like toggle failed",
			zap.String("actor", actor.UID),
			zap.String("post", target.PostID),
			zap.String("comment", target.CommentID),
			zap.Bool("liked", liked),
			zap.Error(err))
		return pending.Rollback(), fmt.Errorf("%s: %w", op, err)
	}

	if !liked {
		e.notifier.Notify(ctx, content.String("authorId"), notify.Event{
			Type:      target.notificationType(),
			Actor:     actor.Author(),
			PostID:    target.PostID,
			CommentID: target.CommentID,
			Text:      content.String("content"),
		})
	}
	return pending.Commit(), nil
}

// HasLiked reports whether uid currently likes the target.
func (e *Engine) HasLiked(ctx context.Context, uid string, target LikeTarget) (bool, error) {
	if target.isComment() {
		return e.likes.HasUserLikedComment(ctx, target.PostID, target.CommentID, uid)
	}
	return e.likes.HasUserLikedPost(ctx, target.PostID, uid)
}

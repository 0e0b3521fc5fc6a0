package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// CommentInput is a new comment, optionally replying to another comment on
// the same post.
type CommentInput struct {
	Content string
	ReplyTo *models.ReplyTarget
}

// AddComment creates the comment and bumps the post's comment counter in
// one batch, then notifies the post author and, for replies, the author of
// the comment replied to. Both notices fire when both apply.
func (e *Engine) AddComment(ctx context.Context, actor models.User, postID string, in CommentInput) (*models.Comment, error) {
	const op = "graph.AddComment"

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, &models.ValidationError{Field: "content", Message: "must not be empty"}
	}
	if in.ReplyTo != nil && strings.TrimSpace(in.ReplyTo.CommentID) == "" {
		return nil, &models.ValidationError{Field: "reply_to.comment_id", Message: "must not be empty"}
	}

	post, err := e.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	author := actor.Author()
	comment := models.Comment{
		ID:                e.ids(),
		PostID:            postID,
		AuthorID:          author.ID,
		AuthorHandle:      author.Handle,
		AuthorDisplayName: author.DisplayName,
		AuthorPhotoURL:    author.PhotoURL,
		Content:           content,
		Likes:             0,
		CreatedAt:         e.now(),
	}
	if in.ReplyTo != nil {
		comment.ReplyToCommentID = in.ReplyTo.CommentID
		comment.ReplyToAuthorHandle = in.ReplyTo.AuthorHandle
	}

	p := models.CommentPath(postID, comment.ID)
	err = e.store.RunBatch(ctx, []store.Op{
		store.RequireAbsent(p),
		store.SetOp(p, comment.Fields(), false),
		store.IncrementOp(models.PostPath(postID), "comments", 1),
	})
	e.metrics.Comment("add", err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.notifier.Notify(ctx, post.AuthorID, notify.Event{
		Type:      models.NotificationCommentPost,
		Actor:     author,
		PostID:    postID,
		CommentID: comment.ID,
		Text:      content,
	})
	if in.ReplyTo != nil {
		e.notifyReply(ctx, author, postID, comment.ID, in.ReplyTo.CommentID, content)
	}
	return &comment, nil
}

// notifyReply looks up who wrote the comment being answered. A reply target
// that cannot be read only costs the notification.
func (e *Engine) notifyReply(ctx context.Context, actor models.AuthorSnapshot, postID, commentID, replyToID, content string) {
	original, err := e.comments.GetCommentByID(ctx, postID, replyToID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("reply target lookup failed",
				zap.String("post", postID),
				zap.String("comment", replyToID),
				zap.Error(err))
		}
		return
	}
	e.notifier.Notify(ctx, original.AuthorID, notify.Event{
		Type:      models.NotificationReplyComment,
		Actor:     actor,
		PostID:    postID,
		CommentID: commentID,
		Text:      content,
	})
}

// DeleteComment removes a comment and decrements the post's counter. The
// comment author and the post author may delete. Likes on the comment and
// replies to it are left in place.
func (e *Engine) DeleteComment(ctx context.Context, actor models.User, postID, commentID string) error {
	const op = "graph.DeleteComment"

	comment, err := e.comments.GetCommentByID(ctx, postID, commentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	post, err := e.posts.GetPostByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if actor.UID != comment.AuthorID && actor.UID != post.AuthorID {
		return fmt.Errorf("%s: %w", op, models.ErrNotPermitted)
	}

	p := models.CommentPath(postID, commentID)
	err = e.store.RunBatch(ctx, []store.Op{
		store.RequireExists(p),
		store.DeleteOp(p),
		store.IncrementOp(models.PostPath(postID), "comments", -1),
	})
	e.metrics.Comment("delete", err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
	"github.com/anonto42/nano-midea/socialgraph/internal/view"
)

// ToggleFollow follows target when actor does not follow them yet and
// unfollows otherwise. The returned toggle is the target's follow state and
// follower count as actor should display it; on error it is the state
// before the call.
func (e *Engine) ToggleFollow(ctx context.Context, actor models.User, targetUID string) (view.Toggle, error) {
	const op = "graph.ToggleFollow"

	if targetUID == "" {
		return view.Toggle{}, &models.ValidationError{Field: "uid", Message: "must not be empty"}
	}
	if actor.UID == targetUID {
		return view.Toggle{}, &models.SelfActionError{Action: "follow"}
	}

	target, err := e.users.GetUserByUID(ctx, targetUID)
	if err != nil {
		return view.Toggle{}, fmt.Errorf("%s: %w", op, err)
	}
	following, err := e.exists(ctx, models.FollowingPath(actor.UID, targetUID))
	if err != nil {
		return view.Toggle{}, fmt.Errorf("%s: %w", op, err)
	}

	pending := view.Begin(view.Toggle{Active: following, Count: target.Followers})
	var ops []store.Op
	if following {
		ops = unfollowOps(actor.UID, targetUID)
	} else {
		ops = followOps(actor, *target, e.now())
	}

	err = e.store.RunBatch(ctx, ops)
	e.metrics.Toggle("follow", !following, err)
	if err != nil {
		e.logger.Warn("follow toggle failed",
			zap.String("actor", actor.UID),
			zap.String("target", targetUID),
			zap.Bool("following", following),
			zap.Error(err))
		return pending.Rollback(), fmt.Errorf("%s: %w", op, err)
	}

	if !following {
		e.notifier.Notify(ctx, targetUID, notify.Event{
			Type:  models.NotificationFollow,
			Actor: actor.Author(),
		})
	}
	return pending.Commit(), nil
}

func followOps(actor, target models.User, at time.Time) []store.Op {
	return []store.Op{
		store.RequireAbsent(models.FollowingPath(actor.UID, target.UID)),
		store.SetOp(models.FollowingPath(actor.UID, target.UID), models.NewFollowEdge(target, at).Fields(), false),
		store.SetOp(models.FollowersPath(target.UID, actor.UID), models.NewFollowEdge(actor, at).Fields(), false),
		store.IncrementOp(models.UserPath(actor.UID), "following", 1),
		store.IncrementOp(models.UserPath(target.UID), "followers", 1),
	}
}

func unfollowOps(actorUID, targetUID string) []store.Op {
	return []store.Op{
		store.RequireExists(models.FollowingPath(actorUID, targetUID)),
		store.DeleteOp(models.FollowingPath(actorUID, targetUID)),
		store.DeleteOp(models.FollowersPath(targetUID, actorUID)),
		store.IncrementOp(models.UserPath(actorUID), "following", -1),
		store.IncrementOp(models.UserPath(targetUID), "followers", -1),
	}
}

// IsFollowing reports whether uid follows target.
func (e *Engine) IsFollowing(ctx context.Context, uid, target string) (bool, error) {
	return e.follows.IsFollowing(ctx, uid, target)
}

// Followers lists the users following uid, most recent first.
func (e *Engine) Followers(ctx context.Context, uid string) ([]models.FollowEdge, error) {
	return e.follows.GetFollowers(ctx, uid)
}

// Following lists the users uid follows, most recent first.
func (e *Engine) Following(ctx context.Context, uid string) ([]models.FollowEdge, error) {
	return e.follows.GetFollowing(ctx, uid)
}

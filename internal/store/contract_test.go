package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("get missing document", func(t *testing.T) {
		s := open(t)
		doc, err := s.Get(context.Background(), "users/nobody")
		require.NoError(t, err)
		assert.False(t, doc.Exists)
		assert.Equal(t, Path("users/nobody"), doc.Path)
	})

	t.Run("set merge and replace", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p := Path("users/u1")
		require.NoError(t, s.Set(ctx, p, Fields{"handle": "alice", "followers": 0}, false))
		require.NoError(t, s.Set(ctx, p, Fields{"displayName": "Alice"}, true))

		doc, err := s.Get(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "alice", doc.String("handle"))
		assert.Equal(t, "Alice", doc.String("displayName"))

		require.NoError(t, s.Set(ctx, p, Fields{"handle": "bob"}, false))
		doc, err = s.Get(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "bob", doc.String("handle"))
		assert.False(t, doc.Has("displayName"))
	})

	t.Run("update missing document is not found", func(t *testing.T) {
		s := open(t)
		err := s.Update(context.Background(), "posts/missing", Fields{"likes": 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("increment", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p := Path("posts/p1")
		require.NoError(t, s.Set(ctx, p, Fields{"likes": 2}, false))
		require.NoError(t, s.Increment(ctx, p, "likes", 1))
		require.NoError(t, s.Increment(ctx, p, "comments", -1))

		doc, err := s.Get(ctx, p)
		require.NoError(t, err)
		assert.EqualValues(t, 3, doc.Int("likes"))
		assert.EqualValues(t, -1, doc.Int("comments"))
	})

	t.Run("times round trip", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
		require.NoError(t, s.Set(ctx, "posts/p1", Fields{"createdAt": at}, false))
		doc, err := s.Get(ctx, "posts/p1")
		require.NoError(t, err)
		assert.True(t, at.Equal(doc.Time("createdAt")))
	})

	t.Run("batch applies all operations", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		require.NoError(t, s.Set(ctx, "users/a", Fields{"following": 0}, false))
		require.NoError(t, s.Set(ctx, "users/b", Fields{"followers": 0}, false))

		err := s.RunBatch(ctx, []Op{
			RequireAbsent("users/a/following/b"),
			SetOp("users/a/following/b", Fields{"userId": "b"}, false),
			SetOp("users/b/followers/a", Fields{"userId": "a"}, false),
			IncrementOp("users/a", "following", 1),
			IncrementOp("users/b", "followers", 1),
		})
		require.NoError(t, err)

		a, err := s.Get(ctx, "users/a")
		require.NoError(t, err)
		assert.EqualValues(t, 1, a.Int("following"))
		edge, err := s.Get(ctx, "users/b/followers/a")
		require.NoError(t, err)
		assert.True(t, edge.Exists)
	})

	t.Run("failed guard leaves state untouched", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		require.NoError(t, s.Set(ctx, "users/a", Fields{"following": 1}, false))
		require.NoError(t, s.Set(ctx, "users/a/following/b", Fields{"userId": "b"}, false))

		err := s.RunBatch(ctx, []Op{
			IncrementOp("users/a", "following", 1),
			RequireAbsent("users/a/following/b"),
			SetOp("users/a/following/b", Fields{"userId": "b"}, false),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)

		a, err := s.Get(ctx, "users/a")
		require.NoError(t, err)
		assert.EqualValues(t, 1, a.Int("following"))
	})

	t.Run("batch update of missing document aborts", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		err := s.RunBatch(ctx, []Op{
			SetOp("posts/p1/likes/u1", Fields{"userId": "u1"}, false),
			IncrementOp("posts/p1", "likes", 1),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)

		edge, err := s.Get(ctx, "posts/p1/likes/u1")
		require.NoError(t, err)
		assert.False(t, edge.Exists)
	})

	t.Run("query filters orders and limits", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, author := range []string{"a", "b", "c", "a", "d"} {
			require.NoError(t, s.Set(ctx, Join("posts", string(rune('1'+i))), Fields{
				"authorId":  author,
				"createdAt": base.Add(time.Duration(i) * time.Hour),
			}, false))
		}
		require.NoError(t, s.Set(ctx, "posts/undated", Fields{"authorId": "a"}, false))
		require.NoError(t, s.Set(ctx, "posts/1/comments/c1", Fields{"authorId": "a"}, false))

		docs, err := s.Query(ctx, From("posts").
			Where("authorId", In, []string{"a", "b"}).
			OrderBy("createdAt", Desc).
			WithLimit(2))
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "4", docs[0].ID())
		assert.Equal(t, "2", docs[1].ID())

		all, err := s.Query(ctx, From("posts").Where("authorId", Eq, "a"))
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("empty in list is invalid", func(t *testing.T) {
		s := open(t)
		_, err := s.Query(context.Background(), From("posts").Where("authorId", In, []string{}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("subscribe delivers initial state and changes", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s := open(t)
		require.NoError(t, s.Set(ctx, "users/u1/notifications/n1", Fields{"read": false}, false))

		var seen [][]Document
		for snap, err := range s.Subscribe(ctx, From("users/u1/notifications")) {
			require.NoError(t, err)
			seen = append(seen, snap.Documents)
			if len(seen) == 1 {
				require.NoError(t, s.Set(ctx, "users/u1/notifications/n2", Fields{"read": false}, false))
				continue
			}
			if len(snap.Documents) == 2 {
				break
			}
		}
		require.GreaterOrEqual(t, len(seen), 2)
		assert.Len(t, seen[0], 1)
		assert.Len(t, seen[len(seen)-1], 2)
	})
}

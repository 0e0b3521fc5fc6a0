package graph

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
	"github.com/anonto42/nano-midea/socialgraph/internal/view"
)

var testNow = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  store.Store
	engine *Engine
	inbox  repositories.NotificationRepository
	users  map[string]models.User
}

func newFixture(t *testing.T, s store.Store, uids ...string) *fixture {
	t.Helper()
	if s == nil {
		s = store.NewMemory()
	}
	inbox := repositories.NewStoreNotificationRepository(s)
	var (
		mu  sync.Mutex
		seq int
	)
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id%04d", seq)
	}
	engine, err := NewEngine(Config{
		Store:    s,
		Notifier: notify.NewNotifier(notify.Config{Repository: inbox, Clock: func() time.Time { return testNow }}),
		Media:    &memoryUploader{},
		Clock:    func() time.Time { return testNow },
		IDs:      ids,
	})
	require.NoError(t, err)

	f := &fixture{store: s, engine: engine, inbox: inbox, users: map[string]models.User{}}
	users := repositories.NewStoreUserRepository(s)
	for _, uid := range uids {
		u := models.User{UID: uid, Handle: uid, DisplayName: strings.ToUpper(uid), CreatedAt: testNow}
		require.NoError(t, users.CreateUser(context.Background(), &u))
		f.users[uid] = u
	}
	return f
}

func (f *fixture) user(t *testing.T, uid string) models.User {
	t.Helper()
	u, err := repositories.NewStoreUserRepository(f.store).GetUserByUID(context.Background(), uid)
	require.NoError(t, err)
	return *u
}

func (f *fixture) notifications(t *testing.T, uid string) []models.Notification {
	t.Helper()
	list, err := f.inbox.GetByRecipientID(context.Background(), uid, 0)
	require.NoError(t, err)
	return list
}

func (f *fixture) post(t *testing.T, author, content string) *models.Post {
	t.Helper()
	p, err := f.engine.CreatePost(context.Background(), f.users[author], PostInput{Content: content})
	require.NoError(t, err)
	return p
}

func (f *fixture) count(t *testing.T, collection store.Path) int {
	t.Helper()
	docs, err := f.store.Query(context.Background(), store.From(collection))
	require.NoError(t, err)
	return len(docs)
}

type memoryUploader struct {
	keys []string
}

func (m *memoryUploader) Upload(_ context.Context, key string, u media.Upload) (string, error) {
	if _, err := io.ReadAll(u.Body); err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

// failingBatches passes reads through and fails every batch.
type failingBatches struct {
	store.Store
}

func (failingBatches) RunBatch(context.Context, []store.Op) error {
	return store.ErrUnavailable
}

func TestFollowToggleIsItsOwnInverse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob")

	state, err := f.engine.ToggleFollow(ctx, f.users["alice"], "bob")
	require.NoError(t, err)
	assert.Equal(t, view.Toggle{Active: true, Count: 1}, state)
	assert.EqualValues(t, 1, f.user(t, "alice").Following)
	assert.EqualValues(t, 1, f.user(t, "bob").Followers)

	mirror, err := f.store.Get(ctx, models.FollowersPath("bob", "alice"))
	require.NoError(t, err)
	require.True(t, mirror.Exists)
	assert.Equal(t, "ALICE", models.FollowEdgeFromDocument(mirror).UserDisplayName)

	state, err = f.engine.ToggleFollow(ctx, f.users["alice"], "bob")
	require.NoError(t, err)
	assert.Equal(t, view.Toggle{Active: false, Count: 0}, state)
	assert.Zero(t, f.user(t, "alice").Following)
	assert.Zero(t, f.user(t, "bob").Followers)
	assert.Zero(t, f.count(t, models.FollowingCollection("alice")))
	assert.Zero(t, f.count(t, models.FollowersCollection("bob")))

	following, err := f.engine.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, following)
}

func TestFollowNotifiesOnlyOnFollow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob")

	_, err := f.engine.ToggleFollow(ctx, f.users["alice"], "bob")
	require.NoError(t, err)
	_, err = f.engine.ToggleFollow(ctx, f.users["alice"], "bob")
	require.NoError(t, err)

	inbox := f.notifications(t, "bob")
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationFollow, inbox[0].Type)
	assert.Equal(t, "alice", inbox[0].FromUserID)
}

func TestSelfFollowIsRejectedBeforeIO(t *testing.T) {
	f := newFixture(t, nil, "alice")
	_, err := f.engine.ToggleFollow(context.Background(), f.users["alice"], "alice")

	var selfErr *models.SelfActionError
	require.ErrorAs(t, err, &selfErr)
	assert.Empty(t, f.notifications(t, "alice"))
	assert.Zero(t, f.user(t, "alice").Following)
}

func TestFollowUnknownUser(t *testing.T) {
	f := newFixture(t, nil, "alice")
	_, err := f.engine.ToggleFollow(context.Background(), f.users["alice"], "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFollowListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "alice", "bob", "carol")
	_, err := f.engine.ToggleFollow(ctx, f.users["alice"], "bob")
	require.NoError(t, err)
	_, err = f.engine.ToggleFollow(ctx, f.users["carol"], "bob")
	require.NoError(t, err)

	followers, err := f.engine.Followers(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	following, err := f.engine.Following(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "bob", following[0].UserID)
}

func TestLikePostNotifiesAuthorWithSnippet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "bob", "carol")
	p := f.post(t, "carol", strings.Repeat("long post text ", 10))

	state, err := f.engine.ToggleLike(ctx, f.users["bob"], LikeTarget{PostID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, view.Toggle{Active: true, Count: 1}, state)

	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Int("likes"))

	inbox := f.notifications(t, "carol")
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationLikePost, inbox[0].Type)
	assert.Equal(t, p.ID, inbox[0].PostID)
	assert.LessOrEqual(t, len([]rune(inbox[0].ContentSnippet)), 53)
	assert.True(t, strings.HasSuffix(inbox[0].ContentSnippet, "..."))
}

func TestLikeCountMatchesEdges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "a", "b", "c", "author")
	p := f.post(t, "author", "hello")

	sequence := []string{"a", "b", "a", "c", "b", "b", "author"}
	for _, uid := range sequence {
		_, err := f.engine.ToggleLike(ctx, f.users[uid], LikeTarget{PostID: p.ID})
		require.NoError(t, err)

		doc, err := f.store.Get(ctx, models.PostPath(p.ID))
		require.NoError(t, err)
		assert.EqualValues(t, f.count(t, models.PostLikesCollection(p.ID)), doc.Int("likes"))
	}

	liked, err := f.engine.HasLiked(ctx, "c", LikeTarget{PostID: p.ID})
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestConcurrentLikeTogglesKeepCounterConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "a", "author")
	p := f.post(t, "author", "hello")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ToggleLike(ctx, f.users["a"], LikeTarget{PostID: p.ID})
			if err != nil {
				assert.ErrorIs(t, err, store.ErrConflict)
			}
		}()
	}
	wg.Wait()

	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.EqualValues(t, f.count(t, models.PostLikesCollection(p.ID)), doc.Int("likes"))
	assert.GreaterOrEqual(t, doc.Int("likes"), int64(0))
	assert.LessOrEqual(t, doc.Int("likes"), int64(1))
}

func TestSelfLikeDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "carol")
	p := f.post(t, "carol", "mine")

	_, err := f.engine.ToggleLike(ctx, f.users["carol"], LikeTarget{PostID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, f.notifications(t, "carol"))
}

func TestSelfCommentDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "dana", "eli")
	p := f.post(t, "dana", "thoughts")

	own, err := f.engine.AddComment(ctx, f.users["dana"], p.ID, CommentInput{Content: "adding context"})
	require.NoError(t, err)
	_, err = f.engine.AddComment(ctx, f.users["dana"], p.ID, CommentInput{
		Content: "and more",
		ReplyTo: &models.ReplyTarget{CommentID: own.ID, AuthorHandle: "dana"},
	})
	require.NoError(t, err)
	assert.Empty(t, f.notifications(t, "dana"))
	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 2, doc.Int("comments"))

	// replying to someone else on your own post notifies only them
	theirs, err := f.engine.AddComment(ctx, f.users["eli"], p.ID, CommentInput{Content: "question"})
	require.NoError(t, err)
	_, err = f.engine.AddComment(ctx, f.users["dana"], p.ID, CommentInput{
		Content: "answer",
		ReplyTo: &models.ReplyTarget{CommentID: theirs.ID, AuthorHandle: "eli"},
	})
	require.NoError(t, err)

	var commentNotices int
	for _, n := range f.notifications(t, "dana") {
		if n.Type == models.NotificationCommentPost && n.FromUserID == "dana" {
			commentNotices++
		}
	}
	assert.Zero(t, commentNotices)
	eliInbox := f.notifications(t, "eli")
	require.Len(t, eliInbox, 1)
	assert.Equal(t, models.NotificationReplyComment, eliInbox[0].Type)
}

func TestLikeComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "author", "commenter", "fan")
	p := f.post(t, "author", "post")
	c, err := f.engine.AddComment(ctx, f.users["commenter"], p.ID, CommentInput{Content: "nice"})
	require.NoError(t, err)

	target := LikeTarget{PostID: p.ID, CommentID: c.ID}
	state, err := f.engine.ToggleLike(ctx, f.users["fan"], target)
	require.NoError(t, err)
	assert.True(t, state.Active)

	doc, err := f.store.Get(ctx, models.CommentPath(p.ID, c.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Int("likes"))

	inbox := f.notifications(t, "commenter")
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationLikeComment, inbox[0].Type)
	assert.Equal(t, c.ID, inbox[0].CommentID)
}

func TestLikeMissingPost(t *testing.T) {
	f := newFixture(t, nil, "a")
	_, err := f.engine.ToggleLike(context.Background(), f.users["a"], LikeTarget{PostID: "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFailedBatchRollsBackView(t *testing.T) {
	ctx := context.Background()
	base := store.NewMemory()
	seed := newFixture(t, base, "a", "author")
	p := seed.post(t, "author", "hello")

	f := newFixture(t, failingBatches{Store: base})
	before := view.Toggle{Active: false, Count: 0}

	state, err := f.engine.ToggleLike(ctx, seed.users["a"], LikeTarget{PostID: p.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, before, state)
	assert.Empty(t, seed.notifications(t, "author"))

	state, err = f.engine.ToggleFollow(ctx, seed.users["a"], "author")
	require.Error(t, err)
	assert.Equal(t, view.Toggle{Active: false, Count: 0}, state)
}

func TestReplyNotifiesPostAuthorAndCommentAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "e", "f", "g")
	p := f.post(t, "g", "post by g")
	original, err := f.engine.AddComment(ctx, f.users["e"], p.ID, CommentInput{Content: "first"})
	require.NoError(t, err)
	gBefore := len(f.notifications(t, "g"))

	reply, err := f.engine.AddComment(ctx, f.users["f"], p.ID, CommentInput{
		Content: "  replying  ",
		ReplyTo: &models.ReplyTarget{CommentID: original.ID, AuthorHandle: "e"},
	})
	require.NoError(t, err)
	assert.Equal(t, "replying", reply.Content)
	assert.Equal(t, original.ID, reply.ReplyToCommentID)

	gInbox := f.notifications(t, "g")
	require.Len(t, gInbox, gBefore+1)
	var fromF []models.Notification
	for _, n := range gInbox {
		assert.Equal(t, models.NotificationCommentPost, n.Type)
		if n.FromUserID == "f" {
			fromF = append(fromF, n)
		}
	}
	require.Len(t, fromF, 1)
	assert.Equal(t, reply.ID, fromF[0].CommentID)

	eInbox := f.notifications(t, "e")
	require.Len(t, eInbox, 1)
	assert.Equal(t, models.NotificationReplyComment, eInbox[0].Type)
	assert.Equal(t, reply.ID, eInbox[0].CommentID)

	assert.Empty(t, f.notifications(t, "f"))

	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 2, doc.Int("comments"))
}

func TestEmptyCommentIsValidationError(t *testing.T) {
	f := newFixture(t, nil, "a")
	_, err := f.engine.AddComment(context.Background(), f.users["a"], "does-not-exist", CommentInput{Content: "   "})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)
}

func TestDeleteCommentCapabilities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "author", "commenter", "stranger")
	p := f.post(t, "author", "post")
	c1, err := f.engine.AddComment(ctx, f.users["commenter"], p.ID, CommentInput{Content: "one"})
	require.NoError(t, err)
	c2, err := f.engine.AddComment(ctx, f.users["commenter"], p.ID, CommentInput{Content: "two"})
	require.NoError(t, err)

	err = f.engine.DeleteComment(ctx, f.users["stranger"], p.ID, c1.ID)
	assert.ErrorIs(t, err, models.ErrNotPermitted)

	require.NoError(t, f.engine.DeleteComment(ctx, f.users["commenter"], p.ID, c1.ID))
	require.NoError(t, f.engine.DeleteComment(ctx, f.users["author"], p.ID, c2.ID))

	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.Zero(t, doc.Int("comments"))

	err = f.engine.DeleteComment(ctx, f.users["author"], p.ID, c2.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "a")

	_, err := f.engine.CreatePost(ctx, f.users["a"], PostInput{Content: "  "})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	p, err := f.engine.CreatePost(ctx, f.users["a"], PostInput{
		Image: &media.Upload{Name: "cat.png", ContentType: "image/png", Body: strings.NewReader("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("https://cdn.example.com/posts/a/cat.png_%d", testNow.UnixMilli()), p.ImageURL)
	assert.Equal(t, "a", p.AuthorHandle)
	assert.Zero(t, p.Likes)

	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.Equal(t, p.ImageURL, doc.String("imageUrl"))
}

func TestCreatePostUploadFailure(t *testing.T) {
	s := store.NewMemory()
	engine, err := NewEngine(Config{Store: s})
	require.NoError(t, err)
	_, err = engine.CreatePost(context.Background(), models.User{UID: "a"}, PostInput{
		Image: &media.Upload{Name: "x.png", Body: strings.NewReader("x")},
	})
	assert.ErrorIs(t, err, media.ErrDisabled)
}

func TestDeletePostOnlyByAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "a", "b")
	p := f.post(t, "a", "mine")

	assert.ErrorIs(t, f.engine.DeletePost(ctx, f.users["b"], p.ID), models.ErrNotPermitted)
	require.NoError(t, f.engine.DeletePost(ctx, f.users["a"], p.ID))

	doc, err := f.store.Get(ctx, models.PostPath(p.ID))
	require.NoError(t, err)
	assert.False(t, doc.Exists)
}

func TestUnfollowDisplayFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, "a", "b")
	_, err := f.engine.ToggleFollow(ctx, f.users["a"], "b")
	require.NoError(t, err)
	// counter drifted below the edge count
	require.NoError(t, f.store.Update(ctx, models.UserPath("b"), store.Fields{"followers": 0}))

	state, err := f.engine.ToggleFollow(ctx, f.users["a"], "b")
	require.NoError(t, err)
	assert.Equal(t, view.Toggle{Active: false, Count: 0}, state)
}

func TestNewEngineRequiresStore(t *testing.T) {
	_, err := NewEngine(Config{})
	assert.Error(t, err)
}

package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// countingPosts records which post queries ran.
type countingPosts struct {
	repositories.PostRepository
	byAuthors [][]string
}

func (c *countingPosts) GetPostsByAuthors(ctx context.Context, uids []string, limit int) ([]models.Post, error) {
	c.byAuthors = append(c.byAuthors, uids)
	return c.PostRepository.GetPostsByAuthors(ctx, uids, limit)
}

type fixture struct {
	store store.Store
	posts *countingPosts
	feed  *Assembler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	posts := &countingPosts{PostRepository: repositories.NewStorePostRepository(s)}
	return &fixture{
		store: s,
		posts: posts,
		feed: NewAssembler(Config{
			Posts:    posts,
			Comments: repositories.NewStoreCommentRepository(s),
			Follows:  repositories.NewStoreFollowRepository(s),
		}),
	}
}

func (f *fixture) post(t *testing.T, id, author string, minute int) {
	t.Helper()
	p := models.Post{ID: id, AuthorID: author, AuthorHandle: author, Content: id, CreatedAt: base.Add(time.Duration(minute) * time.Minute)}
	require.NoError(t, f.store.Set(context.Background(), models.PostPath(id), p.Fields(), false))
}

func (f *fixture) follow(t *testing.T, uid, target string, minute int) {
	t.Helper()
	edge := models.NewFollowEdge(models.User{UID: target, Handle: target}, base.Add(time.Duration(minute)*time.Minute))
	require.NoError(t, f.store.Set(context.Background(), models.FollowingPath(uid, target), edge.Fields(), false))
}

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestFollowingFeedWithNoFollowedUsers(t *testing.T) {
	f := newFixture(t)
	f.post(t, "p1", "someone", 1)

	res, err := f.feed.Feed(context.Background(), "d", Following, 0)
	require.NoError(t, err)
	assert.True(t, res.NoFollowedUsers)
	assert.Empty(t, res.Posts)
	assert.NotNil(t, res.Posts)
	assert.Empty(t, f.posts.byAuthors, "no content query for an empty follow set")
}

func TestFollowingFeedWithQuietFollows(t *testing.T) {
	f := newFixture(t)
	f.follow(t, "d", "quiet", 1)
	f.post(t, "p1", "someone", 1)

	res, err := f.feed.Feed(context.Background(), "d", Following, 0)
	require.NoError(t, err)
	assert.False(t, res.NoFollowedUsers)
	assert.Empty(t, res.Posts)
}

func TestFollowingFeedNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.follow(t, "u", "a", 1)
	f.follow(t, "u", "b", 2)
	f.post(t, "a1", "a", 1)
	f.post(t, "b1", "b", 2)
	f.post(t, "c1", "c", 3)
	f.post(t, "a2", "a", 4)

	res, err := f.feed.Feed(context.Background(), "u", Following, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "b1", "a1"}, ids(res.Posts))
	assert.False(t, res.Truncated)
}

func TestFollowingFeedCapsAuthorSet(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		author := fmt.Sprintf("u%02d", i)
		f.follow(t, "me", author, i)
		f.post(t, "post-"+author, author, i)
	}

	res, err := f.feed.Feed(context.Background(), "me", Following, 0)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	require.Len(t, f.posts.byAuthors, 1)
	assert.Len(t, f.posts.byAuthors[0], DefaultFollowingCap)
	assert.Len(t, res.Posts, DefaultFollowingCap)
	// the two oldest follows fall outside the cap
	assert.NotContains(t, ids(res.Posts), "post-u00")
	assert.NotContains(t, ids(res.Posts), "post-u01")
}

func TestGlobalFeed(t *testing.T) {
	f := newFixture(t)
	f.post(t, "old", "a", 1)
	f.post(t, "new", "b", 2)
	f.post(t, "newest", "c", 3)

	res, err := f.feed.Feed(context.Background(), "anyone", Global, 2)
	require.NoError(t, err)
	assert.Equal(t, Global, res.Mode)
	assert.Equal(t, []string{"newest", "new"}, ids(res.Posts))
	assert.False(t, res.NoFollowedUsers)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Following, m)

	m, err = ParseMode("global")
	require.NoError(t, err)
	assert.Equal(t, Global, m)

	_, err = ParseMode("trending")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUserPostsAndComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.post(t, "p1", "a", 1)
	f.post(t, "p2", "a", 2)
	f.post(t, "x", "b", 3)

	posts, err := f.feed.UserPosts(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(posts))

	for i, id := range []string{"c2", "c1"} {
		c := models.Comment{ID: id, PostID: "p1", AuthorID: "b", Content: id, CreatedAt: base.Add(time.Duration(10-i) * time.Minute)}
		require.NoError(t, f.store.Set(ctx, models.CommentPath("p1", id), c.Fields(), false))
	}
	comments, err := f.feed.Comments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c1", comments[0].ID)

	_, err = f.feed.Post(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWatchComments(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)
	f.post(t, "p1", "a", 1)

	var sizes []int
	for comments, err := range f.feed.WatchComments(ctx, "p1") {
		require.NoError(t, err)
		sizes = append(sizes, len(comments))
		if len(sizes) == 1 {
			c := models.Comment{ID: "c1", PostID: "p1", AuthorID: "b", Content: "hi", CreatedAt: base}
			require.NoError(t, f.store.Set(ctx, models.CommentPath("p1", "c1"), c.Fields(), false))
			continue
		}
		break
	}
	assert.Equal(t, []int{0, 1}, sizes)
}

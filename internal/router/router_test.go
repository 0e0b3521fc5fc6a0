package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/feed"
	"github.com/anonto42/nano-midea/socialgraph/internal/graph"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/session"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

type identities map[string]profile.Identity

func (ids identities) Verify(_ context.Context, token string) (profile.Identity, error) {
	if id, ok := ids[token]; ok {
		return id, nil
	}
	return profile.Identity{}, errors.New("bad token")
}

type server struct {
	e     *echo.Echo
	store store.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := store.NewMemory()
	m := metrics.New()
	logger := zap.NewNop()
	notifRepo := repositories.NewStoreNotificationRepository(s)

	engine, err := graph.NewEngine(graph.Config{
		Store:    s,
		Notifier: notify.NewNotifier(notify.Config{Repository: notifRepo, Metrics: m}),
		Metrics:  m,
	})
	require.NoError(t, err)
	guard, err := profile.NewGuard(profile.Config{Store: s, Metrics: m})
	require.NoError(t, err)
	sessions, err := session.NewManager(session.Config{
		Verifier: identities{
			"tok-alice": {UID: "alice", Email: "alice@example.com", Name: "Alice"},
			"tok-bob":   {UID: "bob", Email: "bob@example.com", Name: "Bob"},
		},
		Profiles: guard,
		Users:    repositories.NewStoreUserRepository(s),
		Secret:   "secret",
	})
	require.NoError(t, err)

	e := echo.New()
	SetupMiddleware(e, logger)
	SetupRoutes(e, Deps{
		Store:    s,
		Engine:   engine,
		Profiles: guard,
		Feed: feed.NewAssembler(feed.Config{
			Posts:    repositories.NewStorePostRepository(s),
			Comments: repositories.NewStoreCommentRepository(s),
			Follows:  repositories.NewStoreFollowRepository(s),
		}),
		Inbox:    notify.NewInbox(notifRepo, nil),
		Sessions: sessions,
		Metrics:  m,
		Logger:   logger,
	})
	return &server{e: e, store: s}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (s *server) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *server) login(t *testing.T, idToken string) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/firebase-login", "", `{"id_token":"`+idToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socialgraph_handle_cascade_writes_total")
	assert.NotContains(t, rec.Body.String(), "socialgraph_toggles_total")

	// labelled series show up once observed
	alice := s.login(t, "tok-alice")
	s.login(t, "tok-bob")
	rec, _ = s.do(t, http.MethodPost, "/api/v1/users/bob/follow", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, rec.Body.String(), `socialgraph_toggles_total{kind="follow",outcome="ok",state="on"} 1`)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(t, http.MethodGet, "/api/v1/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/firebase-login", "", `{"id_token":"forged"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := s.login(t, "tok-alice")
	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/signout", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/v1/profile", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEngagementFlow(t *testing.T) {
	s := newServer(t)
	alice := s.login(t, "tok-alice")
	bob := s.login(t, "tok-bob")

	rec, env := s.do(t, http.MethodGet, "/api/v1/feed?mode=following", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[feed.Result](t, env.Data).NoFollowedUsers)

	rec, env = s.do(t, http.MethodPost, "/api/v1/posts", alice, `{"content":"hello from alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.Post](t, env.Data)

	rec, env = s.do(t, http.MethodPost, "/api/v1/users/alice/follow", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"following": true, "followers": 1.0}, decode[map[string]any](t, env.Data))

	rec, _ = s.do(t, http.MethodPost, "/api/v1/users/bob/follow", bob, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/feed", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[feed.Result](t, env.Data)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, post.ID, res.Posts[0].ID)

	rec, env = s.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/likes", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"liked": true, "likes": 1.0}, decode[map[string]any](t, env.Data))

	rec, env = s.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", bob, `{"content":"nice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	comment := decode[models.Comment](t, env.Data)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", bob, `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/notifications", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[struct {
		Notifications []models.Notification `json:"notifications"`
	}](t, env.Data)
	assert.Len(t, inbox.Notifications, 3)

	rec, env = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"count": 3.0}, decode[map[string]any](t, env.Data))

	rec, _ = s.do(t, http.MethodPut, "/api/v1/notifications/read-all", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID, bob, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/comments/"+comment.ID, alice, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/posts/nope", bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChangeFlow(t *testing.T) {
	s := newServer(t)
	alice := s.login(t, "tok-alice")

	rec, env := s.do(t, http.MethodPut, "/api/v1/profile", alice, `{"display_name":"Alice","handle":"alice2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	pending := decode[struct {
		State   string           `json:"state"`
		Pending *profile.Pending `json:"pending"`
	}](t, env.Data)
	assert.Equal(t, "pending_confirmation", pending.State)
	require.NotNil(t, pending.Pending)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/profile/confirm", alice, `{"pending_id":"`+pending.Pending.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = s.do(t, http.MethodPut, "/api/v1/profile", alice, `{"display_name":"Alice","handle":"alice3"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 15.0, body["remaining_days"])

	rec, _ = s.do(t, http.MethodPut, "/api/v1/profile", alice, `{"display_name":"Alice","handle":"no spaces"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/profile/pending", alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	u, err := repositories.NewStoreUserRepository(s.store).GetUserByUID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Handle)
	require.NotNil(t, u.LastHandleChangeAt)
	assert.WithinDuration(t, time.Now(), *u.LastHandleChangeAt, time.Minute)
}

func TestCommentStream(t *testing.T) {
	s := newServer(t)
	alice := s.login(t, "tok-alice")
	_, env := s.do(t, http.MethodPost, "/api/v1/posts", alice, `{"content":"p"}`)
	post := decode[models.Post](t, env.Data)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+post.ID+"/comments/stream", nil).WithContext(ctx)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+alice)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.e.ServeHTTP(rec, req)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "event: snapshot")
}

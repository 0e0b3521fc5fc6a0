// Package session turns a verified identity token into an explicit session
// that handlers pass to the services acting on the user's behalf.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// DefaultTTL is how long a session token stays valid.
const DefaultTTL = 72 * time.Hour

var (
	// ErrUnauthenticated covers missing, malformed, expired and revoked
	// tokens alike.
	ErrUnauthenticated = errors.New("unauthenticated")
	errMissingSecret   = errors.New("session: signing secret is required")
)

// Verifier checks an identity provider token.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (profile.Identity, error)
}

// Profiles creates the profile of a first-time user.
type Profiles interface {
	EnsureProfile(ctx context.Context, id profile.Identity) (*models.User, error)
}

// Session is one signed-in user. Profile is read fresh on every Resolve.
type Session struct {
	ID        string       `json:"session_id"`
	UID       string       `json:"uid"`
	Email     string       `json:"email,omitempty"`
	Profile   *models.User `json:"profile"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Claims is the signed payload of a session token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Config wires a Manager. Secret signs session tokens and is required.
type Config struct {
	Verifier Verifier
	Profiles Profiles
	Users    repositories.UserRepository
	Secret   string
	TTL      time.Duration
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Manager issues and resolves sessions. Revocation is tracked in process:
// a token is only honoured while its session id is active.
type Manager struct {
	verifier Verifier
	profiles Profiles
	users    repositories.UserRepository
	secret   []byte
	ttl      time.Duration
	logger   *zap.Logger
	clock    func() time.Time

	mu     sync.Mutex
	active map[string]time.Time
}

// NewManager requires a secret and applies DefaultTTL when TTL is unset.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}
	m := &Manager{
		verifier: cfg.Verifier,
		profiles: cfg.Profiles,
		users:    cfg.Users,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		active:   make(map[string]time.Time),
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m, nil
}

// SignIn verifies idToken, makes sure the user has a profile and returns a
// new session with its signed token.
func (m *Manager) SignIn(ctx context.Context, idToken string) (*Session, string, error) {
	id, err := m.verifier.Verify(ctx, idToken)
	if err != nil {
		m.logger.Info("identity token rejected", zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	u, err := m.profiles.EnsureProfile(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("sign in: %w", err)
	}

	now := m.clock()
	s := &Session{
		ID:        uuid.NewString(),
		UID:       id.UID,
		Email:     id.Email,
		Profile:   u,
		ExpiresAt: now.Add(m.ttl),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}).SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign in: %w", err)
	}

	m.mu.Lock()
	m.prune(now)
	m.active[s.ID] = s.ExpiresAt
	m.mu.Unlock()

	m.logger.Info("session started", zap.String("uid", s.UID), zap.String("session", s.ID))
	return s, token, nil
}

// Resolve validates token and loads the session's current profile.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}

	m.mu.Lock()
	_, ok := m.active[claims.ID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrUnauthenticated
	}

	u, err := m.users.GetUserByUID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	s := &Session{ID: claims.ID, UID: claims.Subject, Email: claims.Email, Profile: u}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// SignOut ends a session. Ending an unknown session is not an error.
func (m *Manager) SignOut(sessionID string) {
	m.mu.Lock()
	delete(m.active, sessionID)
	m.mu.Unlock()
}

func (m *Manager) prune(now time.Time) {
	for id, exp := range m.active {
		if !exp.After(now) {
			delete(m.active, id)
		}
	}
}

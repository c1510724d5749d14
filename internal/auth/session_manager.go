package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound indicates the presented token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session exists but its expiry has passed.
	ErrSessionExpired = errors.New("session expired")
)

// Session is a bearer credential issued to a user. Only the SHA-256 hash of
// the token is ever stored; the raw token lives in the client's cookie.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	UserAgent string
	IP        string
}

// ClientMeta records where a session was created from.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// SessionStore persists sessions so they survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	FindByHash(ctx context.Context, tokenHash string) (Session, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
}

// Manager issues and validates session tokens backed by a persistent store.
// Expiry is lazy: expired rows are rejected on lookup, not actively swept.
type Manager struct {
	ttl   time.Duration
	store SessionStore
	now   func() time.Time
}

// NewManager constructs a Manager issuing sessions with the provided TTL.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{ttl: ttl, store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Issue creates a session for the user and returns the raw bearer token along
// with its expiry. The token itself is never persisted.
func (m *Manager) Issue(ctx context.Context, userID string, meta ClientMeta) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id must be provided")
	}

	token, err := randomToken()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := m.now().Add(m.ttl)
	session := Session{
		TokenHash: HashToken(token),
		UserID:    userID,
		ExpiresAt: expiresAt,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	}

	if err := m.store.Save(ctx, session); err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// Authenticate resolves a raw bearer token to its session. A session is valid
// iff its hash exists and has not expired.
func (m *Manager) Authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}

	session, err := m.store.FindByHash(ctx, HashToken(token))
	if err != nil {
		return Session{}, err
	}

	if !m.now().Before(session.ExpiresAt) {
		_ = m.store.DeleteByHash(ctx, session.TokenHash)
		return Session{}, ErrSessionExpired
	}

	return session, nil
}

// Revoke removes the session for the provided raw token, if any.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = m.store.DeleteByHash(ctx, HashToken(token))
}

// WithNowFunc overrides the time source. Useful for tests.
func (m *Manager) WithNowFunc(now func() time.Time) {
	m.now = now
}

// HashToken returns the hex-encoded SHA-256 digest of a raw session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerIssueAndAuthenticate(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Hour, store)

	token, expiresAt, err := manager.Issue(context.Background(), "user-1", ClientMeta{UserAgent: "test", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}
	if !store.Has(HashToken(token)) {
		t.Fatal("expected hashed token in store")
	}
	if store.Has(token) {
		t.Fatal("raw token must never be stored")
	}

	session, err := manager.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != "user-1" {
		t.Fatalf("unexpected user id: %s", session.UserID)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager := NewManager(time.Hour, NewInMemorySessionStore())
	if _, _, err := manager.Issue(context.Background(), "", ClientMeta{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestManagerAuthenticateFailures(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Hour, store)

	if _, err := manager.Authenticate(context.Background(), "unknown"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	token, _, err := manager.Issue(context.Background(), "user-1", ClientMeta{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Move the clock past the expiry.
	manager.WithNowFunc(func() time.Time { return time.Now().Add(2 * time.Hour) })

	if _, err := manager.Authenticate(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}

	// Expired sessions are removed lazily.
	if store.Has(HashToken(token)) {
		t.Fatal("expected expired session to be deleted")
	}
}

func TestManagerRevoke(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Hour, store)

	token, _, err := manager.Issue(context.Background(), "user-1", ClientMeta{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.Revoke(context.Background(), token)

	if _, err := manager.Authenticate(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke, got %v", err)
	}
}

func TestManagerTokensAreUnique(t *testing.T) {
	manager := NewManager(time.Hour, NewInMemorySessionStore())

	first, _, err := manager.Issue(context.Background(), "user-1", ClientMeta{})
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, _, err := manager.Issue(context.Background(), "user-1", ClientMeta{})
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens per session")
	}
}

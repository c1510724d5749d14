package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelvault/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		SessionCookieName: "session_token",
		SessionTTL:        time.Hour,
		UploadTokenSecret: "test-secret",
		UploadTokenTTL:    time.Hour,
	}

	deps := buildDependencies(fakePool{}, cfg, nil)

	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Videos == nil {
		t.Fatal("expected video repository to be configured")
	}
	if deps.Thumbnails == nil {
		t.Fatal("expected thumbnail repository to be configured")
	}
	if deps.UploadTokens == nil {
		t.Fatal("expected upload token issuer to be configured")
	}
	if deps.Uploads == nil {
		t.Fatal("expected upload completer to be configured")
	}
	if deps.Limiter == nil {
		t.Fatal("expected rate limiter to be configured")
	}
	if deps.BrowseCache == nil {
		t.Fatal("expected browse cache to be configured")
	}
	if deps.SessionCookieName != "session_token" {
		t.Fatalf("unexpected cookie name %q", deps.SessionCookieName)
	}

	// OAuth stays nil until both client credentials are present.
	if deps.OAuth != nil {
		t.Fatal("expected oauth provider to be absent without credentials")
	}

	cfg.OAuth = config.OAuthConfig{GoogleClientID: "id", GoogleClientSecret: "secret", RedirectBaseURL: "http://localhost:8080"}
	deps = buildDependencies(fakePool{}, cfg, nil)
	if deps.OAuth == nil {
		t.Fatal("expected oauth provider once credentials are set")
	}
}

package app

import (
	"time"

	"github.com/reelvault/backend/internal/auth"
	"github.com/reelvault/backend/internal/config"
	"github.com/reelvault/backend/internal/db"
	"github.com/reelvault/backend/internal/handlers"
	"github.com/reelvault/backend/internal/middleware"
	"github.com/reelvault/backend/internal/repositories"
	"github.com/reelvault/backend/internal/storage"
	"github.com/reelvault/backend/internal/uploads"
)

const browseCacheTTL = 30 * time.Second

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, cfg config.Config, blobs *storage.S3Storage) handlers.Dependencies {
	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	thumbnails := repositories.NewPostgresThumbnailRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	var oauth handlers.OAuthProvider
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		callback := cfg.OAuth.RedirectBaseURL + "/api/v1/auth/google/callback"
		oauth = auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, callback)
	}

	// A typed nil pointer in the interface would defeat the handlers' nil
	// checks, so only assign when a store is actually present.
	var blobStore handlers.BlobStore
	if blobs != nil {
		blobStore = blobs
	}

	return handlers.Dependencies{
		Users:        users,
		Sessions:     auth.NewManager(cfg.SessionTTL, sessionStore),
		Videos:       videos,
		Thumbnails:   thumbnails,
		Blobs:        blobStore,
		UploadTokens: uploads.NewIssuer(cfg.UploadTokenSecret, cfg.UploadTokenTTL),
		Uploads: &uploads.Completer{
			Videos:     videos,
			Thumbnails: thumbnails,
		},
		OAuth:   oauth,
		Limiter: middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),

		BrowseCache:       handlers.NewBrowseCache(browseCacheTTL),
		SessionCookieName: cfg.SessionCookieName,
	}
}

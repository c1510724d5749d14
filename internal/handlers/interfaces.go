package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reelvault/backend/internal/auth"
	"github.com/reelvault/backend/internal/models"
	"github.com/reelvault/backend/internal/repositories"
	"github.com/reelvault/backend/internal/uploads"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// SessionManager issues and validates session tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string, meta auth.ClientMeta) (string, time.Time, error)
	Authenticate(ctx context.Context, token string) (auth.Session, error)
	Revoke(ctx context.Context, token string)
}

// VideoStore captures persistence for video listing and moderation workflows.
type VideoStore interface {
	FindByID(ctx context.Context, id string) (models.Video, error)
	Approve(ctx context.Context, id string) (models.Video, error)
	Delete(ctx context.Context, id string) error
	ListReady(ctx context.Context, limit int) ([]models.VideoListing, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.VideoListing, error)
	ListHidden(ctx context.Context, params repositories.HiddenListParams) ([]models.VideoListing, error)
}

// ThumbnailStore captures the thumbnail persistence used during deletion.
type ThumbnailStore interface {
	ListByVideo(ctx context.Context, videoID string) ([]models.Thumbnail, error)
	DeleteByVideo(ctx context.Context, videoID string) error
}

// BlobStore issues direct-upload credentials and removes stored objects.
type BlobStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	PublicURL(key string) string
	Delete(ctx context.Context, keys []string) error
}

// UploadTokenIssuer mints and verifies signed upload token payloads.
type UploadTokenIssuer interface {
	IssueVideo(user models.User, clientPayload json.RawMessage) (uploads.TokenDescriptor, error)
	IssueThumbnail(user models.User, clientPayload json.RawMessage) (uploads.TokenDescriptor, error)
	Decode(raw string) (uploads.TokenPayload, error)
}

// UploadCompleter persists records once the storage service reports an upload done.
type UploadCompleter interface {
	CompleteVideo(ctx context.Context, blob uploads.Blob, payload uploads.TokenPayload) (models.Video, error)
	CompleteThumbnail(ctx context.Context, blob uploads.Blob, payload uploads.TokenPayload) (models.Thumbnail, error)
}

// OAuthProvider runs the external authorization-code exchange.
type OAuthProvider interface {
	AuthURL(state, verifier string) string
	GenerateVerifier() string
	Exchange(ctx context.Context, code, verifier string) (*auth.GoogleUser, error)
}

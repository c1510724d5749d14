package repositories

import (
	"context"

	"github.com/reelvault/backend/internal/models"
)

// HiddenListParams drive cursor-based pagination over the moderation queue.
type HiddenListParams struct {
	Limit   int
	AfterID string
	Query   string
}

// VideoRepository exposes data access for video records.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindByPathAndOwner(ctx context.Context, blobPath, ownerID string) (models.Video, error)
	Approve(ctx context.Context, id string) (models.Video, error)
	Delete(ctx context.Context, id string) error
	ListReady(ctx context.Context, limit int) ([]models.VideoListing, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.VideoListing, error)
	ListHidden(ctx context.Context, params HiddenListParams) ([]models.VideoListing, error)
}

// ThumbnailRepository exposes data access for thumbnail records.
type ThumbnailRepository interface {
	Create(ctx context.Context, thumb models.Thumbnail) error
	ClearCover(ctx context.Context, videoID string) error
	ListByVideo(ctx context.Context, videoID string) ([]models.Thumbnail, error)
	DeleteByVideo(ctx context.Context, videoID string) error
}

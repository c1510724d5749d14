package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/reelvault/backend/internal/logging"
	"github.com/reelvault/backend/internal/models"
	"github.com/reelvault/backend/internal/repositories"
)

const maxTextLength = 200

// Blob describes the facts the storage service reports once bytes are
// durably stored. These, plus the signed token payload, are the only inputs
// the completion handlers trust.
type Blob struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// VideoWriter captures the persistence needed by the video completion path.
type VideoWriter interface {
	Create(ctx context.Context, video models.Video) error
	FindByPathAndOwner(ctx context.Context, blobPath, ownerID string) (models.Video, error)
}

// ThumbnailWriter captures the persistence needed by the thumbnail completion path.
type ThumbnailWriter interface {
	Create(ctx context.Context, thumb models.Thumbnail) error
	ClearCover(ctx context.Context, videoID string) error
}

// Completer applies completion callbacks: it validates the signed payload,
// decides visibility, and persists the resulting records.
type Completer struct {
	Videos     VideoWriter
	Thumbnails ThumbnailWriter
	NowFunc    func() time.Time
}

type videoClientPayload struct {
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	DurationSec *float64 `json:"durationSec"`
	Width       *int     `json:"width"`
	Height      *int     `json:"height"`
}

type thumbClientPayload struct {
	VideoBlobPath string   `json:"videoBlobPath"`
	Width         *int     `json:"width"`
	Height        *int     `json:"height"`
	TimecodeSec   *float64 `json:"timecodeSec"`
	IsCover       bool     `json:"isCover"`
}

// CompleteVideo records a newly stored video. The initial visibility is
// decided from the role inside the signed payload, the role held when the
// token was minted, never from a fresh lookup.
func (c *Completer) CompleteVideo(ctx context.Context, blob Blob, payload TokenPayload) (models.Video, error) {
	if payload.UserID == "" {
		return models.Video{}, ErrMissingUserID
	}

	var cp videoClientPayload
	if len(payload.ClientPayload) > 0 {
		if err := json.Unmarshal(payload.ClientPayload, &cp); err != nil {
			return models.Video{}, fmt.Errorf("decode video client payload: %w", err)
		}
	}

	role := payload.Role
	if !role.Valid() {
		role = models.RoleGeneral
	}
	status := models.InitialStatus(role)

	now := c.now()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     payload.UserID,
		Title:       clampText(cp.Title),
		Address:     clampText(cp.Address),
		BlobURL:     blob.URL,
		DownloadURL: downloadURL(blob.URL),
		BlobPath:    blob.Pathname,
		ContentType: blob.ContentType,
		SizeBytes:   blob.Size,
		DurationSec: cp.DurationSec,
		Width:       cp.Width,
		Height:      cp.Height,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := c.Videos.Create(ctx, video); err != nil {
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}

	logging.FromContext(ctx).Info("video upload completed",
		"userId", payload.UserID, "role", string(role), "status", string(status), "path", blob.Pathname)

	return video, nil
}

// CompleteThumbnail records a newly stored thumbnail after verifying the
// uploader owns the referenced video. When the new thumbnail claims the
// cover slot, any existing cover is cleared first; if a concurrent request
// wins the race to the cover uniqueness constraint, the insert is retried
// once as a non-cover so the image is never lost.
func (c *Completer) CompleteThumbnail(ctx context.Context, blob Blob, payload TokenPayload) (models.Thumbnail, error) {
	if payload.UserID == "" {
		return models.Thumbnail{}, ErrMissingUserID
	}

	var cp thumbClientPayload
	if len(payload.ClientPayload) > 0 {
		if err := json.Unmarshal(payload.ClientPayload, &cp); err != nil {
			return models.Thumbnail{}, fmt.Errorf("decode thumbnail client payload: %w", err)
		}
	}

	if strings.TrimSpace(cp.VideoBlobPath) == "" {
		return models.Thumbnail{}, ErrMissingVideoPath
	}

	video, err := c.Videos.FindByPathAndOwner(ctx, cp.VideoBlobPath, payload.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Thumbnail{}, ErrVideoNotOwned
		}
		return models.Thumbnail{}, fmt.Errorf("look up target video: %w", err)
	}

	if cp.IsCover {
		if err := c.Thumbnails.ClearCover(ctx, video.ID); err != nil {
			return models.Thumbnail{}, fmt.Errorf("clear existing cover: %w", err)
		}
	}

	thumb := models.Thumbnail{
		ID:          uuid.NewString(),
		VideoID:     video.ID,
		URL:         blob.URL,
		BlobPath:    blob.Pathname,
		Width:       cp.Width,
		Height:      cp.Height,
		IsCover:     cp.IsCover,
		TimecodeSec: cp.TimecodeSec,
		CreatedAt:   c.now(),
	}

	err = c.Thumbnails.Create(ctx, thumb)
	if err != nil && thumb.IsCover && errors.Is(err, repositories.ErrCoverConflict) {
		// A concurrent upload claimed the cover between our clear and insert.
		// Downgrade instead of losing the image.
		logging.FromContext(ctx).Warn("cover slot taken concurrently, storing as non-cover",
			"videoId", video.ID, "path", blob.Pathname)
		thumb.IsCover = false
		err = c.Thumbnails.Create(ctx, thumb)
	}
	if err != nil {
		return models.Thumbnail{}, fmt.Errorf("insert thumbnail: %w", err)
	}

	return thumb, nil
}

func (c *Completer) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}

func clampText(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxTextLength {
		runes := []rune(s)
		s = string(runes[:maxTextLength])
	}
	return s
}

func downloadURL(blobURL string) string {
	if strings.Contains(blobURL, "?") {
		return blobURL + "&download=1"
	}
	return blobURL + "?download=1"
}

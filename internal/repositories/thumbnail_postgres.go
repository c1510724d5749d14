package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reelvault/backend/internal/db"
	"github.com/reelvault/backend/internal/models"
)

// coverConstraint is the partial unique index allowing at most one cover
// thumbnail per video. Conflicts on it are the race the upload completion
// handler recovers from, so they get their own sentinel.
const coverConstraint = "thumbnails_one_cover_per_video"

// PostgresThumbnailRepository provides PostgreSQL-backed persistence for thumbnails.
type PostgresThumbnailRepository struct {
	pool db.Pool
}

// NewPostgresThumbnailRepository constructs a thumbnail repository backed by PostgreSQL.
func NewPostgresThumbnailRepository(pool db.Pool) *PostgresThumbnailRepository {
	return &PostgresThumbnailRepository{pool: pool}
}

// Create stores a new thumbnail record. A uniqueness violation on the cover
// index maps to ErrCoverConflict; any other uniqueness violation (e.g. a
// duplicate blob path) maps to ErrConflict.
func (r *PostgresThumbnailRepository) Create(ctx context.Context, thumb models.Thumbnail) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO thumbnails (id, video_id, url, blob_path, width, height, is_cover, timecode_sec, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, thumb.ID, thumb.VideoID, thumb.URL, thumb.BlobPath, thumb.Width, thumb.Height,
		thumb.IsCover, thumb.TimecodeSec, thumb.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == coverConstraint || strings.Contains(pgErr.Message, coverConstraint) {
				return ErrCoverConflict
			}
			return ErrConflict
		}
		return fmt.Errorf("insert thumbnail: %w", err)
	}

	return nil
}

// ClearCover unsets the cover flag on every thumbnail of the given video.
func (r *PostgresThumbnailRepository) ClearCover(ctx context.Context, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        UPDATE thumbnails
        SET is_cover = false
        WHERE video_id = $1 AND is_cover = true
    `, videoID)
	if err != nil {
		return fmt.Errorf("clear cover flag: %w", err)
	}

	return nil
}

// ListByVideo returns all thumbnails attached to a video.
func (r *PostgresThumbnailRepository) ListByVideo(ctx context.Context, videoID string) ([]models.Thumbnail, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, video_id, url, blob_path, width, height, is_cover, timecode_sec, created_at
        FROM thumbnails
        WHERE video_id = $1
        ORDER BY created_at ASC
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query thumbnails: %w", err)
	}
	defer rows.Close()

	var thumbs []models.Thumbnail
	for rows.Next() {
		var (
			thumb    models.Thumbnail
			width    sql.NullInt64
			height   sql.NullInt64
			timecode sql.NullFloat64
		)
		if err := rows.Scan(&thumb.ID, &thumb.VideoID, &thumb.URL, &thumb.BlobPath,
			&width, &height, &thumb.IsCover, &timecode, &thumb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thumbnail: %w", err)
		}
		thumb.Width = nullInt(width)
		thumb.Height = nullInt(height)
		thumb.TimecodeSec = nullFloat(timecode)
		thumbs = append(thumbs, thumb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thumbnails: %w", err)
	}

	return thumbs, nil
}

// DeleteByVideo removes every thumbnail attached to a video.
func (r *PostgresThumbnailRepository) DeleteByVideo(ctx context.Context, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM thumbnails WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("delete thumbnails: %w", err)
	}

	return nil
}

var _ ThumbnailRepository = (*PostgresThumbnailRepository)(nil)

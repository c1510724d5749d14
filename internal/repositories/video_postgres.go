package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reelvault/backend/internal/db"
	"github.com/reelvault/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, owner_id, title, address, blob_url, download_url, blob_path,
        content_type, size_bytes, duration_sec, width, height, status, created_at, updated_at`

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (`+videoColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `, video.ID, video.OwnerID, video.Title, video.Address, video.BlobURL, video.DownloadURL,
		video.BlobPath, video.ContentType, video.SizeBytes, video.DurationSec, video.Width,
		video.Height, string(video.Status), video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a video by id.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	return scanVideo(row)
}

// FindByPathAndOwner fetches a video by its unique storage path, constrained
// to the provided owner. A video that exists but belongs to someone else is
// indistinguishable from one that does not exist.
func (r *PostgresVideoRepository) FindByPathAndOwner(ctx context.Context, blobPath, ownerID string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE blob_path = $1 AND owner_id = $2
    `, blobPath, ownerID)
	return scanVideo(row)
}

// Approve transitions a video from hidden to ready. The update is guarded on
// status = 'hidden' so a concurrent double-approval is a no-op; when the
// guard misses, a follow-up existence check distinguishes a wrong-state
// record (ErrConflict) from a missing one (ErrNotFound).
func (r *PostgresVideoRepository) Approve(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET status = $2, updated_at = $3
        WHERE id = $1 AND status = $4
        RETURNING `+videoColumns+`
    `, id, string(models.StatusReady), time.Now().UTC(), string(models.StatusHidden))

	video, err := scanVideo(row)
	if err == nil {
		return video, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Video{}, err
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return models.Video{}, fmt.Errorf("check video existence: %w", err)
	}
	if exists {
		return models.Video{}, ErrConflict
	}
	return models.Video{}, ErrNotFound
}

// Delete removes a video record.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// thumbJoin picks each video's representative thumbnail: the cover when one
// exists, otherwise the oldest.
const thumbJoin = `
        LEFT JOIN LATERAL (
            SELECT url, width, height, timecode_sec
            FROM thumbnails
            WHERE video_id = v.id
            ORDER BY is_cover DESC, created_at ASC
            LIMIT 1
        ) t ON true`

// ListReady returns the public browse feed: ready videos, newest first, with
// their representative thumbnail and no owner information.
func (r *PostgresVideoRepository) ListReady(ctx context.Context, limit int) ([]models.VideoListing, error) {
	return r.list(ctx, `
        SELECT `+listingVideoColumns+`,
               t.url, t.width, t.height, t.timecode_sec
        FROM videos v`+thumbJoin+`
        WHERE v.status = $1
        ORDER BY v.created_at DESC
        LIMIT $2
    `, false, string(models.StatusReady), clampLimit(limit, 100))
}

// ListByOwner returns the uploader's own videos, newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.VideoListing, error) {
	return r.list(ctx, `
        SELECT `+listingVideoColumns+`,
               t.url, t.width, t.height, t.timecode_sec
        FROM videos v`+thumbJoin+`
        WHERE v.owner_id = $1
        ORDER BY v.created_at DESC
        LIMIT $2
    `, false, ownerID, clampLimit(limit, 60))
}

// ListHidden returns a page of the moderation queue, id-descending with an
// id cursor and an optional case-insensitive title filter. LIKE
// metacharacters in the filter are escaped so it always matches literally.
func (r *PostgresVideoRepository) ListHidden(ctx context.Context, params HiddenListParams) ([]models.VideoListing, error) {
	query := `
        SELECT ` + listingVideoColumns + `,
               t.url, t.width, t.height, t.timecode_sec,
               u.id, u.name, u.email, u.role
        FROM videos v
        JOIN users u ON u.id = v.owner_id` + thumbJoin + `
        WHERE v.status = $1`
	args := []any{string(models.StatusHidden)}

	if params.AfterID != "" {
		args = append(args, params.AfterID)
		query += fmt.Sprintf(" AND v.id < $%d", len(args))
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		query += fmt.Sprintf(` AND v.title ILIKE $%d ESCAPE '\'`, len(args))
	}

	args = append(args, clampLimit(params.Limit, 100))
	query += fmt.Sprintf(" ORDER BY v.id DESC LIMIT $%d", len(args))

	return r.list(ctx, query, true, args...)
}

const listingVideoColumns = `v.id, v.owner_id, v.title, v.address, v.blob_url, v.download_url,
               v.blob_path, v.content_type, v.size_bytes, v.duration_sec, v.width, v.height,
               v.status, v.created_at, v.updated_at`

func (r *PostgresVideoRepository) list(ctx context.Context, query string, withOwner bool, args ...any) ([]models.VideoListing, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query video listings: %w", err)
	}
	defer rows.Close()

	var listings []models.VideoListing
	for rows.Next() {
		listing, err := scanListing(rows, withOwner)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video listings: %w", err)
	}

	return listings, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video    models.Video
		status   string
		duration sql.NullFloat64
		width    sql.NullInt64
		height   sql.NullInt64
	)
	err := row.Scan(&video.ID, &video.OwnerID, &video.Title, &video.Address, &video.BlobURL,
		&video.DownloadURL, &video.BlobPath, &video.ContentType, &video.SizeBytes,
		&duration, &width, &height, &status, &video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}

	video.Status = models.VideoStatus(status)
	video.DurationSec = nullFloat(duration)
	video.Width = nullInt(width)
	video.Height = nullInt(height)
	return video, nil
}

func scanListing(rows pgx.Rows, withOwner bool) (models.VideoListing, error) {
	var (
		listing  models.VideoListing
		status   string
		duration sql.NullFloat64
		width    sql.NullInt64
		height   sql.NullInt64

		thumbURL      sql.NullString
		thumbWidth    sql.NullInt64
		thumbHeight   sql.NullInt64
		thumbTimecode sql.NullFloat64

		ownerID    sql.NullString
		ownerName  sql.NullString
		ownerEmail sql.NullString
		ownerRole  sql.NullString
	)

	dest := []any{
		&listing.Video.ID, &listing.Video.OwnerID, &listing.Video.Title, &listing.Video.Address,
		&listing.Video.BlobURL, &listing.Video.DownloadURL, &listing.Video.BlobPath,
		&listing.Video.ContentType, &listing.Video.SizeBytes, &duration, &width, &height,
		&status, &listing.Video.CreatedAt, &listing.Video.UpdatedAt,
		&thumbURL, &thumbWidth, &thumbHeight, &thumbTimecode,
	}
	if withOwner {
		dest = append(dest, &ownerID, &ownerName, &ownerEmail, &ownerRole)
	}

	if err := rows.Scan(dest...); err != nil {
		return models.VideoListing{}, fmt.Errorf("scan video listing: %w", err)
	}

	listing.Video.Status = models.VideoStatus(status)
	listing.Video.DurationSec = nullFloat(duration)
	listing.Video.Width = nullInt(width)
	listing.Video.Height = nullInt(height)

	if thumbURL.Valid {
		listing.Thumbnail = &models.ThumbSummary{
			URL:         thumbURL.String,
			Width:       nullInt(thumbWidth),
			Height:      nullInt(thumbHeight),
			TimecodeSec: nullFloat(thumbTimecode),
		}
	}
	if withOwner && ownerID.Valid {
		listing.Owner = &models.OwnerSummary{
			ID:    ownerID.String,
			Name:  ownerName.String,
			Email: ownerEmail.String,
			Role:  models.Role(ownerRole.String),
		}
	}

	return listing, nil
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)

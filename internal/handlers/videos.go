package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/backend/internal/logging"
	"github.com/reelvault/backend/internal/models"
	"github.com/reelvault/backend/internal/repositories"
)

const (
	browseLimit        = 100
	selfLimit          = 60
	hiddenDefaultLimit = 30
	hiddenMaxLimit     = 100
)

// VideoHandler implements the listing, moderation and deletion endpoints.
type VideoHandler struct {
	Videos     VideoStore
	Thumbnails ThumbnailStore
	Blobs      BlobStore
	Guard      Guard
	Cache      *BrowseCache
}

type thumbPayload struct {
	URL         string   `json:"url"`
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	TimecodeSec *float64 `json:"timecodeSec,omitempty"`
}

type ownerPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type videoPayload struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Address     string         `json:"address,omitempty"`
	URL         string         `json:"url"`
	DownloadURL string         `json:"downloadUrl"`
	ContentType string         `json:"contentType"`
	SizeBytes   int64          `json:"sizeBytes"`
	DurationSec *float64       `json:"durationSec,omitempty"`
	Width       *int           `json:"width,omitempty"`
	Height      *int           `json:"height,omitempty"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	Thumbnail   *thumbPayload  `json:"thumbnail,omitempty"`
	Owner       *ownerPayload  `json:"owner,omitempty"`
}

type hiddenListResponse struct {
	Items      []videoPayload `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

// Browse handles GET /api/v1/videos/browse requests. The listing is public,
// contains only ready videos and never exposes owner details.
func (h VideoHandler) Browse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	body, etag, ok := h.Cache.Get()
	if !ok {
		listings, err := h.Videos.ListReady(ctx, browseLimit)
		if err != nil {
			logging.FromContext(ctx).Error("list ready videos", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load videos"})
			return
		}

		items := make([]videoPayload, 0, len(listings))
		for _, listing := range listings {
			// Owner is stripped even if the query returned it.
			listing.Owner = nil
			items = append(items, listingPayload(listing))
		}

		body, err = json.Marshal(map[string]any{"items": items})
		if err != nil {
			logging.FromContext(ctx).Error("encode browse listing", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load videos"})
			return
		}
		etag = h.Cache.Set(body)
	}

	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Mine handles GET /api/v1/videos/self requests and lists the caller's own
// uploads regardless of status.
func (h VideoHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.Guard.require(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	listings, err := h.Videos.ListByOwner(ctx, user.ID, selfLimit)
	if err != nil {
		logging.FromContext(ctx).Error("list own videos", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load videos"})
		return
	}

	items := make([]videoPayload, 0, len(listings))
	for _, listing := range listings {
		listing.Owner = nil
		items = append(items, listingPayload(listing))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"items": items})
}

// Hidden handles GET /api/v1/videos/hidden requests: the staff moderation
// queue with cursor pagination and an optional title filter.
func (h VideoHandler) Hidden(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	_, ok := h.Guard.require(w, r, models.RoleAdmin, models.RoleModerator)
	if !ok {
		return
	}

	ctx := r.Context()
	query := r.URL.Query()

	limit := hiddenDefaultLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
		if limit > hiddenMaxLimit {
			limit = hiddenMaxLimit
		}
	}

	params := repositories.HiddenListParams{
		Limit:   limit,
		AfterID: query.Get("afterId"),
		Query:   query.Get("q"),
	}

	listings, err := h.Videos.ListHidden(ctx, params)
	if err != nil {
		logging.FromContext(ctx).Error("list hidden videos", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load videos"})
		return
	}

	items := make([]videoPayload, 0, len(listings))
	for _, listing := range listings {
		items = append(items, listingPayload(listing))
	}

	resp := hiddenListResponse{Items: items}
	if len(items) == limit && len(items) > 0 {
		cursor := items[len(items)-1].ID
		resp.NextCursor = &cursor
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Approve handles POST /api/v1/videos/{id}/approve requests. Approval only
// moves a video out of the hidden state; approving anything else is a 409 so
// double-clicks and stale moderation tabs surface instead of silently
// rewriting state.
func (h VideoHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	_, ok := h.Guard.require(w, r, models.RoleAdmin, models.RoleModerator)
	if !ok {
		return
	}

	ctx := r.Context()

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Invalid id"})
		return
	}

	video, err := h.Videos.Approve(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "Not in 'hidden' state"})
		case errors.Is(err, repositories.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
		default:
			logging.FromContext(ctx).Error("approve video", "error", err, "videoId", id)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to approve video"})
		}
		return
	}

	h.Cache.Invalidate()
	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"ok":    true,
		"video": listingPayload(models.VideoListing{Video: video}),
	})
}

// Delete handles DELETE /api/v1/videos/{id} requests. The owner or staff may
// delete. Blob removal is attempted before the rows go away so a storage
// outage leaves the records in place for a retry.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.Guard.require(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Invalid id"})
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("load video for delete", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	if video.OwnerID != user.ID && !user.Role.IsStaff() {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
		return
	}

	thumbs, err := h.Thumbnails.ListByVideo(ctx, id)
	if err != nil {
		logger.Error("list thumbnails for delete", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	keys := make([]string, 0, len(thumbs)+1)
	if video.BlobPath != "" {
		keys = append(keys, video.BlobPath)
	}
	for _, thumb := range thumbs {
		if thumb.BlobPath != "" {
			keys = append(keys, thumb.BlobPath)
		}
	}

	// Best effort: the rows are removed even if the store keeps the bytes.
	if len(keys) > 0 && h.Blobs != nil {
		if err := h.Blobs.Delete(ctx, keys); err != nil {
			logger.Warn("delete blobs", "error", err, "videoId", id, "keys", len(keys))
		}
	}

	if err := h.Thumbnails.DeleteByVideo(ctx, id); err != nil {
		logger.Error("delete thumbnails", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	if err := h.Videos.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("delete video", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	h.Cache.Invalidate()
	respondJSON(ctx, w, http.StatusOK, map[string]bool{"ok": true})
}

func listingPayload(listing models.VideoListing) videoPayload {
	video := listing.Video
	payload := videoPayload{
		ID:          video.ID,
		Title:       video.Title,
		Address:     video.Address,
		URL:         video.BlobURL,
		DownloadURL: video.DownloadURL,
		ContentType: video.ContentType,
		SizeBytes:   video.SizeBytes,
		DurationSec: video.DurationSec,
		Width:       video.Width,
		Height:      video.Height,
		Status:      string(video.Status),
		CreatedAt:   video.CreatedAt,
	}

	if listing.Thumbnail != nil {
		payload.Thumbnail = &thumbPayload{
			URL:         listing.Thumbnail.URL,
			Width:       listing.Thumbnail.Width,
			Height:      listing.Thumbnail.Height,
			TimecodeSec: listing.Thumbnail.TimecodeSec,
		}
	}

	if listing.Owner != nil {
		payload.Owner = &ownerPayload{
			ID:    listing.Owner.ID,
			Name:  listing.Owner.Name,
			Email: listing.Owner.Email,
			Role:  string(listing.Owner.Role),
		}
	}

	return payload
}

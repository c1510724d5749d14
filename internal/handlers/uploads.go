package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/reelvault/backend/internal/logging"
	"github.com/reelvault/backend/internal/repositories"
	"github.com/reelvault/backend/internal/storage"
	"github.com/reelvault/backend/internal/uploads"
)

// Event types of the two-phase direct-upload protocol. Phase one is the
// browser asking for an upload credential and carries the session cookie.
// Phase two is the storage side reporting a finished upload and carries no
// session, only the signed token payload issued in phase one.
const (
	eventGenerateToken   = "upload.generate-token"
	eventUploadCompleted = "upload.completed"
)

// UploadHandler implements the video and thumbnail upload endpoints.
type UploadHandler struct {
	Issuer    UploadTokenIssuer
	Completer UploadCompleter
	Blobs     BlobStore
	Guard     Guard
	Limiter   RateLimiter
}

type uploadEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type generateTokenRequest struct {
	Pathname      string          `json:"pathname"`
	ContentType   string          `json:"contentType"`
	ClientPayload json.RawMessage `json:"clientPayload"`
}

type generateTokenResponse struct {
	uploads.TokenDescriptor
	Pathname  string `json:"pathname"`
	UploadURL string `json:"uploadUrl"`
	URL       string `json:"url"`
}

type completedRequest struct {
	Blob         uploads.Blob    `json:"blob"`
	TokenPayload json.RawMessage `json:"tokenPayload"`
}

// HandleVideo handles POST /api/v1/uploads/videos.
func (h UploadHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, true)
}

// HandleThumbnail handles POST /api/v1/uploads/thumbnails.
func (h UploadHandler) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, false)
}

func (h UploadHandler) handle(w http.ResponseWriter, r *http.Request, video bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var event uploadEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	switch event.Type {
	case eventGenerateToken:
		h.generateToken(w, r, event.Payload, video)
	case eventUploadCompleted:
		h.uploadCompleted(w, r, event.Payload, video)
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unknown event type"})
	}
}

// generateToken authenticates the caller and mints the scoped upload
// credential. This is the only point in the protocol where the session is
// consulted; everything the completion step needs is sealed into the token.
func (h UploadHandler) generateToken(w http.ResponseWriter, r *http.Request, payload json.RawMessage, video bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := h.Guard.CurrentUser(r)
	if err != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if !allowRequest(h.Limiter, r, "upload-token") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads, slow down"})
		return
	}

	var req generateTokenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid token request"})
		return
	}

	req.Pathname = strings.TrimLeft(strings.TrimSpace(req.Pathname), "/")
	if req.Pathname == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "pathname is required"})
		return
	}

	var descriptor uploads.TokenDescriptor
	if video {
		descriptor, err = h.Issuer.IssueVideo(user, req.ClientPayload)
	} else {
		descriptor, err = h.Issuer.IssueThumbnail(user, req.ClientPayload)
	}
	if err != nil {
		logger.Error("issue upload token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to issue upload token"})
		return
	}

	if !contentTypeAllowed(descriptor.AllowedContentTypes, req.ContentType) {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "content type not allowed"})
		return
	}

	key := req.Pathname
	if descriptor.AddRandomSuffix {
		key = storage.RandomSuffixKey(key)
	}

	uploadURL, err := h.Blobs.PresignUpload(ctx, key, req.ContentType)
	if err != nil {
		logger.Error("presign upload", "error", err, "key", key)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to prepare upload"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, generateTokenResponse{
		TokenDescriptor: descriptor,
		Pathname:        key,
		UploadURL:       uploadURL,
		URL:             h.Blobs.PublicURL(key),
	})
}

// uploadCompleted applies the completion callback. No session is available
// here; trust comes solely from the signed token payload.
func (h UploadHandler) uploadCompleted(w http.ResponseWriter, r *http.Request, payload json.RawMessage, video bool) {
	ctx, span := logging.StartSpan(r.Context(), "upload.completed")
	defer span.End()

	var req completedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid completion payload"})
		return
	}

	raw, err := rawTokenPayload(req.TokenPayload)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid token payload"})
		return
	}

	token, err := h.Issuer.Decode(raw)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid token payload"})
		return
	}

	if video {
		_, err = h.Completer.CompleteVideo(ctx, req.Blob, token)
	} else {
		_, err = h.Completer.CompleteThumbnail(ctx, req.Blob, token)
	}
	if err != nil {
		respondUploadError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"ok": true})
}

// respondUploadError maps completion failures to HTTP statuses. Validation
// and authorization failures inside the token flow are all client errors;
// only storage trouble surfaces as a 500.
func respondUploadError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, uploads.ErrMissingUserID):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Missing userId"})
	case errors.Is(err, uploads.ErrMissingVideoPath):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Missing videoBlobPath"})
	case errors.Is(err, uploads.ErrVideoNotOwned):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Video not found or not owned by user"})
	case errors.Is(err, uploads.ErrTokenInvalid):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid token payload"})
	case errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "duplicate upload"})
	default:
		logging.FromContext(ctx).Error("upload completion failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to record upload"})
	}
}

func contentTypeAllowed(allowed []string, contentType string) bool {
	for _, ct := range allowed {
		if strings.EqualFold(ct, contentType) {
			return true
		}
	}
	return false
}

// rawTokenPayload accepts the token either as a JSON string (the normal
// case) or passes through a bare token that was not JSON-quoted.
func rawTokenPayload(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", errors.New("missing token payload")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return "", errors.New("token payload must be a string")
}

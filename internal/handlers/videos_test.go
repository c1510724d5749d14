package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/backend/internal/auth"
	"github.com/reelvault/backend/internal/models"
	"github.com/reelvault/backend/internal/repositories"
)

type videoStoreStub struct {
	byID       map[string]models.Video
	ready      []models.VideoListing
	owned      []models.VideoListing
	hidden     []models.VideoListing
	hiddenArgs repositories.HiddenListParams
	approveErr error
	deleted    []string
	readyCalls int
}

func (s *videoStoreStub) FindByID(ctx context.Context, id string) (models.Video, error) {
	_ = ctx
	video, ok := s.byID[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *videoStoreStub) Approve(ctx context.Context, id string) (models.Video, error) {
	_ = ctx
	if s.approveErr != nil {
		return models.Video{}, s.approveErr
	}
	video, ok := s.byID[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.Status = models.StatusReady
	s.byID[id] = video
	return video, nil
}

func (s *videoStoreStub) Delete(ctx context.Context, id string) error {
	_ = ctx
	if _, ok := s.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *videoStoreStub) ListReady(ctx context.Context, limit int) ([]models.VideoListing, error) {
	_ = ctx
	_ = limit
	s.readyCalls++
	return s.ready, nil
}

func (s *videoStoreStub) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.VideoListing, error) {
	_ = ctx
	_ = ownerID
	_ = limit
	return s.owned, nil
}

func (s *videoStoreStub) ListHidden(ctx context.Context, params repositories.HiddenListParams) ([]models.VideoListing, error) {
	_ = ctx
	s.hiddenArgs = params
	return s.hidden, nil
}

type thumbnailStoreStub struct {
	thumbs  map[string][]models.Thumbnail
	deleted []string
}

func (s *thumbnailStoreStub) ListByVideo(ctx context.Context, videoID string) ([]models.Thumbnail, error) {
	_ = ctx
	return s.thumbs[videoID], nil
}

func (s *thumbnailStoreStub) DeleteByVideo(ctx context.Context, videoID string) error {
	_ = ctx
	s.deleted = append(s.deleted, videoID)
	return nil
}

type blobStoreStub struct {
	deleted   [][]string
	deleteErr error
	presigned []string
}

func (s *blobStoreStub) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	_ = ctx
	_ = contentType
	s.presigned = append(s.presigned, key)
	return "https://bucket.example.com/" + key + "?signature=abc", nil
}

func (s *blobStoreStub) PublicURL(key string) string {
	return "https://media.example.com/" + key
}

func (s *blobStoreStub) Delete(ctx context.Context, keys []string) error {
	_ = ctx
	s.deleted = append(s.deleted, keys)
	return s.deleteErr
}

func loggedInGuard(t *testing.T, user models.User) (Guard, *http.Cookie) {
	t.Helper()
	users := newUserStoreStub(user)
	sessions := newTestSessions()

	token, _, err := sessions.Issue(context.Background(), user.ID, auth.ClientMeta{})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	guard := Guard{Sessions: sessions, Users: users, CookieName: testCookie}
	return guard, &http.Cookie{Name: testCookie, Value: token}
}

func readyListing(id string) models.VideoListing {
	return models.VideoListing{
		Video: models.Video{
			ID:          id,
			OwnerID:     "owner-1",
			Title:       "clip " + id,
			BlobURL:     "https://media.example.com/videos/" + id + ".mp4",
			DownloadURL: "https://media.example.com/videos/" + id + ".mp4?download=1",
			BlobPath:    "videos/" + id + ".mp4",
			ContentType: "video/mp4",
			Status:      models.StatusReady,
			CreatedAt:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestBrowseStripsOwnerAndCaches(t *testing.T) {
	listing := readyListing("v1")
	listing.Owner = &models.OwnerSummary{ID: "owner-1", Name: "Alice", Email: "a@example.com", Role: models.RoleGeneral}
	store := &videoStoreStub{ready: []models.VideoListing{listing}}
	handler := VideoHandler{Videos: store, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/browse", nil)
	rec := httptest.NewRecorder()
	handler.Browse(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Items []videoPayload `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(resp.Items))
	}
	if resp.Items[0].Owner != nil {
		t.Fatal("public browse must never expose the owner")
	}

	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag header")
	}

	// Second request is served from the cache.
	rec2 := httptest.NewRecorder()
	handler.Browse(rec2, httptest.NewRequest(http.MethodGet, "/api/v1/videos/browse", nil))
	if store.readyCalls != 1 {
		t.Fatalf("expected a single database read, got %d", store.readyCalls)
	}

	// A matching If-None-Match gets a 304 with no body.
	req3 := httptest.NewRequest(http.MethodGet, "/api/v1/videos/browse", nil)
	req3.Header.Set("If-None-Match", etag)
	rec3 := httptest.NewRecorder()
	handler.Browse(rec3, req3)
	if rec3.Code != http.StatusNotModified {
		t.Fatalf("unexpected status: got %d want %d", rec3.Code, http.StatusNotModified)
	}
	if rec3.Body.Len() != 0 {
		t.Fatal("304 response must have no body")
	}
}

func TestMineRequiresSession(t *testing.T) {
	handler := VideoHandler{
		Videos: &videoStoreStub{},
		Guard:  Guard{Sessions: newTestSessions(), Users: newUserStoreStub(), CookieName: testCookie},
		Cache:  NewBrowseCache(time.Minute),
	}

	rec := httptest.NewRecorder()
	handler.Mine(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/self", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHiddenForbiddenForGeneral(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "user-1", Email: "u@example.com", Role: models.RoleGeneral})
	handler := VideoHandler{Videos: &videoStoreStub{}, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/hidden", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Hidden(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHiddenPagination(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "mod-1", Email: "m@example.com", Role: models.RoleModerator})

	hidden := make([]models.VideoListing, 0, 2)
	for _, id := range []string{"b", "a"} {
		listing := readyListing(id)
		listing.Video.Status = models.StatusHidden
		listing.Owner = &models.OwnerSummary{ID: "owner-1", Name: "Alice", Email: "a@example.com", Role: models.RoleGeneral}
		hidden = append(hidden, listing)
	}
	store := &videoStoreStub{hidden: hidden}
	handler := VideoHandler{Videos: store, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/hidden?limit=2&afterId=c&q=clip", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Hidden(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}

	if store.hiddenArgs.Limit != 2 || store.hiddenArgs.AfterID != "c" || store.hiddenArgs.Query != "clip" {
		t.Fatalf("unexpected list params: %+v", store.hiddenArgs)
	}

	var resp hiddenListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	if resp.Items[0].Owner == nil {
		t.Fatal("moderation listing must include the owner")
	}
	if resp.NextCursor == nil || *resp.NextCursor != "a" {
		t.Fatalf("expected next cursor 'a', got %v", resp.NextCursor)
	}
}

func TestHiddenLastPageHasNoCursor(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "mod-1", Email: "m@example.com", Role: models.RoleModerator})

	listing := readyListing("only")
	listing.Video.Status = models.StatusHidden
	store := &videoStoreStub{hidden: []models.VideoListing{listing}}
	handler := VideoHandler{Videos: store, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/hidden?limit=5", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Hidden(rec, req)

	var resp hiddenListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NextCursor != nil {
		t.Fatalf("short page must end pagination, got cursor %v", *resp.NextCursor)
	}
}

func TestApproveHappyPath(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "mod-1", Email: "m@example.com", Role: models.RoleModerator})

	id := uuid.NewString()
	store := &videoStoreStub{byID: map[string]models.Video{
		id: {ID: id, OwnerID: "owner-1", Status: models.StatusHidden},
	}}
	cache := NewBrowseCache(time.Minute)
	cache.Set([]byte(`{"items":[]}`))
	handler := VideoHandler{Videos: store, Guard: guard, Cache: cache}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/"+id+"/approve", nil)
	req.SetPathValue("id", id)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Approve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if store.byID[id].Status != models.StatusReady {
		t.Fatalf("expected video to be ready, got %q", store.byID[id].Status)
	}
	if _, _, ok := cache.Get(); ok {
		t.Fatal("approval must invalidate the browse cache")
	}
}

func TestApproveInvalidID(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "mod-1", Email: "m@example.com", Role: models.RoleModerator})
	handler := VideoHandler{Videos: &videoStoreStub{}, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/not-a-uuid/approve", nil)
	req.SetPathValue("id", "not-a-uuid")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Approve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	if got := decodeError(t, rec); got != "Invalid id" {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestApproveWrongStateConflicts(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "mod-1", Email: "m@example.com", Role: models.RoleModerator})

	id := uuid.NewString()
	store := &videoStoreStub{approveErr: repositories.ErrConflict}
	handler := VideoHandler{Videos: store, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/"+id+"/approve", nil)
	req.SetPathValue("id", id)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Approve(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusConflict)
	}
	if got := decodeError(t, rec); got != "Not in 'hidden' state" {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestApproveMissingVideo(t *testing.T) {
	guard, cookie := loggedInGuard(t, models.User{ID: "mod-1", Email: "m@example.com", Role: models.RoleModerator})

	id := uuid.NewString()
	store := &videoStoreStub{byID: map[string]models.Video{}}
	handler := VideoHandler{Videos: store, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/"+id+"/approve", nil)
	req.SetPathValue("id", id)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Approve(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteByOwnerRemovesBlobsAndRows(t *testing.T) {
	owner := models.User{ID: "owner-1", Email: "o@example.com", Role: models.RoleGeneral}
	guard, cookie := loggedInGuard(t, owner)

	id := uuid.NewString()
	store := &videoStoreStub{byID: map[string]models.Video{
		id: {ID: id, OwnerID: owner.ID, BlobPath: "videos/clip.mp4"},
	}}
	thumbs := &thumbnailStoreStub{thumbs: map[string][]models.Thumbnail{
		id: {{ID: "t1", VideoID: id, BlobPath: "thumbnails/clip-cover.jpg"}},
	}}
	blobs := &blobStoreStub{}
	handler := VideoHandler{Videos: store, Thumbnails: thumbs, Blobs: blobs, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/"+id, nil)
	req.SetPathValue("id", id)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if len(blobs.deleted) != 1 || len(blobs.deleted[0]) != 2 {
		t.Fatalf("expected one batch delete of 2 keys, got %+v", blobs.deleted)
	}
	if len(thumbs.deleted) != 1 || thumbs.deleted[0] != id {
		t.Fatalf("expected thumbnail rows removed, got %v", thumbs.deleted)
	}
	if len(store.deleted) != 1 || store.deleted[0] != id {
		t.Fatalf("expected video row removed, got %v", store.deleted)
	}
}

func TestDeleteForbiddenForStranger(t *testing.T) {
	stranger := models.User{ID: "stranger", Email: "s@example.com", Role: models.RoleGeneral}
	guard, cookie := loggedInGuard(t, stranger)

	id := uuid.NewString()
	store := &videoStoreStub{byID: map[string]models.Video{
		id: {ID: id, OwnerID: "owner-1", BlobPath: "videos/clip.mp4"},
	}}
	handler := VideoHandler{Videos: store, Thumbnails: &thumbnailStoreStub{}, Blobs: &blobStoreStub{}, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/"+id, nil)
	req.SetPathValue("id", id)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusForbidden)
	}
	if len(store.deleted) != 0 {
		t.Fatal("stranger must not delete the video")
	}
}

func TestDeleteByStaffSucceedsDespiteBlobFailure(t *testing.T) {
	admin := models.User{ID: "admin-1", Email: "a@example.com", Role: models.RoleAdmin}
	guard, cookie := loggedInGuard(t, admin)

	id := uuid.NewString()
	store := &videoStoreStub{byID: map[string]models.Video{
		id: {ID: id, OwnerID: "owner-1", BlobPath: "videos/clip.mp4"},
	}}
	blobs := &blobStoreStub{deleteErr: context.DeadlineExceeded}
	handler := VideoHandler{Videos: store, Thumbnails: &thumbnailStoreStub{}, Blobs: blobs, Guard: guard, Cache: NewBrowseCache(time.Minute)}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/"+id, nil)
	req.SetPathValue("id", id)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("blob failures are best effort, got status %d", rec.Code)
	}
	if len(store.deleted) != 1 {
		t.Fatal("expected video row removed despite blob failure")
	}
}

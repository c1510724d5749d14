package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reelvault/backend/internal/models"
	"github.com/reelvault/backend/internal/repositories"
)

type videoWriterStub struct {
	created   []models.Video
	byPath    map[string]models.Video
	createErr error
}

func (s *videoWriterStub) Create(ctx context.Context, video models.Video) error {
	_ = ctx
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, video)
	return nil
}

func (s *videoWriterStub) FindByPathAndOwner(ctx context.Context, blobPath, ownerID string) (models.Video, error) {
	_ = ctx
	video, ok := s.byPath[blobPath]
	if !ok || video.OwnerID != ownerID {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

type thumbWriterStub struct {
	created      []models.Thumbnail
	cleared      []string
	createErrs   []error
	clearCoverErr error
}

func (s *thumbWriterStub) Create(ctx context.Context, thumb models.Thumbnail) error {
	_ = ctx
	s.created = append(s.created, thumb)
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		return err
	}
	return nil
}

func (s *thumbWriterStub) ClearCover(ctx context.Context, videoID string) error {
	_ = ctx
	s.cleared = append(s.cleared, videoID)
	return s.clearCoverErr
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func videoBlob() Blob {
	return Blob{
		URL:         "https://media.example.com/videos/clip-abc123.mp4",
		Pathname:    "videos/clip-abc123.mp4",
		ContentType: "video/mp4",
		Size:        2048,
	}
}

func TestCompleteVideoRequiresUserID(t *testing.T) {
	completer := &Completer{Videos: &videoWriterStub{}, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

	_, err := completer.CompleteVideo(context.Background(), videoBlob(), TokenPayload{})
	if !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID, got %v", err)
	}
}

func TestCompleteVideoGeneralUploadStartsHidden(t *testing.T) {
	store := &videoWriterStub{}
	completer := &Completer{Videos: store, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

	payload := TokenPayload{
		UserID:        "user-1",
		Role:          models.RoleGeneral,
		ClientPayload: json.RawMessage(`{"title":"  My clip  ","address":"Pier 14","durationSec":12.5}`),
	}

	video, err := completer.CompleteVideo(context.Background(), videoBlob(), payload)
	if err != nil {
		t.Fatalf("complete video: %v", err)
	}

	if video.Status != models.StatusHidden {
		t.Fatalf("general upload must start hidden, got %q", video.Status)
	}
	if video.Title != "My clip" {
		t.Fatalf("title not trimmed: %q", video.Title)
	}
	if video.DownloadURL != "https://media.example.com/videos/clip-abc123.mp4?download=1" {
		t.Fatalf("unexpected download url: %q", video.DownloadURL)
	}
	if video.DurationSec == nil || *video.DurationSec != 12.5 {
		t.Fatalf("duration not carried through: %v", video.DurationSec)
	}
	if len(store.created) != 1 || store.created[0].ID != video.ID {
		t.Fatalf("expected one stored video, got %+v", store.created)
	}
}

func TestCompleteVideoStaffUploadIsReady(t *testing.T) {
	for _, role := range []models.Role{models.RoleAdmin, models.RoleModerator} {
		store := &videoWriterStub{}
		completer := &Completer{Videos: store, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

		video, err := completer.CompleteVideo(context.Background(), videoBlob(), TokenPayload{UserID: "user-1", Role: role})
		if err != nil {
			t.Fatalf("complete video as %s: %v", role, err)
		}
		if video.Status != models.StatusReady {
			t.Fatalf("%s upload must be ready immediately, got %q", role, video.Status)
		}
	}
}

func TestCompleteVideoUsesRoleAtIssuance(t *testing.T) {
	// The signed payload says general even if the account was promoted after
	// the token was minted. The stale role wins.
	store := &videoWriterStub{}
	completer := &Completer{Videos: store, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

	video, err := completer.CompleteVideo(context.Background(), videoBlob(), TokenPayload{UserID: "user-1", Role: models.RoleGeneral})
	if err != nil {
		t.Fatalf("complete video: %v", err)
	}
	if video.Status != models.StatusHidden {
		t.Fatalf("issuance-time role must decide status, got %q", video.Status)
	}
}

func TestCompleteVideoTruncatesLongText(t *testing.T) {
	store := &videoWriterStub{}
	completer := &Completer{Videos: store, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

	long := strings.Repeat("é", 300)
	cp, _ := json.Marshal(map[string]string{"title": long, "address": long})

	video, err := completer.CompleteVideo(context.Background(), videoBlob(), TokenPayload{
		UserID:        "user-1",
		Role:          models.RoleGeneral,
		ClientPayload: cp,
	})
	if err != nil {
		t.Fatalf("complete video: %v", err)
	}

	if got := len([]rune(video.Title)); got != maxTextLength {
		t.Fatalf("expected title clamped to %d runes, got %d", maxTextLength, got)
	}
	if got := len([]rune(video.Address)); got != maxTextLength {
		t.Fatalf("expected address clamped to %d runes, got %d", maxTextLength, got)
	}
}

func TestCompleteThumbnailRequiresVideoPath(t *testing.T) {
	completer := &Completer{Videos: &videoWriterStub{}, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

	_, err := completer.CompleteThumbnail(context.Background(), videoBlob(), TokenPayload{
		UserID:        "user-1",
		ClientPayload: json.RawMessage(`{"isCover":true}`),
	})
	if !errors.Is(err, ErrMissingVideoPath) {
		t.Fatalf("expected ErrMissingVideoPath, got %v", err)
	}
}

func TestCompleteThumbnailRejectsForeignVideo(t *testing.T) {
	videosStub := &videoWriterStub{byPath: map[string]models.Video{
		"videos/clip.mp4": {ID: "vid-1", OwnerID: "someone-else"},
	}}
	completer := &Completer{Videos: videosStub, Thumbnails: &thumbWriterStub{}, NowFunc: fixedNow}

	_, err := completer.CompleteThumbnail(context.Background(), videoBlob(), TokenPayload{
		UserID:        "user-1",
		ClientPayload: json.RawMessage(`{"videoBlobPath":"videos/clip.mp4","isCover":true}`),
	})
	if !errors.Is(err, ErrVideoNotOwned) {
		t.Fatalf("expected ErrVideoNotOwned, got %v", err)
	}
}

func TestCompleteThumbnailCoverFlow(t *testing.T) {
	videosStub := &videoWriterStub{byPath: map[string]models.Video{
		"videos/clip.mp4": {ID: "vid-1", OwnerID: "user-1"},
	}}
	thumbs := &thumbWriterStub{}
	completer := &Completer{Videos: videosStub, Thumbnails: thumbs, NowFunc: fixedNow}

	thumb, err := completer.CompleteThumbnail(context.Background(), videoBlob(), TokenPayload{
		UserID:        "user-1",
		ClientPayload: json.RawMessage(`{"videoBlobPath":"videos/clip.mp4","isCover":true,"timecodeSec":3.2}`),
	})
	if err != nil {
		t.Fatalf("complete thumbnail: %v", err)
	}

	if !thumb.IsCover {
		t.Fatal("expected thumbnail to be the cover")
	}
	if len(thumbs.cleared) != 1 || thumbs.cleared[0] != "vid-1" {
		t.Fatalf("expected previous cover cleared for vid-1, got %v", thumbs.cleared)
	}
	if thumb.TimecodeSec == nil || *thumb.TimecodeSec != 3.2 {
		t.Fatalf("timecode not carried through: %v", thumb.TimecodeSec)
	}
}

func TestCompleteThumbnailCoverRaceDowngrades(t *testing.T) {
	videosStub := &videoWriterStub{byPath: map[string]models.Video{
		"videos/clip.mp4": {ID: "vid-1", OwnerID: "user-1"},
	}}
	thumbs := &thumbWriterStub{createErrs: []error{repositories.ErrCoverConflict}}
	completer := &Completer{Videos: videosStub, Thumbnails: thumbs, NowFunc: fixedNow}

	thumb, err := completer.CompleteThumbnail(context.Background(), videoBlob(), TokenPayload{
		UserID:        "user-1",
		ClientPayload: json.RawMessage(`{"videoBlobPath":"videos/clip.mp4","isCover":true}`),
	})
	if err != nil {
		t.Fatalf("complete thumbnail after cover race: %v", err)
	}

	if thumb.IsCover {
		t.Fatal("losing the cover race must store a non-cover")
	}
	if len(thumbs.created) != 2 {
		t.Fatalf("expected exactly one retry, got %d inserts", len(thumbs.created))
	}
	if !thumbs.created[0].IsCover || thumbs.created[1].IsCover {
		t.Fatalf("expected cover attempt then non-cover retry, got %+v", thumbs.created)
	}
}

func TestCompleteThumbnailNonCoverConflictPropagates(t *testing.T) {
	videosStub := &videoWriterStub{byPath: map[string]models.Video{
		"videos/clip.mp4": {ID: "vid-1", OwnerID: "user-1"},
	}}
	thumbs := &thumbWriterStub{createErrs: []error{repositories.ErrConflict}}
	completer := &Completer{Videos: videosStub, Thumbnails: thumbs, NowFunc: fixedNow}

	_, err := completer.CompleteThumbnail(context.Background(), videoBlob(), TokenPayload{
		UserID:        "user-1",
		ClientPayload: json.RawMessage(`{"videoBlobPath":"videos/clip.mp4","isCover":false}`),
	})
	if !errors.Is(err, repositories.ErrConflict) {
		t.Fatalf("expected conflict to propagate, got %v", err)
	}
	if len(thumbs.created) != 1 {
		t.Fatalf("non-cover conflicts must not be retried, got %d inserts", len(thumbs.created))
	}
}

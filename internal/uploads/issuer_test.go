package uploads

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/reelvault/backend/internal/models"
)

func TestIssuerVideoDescriptor(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	user := models.User{ID: "user-1", Role: models.RoleGeneral}

	descriptor, err := issuer.IssueVideo(user, json.RawMessage(`{"title":"clip"}`))
	if err != nil {
		t.Fatalf("issue video token: %v", err)
	}

	if !descriptor.AddRandomSuffix {
		t.Fatal("video uploads must get a random path suffix")
	}
	if descriptor.MaximumSizeInBytes != maxVideoSizeBytes {
		t.Fatalf("unexpected size cap: %d", descriptor.MaximumSizeInBytes)
	}
	want := map[string]bool{"video/mp4": true, "video/webm": true, "video/ogg": true}
	if len(descriptor.AllowedContentTypes) != len(want) {
		t.Fatalf("unexpected content types: %v", descriptor.AllowedContentTypes)
	}
	for _, ct := range descriptor.AllowedContentTypes {
		if !want[ct] {
			t.Fatalf("unexpected content type %q", ct)
		}
	}

	payload, err := issuer.Decode(descriptor.TokenPayload)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if payload.UserID != "user-1" || payload.Role != models.RoleGeneral {
		t.Fatalf("unexpected claims: %+v", payload)
	}
	if string(payload.ClientPayload) != `{"title":"clip"}` {
		t.Fatalf("client payload not carried through: %s", payload.ClientPayload)
	}
}

func TestIssuerThumbnailDescriptor(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	user := models.User{ID: "user-1", Role: models.RoleAdmin}

	descriptor, err := issuer.IssueThumbnail(user, nil)
	if err != nil {
		t.Fatalf("issue thumbnail token: %v", err)
	}

	if descriptor.AddRandomSuffix {
		t.Fatal("thumbnail paths must stay deterministic")
	}
	if descriptor.MaximumSizeInBytes != maxThumbSizeBytes {
		t.Fatalf("unexpected size cap: %d", descriptor.MaximumSizeInBytes)
	}
}

func TestIssuerRejectsEmptyUser(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	if _, err := issuer.IssueVideo(models.User{}, nil); err == nil {
		t.Fatal("expected error for user without id")
	}
}

func TestIssuerDefaultsInvalidRole(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	descriptor, err := issuer.IssueVideo(models.User{ID: "user-1", Role: "superuser"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	payload, err := issuer.Decode(descriptor.TokenPayload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Role != models.RoleGeneral {
		t.Fatalf("unknown roles must collapse to general, got %q", payload.Role)
	}
}

func TestIssuerDecodeRejectsTampering(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	other := NewIssuer("other-secret", time.Hour)

	descriptor, err := issuer.IssueVideo(models.User{ID: "user-1", Role: models.RoleGeneral}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := other.Decode(descriptor.TokenPayload); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	if _, err := issuer.Decode(descriptor.TokenPayload + "x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for mangled token, got %v", err)
	}
}

func TestIssuerDecodeRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	descriptor, err := issuer.IssueVideo(models.User{ID: "user-1", Role: models.RoleGeneral}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Decode(descriptor.TokenPayload); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

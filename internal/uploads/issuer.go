package uploads

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reelvault/backend/internal/models"
)

// Upload policy per content kind. Video uploads get a randomized path suffix
// so repeated uploads of the same filename never collide; thumbnails use a
// deterministic path derived from the parent video so regeneration overwrites
// predictably, and are capped far lower.
var (
	videoContentTypes = []string{"video/mp4", "video/webm", "video/ogg"}
	thumbContentTypes = []string{"image/jpeg", "image/webp", "image/png"}
)

const (
	maxVideoSizeBytes = 500 << 20
	maxThumbSizeBytes = 2_000_000
)

// TokenPayload is the opaque, server-signed bundle carried through the
// storage service round-trip. The completion callback arrives without any
// caller session, so everything the completion decision needs (identity, the
// role held at issuance time, and the client's declared payload) must travel
// inside it.
type TokenPayload struct {
	UserID        string          `json:"userId"`
	Role          models.Role     `json:"role,omitempty"`
	ClientPayload json.RawMessage `json:"clientPayload,omitempty"`
	jwt.RegisteredClaims
}

// TokenDescriptor is the response to a token request: the constraints the
// storage service will enforce plus the signed payload to echo back on
// completion.
type TokenDescriptor struct {
	AllowedContentTypes []string `json:"allowedContentTypes"`
	AddRandomSuffix     bool     `json:"addRandomSuffix"`
	MaximumSizeInBytes  int64    `json:"maximumSizeInBytes"`
	TokenPayload        string   `json:"tokenPayload"`
}

// Issuer mints and verifies HS256-signed upload token payloads.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer signing with the provided secret. Tokens
// expire after ttl; a completion arriving later is rejected.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IssueVideo mints a token descriptor for a video upload by the given user.
// The role recorded here, not the role at completion time, decides the
// video's initial visibility.
func (i *Issuer) IssueVideo(user models.User, clientPayload json.RawMessage) (TokenDescriptor, error) {
	signed, err := i.sign(user, clientPayload)
	if err != nil {
		return TokenDescriptor{}, err
	}
	return TokenDescriptor{
		AllowedContentTypes: videoContentTypes,
		AddRandomSuffix:     true,
		MaximumSizeInBytes:  maxVideoSizeBytes,
		TokenPayload:        signed,
	}, nil
}

// IssueThumbnail mints a token descriptor for a thumbnail upload. The role is
// still embedded for symmetry but thumbnails carry no visibility decision.
func (i *Issuer) IssueThumbnail(user models.User, clientPayload json.RawMessage) (TokenDescriptor, error) {
	signed, err := i.sign(user, clientPayload)
	if err != nil {
		return TokenDescriptor{}, err
	}
	return TokenDescriptor{
		AllowedContentTypes: thumbContentTypes,
		AddRandomSuffix:     false,
		MaximumSizeInBytes:  maxThumbSizeBytes,
		TokenPayload:        signed,
	}, nil
}

// Decode verifies a token payload's signature and expiry and returns the
// embedded claims. Nothing outside the signed payload is ever trusted.
func (i *Issuer) Decode(raw string) (TokenPayload, error) {
	var payload TokenPayload
	_, err := jwt.ParseWithClaims(raw, &payload, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil {
		return TokenPayload{}, errors.Join(ErrTokenInvalid, err)
	}
	return payload, nil
}

func (i *Issuer) sign(user models.User, clientPayload json.RawMessage) (string, error) {
	if user.ID == "" {
		return "", errors.New("uploads: user id must be provided")
	}

	role := user.Role
	if !role.Valid() {
		role = models.RoleGeneral
	}

	now := i.now()
	claims := TokenPayload{
		UserID:        user.ID,
		Role:          role,
		ClientPayload: clientPayload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign upload token: %w", err)
	}
	return signed, nil
}

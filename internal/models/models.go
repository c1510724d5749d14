package models

import "time"

// Role classifies what a user account is allowed to do.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleGeneral   Role = "general"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleGeneral:
		return true
	}
	return false
}

// IsStaff reports whether the role carries moderation privileges.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerator
}

// VideoStatus is the publish state of a video.
type VideoStatus string

const (
	// StatusHidden means the video is awaiting moderation.
	StatusHidden VideoStatus = "hidden"
	// StatusReady means the video is publicly listed.
	StatusReady VideoStatus = "ready"
)

// InitialStatus maps an uploader's role to the visibility a freshly uploaded
// video starts with. Staff uploads auto-publish; everyone else lands in the
// moderation queue. This is the single place that decision lives.
func InitialStatus(role Role) VideoStatus {
	if role.IsStaff() {
		return StatusReady
	}
	return StatusHidden
}

// User represents an account within the ReelVault platform.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Suspended    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Video is a media record created by the upload completion handler.
type Video struct {
	ID          string
	OwnerID     string
	Title       string
	Address     string
	BlobURL     string
	DownloadURL string
	BlobPath    string
	ContentType string
	SizeBytes   int64
	DurationSec *float64
	Width       *int
	Height      *int
	Status      VideoStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Thumbnail is a preview image attached to a video. At most one thumbnail
// per video carries IsCover=true; the storage layer enforces this with a
// partial unique index.
type Thumbnail struct {
	ID          string
	VideoID     string
	URL         string
	BlobPath    string
	Width       *int
	Height      *int
	IsCover     bool
	TimecodeSec *float64
	CreatedAt   time.Time
}

// OwnerSummary is the subset of user fields exposed to moderators in listings.
type OwnerSummary struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// ThumbSummary is the subset of thumbnail fields surfaced in listings.
type ThumbSummary struct {
	URL         string
	Width       *int
	Height      *int
	TimecodeSec *float64
}

// VideoListing joins a video with its representative thumbnail (the cover if
// one exists, otherwise the oldest) and, for moderation views, its owner.
type VideoListing struct {
	Video     Video
	Thumbnail *ThumbSummary
	Owner     *OwnerSummary
}

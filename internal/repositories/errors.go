package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrCoverConflict indicates specifically that the one-cover-per-video
	// constraint rejected the write. Callers recover from this differently
	// than from a generic conflict, so it gets its own sentinel.
	ErrCoverConflict = errors.New("cover thumbnail conflict")
)

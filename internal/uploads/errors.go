package uploads

import "errors"

var (
	// ErrMissingUserID indicates a completion payload without a user identity.
	// This is protocol misuse, not user error: tokens are only ever minted for
	// an authenticated caller.
	ErrMissingUserID = errors.New("upload payload missing user id")
	// ErrMissingVideoPath indicates a thumbnail completion without a parent
	// video reference.
	ErrMissingVideoPath = errors.New("upload payload missing videoBlobPath")
	// ErrVideoNotOwned indicates the referenced video does not exist or is not
	// owned by the uploader. The two cases are deliberately collapsed so the
	// response does not reveal whether the path exists.
	ErrVideoNotOwned = errors.New("video not found or not owned by user")
	// ErrTokenInvalid indicates the opaque token payload failed verification.
	ErrTokenInvalid = errors.New("invalid upload token payload")
)

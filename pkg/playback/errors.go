package playback

import "errors"

// Errors returned by Controller.Load. Each wraps the underlying cause as well,
// so errors.Is matches both the kind and the lower-level sentinel.
var (
	// ErrResourceNotFound is returned when the module path does not resolve.
	ErrResourceNotFound = errors.New("module not found")

	// ErrDecode is returned when the module bytes are malformed or unsupported.
	ErrDecode = errors.New("module decode failed")

	// ErrDeviceUnavailable is returned when the output line cannot be opened or
	// started, and recorded as the session error when the line fails mid-playback.
	ErrDeviceUnavailable = errors.New("output device unavailable")

	// ErrNotLoaded is returned by Wait when no module is loaded.
	ErrNotLoaded = errors.New("no module loaded")
)

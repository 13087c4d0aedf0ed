package domain

import "errors"

var (
	// ErrTransport means the provider rejected an outbound send.
	ErrTransport = errors.New("transport failure")
	// ErrFeed means the cursor-based fetch failed. It is recovered by the fallback window.
	ErrFeed = errors.New("feed failure")
	// ErrFallback means the recent-window fetch failed; the sync cycle fails.
	ErrFallback = errors.New("fallback fetch failure")
	// ErrPersistence means at least one store write failed.
	ErrPersistence = errors.New("persistence failure")
	// ErrValidation is returned before any side effect.
	ErrValidation = errors.New("validation failure")
	ErrNotFound   = errors.New("not found")
	// ErrWatchUnsupported is returned by providers without push notifications.
	ErrWatchUnsupported = errors.New("mailbox watch not supported by provider")
)

// Package common defines shared constants and sentinel errors used across
// client and server layers of boardsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport-level errors. ErrUnavailable covers transient network
	// failures and is the retryable class; ErrUnauthorized is expected when
	// a write races the session's own teardown and is suppressed there.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// Data-integrity errors: logged and skipped, never allowed to poison
	// sibling entities.
	ErrMalformedRecord = errors.New("malformed record")

	// Upload-queue errors.
	ErrAssetTooLarge       = errors.New("asset exceeds size limit")
	ErrUnsupportedMimeType = errors.New("unsupported mime type")
	ErrRetriesExhausted    = errors.New("upload retries exhausted")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Session lifecycle.
	ErrSessionClosed = errors.New("session closed")
)

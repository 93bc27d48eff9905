package signer

import (
	"errors"
	"fmt"
)

var (
	// ErrSignerNotReady occurs when a signing operation is requested for a
	// user whose wallet record is absent, still creating, or failed. The
	// caller may retry once provisioning has completed.
	ErrSignerNotReady = errors.New("signer not ready")

	// ErrRateLimited indicates the remote signing service returned 429 and
	// the internal retry budget was exhausted. Callers should back off
	// independently before retrying.
	ErrRateLimited = errors.New("signing service rate limited")

	// ErrSigningUnavailable wraps any other signing-call failure after
	// retries. Surfaced to end users as "signing temporarily unavailable".
	ErrSigningUnavailable = errors.New("signing temporarily unavailable")

	// ErrRecordNotFound occurs when no wallet record exists for a user.
	ErrRecordNotFound = errors.New("wallet record not found")
)

// CreationError reports that remote wallet provisioning failed after
// retries. The wallet record has been marked failed and creation may be
// retried by calling Address again.
type CreationError struct {
	UserID string
	Cause  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("server wallet creation failed for user %s: %v", e.UserID, e.Cause)
}

func (e *CreationError) Unwrap() error {
	return e.Cause
}

// IsCreationFailed reports whether err carries a CreationError.
func IsCreationFailed(err error) bool {
	var ce *CreationError
	return errors.As(err, &ce)
}

package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Pipeline errors. The taxonomy decides retry behavior in the job
	// processor: configuration and input errors fail the job immediately,
	// everything else goes through the bounded retry policy.
	ErrNotConfigured      = errors.New("ai provider is not configured")
	ErrMissingCredential  = errors.New("ai api key is not set")
	ErrUnreadableInput    = errors.New("source file is encrypted or unreadable")
	ErrMalformedResponse  = errors.New("provider returned malformed response")
	ErrNoAnalysisPossible = errors.New("no analysis possible: no text and vision failed")
	ErrBatchActive        = errors.New("another batch run is already active")
)

// Retryable reports whether the job processor should hand err to the retry
// policy. Parse failures are deliberately non-retryable: a permanently
// malformed response would otherwise burn every attempt before surfacing.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrUnreadableInput),
		errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ErrNoAnalysisPossible),
		errors.Is(err, ErrNotFound):
		return false
	}
	return true
}

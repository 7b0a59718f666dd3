package calls

import (
	"errors"
	"strings"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateCall means the external call id was already recorded.
	// Callers should treat it as success and must not retry.
	ErrDuplicateCall = errors.New("call already recorded")

	// ErrLinkNotFound means an answered call referenced a link that no longer exists.
	ErrLinkNotFound = errors.New("routing link not found")

	// ErrReferenceNotFound means another referenced entity (user, campaign, did,
	// client) vanished before the record could be written.
	ErrReferenceNotFound = errors.New("referenced entity not found")
)

// ValidationError lists the required fields missing from a CallAttempt.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

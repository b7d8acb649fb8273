package pagetextcache

import (
	"errors"
	"fmt"
)

// Errors a preload can surface to the caller. Storage-backend failures are
// never among them: those degrade to a logged warning and a safe default
// inside the store, so cache unavailability costs performance, not
// correctness.
var (
	// ErrInvalidArgument marks malformed preload input: a missing source, an
	// empty page list, or a non-positive page number.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAcquisitionTimeout marks a document acquisition that exceeded the
	// configured preload timeout.
	ErrAcquisitionTimeout = errors.New("document acquisition timed out")

	// ErrUnknownStrategy marks a strategy value outside memory, persistent
	// and auto.
	ErrUnknownStrategy = errors.New("unknown cache strategy")
)

// PageError records one page whose text extraction failed during a preload.
// Sibling pages are unaffected.
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e PageError) Unwrap() error {
	return e.Err
}

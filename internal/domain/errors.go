package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFetch              = errors.New("fetch failed")
	ErrExtractionNotFound = errors.New("no extraction strategy produced content")
	ErrValidationRejected = errors.New("content rejected as legal boilerplate")
	ErrTranslationPartial = errors.New("translation partially failed")
	ErrTranslationFailed  = errors.New("translation failed")
	ErrCatalogLookup      = errors.New("instrument catalog lookup failed")
	ErrPublishCollision   = errors.New("filename collision with a different article")
	ErrWriteFailed        = errors.New("artifact write failed")
)

// FetchError describes a non-success HTTP exchange or a transport failure.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Transient reports whether retrying the same request may succeed.
func (e *FetchError) Transient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

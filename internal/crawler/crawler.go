// Package crawler is the fetch capability: it loads a product page and
// returns the raw text found at a locator.
package crawler

import (
	"context"
	"errors"
	"fmt"
)

// Failure classes reported by a Session. They are matched with errors.Is.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrBlocked     = errors.New("blocked")
	ErrTimeout     = errors.New("timeout")
	ErrNotFound    = errors.New("price element not found")
	ErrNavigation  = errors.New("navigation failed")
)

// Error is a failed fetch. Class is one of the Err* values above.
type Error struct {
	Class      error
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Class.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// IsRateLimited reports whether err means the source is throttling us.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBlocked)
}

// Target is one page to read. Locator is passed through untouched.
type Target struct {
	URL     string
	Locator string
}

// Session holds the per-attempt resources (connection, proxy, browser...).
// Close must be called once the attempt is over.
type Session interface {
	Extract(ctx context.Context, t Target) (string, error)
	Close() error
}

// Fetcher opens one Session per attempt.
type Fetcher interface {
	Open(ctx context.Context) (Session, error)
}

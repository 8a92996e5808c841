package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable means no book has ever been committed (or both
	// sides are empty), as opposed to a book that lacks depth for an order.
	ErrStoreUnavailable = errors.New("order book not available")

	// ErrInsufficientLiquidity is the user-facing rejection when a market
	// order finds no levels to consume. It is not a system fault.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrSubscriberLimit is returned by admission control when the
	// distribution channel is at its maximum subscriber count.
	ErrSubscriberLimit = errors.New("subscriber limit reached")

	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrInvalidAddress = errors.New("invalid client address")
	ErrRateLimited    = errors.New("rate limited")
	ErrAlreadyRunning = errors.New("already running")
)

// ValidationError describes which book invariant a candidate book violated
// and the offending prices, so a skipped refresh cycle can be diagnosed from
// the log alone.
type ValidationError struct {
	Invariant string // e.g. "bids_descending", "asks_ascending", "crossed_book"
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("book validation: %s: %s", e.Invariant, e.Detail)
}

// FetchError is raised by the exchange connector after its bounded retry
// budget is exhausted. It is terminal for the refresh cycle that triggered
// the fetch, never for the process.
type FetchError struct {
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch quotes failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

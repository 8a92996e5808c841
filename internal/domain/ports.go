package domain

import (
	"context"
	"io"
	"time"
)

// QuoteSource is the upstream exchange connector. Implementations retry
// transient failures internally with bounded exponential backoff and return a
// *FetchError once the budget is exhausted. Returned levels are not assumed
// to be sorted; the caller normalizes and validates before commit.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, symbol string, depth int) (OrderBook, error)
}

// DeltaPublisher receives the top-N delta built after every successful store
// replacement. The in-process distribution channel, the Redis bus relay, and
// the Redis book mirror all implement it.
type DeltaPublisher interface {
	PublishDelta(ctx context.Context, delta DeltaMessage) error
}

// BookMirror stores the current committed book in a shared cache so sibling
// processes can read it without talking to the upstream exchange.
type BookMirror interface {
	SetBook(ctx context.Context, book OrderBook) error
	GetBook(ctx context.Context, symbol string) (OrderBook, error)
}

// SignalBus provides cross-process pub/sub for delta and execution events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed request rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ExecutionStore is the append-only order-history ledger.
type ExecutionStore interface {
	Insert(ctx context.Context, rec ExecutionRecord) error
	ListByAddressDate(ctx context.Context, address string, day time.Time, opts ListOpts) ([]ExecutionRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ExecutionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads archive objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

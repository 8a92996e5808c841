// Package feed keeps a server-mode process's local book store in sync with a
// refresh process running elsewhere, using the shared Redis mirror and bus.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/rohidaprem/crypto-order-book/internal/book"
	rediscache "github.com/rohidaprem/crypto-order-book/internal/cache/redis"
	"github.com/rohidaprem/crypto-order-book/internal/distribution"
	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// MirrorFeed seeds the local store from the Redis book mirror and then
// follows the delta channel, committing each update locally and fanning it
// out to in-process subscribers.
type MirrorFeed struct {
	symbol  string
	bus     domain.SignalBus
	mirror  domain.BookMirror
	store   *book.Store
	channel *distribution.Channel
	logger  *slog.Logger
}

// NewMirrorFeed creates a MirrorFeed for one symbol.
func NewMirrorFeed(symbol string, bus domain.SignalBus, mirror domain.BookMirror, store *book.Store, channel *distribution.Channel, logger *slog.Logger) *MirrorFeed {
	return &MirrorFeed{
		symbol:  symbol,
		bus:     bus,
		mirror:  mirror,
		store:   store,
		channel: channel,
		logger:  logger.With(slog.String("component", "mirror_feed"), slog.String("symbol", symbol)),
	}
}

// Run blocks until the context is cancelled, applying every delta received
// from the bus. Invalid or stale payloads are logged and skipped; the
// previously committed book stays live.
func (f *MirrorFeed) Run(ctx context.Context) error {
	f.seed(ctx)

	msgs, err := f.bus.Subscribe(ctx, rediscache.BookChannel(f.symbol))
	if err != nil {
		return err
	}

	f.logger.Info("mirror feed started")
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("mirror feed stopped")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				f.logger.Info("mirror feed channel closed")
				return nil
			}
			f.apply(payload)
		}
	}
}

// seed loads the current mirrored book, if any, so reads work before the
// first delta arrives.
func (f *MirrorFeed) seed(ctx context.Context) {
	b, err := f.mirror.GetBook(ctx, f.symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			f.logger.Warn("mirror seed failed", slog.String("error", err.Error()))
		}
		return
	}
	if err := f.store.Replace(b); err != nil {
		f.logger.Warn("mirror seed rejected", slog.String("error", err.Error()))
		return
	}
	f.logger.Info("book seeded from mirror",
		slog.Int("bids", len(b.Bids)),
		slog.Int("asks", len(b.Asks)),
	)
}

func (f *MirrorFeed) apply(payload []byte) {
	var delta domain.DeltaMessage
	if err := json.Unmarshal(payload, &delta); err != nil {
		f.logger.Warn("malformed delta payload", slog.String("error", err.Error()))
		return
	}

	candidate := domain.OrderBook{
		Symbol:    delta.Symbol,
		Bids:      delta.Bids,
		Asks:      delta.Asks,
		Timestamp: delta.Timestamp,
	}
	if candidate.Symbol == "" {
		candidate.Symbol = f.symbol
	}

	if err := f.store.Replace(candidate); err != nil {
		f.logger.Warn("delta rejected", slog.String("error", err.Error()))
		return
	}

	f.channel.Publish(delta)
}

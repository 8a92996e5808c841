// Package scheduler drives the periodic fetch-validate-store-publish cycle
// that keeps the order book store fresh.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rohidaprem/crypto-order-book/internal/book"
	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// Config holds the scheduler's fixed parameters, passed at construction.
type Config struct {
	Symbol    string
	Depth     int
	Interval  time.Duration
	TopLevels int
}

// Scheduler is a two-state machine (idle / running) that pulls fresh quotes
// from the exchange connector, commits them to the store, and fans the
// resulting delta out to publishers. Cycles run strictly serially on one
// goroutine; a tick that fires mid-cycle is absorbed, never run in parallel.
// A failed cycle is logged and skipped; the failure unit is one cycle, not
// the process.
type Scheduler struct {
	cfg        Config
	source     domain.QuoteSource
	store      *book.Store
	publishers []domain.DeltaPublisher
	clock      Clock
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// runMu serializes cycles: the periodic loop and out-of-band refreshes
	// run one at a time, so deltas always publish in commit order.
	runMu sync.Mutex
}

// New creates an idle Scheduler. A nil clock defaults to the system clock.
func New(cfg Config, source domain.QuoteSource, store *book.Store, publishers []domain.DeltaPublisher, clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		cfg:        cfg,
		source:     source,
		store:      store,
		publishers: publishers,
		clock:      clock,
		logger:     logger.With(slog.String("component", "scheduler")),
	}
}

// Start transitions idle -> running: it performs one cycle immediately and
// then schedules a recurring cycle at the configured interval. Calling Start
// while already running returns domain.ErrAlreadyRunning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.runCtx = runCtx
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)

	s.logger.Info("scheduler started",
		slog.String("symbol", s.cfg.Symbol),
		slog.Duration("interval", s.cfg.Interval),
	)
	return nil
}

// Stop transitions running -> idle, cancelling the recurring timer and any
// in-flight fetch. A fetch that completes after Stop does not commit. Stop
// is safe to call from any state and blocks until the loop has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.runCtx, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Running reports whether the periodic cycle is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Refresh runs one out-of-band cycle on the scheduler's run context, so a
// refresh in flight when Stop is called cannot commit. It reports whether the
// scheduler was running; an idle scheduler does nothing.
func (s *Scheduler) Refresh() bool {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	if ctx == nil {
		return false
	}
	s.RunCycle(ctx)
	return true
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.RunCycle(ctx)

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one fetch-validate-store-publish cycle. Cycles are
// mutually exclusive: a concurrent caller blocks until the in-flight cycle
// has committed and published. Every error is contained here: logged, the
// cycle skipped, and the previous book kept live.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("refresh cycle panicked", slog.Any("panic", r))
		}
	}()

	raw, err := s.source.FetchQuotes(ctx, s.cfg.Symbol, s.cfg.Depth)
	if err != nil {
		var ferr *domain.FetchError
		if errors.As(err, &ferr) {
			s.logger.Warn("quote fetch exhausted retries, skipping cycle",
				slog.Int("attempts", ferr.Attempts),
				slog.String("error", ferr.Err.Error()),
			)
		} else {
			s.logger.Warn("quote fetch failed, skipping cycle", slog.String("error", err.Error()))
		}
		return
	}

	// A fetch that lands after Stop (or app shutdown) must not commit.
	if ctx.Err() != nil {
		return
	}

	candidate := book.Normalize(raw)
	if candidate.Symbol == "" {
		candidate.Symbol = s.cfg.Symbol
	}
	if candidate.Timestamp.IsZero() {
		candidate.Timestamp = s.clock.Now()
	}

	if err := s.store.Replace(candidate); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			s.logger.Warn("fetched book failed validation, keeping previous book",
				slog.String("invariant", verr.Invariant),
				slog.String("detail", verr.Detail),
			)
		} else {
			s.logger.Warn("book replace failed, keeping previous book", slog.String("error", err.Error()))
		}
		return
	}

	top := s.store.ReadTop(s.cfg.TopLevels)
	delta := domain.DeltaMessage{
		Symbol:    top.Symbol,
		Bids:      top.Bids,
		Asks:      top.Asks,
		Timestamp: top.Timestamp,
	}

	for _, pub := range s.publishers {
		if err := pub.PublishDelta(ctx, delta); err != nil {
			s.logger.Warn("delta publish failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Debug("refresh cycle committed",
		slog.Int("bids", len(candidate.Bids)),
		slog.Int("asks", len(candidate.Asks)),
		slog.Time("timestamp", candidate.Timestamp),
	)
}

package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohidaprem/crypto-order-book/internal/book"
	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// fakeClock hands out a manually driven ticker so tests control exactly when
// cycles run.
type fakeClock struct {
	now   time.Time
	ticks chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		ticks: make(chan time.Time),
	}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker { return fakeTicker{c.ticks} }

type fakeTicker struct {
	ch chan time.Time
}

func (t fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t fakeTicker) Stop()                  {}

// stubSource returns queued books (or errors) in order and blocks callers
// until a response is queued.
type stubSource struct {
	mu      sync.Mutex
	queue   []fetchResult
	fetches int
}

type fetchResult struct {
	book domain.OrderBook
	err  error
}

func (s *stubSource) push(b domain.OrderBook, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fetchResult{b, err})
}

func (s *stubSource) FetchQuotes(context.Context, string, int) (domain.OrderBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if len(s.queue) == 0 {
		return domain.OrderBook{}, &domain.FetchError{Attempts: 1, Err: errors.New("no data queued")}
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.book, next.err
}

// recordingPublisher captures every delta in publish order.
type recordingPublisher struct {
	mu     sync.Mutex
	deltas []domain.DeltaMessage
}

func (p *recordingPublisher) PublishDelta(_ context.Context, d domain.DeltaMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deltas = append(p.deltas, d)
	return nil
}

func (p *recordingPublisher) snapshot() []domain.DeltaMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.DeltaMessage, len(p.deltas))
	copy(out, p.deltas)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawBook(bid, ask float64, ts time.Time) domain.OrderBook {
	return domain.OrderBook{
		Symbol:    "BTCUSDT",
		Bids:      []domain.PriceLevel{{Price: bid, Quantity: 1}},
		Asks:      []domain.PriceLevel{{Price: ask, Quantity: 1}},
		Timestamp: ts,
	}
}

func newTestScheduler(source domain.QuoteSource, store *book.Store, pub domain.DeltaPublisher, clock Clock) *Scheduler {
	return New(Config{
		Symbol:    "BTCUSDT",
		Depth:     100,
		Interval:  time.Second,
		TopLevels: 20,
	}, source, store, []domain.DeltaPublisher{pub}, clock, testLogger())
}

func TestScheduler_RunCycleCommitsAndPublishes(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	ts := time.Now().UTC()
	source.push(rawBook(100, 101, ts), nil)

	s.RunCycle(context.Background())

	top := store.ReadTop(1)
	require.False(t, top.Empty())
	assert.Equal(t, 100.0, top.Bids[0].Price)

	deltas := pub.snapshot()
	require.Len(t, deltas, 1)
	assert.Equal(t, "BTCUSDT", deltas[0].Symbol)
	assert.Equal(t, ts, deltas[0].Timestamp)
}

func TestScheduler_DeltasArriveInCommitOrder(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	t1 := time.Now().UTC()
	t2 := t1.Add(time.Second)
	source.push(rawBook(100, 101, t1), nil)
	source.push(rawBook(102, 103, t2), nil)

	s.RunCycle(context.Background())
	s.RunCycle(context.Background())

	deltas := pub.snapshot()
	require.Len(t, deltas, 2)
	assert.Equal(t, 100.0, deltas[0].Bids[0].Price)
	assert.Equal(t, 102.0, deltas[1].Bids[0].Price)
	assert.True(t, deltas[0].Timestamp.Before(deltas[1].Timestamp))
}

func TestScheduler_FetchErrorSkipsCycleKeepsBook(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	ts := time.Now().UTC()
	source.push(rawBook(100, 101, ts), nil)
	s.RunCycle(context.Background())

	// Next fetch fails terminally; the committed book must survive.
	source.push(domain.OrderBook{}, &domain.FetchError{Attempts: 3, Err: errors.New("upstream down")})
	s.RunCycle(context.Background())

	top := store.ReadTop(1)
	assert.Equal(t, ts, top.Timestamp)
	assert.Len(t, pub.snapshot(), 1)
}

func TestScheduler_CrossedBookSkipsCycleKeepsBook(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	ts := time.Now().UTC()
	source.push(rawBook(100, 101, ts), nil)
	s.RunCycle(context.Background())

	// Best bid above best ask: normalization sorts but cannot uncross.
	source.push(rawBook(105, 101, ts.Add(time.Second)), nil)
	s.RunCycle(context.Background())

	top := store.ReadTop(1)
	assert.Equal(t, 100.0, top.Bids[0].Price)
	assert.Len(t, pub.snapshot(), 1)
}

func TestScheduler_StartRunsImmediateCycleAndTicks(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	clock := newFakeClock()
	s := newTestScheduler(source, store, pub, clock)

	source.push(rawBook(100, 101, time.Now().UTC()), nil)
	source.push(rawBook(102, 103, time.Now().UTC().Add(time.Second)), nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.True(t, s.Running())
	assert.Error(t, s.Start(context.Background())) // already running

	// The immediate cycle plus one manual tick.
	clock.ticks <- clock.Now()

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
}

// gatedSource parks the first fetch on a release channel so a test can hold
// one cycle open while another tries to start.
type gatedSource struct {
	stub    *stubSource
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedSource(stub *stubSource) *gatedSource {
	return &gatedSource{
		stub:    stub,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedSource) FetchQuotes(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.stub.FetchQuotes(ctx, symbol, depth)
}

func TestScheduler_ConcurrentCyclesPublishInCommitOrder(t *testing.T) {
	stub := &stubSource{}
	source := newGatedSource(stub)
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	base := time.Now().UTC()
	stub.push(rawBook(100, 101, base), nil)
	stub.push(rawBook(200, 201, base.Add(time.Second)), nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.RunCycle(context.Background())
	}()
	<-source.entered

	go func() {
		defer wg.Done()
		s.RunCycle(context.Background())
	}()
	// Give the second cycle time to reach the serialization point, then let
	// the first one proceed.
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()

	deltas := pub.snapshot()
	require.Len(t, deltas, 2)
	assert.Equal(t, 100.0, deltas[0].Bids[0].Price)
	assert.Equal(t, 200.0, deltas[1].Bids[0].Price)

	// The last-published delta matches the book left in the store; a stale
	// delta never lands after a newer one.
	top := store.ReadTop(1)
	assert.Equal(t, top.Bids[0].Price, deltas[1].Bids[0].Price)
}

func TestScheduler_RefreshRunsOutOfBandCycle(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	source.push(rawBook(100, 101, time.Now().UTC()), nil)
	source.push(rawBook(102, 103, time.Now().UTC().Add(time.Second)), nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.True(t, s.Refresh())
	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 102.0, store.ReadTop(1).Bids[0].Price)
}

func TestScheduler_RefreshWhileIdleIsNoOp(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	source.push(rawBook(100, 101, time.Now().UTC()), nil)

	assert.False(t, s.Refresh())
	assert.True(t, store.ReadTop(1).Empty())
	assert.Empty(t, pub.snapshot())
}

func TestScheduler_StopIsIdempotentAndHaltsCycles(t *testing.T) {
	source := &stubSource{}
	store := book.NewStore()
	pub := &recordingPublisher{}
	s := newTestScheduler(source, store, pub, newFakeClock())

	source.push(rawBook(100, 101, time.Now().UTC()), nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	s.Stop() // no-op from idle

	// Restart works after a clean stop.
	source.push(rawBook(102, 103, time.Now().UTC()), nil)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

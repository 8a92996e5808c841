package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
	"github.com/rohidaprem/crypto-order-book/internal/simulator"
)

const testAddress = "0x8ba1f109551bd432803012645ac136ddd64dba72"

// canonicalAddress is the checksummed form the ledger stores.
var canonicalAddress = common.HexToAddress(testAddress).Hex()

// stubBooks serves a fixed book.
type stubBooks struct {
	book domain.OrderBook
}

func (s *stubBooks) ReadTop(int) domain.OrderBook { return s.book }
func (s *stubBooks) ReadFull() domain.OrderBook   { return s.book }

// memLedger is an in-memory domain.ExecutionStore.
type memLedger struct {
	mu   sync.Mutex
	recs []domain.ExecutionRecord
}

func (m *memLedger) Insert(_ context.Context, rec domain.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memLedger) ListByAddressDate(_ context.Context, address string, day time.Time, _ domain.ListOpts) ([]domain.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionRecord
	for _, rec := range m.recs {
		if rec.ClientAddress == address && rec.TradeDate.Equal(day) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memLedger) ListBefore(context.Context, time.Time) ([]domain.ExecutionRecord, error) {
	return nil, nil
}

func (m *memLedger) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func liquidBook() domain.OrderBook {
	return domain.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []domain.PriceLevel{{Price: 99900, Quantity: 1}},
		Asks:   []domain.PriceLevel{{Price: 100000, Quantity: 1}},
	}
}

func newTestService(book domain.OrderBook, ledger domain.ExecutionStore) *ExecutionService {
	return NewExecutionService(&stubBooks{book: book}, simulator.DefaultConfig(), ledger, nil, testLogger())
}

func TestExecute_FilledOrderIsRecorded(t *testing.T) {
	ledger := &memLedger{}
	svc := newTestService(liquidBook(), ledger)

	res, err := svc.Execute(context.Background(), testAddress, domain.SideBuy, 0.5)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, 100000.0, res.AvgPrice)

	require.Len(t, ledger.recs, 1)
	rec := ledger.recs[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, canonicalAddress, rec.ClientAddress)
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Equal(t, domain.SideBuy, rec.Side)
	assert.Equal(t, res.Status, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestExecute_RejectedMapsToInsufficientLiquidity(t *testing.T) {
	book := liquidBook()
	book.Asks = nil // nothing to buy
	ledger := &memLedger{}
	svc := newTestService(book, ledger)

	res, err := svc.Execute(context.Background(), testAddress, domain.SideBuy, 1.0)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
	assert.Equal(t, domain.StatusRejected, res.Status)

	// Rejections are ledger entries too.
	require.Len(t, ledger.recs, 1)
	assert.Equal(t, domain.StatusRejected, ledger.recs[0].Status)
}

func TestExecute_InvalidAddressRejected(t *testing.T) {
	svc := newTestService(liquidBook(), &memLedger{})

	for _, addr := range []string{"", "not-an-address", "0x123"} {
		_, err := svc.Execute(context.Background(), addr, domain.SideBuy, 1.0)
		assert.ErrorIs(t, err, domain.ErrInvalidAddress, "address %q", addr)
	}
}

func TestExecute_InvalidParamsRejected(t *testing.T) {
	svc := newTestService(liquidBook(), &memLedger{})

	_, err := svc.Execute(context.Background(), testAddress, domain.Side("hold"), 1.0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Execute(context.Background(), testAddress, domain.SideBuy, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Execute(context.Background(), testAddress, domain.SideSell, -2)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestExecute_EmptyBookIsUnavailable(t *testing.T) {
	svc := newTestService(domain.OrderBook{}, &memLedger{})

	_, err := svc.Execute(context.Background(), testAddress, domain.SideBuy, 1.0)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestExecute_NilLedgerStillExecutes(t *testing.T) {
	svc := newTestService(liquidBook(), nil)

	res, err := svc.Execute(context.Background(), testAddress, domain.SideSell, 0.5)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, res.Status)
}

func TestHistory_ReturnsRecordsForAddressAndDay(t *testing.T) {
	ledger := &memLedger{}
	svc := newTestService(liquidBook(), ledger)

	_, err := svc.Execute(context.Background(), testAddress, domain.SideBuy, 0.5)
	require.NoError(t, err)

	day := time.Now().UTC().Truncate(24 * time.Hour)
	recs, err := svc.History(context.Background(), testAddress, day, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, canonicalAddress, recs[0].ClientAddress)
}

func TestHistory_InvalidAddressRejected(t *testing.T) {
	svc := newTestService(liquidBook(), &memLedger{})

	_, err := svc.History(context.Background(), "bogus", time.Now(), domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestHistory_NilLedgerUnavailable(t *testing.T) {
	svc := newTestService(liquidBook(), nil)

	_, err := svc.History(context.Background(), testAddress, time.Now(), domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

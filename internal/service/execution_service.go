// Package service wires the book store, simulator, ledger, and bus together
// behind the operations the transport layer exposes.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	rediscache "github.com/rohidaprem/crypto-order-book/internal/cache/redis"
	"github.com/rohidaprem/crypto-order-book/internal/domain"
	"github.com/rohidaprem/crypto-order-book/internal/simulator"
)

// BookReader is the read surface the service needs from the book store.
type BookReader interface {
	ReadTop(n int) domain.OrderBook
	ReadFull() domain.OrderBook
}

// ExecutionService simulates market orders against the current book, appends
// results to the ledger, and publishes execution events. The ledger and bus
// are best-effort: a failure there is logged but never blocks or alters the
// simulation result.
type ExecutionService struct {
	books  BookReader
	simCfg simulator.Config
	ledger domain.ExecutionStore
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewExecutionService creates an ExecutionService. ledger and bus may be nil
// when the process runs without persistence.
func NewExecutionService(
	books BookReader,
	simCfg simulator.Config,
	ledger domain.ExecutionStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ExecutionService {
	return &ExecutionService{
		books:  books,
		simCfg: simCfg,
		ledger: ledger,
		bus:    bus,
		logger: logger.With(slog.String("component", "execution_service")),
	}
}

// Execute simulates a market order for the given client against the current
// committed book. The result is always returned, even alongside
// ErrInsufficientLiquidity for a rejected order, so callers can surface the
// full rejection detail.
func (s *ExecutionService) Execute(ctx context.Context, clientAddress string, side domain.Side, amount float64) (domain.ExecutionResult, error) {
	if !common.IsHexAddress(clientAddress) {
		return domain.ExecutionResult{}, domain.ErrInvalidAddress
	}
	if !side.Valid() || amount <= 0 {
		return domain.ExecutionResult{}, domain.ErrInvalidRequest
	}

	bookSnap := s.books.ReadFull()
	if bookSnap.Empty() {
		return domain.ExecutionResult{}, domain.ErrStoreUnavailable
	}

	res := simulator.Simulate(bookSnap, side, amount, s.simCfg)

	now := time.Now().UTC()
	rec := domain.ExecutionRecord{
		ID:            uuid.NewString(),
		ClientAddress: common.HexToAddress(clientAddress).Hex(),
		TradeDate:     now.Truncate(24 * time.Hour),
		Symbol:        bookSnap.Symbol,
		Side:          side,
		Requested:     res.Requested,
		Filled:        res.Filled,
		AvgPrice:      res.AvgPrice,
		SlippagePct:   res.SlippagePct,
		Status:        res.Status,
		Fills:         res.Fills,
		CreatedAt:     now,
	}

	s.record(ctx, rec)
	s.publish(ctx, rec)

	s.logger.InfoContext(ctx, "order simulated",
		slog.String("id", rec.ID),
		slog.String("side", string(side)),
		slog.Float64("requested", res.Requested),
		slog.Float64("filled", res.Filled),
		slog.String("status", string(res.Status)),
	)

	if res.Status == domain.StatusRejected {
		return res, domain.ErrInsufficientLiquidity
	}
	return res, nil
}

// History returns the ledger entries for one client address on one calendar
// date, newest first.
func (s *ExecutionService) History(ctx context.Context, clientAddress string, day time.Time, opts domain.ListOpts) ([]domain.ExecutionRecord, error) {
	if !common.IsHexAddress(clientAddress) {
		return nil, domain.ErrInvalidAddress
	}
	if s.ledger == nil {
		return nil, domain.ErrStoreUnavailable
	}
	return s.ledger.ListByAddressDate(ctx, common.HexToAddress(clientAddress).Hex(), day, opts)
}

// record appends to the ledger. Ledger failure never fails the execution.
func (s *ExecutionService) record(ctx context.Context, rec domain.ExecutionRecord) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Insert(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "ledger insert failed",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// publish emits the execution event on the bus. Bus failure never fails the
// execution.
func (s *ExecutionService) publish(ctx context.Context, rec domain.ExecutionRecord) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal execution event",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, rediscache.ExecutionChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish execution event failed",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// ExecutionRunner is the service surface the execution handler depends on.
type ExecutionRunner interface {
	Execute(ctx context.Context, clientAddress string, side domain.Side, amount float64) (domain.ExecutionResult, error)
	History(ctx context.Context, clientAddress string, day time.Time, opts domain.ListOpts) ([]domain.ExecutionRecord, error)
}

// ExecutionHandler serves the market-order simulation and history endpoints.
type ExecutionHandler struct {
	svc    ExecutionRunner
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(svc ExecutionRunner, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		svc:    svc,
		logger: logger.With(slog.String("handler", "execution")),
	}
}

// executeRequest is the JSON body for POST /api/execute.
type executeRequest struct {
	ClientAddress string  `json:"client_address"`
	Side          string  `json:"side"`
	Amount        float64 `json:"amount"`
}

// Execute simulates a market order against the current book.
// POST /api/execute
func (h *ExecutionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.svc.Execute(r.Context(), req.ClientAddress, domain.Side(req.Side), req.Amount)
	if err != nil {
		// A rejected order still carries the full result so the caller can
		// see what (nothing) was filled.
		if errors.Is(err, domain.ErrInsufficientLiquidity) {
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// History lists the ledger entries for one client address on one calendar day.
// GET /api/history?address=0x...&date=2026-08-23
func (h *ExecutionHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	address := q.Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter is required")
		return
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if v := q.Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
			return
		}
		day = parsed
	}

	recs, err := h.svc.History(r.Context(), address, day, parseListOpts(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if recs == nil {
		recs = []domain.ExecutionRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":    address,
		"date":       day.Format("2006-01-02"),
		"executions": recs,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// stubRunner returns canned service responses.
type stubRunner struct {
	res     domain.ExecutionResult
	err     error
	history []domain.ExecutionRecord
}

func (s *stubRunner) Execute(context.Context, string, domain.Side, float64) (domain.ExecutionResult, error) {
	return s.res, s.err
}

func (s *stubRunner) History(context.Context, string, time.Time, domain.ListOpts) ([]domain.ExecutionRecord, error) {
	return s.history, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doExecute(t *testing.T, runner ExecutionRunner, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewExecutionHandler(runner, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Execute(rec, req)
	return rec
}

func TestExecute_FilledReturns200WithResult(t *testing.T) {
	runner := &stubRunner{res: domain.ExecutionResult{
		Requested: 1, Filled: 1, AvgPrice: 100150, SlippagePct: 0.15,
		Status: domain.StatusFilled,
		Fills:  []domain.FillDetail{{Price: 100000, Quantity: 0.5}, {Price: 100300, Quantity: 0.5}},
	}}

	rec := doExecute(t, runner, `{"client_address":"0xabc","side":"buy","amount":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, 100150.0, res.AvgPrice)
	assert.Len(t, res.Fills, 2)
}

func TestExecute_RejectedReturns422WithResultBody(t *testing.T) {
	runner := &stubRunner{
		res: domain.ExecutionResult{Requested: 1, Status: domain.StatusRejected},
		err: domain.ErrInsufficientLiquidity,
	}

	rec := doExecute(t, runner, `{"client_address":"0xabc","side":"buy","amount":1}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var res domain.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Zero(t, res.Filled)
}

func TestExecute_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAddress, http.StatusBadRequest},
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		rec := doExecute(t, &stubRunner{err: tc.err}, `{"client_address":"0xabc","side":"buy","amount":1}`)
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestExecute_MalformedBodyReturns400(t *testing.T) {
	rec := doExecute(t, &stubRunner{}, `{"amount": nope}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_RequiresAddress(t *testing.T) {
	h := NewExecutionHandler(&stubRunner{}, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_RejectsBadDate(t *testing.T) {
	h := NewExecutionHandler(&stubRunner{}, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/history?address=0xabc&date=23-08-2026", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_ReturnsEnvelope(t *testing.T) {
	runner := &stubRunner{history: []domain.ExecutionRecord{{ID: "a1", ClientAddress: "0xabc"}}}
	h := NewExecutionHandler(runner, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/history?address=0xabc&date=2026-08-23", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Address    string                   `json:"address"`
		Date       string                   `json:"date"`
		Executions []domain.ExecutionRecord `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0xabc", body.Address)
	assert.Equal(t, "2026-08-23", body.Date)
	require.Len(t, body.Executions, 1)
	assert.Equal(t, "a1", body.Executions[0].ID)
}

func TestHistory_EmptyResultIsEmptyArray(t *testing.T) {
	h := NewExecutionHandler(&stubRunner{}, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/history?address=0xabc", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"executions":[]`)
}

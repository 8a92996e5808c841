package domain

import "time"

// ExecutionStatus classifies the outcome of a simulated market order.
type ExecutionStatus string

const (
	// StatusFilled means the whole requested amount was filled.
	StatusFilled ExecutionStatus = "filled"
	// StatusPartial means some, but not all, of the requested amount was filled.
	StatusPartial ExecutionStatus = "partial"
	// StatusRejected means nothing was filled.
	StatusRejected ExecutionStatus = "rejected"
)

// FillDetail is one consumed level-fragment during an execution walk.
type FillDetail struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// ExecutionResult is the outcome of simulating a market order against a book
// snapshot. Invariants: Filled <= Requested; Status is rejected exactly when
// Filled is zero and filled exactly when Filled equals Requested within
// numeric precision.
type ExecutionResult struct {
	Requested   float64         `json:"requested"`
	Filled      float64         `json:"filled"`
	AvgPrice    float64         `json:"avg_price"`
	SlippagePct float64         `json:"slippage_pct"`
	Status      ExecutionStatus `json:"status"`
	Fills       []FillDetail    `json:"fills"`
}

// ExecutionRecord is the ledger entry appended after each simulation, keyed
// by client address and calendar date. The ledger is append-only storage;
// execution and distribution never depend on it.
type ExecutionRecord struct {
	ID            string          `json:"id"`
	ClientAddress string          `json:"client_address"`
	TradeDate     time.Time       `json:"trade_date"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Requested     float64         `json:"requested"`
	Filled        float64         `json:"filled"`
	AvgPrice      float64         `json:"avg_price"`
	SlippagePct   float64         `json:"slippage_pct"`
	Status        ExecutionStatus `json:"status"`
	Fills         []FillDetail    `json:"fills"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListOpts carries standard pagination parameters for ledger queries.
type ListOpts struct {
	Limit  int
	Offset int
}

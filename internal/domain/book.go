package domain

import "time"

// Side identifies which side of the book an order consumes or rests on.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// PriceLevel is a single price+quantity entry on one side of the book.
// Levels with zero or negative quantity are never stored; an exhausted
// level is removed, not zeroed.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is an immutable snapshot of bids and asks for one symbol.
// Bids are strictly descending by price, asks strictly ascending, and when
// both sides are non-empty the best bid is below the best ask. The store
// replaces whole OrderBook values; nothing mutates one in place.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid level, if any.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask level, if any.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Empty reports whether both sides of the book are empty.
func (b OrderBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// DeltaMessage is the payload broadcast to subscribers after each committed
// refresh. It carries the top-N levels of each side plus the capture
// timestamp. Despite the name it is a full replacement of top-of-book state,
// not an incremental patch: consumers must treat every message as
// authoritative current state.
type DeltaMessage struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

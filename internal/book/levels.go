// Package book holds the canonical in-memory order book: level
// normalization, invariant validation, and the atomically-swapped store.
package book

import (
	"fmt"
	"sort"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// NormalizeLevels prepares one side of a raw quote set for commit: it drops
// levels with non-positive price or quantity, merges duplicate prices by
// summing quantity, and sorts bids descending / asks ascending. The input
// slice is not modified.
func NormalizeLevels(levels []domain.PriceLevel, side domain.Side) []domain.PriceLevel {
	byPrice := make(map[float64]float64, len(levels))
	for _, lvl := range levels {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			continue
		}
		byPrice[lvl.Price] += lvl.Quantity
	}

	out := make([]domain.PriceLevel, 0, len(byPrice))
	for price, qty := range byPrice {
		out = append(out, domain.PriceLevel{Price: price, Quantity: qty})
	}

	if side == domain.SideBuy {
		sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	}
	return out
}

// Normalize returns a copy of the book with both sides normalized. Bids are
// treated as the buy side, asks as the sell side.
func Normalize(b domain.OrderBook) domain.OrderBook {
	return domain.OrderBook{
		Symbol:    b.Symbol,
		Bids:      NormalizeLevels(b.Bids, domain.SideBuy),
		Asks:      NormalizeLevels(b.Asks, domain.SideSell),
		Timestamp: b.Timestamp,
	}
}

// Validate checks the book invariants required before a commit: bids strictly
// descending by price, asks strictly ascending, every level positive, and no
// crossed book (best bid < best ask when both sides are non-empty). It
// returns nil when the book is acceptable.
func Validate(b domain.OrderBook) *domain.ValidationError {
	for i, lvl := range b.Bids {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			return &domain.ValidationError{
				Invariant: "positive_levels",
				Detail:    fmt.Sprintf("bid level %d has price=%g quantity=%g", i, lvl.Price, lvl.Quantity),
			}
		}
		if i > 0 && b.Bids[i-1].Price <= lvl.Price {
			return &domain.ValidationError{
				Invariant: "bids_descending",
				Detail:    fmt.Sprintf("bid prices %g then %g at index %d", b.Bids[i-1].Price, lvl.Price, i),
			}
		}
	}

	for i, lvl := range b.Asks {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			return &domain.ValidationError{
				Invariant: "positive_levels",
				Detail:    fmt.Sprintf("ask level %d has price=%g quantity=%g", i, lvl.Price, lvl.Quantity),
			}
		}
		if i > 0 && b.Asks[i-1].Price >= lvl.Price {
			return &domain.ValidationError{
				Invariant: "asks_ascending",
				Detail:    fmt.Sprintf("ask prices %g then %g at index %d", b.Asks[i-1].Price, lvl.Price, i),
			}
		}
	}

	if len(b.Bids) > 0 && len(b.Asks) > 0 && b.Bids[0].Price >= b.Asks[0].Price {
		return &domain.ValidationError{
			Invariant: "crossed_book",
			Detail:    fmt.Sprintf("best bid %g >= best ask %g", b.Bids[0].Price, b.Asks[0].Price),
		}
	}

	return nil
}

// copyLevels clones a level slice so a committed book shares no backing
// storage with its caller.
func copyLevels(levels []domain.PriceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(levels))
	copy(out, levels)
	return out
}

// Package simulator computes simulated market-order executions against a
// book snapshot. Simulation is a pure function: it never mutates the input
// book, performs no I/O, and is deterministic for a given book and request.
package simulator

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// Config holds output rounding precision. Rounding is applied only at the
// output boundary, not mid-walk, to avoid compounding error across levels.
type Config struct {
	PricePrecision    int32
	QuantityPrecision int32
	SlippagePrecision int32
}

// DefaultConfig matches typical crypto venue precision.
func DefaultConfig() Config {
	return Config{PricePrecision: 2, QuantityPrecision: 8, SlippagePrecision: 4}
}

// Simulate walks the book greedily and returns the fills, weighted-average
// price, slippage, and status for a market order of the given side and
// amount. Buys consume the ask side (lowest price first); sells consume the
// bid side (highest price first). A non-positive amount or an empty consumed
// side yields a rejected result with no fills.
func Simulate(book domain.OrderBook, side domain.Side, amount float64, cfg Config) domain.ExecutionResult {
	res := domain.ExecutionResult{
		Requested: roundTo(amount, cfg.QuantityPrecision),
		Status:    domain.StatusRejected,
	}

	var levels []domain.PriceLevel
	if side == domain.SideBuy {
		levels = book.Asks
	} else {
		levels = book.Bids
	}

	if amount <= 0 || len(levels) == 0 {
		return res
	}

	bestPrice := levels[0].Price
	remaining := amount
	var filled, cost float64

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lvl.Quantity)
		res.Fills = append(res.Fills, domain.FillDetail{
			Price:    roundTo(lvl.Price, cfg.PricePrecision),
			Quantity: roundTo(take, cfg.QuantityPrecision),
		})
		filled += take
		cost += take * lvl.Price
		remaining -= take
	}

	if filled <= 0 {
		res.Fills = nil
		return res
	}

	avg := cost / filled
	slippage := (avg - bestPrice) / bestPrice * 100

	res.Filled = roundTo(filled, cfg.QuantityPrecision)
	res.AvgPrice = roundTo(avg, cfg.PricePrecision)
	res.SlippagePct = roundTo(slippage, cfg.SlippagePrecision)

	// Status is classified on the rounded quantities so that
	// status == filled exactly when Filled == Requested in the output. A
	// walk whose float residue vanishes at the quantity quantum counts as
	// fully filled.
	if res.Filled >= res.Requested {
		res.Status = domain.StatusFilled
		res.Filled = res.Requested
	} else {
		res.Status = domain.StatusPartial
	}

	return res
}

// roundTo rounds half-up at the given number of decimal places using exact
// decimal arithmetic, so output values match what a venue would display.
func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

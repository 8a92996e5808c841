package simulator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

func testBook() domain.OrderBook {
	return domain.OrderBook{
		Symbol: "BTCUSDT",
		Bids: []domain.PriceLevel{
			{Price: 99900.0, Quantity: 0.4},
			{Price: 99800.0, Quantity: 0.6},
		},
		Asks: []domain.PriceLevel{
			{Price: 100000.0, Quantity: 0.5},
			{Price: 100300.0, Quantity: 0.5},
			{Price: 100500.0, Quantity: 2.0},
		},
	}
}

func TestSimulate_BuyFullyFilledAcrossLevels(t *testing.T) {
	res := Simulate(testBook(), domain.SideBuy, 1.0, DefaultConfig())

	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, 1.0, res.Requested)
	assert.Equal(t, 1.0, res.Filled)
	// 0.5 @ 100000 + 0.5 @ 100300 -> weighted average 100150.
	assert.Equal(t, 100150.0, res.AvgPrice)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, 100000.0, res.Fills[0].Price)
	assert.Equal(t, 0.5, res.Fills[0].Quantity)
	assert.Equal(t, 100300.0, res.Fills[1].Price)
	assert.Equal(t, 0.5, res.Fills[1].Quantity)
	// Walking past the best ask costs more than the best ask.
	assert.Greater(t, res.SlippagePct, 0.0)
}

func TestSimulate_BuyAtBestOnlyHasZeroSlippage(t *testing.T) {
	res := Simulate(testBook(), domain.SideBuy, 0.5, DefaultConfig())

	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, 100000.0, res.AvgPrice)
	assert.Equal(t, 0.0, res.SlippagePct)
	assert.Len(t, res.Fills, 1)
}

func TestSimulate_SellPartialFill(t *testing.T) {
	// Total bid depth is 1.0; ask for more.
	res := Simulate(testBook(), domain.SideSell, 1.5, DefaultConfig())

	assert.Equal(t, domain.StatusPartial, res.Status)
	assert.Equal(t, 1.5, res.Requested)
	assert.Equal(t, 1.0, res.Filled)
	require.Len(t, res.Fills, 2)
	// Sells walk bids from the highest price down.
	assert.Equal(t, 99900.0, res.Fills[0].Price)
	assert.Equal(t, 99800.0, res.Fills[1].Price)
	// Selling below the best bid is negative slippage for the seller.
	assert.Less(t, res.SlippagePct, 0.0)
}

func TestSimulate_RejectedWhenSideEmpty(t *testing.T) {
	b := testBook()
	b.Asks = nil

	res := Simulate(b, domain.SideBuy, 1.0, DefaultConfig())

	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Zero(t, res.Filled)
	assert.Zero(t, res.AvgPrice)
	assert.Zero(t, res.SlippagePct)
	assert.Empty(t, res.Fills)
}

func TestSimulate_RejectedWhenAmountNotPositive(t *testing.T) {
	for _, amount := range []float64{0, -1} {
		res := Simulate(testBook(), domain.SideBuy, amount, DefaultConfig())
		assert.Equal(t, domain.StatusRejected, res.Status)
		assert.Empty(t, res.Fills)
	}
}

func TestSimulate_DoesNotMutateBook(t *testing.T) {
	b := testBook()
	_ = Simulate(b, domain.SideBuy, 1.0, DefaultConfig())

	assert.Equal(t, 0.5, b.Asks[0].Quantity)
	assert.Equal(t, 0.5, b.Asks[1].Quantity)
}

func TestSimulate_Deterministic(t *testing.T) {
	first := Simulate(testBook(), domain.SideBuy, 1.2, DefaultConfig())
	second := Simulate(testBook(), domain.SideBuy, 1.2, DefaultConfig())

	assert.Equal(t, first, second)
}

func TestSimulate_RoundingPrecision(t *testing.T) {
	b := domain.OrderBook{
		Asks: []domain.PriceLevel{
			{Price: 100.333333, Quantity: 1},
			{Price: 100.666666, Quantity: 1},
		},
	}

	res := Simulate(b, domain.SideBuy, 2.0, Config{PricePrecision: 2, QuantityPrecision: 4})

	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, 100.5, res.AvgPrice)
	assert.Equal(t, 100.33, res.Fills[0].Price)
	assert.Equal(t, 100.67, res.Fills[1].Price)
}

func TestSimulate_SlippagePrecisionConfigurable(t *testing.T) {
	b := domain.OrderBook{
		Asks: []domain.PriceLevel{
			{Price: 100.0, Quantity: 0.5},
			{Price: 100.333333, Quantity: 0.5},
		},
	}
	// Weighted average 100.1666665 -> slippage 0.1666665%.
	coarse := Simulate(b, domain.SideBuy, 1.0, Config{PricePrecision: 2, QuantityPrecision: 8, SlippagePrecision: 2})
	assert.Equal(t, 0.17, coarse.SlippagePct)

	fine := Simulate(b, domain.SideBuy, 1.0, Config{PricePrecision: 2, QuantityPrecision: 8, SlippagePrecision: 4})
	assert.Equal(t, 0.1667, fine.SlippagePct)
}

func TestSimulate_ResidueWithinQuantumIsFilled(t *testing.T) {
	// Available depth is shy of the request by less than half the quantity
	// quantum, so the rounded fill equals the request.
	b := domain.OrderBook{
		Asks: []domain.PriceLevel{{Price: 100.0, Quantity: 0.999999996}},
	}

	res := Simulate(b, domain.SideBuy, 1.0, DefaultConfig())

	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, res.Requested, res.Filled)
	assert.Equal(t, 1.0, res.Filled)
}

func TestSimulate_FilledNeverExceedsRequested(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		b := testBook()
		amount := rng.Float64() * 5
		side := domain.SideBuy
		if rng.Intn(2) == 0 {
			side = domain.SideSell
		}

		res := Simulate(b, side, amount, DefaultConfig())

		assert.LessOrEqual(t, res.Filled, res.Requested,
			"filled %g exceeds requested %g", res.Filled, res.Requested)

		switch res.Status {
		case domain.StatusRejected:
			assert.Zero(t, res.Filled)
		case domain.StatusFilled:
			assert.Equal(t, res.Requested, res.Filled)
		case domain.StatusPartial:
			assert.Greater(t, res.Filled, 0.0)
			assert.Less(t, res.Filled, res.Requested)
		}
	}
}

package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

func TestNormalizeLevels_SortsBidsDescending(t *testing.T) {
	raw := []domain.PriceLevel{
		{Price: 100.0, Quantity: 1},
		{Price: 102.0, Quantity: 2},
		{Price: 101.0, Quantity: 3},
	}

	got := NormalizeLevels(raw, domain.SideBuy)

	require.Len(t, got, 3)
	assert.Equal(t, 102.0, got[0].Price)
	assert.Equal(t, 101.0, got[1].Price)
	assert.Equal(t, 100.0, got[2].Price)
}

func TestNormalizeLevels_SortsAsksAscending(t *testing.T) {
	raw := []domain.PriceLevel{
		{Price: 105.0, Quantity: 1},
		{Price: 103.0, Quantity: 2},
		{Price: 104.0, Quantity: 3},
	}

	got := NormalizeLevels(raw, domain.SideSell)

	require.Len(t, got, 3)
	assert.Equal(t, 103.0, got[0].Price)
	assert.Equal(t, 104.0, got[1].Price)
	assert.Equal(t, 105.0, got[2].Price)
}

func TestNormalizeLevels_DropsNonPositive(t *testing.T) {
	raw := []domain.PriceLevel{
		{Price: 100.0, Quantity: 1},
		{Price: 0, Quantity: 5},
		{Price: 101.0, Quantity: 0},
		{Price: -1, Quantity: 2},
		{Price: 102.0, Quantity: -3},
	}

	got := NormalizeLevels(raw, domain.SideBuy)

	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Price)
}

func TestNormalizeLevels_MergesDuplicatePrices(t *testing.T) {
	raw := []domain.PriceLevel{
		{Price: 100.0, Quantity: 1},
		{Price: 100.0, Quantity: 2.5},
	}

	got := NormalizeLevels(raw, domain.SideSell)

	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Price)
	assert.InDelta(t, 3.5, got[0].Quantity, 1e-12)
}

func TestNormalizeLevels_DoesNotMutateInput(t *testing.T) {
	raw := []domain.PriceLevel{
		{Price: 101.0, Quantity: 1},
		{Price: 100.0, Quantity: 2},
	}

	_ = NormalizeLevels(raw, domain.SideSell)

	assert.Equal(t, 101.0, raw[0].Price)
	assert.Equal(t, 100.0, raw[1].Price)
}

func TestValidate_AcceptsWellFormedBook(t *testing.T) {
	b := domain.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []domain.PriceLevel{{Price: 100, Quantity: 1}, {Price: 99, Quantity: 2}},
		Asks:   []domain.PriceLevel{{Price: 101, Quantity: 1}, {Price: 102, Quantity: 2}},
	}

	assert.Nil(t, Validate(b))
}

func TestValidate_RejectsUnsortedBids(t *testing.T) {
	b := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 99, Quantity: 1}, {Price: 100, Quantity: 2}},
	}

	verr := Validate(b)
	require.NotNil(t, verr)
	assert.Equal(t, "bids_descending", verr.Invariant)
}

func TestValidate_RejectsUnsortedAsks(t *testing.T) {
	b := domain.OrderBook{
		Asks: []domain.PriceLevel{{Price: 102, Quantity: 1}, {Price: 101, Quantity: 2}},
	}

	verr := Validate(b)
	require.NotNil(t, verr)
	assert.Equal(t, "asks_ascending", verr.Invariant)
}

func TestValidate_RejectsDuplicateBidPrices(t *testing.T) {
	b := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 100, Quantity: 1}, {Price: 100, Quantity: 2}},
	}

	verr := Validate(b)
	require.NotNil(t, verr)
	assert.Equal(t, "bids_descending", verr.Invariant)
}

func TestValidate_RejectsNonPositiveLevels(t *testing.T) {
	b := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 100, Quantity: 0}},
	}

	verr := Validate(b)
	require.NotNil(t, verr)
	assert.Equal(t, "positive_levels", verr.Invariant)
}

func TestValidate_RejectsCrossedBook(t *testing.T) {
	b := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 101, Quantity: 1}},
		Asks: []domain.PriceLevel{{Price: 100, Quantity: 1}},
	}

	verr := Validate(b)
	require.NotNil(t, verr)
	assert.Equal(t, "crossed_book", verr.Invariant)
}

func TestNormalize_ProducesValidatableBook(t *testing.T) {
	raw := domain.OrderBook{
		Symbol: "BTCUSDT",
		Bids: []domain.PriceLevel{
			{Price: 99, Quantity: 1},
			{Price: 100, Quantity: 2},
			{Price: 100, Quantity: 3},
			{Price: 0, Quantity: 4},
		},
		Asks: []domain.PriceLevel{
			{Price: 102, Quantity: 1},
			{Price: 101, Quantity: 2},
		},
	}

	got := Normalize(raw)

	assert.Nil(t, Validate(got))
	require.Len(t, got.Bids, 2)
	assert.InDelta(t, 5.0, got.Bids[0].Quantity, 1e-12) // merged duplicates
}

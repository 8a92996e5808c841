package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// BookMirror implements domain.BookMirror using Redis sorted sets and hashes,
// so a server-mode process can read the book committed by a refresh-mode
// process.
//
// Key schema:
//
//	book:{symbol}:bids      - sorted set of bid prices (score = price)
//	book:{symbol}:asks      - sorted set of ask prices (score = price)
//	book:{symbol}:bid:qty   - hash mapping price -> quantity for bids
//	book:{symbol}:ask:qty   - hash mapping price -> quantity for asks
//	book:{symbol}:meta      - hash with "ts" (capture time, unix nanos)
type BookMirror struct {
	rdb *redis.Client
}

// NewBookMirror creates a BookMirror backed by the given Client.
func NewBookMirror(c *Client) *BookMirror {
	return &BookMirror{rdb: c.Underlying()}
}

func mirrorBidsKey(symbol string) string   { return "book:" + symbol + ":bids" }
func mirrorAsksKey(symbol string) string   { return "book:" + symbol + ":asks" }
func mirrorBidQtyKey(symbol string) string { return "book:" + symbol + ":bid:qty" }
func mirrorAskQtyKey(symbol string) string { return "book:" + symbol + ":ask:qty" }
func mirrorMetaKey(symbol string) string   { return "book:" + symbol + ":meta" }

// SetBook replaces the mirrored book for a symbol in one transaction: it
// clears the previous keys and repopulates both sides plus the metadata.
func (m *BookMirror) SetBook(ctx context.Context, book domain.OrderBook) error {
	bidsKey := mirrorBidsKey(book.Symbol)
	asksKey := mirrorAsksKey(book.Symbol)
	bidQtyKey := mirrorBidQtyKey(book.Symbol)
	askQtyKey := mirrorAskQtyKey(book.Symbol)
	metaKey := mirrorMetaKey(book.Symbol)

	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, bidsKey, asksKey, bidQtyKey, askQtyKey, metaKey)

	for _, lvl := range book.Bids {
		priceStr := strconv.FormatFloat(lvl.Price, 'f', -1, 64)
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, bidQtyKey, priceStr, strconv.FormatFloat(lvl.Quantity, 'f', -1, 64))
	}
	for _, lvl := range book.Asks {
		priceStr := strconv.FormatFloat(lvl.Price, 'f', -1, 64)
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, askQtyKey, priceStr, strconv.FormatFloat(lvl.Quantity, 'f', -1, 64))
	}

	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(book.Timestamp.UnixNano(), 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book %s: %w", book.Symbol, err)
	}
	return nil
}

// GetBook reconstructs the mirrored book for a symbol. It returns
// domain.ErrNotFound when no book has been mirrored yet.
func (m *BookMirror) GetBook(ctx context.Context, symbol string) (domain.OrderBook, error) {
	pipe := m.rdb.Pipeline()

	// Bids highest first, asks lowest first, matching the store's ordering.
	bidsCmd := pipe.ZRevRangeWithScores(ctx, mirrorBidsKey(symbol), 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, mirrorAsksKey(symbol), 0, -1)
	bidQtyCmd := pipe.HGetAll(ctx, mirrorBidQtyKey(symbol))
	askQtyCmd := pipe.HGetAll(ctx, mirrorAskQtyKey(symbol))
	metaCmd := pipe.HGetAll(ctx, mirrorMetaKey(symbol))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s: %w", symbol, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.OrderBook{}, domain.ErrNotFound
	}

	book := domain.OrderBook{Symbol: symbol}
	if tsStr, ok := meta["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			book.Timestamp = time.Unix(0, tsNano).UTC()
		}
	}

	bidQty, _ := bidQtyCmd.Result()
	book.Bids = buildLevels(bidsCmd.Val(), bidQty)
	askQty, _ := askQtyCmd.Result()
	book.Asks = buildLevels(asksCmd.Val(), askQty)

	return book, nil
}

// PublishDelta adapts SetBook to the domain.DeltaPublisher contract so the
// scheduler can mirror every commit without knowing about Redis.
func (m *BookMirror) PublishDelta(ctx context.Context, delta domain.DeltaMessage) error {
	return m.SetBook(ctx, domain.OrderBook{
		Symbol:    delta.Symbol,
		Bids:      delta.Bids,
		Asks:      delta.Asks,
		Timestamp: delta.Timestamp,
	})
}

func buildLevels(zs []redis.Z, quantities map[string]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		qty := 0.0
		if qtyStr, exists := quantities[priceStr]; exists {
			qty, _ = strconv.ParseFloat(qtyStr, 64)
		}
		levels = append(levels, domain.PriceLevel{Price: z.Score, Quantity: qty})
	}
	return levels
}

// Compile-time interface checks.
var (
	_ domain.BookMirror     = (*BookMirror)(nil)
	_ domain.DeltaPublisher = (*BookMirror)(nil)
)

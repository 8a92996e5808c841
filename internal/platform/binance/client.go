// Package binance is the upstream exchange connector. It fetches order book
// depth over REST and retries transient failures with bounded exponential
// backoff before surfacing a terminal fetch error for the cycle.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// Config holds the connector's endpoint and retry budget.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.binance.com".
	BaseURL string
	Timeout time.Duration

	// RetryMaxAttempts bounds the total number of fetch attempts.
	RetryMaxAttempts int
	// RetryInitialDelay is the backoff before the second attempt; each
	// subsequent delay is the previous one times RetryMultiplier.
	RetryInitialDelay time.Duration
	RetryMultiplier   float64
}

// Client is the REST depth client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a connector from the given config, applying defaults for
// unset retry parameters (3 attempts, 250ms initial delay, 2x multiplier).
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMaxAttempts < 1 {
		cfg.RetryMaxAttempts = 3
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = 250 * time.Millisecond
	}
	if cfg.RetryMultiplier < 1 {
		cfg.RetryMultiplier = 2
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "binance")),
	}
}

// FetchQuotes returns the current depth for a symbol. On transient failures
// (network errors, 5xx, 429) it retries with exponential backoff up to the
// configured attempt bound, then returns a *domain.FetchError. Returned
// levels are passed through as received; ordering is the caller's problem.
func (c *Client) FetchQuotes(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	var lastErr error
	delay := c.cfg.RetryInitialDelay

	for attempt := 1; attempt <= c.cfg.RetryMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return domain.OrderBook{}, &domain.FetchError{Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.cfg.RetryMultiplier)
		}

		book, retryable, err := c.fetchOnce(ctx, symbol, depth)
		if err == nil {
			return book, nil
		}
		lastErr = err

		if !retryable {
			return domain.OrderBook{}, &domain.FetchError{Attempts: attempt, Err: err}
		}

		c.logger.Debug("depth fetch attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	return domain.OrderBook{}, &domain.FetchError{Attempts: c.cfg.RetryMaxAttempts, Err: lastErr}
}

// fetchOnce performs a single depth request. The second return value reports
// whether the failure is worth retrying.
func (c *Client) fetchOnce(ctx context.Context, symbol string, depth int) (domain.OrderBook, bool, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if depth > 0 {
		params.Set("limit", strconv.Itoa(depth))
	}
	fullURL := c.cfg.BaseURL + "/api/v3/depth?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.OrderBook{}, false, fmt.Errorf("binance: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OrderBook{}, true, fmt.Errorf("binance: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OrderBook{}, true, fmt.Errorf("binance: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		return domain.OrderBook{}, retryable,
			fmt.Errorf("binance: HTTP %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
	}

	var dr depthResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return domain.OrderBook{}, false, fmt.Errorf("binance: decode depth: %w", err)
	}

	book := domain.OrderBook{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
	}
	if book.Bids, err = parseLevels(dr.Bids); err != nil {
		return domain.OrderBook{}, false, fmt.Errorf("binance: parse bids: %w", err)
	}
	if book.Asks, err = parseLevels(dr.Asks); err != nil {
		return domain.OrderBook{}, false, fmt.Errorf("binance: parse asks: %w", err)
	}

	return book, false, nil
}

// parseLevels converts [price, quantity] string pairs to typed levels.
func parseLevels(raw [][2]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", pair[0], err)
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", pair[1], err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// Compile-time interface check.
var _ domain.QuoteSource = (*Client)(nil)

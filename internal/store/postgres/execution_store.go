package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore: the append-only ledger of
// simulated executions keyed by client address and calendar date.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, client_address, trade_date, symbol, side,
	requested, filled, avg_price, slippage_pct, status, fills, created_at`

// Insert appends one execution record.
func (s *ExecutionStore) Insert(ctx context.Context, rec domain.ExecutionRecord) error {
	fills, err := json.Marshal(rec.Fills)
	if err != nil {
		return fmt.Errorf("postgres: marshal fills: %w", err)
	}

	const query = `
		INSERT INTO executions (
			id, client_address, trade_date, symbol, side,
			requested, filled, avg_price, slippage_pct, status, fills, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12
		)`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.ClientAddress, rec.TradeDate, rec.Symbol, rec.Side,
		rec.Requested, rec.Filled, rec.AvgPrice, rec.SlippagePct, rec.Status,
		fills, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// ListByAddressDate returns executions for one client address on one calendar
// date, newest first, with pagination.
func (s *ExecutionStore) ListByAddressDate(ctx context.Context, address string, day time.Time, opts domain.ListOpts) ([]domain.ExecutionRecord, error) {
	query := `SELECT ` + executionSelectCols + `
		FROM executions
		WHERE client_address = $1 AND trade_date = $2
		ORDER BY created_at DESC`
	args := []any{address, day}
	argIdx := 3

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions by address+date: %w", err)
	}
	defer rows.Close()

	recs, err := scanExecutionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan executions: %w", err)
	}
	return recs, nil
}

// ListBefore returns all executions created strictly before the given time,
// oldest first, for archiving.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error) {
	query := `SELECT ` + executionSelectCols + `
		FROM executions WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions before: %w", err)
	}
	defer rows.Close()
	return scanExecutionRows(rows)
}

// DeleteBefore deletes all executions created before the given time and
// returns the number deleted.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanExecutionRows(rows pgx.Rows) ([]domain.ExecutionRecord, error) {
	var recs []domain.ExecutionRecord
	for rows.Next() {
		var rec domain.ExecutionRecord
		var fills []byte
		if err := rows.Scan(
			&rec.ID, &rec.ClientAddress, &rec.TradeDate, &rec.Symbol, &rec.Side,
			&rec.Requested, &rec.Filled, &rec.AvgPrice, &rec.SlippagePct,
			&rec.Status, &fills, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(fills) > 0 {
			if err := json.Unmarshal(fills, &rec.Fills); err != nil {
				return nil, fmt.Errorf("unmarshal fills for %s: %w", rec.ID, err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// ExecutionArchiveStore is the narrow view of the execution ledger the
// archiver needs: time-ranged reads plus deletion of archived rows.
type ExecutionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// multipartThreshold is the payload size above which uploads switch to the
// multipart path.
const multipartThreshold = 8 * 1024 * 1024

// Archiver moves aged execution records out of the primary ledger into
// object storage as JSONL files. Rows are deleted from the ledger only
// after the upload succeeds.
type Archiver struct {
	writer    domain.BlobWriter
	store     ExecutionArchiveStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver. retention is how long records stay in the
// primary ledger; interval is how often the Run loop checks for aged rows.
func NewArchiver(writer domain.BlobWriter, store ExecutionArchiveStore, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run executes archive cycles on the configured interval until the context
// is cancelled. A failed cycle is logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("archiver started",
		slog.Duration("interval", a.interval),
		slog.Duration("retention", a.retention),
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-a.retention)
			count, err := a.ArchiveExecutions(ctx, cutoff)
			if err != nil {
				a.logger.Error("archive cycle failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("archive cycle complete", slog.Int64("archived", count))
			}
		}
	}
}

// ArchiveExecutions queries all executions created before the cutoff,
// serializes them to JSONL, uploads the file to object storage, and then
// deletes the archived rows from the ledger. The count of archived records
// is returned.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := archivePath("executions", before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(recs)), fmt.Errorf("s3blob: archive executions delete: %w", err)
	}

	a.logger.Info("executions archived",
		slog.String("path", path),
		slog.Int("count", len(recs)),
		slog.Int64("deleted", deleted),
	)

	return int64(len(recs)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// calendar day of the cutoff time.
//
//	archive/executions/2026-08-23.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// IngestLog implements pipeline.IngestLogStore on Postgres, sharing the
// event store's pool.
type IngestLog struct {
	pool  dbPool
	table string
}

// NewIngestLog builds the append-only log writer.
func NewIngestLog(pool dbPool, table string) (*IngestLog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "ingestion_log"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &IngestLog{pool: pool, table: table}, nil
}

// Append inserts one log row. The log is operational only; failures are
// reported but safe to ignore.
func (l *IngestLog) Append(ctx context.Context, entry pipeline.IngestLogEntry) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (source_id, status, message, at) VALUES ($1, $2, $3, $4)`,
		l.table,
	)
	if _, err := l.pool.Exec(ctx, query, entry.SourceID, string(entry.Status), entry.Message, entry.At); err != nil {
		return fmt.Errorf("append ingest log: %w", err)
	}
	return nil
}

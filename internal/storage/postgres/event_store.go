// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// uniqueViolationCode is the Postgres SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

// EventStoreConfig controls the Postgres connection pool.
type EventStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// EventStore implements pipeline.EventStore on Postgres.
type EventStore struct {
	pool  dbPool
	table string
}

// NewEventStore creates a Postgres-backed EventStore using the provided config.
func NewEventStore(ctx context.Context, cfg EventStoreConfig) (*EventStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "events"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &EventStore{pool: pool, table: table}, nil
}

// NewEventStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewEventStoreWithPool(pool dbPool, table string) (*EventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "events"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &EventStore{pool: pool, table: table}, nil
}

// Pool exposes the underlying pool so sibling stores can share connections.
func (s *EventStore) Pool() dbPool {
	return s.pool
}

// Close releases the underlying pool resources.
func (s *EventStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const eventColumns = `id, source, source_id, title, description, long_description,
start_time_utc, end_time_utc, timezone, venue_name, city, country, lat, lng,
categories, tags, image_url, organizer_name, external_url, last_seen_at`

// FindByKey returns the event for (source, sourceID) or ErrNotFound.
func (s *EventStore) FindByKey(ctx context.Context, source, sourceID string) (*pipeline.CanonicalEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE source = $1 AND source_id = $2`, eventColumns, s.table)
	var ev pipeline.CanonicalEvent
	err := s.pool.QueryRow(ctx, query, source, sourceID).Scan(
		&ev.ID, &ev.Source, &ev.SourceID, &ev.Title, &ev.Description, &ev.LongDescription,
		&ev.StartTimeUTC, &ev.EndTimeUTC, &ev.Timezone, &ev.VenueName, &ev.City, &ev.Country,
		&ev.Lat, &ev.Lng, &ev.Categories, &ev.Tags, &ev.ImageURL, &ev.OrganizerName,
		&ev.ExternalURL, &ev.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pipeline.ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &ev, nil
}

// Insert stores a new event. A unique-constraint conflict on the upsert key
// maps to ErrUniqueViolation so callers can treat it as a soft duplicate.
func (s *EventStore) Insert(ctx context.Context, event pipeline.CanonicalEvent) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES
($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`, s.table, eventColumns)
	_, err := s.pool.Exec(ctx, query,
		event.ID, event.Source, event.SourceID, event.Title, event.Description, event.LongDescription,
		event.StartTimeUTC, event.EndTimeUTC, event.Timezone, event.VenueName, event.City, event.Country,
		event.Lat, event.Lng, event.Categories, event.Tags, event.ImageURL, event.OrganizerName,
		event.ExternalURL, event.LastSeenAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: (%s, %s)", pipeline.ErrUniqueViolation, event.Source, event.SourceID)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields and refreshes last_seen_at.
func (s *EventStore) Update(ctx context.Context, event pipeline.CanonicalEvent) error {
	query := fmt.Sprintf(`UPDATE %s SET
title = $3, description = $4, long_description = $5, start_time_utc = $6,
end_time_utc = $7, timezone = $8, venue_name = $9, city = $10, country = $11,
lat = $12, lng = $13, categories = $14, tags = $15, image_url = $16,
organizer_name = $17, external_url = $18, last_seen_at = $19
WHERE source = $1 AND source_id = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		event.Source, event.SourceID, event.Title, event.Description, event.LongDescription,
		event.StartTimeUTC, event.EndTimeUTC, event.Timezone, event.VenueName, event.City, event.Country,
		event.Lat, event.Lng, event.Categories, event.Tags, event.ImageURL, event.OrganizerName,
		event.ExternalURL, event.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: (%s, %s)", pipeline.ErrNotFound, event.Source, event.SourceID)
	}
	return nil
}

// DeleteStale removes events last seen before cutoff and returns the count.
func (s *EventStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE last_seen_at < $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale events: %w", err)
	}
	return tag.RowsAffected(), nil
}

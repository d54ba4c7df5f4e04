package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bean-lens/beanlens/internal/dictionary"
)

// DefaultTable holds unknown queue events in PostgreSQL
const DefaultTable = "unknown_queue_events"

// DB is the part of pgxpool.Pool the PostgreSQL store uses
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const insertColumnsSQL = "domain, raw, reason, count, compound_raw_events, ts, source, " +
	"confidence, match_kind, method, normalized_key, dictionary_version, request_id"

// selectColumnsSQL reads rows written by either receiver generation. Older
// tables carry the match kind in method and allow a NULL normalized_key.
const selectColumnsSQL = "domain, raw, reason, count, compound_raw_events, ts, source, " +
	"confidence, COALESCE(NULLIF(match_kind, ''), method, ''), COALESCE(normalized_key, ''), " +
	"COALESCE(dictionary_version, ''), request_id"

// upgradeColumns are added to tables created before these columns existed
var upgradeColumns = []string{
	"count INTEGER NOT NULL DEFAULT 1",
	"compound_raw_events INTEGER NOT NULL DEFAULT 0",
	"source TEXT NOT NULL DEFAULT ''",
	"confidence DOUBLE PRECISION NOT NULL DEFAULT 0",
	"match_kind TEXT NOT NULL DEFAULT ''",
	"method TEXT",
	"normalized_key TEXT",
	"dictionary_version TEXT NOT NULL DEFAULT ''",
	"request_id TEXT NOT NULL DEFAULT ''",
	"received_at TIMESTAMPTZ NOT NULL DEFAULT now()",
}

// PostgresStore appends events to and reads them from a PostgreSQL table.
// It serves as the receiver's sink and as an analyzer source.
type PostgresStore struct {
	db    DB
	table string
}

// NewPostgresStore creates a store over table, or DefaultTable when empty
func NewPostgresStore(db DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// EnsureSchema creates the events table when it does not exist and adds any
// column missing from a table written by an older receiver.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	domain TEXT NOT NULL,
	raw TEXT NOT NULL,
	reason TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 1,
	compound_raw_events INTEGER NOT NULL DEFAULT 0,
	ts TIMESTAMPTZ NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_kind TEXT NOT NULL DEFAULT '',
	method TEXT,
	normalized_key TEXT,
	dictionary_version TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)}
	for _, column := range upgradeColumns {
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", s.table, column))
	}
	// Older receivers required method.
	statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN method DROP NOT NULL", s.table))

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}

// Append inserts event as one row
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12)",
		s.table, insertColumnsSQL)
	_, err := s.db.Exec(ctx, query,
		string(event.Domain),
		event.Raw,
		string(event.Reason),
		event.Count,
		event.CompoundRawEvents,
		event.Timestamp,
		event.Source,
		event.Confidence,
		event.MatchKind,
		event.NormalizedKey,
		event.DictionaryVersion,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert unknown queue event: %w", err)
	}
	return nil
}

// Events selects the events inside w ordered by timestamp
func (s *PostgresStore) Events(ctx context.Context, w Window) ([]Event, error) {
	var conditions []string
	var args []any
	if !w.Since.IsZero() {
		args = append(args, w.Since)
		conditions = append(conditions, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !w.Until.IsZero() {
		args = append(args, w.Until)
		conditions = append(conditions, fmt.Sprintf("ts < $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", selectColumnsSQL, s.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown queue events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan unknown queue events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (Event, error) {
	var (
		domain, raw, reason, source            string
		matchKind, normalizedKey, version, rid string
		count, compound                        int
		ts                                     time.Time
		confidence                             float64
	)
	if err := row.Scan(&domain, &raw, &reason, &count, &compound, &ts, &source,
		&confidence, &matchKind, &normalizedKey, &version, &rid); err != nil {
		return Event{}, err
	}
	return Event{
		Domain:            dictionary.Domain(domain),
		Raw:               raw,
		Reason:            Reason(reason),
		Count:             count,
		CompoundRawEvents: compound,
		Timestamp:         ts,
		Source:            source,
		Confidence:        confidence,
		MatchKind:         matchKind,
		NormalizedKey:     normalizedKey,
		DictionaryVersion: version,
		RequestID:         rid,
	}, nil
}

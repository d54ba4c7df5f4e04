package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bean-lens/beanlens/internal/dictionary"
)

var eventColumns = []string{
	"domain", "raw", "reason", "count", "compound_raw_events", "ts", "source",
	"confidence", "match_kind", "normalized_key", "dictionary_version", "request_id",
}

func TestPostgresStoreEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ts := since.Add(time.Hour)
	rows := mock.NewRows(eventColumns).
		AddRow("process", "Mystery", "no_dictionary_match", 1, 0, ts, "beanlens", 0.0, "unknown", "", "v1", "rid-1").
		AddRow("flavor_note", "Jasmin", "low_confidence", 1, 0, ts, "beanlens", 0.86, "fuzzy", "jasmine", "v1", "rid-2")
	mock.ExpectQuery(`SELECT (.+) FROM "unknown_queue_events" WHERE ts >= \$1 ORDER BY ts`).
		WithArgs(since).
		WillReturnRows(rows)

	store := NewPostgresStore(mock, "")
	events, err := store.Events(context.Background(), Window{Since: since})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, dictionary.Process, events[0].Domain)
	assert.Equal(t, "jasmine", events[1].NormalizedKey)
	assert.Equal(t, ReasonLowConfidence, events[1].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEventsBounded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7)
	mock.ExpectQuery(`SELECT (.+) FROM "weekly" WHERE ts >= \$1 AND ts < \$2 ORDER BY ts`).
		WithArgs(since, until).
		WillReturnRows(mock.NewRows(eventColumns))

	events, err := NewPostgresStore(mock, "weekly").Events(context.Background(), Window{Since: since, Until: until})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM "unknown_queue_events" ORDER BY ts`).
		WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresStore(mock, "").Events(context.Background(), Window{})
	assert.ErrorContains(t, err, "failed to query unknown queue events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAppend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	event := Event{
		Domain:            dictionary.FlavorNote,
		Raw:               "적포도, 웰치스, 라벤더",
		Reason:            ReasonNoMatch,
		Count:             1,
		CompoundRawEvents: 1,
		Timestamp:         ts,
		Source:            "receiver",
		MatchKind:         "unknown",
		DictionaryVersion: "v1",
		RequestID:         "rid",
	}
	mock.ExpectExec(`INSERT INTO "unknown_queue_events"`).
		WithArgs("flavor_note", event.Raw, "no_dictionary_match", 1, 1, ts, "receiver", 0.0, "unknown", "", "v1", "rid").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresStore(mock, "").Append(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "unknown_queue_events"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	for range upgradeColumns {
		mock.ExpectExec(`ALTER TABLE "unknown_queue_events" ADD COLUMN IF NOT EXISTS`).
			WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))
	}
	mock.ExpectExec(`ALTER TABLE "unknown_queue_events" ALTER COLUMN method DROP NOT NULL`).
		WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))

	require.NoError(t, NewPostgresStore(mock, "").EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchemaUpgradesLegacyColumns(t *testing.T) {
	for _, column := range []string{"count", "compound_raw_events", "source", "match_kind", "request_id"} {
		t.Run(column, func(t *testing.T) {
			found := false
			for _, def := range upgradeColumns {
				if strings.HasPrefix(def, column+" ") {
					found = true
				}
			}
			assert.True(t, found, "%s is added to older tables", column)
		})
	}
}

func TestPostgresStoreEnsureSchemaError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "unknown_queue_events"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`ALTER TABLE "unknown_queue_events" ADD COLUMN IF NOT EXISTS count`).
		WillReturnError(errors.New("permission denied"))

	err = NewPostgresStore(mock, "").EnsureSchema(context.Background())
	assert.ErrorContains(t, err, "failed to migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEventsLegacyMethod(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+)COALESCE\(NULLIF\(match_kind, ''\), method, ''\)(.+) FROM "unknown_queue_events"`).
		WillReturnRows(mock.NewRows(eventColumns))

	_, err = NewPostgresStore(mock, "").Events(context.Background(), Window{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package queue

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/parquet-go/parquet-go"
)

// parquetRow is the archived column layout of an Event
type parquetRow struct {
	Domain            string  `parquet:"domain"`
	Raw               string  `parquet:"raw"`
	Reason            string  `parquet:"reason"`
	Count             int64   `parquet:"count"`
	CompoundRawEvents int64   `parquet:"compound_raw_events"`
	Timestamp         string  `parquet:"timestamp"`
	Source            string  `parquet:"source"`
	Confidence        float64 `parquet:"confidence"`
	MatchKind         string  `parquet:"match_kind"`
	NormalizedKey     string  `parquet:"normalized_key"`
	DictionaryVersion string  `parquet:"dictionary_version"`
	RequestID         string  `parquet:"request_id"`
}

func toRow(e Event) parquetRow {
	return parquetRow{
		Domain:            string(e.Domain),
		Raw:               e.Raw,
		Reason:            string(e.Reason),
		Count:             int64(e.Count),
		CompoundRawEvents: int64(e.CompoundRawEvents),
		Timestamp:         e.Timestamp.UTC().Format(time.RFC3339Nano),
		Source:            e.Source,
		Confidence:        e.Confidence,
		MatchKind:         e.MatchKind,
		NormalizedKey:     e.NormalizedKey,
		DictionaryVersion: e.DictionaryVersion,
		RequestID:         e.RequestID,
	}
}

func fromRow(r parquetRow) Event {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		slog.Debug("Unparseable parquet timestamp", "timestamp", r.Timestamp, "error", err)
	}
	return Event{
		Domain:            dictionary.Domain(r.Domain),
		Raw:               r.Raw,
		Reason:            Reason(r.Reason),
		Count:             int(r.Count),
		CompoundRawEvents: int(r.CompoundRawEvents),
		Timestamp:         ts,
		Source:            r.Source,
		Confidence:        r.Confidence,
		MatchKind:         r.MatchKind,
		NormalizedKey:     r.NormalizedKey,
		DictionaryVersion: r.DictionaryVersion,
		RequestID:         r.RequestID,
	}
}

// WriteParquet archives events to a new Parquet file at path
func WriteParquet(path string, events []Event) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	rows := make([]parquetRow, len(events))
	for i, e := range events {
		rows[i] = toRow(e)
	}

	writer := parquet.NewGenericWriter[parquetRow](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return file.Close()
}

// ReadParquet reads every event archived in a Parquet file
func ReadParquet(path string) ([]Event, error) {
	slog.Debug("Opening Parquet file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	events := make([]Event, 0, pf.NumRows())
	rows := make([]parquetRow, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			events = append(events, fromRow(row))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "path", path, "events", len(events))
	return events, nil
}

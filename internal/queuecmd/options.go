// Package queuecmd implements the unknown queue review subcommands.
package queuecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/queue"
)

// ErrSourceRequired is returned unless exactly one queue source is given
var ErrSourceRequired = errors.New("provide exactly one source: --input or --database-url")

// now is swapped out in tests
var now = time.Now

// sourceOptions selects the queue events to analyze
type sourceOptions struct {
	input       string
	databaseURL string
	table       string
	days        int
	since       string
	until       string
}

func (o *sourceOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.input, "input", "", "Path to an unknown queue file (.jsonl or .parquet)")
	cmd.Flags().StringVar(&o.databaseURL, "database-url", "", "PostgreSQL URL of the receiver database")
	cmd.Flags().StringVar(&o.table, "table", queue.DefaultTable, "PostgreSQL table holding the events")
	cmd.Flags().IntVar(&o.days, "days", 7, "Lookback window in days (0 for all events)")
	cmd.Flags().StringVar(&o.since, "since", "", "Window start (RFC3339 or YYYY-MM-DD), overrides --days")
	cmd.Flags().StringVar(&o.until, "until", "", "Window end, exclusive (RFC3339 or YYYY-MM-DD)")
}

// window resolves the time window. Explicit bounds win over --days.
func (o *sourceOptions) window() (queue.Window, error) {
	var w queue.Window
	if o.since == "" && o.until == "" {
		if o.days > 0 {
			return queue.LastDays(now().UTC(), o.days), nil
		}
		return w, nil
	}

	var err error
	if o.since != "" {
		if w.Since, err = parseTime(o.since); err != nil {
			return w, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if o.until != "" {
		if w.Until, err = parseTime(o.until); err != nil {
			return w, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if !w.Since.IsZero() && !w.Until.IsZero() && !w.Since.Before(w.Until) {
		return w, fmt.Errorf("--since must be before --until")
	}
	return w, nil
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, value)
}

// describe names the source for report headers
func (o *sourceOptions) describe() string {
	if o.input != "" {
		return o.input
	}
	return "postgres:" + o.table
}

// open returns the selected source and a function releasing it
func (o *sourceOptions) open(ctx context.Context) (queue.Source, func(), error) {
	if (o.input == "") == (o.databaseURL == "") {
		return nil, nil, ErrSourceRequired
	}
	if o.input != "" {
		return queue.NewFileSource(o.input), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, o.databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// Tables written by older receivers lack some columns.
	store := queue.NewPostgresStore(pool, o.table)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

// load reads the windowed events of the selected source
func (o *sourceOptions) load(ctx context.Context) ([]queue.Event, queue.Window, error) {
	w, err := o.window()
	if err != nil {
		return nil, w, err
	}
	source, closeSource, err := o.open(ctx)
	if err != nil {
		return nil, w, err
	}
	defer closeSource()

	events, err := source.Events(ctx, w)
	if err != nil {
		return nil, w, fmt.Errorf("failed to load events: %w", err)
	}
	return events, w, nil
}

// dictionaryOptions selects the dictionary snapshot to compare against
type dictionaryOptions struct {
	version string
	dir     string
}

func (o *dictionaryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.version, "dictionary-version", dictionary.DefaultVersion, "Dictionary version")
	cmd.Flags().StringVar(&o.dir, "dictionary-dir", "", "Dictionary directory (defaults to the embedded dictionaries)")
}

func (o *dictionaryOptions) load() (*dictionary.Dictionary, error) {
	if o.dir == "" {
		return dictionary.Load(o.version)
	}
	return dictionary.LoadFS(os.DirFS(o.dir), o.version)
}

// openOutput returns the writer for path, or stdout when path is empty
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, file.Close, nil
}

// formatFromPath guesses a format from an output extension
func formatFromPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".csv":
		return "csv"
	default:
		return fallback
	}
}

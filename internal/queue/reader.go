package queue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// maxLineBytes caps one JSONL record
var maxLineBytes = 1024 * 1024

// Source yields the events of a window from some store
type Source interface {
	Events(ctx context.Context, w Window) ([]Event, error)
}

// FileSource reads events from a JSONL or Parquet queue file
type FileSource struct {
	path string
}

// NewFileSource creates a source for path. The format follows the extension.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Events loads the events of the file that fall inside w
func (s *FileSource) Events(ctx context.Context, w Window) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []Event
	var err error
	switch ext := strings.ToLower(filepath.Ext(s.path)); ext {
	case ".parquet":
		events, err = ReadParquet(s.path)
	case ".jsonl", ".json", ".ndjson", "":
		events, err = ReadJSONL(s.path)
	default:
		return nil, fmt.Errorf("unsupported queue file format: %s (supported: .jsonl, .parquet)", ext)
	}
	if err != nil {
		return nil, err
	}
	return w.Filter(events), nil
}

// ReadJSONL reads every complete record of a JSONL queue file. Blank,
// malformed and oversized lines are skipped, as is a trailing line without a
// newline, which is an append still in progress.
func ReadJSONL(path string) ([]Event, error) {
	slog.Debug("Opening queue file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer file.Close()

	partial := false
	oversized := 0
	discarding := false
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLineBytes)), maxLineBytes)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if discarding {
				discarding = false
				return i + 1, nil, nil
			}
			return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
		}
		if atEOF {
			if len(data) > 0 {
				if !discarding {
					partial = true
				}
				discarding = false
				return len(data), nil, nil
			}
			return 0, nil, nil
		}
		// A full buffer without a newline is a line past the limit. Drop what
		// has been read and keep dropping until its newline.
		if len(data) >= maxLineBytes {
			if !discarding {
				oversized++
				discarding = true
			}
			return len(data), nil, nil
		}
		return 0, nil, nil
	})

	var events []Event
	lineNum := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			skipped++
			slog.Debug("Skipping malformed queue line", "path", path, "line", lineNum, "error", err)
			continue
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading queue file: %w", err)
	}

	if oversized > 0 {
		slog.Debug("Skipped oversized queue lines", "path", path, "lines", oversized, "limit_bytes", maxLineBytes)
	}
	slog.Debug("Finished reading queue file", "path", path, "events", len(events), "skipped", skipped+oversized, "partial_tail", partial)
	return events, nil
}

// Package queue records normalization misses as append-only unknown queue
// events and reads them back for offline analysis.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/splitter"
)

// Reason says why a value was queued
type Reason string

const (
	ReasonNoMatch       Reason = "no_dictionary_match"
	ReasonLowConfidence Reason = "low_confidence"
)

// Valid reports whether r is a known reason
func (r Reason) Valid() bool {
	return r == ReasonNoMatch || r == ReasonLowConfidence
}

// ErrInvalidEvent is returned by Event.Validate
var ErrInvalidEvent = errors.New("invalid unknown queue event")

// DefaultSource tags events written by this module
const DefaultSource = "beanlens"

// Event is one unknown queue record. Records are written once per occurrence
// and never deduplicated at write time.
type Event struct {
	Domain            dictionary.Domain `json:"domain"`
	Raw               string            `json:"raw"`
	Reason            Reason            `json:"reason"`
	Count             int               `json:"count"`
	CompoundRawEvents int               `json:"compound_raw_events"`
	Timestamp         time.Time         `json:"timestamp"`
	Source            string            `json:"source"`
	Confidence        float64           `json:"confidence"`
	MatchKind         string            `json:"match_kind,omitempty"`
	NormalizedKey     string            `json:"normalized_key,omitempty"`
	DictionaryVersion string            `json:"dictionary_version,omitempty"`
	RequestID         string            `json:"request_id,omitempty"`
}

// UnmarshalJSON accepts the older "ts" and "method" fields and defaults Count to 1.
// Older records have no compound_raw_events; a raw value holding a compound
// delimiter counts as one compound event.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var wire struct {
		plain
		Compound *int       `json:"compound_raw_events"`
		TS       *time.Time `json:"ts"`
		Method   string     `json:"method"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Event(wire.plain)
	switch {
	case wire.Compound != nil:
		e.CompoundRawEvents = *wire.Compound
	case strings.ContainsAny(e.Raw, splitter.Delimiters):
		e.CompoundRawEvents = 1
	}
	if e.Timestamp.IsZero() && wire.TS != nil {
		e.Timestamp = *wire.TS
	}
	if e.MatchKind == "" {
		e.MatchKind = wire.Method
	}
	if e.Count == 0 {
		e.Count = 1
	}
	return nil
}

// Validate checks the fields a sink requires
func (e Event) Validate() error {
	var problems []string
	if strings.TrimSpace(string(e.Domain)) == "" {
		problems = append(problems, "domain is required")
	}
	if strings.TrimSpace(e.Raw) == "" {
		problems = append(problems, "raw is required")
	}
	if !e.Reason.Valid() {
		problems = append(problems, fmt.Sprintf("reason must be %s or %s", ReasonNoMatch, ReasonLowConfidence))
	}
	if e.CompoundRawEvents < 0 {
		problems = append(problems, "compound_raw_events must be >= 0")
	}
	if e.Count < 0 {
		problems = append(problems, "count must be >= 0")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		problems = append(problems, "confidence must be between 0 and 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(problems, "; "))
	}
	return nil
}

// Window bounds events by timestamp. Zero bounds are open.
type Window struct {
	Since time.Time `json:"since,omitzero" yaml:"since,omitempty"`
	Until time.Time `json:"until,omitzero" yaml:"until,omitempty"`
}

// LastDays returns the window starting days before now, open at the end
func LastDays(now time.Time, days int) Window {
	return Window{Since: now.AddDate(0, 0, -days)}
}

// Contains reports whether ts falls within [Since, Until)
func (w Window) Contains(ts time.Time) bool {
	if !w.Since.IsZero() && ts.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && !ts.Before(w.Until) {
		return false
	}
	return true
}

// Filter returns the events inside w, preserving order
func (w Window) Filter(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if w.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	return out
}

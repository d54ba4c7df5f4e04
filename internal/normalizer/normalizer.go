// Package normalizer maps extracted bean records onto canonical dictionary
// keys, one domain field at a time.
package normalizer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/metrics"
	"github.com/bean-lens/beanlens/internal/queue"
	"github.com/bean-lens/beanlens/internal/splitter"
)

// DefaultMinConfidence is the confidence below which a resolved value is
// still queued for review.
const DefaultMinConfidence = 0.9

// Emitter receives unknown queue events. Emit must not fail the caller.
type Emitter interface {
	Emit(ctx context.Context, event queue.Event)
}

// Config controls queueing and labels
type Config struct {
	// MinConfidence queues resolved values scoring below it as low_confidence.
	MinConfidence float64
	// Source tags emitted events.
	Source string
	// Locale picks the preferred display label.
	Locale string
}

// DefaultConfig returns the defaults used by the CLI
func DefaultConfig() Config {
	return Config{MinConfidence: DefaultMinConfidence, Source: queue.DefaultSource}
}

// Field is the normalized form of one record field
type Field struct {
	Domain dictionary.Domain `json:"domain" yaml:"domain"`
	Multi  bool              `json:"multi" yaml:"multi"`
	// Values holds one entry per sub-value, in input order.
	Values []matcher.NormalizedField `json:"values" yaml:"values"`
	// Compounds lists raw strings that were split because they did not resolve whole.
	Compounds  []string `json:"compounds,omitempty" yaml:"compounds,omitempty"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// Keys returns the resolved canonical keys deduplicated in first-seen order
func (f Field) Keys() []string {
	var keys []string
	for _, v := range f.Values {
		if v.Resolved() && !slices.Contains(keys, v.Key) {
			keys = append(keys, v.Key)
		}
	}
	return keys
}

// Unknown reports whether any sub-value failed to resolve
func (f Field) Unknown() bool {
	for _, v := range f.Values {
		if v.Kind == matcher.KindUnknown {
			return true
		}
	}
	return false
}

// Result is a normalized record
type Result struct {
	DictionaryVersion string                      `json:"dictionary_version" yaml:"dictionary_version"`
	Fields            map[dictionary.Domain]Field `json:"fields" yaml:"fields"`
	Warnings          []string                    `json:"warnings" yaml:"warnings"`
}

// Normalizer runs the splitter and matcher for each field of a record and
// reports misses to the unknown queue. It never modifies the dictionary and is
// safe for concurrent use.
type Normalizer struct {
	matcher *matcher.Matcher
	emitter Emitter
	metrics *metrics.Recorder
	cfg     Config
	now     func() time.Time
}

// New creates a Normalizer. emitter and rec may be nil.
func New(m *matcher.Matcher, emitter Emitter, rec *metrics.Recorder, cfg Config) *Normalizer {
	if cfg.Source == "" {
		cfg.Source = queue.DefaultSource
	}
	return &Normalizer{
		matcher: m,
		emitter: emitter,
		metrics: rec,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Version returns the dictionary version in use
func (n *Normalizer) Version() string {
	return n.matcher.Dictionary().Version()
}

// call carries per-call state shared by every event of one normalization
type call struct {
	requestID string
}

func (n *Normalizer) newCall() call {
	return call{requestID: uuid.NewString()}
}

// Normalize normalizes every field of rec. Each field degrades on its own;
// nothing in one field can abort another.
func (n *Normalizer) Normalize(ctx context.Context, rec Record) Result {
	c := n.newCall()
	result := Result{
		DictionaryVersion: n.Version(),
		Fields:            make(map[dictionary.Domain]Field, len(rec)),
		Warnings:          []string{},
	}

	for _, domain := range orderedDomains(rec) {
		if !domain.Valid() {
			slog.Debug("Skipping field with unknown domain", "domain", domain)
			result.Warnings = append(result.Warnings, string(domain)+"_unsupported")
			continue
		}
		field := n.normalizeField(ctx, c, domain, rec[domain])
		result.Fields[domain] = field
		if w := warning(field); w != "" {
			result.Warnings = append(result.Warnings, w)
		}
	}
	return result
}

// NormalizeField normalizes a single field outside of a record
func (n *Normalizer) NormalizeField(ctx context.Context, domain dictionary.Domain, value FieldValue) Field {
	return n.normalizeField(ctx, n.newCall(), domain, value)
}

// NormalizeOne matches one raw string without splitting, queueing it on a miss
func (n *Normalizer) NormalizeOne(ctx context.Context, domain dictionary.Domain, raw string) matcher.NormalizedField {
	c := n.newCall()
	field := n.match(domain, raw)
	n.maybeEmit(ctx, c, field)
	return field
}

func (n *Normalizer) normalizeField(ctx context.Context, c call, domain dictionary.Domain, value FieldValue) Field {
	field := Field{
		Domain: domain,
		Multi:  domain.MultiValued() || value.IsMulti(),
		Values: []matcher.NormalizedField{},
	}

	for _, raw := range value.Values() {
		pieces := splitter.Split(domain, raw)
		if len(pieces) < 2 {
			v := n.match(domain, raw)
			field.Values = append(field.Values, v)
			n.maybeEmit(ctx, c, v)
			continue
		}

		if whole, ok := n.matcher.Lookup(n.raw(domain, raw)); ok {
			n.metrics.Match(string(domain), string(whole.Kind))
			field.Values = append(field.Values, whole)
			continue
		}

		// The compound itself did not resolve, so it is queued even when every
		// piece does.
		field.Compounds = append(field.Compounds, raw)
		n.emit(ctx, c, queue.Event{
			Domain:            domain,
			Raw:               raw,
			Reason:            queue.ReasonNoMatch,
			CompoundRawEvents: 1,
			MatchKind:         string(matcher.KindUnknown),
		})
		for _, piece := range pieces {
			v := n.match(domain, piece)
			field.Values = append(field.Values, v)
			n.maybeEmit(ctx, c, v)
		}
	}

	field.Confidence = minConfidence(field.Values)
	return field
}

func (n *Normalizer) raw(domain dictionary.Domain, raw string) matcher.RawValue {
	return matcher.RawValue{Domain: domain, Raw: raw, LocaleHint: n.cfg.Locale}
}

func (n *Normalizer) match(domain dictionary.Domain, raw string) matcher.NormalizedField {
	v := n.matcher.Match(n.raw(domain, raw))
	n.metrics.Match(string(domain), string(v.Kind))
	return v
}

// maybeEmit queues unknown and low confidence values. Empty input is a
// classification outcome and is never queued.
func (n *Normalizer) maybeEmit(ctx context.Context, c call, v matcher.NormalizedField) {
	if v.Reason == matcher.ReasonEmptyInput {
		return
	}
	var reason queue.Reason
	switch {
	case v.Kind == matcher.KindUnknown:
		reason = queue.ReasonNoMatch
	case v.Confidence < n.cfg.MinConfidence:
		reason = queue.ReasonLowConfidence
	default:
		return
	}
	n.emit(ctx, c, queue.Event{
		Domain:        v.Domain,
		Raw:           v.Raw,
		Reason:        reason,
		Confidence:    v.Confidence,
		MatchKind:     string(v.Kind),
		NormalizedKey: v.Key,
	})
}

func (n *Normalizer) emit(ctx context.Context, c call, event queue.Event) {
	if n.emitter == nil {
		return
	}
	event.Count = 1
	event.Timestamp = n.now().UTC()
	event.Source = n.cfg.Source
	event.DictionaryVersion = n.Version()
	event.RequestID = c.requestID
	n.emitter.Emit(ctx, event)
}

// minConfidence is the pessimistic aggregate: one bad value drags the field down.
func minConfidence(values []matcher.NormalizedField) float64 {
	if len(values) == 0 {
		return 0.0
	}
	lowest := 1.0
	for _, v := range values {
		lowest = min(lowest, v.Confidence)
	}
	return lowest
}

func warning(f Field) string {
	if !f.Unknown() {
		return ""
	}
	if f.Multi {
		return string(f.Domain) + "_partial_unmapped"
	}
	return string(f.Domain) + "_unmapped"
}

// orderedDomains returns the known domains of rec in report order followed
// by any others sorted by name.
func orderedDomains(rec Record) []dictionary.Domain {
	var ordered []dictionary.Domain
	for _, d := range dictionary.Domains {
		if _, ok := rec[d]; ok {
			ordered = append(ordered, d)
		}
	}
	var extra []dictionary.Domain
	for d := range rec {
		if !d.Valid() {
			extra = append(extra, d)
		}
	}
	slices.Sort(extra)
	return append(ordered, extra...)
}

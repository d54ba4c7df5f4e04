// Package matcher resolves a single raw metadata string to a canonical
// dictionary key.
package matcher

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/similarity"
)

// Kind records which matching step resolved a value
type Kind string

const (
	KindExact   Kind = "exact"
	KindAlias   Kind = "alias"
	KindFuzzy   Kind = "fuzzy"
	KindUnknown Kind = "unknown"
)

// Reasons attached to a NormalizedField
const (
	ReasonEmptyInput     = "empty_input"
	ReasonNoMatch        = "no_dictionary_match"
	ReasonAmbiguousMatch = "ambiguous_match"
)

const (
	DefaultThreshold = 0.8
	DefaultMinMargin = 0.05
)

// DefaultDomainThresholds raises the bar for domains with many short,
// similar looking terms.
var DefaultDomainThresholds = map[dictionary.Domain]float64{
	dictionary.FlavorNote: 0.85,
}

// RawValue is one already split raw string to be matched
type RawValue struct {
	Domain     dictionary.Domain
	Raw        string
	LocaleHint string
}

// NormalizedField is the outcome of matching one raw value. It is never
// modified after Match returns it.
type NormalizedField struct {
	Domain     dictionary.Domain `json:"domain" yaml:"domain"`
	Raw        string            `json:"raw" yaml:"raw"`
	Key        string            `json:"normalized_key,omitempty" yaml:"normalized_key,omitempty"`
	Label      string            `json:"label,omitempty" yaml:"label,omitempty"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Confidence float64           `json:"confidence" yaml:"confidence"`
	Kind       Kind              `json:"match_kind" yaml:"match_kind"`
	Reason     string            `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Resolved reports whether a canonical key was found
func (f NormalizedField) Resolved() bool {
	return f.Kind != KindUnknown && f.Key != ""
}

// Config holds the fuzzy acceptance constants
type Config struct {
	// Threshold is the minimum similarity for a fuzzy match.
	Threshold float64
	// MinMargin is the minimum lead of the best key over the runner-up.
	MinMargin float64
	// DomainThresholds overrides Threshold per domain.
	DomainThresholds map[dictionary.Domain]float64
}

// DefaultConfig returns the conservative defaults
func DefaultConfig() Config {
	return Config{
		Threshold:        DefaultThreshold,
		MinMargin:        DefaultMinMargin,
		DomainThresholds: maps.Clone(DefaultDomainThresholds),
	}
}

// ThresholdFor returns the fuzzy acceptance threshold of domain
func (c Config) ThresholdFor(domain dictionary.Domain) float64 {
	if t, ok := c.DomainThresholds[domain]; ok {
		return t
	}
	return c.Threshold
}

// Matcher matches raw values against one dictionary snapshot. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	dict *dictionary.Dictionary
	cfg  Config
}

// New returns a Matcher over dict
func New(dict *dictionary.Dictionary, cfg Config) *Matcher {
	return &Matcher{dict: dict, cfg: cfg}
}

// Dictionary returns the snapshot the matcher reads from
func (m *Matcher) Dictionary() *dictionary.Dictionary {
	return m.dict
}

// Match resolves raw by exact key or label, then alias, then fuzzy similarity.
// Anything else, including empty input and ambiguous fuzzy ties, is unknown.
// Only blank input is empty_input; a value that normalizes away, such as
// "--", is an ordinary miss.
func (m *Matcher) Match(raw RawValue) NormalizedField {
	if strings.TrimSpace(raw.Raw) == "" {
		return unknown(raw, ReasonEmptyInput)
	}
	normalized := dictionary.Normalize(raw.Raw)
	if normalized == "" {
		return unknown(raw, ReasonNoMatch)
	}

	if field, ok := m.lookup(raw, normalized); ok {
		return field
	}

	key, score, reason := m.fuzzy(raw.Domain, normalized)
	if key == "" {
		return unknown(raw, reason)
	}
	field := m.resolved(raw, key, KindFuzzy, score)
	field.Reason = fmt.Sprintf("fuzzy_score=%.2f", score)
	return field
}

// Lookup resolves raw by exact or alias match only.
func (m *Matcher) Lookup(raw RawValue) (NormalizedField, bool) {
	if strings.TrimSpace(raw.Raw) == "" {
		return unknown(raw, ReasonEmptyInput), false
	}
	normalized := dictionary.Normalize(raw.Raw)
	if normalized == "" {
		return unknown(raw, ReasonNoMatch), false
	}
	return m.lookup(raw, normalized)
}

func (m *Matcher) lookup(raw RawValue, normalized string) (NormalizedField, bool) {
	if key, ok := m.dict.LookupExact(raw.Domain, normalized); ok {
		return m.resolved(raw, key, KindExact, 1.0), true
	}
	if key, ok := m.dict.LookupAlias(raw.Domain, normalized); ok {
		return m.resolved(raw, key, KindAlias, 1.0), true
	}
	return NormalizedField{}, false
}

// Score is the best similarity of one canonical key
type Score struct {
	Key   string
	Score float64
}

// Rank scores normalized against every term and alias string of domain,
// keeping the best score per key. The result is sorted by score, then key.
func Rank(dict *dictionary.Dictionary, domain dictionary.Domain, normalized string) []Score {
	best := make(map[string]float64)
	for _, c := range dict.Candidates(domain) {
		s := similarity.Ratio(normalized, c.Text)
		if prev, ok := best[c.Key]; !ok || s > prev {
			best[c.Key] = s
		}
	}
	scores := make([]Score, 0, len(best))
	for key, s := range best {
		scores = append(scores, Score{Key: key, Score: s})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Key < scores[j].Key
	})
	return scores
}

func (m *Matcher) fuzzy(domain dictionary.Domain, normalized string) (string, float64, string) {
	scores := Rank(m.dict, domain, normalized)
	if len(scores) == 0 || scores[0].Score < m.cfg.ThresholdFor(domain) {
		return "", 0, ReasonNoMatch
	}
	top := scores[0]
	if len(scores) > 1 {
		runnerUp := scores[1].Score
		if top.Score <= runnerUp || top.Score-runnerUp < m.cfg.MinMargin {
			return "", 0, ReasonAmbiguousMatch
		}
	}
	return top.Key, top.Score, ""
}

func (m *Matcher) resolved(raw RawValue, key string, kind Kind, confidence float64) NormalizedField {
	field := NormalizedField{
		Domain:     raw.Domain,
		Raw:        raw.Raw,
		Key:        key,
		Label:      key,
		Confidence: confidence,
		Kind:       kind,
	}
	if term, ok := m.dict.Term(raw.Domain, key); ok {
		field.Labels = term.Labels
		field.Label = term.Label(raw.LocaleHint)
	}
	return field
}

func unknown(raw RawValue, reason string) NormalizedField {
	return NormalizedField{
		Domain:     raw.Domain,
		Raw:        raw.Raw,
		Confidence: 0.0,
		Kind:       KindUnknown,
		Reason:     reason,
	}
}

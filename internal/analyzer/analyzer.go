// Package analyzer aggregates unknown queue events into review reports and
// advisory alias candidates. Nothing here writes to a dictionary.
package analyzer

import (
	"cmp"
	"slices"
	"time"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/queue"
)

const (
	DefaultTopN     = 20
	DefaultMinCount = 2
	DefaultMinScore = 0.72
)

// Config holds the report and candidate thresholds
type Config struct {
	// TopN truncates the top values of each domain. Zero keeps everything.
	TopN int
	// MinCount is the fewest occurrences a raw string needs to become a candidate.
	MinCount int
	// MaxCount, when positive, excludes raw strings seen more often than this.
	MaxCount int
	// MinScore is the lowest similarity reported as a candidate.
	MinScore float64
	// IncludeLowConfidence lets low_confidence events feed candidates.
	IncludeLowConfidence bool
}

// DefaultConfig returns the review-oriented defaults
func DefaultConfig() Config {
	return Config{TopN: DefaultTopN, MinCount: DefaultMinCount, MinScore: DefaultMinScore}
}

// DomainCount is one row of the domain breakdown
type DomainCount struct {
	Domain            dictionary.Domain `json:"domain" yaml:"domain"`
	Events            int               `json:"events" yaml:"events"`
	CompoundRawEvents int               `json:"compound_raw_events" yaml:"compound_raw_events"`
}

// Count is a labelled tally
type Count struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// ValueCount is one frequent raw string of a domain
type ValueCount struct {
	Raw       string    `json:"raw" yaml:"raw"`
	Count     int       `json:"count" yaml:"count"`
	LatestAt  time.Time `json:"latest_at" yaml:"latest_at"`
	TopReason string    `json:"top_reason" yaml:"top_reason"`
}

// DomainValues holds the top values of one domain
type DomainValues struct {
	Domain dictionary.Domain `json:"domain" yaml:"domain"`
	Values []ValueCount      `json:"values" yaml:"values"`
}

// AliasCandidate suggests mapping a raw string to an existing key. It is
// advisory and requires human review.
type AliasCandidate struct {
	Domain          dictionary.Domain `json:"domain" yaml:"domain"`
	Raw             string            `json:"raw" yaml:"raw"`
	SuggestedKey    string            `json:"suggested_canonical_key" yaml:"suggested_canonical_key"`
	Score           float64           `json:"score" yaml:"score"`
	SupportingCount int               `json:"supporting_count" yaml:"supporting_count"`
}

// Report is the deterministic result of one analyzer run
type Report struct {
	GeneratedAt       time.Time        `json:"generated_at,omitzero" yaml:"generated_at,omitempty"`
	Window            queue.Window     `json:"window" yaml:"window"`
	Source            string           `json:"source" yaml:"source"`
	DictionaryVersion string           `json:"dictionary_version" yaml:"dictionary_version"`
	TotalEvents       int              `json:"total_events" yaml:"total_events"`
	UniqueRaw         int              `json:"unique_raw" yaml:"unique_raw"`
	Domains           []DomainCount    `json:"domains" yaml:"domains"`
	Reasons           []Count          `json:"reasons" yaml:"reasons"`
	MatchKinds        []Count          `json:"match_kinds" yaml:"match_kinds"`
	TopValues         []DomainValues   `json:"top_values" yaml:"top_values"`
	Candidates        []AliasCandidate `json:"candidates" yaml:"candidates"`
}

// Analyze runs every step over events, which should already be windowed.
func Analyze(dict *dictionary.Dictionary, events []queue.Event, cfg Config) Report {
	return Report{
		DictionaryVersion: dict.Version(),
		TotalEvents:       len(events),
		UniqueRaw:         UniqueRaw(events),
		Domains:           DomainBreakdown(events),
		Reasons:           ReasonBreakdown(events),
		MatchKinds:        MatchKindBreakdown(events),
		TopValues:         TopValues(events, cfg.TopN),
		Candidates:        Candidates(dict, events, cfg),
	}
}

// domainOrder lists the known domains in report order, then any other domain
// present in events sorted by name.
func domainOrder(events []queue.Event) []dictionary.Domain {
	order := slices.Clone(dictionary.Domains)
	var extra []dictionary.Domain
	for _, e := range events {
		if !e.Domain.Valid() && !slices.Contains(extra, e.Domain) {
			extra = append(extra, e.Domain)
		}
	}
	slices.Sort(extra)
	return append(order, extra...)
}

// DomainBreakdown counts events and compound events per domain. Every event
// lands in exactly one row, so the rows sum to len(events).
func DomainBreakdown(events []queue.Event) []DomainCount {
	byDomain := make(map[dictionary.Domain]*DomainCount)
	for _, e := range events {
		row, ok := byDomain[e.Domain]
		if !ok {
			row = &DomainCount{Domain: e.Domain}
			byDomain[e.Domain] = row
		}
		row.Events++
		row.CompoundRawEvents += e.CompoundRawEvents
	}

	var rows []DomainCount
	for _, d := range domainOrder(events) {
		if row, ok := byDomain[d]; ok {
			rows = append(rows, *row)
		} else {
			rows = append(rows, DomainCount{Domain: d})
		}
	}
	return rows
}

// ReasonBreakdown counts events per reason, most frequent first
func ReasonBreakdown(events []queue.Event) []Count {
	return tally(events, func(e queue.Event) string { return string(e.Reason) })
}

// MatchKindBreakdown counts events per match kind, most frequent first
func MatchKindBreakdown(events []queue.Event) []Count {
	return tally(events, func(e queue.Event) string {
		if e.MatchKind == "" {
			return string(matcher.KindUnknown)
		}
		return e.MatchKind
	})
}

func tally(events []queue.Event, label func(queue.Event) string) []Count {
	counts := make(map[string]int)
	for _, e := range events {
		counts[label(e)]++
	}
	rows := make([]Count, 0, len(counts))
	for name, n := range counts {
		rows = append(rows, Count{Name: name, Count: n})
	}
	slices.SortFunc(rows, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return rows
}

type rawKey struct {
	domain dictionary.Domain
	raw    string
}

type rawStats struct {
	count   int
	latest  time.Time
	reasons map[string]int
}

func groupRaw(events []queue.Event, keep func(queue.Event) bool) map[rawKey]*rawStats {
	groups := make(map[rawKey]*rawStats)
	for _, e := range events {
		if keep != nil && !keep(e) {
			continue
		}
		k := rawKey{domain: e.Domain, raw: e.Raw}
		s, ok := groups[k]
		if !ok {
			s = &rawStats{reasons: make(map[string]int)}
			groups[k] = s
		}
		s.count++
		s.reasons[string(e.Reason)]++
		if e.Timestamp.After(s.latest) {
			s.latest = e.Timestamp
		}
	}
	return groups
}

// UniqueRaw counts distinct (domain, raw) pairs
func UniqueRaw(events []queue.Event) int {
	return len(groupRaw(events, nil))
}

// TopValues groups events by exact raw string per domain and keeps the topN
// most frequent, ties broken by raw string. Domains with no events are omitted.
func TopValues(events []queue.Event, topN int) []DomainValues {
	groups := groupRaw(events, nil)

	byDomain := make(map[dictionary.Domain][]ValueCount)
	for k, s := range groups {
		byDomain[k.domain] = append(byDomain[k.domain], ValueCount{
			Raw:       k.raw,
			Count:     s.count,
			LatestAt:  s.latest,
			TopReason: mostCommon(s.reasons),
		})
	}

	var out []DomainValues
	for _, d := range domainOrder(events) {
		values, ok := byDomain[d]
		if !ok {
			continue
		}
		slices.SortFunc(values, func(a, b ValueCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.Raw, b.Raw)
		})
		if topN > 0 && len(values) > topN {
			values = values[:topN]
		}
		out = append(out, DomainValues{Domain: d, Values: values})
	}
	return out
}

func mostCommon(reasons map[string]int) string {
	best, bestCount := "", 0
	for reason, n := range reasons {
		if n > bestCount || (n == bestCount && reason < best) {
			best, bestCount = reason, n
		}
	}
	return best
}

// Candidates proposes aliases for queued raw strings that score close to an
// existing term or alias of the same domain. Raw strings that already resolve
// exactly, and perfect scores, are skipped. Results are sorted by score.
func Candidates(dict *dictionary.Dictionary, events []queue.Event, cfg Config) []AliasCandidate {
	groups := groupRaw(events, func(e queue.Event) bool {
		return cfg.IncludeLowConfidence || e.Reason != queue.ReasonLowConfidence
	})

	candidates := []AliasCandidate{}
	for k, s := range groups {
		if !k.domain.Valid() || s.count < cfg.MinCount {
			continue
		}
		if cfg.MaxCount > 0 && s.count > cfg.MaxCount {
			continue
		}
		normalized := dictionary.Normalize(k.raw)
		if normalized == "" {
			continue
		}
		if _, ok := dict.LookupExact(k.domain, normalized); ok {
			continue
		}
		if _, ok := dict.LookupAlias(k.domain, normalized); ok {
			continue
		}

		scores := matcher.Rank(dict, k.domain, normalized)
		if len(scores) == 0 {
			continue
		}
		best := scores[0]
		if best.Score < cfg.MinScore || best.Score >= 1.0 {
			continue
		}
		candidates = append(candidates, AliasCandidate{
			Domain:          k.domain,
			Raw:             k.raw,
			SuggestedKey:    best.Key,
			Score:           best.Score,
			SupportingCount: s.count,
		})
	}

	slices.SortFunc(candidates, func(a, b AliasCandidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.SupportingCount, a.SupportingCount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Domain, b.Domain); c != 0 {
			return c
		}
		return cmp.Compare(a.Raw, b.Raw)
	})
	return candidates
}

package analyzer

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/queue"
	"github.com/bean-lens/beanlens/internal/splitter"
)

const (
	DefaultTermMinCount     = 3
	DefaultTermMaxBestScore = 0.87
	DefaultTermTopN         = 200
)

// TermConfig holds the new-term thresholds
type TermConfig struct {
	MinCount int
	// MaxBestScore drops raw strings that look too much like an existing term.
	MaxBestScore float64
	TopN         int
}

// DefaultTermConfig returns the review-oriented defaults
func DefaultTermConfig() TermConfig {
	return TermConfig{MinCount: DefaultTermMinCount, MaxBestScore: DefaultTermMaxBestScore, TopN: DefaultTermTopN}
}

// BestMatch is the closest existing term of a term candidate
type BestMatch struct {
	Key   string  `json:"key,omitempty" yaml:"key,omitempty"`
	Label string  `json:"label_en,omitempty" yaml:"label_en,omitempty"`
	Score float64 `json:"score" yaml:"score"`
}

// TermTemplate is a starting point for a dictionary entry. Reviewers are
// expected to rewrite key and labels before adding it.
type TermTemplate struct {
	Domain dictionary.Domain `json:"domain" yaml:"domain"`
	Key    string            `json:"key" yaml:"key"`
	Labels map[string]string `json:"labels" yaml:"labels"`
}

// TermCandidate is a frequent unknown raw string unlike any existing term
type TermCandidate struct {
	Domain        dictionary.Domain `json:"domain" yaml:"domain"`
	Raw           string            `json:"raw" yaml:"raw"`
	Count         int               `json:"count" yaml:"count"`
	AvgConfidence float64           `json:"avg_confidence" yaml:"avg_confidence"`
	LatestAt      time.Time         `json:"latest_at" yaml:"latest_at"`
	TopReason     string            `json:"top_reason" yaml:"top_reason"`
	TopMatchKind  string            `json:"top_match_kind" yaml:"top_match_kind"`
	BestMatch     BestMatch         `json:"best_match" yaml:"best_match"`
	Template      TermTemplate      `json:"suggested_term_template" yaml:"suggested_term_template"`
}

type termStats struct {
	count         int
	confidenceSum float64
	latest        time.Time
	reasons       map[string]int
	kinds         map[string]int
}

// TermCandidates proposes new terms for single raw strings seen at least
// MinCount times whose best dictionary similarity stays at or below
// MaxBestScore. Compound strings are skipped. Results are sorted by count.
func TermCandidates(dict *dictionary.Dictionary, events []queue.Event, cfg TermConfig) []TermCandidate {
	groups := make(map[rawKey]*termStats)
	for _, e := range events {
		raw := strings.TrimSpace(e.Raw)
		if !e.Domain.Valid() || raw == "" || strings.ContainsAny(raw, splitter.Delimiters) {
			continue
		}
		k := rawKey{domain: e.Domain, raw: raw}
		s, ok := groups[k]
		if !ok {
			s = &termStats{reasons: make(map[string]int), kinds: make(map[string]int)}
			groups[k] = s
		}
		s.count++
		s.confidenceSum += e.Confidence
		s.reasons[string(e.Reason)]++
		kind := e.MatchKind
		if kind == "" {
			kind = string(matcher.KindUnknown)
		}
		s.kinds[kind]++
		if e.Timestamp.After(s.latest) {
			s.latest = e.Timestamp
		}
	}

	candidates := []TermCandidate{}
	for k, s := range groups {
		if s.count < cfg.MinCount {
			continue
		}
		normalized := dictionary.Normalize(k.raw)
		if normalized == "" {
			continue
		}

		var best BestMatch
		if scores := matcher.Rank(dict, k.domain, normalized); len(scores) > 0 {
			best = BestMatch{Key: scores[0].Key, Score: scores[0].Score}
			if term, ok := dict.Term(k.domain, best.Key); ok {
				best.Label = term.Label("en")
			}
		}
		if best.Score > cfg.MaxBestScore {
			continue
		}

		candidates = append(candidates, TermCandidate{
			Domain:        k.domain,
			Raw:           k.raw,
			Count:         s.count,
			AvgConfidence: s.confidenceSum / float64(s.count),
			LatestAt:      s.latest,
			TopReason:     mostCommon(s.reasons),
			TopMatchKind:  mostCommon(s.kinds),
			BestMatch:     best,
			Template: TermTemplate{
				Domain: k.domain,
				Key:    strings.ReplaceAll(normalized, " ", "_"),
				Labels: map[string]string{"en": k.raw, "ko": k.raw},
			},
		})
	}

	slices.SortFunc(candidates, func(a, b TermCandidate) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.BestMatch.Score, b.BestMatch.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Domain, b.Domain); c != 0 {
			return c
		}
		return cmp.Compare(a.Raw, b.Raw)
	})
	if cfg.TopN > 0 && len(candidates) > cfg.TopN {
		candidates = candidates[:cfg.TopN]
	}
	return candidates
}

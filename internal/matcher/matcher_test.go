package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bean-lens/beanlens/internal/dictionary"
)

func loadV1(t *testing.T) *Matcher {
	t.Helper()
	dict, err := dictionary.Load("v1")
	require.NoError(t, err)
	return New(dict, DefaultConfig())
}

func TestMatch(t *testing.T) {
	m := loadV1(t)

	tests := []struct {
		name       string
		domain     dictionary.Domain
		raw        string
		locale     string
		wantKey    string
		wantKind   Kind
		wantReason string
		minScore   float64
	}{
		{name: "exact key", domain: dictionary.Process, raw: "Washed", wantKey: "washed", wantKind: KindExact},
		{name: "exact korean label", domain: dictionary.Process, raw: "워시드", wantKey: "washed", wantKind: KindExact},
		{name: "alias korean", domain: dictionary.Process, raw: "수세식", wantKey: "washed", wantKind: KindAlias},
		{name: "alias roast city", domain: dictionary.RoastLevel, raw: "City", wantKey: "medium", wantKind: KindAlias},
		{name: "alias full city", domain: dictionary.RoastLevel, raw: "full city", wantKey: "medium_dark", wantKind: KindAlias},
		{name: "hyphenated key", domain: dictionary.RoastLevel, raw: "medium-light", wantKey: "medium_light", wantKind: KindExact},
		{name: "country korean", domain: dictionary.Country, raw: "에티오피아", wantKey: "ET", wantKind: KindExact},
		{name: "fuzzy roast", domain: dictionary.RoastLevel, raw: "Midium-Light Roast", wantKey: "medium_light", wantKind: KindFuzzy, minScore: 0.92},
		{name: "fuzzy flavor", domain: dictionary.FlavorNote, raw: "Jasmin", wantKey: "jasmine", wantKind: KindFuzzy, minScore: 0.85},
		{name: "infused has no v1 entry", domain: dictionary.Process, raw: "Washed(infused)", wantKind: KindUnknown, wantReason: ReasonNoMatch},
		{name: "mystery", domain: dictionary.Process, raw: "Mystery Process", wantKind: KindUnknown, wantReason: ReasonNoMatch},
		{name: "empty", domain: dictionary.Process, raw: "", wantKind: KindUnknown, wantReason: ReasonEmptyInput},
		{name: "whitespace only", domain: dictionary.Variety, raw: "  \t ", wantKind: KindUnknown, wantReason: ReasonEmptyInput},
		{name: "punctuation only", domain: dictionary.Variety, raw: "--", wantKind: KindUnknown, wantReason: ReasonNoMatch},
		{name: "label uses locale hint", domain: dictionary.FlavorNote, raw: "lavender", locale: "ko", wantKey: "lavender", wantKind: KindExact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(RawValue{Domain: tt.domain, Raw: tt.raw, LocaleHint: tt.locale})

			assert.Equal(t, tt.domain, got.Domain)
			assert.Equal(t, tt.raw, got.Raw)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantKey, got.Key)

			switch tt.wantKind {
			case KindExact, KindAlias:
				assert.Equal(t, 1.0, got.Confidence)
				assert.True(t, got.Resolved())
			case KindFuzzy:
				assert.GreaterOrEqual(t, got.Confidence, tt.minScore)
				assert.Less(t, got.Confidence, 1.0)
				assert.Contains(t, got.Reason, "fuzzy_score=")
			case KindUnknown:
				assert.Equal(t, 0.0, got.Confidence)
				assert.Empty(t, got.Key)
				assert.Equal(t, tt.wantReason, got.Reason)
				assert.False(t, got.Resolved())
			}
		})
	}
}

func TestMatchLabels(t *testing.T) {
	m := loadV1(t)

	got := m.Match(RawValue{Domain: dictionary.FlavorNote, Raw: "Lavender", LocaleHint: "ko"})
	assert.Equal(t, "라벤더", got.Label)
	assert.Equal(t, "Lavender", got.Labels["en"])

	got = m.Match(RawValue{Domain: dictionary.FlavorNote, Raw: "라벤더"})
	assert.Equal(t, "Lavender", got.Label, "no hint falls back to english")
}

func TestMatchFuzzyScore(t *testing.T) {
	m := loadV1(t)

	got := m.Match(RawValue{Domain: dictionary.RoastLevel, Raw: "Midium-Light Roast"})
	assert.InDelta(t, 1-1.0/18, got.Confidence, 1e-9)
	assert.Equal(t, "fuzzy_score=0.94", got.Reason)
}

func synthetic(t *testing.T) *dictionary.Dictionary {
	t.Helper()
	dict, err := dictionary.New("test", []dictionary.Term{
		{Domain: dictionary.Variety, Key: "abcd"},
		{Domain: dictionary.Variety, Key: "abce"},
		{Domain: dictionary.Variety, Key: "pacamara"},
		{Domain: dictionary.FlavorNote, Key: "peach"},
	}, []dictionary.Alias{
		{Domain: dictionary.Variety, Raw: "pacas", Key: "pacamara"},
	})
	require.NoError(t, err)
	return dict
}

func TestMatchAmbiguous(t *testing.T) {
	m := New(synthetic(t), Config{Threshold: 0.7, MinMargin: 0.05})

	// "abcf" is one edit from both "abcd" and "abce".
	got := m.Match(RawValue{Domain: dictionary.Variety, Raw: "abcf"})
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, ReasonAmbiguousMatch, got.Reason)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestMatchMargin(t *testing.T) {
	dict := synthetic(t)

	// "pacamar" scores 0.875 against pacamara and far less against anything else.
	got := New(dict, Config{Threshold: 0.8, MinMargin: 0.05}).Match(RawValue{Domain: dictionary.Variety, Raw: "pacamar"})
	assert.Equal(t, KindFuzzy, got.Kind)
	assert.Equal(t, "pacamara", got.Key)

	got = New(dict, Config{Threshold: 0.8, MinMargin: 0.9}).Match(RawValue{Domain: dictionary.Variety, Raw: "pacamar"})
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, ReasonAmbiguousMatch, got.Reason)
}

func TestMatchDomainThreshold(t *testing.T) {
	dict := synthetic(t)

	// "peac" scores 0.8 against peach.
	cfg := Config{Threshold: 0.75, MinMargin: 0.05}
	assert.Equal(t, KindFuzzy, New(dict, cfg).Match(RawValue{Domain: dictionary.FlavorNote, Raw: "peac"}).Kind)

	cfg.DomainThresholds = map[dictionary.Domain]float64{dictionary.FlavorNote: 0.85}
	got := New(dict, cfg).Match(RawValue{Domain: dictionary.FlavorNote, Raw: "peac"})
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, ReasonNoMatch, got.Reason)
}

func TestMatchScopedToDomain(t *testing.T) {
	m := New(synthetic(t), DefaultConfig())

	got := m.Match(RawValue{Domain: dictionary.Process, Raw: "peach"})
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, ReasonNoMatch, got.Reason)
}

func TestMatchIdempotent(t *testing.T) {
	m := loadV1(t)
	raw := RawValue{Domain: dictionary.RoastLevel, Raw: "Midium-Light Roast"}
	assert.Equal(t, m.Match(raw), m.Match(raw))
}

func TestLookup(t *testing.T) {
	m := loadV1(t)

	got, ok := m.Lookup(RawValue{Domain: dictionary.Variety, Raw: "GESHA"})
	require.True(t, ok)
	assert.Equal(t, KindAlias, got.Kind)
	assert.Equal(t, "geisha", got.Key)

	_, ok = m.Lookup(RawValue{Domain: dictionary.FlavorNote, Raw: "Jasmin"})
	assert.False(t, ok, "lookup never falls back to fuzzy matching")
}

func TestRank(t *testing.T) {
	scores := Rank(synthetic(t), dictionary.Variety, "pacas")
	require.NotEmpty(t, scores)
	assert.Equal(t, Score{Key: "pacamara", Score: 1.0}, scores[0], "the alias text scores for its key")

	keys := make(map[string]bool)
	for _, s := range scores {
		assert.False(t, keys[s.Key], "one score per key")
		keys[s.Key] = true
	}
	assert.Len(t, scores, 3)
}

func TestConfigThresholdFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.85, cfg.ThresholdFor(dictionary.FlavorNote))
	assert.Equal(t, 0.8, cfg.ThresholdFor(dictionary.Process))
}

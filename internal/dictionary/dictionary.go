// Package dictionary holds the versioned canonical dictionary used to
// normalize extracted bean metadata.
//
// A Dictionary is an immutable snapshot: it is built once by New or LoadFS and
// only read afterwards, so a single instance can be shared by any number of
// concurrent normalization calls.
package dictionary

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrVersionNotFound is returned when no dictionary exists for a version.
	ErrVersionNotFound = errors.New("dictionary version not found")
	// ErrInvalidDictionary wraps every structural problem found while building a dictionary.
	ErrInvalidDictionary = errors.New("invalid dictionary")
)

// Term is a canonical dictionary entry
type Term struct {
	Domain  Domain            `yaml:"-" json:"domain"`
	Key     string            `yaml:"key" json:"key"`
	Labels  map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Version string            `yaml:"-" json:"version"`
}

// Label returns the display label for locale, falling back to English and then to the key.
func (t Term) Label(locale string) string {
	if label, ok := t.Labels[locale]; ok && label != "" {
		return label
	}
	if label, ok := t.Labels["en"]; ok && label != "" {
		return label
	}
	return t.Key
}

// AliasKind tells reviewers why an alias exists
type AliasKind string

const (
	AliasSemantic AliasKind = "semantic"
	AliasTypo     AliasKind = "typo"
)

// Alias maps a known raw variant to a canonical key
type Alias struct {
	Domain  Domain    `yaml:"-" json:"domain"`
	Raw     string    `yaml:"raw" json:"raw"`
	Key     string    `yaml:"key" json:"key"`
	Kind    AliasKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	Version string    `yaml:"-" json:"version"`
}

// Candidate is a normalized dictionary string that fuzzy matching compares against.
type Candidate struct {
	Text string
	Key  string
}

// Dictionary is an immutable versioned snapshot of terms and aliases.
type Dictionary struct {
	version    string
	terms      map[Domain][]Term
	termsByKey map[Domain]map[string]Term
	exact      map[Domain]map[string]string
	aliasIndex map[Domain]map[string]string
	aliases    map[Domain][]Alias
	candidates map[Domain][]Candidate
}

// New builds a dictionary snapshot for version from terms and aliases.
// Every problem found is reported together, wrapped in ErrInvalidDictionary.
func New(version string, terms []Term, aliases []Alias) (*Dictionary, error) {
	d := &Dictionary{
		version:    version,
		terms:      make(map[Domain][]Term),
		termsByKey: make(map[Domain]map[string]Term),
		exact:      make(map[Domain]map[string]string),
		aliasIndex: make(map[Domain]map[string]string),
		aliases:    make(map[Domain][]Alias),
		candidates: make(map[Domain][]Candidate),
	}
	for _, domain := range Domains {
		d.termsByKey[domain] = make(map[string]Term)
		d.exact[domain] = make(map[string]string)
		d.aliasIndex[domain] = make(map[string]string)
	}

	var problems []error
	seen := make(map[Domain]map[Candidate]struct{})

	addCandidate := func(domain Domain, text, key string) {
		if seen[domain] == nil {
			seen[domain] = make(map[Candidate]struct{})
		}
		c := Candidate{Text: text, Key: key}
		if _, ok := seen[domain][c]; ok {
			return
		}
		seen[domain][c] = struct{}{}
		d.candidates[domain] = append(d.candidates[domain], c)
	}

	for _, term := range terms {
		if !term.Domain.Valid() {
			problems = append(problems, fmt.Errorf("term %q: %w: %q", term.Key, ErrUnknownDomain, term.Domain))
			continue
		}
		key := strings.TrimSpace(term.Key)
		if key == "" {
			problems = append(problems, fmt.Errorf("%s: term with empty key", term.Domain))
			continue
		}
		if _, dup := d.termsByKey[term.Domain][key]; dup {
			problems = append(problems, fmt.Errorf("%s: duplicate term key %q", term.Domain, key))
			continue
		}

		term.Key = key
		term.Version = version
		term.Labels = maps.Clone(term.Labels)
		d.termsByKey[term.Domain][key] = term
		d.terms[term.Domain] = append(d.terms[term.Domain], term)

		texts := []string{key}
		for _, locale := range slices.Sorted(maps.Keys(term.Labels)) {
			texts = append(texts, term.Labels[locale])
		}
		for _, text := range texts {
			normalized := Normalize(text)
			if normalized == "" {
				continue
			}
			if owner, ok := d.exact[term.Domain][normalized]; ok && owner != key {
				problems = append(problems, fmt.Errorf("%s: %q resolves to both %q and %q", term.Domain, text, owner, key))
				continue
			}
			d.exact[term.Domain][normalized] = key
			addCandidate(term.Domain, normalized, key)
		}
	}

	for _, alias := range aliases {
		if !alias.Domain.Valid() {
			problems = append(problems, fmt.Errorf("alias %q: %w: %q", alias.Raw, ErrUnknownDomain, alias.Domain))
			continue
		}
		if _, ok := d.termsByKey[alias.Domain][alias.Key]; !ok {
			problems = append(problems, fmt.Errorf("%s: alias %q references unknown term key %q", alias.Domain, alias.Raw, alias.Key))
			continue
		}
		normalized := Normalize(alias.Raw)
		if normalized == "" {
			problems = append(problems, fmt.Errorf("%s: alias for %q is empty after normalization", alias.Domain, alias.Key))
			continue
		}
		if owner, ok := d.exact[alias.Domain][normalized]; ok && owner != alias.Key {
			problems = append(problems, fmt.Errorf("%s: alias %q for %q shadows term %q", alias.Domain, alias.Raw, alias.Key, owner))
			continue
		}
		if owner, ok := d.aliasIndex[alias.Domain][normalized]; ok {
			if owner != alias.Key {
				problems = append(problems, fmt.Errorf("%s: conflicting alias %q: %q vs %q", alias.Domain, alias.Raw, owner, alias.Key))
			}
			continue
		}
		if alias.Kind == "" {
			alias.Kind = AliasSemantic
		}
		alias.Version = version
		d.aliasIndex[alias.Domain][normalized] = alias.Key
		d.aliases[alias.Domain] = append(d.aliases[alias.Domain], alias)
		addCandidate(alias.Domain, normalized, alias.Key)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidDictionary, version, errors.Join(problems...))
	}

	for domain := range d.candidates {
		slices.SortFunc(d.candidates[domain], func(a, b Candidate) int {
			if c := strings.Compare(a.Text, b.Text); c != 0 {
				return c
			}
			return strings.Compare(a.Key, b.Key)
		})
	}

	return d, nil
}

// Version returns the version string this snapshot was built for
func (d *Dictionary) Version() string {
	return d.version
}

// LookupExact resolves an already normalized string against term keys and labels.
func (d *Dictionary) LookupExact(domain Domain, normalized string) (string, bool) {
	key, ok := d.exact[domain][normalized]
	return key, ok
}

// LookupAlias resolves an already normalized string against the alias table.
func (d *Dictionary) LookupAlias(domain Domain, normalized string) (string, bool) {
	key, ok := d.aliasIndex[domain][normalized]
	return key, ok
}

// Term returns the term stored under key in domain
func (d *Dictionary) Term(domain Domain, key string) (Term, bool) {
	term, ok := d.termsByKey[domain][key]
	if !ok {
		return Term{}, false
	}
	term.Labels = maps.Clone(term.Labels)
	return term, true
}

// Terms returns a copy of the terms of domain in authoring order
func (d *Dictionary) Terms(domain Domain) []Term {
	terms := make([]Term, 0, len(d.terms[domain]))
	for _, term := range d.terms[domain] {
		term.Labels = maps.Clone(term.Labels)
		terms = append(terms, term)
	}
	return terms
}

// Aliases returns a copy of the aliases of domain in authoring order
func (d *Dictionary) Aliases(domain Domain) []Alias {
	return slices.Clone(d.aliases[domain])
}

// Candidates returns the fuzzy-match targets of domain sorted by text and key.
func (d *Dictionary) Candidates(domain Domain) []Candidate {
	return slices.Clone(d.candidates[domain])
}

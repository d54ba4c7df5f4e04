package dictionary

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDomain is returned when a domain name is not one of Domains.
var ErrUnknownDomain = errors.New("unknown domain")

// Domain is a semantic category of bean metadata
type Domain string

const (
	Process    Domain = "process"
	RoastLevel Domain = "roast_level"
	Country    Domain = "country"
	Variety    Domain = "variety"
	FlavorNote Domain = "flavor_note"
)

// Domains lists every domain in report order
var Domains = []Domain{Process, RoastLevel, Country, Variety, FlavorNote}

// ParseDomain converts a domain name into a Domain
func ParseDomain(name string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(name)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDomain, name)
	}
	return d, nil
}

// Valid reports whether d is a known domain
func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// MultiValued reports whether a record carries a list of raw values for d.
func (d Domain) MultiValued() bool {
	return d == Variety || d == FlavorNote
}

// Compound reports whether a single raw value of d may encode several values
// joined by delimiters and should be split before matching.
func (d Domain) Compound() bool {
	return d == FlavorNote
}

func (d Domain) String() string {
	return string(d)
}

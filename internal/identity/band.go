package identity

import (
	"fmt"
	"strings"
)

// Band is an LTE frequency band label.
type Band string

const (
	Band900  Band = "900"
	Band1800 Band = "1800"
	Band2100 Band = "2100"

	// DefaultBand is returned when no rule matches.
	DefaultBand = Band1800
)

// ParseBand validates a band label.
func ParseBand(s string) (Band, error) {
	switch b := Band(strings.TrimSpace(s)); b {
	case Band900, Band1800, Band2100:
		return b, nil
	default:
		return "", fmt.Errorf("unknown band %q", s)
	}
}

// BandClassifier maps a derived NE id and site id to a band.
// Implementations must be total.
type BandClassifier interface {
	Classify(neID, siteID string) Band
}

// BandRule matches when NePattern is a substring of the upper-cased NE id
// or SitePattern is a substring of the upper-cased site id.
type BandRule struct {
	NePattern   string `yaml:"ne_pattern"`
	SitePattern string `yaml:"site_pattern"`
	Band        Band   `yaml:"band"`
}

func (r BandRule) matches(neID, siteID string) bool {
	if r.NePattern != "" && strings.Contains(neID, strings.ToUpper(r.NePattern)) {
		return true
	}
	return r.SitePattern != "" && strings.Contains(siteID, strings.ToUpper(r.SitePattern))
}

// RuleTable evaluates rules in order; the first match wins.
type RuleTable struct {
	rules    []BandRule
	fallback Band
}

// DefaultBandRules is the name heuristic used by the daily TA exports.
// Order matters: "9" in a site id only selects 900 when neither 1800 rule
// matched first.
func DefaultBandRules() []BandRule {
	return []BandRule{
		{NePattern: "1800", SitePattern: "18", Band: Band1800},
		{NePattern: "900", SitePattern: "9", Band: Band900},
		{NePattern: "2100", SitePattern: "21", Band: Band2100},
	}
}

// DefaultRuleTable returns a RuleTable over DefaultBandRules.
func DefaultRuleTable() *RuleTable {
	return &RuleTable{rules: DefaultBandRules(), fallback: DefaultBand}
}

// NewRuleTable builds a RuleTable from rules, rejecting unknown bands.
func NewRuleTable(rules []BandRule) (*RuleTable, error) {
	out := make([]BandRule, 0, len(rules))
	for i, r := range rules {
		b, err := ParseBand(string(r.Band))
		if err != nil {
			return nil, fmt.Errorf("band rule %d: %w", i, err)
		}
		if r.NePattern == "" && r.SitePattern == "" {
			return nil, fmt.Errorf("band rule %d: no pattern", i)
		}
		r.Band = b
		out = append(out, r)
	}
	return &RuleTable{rules: out, fallback: DefaultBand}, nil
}

// Classify implements BandClassifier. Empty ids yield the fallback band.
func (t *RuleTable) Classify(neID, siteID string) Band {
	if neID == "" || siteID == "" {
		return t.fallback
	}
	ne, site := strings.ToUpper(neID), strings.ToUpper(siteID)
	for _, r := range t.rules {
		if r.matches(ne, site) {
			return r.Band
		}
	}
	return t.fallback
}

// Rules returns a copy of the table's rules.
func (t *RuleTable) Rules() []BandRule {
	return append([]BandRule(nil), t.rules...)
}

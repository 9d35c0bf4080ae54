// Package identity derives network-topology identifiers from raw ERBS and
// EUtranCellFDD names.
//
// Every function here is total: malformed input degrades to a documented
// sentinel instead of producing an error.
//
//	SiteID / SiteName / NeID -> "UNKNOWN"
//	Sector                   -> 0
//	Band                     -> "1800"
package identity

import (
	"strings"
	"unicode"
)

// Unknown is the sentinel for identifiers that could not be derived.
const Unknown = "UNKNOWN"

const (
	maxSiteIDLen   = 20
	maxSiteNameLen = 50
	maxNeIDLen     = 20
)

// Identity is the set of identifiers derived for one cell row.
type Identity struct {
	SiteID   string
	SiteName string
	Sector   int
	Band     Band
	NeID     string
}

// Deriver bundles the identity functions with a band classifier.
type Deriver struct {
	bands BandClassifier
}

// NewDeriver returns a Deriver using the given classifier, or the default
// rule table when classifier is nil.
func NewDeriver(classifier BandClassifier) *Deriver {
	if classifier == nil {
		classifier = DefaultRuleTable()
	}
	return &Deriver{bands: classifier}
}

// Derive computes the full identity for an ERBS name and a cell name.
func (d *Deriver) Derive(erbsName, cellName string) Identity {
	siteID := SiteID(erbsName)
	neID := NeID(cellName)
	return Identity{
		SiteID:   siteID,
		SiteName: SiteName(erbsName),
		Sector:   Sector(cellName),
		Band:     d.bands.Classify(neID, siteID),
		NeID:     neID,
	}
}

// SiteID takes the segment before the first underscore of an ERBS name,
// keeps only ASCII letters and digits and truncates to 20 characters.
func SiteID(erbsName string) string {
	left, _, _ := strings.Cut(erbsName, "_")
	return alnumTruncate(left, maxSiteIDLen)
}

// SiteName replaces underscores with spaces and title-cases the ERBS name.
func SiteName(erbsName string) string {
	if erbsName == "" {
		return Unknown
	}
	name := titleCase(strings.ReplaceAll(erbsName, "_", " "))
	if r := []rune(name); len(r) > maxSiteNameLen {
		name = string(r[:maxSiteNameLen])
	}
	if name == "" {
		return Unknown
	}
	return name
}

// Sector returns the trailing digit of a cell name, or 0 when the name is
// empty or does not end in an ASCII digit.
func Sector(cellName string) int {
	if cellName == "" {
		return 0
	}
	last := cellName[len(cellName)-1]
	if last < '0' || last > '9' {
		return 0
	}
	return int(last - '0')
}

// NeID takes the segment before the first underscore of a cell name. Names
// without an underscore lose their last character (the sector suffix).
func NeID(cellName string) string {
	left, _, found := strings.Cut(cellName, "_")
	if !found {
		r := []rune(cellName)
		if len(r) == 0 {
			return Unknown
		}
		left = string(r[:len(r)-1])
	}
	return alnumTruncate(left, maxNeIDLen)
}

func alnumTruncate(s string, max int) string {
	var b strings.Builder
	for i := 0; i < len(s) && b.Len() < max; i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return Unknown
	}
	return b.String()
}

// titleCase upper-cases every cased letter that follows an uncased
// character and lower-cases the rest, so "JKT001 1A" becomes "Jkt001 1A".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			b.WriteRune(unicode.ToLower(r))
		case cased:
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}

package identity

import (
	"strings"
	"testing"
)

func TestSiteID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JKT001_1A", "JKT001"},
		{"JKT001", "JKT001"},
		{"AB-12_C", "AB12"},
		{"", Unknown},
		{"_tail", Unknown},
		{"!!!", Unknown},
		{strings.Repeat("X", 30) + "_1", strings.Repeat("X", 20)},
	}
	for _, tt := range tests {
		if got := SiteID(tt.in); got != tt.want {
			t.Errorf("SiteID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSiteName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JKT001_1A", "Jkt001 1A"},
		{"north_JAKARTA_hub", "North Jakarta Hub"},
		{"", Unknown},
		{strings.Repeat("ab", 40), "A" + strings.Repeat("b", 1) + strings.Repeat("ab", 24)},
	}
	for _, tt := range tests {
		got := SiteName(tt.in)
		if got != tt.want {
			t.Errorf("SiteName(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if n := len([]rune(got)); n > 50 {
			t.Errorf("SiteName(%q) length %d exceeds 50", tt.in, n)
		}
	}
}

func TestSector(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"CELL07_3", 3},
		{"JKT001_1A", 0},
		{"X9", 9},
		{"", 0},
		{"abc²", 0},
	}
	for _, tt := range tests {
		if got := Sector(tt.in); got != tt.want {
			t.Errorf("Sector(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JKT001_1A", "JKT001"},
		{"CELL071", "CELL07"},
		{"A", Unknown},
		{"", Unknown},
		{"_1", Unknown},
		{"ne.id-9_2", "neid9"},
	}
	for _, tt := range tests {
		if got := NeID(tt.in); got != tt.want {
			t.Errorf("NeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultRuleTablePriority(t *testing.T) {
	table := DefaultRuleTable()
	tests := []struct {
		ne, site string
		want     Band
	}{
		{"JKT001", "JKT001", Band1800},
		{"X", "SITE9", Band900},
		{"X1800", "SITE9", Band1800},
		{"MED2100", "MED", Band2100},
		{"X", "A218", Band1800},
		{"NE900", "SITE21", Band900},
		{"ne900", "site", Band900},
		{Unknown, Unknown, Band1800},
		{"", "A9", Band1800},
		{"NE900", "", Band1800},
	}
	for _, tt := range tests {
		if got := table.Classify(tt.ne, tt.site); got != tt.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tt.ne, tt.site, got, tt.want)
		}
	}
}

func TestNewRuleTable(t *testing.T) {
	table, err := NewRuleTable([]BandRule{{SitePattern: "L21", Band: "2100"}})
	if err != nil {
		t.Fatalf("NewRuleTable: %v", err)
	}
	if got := table.Classify("NE", "xl21a"); got != Band2100 {
		t.Errorf("Classify = %q, want 2100", got)
	}
	if got := table.Classify("NE", "SITE"); got != DefaultBand {
		t.Errorf("Classify fallback = %q, want %q", got, DefaultBand)
	}

	if _, err := NewRuleTable([]BandRule{{NePattern: "7", Band: "700"}}); err == nil {
		t.Error("expected error for unknown band")
	}
	if _, err := NewRuleTable([]BandRule{{Band: "900"}}); err == nil {
		t.Error("expected error for rule without pattern")
	}
}

type fixedBand Band

func (f fixedBand) Classify(string, string) Band { return Band(f) }

func TestDeriver(t *testing.T) {
	id := NewDeriver(nil).Derive("JKT001_1A", "CELL07_3")
	want := Identity{SiteID: "JKT001", SiteName: "Jkt001 1A", Sector: 3, Band: Band1800, NeID: "CELL07"}
	if id != want {
		t.Errorf("Derive = %+v, want %+v", id, want)
	}

	id = NewDeriver(fixedBand(Band2100)).Derive("", "")
	want = Identity{SiteID: Unknown, SiteName: Unknown, Sector: 0, Band: Band2100, NeID: Unknown}
	if id != want {
		t.Errorf("Derive empty = %+v, want %+v", id, want)
	}
}

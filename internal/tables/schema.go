// Package tables defines the daily cell summary record and the encoders
// that turn a combined batch into output artifacts.
package tables

import (
	"fmt"
	"strings"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/histogram"
	"github.com/withObsrvr/tainit-daily/internal/identity"
)

// SchemaVersion is bumped on breaking changes to the output columns.
const SchemaVersion = "1.0.0"

// DateLayout is the canonical DateId format.
const DateLayout = "2006-01-02"

// Output column names, in artifact order.
const (
	ColDateID    = "DateId"
	ColCell      = "Cell"
	ColSiteID    = "SiteId"
	ColSiteName  = "SiteName"
	ColSector    = "Sector"
	ColBand      = "Band"
	ColNeID      = "NeId"
	ColDistr50   = "Distr50"
	ColDistr80   = "Distr80"
	ColDistr90   = "Distr90"
	ColDistr95   = "Distr95"
	ColDistr100  = "Distr100"
	ColTotSample = "TotSample"
)

// Header is the ordered column list of every artifact and of the store table.
var Header = []string{
	ColDateID, ColCell, ColSiteID, ColSiteName, ColSector, ColBand, ColNeID,
	ColDistr50, ColDistr80, ColDistr90, ColDistr95, ColDistr100, ColTotSample,
}

// KeyColumns are never rewritten on conflict.
var KeyColumns = []string{ColDateID, ColCell}

// DailyCellRecord is the persisted unit, keyed by (DateID, Cell).
type DailyCellRecord struct {
	DateID time.Time
	Cell   string

	SiteID   string
	SiteName string
	Sector   int
	Band     identity.Band
	NeID     string

	// Percentiles are nil when TotSample is zero.
	Distr50, Distr80, Distr90, Distr95, Distr100 *float64
	TotSample                                    int64
}

// NewRecord combines the parts produced by the identity deriver and the
// histogram reducer.
func NewRecord(date time.Time, cell string, id identity.Identity, sum histogram.Summary) DailyCellRecord {
	return DailyCellRecord{
		DateID:    date,
		Cell:      cell,
		SiteID:    id.SiteID,
		SiteName:  id.SiteName,
		Sector:    id.Sector,
		Band:      id.Band,
		NeID:      id.NeID,
		Distr50:   sum.P50,
		Distr80:   sum.P80,
		Distr90:   sum.P90,
		Distr95:   sum.P95,
		Distr100:  sum.P100,
		TotSample: sum.TotSample,
	}
}

// Key identifies a record in the store.
type Key struct {
	DateID string
	Cell   string
}

// Key returns the natural key of r.
func (r DailyCellRecord) Key() Key {
	return Key{DateID: r.DateString(), Cell: r.Cell}
}

// DateString returns DateID formatted as YYYY-MM-DD.
func (r DailyCellRecord) DateString() string {
	return r.DateID.Format(DateLayout)
}

// Percentiles returns the five percentile columns in output order.
func (r DailyCellRecord) Percentiles() [5]*float64 {
	return [5]*float64{r.Distr50, r.Distr80, r.Distr90, r.Distr95, r.Distr100}
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"20060102",
	"01/02/2006",
	"1/2/2006",
}

// ParseDateID parses a raw DATE_ID cell. Time-of-day parts are dropped.
func ParseDateID(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if histogram.IsNull(s) {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

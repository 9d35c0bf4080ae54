package tables

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/withObsrvr/tainit-daily/internal/histogram"
)

// FormatPercentile renders a percentile cell with two decimals, or the
// NULL sentinel when absent.
func FormatPercentile(v *float64) string {
	if v == nil {
		return histogram.NullSentinel
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Fields returns r as artifact cells in Header order.
func (r DailyCellRecord) Fields() []string {
	out := []string{
		r.DateString(),
		r.Cell,
		r.SiteID,
		r.SiteName,
		strconv.Itoa(r.Sector),
		string(r.Band),
		r.NeID,
	}
	for _, p := range r.Percentiles() {
		out = append(out, FormatPercentile(p))
	}
	return append(out, strconv.FormatInt(r.TotSample, 10))
}

// EncodeCSV writes records with a header row.
func EncodeCSV(records []DailyCellRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i := range records {
		if err := w.Write(records[i].Fields()); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Package histogram reduces Timing-Advance bin counters to percentile
// summaries.
//
// A row carries up to 35 counters; counter i is the number of samples
// observed at TA value i. The reducer treats the counters as a run-length
// encoded sample set and computes exact linearly interpolated percentiles
// over it without expanding the samples.
package histogram

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumBins is the number of TA bins per row.
const NumBins = 35

// DefaultPrefix is the counter column prefix used by the Ericsson exports.
const DefaultPrefix = "pmTaInit2Distr"

// NullSentinel is the textual NULL marker used in exports and artifacts.
const NullSentinel = `\N`

// Percentiles reported for every row, in output order.
var Percentiles = [...]float64{50, 80, 90, 95, 100}

// Columns returns the ordered bin column names <prefix>_00 .. <prefix>_34.
func Columns(prefix string) []string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	cols := make([]string, NumBins)
	for i := range cols {
		cols[i] = fmt.Sprintf("%s_%02d", prefix, i)
	}
	return cols
}

// Row gives the reducer access to raw cell values by column name.
type Row interface {
	Value(column string) (string, bool)
}

// Summary is the reduced form of one histogram. Percentile fields are nil
// when TotSample is zero.
type Summary struct {
	P50, P80, P90, P95, P100 *float64
	TotSample                int64
}

// Empty reports whether the summary carries no samples.
func (s Summary) Empty() bool { return s.TotSample == 0 }

// Values returns the percentiles in output order.
func (s Summary) Values() [5]*float64 {
	return [5]*float64{s.P50, s.P80, s.P90, s.P95, s.P100}
}

// Histogram holds non-negative counts indexed by TA value.
type Histogram struct {
	counts [NumBins]int64
	total  int64
}

// Counts returns the per-bin counts.
func (h *Histogram) Counts() [NumBins]int64 { return h.counts }

// Total returns the sum of all counts.
func (h *Histogram) Total() int64 { return h.total }

// Add records count samples at bin i. Non-positive counts are ignored.
func (h *Histogram) Add(i int, count int64) {
	if i < 0 || i >= NumBins || count <= 0 {
		return
	}
	if h.total > math.MaxInt64-count {
		return
	}
	h.counts[i] += count
	h.total += count
}

// FromRow builds a histogram from the given bin columns of row. Absent,
// empty, NULL-like and unparsable cells are skipped.
func FromRow(row Row, columns []string) Histogram {
	var h Histogram
	for i, col := range columns {
		if i >= NumBins {
			break
		}
		raw, ok := row.Value(col)
		if !ok {
			continue
		}
		count, ok := ParseCount(raw)
		if !ok {
			continue
		}
		h.Add(i, count)
	}
	return h
}

// Reduce is FromRow followed by Summarize.
func Reduce(row Row, columns []string) Summary {
	h := FromRow(row, columns)
	return h.Summarize()
}

// Summarize computes the reported percentiles, rounded to two decimals.
func (h *Histogram) Summarize() Summary {
	if h.total == 0 {
		return Summary{}
	}
	vals := make([]*float64, len(Percentiles))
	for i, p := range Percentiles {
		v := Round2(h.Percentile(p))
		vals[i] = &v
	}
	return Summary{
		P50:       vals[0],
		P80:       vals[1],
		P90:       vals[2],
		P95:       vals[3],
		P100:      vals[4],
		TotSample: h.total,
	}
}

// Percentile returns the p-th percentile (0..100) using linear
// interpolation between closest ranks over the expanded sample set.
// It returns NaN for an empty histogram.
func (h *Histogram) Percentile(p float64) float64 {
	if h.total == 0 {
		return math.NaN()
	}
	p = math.Min(math.Max(p, 0), 100)

	pos := float64(h.total-1) * (p / 100)
	lo := int64(math.Floor(pos))
	if lo > h.total-1 {
		lo = h.total - 1
	}
	hi := lo + 1
	if hi > h.total-1 {
		hi = h.total - 1
	}
	return lerp(h.valueAt(lo), h.valueAt(hi), pos-float64(lo))
}

// valueAt returns the sample value at zero-based rank k.
func (h *Histogram) valueAt(k int64) float64 {
	var seen int64
	for i, c := range h.counts {
		seen += c
		if k < seen {
			return float64(i)
		}
	}
	return float64(NumBins - 1)
}

// lerp interpolates from the nearer endpoint, which keeps exact results at
// t == 0 and t == 1.
func lerp(a, b, t float64) float64 {
	d := b - a
	if t >= 0.5 {
		return b - d*(1-t)
	}
	return a + d*t
}

// Round2 rounds half to even at two decimal places.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// ParseCount parses a raw counter cell. It accepts any finite decimal
// number, truncates it toward zero and reports false for blank, NULL-like,
// non-finite or out-of-range input.
func ParseCount(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if IsNull(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// IsNull reports whether a trimmed cell value represents a missing value.
func IsNull(s string) bool {
	switch s {
	case "", NullSentinel, "NULL", "null", "NaN", "nan", "NA", "N/A", "n/a", "#N/A", "None":
		return true
	}
	return false
}

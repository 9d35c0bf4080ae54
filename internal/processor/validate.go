package processor

import (
	"fmt"

	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// ValidationResult contains the outcome of table validation.
type ValidationResult struct {
	Passed     bool
	Errors     []string
	Warnings   []string
	Records    int
	Duplicates int
}

// ValidateTable performs quality checks on the combined table before it
// is written:
//   - percentiles are non-decreasing (p50 <= p80 <= p90 <= p95 <= p100)
//   - TotSample is non-negative
//   - percentiles are null exactly when TotSample is zero
//   - (DateId, Cell) keys are unique; duplicates are reported, the store
//     keeps the last one
func ValidateTable(records []tables.DailyCellRecord) ValidationResult {
	result := ValidationResult{
		Passed:  true,
		Records: len(records),
	}

	seen := make(map[tables.Key]int, len(records))
	for i, rec := range records {
		key := rec.Key()

		// Check 1: TotSample sign
		if rec.TotSample < 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s/%s: negative TotSample %d", key.DateID, key.Cell, rec.TotSample))
			result.Passed = false
		}

		// Check 2: percentile ordering
		prev := -1.0
		nulls := 0
		for _, p := range rec.Percentiles() {
			if p == nil {
				nulls++
				continue
			}
			if *p < prev {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s/%s: percentiles not ordered", key.DateID, key.Cell))
				result.Passed = false
				break
			}
			prev = *p
		}

		// Check 3: null percentiles match an empty histogram
		if (rec.TotSample == 0) != (nulls == len(rec.Percentiles())) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s/%s: %d null percentiles with TotSample %d", key.DateID, key.Cell, nulls, rec.TotSample))
		}

		// Check 4: duplicate keys
		if first, dup := seen[key]; dup {
			result.Duplicates++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s/%s: duplicate of record %d", key.DateID, key.Cell, first))
			continue
		}
		seen[key] = i
	}

	return result
}

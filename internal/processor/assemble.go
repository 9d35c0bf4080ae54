package processor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/withObsrvr/tainit-daily/internal/histogram"
	"github.com/withObsrvr/tainit-daily/internal/identity"
	"github.com/withObsrvr/tainit-daily/internal/reader"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

var (
	// ErrMissingDate is returned for a row without a DATE_ID value.
	ErrMissingDate = errors.New("missing DATE_ID")
	// ErrInvalidDate is returned for a DATE_ID that is not a calendar date.
	ErrInvalidDate = errors.New("invalid DATE_ID")
	// ErrMissingCell is returned for a row without an EUtranCellFDD value.
	ErrMissingCell = errors.New("missing EUtranCellFDD")
)

// Assembler turns raw rows into daily cell records.
type Assembler struct {
	deriver *identity.Deriver
	columns []string
}

// NewAssembler creates an assembler. columns are the expected bin columns
// in bin order; absent ones are tolerated.
func NewAssembler(deriver *identity.Deriver, columns []string) *Assembler {
	return &Assembler{deriver: deriver, columns: columns}
}

// AssembleRow builds the record for one row. Only a missing or unusable
// date or cell fails the row; identity and histogram problems degrade to
// sentinel values.
func (a *Assembler) AssembleRow(row reader.RawRow) (tables.DailyCellRecord, error) {
	rawDate, ok := row.Value(reader.ColDateID)
	if !ok || blank(rawDate) {
		return tables.DailyCellRecord{}, ErrMissingDate
	}
	date, err := tables.ParseDateID(rawDate)
	if err != nil {
		return tables.DailyCellRecord{}, fmt.Errorf("%w: %q", ErrInvalidDate, rawDate)
	}

	cell, ok := row.Value(reader.ColCell)
	if !ok || blank(cell) {
		return tables.DailyCellRecord{}, ErrMissingCell
	}

	erbs, _ := row.Value(reader.ColERBS)
	if blank(erbs) {
		erbs = ""
	}

	id := a.deriver.Derive(erbs, cell)
	sum := histogram.Reduce(row, a.columns)
	return tables.NewRecord(date, cell, id, sum), nil
}

// Assemble builds records for every row of tbl, logging and counting the
// rows it has to skip.
func (a *Assembler) Assemble(tbl *reader.Table, log *slog.Logger) ([]tables.DailyCellRecord, int) {
	records := make([]tables.DailyCellRecord, 0, len(tbl.Rows))
	skipped := 0
	for _, row := range tbl.Rows {
		rec, err := a.AssembleRow(row)
		if err != nil {
			skipped++
			log.Warn("row skipped", "file", tbl.Name, "line", row.Line, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

func blank(s string) bool {
	return histogram.IsNull(strings.TrimSpace(s))
}

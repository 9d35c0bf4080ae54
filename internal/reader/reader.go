// Package reader loads one counter export into memory and checks that it
// carries the columns the assembler needs.
package reader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Required input columns.
const (
	ColDateID = "DATE_ID"
	ColERBS   = "ERBS"
	ColCell   = "EUtranCellFDD"
)

// RequiredColumns lists the columns whose absence invalidates a file.
var RequiredColumns = []string{ColDateID, ColERBS, ColCell}

// MinBinCoverage is the number of bin columns below which a coverage
// warning is logged.
const MinBinCoverage = 10

// ErrMissingColumns is returned when a required column is absent.
var ErrMissingColumns = errors.New("missing required columns")

// ErrEmptyInput is returned for input without a header row.
var ErrEmptyInput = errors.New("empty input")

// Table is a fully buffered input file.
type Table struct {
	Name    string
	Columns []string
	Rows    []RawRow

	// BinColumns is the subset of the expected bin columns present in the header.
	BinColumns []string

	index map[string]int
}

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// RawRow is one data line addressed by column name.
type RawRow struct {
	Line   int // 1-based line number in the source, header is line 1
	index  map[string]int
	values []string
}

// Value returns the cell for column. It reports false when the column is
// not in the header or the line is too short to reach it.
func (r RawRow) Value(column string) (string, bool) {
	i, ok := r.index[column]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Options controls how a table is read.
type Options struct {
	// BinColumns are the expected histogram columns, in bin order.
	BinColumns []string
	// MinCoverage overrides MinBinCoverage when positive.
	MinCoverage int
	Logger      *slog.Logger
}

// Read parses CSV data with a header row.
func Read(name string, r io.Reader, opts Options) (*Table, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w: %s", name, ErrMissingColumns, strings.Join(missing, ", "))
	}

	t := &Table{Name: name, Columns: header, index: index}
	for _, col := range opts.BinColumns {
		if _, ok := index[col]; ok {
			t.BinColumns = append(t.BinColumns, col)
		}
	}
	minCoverage := MinBinCoverage
	if opts.MinCoverage > 0 {
		minCoverage = opts.MinCoverage
	}
	if len(t.BinColumns) < minCoverage {
		log.Warn("low histogram column coverage",
			"file", name,
			"bin_columns", len(t.BinColumns),
			"expected", len(opts.BinColumns),
		)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if isBlank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, RawRow{Line: line, index: index, values: rec})
	}

	return t, nil
}

// ReadBytes is Read over an in-memory buffer.
func ReadBytes(name string, data []byte, opts Options) (*Table, error) {
	return Read(name, bytes.NewReader(data), opts)
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

package processor

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/withObsrvr/tainit-daily/internal/histogram"
	"github.com/withObsrvr/tainit-daily/internal/identity"
	"github.com/withObsrvr/tainit-daily/internal/reader"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

func f64(v float64) *float64 { return &v }

func readTable(t *testing.T, data string) *reader.Table {
	t.Helper()
	tbl, err := reader.ReadBytes("t.csv", []byte(data), reader.Options{
		BinColumns: histogram.Columns(""),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	return tbl
}

func TestAssembleRow(t *testing.T) {
	tbl := readTable(t, "DATE_ID,ERBS,EUtranCellFDD,pmTaInit2Distr_00,pmTaInit2Distr_07,pmTaInit2Distr_09\n"+
		"2024-01-01 00:00:00,JKT001_1A,CELL07_3,\\N,4,abc\n"+
		",JKT001_1A,CELL07_3,1,1,1\n"+
		"not-a-date,JKT001_1A,CELL07_3,1,1,1\n"+
		"2024-01-01,JKT001_1A,\\N,1,1,1\n"+
		"2024-01-01,\\N,CELL18_1,0,0,0\n")

	a := NewAssembler(identity.NewDeriver(nil), histogram.Columns(""))

	rec, err := a.AssembleRow(tbl.Rows[0])
	if err != nil {
		t.Fatalf("row 0: %v", err)
	}
	if rec.DateString() != "2024-01-01" || rec.Cell != "CELL07_3" || rec.SiteID != "JKT001" || rec.Sector != 3 {
		t.Errorf("row 0 = %+v", rec)
	}
	if rec.TotSample != 4 || rec.Distr50 == nil || *rec.Distr50 != 7 || *rec.Distr100 != 7 {
		t.Errorf("row 0 percentiles = %v, tot %d", rec.Percentiles(), rec.TotSample)
	}

	for i, want := range []error{ErrMissingDate, ErrInvalidDate, ErrMissingCell} {
		if _, err := a.AssembleRow(tbl.Rows[i+1]); !errors.Is(err, want) {
			t.Errorf("row %d err = %v, want %v", i+1, err, want)
		}
	}

	rec, err = a.AssembleRow(tbl.Rows[4])
	if err != nil {
		t.Fatalf("row 4: %v", err)
	}
	if rec.SiteID != "UNKNOWN" || rec.Band != identity.Band1800 || rec.TotSample != 0 || rec.Distr50 != nil {
		t.Errorf("row 4 should degrade to sentinels: %+v", rec)
	}

	records, skipped := a.Assemble(tbl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if len(records) != 2 || skipped != 3 {
		t.Errorf("Assemble = %d records, %d skipped; want 2, 3", len(records), skipped)
	}
}

func TestValidateTable(t *testing.T) {
	day := tables.DailyCellRecord{Cell: "A", Distr50: f64(1), Distr80: f64(2), Distr90: f64(3), Distr95: f64(4), Distr100: f64(5), TotSample: 9}
	empty := tables.DailyCellRecord{Cell: "B"}

	res := ValidateTable([]tables.DailyCellRecord{day, empty})
	if !res.Passed || len(res.Warnings) != 0 || res.Records != 2 {
		t.Errorf("valid table: %+v", res)
	}

	unordered := day
	unordered.Cell = "C"
	unordered.Distr90 = f64(0.5)
	negative := empty
	negative.Cell = "D"
	negative.TotSample = -1

	res = ValidateTable([]tables.DailyCellRecord{day, unordered, negative, day})
	if res.Passed || len(res.Errors) != 2 {
		t.Errorf("errors = %v, want ordering and sign problems", res.Errors)
	}
	if res.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", res.Duplicates)
	}
}

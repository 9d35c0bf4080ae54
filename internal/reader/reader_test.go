package reader

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func bins(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = "bin_" + string(rune('a'+i))
	}
	return cols
}

func TestReadValidTable(t *testing.T) {
	data := "\ufeffDATE_ID,ERBS,EUtranCellFDD,bin_a,bin_b\n" +
		"2024-01-01,JKT001_1A,CELL07_3,5,\\N\n" +
		"\n" +
		"2024-01-01,JKT002,CELL08_1,1\n"

	tbl, err := ReadBytes("a.csv", []byte(data), Options{BinColumns: bins(3)})
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if !tbl.Has(ColDateID) {
		t.Error("BOM should be stripped from first header")
	}
	if got := len(tbl.BinColumns); got != 2 {
		t.Errorf("BinColumns = %d, want 2", got)
	}

	if v, ok := tbl.Rows[0].Value("bin_b"); !ok || v != `\N` {
		t.Errorf("row0 bin_b = %q, %v", v, ok)
	}
	if _, ok := tbl.Rows[1].Value("bin_b"); ok {
		t.Error("short row should not report trailing column")
	}
	if _, ok := tbl.Rows[1].Value("nope"); ok {
		t.Error("unknown column should not be present")
	}
	if tbl.Rows[1].Line != 4 {
		t.Errorf("row1 line = %d, want 4", tbl.Rows[1].Line)
	}
}

func TestReadMissingRequiredColumns(t *testing.T) {
	data := "DATE_ID,ERBS,cell\n2024-01-01,X,Y\n"
	_, err := ReadBytes("b.csv", []byte(data), Options{})
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
	if !strings.Contains(err.Error(), ColCell) {
		t.Errorf("error should name the missing column: %v", err)
	}
}

func TestReadEmpty(t *testing.T) {
	_, err := ReadBytes("c.csv", nil, Options{})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestReadLowCoverageWarns(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	data := "DATE_ID,ERBS,EUtranCellFDD,bin_a\n2024-01-01,X,Y1,3\n"
	tbl, err := ReadBytes("d.csv", []byte(data), Options{BinColumns: bins(12), Logger: log})
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(tbl.Rows))
	}
	if !strings.Contains(buf.String(), "low histogram column coverage") {
		t.Errorf("expected coverage warning, got %q", buf.String())
	}
}

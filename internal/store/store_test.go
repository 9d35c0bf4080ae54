package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/identity"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

func day(s string) time.Time {
	t, err := time.Parse(tables.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func f64(v float64) *float64 { return &v }

func rec(date, cell, site string, p50 float64, tot int64) tables.DailyCellRecord {
	return tables.DailyCellRecord{
		DateID: day(date), Cell: cell, SiteID: site, SiteName: "Site " + site,
		Sector: 1, Band: identity.Band1800, NeID: site,
		Distr50: f64(p50), Distr80: f64(p50), Distr90: f64(p50), Distr95: f64(p50), Distr100: f64(p50),
		TotSample: tot,
	}
}

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "ta.db"),
		CreateTable: true,
		BatchSize:   2,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.(*SQLStore)
}

func count(t *testing.T, s *SQLStore, where string, args ...any) int {
	t.Helper()
	q := `SELECT COUNT(*) FROM "tainit_cell_day"`
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := s.db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestUpsertIsIdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	if _, err := s.Upsert(ctx, []tables.DailyCellRecord{rec("2024-01-01", "X", "S1", 1.5, 10)}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := s.Upsert(ctx, []tables.DailyCellRecord{rec("2024-01-01", "X", "S1", 4.25, 99)}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if n := count(t, s, ""); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	var p50 float64
	var tot int64
	if err := s.db.QueryRow(`SELECT "Distr50", "TotSample" FROM "tainit_cell_day" WHERE "DateId" = ? AND "Cell" = ?`,
		"2024-01-01", "X").Scan(&p50, &tot); err != nil {
		t.Fatalf("select: %v", err)
	}
	if p50 != 4.25 || tot != 99 {
		t.Errorf("row = (%v, %d), want second call's values (4.25, 99)", p50, tot)
	}
}

func TestUpsertBatchesAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	records := []tables.DailyCellRecord{
		rec("2024-01-01", "A", "S1", 1, 1),
		rec("2024-01-01", "B", "S1", 2, 2),
		rec("2024-01-01", "A", "S1", 3, 3),
		rec("2024-01-02", "A", "S1", 4, 4),
		rec("2024-01-03", "C", "S2", 5, 5),
	}
	if _, err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n := count(t, s, ""); n != 4 {
		t.Fatalf("rows = %d, want 4", n)
	}
	var tot int64
	if err := s.db.QueryRow(`SELECT "TotSample" FROM "tainit_cell_day" WHERE "DateId" = '2024-01-01' AND "Cell" = 'A'`).Scan(&tot); err != nil {
		t.Fatal(err)
	}
	if tot != 3 {
		t.Errorf("duplicate key kept TotSample %d, want last write 3", tot)
	}
}

func TestUpsertNullPercentilesAndSentinel(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	r := tables.DailyCellRecord{DateID: day("2024-02-01"), Cell: "Z", SiteID: "S9", SiteName: `\N`, Band: identity.Band900, NeID: "Z"}
	if _, err := s.Upsert(ctx, []tables.DailyCellRecord{r}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n := count(t, s, `"Distr50" IS NULL AND "SiteName" IS NULL AND "TotSample" = 0`); n != 1 {
		t.Errorf("null row count = %d, want 1", n)
	}
}

func TestUpsertEmpty(t *testing.T) {
	s := openSQLite(t)
	if _, err := s.Upsert(context.Background(), nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
}

func seed(t *testing.T, s *SQLStore) {
	t.Helper()
	records := []tables.DailyCellRecord{
		rec("2024-01-01", "A", "S1", 1, 1),
		rec("2024-01-02", "A", "S1", 1, 1),
		rec("2024-01-03", "A", "S1", 1, 1),
		rec("2024-01-04", "B", "S2", 1, 1),
		rec("2024-01-05", "C", "S10", 1, 1),
	}
	if _, err := s.Upsert(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestPurgeDateRangeInclusive(t *testing.T) {
	s := openSQLite(t)
	seed(t, s)

	n, err := s.Purge(context.Background(), PurgeBetween(day("2024-01-02"), day("2024-01-04")))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
	if left := count(t, s, ""); left != 2 {
		t.Errorf("remaining = %d, want 2", left)
	}
	if kept := count(t, s, `"DateId" IN ('2024-01-01', '2024-01-05')`); kept != 2 {
		t.Errorf("rows outside range = %d, want 2", kept)
	}
}

func TestPurgeSiteExactMatch(t *testing.T) {
	s := openSQLite(t)
	seed(t, s)

	n, err := s.Purge(context.Background(), PurgeBySite("S1"))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
	if kept := count(t, s, `"SiteId" = 'S10'`); kept != 1 {
		t.Error("S10 must not match S1")
	}
}

func TestPurgeAll(t *testing.T) {
	s := openSQLite(t)
	seed(t, s)

	n, err := s.Purge(context.Background(), PurgeEverything())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 5 {
		t.Errorf("deleted = %d, want 5", n)
	}
	if left := count(t, s, ""); left != 0 {
		t.Errorf("remaining = %d, want 0", left)
	}
}

func TestPurgeRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  PurgeRequest
		ok   bool
	}{
		{"all", PurgeEverything(), true},
		{"all with site", PurgeRequest{Mode: PurgeAll, SiteID: "X"}, false},
		{"range", PurgeBetween(day("2024-01-01"), day("2024-01-01")), true},
		{"range reversed", PurgeBetween(day("2024-01-02"), day("2024-01-01")), false},
		{"range open", PurgeRequest{Mode: PurgeDateRange, From: day("2024-01-01")}, false},
		{"site", PurgeBySite("JKT001"), true},
		{"site blank", PurgeBySite("  "), false},
		{"unknown", PurgeRequest{Mode: "some"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidPurge) {
				t.Errorf("err = %v, want ErrInvalidPurge", err)
			}
		})
	}
}

func TestDialectStatements(t *testing.T) {
	pg := postgresDialect.upsertSQL("tainit_cell_day", 2)
	if !strings.Contains(pg, `ON CONFLICT ("DateId", "Cell") DO UPDATE SET "SiteId" = EXCLUDED."SiteId"`) {
		t.Errorf("postgres upsert = %s", pg)
	}
	if !strings.Contains(pg, "$26)") {
		t.Errorf("postgres upsert should number 26 placeholders: %s", pg)
	}
	if strings.Contains(pg, `"DateId" = EXCLUDED`) || strings.Contains(pg, `"Cell" = EXCLUDED`) {
		t.Error("key columns must not be rewritten on conflict")
	}

	my := mysqlDialect.upsertSQL("tainit_cell_day", 1)
	if !strings.Contains(my, "ON DUPLICATE KEY UPDATE `SiteId` = VALUES(`SiteId`)") {
		t.Errorf("mysql upsert = %s", my)
	}
	if strings.Contains(my, "`DateId` = VALUES") {
		t.Error("key columns must not be rewritten on conflict")
	}

	q, args := mysqlDialect.purgeSQL("tainit_cell_day", PurgeBetween(day("2024-01-01"), day("2024-01-31")))
	if q != "DELETE FROM `tainit_cell_day` WHERE `DateId` BETWEEN ? AND ?" || len(args) != 2 || args[0] != "2024-01-01" {
		t.Errorf("mysql purge = %s %v", q, args)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Driver: "sqlite", DSN: "x.db"}).Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}
	err := Config{Driver: "oracle", Table: "bad name;"}.Validate()
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("err = %v, want ErrUnsupportedDriver", err)
	}
	if err == nil || !strings.Contains(err.Error(), "dsn is required") || !strings.Contains(err.Error(), "invalid table name") {
		t.Errorf("errors should be joined: %v", err)
	}
}

package processor

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/audit"
	"github.com/withObsrvr/tainit-daily/internal/config"
	"github.com/withObsrvr/tainit-daily/internal/metrics"
	"github.com/withObsrvr/tainit-daily/internal/store"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

var runTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

// fakeStore records what the processor sends to the store.
type fakeStore struct {
	upserted  []tables.DailyCellRecord
	upsertErr error
	purged    []store.PurgeRequest
	closed    bool
}

func (f *fakeStore) Ping(context.Context) error        { return nil }
func (f *fakeStore) EnsureTable(context.Context) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, records []tables.DailyCellRecord) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return int64(len(records)), nil
}

func (f *fakeStore) Purge(_ context.Context, req store.PurgeRequest) (int64, error) {
	f.purged = append(f.purged, req)
	return 7, nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

type fixture struct {
	cfg    *config.Config
	inDir  string
	outDir string
	store  *fakeStore
	opened []store.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		cfg:    config.Default(),
		inDir:  filepath.Join(root, "in"),
		outDir: filepath.Join(root, "out"),
		store:  &fakeStore{},
	}
	if err := os.MkdirAll(f.inDir, 0755); err != nil {
		t.Fatal(err)
	}
	f.cfg.Output.LocalDir = f.outDir
	f.cfg.Store.DSN = "user:pass@tcp(localhost:3306)/ta"
	f.cfg.AdminStore = f.cfg.Store
	return f
}

func (f *fixture) processor(t *testing.T, opts Options) *Processor {
	t.Helper()
	if opts.OpenStore == nil {
		opts.OpenStore = func(_ context.Context, cfg store.Config) (store.Store, error) {
			f.opened = append(f.opened, cfg)
			return f.store, nil
		}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return runTime }
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p, err := New(f.cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// header returns a CSV header with the first n bin columns.
func (f *fixture) header(n int) string {
	cols := append([]string{"DATE_ID", "ERBS", "EUtranCellFDD"}, f.cfg.BinColumns()[:n]...)
	return strings.Join(cols, ",")
}

// row returns a data line with weight in bin.
func row(date, erbs, cell string, bins, bin int, weight string) string {
	vals := make([]string, bins)
	for i := range vals {
		vals[i] = "0"
	}
	vals[bin] = weight
	return strings.Join(append([]string{date, erbs, cell}, vals...), ",")
}

func (f *fixture) write(t *testing.T, name string, lines ...string) {
	t.Helper()
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(f.inDir, name), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) writeStandardBatch(t *testing.T) {
	f.write(t, "a.csv", f.header(12),
		row("2024-01-01", "JKT001_1A", "CELL07_3", 12, 7, "5"),
		row("2024-01-01", "JKT001_1A", "CELL07_2", 12, 2, "3"),
	)
	f.write(t, "b.csv", "DATE_ID,ERBS,cell\n2024-01-01,X,Y")
	f.write(t, "c.csv", f.header(12),
		row("2024-01-02", "BDG900_2", "BDG900_1", 12, 1, "4"),
	)
}

func readArtifact(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer fh.Close()
	recs, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	return recs
}

func TestRunSkipsFileMissingColumns(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)

	res, err := f.processor(t, Options{}).Run(context.Background(), f.inDir, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FilesTotal != 3 || res.FilesOK != 2 || res.Records != 3 {
		t.Errorf("result = %+v", res)
	}
	if len(res.SkippedFiles) != 1 || res.SkippedFiles[0] != "b.csv" {
		t.Errorf("SkippedFiles = %v, want [b.csv]", res.SkippedFiles)
	}
	if len(f.opened) != 0 {
		t.Error("test run should not open the store")
	}

	path := filepath.Join(f.outDir, "TA_processed_TEST_20240102_030405.csv")
	if !strings.HasSuffix(res.OutputPath, filepath.ToSlash(path)) {
		t.Errorf("OutputPath = %s, want suffix %s", res.OutputPath, path)
	}
	recs := readArtifact(t, path)
	if len(recs) != 4 {
		t.Fatalf("artifact rows = %d, want header + 3", len(recs))
	}
	if got := strings.Join(recs[0], ","); got != strings.Join(tables.Header, ",") {
		t.Errorf("header = %s", got)
	}
	// Row for CELL07_3: all weight in bin 7.
	if got := recs[1]; got[1] != "CELL07_3" || got[2] != "JKT001" || got[4] != "3" || got[7] != "7.00" || got[11] != "7.00" || got[12] != "5" {
		t.Errorf("first record = %v", got)
	}

	if _, err := os.Stat(filepath.Join(f.outDir, "TA_processed_TEST_20240102_030405_manifest.json")); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
}

func TestRunAllFilesFail(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.csv", "DATE_ID,ERBS\n2024-01-01,X")
	f.write(t, "b.csv", f.header(12), ",JKT001_1A,CELL07_3,1")

	_, err := f.processor(t, Options{}).Run(context.Background(), f.inDir, false)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if entries, _ := os.ReadDir(f.outDir); len(entries) != 0 {
		t.Errorf("no artifact expected, found %d entries", len(entries))
	}
}

func TestRunNoInputFiles(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, Options{})

	if _, err := p.Run(context.Background(), f.inDir, false); !errors.Is(err, ErrNoInputFiles) {
		t.Errorf("empty dir err = %v, want ErrNoInputFiles", err)
	}
	if _, err := p.Run(context.Background(), filepath.Join(f.inDir, "missing"), false); !errors.Is(err, ErrNoInputFiles) {
		t.Errorf("missing path err = %v, want ErrNoInputFiles", err)
	}
}

func TestRunSingleFileInput(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)

	res, err := f.processor(t, Options{}).Run(context.Background(), filepath.Join(f.inDir, "c.csv"), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FilesTotal != 1 || res.Records != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.processor(t, Options{}).Run(ctx, f.inDir, false)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if res.OutputPath != "" || res.FilesOK != 0 {
		t.Errorf("cancelled run should not produce output: %+v", res)
	}
}

func TestRunPersistUpserts(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)

	res, err := f.processor(t, Options{}).Run(context.Background(), f.inDir, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Upserted != 3 || len(f.store.upserted) != 3 {
		t.Errorf("upserted = %d (%d records), want 3", res.Upserted, len(f.store.upserted))
	}
	if !f.store.closed {
		t.Error("store should be closed after the run")
	}
	if got := f.store.upserted[2].DateString(); got != "2024-01-02" {
		t.Errorf("DateId = %s", got)
	}
	if _, err := os.Stat(filepath.Join(f.outDir, "TA_processed_20240102_030405.csv")); err != nil {
		t.Errorf("persist run artifact missing: %v", err)
	}
}

func TestRunStoreConnectFailure(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)

	p := f.processor(t, Options{
		OpenStore: func(context.Context, store.Config) (store.Store, error) {
			return nil, errors.New("connection refused")
		},
	})
	res, err := p.Run(context.Background(), f.inDir, true)
	if err == nil || !strings.Contains(err.Error(), "connect store") {
		t.Fatalf("err = %v, want connect failure", err)
	}
	if res.FilesTotal != 0 || res.OutputPath != "" {
		t.Errorf("nothing should be processed: %+v", res)
	}
	if entries, _ := os.ReadDir(f.outDir); len(entries) != 0 {
		t.Error("no artifact expected after connection failure")
	}
}

func TestRunUpsertFailureKeepsArtifact(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)
	f.store.upsertErr = errors.New("deadlock")

	res, err := f.processor(t, Options{}).Run(context.Background(), f.inDir, true)
	if err == nil {
		t.Fatal("upsert failure should fail the run")
	}
	if res.OutputPath == "" {
		t.Error("artifact should be written before the upsert")
	}
	if _, statErr := os.Stat(filepath.Join(f.outDir, "TA_processed_20240102_030405.csv")); statErr != nil {
		t.Errorf("artifact missing: %v", statErr)
	}
}

func TestRunPersistSQLiteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)
	f.cfg.Store = store.Config{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "ta.db"),
		Table:       store.DefaultTable,
		CreateTable: true,
	}
	f.cfg.AdminStore = f.cfg.Store

	p := f.processor(t, Options{OpenStore: store.Open})
	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background(), f.inDir, true); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	n, err := p.Purge(context.Background(), store.PurgeEverything())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 3 {
		t.Errorf("rows after two identical runs = %d, want 3", n)
	}
}

func TestRunMetricsAndAudit(t *testing.T) {
	f := newFixture(t)
	f.writeStandardBatch(t)
	auditDir := t.TempDir()
	m := metrics.New("tainit_test")

	p := f.processor(t, Options{
		Metrics: m,
		Emitter: audit.NewEmitter(config.AuditConfig{Enabled: true, Dir: auditDir}),
	})
	if _, err := p.Run(context.Background(), f.inDir, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := p.Purge(context.Background(), store.PurgeBySite("JKT001")); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	reports, err := audit.VerifyChain(auditDir)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if len(reports) != 1 || reports[0].Events != 2 {
		t.Errorf("audit reports = %+v", reports)
	}
}

func TestPurgeUsesAdminStore(t *testing.T) {
	f := newFixture(t)
	f.cfg.AdminStore.DSN = "admin:secret@tcp(localhost:3306)/ta"
	p := f.processor(t, Options{})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n, err := p.Purge(context.Background(), store.PurgeBetween(from, from.AddDate(0, 0, 6)))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 7 {
		t.Errorf("rows = %d, want 7", n)
	}
	if len(f.opened) != 1 || f.opened[0].DSN != f.cfg.AdminStore.DSN {
		t.Errorf("purge should connect with admin credentials, opened %+v", f.opened)
	}
	if len(f.store.purged) != 1 || f.store.purged[0].Mode != store.PurgeDateRange {
		t.Errorf("purged = %+v", f.store.purged)
	}
}

func TestPurgeRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, Options{})

	_, err := p.Purge(context.Background(), store.PurgeBySite(""))
	if !errors.Is(err, store.ErrInvalidPurge) {
		t.Fatalf("err = %v, want ErrInvalidPurge", err)
	}
	if len(f.opened) != 0 {
		t.Error("invalid purge should not connect")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30.0s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3.0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

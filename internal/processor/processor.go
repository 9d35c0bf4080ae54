// Package processor drives a run: it reads every input file, assembles
// daily cell records, writes the run artifacts and upserts the records.
// It also exposes the administrative purge.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/audit"
	"github.com/withObsrvr/tainit-daily/internal/config"
	"github.com/withObsrvr/tainit-daily/internal/identity"
	"github.com/withObsrvr/tainit-daily/internal/logging"
	"github.com/withObsrvr/tainit-daily/internal/metrics"
	"github.com/withObsrvr/tainit-daily/internal/reader"
	"github.com/withObsrvr/tainit-daily/internal/source"
	"github.com/withObsrvr/tainit-daily/internal/storage"
	"github.com/withObsrvr/tainit-daily/internal/store"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// ProducerName identifies this program in manifests and audit events.
const ProducerName = "tainit-daily"

var (
	// ErrNoInputFiles is returned when the input names no CSV file.
	ErrNoInputFiles = errors.New("no input files found")
	// ErrNoData is returned when no file produced a single record.
	ErrNoData = errors.New("no data produced by any input file")
	// ErrCancelled is returned when the run was cancelled between files.
	ErrCancelled = errors.New("run cancelled")
)

// StoreOpener connects to a store.
type StoreOpener func(ctx context.Context, cfg store.Config) (store.Store, error)

// ArtifactOpener opens the artifact backend for a run.
type ArtifactOpener func(ctx context.Context, cfg storage.Config) (storage.ArtifactStore, error)

// Options carries the collaborators of a Processor. Zero values select
// the defaults.
type Options struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Emitter       audit.Emitter
	OpenStore     StoreOpener
	OpenArtifacts ArtifactOpener
	Now           func() time.Time
}

// Processor runs batches and purges against one configuration.
type Processor struct {
	cfg           *config.Config
	assembler     *Assembler
	columns       []string
	metrics       *metrics.Metrics
	emitter       audit.Emitter
	openStore     StoreOpener
	openArtifacts ArtifactOpener
	now           func() time.Time
	log           *slog.Logger
}

// New creates a Processor.
func New(cfg *config.Config, opts Options) (*Processor, error) {
	classifier, err := cfg.BandClassifier()
	if err != nil {
		return nil, fmt.Errorf("band rules: %w", err)
	}
	columns := cfg.BinColumns()

	p := &Processor{
		cfg:           cfg,
		assembler:     NewAssembler(identity.NewDeriver(classifier), columns),
		columns:       columns,
		metrics:       opts.Metrics,
		emitter:       opts.Emitter,
		openStore:     opts.OpenStore,
		openArtifacts: opts.OpenArtifacts,
		now:           opts.Now,
		log:           opts.Logger,
	}
	if p.emitter == nil {
		p.emitter = audit.NoopEmitter{}
	}
	if p.openStore == nil {
		p.openStore = store.Open
	}
	if p.openArtifacts == nil {
		p.openArtifacts = storage.NewArtifactStore
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = logging.Component("processor")
	}
	return p, nil
}

// Result summarises a run. It is returned on failure too, filled as far
// as the run got.
type Result struct {
	RunID        string
	Input        string
	Persist      bool
	FilesTotal   int
	FilesOK      int
	SkippedFiles []string
	Records      int
	Upserted     int64
	// OutputPath is the URI of the CSV artifact, empty when none was written.
	OutputPath   string
	ManifestPath string
	Artifacts    []WrittenArtifact
	Duration     time.Duration
}

// WrittenArtifact is one artifact stored by a run.
type WrittenArtifact struct {
	Format tables.Format
	URI    string
	Info   storage.ArtifactInfo
}

// Run processes input, a file, a directory or a bucket prefix. With
// persist set the records are upserted into the store. Cancelling ctx
// stops the run at the next file boundary and fails it. A nil error is
// the only success.
func (p *Processor) Run(ctx context.Context, input string, persist bool) (*Result, error) {
	start := p.now()
	runID := logging.GenerateRunID()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.RunLogger(p.log, runID, input, persist)

	res := &Result{RunID: runID, Input: input, Persist: persist}

	log.Info("============================================================")
	log.Info("starting TA daily processing", "version", Version, "started_at", start.Format(time.DateTime))
	if persist {
		log.Info("mode: process and upload to store", "table", p.cfg.Store.Table)
	} else {
		log.Info("mode: test run, store upload skipped")
	}

	err := p.run(ctx, log, res, start, persist)
	res.Duration = time.Since(start)
	p.metrics.ObserveRun(persist, err == nil, res.Duration.Seconds())

	if auditErr := p.emitRun(ctx, res, err); auditErr != nil && err == nil {
		err = auditErr
	}

	if err != nil {
		log.Error("run failed", "error", err, "duration", formatDuration(res.Duration))
	} else {
		log.Info("run complete",
			"files_ok", res.FilesOK,
			"files_total", res.FilesTotal,
			"records", res.Records,
			"upserted", res.Upserted,
			"output", res.OutputPath,
			"duration", formatDuration(res.Duration),
		)
	}
	log.Info("============================================================")
	return res, err
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, res *Result, start time.Time, persist bool) error {
	// The store is connected before any input is read so a bad connection
	// leaves nothing behind.
	var st store.Store
	if persist {
		var err error
		st, err = p.openStore(ctx, p.cfg.Store)
		if err != nil {
			p.metrics.IncStoreErrors("connect")
			return fmt.Errorf("connect store: %w", err)
		}
		defer st.Close()
		log.Info("store connection ok")
	}

	src, err := source.Open(ctx, res.Input)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNoInputFiles, err)
		}
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	inputs, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("list input: %w", err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w in %s", ErrNoInputFiles, res.Input)
	}
	res.FilesTotal = len(inputs)
	log.Info("found input files", "count", len(inputs))

	records, err := p.combine(ctx, log, inputs, res)
	if err != nil {
		return err
	}
	res.Records = len(records)
	log.Info("combined records", "records", len(records), "files_ok", res.FilesOK, "files_skipped", len(res.SkippedFiles))

	report := ValidateTable(records)
	for _, msg := range report.Errors {
		log.Error("validation", "problem", msg)
	}
	if report.Duplicates > 0 {
		log.Warn("duplicate (DateId, Cell) keys, last record wins in the store", "duplicates", report.Duplicates)
	}

	if err := p.publish(ctx, log, records, res, start, persist); err != nil {
		return err
	}

	if !persist {
		log.Info("store upload skipped (test run)")
		return nil
	}

	upsertStart := time.Now()
	n, err := st.Upsert(ctx, records)
	if err != nil {
		p.metrics.IncStoreErrors("upsert")
		return fmt.Errorf("upsert records: %w", err)
	}
	res.Upserted = n
	p.metrics.ObserveUpsert(len(records), time.Since(upsertStart).Seconds())
	log.Info("uploaded records to store", "rows_affected", n, "table", p.cfg.Store.Table)
	return nil
}

// combine processes inputs in order. Files that fail or yield no record
// are skipped; cancellation is only observed between files.
func (p *Processor) combine(ctx context.Context, log *slog.Logger, inputs []source.Input, res *Result) ([]tables.DailyCellRecord, error) {
	var all []tables.DailyCellRecord
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", "before_file", in.Name, "processed", i)
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		log.Info("processing file", "file", in.Name, "index", i+1, "of", len(inputs))
		records, err := p.processFile(ctx, log, in)
		if err != nil {
			log.Error("file skipped", "file", in.Name, "error", err)
			res.SkippedFiles = append(res.SkippedFiles, in.Name)
			p.metrics.IncFiles("failed")
			continue
		}
		if len(records) == 0 {
			log.Warn("file produced no valid rows, skipped", "file", in.Name)
			res.SkippedFiles = append(res.SkippedFiles, in.Name)
			p.metrics.IncFiles("empty")
			continue
		}

		res.FilesOK++
		p.metrics.IncFiles("ok")
		log.Info("file processed", "file", in.Name, "records", len(records))
		all = append(all, records...)
	}

	if len(all) == 0 {
		return nil, ErrNoData
	}
	return all, nil
}

// processFile reads one input and assembles its rows.
func (p *Processor) processFile(ctx context.Context, log *slog.Logger, in source.Input) ([]tables.DailyCellRecord, error) {
	data, err := in.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", in.Location, err)
	}

	tbl, err := reader.ReadBytes(in.Name, data, reader.Options{
		BinColumns:  p.columns,
		MinCoverage: p.cfg.Input.MinBinCoverage,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	records, skipped := p.assembler.Assemble(tbl, log)
	p.metrics.AddRows(len(tbl.Rows), skipped, len(records))
	if skipped > 0 {
		log.Warn("rows skipped", "file", in.Name, "skipped", skipped, "rows", len(tbl.Rows))
	}
	return records, nil
}

// emitRun records the run in the audit trail. Failures only fail the run
// in strict mode.
func (p *Processor) emitRun(ctx context.Context, res *Result, runErr error) error {
	evt := audit.NewRunEvent(p.dataset(), audit.RunInfo{
		RunID:        res.RunID,
		Input:        res.Input,
		Persist:      res.Persist,
		FilesTotal:   res.FilesTotal,
		FilesOK:      res.FilesOK,
		SkippedFiles: res.SkippedFiles,
		Records:      res.Records,
		Upserted:     res.Upserted,
		OutputURI:    res.OutputPath,
		DurationMs:   res.Duration.Milliseconds(),
	}, runErr)
	evt.Artifacts = auditArtifacts(res)
	evt.Producer = audit.ProducerInfo{Name: ProducerName, Version: Version, GitSHA: GitSHA}

	return p.emit(ctx, evt)
}

func (p *Processor) emit(ctx context.Context, evt *audit.AuditEvent) error {
	// The event describes work already done, so it is sent even when the
	// run context was cancelled.
	if err := p.emitter.Emit(context.WithoutCancel(ctx), evt); err != nil {
		p.metrics.IncAuditErrors()
		if p.cfg.Audit.Strict {
			return fmt.Errorf("emit audit event (strict mode): %w", err)
		}
		p.log.Warn("failed to emit audit event", "event", evt.EventType, "error", err)
	}
	return nil
}

func (p *Processor) dataset() string {
	if p.cfg.Store.Table != "" {
		return p.cfg.Store.Table
	}
	return store.DefaultTable
}

func auditArtifacts(res *Result) map[string]audit.ArtifactInfo {
	if len(res.Artifacts) == 0 {
		return nil
	}
	out := make(map[string]audit.ArtifactInfo, len(res.Artifacts))
	for _, a := range res.Artifacts {
		out[string(a.Format)] = audit.ArtifactInfo{
			Checksum: a.Info.Checksum,
			RowCount: a.Info.RowCount,
			URI:      a.URI,
			ByteSize: a.Info.ByteSize,
		}
	}
	return out
}

package processor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/storage"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// publish writes the artifacts of a run:
//  1. Encode the table (CSV always, optional parquet, xlsx, zstd copy)
//  2. Write every artifact (temp -> final on every backend)
//  3. Write the manifest describing them
//
// It runs before the upsert; artifacts are not rolled back when the
// upsert later fails.
func (p *Processor) publish(ctx context.Context, log *slog.Logger, records []tables.DailyCellRecord, res *Result, start time.Time, persist bool) error {
	out, err := tables.Encode(records, tables.EncodeOptions{
		Parquet:            p.cfg.Output.Parquet,
		ParquetCompression: p.cfg.Output.ParquetCompression,
		XLSX:               p.cfg.Output.XLSX,
		Zstd:               p.cfg.Output.Zstd,
	})
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	as, err := p.openArtifacts(ctx, p.cfg.Output.Config)
	if err != nil {
		p.metrics.IncStorageErrors(p.backend())
		return fmt.Errorf("open output storage: %w", err)
	}
	defer as.Close()

	ref := storage.ArtifactRef{RunTime: start, Test: !persist}
	manifest := &storage.Manifest{
		Run: storage.RunInfo{
			RunID:         res.RunID,
			Input:         res.Input,
			Persist:       persist,
			FilesTotal:    res.FilesTotal,
			FilesOK:       res.FilesOK,
			SkippedFiles:  res.SkippedFiles,
			SchemaVersion: tables.SchemaVersion,
		},
		Artifacts: make(map[string]storage.ArtifactInfo, len(out.Artifacts)),
		Producer: storage.ProducerInfo{
			Name:    ProducerName,
			Version: Version,
			GitSHA:  GitSHA,
		},
		CreatedAt: time.Now().UTC(),
	}

	for _, a := range out.Artifacts {
		key := ref.Key(as.Prefix(), a.Format.Extension())
		if err := as.Write(ctx, key, a.Data); err != nil {
			p.metrics.IncStorageErrors(p.backend())
			return fmt.Errorf("write %s artifact: %w", a.Format, err)
		}
		p.metrics.ObserveArtifact(string(a.Format), len(a.Data))

		info := storage.ArtifactInfo{
			File:     path.Base(key),
			Checksum: a.Checksum,
			RowCount: a.Rows,
			ByteSize: int64(len(a.Data)),
		}
		manifest.Artifacts[string(a.Format)] = info
		res.Artifacts = append(res.Artifacts, WrittenArtifact{Format: a.Format, URI: as.URI(key), Info: info})

		log.Debug("wrote artifact",
			"format", a.Format,
			"rows", a.Rows,
			"bytes", len(a.Data),
			"checksum", a.Checksum,
		)
	}
	res.OutputPath = res.Artifacts[0].URI
	log.Info("output saved", "path", res.OutputPath, "records", len(records))

	if p.cfg.Output.Manifest {
		key, err := storage.WriteManifest(ctx, as, ref, manifest)
		if err != nil {
			p.metrics.IncStorageErrors(p.backend())
			return err
		}
		res.ManifestPath = as.URI(key)
	}
	return nil
}

func (p *Processor) backend() string {
	if p.cfg.Output.Backend == "" {
		return "local"
	}
	return p.cfg.Output.Backend
}

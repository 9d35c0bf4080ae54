package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/withObsrvr/tainit-daily/internal/util"
)

// FileBackup saves events to local files.
type FileBackup struct {
	dir string
}

// NewFileBackup creates a new file backup handler.
func NewFileBackup(dir string) (*FileBackup, error) {
	if dir == "" {
		dir = "./audit"
	}
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &FileBackup{dir: dir}, nil
}

// Save writes an event to a local JSON file named
// {timestamp}_{event_type}_{event_id}.json.
func (f *FileBackup) Save(evt *AuditEvent) error {
	filename := fmt.Sprintf("%s_%s_%s.json",
		evt.Timestamp.Format("20060102T150405.000000000Z"),
		evt.EventType,
		evt.EventID,
	)
	path := filepath.Join(f.dir, filename)

	data, err := json.MarshalIndent(evt, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	log.Printf("[audit] backed up to %s", path)
	return nil
}

// FileOnlyEmitter writes events to files only (no HTTP).
type FileOnlyEmitter struct {
	chainTracker *ChainTracker
	backup       *FileBackup
}

// NewFileOnlyEmitter creates an emitter that only writes to local files.
func NewFileOnlyEmitter(dir string) (*FileOnlyEmitter, error) {
	chainTracker, err := NewChainTracker(dir)
	if err != nil {
		return nil, fmt.Errorf("create chain tracker: %w", err)
	}
	backup, err := NewFileBackup(dir)
	if err != nil {
		return nil, fmt.Errorf("create file backup: %w", err)
	}
	return &FileOnlyEmitter{chainTracker: chainTracker, backup: backup}, nil
}

// Emit writes an event to a local file and advances the chain head.
func (e *FileOnlyEmitter) Emit(evt *AuditEvent) error {
	chainKey := evt.ChainKey()

	prevHash, _ := e.chainTracker.GetHead(chainKey)
	stamp(evt)
	evt.SetChainHashes(prevHash)

	log.Printf("[audit] file-only emit %s for %s event_hash=%s", evt.EventType, chainKey, evt.Chain.EventHash)

	if err := e.backup.Save(evt); err != nil {
		return err
	}
	if err := e.chainTracker.SetHead(chainKey, evt.Chain.EventHash); err != nil {
		log.Printf("[audit] warning: failed to update chain head: %v", err)
	}
	return nil
}

// Close releases resources.
func (e *FileOnlyEmitter) Close() error {
	return nil
}

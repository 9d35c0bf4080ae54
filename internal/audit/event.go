// Package audit records runs and purges as a tamper-evident, hash-chained
// event log.
package audit

import (
	"time"
)

// Version is the event schema version.
const Version = "1.0"

// EventType names what an event records.
type EventType string

const (
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
	EventPurgeExecuted EventType = "purge_executed"
)

// AuditEvent is one entry of the audit log.
type AuditEvent struct {
	Version   string    `json:"version"`
	EventType EventType `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`

	// Dataset is the store table the event concerns. Events are chained
	// per dataset.
	Dataset string `json:"dataset"`

	Run       *RunInfo                `json:"run,omitempty"`
	Purge     *PurgeInfo              `json:"purge,omitempty"`
	Artifacts map[string]ArtifactInfo `json:"artifacts,omitempty"`
	Producer  ProducerInfo            `json:"producer"`
	Chain     ChainInfo               `json:"chain"`
}

// RunInfo summarises a processing run.
type RunInfo struct {
	RunID        string   `json:"run_id"`
	Input        string   `json:"input"`
	Persist      bool     `json:"persist"`
	FilesTotal   int      `json:"files_total"`
	FilesOK      int      `json:"files_ok"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
	Records      int      `json:"records"`
	Upserted     int64    `json:"upserted"`
	OutputURI    string   `json:"output_uri,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
	Error        string   `json:"error,omitempty"`
}

// PurgeInfo describes an executed purge.
type PurgeInfo struct {
	Mode        string `json:"mode"`
	Detail      string `json:"detail"`
	RowsDeleted int64  `json:"rows_deleted"`
}

// ArtifactInfo contains checksum and location of one artifact.
type ArtifactInfo struct {
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	URI      string `json:"uri"`
	ByteSize int64  `json:"byte_size"`
}

// ProducerInfo identifies the software that produced the event.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
}

// ChainInfo provides hash chaining for tamper-evident audit log.
type ChainInfo struct {
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
}

// ChainKey returns the key of the chain this event belongs to.
func (e *AuditEvent) ChainKey() string {
	return "tainit/" + e.Dataset
}

// SetChainHashes links the event to prev and computes its own hash.
func (e *AuditEvent) SetChainHashes(prev string) {
	e.Chain.PrevEventHash = prev
	e.Chain.EventHash = ComputeEventHash(e)
}

// NewRunEvent builds a run event for dataset. A non-nil runErr marks the
// run as failed.
func NewRunEvent(dataset string, run RunInfo, runErr error) *AuditEvent {
	evt := &AuditEvent{
		EventType: EventRunCompleted,
		Dataset:   dataset,
		Run:       &run,
	}
	if runErr != nil {
		evt.EventType = EventRunFailed
		evt.Run.Error = runErr.Error()
	}
	return evt
}

// NewPurgeEvent builds a purge event for dataset.
func NewPurgeEvent(dataset string, purge PurgeInfo) *AuditEvent {
	return &AuditEvent{
		EventType: EventPurgeExecuted,
		Dataset:   dataset,
		Purge:     &purge,
	}
}

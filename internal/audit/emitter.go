package audit

import (
	"context"
	"log"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/config"
)

// Emitter is the interface for audit event emission.
type Emitter interface {
	Emit(ctx context.Context, evt *AuditEvent) error
	Close() error
}

// NewEmitter creates an appropriate emitter based on configuration.
func NewEmitter(cfg config.AuditConfig) Emitter {
	if !cfg.Enabled {
		log.Println("[audit] disabled, using no-op emitter")
		return NoopEmitter{}
	}

	if cfg.Endpoint != "" {
		emitter, err := NewHTTPEmitter(cfg)
		if err != nil {
			log.Printf("[audit] failed to create HTTP emitter: %v, falling back to file-only", err)
			return createFileOnlyEmitter(cfg)
		}
		log.Printf("[audit] using HTTP emitter -> %s", cfg.Endpoint)
		return emitter
	}

	return createFileOnlyEmitter(cfg)
}

func createFileOnlyEmitter(cfg config.AuditConfig) Emitter {
	emitter, err := NewFileOnlyEmitter(cfg.Dir)
	if err != nil {
		log.Printf("[audit] failed to create file emitter: %v, using no-op", err)
		return NoopEmitter{}
	}
	log.Printf("[audit] using file-only emitter -> %s", cfg.Dir)
	return fileOnlyEmitterWrapper{emitter: emitter}
}

// fileOnlyEmitterWrapper adapts FileOnlyEmitter to the Emitter interface.
type fileOnlyEmitterWrapper struct {
	emitter *FileOnlyEmitter
}

func (w fileOnlyEmitterWrapper) Emit(_ context.Context, evt *AuditEvent) error {
	return w.emitter.Emit(evt)
}

func (w fileOnlyEmitterWrapper) Close() error {
	return w.emitter.Close()
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, *AuditEvent) error { return nil }

func (NoopEmitter) Close() error { return nil }

// stamp fills the envelope fields of evt.
func stamp(evt *AuditEvent) {
	evt.Version = Version
	evt.EventID = GenerateEventID()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
}

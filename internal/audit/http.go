package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/config"
)

// HTTPEmitter sends events to an HTTP endpoint, keeping a local backup.
type HTTPEmitter struct {
	cfg          config.AuditConfig
	client       *http.Client
	chainTracker *ChainTracker
	backup       *FileBackup

	retries int
	delay   time.Duration

	// OnRetry, when set, is called before each retry.
	OnRetry func(attempt int, err error)
}

// NewHTTPEmitter creates a new HTTP emitter.
func NewHTTPEmitter(cfg config.AuditConfig) (*HTTPEmitter, error) {
	chainTracker, err := NewChainTracker(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("create chain tracker: %w", err)
	}
	backup, err := NewFileBackup(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("create file backup: %w", err)
	}

	return &HTTPEmitter{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		chainTracker: chainTracker,
		backup:       backup,
		retries:      3,
		delay:        time.Second,
	}, nil
}

// Emit sends an event to the configured endpoint. The chain head only
// advances once the endpoint accepted the event.
func (e *HTTPEmitter) Emit(ctx context.Context, evt *AuditEvent) error {
	chainKey := evt.ChainKey()

	prevHash, err := e.chainTracker.GetHead(chainKey)
	if err != nil && !errors.Is(err, ErrNoChainHead) {
		return fmt.Errorf("get chain head: %w", err)
	}

	stamp(evt)
	evt.SetChainHashes(prevHash)

	if prevHash == "" {
		log.Printf("[audit] emitting %s for %s (first in chain)", evt.EventType, chainKey)
	} else {
		log.Printf("[audit] emitting %s for %s prev_hash=%s", evt.EventType, chainKey, prevHash)
	}

	if err := e.backup.Save(evt); err != nil {
		log.Printf("[audit] warning: backup failed: %v", err)
	}

	if err := e.postWithRetry(ctx, evt); err != nil {
		return fmt.Errorf("audit emit failed: %w", err)
	}

	if err := e.chainTracker.SetHead(chainKey, evt.Chain.EventHash); err != nil {
		log.Printf("[audit] warning: failed to update chain head: %v", err)
	}
	return nil
}

// postWithRetry sends the event with exponential backoff.
func (e *HTTPEmitter) postWithRetry(ctx context.Context, evt *AuditEvent) error {
	var lastErr error
	delay := e.delay

	for attempt := 1; attempt <= e.retries; attempt++ {
		err := e.post(ctx, evt)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < e.retries {
			log.Printf("[audit] attempt %d/%d failed: %v, retrying in %v", attempt, e.retries, err, delay)
			if e.OnRetry != nil {
				e.OnRetry(attempt, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", e.retries, lastErr)
}

// post sends a single POST request.
func (e *HTTPEmitter) post(ctx context.Context, evt *AuditEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Printf("[audit] POST %s -> %s", e.cfg.Endpoint, resp.Status)
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
}

// Close releases resources.
func (e *HTTPEmitter) Close() error {
	return nil
}

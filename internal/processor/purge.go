package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/audit"
	"github.com/withObsrvr/tainit-daily/internal/store"
)

// Purge deletes rows from the store using the administrative store
// credentials and returns the number of rows deleted.
func (p *Processor) Purge(ctx context.Context, req store.PurgeRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	log := p.log.With("purge", req.String())
	log.Warn("purge requested")
	start := time.Now()

	st, err := p.openStore(ctx, p.cfg.AdminStore)
	if err != nil {
		p.metrics.IncStoreErrors("connect")
		return 0, fmt.Errorf("connect admin store: %w", err)
	}
	defer st.Close()

	n, err := st.Purge(ctx, req)
	if err != nil {
		p.metrics.IncStoreErrors("purge")
		return 0, fmt.Errorf("purge: %w", err)
	}
	p.metrics.AddPurged(string(req.Mode), n)
	log.Info("purge complete", "rows_deleted", n, "duration", formatDuration(time.Since(start)))

	evt := audit.NewPurgeEvent(p.dataset(), audit.PurgeInfo{
		Mode:        string(req.Mode),
		Detail:      req.String(),
		RowsDeleted: n,
	})
	evt.Producer = audit.ProducerInfo{Name: ProducerName, Version: Version, GitSHA: GitSHA}
	if err := p.emit(ctx, evt); err != nil {
		return n, err
	}
	return n, nil
}

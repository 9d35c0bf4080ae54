package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// PurgeMode selects which rows a purge deletes.
type PurgeMode string

const (
	PurgeAll       PurgeMode = "all"
	PurgeDateRange PurgeMode = "date_range"
	PurgeSite      PurgeMode = "site"
)

// PurgeRequest describes one purge. From and To are inclusive and only
// used by PurgeDateRange; SiteID is only used by PurgeSite.
type PurgeRequest struct {
	Mode   PurgeMode
	From   time.Time
	To     time.Time
	SiteID string
}

// PurgeEverything returns a delete-all request.
func PurgeEverything() PurgeRequest {
	return PurgeRequest{Mode: PurgeAll}
}

// PurgeBetween returns a request deleting DateId in [from, to].
func PurgeBetween(from, to time.Time) PurgeRequest {
	return PurgeRequest{Mode: PurgeDateRange, From: from, To: to}
}

// PurgeBySite returns a request deleting rows whose SiteId equals siteID.
func PurgeBySite(siteID string) PurgeRequest {
	return PurgeRequest{Mode: PurgeSite, SiteID: siteID}
}

// Validate checks that exactly the parameters of the chosen mode are set.
func (r PurgeRequest) Validate() error {
	switch r.Mode {
	case PurgeAll:
		if !r.From.IsZero() || !r.To.IsZero() || r.SiteID != "" {
			return fmt.Errorf("%w: delete-all takes no parameters", ErrInvalidPurge)
		}
	case PurgeDateRange:
		if r.From.IsZero() || r.To.IsZero() {
			return fmt.Errorf("%w: date range needs both from and to", ErrInvalidPurge)
		}
		if r.To.Before(r.From) {
			return fmt.Errorf("%w: range end %s is before start %s",
				ErrInvalidPurge, r.To.Format(tables.DateLayout), r.From.Format(tables.DateLayout))
		}
		if r.SiteID != "" {
			return fmt.Errorf("%w: date range does not take a site", ErrInvalidPurge)
		}
	case PurgeSite:
		if strings.TrimSpace(r.SiteID) == "" {
			return fmt.Errorf("%w: site id is required", ErrInvalidPurge)
		}
		if !r.From.IsZero() || !r.To.IsZero() {
			return fmt.Errorf("%w: site purge does not take a date range", ErrInvalidPurge)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPurge, r.Mode)
	}
	return nil
}

// String describes the request for logs and audit events.
func (r PurgeRequest) String() string {
	switch r.Mode {
	case PurgeDateRange:
		return fmt.Sprintf("date_range %s..%s", r.From.Format(tables.DateLayout), r.To.Format(tables.DateLayout))
	case PurgeSite:
		return "site " + r.SiteID
	default:
		return string(r.Mode)
	}
}

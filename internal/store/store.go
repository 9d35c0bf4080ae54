// Package store persists daily cell records into a relational table keyed
// by (DateId, Cell) and exposes the administrative purge on that table.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// Defaults.
const (
	DefaultTable     = "tainit_cell_day"
	DefaultBatchSize = 1000
)

var (
	// ErrEmptyBatch is returned when Upsert is called without records.
	ErrEmptyBatch = errors.New("nothing to upload")

	// ErrInvalidPurge is returned for a malformed purge request.
	ErrInvalidPurge = errors.New("invalid purge request")

	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported store driver")
)

// Config selects and configures a store backend.
type Config struct {
	// Driver is one of postgres, mysql or sqlite.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`

	// BatchSize is the number of records per multi-row statement.
	BatchSize int `yaml:"batch_size"`

	// CreateTable creates the table on open when it does not exist.
	CreateTable bool `yaml:"create_table"`
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	return c
}

// Validate checks the configuration without connecting.
func (c Config) Validate() error {
	c = c.withDefaults()
	var errs []error
	switch c.Driver {
	case "postgres", "pgx", "mysql", "sqlite":
	case "":
		errs = append(errs, errors.New("driver is required"))
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Driver))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if !tableNamePattern.MatchString(c.Table) {
		errs = append(errs, fmt.Errorf("invalid table name %q", c.Table))
	}
	return errors.Join(errs...)
}

// Store is the durable side of the persistence gateway.
type Store interface {
	// Ping checks that the connection is live.
	Ping(ctx context.Context) error

	// EnsureTable creates the summary table if it does not exist.
	EnsureTable(ctx context.Context) error

	// Upsert inserts new keys and overwrites every non-key column of
	// existing keys, inside one transaction. It returns the rows affected
	// as reported by the driver.
	Upsert(ctx context.Context, records []tables.DailyCellRecord) (int64, error)

	// Purge deletes rows per req in its own transaction and returns the
	// number of rows deleted.
	Purge(ctx context.Context, req PurgeRequest) (int64, error)

	Close() error
}

// Open connects to the configured backend and pings it. The table is
// created first when cfg.CreateTable is set.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "postgres", "pgx":
		s, err = NewPostgresStore(ctx, cfg)
	case "mysql":
		s, err = NewSQLStore(ctx, cfg, mysqlDialect)
	case "sqlite":
		s, err = NewSQLStore(ctx, cfg, sqliteDialect)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CreateTable {
		if err := s.EnsureTable(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// chunks splits records into slices of at most size.
func chunks(records []tables.DailyCellRecord, size int) [][]tables.DailyCellRecord {
	var out [][]tables.DailyCellRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// lastWins drops earlier records that share a key with a later one,
// keeping the order of the survivors. A single multi-row statement must
// not touch one key twice.
func lastWins(records []tables.DailyCellRecord) []tables.DailyCellRecord {
	last := make(map[tables.Key]int, len(records))
	for i, r := range records {
		last[r.Key()] = i
	}
	if len(last) == len(records) {
		return records
	}
	out := make([]tables.DailyCellRecord, 0, len(last))
	for i, r := range records {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}

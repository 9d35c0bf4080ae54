package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/go-sql-driver/mysql" // MySQL/MariaDB driver
	_ "modernc.org/sqlite"             // pure Go SQLite driver

	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// SQLStore implements Store over database/sql for MySQL/MariaDB and SQLite.
type SQLStore struct {
	db      *sql.DB
	cfg     Config
	dialect dialect
}

// NewSQLStore opens and pings a database/sql backed store.
func NewSQLStore(ctx context.Context, cfg Config, d dialect) (*SQLStore, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open(d.driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
	}

	s := &SQLStore{db: db, cfg: cfg, dialect: d}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[store:%s] connected (table %s)", d.name, cfg.Table)
	return s, nil
}

// Ping implements Store.Ping.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.name, err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("probe %s: %w", s.dialect.name, err)
	}
	return nil
}

// EnsureTable implements Store.EnsureTable.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTableSQL(s.cfg.Table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.cfg.Table, err)
	}
	return nil
}

// Upsert implements Store.Upsert.
func (s *SQLStore) Upsert(ctx context.Context, records []tables.DailyCellRecord) (int64, error) {
	if len(records) == 0 {
		return 0, ErrEmptyBatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var affected int64
	for _, batch := range chunks(lastWins(records), s.cfg.BatchSize) {
		res, err := tx.ExecContext(ctx, s.dialect.upsertSQL(s.cfg.Table, len(batch)), s.dialect.upsertArgs(batch)...)
		if err != nil {
			return 0, fmt.Errorf("upsert into %s: %w", s.cfg.Table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return affected, nil
}

// Purge implements Store.Purge.
func (s *SQLStore) Purge(ctx context.Context, req PurgeRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := s.dialect.purgeSQL(s.cfg.Table, req)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", s.cfg.Table, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return deleted, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    *pgxpool.Pool
	cfg     Config
	dialect dialect
}

// NewPostgresStore creates a pool and pings it.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := &PostgresStore{pool: pool, cfg: cfg, dialect: postgresDialect}
	if err := s.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Printf("[store:postgres] connected (table %s)", cfg.Table)
	return s, nil
}

// Ping implements Store.Ping.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// EnsureTable implements Store.EnsureTable.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.dialect.createTableSQL(s.cfg.Table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.cfg.Table, err)
	}
	return nil
}

// Upsert implements Store.Upsert.
func (s *PostgresStore) Upsert(ctx context.Context, records []tables.DailyCellRecord) (int64, error) {
	if len(records) == 0 {
		return 0, ErrEmptyBatch
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var affected int64
	for _, batch := range chunks(lastWins(records), s.cfg.BatchSize) {
		tag, err := tx.Exec(ctx, s.dialect.upsertSQL(s.cfg.Table, len(batch)), s.dialect.upsertArgs(batch)...)
		if err != nil {
			return 0, fmt.Errorf("upsert into %s: %w", s.cfg.Table, err)
		}
		affected += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return affected, nil
}

// Purge implements Store.Purge.
func (s *PostgresStore) Purge(ctx context.Context, req PurgeRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args := s.dialect.purgeSQL(s.cfg.Table, req)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", s.cfg.Table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases database connections.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

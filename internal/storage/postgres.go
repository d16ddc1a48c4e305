package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 5

const insertEvaluationSQL = `
	INSERT INTO price_evaluations
	(evaluated_at, label, wallet, target, source_currency, source_amount, target_amount,
	 state, has_balance, has_allowance, has_eth_balance, needs_balance, needs_allowance)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const latestEvaluationsSQL = `
	SELECT DISTINCT ON (label)
		id, evaluated_at, label, wallet, target, source_currency, source_amount, target_amount,
		state, has_balance, has_allowance, has_eth_balance, needs_balance, needs_allowance
	FROM price_evaluations
	ORDER BY label, evaluated_at DESC`

// Store manages PostgreSQL operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL store with connection pooling.
// The initial connection is retried with exponential backoff.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create pool: %w", err))
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
		}
		return pool, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("PostgreSQL not reachable, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// BatchInsertEvaluations inserts evaluations in a single pgx.Batch round trip
func (s *Store) BatchInsertEvaluations(ctx context.Context, evals []PriceEvaluation) error {
	if len(evals) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range evals {
		batch.Queue(insertEvaluationSQL,
			e.EvaluatedAt,
			e.Label,
			e.Wallet,
			e.Target,
			e.SourceCurrency,
			e.SourceAmount,
			e.TargetAmount,
			e.State,
			e.HasBalance,
			e.HasAllowance,
			e.HasEthBalance,
			e.NeedsBalance,
			e.NeedsAllowance,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range evals {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}

	return nil
}

// LatestEvaluations returns the most recent evaluation of every watch label
func (s *Store) LatestEvaluations(ctx context.Context) ([]PriceEvaluation, error) {
	rows, err := s.pool.Query(ctx, latestEvaluationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query latest evaluations: %w", err)
	}

	evals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PriceEvaluation, error) {
		var e PriceEvaluation
		err := row.Scan(
			&e.ID,
			&e.EvaluatedAt,
			&e.Label,
			&e.Wallet,
			&e.Target,
			&e.SourceCurrency,
			&e.SourceAmount,
			&e.TargetAmount,
			&e.State,
			&e.HasBalance,
			&e.HasAllowance,
			&e.HasEthBalance,
			&e.NeedsBalance,
			&e.NeedsAllowance,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan latest evaluations: %w", err)
	}
	return evals, nil
}

// Package database holds the Postgres stores. Tables are created by
// migrations outside this repository; the stores expect:
//
//	orders        (id bigserial pk, client_id bigint, status text, total bigint,
//	               created_at timestamptz, updated_at timestamptz)
//	products      (id bigserial pk, name text, price bigint)
//	order_product (order_id bigint references orders on delete cascade,
//	               product_id bigint references products, quantity int)
//	invoices      (id bigserial pk, order_id bigint unique references orders on delete cascade,
//	               number text, amount bigint, issued_at timestamptz)
//	transactions  (id bigserial pk, reference text, status text, amount bigint,
//	               due_date timestamptz, created_at timestamptz, updated_at timestamptz)
//
// Table names and the schema come from config.Tables.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/config"
	"github.com/TemirB/order-desk/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Connect opens a pool for cfg and pings it. With cfg.Pg.LogQueries every
// query is logged through logger.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.Pg.LogQueries {
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   newZapTracer(logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// storeError maps pgx.ErrNoRows to domain.ErrNotFound and wraps everything
// else in domain.ErrStoreFailure.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStoreFailure) || errors.Is(err, domain.ErrUnknownRelation) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, err)
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return storeError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return storeError("commit", err)
	}
	return nil
}

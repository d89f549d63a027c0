// Package pgexec implements executor.Executor on a pgx connection pool and
// registers the "postgres" kind.
package pgexec

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/milestone/internal/executor"
)

// KindPostgres is the executor kind registered by this package.
const KindPostgres = "postgres"

func init() {
	executor.Register(KindPostgres, func(ctx context.Context, cfg executor.Config) (executor.Executor, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Pool is a pgxpool backed executor.
type Pool struct {
	pool *pgxpool.Pool
}

var _ executor.Executor = (*Pool)(nil)

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// BeginTx starts a serializable transaction so concurrent ingestions of the
// same table cannot allocate the same batch id.
func (p *Pool) BeginTx(ctx context.Context) (executor.Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// Close releases every pooled connection.
func (p *Pool) Close() error {
	p.pool.Close()
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, stmt string) error {
	_, err := t.tx.Exec(ctx, stmt)
	return err
}

func (t *pgTx) Query(ctx context.Context, stmt string) ([]executor.Row, []string, error) {
	rows, err := t.tx.Query(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	var out []executor.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make(executor.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return out, cols, nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/internal/sqlbuild"
)

// querier is the part of *pgxpool.Pool and pgx.Tx the adapter uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var dialect = func() sqlbuild.Dialect {
	d := sqlbuild.Postgres
	d.Quote = func(ident string) string {
		return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
	}
	return d
}()

// Adapter runs DB block operations against PostgreSQL.
type Adapter struct {
	pool *pgxpool.Pool
	q    querier
}

// Ensure Adapter implements flow.Adapter.
var _ flow.Adapter = (*Adapter)(nil)

// NewAdapter returns an Adapter over pool.
func NewAdapter(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool, q: pool}
}

// Opener returns a flow.AdapterOpener connecting to databaseURL, for use
// with flow.AdapterCache.
func Opener(databaseURL string) flow.AdapterOpener {
	return func(ctx context.Context) (flow.Adapter, error) {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: ping: %w", err)
		}
		return NewAdapter(pool), nil
	}
}

func (a *Adapter) GetSingle(ctx context.Context, q flow.Query) (map[string]any, error) {
	q.Limit = 1
	rows, err := a.GetAll(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (a *Adapter) GetAll(ctx context.Context, q flow.Query) ([]map[string]any, error) {
	st, err := dialect.Select(q)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, st)
}

func (a *Adapter) Insert(ctx context.Context, table string, row map[string]any) (map[string]any, error) {
	st, err := dialect.Insert(table, row)
	if err != nil {
		return nil, err
	}
	rows, err := a.query(ctx, st)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (a *Adapter) InsertBulk(ctx context.Context, table string, rows []map[string]any) ([]map[string]any, error) {
	if len(rows) == 0 {
		return []map[string]any{}, nil
	}
	st, err := dialect.InsertBulk(table, rows)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, st)
}

func (a *Adapter) Update(ctx context.Context, q flow.Query, row map[string]any) (int64, error) {
	st, err := dialect.Update(q, row)
	if err != nil {
		return 0, err
	}
	return a.exec(ctx, st)
}

func (a *Adapter) Delete(ctx context.Context, q flow.Query) (int64, error) {
	st, err := dialect.Delete(q)
	if err != nil {
		return 0, err
	}
	return a.exec(ctx, st)
}

func (a *Adapter) Native(ctx context.Context, script string, args []any) ([]map[string]any, error) {
	st, err := dialect.Native(script, args)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, st)
}

// Begin starts a transaction. Transactions do not nest.
func (a *Adapter) Begin(ctx context.Context) (flow.TxAdapter, error) {
	if a.pool == nil {
		return nil, flow.ErrNestedTransaction
	}
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Tx{Adapter: Adapter{q: tx}, tx: tx}, nil
}

// Close closes the pool.
func (a *Adapter) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *Adapter) exec(ctx context.Context, st sqlbuild.Statement) (int64, error) {
	ct, err := a.q.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: exec: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (a *Adapter) query(ctx context.Context, st sqlbuild.Statement) ([]map[string]any, error) {
	rows, err := a.q.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("postgres: collect rows: %w", err)
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

// Tx is an Adapter scoped to an open transaction.
type Tx struct {
	Adapter
	tx pgx.Tx
}

// Ensure Tx implements flow.TxAdapter.
var _ flow.TxAdapter = (*Tx)(nil)

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Package sqlite implements flow.Adapter over database/sql with a SQLite
// driver.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). Open imports that driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/internal/sqlbuild"
)

// querier is the part of *sql.DB and *sql.Tx the adapter uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// dialect binds maps and slices as JSON text.
var dialect = func() sqlbuild.Dialect {
	d := sqlbuild.SQLite
	d.Value = func(v any) (any, error) {
		switch v.(type) {
		case map[string]any, []any:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return string(raw), nil
		}
		return v, nil
	}
	return d
}()

// Adapter runs DB block operations against a SQLite database.
type Adapter struct {
	db *sql.DB
	q  querier
}

// Ensure Adapter implements flow.Adapter.
var _ flow.Adapter = (*Adapter)(nil)

// New returns an Adapter over db.
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db, q: db}
}

// Open opens the SQLite database at dsn. SQLite has a single writer, and
// every connection to ":memory:" is its own database, so the pool is
// limited to one connection.
func Open(ctx context.Context, dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db), nil
}

// Opener returns a flow.AdapterOpener for dsn, for use with flow.AdapterCache.
func Opener(dsn string) flow.AdapterOpener {
	return func(ctx context.Context) (flow.Adapter, error) {
		return Open(ctx, dsn)
	}
}

// DB returns the underlying database.
func (a *Adapter) DB() *sql.DB { return a.db }

// Close closes the underlying database.
func (a *Adapter) Close() error { return a.db.Close() }

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
	if a.db == nil {
		return nil, flow.ErrNestedTransaction
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &Tx{Adapter: Adapter{q: tx}, tx: tx}, nil
}

func (a *Adapter) exec(ctx context.Context, st sqlbuild.Statement) (int64, error) {
	res, err := a.q.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: exec: %w", err)
	}
	return res.RowsAffected()
}

func (a *Adapter) query(ctx context.Context, st sqlbuild.Statement) ([]map[string]any, error) {
	rows, err := a.q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Tx is an Adapter scoped to an open transaction.
type Tx struct {
	Adapter
	tx *sql.Tx
}

// Ensure Tx implements flow.TxAdapter.
var _ flow.TxAdapter = (*Tx)(nil)

func (t *Tx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *Tx) Rollback(context.Context) error {
	return t.tx.Rollback()
}

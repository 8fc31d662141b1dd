package block

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/meikuraledutech/flow"
)

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, startID string, input any) (flow.Output, error)

func (f runnerFunc) Start(ctx context.Context, startID string, input any) (flow.Output, error) {
	return f(ctx, startID, input)
}

// recordingRunner records every nested run and succeeds.
type recordingRunner struct {
	starts []string
	inputs []any
}

func (r *recordingRunner) Start(_ context.Context, startID string, input any) (flow.Output, error) {
	r.starts = append(r.starts, startID)
	r.inputs = append(r.inputs, input)
	return flow.Continue("", input), nil
}

// scriptFunc adapts a function to flow.ScriptRuntime.
type scriptFunc func(ctx context.Context, script string, input any) (any, error)

func (f scriptFunc) Run(ctx context.Context, script string, input any) (any, error) {
	return f(ctx, script, input)
}

// inputField is a script runtime resolving "input.<key>" against a map input.
var inputField = scriptFunc(func(_ context.Context, script string, input any) (any, error) {
	key, ok := strings.CutPrefix(script, "input.")
	if !ok {
		return nil, errors.New("unsupported script " + script)
	}
	m, _ := input.(map[string]any)
	return m[key], nil
})

// fakeAdapter records calls and returns canned results.
type fakeAdapter struct {
	err error

	queries []flow.Query
	inserts []map[string]any
	bulk    [][]map[string]any
	updates []map[string]any
	natives []string
	args    [][]any

	rows []map[string]any

	begun, committed, rolledBack int
	tx                           *fakeTx
}

var _ flow.Adapter = (*fakeAdapter)(nil)

func (a *fakeAdapter) GetSingle(_ context.Context, q flow.Query) (map[string]any, error) {
	a.queries = append(a.queries, q)
	if a.err != nil {
		return nil, a.err
	}
	if len(a.rows) == 0 {
		return nil, nil
	}
	return a.rows[0], nil
}

func (a *fakeAdapter) GetAll(_ context.Context, q flow.Query) ([]map[string]any, error) {
	a.queries = append(a.queries, q)
	return a.rows, a.err
}

func (a *fakeAdapter) Insert(_ context.Context, table string, row map[string]any) (map[string]any, error) {
	a.queries = append(a.queries, flow.Query{Table: table})
	a.inserts = append(a.inserts, row)
	return row, a.err
}

func (a *fakeAdapter) InsertBulk(_ context.Context, table string, rows []map[string]any) ([]map[string]any, error) {
	a.queries = append(a.queries, flow.Query{Table: table})
	a.bulk = append(a.bulk, rows)
	return rows, a.err
}

func (a *fakeAdapter) Update(_ context.Context, q flow.Query, row map[string]any) (int64, error) {
	a.queries = append(a.queries, q)
	a.updates = append(a.updates, row)
	return 1, a.err
}

func (a *fakeAdapter) Delete(_ context.Context, q flow.Query) (int64, error) {
	a.queries = append(a.queries, q)
	return 2, a.err
}

func (a *fakeAdapter) Native(_ context.Context, script string, args []any) ([]map[string]any, error) {
	a.natives = append(a.natives, script)
	a.args = append(a.args, args)
	return a.rows, a.err
}

func (a *fakeAdapter) Begin(context.Context) (flow.TxAdapter, error) {
	a.begun++
	a.tx = &fakeTx{fakeAdapter: &fakeAdapter{}, parent: a}
	return a.tx, nil
}

type fakeTx struct {
	*fakeAdapter
	parent *fakeAdapter
}

func (t *fakeTx) Commit(context.Context) error {
	t.parent.committed++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.parent.rolledBack++
	return nil
}

// adapters is a static flow.AdapterFactory.
type adapters map[string]flow.Adapter

func (m adapters) Adapter(_ context.Context, id string) (flow.Adapter, error) {
	a, ok := m[id]
	if !ok {
		return nil, flow.ErrAdapterNotFound
	}
	return a, nil
}

// fakeHTTP returns a canned result.
type fakeHTTP struct {
	res  *flow.HTTPResult
	err  error
	reqs []flow.HTTPRequest
}

func (c *fakeHTTP) Do(_ context.Context, req flow.HTTPRequest) (*flow.HTTPResult, error) {
	c.reqs = append(c.reqs, req)
	return c.res, c.err
}

// sinkFunc adapts a function to flow.LogSink.
type sinkFunc func(ctx context.Context, level slog.Level, msg string)

func (f sinkFunc) Log(ctx context.Context, level slog.Level, msg string) { f(ctx, level, msg) }

func newContext() *flow.ExecutionContext {
	ec := flow.NewExecutionContext(0)
	ec.Logger = slog.New(slog.DiscardHandler)
	return ec
}

package sqlite

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/engine"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()

	a, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
	})

	_, err = a.DB().Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			age INTEGER,
			meta TEXT
		);`)
	require.NoError(t, err)
	return a
}

func TestAdapterCRUD(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	row, err := a.Insert(ctx, "users", map[string]any{"name": "ada", "age": 36, "meta": map[string]any{"admin": true}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "ada", row["name"])
	assert.Equal(t, `{"admin":true}`, row["meta"])

	rows, err := a.InsertBulk(ctx, "users", []map[string]any{
		{"name": "grace", "age": 45},
		{"name": "linus"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1]["age"])

	all, err := a.GetAll(ctx, flow.Query{
		Table:   "users",
		Fields:  []string{"name"},
		Where:   []flow.Condition{{LHS: "age", RHS: 40, Operator: flow.OpLt, Chain: flow.ChainOr}, {LHS: "age", Operator: flow.OpEq}},
		OrderBy: "name",
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "ada"}, {"name": "linus"}}, all)

	one, err := a.GetSingle(ctx, flow.Query{Table: "users", Where: []flow.Condition{{LHS: "name", RHS: "gr", Operator: flow.OpStartsWith}}})
	require.NoError(t, err)
	assert.Equal(t, int64(45), one["age"])

	none, err := a.GetSingle(ctx, flow.Query{Table: "users", Where: []flow.Condition{{LHS: "name", RHS: "nobody", Operator: flow.OpEq}}})
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err := a.Update(ctx, flow.Query{Table: "users", Where: []flow.Condition{{LHS: "id", RHS: []any{1, 2}, Operator: flow.OpIn}}}, map[string]any{"age": 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counted, err := a.Native(ctx, "SELECT count(*) AS n FROM users WHERE age = ?", []any{50})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": int64(2)}}, counted)

	n, err = a.Delete(ctx, flow.Query{Table: "users", Where: []flow.Condition{{LHS: "name", RHS: "linus", Operator: flow.OpNeq}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = a.GetAll(ctx, flow.Query{Table: "missing"})
	assert.Error(t, err)
}

func TestAdapterTransactions(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	tx, err := a.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Insert(ctx, "users", map[string]any{"name": "kept"})
	require.NoError(t, err)
	_, err = tx.Begin(ctx)
	assert.ErrorIs(t, err, flow.ErrNestedTransaction)
	require.NoError(t, tx.Commit(ctx))

	tx, err = a.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Insert(ctx, "users", map[string]any{"name": "dropped"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	rows, err := a.GetAll(ctx, flow.Query{Table: "users", Fields: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "kept"}}, rows)
}

func node(id string, t flow.NodeType, data string) flow.Node {
	return flow.Node{ID: id, Type: t, Data: json.RawMessage(data)}
}

func edge(from, to, handle string) flow.Edge {
	return flow.Edge{FromNodeID: from, ToNodeID: to, FromHandle: "source", ToHandle: handle}
}

// transactionGraph inserts a user and then runs second inside one
// transaction before responding.
func transactionGraph(second flow.Node) *flow.Graph {
	return &flow.Graph{
		Nodes: []flow.Node{
			node("entry", flow.NodeEntrypoint, `{}`),
			node("tx", flow.NodeTransaction, `{"connectionId":"main"}`),
			node("insert", flow.NodeDBInsert, `{"connectionId":"main","table":"users","data":{"name":"ada"}}`),
			second,
			node("done", flow.NodeResponse, `{"httpCode":201}`),
		},
		Edges: []flow.Edge{
			edge("entry", "tx", flow.HandleSource),
			edge("tx", "insert", flow.HandleExecutor),
			edge("insert", second.ID, flow.HandleSource),
			edge("tx", "done", flow.HandleSource),
		},
	}
}

func TestTransactionBlockCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	ec := flow.NewExecutionContext(0)
	ec.Logger = slog.New(slog.DiscardHandler)
	cache := flow.NewAdapterCache()
	cache.Put("main", a)
	ec.Adapters = cache

	g := transactionGraph(node("count", flow.NodeDBNative, `{"connectionId":"main","script":"SELECT count(*) AS n FROM users"}`))
	out, err := engine.Run(ctx, g, ec, nil)
	require.NoError(t, err)
	require.False(t, out.IsFatal(), out.Error)

	res, ok := out.Output.(flow.HTTPResponse)
	require.True(t, ok)
	assert.Equal(t, 201, res.HTTPCode)
	// the count ran inside the transaction and saw the insert
	assert.Equal(t, []map[string]any{{"n": int64(1)}}, res.Body)

	rows, err := a.GetAll(ctx, flow.Query{Table: "users", Fields: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "ada"}}, rows)
}

func TestTransactionBlockRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	ec := flow.NewExecutionContext(0)
	ec.Logger = slog.New(slog.DiscardHandler)
	cache := flow.NewAdapterCache()
	cache.Put("main", a)
	ec.Adapters = cache

	g := transactionGraph(node("broken", flow.NodeDBInsert, `{"connectionId":"main","table":"missing","data":{"x":1}}`))
	out, err := engine.Run(ctx, g, ec, nil)
	require.NoError(t, err)
	assert.True(t, out.IsFatal())
	assert.Equal(t, "transaction failed", out.Error)

	rows, err := a.GetAll(ctx, flow.Query{Table: "users"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

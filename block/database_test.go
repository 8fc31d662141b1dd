package block

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/condition"
)

func dbContext(db flow.Adapter) *flow.ExecutionContext {
	ec := newContext()
	ec.Script = inputField
	ec.Adapters = adapters{"main": db}
	return ec
}

func TestNewDatabaseRejectsBadConfig(t *testing.T) {
	ec := newContext()

	_, err := NewDatabase(ec, DBGetAll, DBConfig{Table: "users", Conditions: []flow.Condition{
		{LHS: "tags", Operator: flow.OpIsEmpty},
	}}, "")
	assert.ErrorIs(t, err, condition.ErrUnsupportedOperator)

	_, err = NewDatabase(ec, DBGetAll, DBConfig{}, "")
	assert.ErrorContains(t, err, "table is required")

	_, err = NewDatabase(ec, DBNative, DBConfig{Table: "users"}, "")
	assert.ErrorContains(t, err, "script is required")

	_, err = NewDatabase(ec, "merge", DBConfig{Table: "users"}, "")
	assert.Error(t, err)
}

func TestDatabaseGetAllResolvesQuery(t *testing.T) {
	db := &fakeAdapter{rows: []map[string]any{{"id": 1}, {"id": 2}}}
	b, err := NewDatabase(dbContext(db), DBGetAll, DBConfig{
		ConnectionID: "main",
		Table:        "js:input.table",
		Conditions: []flow.Condition{
			{LHS: "age", RHS: "js:input.minAge", Operator: flow.OpGte},
			{LHS: "name", RHS: "a", Operator: flow.OpStartsWith, Chain: flow.ChainOr},
		},
		Fields:  []string{"id"},
		OrderBy: "id",
		Desc:    true,
		Limit:   5,
	}, "next")
	require.NoError(t, err)

	out, err := b.Execute(context.Background(), map[string]any{"table": "users", "minAge": 18.0})
	require.NoError(t, err)
	assert.Equal(t, flow.Continue("next", []map[string]any{{"id": 1}, {"id": 2}}), out)

	require.Len(t, db.queries, 1)
	q := db.queries[0]
	assert.Equal(t, "users", q.Table)
	assert.Equal(t, 18.0, q.Where[0].RHS)
	assert.Equal(t, "a", q.Where[1].RHS)
	assert.Equal(t, []string{"id"}, q.Fields)
	assert.True(t, q.Desc)
	assert.Equal(t, 5, q.Limit)
}

func TestDatabaseInsertResolvesNestedScripts(t *testing.T) {
	db := &fakeAdapter{}
	data := map[string]any{
		"name": "js:input.name",
		"meta": map[string]any{"tags": []any{"static", "js:input.tag"}},
	}
	b, err := NewDatabase(dbContext(db), DBInsert, DBConfig{ConnectionID: "main", Table: "users", Data: data}, "next")
	require.NoError(t, err)

	_, err = b.Execute(context.Background(), map[string]any{"name": "ada", "tag": "admin"})
	require.NoError(t, err)
	require.Len(t, db.inserts, 1)
	assert.Equal(t, map[string]any{
		"name": "ada",
		"meta": map[string]any{"tags": []any{"static", "admin"}},
	}, db.inserts[0])
	assert.Equal(t, "js:input.name", data["name"])
}

func TestDatabaseInsertBulkFromParams(t *testing.T) {
	db := &fakeAdapter{}
	b, err := NewDatabase(dbContext(db), DBInsertBulk, DBConfig{ConnectionID: "main", Table: "items", UseParams: true}, "")
	require.NoError(t, err)

	_, err = b.Execute(context.Background(), []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}})
	require.NoError(t, err)
	require.Len(t, db.bulk, 1)
	assert.Len(t, db.bulk[0], 2)

	_, err = b.Execute(context.Background(), []any{"not a row"})
	assert.Error(t, err)
}

func TestDatabaseUpdateDeleteNative(t *testing.T) {
	db := &fakeAdapter{rows: []map[string]any{{"n": 1}}}
	ec := dbContext(db)
	where := []flow.Condition{{LHS: "id", RHS: 3, Operator: flow.OpEq}}

	upd, err := NewDatabase(ec, DBUpdate, DBConfig{ConnectionID: "main", Table: "users", Conditions: where, Data: map[string]any{"active": false}}, "")
	require.NoError(t, err)
	out, err := upd.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Output)
	assert.Equal(t, []map[string]any{{"active": false}}, db.updates)

	del, err := NewDatabase(ec, DBDelete, DBConfig{ConnectionID: "main", Table: "users", Conditions: where}, "")
	require.NoError(t, err)
	out, err = del.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Output)

	native, err := NewDatabase(ec, DBNative, DBConfig{ConnectionID: "main", Script: "select count(*) as n from users where org = ?", Args: []any{"js:input.org"}}, "")
	require.NoError(t, err)
	out, err = native.Execute(context.Background(), map[string]any{"org": "acme"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": 1}}, out.Output)
	assert.Equal(t, [][]any{{"acme"}}, db.args)
}

func TestDatabaseFailureIsGeneric(t *testing.T) {
	db := &fakeAdapter{err: errors.New(`pq: duplicate key value violates unique constraint "users_pkey"`)}
	b, err := NewDatabase(dbContext(db), DBGetSingle, DBConfig{ConnectionID: "main", Table: "users"}, "next")
	require.NoError(t, err)

	out, err := b.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.IsFatal())
	assert.Equal(t, ErrDatabase.Error(), out.Error)
	assert.NotContains(t, out.Error, "users_pkey")

	missing, err := NewDatabase(dbContext(db), DBGetSingle, DBConfig{ConnectionID: "other", Table: "users"}, "next")
	require.NoError(t, err)
	out, err = missing.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ErrDatabase.Error(), out.Error)
}

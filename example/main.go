// Command example builds a signup workflow over an in-memory store and an
// in-memory SQLite database and invokes it a few times.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/tidwall/pretty"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/hclscript"
	"github.com/meikuraledutech/flow/memstore"
	"github.com/meikuraledutech/flow/sqlite"
)

const signup = `{
	"id": "signup",
	"nodes": [
		{"ref": "entry", "type": "entrypoint", "data": {}},
		{"ref": "check", "type": "if", "data": {"conditions": [
			{"lhs": "js:input.email", "operator": "is_not_empty"},
			{"lhs": "js:length(input.name)", "rhs": 2, "operator": "gte"}
		]}},
		{"ref": "shape", "type": "transformer", "data": {"useScript": true,
			"script": "js:{ name = title(input.name), email = lower(input.email) }"}},
		{"ref": "save", "type": "db_insert", "data": {"connectionId": "default", "table": "users", "useParams": true}},
		{"ref": "log", "type": "logging", "data": {"message": "js:\"saved ${input.email}\""}},
		{"ref": "created", "type": "response", "data": {"httpCode": 201}},
		{"ref": "rejected", "type": "response", "data": {"httpCode": 400}},
		{"ref": "oops", "type": "error_handler", "data": {}},
		{"ref": "failed", "type": "response", "data": {"httpCode": 500}}
	],
	"edges": [
		{"from_node_ref": "entry", "to_node_ref": "check", "to_handle": "source"},
		{"from_node_ref": "check", "to_node_ref": "shape", "to_handle": "success"},
		{"from_node_ref": "check", "to_node_ref": "rejected", "to_handle": "failure"},
		{"from_node_ref": "shape", "to_node_ref": "save", "to_handle": "source"},
		{"from_node_ref": "save", "to_node_ref": "log", "to_handle": "source"},
		{"from_node_ref": "log", "to_node_ref": "created", "to_handle": "source"},
		{"from_node_ref": "oops", "to_node_ref": "failed", "to_handle": "source"}
	]
}`

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	if _, err := db.DB().ExecContext(ctx, `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE
		)`); err != nil {
		log.Fatalf("create table: %v", err)
	}

	adapters := flow.NewAdapterCache()
	adapters.Put("default", db)

	// Store the graph the way the server does.
	var store flow.Store = memstore.New()
	var g flow.Graph
	if err := json.Unmarshal([]byte(signup), &g); err != nil {
		log.Fatalf("decode graph: %v", err)
	}
	if err := g.Prepare(); err != nil {
		log.Fatalf("prepare: %v", err)
	}
	if err := engine.Validate(&g); err != nil {
		log.Fatalf("validate: %v", err)
	}
	if _, err := store.CreateGraph(ctx, &g); err != nil {
		log.Fatalf("create graph: %v", err)
	}
	fmt.Println("graph stored")

	stored, err := store.GetGraph(ctx, "signup")
	if err != nil {
		log.Fatalf("get graph: %v", err)
	}

	inputs := []any{
		map[string]any{"name": "ada lovelace", "email": "ADA@example.com"},
		map[string]any{"name": "x", "email": "x@example.com"},
		// Violates the unique email; the error handler answers.
		map[string]any{"name": "ada byron", "email": "ada@example.com"},
	}
	for _, in := range inputs {
		ec := flow.NewExecutionContext(5 * time.Second)
		ec.Logger = logger.With(slog.String("graph_id", stored.ID))
		ec.Observer = flow.NewLoggingObserver(ec.Logger)
		ec.Script = hclscript.New(hclscript.WithVariables(ec.Vars))
		ec.Adapters = adapters

		out, err := engine.Run(ctx, stored, ec, in)
		if err != nil {
			log.Fatalf("run: %v", err)
		}
		printJSON(out)
	}

	rows, err := db.GetAll(ctx, flow.Query{Table: "users", OrderBy: "id"})
	if err != nil {
		log.Fatalf("list users: %v", err)
	}
	fmt.Println("users:")
	printJSON(rows)
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(pretty.Color(pretty.Pretty(b), nil)))
}

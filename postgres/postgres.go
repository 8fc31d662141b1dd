// Package postgres persists graphs in PostgreSQL and runs DB blocks against
// it, both via pgx.
package postgres

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flow"
)

// PGStore implements flow.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

// Ensure PGStore implements flow.Store.
var _ flow.Store = (*PGStore)(nil)

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// nodeData returns the config to persist for n; an absent config is stored
// as an empty object.
func nodeData(n *flow.Node) json.RawMessage {
	if len(n.Data) == 0 {
		return json.RawMessage(`{}`)
	}
	return n.Data
}

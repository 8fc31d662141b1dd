package postgres

import "context"

// seq keeps insertion order, which is the order of a node's successors;
// rows inserted in one transaction share created_at.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS flow_nodes (
    id         TEXT PRIMARY KEY,
    graph_id   TEXT NOT NULL,
    type       TEXT NOT NULL,
    data       JSONB NOT NULL DEFAULT '{}',
    position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
    position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
    seq        BIGSERIAL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_edges (
    id           TEXT PRIMARY KEY,
    graph_id     TEXT NOT NULL,
    from_node_id TEXT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    to_node_id   TEXT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    from_handle  TEXT NOT NULL DEFAULT '',
    to_handle    TEXT NOT NULL DEFAULT '',
    seq          BIGSERIAL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_flow_nodes_graph_id ON flow_nodes(graph_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_graph_id ON flow_edges(graph_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_from     ON flow_edges(from_node_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_to       ON flow_edges(to_node_id);
`

// CreateSchema creates the flow_nodes and flow_edges tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the flow_edges and flow_nodes tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS flow_edges, flow_nodes CASCADE;`)
	return err
}

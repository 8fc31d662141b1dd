package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/flow"
)

const (
	nodeColumns = `id, type, data, position_x, position_y`
	edgeColumns = `id, from_node_id, to_node_id, from_handle, to_handle`
)

// CreateGraph saves a full graph (nodes + edges) in one transaction.
// Nodes/edges without IDs get auto-generated UUIDs, and so does the graph.
// Edge refs (FromNodeRef/ToNodeRef) are resolved to real node IDs.
// The graph structure is validated before anything is written.
// Returns the graph with all IDs filled in.
func (s *PGStore) CreateGraph(ctx context.Context, g *flow.Graph) (*flow.Graph, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := g.Prepare(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	// Persist in a single transaction.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Delete existing graph data if any (replace semantics).
	if err := deleteGraph(ctx, tx, g.ID); err != nil {
		return nil, err
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO flow_nodes (id, graph_id, type, data, position_x, position_y) VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, g.ID, string(n.Type), nodeData(n), n.Position.X, n.Position.Y,
		); err != nil {
			return nil, fmt.Errorf("flow: insert node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO flow_edges (id, graph_id, from_node_id, to_node_id, from_handle, to_handle) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, g.ID, e.FromNodeID, e.ToNodeID, e.FromHandle, e.ToHandle,
		); err != nil {
			return nil, fmt.Errorf("flow: insert edge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("flow: commit: %w", err)
	}

	g.ClearRefs()
	return g, nil
}

// GetGraph retrieves a full graph (nodes + edges) by its ID.
// Returns ErrGraphNotFound if no nodes exist for the graphID.
func (s *PGStore) GetGraph(ctx context.Context, graphID string) (*flow.Graph, error) {
	nodes, err := s.ListNodes(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, flow.ErrGraphNotFound
	}
	edges, err := s.ListEdges(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return &flow.Graph{ID: graphID, Nodes: nodes, Edges: edges}, nil
}

// DeleteGraph removes all nodes and edges for a graphID.
// No error if the graphID doesn't exist.
func (s *PGStore) DeleteGraph(ctx context.Context, graphID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteGraph(ctx, tx, graphID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func deleteGraph(ctx context.Context, tx pgx.Tx, graphID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM flow_edges WHERE graph_id = $1`, graphID); err != nil {
		return fmt.Errorf("flow: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flow_nodes WHERE graph_id = $1`, graphID); err != nil {
		return fmt.Errorf("flow: delete nodes: %w", err)
	}
	return nil
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (flow.Node, error) {
	var (
		n   flow.Node
		typ string
	)
	err := row.Scan(&n.ID, &typ, &n.Data, &n.Position.X, &n.Position.Y)
	n.Type = flow.NodeType(typ)
	return n, err
}

func scanEdge(row scanner) (flow.Edge, error) {
	var e flow.Edge
	err := row.Scan(&e.ID, &e.FromNodeID, &e.ToNodeID, &e.FromHandle, &e.ToHandle)
	return e, err
}

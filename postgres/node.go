package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meikuraledutech/flow"
)

// AddNode inserts a single node into a graph.
// If node.ID is empty, a UUID is auto-generated.
// Returns the node ID (generated or provided).
func (s *PGStore) AddNode(ctx context.Context, graphID string, node *flow.Node) (string, error) {
	if !node.Type.Valid() {
		return "", fmt.Errorf("%w: %q", flow.ErrUnknownNodeType, node.Type)
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO flow_nodes (id, graph_id, type, data, position_x, position_y) VALUES ($1, $2, $3, $4, $5, $6)`,
		node.ID, graphID, string(node.Type), nodeData(node), node.Position.X, node.Position.Y,
	)
	if err != nil {
		return "", fmt.Errorf("flow: insert node: %w", err)
	}

	return node.ID, nil
}

// GetNode fetches a single node by its ID.
// Returns ErrNodeNotFound if it doesn't exist.
func (s *PGStore) GetNode(ctx context.Context, nodeID string) (*flow.Node, error) {
	n, err := scanNode(s.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM flow_nodes WHERE id = $1`, nodeID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, flow.ErrNodeNotFound
		}
		return nil, fmt.Errorf("flow: get node: %w", err)
	}

	return &n, nil
}

// UpdateNode updates the type, config and position of an existing node.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) UpdateNode(ctx context.Context, node *flow.Node) error {
	if !node.Type.Valid() {
		return fmt.Errorf("%w: %q", flow.ErrUnknownNodeType, node.Type)
	}
	ct, err := s.db.Exec(ctx,
		`UPDATE flow_nodes SET type = $1, data = $2, position_x = $3, position_y = $4 WHERE id = $5`,
		string(node.Type), nodeData(node), node.Position.X, node.Position.Y, node.ID,
	)
	if err != nil {
		return fmt.Errorf("flow: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return flow.ErrNodeNotFound
	}
	return nil
}

// DeleteNode deletes a node by its ID.
// Associated edges are cascade-deleted by the DB.
// No error if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, nodeID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM flow_nodes WHERE id = $1`, nodeID)
	if err != nil {
		return fmt.Errorf("flow: delete node: %w", err)
	}
	return nil
}

// ListNodes returns all nodes for a graphID, in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListNodes(ctx context.Context, graphID string) ([]flow.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM flow_nodes WHERE graph_id = $1 ORDER BY seq`, graphID)
	if err != nil {
		return nil, fmt.Errorf("flow: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []flow.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("flow: scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows nodes: %w", err)
	}

	return nodes, nil
}

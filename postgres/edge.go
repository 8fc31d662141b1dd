package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meikuraledutech/flow"
)

// AddEdge inserts a single edge into a graph.
// If edge.ID is empty, a UUID is auto-generated.
// Validates that adding this edge does not create a cycle.
// Returns the edge ID (generated or provided).
func (s *PGStore) AddEdge(ctx context.Context, graphID string, edge *flow.Edge) (string, error) {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	// Fetch existing edges + nodes for cycle detection.
	nodes, err := s.ListNodes(ctx, graphID)
	if err != nil {
		return "", err
	}
	edges, err := s.ListEdges(ctx, graphID)
	if err != nil {
		return "", err
	}

	edges = append(edges, *edge)
	if err := flow.CheckCycles(nodes, edges); err != nil {
		return "", err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO flow_edges (id, graph_id, from_node_id, to_node_id, from_handle, to_handle) VALUES ($1, $2, $3, $4, $5, $6)`,
		edge.ID, graphID, edge.FromNodeID, edge.ToNodeID, edge.FromHandle, edge.ToHandle,
	)
	if err != nil {
		return "", fmt.Errorf("flow: insert edge: %w", err)
	}

	return edge.ID, nil
}

// GetEdge fetches a single edge by its ID.
// Returns ErrEdgeNotFound if it doesn't exist.
func (s *PGStore) GetEdge(ctx context.Context, edgeID string) (*flow.Edge, error) {
	e, err := scanEdge(s.db.QueryRow(ctx,
		`SELECT `+edgeColumns+` FROM flow_edges WHERE id = $1`, edgeID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, flow.ErrEdgeNotFound
		}
		return nil, fmt.Errorf("flow: get edge: %w", err)
	}

	return &e, nil
}

// UpdateEdge updates an existing edge's endpoints and handles.
// Validates that the update does not create a cycle.
// Returns ErrEdgeNotFound if the edge doesn't exist.
func (s *PGStore) UpdateEdge(ctx context.Context, edge *flow.Edge) error {
	// First find the edge's graph_id.
	var graphID string
	err := s.db.QueryRow(ctx,
		`SELECT graph_id FROM flow_edges WHERE id = $1`, edge.ID,
	).Scan(&graphID)
	if err != nil {
		if isNoRows(err) {
			return flow.ErrEdgeNotFound
		}
		return fmt.Errorf("flow: find edge: %w", err)
	}

	nodes, err := s.ListNodes(ctx, graphID)
	if err != nil {
		return err
	}
	existing, err := s.ListEdges(ctx, graphID)
	if err != nil {
		return err
	}

	// Replace the updated edge in the list.
	for i, e := range existing {
		if e.ID == edge.ID {
			existing[i] = *edge
			break
		}
	}

	if err := flow.CheckCycles(nodes, existing); err != nil {
		return err
	}

	ct, err := s.db.Exec(ctx,
		`UPDATE flow_edges SET from_node_id = $1, to_node_id = $2, from_handle = $3, to_handle = $4 WHERE id = $5`,
		edge.FromNodeID, edge.ToNodeID, edge.FromHandle, edge.ToHandle, edge.ID,
	)
	if err != nil {
		return fmt.Errorf("flow: update edge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return flow.ErrEdgeNotFound
	}
	return nil
}

// DeleteEdge deletes an edge by its ID.
// No error if the edge doesn't exist.
func (s *PGStore) DeleteEdge(ctx context.Context, edgeID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM flow_edges WHERE id = $1`, edgeID)
	if err != nil {
		return fmt.Errorf("flow: delete edge: %w", err)
	}
	return nil
}

// ListEdges returns all edges for a graphID, in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListEdges(ctx context.Context, graphID string) ([]flow.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+edgeColumns+` FROM flow_edges WHERE graph_id = $1 ORDER BY seq`, graphID)
	if err != nil {
		return nil, fmt.Errorf("flow: list edges: %w", err)
	}
	defer rows.Close()

	edges := []flow.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("flow: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows edges: %w", err)
	}

	return edges, nil
}

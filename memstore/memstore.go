// Package memstore implements flow.Store in memory. It backs tests and
// single-process hosts that do not need graphs to outlive the process.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/meikuraledutech/flow"
)

// Store is an in-memory flow.Store. It is safe for concurrent use. Values
// are copied in and out, so callers never share state with the store.
type Store struct {
	mu     sync.RWMutex
	nodes  map[string][]flow.Node // by graph id, insertion order
	edges  map[string][]flow.Edge // by graph id, insertion order
	owners map[string]string      // node or edge id -> graph id
}

// Ensure Store implements flow.Store.
var _ flow.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.nodes = make(map[string][]flow.Node)
	s.edges = make(map[string][]flow.Edge)
	s.owners = make(map[string]string)
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(context.Context) error { return nil }

// DropSchema removes every graph.
func (s *Store) DropSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// CreateGraph saves a full graph, replacing any graph with the same id.
// IDs and refs are handled as by the PostgreSQL store.
func (s *Store) CreateGraph(_ context.Context, g *flow.Graph) (*flow.Graph, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := g.Prepare(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.ClearRefs()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOwnership(g); err != nil {
		return nil, err
	}
	graphID := strings.Clone(g.ID)
	s.deleteGraph(graphID)
	for _, n := range g.Nodes {
		n = cloneNode(n)
		s.nodes[graphID] = append(s.nodes[graphID], n)
		s.owners[n.ID] = graphID
	}
	for _, e := range g.Edges {
		e = cloneEdge(e)
		s.edges[graphID] = append(s.edges[graphID], e)
		s.owners[e.ID] = graphID
	}
	return g, nil
}

// checkOwnership rejects ids repeated within g or owned by another graph,
// as the primary keys of the PostgreSQL schema do.
func (s *Store) checkOwnership(g *flow.Graph) error {
	seen := make(map[string]bool, len(g.Nodes)+len(g.Edges))
	check := func(kind, id string) error {
		if owner, ok := s.owners[id]; seen[id] || (ok && owner != g.ID) {
			return fmt.Errorf("flow: insert %s: duplicate id %q", kind, id)
		}
		seen[id] = true
		return nil
	}
	for _, n := range g.Nodes {
		if err := check("node", n.ID); err != nil {
			return err
		}
	}
	for _, e := range g.Edges {
		if err := check("edge", e.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetGraph returns ErrGraphNotFound when the graph has no nodes.
func (s *Store) GetGraph(_ context.Context, graphID string) (*flow.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.nodes[graphID]) == 0 {
		return nil, flow.ErrGraphNotFound
	}
	return &flow.Graph{
		ID:    graphID,
		Nodes: s.listNodes(graphID),
		Edges: slices.Clone(s.edges[graphID]),
	}, nil
}

func (s *Store) DeleteGraph(_ context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteGraph(graphID)
	return nil
}

func (s *Store) deleteGraph(graphID string) {
	for _, n := range s.nodes[graphID] {
		delete(s.owners, n.ID)
	}
	for _, e := range s.edges[graphID] {
		delete(s.owners, e.ID)
	}
	delete(s.nodes, graphID)
	delete(s.edges, graphID)
}

func (s *Store) AddNode(_ context.Context, graphID string, node *flow.Node) (string, error) {
	if !node.Type.Valid() {
		return "", fmt.Errorf("%w: %q", flow.ErrUnknownNodeType, node.Type)
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owners[node.ID]; ok {
		return "", fmt.Errorf("flow: insert node: duplicate id %q", node.ID)
	}
	n := cloneNode(*node)
	graphID = strings.Clone(graphID)
	s.nodes[graphID] = append(s.nodes[graphID], n)
	s.owners[n.ID] = graphID
	return node.ID, nil
}

func (s *Store) GetNode(_ context.Context, nodeID string) (*flow.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, graphID := s.findNode(nodeID)
	if i < 0 {
		return nil, flow.ErrNodeNotFound
	}
	n := cloneNode(s.nodes[graphID][i])
	return &n, nil
}

func (s *Store) UpdateNode(_ context.Context, node *flow.Node) error {
	if !node.Type.Valid() {
		return fmt.Errorf("%w: %q", flow.ErrUnknownNodeType, node.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, graphID := s.findNode(node.ID)
	if i < 0 {
		return flow.ErrNodeNotFound
	}
	s.nodes[graphID][i] = cloneNode(*node)
	return nil
}

// DeleteNode also deletes the node's edges.
func (s *Store) DeleteNode(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, graphID := s.findNode(nodeID)
	if i < 0 {
		return nil
	}
	s.nodes[graphID] = slices.Delete(s.nodes[graphID], i, i+1)
	delete(s.owners, nodeID)
	s.edges[graphID] = slices.DeleteFunc(s.edges[graphID], func(e flow.Edge) bool {
		if e.FromNodeID == nodeID || e.ToNodeID == nodeID {
			delete(s.owners, e.ID)
			return true
		}
		return false
	})
	return nil
}

func (s *Store) ListNodes(_ context.Context, graphID string) ([]flow.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listNodes(graphID), nil
}

func (s *Store) listNodes(graphID string) []flow.Node {
	nodes := make([]flow.Node, 0, len(s.nodes[graphID]))
	for _, n := range s.nodes[graphID] {
		nodes = append(nodes, cloneNode(n))
	}
	return nodes
}

// AddEdge rejects an edge that would create a cycle.
func (s *Store) AddEdge(_ context.Context, graphID string, edge *flow.Edge) (string, error) {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owners[edge.ID]; ok {
		return "", fmt.Errorf("flow: insert edge: duplicate id %q", edge.ID)
	}
	if err := s.checkEndpoints(graphID, *edge); err != nil {
		return "", err
	}
	e := cloneEdge(*edge)
	edges := append(slices.Clone(s.edges[graphID]), e)
	if err := flow.CheckCycles(s.nodes[graphID], edges); err != nil {
		return "", err
	}
	graphID = strings.Clone(graphID)
	s.edges[graphID] = edges
	s.owners[e.ID] = graphID
	return edge.ID, nil
}

func (s *Store) GetEdge(_ context.Context, edgeID string) (*flow.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, graphID := s.findEdge(edgeID)
	if i < 0 {
		return nil, flow.ErrEdgeNotFound
	}
	e := s.edges[graphID][i]
	return &e, nil
}

// UpdateEdge rejects an update that would create a cycle.
func (s *Store) UpdateEdge(_ context.Context, edge *flow.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, graphID := s.findEdge(edge.ID)
	if i < 0 {
		return flow.ErrEdgeNotFound
	}
	if err := s.checkEndpoints(graphID, *edge); err != nil {
		return err
	}
	edges := slices.Clone(s.edges[graphID])
	edges[i] = cloneEdge(*edge)
	if err := flow.CheckCycles(s.nodes[graphID], edges); err != nil {
		return err
	}
	s.edges[graphID] = edges
	return nil
}

func (s *Store) DeleteEdge(_ context.Context, edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, graphID := s.findEdge(edgeID)
	if i < 0 {
		return nil
	}
	s.edges[graphID] = slices.Delete(s.edges[graphID], i, i+1)
	delete(s.owners, edgeID)
	return nil
}

func (s *Store) ListEdges(_ context.Context, graphID string) ([]flow.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := slices.Clone(s.edges[graphID])
	if edges == nil {
		edges = []flow.Edge{}
	}
	return edges, nil
}

func (s *Store) findNode(nodeID string) (int, string) {
	graphID, ok := s.owners[nodeID]
	if !ok {
		return -1, ""
	}
	i := slices.IndexFunc(s.nodes[graphID], func(n flow.Node) bool { return n.ID == nodeID })
	return i, graphID
}

func (s *Store) findEdge(edgeID string) (int, string) {
	graphID, ok := s.owners[edgeID]
	if !ok {
		return -1, ""
	}
	i := slices.IndexFunc(s.edges[graphID], func(e flow.Edge) bool { return e.ID == edgeID })
	return i, graphID
}

// checkEndpoints mirrors the foreign keys of the PostgreSQL schema.
func (s *Store) checkEndpoints(graphID string, e flow.Edge) error {
	for _, id := range []string{e.FromNodeID, e.ToNodeID} {
		if s.owners[id] != graphID || !slices.ContainsFunc(s.nodes[graphID], func(n flow.Node) bool { return n.ID == id }) {
			return fmt.Errorf("%w: %q", flow.ErrNodeNotFound, id)
		}
	}
	return nil
}

// cloneNode detaches n from caller memory. Hosts such as fiber hand out
// strings backed by reusable buffers.
func cloneNode(n flow.Node) flow.Node {
	n.ID = strings.Clone(n.ID)
	n.Ref = strings.Clone(n.Ref)
	n.Type = flow.NodeType(strings.Clone(string(n.Type)))
	n.Data = slices.Clone(n.Data)
	return n
}

func cloneEdge(e flow.Edge) flow.Edge {
	e.ID = strings.Clone(e.ID)
	e.FromNodeID = strings.Clone(e.FromNodeID)
	e.ToNodeID = strings.Clone(e.ToNodeID)
	e.FromHandle = strings.Clone(e.FromHandle)
	e.ToHandle = strings.Clone(e.ToHandle)
	e.FromNodeRef = strings.Clone(e.FromNodeRef)
	e.ToNodeRef = strings.Clone(e.ToNodeRef)
	return e
}

package flow

import (
	"fmt"

	"github.com/google/uuid"
)

// Prepare assigns missing node/edge IDs and resolves edge refs
// (FromNodeRef/ToNodeRef) to real node IDs.
func (g *Graph) Prepare() error {
	// Build ref → UUID mapping and assign IDs to nodes.
	refMap := make(map[string]string)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.Ref != "" {
			refMap[n.Ref] = n.ID
		}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.FromNodeRef != "" {
			id, ok := refMap[e.FromNodeRef]
			if !ok {
				return fmt.Errorf("flow: unknown from_node_ref %q", e.FromNodeRef)
			}
			e.FromNodeID = id
		}
		if e.ToNodeRef != "" {
			id, ok := refMap[e.ToNodeRef]
			if !ok {
				return fmt.Errorf("flow: unknown to_node_ref %q", e.ToNodeRef)
			}
			e.ToNodeID = id
		}
	}
	return nil
}

// ClearRefs drops the ref fields, which are never persisted.
func (g *Graph) ClearRefs() {
	for i := range g.Nodes {
		g.Nodes[i].Ref = ""
	}
	for i := range g.Edges {
		g.Edges[i].FromNodeRef = ""
		g.Edges[i].ToNodeRef = ""
	}
}

// Validate checks the structure of a graph at save time: known node types,
// exactly one entrypoint, at most one error handler and no cycles outside of
// error-handler recovery edges. Block configuration is checked separately by
// the engine package.
func (g *Graph) Validate() error {
	var entrypoints, handlers int
	var handlerID string
	for _, n := range g.Nodes {
		if !n.Type.Valid() {
			return fmt.Errorf("%w: %q (node %s)", ErrUnknownNodeType, n.Type, n.ID)
		}
		switch n.Type {
		case NodeEntrypoint:
			entrypoints++
		case NodeErrorHandler:
			handlers++
			handlerID = n.ID
		}
	}
	switch {
	case entrypoints == 0:
		return ErrMissingEntrypoint
	case entrypoints > 1:
		return ErrDuplicateEntrypoint
	case handlers > 1:
		return ErrDuplicateErrorHandler
	}
	return checkCycles(g.Nodes, g.Edges, handlerID)
}

// CheckCycles reports ErrCycleDetected when edges form a cycle. Recovery
// edges leaving the error handler may point back into the graph and are
// not followed.
func CheckCycles(nodes []Node, edges []Edge) error {
	handlerID := ""
	for _, n := range nodes {
		if n.Type == NodeErrorHandler {
			handlerID = n.ID
			break
		}
	}
	return checkCycles(nodes, edges, handlerID)
}

func checkCycles(nodes []Node, edges []Edge, handlerID string) error {
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if handlerID != "" && e.FromNodeID == handlerID {
			continue
		}
		kept = append(kept, e)
	}
	return ValidateAcyclic(nodes, kept)
}

// ValidateAcyclic checks that the edges don't form a cycle using DFS.
func ValidateAcyclic(nodes []Node, edges []Edge) error {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ToNodeID)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int)
	for _, n := range nodes {
		state[n.ID] = unvisited
	}
	// Also include nodes referenced only in edges.
	for _, e := range edges {
		if _, ok := state[e.FromNodeID]; !ok {
			state[e.FromNodeID] = unvisited
		}
		if _, ok := state[e.ToNodeID]; !ok {
			state[e.ToNodeID] = unvisited
		}
	}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for id, s := range state {
		if s == unvisited {
			if dfs(id) {
				return ErrCycleDetected
			}
		}
	}

	return nil
}

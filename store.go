package flow

import (
	"context"
	"errors"
)

var (
	ErrCycleDetected         = errors.New("flow: cycle detected, graph is not acyclic")
	ErrGraphNotFound         = errors.New("flow: graph not found")
	ErrNodeNotFound          = errors.New("flow: node not found")
	ErrEdgeNotFound          = errors.New("flow: edge not found")
	ErrUnknownNodeType       = errors.New("flow: unknown node type")
	ErrMissingEntrypoint     = errors.New("flow: graph has no entrypoint")
	ErrDuplicateEntrypoint   = errors.New("flow: graph has more than one entrypoint")
	ErrDuplicateErrorHandler = errors.New("flow: graph has more than one error handler")
)

// Store defines the contract for persisting and retrieving graphs.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Graph (bulk operations)
	CreateGraph(ctx context.Context, g *Graph) (*Graph, error)
	GetGraph(ctx context.Context, graphID string) (*Graph, error)
	DeleteGraph(ctx context.Context, graphID string) error

	// Nodes
	AddNode(ctx context.Context, graphID string, node *Node) (string, error)
	GetNode(ctx context.Context, nodeID string) (*Node, error)
	UpdateNode(ctx context.Context, node *Node) error
	DeleteNode(ctx context.Context, nodeID string) error
	ListNodes(ctx context.Context, graphID string) ([]Node, error)

	// Edges
	AddEdge(ctx context.Context, graphID string, edge *Edge) (string, error)
	GetEdge(ctx context.Context, edgeID string) (*Edge, error)
	UpdateEdge(ctx context.Context, edge *Edge) error
	DeleteEdge(ctx context.Context, edgeID string) error
	ListEdges(ctx context.Context, graphID string) ([]Edge, error)
}

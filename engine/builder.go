package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/block"
)

// ErrNestedCycle is returned when the body of a structural block leads back
// to the block itself or to a structural block enclosing it.
var ErrNestedCycle = errors.New("engine: structural block re-enters an enclosing block")

// Builder indexes one graph and materializes its blocks for one invocation.
type Builder struct {
	ec      *flow.ExecutionContext
	factory *Factory
	stopper *flow.Stopper

	nodes        map[string]flow.Node
	adj          flow.AdjacencyMap
	entrypoint   string
	errorHandler string

	// ancestors holds the structural blocks enclosing a sub-builder's graph.
	// It is nil for the top-level builder.
	ancestors map[string]bool

	// shared is carried by every sub-builder of one top-level Builder.
	shared *buildShared

	// shallow leaves structural blocks without a body. Validate builds every
	// node on its own.
	shallow bool
}

// buildShared holds the blocks that must exist once per invocation.
type buildShared struct {
	errorHandler block.Block
}

// NewBuilder returns a Builder for one invocation. A nil factory uses
// NewFactory().
func NewBuilder(ec *flow.ExecutionContext, factory *Factory) *Builder {
	if factory == nil {
		factory = NewFactory()
	}
	return &Builder{
		ec:      ec,
		factory: factory,
		stopper: flow.NewStopper(ec.Timeout),
		nodes:   make(map[string]flow.Node),
		adj:     make(flow.AdjacencyMap),
		shared:  &buildShared{},
	}
}

// Load indexes nodes and edges of g.
func (b *Builder) Load(g *flow.Graph) error {
	b.LoadEdges(g.Edges)
	return b.LoadBlocks(g.Nodes)
}

// LoadEdges builds the adjacency map. Successors keep the input order and
// are not deduplicated.
func (b *Builder) LoadEdges(edges []flow.Edge) {
	for _, e := range edges {
		b.adj[e.FromNodeID] = append(b.adj[e.FromNodeID], flow.Successor{
			To:     e.ToNodeID,
			Handle: e.Handle(),
		})
	}
}

// LoadBlocks indexes nodes by id and records the entrypoint and the error
// handler. A second entrypoint or error handler is rejected.
func (b *Builder) LoadBlocks(nodes []flow.Node) error {
	for _, n := range nodes {
		switch n.Type {
		case flow.NodeEntrypoint:
			if b.entrypoint != "" && b.entrypoint != n.ID {
				return fmt.Errorf("%w: %s and %s", flow.ErrDuplicateEntrypoint, b.entrypoint, n.ID)
			}
			b.entrypoint = n.ID
		case flow.NodeErrorHandler:
			if b.errorHandler != "" && b.errorHandler != n.ID {
				return fmt.Errorf("%w: %s and %s", flow.ErrDuplicateErrorHandler, b.errorHandler, n.ID)
			}
			b.errorHandler = n.ID
		}
		b.nodes[n.ID] = n
	}
	return nil
}

// Entrypoint returns the id of the entrypoint node, or "".
func (b *Builder) Entrypoint() string { return b.entrypoint }

// ErrorHandlerID returns the id of the error handler node, or "".
func (b *Builder) ErrorHandlerID() string { return b.errorHandler }

// Adjacency returns the adjacency map built by LoadEdges.
func (b *Builder) Adjacency() flow.AdjacencyMap { return b.adj }

// Stopper returns the deadline shared by every Engine this Builder creates.
func (b *Builder) Stopper() *flow.Stopper { return b.stopper }

// BuildGraph materializes the blocks reachable from startID, depth first.
// Executor edges are not followed; each structural block builds its own
// body. Edges to unknown ids are ignored, and a node of unknown type is
// left out so that an Engine reaching it fails with flow.ErrBlockNotFound.
// The top-level builder always builds the error handler as well.
func (b *Builder) BuildGraph(startID string) (map[string]block.Block, error) {
	blocks := make(map[string]block.Block)
	seen := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if seen[id] {
			return nil
		}
		if b.ancestors[id] {
			return fmt.Errorf("%w: %s", ErrNestedCycle, id)
		}
		node, ok := b.nodes[id]
		if !ok {
			return nil
		}
		seen[id] = true

		blk, err := b.build(node)
		switch {
		case errors.Is(err, flow.ErrUnknownNodeType):
			b.ec.Log().Warn("engine: skipping node of unknown type",
				slog.String("node", id),
				slog.String("type", string(node.Type)),
			)
		case err != nil:
			return err
		default:
			blocks[id] = blk
		}

		for _, s := range b.adj[id] {
			if s.Handle == flow.HandleExecutor {
				continue
			}
			if err := visit(s.To); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(startID); err != nil {
		return nil, err
	}
	if b.ancestors == nil && b.errorHandler != "" {
		if err := visit(b.errorHandler); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

// build builds node through the factory. The error handler is built once
// and shared with every nested Engine, so that it recovers at most once per
// invocation.
func (b *Builder) build(node flow.Node) (block.Block, error) {
	if node.ID != b.errorHandler {
		return b.factory.Build(b, node)
	}
	if b.shared.errorHandler != nil {
		return b.shared.errorHandler, nil
	}
	blk, err := b.factory.Build(b, node)
	if err == nil {
		b.shared.errorHandler = blk
	}
	return blk, err
}

// Engine builds the graph reachable from startID and returns an Engine over
// it sharing the builder's Stopper.
func (b *Builder) Engine(startID string) (*Engine, error) {
	blocks, err := b.BuildGraph(startID)
	if err != nil {
		return nil, err
	}
	handler := ""
	if _, ok := blocks[b.errorHandler]; ok {
		handler = b.errorHandler
	}
	return New(b.ec, blocks, handler, b.stopper), nil
}

// sub returns a builder for the body of the structural block owner. It
// shares the index and the Stopper.
func (b *Builder) sub(owner string) *Builder {
	ancestors := maps.Clone(b.ancestors)
	if ancestors == nil {
		ancestors = make(map[string]bool)
	}
	ancestors[owner] = true
	return &Builder{
		ec:           b.ec,
		factory:      b.factory,
		stopper:      b.stopper,
		nodes:        b.nodes,
		adj:          b.adj,
		entrypoint:   b.entrypoint,
		errorHandler: b.errorHandler,
		ancestors:    ancestors,
		shared:       b.shared,
	}
}

// next returns the successor of id through handle.
func (b *Builder) next(id, handle string) string {
	return b.adj.Next(id, handle)
}

// body builds the nested Engine of a structural block. It returns a nil
// Runner when the block has no executor edge.
func (b *Builder) body(owner string) (block.Runner, string, error) {
	executor := b.next(owner, flow.HandleExecutor)
	if executor == "" || b.shallow {
		return nil, "", nil
	}
	eng, err := b.sub(owner).Engine(executor)
	if err != nil {
		return nil, "", fmt.Errorf("engine: body of %s: %w", owner, err)
	}
	return eng, executor, nil
}

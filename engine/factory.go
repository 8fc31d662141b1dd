package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/block"
)

// Constructor builds the block of one node. b resolves successors and, for
// structural blocks, the nested body.
type Constructor func(b *Builder, node flow.Node) (block.Block, error)

// Factory maps node types to block constructors.
type Factory struct {
	constructors map[flow.NodeType]Constructor
	schemas      map[flow.NodeType]jsonschema.Definition
	validate     bool
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithValidation checks every node config against its type's schema before
// decoding it. Use it on save paths; stored graphs are trusted at run time.
func WithValidation() FactoryOption {
	return func(f *Factory) { f.validate = true }
}

// NewFactory returns a Factory knowing every flow.NodeType.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		constructors: defaultConstructors(),
		schemas:      configSchemas(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register sets the constructor of t, replacing any existing one.
func (f *Factory) Register(t flow.NodeType, c Constructor) {
	f.constructors[t] = c
}

// Types returns the registered node types, sorted.
func (f *Factory) Types() []flow.NodeType {
	types := make([]flow.NodeType, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Build constructs the block of node.
func (f *Factory) Build(b *Builder, node flow.Node) (block.Block, error) {
	c, ok := f.constructors[node.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q (node %s)", flow.ErrUnknownNodeType, node.Type, node.ID)
	}
	blk, err := c(b, node)
	if err != nil {
		return nil, fmt.Errorf("engine: build node %s (%s): %w", node.ID, node.Type, err)
	}
	return blk, nil
}

// decode unmarshals the config of node, schema-checking it first when the
// factory validates.
func decode[T any](b *Builder, node flow.Node) (T, error) {
	var cfg T
	data := bytes.TrimSpace(node.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if b.factory.validate {
		if def, ok := b.factory.schemas[node.Type]; ok {
			if err := jsonschema.VerifySchemaAndUnmarshal(def, data, &cfg); err != nil {
				return cfg, fmt.Errorf("invalid config: %w", err)
			}
			return cfg, nil
		}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaultConstructors() map[flow.NodeType]Constructor {
	return map[flow.NodeType]Constructor{
		flow.NodeEntrypoint: func(b *Builder, n flow.Node) (block.Block, error) {
			return block.NewEntrypoint(b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeIf: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.IfConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewIf(b.ec, cfg, b.next(n.ID, flow.HandleSuccess), b.next(n.ID, flow.HandleFailure)), nil
		},
		flow.NodeGetVar: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.GetVarConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewGetVar(b.ec, cfg, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeSetVar: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.SetVarConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewSetVar(b.ec, cfg, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeTransformer: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.TransformerConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewTransformer(b.ec, cfg, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeArrayPush:    array(block.ArrayPush),
		flow.NodeArrayPop:     array(block.ArrayPop),
		flow.NodeArrayShift:   array(block.ArrayShift),
		flow.NodeArrayUnshift: array(block.ArrayUnshift),
		flow.NodeArrayFilter:  array(block.ArrayFilter),
		flow.NodeForLoop: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.ForLoopConfig](b, n)
			if err != nil {
				return nil, err
			}
			body, executor, err := b.body(n.ID)
			if err != nil {
				return nil, err
			}
			return block.NewForLoop(b.ec, cfg, body, executor, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeForEachLoop: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.ForEachConfig](b, n)
			if err != nil {
				return nil, err
			}
			body, executor, err := b.body(n.ID)
			if err != nil {
				return nil, err
			}
			return block.NewForEach(b.ec, cfg, body, executor, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeTransaction: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.TransactionConfig](b, n)
			if err != nil {
				return nil, err
			}
			body, executor, err := b.body(n.ID)
			if err != nil {
				return nil, err
			}
			return block.NewTransaction(b.ec, cfg, body, executor, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeDBGetSingle:  database(block.DBGetSingle),
		flow.NodeDBGetAll:     database(block.DBGetAll),
		flow.NodeDBInsert:     database(block.DBInsert),
		flow.NodeDBInsertBulk: database(block.DBInsertBulk),
		flow.NodeDBUpdate:     database(block.DBUpdate),
		flow.NodeDBDelete:     database(block.DBDelete),
		flow.NodeDBNative:     database(block.DBNative),
		flow.NodeHTTPRequest: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.HTTPConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewHTTPRequest(b.ec, cfg, b.next(n.ID, flow.HandleSource)), nil
		},
		flow.NodeResponse: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.ResponseConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewResponse(cfg), nil
		},
		flow.NodeErrorHandler: func(b *Builder, n flow.Node) (block.Block, error) {
			h, err := block.NewErrorHandler(n.ID, b.next(n.ID, flow.HandleSource))
			if err != nil {
				return nil, err
			}
			return h, nil
		},
		flow.NodeLogging: func(b *Builder, n flow.Node) (block.Block, error) {
			cfg, err := decode[block.LoggingConfig](b, n)
			if err != nil {
				return nil, err
			}
			return block.NewLogging(b.ec, cfg, b.next(n.ID, flow.HandleSource)), nil
		},
	}
}

func array(op block.ArrayOp) Constructor {
	return func(b *Builder, n flow.Node) (block.Block, error) {
		cfg, err := decode[block.ArrayConfig](b, n)
		if err != nil {
			return nil, err
		}
		return block.NewArray(b.ec, op, cfg, b.next(n.ID, flow.HandleSource)), nil
	}
}

func database(op block.DBOperation) Constructor {
	return func(b *Builder, n flow.Node) (block.Block, error) {
		cfg, err := decode[block.DBConfig](b, n)
		if err != nil {
			return nil, err
		}
		db, err := block.NewDatabase(b.ec, op, cfg, b.next(n.ID, flow.HandleSource))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

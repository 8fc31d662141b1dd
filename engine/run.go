package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/meikuraledutech/flow"
)

// ErrInvalidGraph wraps the node errors reported by Validate.
var ErrInvalidGraph = errors.New("engine: invalid graph")

// Run builds g for the invocation described by ec and runs it from its
// entrypoint.
func Run(ctx context.Context, g *flow.Graph, ec *flow.ExecutionContext, input any) (flow.Output, error) {
	b := NewBuilder(ec, nil)
	if err := b.Load(g); err != nil {
		return flow.Output{}, err
	}
	if b.Entrypoint() == "" {
		return flow.Output{}, flow.ErrMissingEntrypoint
	}
	eng, err := b.Engine(b.Entrypoint())
	if err != nil {
		return flow.Output{}, err
	}
	return eng.Start(ctx, b.Entrypoint(), input)
}

// Validate checks g at save time: its structure, then the config of every
// node against the node type's schema. All node errors are reported, each
// once.
func Validate(g *flow.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	b := NewBuilder(flow.NewExecutionContext(0), NewFactory(WithValidation()))
	b.shallow = true
	if err := b.Load(g); err != nil {
		return err
	}
	var errs error
	for _, n := range g.Nodes {
		if _, err := b.factory.Build(b, n); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, errs)
	}
	return nil
}

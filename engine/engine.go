// Package engine turns a stored graph into executable blocks and walks them.
//
// A Builder indexes the nodes and edges of one graph and, through a Factory,
// materializes the blocks reachable from a start node. An Engine runs those
// blocks one at a time, following each block's chosen successor, diverting
// fatal failures to the graph's error handler and stopping on the invocation
// deadline. Structural blocks (loops, transactions) own a nested Engine built
// by a sub-Builder; every Engine of an invocation shares one flow.Stopper.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/block"
)

// Engine walks a materialized graph. It is not safe for concurrent use; one
// Engine serves one invocation.
type Engine struct {
	ec           *flow.ExecutionContext
	blocks       map[string]block.Block
	errorHandler string
	stopper      *flow.Stopper
}

var _ block.Runner = (*Engine)(nil)

// New returns an Engine over blocks. errorHandler is the id of the error
// handler block, or "" when fatal outputs end the run.
func New(ec *flow.ExecutionContext, blocks map[string]block.Block, errorHandler string, stopper *flow.Stopper) *Engine {
	if stopper == nil {
		stopper = flow.NewStopper(ec.Timeout)
	}
	return &Engine{ec: ec, blocks: blocks, errorHandler: errorHandler, stopper: stopper}
}

// Start runs the graph from startID with input as the first block's params
// and returns the last output.
//
// The returned error is non-nil only when a block id cannot be resolved
// (flow.ErrBlockNotFound) or the invocation deadline passed
// (flow.ErrExecutionTimeout, returned together with the timeout output).
// Block failures are reported through the output.
func (e *Engine) Start(ctx context.Context, startID string, input any) (flow.Output, error) {
	if _, ok := e.blocks[startID]; !ok {
		return flow.Output{}, fmt.Errorf("%w: %s", flow.ErrBlockNotFound, startID)
	}
	e.stopper.Arm()

	current, params := startID, input
	for {
		if e.stopper.Expired() {
			e.stopper.Extend(flow.TimeoutGrace)
			e.ec.Observe().OnTimeout(ctx, e.ec.ID, current)
			return flow.TimeoutOutput(), flow.ErrExecutionTimeout
		}

		b, ok := e.blocks[current]
		if !ok {
			return flow.Output{}, fmt.Errorf("%w: %s", flow.ErrBlockNotFound, current)
		}

		out, err := e.execute(ctx, current, b, params)
		if errors.Is(err, flow.ErrExecutionTimeout) {
			return flow.TimeoutOutput(), err
		}
		if err != nil {
			out = flow.Fatal(err.Error())
		}

		if out.IsFatal() {
			recovered, ok := e.divert(ctx, current, out)
			if !ok {
				return out, nil
			}
			out = recovered
		}

		if out.Next == "" {
			return out, nil
		}
		current, params = out.Next, out.Output
	}
}

// execute runs one block, turning a panic into an error.
func (e *Engine) execute(ctx context.Context, id string, b block.Block, params any) (out flow.Output, err error) {
	obs := e.ec.Observe()
	obs.OnBlockStart(ctx, e.ec.ID, id)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out, err = flow.Output{}, fmt.Errorf("block %s panicked: %v", id, r)
		}
		obs.OnBlockCompleted(ctx, e.ec.ID, id, out, err, time.Since(start))
	}()
	return b.Execute(ctx, params)
}

// divert hands a fatal output to the error handler. It reports false when
// there is no handler or the handler declines to continue.
func (e *Engine) divert(ctx context.Context, failed string, out flow.Output) (flow.Output, bool) {
	if e.errorHandler == "" || failed == e.errorHandler {
		return out, false
	}
	handler, ok := e.blocks[e.errorHandler]
	if !ok {
		return out, false
	}
	e.ec.Observe().OnErrorHandler(ctx, e.ec.ID, failed, out)

	res, err := e.execute(ctx, e.errorHandler, handler, out.Error)
	if err != nil || res.IsFatal() || res.Next == "" {
		return out, false
	}
	return res, true
}

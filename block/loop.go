package block

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flow"
)

// ForLoopConfig is the config of a "for_loop" node. Each bound is a number or
// a script value; Start defaults to 0 and Step to 1.
type ForLoopConfig struct {
	Start any `json:"start"`
	End   any `json:"end"`
	Step  any `json:"step"`
}

// ForLoop runs its body once per index of [start, end), stepping by step.
// Each iteration is a nested run at the executor node with the index as
// input; iterations never overlap.
type ForLoop struct {
	ec       *flow.ExecutionContext
	cfg      ForLoopConfig
	body     Runner
	executor string
	next     string
}

func NewForLoop(ec *flow.ExecutionContext, cfg ForLoopConfig, body Runner, executor, next string) *ForLoop {
	return &ForLoop{ec: ec, cfg: cfg, body: body, executor: executor, next: next}
}

func (b *ForLoop) Execute(ctx context.Context, params any) (flow.Output, error) {
	start, err := b.bound(ctx, b.cfg.Start, params, 0)
	if err != nil {
		return flow.Fatal(fmt.Sprintf("for loop start: %v", err)), nil
	}
	end, err := b.bound(ctx, b.cfg.End, params, 0)
	if err != nil {
		return flow.Fatal(fmt.Sprintf("for loop end: %v", err)), nil
	}
	step, err := b.bound(ctx, b.cfg.Step, params, 1)
	if err != nil {
		return flow.Fatal(fmt.Sprintf("for loop step: %v", err)), nil
	}
	if step == 0 {
		return flow.Fatal("for loop step must not be zero"), nil
	}

	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		out, err := runBody(ctx, b.body, b.executor, i)
		if err != nil || out.IsFatal() {
			return out, err
		}
	}
	return flow.Continue(b.next, params), nil
}

func (b *ForLoop) bound(ctx context.Context, v any, params any, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	resolved, err := resolve(ctx, b.ec, v, params)
	if err != nil {
		return 0, err
	}
	return toInt(resolved)
}

// ForEachConfig is the config of a "foreach_loop" node. List is a literal
// list or a script value; UseParams iterates the block input instead.
type ForEachConfig struct {
	List      any  `json:"list"`
	UseParams bool `json:"useParams"`
}

// ForEach runs its body once per element, in order, with the element as
// input.
type ForEach struct {
	ec       *flow.ExecutionContext
	cfg      ForEachConfig
	body     Runner
	executor string
	next     string
}

func NewForEach(ec *flow.ExecutionContext, cfg ForEachConfig, body Runner, executor, next string) *ForEach {
	return &ForEach{ec: ec, cfg: cfg, body: body, executor: executor, next: next}
}

func (b *ForEach) Execute(ctx context.Context, params any) (flow.Output, error) {
	source := params
	if !b.cfg.UseParams {
		v, err := resolve(ctx, b.ec, b.cfg.List, params)
		if err != nil {
			return flow.Output{}, err
		}
		source = v
	}
	items, ok := toSlice(source)
	if !ok {
		return flow.Fatal(fmt.Sprintf("foreach loop: %T: %v", source, ErrNotArray)), nil
	}

	for _, item := range items {
		out, err := runBody(ctx, b.body, b.executor, item)
		if err != nil || out.IsFatal() {
			return out, err
		}
	}
	return flow.Continue(b.next, params), nil
}

// runBody runs one iteration. A loop without a body iterates without effect.
func runBody(ctx context.Context, body Runner, executor string, input any) (flow.Output, error) {
	if executor == "" || body == nil {
		return flow.Continue("", input), nil
	}
	return body.Start(ctx, executor, input)
}

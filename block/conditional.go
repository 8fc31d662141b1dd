package block

import (
	"context"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/condition"
)

// IfConfig is the config of an "if" node.
type IfConfig struct {
	Conditions []flow.Condition `json:"conditions"`
}

// If routes to its success or failure successor. A false result is a branch
// outcome, not an error.
type If struct {
	cfg     IfConfig
	eval    *condition.Evaluator
	success string
	failure string
}

// NewIf returns a conditional block.
func NewIf(ec *flow.ExecutionContext, cfg IfConfig, success, failure string) *If {
	return &If{
		cfg:     cfg,
		eval:    condition.New(ec.Script),
		success: success,
		failure: failure,
	}
}

func (b *If) Execute(ctx context.Context, params any) (flow.Output, error) {
	ok, err := b.eval.Evaluate(ctx, b.cfg.Conditions, params)
	if err != nil {
		return flow.Output{}, err
	}
	next := b.failure
	if ok {
		next = b.success
	}
	return flow.Branch(ok, next, params), nil
}

package block

import (
	"context"
	"errors"
	"fmt"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/condition"
)

var errMissingValue = errors.New("a value is required")

// ArrayOp is an in-place operation on an array variable.
type ArrayOp string

const (
	ArrayPush    ArrayOp = "push"
	ArrayPop     ArrayOp = "pop"
	ArrayShift   ArrayOp = "shift"
	ArrayUnshift ArrayOp = "unshift"
	ArrayFilter  ArrayOp = "filter"
)

// ArrayConfig is the config of the array_* nodes. Value feeds push and
// unshift unless UseParams is set; Conditions drive filter, evaluated with
// each element as input.
type ArrayConfig struct {
	Variable   string           `json:"variable"`
	Value      any              `json:"value"`
	UseParams  bool             `json:"useParams"`
	Conditions []flow.Condition `json:"conditions"`
}

// Array mutates the array stored in a variable.
type Array struct {
	ec   *flow.ExecutionContext
	op   ArrayOp
	cfg  ArrayConfig
	eval *condition.Evaluator
	next string
}

func NewArray(ec *flow.ExecutionContext, op ArrayOp, cfg ArrayConfig, next string) *Array {
	return &Array{ec: ec, op: op, cfg: cfg, eval: condition.New(ec.Script), next: next}
}

func (b *Array) Execute(ctx context.Context, params any) (flow.Output, error) {
	current, _ := b.ec.Vars.Get(b.cfg.Variable)
	items, ok := toSlice(current)
	if !ok {
		return flow.Fatal(fmt.Sprintf("array %s: variable %q: %v", b.op, b.cfg.Variable, ErrNotArray)), nil
	}

	switch b.op {
	case ArrayPush, ArrayUnshift:
		value, err := b.value(ctx, params)
		if errors.Is(err, errMissingValue) {
			return flow.Fatal(fmt.Sprintf("array %s: %v", b.op, err)), nil
		}
		if err != nil {
			return flow.Output{}, err
		}
		next := make([]any, 0, len(items)+1)
		if b.op == ArrayPush {
			next = append(append(next, items...), value)
		} else {
			next = append(append(next, value), items...)
		}
		b.ec.Vars.Set(b.cfg.Variable, next)
		return flow.Continue(b.next, next), nil

	case ArrayPop:
		if len(items) == 0 {
			return flow.Continue(b.next, nil), nil
		}
		last := items[len(items)-1]
		b.ec.Vars.Set(b.cfg.Variable, items[:len(items)-1])
		return flow.Continue(b.next, last), nil

	case ArrayShift:
		if len(items) == 0 {
			return flow.Continue(b.next, nil), nil
		}
		first := items[0]
		b.ec.Vars.Set(b.cfg.Variable, items[1:])
		return flow.Continue(b.next, first), nil

	case ArrayFilter:
		kept := make([]any, 0, len(items))
		for _, item := range items {
			ok, err := b.eval.Evaluate(ctx, b.cfg.Conditions, item)
			if err != nil {
				return flow.Output{}, err
			}
			if ok {
				kept = append(kept, item)
			}
		}
		b.ec.Vars.Set(b.cfg.Variable, kept)
		return flow.Continue(b.next, kept), nil
	}
	return flow.Output{}, fmt.Errorf("block: unknown array operation %q", b.op)
}

func (b *Array) value(ctx context.Context, params any) (any, error) {
	if b.cfg.UseParams {
		return params, nil
	}
	if b.cfg.Value == nil {
		return nil, errMissingValue
	}
	return resolve(ctx, b.ec, b.cfg.Value, params)
}

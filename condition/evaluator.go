// Package condition reduces ordered condition lists to a single boolean.
//
// Each condition is evaluated on its own. The results form a stream of TRUE
// and FALSE tokens, with an OR token after every condition chained with "or".
// The stream is split on OR tokens into AND-groups and the list holds when at
// least one group is entirely true. A trailing OR is ignored and an empty list
// holds vacuously.
package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/meikuraledutech/flow"
)

var (
	ErrUnknownOperator     = errors.New("condition: unknown operator")
	ErrUnsupportedOperator = errors.New("condition: operator not supported here")
	ErrIncomparable        = errors.New("condition: values are not comparable")
)

type token int

const (
	tokFalse token = iota
	tokTrue
	tokOr
)

// Evaluator evaluates condition lists. Script operands are resolved with
// Script, given the evaluation input.
type Evaluator struct {
	Script flow.ScriptRuntime
}

// New returns an Evaluator resolving script operands with rt.
func New(rt flow.ScriptRuntime) *Evaluator {
	return &Evaluator{Script: rt}
}

// Evaluate reduces conds to one boolean against input.
func (e *Evaluator) Evaluate(ctx context.Context, conds []flow.Condition, input any) (bool, error) {
	stream := make([]token, 0, len(conds)*2)
	for i, c := range conds {
		ok, err := e.evaluateOne(ctx, c, input)
		if err != nil {
			return false, fmt.Errorf("condition %d: %w", i, err)
		}
		if ok {
			stream = append(stream, tokTrue)
		} else {
			stream = append(stream, tokFalse)
		}
		if c.Chain == flow.ChainOr {
			stream = append(stream, tokOr)
		}
	}
	return reduce(stream), nil
}

// reduce splits the token stream into AND-groups on OR tokens.
func reduce(stream []token) bool {
	if len(stream) == 0 {
		return true
	}
	groupTrue, groupEmpty := true, true
	for _, t := range stream {
		switch t {
		case tokOr:
			if !groupEmpty && groupTrue {
				return true
			}
			groupTrue, groupEmpty = true, true
		case tokFalse:
			groupTrue, groupEmpty = false, false
		case tokTrue:
			groupEmpty = false
		}
	}
	return !groupEmpty && groupTrue
}

func (e *Evaluator) evaluateOne(ctx context.Context, c flow.Condition, input any) (bool, error) {
	if c.Operator == flow.OpScript {
		src, ok := flow.ScriptSource(c.LHS)
		if !ok {
			s, isString := c.LHS.(string)
			if !isString {
				return false, fmt.Errorf("%w: script operand must be a string", ErrIncomparable)
			}
			src = s
		}
		if e.Script == nil {
			return false, flow.ErrNoScriptRuntime
		}
		v, err := e.Script.Run(ctx, src, input)
		if err != nil {
			return false, err
		}
		return Truthy(v), nil
	}

	lhs, err := flow.ResolveValue(ctx, e.Script, c.LHS, input)
	if err != nil {
		return false, err
	}
	rhs, err := flow.ResolveValue(ctx, e.Script, c.RHS, input)
	if err != nil {
		return false, err
	}
	return Compare(c.Operator, lhs, rhs)
}

// ValidateForDB rejects operators that cannot be expressed as a database
// filter.
func ValidateForDB(conds []flow.Condition) error {
	for i, c := range conds {
		switch c.Operator {
		case flow.OpEq, flow.OpNeq, flow.OpGt, flow.OpGte, flow.OpLt, flow.OpLte,
			flow.OpContains, flow.OpNotContains, flow.OpIn, flow.OpNotIn,
			flow.OpStartsWith, flow.OpEndsWith:
		case flow.OpIsEmpty, flow.OpIsNotEmpty, flow.OpScript:
			return fmt.Errorf("%w: %q (condition %d)", ErrUnsupportedOperator, c.Operator, i)
		default:
			return fmt.Errorf("%w: %q (condition %d)", ErrUnknownOperator, c.Operator, i)
		}
		if _, ok := c.LHS.(string); !ok {
			return fmt.Errorf("condition: column of condition %d must be a string", i)
		}
	}
	return nil
}

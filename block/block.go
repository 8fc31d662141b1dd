// Package block implements the executable units of a workflow graph. Each
// node type has one Block variant; the engine package builds them and walks
// the graph.
package block

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/condition"
)

var (
	ErrErrorHandlerLoop  = errors.New("block: error handler cannot recover to itself")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrDatabase          = errors.New("database operation failed")
	ErrNotArray          = errors.New("value is not an array")
)

// Block is one executable node. params is the previous block's output, or the
// invocation input for the entrypoint. A returned error is treated as a
// fatal failure by the Engine.
type Block interface {
	Execute(ctx context.Context, params any) (flow.Output, error)
}

// Runner runs a sub-graph from startID. Structural blocks own one.
type Runner interface {
	Start(ctx context.Context, startID string, input any) (flow.Output, error)
}

func resolve(ctx context.Context, ec *flow.ExecutionContext, v any, params any) (any, error) {
	return flow.ResolveValue(ctx, ec.Script, v, params)
}

// toSlice returns the elements of any slice or array value.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toInt(v any) (int, error) {
	n, ok := condition.ToNumber(v)
	if !ok {
		return 0, fmt.Errorf("%v is not a number", v)
	}
	return int(math.Trunc(n)), nil
}

// stringify renders a value for log messages and headers.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

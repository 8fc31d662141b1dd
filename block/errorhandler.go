package block

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flow"
)

// ErrorHandler receives control when a block fails fatally. It recovers at
// most once per invocation: the first call routes to the recovery successor,
// every later call ends the invocation.
type ErrorHandler struct {
	next  string
	spent bool
}

// NewErrorHandler returns the handler of node id recovering at next. A
// handler recovering to itself is rejected.
func NewErrorHandler(id, next string) (*ErrorHandler, error) {
	if next != "" && next == id {
		return nil, fmt.Errorf("%w: node %s", ErrErrorHandlerLoop, id)
	}
	return &ErrorHandler{next: next}, nil
}

// Execute receives the failing block's error as params.
func (b *ErrorHandler) Execute(_ context.Context, params any) (flow.Output, error) {
	msg := stringify(params)
	if b.spent {
		return flow.FatalWith(msg, params), nil
	}
	b.spent = true
	if b.next == "" {
		return flow.FatalWith(msg, params), nil
	}
	return flow.Output{
		ContinueIfFail: true,
		Next:           b.next,
		Output:         params,
		Error:          msg,
	}, nil
}

// Spent reports whether the handler has already recovered once.
func (b *ErrorHandler) Spent() bool { return b.spent }

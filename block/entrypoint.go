package block

import (
	"context"

	"github.com/meikuraledutech/flow"
)

// Entrypoint passes the invocation input to its successor.
type Entrypoint struct {
	next string
}

// NewEntrypoint returns the entrypoint block continuing at next.
func NewEntrypoint(next string) *Entrypoint {
	return &Entrypoint{next: next}
}

func (b *Entrypoint) Execute(_ context.Context, params any) (flow.Output, error) {
	return flow.Continue(b.next, params), nil
}

package block

import (
	"context"

	"github.com/meikuraledutech/flow"
)

// GetVarConfig is the config of a "get_var" node.
type GetVarConfig struct {
	Name string `json:"name"`
}

// GetVar outputs the value of a variable. A missing variable outputs nil.
type GetVar struct {
	ec   *flow.ExecutionContext
	cfg  GetVarConfig
	next string
}

func NewGetVar(ec *flow.ExecutionContext, cfg GetVarConfig, next string) *GetVar {
	return &GetVar{ec: ec, cfg: cfg, next: next}
}

func (b *GetVar) Execute(_ context.Context, _ any) (flow.Output, error) {
	v, _ := b.ec.Vars.Get(b.cfg.Name)
	return flow.Continue(b.next, v), nil
}

// SetVarConfig is the config of a "set_var" node. Value may be a literal or
// a script value; UseParams stores the block input verbatim.
type SetVarConfig struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	UseParams bool   `json:"useParams"`
}

// SetVar writes a variable and outputs the stored value.
type SetVar struct {
	ec   *flow.ExecutionContext
	cfg  SetVarConfig
	next string
}

func NewSetVar(ec *flow.ExecutionContext, cfg SetVarConfig, next string) *SetVar {
	return &SetVar{ec: ec, cfg: cfg, next: next}
}

func (b *SetVar) Execute(ctx context.Context, params any) (flow.Output, error) {
	value := params
	if !b.cfg.UseParams {
		v, err := resolve(ctx, b.ec, b.cfg.Value, params)
		if err != nil {
			return flow.Output{}, err
		}
		value = v
	}
	b.ec.Vars.Set(b.cfg.Name, value)
	return flow.Continue(b.next, value), nil
}

// Package hclscript implements flow.ScriptRuntime with the HCL expression
// language. A script is one HCL expression, such as
//
//	input.price * input.quantity
//	upper(request.headers["x-tenant"])
//	{ id = input.id, tags = concat(input.tags, ["new"]) }
//
// The script's input is bound to the variable input. Invocation variables
// and the transport request are exposed as vars and request when configured.
package hclscript

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/meikuraledutech/flow"
)

// Runtime evaluates HCL expressions. Parsed expressions are cached, so a
// Runtime may be shared by the blocks of an invocation.
type Runtime struct {
	vars    flow.Variables
	request flow.Request

	mu    sync.Mutex
	cache map[string]hclsyntax.Expression
}

var _ flow.ScriptRuntime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithVariables exposes the invocation variables as vars.
func WithVariables(vars flow.Variables) Option {
	return func(r *Runtime) { r.vars = vars }
}

// WithRequest exposes the transport request as request, with the attributes
// headers, query, params, cookies and body.
func WithRequest(req flow.Request) Option {
	return func(r *Runtime) { r.request = req }
}

// New returns a Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{cache: make(map[string]hclsyntax.Expression)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates script with input bound as input.
func (r *Runtime) Run(ctx context.Context, script string, input any) (any, error) {
	expr, err := r.parse(script)
	if err != nil {
		return nil, err
	}

	evalCtx, err := r.evalContext(input)
	if err != nil {
		return nil, err
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclscript: evaluate %q: %w", script, diags)
	}
	return FromCty(val)
}

func (r *Runtime) parse(script string) (hclsyntax.Expression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if expr, ok := r.cache[script]; ok {
		return expr, nil
	}
	expr, diags := hclsyntax.ParseExpression([]byte(script), "script", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclscript: parse %q: %w", script, diags)
	}
	r.cache[script] = expr
	return expr, nil
}

func (r *Runtime) evalContext(input any) (*hcl.EvalContext, error) {
	in, err := ToCty(input)
	if err != nil {
		return nil, fmt.Errorf("hclscript: input: %w", err)
	}
	vars := map[string]cty.Value{"input": in}

	if r.vars != nil {
		v, err := ToCty(map[string]any(r.vars))
		if err != nil {
			return nil, fmt.Errorf("hclscript: vars: %w", err)
		}
		vars["vars"] = v
	}

	if r.request != nil {
		req, err := ToCty(map[string]any{
			"headers": r.request.Headers(),
			"query":   r.request.Query(),
			"params":  r.request.Params(),
			"cookies": r.request.Cookies(),
			"body":    r.request.Body(),
		})
		if err != nil {
			return nil, fmt.Errorf("hclscript: request: %w", err)
		}
		vars["request"] = req
	}

	return &hcl.EvalContext{Variables: vars, Functions: functions}, nil
}

// functions is the function library available to scripts.
var functions = map[string]function.Function{
	"abs":          stdlib.AbsoluteFunc,
	"ceil":         stdlib.CeilFunc,
	"chunklist":    stdlib.ChunklistFunc,
	"coalesce":     stdlib.CoalesceFunc,
	"compact":      stdlib.CompactFunc,
	"concat":       stdlib.ConcatFunc,
	"contains":     stdlib.ContainsFunc,
	"distinct":     stdlib.DistinctFunc,
	"element":      stdlib.ElementFunc,
	"flatten":      stdlib.FlattenFunc,
	"floor":        stdlib.FloorFunc,
	"format":       stdlib.FormatFunc,
	"formatdate":   stdlib.FormatDateFunc,
	"formatlist":   stdlib.FormatListFunc,
	"indent":       stdlib.IndentFunc,
	"int":          stdlib.IntFunc,
	"join":         stdlib.JoinFunc,
	"jsondecode":   stdlib.JSONDecodeFunc,
	"jsonencode":   stdlib.JSONEncodeFunc,
	"keys":         stdlib.KeysFunc,
	"length":       stdlib.LengthFunc,
	"log":          stdlib.LogFunc,
	"lookup":       stdlib.LookupFunc,
	"lower":        stdlib.LowerFunc,
	"max":          stdlib.MaxFunc,
	"merge":        stdlib.MergeFunc,
	"min":          stdlib.MinFunc,
	"parseint":     stdlib.ParseIntFunc,
	"pow":          stdlib.PowFunc,
	"range":        stdlib.RangeFunc,
	"regex":        stdlib.RegexFunc,
	"regexall":     stdlib.RegexAllFunc,
	"regexreplace": stdlib.RegexReplaceFunc,
	"replace":      stdlib.ReplaceFunc,
	"reverse":      stdlib.ReverseListFunc,
	"signum":       stdlib.SignumFunc,
	"slice":        stdlib.SliceFunc,
	"sort":         stdlib.SortFunc,
	"split":        stdlib.SplitFunc,
	"strlen":       stdlib.StrlenFunc,
	"strrev":       stdlib.ReverseFunc,
	"substr":       stdlib.SubstrFunc,
	"timeadd":      stdlib.TimeAddFunc,
	"title":        stdlib.TitleFunc,
	"trim":         stdlib.TrimFunc,
	"trimprefix":   stdlib.TrimPrefixFunc,
	"trimspace":    stdlib.TrimSpaceFunc,
	"trimsuffix":   stdlib.TrimSuffixFunc,
	"upper":        stdlib.UpperFunc,
	"values":       stdlib.ValuesFunc,
	"zipmap":       stdlib.ZipmapFunc,
}

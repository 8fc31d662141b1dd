package block

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/meikuraledutech/flow"
)

// TransformerConfig is the config of a "transformer" node. Fields maps a
// source key of the input to the key it is copied to. Keys may be dotted
// paths ("user.address.city"), in which case the input is reshaped through
// its JSON encoding.
type TransformerConfig struct {
	Fields    map[string]string `json:"fields"`
	UseScript bool              `json:"useScript"`
	Script    string            `json:"script"`
}

// Transformer reshapes its input, by field renaming or by script.
type Transformer struct {
	ec    *flow.ExecutionContext
	cfg   TransformerConfig
	keys  []string
	paths bool
	next  string
}

func NewTransformer(ec *flow.ExecutionContext, cfg TransformerConfig, next string) *Transformer {
	keys := make([]string, 0, len(cfg.Fields))
	for k := range cfg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paths := false
	for src, dst := range cfg.Fields {
		if strings.Contains(src, ".") || strings.Contains(dst, ".") {
			paths = true
			break
		}
	}
	return &Transformer{ec: ec, cfg: cfg, keys: keys, paths: paths, next: next}
}

func (b *Transformer) Execute(ctx context.Context, params any) (flow.Output, error) {
	if b.cfg.UseScript {
		if b.ec.Script == nil {
			return flow.Output{}, flow.ErrNoScriptRuntime
		}
		src := strings.TrimSpace(strings.TrimPrefix(b.cfg.Script, flow.ScriptPrefix))
		out, err := b.ec.Script.Run(ctx, src, params)
		if err != nil {
			return flow.Output{}, err
		}
		return flow.Continue(b.next, out), nil
	}

	in, ok := params.(map[string]any)
	if !ok {
		return flow.Fatal(fmt.Sprintf("transformer: input is %T, not an object", params)), nil
	}
	if b.paths {
		return b.reshape(in)
	}
	out := make(map[string]any, len(b.keys))
	for _, src := range b.keys {
		v, ok := in[src]
		if !ok {
			return flow.Fatal(fmt.Sprintf("transformer: field %q not found", src)), nil
		}
		out[b.cfg.Fields[src]] = v
	}
	return flow.Continue(b.next, out), nil
}

// reshape copies dotted paths of in into a new document. The document is
// built on the JSON encoding of in; scalar leaves are then put back with
// their original Go values so that both modes yield the same types.
// Objects and arrays come out decoded from JSON.
func (b *Transformer) reshape(in map[string]any) (flow.Output, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return flow.Output{}, fmt.Errorf("transformer: encode input: %w", err)
	}
	doc := []byte("{}")
	for _, src := range b.keys {
		res := gjson.GetBytes(raw, src)
		if !res.Exists() {
			return flow.Fatal(fmt.Sprintf("transformer: field %q not found", src)), nil
		}
		doc, err = sjson.SetRawBytes(doc, b.cfg.Fields[src], []byte(res.Raw))
		if err != nil {
			return flow.Output{}, fmt.Errorf("transformer: set %q: %w", b.cfg.Fields[src], err)
		}
	}
	var out map[string]any
	if err := json.Unmarshal(doc, &out); err != nil {
		return flow.Output{}, err
	}
	for _, src := range b.keys {
		dst := b.cfg.Fields[src]
		if strings.ContainsAny(src+dst, pathSyntax) {
			continue
		}
		v, ok := lookup(in, strings.Split(src, "."))
		if !ok || isComposite(v) {
			continue
		}
		assign(out, strings.Split(dst, "."), v)
	}
	return flow.Continue(b.next, out), nil
}

// pathSyntax are the path characters beyond plain dotted keys.
const pathSyntax = `*?|#@\!=<>%`

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// lookup walks a plain dotted path through maps and slices.
func lookup(v any, path []string) (any, bool) {
	for _, seg := range path {
		switch c := v.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			v = c[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// assign replaces the value at a plain dotted path that already exists in v.
func assign(v any, path []string, val any) {
	for i, seg := range path {
		last := i == len(path)-1
		switch c := v.(type) {
		case map[string]any:
			if _, ok := c[seg]; !ok {
				return
			}
			if last {
				c[seg] = val
				return
			}
			v = c[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return
			}
			if last {
				c[idx] = val
				return
			}
			v = c[idx]
		default:
			return
		}
	}
}

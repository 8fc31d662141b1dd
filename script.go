package flow

import (
	"context"
	"errors"
	"strings"
)

// ScriptPrefix marks a config string as a script value.
const ScriptPrefix = "js:"

// ErrNoScriptRuntime is returned when a script value is met and the
// invocation has no ScriptRuntime.
var ErrNoScriptRuntime = errors.New("flow: no script runtime configured")

// ScriptSource reports whether v is a script value and returns its source
// without the prefix.
func ScriptSource(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, ScriptPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(s, ScriptPrefix)), true
}

// ResolveValue returns v with script values evaluated by rt against input.
// Maps and slices are walked recursively and copied; v itself is never
// modified.
func ResolveValue(ctx context.Context, rt ScriptRuntime, v any, input any) (any, error) {
	switch val := v.(type) {
	case string:
		src, ok := ScriptSource(val)
		if !ok {
			return val, nil
		}
		if rt == nil {
			return nil, ErrNoScriptRuntime
		}
		return rt.Run(ctx, src, input)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := ResolveValue(ctx, rt, item, input)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := ResolveValue(ctx, rt, item, input)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRuntime returns the source and input it was called with.
type echoRuntime struct{ calls int }

func (r *echoRuntime) Run(_ context.Context, script string, input any) (any, error) {
	r.calls++
	return map[string]any{"script": script, "input": input}, nil
}

func TestScriptSource(t *testing.T) {
	src, ok := ScriptSource("js: input.a ")
	assert.True(t, ok)
	assert.Equal(t, "input.a", src)

	_, ok = ScriptSource("plain")
	assert.False(t, ok)
	_, ok = ScriptSource(42)
	assert.False(t, ok)
}

func TestResolveValueWalksCollections(t *testing.T) {
	rt := &echoRuntime{}
	in := map[string]any{
		"literal": 1,
		"nested":  []any{"js:a", map[string]any{"deep": "js:b"}},
	}

	out, err := ResolveValue(context.Background(), rt, in, "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"literal": 1,
		"nested": []any{
			map[string]any{"script": "a", "input": "x"},
			map[string]any{"deep": map[string]any{"script": "b", "input": "x"}},
		},
	}, out)
	assert.Equal(t, 2, rt.calls)
	assert.Equal(t, "js:a", in["nested"].([]any)[0], "input is not modified")
}

func TestResolveValueWithoutRuntime(t *testing.T) {
	v, err := ResolveValue(context.Background(), nil, "plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	_, err = ResolveValue(context.Background(), nil, []any{"js:x"}, nil)
	assert.ErrorIs(t, err, ErrNoScriptRuntime)
}

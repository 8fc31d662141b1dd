package hclscript

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/meikuraledutech/flow"
)

type fakeRequest struct {
	headers map[string]string
	body    any
}

func (r fakeRequest) Headers() map[string]string { return r.headers }
func (r fakeRequest) Query() map[string]string   { return map[string]string{"page": "2"} }
func (r fakeRequest) Params() map[string]string  { return map[string]string{} }
func (r fakeRequest) Cookies() map[string]string { return nil }
func (r fakeRequest) Body() any                  { return r.body }
func (r fakeRequest) SetHeader(string, string)   {}
func (r fakeRequest) SetCookie(string, string)   {}

func TestRunExpressions(t *testing.T) {
	rt := New()
	input := map[string]any{
		"price":    2.5,
		"quantity": 4,
		"name":     "ada",
		"tags":     []any{"a", "b"},
		"user":     map[string]any{"age": 36.0},
	}

	tests := []struct {
		script string
		want   any
	}{
		{"input.price * input.quantity", 10.0},
		{"upper(input.name)", "ADA"},
		{"length(input.tags)", 2.0},
		{"input.tags[1]", "b"},
		{"input.user.age >= 18", true},
		{`input.quantity > 3 ? "bulk" : "single"`, "bulk"},
		{`format("%s-%d", input.name, 7)`, "ada-7"},
		{`{ id = input.name, n = input.quantity + 1 }`, map[string]any{"id": "ada", "n": 5.0}},
		{`[for t in input.tags : upper(t)]`, []any{"A", "B"}},
		{"null", nil},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			got, err := rt.Run(context.Background(), tt.script, input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunScalarInput(t *testing.T) {
	got, err := New().Run(context.Background(), "input * 2", 21)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)

	got, err = New().Run(context.Background(), "input.field", "plain")
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestRunVariablesAndRequest(t *testing.T) {
	vars := flow.Variables{"tenant": "acme"}
	req := fakeRequest{
		headers: map[string]string{"x-trace": "t-1"},
		body:    map[string]any{"email": "a@b.c"},
	}
	rt := New(WithVariables(vars), WithRequest(req))

	got, err := rt.Run(context.Background(), `"${vars.tenant}:${request.headers["x-trace"]}"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "acme:t-1", got)

	got, err = rt.Run(context.Background(), "request.body.email", nil)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got)

	got, err = rt.Run(context.Background(), "request.query.page", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	// variables set after construction are visible to later runs
	vars.Set("tenant", "globex")
	got, err = rt.Run(context.Background(), "vars.tenant", nil)
	require.NoError(t, err)
	assert.Equal(t, "globex", got)
}

func TestRunErrors(t *testing.T) {
	rt := New()

	_, err := rt.Run(context.Background(), "input.a +", nil)
	assert.ErrorContains(t, err, "hclscript: parse")

	_, err = rt.Run(context.Background(), "missing.value", nil)
	assert.ErrorContains(t, err, "hclscript: evaluate")

	_, err = rt.Run(context.Background(), `input.a * 2`, map[string]any{"a": "x"})
	assert.Error(t, err)

	// request is not bound without WithRequest
	_, err = rt.Run(context.Background(), "request.body", nil)
	assert.Error(t, err)
}

func TestParseIsCached(t *testing.T) {
	rt := New()
	for i := range 3 {
		got, err := rt.Run(context.Background(), "input + 1", i)
		require.NoError(t, err)
		assert.Equal(t, float64(i+1), got)
	}
	assert.Len(t, rt.cache, 1)
}

func TestToCty(t *testing.T) {
	type payload struct {
		ID   int      `json:"id"`
		Tags []string `json:"tags"`
	}

	v, err := ToCty(json.Number("12.5"))
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberFloatVal(12.5)))

	v, err = ToCty([]string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, v.Type().IsTupleType())
	assert.Equal(t, 2, v.LengthInt())

	v, err = ToCty(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.True(t, v.Type().IsObjectType())

	v, err = ToCty(&payload{ID: 3, Tags: []string{"x"}})
	require.NoError(t, err)
	back, err := FromCty(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 3.0, "tags": []any{"x"}}, back)

	var nilPtr *payload
	v, err = ToCty(nilPtr)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = ToCty(make(chan int))
	assert.Error(t, err)
}

func TestFromCty(t *testing.T) {
	got, err := FromCty(cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)

	got, err = FromCty(cty.MapVal(map[string]cty.Value{"k": cty.True}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": true}, got)

	got, err = FromCty(cty.UnknownVal(cty.String))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = FromCty(cty.StringVal("marked").Mark("sensitive"))
	require.NoError(t, err)
	assert.Equal(t, "marked", got)
}

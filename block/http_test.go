package block

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow"
)

func TestHTTPRequestSuccess(t *testing.T) {
	client := &fakeHTTP{res: &flow.HTTPResult{Status: 200, Headers: map[string]string{"Content-Type": "application/json"}, Data: map[string]any{"id": 9.0}}}
	ec := newContext()
	ec.Script = inputField
	ec.HTTP = client

	b := NewHTTPRequest(ec, HTTPConfig{
		Method:  "post",
		URL:     "js:input.url",
		Headers: map[string]any{"X-Trace": "js:input.trace"},
		Query:   map[string]any{"page": 2},
		Body:    map[string]any{"name": "js:input.name"},
	}, "next")

	out, err := b.Execute(context.Background(), map[string]any{"url": "http://svc/users", "trace": "t-1", "name": "ada"})
	require.NoError(t, err)
	assert.True(t, out.Successful)
	assert.Equal(t, "next", out.Next)
	assert.Equal(t, map[string]any{
		"status":  200,
		"headers": map[string]string{"Content-Type": "application/json"},
		"data":    map[string]any{"id": 9.0},
	}, out.Output)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http://svc/users", req.URL)
	assert.Equal(t, map[string]string{"X-Trace": "t-1"}, req.Headers)
	assert.Equal(t, map[string]string{"page": "2"}, req.Query)
	assert.Equal(t, map[string]any{"name": "ada"}, req.Body)
}

func TestHTTPRequestFailureNeverErrors(t *testing.T) {
	ec := newContext()
	ec.HTTP = &fakeHTTP{
		res: &flow.HTTPResult{Status: 404, Data: "not found"},
		err: errors.New("http 404"),
	}
	out, err := NewHTTPRequest(ec, HTTPConfig{URL: "http://svc/missing"}, "next").Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.IsFatal())
	assert.Equal(t, "http 404", out.Error)
	assert.Equal(t, map[string]any{"status": 404, "data": "not found"}, out.Output)

	ec.HTTP = &fakeHTTP{err: errors.New("dial tcp: connection refused")}
	out, err = NewHTTPRequest(ec, HTTPConfig{URL: "http://svc"}, "next").Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.IsFatal())
	assert.Equal(t, 0, out.Output.(map[string]any)["status"])

	ec.HTTP = nil
	out, err = NewHTTPRequest(ec, HTTPConfig{URL: "http://svc"}, "next").Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, flow.ErrNoHTTPClient.Error(), out.Error)

	// a script value without a runtime fails the same way
	out, err = NewHTTPRequest(ec, HTTPConfig{URL: "js:input.url"}, "next").Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.IsFatal())
}

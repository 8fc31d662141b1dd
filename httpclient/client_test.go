package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/flow"
)

func TestDoJSON(t *testing.T) {
	var got struct {
		method, path, page, trace string
		body                      map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.page = r.URL.Query().Get("page")
		got.trace = r.Header.Get("X-Trace")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"tags":["a"]}`))
	}))
	defer srv.Close()

	c := New(WithTimeout(time.Second))
	defer c.Close()

	res, err := c.Do(context.Background(), flow.HTTPRequest{
		Method:  http.MethodPost,
		URL:     srv.URL + "/users",
		Headers: map[string]string{"X-Trace": "t-1"},
		Query:   map[string]string{"page": "2"},
		Body:    map[string]any{"name": "ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, map[string]any{"id": 9.0, "tags": []any{"a"}}, res.Data)
	assert.Equal(t, "application/json", res.Headers["Content-Type"])

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/users", got.path)
	assert.Equal(t, "2", got.page)
	assert.Equal(t, "t-1", got.trace)
	assert.Equal(t, map[string]any{"name": "ada"}, got.body)
}

func TestDoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	res, err := New().Do(context.Background(), flow.HTTPRequest{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "pong", res.Data)
}

func TestDoFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"missing"}`))
	}))
	defer srv.Close()

	res, err := New().Do(context.Background(), flow.HTTPRequest{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	require.NotNil(t, res)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, map[string]any{"error": "missing"}, res.Data)
}

func TestDoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res, err := New().Do(context.Background(), flow.HTTPRequest{Method: http.MethodGet, URL: url})
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestDecode(t *testing.T) {
	assert.Nil(t, decode("application/json", nil))
	assert.Equal(t, "{broken", decode("application/json", []byte("{broken")))
	assert.Equal(t, []any{1.0}, decode("application/problem+json", []byte("[1]")))
}

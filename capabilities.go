package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	ErrAdapterNotFound   = errors.New("flow: no adapter registered for connection")
	ErrNestedTransaction = errors.New("flow: nested transactions are not supported")
	ErrNoHTTPClient      = errors.New("flow: no http client configured")
)

// ScriptRuntime evaluates script values. input is bound as the script's input.
type ScriptRuntime interface {
	Run(ctx context.Context, script string, input any) (any, error)
}

// Query selects rows of one table.
type Query struct {
	Table   string
	Where   []Condition
	Fields  []string
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Adapter is a database integration used by the DB blocks.
type Adapter interface {
	GetSingle(ctx context.Context, q Query) (map[string]any, error)
	GetAll(ctx context.Context, q Query) ([]map[string]any, error)
	Insert(ctx context.Context, table string, row map[string]any) (map[string]any, error)
	InsertBulk(ctx context.Context, table string, rows []map[string]any) ([]map[string]any, error)
	Update(ctx context.Context, q Query, row map[string]any) (int64, error)
	Delete(ctx context.Context, q Query) (int64, error)
	Native(ctx context.Context, script string, args []any) ([]map[string]any, error)
	Begin(ctx context.Context) (TxAdapter, error)
}

// TxAdapter is an Adapter scoped to an open transaction. Every TxAdapter must
// be committed or rolled back.
type TxAdapter interface {
	Adapter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AdapterFactory resolves a database adapter by connection id.
type AdapterFactory interface {
	Adapter(ctx context.Context, connectionID string) (Adapter, error)
}

// AdapterOpener lazily creates the adapter of one connection.
type AdapterOpener func(ctx context.Context) (Adapter, error)

// AdapterCache is an AdapterFactory that opens each connection once and
// reuses the adapter for later invocations. It is safe for concurrent use.
type AdapterCache struct {
	mu       sync.Mutex
	openers  map[string]AdapterOpener
	adapters map[string]Adapter
	gens     map[string]uint64 // bumped by Register

	opening singleflight.Group
}

var _ AdapterFactory = (*AdapterCache)(nil)

// NewAdapterCache returns an empty cache.
func NewAdapterCache() *AdapterCache {
	return &AdapterCache{
		openers:  make(map[string]AdapterOpener),
		adapters: make(map[string]Adapter),
		gens:     make(map[string]uint64),
	}
}

// Register sets the opener of connectionID, dropping any cached adapter.
func (c *AdapterCache) Register(connectionID string, open AdapterOpener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openers[connectionID] = open
	c.gens[connectionID]++
	delete(c.adapters, connectionID)
}

// Put caches an already opened adapter under connectionID.
func (c *AdapterCache) Put(connectionID string, a Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[connectionID] = a
}

// Adapter returns the cached adapter of connectionID, opening it on first use.
// Concurrent first uses share one open, which runs without holding the
// cache lock. An adapter opened for an opener replaced meanwhile by Register
// is returned but not cached.
func (c *AdapterCache) Adapter(ctx context.Context, connectionID string) (Adapter, error) {
	c.mu.Lock()
	a, cached := c.adapters[connectionID]
	open, registered := c.openers[connectionID]
	gen := c.gens[connectionID]
	c.mu.Unlock()

	switch {
	case cached:
		return a, nil
	case !registered:
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, connectionID)
	}

	v, err, _ := c.opening.Do(fmt.Sprintf("%s\x00%d", connectionID, gen), func() (any, error) {
		a, err := open(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gens[connectionID] == gen {
			if cur, ok := c.adapters[connectionID]; ok {
				return cur, nil
			}
			c.adapters[connectionID] = a
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("flow: open connection %q: %w", connectionID, err)
	}
	return v.(Adapter), nil
}

// HTTPRequest is an outgoing request made by the http_request block.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    any
}

// HTTPResult is the response to an HTTPRequest. Data is the decoded JSON body
// when the response is JSON, the raw text otherwise.
type HTTPResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    any               `json:"data"`
}

// HTTPClient performs outgoing HTTP calls. A non-nil result may accompany an
// error when the server answered with a failure status.
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResult, error)
}

// LogSink is a logging integration used by the logging block.
type LogSink interface {
	Log(ctx context.Context, level slog.Level, msg string)
}

// Request gives blocks and scripts access to the invocation's transport
// request, and lets them shape the response headers and cookies.
type Request interface {
	Headers() map[string]string
	Query() map[string]string
	Params() map[string]string
	Cookies() map[string]string
	Body() any
	SetHeader(name, value string)
	SetCookie(name, value string)
}

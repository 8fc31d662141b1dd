package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Variables is the invocation-wide variable store.
type Variables map[string]any

// Get returns the value stored under name.
func (v Variables) Get(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// Set stores value under name.
func (v Variables) Set(name string, value any) {
	v[name] = value
}

// ExecutionContext is the per-invocation state shared by the Engine, every
// Block and every nested Engine of one invocation. It is not safe for
// concurrent use; an invocation runs on a single goroutine.
type ExecutionContext struct {
	ID       string
	Vars     Variables
	Request  Request
	Script   ScriptRuntime
	Adapters AdapterFactory
	HTTP     HTTPClient
	LogSinks map[string]LogSink
	Logger   *slog.Logger
	Observer Observer

	// Timeout bounds the whole invocation. Zero means no deadline.
	Timeout time.Duration

	txs map[string]TxAdapter
}

// NewExecutionContext returns a context with a fresh invocation id, an empty
// variable store and the default logger. Capabilities are set by the host.
func NewExecutionContext(timeout time.Duration) *ExecutionContext {
	return &ExecutionContext{
		ID:       uuid.NewString(),
		Vars:     make(Variables),
		LogSinks: make(map[string]LogSink),
		Logger:   slog.Default(),
		Observer: NoopObserver{},
		Timeout:  timeout,
	}
}

// Log returns the invocation logger, tagged with the invocation id.
func (c *ExecutionContext) Log() *slog.Logger {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("invocation_id", c.ID))
}

// Observe returns the configured observer, or a no-op one.
func (c *ExecutionContext) Observe() Observer {
	if c.Observer == nil {
		return NoopObserver{}
	}
	return c.Observer
}

// BindTx routes every adapter lookup of connectionID to tx. The returned
// func restores the previous binding.
func (c *ExecutionContext) BindTx(connectionID string, tx TxAdapter) (restore func()) {
	if c.txs == nil {
		c.txs = make(map[string]TxAdapter)
	}
	prev, hadPrev := c.txs[connectionID]
	c.txs[connectionID] = tx
	return func() {
		if hadPrev {
			c.txs[connectionID] = prev
			return
		}
		delete(c.txs, connectionID)
	}
}

// Adapter returns the adapter of connectionID, preferring an open
// transaction bound to it.
func (c *ExecutionContext) Adapter(ctx context.Context, connectionID string) (Adapter, error) {
	if tx, ok := c.txs[connectionID]; ok {
		return tx, nil
	}
	if c.Adapters == nil {
		return nil, ErrAdapterNotFound
	}
	return c.Adapters.Adapter(ctx, connectionID)
}

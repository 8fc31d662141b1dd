package flow

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives callbacks from the Engine for logging and metrics.
//
// Implementations should be fast and non-blocking; they run on the
// invocation's goroutine.
type Observer interface {
	// OnBlockStart is called before a block executes.
	OnBlockStart(ctx context.Context, invocationID, nodeID string)

	// OnBlockCompleted is called after a block returns, for both successful
	// and failed outputs. err is the error the block returned, if any.
	OnBlockCompleted(ctx context.Context, invocationID, nodeID string, out Output, err error, d time.Duration)

	// OnErrorHandler is called when a fatal output is diverted to the error handler.
	OnErrorHandler(ctx context.Context, invocationID, failedNodeID string, out Output)

	// OnTimeout is called when an Engine stops on the invocation deadline.
	OnTimeout(ctx context.Context, invocationID, nodeID string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnBlockStart(ctx context.Context, invocationID, nodeID string) {}
func (NoopObserver) OnBlockCompleted(ctx context.Context, invocationID, nodeID string, out Output, err error, d time.Duration) {
}
func (NoopObserver) OnErrorHandler(ctx context.Context, invocationID, failedNodeID string, out Output) {
}
func (NoopObserver) OnTimeout(ctx context.Context, invocationID, nodeID string) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnBlockStart(ctx context.Context, invocationID, nodeID string) {
	for _, o := range c.observers {
		o.OnBlockStart(ctx, invocationID, nodeID)
	}
}

func (c *CompositeObserver) OnBlockCompleted(ctx context.Context, invocationID, nodeID string, out Output, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnBlockCompleted(ctx, invocationID, nodeID, out, err, d)
	}
}

func (c *CompositeObserver) OnErrorHandler(ctx context.Context, invocationID, failedNodeID string, out Output) {
	for _, o := range c.observers {
		o.OnErrorHandler(ctx, invocationID, failedNodeID, out)
	}
}

func (c *CompositeObserver) OnTimeout(ctx context.Context, invocationID, nodeID string) {
	for _, o := range c.observers {
		o.OnTimeout(ctx, invocationID, nodeID)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs block lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnBlockStart(ctx context.Context, invocationID, nodeID string) {
	o.Logger.DebugContext(ctx, "block_start",
		slog.String("invocation_id", invocationID),
		slog.String("node", nodeID),
	)
}

func (o *LoggingObserver) OnBlockCompleted(ctx context.Context, invocationID, nodeID string, out Output, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil || out.IsFatal() {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "block_completed",
		slog.String("invocation_id", invocationID),
		slog.String("node", nodeID),
		slog.Bool("successful", out.Successful),
		slog.String("next", out.Next),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnErrorHandler(ctx context.Context, invocationID, failedNodeID string, out Output) {
	o.Logger.WarnContext(ctx, "error_handler",
		slog.String("invocation_id", invocationID),
		slog.String("failed_node", failedNodeID),
		slog.String("error", out.Error),
	)
}

func (o *LoggingObserver) OnTimeout(ctx context.Context, invocationID, nodeID string) {
	o.Logger.ErrorContext(ctx, "execution_timeout",
		slog.String("invocation_id", invocationID),
		slog.String("node", nodeID),
	)
}

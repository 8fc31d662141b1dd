package block

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meikuraledutech/flow"
)

// LoggingConfig is the config of a "logging" node.
type LoggingConfig struct {
	Message       any    `json:"message"`
	UseParams     bool   `json:"useParams"`
	Level         string `json:"level"`
	IntegrationID string `json:"integrationId"`
}

// Logging emits a message and passes its input through. It never fails.
type Logging struct {
	ec   *flow.ExecutionContext
	cfg  LoggingConfig
	next string
}

func NewLogging(ec *flow.ExecutionContext, cfg LoggingConfig, next string) *Logging {
	return &Logging{ec: ec, cfg: cfg, next: next}
}

func (b *Logging) Execute(ctx context.Context, params any) (flow.Output, error) {
	msg := b.message(ctx, params)
	level := parseLevel(b.cfg.Level)

	if sink, ok := b.ec.LogSinks[b.cfg.IntegrationID]; ok && b.cfg.IntegrationID != "" {
		sink.Log(ctx, level, msg)
	} else {
		b.ec.Log().Log(ctx, level, msg, slog.String("source", "logging_block"))
	}
	return flow.Continue(b.next, params), nil
}

func (b *Logging) message(ctx context.Context, params any) string {
	if b.cfg.UseParams {
		return stringify(params)
	}
	v, err := resolve(ctx, b.ec, b.cfg.Message, params)
	if err != nil {
		return fmt.Sprintf("unresolved log message: %v", err)
	}
	return stringify(v)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

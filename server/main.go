// Command server stores workflow graphs in PostgreSQL and serves their
// invocations over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/httpclient"
	"github.com/meikuraledutech/flow/postgres"
	"github.com/meikuraledutech/flow/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires the server from its environment and serves until ctx is done.
func run(ctx context.Context, getenv func(string) string, outW io.Writer) error {
	cfg, err := loadConfig(getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	var store flow.Store = postgres.New(pool)

	adapters := flow.NewAdapterCache()
	for id, conn := range cfg.Connections {
		adapters.Register(id, opener(conn))
	}
	// The default connection shares the store's pool.
	if conn := cfg.Connections[DefaultConnection]; conn.Driver == "postgres" && conn.DSN == cfg.DatabaseURL {
		adapters.Put(DefaultConnection, postgres.NewAdapter(pool))
	}

	client := httpclient.New(httpclient.WithTimeout(cfg.HTTPTimeout))
	defer client.Close()

	app := newApp(&server{
		store:    store,
		adapters: adapters,
		http:     client,
		logger:   logger,
		timeout:  cfg.ExecutionTimeout,
	})

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("server starting",
		slog.String("addr", cfg.ListenAddr),
		slog.Duration("execution_timeout", cfg.ExecutionTimeout),
		slog.Int("connections", len(cfg.Connections)),
	)
	return app.Listen(cfg.ListenAddr)
}

func opener(c connection) flow.AdapterOpener {
	if c.Driver == "sqlite" {
		return sqlite.Opener(c.DSN)
	}
	return postgres.Opener(c.DSN)
}

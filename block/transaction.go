package block

import (
	"context"
	"errors"
	"log/slog"

	"github.com/meikuraledutech/flow"
)

// TransactionConfig is the config of a "transaction" node.
type TransactionConfig struct {
	ConnectionID string `json:"connectionId"`
}

// Transaction runs its body inside one database transaction on the
// configured connection. DB blocks of the body using the same connection
// join the transaction. The transaction is committed when the body succeeds
// and rolled back otherwise; failures are reported without driver detail.
type Transaction struct {
	ec       *flow.ExecutionContext
	cfg      TransactionConfig
	body     Runner
	executor string
	next     string
}

func NewTransaction(ec *flow.ExecutionContext, cfg TransactionConfig, body Runner, executor, next string) *Transaction {
	return &Transaction{ec: ec, cfg: cfg, body: body, executor: executor, next: next}
}

func (b *Transaction) Execute(ctx context.Context, params any) (flow.Output, error) {
	logger := b.ec.Log().With(slog.String("connection", b.cfg.ConnectionID))

	adapter, err := b.ec.Adapter(ctx, b.cfg.ConnectionID)
	if err != nil {
		logger.ErrorContext(ctx, "transaction: resolve adapter", slog.Any("error", err))
		return flow.Fatal(ErrTransactionFailed.Error()), nil
	}
	tx, err := adapter.Begin(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "transaction: begin", slog.Any("error", err))
		return flow.Fatal(ErrTransactionFailed.Error()), nil
	}

	restore := b.ec.BindTx(b.cfg.ConnectionID, tx)
	defer restore()

	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	out, err := runBody(ctx, b.body, b.executor, params)
	if err != nil || out.IsFatal() {
		finished = true
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.ErrorContext(ctx, "transaction: rollback", slog.Any("error", rbErr))
		}
		logger.WarnContext(ctx, "transaction rolled back",
			slog.Any("error", err),
			slog.String("body_error", out.Error),
		)
		if errors.Is(err, flow.ErrExecutionTimeout) {
			return out, err
		}
		return flow.Fatal(ErrTransactionFailed.Error()), nil
	}

	finished = true
	if err := tx.Commit(ctx); err != nil {
		logger.ErrorContext(ctx, "transaction: commit", slog.Any("error", err))
		return flow.Fatal(ErrTransactionFailed.Error()), nil
	}
	return flow.Continue(b.next, out.Output), nil
}

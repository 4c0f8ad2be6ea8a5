package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txAttemptsDefault = 5
	txTimeoutDefault  = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction and may be retried, so it must
// not carry side effects outside the transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes a single RunTransaction call.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps how many times the transaction is retried on contention.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction, retries included.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// RunTransaction runs fn in a Firestore transaction with retry and timeout
// defaults suitable for request-scoped work. An existing context deadline
// tighter than the configured timeout wins.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	cfg := txConfig{attempts: txAttemptsDefault, timeout: txTimeoutDefault}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx, cancel := txContext(ctx, cfg.timeout)
	defer cancel()

	var runOpts []firestore.TransactionOption
	if cfg.attempts > 0 {
		runOpts = append(runOpts, firestore.MaxAttempts(cfg.attempts))
	}

	return WrapError("transaction", client.RunTransaction(txnCtx, fn, runOpts...))
}

func txContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

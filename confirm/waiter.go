// Package confirm waits for submitted transactions to reach a final state.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/stellar/go/protocols/horizon"
	protocol "github.com/stellar/go/protocols/rpc"
	"go.uber.org/zap"
)

var (
	ErrTransactionFailed   = errors.New("transaction failed on the network")
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
	ErrMissingHash         = errors.New("no transaction hash to confirm")
)

// Waiter resolves once hash is final and successful. It must return (never
// hang) once its own timeout has passed.
type Waiter interface {
	Wait(ctx context.Context, hash string, kind models.TxKind) error
}

// Func adapts a plain function to Waiter.
type Func func(ctx context.Context, hash string, kind models.TxKind) error

func (f Func) Wait(ctx context.Context, hash string, kind models.TxKind) error {
	return f(ctx, hash, kind)
}

// Policy bounds how long and how often a transaction is polled.
type Policy struct {
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultPolicy() Policy {
	return Policy{
		Timeout:         60 * time.Second,
		InitialInterval: time.Second,
		MaxInterval:     8 * time.Second,
		Multiplier:      1.5,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

// TransactionDetailer is the Horizon lookup used for classic transactions.
type TransactionDetailer interface {
	TransactionDetail(txHash string) (horizon.Transaction, error)
}

// TransactionGetter is the Soroban RPC lookup used for contract transactions.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, request protocol.GetTransactionRequest) (protocol.GetTransactionResponse, error)
}

// RPC getTransaction statuses.
const (
	rpcStatusSuccess  = "SUCCESS"
	rpcStatusFailed   = "FAILED"
	rpcStatusNotFound = "NOT_FOUND"
)

var errPending = errors.New("transaction not final yet")

// StellarWaiter polls Horizon for classic transactions and Soroban RPC for
// contract transactions with exponential backoff until Policy.Timeout.
type StellarWaiter struct {
	horizon TransactionDetailer
	rpc     TransactionGetter
	policy  Policy
}

func NewStellarWaiter(horizon TransactionDetailer, rpc TransactionGetter, policy Policy) *StellarWaiter {
	return &StellarWaiter{horizon: horizon, rpc: rpc, policy: policy.withDefaults()}
}

func (w *StellarWaiter) Wait(ctx context.Context, hash string, kind models.TxKind) error {
	if hash == "" {
		return ErrMissingHash
	}
	waitCtx, cancel := context.WithTimeout(ctx, w.policy.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.policy.InitialInterval
	b.MaxInterval = w.policy.MaxInterval
	b.Multiplier = w.policy.Multiplier
	b.MaxElapsedTime = 0 // bounded by waitCtx

	log := logger.With(zap.String("hash", hash), zap.String("kind", string(kind)))
	attempts := 0
	operation := func() error {
		attempts++
		err := w.check(waitCtx, hash, kind)
		if err == nil || errors.Is(err, errPending) {
			return err
		}
		if errors.Is(err, ErrTransactionFailed) {
			return backoff.Permanent(err)
		}
		log.Debug("confirmation poll failed, retrying", zap.Error(err))
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(b, waitCtx))
	switch {
	case err == nil:
		log.Info("transaction confirmed", zap.Int("attempts", attempts))
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case waitCtx.Err() != nil:
		log.Warn("transaction confirmation timed out", zap.Duration("timeout", w.policy.Timeout), zap.Int("attempts", attempts))
		return fmt.Errorf("%w after %s", ErrConfirmationTimeout, w.policy.Timeout)
	default:
		return err
	}
}

func (w *StellarWaiter) check(ctx context.Context, hash string, kind models.TxKind) error {
	if kind == models.TxKindContract {
		return w.checkContract(ctx, hash)
	}
	return w.checkClassic(ctx, hash)
}

func (w *StellarWaiter) checkClassic(ctx context.Context, hash string) error {
	type result struct {
		tx  horizon.Transaction
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tx, err := w.horizon.TransactionDetail(hash)
		ch <- result{tx: tx, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r = <-ch:
	}
	if utils.IsNotFound(r.err) {
		return errPending
	}
	if r.err != nil {
		return r.err
	}
	if !r.tx.Successful {
		return ErrTransactionFailed
	}
	return nil
}

func (w *StellarWaiter) checkContract(ctx context.Context, hash string) error {
	resp, err := w.rpc.GetTransaction(ctx, protocol.GetTransactionRequest{Hash: hash})
	if err != nil {
		return err
	}
	switch resp.Status {
	case rpcStatusSuccess:
		return nil
	case rpcStatusFailed:
		return ErrTransactionFailed
	case rpcStatusNotFound:
		return errPending
	default:
		return fmt.Errorf("%w: unexpected status %q", errPending, resp.Status)
	}
}

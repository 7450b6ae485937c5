package tracker

import (
	"context"

	"github.com/celerfi/stellar-wallet-sync/models"
)

// Result is what a unit of tracked work eventually yields. An empty Kind
// keeps the kind from the TxMeta passed to Track.
type Result struct {
	Hash string
	Kind models.TxKind
}

// SetPhase lets interactive work report progress before a hash exists.
// Moves backwards are ignored.
type SetPhase func(models.TxPhase)

// Work produces the hash Track confirms. Build one with Hash, Pending,
// PendingHash or Interactive.
type Work interface {
	resolve(ctx context.Context, setPhase SetPhase) (Result, error)
}

type hashWork string

func (h hashWork) resolve(context.Context, SetPhase) (Result, error) {
	return Result{Hash: string(h)}, nil
}

// Hash tracks a transaction whose hash is already known.
func Hash(hash string) Work {
	return hashWork(hash)
}

type pendingWork func(ctx context.Context) (Result, error)

func (f pendingWork) resolve(ctx context.Context, _ SetPhase) (Result, error) {
	if f == nil {
		return Result{}, ErrNoHash
	}
	return f(ctx)
}

// Pending tracks a computation that eventually yields a hash and optionally a refined kind.
func Pending(fn func(ctx context.Context) (Result, error)) Work {
	return pendingWork(fn)
}

// PendingHash is Pending for computations that only yield a hash.
func PendingHash(fn func(ctx context.Context) (string, error)) Work {
	if fn == nil {
		return pendingWork(nil)
	}
	return pendingWork(func(ctx context.Context) (Result, error) {
		h, err := fn(ctx)
		return Result{Hash: h}, err
	})
}

type interactiveWork func(ctx context.Context, setPhase SetPhase) (Result, error)

func (f interactiveWork) resolve(ctx context.Context, setPhase SetPhase) (Result, error) {
	if f == nil {
		return Result{}, ErrNoHash
	}
	return f(ctx, setPhase)
}

// Interactive tracks work driven by an external signer, which receives a
// SetPhase to report e.g. that signing finished and submission started.
func Interactive(fn func(ctx context.Context, setPhase SetPhase) (Result, error)) Work {
	return interactiveWork(fn)
}

// Package storage is the key/value persistence the wallet services are given
// instead of reaching for a concrete backend. Every key is a single slot that
// is read whole and rewritten whole; concurrent writers get last-write-wins.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Fixed namespaced slots.
const (
	SessionKey = "arenax.wallet.session"
	HistoryKey = "arenax.tx.history"
)

var ErrNotFound = errors.New("storage: key not found")

type Store interface {
	// Get returns ErrNotFound when the key has never been set or was deleted.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string // memory, file, postgres
	Dir         string
	DatabaseURL string
}

// Open builds the configured backend. The returned close func releases it.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Backend {
	case "memory":
		return NewMemoryStore(), func() {}, nil
	case "file":
		fs, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case "postgres":
		ps, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return ps, ps.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", opts.Backend)
	}
}

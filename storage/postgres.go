package storage

import (
	"context"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS wallet_kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps slots in a single table. Set is an upsert, so two
// writers racing on the same key simply leave the later value.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseUrl string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse database config")
	}
	poolConfig.MaxConns = 5

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create connection pool")
	}
	if _, err := dbPool.Exec(ctx, createKVTable); err != nil {
		dbPool.Close()
		return nil, errors.Wrap(err, "unable to create wallet_kv table")
	}

	logger.Info("connected to postgres storage", zap.String("host", poolConfig.ConnConfig.Host))
	return &PostgresStore{db: dbPool}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx, "SELECT value FROM wallet_kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO wallet_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	return errors.Wrapf(err, "write %s", key)
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx, "DELETE FROM wallet_kv WHERE key = $1", key)
	return errors.Wrapf(err, "delete %s", key)
}

func (p *PostgresStore) Close() {
	p.db.Close()
}

// Package session persists which external signer the user has connected.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/storage"
	"github.com/stellar/go/strkey"
	"go.uber.org/zap"
)

var ErrInvalidSession = errors.New("invalid wallet session")

// Store holds at most one session, in storage.SessionKey.
type Store struct {
	kv  storage.Store
	now func() time.Time
}

func NewStore(kv storage.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Read returns the stored session, or nil when there is none or the stored
// value does not parse or validate. It never fails.
func (s *Store) Read(ctx context.Context) *models.WalletSession {
	raw, err := s.kv.Get(ctx, storage.SessionKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("reading wallet session failed", zap.Error(err))
		}
		return nil
	}

	var ws models.WalletSession
	if err := json.Unmarshal(raw, &ws); err != nil {
		logger.Warn("discarding unparsable wallet session", zap.Error(err))
		return nil
	}
	if err := Validate(ws); err != nil {
		logger.Warn("discarding malformed wallet session", zap.Error(err))
		return nil
	}
	return &ws
}

// Write replaces the stored session. A nil session deletes it.
func (s *Store) Write(ctx context.Context, ws *models.WalletSession) error {
	if ws == nil {
		return s.kv.Delete(ctx, storage.SessionKey)
	}
	if err := Validate(*ws); err != nil {
		return err
	}
	raw, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to encode wallet session: %w", err)
	}
	return s.kv.Set(ctx, storage.SessionKey, raw)
}

// Connect records a fresh session for identity, replacing any previous one.
func (s *Store) Connect(ctx context.Context, identity string, kind models.SignerKind, network models.Network) (*models.WalletSession, error) {
	ws := &models.WalletSession{
		PublicIdentity: identity,
		SignerKind:     kind,
		Network:        network,
		ConnectedAt:    s.now().UTC(),
	}
	if err := s.Write(ctx, ws); err != nil {
		return nil, err
	}
	logger.Info("wallet connected",
		zap.String("identity", identity),
		zap.String("signer", string(kind)),
		zap.String("network", string(network)))
	return ws, nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.Write(ctx, nil)
}

// Validate checks enum membership and required fields.
func Validate(ws models.WalletSession) error {
	if !strkey.IsValidEd25519PublicKey(ws.PublicIdentity) {
		return fmt.Errorf("%w: public identity is not an account address", ErrInvalidSession)
	}
	if !ws.SignerKind.Valid() {
		return fmt.Errorf("%w: unknown signer kind %q", ErrInvalidSession, ws.SignerKind)
	}
	if !ws.Network.Valid() {
		return fmt.Errorf("%w: unknown network %q", ErrInvalidSession, ws.Network)
	}
	if ws.ConnectedAt.IsZero() {
		return fmt.Errorf("%w: missing connectedAt", ErrInvalidSession)
	}
	return nil
}

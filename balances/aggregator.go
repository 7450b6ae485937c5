// Package balances reconciles a wallet's holdings across the native account,
// classic trust-lines, contract-held tokens and escrowed funds.
package balances

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/utils"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrBalancesUnavailable is matched by every error GetBalances returns.
var ErrBalancesUnavailable = errors.New("wallet balances are unavailable")

// UnavailableError carries the underlying cause of a failed account lookup
// while presenting a generic message.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return "unable to load wallet balances, please try again"
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrBalancesUnavailable }

const defaultTimeout = 15 * time.Second

// DefaultAssets is XLM native, USDC classic and ARENAX classic, issuers unset.
func DefaultAssets() []models.AssetConfig {
	return []models.AssetConfig{
		{Code: models.AssetXLM, Source: models.SourceNative, Decimals: 7},
		{Code: models.AssetUSDC, Source: models.SourceClassic, Decimals: 7},
		{Code: models.AssetARENAX, Source: models.SourceClassic, Decimals: 7},
	}
}

type Option func(*Aggregator)

// WithTimeout bounds a whole GetBalances call.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

type Aggregator struct {
	accounts  AccountFetcher
	locked    LockedSource
	contracts ContractSource
	assets    map[models.AssetCode]models.AssetConfig
	timeout   time.Duration
}

// NewAggregator wires the data sources. locked may be nil (no escrow); contracts
// may be nil only when no asset is contract-sourced. Assets missing from the
// list fall back to DefaultAssets.
func NewAggregator(accounts AccountFetcher, locked LockedSource, contracts ContractSource, assets []models.AssetConfig, opts ...Option) (*Aggregator, error) {
	if accounts == nil {
		return nil, errors.New("balances: account fetcher is required")
	}
	a := &Aggregator{
		accounts:  accounts,
		locked:    locked,
		contracts: contracts,
		assets:    make(map[models.AssetCode]models.AssetConfig, len(models.AllAssetCodes)),
		timeout:   defaultTimeout,
	}
	for _, cfg := range DefaultAssets() {
		a.assets[cfg.Code] = cfg
	}
	for _, cfg := range assets {
		if !cfg.Code.Valid() {
			return nil, fmt.Errorf("balances: unknown asset code %q", cfg.Code)
		}
		a.assets[cfg.Code] = cfg
	}
	for code, cfg := range a.assets {
		switch {
		case code == models.AssetXLM && cfg.Source != models.SourceNative:
			return nil, errors.New("balances: XLM must be native-sourced")
		case code != models.AssetXLM && cfg.Source == models.SourceNative:
			return nil, fmt.Errorf("balances: %s cannot be native-sourced", code)
		case cfg.Source == models.SourceContract && (cfg.ContractID == "" || contracts == nil):
			return nil, fmt.Errorf("balances: %s is contract-sourced but has no contract source", code)
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// EmptyBalances is the zeroed placeholder shown before the first snapshot.
func EmptyBalances() models.WalletBalances {
	out := make(models.WalletBalances, len(models.AllAssetCodes))
	for _, cfg := range DefaultAssets() {
		out[cfg.Code] = models.NewAssetBalance(cfg, decimal.Zero, decimal.Zero, cfg.Source == models.SourceNative)
	}
	return out
}

type contractResult struct {
	amount decimal.Decimal
	ok     bool
}

// GetBalances produces one consistent snapshot for identity. Only a failed
// native account lookup (other than not-found) is returned as an error; the
// locked and contract sources degrade to zero.
func (a *Aggregator) GetBalances(ctx context.Context, identity string) (models.WalletBalances, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	log := logger.With(zap.String("identity", identity))

	var (
		account   *horizon.Account
		locked    map[models.AssetCode]decimal.Decimal
		mu        sync.Mutex
		contracts = make(map[models.AssetCode]contractResult)
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		acc, err := a.fetchAccount(gctx, identity)
		if err != nil {
			return err
		}
		account = acc
		return nil
	})

	g.Go(func() error {
		locked = a.fetchLocked(gctx, log, identity)
		return nil
	})

	for _, cfg := range a.assets {
		if cfg.Source != models.SourceContract {
			continue
		}
		g.Go(func() error {
			amount, err := a.contracts.ContractBalance(gctx, cfg, identity)
			if err != nil {
				log.Warn("contract balance lookup failed, using zero",
					zap.String("asset", string(cfg.Code)), zap.Error(err))
				return nil
			}
			mu.Lock()
			contracts[cfg.Code] = contractResult{amount: amount, ok: true}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("account lookup failed", zap.Error(err))
		return nil, &UnavailableError{Err: err}
	}

	out := make(models.WalletBalances, len(models.AllAssetCodes))
	for _, code := range models.AllAssetCodes {
		cfg := a.assets[code]
		var (
			available decimal.Decimal
			trusted   bool
		)
		switch cfg.Source {
		case models.SourceNative:
			available, trusted = nativeBalance(account), true
		case models.SourceClassic:
			available, trusted = classicBalance(account, cfg)
		case models.SourceContract:
			// an unfunded account holds nothing, whatever the contract reports
			if r := contracts[code]; r.ok && account != nil {
				available, trusted = r.amount, true
			}
		}
		out[code] = models.NewAssetBalance(cfg, available, locked[code], trusted)
	}
	return out, nil
}

// fetchAccount returns nil, nil for an account that does not exist yet.
func (a *Aggregator) fetchAccount(ctx context.Context, identity string) (*horizon.Account, error) {
	type result struct {
		account horizon.Account
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		acc, err := a.accounts.AccountDetail(horizonclient.AccountRequest{AccountID: identity})
		ch <- result{account: acc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if utils.IsNotFound(r.err) {
			return nil, nil
		}
		if r.err != nil {
			return nil, r.err
		}
		return &r.account, nil
	}
}

func (a *Aggregator) fetchLocked(ctx context.Context, log *zap.Logger, identity string) map[models.AssetCode]decimal.Decimal {
	if a.locked == nil {
		return nil
	}
	locked, err := a.locked.LockedBalances(ctx, identity)
	if err != nil {
		log.Warn("locked balance lookup failed, using zero", zap.Error(err))
		return nil
	}
	return locked
}

func nativeBalance(account *horizon.Account) decimal.Decimal {
	if account == nil {
		return decimal.Zero
	}
	for _, b := range account.Balances {
		if b.Asset.Type == "native" {
			return utils.ParseAmount(b.Balance)
		}
	}
	return decimal.Zero
}

// classicBalance matches by code and, when configured, exact issuer.
func classicBalance(account *horizon.Account, cfg models.AssetConfig) (decimal.Decimal, bool) {
	if account == nil {
		return decimal.Zero, false
	}
	for _, b := range account.Balances {
		if !utils.IsCreditLine(b) || b.Asset.Code != string(cfg.Code) {
			continue
		}
		if cfg.Issuer != "" && b.Asset.Issuer != cfg.Issuer {
			logger.Debug("ignoring trust line from unexpected issuer", zap.String("line", utils.FormatAsset(b)))
			continue
		}
		return utils.ParseAmount(b.Balance), true
	}
	return decimal.Zero, false
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celerfi/stellar-wallet-sync/balances"
	"github.com/celerfi/stellar-wallet-sync/config"
	"github.com/celerfi/stellar-wallet-sync/confirm"
	"github.com/celerfi/stellar-wallet-sync/explorer"
	"github.com/celerfi/stellar-wallet-sync/handlers"
	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/session"
	"github.com/celerfi/stellar-wallet-sync/storage"
	"github.com/celerfi/stellar-wallet-sync/tracker"
	"github.com/celerfi/stellar-wallet-sync/utils"
	"go.uber.org/zap"
)

func main() {
	settings := config.Load()
	logger.InitLogger(settings.Environment)
	defer logger.Sync()

	if err := settings.Validate(); err != nil {
		logger.Log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting wallet sync",
		zap.String("network", string(settings.Network)),
		zap.String("horizon", settings.HorizonURL),
		zap.String("storage", settings.StorageBackend))

	kv, closeStore, err := storage.Open(ctx, storage.Options{
		Backend:     settings.StorageBackend,
		Dir:         settings.StorageDir,
		DatabaseURL: settings.DatabaseURL,
	})
	if err != nil {
		logger.Log.Fatal("opening storage failed", zap.Error(err))
	}
	defer closeStore()

	links, err := explorerLinks(settings)
	if err != nil {
		logger.Log.Fatal("invalid explorer configuration", zap.Error(err))
	}

	horizonClient := utils.NewHorizonClient(settings.HorizonURL, settings.BalanceTimeout)
	rpcClient := utils.NewRPCClient(settings.RPCURL, settings.BalanceTimeout)

	aggregator, err := newAggregator(settings, horizonClient)
	if err != nil {
		logger.Log.Fatal("building balance aggregator failed", zap.Error(err))
	}

	waiter := confirm.NewStellarWaiter(horizonClient, rpcClient, confirm.Policy{
		Timeout:         settings.ConfirmTimeout,
		InitialInterval: settings.ConfirmInitialInterval,
		MaxInterval:     settings.ConfirmMaxInterval,
	})

	// tracks run to a terminal state even while the process is stopping
	server := &handlers.Server{
		Balances: aggregator,
		Tracker:  tracker.New(ctx, kv, links, waiter),
		Sessions: session.NewStore(kv),
		Health: func(ctx context.Context) (uint32, error) {
			return utils.NodeLatestLedger(ctx, rpcClient)
		},
		Network:    settings.Network,
		Background: context.WithoutCancel(ctx),
		Limiter:    handlers.NewRateLimiter(ctx, 10, 20),
		TrustProxy: settings.TrustProxy,
	}

	httpServer := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", settings.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	// storage closes on return, so in-flight tracks must record their outcome first
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), settings.ConfirmTimeout+10*time.Second)
	defer cancelDrain()
	if err := server.WaitTracks(drainCtx); err != nil {
		logger.Error("tracked transactions still pending at shutdown", zap.Error(err))
	}
}

func explorerLinks(settings config.Settings) (*explorer.Builder, error) {
	classic, contract := explorer.Defaults(settings.Network)
	if settings.ExplorerClassicURL != "" {
		classic = settings.ExplorerClassicURL
	}
	if settings.ExplorerContractURL != "" {
		contract = settings.ExplorerContractURL
	}
	return explorer.New(classic, contract)
}

func newAggregator(settings config.Settings, accounts balances.AccountFetcher) (*balances.Aggregator, error) {
	clientOpts := []utils.ClientOption{utils.WithTimeout(settings.BalanceTimeout)}

	var locked balances.LockedSource
	if settings.EscrowURL != "" {
		locked = balances.NewEscrowClient(settings.EscrowURL, clientOpts...)
	}

	var contracts balances.ContractSource
	switch settings.ContractBalanceMode {
	case "rpc":
		contracts = balances.NewSorobanContractSource(utils.SorobanConfig{
			RPCURL:  settings.RPCURL,
			Timeout: settings.BalanceTimeout,
		})
	default:
		if settings.ContractBalanceURL != "" {
			contracts = balances.NewHTTPContractSource(settings.ContractBalanceURL, clientOpts...)
		}
	}

	return balances.NewAggregator(accounts, locked, contracts, settings.Assets,
		balances.WithTimeout(settings.BalanceTimeout))
}

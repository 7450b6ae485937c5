// Package handlers exposes the wallet services over HTTP for UI callers.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type BalanceReader interface {
	GetBalances(ctx context.Context, identity string) (models.WalletBalances, error)
}

type TxTracker interface {
	Track(ctx context.Context, work tracker.Work, meta models.TxMeta) (string, error)
	Toasts() []models.ToastItem
	Dismiss(id string) bool
	History() []models.TxHistoryItem
	AppendHistory(ctx context.Context, item models.TxHistoryItem) (models.TxHistoryItem, error)
	ClearHistory(ctx context.Context) error
}

type SessionStore interface {
	Read(ctx context.Context) *models.WalletSession
	Connect(ctx context.Context, identity string, kind models.SignerKind, network models.Network) (*models.WalletSession, error)
	Disconnect(ctx context.Context) error
}

// LedgerProbe reports the latest ledger the RPC node has seen.
type LedgerProbe func(ctx context.Context) (uint32, error)

// Server holds the services the routes call into. Background is the context
// tracked transactions run under; it outlives the request that started them
// and should not be cancelled on shutdown, see WaitTracks.
type Server struct {
	Balances   BalanceReader
	Tracker    TxTracker
	Sessions   SessionStore
	Health     LedgerProbe
	Network    models.Network
	Background context.Context
	Limiter    *RateLimiter
	// TrustProxy honours X-Forwarded-For / X-Real-IP; enable only behind a trusted proxy.
	TrustProxy bool

	tracks sync.WaitGroup
}

// WaitTracks blocks until every background track has reached a terminal
// state or ctx is done.
func (s *Server) WaitTracks(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tracks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Router wires every route behind request id, logging, recovery and, when
// configured, rate limiting.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if s.Limiter != nil {
		r.Use(s.Limiter.Middleware)
	}

	r.Get("/health", s.health)

	r.Route("/balances", func(r chi.Router) {
		r.Get("/empty", s.emptyBalances)
		r.Get("/{identity}", s.getBalances)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/track", s.trackTransaction)
		r.Get("/history", s.getHistory)
		r.Post("/history", s.appendHistory)
		r.Delete("/history", s.clearHistory)
	})

	r.Get("/toasts", s.getToasts)
	r.Delete("/toasts/{id}", s.dismissToast)

	r.Get("/session", s.getSession)
	r.Put("/session", s.putSession)
	r.Delete("/session", s.deleteSession)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	ledger, err := s.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "latestLedger": ledger})
}

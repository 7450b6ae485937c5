package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/celerfi/stellar-wallet-sync/balances"
	"github.com/celerfi/stellar-wallet-sync/confirm"
	"github.com/celerfi/stellar-wallet-sync/explorer"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/session"
	"github.com/celerfi/stellar-wallet-sync/storage"
	"github.com/celerfi/stellar-wallet-sync/tracker"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balanceFunc func(ctx context.Context, identity string) (models.WalletBalances, error)

func (f balanceFunc) GetBalances(ctx context.Context, identity string) (models.WalletBalances, error) {
	return f(ctx, identity)
}

func newTestServer(t *testing.T, b BalanceReader, w confirm.Waiter) (*Server, http.Handler) {
	t.Helper()
	kv := storage.NewMemoryStore()
	links, err := explorer.New(explorer.Defaults(models.NetworkTestnet))
	require.NoError(t, err)

	s := &Server{
		Balances:   b,
		Tracker:    tracker.New(context.Background(), kv, links, w),
		Sessions:   session.NewStore(kv),
		Network:    models.NetworkTestnet,
		Background: context.Background(),
	}
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func noBalances(context.Context, string) (models.WalletBalances, error) {
	return balances.EmptyBalances(), nil
}

func instantConfirm() confirm.Waiter {
	return confirm.Func(func(context.Context, string, models.TxKind) error { return nil })
}

func TestHealth(t *testing.T) {
	s, h := newTestServer(t, balanceFunc(noBalances), instantConfirm())

	s.Health = func(context.Context) (uint32, error) { return 4242, nil }
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","latestLedger":4242}`, rec.Body.String())

	s.Health = func(context.Context) (uint32, error) { return 0, errors.New("rpc down") }
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetBalances(t *testing.T) {
	identity := keypair.MustRandom().Address()
	var asked string
	_, h := newTestServer(t, balanceFunc(func(_ context.Context, id string) (models.WalletBalances, error) {
		asked = id
		out := balances.EmptyBalances()
		xlm := out[models.AssetXLM]
		xlm.Available = decimal.RequireFromString("120.5")
		xlm.Total = xlm.Available
		out[models.AssetXLM] = xlm
		return out, nil
	}), instantConfirm())

	rec := do(t, h, http.MethodGet, "/balances/"+identity, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, identity, asked)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 3)
	assert.Equal(t, "120.5", got["XLM"]["total"])
}

func TestGetBalancesErrors(t *testing.T) {
	_, h := newTestServer(t, balanceFunc(func(context.Context, string) (models.WalletBalances, error) {
		return nil, &balances.UnavailableError{Err: errors.New("horizon: 503 at https://internal")}
	}), instantConfirm())

	rec := do(t, h, http.MethodGet, "/balances/not-an-address", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/balances/"+keypair.MustRandom().Address(), "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "internal")
}

func TestEmptyBalances(t *testing.T) {
	_, h := newTestServer(t, balanceFunc(noBalances), instantConfirm())

	rec := do(t, h, http.MethodGet, "/balances/empty", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	for _, code := range []string{"XLM", "USDC", "ARENAX"} {
		assert.Equal(t, "0", got[code]["total"], code)
	}
}

func TestTrackTransaction(t *testing.T) {
	s, h := newTestServer(t, balanceFunc(noBalances), instantConfirm())

	rec := do(t, h, http.MethodPost, "/transactions/track",
		`{"hash":"abcd","kind":"classic","direction":"deposit","asset":"USDC","amount":"100"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		history := s.Tracker.History()
		return len(history) == 1 && history[0].Status == models.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/toasts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var toasts []models.ToastItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toasts))
	require.Len(t, toasts, 1)
	assert.Equal(t, "Deposit 100 USDC", toasts[0].Title)
	assert.Equal(t, "https://stellar.expert/explorer/testnet/tx/abcd", toasts[0].ExplorerURL)

	rec = do(t, h, http.MethodDelete, "/toasts/"+toasts[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/toasts/"+toasts[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/transactions/history", "")
	var history []models.TxHistoryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestTrackTransactionValidation(t *testing.T) {
	_, h := newTestServer(t, balanceFunc(noBalances), instantConfirm())

	bodies := []string{
		`not json`,
		`{"kind":"classic","direction":"deposit","asset":"USDC","amount":"1"}`,
		`{"hash":"a","kind":"swap","direction":"deposit","asset":"USDC","amount":"1"}`,
		`{"hash":"a","kind":"classic","direction":"sideways","asset":"USDC","amount":"1"}`,
		`{"hash":"a","kind":"classic","direction":"deposit","asset":"BTC","amount":"1"}`,
		`{"hash":"a","kind":"classic","direction":"deposit","asset":"USDC","amount":"-1"}`,
		`{"hash":"a","kind":"classic","direction":"deposit","asset":"USDC","amount":"1","extra":true}`,
	}
	for _, body := range bodies {
		rec := do(t, h, http.MethodPost, "/transactions/track", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHistoryAppendAndClear(t *testing.T) {
	_, h := newTestServer(t, balanceFunc(noBalances), instantConfirm())

	rec := do(t, h, http.MethodGet, "/transactions/history", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/transactions/history",
		`{"direction":"withdraw","asset":"XLM","amount":"7","hash":"f00d"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved models.TxHistoryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, models.TxKindClassic, saved.Kind)
	assert.Equal(t, models.StatusPending, saved.Status)

	for _, body := range []string{
		`{"asset":"DOGE"}`,
		`{"asset":"XLM","status":"bogus"}`,
		`{"asset":"XLM","phase":"mined"}`,
		`{"asset":"XLM","kind":"swap"}`,
		`{"asset":"XLM","direction":"sideways"}`,
	} {
		rec = do(t, h, http.MethodPost, "/transactions/history", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	rec = do(t, h, http.MethodGet, "/transactions/history", "")
	var stored []models.TxHistoryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, saved.ID, stored[0].ID)

	rec = do(t, h, http.MethodDelete, "/transactions/history", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/transactions/history", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	_, h := newTestServer(t, balanceFunc(noBalances), instantConfirm())
	identity := keypair.MustRandom().Address()

	rec := do(t, h, http.MethodGet, "/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPut, "/session", `{"publicIdentity":"`+identity+`","signerKind":"freighter"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ws models.WalletSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ws))
	assert.Equal(t, identity, ws.PublicIdentity)
	assert.Equal(t, models.SignerFreighter, ws.SignerKind)
	assert.Equal(t, models.NetworkTestnet, ws.Network)

	rec = do(t, h, http.MethodPut, "/session", `{"publicIdentity":"`+identity+`","signerKind":"metamask"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	s, _ := newTestServer(t, balanceFunc(noBalances), instantConfirm())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Limiter = NewRateLimiter(ctx, 1, 2)
	h := s.Router()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/toasts", "").Code)
	}
	rec := do(t, h, http.MethodGet, "/toasts", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	// a client-supplied forwarding header does not earn a fresh bucket
	req := httptest.NewRequest(http.MethodGet, "/toasts", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	spoofed := httptest.NewRecorder()
	h.ServeHTTP(spoofed, req)
	assert.Equal(t, http.StatusTooManyRequests, spoofed.Code)

	other := httptest.NewRequest(http.MethodGet, "/toasts", nil)
	other.RemoteAddr = "198.51.100.7:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterBehindTrustedProxy(t *testing.T) {
	s, _ := newTestServer(t, balanceFunc(noBalances), instantConfirm())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Limiter = NewRateLimiter(ctx, 1, 1)
	s.TrustProxy = true
	h := s.Router()

	get := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/toasts", nil)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, get("203.0.113.9"))
	assert.Equal(t, http.StatusOK, get("203.0.113.10"))
}

func TestWaitTracksDrainsBackgroundTracking(t *testing.T) {
	release := make(chan struct{})
	s, h := newTestServer(t, balanceFunc(noBalances), confirm.Func(func(ctx context.Context, _ string, _ models.TxKind) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	root, stop := context.WithCancel(context.Background())
	s.Background = context.WithoutCancel(root)

	rec := do(t, h, http.MethodPost, "/transactions/track",
		`{"hash":"abcd","kind":"classic","direction":"deposit","asset":"USDC","amount":"100"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// stopping the process root must not cancel the track
	stop()

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitTracks(short), context.DeadlineExceeded)
	assert.Empty(t, s.Tracker.History())

	close(release)
	require.NoError(t, s.WaitTracks(context.Background()))

	history := s.Tracker.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusSuccess, history[0].Status)
}

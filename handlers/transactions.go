package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type trackRequest struct {
	Hash      string             `json:"hash"`
	Kind      models.TxKind      `json:"kind"`
	Direction models.TxDirection `json:"direction"`
	Asset     models.AssetCode   `json:"asset"`
	Amount    decimal.Decimal    `json:"amount"`
}

func (req trackRequest) meta() (models.TxMeta, error) {
	switch {
	case !req.Kind.Valid():
		return models.TxMeta{}, errors.New("kind must be classic or contract")
	case !req.Direction.Valid():
		return models.TxMeta{}, errors.New("direction must be deposit or withdraw")
	case !req.Asset.Valid():
		return models.TxMeta{}, errors.New("asset must be one of XLM, USDC, ARENAX")
	case !req.Amount.IsPositive():
		return models.TxMeta{}, errors.New("amount must be positive")
	}
	return models.TxMeta{Kind: req.Kind, Direction: req.Direction, Asset: req.Asset, Amount: req.Amount}, nil
}

// trackTransaction confirms the hash in the background and answers at once.
// Progress is read back through /toasts and /transactions/history.
func (s *Server) trackTransaction(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Hash = strings.TrimSpace(req.Hash)
	if req.Hash == "" {
		writeError(w, http.StatusBadRequest, "hash is required")
		return
	}
	meta, err := req.meta()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.tracks.Add(1)
	go func() {
		defer s.tracks.Done()
		if _, err := s.Tracker.Track(s.Background, tracker.Hash(req.Hash), meta); err != nil {
			logger.Debug("background tracking ended with failure", zap.String("hash", req.Hash), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"hash": req.Hash, "status": string(models.StatusPending)})
}

func (s *Server) getHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.Tracker.History()))
}

func (s *Server) appendHistory(w http.ResponseWriter, r *http.Request) {
	var item models.TxHistoryItem
	if err := decodeJSON(w, r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateHistoryItem(item); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.Tracker.AppendHistory(r.Context(), item)
	if err != nil {
		logger.Error("persisting appended history entry failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist history")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// validateHistoryItem checks enum fields; empty kind, status and phase are
// left for the tracker to default.
func validateHistoryItem(item models.TxHistoryItem) error {
	switch {
	case !item.Asset.Valid():
		return errors.New("asset must be one of XLM, USDC, ARENAX")
	case item.Direction != "" && !item.Direction.Valid():
		return errors.New("direction must be deposit or withdraw")
	case item.Kind != "" && !item.Kind.Valid():
		return errors.New("kind must be classic or contract")
	case item.Status != "" && !item.Status.Valid():
		return errors.New("status must be pending, success or failed")
	case item.Phase != "" && item.Phase.Rank() == 0:
		return errors.New("phase must be signing, submitted or confirmed")
	}
	return nil
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.Tracker.ClearHistory(r.Context()); err != nil {
		logger.Error("clearing history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getToasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.Tracker.Toasts()))
}

func (s *Server) dismissToast(w http.ResponseWriter, r *http.Request) {
	if !s.Tracker.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "toast not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/session"
	"go.uber.org/zap"
)

type connectRequest struct {
	PublicIdentity string            `json:"publicIdentity"`
	SignerKind     models.SignerKind `json:"signerKind"`
	Network        models.Network    `json:"network"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ws := s.Sessions.Read(r.Context())
	if ws == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) putSession(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Network == "" {
		req.Network = s.Network
	}

	ws, err := s.Sessions.Connect(r.Context(), req.PublicIdentity, req.SignerKind, req.Network)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("storing wallet session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Disconnect(r.Context()); err != nil {
		logger.Error("clearing wallet session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/celerfi/stellar-wallet-sync/balances"
	"github.com/go-chi/chi/v5"
	"github.com/stellar/go/strkey"
)

func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if !strkey.IsValidEd25519PublicKey(identity) {
		writeError(w, http.StatusBadRequest, "identity must be a Stellar account address")
		return
	}

	out, err := s.Balances.GetBalances(r.Context(), identity)
	if err != nil {
		if errors.Is(err, balances.ErrBalancesUnavailable) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load balances")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) emptyBalances(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, balances.EmptyBalances())
}

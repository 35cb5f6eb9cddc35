package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/splitterhq/balances/internal/calculator"
	"github.com/splitterhq/balances/internal/models"
)

func (s *Server) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	balances, err := s.balances.GetGroupBalances(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID, "balances": balances})
}

func (s *Server) handleActiveDebts(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	debts, err := s.balances.GetActiveDebts(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID, "debts": debts})
}

func (s *Server) handleBalanceBetween(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	userX := r.PathValue("userX")
	userY := r.PathValue("userY")
	if userX == userY {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "users must differ"})
		return
	}
	balances, err := s.balances.GetBalanceBetween(r.Context(), groupID, userX, userY)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID, "balances": balances})
}

func (s *Server) handleGroupSummary(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	currency := r.URL.Query().Get("currency")
	summary, err := s.balances.GetGroupSummary(r.Context(), groupID, currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUserBalances(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	summary, err := s.balances.GetUserBalances(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeError(w http.ResponseWriter, err error) {
	var integrity *calculator.IntegrityError
	switch {
	case errors.Is(err, models.ErrGroupNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "group not found"})
	case errors.Is(err, models.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.As(err, &integrity):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "balance integrity violation"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/guildmarket/backend/internal/services"
)

type AccountHandler struct {
	service *services.AccountService
}

func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// FreezeAccount blocks all balance mutations for an account
// @Summary Freeze account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountID path string true "Account ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountID}/freeze [put]
func (h *AccountHandler) FreezeAccount(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, true)
}

// UnfreezeAccount re-enables balance mutations for an account
// @Summary Unfreeze account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountID path string true "Account ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountID}/unfreeze [put]
func (h *AccountHandler) UnfreezeAccount(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, false)
}

func (h *AccountHandler) setFrozen(w http.ResponseWriter, r *http.Request, frozen bool) {
	accountID := chi.URLParam(r, "accountID")

	if err := h.service.SetFrozen(r.Context(), guildFromContext(r), accountID, frozen); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "frozen": frozen})
}

// Leaderboard shows the guild's richest wallets
// @Summary Leaderboard
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries (max 20)"
// @Success 200 {array} services.LeaderboardEntry
// @Router /leaderboard [get]
func (h *AccountHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := h.service.Leaderboard(r.Context(), guildFromContext(r), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"leaderboard": entries,
		"count":       len(entries),
	})
}

package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/guildmarket/backend/internal/services"
)

type WalletHandler struct {
	service   *services.WalletService
	validator *services.ValidationHelper
}

func NewWalletHandler(service *services.WalletService) *WalletHandler {
	return &WalletHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Earn credits coins to a member
// @Summary Earn coins
// @Description Credit coins to a member's wallet, deduplicated by idempotency key
// @Tags wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{accountId=string,amount=int64,reason=string,idempotencyKey=string} true "Earn request"
// @Success 200 {object} services.EarnResult
// @Failure 400 {object} services.ErrorResponse
// @Router /wallets/earn [post]
func (h *WalletHandler) Earn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID      string `json:"accountId" validate:"required"`
		Amount         int64  `json:"amount" validate:"required,gt=0"`
		Reason         string `json:"reason" validate:"required,max=200"`
		IdempotencyKey string `json:"idempotencyKey" validate:"omitempty,max=128"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.Earn(r.Context(), guildFromContext(r), req.AccountID, req.Amount, req.Reason, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ClaimDaily claims the daily coin reward
// @Summary Claim daily reward
// @Description Credit the guild's daily claim amount, at most once per rolling 24h window
// @Tags wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{accountId=string} true "Claim request"
// @Success 200 {object} services.ClaimResult
// @Failure 409 {object} services.ErrorResponse
// @Router /wallets/claim-daily [post]
func (h *WalletHandler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ClaimDaily(r.Context(), guildFromContext(r), req.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Transfer sends coins to another member
// @Summary Transfer coins
// @Description Move coins between members, subject to the guild's daily send limit
// @Tags wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{fromAccountId=string,toAccountId=string,amount=int64,idempotencyKey=string} true "Transfer request"
// @Success 200 {object} services.TransferResult
// @Failure 402 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /wallets/transfer [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromAccountID  string `json:"fromAccountId"`
		ToAccountID    string `json:"toAccountId" validate:"required"`
		Amount         int64  `json:"amount" validate:"required,gt=0"`
		IdempotencyKey string `json:"idempotencyKey" validate:"omitempty,max=128"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	from := req.FromAccountID
	if from == "" {
		from = actorFromContext(r)
	}
	if from == "" {
		services.SendErrorResponse(w, "fromAccountId is required", http.StatusBadRequest, nil)
		return
	}

	result, err := h.service.Transfer(r.Context(), guildFromContext(r), from, req.ToAccountID, req.Amount, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetWallet retrieves wallet state
// @Summary Get wallet
// @Description Current balance, escrow balance and last claim time for an account
// @Tags wallets
// @Produce json
// @Security BearerAuth
// @Param accountID path string true "Account ID"
// @Success 200 {object} models.Wallet
// @Failure 404 {object} services.ErrorResponse
// @Router /wallets/{accountID} [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	wallet, err := h.service.GetWallet(r.Context(), guildFromContext(r), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wallet)
}

// GetTransactions lists an account's recent ledger entries
// @Summary Transaction history
// @Description Most recent ledger entries for an account, newest first
// @Tags wallets
// @Produce json
// @Security BearerAuth
// @Param accountID path string true "Account ID"
// @Param limit query int false "Number of entries (default 50, max 100)"
// @Success 200 {array} models.Transaction
// @Router /accounts/{accountID}/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	transactions, err := h.service.GetTransactions(r.Context(), guildFromContext(r), accountID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

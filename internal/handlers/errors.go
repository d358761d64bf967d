package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/guildmarket/backend/internal/services"
)

// writeDomainError maps engine error values onto HTTP statuses. Business
// rejections keep their message; anything unrecognized is an internal error
// whose atomic unit did not commit, so the caller may retry.
func writeDomainError(w http.ResponseWriter, err error) {
	var cooldown *services.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(services.ErrorResponse{
			Error:          "daily claim on cooldown",
			NextEligibleAt: cooldown.NextEligibleAt.Format(time.RFC3339),
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidTitle),
		errors.Is(err, services.ErrSelfTransfer):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrAccountNotFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrAccountFrozen),
		errors.Is(err, services.ErrNotListingOwner):
		services.SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	case errors.Is(err, services.ErrInsufficientFunds):
		services.SendErrorResponse(w, err.Error(), http.StatusPaymentRequired, nil)
	case errors.Is(err, services.ErrInsufficientQuantity),
		errors.Is(err, services.ErrListingUnavailable):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, services.ErrDailySendLimit):
		services.SendErrorResponse(w, err.Error(), http.StatusTooManyRequests, nil)
	default:
		services.SendErrorResponse(w, "Failed to process request", http.StatusInternalServerError, nil)
	}
}

func guildFromContext(r *http.Request) string {
	guildID, _ := r.Context().Value("guildID").(string)
	return guildID
}

func actorFromContext(r *http.Request) string {
	accountID, _ := r.Context().Value("accountID").(string)
	return accountID
}

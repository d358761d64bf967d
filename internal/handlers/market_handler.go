package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/guildmarket/backend/internal/services"
)

type MarketHandler struct {
	service   *services.MarketService
	validator *services.ValidationHelper
}

func NewMarketHandler(service *services.MarketService) *MarketHandler {
	return &MarketHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateListing puts an item up for sale
// @Summary Create listing
// @Description Create an Active listing on the guild market
// @Tags market
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{sellerId=string,title=string,unitPrice=int64,qty=int64} true "Listing"
// @Success 201 {object} models.Listing
// @Failure 400 {object} services.ErrorResponse
// @Router /listings [post]
func (h *MarketHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID  string `json:"sellerId"`
		Title     string `json:"title" validate:"required,max=120"`
		UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
		Qty       int64  `json:"qty" validate:"required,gte=1"`
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

	seller := req.SellerID
	if seller == "" {
		seller = actorFromContext(r)
	}
	if seller == "" {
		services.SendErrorResponse(w, "sellerId is required", http.StatusBadRequest, nil)
		return
	}

	listing, err := h.service.CreateListing(r.Context(), guildFromContext(r), seller, req.Title, req.UnitPrice, req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(listing)
}

// CancelListing cancels an Active listing
// @Summary Cancel listing
// @Description Move an Active listing to the terminal Cancelled state
// @Tags market
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "Listing ID"
// @Success 200 {object} object{success=bool}
// @Failure 409 {object} services.ErrorResponse
// @Router /listings/{listingID} [delete]
func (h *MarketHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")

	caller := r.URL.Query().Get("sellerId")
	if caller == "" {
		caller = actorFromContext(r)
	}

	if err := h.service.CancelListing(r.Context(), guildFromContext(r), listingID, caller); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// PlaceOrder fulfills a purchase
// @Summary Place order
// @Description Buy qty units from a listing; debit, credit, fee and quantity update commit atomically
// @Tags market
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{listingId=string,buyerId=string,qty=int64} true "Order"
// @Success 201 {object} services.OrderResult
// @Failure 402 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders [post]
func (h *MarketHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID string `json:"listingId" validate:"required"`
		BuyerID   string `json:"buyerId"`
		Qty       int64  `json:"qty" validate:"required,gte=1"`
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

	buyer := req.BuyerID
	if buyer == "" {
		buyer = actorFromContext(r)
	}
	if buyer == "" {
		services.SendErrorResponse(w, "buyerId is required", http.StatusBadRequest, nil)
		return
	}

	result, err := h.service.PlaceOrder(r.Context(), guildFromContext(r), req.ListingID, buyer, req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// GetListing retrieves one listing
// @Summary Get listing
// @Tags market
// @Produce json
// @Security BearerAuth
// @Param listingID path string true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 409 {object} services.ErrorResponse
// @Router /listings/{listingID} [get]
func (h *MarketHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")

	listing, err := h.service.GetListing(r.Context(), guildFromContext(r), listingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}

// ListListings lists the guild's open listings
// @Summary List active listings
// @Tags market
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of listings (default 50, max 100)"
// @Success 200 {object} object{listings=[]models.Listing,count=int}
// @Router /listings [get]
func (h *MarketHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	listings, err := h.service.ListActiveListings(r.Context(), guildFromContext(r), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"listings": listings,
		"count":    len(listings),
	})
}

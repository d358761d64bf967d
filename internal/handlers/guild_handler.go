package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/guildmarket/backend/internal/models"
	"github.com/guildmarket/backend/internal/services"
)

type GuildHandler struct {
	service   *services.GuildConfigService
	validator *services.ValidationHelper
}

func NewGuildHandler(service *services.GuildConfigService) *GuildHandler {
	return &GuildHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GetSettings returns a guild's economy settings
// @Summary Get guild settings
// @Tags guilds
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Success 200 {object} models.GuildSettings
// @Router /guilds/{guildID}/settings [get]
func (h *GuildHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	settings, err := h.service.Get(r.Context(), guildID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

// UpdateSettings upserts a guild's economy settings
// @Summary Update guild settings
// @Tags guilds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Param settings body models.GuildSettings true "Settings"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Router /guilds/{guildID}/settings [put]
func (h *GuildHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	var req models.GuildSettings

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

	req.GuildID = guildID
	if err := h.service.Update(r.Context(), &req); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

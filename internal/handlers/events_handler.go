package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/guildmarket/backend/internal/services"
)

type EventsHandler struct {
	publisher *services.EventPublisher
}

func NewEventsHandler(publisher *services.EventPublisher) *EventsHandler {
	return &EventsHandler{publisher: publisher}
}

// Stream tails committed transactions as server-sent events
// @Summary Live transaction feed
// @Description One TransactionCommitted record per ledger commit. Best-effort: no replay on reconnect; poll the transaction history for completeness.
// @Tags events
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		services.SendErrorResponse(w, "Streaming unsupported", http.StatusInternalServerError, nil)
		return
	}

	guildID := guildFromContext(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, events := h.publisher.Subscribe()
	defer h.publisher.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if event.GuildID != guildID {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

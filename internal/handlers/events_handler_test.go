package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guildmarket/backend/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestEventsHandler_Stream(t *testing.T) {
	publisher := services.NewEventPublisher(nil)
	handler := NewEventsHandler(publisher)

	t.Run("delivers committed transactions for the caller's guild", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		ctx = context.WithValue(ctx, "guildID", "guild1")

		req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(100 * time.Millisecond)
			publisher.Publish(context.Background(), services.TransactionCommittedEvent{
				TransactionID: "tx-mine",
				Type:          "EARN",
				GuildID:       "guild1",
				ActorID:       "member1",
				Amount:        100,
				CreatedAt:     time.Now().UTC(),
			})
			publisher.Publish(context.Background(), services.TransactionCommittedEvent{
				TransactionID: "tx-other-guild",
				Type:          "EARN",
				GuildID:       "guild2",
				ActorID:       "stranger",
				Amount:        5,
				CreatedAt:     time.Now().UTC(),
			})
		}()

		handler.Stream(w, req) // returns when the context times out

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.Contains(t, body, "tx-mine")
		assert.NotContains(t, body, "tx-other-guild")
		assert.True(t, strings.HasPrefix(body, "data: "))
	})
}

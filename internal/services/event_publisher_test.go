package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func testEvent(id string) TransactionCommittedEvent {
	return TransactionCommittedEvent{
		TransactionID: id,
		Type:          "EARN",
		GuildID:       testGuild,
		ActorID:       "member1",
		Amount:        100,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestEventPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)

	t.Run("subscriber receives events published after subscribing", func(t *testing.T) {
		id, ch := publisher.Subscribe()
		defer publisher.Unsubscribe(id)

		publisher.Publish(context.Background(), testEvent("tx-1"))

		select {
		case event := <-ch:
			assert.Equal(t, "tx-1", event.TransactionID)
		case <-time.After(time.Second):
			t.Fatal("expected event was not delivered")
		}
	})

	t.Run("slow subscriber drops events instead of blocking the publisher", func(t *testing.T) {
		id, ch := publisher.Subscribe()
		defer publisher.Unsubscribe(id)

		// Channel buffer is 16; nobody is draining.
		for i := 0; i < 32; i++ {
			publisher.Publish(context.Background(), testEvent("tx-flood"))
		}

		assert.Equal(t, 16, len(ch))
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		id, ch := publisher.Subscribe()
		publisher.Unsubscribe(id)

		_, open := <-ch
		assert.False(t, open)

		// Unsubscribing twice is a no-op.
		publisher.Unsubscribe(id)
	})

	t.Run("publishing with no subscribers is safe", func(t *testing.T) {
		publisher.Publish(context.Background(), testEvent("tx-nobody"))
	})
}

func TestEventPublisher_RedisChannel(t *testing.T) {
	client, mock := redismock.NewClientMock()
	publisher := NewEventPublisher(client)

	mock.Regexp().ExpectPublish(EventChannel(testGuild), `.*tx-redis.*`).SetVal(1)

	publisher.Publish(context.Background(), testEvent("tx-redis"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventChannel(t *testing.T) {
	assert.Equal(t, "guildmarket:events:guild1", EventChannel("guild1"))
}

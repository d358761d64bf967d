package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// TransactionCommittedEvent is the notification emitted after a ledger
// commit. It is a live-tail signal, not a durable record; the transactions
// table remains the source of truth.
type TransactionCommittedEvent struct {
	TransactionID string    `json:"txId"`
	Type          string    `json:"type"`
	GuildID       string    `json:"guildId"`
	ActorID       string    `json:"actorId"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EventPublisher fans committed-transaction events out to subscribers.
// Delivery is fire-and-forget by design: no acknowledgement, no replay
// buffer, and a slow subscriber silently misses events. External processes
// tail the Redis channel; in-process subscribers (the SSE handler) get a
// buffered Go channel.
type EventPublisher struct {
	redis *redis.Client

	mu     sync.RWMutex
	subs   map[int]chan TransactionCommittedEvent
	nextID int
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{
		redis: redisClient,
		subs:  make(map[int]chan TransactionCommittedEvent),
	}
}

// Publish notifies all subscribers of a committed transaction. Errors are
// logged and swallowed; publication failures never affect the already
// committed ledger write.
func (p *EventPublisher) Publish(ctx context.Context, event TransactionCommittedEvent) {
	if p.redis != nil {
		data, err := json.Marshal(event)
		if err == nil {
			if err := p.redis.Publish(ctx, EventChannel(event.GuildID), string(data)).Err(); err != nil {
				log.Printf("[EVENTS] Failed to publish transaction %s: %v", event.TransactionID, err)
			}
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- event:
		default:
			// subscriber is not keeping up; drop
		}
	}
}

// Subscribe registers an in-process live-tail consumer. The returned channel
// sees events committed after this call only.
func (p *EventPublisher) Subscribe() (int, <-chan TransactionCommittedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	ch := make(chan TransactionCommittedEvent, 16)
	p.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (p *EventPublisher) Unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

// EventChannel is the Redis pub/sub channel for a guild's transaction feed.
func EventChannel(guildID string) string {
	return "guildmarket:events:" + guildID
}

// Package feed streams moderation events to connected dashboard clients.
// Events published to Redis by the relay and sender fan out to every
// WebSocket subscriber.
package feed

import (
	"context"
	"encoding/json"
	"log"

	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Source provides the Redis subscription carrying mirror events.
type Source interface {
	SubscribeMirrorEvents(ctx context.Context) *redis.PubSub
}

// Subscriber is one connected feed consumer. Deliver must not block;
// returning false tells the hub the subscriber can't keep up and should
// be dropped. Stop must be safe to call more than once.
type Subscriber interface {
	Deliver(ev models.MirrorEvent) bool
	Stop()
}

// Hub fans mirror events out to subscribers. All state is owned by the
// Run goroutine; registration and events arrive over channels.
type Hub struct {
	source Source

	RegisterCh   chan Subscriber
	UnregisterCh chan Subscriber
	EventsCh     chan models.MirrorEvent

	clients map[Subscriber]bool
}

// NewHub builds a hub reading from the given source.
func NewHub(source Source) *Hub {
	return &Hub{
		source:       source,
		RegisterCh:   make(chan Subscriber),
		UnregisterCh: make(chan Subscriber),
		EventsCh:     make(chan models.MirrorEvent, 64),
		clients:      make(map[Subscriber]bool),
	}
}

// Run pumps the hub until ctx is cancelled. Call it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	go h.listen(ctx)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.Stop()
			}
			return
		case client := <-h.RegisterCh:
			h.clients[client] = true
			log.Printf("INFO: Feed client connected (%d total)", len(h.clients))
		case client := <-h.UnregisterCh:
			if h.clients[client] {
				delete(h.clients, client)
				client.Stop()
				log.Printf("INFO: Feed client disconnected (%d total)", len(h.clients))
			}
		case ev := <-h.EventsCh:
			for client := range h.clients {
				if !client.Deliver(ev) {
					// A subscriber that can't drain its buffer gets cut
					// instead of stalling the feed.
					delete(h.clients, client)
					client.Stop()
					log.Printf("WARN: Dropped slow feed client (%d total)", len(h.clients))
				}
			}
		}
	}
}

// listen moves events from the Redis subscription into the hub.
func (h *Hub) listen(ctx context.Context) {
	if h.source == nil {
		return
	}
	pubsub := h.source.SubscribeMirrorEvents(ctx)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Printf("WARN: Feed subscription closed")
				return
			}
			var ev models.MirrorEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("ERROR: Failed to decode feed event: %v", err)
				continue
			}
			select {
			case h.EventsCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Package realtime fans availability changes out to websocket clients. The
// hub is fed from the Kafka topics this service itself produces, so every
// node in a multi-node deployment broadcasts regardless of which node
// handled the mutating request.
package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// Key is a subscription scope: either a whole business (BusinessID set) or
// one (ServiceID, Date) pair.
type Key struct {
	BusinessID string
	ServiceID  string
	Date       string
}

type Message struct {
	Type       string    `json:"type"`
	BusinessID string    `json:"business_id,omitempty"`
	ServiceID  string    `json:"service_id,omitempty"`
	Date       string    `json:"date,omitempty"`
	StartTime  time.Time `json:"start_time,omitempty"`
	EndTime    time.Time `json:"end_time,omitempty"`
	Status     string    `json:"status,omitempty"`
}

// Subscriber receives pushed messages. A Send error marks the subscriber
// dead and the hub prunes it.
type Subscriber interface {
	Send(msg Message) error
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[Key]map[Subscriber]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[Key]map[Subscriber]struct{}),
		logger: logger,
	}
}

func (h *Hub) Subscribe(key Key, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.subs[key] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) Unsubscribe(key Key, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(key, s)
}

// Broadcast delivers msg to the business-wide scope and, when the message
// names a service and date, to that (service, date) scope. Subscribers
// whose Send fails are pruned lazily.
//
// The subscriber set is snapshotted under the lock and Send runs outside
// it, so one stalled connection never blocks Subscribe or Unsubscribe.
func (h *Hub) Broadcast(msg Message) {
	keys := []Key{{BusinessID: msg.BusinessID}}
	if msg.ServiceID != "" && msg.Date != "" {
		keys = append(keys, Key{ServiceID: msg.ServiceID, Date: msg.Date})
	}

	type target struct {
		key Key
		sub Subscriber
	}
	var targets []target
	h.mu.RLock()
	for _, key := range keys {
		for sub := range h.subs[key] {
			targets = append(targets, target{key, sub})
		}
	}
	h.mu.RUnlock()

	var dead []target
	for _, t := range targets {
		if err := t.sub.Send(msg); err != nil {
			dead = append(dead, t)
		}
	}

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, d := range dead {
		h.drop(d.key, d.sub)
	}
	h.mu.Unlock()
	h.logger.Debug("pruned dead subscribers", "count", len(dead))
}

// Subscribers reports the number of live subscriptions for a key.
func (h *Hub) Subscribers(key Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

func (h *Hub) drop(key Key, s Subscriber) {
	set, ok := h.subs[key]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, key)
	}
}

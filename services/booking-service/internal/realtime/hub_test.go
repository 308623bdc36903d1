package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingSub struct {
	received []Message
	fail     bool
}

func (s *recordingSub) Send(msg Message) error {
	if s.fail {
		return errors.New("connection gone")
	}
	s.received = append(s.received, msg)
	return nil
}

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroadcastRouting(t *testing.T) {
	hub := testHub()
	bizSub := &recordingSub{}
	slotSub := &recordingSub{}
	otherSub := &recordingSub{}

	hub.Subscribe(Key{BusinessID: "biz-1"}, bizSub)
	hub.Subscribe(Key{ServiceID: "svc-1", Date: "2026-08-24"}, slotSub)
	hub.Subscribe(Key{ServiceID: "svc-1", Date: "2026-08-25"}, otherSub)

	hub.Broadcast(Message{
		Type:       "slot_changed",
		BusinessID: "biz-1",
		ServiceID:  "svc-1",
		Date:       "2026-08-24",
		Status:     "confirmed",
	})

	if len(bizSub.received) != 1 {
		t.Errorf("business subscriber got %d messages, want 1", len(bizSub.received))
	}
	if len(slotSub.received) != 1 {
		t.Errorf("slot subscriber got %d messages, want 1", len(slotSub.received))
	}
	if len(otherSub.received) != 0 {
		t.Errorf("other-date subscriber got %d messages, want 0", len(otherSub.received))
	}
}

func TestBroadcastPrunesDeadSubscribers(t *testing.T) {
	hub := testHub()
	dead := &recordingSub{fail: true}
	live := &recordingSub{}
	key := Key{BusinessID: "biz-1"}

	hub.Subscribe(key, dead)
	hub.Subscribe(key, live)

	hub.Broadcast(Message{Type: "slot_changed", BusinessID: "biz-1"})
	if got := hub.Subscribers(key); got != 1 {
		t.Fatalf("subscribers after prune = %d, want 1", got)
	}

	hub.Broadcast(Message{Type: "slot_changed", BusinessID: "biz-1"})
	if len(live.received) != 2 {
		t.Errorf("live subscriber got %d messages, want 2", len(live.received))
	}
}

func TestUnsubscribe(t *testing.T) {
	hub := testHub()
	sub := &recordingSub{}
	key := Key{ServiceID: "svc-1", Date: "2026-08-24"}

	hub.Subscribe(key, sub)
	hub.Unsubscribe(key, sub)
	hub.Broadcast(Message{Type: "slot_changed", BusinessID: "biz-1", ServiceID: "svc-1", Date: "2026-08-24"})

	if len(sub.received) != 0 {
		t.Errorf("unsubscribed client got %d messages, want 0", len(sub.received))
	}
	if hub.Subscribers(key) != 0 {
		t.Error("key should be gone after last unsubscribe")
	}
}

type hookSub struct {
	hook func()
}

func (s *hookSub) Send(Message) error {
	s.hook()
	return nil
}

// A subscriber that touches the hub from inside Send must not deadlock
// Broadcast, so delivery cannot happen under the hub lock.
func TestBroadcastDoesNotHoldLockDuringSend(t *testing.T) {
	hub := testHub()
	late := &recordingSub{}
	reentrant := &hookSub{hook: func() {
		hub.Subscribe(Key{BusinessID: "biz-2"}, late)
	}}
	hub.Subscribe(Key{BusinessID: "biz-1"}, reentrant)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(Message{Type: "slot_changed", BusinessID: "biz-1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a subscriber touching the hub")
	}
	if got := hub.Subscribers(Key{BusinessID: "biz-2"}); got != 1 {
		t.Errorf("subscribers for biz-2 = %d, want 1", got)
	}
}

func TestFeedBroadcastsBookingEvents(t *testing.T) {
	hub := testHub()
	sub := &recordingSub{}
	hub.Subscribe(Key{ServiceID: "svc-1", Date: "2026-08-24"}, sub)

	payload, _ := json.Marshal(map[string]any{
		"booking_id":  "bk-1",
		"business_id": "biz-1",
		"service_id":  "svc-1",
		"date":        "2026-08-24",
		"start_time":  time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		"end_time":    time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC),
		"status":      "confirmed",
	})
	msg := kafka.Message{
		Topic: "booking.created",
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "event_type", Value: []byte("booking.created")},
		},
	}

	if err := Feed(hub)(context.Background(), msg); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(sub.received) != 1 {
		t.Fatalf("subscriber got %d messages, want 1", len(sub.received))
	}
	got := sub.received[0]
	if got.Type != "slot_changed" || got.Status != "confirmed" || got.ServiceID != "svc-1" {
		t.Errorf("unexpected message: %+v", got)
	}
}

func TestFeedRejectsUnknownType(t *testing.T) {
	hub := testHub()
	msg := kafka.Message{
		Topic: "booking.exploded",
		Value: []byte(`{}`),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("booking.exploded")},
		},
	}
	if err := Feed(hub)(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

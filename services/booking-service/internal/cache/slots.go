// Package cache holds the Redis-backed slot view. The cache is a read-path
// accelerator only; every mutation invalidates the affected keys before the
// response is written, so readers never see a booked slot as free for
// longer than the TTL.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a cache. A nil client disables caching; all methods become
// no-ops and reads are misses.
func New(client *redis.Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SlotCache{client: client, ttl: ttl}
}

func Key(serviceID, date string) string {
	return "slots:" + serviceID + ":" + date
}

// Get treats every error, including a Redis outage, as a miss.
func (c *SlotCache) Get(ctx context.Context, serviceID, date string) ([]model.TimeSlot, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, Key(serviceID, date)).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []model.TimeSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) Set(ctx context.Context, serviceID, date string, slots []model.TimeSlot) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(serviceID, date), raw, c.ttl).Err()
}

// Invalidate deletes the slot view for the given dates. Called synchronously
// inside the mutating request, before the response.
func (c *SlotCache) Invalidate(ctx context.Context, serviceID string, dates ...string) error {
	if c.client == nil || len(dates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, Key(serviceID, d))
	}
	return c.client.Del(ctx, keys...).Err()
}

func ReadyCheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

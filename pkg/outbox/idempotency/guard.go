// Package idempotency remembers which outbox events a sink has already
// delivered so a crash between delivery and marking the row published does
// not send the same event twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freshfeet/storefront-backend/pkg/redis"
)

// DefaultTTL outlives the worker's full retry schedule.
const DefaultTTL = 7 * 24 * time.Hour

// Guard claims event IDs per sink with SETNX. Keys look like
// sf:idempotency:delivered:<sink>:<event_id>.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewGuard builds a delivery guard. A zero ttl falls back to DefaultTTL.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim returns true when the caller is the first to deliver eventID to sink.
func (g *Guard) Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(sink, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Release forgets a claim after a failed delivery so the next attempt can
// deliver again.
func (g *Guard) Release(ctx context.Context, sink string, eventID uuid.UUID) error {
	key, err := g.key(sink, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(sink string, eventID uuid.UUID) (string, error) {
	if sink == "" {
		return "", errors.New("sink name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(fmt.Sprintf("delivered:%s", sink), eventID.String()), nil
}

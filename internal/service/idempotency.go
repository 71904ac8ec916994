package service

import (
	"context"
	"time"

	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/repository"
)

const DefaultIdempotencyTTL = 30 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

// IdempotencyGuard records the response produced for a client key so a
// retried request gets the same bytes back.
type IdempotencyGuard struct {
	store  repository.IdempotencyStore
	ttl    time.Duration
	now    Clock
	logger *logging.LoggerV2
}

func NewIdempotencyGuard(store repository.IdempotencyStore, ttl time.Duration, clock Clock) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &IdempotencyGuard{
		store:  store,
		ttl:    ttl,
		now:    clock,
		logger: logging.NewLoggerV2("idempotency-guard"),
	}
}

// Check returns a stored, unexpired response for key.
func (g *IdempotencyGuard) Check(ctx context.Context, key string) (bool, *models.IdempotencyEntry, error) {
	entry, err := g.store.Get(ctx, key)
	if err != nil {
		return false, nil, errors.Storage("read idempotency key", err)
	}
	if !entry.Replayable(g.now()) {
		return false, nil, nil
	}
	return true, entry, nil
}

// Reserve claims key for the caller. When it is already taken the
// existing entry is returned: either a stored response or an in-flight
// marker. Logically expired entries are taken over.
func (g *IdempotencyGuard) Reserve(ctx context.Context, key string) (bool, *models.IdempotencyEntry, error) {
	now := g.now()
	marker := &models.IdempotencyEntry{
		State:     models.IdempotencyInFlight,
		ExpiresAt: now.Add(g.ttl),
	}

	reserved, err := g.store.Reserve(ctx, key, marker, g.ttl)
	if err != nil {
		return false, nil, errors.Storage("reserve idempotency key", err)
	}
	if reserved {
		return true, nil, nil
	}

	existing, err := g.store.Get(ctx, key)
	if err != nil {
		return false, nil, errors.Storage("read idempotency key", err)
	}
	if existing == nil || existing.Expired(now) {
		if err := g.store.Put(ctx, key, marker, g.ttl); err != nil {
			return false, nil, errors.Storage("reserve idempotency key", err)
		}
		return true, nil, nil
	}
	return false, existing, nil
}

// Store saves the response under key and restarts its expiry.
func (g *IdempotencyGuard) Store(ctx context.Context, key string, statusCode int, body []byte) error {
	entry := &models.IdempotencyEntry{
		State:      models.IdempotencyDone,
		StatusCode: statusCode,
		Body:       body,
		ExpiresAt:  g.now().Add(g.ttl),
	}
	if err := g.store.Put(ctx, key, entry, g.ttl); err != nil {
		return errors.Storage("store idempotency key", err)
	}
	return nil
}

// Release drops an in-flight marker so the client may retry with the
// same key. Stored responses are left alone.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) {
	entry, err := g.store.Get(ctx, key)
	if err == nil && entry != nil && entry.State != models.IdempotencyInFlight {
		return
	}
	if err := g.store.Delete(ctx, key); err != nil {
		g.logger.Warn("Failed to release idempotency key", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}

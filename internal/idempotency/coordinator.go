package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/punchamoorthee/settleops/internal/domain"
)

const (
	// lockTTL bounds how long a crashed holder can block a key.
	lockTTL = 5 * time.Minute
	// responseTTL bounds replay-cache growth.
	responseTTL = 24 * time.Hour
)

// Outcome is the coordinator's admission decision for a key.
type Outcome int

const (
	// New means this caller holds the lock and should run business logic.
	New Outcome = iota
	// InProgress means another caller holds the lock; do not proceed.
	InProgress
	// Cached means a previous response exists and must be replayed verbatim.
	Cached
)

// Coordinator deduplicates requests by caller-supplied key over a shared
// cache. All state lives in the backend; a Coordinator is stateless and
// safe for concurrent use.
//
// The backend is fail-open: if it is unreachable the request is admitted
// as New rather than blocking traffic, trading a small duplicate-processing
// risk for availability.
type Coordinator struct {
	cache Cache
}

func NewCoordinator(cache Cache) *Coordinator {
	return &Coordinator{cache: cache}
}

func cacheKey(key string) string { return "idempotency:" + key }
func lockKey(key string) string  { return "idempotency:lock:" + key }

// Admit decides whether the caller may run business logic for key.
// Exactly one concurrent caller observes New per key; the rest observe
// InProgress until Complete or Abort. Once a response is cached, every
// caller observes Cached with the stored response.
func (c *Coordinator) Admit(ctx context.Context, key string) (Outcome, *domain.CachedResponse) {
	data, err := c.cache.Get(ctx, cacheKey(key))
	if err == nil {
		var resp domain.CachedResponse
		jsonErr := json.Unmarshal([]byte(data), &resp)
		if jsonErr == nil {
			return Cached, &resp
		}
		// Corrupt cached response: ignore it and contend for the lock
		// below, so one caller still wins the key.
		log.Printf("idempotency: corrupt cached response for key %q, ignoring: %v", key, jsonErr)
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Printf("idempotency: cache backend unavailable, failing open: %v", err)
		return New, nil
	}

	acquired, err := c.cache.SetNX(ctx, lockKey(key), "processing", lockTTL)
	if err != nil {
		log.Printf("idempotency: lock acquisition unavailable, failing open: %v", err)
		return New, nil
	}
	if acquired {
		return New, nil
	}
	return InProgress, nil
}

// Complete stores the successful response for replay and releases the
// lock. Only 2xx outcomes should be completed; failures go through Abort
// so a retry with the same key can re-attempt.
func (c *Coordinator) Complete(ctx context.Context, key string, status int, body string) error {
	data, err := json.Marshal(domain.CachedResponse{Status: status, Body: body})
	if err != nil {
		return fmt.Errorf("response serialization failed: %w", err)
	}
	if err := c.cache.SetEx(ctx, cacheKey(key), string(data), responseTTL); err != nil {
		return fmt.Errorf("response cache write failed: %w", err)
	}
	if err := c.cache.Del(ctx, lockKey(key)); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}

// Abort releases the lock without caching a response.
func (c *Coordinator) Abort(ctx context.Context, key string) error {
	if err := c.cache.Del(ctx, lockKey(key)); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}

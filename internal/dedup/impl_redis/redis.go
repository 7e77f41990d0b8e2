// Package impl_redis is an optional Deduplicator backend for deployments
// that run the Router across multiple worker processes sharing one dedup
// horizon, so a key seen by one worker is visible to every other worker
// immediately rather than only after ledger rehydration. The required
// backend remains impl_inmem; this one is opt-in.
package impl_redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend implements dedup.Backend atop a Redis SETNX-style check.
type Backend struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New wires a Backend against an already-constructed redis.Client. ttl
// bounds how long a dedup key is remembered (0 means "never expire",
// matching the in-memory backend's lifetime-of-process semantics).
func New(client *redis.Client, ttl time.Duration) *Backend {
	return &Backend{client: client, ttl: ttl, prefix: "ransomeye:dedup:"}
}

// SeenAndMark implements dedup.Backend. SetNX returns true when the key did
// NOT already exist (i.e. this call is the one that set it), so "already
// seen" is the negation of that.
func (b *Backend) SeenAndMark(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	set, err := b.client.SetNX(ctx, b.prefix+key, "1", b.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup/impl_redis: SetNX failed: %w", err)
	}
	return !set, nil
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/quorum/metrics"
)

// Backend stores serialized results. Implementations treat failures as
// misses; the cache never turns a readable result into an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// Results is a read-through cache for computed tallies. Concurrent misses on
// the same key share one computation.
type Results struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
}

// NewResults wraps backend. A nil backend or a zero ttl disables storage but
// keeps the shared computation.
func NewResults(backend Backend, ttl time.Duration) *Results {
	return &Results{backend: backend, ttl: ttl}
}

func (r *Results) enabled() bool {
	return r.backend != nil && r.ttl > 0
}

// Invalidate drops keys after the data they were computed from changed.
func (r *Results) Invalidate(ctx context.Context, keys ...string) {
	if r == nil || !r.enabled() || len(keys) == 0 {
		return
	}
	r.backend.Delete(ctx, keys...)
}

// Fetch returns the cached value for key or computes and stores it.
// A nil *Results always computes.
func Fetch[T any](ctx context.Context, r *Results, key string, compute func(context.Context) (T, error)) (T, error) {
	if r == nil {
		return compute(ctx)
	}

	if r.enabled() {
		if raw, ok := r.backend.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				metrics.CacheLookups.WithLabelValues("hit").Inc()
				return v, nil
			}
			slog.Warn("discarding undecodable cache entry", "key", key)
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	res, err, _ := r.group.Do(key, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if r.enabled() {
			if raw, err := json.Marshal(v); err == nil {
				r.backend.Set(ctx, key, raw, r.ttl)
			}
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

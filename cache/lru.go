// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type lruEntry struct {
	value   []byte
	expires time.Time
}

// LRU is an in-process Backend with per-entry expiry.
type LRU struct {
	cache *lru.Cache
	now   func() time.Time
}

func NewLRU(size int) (*LRU, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRU{cache: c, now: time.Now}, nil
}

func (l *LRU) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(lruEntry)
	if l.now().After(e.expires) {
		l.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (l *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	l.cache.Add(key, lruEntry{value: value, expires: l.now().Add(ttl)})
}

func (l *LRU) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		l.cache.Remove(k)
	}
}

func (l *LRU) Len() int {
	return l.cache.Len()
}

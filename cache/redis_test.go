// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedis_GetSetDelete(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	_, ok := r.Get(ctx, "participation:org:a1")
	assert.False(t, ok)

	r.Set(ctx, "participation:org:a1", []byte(`{"count":2}`), time.Minute)
	got, ok := r.Get(ctx, "participation:org:a1")
	require.True(t, ok)
	assert.Equal(t, `{"count":2}`, string(got))

	assert.True(t, mr.Exists(redisPrefix+"participation:org:a1"), "keys are namespaced")
	assert.False(t, mr.Exists("participation:org:a1"))

	r.Set(ctx, "results:org:q1", []byte("x"), time.Minute)
	r.Delete(ctx, "participation:org:a1", "results:org:q1")
	_, ok = r.Get(ctx, "participation:org:a1")
	assert.False(t, ok)
	_, ok = r.Get(ctx, "results:org:q1")
	assert.False(t, ok)
}

func TestRedis_TTL(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), 5*time.Second)
	assert.Equal(t, 5*time.Second, mr.TTL(redisPrefix+"k"))

	mr.FastForward(6 * time.Second)
	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_ServerErrorsAreMisses(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), time.Minute)
	mr.SetError("LOADING")
	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)

	mr.SetError("")
	_, ok = r.Get(ctx, "k")
	assert.True(t, ok)
}

func TestRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestFetch_ThroughRedis(t *testing.T) {
	r, _ := newTestRedis(t)
	results := NewResults(r, time.Minute)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Count: 3, Pct: 62.5}, nil
	}

	first, err := Fetch(ctx, results, "results:org:q1", load)
	require.NoError(t, err)
	second, err := Fetch(ctx, results, "results:org:q1", load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	results.Invalidate(ctx, "results:org:q1")
	_, err = Fetch(ctx, results, "results:org:q1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

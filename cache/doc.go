// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache holds computed tallies for a short TTL.

Results sits in front of a Backend, either the in-process LRU or Redis when
several API instances share one database:

	backend, _ := cache.NewLRU(1024)
	results := cache.NewResults(backend, 5*time.Second)

	stats, err := cache.Fetch(ctx, results, key, func(ctx context.Context) (models.TallyStats, error) {
		return compute(ctx)
	})

Writers call Invalidate after committing so readers see their own writes;
other readers may see a value up to one TTL old. Values are stored as JSON, so
a hit decodes to exactly what the computation returned.
*/
package cache

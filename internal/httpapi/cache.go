// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package httpapi

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// collectorsCacheKey is the single key the collectors cache is ever stored
// under. A full LRU is overkill for one entry, but it's the library the
// rest of the pack reaches for, and it leaves room for per-query-shape
// caching later without swapping the underlying cache type.
const collectorsCacheKey = "collectors"

const collectorsCacheTTL = 2 * time.Second

type cachedBody struct {
	body    []byte
	expires time.Time
}

// collectorsCache fronts GET /api/collectors with a short TTL: the query is
// cheap, but dashboards poll it aggressively.
type collectorsCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, cachedBody]
}

func newCollectorsCache() *collectorsCache {
	c, err := lru.New[string, cachedBody](256)
	if err != nil {
		// Only returns an error for a non-positive size, which never happens
		// with the constant above.
		panic(err)
	}
	return &collectorsCache{lru: c}
}

// get returns the cached body if present and not yet expired.
func (c *collectorsCache) get() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Get(collectorsCacheKey)
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.body, true
}

func (c *collectorsCache) set(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(collectorsCacheKey, cachedBody{body: body, expires: time.Now().Add(collectorsCacheTTL)})
}

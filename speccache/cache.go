// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package speccache implements C10: a fingerprint-keyed cache of
// speculatively (or actually) produced TaskResults, with TTL expiry,
// eviction-on-access, and hit/miss counting.
//
// Grounded on pkg/ratelimit/store_memory.go's thread-safe map-backed store
// shape, generalized from a usage counter to a TTL'd result cache.
package speccache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/hector-pml/workflow"
)

// DefaultTTL is the cache entry lifetime used when a caller's Put does not
// specify one (§4.10's stated default).
const DefaultTTL = 5 * time.Minute

// Stats holds the cache's running hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// entry is a cached TaskResult plus its expiry.
type entry struct {
	result  workflow.TaskResult
	expires time.Time
}

// MemoryCache is the default in-memory workflow.SpeculationCacheBackend.
// It evicts an entry on access once past its TTL (no waiting for a
// sweep), and optionally runs a background sweep for entries nobody
// accesses again (Sweep).
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty MemoryCache.
func New() *MemoryCache {
	return &MemoryCache{entries: map[string]entry{}}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (workflow.TaskResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok || time.Now().After(e.expires) {
		if ok {
			delete(c.entries, fingerprint) // eviction-on-access past TTL
		}
		c.misses.Add(1)
		return workflow.TaskResult{}, false, nil
	}
	c.hits.Add(1)
	return e.result, true, nil
}

func (c *MemoryCache) Put(_ context.Context, fingerprint string, result workflow.TaskResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry{result: result, expires: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Evict(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
	return nil
}

// Stats returns the cache's cumulative hit/miss counts.
func (c *MemoryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Sweep removes every expired entry, independent of access. Intended to
// be run periodically by a caller (e.g. on config.SpeculationConfig's
// SweepIntervalSeconds) so a speculated-but-never-retrieved entry doesn't
// sit in memory indefinitely between accesses.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// RunSweeper runs Sweep every interval until ctx is canceled. Intended to
// be launched in its own goroutine by whatever wires the cache.
func (c *MemoryCache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

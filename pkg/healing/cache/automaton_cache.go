/*
Copyright 2025 The ModelTC Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache holds the process-local caches that sit in front of the
// automaton builder and the VPA's ParseChars: a cost-aware cache of built
// automatons, and a bounded LRU of recent parse results.
package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
	"github.com/modeltc/token-healing-go/pkg/utils/logging"
)

const (
	defaultNumCounters = 1e7 // 10M keys tracked for eviction sampling.
	defaultBufferItems = 64
)

// AutomatonCacheConfig holds the configuration for AutomatonCache.
type AutomatonCacheConfig struct {
	// MaxSize is the maximum total vocabulary-byte cost held by the cache.
	// Supports human-readable formats like "2GiB", "500MiB", "1GB".
	MaxSize string `json:"maxSize,omitempty"`
}

// DefaultAutomatonCacheConfig returns a default AutomatonCacheConfig.
func DefaultAutomatonCacheConfig() *AutomatonCacheConfig {
	return &AutomatonCacheConfig{
		MaxSize: "1GiB",
	}
}

// AutomatonCache is a cost-aware, process-local cache of built VPAs keyed by
// the content of their vocabulary. Cost is the total vocabulary byte length,
// so a bounded MaxSize naturally evicts the least-recently-used large
// vocabularies first. Concurrent GetOrBuild calls for the same not-yet-cached
// vocabulary are collapsed into a single build via a singleflight.Group.
type AutomatonCache struct {
	data  *ristretto.Cache[uint64, *vocab.Automaton]
	group singleflight.Group
	mu    sync.Mutex
}

// NewAutomatonCache creates a new AutomatonCache.
func NewAutomatonCache(cfg *AutomatonCacheConfig) (*AutomatonCache, error) {
	if cfg == nil {
		cfg = DefaultAutomatonCacheConfig()
	}

	maxCost, err := humanize.ParseBytes(cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize automaton cache: %w", err)
	}

	data, err := ristretto.NewCache(&ristretto.Config[uint64, *vocab.Automaton]{
		NumCounters: defaultNumCounters,
		MaxCost:     int64(maxCost), //nolint:gosec // parsed from a human-readable size string, never negative
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize automaton cache: %w", err)
	}

	return &AutomatonCache{data: data}, nil
}

// vocabKey hashes the vocabulary's content, length-prefixing each token so
// two vocabularies that differ only in where one token ends and the next
// begins never collide (e.g. ["ab","c"] vs ["a","bc"]).
func vocabKey(voc [][]byte) uint64 {
	digest := xxhash.New()
	var lenBuf [4]byte
	for _, tok := range voc {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(tok))) //nolint:gosec // vocab entries are small
		digest.Write(lenBuf[:])
		digest.Write(tok)
	}
	return digest.Sum64()
}

func vocabCost(voc [][]byte) int64 {
	var total int64
	for _, tok := range voc {
		total += int64(len(tok))
	}
	return total
}

// GetOrBuild returns the cached automaton for vocab's content, building and
// storing it on a cache miss. It never stores a partially built automaton: a
// build error is returned to every caller waiting on that key and nothing is
// cached.
func (c *AutomatonCache) GetOrBuild(ctx context.Context, voc [][]byte) (*vocab.Automaton, error) {
	key := vocabKey(voc)
	logger := klog.FromContext(ctx).V(logging.DEBUG).WithName("cache.AutomatonCache.GetOrBuild")

	if a, found := c.data.Get(key); found {
		logger.Info("automaton cache hit", "key", key)
		return a, nil
	}

	result, err, shared := c.group.Do(fmt.Sprintf("%d", key), func() (any, error) {
		// A caller that missed just before an earlier build for this key
		// finished finds that build's result here instead of building again.
		if a, found := c.data.Get(key); found {
			return a, nil
		}
		a, buildErr := vocab.New(voc)
		if buildErr != nil {
			return nil, buildErr
		}
		c.mu.Lock()
		c.data.Set(key, a, vocabCost(voc))
		c.data.Wait()
		c.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build automaton: %w", err)
	}

	a, ok := result.(*vocab.Automaton)
	if !ok {
		return nil, fmt.Errorf("unexpected automaton cache result type")
	}
	logger.Info("automaton cache miss", "key", key, "shared", shared)
	return a, nil
}

// Close releases the cache's background goroutines.
func (c *AutomatonCache) Close() {
	c.data.Close()
}

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

package cache

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

const defaultParseCacheSize = 4096

// ParseCacheConfig holds the configuration for ParseCache.
type ParseCacheConfig struct {
	// Size is the number of entries the LRU holds before evicting.
	Size int `json:"size,omitempty"`
}

// DefaultParseCacheConfig returns a default ParseCacheConfig.
func DefaultParseCacheConfig() *ParseCacheConfig {
	return &ParseCacheConfig{Size: defaultParseCacheSize}
}

type parseKey struct {
	automaton *vocab.Automaton
	textHash  uint64
	startFrom int
}

// ParseCache is a bounded LRU in front of vocab.Automaton.ParseChars, keyed
// by the identity of the automaton, a hash of the text, and startFrom.
// Entries are immutable once stored, since ParseChars is a pure function of
// its inputs over an immutable automaton.
type ParseCache struct {
	mu    sync.Mutex
	store *lru.Cache[parseKey, []vocab.PositionRange]
}

// NewParseCache creates a new ParseCache.
func NewParseCache(cfg *ParseCacheConfig) (*ParseCache, error) {
	if cfg == nil {
		cfg = DefaultParseCacheConfig()
	}

	store, err := lru.New[parseKey, []vocab.PositionRange](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize parse cache: %w", err)
	}

	return &ParseCache{store: store}, nil
}

// ParseChars returns automaton.ParseChars(text, startFrom), serving the
// result from cache when available.
func (c *ParseCache) ParseChars(automaton *vocab.Automaton, text string, startFrom int) []vocab.PositionRange {
	key := parseKey{
		automaton: automaton,
		textHash:  xxhash.Sum64String(text),
		startFrom: startFrom,
	}

	c.mu.Lock()
	if ranges, ok := c.store.Get(key); ok {
		c.mu.Unlock()
		return ranges
	}
	c.mu.Unlock()

	ranges := automaton.ParseChars(text, startFrom)

	c.mu.Lock()
	c.store.Add(key, ranges)
	c.mu.Unlock()

	return ranges
}

// Purge empties the cache. Because each key holds its *vocab.Automaton, a
// cached entry keeps that automaton reachable, so no other automaton can
// take its address while the entry is live; Purge also releases those
// references.
func (c *ParseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Purge()
}

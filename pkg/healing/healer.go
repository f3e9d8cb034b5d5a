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

// Package healing is the facade composing the automaton cache, the
// Interactive Search Driver, and (optionally) metrics into a single entry
// point for token-healing re-tokenization search.
package healing

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/klog/v2"

	"github.com/modeltc/token-healing-go/pkg/healing/cache"
	"github.com/modeltc/token-healing-go/pkg/healing/metrics"
	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
	"github.com/modeltc/token-healing-go/pkg/utils/logging"
)

// Config holds the configuration for the Healer module. It covers the
// different components found in the module, the same way kvcache.Indexer's
// Config composes the configs of the components it wires together.
type Config struct {
	AutomatonCacheConfig *cache.AutomatonCacheConfig `json:"automatonCacheConfig"`
	ParseCacheConfig     *cache.ParseCacheConfig     `json:"parseCacheConfig"`
	// EnableMetrics toggles whether Healer instruments every session with a
	// metrics.Collector.
	EnableMetrics bool `json:"enableMetrics"`
}

// DefaultConfig returns a default configuration for the Healer module.
func DefaultConfig() *Config {
	return &Config{
		AutomatonCacheConfig: cache.DefaultAutomatonCacheConfig(),
		ParseCacheConfig:     cache.DefaultParseCacheConfig(),
		EnableMetrics:        false,
	}
}

// Healer is the top-level entry point: it builds (and caches) VPAs and opens
// Interactive Search Driver sessions against them.
type Healer struct {
	config *Config

	automatons *cache.AutomatonCache
	parses     *cache.ParseCache
	collector  *metrics.Collector
}

// NewHealer creates a Healer given a Config.
func NewHealer(config *Config) (*Healer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	automatons, err := cache.NewAutomatonCache(config.AutomatonCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create automaton cache: %w", err)
	}

	parses, err := cache.NewParseCache(config.ParseCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}

	var collector *metrics.Collector
	if config.EnableMetrics {
		collector = metrics.NewCollector("token_healing", "healer")
	}

	return &Healer{
		config:     config,
		automatons: automatons,
		parses:     parses,
		collector:  collector,
	}, nil
}

// Collector returns the Healer's metrics.Collector for registration with a
// Prometheus registry, or nil if EnableMetrics was false.
func (h *Healer) Collector() *metrics.Collector {
	return h.collector
}

// GetOrBuildAutomaton returns the cached VPA for vocab's content, building
// one on a cache miss.
func (h *Healer) GetOrBuildAutomaton(ctx context.Context, voc [][]byte) (*vocab.Automaton, error) {
	return h.automatons.GetOrBuild(ctx, voc)
}

// NewSession opens an Interactive Search Driver session against automaton
// for text starting from startFrom, parsing through the Healer's
// parse-result cache. It returns (nil, nil, nil) when no healing session is
// needed for this text. When metrics are enabled, the returned driver is
// wrapped in a metrics.InstrumentedSession whose Feed signature matches
// *searchtree.SearchTree's.
func (h *Healer) NewSession(
	ctx context.Context,
	automaton *vocab.Automaton,
	encode searchtree.EncodeFunc,
	text string,
	startFrom int,
) (Session, *searchtree.InferRequest, error) {
	logger := klog.FromContext(ctx).V(logging.DEBUG).WithName("healing.Healer.NewSession")

	ranges := h.parses.ParseChars(automaton, text, startFrom)
	posToRange := make(map[int]vocab.SortedTokenRange, len(ranges))
	positions := make([]int, 0, len(ranges))
	for _, pr := range ranges {
		posToRange[pr.Pos] = pr.Range
		positions = append(positions, pr.Pos)
	}
	sort.Ints(positions)

	encoded, err := encode(positions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode candidate prefixes: %w", err)
	}

	tree, req := searchtree.FromEncoded(automaton, posToRange, encoded)
	if tree == nil {
		logger.Info("no healing session needed", "positions", len(positions))
		return nil, nil, nil
	}

	if h.collector != nil {
		return metrics.NewInstrumentedSession(tree, h.collector), req, nil
	}
	return tree, req, nil
}

// Session is the common surface of *searchtree.SearchTree and
// *metrics.InstrumentedSession, letting callers use NewSession's result
// without caring whether metrics are enabled.
type Session interface {
	Feed(res searchtree.InferResponse) (*searchtree.InferRequest, error)
	GetBestChoice() (searchtree.BestChoice, error)
	PrefilledTokenIDs() []vocab.TokenID
	MaxNumTokens() int
}

var (
	_ Session = &searchtree.SearchTree{}
	_ Session = &metrics.InstrumentedSession{}
)

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

// Package tokenizeradapter adapts a real HuggingFace tokenizer to the
// Search-Tree Builder's EncodeFunc/AsyncEncodeFunc callback shape: slice the
// prompt at each candidate re-tokenization boundary and tokenize each slice
// independently.
package tokenizeradapter

import (
	"context"
	"fmt"

	"github.com/daulet/tokenizers"
	"golang.org/x/sync/errgroup"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
	"github.com/modeltc/token-healing-go/pkg/utils"
)

// HFAdapterConfig holds the configuration for HFAdapter.
type HFAdapterConfig struct {
	HuggingFaceToken   string `json:"huggingFaceToken,omitempty"`
	TokenizersCacheDir string `json:"tokenizersCacheDir,omitempty"`
	// MaxConcurrentEncodes bounds how many slices the ForTextAsync callback
	// tokenizes in parallel.
	MaxConcurrentEncodes int `json:"maxConcurrentEncodes,omitempty"`
}

const defaultMaxConcurrentEncodes = 8

// DefaultHFAdapterConfig returns a default HFAdapterConfig.
func DefaultHFAdapterConfig() *HFAdapterConfig {
	return &HFAdapterConfig{
		MaxConcurrentEncodes: defaultMaxConcurrentEncodes,
	}
}

// HFAdapter wraps a single loaded HuggingFace tokenizer (one model, unlike
// the teacher's per-model LRU, since a Healer session is already scoped to
// one model's vocabulary by construction).
type HFAdapter struct {
	tok    *tokenizers.Tokenizer
	maxCCY int
}

// NewHFAdapter loads modelName's tokenizer with cfg.
func NewHFAdapter(modelName string, cfg *HFAdapterConfig) (*HFAdapter, error) {
	if cfg == nil {
		cfg = DefaultHFAdapterConfig()
	}

	var opt tokenizers.TokenizerConfigOption
	if cfg.TokenizersCacheDir != "" {
		opt = tokenizers.WithCacheDir(cfg.TokenizersCacheDir)
	}
	if cfg.HuggingFaceToken != "" {
		opt = tokenizers.WithAuthToken(cfg.HuggingFaceToken)
	}

	tok, err := tokenizers.FromPretrained(modelName, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer for model %q: %w", modelName, err)
	}

	maxCCY := cfg.MaxConcurrentEncodes
	if maxCCY <= 0 {
		maxCCY = defaultMaxConcurrentEncodes
	}

	return &HFAdapter{tok: tok, maxCCY: maxCCY}, nil
}

// Close releases the underlying tokenizer.
func (a *HFAdapter) Close() error {
	return a.tok.Close()
}

// ForText binds text and returns a searchtree.EncodeFunc that tokenizes
// text[:p] for every requested position p, in order, on the calling
// goroutine.
func (a *HFAdapter) ForText(text string) searchtree.EncodeFunc {
	return func(positions []int) ([]searchtree.PositionEncoding, error) {
		out := make([]searchtree.PositionEncoding, len(positions))
		for i, pos := range positions {
			out[i] = a.encodeOne(text, pos)
		}
		return out, nil
	}
}

// ForTextAsync binds text and returns a searchtree.AsyncEncodeFunc that fans
// the same per-position tokenizations out across goroutines bounded by
// MaxConcurrentEncodes, returning as soon as ctx is cancelled or every slice
// has been tokenized.
func (a *HFAdapter) ForTextAsync(text string) searchtree.AsyncEncodeFunc {
	return func(ctx context.Context, positions []int) ([]searchtree.PositionEncoding, error) {
		out := make([]searchtree.PositionEncoding, len(positions))

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(a.maxCCY)

		for i, pos := range positions {
			i, pos := i, pos
			g.Go(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				out[i] = a.encodeOne(text, pos)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("failed to encode prefixes: %w", err)
		}
		return out, nil
	}
}

func (a *HFAdapter) encodeOne(text string, pos int) searchtree.PositionEncoding {
	slice := text
	if pos < len(text) {
		slice = text[:pos]
	}

	resp := a.tok.EncodeWithOptions(slice, false, tokenizers.WithReturnTypeIDs())
	ids := utils.SliceMap(resp.IDs, func(id uint32) vocab.TokenID { return vocab.TokenID(id) })

	return searchtree.PositionEncoding{Pos: pos, IDs: ids}
}

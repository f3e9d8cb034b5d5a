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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

func TestParseCacheHitReturnsEqualResult(t *testing.T) {
	pc, err := NewParseCache(nil)
	require.NoError(t, err)

	auto, err := vocab.New(sampleVocab())
	require.NoError(t, err)

	r1 := pc.ParseChars(auto, "bba", 0)
	r2 := pc.ParseChars(auto, "bba", 0)
	assert.Equal(t, r1, r2)
}

func TestParseCacheDistinguishesStartFrom(t *testing.T) {
	pc, err := NewParseCache(nil)
	require.NoError(t, err)

	auto, err := vocab.New(sampleVocab())
	require.NoError(t, err)

	r0 := pc.ParseChars(auto, "bba", 0)
	r1 := pc.ParseChars(auto, "bba", 1)
	assert.NotEqual(t, r0, r1)
}

func TestParseCacheDistinguishesAutomatonIdentity(t *testing.T) {
	pc, err := NewParseCache(nil)
	require.NoError(t, err)

	a1, err := vocab.New(sampleVocab())
	require.NoError(t, err)
	a2, err := vocab.New(sampleVocab())
	require.NoError(t, err)

	r1 := pc.ParseChars(a1, "bba", 0)
	r2 := pc.ParseChars(a2, "bba", 0)
	assert.Equal(t, r1, r2, "same vocab content should parse identically regardless of instance")
	assert.Equal(t, 2, pc.store.Len(), "each automaton instance gets its own cache entry")
}

func TestParseCachePurge(t *testing.T) {
	pc, err := NewParseCache(nil)
	require.NoError(t, err)

	auto, err := vocab.New(sampleVocab())
	require.NoError(t, err)

	pc.ParseChars(auto, "bba", 0)
	pc.Purge()
	assert.Zero(t, pc.store.Len())
}

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

package searchtree

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

// newIdentityAutomaton builds an automaton over n two-character tokens
// "t0".."t(n-1)" whose lexicographic sort order equals their TokenID order,
// so Order()[i] == TokenID(i) and Rank()[i] == SortedTokenID(i). Tests use it
// purely as an id-translation table; the automaton's own prefix-matching
// behavior is exercised separately in the vocab package's tests.
func newIdentityAutomaton(t *testing.T, n int) *vocab.Automaton {
	t.Helper()
	tokens := make([][]byte, n)
	for i := range tokens {
		tokens[i] = []byte(fmt.Sprintf("t%d", i))
	}
	a, err := vocab.New(tokens)
	require.NoError(t, err)
	for i := range tokens {
		require.Equal(t, vocab.TokenID(i), a.Order()[i], "fixture precondition: identity order")
	}
	return a
}

func ptr(r vocab.SortedTokenRange) *vocab.SortedTokenRange { return &r }

// TestFromEncodedNoHealingNeeded covers scenario S3: when the builder has no
// encoded sequences to work with, the stopping node has neither transitions
// nor a label, and construction reports no session is needed.
func TestFromEncodedNoHealingNeeded(t *testing.T) {
	auto := newIdentityAutomaton(t, 4)
	tree, req := fromEncoded(auto, map[int]vocab.SortedTokenRange{}, nil)
	assert.Nil(t, tree)
	assert.Nil(t, req)
}

// TestFromEncodedPrefilledPrefix covers invariant #5: the prefilled prefix
// is the unique longest TokenId sequence shared by every re-tokenization.
func TestFromEncodedPrefilledPrefix(t *testing.T) {
	auto := newIdentityAutomaton(t, 10)

	posToRange := map[int]vocab.SortedTokenRange{
		0: {Lower: 9, Upper: 10},
		1: {Lower: 8, Upper: 9},
	}
	encoded := []PositionEncoding{
		{Pos: 0, IDs: []vocab.TokenID{2, 7, 9}},
		{Pos: 1, IDs: []vocab.TokenID{2, 7, 5}},
	}

	tree, req := fromEncoded(auto, posToRange, encoded)
	require.NotNil(t, tree)
	require.NotNil(t, req)

	assert.Equal(t, []vocab.TokenID{2, 7}, tree.PrefilledTokenIDs())
	assert.Nil(t, req.SamplingIDRange)
	assert.Equal(t, []vocab.SortedTokenID{5, 9}, req.SparseChoices)
	assert.Equal(t, 3, tree.MaxNumTokens())
}

// TestFeedSamplingPath covers scenario S4: a single candidate with a
// sampling range at the current frame.
func TestFeedSamplingPath(t *testing.T) {
	auto := newIdentityAutomaton(t, 10)

	tree := &SearchTree{
		automaton:       auto,
		trie:            newSearchTrie(),
		samplingIDRange: map[int]vocab.SortedTokenRange{},
		bestChoice:      NewBestChoice(),
	}
	child := tree.trie.insert([]vocab.SortedTokenID{5})
	tree.samplingIDRange[trieRootID] = vocab.SortedTokenRange{Lower: 5, Upper: 9}
	tree.stack = []searchState{{
		logProb:         0,
		samplingIDRange: ptr(vocab.SortedTokenRange{Lower: 5, Upper: 9}),
		nextStates:      []trans{{id: 5, node: child}},
	}}

	req1, err := tree.Feed(InferResponse{
		Sampled:       &Prediction{TokenID: 7, LogProb: -1.0},
		SparseChoices: []Prediction{{TokenID: 5, LogProb: -0.5}},
	})
	require.NoError(t, err)
	require.NotNil(t, req1)
	assert.Equal(t, 0, req1.Backtrace)
	require.NotNil(t, req1.Feed)
	assert.Equal(t, vocab.TokenID(5), *req1.Feed)
	assert.Nil(t, req1.SamplingIDRange)
	assert.Empty(t, req1.SparseChoices)

	bc, err := tree.GetBestChoice()
	require.NoError(t, err)
	assert.Equal(t, []vocab.TokenID{7}, bc.ExtraTokenIDs)
	assert.Equal(t, -1.0, bc.AccumLogProb)

	req2, err := tree.Feed(InferResponse{})
	require.NoError(t, err)
	assert.Nil(t, req2)

	// The sampled extension never became part of the committed search path,
	// so best_choice is unaffected by session termination.
	bc, err = tree.GetBestChoice()
	require.NoError(t, err)
	assert.Equal(t, []vocab.TokenID{7}, bc.ExtraTokenIDs)
	assert.Equal(t, -1.0, bc.AccumLogProb)
}

// TestFeedBranchChoice covers scenario S5: two sibling branches, where Y's
// sampled token scores better than X's but X's better-scored transition
// gives X the better total log-prob.
func TestFeedBranchChoice(t *testing.T) {
	auto := newIdentityAutomaton(t, 10)

	tree := &SearchTree{
		automaton:       auto,
		trie:            newSearchTrie(),
		samplingIDRange: map[int]vocab.SortedTokenRange{},
		bestChoice:      NewBestChoice(),
	}
	leafX := tree.trie.insert([]vocab.SortedTokenID{0})
	leafY := tree.trie.insert([]vocab.SortedTokenID{1})
	tree.samplingIDRange[leafX] = vocab.SortedTokenRange{Lower: 2, Upper: 4}
	tree.samplingIDRange[leafY] = vocab.SortedTokenRange{Lower: 2, Upper: 4}
	tree.stack = []searchState{{
		nextStates: []trans{{id: 0, node: leafX}, {id: 1, node: leafY}},
	}}

	req, err := tree.Feed(InferResponse{
		SparseChoices: []Prediction{{TokenID: 0, LogProb: -0.2}, {TokenID: 1, LogProb: -3.0}},
	})
	require.NoError(t, err)
	require.NotNil(t, req)
	require.NotNil(t, req.Feed)
	assert.Equal(t, vocab.TokenID(1), *req.Feed, "Y is explored first (last pushed, first popped)")
	require.NotNil(t, req.SamplingIDRange)

	req, err = tree.Feed(InferResponse{Sampled: &Prediction{TokenID: 3, LogProb: -0.05}})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 1, req.Backtrace)
	require.NotNil(t, req.Feed)
	assert.Equal(t, vocab.TokenID(0), *req.Feed, "backtracked to X's branch")

	bc, err := tree.GetBestChoice()
	require.NoError(t, err)
	assert.InDelta(t, -3.05, bc.AccumLogProb, 1e-9)

	req, err = tree.Feed(InferResponse{Sampled: &Prediction{TokenID: 3, LogProb: -0.1}})
	require.NoError(t, err)
	assert.Nil(t, req, "session terminates: both branches exhausted")

	bc, err = tree.GetBestChoice()
	require.NoError(t, err)
	assert.InDelta(t, -0.3, bc.AccumLogProb, 1e-9, "X's branch (-0.3) beats Y's (-3.05)")
	assert.Equal(t, []vocab.TokenID{0, 3}, bc.ExtraTokenIDs)
}

// TestFeedInvalidSparseChoicesOrder covers scenario S6: a malformed response
// triggers InvalidSparseChoices without mutating the session.
func TestFeedInvalidSparseChoicesOrder(t *testing.T) {
	auto := newIdentityAutomaton(t, 10)

	tree := &SearchTree{
		automaton:       auto,
		trie:            newSearchTrie(),
		samplingIDRange: map[int]vocab.SortedTokenRange{},
		bestChoice:      NewBestChoice(),
	}
	n1 := tree.trie.insert([]vocab.SortedTokenID{1})
	n2 := tree.trie.insert([]vocab.SortedTokenID{2})
	tree.stack = []searchState{{
		nextStates: []trans{{id: 1, node: n1}, {id: 2, node: n2}},
	}}

	before := len(tree.stack)

	_, err := tree.Feed(InferResponse{
		SparseChoices: []Prediction{{TokenID: 2, LogProb: -0.1}, {TokenID: 1, LogProb: -0.2}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSparseChoices))
	assert.Equal(t, before, len(tree.stack))
	assert.Empty(t, tree.stack[0].nextChoices, "a rejected response must not be stored on the frame")
}

// TestFeedEmptyStack covers the EmptyStack error kind.
func TestFeedEmptyStack(t *testing.T) {
	tree := &SearchTree{bestChoice: NewBestChoice()}
	_, err := tree.Feed(InferResponse{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyStack))
}

// TestGetBestChoiceBeforeAnyUpdate covers the NoBestChoice error kind.
func TestGetBestChoiceBeforeAnyUpdate(t *testing.T) {
	tree := &SearchTree{bestChoice: NewBestChoice()}
	_, err := tree.GetBestChoice()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoBestChoice))
}

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

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

func byteVocab(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// s1Automaton builds the spec's S1 scenario vocabulary: sorted order is
// a, aa, ab, b, bb, bbaa, c, ca, cc.
func s1Automaton(t *testing.T) *vocab.Automaton {
	t.Helper()
	a, err := vocab.New(byteVocab("bb", "ca", "ab", "c", "aa", "bbaa", "a", "cc", "b"))
	require.NoError(t, err)
	return a
}

// TestInstrumentedSessionFeedToTermination drives a single-sample session
// (the unambiguous "bb" prefix is stripped, then the model samples "bbaa" to
// continue) through InstrumentedSession and checks the decorator both
// forwards Feed's result and records a final best-choice observation.
func TestInstrumentedSessionFeedToTermination(t *testing.T) {
	auto := s1Automaton(t)

	encode := func(positions []int) ([]searchtree.PositionEncoding, error) {
		// Only position 0 ("bb", the unambiguous candidate whose leaf is
		// labeled [4,6) = {bb, bbaa}) is reported as a re-tokenization.
		return []searchtree.PositionEncoding{{Pos: 0, IDs: []vocab.TokenID{0}}}, nil
	}

	tree, req, err := searchtree.New(auto, encode, "bba", 0)
	require.NoError(t, err)
	require.NotNil(t, tree)
	require.NotNil(t, req)
	assert.Equal(t, []vocab.TokenID{0}, tree.PrefilledTokenIDs())
	require.NotNil(t, req.SamplingIDRange)
	assert.Equal(t, vocab.SortedTokenRange{Lower: 4, Upper: 6}, *req.SamplingIDRange)

	collector := NewCollector("token_healing_test", "session")
	sess := NewInstrumentedSession(tree, collector)

	req2, err := sess.Feed(searchtree.InferResponse{
		Sampled: &searchtree.Prediction{TokenID: 5, LogProb: -0.3},
	})
	require.NoError(t, err)
	assert.Nil(t, req2, "the leaf has no further transitions, so the session terminates")

	bc, err := sess.GetBestChoice()
	require.NoError(t, err)
	assert.Equal(t, []vocab.TokenID{5}, bc.ExtraTokenIDs)
	assert.InDelta(t, -0.3, bc.AccumLogProb, 1e-9)

	assert.InDelta(t, 1.0, readCounter(t, collector.sessionsStarted), 1e-9)
	assert.InDelta(t, 1.0, readCounter(t, collector.sessionsTerminated), 1e-9)
	assert.InDelta(t, 1.0, readCounter(t, collector.feedCalls), 1e-9)
}

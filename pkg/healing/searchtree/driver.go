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
	"context"
	"sort"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

// searchState is one DFS stack frame: "we are sitting at some trie node; the
// oracle must sample a free token from samplingIDRange (if set) and score
// nextStates for branch selection."
type searchState struct {
	logProb         float64
	samplingIDRange *vocab.SortedTokenRange
	// consumedSampling is true once the frame's SamplingIDRange has been
	// delivered to the oracle and its response consumed by Feed.
	consumedSampling bool
	nextChoices      []Prediction
	nextStates       []trans
}

// SearchTree is the Interactive Search Tree: a trie of candidate
// re-tokenizations of a prompt's tail, combined with a DFS stack driven by
// the InferRequest/InferResponse protocol. A SearchTree is single-session and
// not safe for concurrent use; it does not suspend except once during
// construction, while awaiting the tokenizer callback.
type SearchTree struct {
	automaton *vocab.Automaton

	maxNumTokens int

	trie            *searchTrie
	samplingIDRange map[int]vocab.SortedTokenRange

	stack []searchState

	prefilledTokenIDs []vocab.TokenID

	currentNewTokenIDs  []vocab.TokenID
	currentAccumLogProb float64

	bestChoice BestChoice
}

// New builds a session synchronously: it parses text from startFrom with the
// automaton, asks encode for every reported end position in one call, builds
// the search trie, strips its unambiguous prefix, and returns the session
// together with the first InferRequest. It returns (nil, nil, nil) when no
// healing is needed.
func New(automaton *vocab.Automaton, encode EncodeFunc, text string, startFrom int) (*SearchTree, *InferRequest, error) {
	posToRange, positions := parsePositions(automaton, text, startFrom)

	encoded, err := encode(positions)
	if err != nil {
		return nil, nil, err
	}

	tree, req := fromEncoded(automaton, posToRange, encoded)
	return tree, req, nil
}

// NewAsync is the context-aware counterpart of New, for callers whose encode
// callback wants to observe cancellation during the session's single
// suspension point.
func NewAsync(ctx context.Context, automaton *vocab.Automaton, encode AsyncEncodeFunc, text string, startFrom int) (*SearchTree, *InferRequest, error) {
	posToRange, positions := parsePositions(automaton, text, startFrom)

	encoded, err := encode(ctx, positions)
	if err != nil {
		return nil, nil, err
	}

	tree, req := fromEncoded(automaton, posToRange, encoded)
	return tree, req, nil
}

func parsePositions(automaton *vocab.Automaton, text string, startFrom int) (map[int]vocab.SortedTokenRange, []int) {
	ranges := automaton.ParseChars(text, startFrom)

	posToRange := make(map[int]vocab.SortedTokenRange, len(ranges))
	for _, pr := range ranges {
		posToRange[pr.Pos] = pr.Range
	}

	positions := make([]int, 0, len(posToRange))
	for pos := range posToRange {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	return posToRange, positions
}

// FromEncoded is the exported counterpart of fromEncoded, for callers (such
// as a facade fronting its own parse-result cache) that have already
// resolved positions to sorted-rank ranges and obtained their encodings,
// and so want to build a session without going through New's built-in
// ParseChars call.
func FromEncoded(
	automaton *vocab.Automaton,
	posToRange map[int]vocab.SortedTokenRange,
	encoded []PositionEncoding,
) (*SearchTree, *InferRequest) {
	return fromEncoded(automaton, posToRange, encoded)
}

// fromEncoded builds the trie from already-tokenized prefixes and computes
// the initial stack frame and request, or reports that no healing is needed.
func fromEncoded(automaton *vocab.Automaton, posToRange map[int]vocab.SortedTokenRange, encoded []PositionEncoding) (*SearchTree, *InferRequest) {
	tree := &SearchTree{
		automaton:           automaton,
		trie:                newSearchTrie(),
		samplingIDRange:     make(map[int]vocab.SortedTokenRange),
		currentAccumLogProb: 0.0,
		bestChoice:          NewBestChoice(),
	}

	for _, enc := range encoded {
		rng, ok := posToRange[enc.Pos]
		if !ok {
			continue
		}
		sortedIDs := make([]vocab.SortedTokenID, len(enc.IDs))
		for i, id := range enc.IDs {
			sortedIDs[i] = automaton.Rank()[id]
		}
		nodeID := tree.trie.insert(sortedIDs)
		if len(sortedIDs) > tree.maxNumTokens {
			tree.maxNumTokens = len(sortedIDs)
		}
		tree.samplingIDRange[nodeID] = rng
	}

	nodeID := trieRootID
	for {
		if _, labeled := tree.samplingIDRange[nodeID]; labeled {
			break
		}
		node := tree.trie.node(nodeID)
		if node == nil || len(node.transitions) != 1 {
			break
		}
		only := node.transitions[0]
		tree.prefilledTokenIDs = append(tree.prefilledTokenIDs, automaton.Order()[only.id])
		nodeID = only.node
	}

	node := tree.trie.node(nodeID)
	if node == nil {
		return nil, nil
	}
	rng, labeled := tree.samplingIDRange[nodeID]
	if len(node.transitions) == 0 && !labeled {
		return nil, nil
	}

	nextStates := append([]trans(nil), node.transitions...)
	sparseChoices := make([]vocab.SortedTokenID, len(nextStates))
	for i, t := range nextStates {
		sparseChoices[i] = t.id
	}

	var samplingRangePtr *vocab.SortedTokenRange
	if labeled {
		r := rng
		samplingRangePtr = &r
	}

	tree.stack = append(tree.stack, searchState{
		logProb:         0.0,
		samplingIDRange: samplingRangePtr,
		nextStates:      nextStates,
	})

	req := &InferRequest{
		Backtrace:       0,
		Feed:            nil,
		SamplingIDRange: samplingRangePtr,
		SparseChoices:   sparseChoices,
	}

	return tree, req
}

// PrefilledTokenIDs returns the committed, unambiguous prefix stripped before
// the search began.
func (t *SearchTree) PrefilledTokenIDs() []vocab.TokenID {
	return t.prefilledTokenIDs
}

// MaxNumTokens returns the length of the longest inserted re-tokenization, a
// capacity hint for callers sizing their own buffers.
func (t *SearchTree) MaxNumTokens() int {
	return t.maxNumTokens
}

// GetBestChoice returns the best complete branch found so far, or
// ErrNoBestChoice if no branch has ever been accepted.
func (t *SearchTree) GetBestChoice() (BestChoice, error) {
	if !t.bestChoice.Valid() {
		return BestChoice{}, ErrNoBestChoice
	}
	return t.bestChoice, nil
}

// Feed advances the session with the oracle's response to the most recent
// InferRequest, returning the next request, or (nil, nil) once the session
// has terminated.
func (t *SearchTree) Feed(res InferResponse) (*InferRequest, error) {
	if len(t.stack) == 0 {
		return nil, ErrEmptyStack
	}
	top := &t.stack[len(t.stack)-1]

	if top.samplingIDRange != nil && !top.consumedSampling {
		top.consumedSampling = true
		if res.Sampled == nil {
			return nil, ErrNoSampledResult
		}
		lower, upper := top.samplingIDRange.Lower, top.samplingIDRange.Upper
		if res.Sampled.TokenID < lower || res.Sampled.TokenID >= upper {
			return nil, &Error{
				Kind:    KindInvalidSampledResult,
				Sampled: res.Sampled,
				Lower:   uint32(lower),
				Upper:   uint32(upper),
			}
		}

		sampledOrig := t.automaton.Order()[res.Sampled.TokenID]
		t.currentNewTokenIDs = append(t.currentNewTokenIDs, sampledOrig)
		t.bestChoice.Update(t.currentNewTokenIDs, t.currentAccumLogProb+res.Sampled.LogProb)
		t.currentNewTokenIDs = t.currentNewTokenIDs[:len(t.currentNewTokenIDs)-1]
	}

	if len(top.nextChoices) != len(top.nextStates) {
		expected := make([]uint32, len(top.nextStates))
		for i, s := range top.nextStates {
			expected[i] = uint32(s.id)
		}
		mismatch := len(res.SparseChoices) != len(expected)
		if !mismatch {
			for i, id := range expected {
				if res.SparseChoices[i].TokenID != vocab.SortedTokenID(id) {
					mismatch = true
					break
				}
			}
		}
		if mismatch {
			return nil, &Error{
				Kind:     KindInvalidSparseChoices,
				Choices:  res.SparseChoices,
				Expected: expected,
			}
		}
		top.nextChoices = res.SparseChoices
	}

	backtrace := 0
	for len(t.stack) > 0 && len(t.stack[len(t.stack)-1].nextChoices) == 0 {
		popped := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.currentAccumLogProb -= popped.logProb
		if n := len(t.currentNewTokenIDs); n > 0 {
			t.currentNewTokenIDs = t.currentNewTokenIDs[:n-1]
		}
		backtrace++
	}

	if len(t.stack) == 0 {
		return nil, nil
	}

	newTop := &t.stack[len(t.stack)-1]
	prediction := newTop.nextChoices[len(newTop.nextChoices)-1]
	newTop.nextChoices = newTop.nextChoices[:len(newTop.nextChoices)-1]
	chosen := newTop.nextStates[len(newTop.nextStates)-1]
	newTop.nextStates = newTop.nextStates[:len(newTop.nextStates)-1]

	node := t.trie.node(chosen.node)
	rng, labeled := t.samplingIDRange[chosen.node]
	var samplingRangePtr *vocab.SortedTokenRange
	if labeled {
		r := rng
		samplingRangePtr = &r
	}

	nextStates := append([]trans(nil), node.transitions...)
	sparseChoices := make([]vocab.SortedTokenID, len(nextStates))
	for i, s := range nextStates {
		sparseChoices[i] = s.id
	}

	t.stack = append(t.stack, searchState{
		logProb:         prediction.LogProb,
		samplingIDRange: samplingRangePtr,
		nextStates:      nextStates,
	})

	origID := t.automaton.Order()[chosen.id]
	t.currentNewTokenIDs = append(t.currentNewTokenIDs, origID)
	t.currentAccumLogProb += prediction.LogProb

	return &InferRequest{
		Backtrace:       backtrace,
		Feed:            &origID,
		SamplingIDRange: samplingRangePtr,
		SparseChoices:   sparseChoices,
	}, nil
}

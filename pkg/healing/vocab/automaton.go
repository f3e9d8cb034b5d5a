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

package vocab

// Automaton is the Vocabulary Prefix Automaton: a suffix automaton of
// reversed token bytes, labeled with sorted-vocabulary rank ranges, that
// answers prefix-range queries against arbitrary query strings or token
// sequences. It is built once from a vocabulary and is safe for concurrent
// read-only use for its entire lifetime.
type Automaton struct {
	vocab [][]byte
	order []TokenID
	rank  []SortedTokenID
	sam   *suffixAutomaton
	label []*SortedTokenRange
}

// New builds a VocabPrefixAutomaton from vocab, the raw bytes of every token
// indexed by TokenID. Two tokens with identical bytes are legal; they
// collapse onto the same trie node and the same GSAM state.
func New(vocab [][]byte) (*Automaton, error) {
	sorted := sortVocab(vocab)

	reversed := make([][]byte, len(vocab))
	for i, tok := range vocab {
		reversed[i] = reverseBytes(tok)
	}
	sam, finalStates := buildReversedSAM(reversed)
	label := labelRankRanges(sam, finalStates, sorted.rankRanges)

	return &Automaton{
		vocab: vocab,
		order: sorted.order,
		rank:  sorted.rank,
		sam:   sam,
		label: label,
	}, nil
}

// Vocab returns the raw token bytes, indexed by TokenID. Callers must not
// mutate the returned slices.
func (a *Automaton) Vocab() [][]byte { return a.vocab }

// Order returns, for the k-th sorted token, its original TokenID.
func (a *Automaton) Order() []TokenID { return a.order }

// Rank returns, for the i-th original token, its SortedTokenID.
func (a *Automaton) Rank() []SortedTokenID { return a.rank }

// Get returns the bytes of token id, or ok=false if id is out of range or
// names an empty token (empty tokens never denote a real continuation).
func (a *Automaton) Get(id TokenID) (bytes []byte, ok bool) {
	if int(id) >= len(a.vocab) {
		return nil, false
	}
	tok := a.vocab[id]
	if len(tok) == 0 {
		return nil, false
	}
	return tok, true
}

// ParseChars walks the GSAM by consuming the bytes of text in reverse
// byte order starting from the end of text, stopping once it reaches a
// position before startFrom or the walk falls off the automaton (no
// transition for the next byte). At every position whose reached state
// carries a label, it records that position's byte offset together with
// the label. The returned slice is in decreasing Pos order.
func (a *Automaton) ParseChars(text string, startFrom int) []PositionRange {
	var res []PositionRange

	state := samRootID
	for pos := len(text) - 1; pos >= startFrom; pos-- {
		state = a.sam.goTo(state, text[pos])
		if state < 0 {
			break
		}
		if label := a.label[state]; label != nil {
			res = append(res, PositionRange{Pos: pos, Range: *label})
		}
	}

	return res
}

// ParseRevTokens walks the GSAM by feeding the bytes of each token in
// revTokenIDs, each token's own bytes consumed in reverse, in the order the
// ids are given (callers pass the most-recently-decided token first to match
// the reverse text walk ParseChars performs). It stops at the first token id
// that names an empty or out-of-range token, or once the walk falls off the
// automaton. At every byte step whose reached state carries a label, it
// records the cumulative count of (already-reversed) bytes consumed so far
// together with the label.
func (a *Automaton) ParseRevTokens(revTokenIDs []TokenID) []TokenMatch {
	var res []TokenMatch

	state := samRootID
	consumed := 0
	for _, id := range revTokenIDs {
		tok, ok := a.Get(id)
		if !ok {
			break
		}
		stopped := false
		for i := len(tok) - 1; i >= 0; i-- {
			state = a.sam.goTo(state, tok[i])
			consumed++
			if state < 0 {
				stopped = true
				break
			}
			if label := a.label[state]; label != nil {
				res = append(res, TokenMatch{BytesConsumed: consumed, Range: *label})
			}
		}
		if stopped {
			break
		}
	}

	return res
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

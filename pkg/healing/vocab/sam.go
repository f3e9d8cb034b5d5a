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

import "sort"

// samRootID is the fixed node id of the suffix automaton's root state.
const samRootID = 0

// edge is one byte-keyed transition, stored sorted by B within a state so
// that goto can binary-search it in O(log Σ).
type edge struct {
	b  byte
	to int
}

// samState is one arena-indexed state of the general suffix automaton.
type samState struct {
	length int
	link   int
	trans  []edge // sorted by b; built once, read-only after construction
}

// suffixAutomaton is a general suffix automaton (GSAM) built over a set of
// strings at once (here, the reversed bytes of every vocabulary token), using
// an arena of integer-indexed states rather than pointer-linked nodes so the
// suffix-link back-edges never alias a structure under mutation.
type suffixAutomaton struct {
	states []samState
}

// buildReversedSAM builds a GSAM over the reversed bytes of every token in
// revTokens (the caller passes tokens already reversed) by inserting each one
// into a trie and converting that trie to a GSAM in a single BFS pass,
// following the standard "general SAM via trie" construction: every trie edge
// is fed through the same extend step used by Blumer's online construction,
// visited in increasing trie depth so a state's length always matches its
// depth by the time its children are processed.
//
// It returns the automaton together with, for each input token, the state
// reached by fully consuming that token's (already-reversed) bytes.
func buildReversedSAM(revTokens [][]byte) (*suffixAutomaton, []int) {
	trie := newByteTrieBuilder()
	terminal := make([]int, len(revTokens))
	for i, tok := range revTokens {
		terminal[i] = trie.insert(tok)
	}

	b := newAutomatonBuilder()
	trieToSAM := make([]int, len(trie.nodes))
	trieToSAM[0] = samRootID

	queue := []int{0}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		su := trieToSAM[u]

		keys := make([]byte, 0, len(trie.nodes[u].children))
		for ch := range trie.nodes[u].children {
			keys = append(keys, ch)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, ch := range keys {
			v := trie.nodes[u].children[ch]
			sv := b.insertTrie(su, ch)
			trieToSAM[v] = sv
			queue = append(queue, v)
		}
	}

	sam := &suffixAutomaton{states: b.finalize()}

	finalStates := make([]int, len(revTokens))
	for i, nodeID := range terminal {
		finalStates[i] = trieToSAM[nodeID]
	}

	return sam, finalStates
}

// numStates returns the number of arena-allocated states, including the root.
func (a *suffixAutomaton) numStates() int {
	return len(a.states)
}

// suffixParent returns the suffix-link parent of id, or -1 for the root.
func (a *suffixAutomaton) suffixParent(id int) int {
	return a.states[id].link
}

// topoDesc returns every non-root state id sorted by decreasing length, i.e.
// leaves of the suffix-link tree first. Because a state's suffix-link parent
// always has a strictly smaller length, this order is a valid bottom-up
// topological order of the suffix-link tree.
func (a *suffixAutomaton) topoDesc() []int {
	ids := make([]int, 0, len(a.states)-1)
	for id := 1; id < len(a.states); id++ {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return a.states[ids[i]].length > a.states[ids[j]].length })
	return ids
}

// goTo follows the transition labeled b from state id, returning -1 (nil) if
// no such transition exists.
func (a *suffixAutomaton) goTo(id int, b byte) int {
	trans := a.states[id].trans
	lo, hi := 0, len(trans)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case trans[mid].b == b:
			return trans[mid].to
		case trans[mid].b < b:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// byteTrieNode is a scratch trie node used only while building the GSAM.
type byteTrieNode struct {
	children map[byte]int
}

// byteTrieBuilder accumulates the trie of reversed token bytes that seeds the
// GSAM construction's BFS order.
type byteTrieBuilder struct {
	nodes []*byteTrieNode
}

func newByteTrieBuilder() *byteTrieBuilder {
	return &byteTrieBuilder{nodes: []*byteTrieNode{{children: make(map[byte]int)}}}
}

func (t *byteTrieBuilder) insert(bytes []byte) int {
	cur := 0
	for _, bb := range bytes {
		next, ok := t.nodes[cur].children[bb]
		if !ok {
			next = len(t.nodes)
			t.nodes = append(t.nodes, &byteTrieNode{children: make(map[byte]int)})
			t.nodes[cur].children[bb] = next
		}
		cur = next
	}
	return cur
}

// automatonBuilder holds the SAM arena in its construction-time
// (map-transition) form; finalize converts every state's transitions into
// the sorted-array form suffixAutomaton queries against.
type automatonBuilder struct {
	length []int
	link   []int
	trans  []map[byte]int
}

func newAutomatonBuilder() *automatonBuilder {
	return &automatonBuilder{
		length: []int{0},
		link:   []int{-1},
		trans:  []map[byte]int{make(map[byte]int)},
	}
}

func (b *automatonBuilder) newNode(length, link int) int {
	id := len(b.length)
	b.length = append(b.length, length)
	b.link = append(b.link, link)
	b.trans = append(b.trans, make(map[byte]int))
	return id
}

func (b *automatonBuilder) clone(id, length int) int {
	newID := b.newNode(length, b.link[id])
	for ch, to := range b.trans[id] {
		b.trans[newID][ch] = to
	}
	return newID
}

// insertTrie is the general-SAM-from-trie "extend" step: it either reuses an
// existing SAM state for the trie edge (cur, b), clones one if the existing
// target's length doesn't match, or builds a fresh state via the same
// suffix-link-chasing loop as Blumer's online construction.
func (b *automatonBuilder) insertTrie(cur int, bb byte) int {
	if to, ok := b.trans[cur][bb]; ok {
		if b.length[to] == b.length[cur]+1 {
			return to
		}
		clone := b.clone(to, b.length[cur]+1)
		b.link[to] = clone
		for p := cur; p != -1 && b.trans[p][bb] == to; p = b.link[p] {
			b.trans[p][bb] = clone
		}
		return clone
	}

	np := b.newNode(b.length[cur]+1, -1)
	p := cur
	for ; p != -1; p = b.link[p] {
		if _, ok := b.trans[p][bb]; ok {
			break
		}
		b.trans[p][bb] = np
	}

	switch {
	case p == -1:
		b.link[np] = samRootID
	case b.length[b.trans[p][bb]] == b.length[p]+1:
		b.link[np] = b.trans[p][bb]
	default:
		q := b.trans[p][bb]
		clone := b.clone(q, b.length[p]+1)
		b.link[q] = clone
		b.link[np] = clone
		for pp := p; pp != -1 && b.trans[pp][bb] == q; pp = b.link[pp] {
			b.trans[pp][bb] = clone
		}
	}
	return np
}

// finalize converts every state's map-based transitions into a byte-sorted
// slice, ready for binary-search lookups, and returns the arena.
func (b *automatonBuilder) finalize() []samState {
	states := make([]samState, len(b.length))
	for id := range states {
		edges := make([]edge, 0, len(b.trans[id]))
		for ch, to := range b.trans[id] {
			edges = append(edges, edge{b: ch, to: to})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].b < edges[j].b })
		states[id] = samState{length: b.length[id], link: b.link[id], trans: edges}
	}
	return states
}

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

// forwardTrieNode is a scratch trie node used only during sortVocab; it does
// not survive construction of the Automaton.
type forwardTrieNode struct {
	children   map[byte]int
	tokenCount SortedTokenID
	lower      SortedTokenID
	upper      SortedTokenID
}

// sortResult is the output of sortVocab: the permutations needed to go
// between original TokenID and SortedTokenID, plus the per-token rank range
// of byte-identical tokens.
type sortResult struct {
	rankRanges []SortedTokenRange
	order      []TokenID
	rank       []SortedTokenID
}

// sortVocab inserts every token's bytes into a trie, DFS-numbers the trie in
// byte-sorted transition order, and derives order/rank/rankRanges from the
// resulting push/pop counters. Byte-identical tokens land on the same trie
// node and therefore receive the same, contiguous rank range.
func sortVocab(tokens [][]byte) sortResult {
	nodes := []*forwardTrieNode{{children: make(map[byte]int)}}
	terminal := make([]int, len(tokens))

	for i, tok := range tokens {
		cur := 0
		for _, b := range tok {
			next, ok := nodes[cur].children[b]
			if !ok {
				next = len(nodes)
				nodes = append(nodes, &forwardTrieNode{children: make(map[byte]int)})
				nodes[cur].children[b] = next
			}
			cur = next
		}
		nodes[cur].tokenCount++
		terminal[i] = cur
	}

	var counter SortedTokenID
	var dfs func(id int)
	dfs = func(id int) {
		node := nodes[id]
		node.lower = counter
		counter += node.tokenCount

		keys := make([]byte, 0, len(node.children))
		for b := range node.children {
			keys = append(keys, b)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, b := range keys {
			dfs(node.children[b])
		}

		node.upper = counter
	}
	dfs(0)

	rankRanges := make([]SortedTokenRange, len(tokens))
	for i, nodeID := range terminal {
		n := nodes[nodeID]
		rankRanges[i] = SortedTokenRange{Lower: n.lower, Upper: n.upper}
	}

	order := make([]TokenID, len(tokens))
	for i := range order {
		order[i] = TokenID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return rankRanges[order[i]].Lower < rankRanges[order[j]].Lower
	})

	rank := make([]SortedTokenID, len(tokens))
	for k, id := range order {
		rank[id] = SortedTokenID(k)
	}

	return sortResult{rankRanges: rankRanges, order: order, rank: rank}
}

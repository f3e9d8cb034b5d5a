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

// labelRankRanges stamps the terminal state reached by each token's reversed
// bytes with that token's sorted rank range, then propagates ranges upward
// along the suffix-link tree in descending-length (leaves-first) order,
// widening each parent's range to the envelope of its children's ranges.
//
// Byte-identical tokens land on the same terminal state and carry identical
// ranges, so repeated stamping of one state is idempotent.
func labelRankRanges(sam *suffixAutomaton, finalStates []int, rankRanges []SortedTokenRange) []*SortedTokenRange {
	labels := make([]*SortedTokenRange, sam.numStates())

	for i, state := range finalStates {
		labels[state] = &rankRanges[i]
	}

	for _, id := range sam.topoDesc() {
		if labels[id] == nil {
			continue
		}
		parent := sam.suffixParent(id)
		if parent < 0 {
			continue
		}
		if labels[parent] == nil {
			widened := *labels[id]
			labels[parent] = &widened
		} else {
			widened := labels[parent].union(*labels[id])
			labels[parent] = &widened
		}
	}

	return labels
}

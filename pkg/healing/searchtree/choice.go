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
	"math"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

// BestChoice is a monotonic "keep argmax log-prob" record over complete
// branches explored by a session.
type BestChoice struct {
	ExtraTokenIDs []vocab.TokenID
	AccumLogProb  float64
}

// NewBestChoice returns a BestChoice with no accepted branch yet.
func NewBestChoice() BestChoice {
	return BestChoice{AccumLogProb: math.Inf(-1)}
}

// Update replaces the record iff logProb strictly improves on the current
// best, copying tokenIDs so later mutation of the caller's slice is safe.
func (b *BestChoice) Update(tokenIDs []vocab.TokenID, logProb float64) {
	if logProb <= b.AccumLogProb {
		return
	}
	b.AccumLogProb = logProb
	b.ExtraTokenIDs = append([]vocab.TokenID(nil), tokenIDs...)
}

// Valid reports whether any branch has ever been accepted.
func (b *BestChoice) Valid() bool {
	return b.AccumLogProb > math.Inf(-1)
}

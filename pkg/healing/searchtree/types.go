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

// Package searchtree implements the Interactive Search Tree: a trie of
// candidate re-tokenizations of a prompt's tail, driven by a DFS stack and a
// request/response protocol with an external inference oracle, that tracks
// the highest-log-prob extra-token sequence reproducing the prompt.
package searchtree

import (
	"context"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

// Prediction is one oracle-scored candidate token, keyed by its sorted id.
type Prediction struct {
	TokenID vocab.SortedTokenID
	LogProb float64
}

// InferRequest describes the next decision point the oracle must answer.
type InferRequest struct {
	// Backtrace is the number of positions the oracle should undo from its
	// own token cache before processing Feed, counting only backtrack pops.
	Backtrace int
	// Feed is the original TokenID just committed to the search path, or nil
	// for the initial request of a session.
	Feed *vocab.TokenID
	// SamplingIDRange, if set, is the range the oracle must sample a free
	// continuation token from at the current frame.
	SamplingIDRange *vocab.SortedTokenRange
	// SparseChoices are the transition keys at the current frame, in
	// enumeration order; the response must score exactly these, in order.
	SparseChoices []vocab.SortedTokenID
}

// InferResponse is the oracle's answer to one InferRequest.
type InferResponse struct {
	// Sampled is required iff the request's SamplingIDRange was set.
	Sampled *Prediction
	// SparseChoices must mirror the request's SparseChoices: same length,
	// same token ids, same order.
	SparseChoices []Prediction
}

// PositionEncoding pairs a text byte offset with the token ids the tokenizer
// produced for text[:pos].
type PositionEncoding struct {
	Pos int
	IDs []vocab.TokenID
}

// EncodeFunc tokenizes text[:p] for every p in positions (ascending, unique)
// and returns one PositionEncoding per position present in the input; extra
// positions are silently ignored, missing ones silently skipped.
type EncodeFunc func(positions []int) ([]PositionEncoding, error)

// AsyncEncodeFunc is the context-aware, concurrency-friendly counterpart of
// EncodeFunc, used by callers that want to fan positions out in parallel.
type AsyncEncodeFunc func(ctx context.Context, positions []int) ([]PositionEncoding, error)

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
	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

// InstrumentedSession wraps a *searchtree.SearchTree and records metrics on
// every Feed call, mirroring the teacher's instrumentedIndex decorator over
// kvblock.Index.
type InstrumentedSession struct {
	tree      *searchtree.SearchTree
	collector *Collector
}

// NewInstrumentedSession wraps tree, recording one "session started" event.
func NewInstrumentedSession(tree *searchtree.SearchTree, collector *Collector) *InstrumentedSession {
	collector.sessionsStarted.Inc()
	return &InstrumentedSession{tree: tree, collector: collector}
}

// Feed delegates to the wrapped tree, recording the call count, the
// backtrack depth of the resulting request, and (on termination) the final
// best-choice log-probability.
func (s *InstrumentedSession) Feed(res searchtree.InferResponse) (*searchtree.InferRequest, error) {
	s.collector.feedCalls.Inc()

	req, err := s.tree.Feed(res)
	if err != nil {
		return nil, err
	}

	if req != nil {
		s.collector.backtrackDepth.Observe(float64(req.Backtrace))
		return req, nil
	}

	s.collector.sessionsTerminated.Inc()
	if bc, bcErr := s.tree.GetBestChoice(); bcErr == nil {
		s.collector.finalLogProb.Observe(bc.AccumLogProb)
	}
	return nil, nil
}

// PrefilledTokenIDs delegates to the wrapped tree.
func (s *InstrumentedSession) PrefilledTokenIDs() []vocab.TokenID {
	return s.tree.PrefilledTokenIDs()
}

// MaxNumTokens delegates to the wrapped tree.
func (s *InstrumentedSession) MaxNumTokens() int {
	return s.tree.MaxNumTokens()
}

// GetBestChoice delegates to the wrapped tree.
func (s *InstrumentedSession) GetBestChoice() (searchtree.BestChoice, error) {
	return s.tree.GetBestChoice()
}

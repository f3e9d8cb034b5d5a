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

package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

func sampleVocab() [][]byte {
	return [][]byte{[]byte("bb"), []byte("ca"), []byte("ab"), []byte("c"), []byte("aa")}
}

func TestAutomatonCacheGetOrBuildMissThenHit(t *testing.T) {
	c, err := NewAutomatonCache(nil)
	require.NoError(t, err)

	voc := sampleVocab()
	a1, err := c.GetOrBuild(context.Background(), voc)
	require.NoError(t, err)
	require.NotNil(t, a1)

	a2, err := c.GetOrBuild(context.Background(), voc)
	require.NoError(t, err)
	assert.Same(t, a1, a2, "second call must return the exact cached instance")
}

func TestAutomatonCacheDistinctVocabsDistinctKeys(t *testing.T) {
	c, err := NewAutomatonCache(nil)
	require.NoError(t, err)

	a1, err := c.GetOrBuild(context.Background(), [][]byte{[]byte("ab"), []byte("c")})
	require.NoError(t, err)
	a2, err := c.GetOrBuild(context.Background(), [][]byte{[]byte("a"), []byte("bc")})
	require.NoError(t, err)

	assert.NotSame(t, a1, a2)
}

func TestAutomatonCacheConcurrentBuildsCollapse(t *testing.T) {
	c, err := NewAutomatonCache(nil)
	require.NoError(t, err)

	voc := sampleVocab()
	const n = 16
	results := make([]*vocab.Automaton, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrBuild(context.Background(), voc)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i], "all callers must observe the same built automaton")
	}
}

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

package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

func TestRedisTransportRoundTrip(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	transport := NewRedisTransportWithClient(client, "test-session", 5*time.Second)

	// fake oracle: pops the request, echoes the sampling range's lower bound
	// back as the sampled token id.
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, perr := client.BLPop(context.Background(), 5*time.Second, "test-session:req").Result()
		require.NoError(t, perr)
		require.Len(t, result, 2)

		req, derr := decodeRequest([]byte(result[1]))
		require.NoError(t, derr)
		require.NotNil(t, req.SamplingIDRange)

		resp := searchtree.InferResponse{
			Sampled: &searchtree.Prediction{TokenID: req.SamplingIDRange.Lower, LogProb: -0.5},
		}
		payload, eerr := encodeResponse(resp)
		require.NoError(t, eerr)
		require.NoError(t, client.RPush(context.Background(), "test-session:resp", payload).Err())
	}()

	rng := vocab.SortedTokenRange{Lower: 3, Upper: 9}
	req := searchtree.InferRequest{SamplingIDRange: &rng}

	res, err := transport.RoundTrip(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Sampled)
	assert.Equal(t, vocab.SortedTokenID(3), res.Sampled.TokenID)
	assert.InDelta(t, -0.5, res.Sampled.LogProb, 1e-9)

	<-done
}

func TestRedisTransportTimeout(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	transport := NewRedisTransportWithClient(client, "idle-session", 100*time.Millisecond)

	_, err = transport.RoundTrip(context.Background(), searchtree.InferRequest{})
	require.Error(t, err)
}

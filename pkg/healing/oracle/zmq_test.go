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

	zmq "github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
)

// TestZMQTransportRoundTrip requires libzmq to be available at test time; it
// binds an in-process REP socket acting as a fake oracle and connects a real
// ZMQTransport to it over an inproc:// endpoint.
func TestZMQTransportRoundTrip(t *testing.T) {
	const endpoint = "inproc://token-healing-oracle-test"

	rep, err := zmq.NewSocket(zmq.REP)
	require.NoError(t, err)
	defer rep.Close()
	require.NoError(t, rep.Bind(endpoint))

	done := make(chan struct{})
	go func() {
		defer close(done)
		raw, rerr := rep.RecvBytes(0)
		require.NoError(t, rerr)

		req, derr := decodeRequest(raw)
		require.NoError(t, derr)
		require.NotNil(t, req.SamplingIDRange)

		resp := searchtree.InferResponse{
			Sampled: &searchtree.Prediction{TokenID: req.SamplingIDRange.Upper - 1, LogProb: -0.2},
		}
		payload, eerr := encodeResponse(resp)
		require.NoError(t, eerr)
		_, serr := rep.SendBytes(payload, 0)
		require.NoError(t, serr)
	}()

	transport, err := NewZMQTransport(&ZMQTransportConfig{Endpoint: endpoint})
	require.NoError(t, err)
	defer transport.Close()

	rng := vocab.SortedTokenRange{Lower: 0, Upper: 4}
	res, err := transport.RoundTrip(context.Background(), searchtree.InferRequest{SamplingIDRange: &rng})
	require.NoError(t, err)
	require.NotNil(t, res.Sampled)
	assert.Equal(t, vocab.SortedTokenID(3), res.Sampled.TokenID)

	<-done
}

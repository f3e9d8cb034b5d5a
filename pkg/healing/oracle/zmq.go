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
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"
	"k8s.io/klog/v2"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/utils/logging"
)

// ZMQTransportConfig holds the configuration for ZMQTransport.
type ZMQTransportConfig struct {
	// Endpoint is the ZMQ address to connect to (e.g., "tcp://oracle:5560").
	Endpoint string `json:"endpoint"`
}

// DefaultZMQTransportConfig returns a default ZMQTransportConfig.
func DefaultZMQTransportConfig() *ZMQTransportConfig {
	return &ZMQTransportConfig{
		Endpoint: "tcp://127.0.0.1:5560",
	}
}

// ZMQTransport is a ZeroMQ REQ socket that sends one encoded InferRequest and
// blocks for one encoded InferResponse, mirroring the strict request/response
// ordering the driver expects. A REQ socket permits exactly one outstanding
// request at a time, so RoundTrip serializes callers with a mutex.
type ZMQTransport struct {
	mu     sync.Mutex
	socket *zmq.Socket
}

// NewZMQTransport dials a REQ socket to cfg.Endpoint.
func NewZMQTransport(cfg *ZMQTransportConfig) (*ZMQTransport, error) {
	if cfg == nil {
		cfg = DefaultZMQTransportConfig()
	}

	socket, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq REQ socket: %w", err)
	}
	if err := socket.Connect(cfg.Endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to connect zmq REQ socket to %s: %w", cfg.Endpoint, err)
	}

	return &ZMQTransport{socket: socket}, nil
}

var _ Transport = &ZMQTransport{}

// RoundTrip sends req and blocks for the matching response. ctx cancellation
// is not honored mid-flight: libzmq's blocking Send/Recv calls do not accept
// a context, matching the teacher's zmq_subscriber's own use of poller
// timeouts rather than context-aware sockets for the actual I/O call.
func (t *ZMQTransport) RoundTrip(ctx context.Context, req searchtree.InferRequest) (searchtree.InferResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := klog.FromContext(ctx).V(logging.TRACE).WithName("oracle.ZMQTransport.RoundTrip")

	payload, err := encodeRequest(req)
	if err != nil {
		return searchtree.InferResponse{}, err
	}

	if _, err := t.socket.SendBytes(payload, 0); err != nil {
		return searchtree.InferResponse{}, fmt.Errorf("failed to send infer request over zmq: %w", err)
	}
	logger.Info("sent infer request", "backtrace", req.Backtrace)

	respBytes, err := t.socket.RecvBytes(0)
	if err != nil {
		return searchtree.InferResponse{}, fmt.Errorf("failed to receive infer response over zmq: %w", err)
	}

	res, err := decodeResponse(respBytes)
	if err != nil {
		return searchtree.InferResponse{}, err
	}
	return res, nil
}

// Close releases the underlying socket.
func (t *ZMQTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.socket.Close()
}

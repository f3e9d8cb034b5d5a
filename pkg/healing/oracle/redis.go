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
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
)

// RedisTransportConfig holds the configuration for RedisTransport.
type RedisTransportConfig struct {
	// Address is a redis:// connection string.
	Address string `json:"address,omitempty"`
	// Session names the request/response list pair: "<session>:req" and
	// "<session>:resp".
	Session string `json:"session,omitempty"`
	// BlockTimeout bounds each BLPOP wait for a response.
	BlockTimeout time.Duration `json:"blockTimeout,omitempty"`
}

// DefaultRedisTransportConfig returns a default RedisTransportConfig.
func DefaultRedisTransportConfig() *RedisTransportConfig {
	return &RedisTransportConfig{
		Address:      "redis://127.0.0.1:6379",
		Session:      "token-healing",
		BlockTimeout: 30 * time.Second,
	}
}

// RedisTransport pushes the encoded request onto a Redis list
// (RPUSH <session>:req) and blocks on BLPOP <session>:resp for the encoded
// response, for deployments that front the oracle with a queue rather than a
// socket.
type RedisTransport struct {
	client       *redis.Client
	reqKey       string
	respKey      string
	blockTimeout time.Duration
}

// NewRedisTransport connects to cfg.Address and returns a RedisTransport
// bound to cfg.Session's request/response list pair.
func NewRedisTransport(cfg *RedisTransportConfig) (*RedisTransport, error) {
	if cfg == nil {
		cfg = DefaultRedisTransportConfig()
	}

	address := cfg.Address
	if !strings.HasPrefix(address, "redis://") &&
		!strings.HasPrefix(address, "rediss://") &&
		!strings.HasPrefix(address, "unix://") {
		address = "redis://" + address
	}

	opt, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis address: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisTransportWithClient(client, cfg.Session, cfg.BlockTimeout), nil
}

// NewRedisTransportWithClient wires a RedisTransport around an already
// constructed client, for callers (and tests) that manage their own
// connection (e.g. against miniredis).
func NewRedisTransportWithClient(client *redis.Client, session string, blockTimeout time.Duration) *RedisTransport {
	return &RedisTransport{
		client:       client,
		reqKey:       session + ":req",
		respKey:      session + ":resp",
		blockTimeout: blockTimeout,
	}
}

var _ Transport = &RedisTransport{}

// RoundTrip pushes req onto the request list and blocks on the response
// list for up to BlockTimeout.
func (t *RedisTransport) RoundTrip(ctx context.Context, req searchtree.InferRequest) (searchtree.InferResponse, error) {
	payload, err := encodeRequest(req)
	if err != nil {
		return searchtree.InferResponse{}, err
	}

	if err := t.client.RPush(ctx, t.reqKey, payload).Err(); err != nil {
		return searchtree.InferResponse{}, fmt.Errorf("failed to push infer request to redis: %w", err)
	}

	result, err := t.client.BLPop(ctx, t.blockTimeout, t.respKey).Result()
	if err != nil {
		return searchtree.InferResponse{}, fmt.Errorf("failed to receive infer response from redis: %w", err)
	}
	if len(result) != 2 {
		return searchtree.InferResponse{}, fmt.Errorf("unexpected BLPOP result shape: %d elements", len(result))
	}

	res, err := decodeResponse([]byte(result[1]))
	if err != nil {
		return searchtree.InferResponse{}, err
	}
	return res, nil
}

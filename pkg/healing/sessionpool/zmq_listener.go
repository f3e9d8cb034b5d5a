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

package sessionpool

import (
	"context"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	zmq "github.com/pebbe/zmq4"
	"k8s.io/klog/v2"

	"github.com/modeltc/token-healing-go/pkg/utils/logging"
)

const (
	retryInterval = 5 * time.Second
	pollTimeout   = 250 * time.Millisecond
)

// zmqListener connects to a ZMQ PUB endpoint as a SUB and forwards decoded
// HealBatch messages into a Pool.
type zmqListener struct {
	pool        *Pool
	endpoint    string
	topicFilter string
}

func newZMQListener(pool *Pool, endpoint, topicFilter string) *zmqListener {
	return &zmqListener{pool: pool, endpoint: endpoint, topicFilter: topicFilter}
}

// Start connects to endpoint, subscribes to topicFilter, and forwards every
// decoded HealBatch into the pool until ctx is cancelled, reconnecting after
// retryInterval on any socket error.
func (z *zmqListener) Start(ctx context.Context) {
	logger := klog.FromContext(ctx).WithName("sessionpool.zmqListener")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down zmq listener")
			return
		default:
			z.run(ctx)
			select {
			case <-time.After(retryInterval):
				logger.Info("retrying zmq listener")
			case <-ctx.Done():
				logger.Info("shutting down zmq listener")
				return
			}
		}
	}
}

// run connects one SUB socket and drains it until an error or ctx cancellation.
// Topics are expected in "heal@<clientID>@<modelName>" form.
func (z *zmqListener) run(ctx context.Context) {
	logger := klog.FromContext(ctx).WithName("sessionpool.zmqListener")

	sub, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		logger.Error(err, "failed to create SUB socket")
		return
	}
	defer sub.Close()

	if err := sub.Connect(z.endpoint); err != nil {
		logger.Error(err, "failed to connect SUB socket", "endpoint", z.endpoint)
		return
	}
	if err := sub.SetSubscribe(z.topicFilter); err != nil {
		logger.Error(err, "failed to subscribe", "topic", z.topicFilter)
		return
	}
	logger.Info("connected zmq listener", "endpoint", z.endpoint, "topic", z.topicFilter)

	poller := zmq.NewPoller()
	poller.Add(sub, zmq.POLLIN)
	debugLogger := logger.V(logging.DEBUG)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		polled, err := poller.Poll(pollTimeout)
		if err != nil {
			debugLogger.Error(err, "failed to poll zmq listener")
			return
		}
		if len(polled) == 0 {
			continue
		}

		parts, err := sub.RecvMessageBytes(0)
		if err != nil {
			debugLogger.Error(err, "failed to receive message")
			return
		}
		if len(parts) != 2 {
			debugLogger.Error(nil, "unexpected frame count", "frames", len(parts))
			continue
		}

		topic := string(parts[0])
		clientID, modelName, ok := parseTopic(topic)
		if !ok {
			debugLogger.Error(nil, "failed to parse topic, expected heal@<clientID>@<modelName>", "topic", topic)
			continue
		}

		var batch HealBatch
		if err := msgpack.Unmarshal(parts[1], &batch); err != nil {
			debugLogger.Error(err, "failed to unmarshal heal batch, dropping message")
			continue
		}

		for _, req := range batch.Requests {
			z.pool.addTask(clientID, modelName, req)
		}
	}
}

func parseTopic(topic string) (clientID, modelName string, ok bool) {
	parts := strings.Split(topic, "@")
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

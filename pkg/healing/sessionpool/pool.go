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

// Package sessionpool runs many token-healing sessions concurrently, driven
// by batches of HealRequest arriving over a ZeroMQ PUB/SUB feed rather than
// one synchronous caller at a time. Requests for the same client are always
// processed by the same worker, so per-client ordering is preserved the same
// way the teacher's kvevents.Pool shards by pod identifier.
package sessionpool

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"

	"github.com/modeltc/token-healing-go/pkg/healing"
	"github.com/modeltc/token-healing-go/pkg/healing/oracle"
	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/utils/logging"
)

// Config holds the configuration for the session pool.
type Config struct {
	// ZMQEndpoint is the ZMQ PUB address to subscribe to (e.g., "tcp://gateway:5557").
	ZMQEndpoint string `json:"zmqEndpoint"`
	// TopicFilter is the ZMQ subscription filter (e.g., "heal@").
	TopicFilter string `json:"topicFilter"`
	// Concurrency is the number of parallel workers, and the number of
	// queue shards.
	Concurrency int `json:"concurrency"`
}

// DefaultConfig returns a default Config.
func DefaultConfig() *Config {
	return &Config{
		ZMQEndpoint: "tcp://*:5557",
		TopicFilter: "heal@",
		Concurrency: 4,
	}
}

// EncodeFuncFor builds the tokenizer callback for one healing task, given the
// model name the request targeted and the prompt tail being healed.
type EncodeFuncFor func(modelName, text string) searchtree.EncodeFunc

// VocabResolver resolves a HealRequest's VocabKey to the raw vocabulary bytes
// a Healer should build (or reuse a cached) automaton from.
type VocabResolver func(ctx context.Context, vocabKey string) ([][]byte, error)

// task is one sharded unit of work: a HealRequest plus the client and model
// identifiers it arrived tagged with.
type task struct {
	clientID  string
	modelName string
	request   HealRequest
}

// Pool is a sharded worker pool that drives token-healing sessions to
// completion, each against the oracle.Transport it was built with.
type Pool struct {
	queues      []workqueue.TypedRateLimitingInterface[*task]
	concurrency int

	listener *zmqListener

	healer        *healing.Healer
	resolveVocab  VocabResolver
	encodeFuncFor EncodeFuncFor
	transport     oracle.Transport

	wg sync.WaitGroup
}

// NewPool creates a Pool with a sharded worker setup, wired to healer for
// automaton caching and to transport for driving each session's oracle round
// trips.
func NewPool(
	cfg *Config,
	healer *healing.Healer,
	resolveVocab VocabResolver,
	encodeFuncFor EncodeFuncFor,
	transport oracle.Transport,
) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := &Pool{
		queues:        make([]workqueue.TypedRateLimitingInterface[*task], cfg.Concurrency),
		concurrency:   cfg.Concurrency,
		healer:        healer,
		resolveVocab:  resolveVocab,
		encodeFuncFor: encodeFuncFor,
		transport:     transport,
	}
	for i := 0; i < p.concurrency; i++ {
		p.queues[i] = workqueue.NewTypedRateLimitingQueue(workqueue.DefaultTypedControllerRateLimiter[*task]())
	}

	p.listener = newZMQListener(p, cfg.ZMQEndpoint, cfg.TopicFilter)
	return p
}

// Start begins the worker pool and the ZMQ listener. It is non-blocking.
func (p *Pool) Start(ctx context.Context) {
	logger := klog.FromContext(ctx)
	logger.Info("starting token-healing session pool", "workers", p.concurrency)

	p.wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go p.worker(ctx, i)
	}

	go p.listener.Start(ctx)
}

// Shutdown drains every shard's queue and waits for in-flight tasks to
// finish.
func (p *Pool) Shutdown(ctx context.Context) {
	logger := klog.FromContext(ctx)
	logger.Info("shutting down token-healing session pool")

	for _, queue := range p.queues {
		queue.ShutDown()
	}
	p.wg.Wait()
	logger.Info("token-healing session pool shut down")
}

// addTask is called by the listener to enqueue a batch's requests. Requests
// for the same clientID always land on the same shard, so a client's
// requests are processed in submission order.
func (p *Pool) addTask(clientID, modelName string, req HealRequest) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	//nolint:gosec // concurrency overflowing uint32 is not a realistic concern
	shard := h.Sum32() % uint32(p.concurrency)
	p.queues[shard].Add(&task{clientID: clientID, modelName: modelName, request: req})
}

func (p *Pool) worker(ctx context.Context, shard int) {
	defer p.wg.Done()
	queue := p.queues[shard]
	for {
		t, shutdown := queue.Get()
		if shutdown {
			return
		}

		func(t *task) {
			defer queue.Done(t)
			if err := p.process(ctx, t); err != nil {
				klog.FromContext(ctx).Error(err, "failed to process healing task",
					"clientID", t.clientID, "modelName", t.modelName)
				queue.AddRateLimited(t)
				return
			}
			queue.Forget(t)
		}(t)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// process drives one HealRequest's session to completion against p.transport
// and logs the resulting best choice.
func (p *Pool) process(ctx context.Context, t *task) error {
	logger := klog.FromContext(ctx).V(logging.DEBUG).WithName("sessionpool.Pool.process")

	voc, err := p.resolveVocab(ctx, t.request.VocabKey)
	if err != nil {
		return fmt.Errorf("failed to resolve vocabulary %q: %w", t.request.VocabKey, err)
	}

	automaton, err := p.healer.GetOrBuildAutomaton(ctx, voc)
	if err != nil {
		return fmt.Errorf("failed to build automaton for vocabulary %q: %w", t.request.VocabKey, err)
	}

	encode := p.encodeFuncFor(t.modelName, t.request.Text)
	sess, req, err := p.healer.NewSession(ctx, automaton, encode, t.request.Text, t.request.StartFrom)
	if err != nil {
		return fmt.Errorf("failed to open healing session: %w", err)
	}
	if sess == nil {
		logger.Info("no healing needed", "clientID", t.clientID, "text", t.request.Text)
		return nil
	}

	for req != nil {
		res, err := p.transport.RoundTrip(ctx, *req)
		if err != nil {
			return fmt.Errorf("oracle round trip failed: %w", err)
		}
		req, err = sess.Feed(res)
		if err != nil {
			return fmt.Errorf("failed to advance healing session: %w", err)
		}
	}

	best, err := sess.GetBestChoice()
	if err != nil {
		return fmt.Errorf("failed to read best choice: %w", err)
	}
	logger.Info("healing session completed",
		"clientID", t.clientID, "extraTokenIDs", best.ExtraTokenIDs, "accumLogProb", best.AccumLogProb)
	return nil
}

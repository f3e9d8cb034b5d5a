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

// Package metrics instruments Interactive Search Driver sessions with
// Prometheus counters and histograms.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector for one Healer's worth of
// search-tree sessions: how many started and terminated, how many Feed
// calls were made, how deep each Feed call's backtrack ran, and what the
// final accumulated log-probability of each terminated session was.
type Collector struct {
	sessionsStarted    prometheus.Counter
	sessionsTerminated prometheus.Counter
	feedCalls          prometheus.Counter
	backtrackDepth     prometheus.Histogram
	finalLogProb       prometheus.Histogram
}

// NewCollector builds a Collector. namespace/subsystem follow the teacher's
// own metrics package naming convention (e.g. "kvcache_index_admissions_total").
func NewCollector(namespace, subsystem string) *Collector {
	return &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "sessions_started_total",
			Help: "Total number of token-healing search sessions started",
		}),
		sessionsTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "sessions_terminated_total",
			Help: "Total number of token-healing search sessions terminated",
		}),
		feedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "feed_calls_total",
			Help: "Total number of Feed calls across all sessions",
		}),
		backtrackDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "feed_backtrack_depth",
			Help:    "Number of stack frames popped per Feed call",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		}),
		finalLogProb: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "session_final_accum_log_prob",
			Help:    "Accumulated log-probability of the best choice at session termination",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.metrics() {
		m.Collect(ch)
	}
}

func (c *Collector) metrics() []prometheus.Collector {
	return []prometheus.Collector{
		c.sessionsStarted, c.sessionsTerminated, c.feedCalls, c.backtrackDepth, c.finalLogProb,
	}
}

var _ prometheus.Collector = &Collector{}

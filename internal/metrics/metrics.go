/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package metrics records scan progress as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shmscan"

// Recorder holds the collectors for one registry. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	rounds         prometheus.Counter
	roundDuration  prometheus.Histogram
	workerFailures prometheus.Counter
	workers        prometheus.Gauge
	elements       prometheus.Gauge
	runs           *prometheus.CounterVec
}

// NewRecorder registers the scan collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Scan rounds completed behind a barrier.",
		}),
		roundDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall time of one round including worker fan-out and barrier wait.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		workerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      "Workers that terminated abnormally.",
		}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Workers per round of the last run.",
		}),
		elements: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elements",
			Help:      "Sequence length of the last run.",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scan runs by result.",
		}, []string{"result"}),
	}
}

// RunStarted records the shape of a run.
func (r *Recorder) RunStarted(n, workers int) {
	if r == nil {
		return
	}
	r.elements.Set(float64(n))
	r.workers.Set(float64(workers))
}

// RoundFinished records a round that passed its barrier.
func (r *Recorder) RoundFinished(d time.Duration) {
	if r == nil {
		return
	}
	r.rounds.Inc()
	r.roundDuration.Observe(d.Seconds())
}

// WorkersFailed records n abnormal worker terminations.
func (r *Recorder) WorkersFailed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.workerFailures.Add(float64(n))
}

// RunFinished records the outcome of a run.
func (r *Recorder) RunFinished(err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.runs.WithLabelValues(result).Inc()
}

//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package platform

import (
	"github.com/google/differential-privacy/quorum/task"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quorum"

// metrics are the platform's Prometheus collectors.
type metrics struct {
	tasksCreated    prometheus.Counter
	submissions     *prometheus.CounterVec
	tasksFinished   *prometheus.CounterVec
	aggregationTime prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Number of tasks created.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Number of contributions submitted, by outcome.",
		}, []string{"outcome"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Number of tasks that reached a terminal status, by status.",
		}, []string{"status"}),
		aggregationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent aggregating the contributions of one task.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.tasksCreated, m.submissions, m.tasksFinished, m.aggregationTime)
	}
	return m
}

func (m *metrics) submitted(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *metrics) finished(s task.Status, seconds float64) {
	m.tasksFinished.WithLabelValues(s.String()).Inc()
	m.aggregationTime.Observe(seconds)
}

/*
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

// Package metrics is ambient instrumentation for the decision core: a
// decision count and a target-replica gauge, registered against a plain
// prometheus.Registry owned by the caller. It is not a scrape endpoint or
// an exporter — wiring the registry to an HTTP handler is the outer loop's
// job.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	Namespace = "fleet_autoscaler"
	subsystem = "decision"
)

// Recorder wraps the two series the decision core emits per tick.
type Recorder struct {
	decisionsTotal  *prometheus.CounterVec
	targetReplicas  *prometheus.GaugeVec
}

// NewRecorder creates a Recorder and registers its collectors against reg.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Count of scaling decisions emitted, by kind.",
		}, []string{"kind"}),
		targetReplicas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "target_replicas",
			Help:      "Current targetNumReplicas per service.",
		}, []string{"service"}),
	}
	reg.MustRegister(r.decisionsTotal, r.targetReplicas)
	return r
}

// RecordDecision increments the decisions_total counter for kind
// ("scale_up" or "scale_down").
func (r *Recorder) RecordDecision(kind string) {
	r.decisionsTotal.WithLabelValues(kind).Inc()
}

// SetTargetReplicas records the current target for service.
func (r *Recorder) SetTargetReplicas(service string, target int) {
	r.targetReplicas.WithLabelValues(service).Set(float64(target))
}

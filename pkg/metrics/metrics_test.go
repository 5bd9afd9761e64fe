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

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/onsi/gomega"

	"github.com/karpenter-community/fleet-autoscaler/pkg/metrics"
)

func TestRecorder(t *testing.T) {
	g := NewWithT(t)
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	recorder.RecordDecision("scale_up")
	recorder.RecordDecision("scale_up")
	recorder.SetTargetReplicas("svc-a", 3)

	families, err := reg.Gather()
	g.Expect(err).NotTo(HaveOccurred())

	var decisionsFamily *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "fleet_autoscaler_decision_decisions_total" {
			decisionsFamily = f
		}
	}
	g.Expect(decisionsFamily).NotTo(BeNil())
	g.Expect(decisionsFamily.Metric[0].Counter.GetValue()).To(Equal(2.0))
}

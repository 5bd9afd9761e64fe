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

package rate_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
	"github.com/karpenter-community/fleet-autoscaler/pkg/autoscaler/rate"
	"github.com/karpenter-community/fleet-autoscaler/pkg/decision"
	"github.com/karpenter-community/fleet-autoscaler/pkg/metrics"
)

func TestRate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "rate")
}

func ptrFloat(f float64) *float64 { return &f }

func newScalerAt(spec v1alpha1.ServiceSpec, clock *float64) *rate.Scaler {
	s := rate.New(spec)
	s.SetClock(func() float64 { return *clock })
	return s
}

func uniformTimestamps(n int, spanSeconds float64, end float64) []float64 {
	ts := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = end - spanSeconds + spanSeconds*float64(i)/float64(n)
	}
	return ts
}

// repeatedTimestamps returns n copies of at. Window.Rate only depends on
// count, not spread, so this pins a tick's rate to an exact, hand-checkable
// value instead of an approximation over overlapping windows.
func repeatedTimestamps(n int, at float64) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = at
	}
	return ts
}

var _ = Describe("S1: flat low traffic", func() {
	It("should stay at min replicas with no decisions", func() {
		spec := v1alpha1.ServiceSpec{
			MinReplicas: 1, MaxReplicas: 3,
			TargetQPSPerReplica:   ptrFloat(5),
			UpscaleDelaySeconds:   30,
			DownscaleDelaySeconds: 60,
			AutoscalerName:        "rate",
		}
		clock := 1000.0
		s := newScalerAt(spec, &clock)
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: uniformTimestamps(10, 60, clock)})

		replicas := []v1alpha1.ReplicaInfo{{ReplicaID: 1, Status: v1alpha1.ReplicaReady}}
		entries := s.EvaluateScaling(replicas)
		Expect(entries).To(BeEmpty())
	})
})

var _ = Describe("S2: sustained upscale", func() {
	It("should commit the new target on the third consecutive tick and emit exactly one ScaleUp", func() {
		spec := v1alpha1.ServiceSpec{
			MinReplicas: 1, MaxReplicas: 3,
			TargetQPSPerReplica:   ptrFloat(5),
			UpscaleDelaySeconds:   30,
			DownscaleDelaySeconds: 60,
			AutoscalerName:        "rate",
		}
		clock := 1000.0
		s := newScalerAt(spec, &clock)
		replicas := []v1alpha1.ReplicaInfo{{ReplicaID: 1, Status: v1alpha1.ReplicaReady}}

		// bootstrap tick: low rate (60 timestamps / 60s window = rate 1,
		// raw desired 1), commits targetNumReplicas=1 immediately (matching
		// the single already-ready replica), regardless of counters.
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(60, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())

		// ticks 1 and 2 of 3 sustained high-rate ("desired=2") ticks.
		// Each clock jump exceeds the 60s window so the previous tick's
		// timestamps are fully trimmed before the new batch lands — the
		// window's count, and so the computed rate, is exact and
		// independent of prior ticks. 360 timestamps / 60s = rate 6,
		// raw desired = ceil(6/5) = 2. upscalePeriods = floor(30/10) = 3,
		// so the counter must reach 3 before the new target commits.
		clock += 70
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(360, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())

		clock += 70
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(360, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())

		// tick 3: the third consecutive high-rate tick commits target=2 and
		// emits exactly one ScaleUp against the one already-ready replica.
		clock += 70
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(360, clock)})
		entries := s.EvaluateScaling(replicas)
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Decisions()).To(HaveLen(1))
	})
})

var _ = Describe("S3: hysteresis reset", func() {
	It("should reset the counter on an intervening equal tick, delaying the upscale", func() {
		spec := v1alpha1.ServiceSpec{
			MinReplicas: 1, MaxReplicas: 3,
			TargetQPSPerReplica:   ptrFloat(5),
			UpscaleDelaySeconds:   30,
			DownscaleDelaySeconds: 60,
			AutoscalerName:        "rate",
		}
		clock := 1000.0
		s := newScalerAt(spec, &clock)
		replicas := []v1alpha1.ReplicaInfo{{ReplicaID: 1, Status: v1alpha1.ReplicaReady}}

		// bootstrap at target=1 (60 timestamps / 60s window -> rate 1,
		// raw=1). As in S2, every later tick jumps the clock by more than
		// the 60s window so the previous tick's timestamps are fully
		// trimmed first — each tick's rate is exact and independent.
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(60, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())

		// tick 2: 360 timestamps -> rate 6, raw=2; upscaleCounter -> 1
		clock += 70
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(360, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())

		// tick 3: 60 timestamps -> rate 1, raw=1 (equal to target) -> counters reset
		clock += 70
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(60, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())

		// tick 4: raw=2 again -> counter restarts at 1, no commit yet
		clock += 70
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: repeatedTimestamps(360, clock)})
		Expect(s.EvaluateScaling(replicas)).To(BeEmpty())
	})
})

var _ = Describe("Clamp", func() {
	It("should never let the target leave [min, max]", func() {
		spec := v1alpha1.ServiceSpec{
			MinReplicas: 2, MaxReplicas: 4,
			TargetQPSPerReplica:   ptrFloat(1),
			UpscaleDelaySeconds:   0,
			DownscaleDelaySeconds: 0,
			AutoscalerName:        "rate",
		}
		clock := 1000.0
		s := newScalerAt(spec, &clock)
		// rate 100 -> raw desired 100, clamped to max 4. With no replicas
		// launched, the number of ScaleUp decisions equals the target.
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: uniformTimestamps(6000, 60, clock)})
		Expect(s.EvaluateScaling(nil)).To(HaveLen(4))

		clock += 10
		s.CollectRequestInformation(v1alpha1.RequestBatch{Timestamps: uniformTimestamps(6000, 60, clock)})
		Expect(s.EvaluateScaling(nil)).To(HaveLen(4))
	})
})

var _ = Describe("Metrics instrumentation", func() {
	It("should report decisions_total and target_replicas once a recorder is attached", func() {
		spec := v1alpha1.ServiceSpec{
			MinReplicas: 3, MaxReplicas: 3,
			AutoscalerName: "rate",
		}
		clock := 1000.0
		s := newScalerAt(spec, &clock)

		reg := prometheus.NewRegistry()
		recorder := metrics.NewRecorder(reg)
		s.SetRecorder("svc-a", recorder)

		s.CollectRequestInformation(v1alpha1.RequestBatch{})
		entries := s.EvaluateScaling(nil)
		Expect(entries).To(HaveLen(3))

		families, err := reg.Gather()
		Expect(err).NotTo(HaveOccurred())
		var sawDecisions, sawTarget bool
		for _, f := range families {
			switch f.GetName() {
			case "fleet_autoscaler_decision_decisions_total":
				sawDecisions = true
				Expect(f.Metric[0].Counter.GetValue()).To(Equal(3.0))
			case "fleet_autoscaler_decision_target_replicas":
				sawTarget = true
				Expect(f.Metric[0].Gauge.GetValue()).To(Equal(3.0))
			}
		}
		Expect(sawDecisions).To(BeTrue())
		Expect(sawTarget).To(BeTrue())
	})
})

var _ = Describe("Decision target well-formedness", func() {
	It("should emit only ScaleUp decisions with nil override when scaling up", func() {
		spec := v1alpha1.ServiceSpec{
			MinReplicas: 3, MaxReplicas: 3,
			AutoscalerName: "rate",
		}
		clock := 1000.0
		s := newScalerAt(spec, &clock)
		s.CollectRequestInformation(v1alpha1.RequestBatch{})
		entries := s.EvaluateScaling(nil)
		Expect(entries).To(HaveLen(3))
		for _, e := range entries {
			d := e.Decisions()[0]
			Expect(d.Kind()).To(Equal(decision.ScaleUpKind))
			_, ok := d.Override()
			Expect(ok).To(BeFalse())
		}
	})
})

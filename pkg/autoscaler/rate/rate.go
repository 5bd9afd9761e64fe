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

// Package rate implements the single-class, homogeneous rate-based
// autoscaling policy: target replicas track requests-per-second against a
// per-replica QPS target, smoothed by a consecutive-tick hysteresis state
// machine.
package rate

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
	"github.com/karpenter-community/fleet-autoscaler/pkg/autoscaler"
	"github.com/karpenter-community/fleet-autoscaler/pkg/config"
	"github.com/karpenter-community/fleet-autoscaler/pkg/decision"
	"github.com/karpenter-community/fleet-autoscaler/pkg/metrics"
	"github.com/karpenter-community/fleet-autoscaler/pkg/replicaorder"
	"github.com/karpenter-community/fleet-autoscaler/pkg/window"
)

// Name is the registry key this policy is registered under.
const Name = "rate"

func init() {
	autoscaler.Register(Name, func(spec v1alpha1.ServiceSpec) (autoscaler.Autoscaler, error) {
		return New(spec), nil
	})
}

// nowFunc is overridable in tests; production code always uses time.Now.
var nowFunc = func() float64 { return float64(time.Now().Unix()) }

// Scaler is the rate-based autoscaling policy. A Scaler is owned by a
// single controller loop; CollectRequestInformation must be called before
// EvaluateScaling on every tick.
type Scaler struct {
	spec v1alpha1.ServiceSpec

	window window.TimestampWindow

	targetNumReplicas int
	upscaleCounter    int
	downscaleCounter  int
	bootstrapDone     bool

	upscalePeriods   int
	downscalePeriods int

	now func() float64

	serviceName string
	recorder    *metrics.Recorder
}

// New constructs a rate-based Scaler for spec. spec is assumed already
// defaulted and validated by the caller (autoscaler.FromSpec does this).
func New(spec v1alpha1.ServiceSpec) *Scaler {
	return &Scaler{
		spec:              spec,
		targetNumReplicas: spec.MinReplicas,
		upscalePeriods:    periods(spec.UpscaleDelaySeconds),
		downscalePeriods:  periods(spec.DownscaleDelaySeconds),
		now:               nowFunc,
	}
}

func periods(delaySeconds float64) int {
	return int(math.Floor(delaySeconds / config.AutoscalerDefaultDecisionIntervalSeconds))
}

// SetClock overrides the scaler's time source. Production callers never
// need this; it exists so tests can drive window trimming deterministically.
func (s *Scaler) SetClock(now func() float64) {
	s.now = now
}

// SetRecorder attaches instrumentation: decisions_total and
// target_replicas are reported under serviceName on every subsequent
// EvaluateScaling call. A Scaler with no recorder attached (the default)
// records nothing.
func (s *Scaler) SetRecorder(serviceName string, recorder *metrics.Recorder) {
	s.serviceName = serviceName
	s.recorder = recorder
}

// CollectRequestInformation merges batch.Timestamps into the rolling
// window and trims it to the retention window ending at the current time.
func (s *Scaler) CollectRequestInformation(batch v1alpha1.RequestBatch) {
	s.window.Append(batch.Timestamps)
	s.window.TrimTo(s.now() - config.AutoscalerQPSWindowSizeSeconds)
}

// EvaluateScaling computes the raw desired replica count from the current
// request rate, applies the hysteresis state machine to decide whether to
// commit it, and synthesizes scale-up/scale-down decisions against the
// live replica inventory.
func (s *Scaler) EvaluateScaling(replicas []v1alpha1.ReplicaInfo) []decision.Entry {
	desired := s.desiredClamped()
	s.applyHysteresis(desired)
	return s.synthesizeDecisions(replicas)
}

func (s *Scaler) desiredClamped() int {
	if s.spec.TargetQPSPerReplica == nil {
		return s.targetNumReplicas
	}
	rate := s.window.Rate(config.AutoscalerQPSWindowSizeSeconds)
	rawDesired := int(math.Ceil(rate / *s.spec.TargetQPSPerReplica))
	return clamp(rawDesired, s.spec.MinReplicas, s.spec.MaxReplicas)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyHysteresis advances the consecutive-tick counters for desired
// against the current target, committing a new target once a direction has
// persisted for the configured number of periods.
func (s *Scaler) applyHysteresis(desired int) {
	if !s.bootstrapDone {
		s.targetNumReplicas = desired
		s.bootstrapDone = true
		return
	}
	switch {
	case desired > s.targetNumReplicas:
		s.upscaleCounter++
		s.downscaleCounter = 0
		if s.upscaleCounter >= s.upscalePeriods {
			s.targetNumReplicas = desired
			s.upscaleCounter = 0
		}
	case desired < s.targetNumReplicas:
		s.downscaleCounter++
		s.upscaleCounter = 0
		if s.downscaleCounter >= s.downscalePeriods {
			s.targetNumReplicas = desired
			s.downscaleCounter = 0
		}
	default:
		s.upscaleCounter = 0
		s.downscaleCounter = 0
	}
}

func (s *Scaler) synthesizeDecisions(replicas []v1alpha1.ReplicaInfo) []decision.Entry {
	var launchedReplicas []v1alpha1.ReplicaInfo
	for _, r := range replicas {
		if r.IsLaunched() {
			launchedReplicas = append(launchedReplicas, r)
		}
	}
	launched := len(launchedReplicas)

	var entries []decision.Entry
	switch {
	case launched < s.targetNumReplicas:
		for i := 0; i < s.targetNumReplicas-launched; i++ {
			entries = append(entries, decision.Single(decision.NewScaleUp(nil)))
		}
	case launched > s.targetNumReplicas:
		victims := replicaorder.SelectVictims(launchedReplicas, nil, launched-s.targetNumReplicas)
		for _, v := range victims {
			entries = append(entries, decision.Single(decision.NewScaleDown(v.ReplicaID)))
		}
	}

	if s.recorder != nil {
		for _, e := range entries {
			for _, d := range e.Decisions() {
				s.recorder.RecordDecision(decisionKindLabel(d.Kind()))
			}
		}
		s.recorder.SetTargetReplicas(s.serviceName, s.targetNumReplicas)
	}

	zap.S().Debugw("rate scaler evaluated", "target", s.targetNumReplicas, "launched", launched, "decisions", len(entries))
	return entries
}

func decisionKindLabel(k decision.Kind) string {
	if k == decision.ScaleUpKind {
		return "scale_up"
	}
	return "scale_down"
}

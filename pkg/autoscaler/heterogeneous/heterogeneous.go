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

// Package heterogeneous implements the multi-class, multi-accelerator
// autoscaling policy: a request-rate histogram is delegated to an ILP
// allocator, whose output is reconciled against the live replica
// inventory while maintaining primary/fallback pairs and a deferred,
// two-phase scale-down.
package heterogeneous

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
	"github.com/karpenter-community/fleet-autoscaler/pkg/autoscaler"
	"github.com/karpenter-community/fleet-autoscaler/pkg/config"
	"github.com/karpenter-community/fleet-autoscaler/pkg/decision"
	"github.com/karpenter-community/fleet-autoscaler/pkg/metrics"
	"github.com/karpenter-community/fleet-autoscaler/pkg/replicamanager"
	"github.com/karpenter-community/fleet-autoscaler/pkg/replicaorder"
	"github.com/karpenter-community/fleet-autoscaler/pkg/solver"
	"github.com/karpenter-community/fleet-autoscaler/pkg/window"
)

// Name is the registry key this policy is registered under.
const Name = "heterogeneous"

// DefaultSolver is the ILPSolver used when autoscaler.FromSpec is given a
// spec whose AutoscalerName is "heterogeneous". The core never constructs a solver itself (its internals are
// opaque, out of scope); a caller wiring the registry path must set this
// before constructing a heterogeneous scaler by name. Callers that already
// hold a solver reference should prefer New directly.
var DefaultSolver solver.ILPSolver

func init() {
	autoscaler.Register(Name, func(spec v1alpha1.ServiceSpec) (autoscaler.Autoscaler, error) {
		if DefaultSolver == nil {
			return nil, errors.New("heterogeneous: no ILPSolver configured; set heterogeneous.DefaultSolver or construct with New")
		}
		return New(spec, DefaultSolver), nil
	})
}

// fallbackPolicy describes the fixed ratio of fallback replicas launched
// alongside a new primary of a given accelerator type.
type fallbackPolicy struct {
	count        int
	fallbackType v1alpha1.AcceleratorType
	hasFallback  bool
}

var fallbackPolicies = map[v1alpha1.AcceleratorType]fallbackPolicy{
	v1alpha1.AcceleratorA10:  {count: 0, hasFallback: false},
	v1alpha1.AcceleratorA100: {count: config.FallbackAcceleratorCount, fallbackType: v1alpha1.AcceleratorA10, hasFallback: true},
}

// acceleratorOverrideString encodes the accelerator type into the override
// string the replica manager expects. A10 keeps its historical name.
func acceleratorOverrideString(t v1alpha1.AcceleratorType) string {
	if t == v1alpha1.AcceleratorA10 {
		return "A10G:1"
	}
	return fmt.Sprintf("%s:1", t)
}

// Scaler is the heterogeneous-accelerator autoscaling policy. A Scaler is
// owned by a single controller loop; CollectRequestInformation must be
// called before EvaluateScaling on every tick.
type Scaler struct {
	spec v1alpha1.ServiceSpec

	classWindows    []window.TimestampWindow
	requestRateDist []float64

	lastScaleOperation    float64
	hasLastScaleOperation bool

	scaleDownCandidates []v1alpha1.ReplicaInfo

	solver solver.ILPSolver
	now    func() float64

	serviceName string
	recorder    *metrics.Recorder
}

// New constructs a heterogeneous Scaler for spec, delegating allocation
// decisions to solv. spec is assumed already defaulted and validated.
func New(spec v1alpha1.ServiceSpec, solv solver.ILPSolver) *Scaler {
	return &Scaler{
		spec:            spec,
		classWindows:    make([]window.TimestampWindow, config.RequestClassCount),
		requestRateDist: make([]float64, config.RequestClassCount),
		solver:          solv,
		now:             func() float64 { return float64(time.Now().Unix()) },
	}
}

// SetClock overrides the scaler's time source. Production callers never
// need this; it exists so tests can drive cooldown and window trimming
// deterministically.
func (s *Scaler) SetClock(now func() float64) {
	s.now = now
}

// SetRecorder attaches instrumentation: decisions_total and
// target_replicas (summed across accelerator types) are reported under
// serviceName on every subsequent EvaluateScaling call that receives an
// allocation from the solver. A Scaler with no recorder attached (the default) records
// nothing.
func (s *Scaler) SetRecorder(serviceName string, recorder *metrics.Recorder) {
	s.serviceName = serviceName
	s.recorder = recorder
}

// CollectRequestInformation merges each request class's timestamps into
// its rolling window, trims to the cooldown-sized retention window, and
// recomputes the per-class request rate.
func (s *Scaler) CollectRequestInformation(batch v1alpha1.RequestBatch) {
	now := s.now()
	for i := 0; i < len(s.classWindows) && i < len(batch.ClassTimestamps); i++ {
		s.classWindows[i].Append(batch.ClassTimestamps[i])
		s.classWindows[i].TrimTo(now - config.ScaleUpCoolDownIntervalSeconds)
		s.requestRateDist[i] = s.classWindows[i].Rate(config.ScaleUpCoolDownIntervalSeconds)
	}
}

// EvaluateScaling reconciles the allocator's output against the live
// replica inventory. It returns an empty decision list, without touching
// scaleDownCandidates, whenever the cooldown hasn't elapsed or the solver
// call fails. lastScaleOperation is left unchanged inside the cooldown, but
// advances when the solver call fails, per the reference's cooldown
// semantics.
func (s *Scaler) EvaluateScaling(replicas []v1alpha1.ReplicaInfo) []decision.Entry {
	now := s.now()
	if s.hasLastScaleOperation && now-s.lastScaleOperation < config.ScaleUpCoolDownIntervalSeconds {
		return nil
	}
	s.lastScaleOperation = now
	s.hasLastScaleOperation = true

	allocation, err := s.solver.Solve(context.Background(), s.requestRateDist)
	if err != nil {
		zap.S().Warnw("ILP solver failed, treating as no allocation this tick", "error", err)
		return nil
	}

	candidates := append([]v1alpha1.ReplicaInfo{}, s.scaleDownCandidates...)
	var additionalScaleDown []v1alpha1.ReplicaInfo
	var entries []decision.Entry

	for _, t := range v1alpha1.AcceleratorIterationOrder {
		aliveReplicas := lo.Filter(replicas, func(r v1alpha1.ReplicaInfo, _ int) bool {
			return r.IsLaunched() && r.IsPrimary && r.Accelerator == t
		})
		want := allocation[t]
		candOfType := lo.Filter(candidates, func(c v1alpha1.ReplicaInfo, _ int) bool {
			return c.Accelerator == t
		})
		diff := len(aliveReplicas) - want

		switch {
		case diff == 0:
			candidates = purgeType(candidates, t)
		case diff < 0:
			for i := 0; i < -diff; i++ {
				entries = append(entries, emitScaleUp(t)...)
			}
			candidates = purgeType(candidates, t)
		default:
			extra := diff - len(candOfType)
			switch {
			case extra == 0:
				// existing candidates suffice; drained below.
			case extra > 0:
				exclude := idSet(candidates)
				victims := replicaorder.SelectVictims(aliveReplicas, exclude, extra)
				additionalScaleDown = append(additionalScaleDown, victims...)
			default:
				keep := -extra
				if keep > len(candOfType) {
					keep = len(candOfType)
				}
				candidates = replaceType(candidates, t, candOfType[:keep])
			}
		}
	}

	downSet := map[int64]bool{}
	for _, c := range candidates {
		entries = append(entries, decision.Single(decision.NewScaleDown(c.ReplicaID)))
		downSet[c.ReplicaID] = true
		for _, fid := range c.FallbackReplicaIDList {
			entries = append(entries, decision.Single(decision.NewScaleDown(fid)))
			downSet[fid] = true
		}
	}

	s.scaleDownCandidates = lo.Filter(additionalScaleDown, func(c v1alpha1.ReplicaInfo, _ int) bool {
		return !downSet[c.ReplicaID]
	})

	if s.recorder != nil {
		for _, e := range entries {
			for _, d := range e.Decisions() {
				s.recorder.RecordDecision(decisionKindLabel(d.Kind()))
			}
		}
		target := 0
		for _, want := range allocation {
			target += want
		}
		s.recorder.SetTargetReplicas(s.serviceName, target)
	}

	return entries
}

func decisionKindLabel(k decision.Kind) string {
	if k == decision.ScaleUpKind {
		return "scale_up"
	}
	return "scale_down"
}

// emitScaleUp builds the decision entry for launching one new primary of
// type t, together with whatever fallbacks its policy prescribes.
func emitScaleUp(t v1alpha1.AcceleratorType) []decision.Entry {
	policy := fallbackPolicies[t]
	if !policy.hasFallback {
		return []decision.Entry{decision.Single(decision.NewScaleUp(&decision.Override{
			Accelerators: acceleratorOverrideString(t),
			IsPrimary:    true,
			IsFallback:   false,
		}))}
	}
	group := make([]decision.Decision, 0, policy.count+1)
	for i := 0; i < policy.count; i++ {
		group = append(group, decision.NewScaleUp(&decision.Override{
			Accelerators: acceleratorOverrideString(policy.fallbackType),
			IsPrimary:    false,
			IsFallback:   true,
		}))
	}
	group = append(group, decision.NewScaleUp(&decision.Override{
		Accelerators: acceleratorOverrideString(t),
		IsPrimary:    true,
		IsFallback:   false,
	}))
	return []decision.Entry{decision.Group(group)}
}

func purgeType(candidates []v1alpha1.ReplicaInfo, t v1alpha1.AcceleratorType) []v1alpha1.ReplicaInfo {
	return lo.Filter(candidates, func(c v1alpha1.ReplicaInfo, _ int) bool {
		return c.Accelerator != t
	})
}

func replaceType(candidates []v1alpha1.ReplicaInfo, t v1alpha1.AcceleratorType, kept []v1alpha1.ReplicaInfo) []v1alpha1.ReplicaInfo {
	remaining := lo.Filter(candidates, func(c v1alpha1.ReplicaInfo, _ int) bool {
		return c.Accelerator != t
	})
	return append(remaining, kept...)
}

func idSet(replicas []v1alpha1.ReplicaInfo) map[int64]bool {
	ids := make(map[int64]bool, len(replicas))
	for _, r := range replicas {
		ids[r.ReplicaID] = true
	}
	return ids
}

// FallbackScaleDownSync terminates every fallback attached to a READY
// primary and persists the cleared fallback list. It is a separate
// control-loop operation invoked after a primary becomes healthy, and is
// idempotent: a primary with no remaining fallbacks is left untouched.
func FallbackScaleDownSync(ctx context.Context, serviceName string, store replicamanager.PersistenceStore, manager replicamanager.ReplicaManager) error {
	replicas, err := store.GetReplicaInfos(ctx, serviceName)
	if err != nil {
		return errors.Wrapf(err, "getting replica infos for %s", serviceName)
	}
	for _, r := range replicas {
		if r.Status != v1alpha1.ReplicaReady || !r.IsPrimary || len(r.FallbackReplicaIDList) == 0 {
			continue
		}
		for _, fid := range r.FallbackReplicaIDList {
			if err := manager.ScaleDown(ctx, fid); err != nil {
				return errors.Wrapf(err, "scaling down fallback %d for primary %d", fid, r.ReplicaID)
			}
		}
		updated := r
		updated.FallbackReplicaIDList = nil
		if err := store.AddOrUpdateReplica(ctx, serviceName, r.ReplicaID, updated); err != nil {
			return errors.Wrapf(err, "persisting cleared fallbacks for primary %d", r.ReplicaID)
		}
	}
	return nil
}

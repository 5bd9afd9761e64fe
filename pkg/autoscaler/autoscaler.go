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

// Package autoscaler defines the Autoscaler contract shared by the
// rate-based and heterogeneous-accelerator policies, and a name-keyed
// registry used to select one from a ServiceSpec.
package autoscaler

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
	"github.com/karpenter-community/fleet-autoscaler/pkg/decision"
)

// Autoscaler is the per-tick contract every policy implements.
// CollectRequestInformation must be called before EvaluateScaling within a
// tick; both are expected to return promptly and are driven by a single
// owning control loop.
type Autoscaler interface {
	// CollectRequestInformation merges batch into the scaler's internal
	// window(s), trimming entries outside the policy's retention window.
	CollectRequestInformation(batch v1alpha1.RequestBatch)

	// EvaluateScaling produces the (possibly empty) sequence of decisions
	// for this tick given the current replica inventory.
	EvaluateScaling(replicas []v1alpha1.ReplicaInfo) []decision.Entry
}

// Constructor builds an Autoscaler from a validated ServiceSpec.
type Constructor func(spec v1alpha1.ServiceSpec) (Autoscaler, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a named policy constructor to the process-wide registry.
// It is called once per policy at package init time; registering the same
// name twice is a programmer error and panics.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("autoscaler %q already registered", name))
	}
	registry[name] = ctor
}

// FromSpec validates spec and constructs the Autoscaler named by
// spec.AutoscalerName. An unknown name or a failed validation is a
// configuration error, returned to the caller rather than panicking.
func FromSpec(spec v1alpha1.ServiceSpec) (Autoscaler, error) {
	spec.SetDefaults()
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid service spec")
	}
	registryMu.RLock()
	ctor, ok := registry[spec.AutoscalerName]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown autoscaler %q", spec.AutoscalerName)
	}
	return ctor(spec)
}

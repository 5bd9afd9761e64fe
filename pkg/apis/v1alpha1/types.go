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

// Package v1alpha1 holds the input data model consumed by the autoscaling
// decision core: service specifications and replica inventory snapshots.
package v1alpha1

// AcceleratorType is the GPU class of a replica.
type AcceleratorType string

const (
	AcceleratorA10  AcceleratorType = "A10"
	AcceleratorA100 AcceleratorType = "A100"
)

// AcceleratorIterationOrder is the fixed order in which accelerator types
// are reconciled by the heterogeneous scaler.
var AcceleratorIterationOrder = []AcceleratorType{AcceleratorA10, AcceleratorA100}

// ReplicaStatus is the lifecycle state of a replica as reported by the
// persistence layer. The core never mutates this value directly.
type ReplicaStatus string

const (
	ReplicaPending      ReplicaStatus = "PENDING"
	ReplicaProvisioning ReplicaStatus = "PROVISIONING"
	ReplicaStarting     ReplicaStatus = "STARTING"
	ReplicaReady        ReplicaStatus = "READY"
	ReplicaNotReady     ReplicaStatus = "NOT_READY"
	ReplicaShuttingDown ReplicaStatus = "SHUTTING_DOWN"
	ReplicaFailed       ReplicaStatus = "FAILED"
)

// launchedStatuses holds every status a launched replica may report:
// non-terminal pre-READY states plus READY and NOT_READY.
var launchedStatuses = map[ReplicaStatus]bool{
	ReplicaPending:      true,
	ReplicaProvisioning: true,
	ReplicaStarting:     true,
	ReplicaReady:        true,
	ReplicaNotReady:     true,
}

// ServiceSpec is the immutable configuration of a single autoscaler
// instance, supplied once at construction.
type ServiceSpec struct {
	MinReplicas int `validate:"min=0"`
	MaxReplicas int `validate:"min=0"`

	// TargetQPSPerReplica is optional; its absence disables rate-based
	// scaling (the target stays at the current value).
	TargetQPSPerReplica *float64 `validate:"omitempty,gt=0"`

	UpscaleDelaySeconds   float64 `validate:"min=0"`
	DownscaleDelaySeconds float64 `validate:"min=0"`

	// AutoscalerName selects the policy from the registry (pkg/autoscaler).
	AutoscalerName string `validate:"required"`
}

// ReplicaInfo is a read-only snapshot of a replica's state, owned by the
// persistence layer. The core never mutates it except indirectly, by
// issuing decisions for the replica manager to enact.
type ReplicaInfo struct {
	ReplicaID             int64
	Status                ReplicaStatus
	IsPrimary             bool
	Accelerator           AcceleratorType
	FallbackReplicaIDList []int64
}

// IsLaunched reports whether the replica occupies capacity: every
// non-terminal pre-READY state plus READY and NOT_READY.
func (r ReplicaInfo) IsLaunched() bool {
	return launchedStatuses[r.Status]
}

// IsReady reports whether the replica is currently serving traffic.
func (r ReplicaInfo) IsReady() bool {
	return r.Status == ReplicaReady
}

// RequestBatch is the per-tick input describing request arrivals observed
// since the previous tick. Rate-based scalers read Timestamps; the
// heterogeneous scaler reads ClassTimestamps, one bucket per request class.
type RequestBatch struct {
	Timestamps      []float64
	ClassTimestamps [][]float64
}

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

// Package replicamanager declares the two external collaborators the
// decision core calls into from FallbackScaleDownSync: the replica
// manager that terminates compute, and the persistence layer that records
// replica metadata. Neither is implemented here; the core only consumes
// them.
package replicamanager

import (
	"context"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
)

// ReplicaManager terminates replicas by id. ScaleDown must be idempotent;
// synchronous completion is not required.
type ReplicaManager interface {
	ScaleDown(ctx context.Context, replicaID int64) error
}

// PersistenceStore records replica metadata for a service.
type PersistenceStore interface {
	GetReplicaInfos(ctx context.Context, serviceName string) ([]v1alpha1.ReplicaInfo, error)
	AddOrUpdateReplica(ctx context.Context, serviceName string, replicaID int64, info v1alpha1.ReplicaInfo) error
}

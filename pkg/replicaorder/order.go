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

// Package replicaorder implements the canonical ordering used to pick
// scale-down victims: least-valuable replicas first.
package replicaorder

import (
	"github.com/samber/lo"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
)

// scaleDownDecisionOrder lists ReplicaStatus values from least-valuable to
// most-valuable as a scale-down target. A status absent from this list
// sorts after every listed one.
var scaleDownDecisionOrder = []v1alpha1.ReplicaStatus{
	v1alpha1.ReplicaFailed,
	v1alpha1.ReplicaShuttingDown,
	v1alpha1.ReplicaStarting,
	v1alpha1.ReplicaPending,
	v1alpha1.ReplicaProvisioning,
	v1alpha1.ReplicaNotReady,
	v1alpha1.ReplicaReady,
}

var rankByStatus = func() map[v1alpha1.ReplicaStatus]int {
	m := make(map[v1alpha1.ReplicaStatus]int, len(scaleDownDecisionOrder))
	for i, s := range scaleDownDecisionOrder {
		m[s] = i
	}
	return m
}()

// rank returns a replica's position in scaleDownDecisionOrder, or
// len(scaleDownDecisionOrder) for any status not listed there.
func rank(status v1alpha1.ReplicaStatus) int {
	if r, ok := rankByStatus[status]; ok {
		return r
	}
	return len(scaleDownDecisionOrder)
}

// Sort returns replicas ordered by scaleDownDecisionOrder, least-valuable
// first. The sort is stable: replicas tied on rank (including replicas with
// an unlisted status) keep their relative input order.
func Sort(replicas []v1alpha1.ReplicaInfo) []v1alpha1.ReplicaInfo {
	indexed := make([]v1alpha1.ReplicaInfo, len(replicas))
	copy(indexed, replicas)
	stableSortByRank(indexed)
	return indexed
}

func stableSortByRank(replicas []v1alpha1.ReplicaInfo) {
	// insertion sort: input sizes here are small (live replica counts per
	// accelerator type), and stability is the property under test.
	for i := 1; i < len(replicas); i++ {
		j := i
		for j > 0 && rank(replicas[j-1].Status) > rank(replicas[j].Status) {
			replicas[j-1], replicas[j] = replicas[j], replicas[j-1]
			j--
		}
	}
}

// SelectVictims returns the first n replicas of Sort(replicas), excluding
// any replica whose id is already in exclude. If fewer than n are
// eligible, every eligible replica is returned.
func SelectVictims(replicas []v1alpha1.ReplicaInfo, exclude map[int64]bool, n int) []v1alpha1.ReplicaInfo {
	eligible := lo.Filter(replicas, func(r v1alpha1.ReplicaInfo, _ int) bool {
		return !exclude[r.ReplicaID]
	})
	ordered := Sort(eligible)
	if n > len(ordered) {
		n = len(ordered)
	}
	return ordered[:n]
}

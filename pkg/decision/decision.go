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

// Package decision defines the output of an autoscaling tick: a sequence of
// scale-up and scale-down decisions, some of which must be enacted
// atomically as a group.
package decision

import (
	"fmt"

	"go.uber.org/zap"
)

// Kind distinguishes the two decision variants.
type Kind int

const (
	ScaleUpKind Kind = iota
	ScaleDownKind
)

// Override is the closed set of optional fields a ScaleUp may carry. The
// reference payload is a free-form mapping; a closed record is preferred
// here because only these three keys are ever produced or consumed.
type Override struct {
	Accelerators string
	IsPrimary    bool
	IsFallback   bool
}

// Decision is a single scaling action. Construct it with NewScaleUp or
// NewScaleDown rather than the struct literal, so the construction contract
// in invariant 4 of the data model is enforced in one place.
type Decision struct {
	kind        Kind
	override    *Override
	replicaID   int64
	hasOverride bool
}

// NewScaleUp builds a ScaleUp decision. override may be nil: the replica
// manager then picks defaults.
func NewScaleUp(override *Override) Decision {
	return Decision{kind: ScaleUpKind, override: override, hasOverride: override != nil}
}

// NewScaleDown builds a ScaleDown decision targeting replicaID.
func NewScaleDown(replicaID int64) Decision {
	return Decision{kind: ScaleDownKind, replicaID: replicaID}
}

func (d Decision) Kind() Kind { return d.kind }

// Override returns the ScaleUp payload and whether one was set. Calling it
// on a ScaleDown decision is a construction-contract violation and panics,
// matching the "trap loudly" requirement for programmer errors.
func (d Decision) Override() (Override, bool) {
	if d.kind != ScaleUpKind {
		invariantViolated(fmt.Sprintf("Override() called on a non-ScaleUp decision (kind=%d)", d.kind))
	}
	if !d.hasOverride {
		return Override{}, false
	}
	return *d.override, true
}

// ReplicaID returns the scale-down target. Calling it on a ScaleUp decision
// is a construction-contract violation and panics.
func (d Decision) ReplicaID() int64 {
	if d.kind != ScaleDownKind {
		invariantViolated(fmt.Sprintf("ReplicaID() called on a non-ScaleDown decision (kind=%d)", d.kind))
	}
	return d.replicaID
}

// Entry is one element of an EvaluateScaling result: either a single
// decision, or a group of decisions that the caller must enact atomically
// (a primary launched together with its fallbacks).
type Entry struct {
	single Decision
	group  []Decision
	isGroup bool
}

// Single wraps one decision as a non-grouped entry.
func Single(d Decision) Entry {
	return Entry{single: d}
}

// Group wraps a sequence of decisions as an atomic entry. An empty or
// single-element group is a construction-contract violation: groups exist
// precisely to express multi-decision atomicity.
func Group(ds []Decision) Entry {
	if len(ds) < 2 {
		invariantViolated(fmt.Sprintf("Group() called with %d decisions; groups require at least 2", len(ds)))
	}
	return Entry{group: ds, isGroup: true}
}

func (e Entry) IsGroup() bool { return e.isGroup }

// Decisions flattens the entry to its constituent decisions, one element
// for a Single entry, len(group) elements for a Group entry.
func (e Entry) Decisions() []Decision {
	if e.isGroup {
		return e.group
	}
	return []Decision{e.single}
}

// invariantViolated logs the violation at error level and panics, so a
// construction-contract bug traps loudly instead of silently producing a
// malformed decision.
func invariantViolated(msg string) {
	zap.S().Errorf("invariant violated: %s", msg)
	panic(msg)
}

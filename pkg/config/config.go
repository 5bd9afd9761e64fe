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

// Package config exposes the fixed constants the decision core is tuned
// against. These are compiled-in values, not a parsed configuration file:
// the core owns no flag, env, or ConfigMap surface.
package config

const (
	// AutoscalerDefaultDecisionIntervalSeconds is the cadence (D) at which
	// the outer control loop is expected to tick.
	AutoscalerDefaultDecisionIntervalSeconds = 10.0

	// AutoscalerQPSWindowSizeSeconds is the rolling window (W) the
	// rate-based scaler retains timestamps over.
	AutoscalerQPSWindowSizeSeconds = 60.0

	// ScaleUpCoolDownIntervalSeconds is the heterogeneous scaler's cooldown
	// floor between reconciliations; it also sizes that scaler's
	// timestamp window.
	ScaleUpCoolDownIntervalSeconds = 300.0

	// RequestClassCount (K) is the fixed number of request-class buckets
	// the heterogeneous scaler's histogram carries.
	RequestClassCount = 7

	// FallbackAcceleratorCount is the number of A10 fallback replicas
	// launched alongside each new A100 primary.
	FallbackAcceleratorCount = 4
)

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

// Package solver defines the ILP allocator contract the heterogeneous
// scaler delegates to, plus a bounded, cached decorator for solvers whose
// runtime isn't reliably bounded in practice.
package solver

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/karpenter-community/fleet-autoscaler/pkg/apis/v1alpha1"
)

// lastResultKey is the cache's only entry. A CachedSolver is owned by a
// single scaler instance (one per service), so there is exactly one
// last-known-good allocation to remember — no per-service keying needed.
const lastResultKey = "last"

// ILPSolver maps a per-class request-rate distribution to a non-negative
// integer count per accelerator type. Missing keys in the result are
// treated as zero by the caller.
type ILPSolver interface {
	Solve(ctx context.Context, requestRateDist []float64) (map[v1alpha1.AcceleratorType]int, error)
}

// ILPSolverFunc adapts a plain function to the ILPSolver interface.
type ILPSolverFunc func(ctx context.Context, requestRateDist []float64) (map[v1alpha1.AcceleratorType]int, error)

func (f ILPSolverFunc) Solve(ctx context.Context, requestRateDist []float64) (map[v1alpha1.AcceleratorType]int, error) {
	return f(ctx, requestRateDist)
}

// CachedSolver decorates an ILPSolver with a call timeout and a
// last-known-good cache entry, realizing the design note that an unbounded
// solver call may be relocated to a worker and the last result cached. On
// timeout or error, the cached value is returned instead of propagating the
// failure, so a transient solver hiccup degrades to "reuse last allocation"
// rather than "no allocation". CachedSolver itself implements ILPSolver, so
// it can be handed to heterogeneous.New or assigned to
// heterogeneous.DefaultSolver in place of the solver it wraps.
type CachedSolver struct {
	inner   ILPSolver
	timeout time.Duration
	cache   *cache.Cache
	group   singleflight.Group
}

// NewCachedSolver wraps inner with a call timeout and an unexpiring
// last-good-result cache (the cache is invalidated only by a fresh
// successful call, never by TTL, since a stale allocation is still a
// better fallback than none).
func NewCachedSolver(inner ILPSolver, timeout time.Duration) *CachedSolver {
	return &CachedSolver{
		inner:   inner,
		timeout: timeout,
		cache:   cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// Solve calls the wrapped solver under a bounded context, deduplicating
// concurrent calls via singleflight. On success the result is cached; on
// timeout or error the last cached result is returned if one exists,
// satisfying the ILPSolver interface.
func (c *CachedSolver) Solve(ctx context.Context, requestRateDist []float64) (map[v1alpha1.AcceleratorType]int, error) {
	v, err, _ := c.group.Do(lastResultKey, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		type solveResult struct {
			allocation map[v1alpha1.AcceleratorType]int
			err        error
		}
		done := make(chan solveResult, 1)
		go func() {
			allocation, err := c.inner.Solve(callCtx, requestRateDist)
			done <- solveResult{allocation, err}
		}()
		select {
		case r := <-done:
			return r.allocation, r.err
		case <-callCtx.Done():
			return nil, callCtx.Err()
		}
	})
	if err == nil {
		result := v.(map[v1alpha1.AcceleratorType]int)
		c.cache.Set(lastResultKey, result, cache.NoExpiration)
		return result, nil
	}
	zap.S().Warnw("ILP solver call failed, falling back to last known allocation", "error", err)
	if cached, ok := c.cache.Get(lastResultKey); ok {
		return cached.(map[v1alpha1.AcceleratorType]int), nil
	}
	return nil, err
}

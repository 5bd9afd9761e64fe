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

// Package window implements a bounded, time-sorted sequence of request
// arrival timestamps that trims itself to a rolling cutoff on each ingest.
package window

import "sort"

// TimestampWindow holds a time-sorted slice of arrival timestamps (seconds
// since epoch). Append keeps the slice sorted, re-sorting only when a batch
// arrives out of order; TrimTo discards everything before a cutoff using a
// bisect lookup rather than a linear scan.
type TimestampWindow struct {
	timestamps []float64
}

// Append merges batch into the window. If batch isn't already sorted the
// merged slice is re-sorted; rate computation depends only on count, so
// correctness holds regardless of arrival order.
func (w *TimestampWindow) Append(batch []float64) {
	if len(batch) == 0 {
		return
	}
	if len(w.timestamps) == 0 {
		w.timestamps = append(w.timestamps, batch...)
		if !sort.Float64sAreSorted(w.timestamps) {
			sort.Float64s(w.timestamps)
		}
		return
	}
	w.timestamps = append(w.timestamps, batch...)
	if !sort.Float64sAreSorted(w.timestamps) {
		sort.Float64s(w.timestamps)
	}
}

// TrimTo discards every timestamp strictly before cutoff, keeping the
// window's invariant that every retained entry t satisfies t >= cutoff. The
// bisect lookup makes this sub-linear in the discarded prefix length.
func (w *TimestampWindow) TrimTo(cutoff float64) {
	idx := sort.Search(len(w.timestamps), func(i int) bool {
		return w.timestamps[i] >= cutoff
	})
	if idx == 0 {
		return
	}
	w.timestamps = append([]float64{}, w.timestamps[idx:]...)
}

// Len reports the number of retained timestamps.
func (w *TimestampWindow) Len() int {
	return len(w.timestamps)
}

// Rate returns the requests-per-second rate implied by the retained
// timestamps over a window of size seconds.
func (w *TimestampWindow) Rate(windowSeconds float64) float64 {
	if windowSeconds <= 0 {
		return 0
	}
	return float64(len(w.timestamps)) / windowSeconds
}

// Timestamps returns the retained timestamps. Callers must not mutate the
// returned slice.
func (w *TimestampWindow) Timestamps() []float64 {
	return w.timestamps
}

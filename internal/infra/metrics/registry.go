// Package metrics holds the in-process metrics registry: monotonic counters,
// last-write gauges and fixed-width time buckets for rate queries.
package metrics

import (
	"sync"
	"time"
)

const (
	// BucketWidth is the fixed slice width for time-partitioned counts.
	BucketWidth = time.Minute
	// bucketRetention bounds how many slices a bucket series keeps.
	bucketRetention = 60
)

// Snapshot is a point-in-time copy of all registered metrics. Bucket series
// map slice-start unix seconds to counts.
type Snapshot struct {
	Counters map[string]int64           `json:"counters"`
	Gauges   map[string]float64         `json:"gauges"`
	Buckets  map[string]map[int64]int64 `json:"buckets"`
}

// Registry is safe for concurrent use. Names are created on first use; there
// is no pre-registration.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	buckets  map[string]map[int64]int64
	clock    func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(nil)
}

func NewRegistryWithClock(clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		buckets:  make(map[string]map[int64]int64),
		clock:    clock,
	}
}

// Increment adds one to the named counter, creating it at zero first.
func (r *Registry) Increment(name string) {
	r.Add(name, 1)
}

// Add adds n to the named counter. Non-positive n is ignored so counters
// stay monotonic between resets.
func (r *Registry) Add(name string, n int64) {
	if name == "" || n <= 0 {
		return
	}
	r.mu.Lock()
	r.counters[name] += n
	r.mu.Unlock()
}

// SetGauge records the last-written value for name.
func (r *Registry) SetGauge(name string, value float64) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
}

// BucketIncrement adds one to the time slice containing ts. A zero ts means
// "now". Slices older than the retention horizon are pruned on write.
func (r *Registry) BucketIncrement(name string, ts time.Time) {
	if name == "" {
		return
	}
	if ts.IsZero() {
		ts = r.clock()
	}
	slice := ts.Truncate(BucketWidth).Unix()

	r.mu.Lock()
	series := r.buckets[name]
	if series == nil {
		series = make(map[int64]int64)
		r.buckets[name] = series
	}
	series[slice]++
	horizon := slice - int64(bucketRetention)*int64(BucketWidth/time.Second)
	for k := range series {
		if k < horizon {
			delete(series, k)
		}
	}
	r.mu.Unlock()
}

// BucketSum returns the total count for name across slices newer than
// the given window ending at now.
func (r *Registry) BucketSum(name string, window time.Duration) int64 {
	cutoff := r.clock().Add(-window).Truncate(BucketWidth).Unix()
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for slice, count := range r.buckets[name] {
		if slice >= cutoff {
			total += count
		}
	}
	return total
}

// Snapshot returns a deep copy; no caller can observe a torn read.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() Snapshot {
	out := Snapshot{
		Counters: make(map[string]int64, len(r.counters)),
		Gauges:   make(map[string]float64, len(r.gauges)),
		Buckets:  make(map[string]map[int64]int64, len(r.buckets)),
	}
	for k, v := range r.counters {
		out.Counters[k] = v
	}
	for k, v := range r.gauges {
		out.Gauges[k] = v
	}
	for name, series := range r.buckets {
		copied := make(map[int64]int64, len(series))
		for slice, count := range series {
			copied[slice] = count
		}
		out.Buckets[name] = copied
	}
	return out
}

// Reset zeroes all counters and gauges and, when alsoBuckets is set, the
// bucket series too. It returns the snapshots taken immediately before and
// after, under the same lock.
func (r *Registry) Reset(alsoBuckets bool) (before, after Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before = r.snapshotLocked()
	r.counters = make(map[string]int64)
	r.gauges = make(map[string]float64)
	if alsoBuckets {
		r.buckets = make(map[string]map[int64]int64)
	}
	after = r.snapshotLocked()
	return before, after
}

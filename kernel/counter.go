package kernel

import "sync/atomic"

// Counter_t is a monotonically increasing statistic, grounded on
// biscuit/src/stats.Counter_t. Unlike the teacher, which gates all counting
// behind a compile-time Stats flag for a multi-core, interrupt-driven
// kernel, this single-threaded configuration always counts: the volume is
// low (double-frees, retries, sync barriers) and the agentic control loop
// reads these through the namespace table's /stats rows
// (storage.NamespaceRecorder), so they
// need to always be live.
type Counter_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

// Add adds n to the counter.
func (c *Counter_t) Add(n int64) {
	atomic.AddInt64((*int64)(c), n)
}

// Get returns the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

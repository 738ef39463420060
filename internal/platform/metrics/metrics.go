package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-lifetime request counters for the /metrics endpoint. Conflicts
// count 409 responses, which is how lost races and rejected workflow transitions surface.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	conflicts       uint64
	totalDurationMs uint64
	cascades        uint64
	cascadeTouched  uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	switch status {
	case 429:
		atomic.AddUint64(&c.rateLimited, 1)
	case 409:
		atomic.AddUint64(&c.conflicts, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordCascade counts one catalog cascade and the evaluations it touched.
func (c *Collector) RecordCascade(touched int) {
	atomic.AddUint64(&c.cascades, 1)
	if touched > 0 {
		atomic.AddUint64(&c.cascadeTouched, uint64(touched))
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	conflicts := atomic.LoadUint64(&c.conflicts)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"conflictsTotal":   conflicts,
		"cascadesTotal":    atomic.LoadUint64(&c.cascades),
		"cascadeTouched":   atomic.LoadUint64(&c.cascadeTouched),
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
	}
}

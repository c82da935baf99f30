package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts HTTP traffic and workflow outcomes. A nil *Collector is
// valid and records nothing.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	conflicts        uint64
	authRejections   uint64
	validationErrors uint64
	ledgerCreated    uint64
	ledgerDuplicates uint64

	mu          sync.Mutex
	transitions map[string]uint64
}

func New() *Collector {
	return &Collector{transitions: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) Transition(to string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transitions[to]++
	c.mu.Unlock()
}

func (c *Collector) Conflict() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.conflicts, 1)
}

func (c *Collector) AuthorizationRejected() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.authRejections, 1)
}

func (c *Collector) ValidationFailed() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.validationErrors, 1)
}

func (c *Collector) Ledger(created bool) {
	if c == nil {
		return
	}
	if created {
		atomic.AddUint64(&c.ledgerCreated, 1)
		return
	}
	atomic.AddUint64(&c.ledgerDuplicates, 1)
}

func (c *Collector) Snapshot() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]uint64, len(c.transitions))
	for status, count := range c.transitions {
		transitions[status] = count
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":           total,
		"errorsTotal":             atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":        atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":           avg,
		"totalDurationMs":         totalMs,
		"transitionsTotal":        transitions,
		"conflictsTotal":          atomic.LoadUint64(&c.conflicts),
		"authorizationRejected":   atomic.LoadUint64(&c.authRejections),
		"validationFailedTotal":   atomic.LoadUint64(&c.validationErrors),
		"ledgerEntriesCreated":    atomic.LoadUint64(&c.ledgerCreated),
		"ledgerDuplicatesIgnored": atomic.LoadUint64(&c.ledgerDuplicates),
	}
}

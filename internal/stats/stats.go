// Package stats counts detection events for observability: candles
// processed, breaches, completions, and invalidations by reason. It is
// the in-process query surface; Prometheus export lives in
// internal/metrics.
package stats

import (
	"sync"

	"slobengine/internal/model"
)

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	CandlesProcessed      uint64            `json:"candles_processed"`
	BreachesDetected      uint64            `json:"breaches_detected"`
	SetupsCompleted       uint64            `json:"setups_completed"`
	SetupsInvalidated     uint64            `json:"setups_invalidated"`
	InvalidationsByReason map[string]uint64 `json:"invalidations_by_reason"`
}

// Collector accumulates detection counters. Safe for concurrent use: the
// detection loop writes, HTTP/diagnostic readers snapshot.
type Collector struct {
	mu sync.RWMutex

	candles   uint64
	breaches  uint64
	completed uint64
	byReason  map[string]uint64
}

func NewCollector() *Collector {
	return &Collector{byReason: make(map[string]uint64)}
}

// CandleProcessed records one ingested candle.
func (c *Collector) CandleProcessed() {
	c.mu.Lock()
	c.candles++
	c.mu.Unlock()
}

// BreachDetected records one LIQ-1 breach (candidate creation).
func (c *Collector) BreachDetected(model.Direction) {
	c.mu.Lock()
	c.breaches++
	c.mu.Unlock()
}

// SetupCompleted records one COMPLETE transition.
func (c *Collector) SetupCompleted(model.Setup) {
	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
}

// SetupInvalidated records one INVALIDATED transition under its reason.
func (c *Collector) SetupInvalidated(inv model.Invalidation) {
	c.mu.Lock()
	c.byReason[inv.Reason]++
	c.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		CandlesProcessed:      c.candles,
		BreachesDetected:      c.breaches,
		SetupsCompleted:       c.completed,
		InvalidationsByReason: make(map[string]uint64, len(c.byReason)),
	}
	for reason, n := range c.byReason {
		s.SetupsInvalidated += n
		s.InvalidationsByReason[reason] = n
	}
	return s
}

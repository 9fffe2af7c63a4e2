// Package dispatch hands completed setups to an order-placement backend.
//
// Dispatch is fire-and-forget from the detector's perspective: the
// detection loop sends an immutable setup onto a channel and moves to the
// next candle without waiting for acknowledgment. Idempotency is keyed by
// the candidate id, so replaying a candle archive after a crash cannot
// place the same order twice.
package dispatch

import (
	"context"
	"log"
	"sync"

	"slobengine/internal/model"
)

// Result represents the outcome of dispatching one setup.
type Result struct {
	OrderID string      `json:"order_id"`
	Status  string      `json:"status"` // PLACED, DUPLICATE, ERROR
	Message string      `json:"message"`
	Setup   model.Setup `json:"setup"`
}

// Backend places one order for one setup. Implementations own their own
// retry/backoff policy; the dispatcher never retries.
type Backend interface {
	Place(ctx context.Context, s model.Setup) (orderID string, err error)
}

// Dispatcher consumes completed setups, suppresses duplicates by
// candidate id, and forwards the rest to the backend.
type Dispatcher struct {
	backend  Backend
	resultCh chan Result

	mu   sync.Mutex
	seen map[string]bool

	// OnDuplicate is called when a setup is suppressed (metrics hook).
	OnDuplicate func(id string)
}

// New creates a Dispatcher. seed pre-marks candidate ids already
// dispatched in a previous run (loaded from the setup journal) so a
// restart + replay cannot re-place their orders.
func New(backend Backend, resultBufferSize int, seed []string) *Dispatcher {
	seen := make(map[string]bool, len(seed))
	for _, id := range seed {
		seen[id] = true
	}
	return &Dispatcher{
		backend:  backend,
		resultCh: make(chan Result, resultBufferSize),
		seen:     seen,
	}
}

// Results returns the channel of dispatch results.
func (d *Dispatcher) Results() <-chan Result {
	return d.resultCh
}

// Run consumes setups and dispatches them.
// Blocks until ctx is cancelled or setupCh is closed.
func (d *Dispatcher) Run(ctx context.Context, setupCh <-chan model.Setup) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-setupCh:
			if !ok {
				return
			}
			d.Dispatch(ctx, s)
		}
	}
}

// Dispatch places one setup, unless its candidate id was already seen.
func (d *Dispatcher) Dispatch(ctx context.Context, s model.Setup) {
	d.mu.Lock()
	if d.seen[s.ID] {
		d.mu.Unlock()
		log.Printf("[dispatch] duplicate setup suppressed id=%s", s.ID)
		if d.OnDuplicate != nil {
			d.OnDuplicate(s.ID)
		}
		d.emit(Result{Status: "DUPLICATE", Message: "already dispatched", Setup: s})
		return
	}
	d.seen[s.ID] = true
	d.mu.Unlock()

	orderID, err := d.backend.Place(ctx, s)
	if err != nil {
		log.Printf("[dispatch] backend error id=%s: %v", s.ID, err)
		d.emit(Result{Status: "ERROR", Message: err.Error(), Setup: s})
		return
	}
	d.emit(Result{OrderID: orderID, Status: "PLACED", Setup: s})
}

func (d *Dispatcher) emit(r Result) {
	select {
	case d.resultCh <- r:
	default:
		log.Printf("[dispatch] result channel full, dropping result for %s", r.Setup.ID)
	}
}

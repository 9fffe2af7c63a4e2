package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"slobengine/internal/model"
)

// Fill records a simulated order placement.
type Fill struct {
	OrderID  string      `json:"order_id"`
	Setup    model.Setup `json:"setup"`
	PlacedAt time.Time   `json:"placed_at"`
}

// PaperBackend simulates order placement without broker calls. Useful
// for backtests and paper trading.
type PaperBackend struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64
}

// NewPaperBackend creates a paper trading backend.
func NewPaperBackend() *PaperBackend {
	return &PaperBackend{fills: make([]Fill, 0, 64)}
}

// Place records the setup as filled at its entry price.
func (p *PaperBackend) Place(ctx context.Context, s model.Setup) (string, error) {
	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	p.fills = append(p.fills, Fill{OrderID: orderID, Setup: s, PlacedAt: time.Now()})
	p.mu.Unlock()

	log.Printf("[paper] %s %s entry=%.2f sl=%.2f tp=%.2f rr=%.2f order=%s",
		s.Direction, s.Symbol, s.EntryPrice, s.SLPrice, s.TPPrice, s.RiskRewardRatio, orderID)
	return orderID, nil
}

// Fills returns a snapshot of all recorded fills.
func (p *PaperBackend) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Package volatility provides the rolling average-true-range tracker used
// to normalize consolidation ranges. Update is O(1) per candle.
package volatility

import (
	"slobengine/internal/model"
)

// ATR maintains the average of the last N true-range values over a
// preallocated circular buffer. It reports Ready()==false until N true
// ranges have been observed since the last Reset; consumers must treat an
// unavailable ATR as "cannot validate range" rather than dividing by zero.
type ATR struct {
	period    int
	buf       []float64 // circular buffer of true ranges
	idx       int
	count     int
	sum       float64
	prevClose float64
	hasPrev   bool
}

// NewATR creates an ATR tracker with the given lookback period.
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{
		period: period,
		buf:    make([]float64, period),
	}
}

// Period returns the configured lookback length.
func (a *ATR) Period() int { return a.period }

// Update feeds one finalized candle.
func (a *ATR) Update(c model.Candle) {
	tr := c.TrueRange(a.prevClose, a.hasPrev)
	a.prevClose = c.Close
	a.hasPrev = true

	if a.count >= a.period {
		a.sum -= a.buf[a.idx]
	}
	a.buf[a.idx] = tr
	a.sum += tr
	a.idx = (a.idx + 1) % a.period
	a.count++
}

// Value returns the current ATR and whether it is available yet.
func (a *ATR) Value() (float64, bool) {
	if !a.Ready() {
		return 0, false
	}
	return a.sum / float64(a.period), true
}

// Ready reports whether a full lookback window has been observed.
func (a *ATR) Ready() bool { return a.count >= a.period }

// Reset clears all state. Called on day rollover so the ATR never mixes
// true ranges across trading days.
func (a *ATR) Reset() {
	a.idx = 0
	a.count = 0
	a.sum = 0
	a.prevClose = 0
	a.hasPrev = false
	for i := range a.buf {
		a.buf[i] = 0
	}
}

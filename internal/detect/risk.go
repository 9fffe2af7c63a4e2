package detect

import (
	"math"

	"slobengine/internal/model"
)

// Risk-level calculation. Both functions are pure over a single candle
// plus configured buffers, so they are bit-for-bit reproducible against a
// batch recomputation of the same candle.

// SpikeStop computes the stop-loss for a second-breach candle.
//
// If the directional wick/body ratio is STRICTLY above spikeRatio, the
// breach was a spike and the stop anchors to the body (tighter); a ratio
// of exactly spikeRatio takes the normal branch, anchored to the extreme.
// A zero-body candle with any wick counts as a spike.
func SpikeStop(c model.Candle, dir model.Direction, spikeRatio, buffer float64) float64 {
	if dir.SweepsHigh() {
		bodyTop := math.Max(c.Open, c.Close)
		if isSpike(c.High-bodyTop, c.Body(), spikeRatio) {
			return bodyTop + buffer
		}
		return c.High + buffer
	}
	bodyBottom := math.Min(c.Open, c.Close)
	if isSpike(bodyBottom-c.Low, c.Body(), spikeRatio) {
		return bodyBottom - buffer
	}
	return c.Low - buffer
}

func isSpike(wick, body, spikeRatio float64) bool {
	if body == 0 {
		return wick > 0
	}
	return wick/body > spikeRatio
}

// TakeProfit targets the opposite accumulation extremum, padded by the
// configured buffer: a short setup (high sweep) aims below the
// accumulation low, a long one above the accumulation high.
func TakeProfit(dir model.Direction, accHigh, accLow, buffer float64) float64 {
	if dir.SweepsHigh() {
		return accLow - buffer
	}
	return accHigh + buffer
}

// RiskReward returns |tp-entry| / |sl-entry|, or 0 when the stop sits on
// the entry (degenerate, but never a division by zero).
func RiskReward(entry, sl, tp float64) float64 {
	risk := math.Abs(sl - entry)
	if risk == 0 {
		return 0
	}
	return math.Abs(tp-entry) / risk
}

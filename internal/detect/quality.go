package detect

import "slobengine/internal/model"

// Consolidation quality scoring. Every scorer is a pure function over a
// snapshot of the accumulated candle sequence, with no tracker state and
// no look-ahead, so the same snapshot always yields the same score.

// Sub-score weights of the composite quality score.
const (
	weightTightness   = 0.35
	weightVolumeComp  = 0.25
	weightReadiness   = 0.20
	weightOscillation = 0.20
)

// oscillationScale maps midpoint-crossing frequency onto [0,1]: crossing
// on a third of the opportunities already scores a full 1.0.
const oscillationScale = 3.0

// QualityScore returns the weighted composite quality of a consolidation
// snapshot in [0,1]. atr must be a positive, available ATR; dir is the
// candidate's direction (the breakout side for readiness).
func QualityScore(candles []model.Candle, atr float64, dir model.Direction) float64 {
	if len(candles) == 0 {
		return 0
	}
	return weightTightness*Tightness(candles, atr) +
		weightVolumeComp*VolumeCompression(candles) +
		weightReadiness*BreakoutReadiness(candles, dir) +
		weightOscillation*Oscillation(candles)
}

// rangeOf returns the high/low bounds of a snapshot.
func rangeOf(candles []model.Candle) (high, low float64) {
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// Tightness scores the inverse of the ATR-normalized consolidation range,
// clipped to [0,1]. A range at or below one ATR scores 1.
func Tightness(candles []model.Candle, atr float64) float64 {
	if atr <= 0 {
		return 0
	}
	high, low := rangeOf(candles)
	ratio := (high - low) / atr
	if ratio <= 0 {
		return 1
	}
	return clamp01(1 / ratio)
}

// VolumeCompression scores how much volume in the later half of the
// consolidation undercuts the earlier half.
func VolumeCompression(candles []model.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	mid := len(candles) / 2
	early := avgVolume(candles[:mid])
	late := avgVolume(candles[mid:])
	if early <= 0 {
		return 0
	}
	return clamp01((early - late) / early)
}

// BreakoutReadiness scores the proximity of the last close to the
// consolidation extreme nearest the breakout direction.
func BreakoutReadiness(candles []model.Candle, dir model.Direction) float64 {
	high, low := rangeOf(candles)
	span := high - low
	if span <= 0 {
		return 1
	}
	last := candles[len(candles)-1].Close
	if dir.SweepsHigh() {
		return clamp01(1 - (high-last)/span)
	}
	return clamp01(1 - (last-low)/span)
}

// Oscillation scores the frequency of closes crossing the consolidation
// midpoint; more crossings indicate healthier range-bound behavior.
func Oscillation(candles []model.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	high, low := rangeOf(candles)
	mid := (high + low) / 2

	crossings := 0
	prevAbove := candles[0].Close >= mid
	for _, c := range candles[1:] {
		above := c.Close >= mid
		if above != prevAbove {
			crossings++
			prevAbove = above
		}
	}
	return clamp01(oscillationScale * float64(crossings) / float64(len(candles)-1))
}

func avgVolume(candles []model.Candle) float64 {
	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

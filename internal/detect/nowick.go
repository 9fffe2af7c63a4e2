package detect

import (
	"math"
	"sort"

	"slobengine/internal/model"
)

// No-wick candle detection: the candle whose directional wick (upper for
// a high sweep, lower for a low sweep) is unusually small relative to its
// body, judged against the percentile of the snapshot's own ratios.

// wickBodyRatio returns the directional wick/body ratio. A zero body with
// any wick ranks as +Inf (all wick, no body); a zero body with no wick as
// 0 (a pure doji line is as wickless as it gets).
func wickBodyRatio(c model.Candle, dir model.Direction) float64 {
	wick := c.LowerWick()
	if dir.SweepsHigh() {
		wick = c.UpperWick()
	}
	body := c.Body()
	if body == 0 {
		if wick == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return wick / body
}

// FindNoWick locates the qualifying no-wick candle in a consolidation
// snapshot: the candle with the smallest directional wick/body ratio,
// provided that ratio is strictly below the snapshot's own percentile
// value. The strictness matters: in a flat distribution (every wick
// alike) no candle is unusual, and the detector reports "not found"
// instead of electing an arbitrary one. Ties resolve to the earliest
// candle.
//
// Percentile ranking needs at least minSamples candles to be meaningful;
// below that it reports "not found" rather than a spurious match.
func FindNoWick(candles []model.Candle, dir model.Direction, percentile float64, minSamples int) (model.Candle, bool) {
	n := len(candles)
	if n < minSamples {
		return model.Candle{}, false
	}

	ratios := make([]float64, n)
	for i, c := range candles {
		ratios[i] = wickBodyRatio(c, dir)
	}

	sorted := make([]float64, n)
	copy(sorted, ratios)
	sort.Float64s(sorted)

	// Percentile value by nearest-rank on the sorted ratios.
	idx := int(percentile * float64(n))
	if idx >= n {
		idx = n - 1
	}
	cutoff := sorted[idx]

	best := -1
	for i, r := range ratios {
		if r >= cutoff {
			continue
		}
		if best == -1 || r < ratios[best] {
			best = i
		}
	}
	if best == -1 {
		return model.Candle{}, false
	}
	return candles[best], true
}

package detect

import "slobengine/internal/model"

// Liquidity breach detection. Both breaches are judged on the close so a
// long intrabar wick alone never spawns or advances a candidate.

// DetectFirstBreach checks a candle against the accumulation extrema.
// A close more than minDist beyond the accumulation high spawns a SHORT
// candidate (liquidity sweep of the highs); beyond the low, a LONG one.
func DetectFirstBreach(c model.Candle, accHigh, accLow, minDist float64) (model.Direction, bool) {
	if c.Close > accHigh+minDist {
		return model.DirectionShort, true
	}
	if c.Close < accLow-minDist {
		return model.DirectionLong, true
	}
	return "", false
}

// DetectSecondBreach checks whether a candle closes through the
// consolidation bound in the direction of the original breach.
func DetectSecondBreach(c model.Candle, consolHigh, consolLow, minDist float64, dir model.Direction) bool {
	if dir.SweepsHigh() {
		return c.Close > consolHigh+minDist
	}
	return c.Close < consolLow-minDist
}

package risk

import "math"

// StopTracker computes ATR stops for long positions.
type StopTracker struct {
	Multiplier float64
	// FallbackPercent sets the initial stop this far below entry when ATR
	// is unusable.
	FallbackPercent float64
	// StepPercent enables a hard stop that lifts the initial stop by
	// StepPercent for every StepPercent the price gains over entry, never
	// past entry. 0 disables it.
	StepPercent float64
}

// Initial returns the stop for a new position.
func (t StopTracker) Initial(buyPrice, atr float64) float64 {
	if !usable(atr) {
		return math.Max(0, buyPrice*(1-t.FallbackPercent))
	}
	return math.Max(0, buyPrice-t.Multiplier*atr)
}

// Trail returns the stop after observing price and atr. The result is never
// below prev. An unusable ATR leaves the ATR stop where it was.
func (t StopTracker) Trail(prev, entry, initial, price, atr float64) float64 {
	stop := prev
	if usable(atr) {
		stop = math.Max(stop, price-t.Multiplier*atr)
	}
	if hard, ok := t.Hard(entry, initial, price); ok {
		stop = math.Max(stop, hard)
	}
	return stop
}

// Hard returns the step stop for price, or false when disabled or the
// position is not in profit.
func (t StopTracker) Hard(entry, initial, price float64) (float64, bool) {
	if t.StepPercent <= 0 || entry <= 0 || price <= entry {
		return 0, false
	}
	tiers := math.Floor((price - entry) / entry / t.StepPercent)
	return math.Min(initial*(1+t.StepPercent*tiers), entry), true
}

// Hit reports whether price has fallen through stop.
func Hit(price, stop float64) bool {
	return price < stop
}

func usable(atr float64) bool {
	return atr > 0 && !math.IsNaN(atr) && !math.IsInf(atr, 0)
}

package scoring

import (
	"math"

	"github.com/rustyeddy/momentum/market"
)

// factor indexes the raw inputs of the model.
type factor int

const (
	fSlope factor = iota
	fPPO
	fPPOHist
	fEfficiency
	fRelativeVolume
	fPriceVolCorr
	fBandwidth

	// Zone-mapped factors are scored per symbol and never ranked.
	fEMA200Distance
	fEMA50Distance
	fRSI
	fPercentB

	numFactors
)

// rankedFactors are scored by cross-sectional percentile.
var rankedFactors = []factor{fSlope, fPPO, fPPOHist, fEfficiency, fRelativeVolume, fPriceVolCorr, fBandwidth}

type rawFactors struct {
	vals [numFactors]float64
	ok   [numFactors]bool
}

func (r *rawFactors) set(f factor, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	r.vals[f] = v
	r.ok[f] = true
}

// extract computes the raw factors of one snapshot. It only reads s and the
// config so it is safe to run concurrently.
func (c Config) extract(s market.Snapshot) rawFactors {
	var r rawFactors
	closePx, hasClose := s.Positive(market.Close)

	if v, ok := s.Get(market.EMA50Slope); ok {
		r.set(fSlope, v)
	}
	if ema, ok := s.Positive(market.EMA200); ok && hasClose && s.History >= c.MinHistoryEMA200 {
		r.set(fEMA200Distance, (closePx-ema)/ema*100)
	}
	if ema, ok := s.Positive(market.EMA50); ok && hasClose {
		r.set(fEMA50Distance, (closePx-ema)/ema*100)
	}

	if v, ok := s.Get(market.RSISignal); ok {
		r.set(fRSI, v)
	} else if v, ok := s.Get(market.RSI14); ok {
		r.set(fRSI, v)
	}
	if v, ok := s.Get(market.PPO); ok {
		r.set(fPPO, v)
	}
	if v, ok := s.Get(market.PPOHist); ok {
		r.set(fPPOHist, v)
	}

	// Return per unit of volatility.
	if roc, ok := s.Get(market.ROC20); ok && hasClose {
		if atr, ok := s.Positive(market.ATR14); ok {
			r.set(fEfficiency, roc/(atr/closePx))
		}
	}

	if vol, ok := s.Get(market.Volume); ok {
		if avg, ok := s.Positive(market.VolumeSMA20); ok {
			r.set(fRelativeVolume, vol/avg)
		}
	}
	if v, ok := s.Get(market.PriceVolCorr); ok {
		r.set(fPriceVolCorr, v)
	}

	if v, ok := s.Get(market.Bandwidth); ok {
		r.set(fBandwidth, v)
	}
	if v, ok := s.Get(market.PercentB); ok {
		r.set(fPercentB, v)
	} else if pb, ok := percentB(s, closePx, hasClose); ok {
		r.set(fPercentB, pb)
	}
	return r
}

func percentB(s market.Snapshot, closePx float64, hasClose bool) (float64, bool) {
	upper, okU := s.Get(market.BBUpper)
	lower, okL := s.Get(market.BBLower)
	if !hasClose || !okU || !okL || upper <= lower {
		return 0, false
	}
	return (closePx - lower) / (upper - lower), true
}

// groups combines factor scores into the five group sub-scores. Missing
// factors contribute 0.
func (c Config) groups(score [numFactors]float64) GroupScores {
	return GroupScores{
		Trend: c.Trend.Slope*score[fSlope] +
			c.Trend.Extension*score[fEMA200Distance] +
			c.Trend.Start*score[fEMA50Distance],
		Momentum: c.Momentum.RSI*score[fRSI] +
			c.Momentum.PPO*score[fPPO] +
			c.Momentum.PPOHist*score[fPPOHist],
		Efficiency: score[fEfficiency],
		Conviction: c.Conviction.RelativeVolume*score[fRelativeVolume] +
			c.Conviction.PriceVolCorr*score[fPriceVolCorr],
		Structure: c.Structure.Bandwidth*score[fBandwidth] +
			c.Structure.PercentB*score[fPercentB],
	}
}

func (c Config) zoneScores(r rawFactors, out *[numFactors]float64) {
	zone := func(f factor, z ZoneMap) {
		if r.ok[f] {
			out[f] = z.Score(r.vals[f])
		}
	}
	zone(fEMA200Distance, c.Zones.EMA200Distance)
	zone(fEMA50Distance, c.Zones.EMA50Distance)
	zone(fRSI, c.Zones.RSI)
	zone(fPercentB, c.Zones.PercentB)
}

package indicators

import (
	"github.com/rustyeddy/momentum/market"
)

const slopeLookback = 5

// Snapshots derives one market.Snapshot per candle. Values are only set once
// the indicator behind them has warmed up, so early snapshots are sparse.
// Candles must be a single symbol in date order.
func Snapshots(symbol string, candles []market.Candle) []market.Snapshot {
	var (
		ema12    = NewEMA(12)
		ema26    = NewEMA(26)
		ema50    = NewEMA(50)
		ema200   = NewEMA(200)
		ppoSig   = NewEMA(9)
		rsiSig   = NewEMA(3)
		atr      = NewATR(14)
		rsi      = NewRSI(14)
		bb       = NewBollinger(20, 2)
		volSMA   = NewMAOf(20, func(c market.Candle) float64 { return c.Volume })
		turnover = NewMAOf(20, market.Candle.Turnover)
		rocs     = map[string]*ROC{
			market.ROC10:  NewROC(10),
			market.ROC20:  NewROC(20),
			market.ROC60:  NewROC(60),
			market.ROC125: NewROC(125),
		}
	)

	var ema50s, atrs []float64
	out := make([]market.Snapshot, 0, len(candles))

	for i, c := range candles {
		for _, ind := range []Indicator{ema12, ema26, ema50, ema200, atr, rsi, bb, volSMA, turnover} {
			ind.Update(c)
		}
		for _, r := range rocs {
			r.Update(c)
		}

		v := map[string]float64{
			market.Close:  c.Close,
			market.Volume: c.Volume,
		}

		if ema50.Ready() {
			v[market.EMA50] = ema50.Value()
			ema50s = append(ema50s, ema50.Value())
			if n := len(ema50s); n > slopeLookback {
				prev := ema50s[n-1-slopeLookback]
				if prev != 0 {
					v[market.EMA50Slope] = (ema50.Value() - prev) / prev
				}
			}
		}
		if ema200.Ready() {
			v[market.EMA200] = ema200.Value()
		}
		if atr.Ready() {
			v[market.ATR14] = atr.Value()
			atrs = append(atrs, atr.Value())
			if n := len(atrs); n > 2 {
				v[market.ATR14Lag2] = atrs[n-3]
			}
		}
		if rsi.Ready() {
			v[market.RSI14] = rsi.Value()
			rsiSig.Add(rsi.Value())
			if rsiSig.Ready() {
				v[market.RSISignal] = rsiSig.Value()
			}
		}
		if ema26.Ready() && ema26.Value() != 0 {
			ppo := (ema12.Value() - ema26.Value()) / ema26.Value() * 100
			v[market.PPO] = ppo
			v[market.MACD] = ema12.Value() - ema26.Value()
			ppoSig.Add(ppo)
			if ppoSig.Ready() {
				v[market.PPOHist] = ppo - ppoSig.Value()
			}
		}
		if bb.Ready() {
			lower, middle, upper := bb.Bands()
			v[market.BBLower], v[market.BBMiddle], v[market.BBUpper] = lower, middle, upper
			v[market.PercentB] = bb.PercentB()
			v[market.Bandwidth] = bb.Bandwidth()
		}
		if volSMA.Ready() {
			v[market.VolumeSMA20] = volSMA.Value()
		}
		if turnover.Ready() {
			v[market.Turnover] = turnover.Value()
		}
		for name, r := range rocs {
			if r.Ready() {
				v[name] = r.Value()
			}
		}

		out = append(out, market.Snapshot{
			Symbol:  symbol,
			Date:    market.Day(c.Time),
			Close:   c.Close,
			History: i + 1,
			Values:  v,
		})
	}
	return out
}

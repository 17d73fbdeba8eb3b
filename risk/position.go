package risk

import (
	"errors"
	"math"
)

var (
	// ErrInvalidVolatility is returned when ATR is unusable and no fallback
	// percentage was supplied.
	ErrInvalidVolatility = errors.New("invalid volatility input")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidMultiplier = errors.New("stop multiplier must be positive")
)

// Inputs describe one ATR risk-parity sizing request.
type Inputs struct {
	RiskAmount     float64 // currency risked if the stop is hit
	ATR            float64 // <= 0 or NaN means unavailable
	StopMultiplier float64
	Price          float64

	// MaxPositionValue caps shares*price; 0 disables the cap.
	MaxPositionValue float64
	// FallbackPercent synthesizes an ATR from price when ATR is unusable.
	FallbackPercent float64
	// MinOneShare buys a single share when the formula floors to zero but
	// the cap still allows one.
	MinOneShare bool
}

type Result struct {
	Shares        int64
	PositionValue float64
	StopDistance  float64
	// RiskAmount is the risk actually taken: shares * stop distance.
	RiskAmount   float64
	ImpliedATR   float64
	UsedFallback bool
}

// ImpliedATR is the ATR that makes stop distance equal fallback*price.
func ImpliedATR(price, fallbackPercent, multiplier float64) float64 {
	return fallbackPercent * price / multiplier
}

// Calculate sizes a position so that a stop StopMultiplier ATRs away risks
// RiskAmount. Zero shares is a valid result meaning "skip".
func Calculate(in Inputs) (Result, error) {
	if in.Price <= 0 || math.IsNaN(in.Price) {
		return Result{}, ErrInvalidPrice
	}
	if in.StopMultiplier <= 0 {
		return Result{}, ErrInvalidMultiplier
	}

	var res Result
	atr := in.ATR
	if atr <= 0 || math.IsNaN(atr) || math.IsInf(atr, 0) {
		if in.FallbackPercent <= 0 {
			return Result{}, ErrInvalidVolatility
		}
		atr = ImpliedATR(in.Price, in.FallbackPercent, in.StopMultiplier)
		res.ImpliedATR = atr
		res.UsedFallback = true
	}

	res.StopDistance = atr * in.StopMultiplier
	shares := 0.0
	if in.RiskAmount > 0 {
		shares = math.Floor(in.RiskAmount / res.StopDistance)
	}

	if in.MaxPositionValue > 0 && shares*in.Price > in.MaxPositionValue {
		shares = math.Floor(in.MaxPositionValue / in.Price)
	}
	if shares < 1 && in.MinOneShare && (in.MaxPositionValue <= 0 || in.Price <= in.MaxPositionValue) {
		shares = 1
	}
	if shares < 0 {
		shares = 0
	}

	res.Shares = int64(shares)
	res.PositionValue = shares * in.Price
	res.RiskAmount = shares * res.StopDistance
	return res, nil
}

// Stock is a candidate for capital allocation.
type Stock struct {
	Symbol string
	Price  float64
	ATR    float64
}

// Allocation is the sizing chosen for one Stock. Err is set when the stock
// could not be sized.
type Allocation struct {
	Symbol string
	Result
	Err error
}

// Allocate sizes every stock with the same risk budget, capping each
// position at totalCapital/maxPositions. maxPositions <= 0 means no cap.
func Allocate(totalCapital, riskPerTrade, multiplier float64, maxPositions int, stocks []Stock) []Allocation {
	perPosition := 0.0
	if maxPositions > 0 {
		perPosition = totalCapital / float64(maxPositions)
	}

	out := make([]Allocation, 0, len(stocks))
	for _, s := range stocks {
		res, err := Calculate(Inputs{
			RiskAmount:       riskPerTrade,
			ATR:              s.ATR,
			StopMultiplier:   multiplier,
			Price:            s.Price,
			MaxPositionValue: perPosition,
		})
		out = append(out, Allocation{Symbol: s.Symbol, Result: res, Err: err})
	}
	return out
}

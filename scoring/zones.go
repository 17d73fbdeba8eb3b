package scoring

import (
	"fmt"
	"math"
)

// Point is one vertex of a zone curve.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// ZoneMap is a piecewise-linear score curve. Values below the first point
// score Below, values above the last point score Above. Repeating an X
// creates a step: segments are half-open [x_i, x_i+1) so the right-hand
// point of a step wins, and the final point is inclusive.
type ZoneMap struct {
	Below  float64 `json:"below" yaml:"below"`
	Points []Point `json:"points" yaml:"points"`
	Above  float64 `json:"above" yaml:"above"`
}

// Score maps x through the curve. NaN and an empty curve score 0.
func (z ZoneMap) Score(x float64) float64 {
	if len(z.Points) == 0 || math.IsNaN(x) {
		return 0
	}
	if x < z.Points[0].X {
		return z.Below
	}
	last := z.Points[len(z.Points)-1]
	if x > last.X {
		return z.Above
	}
	if x == last.X {
		return last.Y
	}

	for i := 0; i < len(z.Points)-1; i++ {
		a, b := z.Points[i], z.Points[i+1]
		if x < a.X || x >= b.X || a.X == b.X {
			continue
		}
		return a.Y + (x-a.X)*(b.Y-a.Y)/(b.X-a.X)
	}
	return last.Y
}

// Validate checks that points are ordered and every score is within [0,100].
func (z ZoneMap) Validate() error {
	if len(z.Points) == 0 {
		return fmt.Errorf("at least one point is required")
	}
	if !inRange(z.Below) || !inRange(z.Above) {
		return fmt.Errorf("below/above must be within [0,100]")
	}
	for i, p := range z.Points {
		if !inRange(p.Y) {
			return fmt.Errorf("point %d score %.2f outside [0,100]", i, p.Y)
		}
		if i > 0 && p.X < z.Points[i-1].X {
			return fmt.Errorf("point %d x=%.4f is before point %d x=%.4f", i, p.X, i-1, z.Points[i-1].X)
		}
	}
	return nil
}

func inRange(v float64) bool {
	return v >= 0 && v <= 100 && !math.IsNaN(v)
}

// Zones holds the curves for the non-linear factors.
type Zones struct {
	// EMA200Distance scores percent distance of close above the 200-EMA.
	EMA200Distance ZoneMap `json:"ema200_distance" yaml:"ema200_distance"`
	// EMA50Distance scores percent distance above the 50-EMA (trend start).
	EMA50Distance ZoneMap `json:"ema50_distance" yaml:"ema50_distance"`
	RSI           ZoneMap `json:"rsi" yaml:"rsi"`
	PercentB      ZoneMap `json:"percent_b" yaml:"percent_b"`
}

// DefaultZones returns the standard goldilocks, RSI and %B curves.
func DefaultZones() Zones {
	return Zones{
		EMA200Distance: ZoneMap{
			Below:  0,
			Points: []Point{{0, 70}, {10, 85}, {35, 100}, {50, 60}, {100, 0}},
			Above:  0,
		},
		EMA50Distance: ZoneMap{
			Below:  0,
			Points: []Point{{0, 80}, {10, 80}, {10, 100}, {40, 100}, {40, 70}, {50, 70}},
			Above:  40,
		},
		RSI: ZoneMap{
			Below:  0,
			Points: []Point{{40, 0}, {50, 30}, {70, 100}, {85, 90}},
			Above:  60,
		},
		PercentB: ZoneMap{
			Below:  20,
			Points: []Point{{0.5, 60}, {0.8, 60}, {0.8, 100}, {1.1, 100}},
			Above:  80,
		},
	}
}

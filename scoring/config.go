package scoring

import (
	"fmt"
	"math"
)

const weightTolerance = 1e-6

// Weights are the composite weights of the five factor groups.
type Weights struct {
	Trend      float64 `json:"trend" yaml:"trend"`
	Momentum   float64 `json:"momentum" yaml:"momentum"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
	Conviction float64 `json:"conviction" yaml:"conviction"`
	Structure  float64 `json:"structure" yaml:"structure"`
}

func (w Weights) Sum() float64 {
	return w.Trend + w.Momentum + w.Efficiency + w.Conviction + w.Structure
}

// TrendWeights split the trend group between 50-EMA slope rank, distance
// from the 200-EMA and distance from the 50-EMA.
type TrendWeights struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Extension float64 `json:"extension" yaml:"extension"`
	Start     float64 `json:"start" yaml:"start"`
}

type MomentumWeights struct {
	RSI     float64 `json:"rsi" yaml:"rsi"`
	PPO     float64 `json:"ppo" yaml:"ppo"`
	PPOHist float64 `json:"ppo_hist" yaml:"ppo_hist"`
}

type ConvictionWeights struct {
	RelativeVolume float64 `json:"relative_volume" yaml:"relative_volume"`
	PriceVolCorr   float64 `json:"price_vol_corr" yaml:"price_vol_corr"`
}

type StructureWeights struct {
	Bandwidth float64 `json:"bandwidth" yaml:"bandwidth"`
	PercentB  float64 `json:"percent_b" yaml:"percent_b"`
}

// Config parameterizes the factor scorer and its penalty filter.
type Config struct {
	Weights    Weights           `json:"weights" yaml:"weights"`
	Trend      TrendWeights      `json:"trend" yaml:"trend"`
	Momentum   MomentumWeights   `json:"momentum" yaml:"momentum"`
	Conviction ConvictionWeights `json:"conviction" yaml:"conviction"`
	Structure  StructureWeights  `json:"structure" yaml:"structure"`
	Zones      Zones             `json:"zones" yaml:"zones"`
	Penalty    Penalty           `json:"penalty" yaml:"penalty"`

	RankTies         TieMethod `json:"rank_ties" yaml:"rank_ties"`
	MinHistoryEMA200 int       `json:"min_history_ema200" yaml:"min_history_ema200"`
	// Workers bounds raw factor computation; 0 uses GOMAXPROCS.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// DefaultConfig returns the standard factor model.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Trend:      0.30,
			Momentum:   0.25,
			Efficiency: 0.20,
			Conviction: 0.15,
			Structure:  0.10,
		},
		Trend:            TrendWeights{Slope: 0.6, Extension: 0.2, Start: 0.2},
		Momentum:         MomentumWeights{RSI: 0.5, PPO: 0.3, PPOHist: 0.2},
		Conviction:       ConvictionWeights{RelativeVolume: 0.7, PriceVolCorr: 0.3},
		Structure:        StructureWeights{Bandwidth: 0.5, PercentB: 0.5},
		Zones:            DefaultZones(),
		Penalty:          DefaultPenalty(),
		RankTies:         TiesSymbol,
		MinHistoryEMA200: 200,
	}
}

// Validate reports the first problem found in c.
func (c Config) Validate() error {
	if err := checkWeights("group", c.Weights.Trend, c.Weights.Momentum, c.Weights.Efficiency, c.Weights.Conviction, c.Weights.Structure); err != nil {
		return err
	}
	if err := checkWeights("trend", c.Trend.Slope, c.Trend.Extension, c.Trend.Start); err != nil {
		return err
	}
	if err := checkWeights("momentum", c.Momentum.RSI, c.Momentum.PPO, c.Momentum.PPOHist); err != nil {
		return err
	}
	if err := checkWeights("conviction", c.Conviction.RelativeVolume, c.Conviction.PriceVolCorr); err != nil {
		return err
	}
	if err := checkWeights("structure", c.Structure.Bandwidth, c.Structure.PercentB); err != nil {
		return err
	}

	zones := map[string]ZoneMap{
		"zones.ema200_distance": c.Zones.EMA200Distance,
		"zones.ema50_distance":  c.Zones.EMA50Distance,
		"zones.rsi":             c.Zones.RSI,
		"zones.percent_b":       c.Zones.PercentB,
	}
	for _, name := range []string{"zones.ema200_distance", "zones.ema50_distance", "zones.rsi", "zones.percent_b"} {
		if err := zones[name].Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	switch c.RankTies {
	case TiesSymbol, TiesAverage:
	default:
		return fmt.Errorf("rank_ties must be %q or %q", TiesSymbol, TiesAverage)
	}
	if c.MinHistoryEMA200 < 0 {
		return fmt.Errorf("min_history_ema200 must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return c.Penalty.Validate()
}

func checkWeights(group string, ws ...float64) error {
	sum := 0.0
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%s weights must not be negative", group)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%s weights must sum to 1.0, got %.4f", group, sum)
	}
	return nil
}

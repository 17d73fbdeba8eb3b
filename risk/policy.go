package risk

import "fmt"

// DrawdownPolicy throttles new entries while the portfolio is under water.
type DrawdownPolicy struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// ReduceAt is the drawdown percent at which position budgets shrink.
	ReduceAt float64 `json:"reduce_at" yaml:"reduce_at"`
	// PauseAt is the drawdown percent at which new entries stop.
	PauseAt float64 `json:"pause_at" yaml:"pause_at"`
	// ExposureFactor scales position budgets while reduced.
	ExposureFactor float64 `json:"exposure_factor" yaml:"exposure_factor"`
}

// DefaultDrawdownPolicy is disabled; when enabled it reduces at 10% and
// pauses at 15%.
func DefaultDrawdownPolicy() DrawdownPolicy {
	return DrawdownPolicy{
		ReduceAt:       10,
		PauseAt:        15,
		ExposureFactor: 0.5,
	}
}

// State is the trading posture a drawdown puts the portfolio in.
type State int

const (
	Normal State = iota
	Reduced
	Paused
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Reduced:
		return "reduced"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = Normal
	case "reduced":
		*s = Reduced
	case "paused":
		*s = Paused
	default:
		return fmt.Errorf("unknown drawdown state %q", b)
	}
	return nil
}

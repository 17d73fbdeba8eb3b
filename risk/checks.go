package risk

import (
	"fmt"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Decision is the outcome of a drawdown check. Allowed is false only when
// new entries must stop; a reduced posture still allows entries at
// ExposureFactor of the usual budget.
type Decision struct {
	Allowed        bool        `json:"allowed"`
	State          State       `json:"state"`
	DrawdownPct    float64     `json:"drawdown_pct"`
	ExposureFactor float64     `json:"exposure_factor"`
	Violations     []Violation `json:"violations,omitempty"`
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
}

// Evaluate checks the current value against its running peak.
func Evaluate(p DrawdownPolicy, peak, value float64) Decision {
	d := Decision{Allowed: true, State: Normal, ExposureFactor: 1}
	d.DrawdownPct = DrawdownPct(peak, value)
	if !p.Enabled {
		return d
	}

	if p.ReduceAt > 0 && d.DrawdownPct >= p.ReduceAt {
		d.State = Reduced
		d.ExposureFactor = p.ExposureFactor
		d.add("DRAWDOWN_REDUCE",
			fmt.Sprintf("drawdown %.2f%% >= reduce threshold %.2f%%", d.DrawdownPct, p.ReduceAt))
	}
	if p.PauseAt > 0 && d.DrawdownPct >= p.PauseAt {
		d.State = Paused
		d.Allowed = false
		d.ExposureFactor = 0
		d.add("DRAWDOWN_PAUSE",
			fmt.Sprintf("drawdown %.2f%% >= pause threshold %.2f%%", d.DrawdownPct, p.PauseAt))
	}
	return d
}

// Validate reports an inconsistent policy.
func (p DrawdownPolicy) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.ReduceAt < 0 || p.PauseAt < 0 {
		return fmt.Errorf("drawdown thresholds must not be negative")
	}
	if p.ReduceAt > 0 && p.PauseAt > 0 && p.ReduceAt > p.PauseAt {
		return fmt.Errorf("drawdown reduce_at must not exceed pause_at")
	}
	if p.ExposureFactor <= 0 || p.ExposureFactor > 1 {
		return fmt.Errorf("drawdown exposure_factor must be in (0,1]")
	}
	return nil
}

package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/momentum/config"
	"github.com/rustyeddy/momentum/risk"
	"github.com/rustyeddy/momentum/scoring"
)

// ActionType is the kind of portfolio action.
type ActionType int

const (
	Buy ActionType = iota + 1
	Sell
	Swap
)

func (t ActionType) String() string {
	switch t {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case Swap:
		return "SWAP"
	default:
		return "UNKNOWN"
	}
}

func (t ActionType) MarshalText() ([]byte, error) {
	if t < Buy || t > Swap {
		return nil, fmt.Errorf("invalid action type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ActionType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "BUY":
		*t = Buy
	case "SELL":
		*t = Sell
	case "SWAP":
		*t = Swap
	default:
		return fmt.Errorf("invalid action type %q", b)
	}
	return nil
}

// ActionStatus tracks an action from proposal to execution.
type ActionStatus int

const (
	Pending ActionStatus = iota
	Approved
	Rejected
)

func (s ActionStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s ActionStatus) MarshalText() ([]byte, error) {
	if s < Pending || s > Rejected {
		return nil, fmt.Errorf("invalid action status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *ActionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = Pending
	case "approved":
		*s = Approved
	case "rejected":
		*s = Rejected
	default:
		return fmt.Errorf("invalid action status %q", b)
	}
	return nil
}

// Reason explains why an action was taken.
type Reason string

const (
	ReasonStopLoss            Reason = "stoploss"
	ReasonScoreDecay          Reason = "score_decay"
	ReasonRotation            Reason = "rotation"
	ReasonEntry               Reason = "entry"
	ReasonInsufficientCapital Reason = "insufficient_capital"
)

// Position is an open long holding. The simulator owns the live copy;
// summaries carry values.
type Position struct {
	Symbol      string    `json:"symbol"`
	Units       int64     `json:"units"`
	EntryPrice  float64   `json:"entry_price"`
	EntryDate   time.Time `json:"entry_date"`
	EntryScore  float64   `json:"entry_score"`
	EntryATR    float64   `json:"entry_atr"`
	InitialStop float64   `json:"initial_stop"`
	CurrentStop float64   `json:"current_stop"`
	LastPrice   float64   `json:"last_price"`
	LastScore   float64   `json:"last_score"`
	// BuyCosts are the transaction costs paid on entry.
	BuyCosts float64 `json:"buy_costs"`
}

func (p Position) Value() float64 { return float64(p.Units) * p.LastPrice }

// OpenRisk is the loss from entry if the current stop is hit.
func (p Position) OpenRisk() float64 {
	return risk.OpenRisk(p.Units, p.EntryPrice, p.CurrentStop)
}

// Action is one BUY, SELL or SWAP. A SWAP sells Symbol and buys
// SwapSymbol in the same step. Sell-side fields (PnL, Tax) describe the
// outgoing leg; Costs covers both legs.
type Action struct {
	ID     string       `json:"id"`
	Date   time.Time    `json:"date"`
	Type   ActionType   `json:"type"`
	Symbol string       `json:"symbol"`
	Units  int64        `json:"units"`
	Price  float64      `json:"price"`
	Reason Reason       `json:"reason"`
	Status ActionStatus `json:"status"`
	Score  float64      `json:"score"`

	SwapSymbol string  `json:"swap_symbol,omitempty"`
	SwapUnits  int64   `json:"swap_units,omitempty"`
	SwapPrice  float64 `json:"swap_price,omitempty"`
	SwapScore  float64 `json:"swap_score,omitempty"`

	PnL   float64 `json:"pnl"`
	Costs float64 `json:"costs"`
	Tax   float64 `json:"tax"`
}

// Ledger is the cash movement of one week.
type Ledger struct {
	Starting float64 `json:"starting_capital"`
	// Bought includes buy-side costs.
	Bought float64 `json:"bought"`
	// Sold is net of sell-side costs and tax.
	Sold        float64 `json:"sold"`
	Costs       float64 `json:"costs"`
	Taxes       float64 `json:"taxes"`
	CapitalRisk float64 `json:"capital_risk"`
	Remaining   float64 `json:"remaining_capital"`
}

// Balanced reports whether remaining = starting + sold - bought within
// eps.
func (l Ledger) Balanced(eps float64) bool {
	return math.Abs(l.Remaining-(l.Starting+l.Sold-l.Bought)) <= eps
}

// AnomalyKind classifies a non-fatal problem seen during a week.
type AnomalyKind string

const (
	AnomalyDataGap          AnomalyKind = "data_gap"
	AnomalyNoData           AnomalyKind = "no_data"
	AnomalyFeedError        AnomalyKind = "feed_error"
	AnomalyCapitalIntegrity AnomalyKind = "capital_integrity"
)

type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Symbol  string      `json:"symbol,omitempty"`
	Message string      `json:"message"`
}

// WeeklySummary is the committed state after one week.
type WeeklySummary struct {
	Week           int       `json:"week"`
	Date           time.Time `json:"date"`
	PortfolioValue float64   `json:"portfolio_value"`
	Ledger         Ledger    `json:"ledger"`
	Actions        []Action  `json:"actions"`
	// Candidates are the ranked entries considered this week.
	Candidates []scoring.Result `json:"candidates"`
	// Rankings is the full scored universe.
	Rankings           []scoring.Result `json:"rankings,omitempty"`
	Holdings           []Position       `json:"holdings"`
	Drawdown           risk.Decision    `json:"drawdown"`
	Anomalies          []Anomaly        `json:"anomalies,omitempty"`
	TotalReturnPercent float64          `json:"total_return_percent"`
	MaxDrawdownPercent float64          `json:"max_drawdown_percent"`
}

// Approved returns the executed actions of the week.
func (w WeeklySummary) Approved() []Action {
	var out []Action
	for _, a := range w.Actions {
		if a.Status == Approved {
			out = append(out, a)
		}
	}
	return out
}

// BacktestResult is the outcome of one simulation run.
type BacktestResult struct {
	RunID       string           `json:"run_id"`
	Strategy    config.Strategy  `json:"strategy"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Created     time.Time        `json:"created"`
	Weeks       []WeeklySummary  `json:"weeks"`
	Summary     risk.Summary     `json:"summary"`
	Performance risk.Performance `json:"performance"`
	Trades      []risk.Trade     `json:"trades"`
}

// Totals adds up the ledgers of every week.
func (r BacktestResult) Totals() Ledger {
	var t Ledger
	if len(r.Weeks) == 0 {
		t.Starting = r.Strategy.InitialCapital
		t.Remaining = t.Starting
		return t
	}
	t.Starting = r.Weeks[0].Ledger.Starting
	for _, w := range r.Weeks {
		t.Bought += w.Ledger.Bought
		t.Sold += w.Ledger.Sold
		t.Costs += w.Ledger.Costs
		t.Taxes += w.Ledger.Taxes
	}
	last := r.Weeks[len(r.Weeks)-1].Ledger
	t.CapitalRisk = last.CapitalRisk
	t.Remaining = last.Remaining
	return t
}

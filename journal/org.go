package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/portfolio"
	"github.com/rustyeddy/momentum/risk"
)

// Report is the view handed to the Org template.
type Report struct {
	Run    RunRecord
	Totals portfolio.Ledger
	Result portfolio.BacktestResult
	// Holdings are the positions open at the end of the run.
	Holdings []portfolio.Position
	Notes    []string
}

// NewReport builds the report view of a finished run.
func NewReport(r portfolio.BacktestResult) (Report, error) {
	run, err := RunFromResult(r)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Run: run, Totals: r.Totals(), Result: r}
	if n := len(r.Weeks); n > 0 {
		rep.Holdings = r.Weeks[n-1].Holdings
	}
	var anomalies, rejected int
	for _, w := range r.Weeks {
		anomalies += len(w.Anomalies)
		for _, a := range w.Actions {
			if a.Status == portfolio.Rejected {
				rejected++
			}
		}
	}
	if anomalies > 0 {
		rep.Notes = append(rep.Notes, fmt.Sprintf("%d anomalies recorded", anomalies))
	}
	if rejected > 0 {
		rep.Notes = append(rep.Notes, fmt.Sprintf("%d entries rejected", rejected))
	}
	return rep, nil
}

var orgFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(market.DateLayout) },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"trades": FormatTradesOrg,
}

var orgTemplate = template.Must(template.New("backtest").Funcs(orgFuncs).Parse(BacktestOrgTemplate))

// WriteOrg renders the report of r to w.
func WriteOrg(w io.Writer, r portfolio.BacktestResult) error {
	rep, err := NewReport(r)
	if err != nil {
		return err
	}
	return orgTemplate.Execute(w, rep)
}

// WriteOrgFile renders the report of r to path.
func WriteOrgFile(path string, r portfolio.BacktestResult) error {
	buf := new(bytes.Buffer)
	if err := WriteOrg(buf, r); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// OrgReport is a Recorder that writes the Org report when the run ends.
type OrgReport struct {
	Path string
}

func (o OrgReport) RecordWeek(context.Context, string, portfolio.WeeklySummary) error { return nil }

func (o OrgReport) RecordResult(_ context.Context, r portfolio.BacktestResult) error {
	return WriteOrgFile(o.Path, r)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Run.Strategy}} {{date .Run.Start}} .. {{date .Run.End}}
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:STRATEGY:    {{.Run.Strategy}}
:START_DATE:  {{date .Run.Start}}
:END_DATE:    {{date .Run.End}}
:WEEKS:       {{.Run.Weeks}}
:START_BAL:   {{printf "%.2f" .Run.InitialCapital}}
:END_BAL:     {{printf "%.2f" .Run.FinalValue}}
:RETURN_PCT:  {{printf "%.2f" .Run.ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .Run.MaxDDPct}}
:TRADES:      {{.Run.Trades}}
:WINS:        {{.Run.Wins}}
:HIT_RATE:    {{printf "%.2f" .Run.HitRatePct}}
:CREATED:     [{{(orTime .Run.Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter          | Value |
|--------------------+-------|
| Initial capital    | {{printf "%.2f" .Result.Strategy.InitialCapital}} |
| Risk per trade %   | {{printf "%.2f" .Result.Strategy.RiskThreshold}} |
| Max positions      | {{.Result.Strategy.MaxPositions}} |
| Buffer             | {{printf "%.2f" .Result.Strategy.BufferPercent}} |
| Swap buffer        | {{printf "%.2f" .Result.Strategy.Swap}} |
| Exit threshold     | {{printf "%.1f" .Result.Strategy.ExitThreshold}} |
| Stop ATR multiple  | {{printf "%.2f" .Result.Strategy.SLMultiplier}} |
| Rotation swaps     | {{.Result.Strategy.RotationSwaps}} |

** Performance Summary
- Return:           *{{printf "%.2f" .Run.ReturnPct}}%*
- CAGR:             *{{printf "%.2f" .Run.CAGRPct}}%*
- Max Drawdown:     *{{printf "%.2f" .Run.MaxDDPct}}%*
- Sharpe:           *{{printf "%.2f" .Run.Sharpe}}*
- Sortino:          *{{printf "%.2f" .Run.Sortino}}*
- Calmar:           *{{printf "%.2f" .Run.Calmar}}*
- Profit Factor:    *{{printf "%.2f" .Run.ProfitFactor}}*

** Capital
| Item        | Amount |
|-------------+--------|
| Bought      | {{printf "%.2f" .Totals.Bought}} |
| Sold        | {{printf "%.2f" .Totals.Sold}} |
| Costs       | {{printf "%.2f" .Totals.Costs}} |
| Taxes       | {{printf "%.2f" .Totals.Taxes}} |
| Remaining   | {{printf "%.2f" .Totals.Remaining}} |

** Weekly Values
| Week | Date       | Value | Cash | Drawdown | Actions |
|------+------------+-------+------+----------+---------|
{{- range .Result.Weeks }}
| {{.Week}} | {{date .Date}} | {{printf "%.2f" .PortfolioValue}} | {{printf "%.2f" .Ledger.Remaining}} | {{.Drawdown.State}} | {{len .Approved}} |
{{- end }}

{{- if .Holdings }}

** Open Positions
| Symbol | Units | Entry | Last | Stop |
|--------+-------+-------+------+------|
{{- range .Holdings }}
| {{.Symbol}} | {{.Units}} | {{printf "%.2f" .EntryPrice}} | {{printf "%.2f" .LastPrice}} | {{printf "%.2f" .CurrentStop}} |
{{- end }}
{{- end }}

{{- if .Result.Trades }}

** Trades
{{ trades .Run.RunID .Result.Trades }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`

// FormatTradeOrg renders a closed trade as an Org entry with its facts in a
// PROPERTIES drawer.
func FormatTradeOrg(runID string, seq int, t risk.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** %s %s (%s)\n", t.Symbol, t.Reason, shortID(runID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", runID)
	fmt.Fprintf(&b, ":SEQ: %d\n", seq)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":UNITS: %d\n", t.Units)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.2f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.2f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":ENTRY_DATE: %s\n", t.EntryDate.Format(market.DateLayout))
	fmt.Fprintf(&b, ":EXIT_DATE: %s\n", t.ExitDate.Format(market.DateLayout))
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":COSTS: %.2f\n", t.Costs)
	fmt.Fprintf(&b, ":TAX: %.2f\n", t.Tax)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTradesOrg renders every trade separated by blank lines.
func FormatTradesOrg(runID string, trades []risk.Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(runID, i, t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 12 {
		return full
	}
	return full[:12]
}

package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/metrics"
	"github.com/rustyeddy/momentum/portfolio"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate a strategy week by week over historical snapshots",
	Long: `Backtest rebalances a portfolio every Monday between --start and --end.
Each week it scores the universe, exits stopped and decayed holdings,
swaps weak holdings for stronger candidates and fills free slots with
ATR risk-parity entries.

Example:
  momentum backtest --start 2023-01-02 --end 2023-12-29 --data snapshots.csv`,
	RunE: runBacktest,
}

var (
	btStrategy string
	btStart    string
	btEnd      string
	btData     string
	btReport   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy name from the config (default momentum_strategy_one)")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "first date, YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "last date, YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btData, "data", "", "snapshot CSV; overrides feed.path")
	backtestCmd.Flags().StringVar(&btReport, "report", "", "write an Org report to this path")

	backtestCmd.MarkFlagRequired("start")
	backtestCmd.MarkFlagRequired("end")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	start, err := market.ParseDate(btStart)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := market.ParseDate(btEnd)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s", btEnd, btStart)
	}

	c := *cfg
	if btData != "" {
		c.Feed.Type = "csv"
		c.Feed.Path = btData
	}
	if btReport != "" {
		c.Journal.Report = btReport
	}
	strategy, err := c.Strategy(btStrategy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, closeFeed, err := buildFeed(&c, logger)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	defer closeFeed()

	m := metrics.New()
	scorer, err := buildScorer(&c, m, logger)
	if err != nil {
		return fmt.Errorf("scorer: %w", err)
	}
	rec, err := buildRecorder(ctx, &c)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer rec.Close()

	sim, err := portfolio.New(strategy, f, scorer, simulatorOptions(&c, rec, m, logger)...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running backtest %s with strategy: %s\n", sim.RunID(), strategy.Name)
	fmt.Fprintf(out, "  Period: %s .. %s\n", start.Format(market.DateLayout), end.Format(market.DateLayout))
	fmt.Fprintf(out, "  Capital: %.2f\n\n", strategy.InitialCapital)

	res, err := sim.Run(ctx, start, end)
	if err != nil {
		if ctx.Err() != nil && len(res.Weeks) > 0 {
			fmt.Fprintf(out, "Backtest interrupted after %d weeks\n", len(res.Weeks))
		}
		return err
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res portfolio.BacktestResult) {
	t := res.Totals()
	anomalies := 0
	for _, w := range res.Weeks {
		anomalies += len(w.Anomalies)
	}

	fmt.Fprintf(out, "✓ Backtest complete: %s\n", res.RunID)
	fmt.Fprintf(out, "  Weeks: %d\n", len(res.Weeks))
	fmt.Fprintf(out, "  Final value: %.2f (%.2f%%)\n", res.Summary.FinalValue, res.Summary.TotalReturnPercent)
	fmt.Fprintf(out, "  Max drawdown: %.2f%%\n", res.Summary.MaxDrawdownPercent)
	fmt.Fprintf(out, "  Trades: %d (hit rate %.1f%%)\n", res.Summary.TotalTrades, res.Summary.HitRatePercent)
	fmt.Fprintf(out, "  CAGR: %.2f%%  Sharpe: %.2f  Sortino: %.2f\n",
		res.Performance.CAGRPercent, res.Performance.Sharpe, res.Performance.Sortino)
	fmt.Fprintf(out, "  Bought: %.2f  Sold: %.2f  Costs: %.2f  Taxes: %.2f\n", t.Bought, t.Sold, t.Costs, t.Taxes)
	fmt.Fprintf(out, "  Cash: %.2f\n", t.Remaining)
	if anomalies > 0 {
		fmt.Fprintf(out, "  Anomalies: %d\n", anomalies)
	}
}

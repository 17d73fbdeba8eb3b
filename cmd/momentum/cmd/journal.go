package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/journal"
	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/risk"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query recorded backtest runs",
	Long: `Query runs recorded in a SQLite or Postgres journal.

Examples:
  momentum journal runs --db ./momentum.sqlite
  momentum journal trades run_01HV... --db ./momentum.sqlite --org
  momentum journal weeks run_01HV... --db ./momentum.sqlite`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "Show the closed trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalWeeksCmd = &cobra.Command{
	Use:   "weeks <run-id>",
	Short: "Show the weekly values of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalWeeks,
}

var (
	journalDBPath string
	journalOrg    bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd, journalTradesCmd, journalWeeksCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "SQLite journal; overrides journal.db_path")
	journalTradesCmd.Flags().BoolVar(&journalOrg, "org", false, "print trades as Org entries")
}

func openJournal(cmd *cobra.Command) (*journal.DB, error) {
	c := *cfg
	if journalDBPath != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = journalDBPath
	}
	return openDB(cmd.Context(), &c)
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTRATEGY\tSTART\tEND\tWEEKS\tFINAL\tRETURN%\tMAXDD%\tTRADES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%d\n",
			r.RunID, r.Strategy,
			r.Start.Format(market.DateLayout), r.End.Format(market.DateLayout),
			r.Weeks, r.FinalValue, r.ReturnPct, r.MaxDDPct, r.Trades)
	}
	return tw.Flush()
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	runID := args[0]
	if _, err := j.GetRun(cmd.Context(), runID); err != nil {
		return err
	}
	recs, err := j.ListTrades(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if journalOrg {
		trades := make([]risk.Trade, len(recs))
		for i, t := range recs {
			trades[i] = t.Trade()
		}
		fmt.Fprint(out, journal.FormatTradesOrg(runID, trades))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSYMBOL\tREASON\tUNITS\tENTRY\tEXIT\tOPENED\tCLOSED\tPNL")
	for _, t := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\t%.2f\t%s\t%s\t%.2f\n",
			t.Seq, t.Symbol, t.Reason, t.Units, t.EntryPrice, t.ExitPrice,
			t.EntryDate.Format(market.DateLayout), t.ExitDate.Format(market.DateLayout), t.PnL)
	}
	return tw.Flush()
}

func runJournalWeeks(cmd *cobra.Command, args []string) error {
	j, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	weeks, err := j.ListWeeks(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(weeks) == 0 {
		return fmt.Errorf("run %q: %w", args[0], journal.ErrNotFound)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WEEK\tDATE\tVALUE\tCASH\tRISK\tSTATE\tDD%\tRETURN%")
	for _, w := range weeks {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%s\t%.2f\t%.2f\n",
			w.Week, w.Date.Format(market.DateLayout), w.PortfolioValue, w.Remaining,
			w.CapitalRisk, w.DrawdownState, w.DrawdownPct, w.ReturnPct)
	}
	return tw.Flush()
}

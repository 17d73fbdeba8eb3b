package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/scheduler"
	"github.com/rustyeddy/momentum/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank the universe on one date",
	Long: `Score fetches the snapshot of every symbol in the feed's universe on
--date, computes the composite score with the penalty filter applied and
prints the ranking.

Example:
  momentum score --date 2024-03-08 --top 20 --data snapshots.csv`,
	RunE: runScore,
}

var (
	scoreDate string
	scoreTop  int
	scoreData string
	scoreAll  bool
	scoreJSON bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreDate, "date", "", "ranking date, YYYY-MM-DD (default today)")
	scoreCmd.Flags().IntVarP(&scoreTop, "top", "n", 0, "number of candidates; 0 uses schedule.top_n")
	scoreCmd.Flags().StringVar(&scoreData, "data", "", "snapshot CSV; overrides feed.path")
	scoreCmd.Flags().BoolVar(&scoreAll, "all", false, "print every scored symbol, not only candidates")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print the ranking as JSON")
}

func runScore(cmd *cobra.Command, args []string) error {
	date := market.Day(time.Now())
	if scoreDate != "" {
		d, err := market.ParseDate(scoreDate)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		date = d
	}

	c := *cfg
	if scoreData != "" {
		c.Feed.Type = "csv"
		c.Feed.Path = scoreData
	}
	top := scoreTop
	if top <= 0 {
		top = c.Schedule.TopN
	}

	f, closeFeed, err := buildFeed(&c, logger)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	defer closeFeed()
	scorer, err := buildScorer(&c, nil, logger)
	if err != nil {
		return err
	}

	r := &scheduler.Ranker{Feed: f, Scorer: scorer, TopN: top, Log: logger}
	ranking, err := r.Rank(cmd.Context(), date)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scoreJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ranking)
	}

	rows := ranking.Candidates
	if scoreAll {
		rows = ranking.Results
	}
	fmt.Fprintf(out, "✓ Ranked %d symbols on %s (%d candidates)\n\n",
		len(ranking.Results), date.Format(market.DateLayout), len(ranking.Candidates))
	writeRanking(out, rows)
	if len(ranking.Gaps) > 0 {
		fmt.Fprintf(out, "\nNo data: %s\n", strings.Join(ranking.Gaps, ", "))
	}
	return nil
}

func writeRanking(out io.Writer, rows []scoring.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tSCORE\tCOMPOSITE\tTREND\tMOM\tEFF\tCONV\tSTRUCT\tPENALTIES")
	for _, r := range rows {
		reasons := make([]string, len(r.Verdict.Reasons))
		for i, reason := range r.Verdict.Reasons {
			reasons[i] = string(reason)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
			r.Rank, r.Symbol, r.Score, r.Composite,
			r.Groups.Trend, r.Groups.Momentum, r.Groups.Efficiency, r.Groups.Conviction, r.Groups.Structure,
			strings.Join(reasons, ","))
	}
	tw.Flush()
}

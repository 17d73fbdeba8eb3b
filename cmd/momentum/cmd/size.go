package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/risk"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "ATR risk-parity position sizing",
	Long: `Size computes the share count that risks --risk currency units when the
stop sits --multiplier ATRs below the entry price.

With --stocks it allocates --capital across several candidates, each capped
at capital / --max-positions.

Examples:
  momentum size --price 250 --atr 5 --risk 1000
  momentum size --capital 100000 --risk 1000 --stocks INFY:1500:30,TCS:3600:60`,
	RunE: runSize,
}

var (
	szPrice        float64
	szATR          float64
	szRisk         float64
	szMultiplier   float64
	szMaxValue     float64
	szFallback     float64
	szMinOne       bool
	szCapital      float64
	szMaxPositions int
	szStocks       string
	szADV          float64
)

func init() {
	rootCmd.AddCommand(sizeCmd)

	sizeCmd.Flags().Float64Var(&szPrice, "price", 0, "entry price")
	sizeCmd.Flags().Float64Var(&szATR, "atr", 0, "ATR(14); 0 uses --fallback")
	sizeCmd.Flags().Float64Var(&szRisk, "risk", 1000, "currency risked per position")
	sizeCmd.Flags().Float64Var(&szMultiplier, "multiplier", 2, "stop distance in ATRs")
	sizeCmd.Flags().Float64Var(&szMaxValue, "max-value", 0, "cap on position value; 0 disables")
	sizeCmd.Flags().Float64Var(&szFallback, "fallback", 0.06, "stop distance as a fraction of price when ATR is unusable")
	sizeCmd.Flags().BoolVar(&szMinOne, "min-one", false, "buy one share when the formula floors to zero")
	sizeCmd.Flags().Float64Var(&szCapital, "capital", 100000, "total capital for --stocks")
	sizeCmd.Flags().IntVar(&szMaxPositions, "max-positions", 15, "positions sharing --capital")
	sizeCmd.Flags().StringVar(&szStocks, "stocks", "", "SYMBOL:PRICE:ATR list, comma separated")
	sizeCmd.Flags().Float64Var(&szADV, "adv", 0, "average daily traded value; prints the round-trip cost when set")
}

func runSize(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if szStocks != "" {
		stocks, err := parseStocks(szStocks)
		if err != nil {
			return err
		}
		allocs := risk.Allocate(szCapital, szRisk, szMultiplier, szMaxPositions, stocks)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tSHARES\tVALUE\tSTOP DIST\tRISK\tNOTE")
		total := 0.0
		for _, a := range allocs {
			if a.Err != nil {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", a.Symbol, a.Err)
				continue
			}
			total += a.PositionValue
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t\n", a.Symbol, a.Shares, a.PositionValue, a.StopDistance, a.RiskAmount)
		}
		tw.Flush()
		fmt.Fprintf(out, "\n✓ Allocated %.2f of %.2f\n", total, szCapital)
		return nil
	}

	if szPrice <= 0 {
		return fmt.Errorf("--price is required")
	}
	res, err := risk.Calculate(risk.Inputs{
		RiskAmount:       szRisk,
		ATR:              szATR,
		StopMultiplier:   szMultiplier,
		Price:            szPrice,
		MaxPositionValue: szMaxValue,
		FallbackPercent:  szFallback,
		MinOneShare:      szMinOne,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Shares: %d\n", res.Shares)
	fmt.Fprintf(out, "  Position value: %.2f\n", res.PositionValue)
	fmt.Fprintf(out, "  Stop: %.2f (distance %.2f)\n", szPrice-res.StopDistance, res.StopDistance)
	fmt.Fprintf(out, "  Risk: %.2f\n", res.RiskAmount)
	if res.UsedFallback {
		fmt.Fprintf(out, "  ATR fallback: %.4f\n", res.ImpliedATR)
	}
	if szADV > 0 && res.PositionValue > 0 {
		rt := cfg.Costs.RoundTrip(res.PositionValue, res.PositionValue/szADV, cfg.Impact)
		fmt.Fprintf(out, "  Round trip: %.2f (%.3f%%, impact %.2f)\n", rt.Total, rt.Percent, rt.Impact)
	}
	return nil
}

func parseStocks(s string) ([]risk.Stock, error) {
	var out []risk.Stock
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("stock %q: want SYMBOL:PRICE:ATR", item)
		}
		price, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("stock %q price: %w", item, err)
		}
		atr, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("stock %q atr: %w", item, err)
		}
		out = append(out, risk.Stock{Symbol: parts[0], Price: price, ATR: atr})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--stocks is empty")
	}
	return out, nil
}

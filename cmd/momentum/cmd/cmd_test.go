package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/momentum/journal"
	"github.com/rustyeddy/momentum/market"
)

// execute runs the root command with args after restoring every flag to
// its default. Commands share package state, so these tests are serial.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfgPath, envFile = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// writeSnapshots writes weekly snapshots of three liquid symbols, AAA
// strongest, across the four Mondays of January 2024.
func writeSnapshots(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("symbol,date,close,history,volume,volume_sma_20,ema_50,ema_200,ema_50_slope,rsi_14,ppo,ppo_hist,roc_20,atr_14,atr_14_lag2,price_vol_corr,bandwidth,percent_b,turnover\n")
	strength := map[string]float64{"AAA": 40, "BBB": 20, "CCC": 5}
	for week := 0; week < 4; week++ {
		date := time.Date(2024, 1, 1+7*week, 0, 0, 0, 0, time.UTC)
		for _, sym := range []string{"AAA", "BBB", "CCC"} {
			s := strength[sym]
			closePx := 100 + s + float64(week)
			fmt.Fprintf(&b, "%s,%s,%.2f,300,%.0f,1000000,100,95,%.4f,%.2f,%.2f,%.2f,%.2f,2,2,%.2f,%.4f,0.9,100000000\n",
				sym, date.Format(market.DateLayout), closePx,
				1_000_000*(1+s/100), s/1000, 50+s/5, s/10, s/20, s/4, s/100, 0.1+s/1000)
		}
	}
	path := filepath.Join(t.TempDir(), "snapshots.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "momentum.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Created default configuration")
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid")
	assert.Contains(t, out, "momentum_strategy_one")

	_, err = execute(t, "config", "validate")
	assert.Error(t, err, "--file is required")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  type: mongo\n"), 0o644))

	_, err := execute(t, "config", "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal.type")
}

func TestRootLoadsConfigAndEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("MOMENTUM_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv("MOMENTUM_LOG_LEVEL", "")
	os.Unsetenv("MOMENTUM_LOG_LEVEL")

	_, err := execute(t, "--env", env, "version")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = execute(t, "--log-format", "xml", "version")
	assert.Error(t, err)
}

func TestSizeSingle(t *testing.T) {
	out, err := execute(t, "size", "--price", "250", "--atr", "5", "--risk", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Shares: 100")
	assert.Contains(t, out, "Stop: 240.00 (distance 10.00)")

	out, err = execute(t, "size", "--price", "100", "--risk", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Shares: 100")
	assert.Contains(t, out, "ATR fallback")
	assert.NotContains(t, out, "Round trip")

	// 25000 of 1,000,000 ADV is 2.5%, the 15bps tier: impact 2 * 25000 * 0.0015.
	out, err = execute(t, "size", "--price", "250", "--atr", "5", "--adv", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "impact 75.00")

	_, err = execute(t, "size")
	assert.Error(t, err)
}

func TestSizeAllocate(t *testing.T) {
	out, err := execute(t, "size", "--capital", "100000", "--max-positions", "10", "--risk", "1000",
		"--stocks", "AAA:100:5,BBB:50:0,CCC:2000:10")
	require.NoError(t, err)
	assert.Contains(t, out, "AAA")
	assert.Contains(t, out, "invalid volatility")
	assert.Contains(t, out, "✓ Allocated")

	_, err = execute(t, "size", "--stocks", "AAA:x:1")
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	data := writeSnapshots(t)

	out, err := execute(t, "score", "--data", data, "--date", "2024-01-22", "--top", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Ranked 3 symbols on 2024-01-22")
	lines := strings.Split(out, "\n")
	var first string
	for i, l := range lines {
		if strings.HasPrefix(l, "RANK") && i+1 < len(lines) {
			first = lines[i+1]
			break
		}
	}
	assert.Contains(t, first, "AAA")

	out, err = execute(t, "score", "--data", data, "--date", "2024-01-22", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"symbol": "AAA"`)
}

func TestBacktestRecordsToSQLite(t *testing.T) {
	data := writeSnapshots(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "momentum.sqlite")
	report := filepath.Join(dir, "run.org")
	t.Setenv("MOMENTUM_DB_PATH", db)

	out, err := execute(t, "backtest", "--data", data, "--start", "2024-01-01", "--end", "2024-01-28", "--report", report)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Backtest complete")
	assert.Contains(t, out, "Weeks: 4")
	assert.FileExists(t, report)

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Weeks)
	runID := runs[0].RunID

	out, err = execute(t, "journal", "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, runID)

	out, err = execute(t, "journal", "weeks", runID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-22")

	_, err = execute(t, "journal", "trades", "run_missing", "--db", db)
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestBacktestFlags(t *testing.T) {
	_, err := execute(t, "backtest", "--start", "2024-01-01")
	assert.Error(t, err)

	data := writeSnapshots(t)
	_, err = execute(t, "backtest", "--data", data, "--start", "2024-02-01", "--end", "2024-01-01")
	assert.Error(t, err)

	_, err = execute(t, "backtest", "--data", data, "--start", "2024-01-01", "--end", "2024-01-28", "--strategy", "nope")
	assert.Error(t, err)
}

func TestJournalNeedsSQL(t *testing.T) {
	_, err := execute(t, "journal", "runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be queried")
}

package journal

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{weekHeader}, readCSV(t, filepath.Join(dir, "weeks.csv")))
	assert.Equal(t, [][]string{actionHeader}, readCSV(t, filepath.Join(dir, "actions.csv")))
	assert.Equal(t, [][]string{tradeHeader}, readCSV(t, filepath.Join(dir, "trades.csv")))
}

func TestCSVJournalRecordRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	ctx := context.Background()
	r := sampleResult()
	for _, w := range r.Weeks {
		require.NoError(t, j.RecordWeek(ctx, r.RunID, w))
	}
	require.NoError(t, j.RecordResult(ctx, r))
	require.NoError(t, j.Close())

	weeks := readCSV(t, filepath.Join(dir, "weeks.csv"))
	require.Len(t, weeks, 3)
	assert.Equal(t, r.RunID, weeks[1][0])
	assert.Equal(t, "1", weeks[1][1])
	assert.Equal(t, "2024-01-01", weeks[1][2])
	assert.Equal(t, "90000.000000", weeks[1][10])
	assert.Equal(t, "1", weeks[2][14])

	actions := readCSV(t, filepath.Join(dir, "actions.csv"))
	require.Len(t, actions, 4)
	assert.Equal(t, "A1", actions[1][1])
	assert.Equal(t, "BUY", actions[1][5])
	assert.Equal(t, "SELL", actions[2][5])
	assert.Equal(t, "stoploss", actions[2][9])
	assert.Equal(t, "rejected", actions[3][10])

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 2)
	assert.Equal(t, []string{
		r.RunID, "AAA", "stoploss", "100", "100.000000", "85.000000",
		"2024-01-01", "2024-01-08", "-1500.000000", "0.000000", "0.000000",
	}, trades[1])
}

func TestCSVJournalBadDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewCSV(filepath.Join(file, "sub"))
	assert.Error(t, err)
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.500000", f(1.5))
	assert.Equal(t, "-0.000001", f(-0.000001))
	assert.Equal(t, "0.000000", f(0))
}

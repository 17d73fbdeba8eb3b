package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/momentum/market"
)

// ReadSnapshots reads snapshot CSV rows:
//
//	symbol,date,close[,history],<indicator>...
//
// The header row is required; indicator columns are named with the
// market constants (ema_200, atr_14, ...). Empty cells are missing values.
// Rows without a symbol or date are skipped.
func ReadSnapshots(r io.Reader) ([]market.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if len(cols) < 3 || cols[0] != "symbol" || cols[1] != "date" {
		return nil, fmt.Errorf("snapshot csv: header must start with symbol,date; got %q", header)
	}

	var out []market.Snapshot
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		s, ok, err := parseSnapshotRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("snapshot csv line %d: %w", line, err)
		}
		if ok {
			out = append(out, s)
		}
	}
}

func parseSnapshotRow(cols, row []string) (market.Snapshot, bool, error) {
	if len(row) < 2 {
		return market.Snapshot{}, false, nil
	}
	sym := strings.TrimSpace(row[0])
	ds := strings.TrimSpace(row[1])
	if sym == "" || ds == "" {
		return market.Snapshot{}, false, nil
	}
	date, err := parseDate(ds)
	if err != nil {
		return market.Snapshot{}, false, err
	}

	s := market.Snapshot{Symbol: sym, Date: date, Values: make(map[string]float64)}
	for i := 2; i < len(row) && i < len(cols); i++ {
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		if cols[i] == "history" {
			n, err := strconv.Atoi(cell)
			if err != nil {
				return market.Snapshot{}, false, fmt.Errorf("bad history %q: %w", cell, err)
			}
			s.History = n
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return market.Snapshot{}, false, fmt.Errorf("bad %s %q: %w", cols[i], cell, err)
		}
		if math.IsNaN(v) {
			continue
		}
		if cols[i] == market.Close {
			s.Close = v
		}
		s.Values[cols[i]] = v
	}
	return s, true, nil
}

// ReadBars reads daily OHLCV rows for one symbol:
//
//	date,open,high,low,close,volume
//
// A header row ("date,...") is allowed. Empty/short rows are skipped.
// Bars are returned in date order.
func ReadBars(r io.Reader, symbol string) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []market.Candle
	sawFirst := false
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}

		c, ok, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		if !ok {
			continue
		}
		c.Symbol = symbol
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func parseBarRow(row []string) (market.Candle, bool, error) {
	// Need at least: date,open,high,low,close,volume
	if len(row) < 6 {
		return market.Candle{}, false, nil
	}
	ds := strings.TrimSpace(row[0])
	if ds == "" {
		return market.Candle{}, false, nil
	}
	t, err := parseDate(ds)
	if err != nil {
		return market.Candle{}, false, err
	}

	var f [5]float64
	for i := range f {
		cell := strings.TrimSpace(row[i+1])
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return market.Candle{}, false, fmt.Errorf("bad value %q: %w", cell, err)
		}
		f[i] = v
	}
	return market.Candle{Time: t, Open: f[0], High: f[1], Low: f[2], Close: f[3], Volume: f[4]}, true, nil
}

// Accept YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := market.ParseDate(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return market.Day(t), nil
}

// LoadSnapshotsFile reads a snapshot CSV into a new Memory feed.
func LoadSnapshotsFile(path string, maxStaleDays int) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snaps, err := ReadSnapshots(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m := NewMemory(maxStaleDays)
	m.Add(snaps...)
	return m, nil
}

// LoadBarsDir reads every SYMBOL.csv bar file in dir and derives its
// snapshots.
func LoadBarsDir(dir string, maxStaleDays int) (*Memory, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no bar files in %s", dir)
	}
	sort.Strings(paths)

	m := NewMemory(maxStaleDays)
	for _, p := range paths {
		symbol := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		bars, err := ReadBars(f, symbol)
		f.Close()
		if err != nil {
			return nil, err
		}
		m.AddBars(symbol, bars)
	}
	return m, nil
}

package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/momentum/indicators"
	"github.com/rustyeddy/momentum/market"
)

// Memory is an in-process DataFeed. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	series   map[string][]market.Snapshot
	maxStale time.Duration
}

// NewMemory returns an empty feed. maxStaleDays 0 uses the default and a
// negative value disables the bound.
func NewMemory(maxStaleDays int) *Memory {
	return &Memory{
		series:   make(map[string][]market.Snapshot),
		maxStale: staleness(maxStaleDays),
	}
}

// Add stores snapshots, replacing any existing one for the same symbol and
// day.
func (m *Memory) Add(snaps ...market.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range snaps {
		s.Date = market.Day(s.Date)
		ser := m.series[s.Symbol]
		i := sort.Search(len(ser), func(i int) bool { return !ser[i].Date.Before(s.Date) })
		switch {
		case i < len(ser) && ser[i].Date.Equal(s.Date):
			ser[i] = s
		default:
			ser = append(ser, market.Snapshot{})
			copy(ser[i+1:], ser[i:])
			ser[i] = s
		}
		m.series[s.Symbol] = ser
	}
}

// AddBars derives snapshots from daily bars and stores them.
func (m *Memory) AddBars(symbol string, bars []market.Candle) {
	m.Add(indicators.Snapshots(symbol, bars)...)
}

// Symbols lists every symbol held, sorted.
func (m *Memory) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.series))
	for sym := range m.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Span returns the first and last dates held across all symbols.
func (m *Memory) Span() (first, last time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ser := range m.series {
		if len(ser) == 0 {
			continue
		}
		if f := ser[0].Date; first.IsZero() || f.Before(first) {
			first = f
		}
		if l := ser[len(ser)-1].Date; l.After(last) {
			last = l
		}
	}
	return first, last
}

func (m *Memory) asOf(symbol string, date time.Time) (market.Snapshot, bool) {
	date = market.Day(date)
	ser := m.series[symbol]
	i := sort.Search(len(ser), func(i int) bool { return ser[i].Date.After(date) })
	if i == 0 {
		return market.Snapshot{}, false
	}
	s := ser[i-1]
	if m.maxStale >= 0 && date.Sub(s.Date) > m.maxStale {
		return market.Snapshot{}, false
	}
	return s, true
}

// Universe returns the symbols with a fresh enough snapshot on date.
func (m *Memory) Universe(_ context.Context, date time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for sym := range m.series {
		if _, ok := m.asOf(sym, date); ok {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Snapshot(_ context.Context, symbol string, date time.Time) (market.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.asOf(symbol, date)
	return s, ok, nil
}

// Price is the close of the as-of snapshot.
func (m *Memory) Price(_ context.Context, symbol string, date time.Time) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.asOf(symbol, date)
	if !ok || s.Close <= 0 {
		return 0, false, nil
	}
	return s.Close, true, nil
}

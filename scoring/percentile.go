package scoring

import (
	"sort"
)

// TieMethod selects how equal factor values are ranked.
type TieMethod string

const (
	// TiesSymbol breaks ties in favour of the alphabetically earlier symbol.
	TiesSymbol TieMethod = "symbol"
	// TiesAverage gives equal values their mean rank.
	TiesAverage TieMethod = "average"
)

// PercentileRanks ranks each value against the rest of the map. The lowest
// value gets 100/N, the highest 100. Only symbols present in values are
// ranked; callers leave out symbols without valid data.
func PercentileRanks(values map[string]float64, ties TieMethod) map[string]float64 {
	n := len(values)
	out := make(map[string]float64, n)
	if n == 0 {
		return out
	}

	symbols := make([]string, 0, n)
	for s := range values {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		vi, vj := values[symbols[i]], values[symbols[j]]
		if vi != vj {
			return vi < vj
		}
		// Among equal values the earlier symbol ranks higher, matching
		// the final score ordering.
		return symbols[i] > symbols[j]
	})

	total := float64(n)
	for i := 0; i < n; {
		j := i
		if ties == TiesAverage {
			for j+1 < n && values[symbols[j+1]] == values[symbols[i]] {
				j++
			}
		}
		// 1-based ranks i+1..j+1 share their mean.
		rank := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			out[symbols[k]] = rank / total * 100
		}
		i = j + 1
	}
	return out
}

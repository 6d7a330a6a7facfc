package stats

import (
	"math"
	"sort"
)

// Summary holds the aggregates of a cohort's total scores.
type Summary struct {
	Count   int
	Mean    float64
	Highest float64
	Lowest  float64
}

// Summarize computes the count, mean (rounded to 2 decimals), highest and lowest of totals.
func Summarize(totals []float64) Summary {
	if len(totals) == 0 {
		return Summary{}
	}
	sum := 0.0
	highest, lowest := totals[0], totals[0]
	for _, t := range totals {
		sum += t
		if t > highest {
			highest = t
		}
		if t < lowest {
			lowest = t
		}
	}
	return Summary{
		Count:   len(totals),
		Mean:    Round2(sum / float64(len(totals))),
		Highest: highest,
		Lowest:  lowest,
	}
}

// Rank returns the position of each total, in input order, using standard competition
// ranking: the highest total is 1, equal totals share a position and the next distinct
// total skips accordingly ([90 90 85 70] -> [1 1 3 4]).
func Rank(totals []float64) []int {
	order := make([]int, len(totals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return totals[order[a]] > totals[order[b]] })

	positions := make([]int, len(totals))
	for i, idx := range order {
		if i > 0 && totals[idx] == totals[order[i-1]] {
			positions[idx] = positions[order[i-1]]
			continue
		}
		positions[idx] = i + 1
	}
	return positions
}

// Round2 rounds x to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// sortPositions orders by position, then by student so ties read the same every time.
func sortPositions(positions []Position) {
	sort.SliceStable(positions, func(a, b int) bool {
		if positions[a].Position != positions[b].Position {
			return positions[a].Position < positions[b].Position
		}
		return positions[a].StudentID < positions[b].StudentID
	})
}

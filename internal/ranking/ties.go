package ranking

import (
	"math"
	"sort"

	"placement-workers/internal/models"
)

// Direction says which end of the score range wins.
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

// Scored is a raw score waiting for a rank.
type Scored struct {
	CommunityID int
	Score       float64
	Reason      string
}

// AssignRanks sorts scored in direction and gives each run of scores that lie within
// tolerance of the run's first score the mean of the positions the run covers. Equal
// scores keep their input order. The returned slice is in rank order.
func AssignRanks(dimension string, scored []Scored, tolerance float64, direction Direction) []RankResult {
	sorted := make([]Scored, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		if direction == HigherIsBetter {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Score < sorted[j].Score
	})

	results := make([]RankResult, len(sorted))
	for i := 0; i < len(sorted); {
		first := sorted[i].Score
		j := i
		for j < len(sorted) && sameScore(sorted[j].Score, first, tolerance) {
			j++
		}

		// positions i+1..j averaged
		mean := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			results[k] = RankResult{
				Dimension:   dimension,
				CommunityID: sorted[k].CommunityID,
				Rank:        mean,
				Score:       sorted[k].Score,
				Reason:      sorted[k].Reason,
				Method:      MethodRule,
			}
		}
		i = j
	}
	return results
}

func sameScore(a, b, tolerance float64) bool {
	return a == b || math.Abs(a-b) < tolerance
}

// FallbackRanks ranks candidates 1..N in the order given.
func FallbackRanks(dimension string, candidates []models.Community) []RankResult {
	results := make([]RankResult, len(candidates))
	for i, c := range candidates {
		results[i] = RankResult{
			Dimension:   dimension,
			CommunityID: c.CommunityID,
			Rank:        float64(i + 1),
			Score:       float64(i + 1),
			Reason:      FallbackReason,
			Method:      MethodFallback,
		}
	}
	return results
}

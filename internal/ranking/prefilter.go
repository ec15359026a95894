package ranking

import (
	"sort"

	"placement-workers/internal/models"
)

// unrankedMean sorts candidates no rule dimension ranked behind all others.
const unrankedMean = 9999.0

// Prefilter keeps the k candidates with the lowest mean rank across ruleResults. A
// dimension that has no result for a candidate is left out of that candidate's mean.
// Ties keep input order, and the shortlist is returned in input order so fallback
// ranks stay aligned with the upstream ordering.
func Prefilter(candidates []models.Community, ruleResults Results, k int) []models.Community {
	if k <= 0 || len(candidates) <= k {
		out := make([]models.Community, len(candidates))
		copy(out, candidates)
		return out
	}

	ranksByID := make(map[int][]float64, len(candidates))
	for _, results := range ruleResults {
		seen := make(map[int]bool, len(results))
		for _, rr := range results {
			if seen[rr.CommunityID] {
				continue
			}
			seen[rr.CommunityID] = true
			ranksByID[rr.CommunityID] = append(ranksByID[rr.CommunityID], rr.Rank)
		}
	}

	means := make([]float64, len(candidates))
	order := make([]int, len(candidates))
	for i, c := range candidates {
		order[i] = i
		means[i] = unrankedMean
		if ranks := ranksByID[c.CommunityID]; len(ranks) > 0 {
			sum := 0.0
			for _, r := range ranks {
				sum += r
			}
			means[i] = sum / float64(len(ranks))
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return means[order[a]] < means[order[b]]
	})

	keep := make([]bool, len(candidates))
	for _, idx := range order[:k] {
		keep[idx] = true
	}

	out := make([]models.Community, 0, k)
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

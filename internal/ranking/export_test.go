package ranking

import (
	"encoding/json"
	"testing"
	"time"

	"placement-workers/internal/common/config"
	"placement-workers/internal/geo"
	"placement-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestExport(t *testing.T) {
	engine := NewEngine(Dimensions{}, Options{Weights: map[string]float64{config.DimensionDistance: 2}}, newTestLogger(t))
	engine.now = fixedClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("EST", -5*3600)))

	rankings := []CommunityRanking{
		{
			CommunityID:   7,
			CommunityName: "Maple Court",
			FinalRank:     1,
			CombinedScore: 6.3333,
			Ranks:         map[string]float64{config.DimensionDistance: 1, config.DimensionHolistic: 2},
			Reasons: map[string]string{
				config.DimensionDistance: "3.10 miles",
				config.DimensionHolistic: "Close and open now",
			},
			MonthlyFee:    4100,
			DistanceMiles: 3.104,
			EstWaitlist:   "Available",
		},
		{
			CommunityID:   3,
			CommunityName: "Elm House",
			FinalRank:     2,
			CombinedScore: 9,
			Ranks:         map[string]float64{config.DimensionDistance: 2},
			Reasons:       map[string]string{config.DimensionDistance: "12.00 miles"},
			MonthlyFee:    3900,
			DistanceMiles: 12,
		},
	}
	req := models.ClientRequirement{CareLevel: "assisted", Budget: 5000, Timeline: models.TimelineImmediate}

	exp := engine.Export(rankings, req)

	assert.Equal(t, "Unknown", exp.ClientInfo.ClientName)
	assert.Equal(t, "2026-03-14T14:30:00Z", exp.ClientInfo.ProcessedDate)
	assert.Equal(t, 2.0, exp.RankingWeights[config.DimensionDistance])
	assert.Equal(t, 1.0, exp.RankingWeights[config.DimensionAmenity])

	require.Len(t, exp.Recommendations, 2)
	top := exp.Recommendations[0]
	assert.Equal(t, 1, top.FinalRank)
	assert.Equal(t, 6.33, top.CombinedRankScore)
	assert.Equal(t, 3.1, top.KeyMetrics.DistanceMiles)
	assert.Equal(t, map[string]float64{"distance_rank": 1, "holistic_rank": 2}, top.Rankings)
	assert.Equal(t, "Close and open now", top.Explanations["holistic_reason"])

	assert.Equal(t, 2, exp.Summary.TotalMatches)
	assert.Equal(t, 4000.0, exp.Summary.AvgMonthlyFee)
	assert.Equal(t, 7.55, exp.Summary.AvgDistanceMiles)
	assert.Equal(t, "Maple Court", exp.Summary.TopRecommendation)
	assert.Equal(t, "Close and open now", exp.Summary.TopRecommendationReason)
	assert.Empty(t, exp.Summary.Message)
}

func TestExport_DocumentKeys(t *testing.T) {
	engine := NewEngine(Dimensions{}, Options{}, newTestLogger(t))

	ranks := map[string]float64{
		config.DimensionBusinessValue:  1,
		config.DimensionTotalCost:      2,
		config.DimensionDistance:       3,
		config.DimensionBudget:         4,
		config.DimensionSecondOccupant: 5,
		config.DimensionAvailability:   6,
		config.DimensionAmenity:        7,
		config.DimensionHolistic:       8,
		"walkability":                  9,
	}
	reasons := make(map[string]string, len(ranks))
	for dimension := range ranks {
		reasons[dimension] = dimension
	}
	rankings := []CommunityRanking{{CommunityID: 1, FinalRank: 1, Ranks: ranks, Reasons: reasons, DistanceMiles: 2}}

	rec := engine.Export(rankings, models.ClientRequirement{}).Recommendations[0]

	assert.Equal(t, map[string]float64{
		"business_rank":          1,
		"total_cost_rank":        2,
		"distance_rank":          3,
		"budget_efficiency_rank": 4,
		"couple_rank":            5,
		"availability_rank":      6,
		"amenity_rank":           7,
		"holistic_rank":          8,
		"walkability_rank":       9,
	}, rec.Rankings)
	assert.Equal(t, config.DimensionSecondOccupant, rec.Explanations["couple_reason"])
	assert.Equal(t, config.DimensionAmenity, rec.Explanations["amenity_reason"])
	assert.Equal(t, config.DimensionBusinessValue, rec.Explanations["business_reason"])
	assert.Len(t, rec.Explanations, 9)
}

func TestExport_AverageSkipsUnknownDistances(t *testing.T) {
	engine := NewEngine(Dimensions{}, Options{}, newTestLogger(t))

	rankings := []CommunityRanking{
		{CommunityID: 1, FinalRank: 1, Ranks: map[string]float64{config.DimensionTotalCost: 1}, DistanceMiles: 4},
		{CommunityID: 2, FinalRank: 2, Ranks: map[string]float64{config.DimensionTotalCost: 2}, DistanceMiles: geo.UnknownDistance},
		{CommunityID: 3, FinalRank: 3, Ranks: map[string]float64{config.DimensionTotalCost: 3}, DistanceMiles: 6},
	}
	exp := engine.Export(rankings, models.ClientRequirement{})
	assert.Equal(t, 5.0, exp.Summary.AvgDistanceMiles)
	assert.Equal(t, geo.UnknownDistance, exp.Recommendations[1].KeyMetrics.DistanceMiles)

	exp = engine.Export(rankings[1:2], models.ClientRequirement{})
	assert.Equal(t, geo.UnknownDistance, exp.Summary.AvgDistanceMiles)
}

func TestExport_NoMatches(t *testing.T) {
	engine := NewEngine(Dimensions{}, Options{}, newTestLogger(t))

	exp := engine.Export(nil, models.ClientRequirement{ClientName: "R. Alvarez"})

	assert.Equal(t, "R. Alvarez", exp.ClientInfo.ClientName)
	assert.Equal(t, 0, exp.Summary.TotalMatches)
	assert.Equal(t, NoMatchesMessage, exp.Summary.Message)
	assert.NotNil(t, exp.Recommendations)

	b, err := json.Marshal(exp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"recommendations":[]`)
	assert.NotContains(t, string(b), `"performance"`)
}

func TestPassPerformance(t *testing.T) {
	pass := &Pass{
		CandidateCount: 14,
		ShortlistCount: 10,
		PhaseDurations: map[string]time.Duration{
			PhaseRule:      40 * time.Millisecond,
			PhaseInference: 2500 * time.Millisecond,
		},
		Total:     2600 * time.Millisecond,
		Fallbacks: []string{config.DimensionDistance},
	}

	perf := pass.Performance()

	assert.Equal(t, 14, perf.CandidateCount)
	assert.Equal(t, 10, perf.ShortlistCount)
	assert.Equal(t, int64(2500), perf.PhaseDurationsMs[PhaseInference])
	assert.Equal(t, int64(2600), perf.TotalDurationMs)
	assert.Equal(t, []string{config.DimensionDistance}, perf.Fallbacks)
}

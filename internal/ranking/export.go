package ranking

import (
	"math"
	"time"

	"placement-workers/internal/common/config"
	"placement-workers/internal/geo"
	"placement-workers/internal/models"
)

// NoMatchesMessage is the summary message of an empty export.
const NoMatchesMessage = "No communities matched the client's requirements"

// exportKeys are the CRM document's names for each dimension, used as the prefix of the
// recommendation's rankings and explanations keys.
var exportKeys = map[string]string{
	config.DimensionBusinessValue:  "business",
	config.DimensionTotalCost:      "total_cost",
	config.DimensionDistance:       "distance",
	config.DimensionBudget:         "budget_efficiency",
	config.DimensionSecondOccupant: "couple",
	config.DimensionAvailability:   "availability",
	config.DimensionAmenity:        "amenity",
	config.DimensionHolistic:       "holistic",
}

// exportKey falls back to the dimension name for dimensions outside the standard set.
func exportKey(dimension string) string {
	if key, ok := exportKeys[dimension]; ok {
		return key
	}
	return dimension
}

// Export is the CRM/reporting document for one consultation.
type Export struct {
	ClientInfo      ClientInfo         `json:"client_info"`
	RankingWeights  map[string]float64 `json:"ranking_weights"`
	Recommendations []Recommendation   `json:"recommendations"`
	Summary         Summary            `json:"summary"`
	Performance     *Performance       `json:"performance,omitempty"`
}

type ClientInfo struct {
	ClientName         string          `json:"client_name"`
	CareLevel          string          `json:"care_level"`
	Budget             float64         `json:"budget"`
	Timeline           models.Timeline `json:"timeline"`
	LocationPreference string          `json:"location_preference"`
	SpecialNeeds       map[string]any  `json:"special_needs"`
	ProcessedDate      string          `json:"processed_date"`
}

type Recommendation struct {
	FinalRank         int                `json:"final_rank"`
	CommunityID       int                `json:"community_id"`
	CommunityName     string             `json:"community_name"`
	CombinedRankScore float64            `json:"combined_rank_score"`
	KeyMetrics        KeyMetrics         `json:"key_metrics"`
	Rankings          map[string]float64 `json:"rankings"`
	Explanations      map[string]string  `json:"explanations"`
}

type KeyMetrics struct {
	MonthlyFee        float64 `json:"monthly_fee"`
	DistanceMiles     float64 `json:"distance_miles"`
	TotalUpfrontCost  float64 `json:"total_upfront_cost"`
	EstWaitlist       string  `json:"est_waitlist"`
	ContractRate      string  `json:"contract_rate"`
	WorkWithPlacement string  `json:"work_with_placement"`
}

type Summary struct {
	TotalMatches            int     `json:"total_matches"`
	AvgMonthlyFee           float64 `json:"avg_monthly_fee"`
	AvgDistanceMiles        float64 `json:"avg_distance_miles"`
	TopRecommendation       string  `json:"top_recommendation,omitempty"`
	TopRecommendationReason string  `json:"top_recommendation_reason,omitempty"`
	Message                 string  `json:"message,omitempty"`
}

// Performance reports how a pass spent its time.
type Performance struct {
	CandidateCount   int              `json:"candidate_count"`
	ShortlistCount   int              `json:"shortlist_count"`
	PhaseDurationsMs map[string]int64 `json:"phase_durations_ms"`
	TotalDurationMs  int64            `json:"total_duration_ms"`
	Fallbacks        []string         `json:"fallback_dimensions,omitempty"`
}

// Performance summarises the pass timings.
func (p *Pass) Performance() *Performance {
	phases := make(map[string]int64, len(p.PhaseDurations))
	for phase, d := range p.PhaseDurations {
		phases[phase] = d.Milliseconds()
	}
	return &Performance{
		CandidateCount:   p.CandidateCount,
		ShortlistCount:   p.ShortlistCount,
		PhaseDurationsMs: phases,
		TotalDurationMs:  p.Total.Milliseconds(),
		Fallbacks:        p.Fallbacks,
	}
}

// Export builds the CRM document for rankings. Rank and explanation keys are the
// export keys suffixed with _rank and _reason. The distance average covers measured
// distances only.
func (e *Engine) Export(rankings []CommunityRanking, req models.ClientRequirement) *Export {
	clientName := req.ClientName
	if clientName == "" {
		clientName = "Unknown"
	}

	exp := &Export{
		ClientInfo: ClientInfo{
			ClientName:         clientName,
			CareLevel:          req.CareLevel,
			Budget:             req.Budget,
			Timeline:           req.Timeline,
			LocationPreference: req.LocationPreference,
			SpecialNeeds:       req.SpecialNeeds,
			ProcessedDate:      e.now().UTC().Format(time.RFC3339),
		},
		RankingWeights:  e.Weights(),
		Recommendations: make([]Recommendation, 0, len(rankings)),
	}

	var feeSum, distanceSum float64
	var measured int
	for _, r := range rankings {
		rec := Recommendation{
			FinalRank:         r.FinalRank,
			CommunityID:       r.CommunityID,
			CommunityName:     r.CommunityName,
			CombinedRankScore: round2(r.CombinedScore),
			KeyMetrics: KeyMetrics{
				MonthlyFee:        r.MonthlyFee,
				DistanceMiles:     round2(r.DistanceMiles),
				TotalUpfrontCost:  r.TotalUpfrontCost,
				EstWaitlist:       r.EstWaitlist,
				ContractRate:      r.ContractRate,
				WorkWithPlacement: r.WorkWithPlacement,
			},
			Rankings:     make(map[string]float64, len(r.Ranks)),
			Explanations: make(map[string]string, len(r.Reasons)),
		}
		for dimension, rank := range r.Ranks {
			rec.Rankings[exportKey(dimension)+"_rank"] = rank
		}
		for dimension, reason := range r.Reasons {
			rec.Explanations[exportKey(dimension)+"_reason"] = reason
		}
		exp.Recommendations = append(exp.Recommendations, rec)

		feeSum += r.MonthlyFee
		if r.DistanceMiles < geo.UnknownDistance {
			distanceSum += r.DistanceMiles
			measured++
		}
	}

	exp.Summary.TotalMatches = len(rankings)
	if len(rankings) == 0 {
		exp.Summary.Message = NoMatchesMessage
		return exp
	}

	n := float64(len(rankings))
	exp.Summary.AvgMonthlyFee = round2(feeSum / n)
	exp.Summary.AvgDistanceMiles = geo.UnknownDistance
	if measured > 0 {
		exp.Summary.AvgDistanceMiles = round2(distanceSum / float64(measured))
	}
	exp.Summary.TopRecommendation = rankings[0].CommunityName
	exp.Summary.TopRecommendationReason = rankings[0].Reasons[config.DimensionHolistic]
	return exp
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

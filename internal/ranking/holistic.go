package ranking

import (
	"context"
	"fmt"
	"strings"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/models"
)

// priorReasonBudget keeps each prior reason to one short line in the prompt.
const priorReasonBudget = 120

// Holistic asks the model for an overall order given every earlier dimension's verdict,
// so it can reward combinations such as close, available and affordable.
type Holistic struct {
	inferenceRanker
}

func NewHolistic(client InferenceClient, retry RetryPolicy, log logger.Logger) *Holistic {
	return &Holistic{newInferenceRanker(config.DimensionHolistic, client, retry, log)}
}

func (d *Holistic) Name() string { return config.DimensionHolistic }
func (d *Holistic) Kind() Kind   { return KindContext }

func (d *Holistic) Rank(ctx context.Context, candidates []models.Community, req models.ClientRequirement, prior Results) ([]RankResult, error) {
	return d.rank(ctx, holisticPrompt(candidates, req, prior), candidates)
}

type holisticRow struct {
	ID               int               `json:"id"`
	MonthlyFee       *string           `json:"monthly_fee"`
	Distance         *float64          `json:"distance"`
	Waitlist         *string           `json:"waitlist"`
	BusinessRank     interface{}       `json:"business_rank"`
	CostRank         interface{}       `json:"cost_rank"`
	DistanceRank     interface{}       `json:"distance_rank"`
	AvailabilityRank interface{}       `json:"availability_rank"`
	AmenityRank      interface{}       `json:"amenity_rank"`
	Reasons          map[string]string `json:"reasons,omitempty"`
}

func holisticPrompt(candidates []models.Community, req models.ClientRequirement, prior Results) string {
	rows := make([]holisticRow, len(candidates))
	for i, c := range candidates {
		row := holisticRow{
			ID:               c.CommunityID,
			MonthlyFee:       optional(c.MonthlyFee.String()),
			Waitlist:         optional(c.EstWaitlist),
			BusinessRank:     priorRank(prior, config.DimensionBusinessValue, c.CommunityID),
			CostRank:         priorRank(prior, config.DimensionTotalCost, c.CommunityID),
			DistanceRank:     priorRank(prior, config.DimensionDistance, c.CommunityID),
			AvailabilityRank: priorRank(prior, config.DimensionAvailability, c.CommunityID),
			AmenityRank:      priorRank(prior, config.DimensionAmenity, c.CommunityID),
			Reasons:          priorReasons(prior, c.CommunityID),
		}
		if miles, ok := measuredMiles(prior, c.CommunityID); ok {
			row.Distance = &miles
		}
		rows[i] = row
	}
	n := len(candidates)

	var parts []string
	parts = append(parts, fmt.Sprintf("Holistic ranking of %d senior living communities.", n))
	parts = append(parts, fmt.Sprintf("\nCLIENT: %s, $%s/mo budget, %s timeline", req.CareLevel, money(req.Budget), req.Timeline))
	parts = append(parts, "\nCOMMUNITIES (id, monthly_fee, distance in miles, waitlist, earlier ranks and reasons):")
	parts = append(parts, promptJSON(rows))
	parts = append(parts, fmt.Sprintf("\nTASK: Rank 1 (best overall) to %d (worst). Consider synergies (e.g., close+available+affordable=great).", n))
	parts = append(parts, "\nReturn JSON:")
	parts = append(parts, `{"rankings": [{"community_id": 1, "rank": 1, "reason": "Best balance of cost, distance, and availability"}]}`)

	return strings.Join(parts, "\n")
}

// priorRank is the earlier rank of a community, or "N/A".
func priorRank(prior Results, dimension string, communityID int) interface{} {
	if rr, ok := prior.Find(dimension, communityID); ok {
		return rr.Rank
	}
	return "N/A"
}

func priorReasons(prior Results, communityID int) map[string]string {
	reasons := make(map[string]string)
	for dimension := range prior {
		if rr, ok := prior.Find(dimension, communityID); ok && rr.Reason != "" {
			reasons[dimension] = clip(rr.Reason, priorReasonBudget)
		}
	}
	if len(reasons) == 0 {
		return nil
	}
	return reasons
}

package ranking

import (
	"context"
	"fmt"
	"strings"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/models"
)

// Availability asks the model how well each community's waitlist fits the client's
// timeline.
type Availability struct {
	inferenceRanker
}

func NewAvailability(client InferenceClient, retry RetryPolicy, log logger.Logger) *Availability {
	return &Availability{newInferenceRanker(config.DimensionAvailability, client, retry, log)}
}

func (d *Availability) Name() string { return config.DimensionAvailability }
func (d *Availability) Kind() Kind   { return KindInference }

func (d *Availability) Rank(ctx context.Context, candidates []models.Community, req models.ClientRequirement, _ Results) ([]RankResult, error) {
	return d.rank(ctx, availabilityPrompt(candidates, req), candidates)
}

type availabilityRow struct {
	ID            int     `json:"id"`
	Waitlist      *string `json:"waitlist"`
	TypeOfService *string `json:"type_of_service"`
}

func availabilityPrompt(candidates []models.Community, req models.ClientRequirement) string {
	rows := make([]availabilityRow, len(candidates))
	for i, c := range candidates {
		rows[i] = availabilityRow{
			ID:            c.CommunityID,
			Waitlist:      optional(c.EstWaitlist),
			TypeOfService: optional(c.ServiceType),
		}
	}
	n := len(candidates)

	var parts []string
	parts = append(parts, "You are an expert at matching senior living community availability with client timeline needs.")
	parts = append(parts, fmt.Sprintf("\nCLIENT TIMELINE: %s", req.Timeline))
	parts = append(parts, fmt.Sprintf("CLIENT NOTES: %s", orDefault(req.Notes, "None provided")))
	parts = append(parts, fmt.Sprintf("CLIENT CARE LEVEL: %s", req.CareLevel))

	parts = append(parts, "\nCOMMUNITIES TO RANK:")
	parts = append(parts, promptJSON(rows))

	parts = append(parts, "\nRANKING CRITERIA:")
	parts = append(parts, `- "Available" with an immediate need is the best match (rank 1)`)
	parts = append(parts, `- "1-2 months" with a near-term need is a good match`)
	parts = append(parts, `- "7-12 months" with a flexible timeline is acceptable`)
	parts = append(parts, "- Availability sooner than needed is neutral (middle ranks)")
	parts = append(parts, "- Availability later than needed is a poor match (lower ranks)")
	parts = append(parts, `- "Unconfirmed" is risky but possible (middle-lower ranks)`)
	parts = append(parts, `- "Waitlist but Unspecified" is very risky (near bottom)`)

	parts = append(parts, "\nTASK:")
	parts = append(parts, fmt.Sprintf("Rank all %d communities from 1 (best availability match) to %d (worst match).", n, n))
	parts = append(parts, "Consider nuances in the client's timeline description and notes.")
	parts = append(parts, fmt.Sprintf("Every community must get a unique rank from 1 to %d.", n))
	parts = append(parts, "If communities are similar, separate them by subtleties in the waitlist description.")
	parts = append(parts, "Give specific reasoning for each ranking.")

	parts = append(parts, "\nReturn ONLY valid JSON (no markdown):")
	parts = append(parts, `{"rankings": [{"community_id": 1, "rank": 1, "reason": "Available immediately, fits an urgent placement"}]}`)

	return strings.Join(parts, "\n")
}

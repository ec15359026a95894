package ranking

import (
	"context"
	"fmt"
	"strings"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/models"
)

// miscFeesBudget caps the free-text fee notes sent per community.
const miscFeesBudget = 150

// Amenity asks the model how well apartment types and services fit the client.
type Amenity struct {
	inferenceRanker
}

func NewAmenity(client InferenceClient, retry RetryPolicy, log logger.Logger) *Amenity {
	return &Amenity{newInferenceRanker(config.DimensionAmenity, client, retry, log)}
}

func (d *Amenity) Name() string { return config.DimensionAmenity }
func (d *Amenity) Kind() Kind   { return KindInference }

func (d *Amenity) Rank(ctx context.Context, candidates []models.Community, req models.ClientRequirement, _ Results) ([]RankResult, error) {
	return d.rank(ctx, amenityPrompt(candidates, req), candidates)
}

type amenityRow struct {
	ID            int     `json:"id"`
	ApartmentType *string `json:"apartment_type"`
	MiscFees      *string `json:"msc_fees"`
	Enhanced      *string `json:"enhanced"`
	Enriched      *string `json:"enriched"`
}

func amenityPrompt(candidates []models.Community, req models.ClientRequirement) string {
	rows := make([]amenityRow, len(candidates))
	for i, c := range candidates {
		rows[i] = amenityRow{
			ID:            c.CommunityID,
			ApartmentType: optional(c.ApartmentType),
			MiscFees:      optional(clip(c.MiscFees, miscFeesBudget)),
			Enhanced:      optional(c.Enhanced.String()),
			Enriched:      optional(c.Enriched.String()),
		}
	}
	n := len(candidates)

	specialNeeds := req.SpecialNeeds
	if specialNeeds == nil {
		specialNeeds = map[string]any{}
	}

	var parts []string
	parts = append(parts, "You are an expert at matching senior living community amenities with client preferences.")
	parts = append(parts, "\nCLIENT PREFERENCES:")
	parts = append(parts, fmt.Sprintf("- Apartment type preference: %s", orDefault(req.NeedText(models.NeedApartmentType), "None specified")))
	parts = append(parts, fmt.Sprintf("- Special needs: %s", promptJSON(specialNeeds)))
	parts = append(parts, fmt.Sprintf("- Notes: %s", orDefault(req.Notes, "None provided")))
	parts = append(parts, fmt.Sprintf("- Enhanced services needed: %t", req.Enhanced))
	parts = append(parts, fmt.Sprintf("- Enriched housing needed: %t", req.Enriched))

	parts = append(parts, "\nCOMMUNITIES TO RANK:")
	parts = append(parts, promptJSON(rows))

	parts = append(parts, "\nRANKING CRITERIA:")
	parts = append(parts, "- Apartment type matching the client preference exactly is best")
	parts = append(parts, "- Enhanced/Enriched services matching the client's needs are better")
	parts = append(parts, "- Amenities in the misc fees that align with the needs are a bonus")
	parts = append(parts, "- A studio when the client wants 1BR is worse")
	parts = append(parts, "- Missing amenity data is risky (lower ranks)")

	parts = append(parts, "\nTASK:")
	parts = append(parts, fmt.Sprintf("Rank all %d communities from 1 (best amenity match) to %d (worst match).", n, n))
	parts = append(parts, "Consider both explicit preferences and implicit needs from the notes.")
	parts = append(parts, "Every community must get a unique rank.")
	parts = append(parts, "Mention which amenities matched or did not match in each reason.")

	parts = append(parts, "\nReturn ONLY valid JSON:")
	parts = append(parts, `{"rankings": [{"community_id": 1, "rank": 1, "reason": "Preferred 1BR deluxe and enhanced services match the medical needs"}]}`)

	return strings.Join(parts, "\n")
}

// internal/workers/placement/rank-communities/models.go
package rankcommunities

import (
	"placement-workers/internal/models"
	"placement-workers/internal/ranking"
)

type Input struct {
	Communities       []models.Community       `json:"communities"`
	ClientRequirement models.ClientRequirement `json:"clientRequirement"`
	Weights           map[string]float64       `json:"weights,omitempty"`
}

type Output struct {
	RankingExport  *ranking.Export `json:"rankingExport"`
	TotalMatches   int             `json:"totalMatches"`
	TopCommunityID int             `json:"topCommunityId,omitempty"`
	ConsultationID string          `json:"consultationId,omitempty"`
}

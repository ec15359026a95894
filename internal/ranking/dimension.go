// Package ranking aggregates several independent community rankings into one
// explainable order: rule dimensions over every candidate, inference dimensions over a
// pre-filtered shortlist, then a weighted Borda sum.
package ranking

import (
	"context"

	"placement-workers/internal/models"
)

// Method records how a rank was produced.
type Method string

const (
	MethodRule     Method = "rule"
	MethodAI       Method = "ai"
	MethodFallback Method = "fallback"
)

// Kind selects the engine phase a dimension runs in.
type Kind int

const (
	// KindRule dimensions are closed-form and see the full candidate set.
	KindRule Kind = iota
	// KindInference dimensions call the inference service over the shortlist.
	KindInference
	// KindContext dimensions run last, over the shortlist, with every prior result.
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindRule:
		return "rule"
	case KindInference:
		return "inference"
	case KindContext:
		return "context"
	}
	return "unknown"
}

const (
	FallbackReason  = "Fallback ranking (error in dimension)"
	NotRankedReason = "Not ranked by AI"
)

// RankResult is one dimension's verdict on one community. Tied communities share the
// mean of the positions they occupy, so Rank is not always whole.
type RankResult struct {
	Dimension   string  `json:"dimension"`
	CommunityID int     `json:"communityId"`
	Rank        float64 `json:"rank"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
	Method      Method  `json:"method"`
}

// Results maps a dimension name to its results.
type Results map[string][]RankResult

// Find returns the result a dimension produced for a community.
func (r Results) Find(dimension string, communityID int) (RankResult, bool) {
	for _, rr := range r[dimension] {
		if rr.CommunityID == communityID {
			return rr, true
		}
	}
	return RankResult{}, false
}

// Dimension ranks a candidate set against a requirement. prior holds the results of
// earlier phases and is only populated for KindContext dimensions. Implementations must
// not mutate candidates or prior.
type Dimension interface {
	Name() string
	Kind() Kind
	Rank(ctx context.Context, candidates []models.Community, req models.ClientRequirement, prior Results) ([]RankResult, error)
}

package genai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"placement-workers/internal/common/errors"
	"placement-workers/internal/common/validation"
)

// RankingEntry is one candidate's position in an inference ranking.
type RankingEntry struct {
	CommunityID int    `json:"community_id"`
	Rank        int    `json:"rank"`
	Reason      string `json:"reason"`
}

// UnmarshalJSON accepts whole numbers written with a fraction ("rank": 1.0), which
// models sometimes return.
func (e *RankingEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		CommunityID float64 `json:"community_id"`
		Rank        float64 `json:"rank"`
		Reason      string  `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := wholeNumber("community_id", raw.CommunityID)
	if err != nil {
		return err
	}
	rank, err := wholeNumber("rank", raw.Rank)
	if err != nil {
		return err
	}
	*e = RankingEntry{CommunityID: id, Rank: rank, Reason: raw.Reason}
	return nil
}

func wholeNumber(field string, v float64) (int, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s %v is not a whole number", field, v)
	}
	return int(v), nil
}

// RankingResponse is the JSON document the model is asked to return.
type RankingResponse struct {
	Rankings []RankingEntry `json:"rankings"`
}

var rankingSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["rankings"],
  "properties": {
    "rankings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["community_id", "rank"],
        "properties": {
          "community_id": {"type": "integer"},
          "rank": {"type": "integer", "minimum": 1},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`)

// ParseRankingResponse validates and decodes model output. Markdown code fences around
// the JSON are tolerated.
func ParseRankingResponse(text string) (*RankingResponse, error) {
	raw := stripCodeFence([]byte(text))
	if len(raw) == 0 {
		return nil, errors.NewInferenceResponseInvalidError("empty response")
	}
	if err := rankingSchema.ValidateBytes(raw); err != nil {
		return nil, errors.NewInferenceResponseInvalidError(err.Error())
	}

	var resp RankingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.NewInferenceResponseInvalidError(fmt.Sprintf("decode rankings: %v", err))
	}
	if len(resp.Rankings) == 0 {
		return nil, errors.NewInferenceResponseInvalidError("no rankings returned")
	}
	return &resp, nil
}

// ValidatePermutation checks that the response ranks exactly ids with the ranks 1..len(ids).
func (r *RankingResponse) ValidatePermutation(ids []int) error {
	if len(r.Rankings) != len(ids) {
		return errors.NewInferenceResponseInvalidError(
			fmt.Sprintf("expected %d rankings, got %d", len(ids), len(r.Rankings)))
	}

	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	seen := make(map[int]bool, len(ids))
	ranks := make([]int, 0, len(ids))
	for _, e := range r.Rankings {
		if !want[e.CommunityID] {
			return errors.NewInferenceResponseInvalidError(fmt.Sprintf("unexpected community_id %d", e.CommunityID))
		}
		if seen[e.CommunityID] {
			return errors.NewInferenceResponseInvalidError(fmt.Sprintf("community_id %d ranked twice", e.CommunityID))
		}
		seen[e.CommunityID] = true
		ranks = append(ranks, e.Rank)
	}

	sort.Ints(ranks)
	for i, rank := range ranks {
		if rank != i+1 {
			return errors.NewInferenceResponseInvalidError(
				fmt.Sprintf("ranks are not a permutation of 1..%d", len(ids)))
		}
	}
	return nil
}

func stripCodeFence(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = bytes.TrimPrefix(b, []byte("```"))
	if nl := bytes.IndexByte(b, '\n'); nl >= 0 {
		b = b[nl+1:]
	}
	b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	return bytes.TrimSpace(b)
}

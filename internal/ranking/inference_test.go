package ranking

import (
	"context"
	"strings"
	"testing"
	"time"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/errors"
	"placement-workers/internal/genai"
	"placement-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond}
}

func assertAllWorst(t *testing.T, results []RankResult, n int) {
	t.Helper()
	require.Len(t, results, n)
	for _, rr := range results {
		assert.Equal(t, float64(n), rr.Rank)
		assert.Equal(t, NotRankedReason, rr.Reason)
		assert.Equal(t, MethodAI, rr.Method)
	}
}

func TestInference_MapsResponse(t *testing.T) {
	client := &fakeInference{reverse: true}
	dim := NewAvailability(client, fastRetry(), newTestLogger(t))

	results, err := dim.Rank(context.Background(), communities(3), models.ClientRequirement{Timeline: models.TimelineImmediate}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[int]float64{1: 3, 2: 2, 3: 1}, ranksByID(results))
	assert.Equal(t, "model reason 3", results[2].Reason)
	assert.Equal(t, MethodAI, results[0].Method)
	assert.Equal(t, 1, client.Calls())
}

func TestInference_RetriesTimeouts(t *testing.T) {
	client := &fakeInference{errs: []error{
		errors.NewInferenceTimeoutError("504"),
		errors.NewInferenceTimeoutError("deadline"),
	}}
	dim := NewAmenity(client, fastRetry(), newTestLogger(t))

	results, err := dim.Rank(context.Background(), communities(4), models.ClientRequirement{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, client.Calls())
	assert.Equal(t, map[int]float64{1: 1, 2: 2, 3: 3, 4: 4}, ranksByID(results))
}

func TestInference_ExhaustedRetriesRankEveryoneLast(t *testing.T) {
	client := &fakeInference{always: errors.NewInferenceTimeoutError("504")}
	dim := NewAvailability(client, fastRetry(), newTestLogger(t))

	results, err := dim.Rank(context.Background(), communities(4), models.ClientRequirement{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, client.Calls())
	assertAllWorst(t, results, 4)
}

func TestInference_TerminalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"quota", errors.NewInferenceQuotaExceededError("429")},
		{"auth", errors.NewInferenceAuthFailedError("401")},
		{"invalid", errors.NewInferenceResponseInvalidError("not json")},
		{"unclassified", assert.AnError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeInference{always: tt.err}
			dim := NewAmenity(client, fastRetry(), newTestLogger(t))

			results, err := dim.Rank(context.Background(), communities(3), models.ClientRequirement{}, nil)
			require.NoError(t, err)

			assert.Equal(t, 1, client.Calls())
			assertAllWorst(t, results, 3)
		})
	}
}

// partialClient ranks only the first candidate, which is not a permutation.
type partialClient struct{}

func (partialClient) Rank(ctx context.Context, prompt string) (*genai.RankingResponse, error) {
	ids := promptIDs(prompt)
	return &genai.RankingResponse{Rankings: []genai.RankingEntry{{CommunityID: ids[0], Rank: 1, Reason: "only one"}}}, nil
}

func TestInference_PartialResponseIsRejected(t *testing.T) {
	dim := NewAvailability(partialClient{}, fastRetry(), newTestLogger(t))

	results, err := dim.Rank(context.Background(), communities(3), models.ClientRequirement{}, nil)
	require.NoError(t, err)
	assertAllWorst(t, results, 3)
}

func TestInference_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeInference{
		always: errors.NewInferenceTimeoutError("504"),
		onCall: cancel,
	}
	dim := NewAvailability(client, RetryPolicy{MaxAttempts: 3, BackoffBase: time.Hour}, newTestLogger(t))

	_, err := dim.Rank(ctx, communities(2), models.ClientRequirement{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.Calls())
}

func TestAvailabilityPrompt(t *testing.T) {
	cs := communities(2)
	cs[1].EstWaitlist = "7-12 months"
	cs[1].ServiceType = "Assisted Living"
	req := models.ClientRequirement{
		Timeline:  models.TimelineNearTerm,
		CareLevel: "assisted",
		Notes:     "Daughter visits on weekends",
	}

	prompt := availabilityPrompt(cs, req)

	assert.Contains(t, prompt, "CLIENT TIMELINE: near-term")
	assert.Contains(t, prompt, "CLIENT NOTES: Daughter visits on weekends")
	assert.Contains(t, prompt, `"waitlist": "7-12 months"`)
	assert.Contains(t, prompt, `"type_of_service": null`)
	assert.Contains(t, prompt, "Rank all 2 communities")
	assert.Equal(t, []int{1, 2}, promptIDs(prompt))
}

func TestAmenityPrompt_ClipsMiscFees(t *testing.T) {
	cs := communities(1)
	cs[0].MiscFees = strings.Repeat("x", 400)
	cs[0].ApartmentType = "1BR"

	prompt := amenityPrompt(cs, models.ClientRequirement{
		Enhanced:     true,
		SpecialNeeds: map[string]any{models.NeedApartmentType: "1BR deluxe"},
	})

	assert.Contains(t, prompt, `"msc_fees": "`+strings.Repeat("x", miscFeesBudget)+`..."`)
	assert.NotContains(t, prompt, strings.Repeat("x", miscFeesBudget+1))
	assert.Contains(t, prompt, "Apartment type preference: 1BR deluxe")
	assert.Contains(t, prompt, "Enhanced services needed: true")
	assert.Contains(t, prompt, "Notes: None provided")
}

func TestHolisticPrompt_UsesPriorResults(t *testing.T) {
	cs := communities(2)
	prior := Results{
		config.DimensionDistance: {
			{Dimension: config.DimensionDistance, CommunityID: 1, Rank: 1, Score: 3.25, Reason: "3.25 miles"},
			{Dimension: config.DimensionDistance, CommunityID: 2, Rank: 2, Score: 8, Reason: "8.00 miles"},
		},
		config.DimensionTotalCost: {
			{Dimension: config.DimensionTotalCost, CommunityID: 2, Rank: 1, Reason: "cheap"},
		},
	}

	prompt := holisticPrompt(cs, models.ClientRequirement{Budget: 5500, Timeline: models.TimelineFlexible, CareLevel: "independent"}, prior)

	assert.Contains(t, prompt, "CLIENT: independent, $5,500/mo budget, flexible timeline")
	assert.Contains(t, prompt, `"distance": 3.25`)
	assert.Contains(t, prompt, `"cost_rank": "N/A"`)
	assert.Contains(t, prompt, `"availability_rank": "N/A"`)
	assert.Contains(t, prompt, `"total_cost": "cheap"`)
	assert.Contains(t, prompt, "close+available+affordable=great")
}

func TestHolisticPrompt_OmitsUnmeasuredDistance(t *testing.T) {
	cs := communities(2)
	prior := Results{
		config.DimensionDistance: {
			{Dimension: config.DimensionDistance, CommunityID: 1, Rank: 1, Score: 1, Method: MethodFallback},
			{Dimension: config.DimensionDistance, CommunityID: 2, Rank: 2, Score: 2, Method: MethodFallback},
		},
	}

	prompt := holisticPrompt(cs, models.ClientRequirement{Budget: 5000}, prior)

	assert.Contains(t, prompt, `"distance": null`)
	assert.NotContains(t, prompt, `"distance": 1`)
	assert.NotContains(t, prompt, `"distance": 2`)
	assert.Contains(t, prompt, `"distance_rank": 1`)
}

func TestHolistic_Kind(t *testing.T) {
	dim := NewHolistic(&fakeInference{}, fastRetry(), newTestLogger(t))
	assert.Equal(t, KindContext, dim.Kind())
	assert.Equal(t, config.DimensionHolistic, dim.Name())
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab...", clip("abcdef", 2))
	assert.Equal(t, "né...", clip("néant", 2))
}

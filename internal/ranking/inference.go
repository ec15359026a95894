package ranking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"placement-workers/internal/common/errors"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/common/metrics"
	"placement-workers/internal/genai"
	"placement-workers/internal/models"
)

// InferenceClient asks the text-generation service for a ranking. *genai.Client
// satisfies it.
type InferenceClient interface {
	Rank(ctx context.Context, prompt string) (*genai.RankingResponse, error)
}

// RetryPolicy bounds retries of transient inference failures. Attempt n (from zero)
// waits BackoffBase * 2^n before the next try.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultRetryPolicy waits 2s then 4s between three attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffBase: 2 * time.Second}
}

// inferenceRanker holds what the inference-backed dimensions share: the client call with
// retries, permutation checking and the mapping from the response to RankResults.
type inferenceRanker struct {
	name   string
	client InferenceClient
	retry  RetryPolicy
	logger logger.Logger
}

func newInferenceRanker(name string, client InferenceClient, retry RetryPolicy, log logger.Logger) inferenceRanker {
	def := DefaultRetryPolicy()
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = def.MaxAttempts
	}
	if retry.BackoffBase <= 0 {
		retry.BackoffBase = def.BackoffBase
	}
	return inferenceRanker{
		name:   name,
		client: client,
		retry:  retry,
		logger: log.WithFields(map[string]interface{}{"dimension": name}),
	}
}

// rank calls the service and maps the answer onto candidates. Communities missing from
// the answer get the worst rank. The error is non-nil only when ctx is done.
func (r inferenceRanker) rank(ctx context.Context, prompt string, candidates []models.Community) ([]RankResult, error) {
	ids := make([]int, len(candidates))
	for i, c := range candidates {
		ids[i] = c.CommunityID
	}

	ranked, err := r.rankMap(ctx, prompt, ids)
	if err != nil {
		return nil, err
	}

	worst := float64(len(candidates))
	results := make([]RankResult, len(candidates))
	for i, c := range candidates {
		entry, ok := ranked[c.CommunityID]
		if !ok {
			results[i] = RankResult{
				Dimension:   r.name,
				CommunityID: c.CommunityID,
				Rank:        worst,
				Score:       worst,
				Reason:      NotRankedReason,
				Method:      MethodAI,
			}
			continue
		}
		results[i] = RankResult{
			Dimension:   r.name,
			CommunityID: c.CommunityID,
			Rank:        float64(entry.Rank),
			Score:       float64(entry.Rank),
			Reason:      entry.Reason,
			Method:      MethodAI,
		}
	}
	return results, nil
}

// rankMap returns the validated ranking keyed by community ID. Timeouts are retried with
// exponential backoff; quota, auth and malformed answers give up at once. Giving up
// yields an empty map.
func (r inferenceRanker) rankMap(ctx context.Context, prompt string, ids []int) (map[int]genai.RankingEntry, error) {
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		resp, err := r.client.Rank(ctx, prompt)
		if err == nil && resp == nil {
			err = errors.NewInferenceResponseInvalidError("empty response")
		}
		if err == nil {
			err = resp.ValidatePermutation(ids)
		}
		if err == nil {
			metrics.InferenceAttempts.WithLabelValues("success").Inc()
			ranked := make(map[int]genai.RankingEntry, len(resp.Rankings))
			for _, e := range resp.Rankings {
				ranked[e.CommunityID] = e
			}
			return ranked, nil
		}

		if ctx.Err() != nil {
			metrics.InferenceAttempts.WithLabelValues("cancelled").Inc()
			return nil, ctx.Err()
		}

		if !errors.IsRetryable(err) {
			metrics.InferenceAttempts.WithLabelValues("terminal").Inc()
			r.logger.Warn("inference failed, not retrying", map[string]interface{}{
				"attempt":   attempt + 1,
				"errorCode": string(errors.CodeOf(err)),
				"error":     err.Error(),
			})
			return map[int]genai.RankingEntry{}, nil
		}

		if attempt == r.retry.MaxAttempts-1 {
			metrics.InferenceAttempts.WithLabelValues("exhausted").Inc()
			r.logger.Warn("inference retries exhausted", map[string]interface{}{
				"attempts": r.retry.MaxAttempts,
				"error":    err.Error(),
			})
			break
		}

		wait := r.retry.BackoffBase * time.Duration(1<<attempt)
		metrics.InferenceAttempts.WithLabelValues("retry").Inc()
		r.logger.Info("inference timed out, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"waitMs":  wait.Milliseconds(),
		})

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return map[int]genai.RankingEntry{}, nil
}

// promptJSON renders prompt data. Marshalling plain structs cannot fail.
func promptJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

// optional turns blank cells into JSON null.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	return &s
}

// clip cuts s to n runes, marking the cut with "...".
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

package ranking

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"placement-workers/internal/common/logger"
	"placement-workers/internal/genai"
	"placement-workers/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func newTestLogger(t *testing.T) logger.Logger {
	return logger.NewTestLogger(t)
}

func community(id int, fee string) models.Community {
	return models.Community{
		CommunityID:       id,
		Name:              "Community " + strconv.Itoa(id),
		MonthlyFee:        models.Field(fee),
		WorkWithPlacement: "Yes",
		ContractRate:      "1",
		EstWaitlist:       "Available",
		ZIP:               models.Field("14604"),
	}
}

func communities(n int) []models.Community {
	out := make([]models.Community, n)
	for i := range out {
		out[i] = community(i+1, strconv.Itoa(3000+i*100))
	}
	return out
}

func ranksByID(results []RankResult) map[int]float64 {
	out := make(map[int]float64, len(results))
	for _, rr := range results {
		out[rr.CommunityID] = rr.Rank
	}
	return out
}

func rankSum(results []RankResult) float64 {
	sum := 0.0
	for _, rr := range results {
		sum += rr.Rank
	}
	return sum
}

// staticResolver resolves every location to one ZIP.
type staticResolver struct {
	zip   string
	calls int32
}

func (r *staticResolver) Resolve(ctx context.Context, location string) string {
	atomic.AddInt32(&r.calls, 1)
	return r.zip
}

// mapDistance looks distances up by community ZIP.
type mapDistance struct {
	miles map[string]float64
	err   error
}

func (d *mapDistance) Distance(ctx context.Context, from, to string) (float64, error) {
	if d.err != nil {
		return 0, d.err
	}
	if v, ok := d.miles[to]; ok {
		return v, nil
	}
	return 9999, nil
}

var promptIDPattern = regexp.MustCompile(`"id": (\d+)`)

// promptIDs returns the community IDs listed in a ranking prompt, in order.
func promptIDs(prompt string) []int {
	var ids []int
	for _, m := range promptIDPattern.FindAllStringSubmatch(prompt, -1) {
		id, _ := strconv.Atoi(m[1])
		ids = append(ids, id)
	}
	return ids
}

// fakeInference answers with a permutation of the prompt's IDs, in prompt order unless
// reverse is set. Queued errors are returned first, one per call.
type fakeInference struct {
	mu      sync.Mutex
	errs    []error
	always  error
	reverse bool
	calls   int32
	prompts []string
	onCall  func()
}

func (f *fakeInference) Rank(ctx context.Context, prompt string) (*genai.RankingResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.onCall != nil {
		f.onCall()
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	if f.always != nil {
		return nil, f.always
	}
	if err != nil {
		return nil, err
	}

	ids := promptIDs(prompt)
	resp := &genai.RankingResponse{}
	for i, id := range ids {
		rank := i + 1
		if f.reverse {
			rank = len(ids) - i
		}
		resp.Rankings = append(resp.Rankings, genai.RankingEntry{
			CommunityID: id,
			Rank:        rank,
			Reason:      "model reason " + strconv.Itoa(id),
		})
	}
	return resp, nil
}

func (f *fakeInference) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// stubDimension is a Dimension driven by a function.
type stubDimension struct {
	name string
	kind Kind
	fn   func(ctx context.Context, candidates []models.Community, prior Results) ([]RankResult, error)

	mu   sync.Mutex
	seen []int
}

func (s *stubDimension) Name() string { return s.name }
func (s *stubDimension) Kind() Kind   { return s.kind }

func (s *stubDimension) Rank(ctx context.Context, candidates []models.Community, _ models.ClientRequirement, prior Results) ([]RankResult, error) {
	s.mu.Lock()
	s.seen = append(s.seen, len(candidates))
	s.mu.Unlock()
	return s.fn(ctx, candidates, prior)
}

// byOrder ranks candidates 1..N in the order given.
func byOrder(name string) func(context.Context, []models.Community, Results) ([]RankResult, error) {
	return func(_ context.Context, candidates []models.Community, _ Results) ([]RankResult, error) {
		results := make([]RankResult, len(candidates))
		for i, c := range candidates {
			results[i] = RankResult{Dimension: name, CommunityID: c.CommunityID, Rank: float64(i + 1), Reason: name, Method: MethodRule}
		}
		return results, nil
	}
}

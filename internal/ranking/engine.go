package ranking

import (
	"context"
	"fmt"
	"time"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/errors"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/common/metrics"
	"placement-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

// Phase names used in logs, metrics and performance reports.
const (
	PhaseRule      = "rule"
	PhaseInference = "inference"
	PhaseContext   = "context"
)

// Options sizes one engine.
type Options struct {
	Weights              map[string]float64
	PrefilterSize        int
	OutputSize           int
	RuleParallelism      int
	InferenceParallelism int
}

// OptionsFromConfig reads the ranking section of the application config.
func OptionsFromConfig(cfg config.RankingConfig) Options {
	return Options{
		Weights:              cfg.Weights,
		PrefilterSize:        cfg.PrefilterSize,
		OutputSize:           cfg.OutputSize,
		RuleParallelism:      cfg.RuleParallelism,
		InferenceParallelism: cfg.InferenceParallelism,
	}
}

// Dimensions is the closed set the engine runs, grouped by phase.
type Dimensions struct {
	Rules     []Dimension
	Inference []Dimension
	Context   Dimension
}

// Dependencies are the collaborators of the standard dimensions.
type Dependencies struct {
	Distance  DistanceProvider
	Locations LocationResolver
	Inference InferenceClient
	Retry     RetryPolicy
}

// StandardDimensions builds the five rule dimensions, the availability and amenity
// inference dimensions and the holistic context dimension.
func StandardDimensions(deps Dependencies, tolerances map[string]float64, log logger.Logger) Dimensions {
	tol := config.DefaultTolerances()
	for name, t := range tolerances {
		tol[name] = t
	}

	return Dimensions{
		Rules: []Dimension{
			NewBusinessValue(tol[config.DimensionBusinessValue]),
			NewTotalCost(tol[config.DimensionTotalCost], log),
			NewDistance(deps.Distance, deps.Locations, tol[config.DimensionDistance], log),
			NewBudgetEfficiency(tol[config.DimensionBudget], log),
			NewSecondOccupant(tol[config.DimensionSecondOccupant]),
		},
		Inference: []Dimension{
			NewAvailability(deps.Inference, deps.Retry, log),
			NewAmenity(deps.Inference, deps.Retry, log),
		},
		Context: NewHolistic(deps.Inference, deps.Retry, log),
	}
}

// Engine runs one ranking pass per call. It holds no per-pass state and is safe for
// concurrent use; the weight table never changes after construction.
type Engine struct {
	dims       Dimensions
	opts       Options
	aggregator *Aggregator
	logger     logger.Logger
	now        func() time.Time
}

func NewEngine(dims Dimensions, opts Options, log logger.Logger) *Engine {
	if opts.PrefilterSize <= 0 {
		opts.PrefilterSize = 10
	}
	if opts.OutputSize <= 0 {
		opts.OutputSize = 5
	}
	if opts.RuleParallelism <= 0 {
		opts.RuleParallelism = 5
	}
	if opts.InferenceParallelism <= 0 {
		opts.InferenceParallelism = 2
	}

	weights := config.DefaultWeights()
	for name, w := range opts.Weights {
		weights[name] = w
	}
	opts.Weights = weights

	return &Engine{
		dims:       dims,
		opts:       opts,
		aggregator: NewAggregator(weights, opts.OutputSize),
		logger:     log.WithFields(map[string]interface{}{"component": "ranking-engine"}),
		now:        time.Now,
	}
}

// WithWeights returns a new engine with weights merged over the current table.
func (e *Engine) WithWeights(weights map[string]float64) *Engine {
	merged := make(map[string]float64, len(e.opts.Weights))
	for name, w := range e.opts.Weights {
		merged[name] = w
	}
	for name, w := range weights {
		merged[name] = w
	}

	opts := e.opts
	opts.Weights = merged
	return &Engine{
		dims:       e.dims,
		opts:       opts,
		aggregator: NewAggregator(merged, opts.OutputSize),
		logger:     e.logger,
		now:        e.now,
	}
}

// Weights returns a copy of the weight table.
func (e *Engine) Weights() map[string]float64 {
	out := make(map[string]float64, len(e.opts.Weights))
	for name, w := range e.opts.Weights {
		out[name] = w
	}
	return out
}

// Pass is the outcome of one ranking run.
type Pass struct {
	Rankings       []CommunityRanking
	Results        Results
	CandidateCount int
	ShortlistCount int
	PhaseDurations map[string]time.Duration
	Total          time.Duration
	Fallbacks      []string
}

// Rank orders candidates for req and returns at most OutputSize rankings. Dimension
// failures are absorbed; the only error is ctx being done.
func (e *Engine) Rank(ctx context.Context, candidates []models.Community, req models.ClientRequirement) ([]CommunityRanking, error) {
	pass, err := e.Run(ctx, candidates, req)
	if err != nil {
		return nil, err
	}
	return pass.Rankings, nil
}

// Run is Rank with the intermediate results and timings.
func (e *Engine) Run(ctx context.Context, candidates []models.Community, req models.ClientRequirement) (*Pass, error) {
	pass := &Pass{
		Rankings:       []CommunityRanking{},
		Results:        make(Results),
		CandidateCount: len(candidates),
		PhaseDurations: make(map[string]time.Duration),
	}
	if len(candidates) == 0 {
		e.logger.Info("no candidates to rank", nil)
		return pass, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := e.now()
	e.logger.Info("ranking started", map[string]interface{}{
		"candidates": len(candidates),
		"dimensions": e.dimensionCount(),
	})

	e.runPhase(ctx, pass, PhaseRule, e.dims.Rules, candidates, req, nil, e.opts.RuleParallelism)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shortlist := Prefilter(candidates, pass.Results, e.opts.PrefilterSize)
	pass.ShortlistCount = len(shortlist)
	e.logger.Info("shortlist selected", map[string]interface{}{
		"from": len(candidates),
		"kept": len(shortlist),
	})

	e.runPhase(ctx, pass, PhaseInference, e.dims.Inference, shortlist, req, nil, e.opts.InferenceParallelism)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.dims.Context != nil {
		e.runPhase(ctx, pass, PhaseContext, []Dimension{e.dims.Context}, shortlist, req, pass.Results, 1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	pass.Rankings = e.aggregator.Aggregate(shortlist, pass.Results, req)
	pass.Total = e.now().Sub(start)

	fields := map[string]interface{}{
		"returned":   len(pass.Rankings),
		"durationMs": pass.Total.Milliseconds(),
		"fallbacks":  pass.Fallbacks,
	}
	if len(pass.Rankings) > 0 {
		fields["top"] = pass.Rankings[0].CommunityName
	}
	e.logger.Info("ranking complete", fields)

	return pass, nil
}

func (e *Engine) dimensionCount() int {
	n := len(e.dims.Rules) + len(e.dims.Inference)
	if e.dims.Context != nil {
		n++
	}
	return n
}

// runPhase runs dims concurrently, at most limit at a time, and merges their results
// into pass once all of them are done. prior is shared read-only with every dimension.
func (e *Engine) runPhase(ctx context.Context, pass *Pass, phase string, dims []Dimension,
	candidates []models.Community, req models.ClientRequirement, prior Results, limit int) {
	if len(dims) == 0 {
		return
	}
	start := e.now()

	type outcome struct {
		results  []RankResult
		fallback bool
	}
	outcomes := make([]outcome, len(dims))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, d := range dims {
		g.Go(func() error {
			results, fallback := e.runDimension(ctx, d, candidates, req, prior)
			outcomes[i] = outcome{results: results, fallback: fallback}
			return nil
		})
	}
	_ = g.Wait()

	for i, d := range dims {
		pass.Results[d.Name()] = outcomes[i].results
		if outcomes[i].fallback {
			pass.Fallbacks = append(pass.Fallbacks, d.Name())
		}
	}

	elapsed := e.now().Sub(start)
	pass.PhaseDurations[phase] = elapsed
	metrics.RankingPassDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
	e.logger.Debug("phase complete", map[string]interface{}{
		"phase":      phase,
		"dimensions": len(dims),
		"candidates": len(candidates),
		"durationMs": elapsed.Milliseconds(),
	})
}

// runDimension never fails: errors, panics and incomplete output are replaced by
// fallback ranks over candidates.
func (e *Engine) runDimension(ctx context.Context, d Dimension, candidates []models.Community,
	req models.ClientRequirement, prior Results) (results []RankResult, fallback bool) {
	name := d.Name()
	log := e.logger.WithFields(map[string]interface{}{"dimension": name, "kind": d.Kind().String()})
	start := e.now()

	defer func() {
		if p := recover(); p != nil {
			err := errors.NewDimensionFailedError(name, p)
			log.Error("dimension panicked, using fallback ranks", map[string]interface{}{"error": err.Error()})
			results, fallback = e.fallback(name, candidates), true
		}
		metrics.DimensionDuration.WithLabelValues(name).Observe(e.now().Sub(start).Seconds())
	}()

	results, err := d.Rank(ctx, candidates, req, prior)
	if err == nil {
		err = checkCoverage(name, results, candidates)
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("dimension stopped by cancellation", nil)
		} else {
			log.Warn("dimension failed, using fallback ranks", map[string]interface{}{"error": err.Error()})
		}
		return e.fallback(name, candidates), true
	}

	log.Debug("dimension complete", map[string]interface{}{"results": len(results)})
	return results, false
}

func (e *Engine) fallback(name string, candidates []models.Community) []RankResult {
	metrics.DimensionFallbacks.WithLabelValues(name).Inc()
	return FallbackRanks(name, candidates)
}

// checkCoverage requires exactly one in-range result per candidate.
func checkCoverage(name string, results []RankResult, candidates []models.Community) error {
	if len(results) != len(candidates) {
		return errors.NewDimensionFailedError(name,
			fmt.Sprintf("%d results for %d candidates", len(results), len(candidates)))
	}

	want := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		want[c.CommunityID] = true
	}
	n := float64(len(candidates))
	for _, rr := range results {
		if !want[rr.CommunityID] {
			return errors.NewDimensionFailedError(name,
				fmt.Sprintf("unexpected or duplicate community %d", rr.CommunityID))
		}
		delete(want, rr.CommunityID)
		if rr.Rank < 1 || rr.Rank > n {
			return errors.NewDimensionFailedError(name,
				fmt.Sprintf("rank %.1f outside 1..%d", rr.Rank, len(candidates)))
		}
	}
	return nil
}

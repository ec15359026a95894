// internal/workers/placement/rank-communities/handler.go
package rankcommunities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"placement-workers/internal/common/errors"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/common/metrics"
	"placement-workers/internal/common/observability"
	"placement-workers/internal/ranking"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "rank-communities"

// ExportSaver persists a finished export. *store.Store satisfies it.
type ExportSaver interface {
	SaveExport(ctx context.Context, exp *ranking.Export) (string, error)
}

type Handler struct {
	config     *Config
	engine     *ranking.Engine
	store      ExportSaver
	obs        *observability.Observability
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

type HandlerOptions struct {
	Config        *Config
	Engine        *ranking.Engine
	Store         ExportSaver
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("%s: ranking engine is required", TaskType)
	}
	if cfg.PersistResults && opts.Store == nil {
		return nil, fmt.Errorf("%s: persist_results is set but no store was given", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:     cfg,
		engine:     opts.Engine,
		store:      opts.Store,
		obs:        opts.Observability,
		errHandler: errors.NewErrorHandler(log),
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.process(ctx, job)
	if err != nil {
		code := string(errors.CodeOf(err))
		if code == "" {
			code = "INTERNAL_ERROR"
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.obs.RecordJobProcessed(context.Background(), "failed")
		h.obs.RecordJobDuration(context.Background(), time.Since(start), "failed")

		// ctx may already be past its deadline; the broker still needs the answer
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(context.Background(), "completed")
	h.obs.RecordJobDuration(context.Background(), time.Since(start), "completed")
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	raw := []byte(job.GetVariables())
	if err := inputSchema.ValidateBytes(raw); err != nil {
		return nil, errors.NewInvalidRankingInputError(err.Error())
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewInvalidRankingInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute ranks the input communities, builds the export and saves it when persistence
// is enabled.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRankingInputError("input cannot be nil")
	}
	req := input.ClientRequirement
	if req.Timeline != "" && !req.Timeline.Valid() {
		return nil, errors.NewInvalidRankingInputError(fmt.Sprintf("unknown timeline %q", req.Timeline))
	}

	engine := h.engine
	if len(input.Weights) > 0 {
		engine = engine.WithWeights(input.Weights)
	}

	h.obs.RecordCandidates(ctx, len(input.Communities))

	pass, err := engine.Run(ctx, input.Communities, req)
	if err != nil {
		return nil, errors.NewRankingCancelledError(err)
	}

	exp := engine.Export(pass.Rankings, req)
	exp.Performance = pass.Performance()

	output := &Output{
		RankingExport: exp,
		TotalMatches:  len(pass.Rankings),
	}
	if len(pass.Rankings) > 0 {
		output.TopCommunityID = pass.Rankings[0].CommunityID
	}

	if h.config.PersistResults && h.store != nil {
		id, err := h.store.SaveExport(ctx, exp)
		if err != nil {
			return nil, err
		}
		output.ConsultationID = id
	}

	h.logger.Info("communities ranked", map[string]interface{}{
		"candidates":     pass.CandidateCount,
		"shortlist":      pass.ShortlistCount,
		"returned":       output.TotalMatches,
		"topCommunityId": output.TopCommunityID,
		"fallbacks":      pass.Fallbacks,
		"durationMs":     pass.Total.Milliseconds(),
	})

	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"totalMatches": output.TotalMatches,
	})
}

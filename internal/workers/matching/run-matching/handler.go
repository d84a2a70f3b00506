// internal/workers/matching/run-matching/handler.go
package runmatching

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"matching-workers/internal/common/camunda"
	"matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/metrics"
	"matching-workers/internal/common/validation"
	"matching-workers/internal/matching/engine"
	"matching-workers/internal/models"
)

const (
	TaskType = "run-matching"
)

// Runner is the matching engine as seen by the worker.
type Runner interface {
	Run(ctx context.Context, req engine.Request) (*engine.Summary, error)
}

type Handler struct {
	config       *Config
	runner       Runner
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, runner Runner, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing matching run", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.ParseInput(job.GetVariables())
	if err != nil {
		stdErr := h.errorHandler.HandleJobError(ctx, client, job, err)
		timer.Done(string(stdErr.Code))
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		stdErr := h.errorHandler.HandleJobError(ctx, client, job, err)
		timer.Done(string(stdErr.Code))
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output, h.logger); err != nil {
		timer.Done("COMPLETE_FAILED")
		return
	}
	timer.Done("")
}

// ParseInput validates the job variables against the registry schema and decodes them.
func (h *Handler) ParseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInvalidRequestError("job variables are not a JSON object")
	}
	if h.validator != nil {
		if err := h.validator.Check(TaskType, raw); err != nil {
			return nil, err
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	return &input, nil
}

// Execute runs the matching engine for the input and maps the summary to job output.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.request(input)
	if err != nil {
		return nil, err
	}

	summary, err := h.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return toOutput(summary), nil
}

func (h *Handler) request(input *Input) (engine.Request, error) {
	mode, err := models.ParseScorerMode(input.ScorerMode)
	if err != nil {
		return engine.Request{}, errors.NewInvalidRequestError(err.Error())
	}
	switch {
	case input.ScorerMode == "" && input.UseAI:
		mode = models.ScorerAssisted
	case input.ScorerMode == "" && h.config.DefaultMode != "":
		mode = h.config.DefaultMode
	}

	req := engine.Request{
		TenantID:     input.TenantID,
		ForceRefresh: input.ForceRefresh,
		Mode:         mode,
	}
	if input.NeedID != nil {
		req.NeedID = *input.NeedID
	}
	if w := input.Weights; w != nil {
		req.Weights = &models.WeightConfig{
			Total:        w.Total,
			Skills:       w.Skills,
			Location:     w.Location,
			Availability: w.Availability,
			Financial:    w.Financial,
			Experience:   w.Experience,
		}
	}
	return req, nil
}

func toOutput(s *engine.Summary) *Output {
	out := &Output{
		Success:        s.Success,
		Message:        s.Message,
		TenantID:       s.TenantID,
		ScorerMode:     string(s.Mode),
		NeedsProcessed: s.NeedsProcessed,
		NeedsFailed:    s.NeedsFailed,
		RankingsCount:  s.RankingsCount,
		Cache: CacheOutput{
			Hits:     s.Cache.Hits,
			Computed: s.Cache.Computed,
			Shared:   s.Cache.Shared,
		},
		Results:    make([]NeedOutput, 0, len(s.Results)),
		DurationMs: s.Duration.Milliseconds(),
	}
	for _, r := range s.Results {
		n := NeedOutput{
			NeedID:      r.NeedID,
			Fingerprint: r.Fingerprint,
			Source:      string(r.Source),
			Presented:   r.Presented,
			Persisted:   r.Persisted,
		}
		if r.Failure != nil {
			n.ErrorCode = string(r.Failure.Code)
			n.ErrorMessage = r.Failure.Message
		}
		for _, b := range r.Ranking.Presented() {
			n.Shortlist = append(n.Shortlist, b.View())
		}
		out.Results = append(out.Results, n)
	}
	return out
}

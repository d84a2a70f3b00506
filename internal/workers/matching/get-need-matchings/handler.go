// internal/workers/matching/get-need-matchings/handler.go
package getneedmatchings

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
	"matching-workers/internal/matching/tenant"
	"matching-workers/internal/models"
)

const (
	TaskType = "get-need-matchings"
)

type Reader interface {
	ListByNeed(ctx context.Context, tenantID, needID string, q models.MatchingQuery) ([]models.StoredMatching, error)
}

type Handler struct {
	config       *Config
	reader       Reader
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reader Reader, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		reader:       reader,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.ParseInput(job.GetVariables())
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			if err := camunda.CompleteJob(ctx, client, job, output, h.logger); err != nil {
				timer.Done("COMPLETE_FAILED")
				return
			}
			timer.Done("")
			return
		}
	}
	stdErr := h.errorHandler.HandleJobError(ctx, client, job, err)
	timer.Done(string(stdErr.Code))
}

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

// Execute returns the stored shortlist of the need. Foreign and missing needs are
// both reported as NOT_FOUND.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !tenant.ValidTenant(input.TenantID) {
		return nil, errors.NewInvalidRequestError("tenantId is required")
	}
	if input.NeedID == "" {
		return nil, errors.NewInvalidRequestError("needId is required")
	}

	matchings, err := h.reader.ListByNeed(ctx, input.TenantID, input.NeedID, models.MatchingQuery{
		Limit:    input.Limit,
		MinScore: input.MinScore,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Need matchings loaded", map[string]interface{}{
		"tenantId": input.TenantID,
		"needId":   input.NeedID,
		"count":    len(matchings),
	})
	return &Output{NeedID: input.NeedID, Count: len(matchings), Matchings: matchings}, nil
}

// internal/workers/matching/update-need/handler.go
package updateneed

import (
	"context"
	"encoding/json"
	"sort"

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
	TaskType = "update-need"
)

type Updater interface {
	UpdateNeed(ctx context.Context, tenantID, needID string, patch models.NeedPatch) (models.JobNeed, error)
}

type Handler struct {
	config       *Config
	updater      Updater
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, updater Updater, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		updater:      updater,
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

// Execute applies the operator patch and returns the updated need.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !tenant.ValidTenant(input.TenantID) {
		return nil, errors.NewInvalidRequestError("tenantId is required")
	}
	if input.NeedID == "" {
		return nil, errors.NewInvalidRequestError("needId is required")
	}

	patch, err := toPatch(input)
	if err != nil {
		return nil, err
	}

	need, err := h.updater.UpdateNeed(ctx, input.TenantID, input.NeedID, patch)
	if err != nil {
		return nil, err
	}

	updated := make([]string, 0, 3)
	for f := range patch.Fields() {
		updated = append(updated, string(f))
	}
	sort.Strings(updated)

	h.logger.Info("Need updated", map[string]interface{}{
		"tenantId": input.TenantID,
		"needId":   input.NeedID,
		"fields":   updated,
	})
	return &Output{Need: need, Updated: updated}, nil
}

func toPatch(input *Input) (models.NeedPatch, error) {
	var patch models.NeedPatch
	if input.Status != nil {
		status, err := models.ParseNeedStatus(*input.Status)
		if err != nil {
			return patch, errors.NewInvalidRequestError(err.Error())
		}
		patch.Status = &status
	}
	patch.ScoreThreshold = input.ScoreThreshold
	patch.DesiredCount = input.DesiredCount
	if err := patch.Validate(); err != nil {
		return patch, errors.NewInvalidRequestError(err.Error())
	}
	return patch, nil
}

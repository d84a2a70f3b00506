// internal/workers/matching/export-need-matchings/handler.go
package exportneedmatchings

import (
	"context"
	"encoding/json"
	"time"

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
	TaskType = "export-need-matchings"
)

type Exporter interface {
	ExportByNeed(ctx context.Context, tenantID, needID string) ([]models.MatchedCandidate, error)
}

type Handler struct {
	config       *Config
	exporter     Exporter
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, exporter Exporter, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		exporter:     exporter,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
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

// Execute renders the stored shortlist of the need as export rows, best rank first.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !tenant.ValidTenant(input.TenantID) {
		return nil, errors.NewInvalidRequestError("tenantId is required")
	}
	if input.NeedID == "" {
		return nil, errors.NewInvalidRequestError("needId is required")
	}

	matched, err := h.exporter.ExportByNeed(ctx, input.TenantID, input.NeedID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ExportRow, len(matched))
	for i, m := range matched {
		rows[i] = m.ExportRow()
	}

	h.logger.Info("Need matchings exported", map[string]interface{}{
		"tenantId": input.TenantID,
		"needId":   input.NeedID,
		"rows":     len(rows),
	})
	return &Output{
		NeedID:      input.NeedID,
		Count:       len(rows),
		Columns:     Columns,
		Rows:        rows,
		GeneratedAt: h.now().UTC(),
	}, nil
}

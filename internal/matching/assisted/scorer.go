// Package assisted scores (candidate, need) pairs with a generative model. Criteria
// the model does not return fall back to the rule-based calculator.
package assisted

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching/score"
	"matching-workers/internal/models"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

type Options struct {
	Timeout      time.Duration
	MaxLogLength int
}

// Scorer implements score.Scorer on top of a content generator.
type Scorer struct {
	generator contentGenerator
	fallback  *score.Calculator
	logger    logger.Logger
	timeout   time.Duration
	maxLogLen int
	version   string
}

func NewScorer(generator contentGenerator, fallback *score.Calculator, log logger.Logger, opts Options) *Scorer {
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	sum := sha256.Sum256([]byte(generator.Model() + "\x00" + promptTemplate + "\x00" + fallback.Version()))
	return &Scorer{
		generator: generator,
		fallback:  fallback,
		logger:    log.WithFields(map[string]interface{}{"scorer": string(models.ScorerAssisted), "model": generator.Model()}),
		timeout:   opts.Timeout,
		maxLogLen: opts.MaxLogLength,
		version:   hex.EncodeToString(sum[:8]),
	}
}

func (s *Scorer) Mode() models.ScorerMode { return models.ScorerAssisted }

func (s *Scorer) Version() string { return s.version }

func (s *Scorer) Score(ctx context.Context, c models.Candidate, n models.JobNeed, w models.WeightConfig) (models.CriterionScores, error) {
	prompt, err := buildPrompt(c, n, w)
	if err != nil {
		return models.CriterionScores{}, apperrors.NewAssistedScoringFailedError(err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("assisted scoring request", map[string]interface{}{
		"candidateId":   c.ID,
		"needId":        n.ID,
		"promptLength":  utf8.RuneCountInString(prompt),
		"promptPreview": truncate(prompt, s.maxLogLen),
	})

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return models.CriterionScores{}, apperrors.NewAssistedScoringFailedError(err)
	}

	s.logger.Debug("assisted scoring response", map[string]interface{}{
		"candidateId":     c.ID,
		"needId":          n.ID,
		"responsePreview": truncate(raw, s.maxLogLen),
	})

	parsed, err := parseResponse(raw)
	if err != nil {
		return models.CriterionScores{}, apperrors.NewAssistedScoringFailedError(err)
	}

	scores := s.fallback.Calculate(c, n)
	for _, criterion := range models.Criteria {
		if v, ok := parsed[criterion]; ok {
			scores = scores.Set(criterion, v)
		}
	}
	// on-mission candidates never score on availability, whatever the model says
	if c.Availability == models.AvailabilityOnMission {
		scores.Availability = 0
	}
	return scores, nil
}

type candidatePayload struct {
	Skills          []string `json:"skills"`
	PostalCode      string   `json:"postalCode,omitempty"`
	Department      string   `json:"department,omitempty"`
	MobilityKm      int      `json:"mobilityKm"`
	AvailableInDays int      `json:"availableInDays"`
	MinHourlyRate   *float64 `json:"minHourlyRate,omitempty"`
	ExperienceYears *float64 `json:"experienceYears,omitempty"`
}

type needPayload struct {
	Title              string   `json:"title,omitempty"`
	RequiredSkills     []string `json:"requiredSkills"`
	MinExperienceYears *float64 `json:"minExperienceYears,omitempty"`
	MaxHourlyRate      *float64 `json:"maxHourlyRate,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
	Department         string   `json:"department,omitempty"`
	StartInDays        int      `json:"startInDays"`
}

// buildPrompt sends scoring inputs only; names and contact details stay local.
func buildPrompt(c models.Candidate, n models.JobNeed, w models.WeightConfig) (string, error) {
	cand, err := json.MarshalIndent(candidatePayload{
		Skills:          c.Skills,
		PostalCode:      c.PostalCode,
		Department:      c.Department,
		MobilityKm:      c.Mobility(),
		AvailableInDays: c.LeadDays(),
		MinHourlyRate:   c.MinHourlyRate,
		ExperienceYears: c.ExperienceYears,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate payload: %w", err)
	}
	need, err := json.MarshalIndent(needPayload{
		Title:              n.Title,
		RequiredSkills:     n.RequiredSkills,
		MinExperienceYears: n.MinExperienceYears,
		MaxHourlyRate:      n.MaxHourlyRate,
		PostalCode:         n.PostalCode,
		Department:         n.Department,
		StartInDays:        n.LeadDays(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal need payload: %w", err)
	}
	weights, err := json.Marshal(map[models.Criterion]float64{
		models.CriterionSkills:       w.Skills,
		models.CriterionLocation:     w.Location,
		models.CriterionAvailability: w.Availability,
		models.CriterionFinancial:    w.Financial,
		models.CriterionExperience:   w.Experience,
	})
	if err != nil {
		return "", fmt.Errorf("marshal weights: %w", err)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{CANDIDATE_JSON}}", string(cand))
	prompt = strings.ReplaceAll(prompt, "{{NEED_JSON}}", string(need))
	prompt = strings.ReplaceAll(prompt, "{{WEIGHTS_JSON}}", string(weights))
	return prompt, nil
}

// parseResponse reads the criterion scores. Values above 1 are taken as
// percentages; unparseable values are skipped.
func parseResponse(raw string) (map[models.Criterion]float64, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	out := make(map[models.Criterion]float64, len(models.Criteria))
	for _, c := range models.Criteria {
		v := coerceFloat(data[string(c)])
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		if v > 1 {
			v = v / 100
		}
		out[c] = math.Min(v, 1)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model response carries no criterion score")
	}
	return out, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(val), "%"), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

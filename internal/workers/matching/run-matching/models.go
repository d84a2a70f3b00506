// internal/workers/matching/run-matching/models.go
package runmatching

import "matching-workers/internal/models"

type Input struct {
	TenantID     string        `json:"tenantId"`
	NeedID       *string       `json:"needId,omitempty"`
	ForceRefresh bool          `json:"forceRefresh"`
	ScorerMode   string        `json:"scorerMode,omitempty"`
	UseAI        bool          `json:"useAi"`
	Weights      *WeightsInput `json:"weights,omitempty"`
}

type WeightsInput struct {
	Total        float64 `json:"total"`
	Skills       float64 `json:"skills"`
	Location     float64 `json:"location"`
	Availability float64 `json:"availability"`
	Financial    float64 `json:"financial"`
	Experience   float64 `json:"experience"`
}

type Output struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	TenantID       string       `json:"tenantId"`
	ScorerMode     string       `json:"scorerMode"`
	NeedsProcessed int          `json:"needsProcessed"`
	NeedsFailed    int          `json:"needsFailed"`
	RankingsCount  int          `json:"rankingsCount"`
	Cache          CacheOutput  `json:"cache"`
	Results        []NeedOutput `json:"results"`
	DurationMs     int64        `json:"durationMs"`
}

type CacheOutput struct {
	Hits     int `json:"hits"`
	Computed int `json:"computed"`
	Shared   int `json:"shared"`
}

type NeedOutput struct {
	NeedID       string                 `json:"needId"`
	Fingerprint  string                 `json:"fingerprint,omitempty"`
	Source       string                 `json:"source,omitempty"`
	Presented    int                    `json:"presented"`
	Persisted    bool                   `json:"persisted"`
	Shortlist    []models.BreakdownView `json:"shortlist,omitempty"`
	ErrorCode    string                 `json:"errorCode,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
}

// internal/workers/matching/update-need/models.go
package updateneed

import "matching-workers/internal/models"

type Input struct {
	TenantID       string   `json:"tenantId"`
	NeedID         string   `json:"needId"`
	Status         *string  `json:"status,omitempty"`
	ScoreThreshold *float64 `json:"scoreThreshold,omitempty"`
	DesiredCount   *int     `json:"desiredCount,omitempty"`
}

type Output struct {
	Need    models.JobNeed `json:"need"`
	Updated []string       `json:"updated"`
}

// internal/workers/matching/get-need-matchings/models.go
package getneedmatchings

import "matching-workers/internal/models"

type Input struct {
	TenantID string  `json:"tenantId"`
	NeedID   string  `json:"needId"`
	Limit    int     `json:"limit"`
	MinScore float64 `json:"minScore"`
}

type Output struct {
	NeedID    string                  `json:"needId"`
	Count     int                     `json:"count"`
	Matchings []models.StoredMatching `json:"matchings"`
}

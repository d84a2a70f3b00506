// internal/workers/matching/export-need-matchings/models.go
package exportneedmatchings

import (
	"time"

	"matching-workers/internal/models"
)

type Input struct {
	TenantID string `json:"tenantId"`
	NeedID   string `json:"needId"`
}

type Output struct {
	NeedID      string             `json:"needId"`
	Count       int                `json:"count"`
	Columns     []string           `json:"columns"`
	Rows        []models.ExportRow `json:"rows"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// Columns lists the headers of an export, in row field order.
var Columns = []string{
	"Rank", "Score", "Candidate", "Email", "Phone", "Location", "Experience", "Availability", "Min hourly rate",
}

// internal/models/need.go
package models

import (
	"fmt"
	"time"
)

type NeedStatus string

const (
	NeedStatusOpen   NeedStatus = "open"
	NeedStatusClosed NeedStatus = "closed"
)

const (
	DefaultDesiredCount   = 5
	DefaultScoreThreshold = 40.0
)

// JobNeed is a job requisition owned by exactly one tenant.
type JobNeed struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenantId"`
	Title              string     `json:"title,omitempty"`
	RequiredSkills     []string   `json:"requiredSkills"`
	MinExperienceYears *float64   `json:"minExperienceYears,omitempty"`
	MaxHourlyRate      *float64   `json:"maxHourlyRate,omitempty"`
	PostalCode         string     `json:"postalCode,omitempty"`
	Department         string     `json:"department,omitempty"`
	StartInDays        *int       `json:"startInDays,omitempty"`
	DesiredCount       int        `json:"desiredCount"`
	Status             NeedStatus `json:"status"`
	ScoreThreshold     float64    `json:"scoreThreshold"`

	// Summary fields, written back after a run. They never feed scoring.
	MatchingsCount int        `json:"matchingsCount"`
	BestScore      *float64   `json:"bestScore,omitempty"`
	LastAnalysisAt *time.Time `json:"lastAnalysisAt,omitempty"`
}

// IsOpen reports whether the need accepts matching runs.
func (n JobNeed) IsOpen() bool {
	return n.Status == "" || n.Status == NeedStatusOpen
}

// Desired returns the desired candidate count, falling back to the default.
func (n JobNeed) Desired() int {
	if n.DesiredCount <= 0 {
		return DefaultDesiredCount
	}
	return n.DesiredCount
}

// LeadDays returns the start lead time in days; missing means as soon as possible.
func (n JobNeed) LeadDays() int {
	if n.StartInDays == nil || *n.StartInDays < 0 {
		return 0
	}
	return *n.StartInDays
}

// ParseNeedStatus accepts the english and legacy french labels.
func ParseNeedStatus(raw string) (NeedStatus, error) {
	switch raw {
	case "open", "ouvert":
		return NeedStatusOpen, nil
	case "closed", "ferme", "fermé", "pourvu":
		return NeedStatusClosed, nil
	}
	return "", fmt.Errorf("unknown need status %q", raw)
}

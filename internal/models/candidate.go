// internal/models/candidate.go
package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Availability is the normalized availability state of a candidate.
type Availability string

const (
	AvailabilityImmediate Availability = "immediate"
	AvailabilityInDays    Availability = "in_days"
	AvailabilityOnMission Availability = "on_mission"
)

// DefaultMobilityKm applies when a candidate did not state a mobility radius.
const DefaultMobilityKm = 30

var inDaysPattern = regexp.MustCompile(`^in[-_ ]?(\d+)[-_ ]?days?$`)

// ParseAvailability normalizes the availability labels found in candidate records
// ("immediate", "in-15-days", "on-mission", "en mission", ...). Unknown or empty
// labels are treated as immediate.
func ParseAvailability(raw string) (Availability, int) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", "immediate", "immédiate", "immediat", "immédiat", "now":
		return AvailabilityImmediate, 0
	case "on_mission", "on-mission", "on mission", "en mission", "en_mission":
		return AvailabilityOnMission, 0
	}
	if m := inDaysPattern.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil && days > 0 {
			return AvailabilityInDays, days
		}
		return AvailabilityImmediate, 0
	}
	return AvailabilityImmediate, 0
}

// ResolveAvailability combines the stored label with an optional availability
// date. A known date wins over the label, except for candidates on mission.
func ResolveAvailability(label string, from *time.Time, now time.Time) (Availability, int) {
	state, days := ParseAvailability(label)
	if from == nil || state == AvailabilityOnMission {
		return state, days
	}
	if d := DaysUntil(*from, now); d > 0 {
		return AvailabilityInDays, d
	}
	return AvailabilityImmediate, 0
}

// DaysUntil counts whole calendar days (UTC) from now to day, never negative.
func DaysUntil(day, now time.Time) int {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = day.UTC().Date()
	target := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	diff := int(target.Sub(today).Hours() / 24)
	if diff < 0 {
		return 0
	}
	return diff
}

// Candidate is one worker of the shared pool. It is a read-only snapshot for the
// duration of a matching run.
type Candidate struct {
	ID              string       `json:"id"`
	ExternalID      string       `json:"externalId,omitempty"`
	FirstName       string       `json:"firstName,omitempty"`
	LastName        string       `json:"lastName,omitempty"`
	Email           string       `json:"email,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	City            string       `json:"city,omitempty"`
	Skills          []string     `json:"skills"`
	PostalCode      string       `json:"postalCode,omitempty"`
	Department      string       `json:"department,omitempty"`
	MobilityKm      *int         `json:"mobilityKm,omitempty"`
	Availability    Availability `json:"availability"`
	AvailableInDays int          `json:"availableInDays,omitempty"`
	MinHourlyRate   *float64     `json:"minHourlyRate,omitempty"`
	ExperienceYears *float64     `json:"experienceYears,omitempty"`
	Active          bool         `json:"active"`
	Blacklisted     bool         `json:"blacklisted"`
}

// Eligible reports whether the candidate may appear in a ranking.
func (c Candidate) Eligible() bool {
	return c.Active && !c.Blacklisted && c.Availability != AvailabilityOnMission
}

// Mobility returns the stated mobility radius or the default one.
func (c Candidate) Mobility() int {
	if c.MobilityKm == nil || *c.MobilityKm < 0 {
		return DefaultMobilityKm
	}
	return *c.MobilityKm
}

// LeadDays is the number of days before the candidate can start.
func (c Candidate) LeadDays() int {
	if c.Availability == AvailabilityInDays && c.AvailableInDays > 0 {
		return c.AvailableInDays
	}
	return 0
}

// FullName is used by exports.
func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// CandidatePool is the tenant-visible candidate set along with its version token.
type CandidatePool struct {
	Candidates []Candidate `json:"candidates"`
	Version    string      `json:"version"`
}

// Package search serves the candidate pool from an Elasticsearch index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching/fingerprint"
	"matching-workers/internal/models"
	"matching-workers/internal/ports"
)

const (
	DefaultIndex    = "candidates"
	DefaultPageSize = 500
)

var _ ports.CandidatePoolProvider = (*PoolProvider)(nil)

// PoolProvider reads the tenant-visible candidate pool page by page, sorted by id.
type PoolProvider struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
	now      func() time.Time
	logger   logger.Logger
}

type Option func(*PoolProvider)

func WithIndex(index string) Option {
	return func(p *PoolProvider) {
		if index != "" {
			p.index = index
		}
	}
}

func WithPageSize(n int) Option {
	return func(p *PoolProvider) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *PoolProvider) { p.now = now }
}

func WithLogger(l logger.Logger) Option {
	return func(p *PoolProvider) { p.logger = l }
}

func NewPoolProvider(client *elasticsearch.Client, opts ...Option) *PoolProvider {
	p := &PoolProvider{
		client:   client,
		index:    DefaultIndex,
		pageSize: DefaultPageSize,
		now:      time.Now,
		logger:   logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// candidateDoc is the indexed form of a candidate.
type candidateDoc struct {
	ID              string     `json:"id"`
	ExternalID      string     `json:"external_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	City            string     `json:"city"`
	PostalCode      string     `json:"postal_code"`
	Department      string     `json:"department"`
	MobilityKm      *int       `json:"mobility_km"`
	Skills          []string   `json:"skills"`
	ExperienceYears *float64   `json:"experience_years"`
	Availability    string     `json:"availability"`
	AvailableFrom   *time.Time `json:"available_from"`
	MinHourlyRate   *float64   `json:"min_hourly_rate"`
	Active          bool       `json:"active"`
	Blacklisted     bool       `json:"blacklisted"`
}

func (d candidateDoc) toModel(now time.Time) models.Candidate {
	c := models.Candidate{
		ID:              d.ID,
		ExternalID:      d.ExternalID,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Email:           d.Email,
		Phone:           d.Phone,
		City:            d.City,
		PostalCode:      d.PostalCode,
		Department:      d.Department,
		MobilityKm:      d.MobilityKm,
		Skills:          d.Skills,
		ExperienceYears: d.ExperienceYears,
		MinHourlyRate:   d.MinHourlyRate,
		Active:          d.Active,
		Blacklisted:     d.Blacklisted,
	}
	c.Availability, c.AvailableInDays = models.ResolveAvailability(d.Availability, d.AvailableFrom, now)
	return c
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source candidateDoc  `json:"_source"`
			Sort   []interface{} `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// poolQuery selects active, non-blacklisted candidates whose visibility list is
// missing or contains the tenant.
func poolQuery(tenantID string) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"filter": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"active": true}},
			},
			"must_not": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"blacklisted": true}},
			},
			"should": []interface{}{
				map[string]interface{}{"bool": map[string]interface{}{
					"must_not": map[string]interface{}{"exists": map[string]interface{}{"field": "visible_to"}},
				}},
				map[string]interface{}{"term": map[string]interface{}{"visible_to": tenantID}},
			},
			"minimum_should_match": 1,
		},
	}
}

func (p *PoolProvider) CandidatePool(ctx context.Context, tenantID string) (models.CandidatePool, error) {
	now := p.now()
	var (
		candidates []models.Candidate
		after      []interface{}
	)
	for page := 0; ; page++ {
		body := map[string]interface{}{
			"query": poolQuery(tenantID),
			"size":  p.pageSize,
			"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
		}
		if after != nil {
			body["search_after"] = after
		}

		res, err := p.search(ctx, body)
		if err != nil {
			return models.CandidatePool{}, err
		}
		for _, hit := range res.Hits.Hits {
			candidates = append(candidates, hit.Source.toModel(now))
		}

		n := len(res.Hits.Hits)
		if n < p.pageSize || n == 0 {
			break
		}
		after = res.Hits.Hits[n-1].Sort
		if len(after) == 0 {
			return models.CandidatePool{}, fmt.Errorf("candidate search page %d returned no sort values", page)
		}
	}

	p.logger.Debug("Candidate pool loaded from search", map[string]interface{}{
		"tenantId":   tenantID,
		"index":      p.index,
		"candidates": len(candidates),
	})
	return models.CandidatePool{
		Candidates: candidates,
		Version:    fingerprint.PoolVersion(candidates),
	}, nil
}

func (p *PoolProvider) search(ctx context.Context, body map[string]interface{}) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode candidate search: %w", err)
	}
	req := esapi.SearchRequest{
		Index: []string{p.index},
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, fmt.Errorf("candidate search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("candidate search failed: %s", res.String())
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode candidate search: %w", err)
	}
	return &out, nil
}

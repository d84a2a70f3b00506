// Package fingerprint derives cache keys and content versions for rankings.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"net/url"
	"sort"

	"matching-workers/internal/matching/score"
	"matching-workers/internal/models"
)

const DefaultPrefix = "match"

// Input lists everything that affects the value of a ranking.
type Input struct {
	TenantID      string
	NeedID        string
	NeedVersion   string
	PoolVersion   string
	WeightVersion string
	Mode          models.ScorerMode
	ScorerVersion string
}

// Key returns "<prefix>:<tenant>:<digest>". Identical inputs give identical keys;
// the tenant segment stays readable so entries can be inspected and purged per
// tenant.
func (in Input) Key(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	h := newHasher()
	h.str(in.TenantID)
	h.str(in.NeedID)
	h.str(in.NeedVersion)
	h.str(in.PoolVersion)
	h.str(in.WeightVersion)
	h.str(string(in.Mode))
	h.str(in.ScorerVersion)
	return prefix + ":" + TenantSegment(in.TenantID) + ":" + h.sum()
}

// TenantSegment is the tenant part of a key. It is query-escaped, so it never
// holds ':' or a redis glob character and one tenant's keys cannot match another
// tenant's pattern.
func TenantSegment(tenantID string) string {
	return url.QueryEscape(tenantID)
}

// PoolVersion is a content hash of the candidate fields that feed scoring and
// filtering. Candidate order does not matter.
func PoolVersion(candidates []models.Candidate) string {
	sorted := make([]models.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := newHasher()
	h.int(int64(len(sorted)))
	for _, c := range sorted {
		h.str(c.ID)
		h.strs(normalizedSkills(c.Skills))
		h.str(c.PostalCode)
		h.str(c.Department)
		h.optInt(c.MobilityKm)
		h.str(string(c.Availability))
		h.int(int64(c.LeadDays()))
		h.optFloat(c.MinHourlyRate)
		h.optFloat(c.ExperienceYears)
		h.bool(c.Eligible())
	}
	return h.sum()
}

// NeedVersion hashes the scoring inputs of a need. Summary fields written back
// after a run are left out so that the write-back never invalidates the ranking.
func NeedVersion(n models.JobNeed) string {
	h := newHasher()
	h.str(n.ID)
	h.str(n.TenantID)
	h.strs(normalizedSkills(n.RequiredSkills))
	h.optFloat(n.MinExperienceYears)
	h.optFloat(n.MaxHourlyRate)
	h.str(n.PostalCode)
	h.str(n.Department)
	h.int(int64(n.LeadDays()))
	h.int(int64(n.Desired()))
	h.float(n.ScoreThreshold)
	return h.sum()
}

// WeightVersion hashes the weights together with their declared version label.
func WeightVersion(w models.WeightConfig) string {
	h := newHasher()
	h.str(w.Name)
	h.str(w.Version)
	h.float(w.Total)
	for _, c := range models.Criteria {
		h.float(w.Weight(c))
	}
	return h.sum()
}

func normalizedSkills(skills []string) []string {
	set := score.SkillSet(skills)
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type hasher struct {
	h   hash.Hash
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{h: sha256.New()}
}

func (h *hasher) int(v int64) {
	binary.BigEndian.PutUint64(h.buf[:], uint64(v))
	h.h.Write(h.buf[:])
}

// str is length prefixed so that adjacent fields never run together.
func (h *hasher) str(s string) {
	h.int(int64(len(s)))
	h.h.Write([]byte(s))
}

func (h *hasher) strs(ss []string) {
	h.int(int64(len(ss)))
	for _, s := range ss {
		h.str(s)
	}
}

func (h *hasher) float(f float64) {
	binary.BigEndian.PutUint64(h.buf[:], math.Float64bits(f))
	h.h.Write(h.buf[:])
}

func (h *hasher) bool(b bool) {
	if b {
		h.int(1)
		return
	}
	h.int(0)
}

func (h *hasher) optFloat(f *float64) {
	if f == nil {
		h.bool(false)
		return
	}
	h.bool(true)
	h.float(*f)
}

func (h *hasher) optInt(v *int) {
	if v == nil {
		h.bool(false)
		return
	}
	h.bool(true)
	h.int(int64(*v))
}

func (h *hasher) sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

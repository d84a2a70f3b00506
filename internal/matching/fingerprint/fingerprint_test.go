package fingerprint

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/models"
)

func f64(v float64) *float64 { return &v }

func baseInput() Input {
	return Input{
		TenantID:      "tenant-a",
		NeedID:        "need-1",
		NeedVersion:   "nv",
		PoolVersion:   "pv",
		WeightVersion: "wv",
		Mode:          models.ScorerRuleBased,
		ScorerVersion: "sv",
	}
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, baseInput().Key(""), baseInput().Key(""))
	assert.True(t, strings.HasPrefix(baseInput().Key(""), "match:tenant-a:"))
	assert.True(t, strings.HasPrefix(baseInput().Key("staging"), "staging:tenant-a:"))
}

func TestKey_TenantSegmentIsEscaped(t *testing.T) {
	for _, tenantID := range []string{"acme:eu", "*", "ac[m]e?", `a\b`} {
		in := baseInput()
		in.TenantID = tenantID
		key := in.Key("match")

		parts := strings.Split(key, ":")
		require.Len(t, parts, 3, key)
		assert.NotContains(t, parts[1], "*")
		assert.NotContains(t, parts[1], "?")
		assert.NotContains(t, parts[1], "[")
		assert.NotContains(t, parts[1], `\`)
		assert.Equal(t, TenantSegment(tenantID), parts[1])
	}
	assert.Equal(t, "tenant-a", TenantSegment("tenant-a"))
}

func TestKey_EveryInputChangesTheKey(t *testing.T) {
	base := baseInput().Key("")

	mutations := map[string]func(*Input){
		"tenant":         func(in *Input) { in.TenantID = "tenant-b" },
		"need":           func(in *Input) { in.NeedID = "need-2" },
		"need version":   func(in *Input) { in.NeedVersion = "nv2" },
		"pool version":   func(in *Input) { in.PoolVersion = "pv2" },
		"weight version": func(in *Input) { in.WeightVersion = "wv2" },
		"mode":           func(in *Input) { in.Mode = models.ScorerAssisted },
		"scorer version": func(in *Input) { in.ScorerVersion = "sv2" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := baseInput()
			mutate(&in)
			assert.NotEqual(t, base, in.Key(""))
		})
	}
}

func TestKey_FieldsDoNotRunTogether(t *testing.T) {
	a := baseInput()
	a.NeedID, a.NeedVersion = "ab", "c"
	b := baseInput()
	b.NeedID, b.NeedVersion = "a", "bc"

	assert.NotEqual(t, a.Key(""), b.Key(""))
}

func TestPoolVersion(t *testing.T) {
	c1 := models.Candidate{ID: "c1", Active: true, Skills: []string{"Python", "SQL"}}
	c2 := models.Candidate{ID: "c2", Active: true, Skills: []string{"Go"}}

	v := PoolVersion([]models.Candidate{c1, c2})
	assert.Equal(t, v, PoolVersion([]models.Candidate{c2, c1}), "order independent")

	reordered := c1
	reordered.Skills = []string{"sql", " python "}
	assert.Equal(t, v, PoolVersion([]models.Candidate{reordered, c2}), "skill normalization")

	c3 := models.Candidate{ID: "c3", Active: true}
	assert.NotEqual(t, v, PoolVersion([]models.Candidate{c1, c2, c3}), "new candidate")

	richer := c2
	richer.ExperienceYears = f64(4)
	assert.NotEqual(t, v, PoolVersion([]models.Candidate{c1, richer}), "changed field")

	late := c2
	late.Availability, late.AvailableInDays = models.AvailabilityInDays, 12
	assert.NotEqual(t, v, PoolVersion([]models.Candidate{c1, late}), "changed lead time")
}

func TestNeedVersion_IgnoresSummaryFields(t *testing.T) {
	need := models.JobNeed{ID: "n", TenantID: "t", RequiredSkills: []string{"python"}, ScoreThreshold: 40}
	v := NeedVersion(need)

	now := time.Now()
	best := 87.5
	summarized := need
	summarized.MatchingsCount = 5
	summarized.BestScore = &best
	summarized.LastAnalysisAt = &now
	assert.Equal(t, v, NeedVersion(summarized))

	stricter := need
	stricter.MaxHourlyRate = f64(45)
	assert.NotEqual(t, v, NeedVersion(stricter))

	more := need
	more.DesiredCount = 12
	assert.NotEqual(t, v, NeedVersion(more))
}

func TestWeightVersion(t *testing.T) {
	w := models.DefaultWeights()
	v := WeightVersion(w)

	bumped := w
	bumped.Skills, bumped.Location = 30, 25
	assert.NotEqual(t, v, WeightVersion(bumped))

	relabeled := w
	relabeled.Version = "2"
	assert.NotEqual(t, v, WeightVersion(relabeled))

	assert.Equal(t, v, WeightVersion(models.DefaultWeights()))
}

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_ListsMatchingActivities(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)

	for _, taskType := range []string{"run-matching", "get-need-matchings", "export-need-matchings", "update-need"} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.InputSchema, taskType)
		assert.Equal(t, "implemented", a.ImplementationStatus)
	}

	_, ok := reg.Find("calculate-match-score")
	assert.False(t, ok)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"version":"2","activities":[{"id":"a.b.c","taskType":"run-matching"}]}`), 0o600))
	reg, err := LoadRegistry(good)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)

	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`{"activities":[{"taskType":"x"},{"taskType":"x"}]}`), 0o600))
	_, err = LoadRegistry(dup)
	assert.ErrorContains(t, err, "duplicate task type")

	_, err = LoadRegistry(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestActivity_Metadata(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, []string{"export-need-matchings", "get-need-matchings", "run-matching", "update-need"}, reg.TaskTypes())

	run, _ := reg.Find("run-matching")
	d, err := run.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, "2m0s", d.String())
	assert.True(t, run.HasErrorCode("NEED_CLOSED"))
	assert.False(t, run.HasErrorCode("PERSISTENCE_FAILED"))

	_, err = parse([]byte(`{"activities":[{"taskType":"x","timeout":"soon"}]}`))
	assert.ErrorContains(t, err, "invalid timeout")
}

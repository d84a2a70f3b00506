package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "matchctl version: unknown\n", out)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"migrate", "up"}, {"migrate", "down"}, {"migrate", "status"}, {"run"}, {"cache", "purge"}, {"registry", "validate"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRequiredFlags(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "tenant" not set`)

	_, err = execute(t, "cache", "purge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "tenant" not set`)
}

func TestRunOptions_Input(t *testing.T) {
	in := (&runOptions{tenant: "tenant-a", force: true, mode: "assisted"}).input()
	assert.Equal(t, "tenant-a", in.TenantID)
	assert.Nil(t, in.NeedID)
	assert.True(t, in.ForceRefresh)
	assert.Equal(t, "assisted", in.ScorerMode)

	in = (&runOptions{tenant: "tenant-a", need: "need-1"}).input()
	require.NotNil(t, in.NeedID)
	assert.Equal(t, "need-1", *in.NeedID)
}

func TestRegistryValidate(t *testing.T) {
	out, err := execute(t, "registry", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "TASK TYPE")
	assert.Contains(t, out, "run-matching")
	assert.Contains(t, out, "update-need")

	_, err = execute(t, "registry", "validate", "--path", "does-not-exist.json")
	assert.Error(t, err)
}

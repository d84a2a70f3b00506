package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/matching/fingerprint"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "match:tenant-a:1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "match:tenant-a:1", ranking("match:tenant-a:1"), 10*time.Minute))
	assert.Equal(t, 10*time.Minute, mr.TTL("match:tenant-a:1"))

	got, found, err := store.Get(ctx, "match:tenant-a:1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ranking("match:tenant-a:1").Ranked, got.Ranked)

	require.NoError(t, store.Delete(ctx, "match:tenant-a:1"))
	assert.False(t, mr.Exists("match:tenant-a:1"))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, client := setupMiniredis(t)
	require.NoError(t, mr.Set("match:tenant-a:1", "{not json"))

	_, _, err := NewRedisStore(client).Get(context.Background(), "match:tenant-a:1")
	assert.ErrorContains(t, err, "decode ranking")
}

func TestRedisStore_PurgeTenant(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	for _, k := range []string{"match:tenant-a:1", "match:tenant-a:2", "match:tenant-b:1"} {
		require.NoError(t, store.Set(ctx, k, ranking(k), 0))
	}

	removed, err := store.PurgeTenant(ctx, "match", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, mr.Exists("match:tenant-b:1"))
	assert.False(t, mr.Exists("match:tenant-a:1"))
}

func TestRedisStore_PurgeTenant_StaysWithinTenant(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	keyOf := func(tenantID string) string {
		return fingerprint.Input{TenantID: tenantID, NeedID: "need-1"}.Key("match")
	}
	acme, acmeEU, star, bracket := keyOf("acme"), keyOf("acme:eu"), keyOf("*"), keyOf("ac[m]e")
	for _, k := range []string{acme, acmeEU, star, bracket} {
		require.NoError(t, store.Set(ctx, k, ranking(k), 0))
	}

	removed, err := store.PurgeTenant(ctx, "match", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, mr.Exists(acme))
	assert.True(t, mr.Exists(acmeEU))

	removed, err = store.PurgeTenant(ctx, "match", "*")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, mr.Exists(star))
	assert.True(t, mr.Exists(acmeEU))
	assert.True(t, mr.Exists(bracket))

	_, err = store.PurgeTenant(ctx, "match", " ")
	assert.Error(t, err)
	assert.True(t, mr.Exists(acmeEU))
}

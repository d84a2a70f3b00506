package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/common/config"
)

type fakeDep struct {
	name    string
	pingErr error
	closed  *[]string
}

func (f fakeDep) Name() string                 { return f.name }
func (f fakeDep) Ping(_ context.Context) error { return f.pingErr }
func (f fakeDep) Close() error {
	*f.closed = append(*f.closed, f.name)
	return nil
}

func TestPingAll(t *testing.T) {
	var closed []string
	ok := fakeDep{name: "ok", closed: &closed}
	down := fakeDep{name: "down", pingErr: errors.New("connection refused"), closed: &closed}

	assert.NoError(t, PingAll(context.Background(), ok, nil))

	err := PingAll(context.Background(), ok, down)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down: connection refused")
	assert.NotContains(t, err.Error(), "ok:")
}

func TestCloseAll_ReverseOrder(t *testing.T) {
	var closed []string
	require.NoError(t, CloseAll(
		fakeDep{name: "first", closed: &closed},
		nil,
		fakeDep{name: "second", closed: &closed},
	))
	assert.Equal(t, []string{"second", "first"}, closed)
}

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	c := &PostgresClient{DB: db}

	mock.ExpectPing()
	assert.NoError(t, c.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("no route"))
	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres ping failed")

	mock.ExpectClose()
	assert.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	assert.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "redis", c.Name())

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewElasticsearch_UsesURLFallback(t *testing.T) {
	c, err := NewElasticsearch(config.ElasticsearchConfig{URL: "http://search.internal:9200"})
	require.NoError(t, err)
	assert.Equal(t, "elasticsearch", c.Name())
	assert.NoError(t, c.Close())
}

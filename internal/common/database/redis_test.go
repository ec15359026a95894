package database

import (
	"context"
	"testing"
	"time"

	"placement-workers/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewRedis_EmptyAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_JSONRoundTrip(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.SetJSON(ctx, "geo:14604", point{Lat: 43.15, Lon: -77.6}, time.Hour))

	var got point
	require.NoError(t, client.GetJSON(ctx, "geo:14604", &got))
	assert.Equal(t, point{Lat: 43.15, Lon: -77.6}, got)

	mr.FastForward(2 * time.Hour)
	err := client.GetJSON(ctx, "geo:14604", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_GetJSON_Miss(t *testing.T) {
	client, _ := newTestRedis(t)

	var got point
	err := client.GetJSON(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_GetJSON_Corrupt(t *testing.T) {
	client, mr := newTestRedis(t)
	require.NoError(t, mr.Set("geo:bad", "not-json"))

	var got point
	err := client.GetJSON(context.Background(), "geo:bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

//go:build integration

// Package containers starts throwaway backends for integration tests.
package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a running Redis server plus a connected client. Both are
// torn down when the test ends.
type RedisContainer struct {
	URL    string
	Client *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, redisImage)
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	url, err := ctr.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "parse redis url")

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err(), "ping redis")

	return &RedisContainer{URL: url, Client: client}
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

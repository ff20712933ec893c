package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/pkg/redis"
)

func TestConnect_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := redis.Connect(ctx, redis.Config{})
	require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(ctx, redis.Config{ConnectionURL: "http://not-redis"})
	require.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	cfg := redis.Config{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: 2 * time.Second,
	}
	_, err := redis.Connect(context.Background(), cfg)
	require.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, redis.Config{}.Validate(), redis.ErrEmptyConnectionURL)
	assert.NoError(t, redis.Config{ConnectionURL: "redis://localhost:6379/0"}.Validate())
}

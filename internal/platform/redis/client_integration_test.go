//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrscan/internal/platform/config"
	redisclient "qrscan/internal/platform/redis"
	"qrscan/pkg/testutil/containers"
)

func TestNew_ConnectsAndReportsHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := redisclient.New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 2})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Health(ctx))
}

func TestNew_Unconfigured(t *testing.T) {
	client, err := redisclient.New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNew_BadURL(t *testing.T) {
	_, err := redisclient.New(context.Background(), config.RedisConfig{URL: "mysql://nope"})
	assert.Error(t, err)
}

package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/detectq/internal/domain/model"
	"github.com/target/detectq/internal/testutil"
)

func TestRedisCacheRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("set if not exists", func(t *testing.T) {
		ok, err := repo.SetIfNotExists(ctx, "test:nx", []byte("a"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.SetIfNotExists(ctx, "test:nx", []byte("b"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.Equal(t, "a", client.Get(ctx, "test:nx").Val())
		ttl := client.TTL(ctx, "test:nx").Val()
		assert.True(t, ttl > 0 && ttl <= time.Minute)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := repo.Exists(ctx, "test:nx")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Exists(ctx, "non:existent:key")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		_, err := repo.Exists(ctx, "")
		assert.Error(t, err)
		_, err = repo.SetIfNotExists(ctx, "", []byte("x"), time.Minute)
		assert.Error(t, err)
	})
}

func TestRedisJobQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	q, err := NewRedisJobQueue(RedisJobQueueOptions{Client: client, Name: "jobs"})
	require.NoError(t, err)
	ctx := context.Background()

	depth, err := q.ApproximateDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, model.JobDescriptor{JobID: id, CallerRef: "42"}))
	}

	depth, err = q.ApproximateDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, depth)

	raw, err := client.LPop(ctx, q.Key()).Bytes()
	require.NoError(t, err)
	first, err := model.DecodeJobDescriptor(raw)
	require.NoError(t, err)
	assert.Equal(t, "a", first.JobID)
}

func TestNewRedisJobQueue_RequiresName(t *testing.T) {
	_, err := NewRedisJobQueue(RedisJobQueueOptions{})
	assert.ErrorIs(t, err, ErrQueueNameRequired)
}

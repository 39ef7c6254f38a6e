package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisImpl "github.com/victoralfred/qrisk/internal/infrastructure/redis"
)

func TestRateLimiter_Check(t *testing.T) {
	limiter := redisImpl.NewRateLimiter(startRedis(t))
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		key := "test-key-1"
		limit := 5
		window := time.Minute

		result, err := limiter.Check(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, limit, result.Limit)
		assert.Equal(t, limit-1, result.Remaining)

		result, err = limiter.Check(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, limit-2, result.Remaining)
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		key := "test-key-2"
		limit := 3
		window := time.Minute

		for i := 0; i < limit; i++ {
			result, err := limiter.Check(ctx, key, limit, window)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		}

		result, err := limiter.Check(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
		assert.True(t, result.RetryAfter > 0)
	})

	t.Run("sliding window behavior", func(t *testing.T) {
		key := "test-key-3"
		limit := 2
		window := 200 * time.Millisecond

		for i := 0; i < limit; i++ {
			result, err := limiter.Check(ctx, key, limit, window)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		}

		result, err := limiter.Check(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		time.Sleep(300 * time.Millisecond)

		result, err = limiter.Check(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("concurrent checks never exceed the limit", func(t *testing.T) {
		key := "test-key-4"
		limit := 10

		var mu sync.Mutex
		allowed := 0
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := limiter.Check(ctx, key, limit, time.Minute)
				if err == nil && result.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, limit, allowed)
	})

	t.Run("reset clears the window", func(t *testing.T) {
		key := "test-key-5"

		result, err := limiter.Check(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		require.NoError(t, limiter.Reset(ctx, key))

		result, err = limiter.Check(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})
}

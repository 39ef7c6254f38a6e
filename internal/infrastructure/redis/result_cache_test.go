package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/qrisk/internal/cache"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	redisImpl "github.com/victoralfred/qrisk/internal/infrastructure/redis"
)

func entry() *cache.Entry {
	return cache.NewEntry("pf-1", &risk.Result{
		Metrics: risk.Metrics{
			VaR95:            23456.78,
			VaR99:            33210.01,
			CVaR95:           29876.5,
			CVaR99:           40123.45,
			VolatilityDaily:  0.013579,
			VolatilityAnnual: 0.215554,
			SharpeRatio:      0.873421,
			MaxDrawdown:      0.182,
			PortfolioValue:   1_000_000,
			Currency:         "USD",
		},
		Methodology: risk.Methodology{ModelType: "monte_carlo_gbm_antithetic", ConfidenceLevel: 0.95, TimeHorizonDays: 1, SimulationPaths: 10000},
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 150*time.Millisecond)
}

func TestResultCache(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	key := cache.DeriveKey("pf-1", portfolio.DefaultRiskParameters())

	t.Run("miss on absent key", func(t *testing.T) {
		c := redisImpl.NewResultCache(client, 0)

		_, err := c.Get(ctx, "qrisk:var:v2:absent")

		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("round trip preserves metrics exactly", func(t *testing.T) {
		c := redisImpl.NewResultCache(client, 0)
		want := entry()

		require.NoError(t, c.Set(ctx, key, want, cache.DefaultTTL))
		got, err := c.Get(ctx, key)

		require.NoError(t, err)
		assert.Equal(t, want, got)

		ttl, err := client.TTL(ctx, key).Result()
		require.NoError(t, err)
		assert.InDelta(t, cache.DefaultTTL.Seconds(), ttl.Seconds(), 5)
	})

	t.Run("compressed payloads round trip", func(t *testing.T) {
		c := redisImpl.NewResultCache(client, 32)
		want := entry()

		require.NoError(t, c.Set(ctx, key+":gz", want, time.Minute))
		raw, err := client.Get(ctx, key+":gz").Bytes()
		require.NoError(t, err)
		assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])

		got, err := c.Get(ctx, key+":gz")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("expired entries are misses", func(t *testing.T) {
		c := redisImpl.NewResultCache(client, 0)

		require.NoError(t, c.Set(ctx, key+":short", entry(), 50*time.Millisecond))
		time.Sleep(150 * time.Millisecond)

		_, err := c.Get(ctx, key+":short")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("corrupt payload is an error not a miss", func(t *testing.T) {
		c := redisImpl.NewResultCache(client, 0)
		require.NoError(t, client.Set(ctx, key+":bad", "garbage", time.Minute).Err())

		_, err := c.Get(ctx, key+":bad")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, cache.ErrCacheMiss)
	})
}

func TestResultCache_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := redisImpl.NewResultCache(client, 0)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)

	assert.Error(t, c.Set(ctx, "k", entry(), time.Minute))
	assert.Error(t, c.Ping(ctx))
}

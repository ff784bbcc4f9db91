package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestNilClient_NotEnabled(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCacheKeys(t *testing.T) {
	cache := NewCache(disabledClient(t), "sweeper")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "SeriesKey",
			got:      SeriesKey("yahoo", "AAPL", "2024-01-01", "2024-06-30"),
			expected: "ohlcv:yahoo:AAPL:2024-01-01:2024-06-30",
		},
		{
			name:     "SeriesKey uppercases symbol",
			got:      SeriesKey("naver", "msft", "2024-01-01", "2024-01-31"),
			expected: "ohlcv:naver:MSFT:2024-01-01:2024-01-31",
		},
		{
			name:     "fullKey",
			got:      cache.fullKey("ohlcv:yahoo:AAPL"),
			expected: "sweeper:cache:ohlcv:yahoo:AAPL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

package redis

import (
	"testing"

	"starterkit_backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("empty url disables caching", func(t *testing.T) {
		assert.Nil(t, NewClient(&config.Config{}, logger))
	})

	t.Run("malformed url disables caching", func(t *testing.T) {
		assert.Nil(t, NewClient(&config.Config{RedisURL: "::not a url"}, logger))
	})

	t.Run("unreachable server disables caching", func(t *testing.T) {
		assert.Nil(t, NewClient(&config.Config{RedisURL: "redis://127.0.0.1:1/0"}, logger))
	})

	t.Run("reachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := NewClient(&config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, logger)
		require.NotNil(t, client)
		defer client.Close()
	})
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should fail when DATABASE_URL is absent", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DatabaseURL")
	})

	t.Run("Should apply defaults when only DATABASE_URL is set", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "todos.db")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "todos.db", cfg.DatabaseURL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 5*time.Second, cfg.AcquireTimeout)
		assert.Equal(t, 0, cfg.MaxOpenConns)
		assert.Equal(t, 0, cfg.Workers)
	})

	t.Run("Should read prefixed tunables", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "postgres://u:p@localhost/todos?sslmode=disable")
		t.Setenv("TODO_LOG_LEVEL", "debug")
		t.Setenv("TODO_LOG_PRETTY", "true")
		t.Setenv("TODO_DB_MAX_OPEN_CONNS", "8")
		t.Setenv("TODO_DB_ACQUIRE_TIMEOUT", "250ms")
		t.Setenv("TODO_WORKERS", "3")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.LogPretty)
		assert.Equal(t, 8, cfg.MaxOpenConns)
		assert.Equal(t, 250*time.Millisecond, cfg.AcquireTimeout)
		assert.Equal(t, 3, cfg.Workers)
	})

	t.Run("Should reject an unknown log level", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "todos.db")
		t.Setenv("TODO_LOG_LEVEL", "loud")
		_, err := Load()
		require.Error(t, err)
	})
}

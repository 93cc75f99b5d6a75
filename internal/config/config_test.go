package config

import (
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":3000",
	"file_storage_path": "json_storage.json",
	"database_dsn": "json-dsn",
	"require_auth_for_mutation": false,
	"session_max_age": "1h",
	"db_connection_timeout": "3s"
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp("", "config*.json")
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() {
		err := os.Remove(file.Name())
		require.NoError(t, err)
	})
	return file.Name()
}

func TestDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.DBConnectionTimeout)
	assert.Equal(t, 14*24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, CommandServe, cfg.Command)
	assert.Equal(t, Policy{RequireAuthForMutation: true, TrackViewCounts: true}, cfg.Policy())

	key, err := cfg.SessionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.True(t, cfg.SessionKeyGenerated)
}

func TestSessionKey(t *testing.T) {
	t.Run("random per process when unset", func(t *testing.T) {
		first, err := New(WithDisableFlagsParsing(true))
		require.NoError(t, err)
		second, err := New(WithDisableFlagsParsing(true))
		require.NoError(t, err)

		assert.NotEqual(t, first.SessionSigningSecretKey, second.SessionSigningSecretKey)
	})

	t.Run("configured key is kept", func(t *testing.T) {
		configured := base64.URLEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
		t.Setenv("SESSION_SIGNING_SECRET_KEY", configured)

		cfg, err := New(WithDisableFlagsParsing(true))
		require.NoError(t, err)

		assert.False(t, cfg.SessionKeyGenerated)
		key, err := cfg.SessionKey()
		require.NoError(t, err)
		assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), key)
	})
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "json_storage.json", cfg.DBFileName)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.False(t, cfg.RequireAuthForMutation)
	assert.True(t, cfg.TrackViewCounts, "absent keys keep their defaults")
	assert.Equal(t, time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 3*time.Second, cfg.DBConnectionTimeout)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("REQUIRE_AUTH_FOR_MUTATION", "true")
	t.Setenv("TRACK_VIEW_COUNTS", "false")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.True(t, cfg.RequireAuthForMutation)
	assert.False(t, cfg.TrackViewCounts)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("LOG_LEVEL", "error")

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-m", "/tmp/rango-media",
		"populate",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "/tmp/rango-media", cfg.MediaDir)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
	assert.Equal(t, CommandPopulate, cfg.Command)
}

func TestConfigFlagSelectsJSONFile(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"testbin", "-c", jsonPath}

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.RunAddr)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "database driver", key: "DATABASE_DRIVER", value: "mysql"},
		{name: "trusted subnet", key: "TRUSTED_SUBNET", value: "10.0.0.0"},
		{name: "session key", key: "SESSION_SIGNING_SECRET_KEY", value: "not base64!"},
		{name: "top list size", key: "TOP_LIST_SIZE", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}

func TestConfigEnvOnly(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_MAX_AGE", "30m")
	t.Setenv("TRUSTED_SUBNET", "192.168.1.0/24")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.RunAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.SessionMaxAge)
	assert.Equal(t, "192.168.1.0/24", cfg.TrustedSubnet)
}

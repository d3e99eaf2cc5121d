package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "HOOKRT_TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "HOOKRT_TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

// TestGetEnvTyped tests the bool, int and duration helpers
func TestGetEnvTyped(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		tests := []struct {
			envValue     string
			defaultValue bool
			want         bool
		}{
			{"true", false, true},
			{"TRUE", false, true},
			{"1", false, true},
			{"false", true, false},
			{"yes", true, false},
			{"", true, true},
		}
		for _, tt := range tests {
			t.Setenv("HOOKRT_TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.want, getEnvBool("HOOKRT_TEST_BOOL", tt.defaultValue), "value %q", tt.envValue)
		}
	})

	t.Run("int", func(t *testing.T) {
		t.Setenv("HOOKRT_TEST_INT", "42")
		assert.Equal(t, 42, getEnvInt("HOOKRT_TEST_INT", 7))

		t.Setenv("HOOKRT_TEST_INT", "not-a-number")
		assert.Equal(t, 7, getEnvInt("HOOKRT_TEST_INT", 7))
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("HOOKRT_TEST_DURATION", "90s")
		assert.Equal(t, 90*time.Second, getEnvDuration("HOOKRT_TEST_DURATION", time.Second))

		t.Setenv("HOOKRT_TEST_DURATION", "ninety")
		assert.Equal(t, time.Second, getEnvDuration("HOOKRT_TEST_DURATION", time.Second))
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"HOOKRT_PLUGIN_DIRS", "HOOKRT_MAX_PARALLEL", "HOOKRT_VARIABLE_CACHE_SIZE",
		"HOOKRT_VARIABLE_CACHE_TTL", "HOOKRT_REDIS_URL", "HOOKRT_KEYSTORE_PATH",
		"HOOKRT_LOG_LEVEL", "HOOKRT_LOG_FORMAT", "HOOKRT_METRICS_ENABLED", "HOOKRT_OTEL_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Contains(t, cfg.Plugins.Dirs, "./plugins")
	assert.Equal(t, 0, cfg.Plugins.MaxParallel)
	assert.Equal(t, 250*time.Millisecond, cfg.Plugins.WatchDebounce)
	assert.Equal(t, "hookrt.yaml", cfg.Plugins.UserConfigPath)

	assert.Equal(t, 128, cfg.Variables.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Variables.CacheTTL)
	assert.Empty(t, cfg.Variables.RedisURL)
	assert.Equal(t, "hookrt:vars:", cfg.Variables.RedisPrefix)
	assert.Empty(t, cfg.Variables.KeystorePath)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.Equal(t, observability.TextFormat, cfg.Observability.LogFormat)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	dirs := strings.Join([]string{"/etc/hookrt/plugins", " ", "./local"}, string(filepath.ListSeparator))
	t.Setenv("HOOKRT_PLUGIN_DIRS", dirs)
	t.Setenv("HOOKRT_MAX_PARALLEL", "4")
	t.Setenv("HOOKRT_VARIABLE_CACHE_SIZE", "0")
	t.Setenv("HOOKRT_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("HOOKRT_KEYSTORE_PATH", "/tmp/ks.yaml")
	t.Setenv("HOOKRT_LOG_LEVEL", "debug")
	t.Setenv("HOOKRT_LOG_FORMAT", "JSON")
	t.Setenv("HOOKRT_OTEL_ENABLED", "true")
	t.Setenv("HOOKRT_OTEL_SERVICE_NAME", "hookrt-ci")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"/etc/hookrt/plugins", "./local"}, cfg.Plugins.Dirs)
	assert.Equal(t, 4, cfg.Plugins.MaxParallel)
	assert.Equal(t, 0, cfg.Variables.CacheSize)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Variables.RedisURL)
	assert.Equal(t, "/tmp/ks.yaml", cfg.Variables.KeystorePath)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, observability.JSONFormat, cfg.Observability.LogFormat)

	otel := cfg.Observability.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "hookrt-ci", otel.ServiceName)
	assert.Equal(t, "localhost:4317", otel.Endpoint)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Variables: VariablesConfig{CacheSize: 10},
			Observability: ObservabilityConfig{
				LogFormat:       observability.TextFormat,
				OTelEndpoint:    "localhost:4317",
				OTelServiceName: "hookrt",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "negative parallel", mutate: func(c *Config) { c.Plugins.MaxParallel = -1 }, wantErr: "max parallel"},
		{name: "negative cache size", mutate: func(c *Config) { c.Variables.CacheSize = -1 }, wantErr: "cache size"},
		{name: "negative ttl", mutate: func(c *Config) { c.Variables.CacheTTL = -time.Second }, wantErr: "cache TTL"},
		{name: "bad log format", mutate: func(c *Config) { c.Observability.LogFormat = "xml" }, wantErr: "invalid log format"},
		{name: "metrics without addr", mutate: func(c *Config) { c.Observability.MetricsEnabled = true }, wantErr: "metrics address"},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "endpoint is required",
		},
		{
			name: "otel without service name",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = ""
			},
			wantErr: "service name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

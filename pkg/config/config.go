package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
)

// Config holds all application configuration
type Config struct {
	// Plugin discovery and hook execution
	Plugins PluginsConfig

	// Configuration variable resolution
	Variables VariablesConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// PluginsConfig holds plugin discovery settings
type PluginsConfig struct {
	Dirs          []string
	MaxParallel   int
	WatchDebounce time.Duration

	// UserConfigPath is the user configuration file processed by the CLI
	UserConfigPath string
}

// VariablesConfig holds variable resolution settings
type VariablesConfig struct {
	CacheSize int
	CacheTTL  time.Duration

	// Redis-backed variables, enabled when RedisURL is set
	RedisURL    string
	RedisPrefix string

	// Encrypted keystore, enabled when KeystorePath is set
	KeystorePath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  observability.LogLevel
	LogFormat observability.LogFormat

	// Metrics
	MetricsEnabled bool
	MetricsAddr    string

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Plugins:       loadPluginsConfig(),
		Variables:     loadVariablesConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadPluginsConfig loads plugin configuration from environment
func loadPluginsConfig() PluginsConfig {
	cfg := PluginsConfig{
		Dirs:           plugins.GetDefaultPluginDirectories(),
		MaxParallel:    getEnvInt("HOOKRT_MAX_PARALLEL", 0),
		WatchDebounce:  getEnvDuration("HOOKRT_WATCH_DEBOUNCE", 250*time.Millisecond),
		UserConfigPath: getEnv("HOOKRT_CONFIG", "hookrt.yaml"),
	}

	if dirs := getEnv("HOOKRT_PLUGIN_DIRS", ""); dirs != "" {
		cfg.Dirs = splitList(dirs)
	}

	return cfg
}

// loadVariablesConfig loads variable resolution configuration from environment
func loadVariablesConfig() VariablesConfig {
	return VariablesConfig{
		CacheSize:    getEnvInt("HOOKRT_VARIABLE_CACHE_SIZE", 128),
		CacheTTL:     getEnvDuration("HOOKRT_VARIABLE_CACHE_TTL", 5*time.Minute),
		RedisURL:     getEnv("HOOKRT_REDIS_URL", ""),
		RedisPrefix:  getEnv("HOOKRT_REDIS_PREFIX", "hookrt:vars:"),
		KeystorePath: getEnv("HOOKRT_KEYSTORE_PATH", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("HOOKRT_LOG_LEVEL", "info")),
		LogFormat:          observability.LogFormat(strings.ToLower(getEnv("HOOKRT_LOG_FORMAT", string(observability.TextFormat)))),
		MetricsEnabled:     getEnvBool("HOOKRT_METRICS_ENABLED", false),
		MetricsAddr:        getEnv("HOOKRT_METRICS_ADDR", ":9090"),
		OTelEnabled:        getEnvBool("HOOKRT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("HOOKRT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("HOOKRT_OTEL_SERVICE_NAME", "hookrt"),
		OTelServiceVersion: getEnv("HOOKRT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("HOOKRT_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Plugins.MaxParallel < 0 {
		return fmt.Errorf("max parallel must not be negative")
	}
	if c.Variables.CacheSize < 0 {
		return fmt.Errorf("variable cache size must not be negative")
	}
	if c.Variables.CacheTTL < 0 {
		return fmt.Errorf("variable cache TTL must not be negative")
	}

	switch c.Observability.LogFormat {
	case observability.JSONFormat, observability.TextFormat:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	if c.Observability.MetricsEnabled && c.Observability.MetricsAddr == "" {
		return fmt.Errorf("metrics address is required when metrics are enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// OTel returns the tracing settings.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// splitList splits an OS path list, dropping empty entries
func splitList(value string) []string {
	var out []string
	for _, part := range filepath.SplitList(value) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

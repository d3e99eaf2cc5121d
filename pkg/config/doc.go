// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates the hookrt command's configuration from
// environment variables with sensible defaults for all settings.
//
// # Configuration Structure
//
// Plugin settings:
//
//	HOOKRT_PLUGIN_DIRS="/etc/hookrt/plugins:./plugins"  # OS path list
//	HOOKRT_MAX_PARALLEL="8"                             # 0 means unbounded
//	HOOKRT_WATCH_DEBOUNCE="250ms"
//	HOOKRT_CONFIG="hookrt.yaml"
//
// Variable settings:
//
//	HOOKRT_VARIABLE_CACHE_SIZE="128"  # 0 disables caching
//	HOOKRT_VARIABLE_CACHE_TTL="5m"
//	HOOKRT_REDIS_URL="redis://localhost:6379/0"
//	HOOKRT_REDIS_PREFIX="hookrt:vars:"
//	HOOKRT_KEYSTORE_PATH="$HOME/.hookrt/keystore.yaml"
//
// Observability settings:
//
//	HOOKRT_LOG_LEVEL="info"  # debug, info, warn, error
//	HOOKRT_LOG_FORMAT="text" # text, json
//	HOOKRT_METRICS_ENABLED="true"
//	HOOKRT_METRICS_ADDR=":9090"
//	HOOKRT_OTEL_ENABLED="true"
//	HOOKRT_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, nil)
package config

// Package redisvars is a plugin that resolves named configuration variables
// from Redis. Variables missing from Redis fall through to the next handler.
package redisvars

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/interaction"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
)

const (
	// PluginID is the id of the plugin.
	PluginID = "redis-vars"

	// FactoryName is the go: reference the plugin declares.
	FactoryName = "redis-vars"

	// DefaultPrefix is prepended to variable names to form Redis keys.
	DefaultPrefix = "hookrt:vars:"
)

// Source reads variables from Redis.
type Source struct {
	client redis.Cmdable
	prefix string
	logger *logrus.Logger
}

// NewSource creates a source over client. An empty prefix uses DefaultPrefix.
func NewSource(client redis.Cmdable, prefix string, logger *logrus.Logger) *Source {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Source{client: client, prefix: prefix, logger: logger}
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Key returns the Redis key for a variable name.
func (s *Source) Key(name string) string {
	return s.prefix + name
}

// Set stores a variable value.
func (s *Source) Set(ctx context.Context, name, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.Key(name), value, ttl).Err()
}

// HandlerSet returns the configurationVariables handlers.
func (s *Source) HandlerSet() *plugins.HandlerSet {
	return plugins.NewHandlerSet(PluginID, map[string]plugins.Handler{
		configvars.HookResolve: configvars.Handler(s.resolve),
	})
}

// Register makes the handler set available as go:redis-vars.
func (s *Source) Register(loader *hooks.GoLoader) {
	loader.RegisterSet(FactoryName, s.HandlerSet())
}

// Plugin returns the plugin declaration, which depends on the factory
// registered by Register.
func Plugin() *plugins.Plugin {
	return &plugins.Plugin{
		ID: PluginID,
		Hooks: map[string]plugins.HookDeclaration{
			configvars.Category: plugins.Reference("go:" + FactoryName),
		},
	}
}

func (s *Source) resolve(ctx context.Context, v *configvars.Variable, _ *interaction.Coordinator, next func(context.Context) (string, error)) (string, error) {
	value, err := s.client.Get(ctx, s.Key(v.Name)).Result()
	if errors.Is(err, redis.Nil) {
		return next(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read variable %s from redis: %w", v.Name, err)
	}

	s.logger.WithField("variable", v.Name).Debug("Resolved configuration variable from redis")
	return value, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/hookrt/pkg/async"
	"github.com/platinummonkey/hookrt/pkg/config"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/hre"
	"github.com/platinummonkey/hookrt/pkg/interaction"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/platinummonkey/hookrt/pkg/plugins/keystore"
	"github.com/platinummonkey/hookrt/pkg/plugins/redisvars"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds what every command needs: configuration, observability and the
// host plugins enabled by the environment.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger

	registry *prometheus.Registry
	metrics  *observability.Metrics
	server   *http.Server
	tracer   *sdktrace.TracerProvider

	terminal  interaction.Terminal
	factories *hooks.GoLoader
	host      []*plugins.Plugin

	redis    *redis.Client
	keystore *keystore.Keystore
}

// newApp loads configuration and starts observability. Close must be called
// when the command finishes.
func newApp(ctx context.Context, in io.Reader, errOut io.Writer) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, errOut),
		terminal:  interaction.NewLineTerminal(in, errOut),
		factories: hooks.NewGoLoader(),
	}

	if cfg.Observability.MetricsEnabled {
		a.startMetrics(ctx)
	}

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel(), a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("Tracing disabled")
	}
	a.tracer = tp

	if err := a.enableVariableSources(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

func (a *app) startMetrics(ctx context.Context) {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = observability.NewMetrics(a.registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              a.cfg.Observability.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	async.SafeGo(ctx, a.logger, 0, "metrics server", func(context.Context) error {
		a.logger.Infof("Serving metrics on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

// enableVariableSources adds the redis and keystore plugins when they are
// configured.
func (a *app) enableVariableSources(ctx context.Context) error {
	vars := a.cfg.Variables

	if vars.RedisURL != "" {
		client, err := redisvars.Connect(ctx, vars.RedisURL)
		if err != nil {
			return err
		}
		a.redis = client
		redisvars.NewSource(client, vars.RedisPrefix, a.logger).Register(a.factories)
		a.host = append(a.host, redisvars.Plugin())
	}

	if vars.KeystorePath != "" {
		ks, err := keystore.Open(vars.KeystorePath, a.logger)
		switch {
		case errors.Is(err, os.ErrNotExist):
			a.logger.WithField("path", vars.KeystorePath).Debug("Keystore does not exist yet")
		case err != nil:
			return err
		default:
			a.keystore = ks
			ks.Register(a.factories)
			a.host = append(a.host, keystore.Plugin())
		}
	}

	return nil
}

// pluginLoader returns the loader over the configured plugin directories.
func (a *app) pluginLoader() *plugins.Loader {
	return plugins.NewLoader(a.cfg.Plugins.Dirs, a.logger)
}

// runtime discovers plugins and assembles the hook runtime.
func (a *app) runtime(ctx context.Context) (*hre.Runtime, error) {
	discovered, err := a.pluginLoader().Discover(ctx, a.host...)
	if err != nil {
		return nil, err
	}

	all := make([]*plugins.Plugin, 0, len(a.host)+len(discovered))
	all = append(all, a.host...)
	all = append(all, discovered...)

	return hre.New(hre.Options{
		Plugins:           all,
		GoFactories:       a.factories,
		Terminal:          a.terminal,
		Logger:            a.logger,
		Metrics:           a.metrics,
		VariableCacheSize: a.cfg.Variables.CacheSize,
		VariableCacheTTL:  a.cfg.Variables.CacheTTL,
		MaxParallel:       a.cfg.Plugins.MaxParallel,
	})
}

// Close releases connections and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Failed to stop metrics server")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	_ = observability.ShutdownTracing(shutdownCtx, a.tracer, a.logger)
}

func (a *app) requireKeystorePath() (string, error) {
	if a.cfg.Variables.KeystorePath == "" {
		return "", fmt.Errorf("HOOKRT_KEYSTORE_PATH is not set")
	}
	return a.cfg.Variables.KeystorePath, nil
}

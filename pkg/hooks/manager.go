package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Protocol names used in logs, metrics and spans.
const (
	ProtocolChain    = "chain"
	ProtocolOrder    = "order"
	ProtocolParallel = "parallel"
)

// Manager is the hook runtime for one ordered plugin list.
type Manager struct {
	plugins []*plugins.Plugin
	store   *categoryStore

	mu          sync.RWMutex
	dynamic     map[string][]*plugins.HandlerSet
	generations map[string]uint64

	loaders     *LoaderRegistry
	validator   *plugins.Validator
	logger      *logrus.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
	maxParallel int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics records protocol invocations and category loads.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithLoaders sets the registry used to resolve category references.
func WithLoaders(loaders *LoaderRegistry) Option {
	return func(m *Manager) {
		m.loaders = loaders
	}
}

// WithValidator shares a validator, and therefore its cache, between
// managers.
func WithValidator(validator *plugins.Validator) Option {
	return func(m *Manager) {
		m.validator = validator
	}
}

// WithTracer sets the tracer for protocol spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithMaxParallel bounds the number of handlers RunInParallel runs at once.
// Zero or less means no bound.
func WithMaxParallel(n int) Option {
	return func(m *Manager) {
		m.maxParallel = n
	}
}

// NewManager creates a runtime over plugins, which must already be in
// dependency order.
func NewManager(ordered []*plugins.Plugin, opts ...Option) *Manager {
	m := &Manager{
		plugins: append([]*plugins.Plugin(nil), ordered...),
		dynamic:     make(map[string][]*plugins.HandlerSet),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logrus.New()
	}
	if m.loaders == nil {
		m.loaders = NewLoaderRegistry()
	}
	if m.validator == nil {
		m.validator = plugins.NewValidator(m.logger)
	}
	if m.tracer == nil {
		m.tracer = observability.Tracer()
	}

	m.store = newCategoryStore(m.loaders, m.validator, m.logger, m.metrics)
	return m
}

// Plugins returns the plugins in the order their handlers run.
func (m *Manager) Plugins() []*plugins.Plugin {
	return append([]*plugins.Plugin(nil), m.plugins...)
}

// LoadCategory resolves the handler set a plugin declares for category. It
// returns nil when the plugin does not declare the category.
func (m *Manager) LoadCategory(ctx context.Context, pluginID, category string) (*plugins.HandlerSet, error) {
	for _, p := range m.plugins {
		if p.ID == pluginID {
			return m.store.resolve(ctx, p, category)
		}
	}
	return nil, fmt.Errorf("plugin %q is not part of this runtime", pluginID)
}

// Register appends a handler set to the dynamic handlers of category.
func (m *Manager) Register(category string, set *plugins.HandlerSet) {
	if set == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dynamic[category] = append(m.dynamic[category], set)
	m.generations[category]++

	m.logger.WithFields(logrus.Fields{
		"category": category,
		"handlers": set.Name,
	}).Debug("Registered dynamic hook handlers")
}

// Unregister removes set from the dynamic handlers of category. Sets are
// matched by pointer; removing a set that is not registered does nothing.
func (m *Manager) Unregister(category string, set *plugins.HandlerSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.dynamic[category]
	kept := make([]*plugins.HandlerSet, 0, len(current))
	for _, s := range current {
		if s != set {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(current) {
		return
	}
	m.generations[category]++

	if len(kept) == 0 {
		delete(m.dynamic, category)
	} else {
		m.dynamic[category] = kept
	}
}

// Generation returns a counter that changes whenever the dynamic handlers of
// category change. Results derived from a category's handlers are stale once
// it moves.
func (m *Manager) Generation(category string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generations[category]
}

// GetHandlers returns the handlers for hook in category: static plugin
// handlers in plugin order, then dynamic handlers in registration order.
func (m *Manager) GetHandlers(ctx context.Context, category, hook string) ([]plugins.Handler, error) {
	var handlers []plugins.Handler

	for _, p := range m.plugins {
		set, err := m.store.resolve(ctx, p, category)
		if err != nil {
			return nil, err
		}
		if h, ok := set.Handler(hook); ok {
			handlers = append(handlers, h)
		}
	}

	m.mu.RLock()
	for _, set := range m.dynamic[category] {
		if h, ok := set.Handler(hook); ok {
			handlers = append(handlers, h)
		}
	}
	m.mu.RUnlock()

	return handlers, nil
}

// RunChain runs the handlers of hook as an onion around def. The last
// handler is called first; each next call moves one handler towards the
// first, and past the first it calls def. A nil def returns (nil, nil).
func (m *Manager) RunChain(ctx context.Context, category, hook string, def plugins.Next, args ...any) (result any, err error) {
	ctx, finish := m.begin(ctx, ProtocolChain, category, hook)
	handlers := 0
	defer func() { finish(handlers, err) }()

	hs, err := m.GetHandlers(ctx, category, hook)
	if err != nil {
		return nil, err
	}
	handlers = len(hs)

	var at func(i int) plugins.Next
	at = func(i int) plugins.Next {
		return func(ctx context.Context, args ...any) (any, error) {
			if i < 0 {
				if def == nil {
					return nil, nil
				}
				return def(ctx, args...)
			}
			return hs[i](ctx, at(i-1), args...)
		}
	}

	return at(len(hs)-1)(ctx, args...)
}

// RunInOrder calls every handler of hook sequentially with args and returns
// their results in handler order. It stops at the first error and returns
// the results collected so far.
func (m *Manager) RunInOrder(ctx context.Context, category, hook string, args ...any) (results []any, err error) {
	ctx, finish := m.begin(ctx, ProtocolOrder, category, hook)
	handlers := 0
	defer func() { finish(handlers, err) }()

	hs, err := m.GetHandlers(ctx, category, hook)
	if err != nil {
		return nil, err
	}
	handlers = len(hs)

	results = make([]any, 0, len(hs))
	for _, h := range hs {
		r, err := h(ctx, endOfChain, args...)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// RunInParallel calls every handler of hook concurrently with args and
// returns their results in handler order. The first error cancels the
// context the remaining handlers see and is returned once all have
// finished.
func (m *Manager) RunInParallel(ctx context.Context, category, hook string, args ...any) (results []any, err error) {
	ctx, finish := m.begin(ctx, ProtocolParallel, category, hook)
	handlers := 0
	defer func() { finish(handlers, err) }()

	hs, err := m.GetHandlers(ctx, category, hook)
	if err != nil {
		return nil, err
	}
	handlers = len(hs)

	eg, egCtx := errgroup.WithContext(ctx)
	if m.maxParallel > 0 {
		eg.SetLimit(m.maxParallel)
	}

	results = make([]any, len(hs))
	for i, h := range hs {
		i, h := i, h
		eg.Go(func() error {
			r, err := h(egCtx, endOfChain, args...)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// endOfChain is the next passed to handlers outside of a chain.
func endOfChain(context.Context, ...any) (any, error) {
	return nil, nil
}

// begin opens the span for one protocol invocation and returns the function
// that closes it.
func (m *Manager) begin(ctx context.Context, protocol, category, hook string) (context.Context, func(handlers int, err error)) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "hooks."+protocol,
		trace.WithAttributes(
			attribute.String("hook.category", category),
			attribute.String("hook.name", hook),
		),
	)

	return ctx, func(handlers int, err error) {
		span.SetAttributes(attribute.Int("hook.handlers", handlers))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		m.metrics.ObserveHook(category, hook, protocol, handlers, start, err)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"category": category,
				"hook":     hook,
				"protocol": protocol,
			}).WithError(err).Debug("Hook invocation failed")
		}
	}
}

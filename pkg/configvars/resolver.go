package configvars

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/interaction"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// Category is the hook category variable handlers register under.
const Category = "configurationVariables"

// HookResolve receives (variable *Variable, coordinator *interaction.Coordinator)
// and returns the variable's value as a string.
const HookResolve = "resolve"

// GenerationSource reports when the handlers of a category change.
// *hooks.Manager implements it.
type GenerationSource interface {
	Generation(category string) uint64
}

// Resolver resolves configuration variables through the hook runtime.
type Resolver struct {
	hooks       interaction.ChainRunner
	coordinator *interaction.Coordinator
	lookupEnv   func(string) (string, bool)
	logger      *logrus.Logger
	metrics     *observability.Metrics

	cache    *lru.LRU[string, string]
	cacheMu  sync.Mutex
	cacheGen uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCoordinator passes coordinator to every resolve handler.
func WithCoordinator(c *interaction.Coordinator) Option {
	return func(r *Resolver) {
		r.coordinator = c
	}
}

// WithCache keeps up to size resolved named values for ttl. A ttl of zero
// keeps them until evicted; a size of zero disables the cache. When the
// runner is a GenerationSource the cache is dropped as soon as resolve
// handlers are registered or unregistered.
func WithCache(size int, ttl time.Duration) Option {
	return func(r *Resolver) {
		if size <= 0 {
			r.cache = nil
			return
		}
		r.cache = lru.NewLRU[string, string](size, nil, ttl)
	}
}

// WithEnvLookup replaces os.LookupEnv in the default handler.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = lookup
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics records resolutions.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a resolver over runner.
func NewResolver(runner interaction.ChainRunner, opts ...Option) *Resolver {
	r := &Resolver{
		hooks:     runner,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logrus.New()
	}
	return r
}

// Resolve returns the value of v. Literal variables never reach the hooks.
func (r *Resolver) Resolve(ctx context.Context, v *Variable) (string, error) {
	if v == nil {
		return "", errors.New("configuration variable is nil")
	}
	if err := v.Validate(); err != nil {
		return "", err
	}

	if v.Kind == KindLiteral {
		r.metrics.RecordVariableResolution(string(KindLiteral), "literal", nil)
		return v.Value, nil
	}

	gen := r.generation()
	if value, ok := r.cached(gen, v.Name); ok {
		r.metrics.RecordVariableResolution(string(KindNamed), "cache", nil)
		return v.apply(value), nil
	}

	value, err := hooks.As[string](r.hooks.RunChain(ctx, Category, HookResolve, r.resolveDefault, v, r.coordinator))
	r.metrics.RecordVariableResolution(string(KindNamed), "hooks", err)
	if err != nil {
		r.logger.WithField("variable", v.Name).WithError(err).Debug("Failed to resolve configuration variable")
		return "", err
	}

	r.store(gen, v.Name, value)
	return v.apply(value), nil
}

func (r *Resolver) generation() uint64 {
	if src, ok := r.hooks.(GenerationSource); ok {
		return src.Generation(Category)
	}
	return 0
}

// cached looks name up after purging values resolved under a different
// set of registered handlers.
func (r *Resolver) cached(gen uint64, name string) (string, bool) {
	if r.cache == nil {
		return "", false
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if gen != r.cacheGen {
		r.cache.Purge()
		r.cacheGen = gen
	}
	return r.cache.Get(name)
}

// store caches value unless the handlers changed while it was resolved.
func (r *Resolver) store(gen uint64, name, value string) {
	if r.cache == nil {
		return
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if gen == r.cacheGen {
		r.cache.Add(name, value)
	}
}

// ResolveURL resolves v and parses it as an absolute URL.
func (r *Resolver) ResolveURL(ctx context.Context, v *Variable) (*url.URL, error) {
	value, err := r.Resolve(ctx, v)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("configuration variable %s is not a valid URL: %w", v, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("configuration variable %s is not an absolute URL", v)
	}
	return u, nil
}

// ResolveBigInt resolves v and parses it as an integer. Prefixes such as 0x
// select the base.
func (r *Resolver) ResolveBigInt(ctx context.Context, v *Variable) (*big.Int, error) {
	value, err := r.Resolve(ctx, v)
	if err != nil {
		return nil, err
	}

	n, ok := new(big.Int).SetString(value, 0)
	if !ok {
		return nil, fmt.Errorf("configuration variable %s is not an integer", v)
	}
	return n, nil
}

// Invalidate drops a cached value so the next resolution runs the hooks.
func (r *Resolver) Invalidate(name string) {
	if r.cache != nil {
		r.cache.Remove(name)
	}
}

// resolveDefault looks the variable up in the environment.
func (r *Resolver) resolveDefault(_ context.Context, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("resolve hook called without a variable")
	}
	v, ok := args[0].(*Variable)
	if !ok {
		return nil, fmt.Errorf("resolve hook expects *configvars.Variable, got %T", args[0])
	}

	if value, found := r.lookupEnv(v.Name); found {
		return value, nil
	}
	return nil, &VariableNotFoundError{Name: v.Name}
}

// Handler adapts a typed resolve function to a plugins.Handler. fn receives
// next already bound to the variable and coordinator it was called with.
func Handler(fn func(ctx context.Context, v *Variable, c *interaction.Coordinator, next func(ctx context.Context) (string, error)) (string, error)) plugins.Handler {
	return func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("resolve hook expects (variable, coordinator), got %d arguments", len(args))
		}
		v, ok := args[0].(*Variable)
		if !ok {
			return nil, fmt.Errorf("resolve hook expects *configvars.Variable, got %T", args[0])
		}
		c, _ := args[1].(*interaction.Coordinator)

		return fn(ctx, v, c, func(ctx context.Context) (string, error) {
			return hooks.As[string](next(ctx, args...))
		})
	}
}

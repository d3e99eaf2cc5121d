package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type categoryKey struct {
	pluginID string
	category string
}

func (k categoryKey) String() string {
	return k.pluginID + "\x00" + k.category
}

type categoryEntry struct {
	set *plugins.HandlerSet
	err error
}

// categoryStore resolves plugin category declarations into handler sets and
// caches the outcome per (plugin id, category).
type categoryStore struct {
	mu           sync.RWMutex
	resolved     map[categoryKey]categoryEntry
	warnedInline map[string]bool
	inflight     singleflight.Group

	loaders   *LoaderRegistry
	validator *plugins.Validator
	logger    *logrus.Logger
	metrics   *observability.Metrics
}

func newCategoryStore(loaders *LoaderRegistry, validator *plugins.Validator, logger *logrus.Logger, metrics *observability.Metrics) *categoryStore {
	return &categoryStore{
		resolved:     make(map[categoryKey]categoryEntry),
		warnedInline: make(map[string]bool),
		loaders:      loaders,
		validator:    validator,
		logger:       logger,
		metrics:      metrics,
	}
}

// resolve returns the handler set p declares for category, or nil when p
// does not declare it.
func (s *categoryStore) resolve(ctx context.Context, p *plugins.Plugin, category string) (*plugins.HandlerSet, error) {
	if err := s.validator.Validate(p); err != nil {
		return nil, err
	}

	decl, ok := p.Hooks[category]
	if !ok {
		return nil, nil
	}

	key := categoryKey{pluginID: p.ID, category: category}
	if entry, ok := s.lookup(key); ok {
		return entry.set, entry.err
	}

	if decl.IsInline() {
		s.warnInline(p)
		s.store(key, categoryEntry{set: decl.Inline})
		s.metrics.RecordCategoryLoad(category, "inline", nil)
		return decl.Inline, nil
	}

	for {
		led := false
		v, _, _ := s.inflight.Do(key.String(), func() (any, error) {
			led = true
			if entry, ok := s.lookup(key); ok {
				return entry, nil
			}

			set, err := s.load(ctx, p, category, decl.Reference)
			entry := categoryEntry{set: set, err: err}
			s.metrics.RecordCategoryLoad(category, "reference", err)

			// A load cut short by the caller's context is not a property of
			// the reference, so the next access tries again.
			if err == nil || !isContextError(err) {
				s.store(key, entry)
			}
			return entry, nil
		})

		entry := v.(categoryEntry)
		// A follower whose own context is live does not inherit the
		// leader's cancellation.
		if !led && entry.err != nil && isContextError(entry.err) && ctx.Err() == nil {
			continue
		}
		return entry.set, entry.err
	}
}

func (s *categoryStore) lookup(key categoryKey) (categoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.resolved[key]
	return entry, ok
}

func (s *categoryStore) store(key categoryKey, entry categoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resolved[key]; !exists {
		s.resolved[key] = entry
	}
}

func (s *categoryStore) warnInline(p *plugins.Plugin) {
	if p.ID == plugins.BuiltinPluginID {
		return
	}

	s.mu.Lock()
	warned := s.warnedInline[p.ID]
	s.warnedInline[p.ID] = true
	s.mu.Unlock()

	if !warned {
		s.logger.WithField("plugin", p.ID).
			Warn("Plugin declares hook handlers inline; inline declarations are reserved for the builtin plugin")
	}
}

func (s *categoryStore) load(ctx context.Context, p *plugins.Plugin, category, ref string) (*plugins.HandlerSet, error) {
	log := s.logger.WithFields(logrus.Fields{
		"plugin":    p.ID,
		"category":  category,
		"reference": ref,
	})
	log.Debug("Loading hook category")

	fail := func(err error) (*plugins.HandlerSet, error) {
		log.WithError(err).Error("Failed to load hook category")
		return nil, &HookCategoryLoadError{
			PluginID:  p.ID,
			Category:  category,
			Reference: ref,
			Err:       err,
		}
	}

	loader, target, err := s.loaders.Resolve(ref, p.Dir)
	if err != nil {
		return fail(err)
	}

	loaded, err := loader.Load(ctx, target)
	if err != nil {
		return fail(err)
	}

	set, err := materialize(ctx, loaded)
	if err != nil {
		return fail(err)
	}
	if set.Empty() {
		return fail(errEmptyHandlerSet)
	}

	log.WithField("hooks", set.HookNames()).Debug("Loaded hook category")
	return set, nil
}

// materialize turns a loader result into a handler set.
func materialize(ctx context.Context, loaded any) (*plugins.HandlerSet, error) {
	switch v := loaded.(type) {
	case *plugins.HandlerSet:
		return v, nil
	case Factory:
		return callFactory(ctx, v)
	case func(context.Context) (*plugins.HandlerSet, error):
		return callFactory(ctx, v)
	case map[string]plugins.Handler:
		return plugins.NewHandlerSet("", v), nil
	case nil:
		return nil, errEmptyHandlerSet
	default:
		return nil, fmt.Errorf("unsupported hook module type %T", loaded)
	}
}

func callFactory(ctx context.Context, factory Factory) (set *plugins.HandlerSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook factory panicked: %v", r)
		}
	}()
	return factory(ctx)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

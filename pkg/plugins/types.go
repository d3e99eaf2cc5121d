package plugins

import (
	"context"
	"sort"
)

// BuiltinPluginID is the id of the plugin the host always places first.
// It is the only plugin expected to declare its hooks inline.
const BuiltinPluginID = "builtin"

// Next invokes the handler that precedes the current one in a chain, or the
// chain's default handler once no handlers remain.
//
// A handler calls next at most once. Calling it twice runs the rest of the
// chain twice and the handler decides which result wins; not calling it
// stops propagation.
type Next func(ctx context.Context, args ...any) (any, error)

// Handler implements one hook of a category. Outside of a chain there is
// nothing to delegate to and next returns (nil, nil).
type Handler func(ctx context.Context, next Next, args ...any) (any, error)

// HandlerSet holds the hooks one plugin, or one dynamic registration,
// supplies for a single category. A set may implement any subset of the
// category's hooks.
//
// Sets are compared by pointer: unregistering a set removes exactly the
// pointer that was registered.
type HandlerSet struct {
	// Name identifies the set in logs and errors.
	Name  string
	Hooks map[string]Handler
}

// NewHandlerSet creates a handler set.
func NewHandlerSet(name string, hooks map[string]Handler) *HandlerSet {
	if hooks == nil {
		hooks = make(map[string]Handler)
	}
	return &HandlerSet{Name: name, Hooks: hooks}
}

// Handler returns the handler for hookName, if the set implements it.
func (s *HandlerSet) Handler(hookName string) (Handler, bool) {
	if s == nil {
		return nil, false
	}
	h, ok := s.Hooks[hookName]
	if !ok || h == nil {
		return nil, false
	}
	return h, true
}

// HookNames returns the implemented hook names in sorted order.
func (s *HandlerSet) HookNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Hooks))
	for name := range s.Hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the set implements no hooks.
func (s *HandlerSet) Empty() bool {
	return s == nil || len(s.Hooks) == 0
}

// HookDeclaration is how a plugin declares one category: either an inline
// handler set or a reference the runtime loads on first use.
type HookDeclaration struct {
	Inline    *HandlerSet
	Reference string
}

// Inline declares a category with a handler set supplied directly.
func Inline(set *HandlerSet) HookDeclaration {
	return HookDeclaration{Inline: set}
}

// Reference declares a category with a loadable reference such as
// "go:name", "./hooks.lua" or "./hooks.js".
func Reference(ref string) HookDeclaration {
	return HookDeclaration{Reference: ref}
}

// IsInline reports whether the declaration carries a handler set.
func (d HookDeclaration) IsInline() bool {
	return d.Inline != nil
}

// Plugin is a named unit contributing hook handlers. Plugins are built once
// at startup and never mutated afterwards.
type Plugin struct {
	ID           string
	Dependencies []*Plugin
	Hooks        map[string]HookDeclaration

	// Dir is the directory the plugin was loaded from. Relative references
	// resolve against it.
	Dir string
}

// DependencyIDs returns the ids of the direct dependencies in declared order.
func (p *Plugin) DependencyIDs() []string {
	ids := make([]string, 0, len(p.Dependencies))
	for _, dep := range p.Dependencies {
		if dep != nil {
			ids = append(ids, dep.ID)
		}
	}
	return ids
}

// Categories returns the declared category names in sorted order.
func (p *Plugin) Categories() []string {
	names := make([]string, 0, len(p.Hooks))
	for name := range p.Hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exporter is implemented by hook arguments that script handlers should see
// as plain objects rather than opaque values.
type Exporter interface {
	Export() map[string]any
}

// ValidationError represents a single violated constraint
type ValidationError struct {
	Field    string `json:"field" yaml:"field"`
	Message  string `json:"message" yaml:"message"`
	Severity string `json:"severity" yaml:"severity"` // error, warning
}

func (e ValidationError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

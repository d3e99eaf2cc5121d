// Package plugins defines the declaration surface plugin authors implement.
//
// # Overview
//
// A Plugin has a unique ID, an ordered list of plugins it depends on, and a
// map from hook category to HookDeclaration. A declaration is either an
// inline HandlerSet or a reference string the hook runtime loads on first use.
//
// # Handlers
//
// A HandlerSet maps hook names to Handler functions. Every handler receives a
// Next continuation; inside a chain it invokes the handler registered before
// it, elsewhere it is a no-op returning (nil, nil).
//
//	set := plugins.NewHandlerSet("my-plugin", map[string]plugins.Handler{
//		"resolve": func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
//			return next(ctx, args...)
//		},
//	})
//
// # Manifests
//
// Plugins shipped outside the binary are described by a plugin.yaml:
//
//	id: hardware-wallet
//	dependencies: [ledger-transport]
//	hooks:
//	  userInterruption: ./interruptions.lua
//	  configurationVariables: go:hardware-wallet/variables
//
// Loader discovers manifests in plugin directories and links dependency ids
// into plugin objects. Watch re-triggers a callback when those files change.
//
// # Validation
//
// Validator checks a plugin's shape once per id and caches the outcome, so a
// failed plugin keeps failing with the same *InvalidPluginError.
//
// # Related Packages
//
//   - pkg/dependencies: Orders plugins by their dependencies
//   - pkg/hooks: Loads declarations and invokes handlers
package plugins

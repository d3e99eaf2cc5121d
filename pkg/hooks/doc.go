// Package hooks is the hook runtime: it resolves the handler sets plugins
// declare for a category, tracks handler sets registered at runtime, and
// invokes a category's handlers through one of three protocols.
//
// # Handler order
//
// GetHandlers returns, for a category and hook name, the handler of every
// plugin in dependency order followed by the handlers of dynamically
// registered sets in registration order. Plugins that do not declare the
// category, or whose set does not implement the hook, contribute nothing.
//
// # Protocols
//
//   - RunChain composes the handlers as an onion. The last handler runs
//     first and may call next to delegate to the one before it; the default
//     handler runs once every handler has delegated. A handler that does not
//     call next stops propagation. Calling next more than once runs the
//     inner part of the chain again and is undefined for handler authors.
//   - RunInOrder calls every handler sequentially with the same arguments
//     and collects the results in handler order.
//   - RunInParallel calls every handler concurrently and collects the
//     results in handler order once all have returned.
//
// # Category resolution
//
// A plugin's declaration for a category is resolved the first time the
// category is needed. Inline sets are used as is. References are handed to
// the Loader registered for their scheme ("go:name") or file extension
// (".lua", ".js"); the loader yields either a *plugins.HandlerSet or a
// Factory that is called once to build it. The outcome, including a
// failure, is cached per (plugin id, category) for the lifetime of the
// Manager. Plugins are validated lazily on first access.
package hooks

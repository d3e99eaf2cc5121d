// Package cli implements the hookrt command.
//
// # Commands
//
//	hookrt plugins list             # plugins in handler order
//	hookrt plugins check [--watch]  # load every declared hook category
//	hookrt vars resolve NAME...     # resolve variables through the plugin chain
//	hookrt config process [-f FILE] # extend, validate and resolve the user config
//	hookrt keystore set NAME        # encrypt a variable into the keystore
//	hookrt keystore list
//
// Every command reads its settings from the environment; see pkg/config.
// Setting HOOKRT_REDIS_URL or HOOKRT_KEYSTORE_PATH adds the redis-vars or
// keystore plugin ahead of the discovered plugins, so discovered plugins may
// depend on them.
package cli

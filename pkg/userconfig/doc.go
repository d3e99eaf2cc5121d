// Package userconfig runs the config hook category over a user's
// configuration file:
//
//   - extendUserConfig (chain) lets plugins add defaults to the raw config.
//   - validateUserConfig (parallel) collects validation errors from every
//     plugin.
//   - resolveUserConfig (chain) turns the config into its resolved form,
//     resolving configuration variables on the way.
package userconfig

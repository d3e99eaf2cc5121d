// Package configvars resolves configuration variables. A literal variable
// is its own value. A named variable is resolved by the resolve hook of the
// configurationVariables category, whose default looks the name up in the
// process environment.
//
// Handlers receive (variable *Variable, coordinator *interaction.Coordinator)
// and may ask the user for input, for example a decryption password, before
// returning a value or delegating to next.
package configvars

// Package interaction serializes user facing interaction. Every message,
// input request and secret input request runs the userInterruption hook
// chain inside one exclusive section, so prompts from concurrent callers
// never interleave. Uninterrupted groups several interactions into one.
package interaction

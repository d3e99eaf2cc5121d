package plugins

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPlugin is returned when a plugin declaration is malformed.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrDependencyNotFound is returned when a manifest names a dependency
	// that is neither discovered nor supplied by the host.
	ErrDependencyNotFound = errors.New("plugin dependency not found")
)

// InvalidPluginError describes every constraint a plugin violated.
type InvalidPluginError struct {
	PluginID   string
	Violations []ValidationError
}

func (e *InvalidPluginError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Sprintf("invalid plugin %q: %s", e.PluginID, strings.Join(msgs, "; "))
}

func (e *InvalidPluginError) Unwrap() error {
	return ErrInvalidPlugin
}

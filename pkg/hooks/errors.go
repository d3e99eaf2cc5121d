package hooks

import (
	"errors"
	"fmt"
)

var (
	// ErrHookCategoryLoad is returned when a referenced category cannot be
	// turned into a non-empty handler set.
	ErrHookCategoryLoad = errors.New("hook category load failed")

	// ErrNoLoader is returned when no loader matches a reference.
	ErrNoLoader = errors.New("no loader for reference")

	// ErrFactoryNotFound is returned when a go: reference names an
	// unregistered factory.
	ErrFactoryNotFound = errors.New("hook factory not found")

	errEmptyHandlerSet = errors.New("reference did not produce any hook handlers")
)

// HookCategoryLoadError describes a category whose reference failed to load.
type HookCategoryLoadError struct {
	PluginID  string
	Category  string
	Reference string
	Err       error
}

func (e *HookCategoryLoadError) Error() string {
	return fmt.Sprintf("failed to load hook category %q of plugin %q from %q: %v",
		e.Category, e.PluginID, e.Reference, e.Err)
}

func (e *HookCategoryLoadError) Unwrap() []error {
	return []error{ErrHookCategoryLoad, e.Err}
}

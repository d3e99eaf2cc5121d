package configvars

import (
	"errors"
	"fmt"
)

// ErrVariableNotFound is returned when no handler resolves a named variable
// and the environment does not define it.
var ErrVariableNotFound = errors.New("configuration variable not found")

// VariableNotFoundError names the variable that could not be resolved.
type VariableNotFoundError struct {
	Name string
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf("configuration variable %q not found", e.Name)
}

func (e *VariableNotFoundError) Unwrap() error {
	return ErrVariableNotFound
}

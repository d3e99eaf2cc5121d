package dependencies

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency is returned when plugins have circular dependencies.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrDuplicatePluginID is returned when two different plugins share an id
	// but disagree on their dependencies.
	ErrDuplicatePluginID = errors.New("duplicate plugin id")
)

// CyclicDependencyError reports the ids forming a cycle, with the first id
// repeated at the end (a -> b -> a).
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Cycle, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error {
	return ErrCyclicDependency
}

// DuplicatePluginIDError reports two plugins with one id and conflicting
// dependency sets.
type DuplicatePluginIDError struct {
	ID     string
	First  []string
	Second []string
}

func (e *DuplicatePluginIDError) Error() string {
	return fmt.Sprintf("%s %q: dependencies [%s] conflict with [%s]",
		ErrDuplicatePluginID, e.ID, strings.Join(e.First, ", "), strings.Join(e.Second, ", "))
}

func (e *DuplicatePluginIDError) Unwrap() error {
	return ErrDuplicatePluginID
}

package plugins

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"
)

// Validator checks the declared shape of plugins. Each plugin id is checked
// once; later calls return the cached outcome, including a cached failure.
type Validator struct {
	mu      sync.Mutex
	results map[string]validationResult
	logger  *logrus.Logger
}

type validationResult struct {
	plugin *Plugin
	err    error
}

// NewValidator creates a new plugin validator
func NewValidator(logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}

	return &Validator{
		results: make(map[string]validationResult),
		logger:  logger,
	}
}

// Validate returns nil when the plugin is well formed and an
// *InvalidPluginError otherwise. A second, distinct plugin object reusing an
// already validated id is rejected as non-unique.
func (v *Validator) Validate(p *Plugin) error {
	if p == nil {
		return &InvalidPluginError{Violations: []ValidationError{{
			Message:  "plugin is nil",
			Severity: "error",
		}}}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.results[p.ID]; ok {
		if cached.plugin != p {
			return &InvalidPluginError{PluginID: p.ID, Violations: []ValidationError{{
				Field:    "id",
				Message:  "plugin id is not unique",
				Severity: "error",
			}}}
		}
		return cached.err
	}

	var err error
	if violations := checkPlugin(p); len(violations) > 0 {
		err = &InvalidPluginError{PluginID: p.ID, Violations: violations}
		v.logger.WithField("plugin", p.ID).Warnf("Plugin failed validation: %v", err)
	} else {
		v.logger.WithField("plugin", p.ID).Debug("Plugin validated")
	}

	v.results[p.ID] = validationResult{plugin: p, err: err}
	return err
}

func checkPlugin(p *Plugin) []ValidationError {
	var errors []ValidationError

	if p.ID == "" {
		errors = append(errors, ValidationError{
			Field:    "id",
			Message:  "Plugin ID is required",
			Severity: "error",
		})
	} else if strings.IndexFunc(p.ID, unicode.IsSpace) >= 0 {
		errors = append(errors, ValidationError{
			Field:    "id",
			Message:  "Plugin ID must not contain whitespace",
			Severity: "error",
		})
	}

	for i, dep := range p.Dependencies {
		switch {
		case dep == nil:
			errors = append(errors, ValidationError{
				Field:    fmt.Sprintf("dependencies[%d]", i),
				Message:  "dependency is nil",
				Severity: "error",
			})
		case dep == p || dep.ID == p.ID:
			errors = append(errors, ValidationError{
				Field:    fmt.Sprintf("dependencies[%d]", i),
				Message:  "plugin cannot depend on itself",
				Severity: "error",
			})
		}
	}

	for _, category := range p.Categories() {
		decl := p.Hooks[category]
		field := "hooks." + category

		if category == "" {
			errors = append(errors, ValidationError{
				Field:    "hooks",
				Message:  "hook category name is required",
				Severity: "error",
			})
			continue
		}

		hasRef := strings.TrimSpace(decl.Reference) != ""
		switch {
		case decl.Inline == nil && !hasRef:
			errors = append(errors, ValidationError{
				Field:    field,
				Message:  "must be either an inline handler set or a reference string",
				Severity: "error",
			})
		case decl.Inline != nil && decl.Reference != "":
			errors = append(errors, ValidationError{
				Field:    field,
				Message:  "declares both an inline handler set and a reference",
				Severity: "error",
			})
		case decl.Inline != nil:
			for _, hook := range decl.Inline.HookNames() {
				if hook == "" || decl.Inline.Hooks[hook] == nil {
					errors = append(errors, ValidationError{
						Field:    field + "." + hook,
						Message:  "handler must be a non-nil function with a name",
						Severity: "error",
					})
				}
			}
		}
	}

	return errors
}

package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the file a plugin directory must contain.
const ManifestFileName = "plugin.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// Manifest is the on-disk declaration of a plugin. Every category is
// declared by reference; inline handler sets only exist in Go code.
type Manifest struct {
	ID           string            `yaml:"id"`                     // Unique ID (e.g., "hardware-wallet")
	Name         string            `yaml:"name,omitempty"`         // Display name
	Version      string            `yaml:"version,omitempty"`      // Semver
	Description  string            `yaml:"description,omitempty"`  // Short description
	Author       string            `yaml:"author,omitempty"`       // Author name
	Dependencies []string          `yaml:"dependencies,omitempty"` // Other plugin IDs
	Hooks        map[string]string `yaml:"hooks,omitempty"`        // category -> reference
}

// LoadManifest loads and parses a plugin manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads a plugin manifest from a directory (looks for plugin.yaml)
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFileName))
}

// SaveManifest saves a plugin manifest to a file
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// ValidateManifest performs basic validation on a plugin manifest
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	if manifest.ID == "" {
		errors = append(errors, ValidationError{
			Field:    "id",
			Message:  "Plugin ID is required",
			Severity: "error",
		})
	}

	if manifest.Version != "" && !isValidSemver(manifest.Version) {
		errors = append(errors, ValidationError{
			Field:    "version",
			Message:  fmt.Sprintf("Invalid semver format: %s", manifest.Version),
			Severity: "error",
		})
	}

	for category, ref := range manifest.Hooks {
		if strings.TrimSpace(ref) == "" {
			errors = append(errors, ValidationError{
				Field:    "hooks." + category,
				Message:  "Hook reference is required",
				Severity: "error",
			})
		}
	}

	for i, dep := range manifest.Dependencies {
		if dep == "" {
			errors = append(errors, ValidationError{
				Field:    fmt.Sprintf("dependencies[%d]", i),
				Message:  "Dependency ID is required",
				Severity: "error",
			})
		}
	}

	if manifest.Author == "" {
		errors = append(errors, ValidationError{
			Field:    "author",
			Message:  "Author should be specified",
			Severity: "warning",
		})
	}

	return errors
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

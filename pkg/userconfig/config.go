package userconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when validation hooks report errors.
var ErrInvalidConfig = errors.New("invalid user config")

// InvalidConfigError carries every error the validation hooks reported.
type InvalidConfigError struct {
	Errors []plugins.ValidationError
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		msgs = append(msgs, v.String())
	}
	return "invalid user config: " + strings.Join(msgs, "; ")
}

func (e *InvalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// UserConfig is the configuration as the user wrote it.
type UserConfig struct {
	Paths     Paths                           `yaml:"paths"`
	Variables map[string]*configvars.Variable `yaml:"variables,omitempty"`

	// Extensions holds plugin specific sections keyed by plugin id.
	Extensions map[string]map[string]any `yaml:"extensions,omitempty"`
}

// Paths locates the project on disk.
type Paths struct {
	Root      string `yaml:"root,omitempty"`
	Cache     string `yaml:"cache,omitempty"`
	Artifacts string `yaml:"artifacts,omitempty"`
}

// ResolvedConfig is the configuration after resolution.
type ResolvedConfig struct {
	Paths      Paths                     `yaml:"paths"`
	Variables  map[string]string         `yaml:"variables,omitempty"`
	Extensions map[string]map[string]any `yaml:"extensions,omitempty"`
}

// Load reads a user config from a YAML file.
func Load(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a user config from YAML.
func Parse(data []byte) (*UserConfig, error) {
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}
	return &cfg, nil
}

// Clone returns a copy that handlers may modify.
func (c *UserConfig) Clone() *UserConfig {
	out := &UserConfig{Paths: c.Paths}
	if c.Variables != nil {
		out.Variables = make(map[string]*configvars.Variable, len(c.Variables))
		for k, v := range c.Variables {
			if v == nil {
				out.Variables[k] = nil
				continue
			}
			copied := *v
			out.Variables[k] = &copied
		}
	}
	if c.Extensions != nil {
		out.Extensions = make(map[string]map[string]any, len(c.Extensions))
		for k, section := range c.Extensions {
			copied := make(map[string]any, len(section))
			for sk, sv := range section {
				copied[sk] = sv
			}
			out.Extensions[k] = copied
		}
	}
	return out
}

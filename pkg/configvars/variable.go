package configvars

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes literal from named variables.
type Kind string

const (
	KindLiteral Kind = "literal"
	KindNamed   Kind = "named"
)

// FormatPlaceholder is replaced by the resolved value in a variable's
// format string.
const FormatPlaceholder = "{variable}"

// Variable is a value that may only be known at runtime.
type Variable struct {
	Kind Kind `yaml:"kind"`

	// Value is the value of a literal variable.
	Value string `yaml:"value,omitempty"`

	// Name identifies a named variable.
	Name string `yaml:"name,omitempty"`

	// Format, when set, must contain FormatPlaceholder.
	Format string `yaml:"format,omitempty"`
}

// Literal creates a variable that resolves to value.
func Literal(value string) *Variable {
	return &Variable{Kind: KindLiteral, Value: value}
}

// Named creates a variable resolved through the hook chain.
func Named(name string) *Variable {
	return &Variable{Kind: KindNamed, Name: name}
}

// NamedWithFormat creates a named variable whose resolved value is
// substituted into format.
func NamedWithFormat(name, format string) *Variable {
	return &Variable{Kind: KindNamed, Name: name, Format: format}
}

// Validate checks the variable's shape.
func (v *Variable) Validate() error {
	switch v.Kind {
	case KindLiteral:
		return nil
	case KindNamed:
		if v.Name == "" {
			return errors.New("named configuration variable requires a name")
		}
		if v.Format != "" && !strings.Contains(v.Format, FormatPlaceholder) {
			return fmt.Errorf("format of configuration variable %q must contain %s", v.Name, FormatPlaceholder)
		}
		return nil
	default:
		return fmt.Errorf("unknown configuration variable kind %q", v.Kind)
	}
}

// Export returns the variable as a plain map for script handlers.
func (v *Variable) Export() map[string]any {
	m := map[string]any{"kind": string(v.Kind)}
	switch v.Kind {
	case KindLiteral:
		m["value"] = v.Value
	case KindNamed:
		m["name"] = v.Name
		if v.Format != "" {
			m["format"] = v.Format
		}
	}
	return m
}

// String describes the variable without revealing literal values.
func (v *Variable) String() string {
	if v.Kind == KindNamed {
		return "${" + v.Name + "}"
	}
	return "<literal>"
}

func (v *Variable) apply(value string) string {
	if v.Format == "" {
		return value
	}
	return strings.ReplaceAll(v.Format, FormatPlaceholder, value)
}

// UnmarshalYAML accepts a plain scalar as a literal, and a mapping with a
// name (and optional format) as a named variable.
func (v *Variable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*v = Variable{Kind: KindLiteral, Value: node.Value}
		return nil
	}

	type raw Variable
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	if r.Kind == "" {
		if r.Name != "" {
			r.Kind = KindNamed
		} else {
			r.Kind = KindLiteral
		}
	}

	*v = Variable(r)
	return v.Validate()
}

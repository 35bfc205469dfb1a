// Package settings holds configuration pieces shared by the command line
// tools.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogLevel is a slog level that can be set from YAML and from a flag.
type LogLevel slog.Level

func (l LogLevel) Level() slog.Level {
	return slog.Level(l)
}

func (l LogLevel) String() string {
	return strings.ToLower(slog.Level(l).String())
}

// Set implements flag.Value.
func (l *LogLevel) Set(s string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return fmt.Errorf("settings.LogLevel: failed to parse: %s", err)
	}
	*l = LogLevel(level)
	return nil
}

func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	return l.Set(value.Value)
}

func (l LogLevel) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

// LoadYAML decodes the YAML file at path into v. Unknown keys are rejected so
// that typos do not silently fall back to defaults.
func LoadYAML(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(v); err != nil {
		return fmt.Errorf("decoding configuration file %s: %w", path, err)
	}
	return nil
}

// CommaList is a list of strings set from a comma separated flag or a YAML
// sequence or scalar.
type CommaList []string

func (c CommaList) String() string {
	return strings.Join(c, ",")
}

// Set implements flag.Value. Each call replaces the list.
func (c *CommaList) Set(s string) error {
	*c = splitList(s)
	return nil
}

func (c *CommaList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*c = splitList(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return fmt.Errorf("settings.CommaList: failed to parse: %s", err)
		}
		*c = nil
		for _, item := range items {
			*c = append(*c, splitList(item)...)
		}
		return nil
	default:
		return fmt.Errorf("settings.CommaList: expected a string or a list at line %d", value.Line)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

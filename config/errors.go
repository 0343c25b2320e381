package config

import "fmt"

// ConfigError reports a configuration value that cannot be used. It is fatal: callers
// never substitute a default for the offending value.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("config: %s", e.Reason)
	case e.Value == "":
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("config: %s=%q: %s", e.Field, e.Value, e.Reason)
	}
}

func invalid(field string, value any, reason string) *ConfigError {
	v := ""
	if value != nil {
		v = fmt.Sprint(value)
	}
	return &ConfigError{Field: field, Value: v, Reason: reason}
}

func unrecognized(field, value string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: "unrecognized value"}
}

package registry

import (
	"fmt"
	"strings"
)

// InvalidConfigurationError reports a pack whose manifest is malformed or
// references a component it does not declare. It is fatal for that pack only.
type InvalidConfigurationError struct {
	Pack   string
	Reason string
	Err    error
}

func (e *InvalidConfigurationError) Error() string {
	msg := "invalid configuration"
	if e.Pack != "" {
		msg += " in pack " + e.Pack
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidConfigurationError) Unwrap() error { return e.Err }

// DependencyCycleError reports component dependencies that do not form a DAG.
// Cycle lists the ids along the cycle, first id repeated at the end.
type DependencyCycleError struct {
	Pack  string
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	where := ""
	if e.Pack != "" {
		where = " in pack " + e.Pack
	}
	return fmt.Sprintf("dependency cycle%s: %s", where, strings.Join(e.Cycle, " -> "))
}

// LoadError records a source that failed to load into a pack.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading pack from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

package rewrite

import (
	"errors"
	"fmt"

	"github.com/gnoswap-labs/rewrite/internal/template"
	"github.com/gnoswap-labs/rewrite/internal/tree"
)

// ConfigurationError is fatal: a rule, selector, template or plan that can
// never run correctly.
type ConfigurationError struct {
	Rule string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in rule %q: %v", e.Rule, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErrorf(rule, format string, args ...any) error {
	return &ConfigurationError{Rule: rule, Err: fmt.Errorf(format, args...)}
}

// TargetError reports an edit target path that resolved to nothing.
type TargetError struct {
	Path string
	Node tree.Range
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("edit target %q is absent on node at %s", e.Path, e.Node)
}

// recoverable reports whether err only aborts the rewrite of one match.
func recoverable(err error) bool {
	if IsConfigurationError(err) {
		return false
	}
	var (
		re *template.ResolutionError
		pe *tree.PathError
		te *TargetError
	)
	return errors.As(err, &re) || errors.As(err, &pe) || errors.As(err, &te)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

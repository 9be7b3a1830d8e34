// Package template provides variable substitution for message text.
//
// Placeholders use single-brace syntax: {name}. Substitution is a single
// pass, so values containing placeholder-like text are not re-expanded.
package template

import (
	"fmt"
	"regexp"
	"strconv"
)

// braceRe matches {name} placeholders with identifier-like names.
var braceRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction controls behavior when a placeholder has no binding.
type MissingAction int

const (
	// MissingKeep leaves the placeholder verbatim (default).
	MissingKeep MissingAction = iota
	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
	// MissingError returns an UndefinedVariableError.
	MissingError
)

// Expander performs placeholder substitution.
// The zero value keeps unresolved placeholders verbatim.
type Expander struct {
	missing MissingAction
}

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets the behavior for unresolved placeholders.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missing = action
	}
}

// New creates an Expander with the given options.
func New(opts ...Option) *Expander {
	e := &Expander{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand substitutes {name} placeholders in s using vars.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	var missErr error
	result := braceRe.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			switch e.missing {
			case MissingEmpty:
				return ""
			case MissingError:
				if missErr == nil {
					missErr = &UndefinedVariableError{Name: name}
				}
				return match
			default:
				return match
			}
		}
		return FormatValue(value)
	})
	if missErr != nil {
		return "", missErr
	}
	return result, nil
}

// ExpandFunc substitutes placeholders using a resolver callback. A resolver
// returning false leaves the placeholder verbatim. Compute nodes use this
// to substitute numeric forms instead of display text.
func ExpandFunc(s string, resolve func(name string) (string, bool)) string {
	return braceRe.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := resolve(name); ok {
			return value
		}
		return match
	})
}

// defaultExpander keeps unresolved placeholders verbatim and never errors.
var defaultExpander = New()

// Expand substitutes placeholders using the package default expander.
// Unresolved placeholders are left verbatim.
func Expand(s string, vars map[string]any) string {
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// FormatValue renders a bound value as message text.
// Floats with no fractional part print without a decimal point.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// UndefinedVariableError reports a placeholder with no binding.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable: %s", e.Name)
}

// Package expr evaluates branch conditions and arithmetic formulas.
//
// Conditions compare a variable's value against an expected value using
// string semantics: a missing variable behaves as the empty string, and
// numeric values are compared by their textual form.
package expr

import (
	"fmt"
	"strings"
)

// Op identifies a comparison operator.
type Op string

// Supported comparison operators.
const (
	OpEquals    Op = "equals"
	OpNotEquals Op = "not_equals"
	OpContains  Op = "contains"
	OpNotEmpty  Op = "not_empty"
)

// BinaryOp compares a value against an expected value.
type BinaryOp func(value, expected string) bool

// builtinOps maps operator names to their implementations.
var builtinOps = map[Op]BinaryOp{
	OpEquals:    func(v, e string) bool { return v == e },
	OpNotEquals: func(v, e string) bool { return v != e },
	OpContains:  func(v, e string) bool { return strings.Contains(v, e) },
	OpNotEmpty:  func(v, _ string) bool { return strings.TrimSpace(v) != "" },
}

// ParseOp validates an operator name.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if _, ok := builtinOps[op]; !ok {
		return "", fmt.Errorf("unknown operator: %q", s)
	}
	return op, nil
}

// Evaluate applies op to value and expected.
// Unknown operators evaluate to false.
func Evaluate(op Op, value, expected string) bool {
	fn, ok := builtinOps[op]
	if !ok {
		return false
	}
	return fn(value, expected)
}

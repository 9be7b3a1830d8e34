package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadExpression indicates a formula that cannot be evaluated.
var ErrBadExpression = errors.New("bad expression")

// calcChars is the full set of characters a formula may contain after
// variable substitution. Anything outside this set rejects the formula.
const calcChars = "0123456789+-*/.()% "

// Calculate evaluates an arithmetic formula containing numbers and the
// operators + - * / % with parentheses. The formula must already have had
// its variables substituted with numeric text.
func Calculate(formula string) (float64, error) {
	for _, r := range formula {
		if !strings.ContainsRune(calcChars, r) {
			return 0, fmt.Errorf("%w: illegal character %q", ErrBadExpression, r)
		}
	}
	p := &calcParser{input: formula}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrBadExpression, p.input[p.pos], p.pos)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("%w: result is not finite", ErrBadExpression)
	}
	return result, nil
}

// ToFloat64 converts a bound variable value to a float64.
// Returns 0 and false when the value has no numeric form.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// calcParser is a recursive descent parser over the formula text.
type calcParser struct {
	input string
	pos   int
}

func (p *calcParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *calcParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpr handles + and -.
func (p *calcParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if c == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles *, / and %.
func (p *calcParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '*' && c != '/' && c != '%') {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		switch c {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrBadExpression)
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, fmt.Errorf("%w: modulo by zero", ErrBadExpression)
			}
			left = math.Mod(left, right)
		}
	}
}

// parseFactor handles numbers, unary minus, and parenthesized expressions.
func (p *calcParser) parseFactor() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of input", ErrBadExpression)
	}
	switch {
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case c == '+':
		p.pos++
		return p.parseFactor()
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		next, ok := p.peek()
		if !ok || next != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrBadExpression)
		}
		p.pos++
		return v, nil
	default:
		return p.parseNumber()
	}
}

func (p *calcParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected number at offset %d", ErrBadExpression, start)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadExpression, p.input[start:p.pos])
	}
	return v, nil
}

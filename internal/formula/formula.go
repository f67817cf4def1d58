// Package formula evaluates the arithmetic and boolean expressions that
// material rules are written in. The grammar is closed: numbers, strings,
// booleans, named variables, operators and a fixed table of math functions.
// Nothing else is reachable from an expression.
package formula

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	maxExprLen = 1024
	maxDepth   = 64
)

var (
	ErrSyntax             = errors.New("syntax error")
	ErrUndeclaredVariable = errors.New("undeclared variable")
	ErrNotAllowed         = errors.New("construct not allowed")
	ErrType               = errors.New("type mismatch")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrNotFinite          = errors.New("result is not a finite number")
)

// Error is returned for every failure while parsing or evaluating an
// expression. Kind is one of the Err* sentinels above.
type Error struct {
	Expr   string
	Pos    int
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "formula %q: %s", e.Expr, e.Kind)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Pos >= 0 {
		fmt.Fprintf(&b, " (pos %d)", e.Pos)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

// Reason is the message shown next to the edited field in the admin UI.
func (e *Error) Reason() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

// Vars maps variable names to float64, int, bool or string values.
type Vars map[string]any

// Expression is a parsed expression. It holds no mutable state and can be
// evaluated concurrently.
type Expression struct {
	src  string
	root node
}

func Parse(expr string) (*Expression, error) {
	if len(expr) > maxExprLen {
		return nil, &Error{Expr: expr, Pos: -1, Kind: ErrNotAllowed, Detail: fmt.Sprintf("longer than %d characters", maxExprLen)}
	}
	if strings.TrimSpace(expr) == "" {
		return nil, &Error{Expr: expr, Pos: -1, Kind: ErrSyntax, Detail: "empty expression"}
	}

	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{src: expr, toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t.pos, ErrSyntax, "unexpected %q", t.text)
	}

	return &Expression{src: expr, root: root}, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(expr string) *Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expression) String() string { return e.src }

// Number evaluates the expression and requires a finite numeric result.
func (e *Expression) Number(vars Vars) (float64, error) {
	v, err := e.eval(vars)
	if err != nil {
		return 0, err
	}
	if v.kind != kindNumber {
		return 0, &Error{Expr: e.src, Pos: -1, Kind: ErrType, Detail: "expected a number, got " + v.kind.String()}
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, &Error{Expr: e.src, Pos: -1, Kind: ErrNotFinite}
	}
	return v.num, nil
}

// Condition evaluates the expression and returns its truthiness.
func (e *Expression) Condition(vars Vars) (bool, error) {
	v, err := e.eval(vars)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

// Identifiers lists the variable names referenced by the expression,
// sorted and without duplicates.
func (e *Expression) Identifiers() []string {
	seen := make(map[string]struct{})
	walk(e.root, func(n node) {
		if id, ok := n.(*identNode); ok {
			seen[id.name] = struct{}{}
		}
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckVariables reports the first identifier not present in declared.
func (e *Expression) CheckVariables(declared map[string]bool) error {
	for _, name := range e.Identifiers() {
		if !declared[name] {
			return &Error{Expr: e.src, Pos: -1, Kind: ErrUndeclaredVariable, Detail: name}
		}
	}
	return nil
}

func (e *Expression) eval(vars Vars) (value, error) {
	ev := &evaluator{src: e.src, vars: vars}
	return ev.eval(e.root)
}

func EvaluateExpression(expr string, vars Vars) (float64, error) {
	e, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return e.Number(vars)
}

func EvaluateCondition(expr string, vars Vars) (bool, error) {
	e, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return e.Condition(vars)
}

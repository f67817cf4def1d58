package formula

import (
	"fmt"
	"math"
)

type kind int

const (
	kindNumber kind = iota
	kindBool
	kindString
)

func (k kind) String() string {
	switch k {
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	default:
		return "string"
	}
}

type value struct {
	kind kind
	num  float64
	b    bool
	s    string
}

func num(f float64) value { return value{kind: kindNumber, num: f} }
func boolean(b bool) value { return value{kind: kindBool, b: b} }
func text(s string) value { return value{kind: kindString, s: s} }

func (v value) truthy() bool {
	switch v.kind {
	case kindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case kindBool:
		return v.b
	default:
		return v.s != ""
	}
}

func (v value) equal(o value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindNumber:
		return v.num == o.num
	case kindBool:
		return v.b == o.b
	default:
		return v.s == o.s
	}
}

type function struct {
	minArgs int
	maxArgs int // -1 = variadic
	apply   func(args []float64) float64
}

func (f function) arity() string {
	switch {
	case f.maxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("exactly %d argument(s)", f.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", f.minArgs, f.maxArgs)
	}
}

var functions = map[string]function{
	"ceil":  {1, 1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"floor": {1, 1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"round": {1, 1, func(a []float64) float64 { return math.Floor(a[0] + 0.5) }},
	"abs":   {1, 1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"min": {1, -1, func(a []float64) float64 {
		m := a[0]
		for _, x := range a[1:] {
			m = math.Min(m, x)
		}
		return m
	}},
	"max": {1, -1, func(a []float64) float64 {
		m := a[0]
		for _, x := range a[1:] {
			m = math.Max(m, x)
		}
		return m
	}},
}

type evaluator struct {
	src  string
	vars Vars
}

func (ev *evaluator) fail(pos int, k error, format string, args ...any) error {
	return &Error{Expr: ev.src, Pos: pos, Kind: k, Detail: fmt.Sprintf(format, args...)}
}

func (ev *evaluator) eval(n node) (value, error) {
	switch n := n.(type) {
	case *numberNode:
		return num(n.val), nil
	case *stringNode:
		return text(n.val), nil
	case *boolNode:
		return boolean(n.val), nil
	case *identNode:
		return ev.lookup(n)
	case *unaryNode:
		return ev.unary(n)
	case *binaryNode:
		return ev.binary(n)
	case *ternaryNode:
		c, err := ev.eval(n.cond)
		if err != nil {
			return value{}, err
		}
		if c.truthy() {
			return ev.eval(n.then)
		}
		return ev.eval(n.els)
	case *callNode:
		return ev.call(n)
	}
	return value{}, ev.fail(-1, ErrNotAllowed, "unknown node %T", n)
}

func (ev *evaluator) lookup(n *identNode) (value, error) {
	raw, ok := ev.vars[n.name]
	if !ok {
		return value{}, ev.fail(n.pos, ErrUndeclaredVariable, "%s", n.name)
	}
	switch v := raw.(type) {
	case float64:
		return num(v), nil
	case float32:
		return num(float64(v)), nil
	case int:
		return num(float64(v)), nil
	case int64:
		return num(float64(v)), nil
	case bool:
		return boolean(v), nil
	case string:
		return text(v), nil
	}
	return value{}, ev.fail(n.pos, ErrType, "variable %s has unsupported type %T", n.name, raw)
}

func (ev *evaluator) number(n node, pos int, op string) (float64, error) {
	v, err := ev.eval(n)
	if err != nil {
		return 0, err
	}
	if v.kind != kindNumber {
		return 0, ev.fail(pos, ErrType, "operator %s needs numbers, got %s", op, v.kind)
	}
	return v.num, nil
}

func (ev *evaluator) unary(n *unaryNode) (value, error) {
	if n.op == "!" {
		x, err := ev.eval(n.x)
		if err != nil {
			return value{}, err
		}
		return boolean(!x.truthy()), nil
	}

	x, err := ev.number(n.x, n.pos, n.op)
	if err != nil {
		return value{}, err
	}
	if n.op == "-" {
		return num(-x), nil
	}
	return num(x), nil
}

func (ev *evaluator) binary(n *binaryNode) (value, error) {
	switch n.op {
	case "&&", "||":
		l, err := ev.eval(n.l)
		if err != nil {
			return value{}, err
		}
		if n.op == "&&" && !l.truthy() {
			return boolean(false), nil
		}
		if n.op == "||" && l.truthy() {
			return boolean(true), nil
		}
		r, err := ev.eval(n.r)
		if err != nil {
			return value{}, err
		}
		return boolean(r.truthy()), nil

	case "==", "!=":
		l, err := ev.eval(n.l)
		if err != nil {
			return value{}, err
		}
		r, err := ev.eval(n.r)
		if err != nil {
			return value{}, err
		}
		eq := l.equal(r)
		if n.op == "!=" {
			eq = !eq
		}
		return boolean(eq), nil
	}

	l, err := ev.number(n.l, n.pos, n.op)
	if err != nil {
		return value{}, err
	}
	r, err := ev.number(n.r, n.pos, n.op)
	if err != nil {
		return value{}, err
	}

	var res float64
	switch n.op {
	case "+":
		res = l + r
	case "-":
		res = l - r
	case "*":
		res = l * r
	case "/":
		if r == 0 {
			return value{}, ev.fail(n.pos, ErrDivisionByZero, "")
		}
		res = l / r
	case "%":
		if r == 0 {
			return value{}, ev.fail(n.pos, ErrDivisionByZero, "")
		}
		res = math.Mod(l, r)
	case "<":
		return boolean(l < r), nil
	case "<=":
		return boolean(l <= r), nil
	case ">":
		return boolean(l > r), nil
	case ">=":
		return boolean(l >= r), nil
	default:
		return value{}, ev.fail(n.pos, ErrNotAllowed, "operator %s", n.op)
	}

	// переполнение ловим сразу, а не только в итоговом числе
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return value{}, ev.fail(n.pos, ErrNotFinite, "operator %s", n.op)
	}
	return num(res), nil
}

func (ev *evaluator) call(n *callNode) (value, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		x, err := ev.number(a, n.pos, n.name+"()")
		if err != nil {
			return value{}, err
		}
		args[i] = x
	}
	return num(n.fn.apply(args)), nil
}

package formula

import (
	"fmt"
	"strings"
)

type node interface{}

type numberNode struct{ val float64 }

type stringNode struct{ val string }

type boolNode struct{ val bool }

type identNode struct {
	name string
	pos  int
}

type unaryNode struct {
	op  string
	x   node
	pos int
}

type binaryNode struct {
	op   string
	l, r node
	pos  int
}

type ternaryNode struct {
	cond, then, els node
}

type callNode struct {
	name string
	fn   function
	args []node
	pos  int
}

func walk(n node, visit func(node)) {
	visit(n)
	switch n := n.(type) {
	case *unaryNode:
		walk(n.x, visit)
	case *binaryNode:
		walk(n.l, visit)
		walk(n.r, visit)
	case *ternaryNode:
		walk(n.cond, visit)
		walk(n.then, visit)
		walk(n.els, visit)
	case *callNode:
		for _, a := range n.args {
			walk(a, visit)
		}
	}
}

type parser struct {
	src   string
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(pos int, kind error, format string, args ...any) error {
	return &Error{Expr: p.src, Pos: pos, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (p *parser) acceptOp(ops ...string) (token, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return t, false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			return t, true
		}
	}
	return t, false
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf(p.peek().pos, ErrNotAllowed, "nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	p.next()

	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.next(); t.kind != tokColon {
		return nil, p.errorf(t.pos, ErrSyntax, "expected ':' in conditional")
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, els: els}, nil
}

// binaryLevel parses a left-associative chain of the given operators.
func (p *parser) binaryLevel(sub func() (node, error), ops ...string) (node, error) {
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.acceptOp(ops...)
		if !ok {
			return left, nil
		}
		right, err := sub()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: normalizeOp(t.text), l: left, r: right, pos: t.pos}
	}
}

func normalizeOp(op string) string {
	switch op {
	case "===":
		return "=="
	case "!==":
		return "!="
	}
	return op
}

func (p *parser) parseOr() (node, error)  { return p.binaryLevel(p.parseAnd, "||") }
func (p *parser) parseAnd() (node, error) { return p.binaryLevel(p.parseEq, "&&") }
func (p *parser) parseEq() (node, error) {
	return p.binaryLevel(p.parseCmp, "===", "!==", "==", "!=")
}
func (p *parser) parseCmp() (node, error) { return p.binaryLevel(p.parseAdd, "<=", ">=", "<", ">") }
func (p *parser) parseAdd() (node, error) { return p.binaryLevel(p.parseMul, "+", "-") }
func (p *parser) parseMul() (node, error) { return p.binaryLevel(p.parseUnary, "*", "/", "%") }

func (p *parser) parseUnary() (node, error) {
	if t, ok := p.acceptOp("!", "-", "+"); ok {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: t.text, x: x, pos: t.pos}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberNode{val: t.num}, nil
	case tokString:
		return &stringNode{val: t.text}, nil
	case tokLParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.errorf(c.pos, ErrSyntax, "expected ')'")
		}
		return x, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &boolNode{val: true}, nil
		case "false":
			return &boolNode{val: false}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if strings.HasPrefix(t.text, mathPrefix) {
			return nil, p.errorf(t.pos, ErrNotAllowed, "%s is not a value", t.text)
		}
		return &identNode{name: t.text, pos: t.pos}, nil
	case tokEOF:
		return nil, p.errorf(t.pos, ErrSyntax, "unexpected end of expression")
	default:
		return nil, p.errorf(t.pos, ErrSyntax, "unexpected %q", t.text)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fnName := strings.TrimPrefix(name.text, mathPrefix)
	fn, ok := functions[fnName]
	if !ok {
		return nil, p.errorf(name.pos, ErrNotAllowed, "function %s", name.text)
	}
	p.next() // (

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if t := p.next(); t.kind != tokRParen {
		return nil, p.errorf(t.pos, ErrSyntax, "expected ')' after arguments of %s", fnName)
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, p.errorf(name.pos, ErrSyntax, "%s takes %s", fnName, fn.arity())
	}

	return &callNode{name: fnName, fn: fn, args: args, pos: name.pos}, nil
}

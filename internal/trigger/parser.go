package trigger

import (
	"fmt"
	"slices"
	"strconv"
)

// node is an expression tree node.
type node interface{ isNode() }

type (
	numberLit struct{ value float64 }
	stringLit struct{ value string }
	name      struct{ id string }

	lambda struct {
		params []string
		body   node
	}
	call struct {
		fn   node
		args []node
	}
	attribute struct {
		target node
		attr   string
	}
	subscript struct {
		target node
		index  node
	}
	unary struct {
		op      string
		operand node
	}
	binary struct {
		op          string
		left, right node
	}
	// compare holds a chain a op0 b op1 c ...
	compare struct {
		operands []node
		ops      []string
	}
	boolOp struct {
		op       string
		operands []node
	}
)

func (numberLit) isNode() {}
func (stringLit) isNode() {}
func (name) isNode()      {}
func (lambda) isNode()    {}
func (call) isNode()      {}
func (attribute) isNode() {}
func (subscript) isNode() {}
func (unary) isNode()     {}
func (binary) isNode()    {}
func (compare) isNode()   {}
func (boolOp) isNode()    {}

var compareOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

type parser struct {
	toks []token
	pos  int
}

// parse turns source text into an expression tree. It accepts a superset of
// what can be admitted so that rejected constructs are reported structurally
// rather than as syntax errors.
func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) isKeyword(text string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == text
}

func (p *parser) expect(text string) error {
	if !p.isOp(text) {
		return fmt.Errorf("%w: expected %q, got %s", ErrSyntax, text, p.peek())
	}
	p.next()
	return nil
}

func (p *parser) expr() (node, error) {
	if p.isKeyword("lambda") {
		return p.lambda()
	}
	return p.or()
}

func (p *parser) lambda() (node, error) {
	p.next()
	var params []string
	for !p.isOp(":") {
		t := p.next()
		if t.kind != tokIdent || isKeyword(t.text) {
			return nil, fmt.Errorf("%w: expected parameter name, got %s", ErrSyntax, t)
		}
		if slices.Contains(params, t.text) {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrSyntax, t.text)
		}
		params = append(params, t.text)
		if p.isOp(",") {
			p.next()
			continue
		}
		if !p.isOp(":") {
			return nil, fmt.Errorf("%w: expected \",\" or \":\", got %s", ErrSyntax, p.peek())
		}
	}
	p.next()
	body, err := p.expr()
	if err != nil {
		return nil, err
	}
	return lambda{params: params, body: body}, nil
}

func (p *parser) or() (node, error) {
	return p.boolChain("or", p.and)
}

func (p *parser) and() (node, error) {
	return p.boolChain("and", p.not)
}

func (p *parser) boolChain(op string, operand func() (node, error)) (node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for p.isKeyword(op) {
		p.next()
		n, err := operand()
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return boolOp{op: op, operands: operands}, nil
}

func (p *parser) not() (node, error) {
	if p.isKeyword("not") {
		p.next()
		operand, err := p.not()
		if err != nil {
			return nil, err
		}
		return unary{op: "not", operand: operand}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	first, err := p.arith()
	if err != nil {
		return nil, err
	}
	cmp := compare{operands: []node{first}}
	for {
		t := p.peek()
		if t.kind != tokOp || !compareOps[t.text] {
			break
		}
		p.next()
		n, err := p.arith()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, t.text)
		cmp.operands = append(cmp.operands, n)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *parser) arith() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next().text
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next().text
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unary{op: op, operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return binary{op: "**", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("("):
			p.next()
			var args []node
			for !p.isOp(")") {
				arg, err := p.expr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.isOp(",") {
					p.next()
					continue
				}
				if !p.isOp(")") {
					return nil, fmt.Errorf("%w: expected \")\", got %s", ErrSyntax, p.peek())
				}
			}
			p.next()
			n = call{fn: n, args: args}
		case p.isOp("."):
			p.next()
			t := p.next()
			if t.kind != tokIdent {
				return nil, fmt.Errorf("%w: expected attribute name, got %s", ErrSyntax, t)
			}
			n = attribute{target: n, attr: t.text}
		case p.isOp("["):
			p.next()
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = subscript{target: n, index: idx}
		default:
			return n, nil
		}
	}
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, t.text)
		}
		return numberLit{value: v}, nil
	case tokString:
		return stringLit{value: t.text}, nil
	case tokIdent:
		if t.text == "lambda" {
			p.pos--
			return p.lambda()
		}
		if isKeyword(t.text) {
			return nil, fmt.Errorf("%w: unexpected keyword %s", ErrSyntax, t)
		}
		return name{id: t.text}, nil
	case tokOp:
		if t.text == "(" {
			n, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
}

func isKeyword(s string) bool {
	switch s {
	case "lambda", "and", "or", "not":
		return true
	}
	return false
}

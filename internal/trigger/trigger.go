// Package trigger admits and compiles parachute trigger expressions.
//
// A trigger is a numeric constant (deploy below that height above ground
// while descending), the name apogee, or a three-parameter expression
//
//	lambda p, h, y: y[5] < 0 and h < 800
//
// whose parameters bind to the sensed pressure (Pa), the height above ground
// level (m) and the 13-element state vector. Admission is structural: the
// expression is parsed and inspected, never evaluated.
package trigger

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/signalsfoundry/rocketflight/core"
)

var (
	// ErrSyntax is returned when the trigger text does not parse.
	ErrSyntax = errors.New("trigger syntax error")
	// ErrInadmissible is returned when a parsed trigger breaks an admission
	// rule.
	ErrInadmissible = errors.New("trigger not admissible")
)

// Kind classifies an admitted trigger.
type Kind int

const (
	KindConstant Kind = iota + 1
	KindApogee
	KindExpression
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindApogee:
		return "apogee"
	case KindExpression:
		return "expression"
	}
	return "unknown"
}

const stateLen = 13

// Trigger is an admitted trigger expression.
type Trigger struct {
	source string
	kind   Kind
	height float64
	fn     *lambda
}

// Kind returns the admitted form.
func (t *Trigger) Kind() Kind { return t.kind }

// String returns the source text.
func (t *Trigger) String() string { return t.source }

// Admit parses src and checks it against the admission rules without
// evaluating it.
func Admit(src string) (*Trigger, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty trigger", ErrSyntax)
	}
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	switch n := root.(type) {
	case numberLit:
		return &Trigger{source: src, kind: KindConstant, height: n.value}, nil
	case name:
		if n.id == "apogee" {
			return &Trigger{source: src, kind: KindApogee}, nil
		}
		return nil, fmt.Errorf("%w: bare name %q is not a trigger", ErrInadmissible, n.id)
	case lambda:
		if len(n.params) != 3 {
			return nil, fmt.Errorf("%w: trigger function takes %d parameters, want 3", ErrInadmissible, len(n.params))
		}
		if !isBoolean(n.body) {
			return nil, fmt.Errorf("%w: trigger body must be a comparison or a boolean combination of comparisons", ErrInadmissible)
		}
		if err := checkPure(n.body); err != nil {
			return nil, err
		}
		return &Trigger{source: src, kind: KindExpression, fn: &n}, nil
	default:
		return nil, fmt.Errorf("%w: trigger must be a constant, apogee or a function expression", ErrInadmissible)
	}
}

// AdmitNumber admits a numeric trigger given as a JSON number.
func AdmitNumber(height float64) (*Trigger, error) {
	if math.IsNaN(height) || math.IsInf(height, 0) {
		return nil, fmt.Errorf("%w: trigger height must be finite", ErrInadmissible)
	}
	return &Trigger{source: fmt.Sprint(height), kind: KindConstant, height: height}, nil
}

func isBoolean(n node) bool {
	switch v := n.(type) {
	case compare:
		return true
	case boolOp:
		for _, o := range v.operands {
			if !isBoolean(o) {
				return false
			}
		}
		return true
	case unary:
		return v.op == "not" && isBoolean(v.operand)
	}
	return false
}

// checkPure rejects any call or attribute access anywhere in the tree.
func checkPure(n node) error {
	switch v := n.(type) {
	case call:
		return fmt.Errorf("%w: function calls are not allowed", ErrInadmissible)
	case attribute:
		return fmt.Errorf("%w: attribute access %q is not allowed", ErrInadmissible, v.attr)
	case lambda:
		return checkPure(v.body)
	case subscript:
		if err := checkPure(v.target); err != nil {
			return err
		}
		return checkPure(v.index)
	case unary:
		return checkPure(v.operand)
	case binary:
		if err := checkPure(v.left); err != nil {
			return err
		}
		return checkPure(v.right)
	case compare:
		for _, o := range v.operands {
			if err := checkPure(o); err != nil {
				return err
			}
		}
	case boolOp:
		for _, o := range v.operands {
			if err := checkPure(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// Compile turns an admitted trigger into a deployment predicate.
func (t *Trigger) Compile() (core.Trigger, error) {
	switch t.kind {
	case KindConstant:
		height := t.height
		return func(_, h float64, y []float64) bool { return y[5] < 0 && h < height }, nil
	case KindApogee:
		return func(_, _ float64, y []float64) bool { return y[5] < 0 }, nil
	case KindExpression:
		c := compiler{params: t.fn.params}
		pred, err := c.boolean(t.fn.body)
		if err != nil {
			return nil, err
		}
		return func(p, h float64, y []float64) bool {
			return pred(&frame{p: p, h: h, y: y})
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown trigger kind", ErrInadmissible)
}

type frame struct {
	p, h float64
	y    []float64
}

type (
	numFn  func(*frame) float64
	boolFn func(*frame) bool
)

type compiler struct {
	params []string
}

// param returns the position of id in the parameter list.
func (c compiler) param(id string) (int, bool) {
	for i, p := range c.params {
		if p == id {
			return i, true
		}
	}
	return 0, false
}

func (c compiler) boolean(n node) (boolFn, error) {
	switch v := n.(type) {
	case compare:
		operands := make([]numFn, len(v.operands))
		for i, o := range v.operands {
			fn, err := c.number(o)
			if err != nil {
				return nil, err
			}
			operands[i] = fn
		}
		ops := v.ops
		return func(f *frame) bool {
			left := operands[0](f)
			for i, op := range ops {
				right := operands[i+1](f)
				if !compareValues(op, left, right) {
					return false
				}
				left = right
			}
			return true
		}, nil
	case boolOp:
		operands := make([]boolFn, len(v.operands))
		for i, o := range v.operands {
			fn, err := c.boolean(o)
			if err != nil {
				return nil, err
			}
			operands[i] = fn
		}
		if v.op == "and" {
			return func(f *frame) bool {
				for _, o := range operands {
					if !o(f) {
						return false
					}
				}
				return true
			}, nil
		}
		return func(f *frame) bool {
			for _, o := range operands {
				if o(f) {
					return true
				}
			}
			return false
		}, nil
	case unary:
		if v.op == "not" {
			inner, err := c.boolean(v.operand)
			if err != nil {
				return nil, err
			}
			return func(f *frame) bool { return !inner(f) }, nil
		}
	}
	return nil, fmt.Errorf("%w: expected a boolean expression", ErrInadmissible)
}

func (c compiler) number(n node) (numFn, error) {
	switch v := n.(type) {
	case numberLit:
		val := v.value
		return func(*frame) float64 { return val }, nil
	case name:
		idx, ok := c.param(v.id)
		if !ok {
			return nil, fmt.Errorf("%w: unknown name %q", ErrInadmissible, v.id)
		}
		switch idx {
		case 0:
			return func(f *frame) float64 { return f.p }, nil
		case 1:
			return func(f *frame) float64 { return f.h }, nil
		}
		return nil, fmt.Errorf("%w: state vector %q must be indexed", ErrInadmissible, v.id)
	case subscript:
		target, ok := v.target.(name)
		if !ok {
			return nil, fmt.Errorf("%w: only the state vector can be indexed", ErrInadmissible)
		}
		if idx, ok := c.param(target.id); !ok || idx != 2 {
			return nil, fmt.Errorf("%w: only the state vector can be indexed", ErrInadmissible)
		}
		i, err := stateIndex(v.index)
		if err != nil {
			return nil, err
		}
		return func(f *frame) float64 {
			if i >= len(f.y) {
				return math.NaN()
			}
			return f.y[i]
		}, nil
	case unary:
		inner, err := c.number(v.operand)
		if err != nil {
			return nil, err
		}
		switch v.op {
		case "-":
			return func(f *frame) float64 { return -inner(f) }, nil
		case "+":
			return inner, nil
		}
	case binary:
		left, err := c.number(v.left)
		if err != nil {
			return nil, err
		}
		right, err := c.number(v.right)
		if err != nil {
			return nil, err
		}
		switch v.op {
		case "+":
			return func(f *frame) float64 { return left(f) + right(f) }, nil
		case "-":
			return func(f *frame) float64 { return left(f) - right(f) }, nil
		case "*":
			return func(f *frame) float64 { return left(f) * right(f) }, nil
		case "/":
			return func(f *frame) float64 { return left(f) / right(f) }, nil
		case "%":
			return func(f *frame) float64 { return math.Mod(left(f), right(f)) }, nil
		case "**":
			return func(f *frame) float64 { return math.Pow(left(f), right(f)) }, nil
		}
	}
	return nil, fmt.Errorf("%w: expression cannot be evaluated numerically", ErrInadmissible)
}

// stateIndex accepts integer literals, negative ones counting from the end.
func stateIndex(n node) (int, error) {
	neg := false
	if u, ok := n.(unary); ok && u.op == "-" {
		neg, n = true, u.operand
	}
	lit, ok := n.(numberLit)
	if !ok || lit.value != math.Trunc(lit.value) {
		return 0, fmt.Errorf("%w: state index must be an integer literal", ErrInadmissible)
	}
	i := int(lit.value)
	if neg {
		i = stateLen - i
	}
	if i < 0 || i >= stateLen {
		return 0, fmt.Errorf("%w: state index %d out of range", ErrInadmissible, i)
	}
	return i, nil
}

func compareValues(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"github.com/canonical/sqlformula/meta"
)

// ExprType is the possibly ambiguous type of an expression. Secondary is
// set when the expression also reads as another type, for instance a string
// literal that is a valid date.
type ExprType struct {
	Primary   meta.DataType
	Secondary meta.DataType
	// Source is the token the type was computed from. It is nil for the
	// result of a binary operation.
	Source Token
	// Binary is set when the type is the result of a binary operation.
	Binary *Binary
}

// Binary is a typed binary operation.
type Binary struct {
	Left  *ExprType
	Op    *Operator
	Right *ExprType
}

func (t *ExprType) String() string {
	if t == nil {
		return meta.Undefined.String()
	}
	return t.Primary.String()
}

func (t *ExprType) hasSecondary() bool {
	return t.Secondary != meta.Undefined
}

// TypeOf returns the type of a single token. It returns nil when the token
// has no computable type, such as a call to an unknown function.
func TypeOf(tok Token) *ExprType {
	switch tok := tok.(type) {
	case *Call:
		return tok.ResultType()
	case *ColumnRef:
		if tok.Column == nil {
			return &ExprType{Source: tok}
		}
		return &ExprType{Primary: tok.Column.GenericType(), Source: tok}
	case *Literal:
		typ := &ExprType{Primary: literalType(tok.kind), Source: tok}
		if sec, ok := tok.Secondary(); ok {
			typ.Secondary = literalType(sec)
		}
		return typ
	}
	return &ExprType{Source: tok}
}

func literalType(k Kind) meta.DataType {
	switch k {
	case KindBoolean:
		return meta.Boolean
	case KindDate:
		return meta.AbsoluteDatetime
	case KindNumber:
		return meta.Number
	case KindString:
		return meta.String
	}
	return meta.Undefined
}

// ResultType returns the type produced by the call. A contextual result
// type resolves to the type of the corresponding argument.
func (c *Call) ResultType() *ExprType {
	if c.Function == nil {
		return nil
	}
	t := ResolveType(c.Function.Result, c)
	if t == nil {
		return nil
	}
	r := *t
	r.Source = c
	return &r
}

// ResolveType returns typ as an expression type in the context of call.
// It returns nil when typ refers to an argument the call does not have.
func ResolveType(typ meta.Type, call *Call) *ExprType {
	if !typ.IsContextual() {
		return &ExprType{Primary: typ.Data}
	}
	arg := call.Arg(typ.Arg - 1)
	if arg == nil {
		return nil
	}
	return arg.Type()
}

// IsExpected checks actual against an expected type. It returns the type
// that satisfied the check, which is the secondary type when only that one
// matched. A nil or untyped expectation accepts anything.
func IsExpected(actual, expected *ExprType) (meta.DataType, bool) {
	if expected == nil || !expected.Primary.Concrete() {
		if actual == nil {
			return meta.Undefined, true
		}
		return actual.Primary, true
	}
	if actual == nil {
		return meta.Undefined, false
	}
	g := actual.Primary.Generic()
	if g.Concrete() && (expected.Primary == g || expected.Secondary == g || g == expected.Primary.Generic()) {
		return actual.Primary, true
	}
	if !actual.hasSecondary() {
		return actual.Primary, false
	}
	g = actual.Secondary.Generic()
	if g.Concrete() && (expected.Primary == g || expected.Secondary == g) {
		return actual.Secondary, true
	}
	return actual.Secondary, false
}

type ruleKey struct {
	left  meta.DataType
	op    OperatorID
	kind  OperatorKind
	right meta.DataType
}

// binaryRules is the type compatibility table of binary operations. An
// entry either names a specific operator or a whole operator kind.
var binaryRules = map[ruleKey]meta.DataType{
	{left: meta.Number, kind: Arithmetic, right: meta.Number}: meta.Number,
	{left: meta.Number, kind: Relational, right: meta.Number}: meta.Boolean,

	{left: meta.String, op: Addition, right: meta.String}:     meta.String,
	{left: meta.String, op: Concat, right: meta.String}:       meta.String,
	{left: meta.String, kind: Relational, right: meta.String}: meta.Boolean,

	{left: meta.Number, op: Addition, right: meta.Datetime}:       meta.Datetime,
	{left: meta.Datetime, op: Addition, right: meta.Number}:       meta.Datetime,
	{left: meta.Datetime, op: Subtraction, right: meta.Number}:    meta.Datetime,
	{left: meta.Datetime, kind: Relational, right: meta.Datetime}: meta.Boolean,

	{left: meta.Boolean, kind: Relational, right: meta.Boolean}: meta.Boolean,
	{left: meta.Boolean, kind: Logical, right: meta.Boolean}:    meta.Boolean,
}

// binaryResult looks a combination up, the specific operator first.
func binaryResult(left meta.DataType, op *Operator, right meta.DataType) meta.DataType {
	if op == nil && right == meta.Undefined {
		return left
	}
	if left == meta.Undefined || right == meta.Undefined || op == nil {
		return meta.Undefined
	}
	left, right = left.Generic(), right.Generic()
	if t, ok := binaryRules[ruleKey{left: left, op: op.ID, right: right}]; ok {
		return t
	}
	if t, ok := binaryRules[ruleKey{left: left, kind: op.Kind, right: right}]; ok {
		return t
	}
	return meta.Undefined
}

func combine(left *ExprType, op *Operator, right *ExprType) *ExprType {
	if left == nil || right == nil {
		return nil
	}
	t := binaryResult(left.Primary, op, right.Primary)
	if t == meta.Undefined && (left.hasSecondary() || right.hasSecondary()) {
		t = binaryResult(secondaryOrPrimary(left), op, secondaryOrPrimary(right))
		if t != meta.Undefined {
			promote(left.Source)
			promote(right.Source)
		}
	}
	if t == meta.Undefined {
		return nil
	}
	return &ExprType{Primary: t, Binary: &Binary{Left: left, Op: op, Right: right}}
}

func secondaryOrPrimary(t *ExprType) meta.DataType {
	if t.hasSecondary() {
		return t.Secondary
	}
	return t.Primary
}

func promote(tok Token) {
	if l, ok := tok.(*Literal); ok {
		l.Promote()
	}
}

// evaluator computes the type of a token sequence by precedence climbing.
// Arithmetic operators bind tighter than relational ones, which bind
// tighter than logical ones.
type evaluator struct {
	tokens []Token
	depth  int
}

// Evaluate returns the type of the token sequence and whether its
// parentheses are balanced. A nil type means the expression is invalid.
func Evaluate(tokens []Token) (*ExprType, bool) {
	e := &evaluator{tokens: tokens}
	t, _ := e.expr(0, nil)
	return t, e.depth == 0
}

// expr evaluates tokens from start until the end of the enclosing group.
// When prev is set the call evaluates the right operand of a non arithmetic
// operator and stops before a logical operator. It returns the index of the
// first token not consumed.
func (e *evaluator) expr(start int, prev *Operator) (*ExprType, int) {
	var left *ExprType
	var op *Operator
	i := start
	for i < len(e.tokens) {
		tok := e.tokens[i]
		first := i == start
		if tok.Kind() == KindParenClose {
			if prev == nil {
				e.depth--
			}
			break
		}

		var right *ExprType
		step := 1
		switch tok := tok.(type) {
		case *OperatorToken:
			if op != nil {
				return nil, i
			}
			if prev != nil && tok.Op.Kind == Logical {
				return left, i
			}
			op = tok.Op
			if op.Kind != Arithmetic {
				right, i = e.expr(i+1, op)
				step = 0
			}
		case *Punct:
			if tok.Kind() == KindParenOpen {
				e.depth++
				right, i = e.expr(i+1, nil)
			} else {
				right = TypeOf(tok)
			}
		default:
			right = TypeOf(tok)
		}

		if first {
			left = right
		} else if right != nil {
			left = combine(left, op, right)
			op = nil
		}
		i += step
	}
	if op != nil {
		return nil, i
	}
	return left, i
}

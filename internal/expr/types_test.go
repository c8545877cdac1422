// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr_test

import (
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/meta"
)

type TypesSuite struct{}

var _ = Suite(&TypesSuite{})

var evaluateTests = []struct {
	summary  string
	input    string
	expected meta.DataType
	balanced bool
}{{
	"number", "1", meta.Number, true,
}, {
	"arithmetic", "1 + 2 * 3", meta.Number, true,
}, {
	"comparison", "1 < 2", meta.Boolean, true,
}, {
	"comparison in parentheses", "(1 < 2)", meta.Boolean, true,
}, {
	"logical over comparisons", "1 < 2 && 3 > 2 || 1 = 1", meta.Boolean, true,
}, {
	"comparison of sums", "1 + 2 >= 3 - 1", meta.Boolean, true,
}, {
	"nested groups", "((1 + 2) * (3 - 1)) / 2", meta.Number, true,
}, {
	"string concatenation", `"a" & "b"`, meta.String, true,
}, {
	"string addition", `"a" + [name_first]`, meta.String, true,
}, {
	"date plus days", "[date of birth] + 1", meta.Datetime, true,
}, {
	"date comparison", "[date of birth] > Today()", meta.Boolean, true,
}, {
	"integer column", "100 / [Transcript].[Training Point Value]", meta.Number, true,
}, {
	"function result", "Len([name_first]) * 2", meta.Number, true,
}, {
	"contextual result", `If(1 < 2, "a", "b")`, meta.String, true,
}, {
	"trailing operator", "1 +", meta.Undefined, true,
}, {
	"adjacent operands", "1 2", meta.Undefined, true,
}, {
	"two operators", "1 + * 2", meta.Undefined, true,
}, {
	"mismatched operands", `1 + "a"`, meta.Undefined, true,
}, {
	"logical over numbers", "1 && 2", meta.Undefined, true,
}, {
	"unknown function", "nope(1) + 1", meta.Undefined, true,
}, {
	"missing closing parenthesis", "(1 + 2", meta.Number, false,
}, {
	"extra closing parenthesis", "1 + 2)", meta.Number, false,
}}

func (s *TypesSuite) TestEvaluate(c *C) {
	for i, test := range evaluateTests {
		tokens, err := tokenize(test.input)
		c.Assert(err, IsNil, Commentf("test %d: %s", i, test.summary))
		typ, balanced := expr.Evaluate(tokens)
		actual := meta.Undefined
		if typ != nil {
			actual = typ.Primary
		}
		c.Check(actual, Equals, test.expected, Commentf("test %d: %s: %s", i, test.summary, test.input))
		c.Check(balanced, Equals, test.balanced, Commentf("test %d: %s: %s", i, test.summary, test.input))
	}
}

func (s *TypesSuite) TestSecondaryPromotion(c *C) {
	tokens, err := tokenize(`"2020-01-02" < [date of birth]`)
	c.Assert(err, IsNil)
	lit := tokens[0].(*expr.Literal)
	c.Assert(lit.Kind(), Equals, expr.KindString)

	typ, balanced := expr.Evaluate(tokens)
	c.Assert(balanced, Equals, true)
	c.Assert(typ, NotNil)
	c.Check(typ.Primary, Equals, meta.Boolean)
	c.Check(lit.Kind(), Equals, expr.KindDate)
	sec, ok := lit.Secondary()
	c.Check(ok, Equals, true)
	c.Check(sec, Equals, expr.KindString)
}

func (s *TypesSuite) TestBinaryTree(c *C) {
	tokens, err := tokenize("[name_first] = \"x\" && Len([name_first]) > 1")
	c.Assert(err, IsNil)
	typ, _ := expr.Evaluate(tokens)
	c.Assert(typ, NotNil)
	c.Assert(typ.Binary, NotNil)
	c.Check(typ.Binary.Op.ID, Equals, expr.And)
	c.Check(typ.Binary.Left.Binary.Op.ID, Equals, expr.Equals)
	c.Check(typ.Binary.Right.Binary.Op.ID, Equals, expr.GreaterThan)
	c.Check(typ.Binary.Right.Binary.Left.Source, Equals, tokens[4])
}

func (s *TypesSuite) TestIsExpected(c *C) {
	number := &expr.ExprType{Primary: meta.Number}
	date := &expr.ExprType{Primary: meta.AbsoluteDatetime}
	stringDate := &expr.ExprType{Primary: meta.String, Secondary: meta.AbsoluteDatetime}
	unknown := &expr.ExprType{}

	tests := []struct {
		actual, expected *expr.ExprType
		typ              meta.DataType
		ok               bool
	}{
		{number, &expr.ExprType{Primary: meta.Number}, meta.Number, true},
		{number, &expr.ExprType{Primary: meta.String}, meta.Number, false},
		{number, &expr.ExprType{Primary: meta.Any}, meta.Number, true},
		{number, nil, meta.Number, true},
		{nil, nil, meta.Undefined, true},
		{nil, &expr.ExprType{Primary: meta.Number}, meta.Undefined, false},
		{date, &expr.ExprType{Primary: meta.Datetime}, meta.AbsoluteDatetime, true},
		{date, &expr.ExprType{Primary: meta.Date}, meta.AbsoluteDatetime, true},
		{stringDate, &expr.ExprType{Primary: meta.Datetime}, meta.AbsoluteDatetime, true},
		{stringDate, &expr.ExprType{Primary: meta.String}, meta.String, true},
		{stringDate, &expr.ExprType{Primary: meta.Number}, meta.AbsoluteDatetime, false},
		{unknown, &expr.ExprType{Primary: meta.String}, meta.Undefined, false},
	}
	for i, test := range tests {
		typ, ok := expr.IsExpected(test.actual, test.expected)
		c.Check(ok, Equals, test.ok, Commentf("test %d", i))
		c.Check(typ, Equals, test.typ, Commentf("test %d", i))
	}
}

func (s *TypesSuite) TestArgumentTypeIsMemoised(c *C) {
	tokens, err := tokenize(`"2020-01-02"`)
	c.Assert(err, IsNil)
	arg := expr.NewArgument(tokens)
	first := arg.Type()
	c.Assert(first, NotNil)
	c.Check(first.Primary, Equals, meta.String)
	c.Check(first.Secondary, Equals, meta.AbsoluteDatetime)
	c.Check(arg.Type(), Equals, first)
}

func (s *TypesSuite) TestOperators(c *C) {
	tests := []struct {
		symbol     string
		sql        string
		kind       expr.OperatorKind
		precedence int
	}{
		{"+", "+", expr.Arithmetic, 3},
		{"&", "+", expr.Arithmetic, 3},
		{"*", "*", expr.Arithmetic, 2},
		{"==", "=", expr.Relational, 4},
		{"!=", "<>", expr.Relational, 4},
		{"&&", "AND", expr.Logical, 6},
		{"||", "OR", expr.Logical, 7},
	}
	for _, test := range tests {
		op := expr.LookupOperator(test.symbol)
		c.Assert(op, NotNil, Commentf("symbol %q", test.symbol))
		c.Check(op.SQL, Equals, test.sql)
		c.Check(op.Kind, Equals, test.kind)
		c.Check(op.Precedence(), Equals, test.precedence)
	}
	c.Check(expr.LookupOperator("AND"), IsNil)
	c.Check(expr.Operators(), HasLen, 15)
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlgen_test

import (
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/internal/sqlgen"
	"github.com/canonical/sqlformula/meta"
)

type RewriteSuite struct{}

var _ = Suite(&RewriteSuite{})

func render(c *C, tokens []expr.Token) string {
	sql, err := (&sqlgen.Generator{}).Generate(tokens, meta.Undefined)
	c.Assert(err, IsNil)
	return sql
}

var nullTests = []struct {
	summary  string
	input    string
	expected string
}{{
	summary:  "left operand extends over tighter operators",
	input:    "2 * [Transcript].[Training Point Value] + 1",
	expected: "ISNULL(2 * [42:-1430],0) + 1",
}, {
	summary:  "right operand stops at an additive operator",
	input:    "1 + [Transcript].[Training Point Value] * 2 - 3",
	expected: "1 + ISNULL([42:-1430] * 2,0) - 3",
}, {
	summary:  "operand inside parentheses",
	input:    "(1 + [Transcript].[Training Point Value]) * 2",
	expected: "(1 + ISNULL([42:-1430],0)) * 2",
}, {
	summary:  "concatenation is not guarded",
	input:    `[user].[name_first] & "x"`,
	expected: "[70:1] + 'x'",
}, {
	summary:  "inside arguments",
	input:    "Abs([Training].[Training Hours] - 1)",
	expected: "Abs(ISNULL([46:-56],0) - 1)",
}}

func (s *RewriteSuite) TestGuardNulls(c *C) {
	for i, t := range nullTests {
		tokens, err := sqlgen.GuardNulls(tokenize(c, t.input))
		c.Assert(err, IsNil)
		if actual := render(c, tokens); actual != t.expected {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nexpected: %s\nactual:   %s\n", i, t.summary, t.input, t.expected, actual)
		}
	}
}

func (s *RewriteSuite) TestGuardDivisionTwice(c *C) {
	once, err := sqlgen.GuardDivision(tokenize(c, "10 / ([Training].[Training Hours] - 1)"))
	c.Assert(err, IsNil)
	twice, err := sqlgen.GuardDivision(once)
	c.Assert(err, IsNil)
	c.Check(render(c, once), Equals, "10 / NULLIF(([46:-56] - 1),0)")
	c.Check(render(c, twice), Equals, render(c, once))
}

func (s *RewriteSuite) TestInputUnchanged(c *C) {
	tokens := tokenize(c, "Abs([Transcript].[Training Point Value] / 2) + [Transcript].[Transcript Score]")
	before := render(c, tokens)
	_, err := sqlgen.Rewrite(tokens, sqlgen.Options{DivisionByZero: true, NullPropagation: true, DecimalDivision: true})
	c.Assert(err, IsNil)
	c.Check(render(c, tokens), Equals, before)
}

func (s *RewriteSuite) TestMissingOperand(c *C) {
	_, err := sqlgen.GuardNulls(tokenize(c, "[Training].[Training Hours] +"))
	c.Check(err, ErrorMatches, `operator "\+" at offset \d+: missing operand`)

	_, err = sqlgen.DecimalDivision(tokenize(c, "/ 2"))
	c.Check(err, ErrorMatches, "division at offset 0: missing operand")

	_, err = sqlgen.Rewrite(tokenize(c, "2 /"), sqlgen.Options{DivisionByZero: true})
	c.Check(err, ErrorMatches, "cannot guard division by zero: .*")
}

func (s *RewriteSuite) TestDecimalDivisionFractions(c *C) {
	tokens, err := sqlgen.DecimalDivision(tokenize(c, "1.5 / 2"))
	c.Assert(err, IsNil)
	c.Check(render(c, tokens), Equals, "1.5 / 2")
}

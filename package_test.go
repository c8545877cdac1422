// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlformula_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula"
	"github.com/canonical/sqlformula/internal/test"
	"github.com/canonical/sqlformula/meta"
)

// Hook up gocheck into the "go test" runner.
func TestPackage(t *testing.T) { TestingT(t) }

type CompileSuite struct {
	provider *test.Provider
	compiler *sqlformula.Compiler
}

var _ = Suite(&CompileSuite{})

func (s *CompileSuite) SetUpTest(c *C) {
	s.provider = test.NewProvider()
	s.compiler = sqlformula.New(s.provider)
}

func withOutput(t meta.DataType) sqlformula.Options {
	opts := sqlformula.DefaultOptions()
	opts.OutputType = t
	return opts
}

var compileTests = []struct {
	summary string
	options sqlformula.Options
	input   string
	sql     string
	output  meta.DataType
}{{
	summary: "number literal",
	options: sqlformula.DefaultOptions(),
	input:   "1",
	sql:     "1",
	output:  meta.Number,
}, {
	summary: "string function over a column",
	options: withOutput(meta.String),
	input:   "Trim([user].[name_first])",
	sql:     "RTRIM(LTRIM([70:1]))",
	output:  meta.String,
}, {
	summary: "division by zero guard",
	options: sqlformula.Options{
		OutputType:  meta.Number,
		SQLOptions:  sqlformula.DivisionByZero,
		GenerateSQL: true,
	},
	input:  "100 / [Transcript].[Training Point Value]",
	sql:    "100 / NULLIF([42:-1430],0)",
	output: meta.Number,
}, {
	summary: "decimal division with decimal places",
	options: sqlformula.Options{
		OutputType:    meta.Number,
		DecimalPoints: 2,
		SQLOptions:    sqlformula.DecimalDivision,
		GenerateSQL:   true,
	},
	input:  "[Transcript].[Training Point Value] / [Transcript].[Transcript Score]",
	sql:    "[42:-1430] * 1.0 / [46:-77]",
	output: meta.Number,
}, {
	summary: "decimal division without decimal places",
	options: sqlformula.Options{
		OutputType:  meta.Number,
		SQLOptions:  sqlformula.DecimalDivision,
		GenerateSQL: true,
	},
	input:  "[Transcript].[Training Point Value] / [Transcript].[Transcript Score]",
	sql:    "[42:-1430] / [46:-77]",
	output: meta.Number,
}, {
	summary: "case over a condition becomes if",
	options: sqlformula.DefaultOptions(),
	input:   `Case([Training].[Training Hours] >= 1, yes, "value1", "otherwise")`,
	sql:     "IIF([46:-56] >= 1,'value1','otherwise')",
	output:  meta.String,
}, {
	summary: "case over a condition with a false value",
	options: sqlformula.DefaultOptions(),
	input:   `Case([Training].[Training Hours] >= 1, no, "value1", "otherwise")`,
	sql:     "IIF([46:-56] >= 1,'otherwise','value1')",
	output:  meta.String,
}, {
	summary: "boolean column in a logical expression",
	options: withOutput(meta.Boolean),
	input:   "[user_has_photo] && [Training].[Training Hours] > 2",
	sql:     "[70:-1095] = 1 AND [46:-56] > 2",
	output:  meta.Boolean,
}, {
	summary: "yes word promoted for a boolean output",
	options: withOutput(meta.Boolean),
	input:   `"Yes"`,
	sql:     "1",
	output:  meta.Boolean,
}, {
	summary: "yes word kept as text",
	options: sqlformula.DefaultOptions(),
	input:   `"Yes"`,
	sql:     "'Yes'",
	output:  meta.String,
}, {
	summary: "unicode marker",
	options: sqlformula.Options{
		SQLOptions:  sqlformula.AllSQLOptions,
		GenerateSQL: true,
	},
	input:  `Concat("Kaaz", "你好！")`,
	sql:    "Concat('Kaaz',N'你好！')",
	output: meta.String,
}, {
	summary: "calculated field reference",
	options: withOutput(meta.Number),
	input:   "[calculated_field_num1] * 2",
	sql:     "[-1:1001] * 2",
	output:  meta.Number,
}}

func (s *CompileSuite) TestCompile(c *C) {
	for i, t := range compileTests {
		res, err := s.compiler.Compile(context.Background(), t.input, t.options)
		c.Assert(err, IsNil)
		if !res.IsSuccess() {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nunexpected errors: %v\n", i, t.summary, t.input, res.Errors)
			continue
		}
		if res.SQL != t.sql || res.ResultType != t.output {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nexpected: %s (%s)\nactual:   %s (%s)\n", i, t.summary, t.input, t.sql, t.output, res.SQL, res.ResultType)
		}
		c.Check(res.HasSQL, Equals, t.options.GenerateSQL)
		c.Check(res.HasXML, Equals, t.options.GenerateXML)
	}
}

func (s *CompileSuite) TestXML(c *C) {
	res, err := s.compiler.Compile(context.Background(), "1", sqlformula.DefaultOptions())
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	c.Check(res.XML, Equals, `<formula><number value="1" /></formula>`)

	res, err = s.compiler.Compile(context.Background(), "Abs([Training].[Training Hours])", sqlformula.DefaultOptions())
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	c.Check(res.XML, Equals, `<formula><function id="11" name="Abs" level="0"><args><arg i="0"><column id="-56" entityId="46" value="[Training].[Training Hours]" /></arg></args></function></formula>`)
}

var compileErrorTests = []struct {
	summary  string
	options  sqlformula.Options
	input    string
	expected sqlformula.Code
	data     map[string]any
}{{
	summary:  "unknown column",
	options:  sqlformula.DefaultOptions(),
	input:    "[user].[no such column] + 1",
	expected: sqlformula.UnknownColumnOrCalculatedField,
}, {
	summary:  "unbalanced call",
	options:  sqlformula.DefaultOptions(),
	input:    "Trim([user].[name_first]",
	expected: sqlformula.InvalidFunctionSyntax,
}, {
	summary:  "dangling operator",
	options:  sqlformula.DefaultOptions(),
	input:    "1 +",
	expected: sqlformula.InvalidExpression,
}, {
	summary:  "output type not fulfilled",
	options:  withOutput(meta.Number),
	input:    "Trim([user].[name_first])",
	expected: sqlformula.ExpectedOutputTypeNotFulfilled,
	data:     map[string]any{"expectedType": "Number", "suggestedOutputType": "String"},
}, {
	summary:  "nesting too deep",
	options:  sqlformula.DefaultOptions(),
	input:    "Abs(Len(Trim([user].[name_first])))",
	expected: sqlformula.MaxFunctionNestingExceeded,
}}

func (s *CompileSuite) TestCompileErrors(c *C) {
	for i, t := range compileErrorTests {
		res, err := s.compiler.Compile(context.Background(), t.input, t.options)
		c.Assert(err, IsNil)
		if res.IsSuccess() {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nexpected: %s\nactual:   success (%s)\n", i, t.summary, t.input, t.expected, res.SQL)
			continue
		}
		if res.Errors[0].Code != t.expected {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nexpected: %s\nactual:   %s\n", i, t.summary, t.input, t.expected, res.Errors[0])
		}
		if t.data != nil {
			if diff := cmp.Diff(t.data, res.Errors[0].Data); diff != "" {
				c.Errorf("test %d failed:\nsummary: %s\nunexpected data (-want +got):\n%s", i, t.summary, diff)
			}
		}
		c.Check(res.HasSQL, Equals, false)
		c.Check(res.HasXML, Equals, false)
		c.Check(res.SQL, Equals, "")
		c.Check(res.XML, Equals, "")
	}
}

func (s *CompileSuite) TestNestingError(c *C) {
	res, err := s.compiler.Compile(context.Background(), "Abs(Len(Trim([user].[name_first])))", sqlformula.DefaultOptions())
	c.Assert(err, IsNil)
	c.Assert(res.Errors, HasLen, 1)
	c.Check(res.Errors[0].Data["function"], Equals, "Trim")
	c.Check(res.Errors[0].Data["level"], Equals, 2)
}

func (s *CompileSuite) TestInvalidArguments(c *C) {
	_, err := s.compiler.Compile(context.Background(), "   ", sqlformula.DefaultOptions())
	c.Check(err, Equals, sqlformula.ErrEmptyFormula)

	_, err = sqlformula.New(nil).Compile(context.Background(), "1", sqlformula.DefaultOptions())
	c.Check(err, Equals, sqlformula.ErrNoProvider)
}

func (s *CompileSuite) TestMetadataFailure(c *C) {
	s.provider.Err = errors.New("connection reset")
	res, err := s.compiler.Compile(context.Background(), "Trim([user].[name_first])", sqlformula.DefaultOptions())
	c.Assert(err, IsNil)
	c.Assert(res.Errors, HasLen, 1)
	c.Check(res.Errors[0].Code, Equals, sqlformula.OtherError)
	c.Check(res.Errors[0].Err, ErrorMatches, ".*connection reset")
	c.Check(res.HasSQL, Equals, false)
}

func (s *CompileSuite) TestAggregate(c *C) {
	res, err := s.compiler.Compile(context.Background(), "GSUM([Training].[user_lo_rating])", withOutput(meta.Number))
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	c.Check(res.SQL, Equals, "SUM([46:-728])")
	c.Check(res.IsAggregate, Equals, true)
	c.Check(res.Aggregation, Equals, meta.Sum)

	res, err = s.compiler.Compile(context.Background(), "[aggregate_calculated_field]", withOutput(meta.Number))
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	c.Check(res.IsAggregate, Equals, true)
	c.Check(res.Aggregation, Equals, meta.Sum)

	res, err = s.compiler.Compile(context.Background(), "Abs([Training].[user_lo_rating])", withOutput(meta.Number))
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	c.Check(res.IsAggregate, Equals, false)
	c.Check(res.Aggregation, Equals, meta.NoAggregation)
}

func (s *CompileSuite) TestReferencedColumns(c *C) {
	res, err := s.compiler.Compile(context.Background(), "Concat([user].[name_first], Trim([user].[user full name]))", sqlformula.DefaultOptions())
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	c.Assert(res.ReferencedColumns, HasLen, 2)
	c.Check(res.ReferencedColumns[0].ColumnID, Equals, 1)
	c.Check(res.ReferencedColumns[1].ColumnID, Equals, -1)
}

func (s *CompileSuite) TestNesting(c *C) {
	res, err := s.compiler.Compile(context.Background(), "Abs(Len([user].[name_first]))", sqlformula.DefaultOptions())
	c.Assert(err, IsNil)
	c.Assert(res.IsSuccess(), Equals, true)
	expected := []meta.NestingFact{
		{Function: "Abs", Level: 0, Path: "Abs"},
		{Function: "Len", Level: 1, Path: "Abs->Len"},
	}
	if diff := cmp.Diff(expected, res.Nesting); diff != "" {
		c.Errorf("unexpected facts (-want +got):\n%s", diff)
	}
}

func (s *CompileSuite) TestSharedCatalog(c *C) {
	catalog := sqlformula.NewFunctionCatalog(s.provider)
	first := sqlformula.New(s.provider, sqlformula.WithCatalog(catalog))
	second := sqlformula.New(s.provider, sqlformula.WithCatalog(catalog))
	c.Check(first.Catalog(), Equals, second.Catalog())

	for _, compiler := range []*sqlformula.Compiler{first, second} {
		res, err := compiler.Compile(context.Background(), "Len([user].[name_first])", sqlformula.DefaultOptions())
		c.Assert(err, IsNil)
		c.Check(res.SQL, Equals, "Len([70:1])")
	}
}

var sqlOptionTests = []struct {
	input   string
	expected sqlformula.SQLOption
}{
	{"", 0},
	{"None", 0},
	{"all", sqlformula.AllSQLOptions},
	{"DivisionByZero", sqlformula.DivisionByZero},
	{"divisionbyzero, NullPropagation", sqlformula.DivisionByZero | sqlformula.NullPropagation},
	{"UnicodeMarker,DecimalDivision", sqlformula.UnicodeMarker | sqlformula.DecimalDivision},
}

func (s *CompileSuite) TestParseSQLOptions(c *C) {
	for _, t := range sqlOptionTests {
		o, err := sqlformula.ParseSQLOptions(t.input)
		c.Assert(err, IsNil, Commentf("input %q", t.input))
		c.Check(o, Equals, t.expected, Commentf("input %q", t.input))
	}

	_, err := sqlformula.ParseSQLOptions("DivisionByZero,Rounding")
	c.Check(err, ErrorMatches, `unknown sql option "Rounding"`)

	c.Check(sqlformula.SQLOption(0).String(), Equals, "None")
	c.Check((sqlformula.DivisionByZero | sqlformula.UnicodeMarker).String(), Equals, "DivisionByZero,UnicodeMarker")
}

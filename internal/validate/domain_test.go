package validate_test

import (
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/internal/validate"
	"github.com/canonical/sqlformula/meta"
)

type DomainSuite struct{}

var _ = Suite(&DomainSuite{})

func parameter(typ meta.DataType, values string) *meta.Parameter {
	return &meta.Parameter{Name: "p", Value: meta.Fixed(typ), KnownValues: values}
}

var domainTests = []struct {
	summary  string
	typ      meta.DataType
	values   string
	token    expr.Token
	expected bool
}{{
	summary:  "list member",
	typ:      meta.Any,
	values:   "year, day ,month",
	token:    expr.NewLiteral(expr.KindUnknown, "day", 0),
	expected: true,
}, {
	summary:  "list member in another case",
	typ:      meta.Any,
	values:   "year,day,month",
	token:    expr.NewLiteral(expr.KindUnknown, "MONTH", 0),
	expected: true,
}, {
	summary: "not a list member",
	typ:     meta.Any,
	values:  "year,day,month",
	token:   expr.NewLiteral(expr.KindUnknown, "week", 0),
}, {
	summary:  "number range",
	typ:      meta.Number,
	values:   "1-31",
	token:    expr.NewLiteral(expr.KindNumber, "31", 0),
	expected: true,
}, {
	summary: "above a number range",
	typ:     meta.Number,
	values:  "1-31",
	token:   expr.NewLiteral(expr.KindNumber, "32", 0),
}, {
	summary: "fraction in a number range",
	typ:     meta.Number,
	values:  "1-31",
	token:   expr.NewLiteral(expr.KindNumber, "1.5", 0),
}, {
	summary: "word in a number range",
	typ:     meta.Number,
	values:  "1-31",
	token:   expr.NewLiteral(expr.KindUnknown, "abc", 0),
}, {
	summary:  "date range",
	typ:      meta.Datetime,
	values:   "1/1/2020-12/31/2020",
	token:    expr.NewLiteral(expr.KindDate, "6/1/2020", 0),
	expected: true,
}, {
	summary: "after a date range",
	typ:     meta.Datetime,
	values:  "1/1/2020-12/31/2020",
	token:   expr.NewLiteral(expr.KindString, "2021-01-01", 0),
}, {
	summary:  "string range",
	typ:      meta.String,
	values:   "a-m",
	token:    expr.NewLiteral(expr.KindString, "Hello", 0),
	expected: true,
}, {
	summary: "after a string range",
	typ:     meta.String,
	values:  "a-m",
	token:   expr.NewLiteral(expr.KindString, "zebra", 0),
}, {
	summary: "nothing",
	typ:     meta.Number,
	values:  "1-31",
}, {
	summary: "column of the parameter type",
	typ:     meta.Number,
	values:  "1-31",
	token: expr.NewColumnRef("[points]", "", "points", &meta.Column{
		ColumnID: 1, Storage: meta.StorageInteger, Display: meta.DisplayInteger,
	}, 0),
	expected: true,
}, {
	summary: "column of another type",
	typ:     meta.Number,
	values:  "1-31",
	token: expr.NewColumnRef("[name]", "", "name", &meta.Column{
		ColumnID: 1, Storage: meta.StorageString, Display: meta.DisplayString,
	}, 0),
}}

func (s *DomainSuite) TestContains(c *C) {
	culture := expr.DefaultCulture()
	for i, t := range domainTests {
		d := validate.ParseDomain(parameter(t.typ, t.values), culture)
		c.Assert(d, NotNil)
		if got := d.Contains(t.token, t.typ); got != t.expected {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nexpected: %v\nactual:   %v\n", i, t.summary, t.values, t.expected, got)
		}
	}
}

func (s *DomainSuite) TestString(c *C) {
	culture := expr.DefaultCulture()
	c.Check(validate.ParseDomain(parameter(meta.Any, " year, day "), culture).String(), Equals, "year,day")
	c.Check(validate.ParseDomain(parameter(meta.Number, "1-9999"), culture).String(), Equals, "1-9999")
	c.Check(validate.ParseDomain(parameter(meta.Number, "-5"), culture).String(), Equals, "-5")
}

func (s *DomainSuite) TestNoDomain(c *C) {
	culture := expr.DefaultCulture()
	c.Check(validate.ParseDomain(parameter(meta.Number, ""), culture), IsNil)
	c.Check(validate.ParseDomain(parameter(meta.Number, "  "), culture), IsNil)
	c.Check(validate.ParseDomain(nil, culture), IsNil)
}

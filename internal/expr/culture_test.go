package expr_test

import (
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula/internal/expr"
)

type CultureSuite struct{}

var _ = Suite(&CultureSuite{})

func (s *CultureSuite) TestParseNumber(c *C) {
	culture := expr.DefaultCulture()
	valid := map[string]string{
		"1":      "1",
		"-3":     "-3",
		"+3":     "3",
		"1.5":    "1.5",
		"5.":     "5",
		".25":    "0.25",
		"100.00": "100",
	}
	for input, expected := range valid {
		d, ok := culture.ParseNumber(input)
		c.Check(ok, Equals, true, Commentf("input %q", input))
		c.Check(d.String(), Equals, expected, Commentf("input %q", input))
	}
	for _, input := range []string{"", ".", "-", "1e5", "1.2.3", "1,5", "12a", "1-2"} {
		_, ok := culture.ParseNumber(input)
		c.Check(ok, Equals, false, Commentf("input %q", input))
	}
}

func (s *CultureSuite) TestParseNumberDecimalComma(c *C) {
	culture := expr.Culture{DecimalSeparator: ','}
	d, ok := culture.ParseNumber("1,5")
	c.Assert(ok, Equals, true)
	c.Check(d.String(), Equals, "1.5")
	_, ok = culture.ParseNumber("1.5")
	c.Check(ok, Equals, false)
}

func (s *CultureSuite) TestParseDate(c *C) {
	culture := expr.DefaultCulture()
	for _, input := range []string{"2020-01-02", "2020-01-02 10:11:12", "1/2/2020", "01/02/2020", "Jan 2, 2020", "2020-01-02T10:11:12Z"} {
		t, ok := culture.ParseDate(input)
		c.Check(ok, Equals, true, Commentf("input %q", input))
		c.Check(t.Year(), Equals, 2020, Commentf("input %q", input))
	}
	for _, input := range []string{"", "day", "2020-13-01", "12"} {
		_, ok := culture.ParseDate(input)
		c.Check(ok, Equals, false, Commentf("input %q", input))
	}
}

func (s *CultureSuite) TestParseBoolean(c *C) {
	culture := expr.Culture{Yes: "Oui", No: "Non"}
	v, ok := culture.ParseBoolean("oui")
	c.Check(v, Equals, true)
	c.Check(ok, Equals, true)
	v, ok = culture.ParseBoolean("NON")
	c.Check(v, Equals, false)
	c.Check(ok, Equals, true)
	_, ok = culture.ParseBoolean("yes")
	c.Check(ok, Equals, false)
}

func (s *CultureSuite) TestDefaultGrammar(c *C) {
	g := expr.DefaultGrammar()
	c.Check(g.Quote, Equals, '"')
	c.Check(g.Delimiter, Equals, '.')
	c.Check(g.ColumnStart, Equals, '[')
	c.Check(g.ColumnEnd, Equals, ']')
}

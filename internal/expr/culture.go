package expr

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Grammar holds the characters with a special meaning in formulas.
type Grammar struct {
	Quote       rune
	Delimiter   rune
	ColumnStart rune
	ColumnEnd   rune
}

// DefaultGrammar returns the grammar `"text"`, `[Entity].[Column]`.
func DefaultGrammar() Grammar {
	return Grammar{Quote: '"', Delimiter: '.', ColumnStart: '[', ColumnEnd: ']'}
}

func (g Grammar) orDefault() Grammar {
	d := DefaultGrammar()
	if g.Quote == 0 {
		g.Quote = d.Quote
	}
	if g.Delimiter == 0 {
		g.Delimiter = d.Delimiter
	}
	if g.ColumnStart == 0 {
		g.ColumnStart = d.ColumnStart
	}
	if g.ColumnEnd == 0 {
		g.ColumnEnd = d.ColumnEnd
	}
	return g
}

// Culture controls how literals are recognised.
type Culture struct {
	DecimalSeparator rune
	DateLayouts      []string
	Yes, No          string
}

// DefaultCulture returns an en-US like culture.
func DefaultCulture() Culture {
	return Culture{
		DecimalSeparator: '.',
		Yes:              "Yes",
		No:               "No",
		DateLayouts: []string{
			"2006-01-02",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			time.RFC3339,
			"1/2/2006",
			"01/02/2006",
			"1/2/2006 15:04",
			"1/2/2006 15:04:05",
			"1-2-2006",
			"2006/01/02",
			"Jan 2, 2006",
			"January 2, 2006",
			"2 Jan 2006",
		},
	}
}

func (c Culture) orDefault() Culture {
	d := DefaultCulture()
	if c.DecimalSeparator == 0 {
		c.DecimalSeparator = d.DecimalSeparator
	}
	if len(c.DateLayouts) == 0 {
		c.DateLayouts = d.DateLayouts
	}
	if c.Yes == "" {
		c.Yes = d.Yes
	}
	if c.No == "" {
		c.No = d.No
	}
	return c
}

// ParseNumber parses a decimal number written with the culture's decimal
// separator. Exponents and group separators are not accepted.
func (c Culture) ParseNumber(s string) (decimal.Decimal, bool) {
	c = c.orDefault()
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	var b strings.Builder
	digits, seps := 0, 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == c.DecimalSeparator:
			seps++
			b.WriteByte('.')
		case (r == '-' || r == '+') && i == 0:
			b.WriteRune(r)
		default:
			return decimal.Zero, false
		}
	}
	if digits == 0 || seps > 1 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(b.String(), "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDate parses a date or date time with one of the culture layouts.
func (c Culture) ParseDate(s string) (time.Time, bool) {
	c = c.orDefault()
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range c.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBoolean recognises the localised yes and no words, ignoring case.
func (c Culture) ParseBoolean(s string) (value bool, ok bool) {
	c = c.orDefault()
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, c.Yes):
		return true, true
	case strings.EqualFold(s, c.No):
		return false, true
	}
	return false, false
}

package validate

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/meta"
)

// Domain is the set of legal values of a function parameter.
type Domain interface {
	// Contains reports whether tok is a member of the domain. A non literal
	// token whose type equals typ is always a member.
	Contains(tok expr.Token, typ meta.DataType) bool
	String() string
}

// ParseDomain returns the known-value domain of a parameter, or nil when
// the parameter has none. A single value with a dash after its first char
// is a range, anything else is a comma separated list.
func ParseDomain(p *meta.Parameter, c expr.Culture) Domain {
	if p == nil || strings.TrimSpace(p.KnownValues) == "" {
		return nil
	}
	values := strings.Split(p.KnownValues, ",")
	if len(values) == 1 {
		if i := strings.Index(values[0][1:], "-"); i >= 0 {
			lo := strings.TrimSpace(values[0][:i+1])
			hi := strings.TrimSpace(values[0][i+2:])
			return parseRange(lo, hi, p.Value.Data, c)
		}
	}
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return &listDomain{values: values}
}

func parseRange(lo, hi string, typ meta.DataType, c expr.Culture) Domain {
	r := &rangeDomain{lo: lo, hi: hi, culture: c}
	switch typ.Generic() {
	case meta.Datetime:
		r.cmp = compareDates
	case meta.Number:
		r.cmp = compareInts
	default:
		r.cmp = compareStrings
	}
	return r
}

// member reports whether a token passes because of its type alone.
func member(tok expr.Token, typ meta.DataType) bool {
	if tok == nil || expr.IsLiteral(tok) || typ == meta.Undefined {
		return false
	}
	t := expr.TypeOf(tok)
	return t != nil && t.Primary.Generic() == typ.Generic()
}

type listDomain struct {
	values []string
}

func (d *listDomain) Contains(tok expr.Token, typ meta.DataType) bool {
	if tok == nil {
		return false
	}
	if member(tok, typ) {
		return true
	}
	for _, v := range d.values {
		if strings.EqualFold(v, tok.Text()) {
			return true
		}
	}
	return false
}

func (d *listDomain) String() string {
	return strings.Join(d.values, ",")
}

// compareFunc compares a value with a bound. ok is false when the value
// can not be converted to the type of the range.
type compareFunc func(c expr.Culture, value, bound string) (cmp int, ok bool)

type rangeDomain struct {
	lo, hi  string
	culture expr.Culture
	cmp     compareFunc
}

func (d *rangeDomain) Contains(tok expr.Token, typ meta.DataType) bool {
	if tok == nil {
		return false
	}
	if member(tok, typ) {
		return true
	}
	lo, ok := d.cmp(d.culture, tok.Text(), d.lo)
	if !ok || lo < 0 {
		return false
	}
	hi, ok := d.cmp(d.culture, tok.Text(), d.hi)
	return ok && hi <= 0
}

func (d *rangeDomain) String() string {
	return d.lo + "-" + d.hi
}

func compareInts(c expr.Culture, value, bound string) (int, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !v.IsInteger() {
		return 0, false
	}
	b, err := decimal.NewFromString(bound)
	if err != nil {
		return 0, false
	}
	return v.Cmp(b), true
}

func compareDates(c expr.Culture, value, bound string) (int, bool) {
	v, ok := c.ParseDate(value)
	if !ok {
		return 0, false
	}
	b, ok := c.ParseDate(bound)
	if !ok {
		return 0, false
	}
	return compareTimes(v, b), true
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareStrings(_ expr.Culture, value, bound string) (int, bool) {
	return strings.Compare(strings.ToLower(value), strings.ToLower(bound)), true
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqlgen renders a validated token tree as a T-SQL fragment.
//
// Columns render as [entityId:columnId] placeholders that the caller
// substitutes with real column expressions. Function calls render through
// the SQL template of their descriptor. Before rendering, the enabled
// rewrite passes of Options are applied to a copy of the tree.
package sqlgen

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/meta"
)

// Options selects the rewrites and literal handling of a Generator.
type Options struct {
	// DivisionByZero guards denominators with NULLIF.
	DivisionByZero bool
	// NullPropagation guards additive operands with ISNULL.
	NullPropagation bool
	// DecimalDivision turns integer divisions into decimal ones.
	DecimalDivision bool
	// UnicodeMarker prefixes literals holding runes above 255 with N.
	UnicodeMarker bool
	// Quote is the string quote of the formula grammar. Doubled quotes
	// in literals are unescaped before SQL quoting. The zero value is '"'.
	Quote rune
}

// Generator renders token trees as SQL.
type Generator struct {
	Options Options
	// Fallback is called when a rewrite pass fails. The tokens are then
	// rendered without rewrites.
	Fallback func(err error)
}

// Generate renders tokens as SQL for an expression of the given output
// type. It only fails when a function template refers to an argument the
// call does not have.
func (g *Generator) Generate(tokens []expr.Token, output meta.DataType) (string, error) {
	r := &renderer{
		wrapBool: output == meta.Boolean && len(tokens) > 1 && hasKind(tokens, expr.KindBoolean) && hasKind(tokens, expr.KindFunction),
		unicode:  g.Options.UnicodeMarker,
		quote:    g.Options.Quote,
	}

	rewritten, err := Rewrite(tokens, g.Options)
	if err != nil {
		if g.Fallback != nil {
			g.Fallback(err)
		}
		rewritten = tokens
	}

	var b strings.Builder
	for _, tok := range rewritten {
		if err := r.token(&b, tok); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func hasKind(tokens []expr.Token, kind expr.Kind) bool {
	for _, tok := range tokens {
		if tok.Kind() == kind {
			return true
		}
	}
	return false
}

type renderer struct {
	wrapBool bool
	unicode  bool
	quote    rune
}

func (r *renderer) token(b *strings.Builder, tok expr.Token) error {
	switch tok := tok.(type) {
	case *expr.ColumnRef:
		entity, column := 0, 0
		if tok.Column != nil {
			entity, column = tok.Column.EntityID, tok.Column.ColumnID
		}
		b.WriteString("[" + strconv.Itoa(entity) + ":" + strconv.Itoa(column) + "]")
	case *expr.OperatorToken:
		sym := tok.Op.SQL
		if sym == "" {
			sym = tok.Op.Symbol
		}
		b.WriteString(" " + sym + " ")
	case *expr.Call:
		return r.call(b, tok)
	case *expr.Literal:
		r.literal(b, tok)
	default:
		if tok.Kind() != expr.KindComma {
			b.WriteString(tok.Text())
		}
	}
	return nil
}

func (r *renderer) literal(b *strings.Builder, l *expr.Literal) {
	switch l.Kind() {
	case expr.KindBoolean:
		if v, _ := l.Truth(); v {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
	case expr.KindString, expr.KindDate:
		q := string(r.quoteRune())
		value := strings.ReplaceAll(l.Text(), q+q, q)
		value = strings.ReplaceAll(value, "'", "''")
		if r.unicode && hasWideRune(value) {
			b.WriteString("N")
		}
		b.WriteString("'" + value + "'")
	default:
		b.WriteString(l.Text())
	}
}

func (r *renderer) quoteRune() rune {
	if r.quote == 0 {
		return '"'
	}
	return r.quote
}

func hasWideRune(s string) bool {
	for _, c := range s {
		if c > 255 {
			return true
		}
	}
	return false
}

func (r *renderer) call(b *strings.Builder, call *expr.Call) error {
	call = searchedCase(call)
	if r.wrapBool && returnsBoolean(call) {
		var inner strings.Builder
		if err := r.function(&inner, call); err != nil {
			return err
		}
		s := inner.String()
		if IsBooleanExpression(s) {
			s = "IIF(" + s + ", 1, 0)"
		}
		b.WriteString(s)
		return nil
	}
	return r.function(b, call)
}

func returnsBoolean(call *expr.Call) bool {
	return call.Function != nil && !call.Function.Result.IsContextual() && call.Function.Result.Data == meta.Boolean
}

var (
	wrappedPattern     = regexp.MustCompile(`^.+?\(.*?\)$`)
	likePattern        = regexp.MustCompile(`'[%]?(\{\d\})[%]?'`)
	sqlStringPattern   = regexp.MustCompile(`^[N]?'(.*)'$`)
	functionPattern    = regexp.MustCompile(`^[A-Za-z]+\s*\(.+?\)$`)
	unresolvedFunction = &meta.Function{}
)

// function renders a call through the SQL template of its function.
func (r *renderer) function(b *strings.Builder, call *expr.Call) error {
	fn := call.Function
	if fn == nil {
		fn = unresolvedFunction
	}
	tmpl := ExpandTemplate(fn.SQL, len(call.Args))
	sqlFunc := tmpl
	if sqlFunc == "" {
		sqlFunc = fn.Name
	}
	if sqlFunc == "" {
		sqlFunc = call.Name
	}
	isExpr := isTemplate(tmpl)
	parens := !wrappedPattern.MatchString(sqlFunc) && !isExpr

	patterns := map[string]bool{}
	for _, m := range likePattern.FindAllStringSubmatch(sqlFunc, -1) {
		patterns[m[1]] = true
	}

	inner := &renderer{unicode: r.unicode, quote: r.quote}
	args := make([]string, len(call.Args))
	for i, arg := range call.Args {
		var ab strings.Builder
		for _, tok := range arg.Tokens {
			if err := inner.token(&ab, tok); err != nil {
				return err
			}
		}
		var param *meta.Parameter
		if i < len(fn.Parameters) {
			param = fn.Parameters[i]
		}
		ab.WriteString(completeBoolean(param, arg))

		value := ab.String()
		if patterns[placeholder(i)] {
			if m := sqlStringPattern.FindStringSubmatch(value); m != nil {
				value = m[1]
			} else {
				value = "' + " + value + " + '"
			}
		}
		args[i] = value
	}

	if isExpr && len(args) > 0 {
		s, err := format(sqlFunc, args)
		if err != nil {
			return err
		}
		b.WriteString(s)
		return nil
	}

	if !isExpr {
		b.WriteString(sqlFunc)
	}
	if parens {
		b.WriteString("(")
	}
	joined := strings.Join(args, ",")
	if averagesInteger(call) {
		joined = "CAST(" + joined + " AS FLOAT)"
	}
	b.WriteString(joined)
	if parens {
		b.WriteString(")")
	}
	return nil
}

// averagesInteger reports whether call is an AVG over an integer column.
func averagesInteger(call *expr.Call) bool {
	if call.Function == nil || call.Function.AggregationKind() != meta.Avg || len(call.Args) != 1 {
		return false
	}
	for _, tok := range call.Args[0].Tokens {
		if ref, ok := tok.(*expr.ColumnRef); ok {
			return ref.Column != nil && ref.Column.Storage == meta.StorageInteger
		}
	}
	return false
}

// completeBoolean returns " = 1" when a boolean parameter receives a single
// boolean column or a boolean function rendering as a plain SQL call.
func completeBoolean(param *meta.Parameter, arg *expr.Argument) string {
	if param == nil || param.Value.IsContextual() || param.Value.Data != meta.Boolean || len(arg.Tokens) != 1 {
		return ""
	}
	tok := arg.Tokens[0]
	if call, ok := tok.(*expr.Call); ok {
		if IsBooleanCall(call) {
			return " = 1"
		}
		return ""
	}
	if t := arg.Type(); t != nil && t.Primary == meta.Boolean {
		return " = 1"
	}
	return ""
}

// IsBooleanCall reports whether call returns a boolean and renders as a
// single SQL function call, which T-SQL does not accept as a predicate.
func IsBooleanCall(call *expr.Call) bool {
	if !returnsBoolean(call) {
		return false
	}
	var b strings.Builder
	if err := (&renderer{}).function(&b, call); err != nil {
		return false
	}
	return IsFunctionCall(b.String())
}

// IsFunctionCall reports whether sql is exactly one function call.
func IsFunctionCall(sql string) bool {
	return strings.TrimSpace(sql) == sql && functionPattern.MatchString(sql)
}

// IsBooleanExpression reports whether sql is a boolean predicate that has
// to be wrapped in IIF to be used as a value.
func IsBooleanExpression(sql string) bool {
	if sql == "" || sql == "1" || sql == "0" || IsFunctionCall(sql) {
		return false
	}
	if len(sql) >= 4 && strings.EqualFold(sql[:4], "CASE") {
		return false
	}
	return strings.Contains(sql, " ")
}

// searchedCase turns a CASE switching on a boolean expression into a
// searched CASE: each WHEN value is replaced by the condition, negated
// where the value is false. The call is copied, not modified.
func searchedCase(call *expr.Call) *expr.Call {
	if !call.Is("Case") || len(call.Args) < 4 {
		return call
	}
	cond := call.Args[0]
	t := cond.Type()
	if t == nil || (t.Primary != meta.Boolean && t.Secondary != meta.Boolean) {
		return call
	}
	if len(cond.Tokens) == 1 && cond.Tokens[0].Kind() == expr.KindFunction {
		return call
	}

	literal := len(cond.Tokens) == 1 && cond.Tokens[0].Kind() == expr.KindBoolean
	condTrue := literal && isTrue(cond.Tokens[0])

	args := append([]*expr.Argument(nil), call.Args...)
	for i := 1; i < len(args)-1; i += 2 {
		tokens := args[i].Tokens
		if !literal {
			tokens = cond.Tokens
		}
		tokens = clone(tokens)
		if !condTrue && !(len(args[i].Tokens) > 0 && isTrue(args[i].Tokens[0])) {
			negated := []expr.Token{
				expr.NewLiteral(expr.KindUnknown, "NOT", -1),
				expr.NewPunct(expr.KindParenOpen, -1),
			}
			tokens = append(append(negated, tokens...), expr.NewPunct(expr.KindParenClose, -1))
		}
		args[i] = args[i].WithTokens(tokens)
	}
	args[0] = cond.WithTokens(nil)
	return call.WithArgs(args)
}

func isTrue(tok expr.Token) bool {
	l, ok := tok.(*expr.Literal)
	if !ok {
		return false
	}
	v, ok := l.Truth()
	return ok && v
}

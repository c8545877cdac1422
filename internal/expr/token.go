// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"strings"
	"sync"

	"github.com/canonical/sqlformula/meta"
)

// Kind is the lexical class of a token.
type Kind int

const (
	// KindNone marks the absence of a secondary kind.
	KindNone Kind = iota
	KindUnknown
	KindBoolean
	KindColumn
	KindComma
	KindDate
	KindFunction
	KindNumber
	KindOperator
	KindParenOpen
	KindParenClose
	KindString
)

var kindNames = []string{
	"None",
	"Unknown",
	"Boolean",
	"Column",
	"Comma",
	"Date",
	"Function",
	"Number",
	"Operator",
	"ParenthesisOpen",
	"ParenthesisClose",
	"String",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Token is a classified lexical unit of a formula. The concrete types are
// *Literal, *OperatorToken, *Punct, *ColumnRef and *Call.
type Token interface {
	// Kind returns the current lexical class of the token.
	Kind() Kind
	// Text returns the token text as written in the formula. Quoted
	// literals are returned without their quotes.
	Text() string
	// Pos returns the byte offset of the token in the formula.
	Pos() int

	token()
}

// Literal is a number, string, date, boolean or unknown word.
type Literal struct {
	kind      Kind
	secondary Kind
	text      string
	pos       int
	// truth is the value of a boolean interpretation of the literal.
	truth bool
}

// NewLiteral returns a literal of the given kind.
func NewLiteral(kind Kind, text string, pos int) *Literal {
	return &Literal{kind: kind, text: text, pos: pos}
}

// NewBoolean returns a boolean literal.
func NewBoolean(text string, value bool, pos int) *Literal {
	return &Literal{kind: KindBoolean, text: text, pos: pos, truth: value}
}

func (l *Literal) Kind() Kind   { return l.kind }
func (l *Literal) Text() string { return l.text }
func (l *Literal) Pos() int     { return l.pos }
func (l *Literal) token()       {}

// Secondary returns the alternative interpretation of the literal.
func (l *Literal) Secondary() (Kind, bool) {
	return l.secondary, l.secondary != KindNone
}

// Truth returns the boolean value of the literal and whether it has one.
func (l *Literal) Truth() (value bool, ok bool) {
	if l.kind != KindBoolean && l.secondary != KindBoolean {
		return false, false
	}
	return l.truth, true
}

// Promote makes the secondary interpretation the primary one.
func (l *Literal) Promote() {
	if l.secondary == KindNone {
		return
	}
	l.kind, l.secondary = l.secondary, l.kind
}

// WithText returns a copy of the literal with different text.
func (l *Literal) WithText(text string) *Literal {
	c := *l
	c.text = text
	return &c
}

func (l *Literal) withSecondary(kind Kind, truth bool) *Literal {
	if kind != l.kind {
		l.secondary = kind
		l.truth = truth
	}
	return l
}

// IsWholeNumber reports whether the literal is a number without a fraction
// or sign.
func (l *Literal) IsWholeNumber() bool {
	if l.kind != KindNumber || l.text == "" {
		return false
	}
	for _, c := range l.text {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// OperatorToken is an operator of the operator table.
type OperatorToken struct {
	Op  *Operator
	pos int
}

// NewOperator returns an operator token.
func NewOperator(op *Operator, pos int) *OperatorToken {
	return &OperatorToken{Op: op, pos: pos}
}

func (o *OperatorToken) Kind() Kind   { return KindOperator }
func (o *OperatorToken) Text() string { return o.Op.Symbol }
func (o *OperatorToken) Pos() int     { return o.pos }
func (o *OperatorToken) token()       {}

// Punct is a comma or a parenthesis.
type Punct struct {
	kind Kind
	pos  int
}

// NewPunct returns a punctuation token of kind KindComma, KindParenOpen or
// KindParenClose.
func NewPunct(kind Kind, pos int) *Punct {
	return &Punct{kind: kind, pos: pos}
}

func (p *Punct) Kind() Kind { return p.kind }

func (p *Punct) Text() string {
	switch p.kind {
	case KindComma:
		return ","
	case KindParenOpen:
		return "("
	}
	return ")"
}

func (p *Punct) Pos() int { return p.pos }
func (p *Punct) token()   {}

// ColumnRef is a bracketed reference to a report column or a calculated
// field. Column is nil when the reference did not resolve.
type ColumnRef struct {
	Entity string
	Name   string
	Column *meta.Column
	text   string
	pos    int
}

// NewColumnRef returns a column reference.
func NewColumnRef(text, entity, name string, col *meta.Column, pos int) *ColumnRef {
	return &ColumnRef{Entity: entity, Name: name, Column: col, text: text, pos: pos}
}

func (c *ColumnRef) Kind() Kind   { return KindColumn }
func (c *ColumnRef) Text() string { return c.text }
func (c *ColumnRef) Pos() int     { return c.pos }
func (c *ColumnRef) token()       {}

// Call is a function call with its arguments. Function is nil when the name
// did not resolve.
type Call struct {
	Name     string
	Function *meta.Function
	// Level is the nesting depth of the call, 0 at the top level.
	Level int
	// Hierarchy is the names of the enclosing calls and the call itself,
	// joined by "->".
	Hierarchy string
	Args      []*Argument
	// Guard marks the NULLIF and ISNULL wrappers inserted by the SQL
	// rewrites.
	Guard bool
	pos   int
}

// NewCall returns a call without arguments.
func NewCall(name string, fn *meta.Function, pos int) *Call {
	return &Call{Name: name, Function: fn, Hierarchy: name, pos: pos}
}

// NewGuard returns a synthetic numeric call name(arg, replacement).
func NewGuard(name string, arg []Token, replacement string) *Call {
	fn := &meta.Function{Name: name, Result: meta.Fixed(meta.Number)}
	return &Call{
		Name:     name,
		Function: fn,
		Guard:    true,
		Args: []*Argument{
			NewArgument(arg),
			NewArgument([]Token{NewLiteral(KindNumber, replacement, -1)}),
		},
		pos: -1,
	}
}

func (c *Call) Kind() Kind   { return KindFunction }
func (c *Call) Text() string { return c.Name }
func (c *Call) Pos() int     { return c.pos }
func (c *Call) token()       {}

// Arg returns the argument at index i or nil.
func (c *Call) Arg(i int) *Argument {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// WithArgs returns a copy of the call with different arguments.
func (c *Call) WithArgs(args []*Argument) *Call {
	n := *c
	n.Args = args
	return &n
}

// WithFunction returns a copy of the call bound to a different function.
func (c *Call) WithFunction(fn *meta.Function) *Call {
	n := *c
	n.Function = fn
	return &n
}

// Is reports whether the call resolves to the named function, ignoring case.
func (c *Call) Is(name string) bool {
	return c.Function != nil && strings.EqualFold(c.Function.Name, name)
}

// FunctionName returns the catalog name of the function, or the name as
// written when it did not resolve.
func (c *Call) FunctionName() string {
	if c.Function != nil {
		return c.Function.Name
	}
	return c.Name
}

// Argument is one comma separated operand of a call. Its type is computed
// at most once.
type Argument struct {
	Tokens []Token

	once sync.Once
	typ  *ExprType
}

// NewArgument returns an argument over tokens.
func NewArgument(tokens []Token) *Argument {
	return &Argument{Tokens: tokens}
}

// Type returns the memoised expression type of the argument.
func (a *Argument) Type() *ExprType {
	a.once.Do(func() {
		a.typ, _ = Evaluate(a.Tokens)
	})
	return a.typ
}

// WithTokens returns an argument over different tokens that keeps the
// type of a.
func (a *Argument) WithTokens(tokens []Token) *Argument {
	typ := a.Type()
	n := &Argument{Tokens: tokens}
	n.once.Do(func() { n.typ = typ })
	return n
}

func (a *Argument) String() string {
	texts := make([]string, len(a.Tokens))
	for i, t := range a.Tokens {
		texts[i] = t.Text()
	}
	return strings.Join(texts, " ")
}

// IsUnknown reports whether the argument is a single unknown word.
func (a *Argument) IsUnknown() bool {
	return len(a.Tokens) == 1 && a.Tokens[0].Kind() == KindUnknown
}

// IsLiteral reports whether the token is a literal of any kind.
func IsLiteral(t Token) bool {
	_, ok := t.(*Literal)
	return ok
}

// StartsGroup reports whether a token may be followed by the start of a
// new operand.
func StartsGroup(t Token) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case KindOperator, KindComma, KindParenOpen:
		return true
	}
	return false
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/canonical/sqlformula/meta"
)

// Resolver is the metadata lookup used while tokenizing. Lookups that find
// nothing return nil and no error.
type Resolver interface {
	Function(ctx context.Context, name string) (*meta.Function, error)
	Column(ctx context.Context, entity, column string) (*meta.Column, error)
}

// Tokenizer splits a formula into tokens.
type Tokenizer struct {
	input    string
	grammar  Grammar
	culture  Culture
	resolver Resolver

	pos int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches
	// the end of input.
	char rune
	// prev is the last token returned by Next.
	prev Token
}

// NewTokenizer returns a tokenizer over input. Zero fields of the grammar
// and culture take their default values.
func NewTokenizer(input string, g Grammar, c Culture, r Resolver) *Tokenizer {
	t := &Tokenizer{
		input:    input,
		grammar:  g.orDefault(),
		culture:  c.orDefault(),
		resolver: r,
	}
	t.advanceChar()
	return t
}

// advanceChar moves the tokenizer to the next character of the input.
func (t *Tokenizer) advanceChar() bool {
	if t.nextPos >= len(t.input) {
		t.char = 0
		t.pos = t.nextPos
		return false
	}
	var size int
	t.char, size = utf8.DecodeRuneInString(t.input[t.nextPos:])
	t.pos = t.nextPos
	t.nextPos += size
	return true
}

// peekChar returns the rune following the current one, or 0.
func (t *Tokenizer) peekChar() rune {
	if t.nextPos >= len(t.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(t.input[t.nextPos:])
	return r
}

func (t *Tokenizer) atEnd() bool {
	return t.pos >= len(t.input)
}

func (t *Tokenizer) skipBlanks() {
	for !t.atEnd() && unicode.IsSpace(t.char) {
		t.advanceChar()
	}
}

// matchOperator returns the operator spelled at the current position. Two
// character operators win over their one character prefix.
func (t *Tokenizer) matchOperator() *Operator {
	if t.atEnd() {
		return nil
	}
	if next := t.peekChar(); next != 0 {
		if op := LookupOperator(string([]rune{t.char, next})); op != nil {
			return op
		}
	}
	return LookupOperator(string(t.char))
}

// Next returns the next token or nil when the input is exhausted.
func (t *Tokenizer) Next(ctx context.Context) (Token, error) {
	tok, err := t.next(ctx)
	if err != nil {
		return nil, err
	}
	if tok != nil {
		t.prev = tok
	}
	return tok, nil
}

func (t *Tokenizer) next(ctx context.Context) (Token, error) {
	t.skipBlanks()
	if t.atEnd() {
		return nil, nil
	}
	start := t.pos
	switch t.char {
	case t.grammar.Quote:
		return t.scanQuoted(start), nil
	case t.grammar.ColumnStart:
		return t.scanColumn(ctx, start, "")
	case ',':
		t.advanceChar()
		return NewPunct(KindComma, start), nil
	case '(':
		t.advanceChar()
		return NewPunct(KindParenOpen, start), nil
	case ')':
		t.advanceChar()
		return NewPunct(KindParenClose, start), nil
	}

	negative := t.char == '-' && isDigit(t.peekChar()) && StartsGroup(t.prev)
	if !negative {
		if op := t.matchOperator(); op != nil {
			for range op.Symbol {
				t.advanceChar()
			}
			return NewOperator(op, start), nil
		}
	} else {
		t.advanceChar()
	}
	return t.scanWord(ctx, start)
}

// scanQuoted scans a quoted literal. A doubled quote inside the literal is
// an escaped quote and is kept as is in the token text.
func (t *Tokenizer) scanQuoted(start int) Token {
	q := t.grammar.Quote
	t.advanceChar()
	textStart := t.pos
	for !t.atEnd() {
		if t.char == q {
			if t.peekChar() == q {
				t.advanceChar()
				t.advanceChar()
				continue
			}
			text := t.input[textStart:t.pos]
			t.advanceChar()
			return t.stringLiteral(text, start)
		}
		t.advanceChar()
	}
	// Unterminated literal.
	return NewLiteral(KindUnknown, t.input[start:], start)
}

func (t *Tokenizer) stringLiteral(text string, start int) *Literal {
	l := NewLiteral(KindString, text, start)
	if _, ok := t.culture.ParseDate(text); ok {
		return l.withSecondary(KindDate, false)
	}
	if v, ok := t.culture.ParseBoolean(text); ok {
		return l.withSecondary(KindBoolean, v)
	}
	return l
}

// scanColumn scans [Column] or [Entity].[Column] starting at a column start
// char. When entity is not empty the Entity.[Column] form was found by
// scanWord.
func (t *Tokenizer) scanColumn(ctx context.Context, start int, entity string) (Token, error) {
	var segments []string
	for {
		t.advanceChar()
		segStart := t.pos
		for !t.atEnd() && t.char != t.grammar.ColumnEnd {
			t.advanceChar()
		}
		if t.atEnd() {
			return NewLiteral(KindUnknown, t.input[start:], start), nil
		}
		segments = append(segments, t.input[segStart:t.pos])
		t.advanceChar()
		if t.char == t.grammar.Delimiter && t.peekChar() == t.grammar.ColumnStart {
			t.advanceChar()
			continue
		}
		break
	}
	name := segments[0]
	if entity == "" && len(segments) > 1 {
		entity, name = segments[0], segments[1]
	}
	text := t.input[start:t.pos]
	col, err := t.resolver.Column(ctx, strings.TrimSpace(entity), strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	return NewColumnRef(text, entity, name, col, start), nil
}

// endsWord reports whether the current char terminates a word.
func (t *Tokenizer) endsWord() bool {
	switch t.char {
	case t.grammar.Quote, t.grammar.ColumnStart, ',', '(', ')':
		return true
	}
	return unicode.IsSpace(t.char) || t.matchOperator() != nil
}

// scanWord scans a run of non delimiter chars and classifies it.
func (t *Tokenizer) scanWord(ctx context.Context, start int) (Token, error) {
	for !t.atEnd() {
		if t.char == t.grammar.ColumnStart {
			word := t.input[start:t.pos]
			if len(word) > 1 && strings.HasSuffix(word, string(t.grammar.Delimiter)) {
				return t.scanColumn(ctx, start, strings.TrimSuffix(word, string(t.grammar.Delimiter)))
			}
		}
		if t.endsWord() {
			break
		}
		t.advanceChar()
	}
	word := t.input[start:t.pos]

	// A word followed by an opening parenthesis names a function.
	mark := t.pos
	markChar, markNext := t.char, t.nextPos
	t.skipBlanks()
	if t.char == '(' && !t.atEnd() {
		fn, err := t.resolver.Function(ctx, word)
		if err != nil {
			return nil, err
		}
		return NewCall(word, fn, start), nil
	}
	t.pos, t.char, t.nextPos = mark, markChar, markNext

	return t.classify(word, start), nil
}

// classify returns the literal for a word that is not a function call.
func (t *Tokenizer) classify(word string, start int) Token {
	if _, ok := t.culture.ParseNumber(word); ok {
		return NewLiteral(KindNumber, word, start)
	}
	if _, ok := t.culture.ParseDate(word); ok {
		return NewLiteral(KindDate, word, start)
	}
	if v, ok := t.culture.ParseBoolean(word); ok {
		return NewBoolean(word, v, start)
	}
	if op := LookupOperator(word); op != nil {
		return NewOperator(op, start)
	}
	return NewLiteral(KindUnknown, word, start)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"context"

	"github.com/canonical/sqlformula/internal/diag"
)

// Consolidate pulls the tokens of the call's parenthesised argument list
// from the tokenizer and groups them into arguments. Nested calls are
// consolidated first, one level deeper. Syntax errors are returned as
// *diag.Error.
func (t *Tokenizer) Consolidate(ctx context.Context, call *Call) error {
	return t.consolidate(ctx, call, 0, call.Name)
}

func (t *Tokenizer) consolidate(ctx context.Context, call *Call, level int, hierarchy string) error {
	var pulled []Token
	depth := 0
	for {
		tok, err := t.Next(ctx)
		if err != nil {
			return err
		}
		if tok == nil {
			break
		}
		pulled = append(pulled, tok)
		switch tok := tok.(type) {
		case *Call:
			if err := t.consolidate(ctx, tok, level+1, hierarchy+"->"+tok.Name); err != nil {
				return err
			}
			continue
		case *Punct:
			if tok.Kind() == KindParenOpen {
				depth++
				continue
			}
			if tok.Kind() == KindParenClose {
				depth--
			}
		}
		if tok.Kind() == KindParenClose && depth <= 0 {
			break
		}
	}

	if len(pulled) < 2 || depth != 0 {
		return diag.New(diag.InvalidFunctionSyntax).At(call.Pos()).
			With(diag.KeyFunction, call.Name).
			With(diag.KeyIndex, call.Pos())
	}
	if pulled[0].Kind() != KindParenOpen || pulled[len(pulled)-1].Kind() != KindParenClose {
		return diag.New(diag.MissingOpeningOrClosingParenthesis).At(call.Pos()).
			With(diag.KeyFunction, call.Name).
			With(diag.KeyIndex, call.Pos())
	}

	call.Args = SplitArguments(pulled[1 : len(pulled)-1])
	call.Level = level
	call.Hierarchy = hierarchy
	return nil
}

// SplitArguments splits the tokens between a call's parentheses at the
// commas outside nested parentheses. Empty parentheses have no arguments.
func SplitArguments(tokens []Token) []*Argument {
	if len(tokens) == 0 {
		return nil
	}
	var args []*Argument
	var cur []Token
	depth := 0
	for _, tok := range tokens {
		switch tok.Kind() {
		case KindParenOpen:
			depth++
		case KindParenClose:
			depth--
		case KindComma:
			if depth == 0 {
				args = append(args, NewArgument(cur))
				cur = nil
				continue
			}
		}
		cur = append(cur, tok)
	}
	return append(args, NewArgument(cur))
}

// Tokenize drains the tokenizer and consolidates every top level call.
func (t *Tokenizer) Tokenize(ctx context.Context) ([]Token, error) {
	var tokens []Token
	for {
		tok, err := t.Next(ctx)
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return tokens, nil
		}
		if call, ok := tok.(*Call); ok {
			if err := t.Consolidate(ctx, call); err != nil {
				return nil, err
			}
		}
		tokens = append(tokens, tok)
	}
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlgen

import (
	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/meta"
)

// Rewrite applies the enabled rewrites to a token tree, in order: decimal
// division, division by zero guards and null propagation guards. The input
// is not modified.
func Rewrite(tokens []expr.Token, opts Options) ([]expr.Token, error) {
	var err error
	if opts.DecimalDivision && hasDivision(tokens) {
		if tokens, err = DecimalDivision(tokens); err != nil {
			return nil, errors.Wrap(err, "cannot convert integer division")
		}
	}
	if opts.DivisionByZero {
		if tokens, err = GuardDivision(tokens); err != nil {
			return nil, errors.Wrap(err, "cannot guard division by zero")
		}
	}
	if opts.NullPropagation {
		if tokens, err = GuardNulls(tokens); err != nil {
			return nil, errors.Wrap(err, "cannot guard null propagation")
		}
	}
	return tokens, nil
}

// GuardDivision wraps every denominator that is not a numeric constant in
// NULLIF(denominator, 0).
func GuardDivision(tokens []expr.Token) ([]expr.Token, error) {
	result := make([]expr.Token, 0, len(tokens))
	for i := len(tokens) - 1; i >= 0; i-- {
		tok, err := rewriteArgs(tokens[i], GuardDivision)
		if err != nil {
			return nil, err
		}
		if isOperator(tok, expr.Division) {
			denominator, err := operand(result, 0)
			if err != nil {
				return nil, errors.Wrapf(err, "division at offset %d", tok.Pos())
			}
			if !numericOnly(denominator) {
				guard := expr.NewGuard("NULLIF", clone(denominator), "0")
				result = append([]expr.Token{guard}, result[len(denominator):]...)
			}
		}
		result = append([]expr.Token{tok}, result...)
	}
	return result, nil
}

// GuardNulls wraps both operands of additions and subtractions in
// ISNULL(operand, 0), unless they are numeric constants or a single date
// column.
func GuardNulls(tokens []expr.Token) ([]expr.Token, error) {
	result := make([]expr.Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok, err := rewriteArgs(tokens[i], GuardNulls)
		if err != nil {
			return nil, err
		}
		op, ok := tok.(*expr.OperatorToken)
		if !ok || (op.Op.ID != expr.Addition && op.Op.ID != expr.Subtraction) {
			result = append(result, tok)
			continue
		}

		left, err := operandBefore(result, op.Op)
		if err != nil {
			return nil, errors.Wrapf(err, "operator %q at offset %d", op.Op.Symbol, op.Pos())
		}
		if needsNullGuard(left) {
			guard := expr.NewGuard("ISNULL", clone(left), "0")
			result = append(result[:len(result)-len(left)], guard)
		}
		result = append(result, tok)

		right, err := operandAfter(tokens, i+1, op.Op)
		if err != nil {
			return nil, errors.Wrapf(err, "operator %q at offset %d", op.Op.Symbol, op.Pos())
		}
		if needsNullGuard(right) {
			inner, err := GuardNulls(right)
			if err != nil {
				return nil, err
			}
			result = append(result, expr.NewGuard("ISNULL", inner, "0"))
			i += len(right)
		}
	}
	return result, nil
}

// DecimalDivision turns divisions of two integral operands into decimal
// divisions. A whole number literal operand gets a ".0" suffix, otherwise
// the dividend is multiplied by 1.0.
func DecimalDivision(tokens []expr.Token) ([]expr.Token, error) {
	result := make([]expr.Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok, err := rewriteArgs(tokens[i], DecimalDivision)
		if err != nil {
			return nil, err
		}
		if !isOperator(tok, expr.Division) {
			result = append(result, tok)
			continue
		}

		op := tok.(*expr.OperatorToken).Op
		left, err := operandBefore(result, op)
		if err != nil {
			return nil, errors.Wrapf(err, "division at offset %d", tok.Pos())
		}
		right, err := operand(tokens, i+1)
		if err != nil {
			return nil, errors.Wrapf(err, "division at offset %d", tok.Pos())
		}
		if !integral(left) || !integral(right) {
			result = append(result, tok)
			continue
		}

		switch {
		case len(left) == 1 && isWholeNumber(left[0]):
			result[len(result)-1] = decimal(left[0])
		case len(right) == 1 && isWholeNumber(right[0]):
			result = append(result, tok, decimal(right[0]))
			i++
			continue
		default:
			if len(left) > 1 {
				n := len(result) - len(left)
				body := clone(result[n:])
				result = append(result[:n], expr.NewPunct(expr.KindParenOpen, -1))
				result = append(result, body...)
				result = append(result, expr.NewPunct(expr.KindParenClose, -1))
			}
			result = append(result,
				expr.NewOperator(expr.LookupOperator("*"), -1),
				expr.NewLiteral(expr.KindNumber, "1.0", -1))
		}
		result = append(result, tok)
	}
	return result, nil
}

var errNoOperand = errors.New("missing operand")

// rewriteArgs applies pass to the arguments of a call. Other tokens are
// returned as is.
func rewriteArgs(tok expr.Token, pass func([]expr.Token) ([]expr.Token, error)) (expr.Token, error) {
	call, ok := tok.(*expr.Call)
	if !ok {
		return tok, nil
	}
	args := make([]*expr.Argument, len(call.Args))
	for i, arg := range call.Args {
		tokens, err := pass(arg.Tokens)
		if err != nil {
			return nil, err
		}
		args[i] = arg.WithTokens(tokens)
	}
	return call.WithArgs(args), nil
}

func hasDivision(tokens []expr.Token) bool {
	for _, tok := range tokens {
		if isOperator(tok, expr.Division) {
			return true
		}
		if call, ok := tok.(*expr.Call); ok {
			for _, arg := range call.Args {
				if hasDivision(arg.Tokens) {
					return true
				}
			}
		}
	}
	return false
}

func isOperator(tok expr.Token, id expr.OperatorID) bool {
	op, ok := tok.(*expr.OperatorToken)
	return ok && op.Op.ID == id
}

func depth(tok expr.Token) int {
	switch tok.Kind() {
	case expr.KindParenOpen:
		return 1
	case expr.KindParenClose:
		return -1
	}
	return 0
}

// operand returns the operand starting at index i: a single token, or a
// whole parenthesised group.
func operand(tokens []expr.Token, i int) ([]expr.Token, error) {
	if i >= len(tokens) {
		return nil, errNoOperand
	}
	d := 0
	for j := i; j < len(tokens); j++ {
		d += depth(tokens[j])
		if d == 0 {
			return tokens[i : j+1], nil
		}
	}
	return tokens[i:], nil
}

// stops reports whether tok ends the operand of op.
func stops(tok expr.Token, op *expr.Operator) bool {
	o, ok := tok.(*expr.OperatorToken)
	return ok && o.Op.Precedence() >= op.Precedence()
}

// operandBefore returns the left operand of op, which follows tokens. It
// ends at an unmatched opening parenthesis, or at an operator that binds
// no tighter than op.
func operandBefore(tokens []expr.Token, op *expr.Operator) ([]expr.Token, error) {
	if len(tokens) == 0 {
		return nil, errNoOperand
	}
	d := 0
	j := len(tokens) - 1
	for ; j >= 0; j-- {
		d += depth(tokens[j])
		if d == 1 || (d == 0 && stops(tokens[j], op)) {
			break
		}
	}
	return tokens[j+1:], nil
}

// operandAfter returns the right operand of op, starting at index i.
func operandAfter(tokens []expr.Token, i int, op *expr.Operator) ([]expr.Token, error) {
	if i >= len(tokens) {
		return nil, errNoOperand
	}
	d := 0
	j := i
	for ; j < len(tokens); j++ {
		d += depth(tokens[j])
		if d == -1 || (d == 0 && stops(tokens[j], op)) {
			break
		}
	}
	return tokens[i:j], nil
}

// numericOnly reports whether tokens only hold numbers, operators,
// parentheses and guards.
func numericOnly(tokens []expr.Token) bool {
	for _, tok := range tokens {
		switch tok.Kind() {
		case expr.KindOperator, expr.KindParenOpen, expr.KindParenClose, expr.KindNumber:
			continue
		}
		if call, ok := tok.(*expr.Call); ok && call.Guard {
			continue
		}
		return false
	}
	return true
}

func needsNullGuard(tokens []expr.Token) bool {
	if numericOnly(tokens) {
		return false
	}
	if len(tokens) == 1 {
		if ref, ok := tokens[0].(*expr.ColumnRef); ok && ref.Column != nil && ref.Column.IsDateTime() {
			return false
		}
	}
	return true
}

// integral reports whether the numbers, columns and calls of tokens all
// have integer values.
func integral(tokens []expr.Token) bool {
	for _, tok := range tokens {
		switch tok := tok.(type) {
		case *expr.Call:
			if tok.Function == nil || tok.Function.Result.IsContextual() || tok.Function.Result.Data != meta.Number {
				return false
			}
		case *expr.ColumnRef:
			if tok.Column == nil || !tok.Column.IsInteger() {
				return false
			}
		case *expr.Literal:
			if tok.Kind() == expr.KindNumber && !tok.IsWholeNumber() {
				return false
			}
		}
	}
	return true
}

func isWholeNumber(tok expr.Token) bool {
	l, ok := tok.(*expr.Literal)
	return ok && l.IsWholeNumber()
}

func decimal(tok expr.Token) expr.Token {
	l := tok.(*expr.Literal)
	return l.WithText(l.Text() + ".0")
}

func clone(tokens []expr.Token) []expr.Token {
	return append([]expr.Token(nil), tokens...)
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package validate checks a consolidated token tree against the metadata
// catalog.
package validate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/internal/diag"
	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/internal/xmlgen"
	"github.com/canonical/sqlformula/meta"
)

// Lookup is the metadata used during validation. Lookups that find
// nothing return nil and no error.
type Lookup interface {
	Function(ctx context.Context, name string) (*meta.Function, error)
	CalculatedField(ctx context.Context, id int) (*meta.CalculatedField, error)
	ReferencesCalculatedField(ctx context.Context, id int) (bool, error)
}

// Options configures a Validator.
type Options struct {
	Culture expr.Culture
	// UserID is the user compiling the formula. Private calculated fields
	// of this user may be referenced.
	UserID int
	// MaxNesting is the nesting budget of functions that allow less.
	MaxNesting int
}

// Validator checks tokens. Diagnostics are accumulated per call, a lookup
// failure aborts the validation.
type Validator struct {
	lookup Lookup
	opts   Options
}

// New returns a validator using lookup.
func New(lookup Lookup, opts Options) *Validator {
	return &Validator{lookup: lookup, opts: opts}
}

// Token validates a top level token.
func (v *Validator) Token(ctx context.Context, tok expr.Token) ([]*diag.Error, error) {
	return v.token(ctx, tok, nil)
}

func (v *Validator) token(ctx context.Context, tok expr.Token, domain Domain) ([]*diag.Error, error) {
	switch tok := tok.(type) {
	case *expr.Call:
		return v.call(ctx, tok)
	case *expr.ColumnRef:
		return v.column(ctx, tok)
	case *expr.Literal:
		if tok.Kind() != expr.KindUnknown || (domain != nil && domain.Contains(tok, meta.Undefined)) {
			return nil, nil
		}
		return []*diag.Error{unexpected(tok)}, nil
	case *expr.Punct:
		if tok.Kind() == expr.KindComma {
			return []*diag.Error{unexpected(tok)}, nil
		}
	}
	return nil, nil
}

func unexpected(tok expr.Token) *diag.Error {
	return diag.New(diag.UnexpectedToken).At(tok.Pos()).
		With(diag.KeyToken, tok.Text()).
		With(diag.KeyIndex, tok.Pos())
}

func (v *Validator) column(ctx context.Context, ref *expr.ColumnRef) ([]*diag.Error, error) {
	col := ref.Column
	if col == nil || col.ColumnID == 0 {
		return []*diag.Error{diag.New(diag.UnknownColumnOrCalculatedField).At(ref.Pos()).
			With(diag.KeyValue, ref.Text()).
			With(diag.KeyIndex, ref.Pos())}, nil
	}

	var errs []*diag.Error
	fail := func(code diag.Code, key string) {
		errs = append(errs, diag.New(code).At(ref.Pos()).
			With(key, ref.Text()).
			With(diag.KeyIndex, ref.Pos()))
	}
	if !col.IsActive {
		fail(diag.InActiveColumn, diag.KeyColumn)
	}
	if !col.IsSelectable {
		fail(diag.UnSelectableColumn, diag.KeyColumn)
	}
	if !col.AllowedInCalculatedFields() {
		fail(diag.ColumnNotSupportedInCalculatedFields, diag.KeyColumn)
	}
	if !col.IsCalculatedField() {
		return errs, nil
	}

	nested, err := v.lookup.ReferencesCalculatedField(ctx, col.CalculatedFieldID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot check references of calculated field %d", col.CalculatedFieldID)
	}
	if nested {
		fail(diag.InvalidCalculatedFieldUsage, diag.KeyCalculatedField)
	}
	if !col.CalculatedFieldActive {
		fail(diag.CantUseDeletedCalculatedField, diag.KeyCalculatedField)
	}
	if !col.CalculatedFieldPublic && col.CalculatedFieldOwner != v.opts.UserID {
		fail(diag.PrivateCalculatedField, diag.KeyCalculatedField)
	}
	return errs, nil
}

func (v *Validator) call(ctx context.Context, call *expr.Call) ([]*diag.Error, error) {
	fn := call.Function
	if fn == nil {
		return []*diag.Error{diag.New(diag.UnknownFunction).At(call.Pos()).
			With(diag.KeyFunction, call.Name).
			With(diag.KeyIndex, call.Pos())}, nil
	}

	var errs []*diag.Error
	if e := v.nesting(fn.Name, fn, call.Level, call.Hierarchy); e != nil {
		errs = append(errs, e.At(call.Pos()))
	}

	params := AllParameters(fn, len(call.Args))
	errs = append(errs, argumentCount(call, fn, params)...)

	expected := ExpectedArgumentType(fn)
	for i, arg := range call.Args {
		p := parameterAt(params, i)
		if p == nil {
			break
		}
		argErrs, err := v.argument(ctx, call, arg, p, expected)
		if err != nil {
			return nil, err
		}
		errs = append(errs, argErrs...)
	}
	return errs, nil
}

// nesting checks a call at level against the budget of fn. fn may be nil,
// in which case only the default budget applies.
func (v *Validator) nesting(name string, fn *meta.Function, level int, hierarchy string) *diag.Error {
	max := v.opts.MaxNesting
	if fn != nil && fn.MaxNesting > max {
		max = fn.MaxNesting
	}
	if level <= max {
		return nil
	}
	code := diag.MaxFunctionNestingExceeded
	if max == 0 {
		code = diag.FunctionCantBeNested
	}
	return diag.New(code).
		With(diag.KeyFunction, name).
		With(diag.KeyMaxNesting, max).
		With(diag.KeyLevel, level).
		With(diag.KeyNestingHierarchy, "("+hierarchy+")")
}

func argumentCount(call *expr.Call, fn *meta.Function, params []*meta.Parameter) []*diag.Error {
	n := len(call.Args)
	required := 0
	for _, p := range params {
		if !p.Optional {
			required++
		}
	}
	if fn.VariableArgs && n < required {
		return []*diag.Error{diag.New(diag.MinimumNumberOfArgs).At(call.Pos()).
			With(diag.KeyFunction, fn.Name).
			With(diag.KeyMinParams, required)}
	}

	var errs []*diag.Error
	if n < len(params) {
		for _, p := range params[n:] {
			if p.Optional {
				continue
			}
			errs = append(errs, diag.New(diag.MissingValueForRequiredParameter).At(call.Pos()).
				With(diag.KeyFunction, fn.Name).
				With(diag.KeyParamName, p.Name))
		}
	}
	if n > len(params) && !fn.VariableArgs {
		errs = append(errs, diag.New(diag.TooManyArguments).At(call.Pos()).
			With(diag.KeyFunction, fn.Name).
			With(diag.KeyExpectedParamCount, len(params)).
			With(diag.KeyActualParamCount, n))
	}
	return errs
}

func (v *Validator) argument(ctx context.Context, call *expr.Call, arg *expr.Argument, p *meta.Parameter, expected *expr.ExprType) ([]*diag.Error, error) {
	fn := call.Function
	var errs []*diag.Error

	domain := ParseDomain(p, v.opts.Culture)
	if domain != nil {
		var first expr.Token
		var value string
		if len(arg.Tokens) > 0 {
			first = arg.Tokens[0]
			value = first.Text()
		}
		if !domain.Contains(first, p.Value.Data) {
			e := diag.New(diag.ValueIsOutsideRangeOfValidValuesForParameter).
				With(diag.KeyFunction, fn.Name).
				With(diag.KeyParameter, p.Name).
				With(diag.KeyValue, value).
				With(diag.KeyValues, domain.String())
			if first != nil {
				e.At(first.Pos())
			}
			errs = append(errs, e)
		}
	}

	for _, tok := range arg.Tokens {
		tokErrs, err := v.token(ctx, tok, domain)
		if err != nil {
			return nil, err
		}
		errs = append(errs, tokErrs...)

		nestErrs, err := v.fieldNesting(ctx, tok, call.Level+1, call.Hierarchy)
		if err != nil {
			return nil, err
		}
		errs = append(errs, nestErrs...)
	}

	exp := expected
	if exp == nil {
		exp = expr.ResolveType(p.Value, call)
	}
	actual, ok := expr.IsExpected(arg.Type(), exp)
	if !ok || (!arg.IsUnknown() && actual == meta.Undefined) {
		code := diag.UnexpectedToken
		if !ok {
			code = diag.InvalidArgumentOrExpression
		}
		errs = append(errs, v.argumentError(code, call, arg, p, exp.String(), actual))
	}

	// Aggregates take columns and functions, not filter like comparisons.
	if fn.IsAggregate() && actual == meta.Boolean && len(arg.Tokens) > 1 {
		errs = append(errs, v.argumentError(diag.InvalidArgumentOrExpression, call, arg, p, "column or function", actual))
	}
	return errs, nil
}

func (v *Validator) argumentError(code diag.Code, call *expr.Call, arg *expr.Argument, p *meta.Parameter, expected string, actual meta.DataType) *diag.Error {
	e := diag.New(code).
		With(diag.KeyFunction, call.Function.Name).
		With(diag.KeyParameter, p.Name).
		With(diag.KeyExpectedType, expected).
		With(diag.KeyActualType, actual.String()).
		With(diag.KeyToken, arg.String())
	if len(arg.Tokens) > 0 {
		e.At(arg.Tokens[0].Pos())
	}
	return e
}

// fieldNesting checks the calls of a referenced calculated field against
// their budgets, as if the field's formula was written at level.
func (v *Validator) fieldNesting(ctx context.Context, tok expr.Token, level int, hierarchy string) ([]*diag.Error, error) {
	ref, ok := tok.(*expr.ColumnRef)
	if !ok || ref.Column == nil || !ref.Column.IsCalculatedField() {
		return nil, nil
	}
	id := ref.Column.CalculatedFieldID
	field, err := v.lookup.CalculatedField(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get calculated field %d", id)
	}
	if field == nil {
		return nil, nil
	}
	facts := field.Nesting
	if len(facts) == 0 && field.XML != "" {
		facts, err = xmlgen.ParseNesting(field.XML)
		if err != nil {
			err = errors.Wrapf(err, "cannot validate nesting levels of calculated field %d", id)
			return []*diag.Error{diag.Wrap(err).At(ref.Pos())}, nil
		}
	}

	var errs []*diag.Error
	for _, fact := range facts {
		fn, err := v.lookup.Function(ctx, fact.Function)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot get function %q", fact.Function)
		}
		name := fact.Function
		if fn != nil {
			name = fn.Name
		}
		if e := v.nesting(name, fn, level+fact.Level, hierarchy+"->"+fact.Path); e != nil {
			errs = append(errs, e.At(ref.Pos()))
		}
	}
	return errs, nil
}

// AllParameters returns the effective parameter list of fn for a call with
// n arguments. The optional parameters of a variadic function are dropped
// when there are too few arguments, or repeated when there are more.
func AllParameters(fn *meta.Function, n int) []*meta.Parameter {
	params := fn.Parameters
	if !fn.VariableArgs || !fn.HasOptionalParameters() ||
		params[len(params)-1].Optional || len(params) == n {
		return params
	}

	if n < len(params) {
		var required []*meta.Parameter
		for _, p := range params {
			if !p.Optional {
				required = append(required, p)
			}
		}
		return required
	}

	var optionals []*meta.Parameter
	last := -1
	for i, p := range params {
		if p.Optional {
			optionals = append(optionals, p)
			last = i
		}
	}
	all := append([]*meta.Parameter(nil), params...)
	index := last
	for remaining := n - len(params); ; {
		for _, p := range optionals {
			index++
			all = append(all[:index], append([]*meta.Parameter{p.CloneAt(index)}, all[index:]...)...)
		}
		remaining -= len(optionals)
		if remaining <= 0 {
			break
		}
	}
	return all
}

// parameterAt returns the parameter of argument i. Past the end of the
// list a parameter is cloned: the first one when they all share a type,
// otherwise the one matching the position of i in a value/result pair.
func parameterAt(params []*meta.Parameter, i int) *meta.Parameter {
	if i < len(params) {
		return params[i]
	}
	if len(params) == 0 {
		return nil
	}
	p := params[0]
	if !sameType(params) {
		j := 1
		if i%2 == 0 {
			j = 2
		}
		if j < len(params) {
			p = params[j]
		}
	}
	return p.CloneAt(i)
}

func sameType(params []*meta.Parameter) bool {
	for _, p := range params[1:] {
		if p.Value != params[0].Value {
			return false
		}
	}
	return true
}

// ExpectedArgumentType returns the type every argument of fn must have,
// or nil. Only variadic functions whose parameters share one type other
// than Any have one.
func ExpectedArgumentType(fn *meta.Function) *expr.ExprType {
	if !fn.VariableArgs || len(fn.Parameters) == 0 {
		return nil
	}
	first := fn.Parameters[0].Value
	if first.IsContextual() || first.Data == meta.Any || !sameType(fn.Parameters) {
		return nil
	}
	return &expr.ExprType{Primary: first.Data}
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlformula

import (
	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/internal/diag"
)

// ParseError is a compile diagnostic: a code, its fixed message, the
// data identifying the offending part of the formula and its offset.
type ParseError = diag.Error

// Code classifies a ParseError.
type Code = diag.Code

const (
	OtherError                                   = diag.OtherError
	InvalidExpression                            = diag.InvalidExpression
	InvalidFunctionSyntax                        = diag.InvalidFunctionSyntax
	MissingOpeningOrClosingParenthesis           = diag.MissingOpeningOrClosingParenthesis
	UnexpectedToken                              = diag.UnexpectedToken
	UnknownColumnOrCalculatedField               = diag.UnknownColumnOrCalculatedField
	UnknownFunction                              = diag.UnknownFunction
	MissingValueForRequiredParameter             = diag.MissingValueForRequiredParameter
	TooManyArguments                             = diag.TooManyArguments
	ValueIsOutsideRangeOfValidValuesForParameter = diag.ValueIsOutsideRangeOfValidValuesForParameter
	InvalidArgumentOrExpression                  = diag.InvalidArgumentOrExpression
	MaxFunctionNestingExceeded                   = diag.MaxFunctionNestingExceeded
	InvalidCalculatedFieldUsage                  = diag.InvalidCalculatedFieldUsage
	MinimumNumberOfArgs                          = diag.MinimumNumberOfArgs
	ExpectedOutputTypeNotFulfilled               = diag.ExpectedOutputTypeNotFulfilled
	InActiveColumn                               = diag.InActiveColumn
	UnSelectableColumn                           = diag.UnSelectableColumn
	CantUseDeletedCalculatedField                = diag.CantUseDeletedCalculatedField
	PrivateCalculatedField                       = diag.PrivateCalculatedField
	FunctionCantBeNested                         = diag.FunctionCantBeNested
	ColumnNotSupportedInCalculatedFields         = diag.ColumnNotSupportedInCalculatedFields
)

var (
	// ErrEmptyFormula is returned by Compile for an empty or blank formula.
	ErrEmptyFormula = errors.New("formula text to parse isn't provided")
	// ErrNoProvider is returned by Compile when the compiler has no
	// metadata provider.
	ErrNoProvider = errors.New("no metadata provider")
)

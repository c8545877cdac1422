// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package diag defines the diagnostics reported by a formula compilation.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Code classifies a compile error.
type Code int

const (
	OtherError Code = iota
	InvalidExpression
	InvalidFunctionSyntax
	MissingOpeningOrClosingParenthesis
	UnexpectedToken
	UnknownColumnOrCalculatedField
	UnknownFunction
	MissingValueForRequiredParameter
	TooManyArguments
	ValueIsOutsideRangeOfValidValuesForParameter
	InvalidArgumentOrExpression
	MaxFunctionNestingExceeded
	InvalidCalculatedFieldUsage
	MinimumNumberOfArgs
	ExpectedOutputTypeNotFulfilled
	InActiveColumn
	UnSelectableColumn
	CantUseDeletedCalculatedField
	PrivateCalculatedField
	FunctionCantBeNested
	ColumnNotSupportedInCalculatedFields
)

var codeNames = []string{
	"OtherError",
	"InvalidExpression",
	"InvalidFunctionSyntax",
	"MissingOpeningOrClosingParenthesis",
	"UnexpectedToken",
	"UnknownColumnOrCalculatedField",
	"UnknownFunction",
	"MissingValueForRequiredParameter",
	"TooManyArguments",
	"ValueIsOutsideRangeOfValidValuesForParameter",
	"InvalidArgumentOrExpression",
	"MaxFunctionNestingExceeded",
	"InvalidCalculatedFieldUsage",
	"MinimumNumberOfArgs",
	"ExpectedOutputTypeNotFulfilled",
	"InActiveColumn",
	"UnSelectableColumn",
	"CantUseDeletedCalculatedField",
	"PrivateCalculatedField",
	"FunctionCantBeNested",
	"ColumnNotSupportedInCalculatedFields",
}

func (c Code) String() string {
	if int(c) >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

var messages = map[Code]string{
	OtherError:                                   "Error occurred while parsing!",
	InvalidExpression:                            "Invalid formula!",
	InvalidFunctionSyntax:                        "Invalid function syntax",
	MissingOpeningOrClosingParenthesis:           "Missing opening or closing parenthesis",
	UnexpectedToken:                              "Unexpected token",
	UnknownColumnOrCalculatedField:               "Unknown column or calculated field",
	UnknownFunction:                              "Unknown function",
	MissingValueForRequiredParameter:             "Missing value for required parameter",
	TooManyArguments:                             "Too many arguments",
	ValueIsOutsideRangeOfValidValuesForParameter: "Value is outside the range of valid values for parameter",
	InvalidArgumentOrExpression:                  "Invalid argument or expression",
	MaxFunctionNestingExceeded:                   "Maximum Function Nesting has exceeded",
	InvalidCalculatedFieldUsage:                  "A calculated field that references another calculated field can't be used",
	MinimumNumberOfArgs:                          "Minimum number of arguments not supplied",
	ExpectedOutputTypeNotFulfilled:               "Formula doesn't produce the expected output type",
	InActiveColumn:                               "Column is inactive",
	UnSelectableColumn:                           "Column is not selectable",
	CantUseDeletedCalculatedField:                "Deleted calculated field can't be used",
	PrivateCalculatedField:                       "Private calculated field can't be used",
	FunctionCantBeNested:                         "Function doesn't support nesting under another function",
	ColumnNotSupportedInCalculatedFields:         "Column is not supported in calculated fields",
}

// Message returns the fixed message of a code.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[OtherError]
}

// Data keys used by the compiler.
const (
	KeyFunction           = "function"
	KeyIndex              = "index"
	KeyColumn             = "column"
	KeyCalculatedField    = "calculatedField"
	KeyValue              = "value"
	KeyValues             = "values"
	KeyMinParams          = "minParams"
	KeyParamName          = "paramName"
	KeyExpectedParamCount = "expectedParamCount"
	KeyActualParamCount   = "actualParamCount"
	KeyParameter          = "parameter"
	KeyExpectedType       = "expectedType"
	KeyActualType         = "actualType"
	KeyToken              = "token"
	KeyMaxNesting         = "maxNesting"
	KeyLevel              = "level"
	KeyNestingHierarchy   = "nestingHierarchy"
	KeySuggestedType      = "suggestedOutputType"
)

// Error is a compile diagnostic. Pos is the byte offset of the offending
// token in the formula, or -1.
type Error struct {
	Code    Code
	Message string
	Data    map[string]any
	Pos     int
	// Err is the underlying cause of an OtherError, if any.
	Err error
}

// New returns an error with the fixed message of the code.
func New(code Code) *Error {
	return &Error{Code: code, Message: code.Message(), Pos: -1}
}

// At sets the position of the error.
func (e *Error) At(pos int) *Error {
	e.Pos = pos
	return e
}

// With adds a data entry to the error.
func (e *Error) With(key string, value any) *Error {
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	e.Data[key] = value
	return e
}

// Wrap returns an OtherError caused by err.
func Wrap(err error) *Error {
	e := New(OtherError)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Data[k])
		}
		b.WriteString(")")
	}
	if e.Pos >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Pos)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}

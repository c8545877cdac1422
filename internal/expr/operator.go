// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

// OperatorKind classifies operators for type evaluation and precedence.
type OperatorKind int

const (
	Arithmetic OperatorKind = iota + 1
	Relational
	Logical
)

func (k OperatorKind) String() string {
	switch k {
	case Arithmetic:
		return "Arithmetic"
	case Relational:
		return "Relational"
	case Logical:
		return "Logical"
	}
	return "OperatorKind(?)"
}

// OperatorID identifies an operator of the table.
type OperatorID int

const (
	Addition OperatorID = iota + 1
	Subtraction
	Multiplication
	Division
	Equals
	Equals2
	NotEqual
	NotEqual2
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	And
	Or
	Concat
)

// Operator is an entry of the operator table.
type Operator struct {
	ID     OperatorID
	Name   string
	Symbol string
	SQL    string
	Kind   OperatorKind
}

// Precedence returns the T-SQL precedence of the operator. Lower binds
// tighter.
func (op *Operator) Precedence() int {
	switch op.ID {
	case Multiplication, Division:
		return 2
	case Addition, Subtraction, Concat:
		return 3
	case And:
		return 6
	case Or:
		return 7
	}
	return 4
}

func (op *Operator) String() string {
	return op.Symbol
}

var operators = []*Operator{
	{Addition, "Addition", "+", "+", Arithmetic},
	{Subtraction, "Subtraction", "-", "-", Arithmetic},
	{Multiplication, "Multiplication", "*", "*", Arithmetic},
	{Division, "Division", "/", "/", Arithmetic},
	{Equals, "Equals", "=", "=", Relational},
	{Equals2, "Equals", "==", "=", Relational},
	{NotEqual, "NotEqual", "<>", "<>", Relational},
	{NotEqual2, "NotEqual", "!=", "<>", Relational},
	{LessThan, "LessThan", "<", "<", Relational},
	{LessThanOrEqual, "LessThanOrEqual", "<=", "<=", Relational},
	{GreaterThan, "GreaterThan", ">", ">", Relational},
	{GreaterThanOrEqual, "GreaterThanOrEqual", ">=", ">=", Relational},
	{And, "And", "&&", "AND", Logical},
	{Or, "Or", "||", "OR", Logical},
	{Concat, "Concat", "&", "+", Arithmetic},
}

var operatorsBySymbol = func() map[string]*Operator {
	m := make(map[string]*Operator, len(operators))
	for _, op := range operators {
		m[op.Symbol] = op
	}
	return m
}()

// LookupOperator returns the operator with the given symbol or nil.
func LookupOperator(symbol string) *Operator {
	return operatorsBySymbol[symbol]
}

// Operators returns the operator table.
func Operators() []*Operator {
	ops := make([]*Operator, len(operators))
	copy(ops, operators)
	return ops
}

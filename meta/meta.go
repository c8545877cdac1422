// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package meta

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Category groups functions in the catalog.
type Category string

const (
	Scalar    Category = "Scalar"
	Logical   Category = "Logical"
	Aggregate Category = "Aggregate"
)

// Function describes a formula function and how it translates to SQL.
type Function struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	Category Category `yaml:"category,omitempty"`
	Result   Type     `yaml:"result"`
	// SQL is the translation template. Positional placeholders {0}, {1}
	// are replaced by the rendered arguments. A repeating group is written
	// between square brackets using {i}, {i:N}, {i+K} and {n}. An empty
	// template renders as a call to Name.
	SQL          string `yaml:"sql,omitempty"`
	VariableArgs bool   `yaml:"variableArgs,omitempty"`
	MaxNesting   int    `yaml:"maxNesting,omitempty"`
	// Aggregation overrides the aggregation kind derived from the name.
	Aggregation AggregationKind `yaml:"aggregation,omitempty"`
	Parameters  []*Parameter    `yaml:"parameters,omitempty"`
}

// IsAggregate reports whether the function belongs to the Aggregate
// category.
func (f *Function) IsAggregate() bool {
	return strings.EqualFold(string(f.Category), string(Aggregate))
}

// AggregationKind returns the aggregation performed by the function.
func (f *Function) AggregationKind() AggregationKind {
	if f.Aggregation != NoAggregation {
		return f.Aggregation
	}
	return aggregateFunctionKinds[strings.ToUpper(f.Name)]
}

// HasOptionalParameters reports whether any parameter is optional.
func (f *Function) HasOptionalParameters() bool {
	for _, p := range f.Parameters {
		if p.Optional {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the function.
func (f *Function) Clone() *Function {
	c := *f
	c.Parameters = make([]*Parameter, len(f.Parameters))
	for i, p := range f.Parameters {
		pc := *p
		c.Parameters[i] = &pc
	}
	return &c
}

// Parameter describes one function parameter.
type Parameter struct {
	Index    int    `yaml:"index"`
	Name     string `yaml:"name"`
	Value    Type   `yaml:"type"`
	Optional bool   `yaml:"optional,omitempty"`
	// KnownValues is either a comma separated list of legal values, or a
	// single range such as "1-12".
	KnownValues string `yaml:"knownValues,omitempty"`
}

var digits = regexp.MustCompile(`\d+`)

// CloneAt returns a required copy of the parameter standing at the given
// argument index. Digits in the name are replaced by the index.
func (p *Parameter) CloneAt(index int) *Parameter {
	return &Parameter{
		Index: index,
		Name:  digits.ReplaceAllString(p.Name, strconv.Itoa(index)),
		Value: p.Value,
	}
}

// StorageType is the database type of a report column.
type StorageType string

const (
	StorageNone            StorageType = "None"
	StorageBoolean         StorageType = "Boolean"
	StorageBooleanBit      StorageType = "BooleanBit"
	StorageBooleanYesNo    StorageType = "BooleanYesNo"
	StorageInteger         StorageType = "Integer"
	StorageCurrency        StorageType = "Currency"
	StorageDecimal         StorageType = "Decimal"
	StorageString          StorageType = "String"
	StorageDate            StorageType = "Date"
	StorageDateTime        StorageType = "DateTime"
	StorageTime            StorageType = "Time"
	StorageGuid            StorageType = "Guid"
	StorageCalculatedField StorageType = "CalculatedField"
)

// DisplayType is how a report column is presented.
type DisplayType string

const (
	DisplayNone                   DisplayType = "None"
	DisplayString                 DisplayType = "String"
	DisplayBooleanBit             DisplayType = "BooleanBit"
	DisplayBooleanYesNo           DisplayType = "BooleanYesNo"
	DisplayBooleanTrueFalse       DisplayType = "BooleanTrueFalse"
	DisplayInteger                DisplayType = "Integer"
	DisplayCurrency               DisplayType = "Currency"
	DisplayDecimal                DisplayType = "Decimal"
	DisplayCompensationPercentage DisplayType = "CompensationPercentage"
	DisplayAnnualEquivalents      DisplayType = "AnnualEquivalents"
	DisplayEmployeeWageType       DisplayType = "EmployeeWageType"
	DisplayNonMonetary            DisplayType = "NonMonetary"
	DisplayDateTime               DisplayType = "DateTime"
	DisplayTime                   DisplayType = "Time"
	DisplayDate                   DisplayType = "Date"
	DisplayAbsoluteDateTime       DisplayType = "AbsoluteDateTime"
	DisplayAbsoluteDate           DisplayType = "AbsoluteDate"
	DisplayLookupSet              DisplayType = "LookupSet"
	DisplayCSVLookup              DisplayType = "CSVLookup"
	DisplaySMPGrid                DisplayType = "SMPGrid"
	DisplayStripHTML              DisplayType = "StripHtml"
)

// Column is a report column as resolved by the metadata provider. When the
// column stands for another calculated field, CalculatedFieldID is set and
// the CalculatedField* fields describe it.
type Column struct {
	EntityName   string      `yaml:"entity,omitempty"`
	EntityID     int         `yaml:"entityId"`
	Name         string      `yaml:"name"`
	Title        string      `yaml:"title,omitempty"`
	ColumnID     int         `yaml:"columnId"`
	Storage      StorageType `yaml:"storage"`
	Display      DisplayType `yaml:"display,omitempty"`
	IsActive     bool        `yaml:"active"`
	IsSelectable bool        `yaml:"selectable"`

	CalculatedFieldID     int      `yaml:"calculatedFieldId,omitempty"`
	CalculatedFieldType   DataType `yaml:"calculatedFieldType,omitempty"`
	CalculatedFieldActive bool     `yaml:"calculatedFieldActive,omitempty"`
	CalculatedFieldPublic bool     `yaml:"calculatedFieldPublic,omitempty"`
	CalculatedFieldOwner  int      `yaml:"calculatedFieldOwner,omitempty"`
}

// IsCalculatedField reports whether the column stands for a calculated
// field.
func (c *Column) IsCalculatedField() bool {
	return c.Storage == StorageCalculatedField && c.CalculatedFieldID > 0
}

// IsBoolean reports whether the column stores a bit or yes/no flag.
func (c *Column) IsBoolean() bool {
	return c.Storage == StorageBooleanBit || c.Storage == StorageBooleanYesNo
}

// IsInteger reports whether the column stores integers.
func (c *Column) IsInteger() bool {
	return c.Storage == StorageInteger
}

// IsDateTime reports whether the column stores a date or a date and time.
func (c *Column) IsDateTime() bool {
	return c.Storage == StorageDate || c.Storage == StorageDateTime
}

// AllowedInCalculatedFields reports whether the display type of the column
// may be used in a formula.
func (c *Column) AllowedInCalculatedFields() bool {
	return c.Display != DisplayLookupSet && c.Display != DisplayCSVLookup
}

// GenericType returns the formula type of the column values.
func (c *Column) GenericType() DataType {
	if c.CalculatedFieldType != Undefined {
		return c.CalculatedFieldType
	}
	switch c.Display {
	case DisplayString:
		if c.Storage == StorageDecimal {
			return Number
		}
		return String
	case DisplayBooleanBit, DisplayBooleanYesNo, DisplayBooleanTrueFalse:
		return Boolean
	case DisplayInteger, DisplayCurrency, DisplayDecimal, DisplayCompensationPercentage,
		DisplayAnnualEquivalents, DisplayEmployeeWageType, DisplayNonMonetary:
		return Number
	case DisplayDateTime, DisplayTime:
		return Datetime
	case DisplayDate:
		return Date
	case DisplayAbsoluteDateTime:
		return AbsoluteDatetime
	case DisplayAbsoluteDate:
		return AbsoluteDate
	}
	return String
}

func (c *Column) String() string {
	return fmt.Sprintf("[%d:%d]", c.EntityID, c.ColumnID)
}

// NestingFact records that a function call appears at a nesting level.
// Path holds the names of the enclosing calls and the call itself, joined
// by "->".
type NestingFact struct {
	Function string `yaml:"function"`
	Level    int    `yaml:"level"`
	Path     string `yaml:"path"`
}

// CalculatedField is a stored, already compiled formula.
type CalculatedField struct {
	ID          int             `yaml:"id"`
	Name        string          `yaml:"name"`
	IsActive    bool            `yaml:"active"`
	IsAggregate bool            `yaml:"aggregate,omitempty"`
	Aggregation AggregationKind `yaml:"aggregation,omitempty"`
	OutputType  DataType        `yaml:"outputType,omitempty"`
	XML         string          `yaml:"xml,omitempty"`
	// Nesting is the nesting facts recorded when the field was compiled.
	// When empty they are recovered from XML.
	Nesting []NestingFact `yaml:"nesting,omitempty"`
	// References lists the ids of the calculated fields this one uses.
	References []int `yaml:"references,omitempty"`
}

// Provider is the metadata collaborator of the compiler. Lookups that find
// nothing return a nil value and a nil error.
type Provider interface {
	// Functions returns the whole function catalog.
	Functions(ctx context.Context) ([]*Function, error)

	// ColumnByName resolves a column by entity and column name or title.
	// An empty entity matches any entity.
	ColumnByName(ctx context.Context, entity, column string) (*Column, error)

	// ColumnByID resolves a column by its ids. An entity id of 0 matches
	// any entity.
	ColumnByID(ctx context.Context, entityID, columnID int) (*Column, error)

	// CalculatedField returns the calculated field with the given id.
	CalculatedField(ctx context.Context, id int) (*CalculatedField, error)

	// ReferencesCalculatedField reports whether the calculated field with
	// the given id itself references another calculated field.
	ReferencesCalculatedField(ctx context.Context, id int) (bool, error)
}

// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package meta

import (
	"fmt"
	"strings"
)

// DataType is the generic type of a formula value.
type DataType int

const (
	// Undefined is the zero value and means "no type".
	Undefined DataType = iota
	Any
	Boolean
	Datetime
	Number
	String
	Guid
	// Refined datetime variants. They generify to Datetime.
	AbsoluteDatetime
	AbsoluteDate
	Date
)

var dataTypeNames = map[DataType]string{
	Undefined:        "Undefined",
	Any:              "Any",
	Boolean:          "Boolean",
	Datetime:         "Datetime",
	Number:           "Number",
	String:           "String",
	Guid:             "Guid",
	AbsoluteDatetime: "AbsoluteDatetime",
	AbsoluteDate:     "AbsoluteDate",
	Date:             "Date",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType returns the data type with the given name, ignoring case.
func ParseDataType(s string) (DataType, error) {
	if s == "" {
		return Undefined, nil
	}
	for t, name := range dataTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return Undefined, fmt.Errorf("unknown data type %q", s)
}

// Generic maps the refined datetime variants to Datetime.
func (t DataType) Generic() DataType {
	switch t {
	case AbsoluteDatetime, AbsoluteDate, Date:
		return Datetime
	}
	return t
}

// Concrete reports whether t names an actual type, i.e. it is neither
// Undefined nor Any.
func (t DataType) Concrete() bool {
	return t != Undefined && t != Any
}

// MarshalYAML encodes the type by name.
func (t DataType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalText decodes a type name.
func (t *DataType) UnmarshalText(b []byte) error {
	v, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Type is the possibly contextual type of a parameter or a function result.
// Either it is a fixed DataType, or it refers to the type of the Nth
// argument (1-based) of the enclosing call.
type Type struct {
	Data DataType
	Arg  int
}

// Fixed returns a non-contextual Type.
func Fixed(t DataType) Type {
	return Type{Data: t}
}

// SameAsArgument returns a Type that resolves to the type of argument n
// (1-based) of the enclosing call.
func SameAsArgument(n int) Type {
	return Type{Arg: n}
}

// IsContextual reports whether the type depends on a call argument.
func (t Type) IsContextual() bool {
	return t.Arg > 0
}

func (t Type) String() string {
	if t.IsContextual() {
		return fmt.Sprintf("Arg%d", t.Arg)
	}
	return t.Data.String()
}

// ParseType parses a data type name or one of Arg1, Arg2, ...
func ParseType(s string) (Type, error) {
	if len(s) > 3 && strings.EqualFold(s[:3], "arg") {
		var n int
		if _, err := fmt.Sscanf(s[3:], "%d", &n); err == nil && n > 0 {
			return SameAsArgument(n), nil
		}
	}
	d, err := ParseDataType(s)
	if err != nil {
		return Type{}, err
	}
	return Fixed(d), nil
}

// MarshalYAML encodes the type by name.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AggregationKind is the aggregation performed by an aggregate expression.
type AggregationKind int

const (
	NoAggregation AggregationKind = iota
	Sum
	Avg
	Count
	CountUnique
	Min
	Max
)

var aggregationNames = []string{"None", "Sum", "Avg", "Count", "CountUnique", "Min", "Max"}

func (k AggregationKind) String() string {
	if int(k) < len(aggregationNames) {
		return aggregationNames[k]
	}
	return fmt.Sprintf("AggregationKind(%d)", int(k))
}

// ParseAggregationKind returns the kind with the given name, ignoring case.
func ParseAggregationKind(s string) (AggregationKind, error) {
	if s == "" {
		return NoAggregation, nil
	}
	for i, name := range aggregationNames {
		if strings.EqualFold(name, s) {
			return AggregationKind(i), nil
		}
	}
	return NoAggregation, fmt.Errorf("unknown aggregation kind %q", s)
}

// MarshalYAML encodes the kind by name.
func (k AggregationKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalText decodes a kind name.
func (k *AggregationKind) UnmarshalText(b []byte) error {
	v, err := ParseAggregationKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

var aggregateFunctionKinds = map[string]AggregationKind{
	"GSUM":         Sum,
	"GAVG":         Avg,
	"GCOUNT":       Count,
	"GCOUNTUNIQUE": CountUnique,
	"GMIN":         Min,
	"GMAX":         Max,
}

// Copyright 2025 The octofhir Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package types holds a representation of CQL types and related logic. It is
// used by the parser, analyzer and interpreter.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// IType is an interface implemented by all CQL Type structs.
type IType interface {
	// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same types.
	Equal(IType) bool

	// String returns a print friendly representation of the type and implements fmt.Stringer.
	String() string

	// TypeName returns the canonical name for this type.
	//
	// For Named and System types this is the fully qualified name like
	// FHIR.Observation or System.Integer. For other types the CQL type
	// specifier syntax is used, for example Interval<System.Integer> or
	// Choice<System.Integer, System.String>. Tuple and Choice inner types are
	// alphabetically sorted so the name is stable.
	TypeName() (string, error)

	// MarshalJSON implements the json.Marshaler interface for the IType.
	MarshalJSON() ([]byte, error)
}

// System represents the primitive types defined by CQL
// (https://cql.hl7.org/09-b-cqlreference.html#types-2).
type System string

const (
	// Unset indicates that the analyzer did not set this Result Type.
	Unset System = "System.UnsetType"
	// Any is the CQL Any type, the top of the lattice. All types including
	// list, interval and model types are subtypes of Any.
	Any System = "System.Any"
	// String is a CQL String type.
	String System = "System.String"
	// Integer is a CQL Integer type.
	Integer System = "System.Integer"
	// Decimal is a CQL Decimal type.
	Decimal System = "System.Decimal"
	// Long is a CQL Long type.
	Long System = "System.Long"
	// Quantity is a CQL decimal value and unit pair.
	Quantity System = "System.Quantity"
	// Ratio is the type for ratio - two CQL quantities.
	Ratio System = "System.Ratio"
	// Boolean is a CQL Boolean type.
	Boolean System = "System.Boolean"
	// DateTime is the CQL DateTime type.
	DateTime System = "System.DateTime"
	// Date is the CQL Date type.
	Date System = "System.Date"
	// Time is the CQL Time type.
	Time System = "System.Time"
	// ValueSet is the CQL ValueSet type.
	ValueSet System = "System.ValueSet"
	// CodeSystem is a CQL CodeSystem which contains external Code definitions.
	CodeSystem System = "System.CodeSystem"
	// Vocabulary is the CQL Vocabulary type which is the parent type of ValueSet and CodeSystem.
	Vocabulary System = "System.Vocabulary"
	// Code is the CQL System Code type (which is distinct from a FHIR code type).
	Code System = "System.Code"
	// Concept is the CQL System Concept type.
	Concept System = "System.Concept"
)

// ToSystem converts a string to a System type returning Unset if the string
// cannot be converted to a system type.
func ToSystem(s string) System {
	switch s {
	case "System.Any", "Any":
		return Any
	case "System.String", "String":
		return String
	case "System.Integer", "Integer":
		return Integer
	case "System.Decimal", "Decimal":
		return Decimal
	case "System.Long", "Long":
		return Long
	case "System.Quantity", "Quantity":
		return Quantity
	case "System.Ratio", "Ratio":
		return Ratio
	case "System.Boolean", "Boolean":
		return Boolean
	case "System.DateTime", "DateTime":
		return DateTime
	case "System.Date", "Date":
		return Date
	case "System.Time", "Time":
		return Time
	case "System.ValueSet", "ValueSet":
		return ValueSet
	case "System.CodeSystem", "CodeSystem":
		return CodeSystem
	case "System.Vocabulary", "Vocabulary":
		return Vocabulary
	case "System.Code", "Code":
		return Code
	case "System.Concept", "Concept":
		return Concept
	default:
		return Unset
	}
}

// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same types.
func (s System) Equal(a IType) bool {
	aBase, ok := a.(System)
	if !ok {
		return false
	}
	return s == aBase
}

// String returns the qualified name for the type, and implements fmt.Stringer
// for easy printing.
func (s System) String() string {
	return string(s)
}

// TypeName returns the fully qualified type name.
func (s System) TypeName() (string, error) {
	return string(s), nil
}

// MarshalJSON implements the json.Marshaler interface for the System type.
func (s System) MarshalJSON() ([]byte, error) {
	return defaultTypeNameJSON(s)
}

// Named defines a single type by name. The name refers to a type defined by
// the model provider, for example FHIR.Observation.
type Named struct {
	// Name is the fully qualified name of the type.
	Name string
}

// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same types.
func (n *Named) Equal(a IType) bool {
	aNamed, ok := a.(*Named)
	if !ok {
		return false
	}
	if n == nil || aNamed == nil {
		return n == aNamed
	}
	return aNamed.Name == n.Name
}

// String implements fmt.Stringer.
func (n *Named) String() string {
	if n == nil {
		return "nil Named"
	}
	return fmt.Sprintf("Named<%s>", n.Name)
}

// TypeName returns the fully qualified type name.
func (n *Named) TypeName() (string, error) {
	if n == nil {
		return "", errTypeNil
	}
	return n.Name, nil
}

// MarshalJSON implements the json.Marshaler interface for the Named type.
func (n Named) MarshalJSON() ([]byte, error) {
	return defaultTypeNameJSON(&n)
}

// Interval defines the type for an interval.
type Interval struct {
	PointType IType
}

// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same types.
func (i *Interval) Equal(a IType) bool {
	aInterval, ok := a.(*Interval)
	if !ok {
		return false
	}
	if i == nil || aInterval == nil {
		return i == aInterval
	}
	if i.PointType == nil || aInterval.PointType == nil {
		return i.PointType == aInterval.PointType
	}
	return i.PointType.Equal(aInterval.PointType)
}

// String implements fmt.Stringer.
func (i *Interval) String() string {
	if i == nil {
		return "nil Interval"
	}
	if i.PointType == nil {
		return "Interval<nil>"
	}
	return fmt.Sprintf("Interval<%s>", i.PointType.String())
}

// TypeName returns name as the CQL interval type specifier.
func (i *Interval) TypeName() (string, error) {
	if i == nil {
		return "", errTypeNil
	}
	if i.PointType == nil {
		return "", fmt.Errorf("internal error -- nil PointType for Interval")
	}
	it, err := i.PointType.TypeName()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Interval<%s>", it), nil
}

// MarshalJSON implements the json.Marshaler interface for the Interval type.
func (i Interval) MarshalJSON() ([]byte, error) {
	if i.PointType == nil {
		return []byte(`"Interval<` + Any.String() + `>"`), nil
	}
	return defaultTypeNameJSON(&i)
}

// List defines the type for a list.
type List struct {
	// The type of the elements in the list.
	ElementType IType
}

// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same types.
func (l *List) Equal(a IType) bool {
	aList, ok := a.(*List)
	if !ok {
		return false
	}
	if l == nil || aList == nil {
		return l == aList
	}
	if l.ElementType == nil || aList.ElementType == nil {
		return l.ElementType == aList.ElementType
	}
	return l.ElementType.Equal(aList.ElementType)
}

// String implements fmt.Stringer.
func (l *List) String() string {
	if l == nil {
		return "nil List"
	}
	if l.ElementType == nil {
		return "List<nil>"
	}
	return fmt.Sprintf("List<%s>", l.ElementType.String())
}

// TypeName returns name as the CQL list type specifier.
func (l *List) TypeName() (string, error) {
	if l == nil {
		return "", errTypeNil
	}
	if l.ElementType == nil {
		return "", fmt.Errorf("internal error - nil ElementType for List")
	}
	et, err := l.ElementType.TypeName()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("List<%s>", et), nil
}

// MarshalJSON implements the json.Marshaler interface for the List type.
func (l List) MarshalJSON() ([]byte, error) {
	if l.ElementType == nil {
		return []byte(`"List<` + Any.String() + `>"`), nil
	}
	return defaultTypeNameJSON(&l)
}

// Choice defines the type for a choice type.
type Choice struct {
	ChoiceTypes []IType
}

// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same
// types. Order of the alternatives does not matter.
func (c *Choice) Equal(a IType) bool {
	if c == nil || a == nil {
		return c == a
	}
	aChoice, ok := a.(*Choice)
	if !ok {
		return false
	}
	if len(aChoice.ChoiceTypes) != len(c.ChoiceTypes) {
		return false
	}

	cChoiceSet := make([]IType, len(c.ChoiceTypes))
	copy(cChoiceSet, c.ChoiceTypes)
	for _, aType := range aChoice.ChoiceTypes {
		for i, cType := range cChoiceSet {
			if cType.Equal(aType) {
				cChoiceSet = append(cChoiceSet[:i], cChoiceSet[i+1:]...)
				break
			}
		}
	}
	return len(cChoiceSet) == 0
}

// String implements fmt.Stringer.
func (c *Choice) String() string {
	if c == nil {
		return "nil Choice"
	}
	return fmt.Sprintf("Choice<%s>", ToStrings(c.ChoiceTypes))
}

// TypeName returns name as the CQL choice type specifier with ChoiceTypes sorted.
func (c *Choice) TypeName() (string, error) {
	if c == nil {
		return "", errTypeNil
	}
	if c.ChoiceTypes == nil {
		return "", fmt.Errorf("internal error - nil ChoiceTypes for Choice")
	}

	sortedNames := make([]string, 0, len(c.ChoiceTypes))
	for _, choice := range c.ChoiceTypes {
		name, err := choice.TypeName()
		if err != nil {
			return "", err
		}
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	var sb strings.Builder
	fmt.Fprint(&sb, "Choice<")
	for i, n := range sortedNames {
		if i > 0 {
			fmt.Fprint(&sb, ", ")
		}
		fmt.Fprint(&sb, n)
	}
	fmt.Fprint(&sb, ">")
	return sb.String(), nil
}

// MarshalJSON implements the json.Marshaler interface for the Choice type.
func (c Choice) MarshalJSON() ([]byte, error) {
	if c.ChoiceTypes == nil {
		return []byte(`"Choice"`), nil
	}
	if len(c.ChoiceTypes) == 0 {
		return []byte(`"Choice<>"`), nil
	}
	return defaultTypeNameJSON(&c)
}

// Tuple defines the type for a tuple (aka Structured Value).
type Tuple struct {
	// ElementTypes is a map from element name to its type.
	ElementTypes map[string]IType
}

// Equal is a strict equal. X.Equal(Y) is true when X and Y are the exact same types.
func (t *Tuple) Equal(a IType) bool {
	if t == nil || a == nil {
		return t == a
	}
	aTuple, ok := a.(*Tuple)
	if !ok {
		return false
	}
	if len(aTuple.ElementTypes) != len(t.ElementTypes) {
		return false
	}
	for tName, tType := range t.ElementTypes {
		aType, ok := aTuple.ElementTypes[tName]
		if !ok {
			return false
		}
		if !aType.Equal(tType) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tuple) String() string {
	if t == nil {
		return "nil Tuple"
	}
	if t.ElementTypes == nil {
		return "Tuple<nil>"
	}

	elementKeys := make([]string, 0, len(t.ElementTypes))
	for name := range t.ElementTypes {
		elementKeys = append(elementKeys, name)
	}
	sort.Strings(elementKeys)

	var sb strings.Builder
	fmt.Fprint(&sb, "Tuple<")
	for i, name := range elementKeys {
		if i > 0 {
			fmt.Fprint(&sb, ", ")
		}
		fmt.Fprintf(&sb, "%s: %s", name, t.ElementTypes[name].String())
	}
	fmt.Fprint(&sb, ">")
	return sb.String()
}

// TypeName returns name as the CQL tuple type specifier with ElementTypes
// sorted by name.
func (t *Tuple) TypeName() (string, error) {
	if t == nil {
		return "", errTypeNil
	}
	if t.ElementTypes == nil {
		return "", fmt.Errorf("internal error - nil ElementTypes for Tuple")
	}
	if len(t.ElementTypes) == 0 {
		return "Tuple { }", nil
	}

	sortedNames := make([]string, 0, len(t.ElementTypes))
	for name := range t.ElementTypes {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	var sb strings.Builder
	fmt.Fprint(&sb, "Tuple { ")
	for i, name := range sortedNames {
		if i > 0 {
			fmt.Fprint(&sb, ", ")
		}
		elemType, err := t.ElementTypes[name].TypeName()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%s %s", name, elemType)
	}
	fmt.Fprint(&sb, " }")
	return sb.String(), nil
}

// MarshalJSON implements the json.Marshaler interface for the Tuple type.
func (t Tuple) MarshalJSON() ([]byte, error) {
	if t.ElementTypes == nil {
		return json.Marshal("Tuple")
	}
	return defaultTypeNameJSON(&t)
}

// ToStrings returns a print friendly representation of the types.
func ToStrings(ts []IType) string {
	var sb strings.Builder
	for i, t := range ts {
		if i > 0 {
			fmt.Fprint(&sb, ", ")
		}
		if t == nil {
			fmt.Fprint(&sb, "nil")
		} else {
			fmt.Fprint(&sb, t.String())
		}
	}
	return sb.String()
}

var errTypeNil = errors.New("internal error -- unsupported function call on a nil type")

func defaultTypeNameJSON(t IType) ([]byte, error) {
	name, err := t.TypeName()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + name + `"`), nil
}

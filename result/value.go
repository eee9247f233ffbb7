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

package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/types"
)

// Value is a CQL Value evaluated by the interpreter.
type Value struct {
	goValue     any
	runtimeType types.IType
	sourceExpr  model.IExpression
	sourceVals  []Value
}

// GolangValue returns the underlying Golang value representing the CQL
// value. Specifically:
// CQL Null returns Golang nil
// CQL Boolean returns Golang bool
// CQL String returns Golang string
// CQL Integer returns Golang int32
// CQL Long returns Golang int64
// CQL Decimal returns Golang float64
// CQL Quantity returns Golang Quantity struct
// CQL Ratio returns Golang Ratio struct
// CQL Date returns Golang Date struct
// CQL DateTime returns Golang DateTime struct
// CQL Time returns Golang Time struct
// CQL Interval returns Golang Interval struct
// CQL List returns Golang List struct
// CQL Tuple returns Golang Tuple struct
// CQL CodeSystem returns Golang CodeSystem struct
// CQL ValueSet returns Golang ValueSet struct
// CQL Concept returns Golang Concept struct
// CQL Code returns Golang Code struct
// Resource handles from the data provider return the Tuple struct with
// RuntimeType set to the model's Named type.
func (v Value) GolangValue() any { return v.goValue }

// IsNull reports whether the value is CQL null.
func (v Value) IsNull() bool { return v.goValue == nil }

// RuntimeType returns the type used by the Is system operator. This may be
// different from the type statically determined by the analyzer. For empty
// lists or intervals with null bounds this falls back to the static type.
func (v Value) RuntimeType() types.IType {
	switch t := v.goValue.(type) {
	case Interval:
		return inferIntervalType(t)
	case List:
		return inferListType(t.Value, t.StaticType)
	default:
		return v.runtimeType
	}
}

// SourceExpression returns the ELM expression that created this value.
func (v Value) SourceExpression() model.IExpression { return v.sourceExpr }

// SourceValues returns the underlying values used by the SourceExpression to
// compute this value, forming a recursive trace tree.
func (v Value) SourceValues() []Value { return v.sourceVals }

// WithSources returns a copy of the value annotated with its source
// expression and the values it was computed from.
func (v Value) WithSources(expr model.IExpression, sources ...Value) Value {
	v.sourceExpr = expr
	v.sourceVals = sources
	return v
}

// Quantity is a decimal value with a UCUM (or temporal keyword) unit.
type Quantity struct {
	Value float64
	Unit  string
}

// Equal reports strict equality for tests.
func (q Quantity) Equal(a Quantity) bool { return q == a }

// Ratio is two quantities.
type Ratio struct {
	Numerator   Quantity
	Denominator Quantity
}

// Date is a date with explicit precision. Components below the precision
// are absent, not zero.
type Date struct {
	Date      time.Time
	Precision model.DateTimePrecision
}

// Equal compares the instant and precision.
func (d Date) Equal(a Date) bool {
	return d.Date.Equal(a.Date) && d.Precision == a.Precision
}

// DateTime is a datetime with explicit precision.
type DateTime struct {
	Date      time.Time
	Precision model.DateTimePrecision
}

// Equal compares the instant and precision.
func (d DateTime) Equal(a DateTime) bool {
	return d.Date.Equal(a.Date) && d.Precision == a.Precision
}

// Time is a wall-clock time with explicit precision. The date part is
// pinned to year 0, month 1, day 1 UTC.
type Time struct {
	Date      time.Time
	Precision model.DateTimePrecision
}

// Equal compares the instant and precision.
func (t Time) Equal(a Time) bool {
	return t.Date.Equal(a.Date) && t.Precision == a.Precision
}

// Interval is a CQL interval with optional bounds. A nil bound pointer is a
// null boundary, unbounded in the appropriate direction.
type Interval struct {
	Low           *Value
	High          *Value
	LowInclusive  bool
	HighInclusive bool
	// StaticType is the type computed by the analyzer, used when the bounds
	// are null.
	StaticType *types.Interval
}

// Equal reports strict structural equality for tests.
func (i Interval) Equal(a Interval) bool {
	if i.LowInclusive != a.LowInclusive || i.HighInclusive != a.HighInclusive {
		return false
	}
	if (i.Low == nil) != (a.Low == nil) || (i.High == nil) != (a.High == nil) {
		return false
	}
	if i.Low != nil && !i.Low.Equal(*a.Low) {
		return false
	}
	if i.High != nil && !i.High.Equal(*a.High) {
		return false
	}
	return true
}

// List is an ordered collection of values.
type List struct {
	Value []Value
	// StaticType is the type computed by the analyzer, used when the list is
	// empty.
	StaticType *types.List
}

// Equal reports strict structural equality for tests.
func (l List) Equal(a List) bool {
	if len(l.Value) != len(a.Value) {
		return false
	}
	for i := range l.Value {
		if !l.Value[i].Equal(a.Value[i]) {
			return false
		}
	}
	return true
}

// Tuple is an ordered name to value map. Resource handles surfaced by the
// data provider are Tuples whose RuntimeType is the model's Named type.
type Tuple struct {
	Value map[string]Value
	// RuntimeType is *types.Tuple for structural tuples or *types.Named for
	// class instances and resources.
	RuntimeType types.IType
}

// Equal reports strict structural equality for tests.
func (t Tuple) Equal(a Tuple) bool {
	if len(t.Value) != len(a.Value) {
		return false
	}
	for name, v := range t.Value {
		av, ok := a.Value[name]
		if !ok || !v.Equal(av) {
			return false
		}
	}
	return true
}

// CodeSystem is a reference to an external code system.
type CodeSystem struct {
	ID      string
	Version string
}

// Equal reports strict equality for tests.
func (c CodeSystem) Equal(a CodeSystem) bool { return c == a }

// ValueSet is a reference to an external value set.
type ValueSet struct {
	ID          string
	Version     string
	CodeSystems []CodeSystem
}

// Equal reports strict equality for tests.
func (v ValueSet) Equal(a ValueSet) bool {
	if v.ID != a.ID || v.Version != a.Version || len(v.CodeSystems) != len(a.CodeSystems) {
		return false
	}
	for i := range v.CodeSystems {
		if v.CodeSystems[i] != a.CodeSystems[i] {
			return false
		}
	}
	return true
}

// Code is a CQL System Code: a code in a code system.
type Code struct {
	System  string
	Version string
	Code    string
	Display string
}

// Equal reports strict equality for tests.
func (c Code) Equal(a Code) bool { return c == a }

// Concept is one or more codes with an optional display.
type Concept struct {
	Codes   []*Code
	Display string
}

// Equal reports strict equality for tests.
func (c Concept) Equal(a Concept) bool {
	if c.Display != a.Display || len(c.Codes) != len(a.Codes) {
		return false
	}
	for i := range c.Codes {
		if (c.Codes[i] == nil) != (a.Codes[i] == nil) {
			return false
		}
		if c.Codes[i] != nil && *c.Codes[i] != *a.Codes[i] {
			return false
		}
	}
	return true
}

var errUnsupportedType = errors.New("unsupported type")

// New converts Golang values to CQL values. Use NewWithSources at call sites
// that know the producing expression.
func New(val any) (Value, error) {
	if val == nil {
		return Value{runtimeType: types.Any, goValue: nil}, nil
	}
	switch v := val.(type) {
	case int:
		return Value{runtimeType: types.Integer, goValue: int32(v)}, nil
	case int32:
		return Value{runtimeType: types.Integer, goValue: v}, nil
	case int64:
		return Value{runtimeType: types.Long, goValue: v}, nil
	case float64:
		return Value{runtimeType: types.Decimal, goValue: v}, nil
	case bool:
		return Value{runtimeType: types.Boolean, goValue: v}, nil
	case string:
		return Value{runtimeType: types.String, goValue: v}, nil
	case Quantity:
		return Value{runtimeType: types.Quantity, goValue: v}, nil
	case Ratio:
		return Value{runtimeType: types.Ratio, goValue: v}, nil
	case Date:
		switch v.Precision {
		case model.YEAR, model.MONTH, model.DAY, model.UNSETDATETIMEPRECISION:
			return Value{runtimeType: types.Date, goValue: v}, nil
		}
		return Value{}, fmt.Errorf("unsupported precision in Date with value %v %w", v.Precision, datehelpers.ErrUnsupportedPrecision)
	case DateTime:
		switch v.Precision {
		case model.YEAR, model.MONTH, model.DAY, model.HOUR, model.MINUTE,
			model.SECOND, model.MILLISECOND, model.UNSETDATETIMEPRECISION:
			return Value{runtimeType: types.DateTime, goValue: v}, nil
		}
		return Value{}, fmt.Errorf("unsupported precision in DateTime with value %v %w", v.Precision, datehelpers.ErrUnsupportedPrecision)
	case Time:
		switch v.Precision {
		case model.HOUR, model.MINUTE, model.SECOND, model.MILLISECOND, model.UNSETDATETIMEPRECISION:
			if v.Date.Year() != 0 || v.Date.Month() != 1 || v.Date.Day() != 1 {
				return Value{}, fmt.Errorf("internal error - Time must be Year 0000, Month 01, Day 01, instead got %v", v.Date)
			}
			return Value{runtimeType: types.Time, goValue: v}, nil
		}
		return Value{}, fmt.Errorf("unsupported precision in Time with value %v %w", v.Precision, datehelpers.ErrUnsupportedPrecision)
	case Interval:
		// RuntimeType is inferred when RuntimeType() is called.
		return Value{goValue: v}, nil
	case List:
		// RuntimeType is inferred when RuntimeType() is called.
		return Value{goValue: v}, nil
	case Tuple:
		return Value{runtimeType: v.RuntimeType, goValue: v}, nil
	case CodeSystem:
		if v.ID == "" {
			return Value{}, fmt.Errorf("%v must have an ID", types.CodeSystem)
		}
		return Value{runtimeType: types.CodeSystem, goValue: v}, nil
	case ValueSet:
		if v.ID == "" {
			return Value{}, fmt.Errorf("%v must have an ID", types.ValueSet)
		}
		return Value{runtimeType: types.ValueSet, goValue: v}, nil
	case Code:
		return Value{runtimeType: types.Code, goValue: v}, nil
	case Concept:
		return Value{runtimeType: types.Concept, goValue: v}, nil
	}
	return Value{}, fmt.Errorf("cannot convert %T to a CQL value, %w", val, errUnsupportedType)
}

// NewWithSources converts a Golang value to a CQL value annotated with the
// expression that produced it and the values it was derived from.
func NewWithSources(val any, expr model.IExpression, sources ...Value) (Value, error) {
	v, err := New(val)
	if err != nil {
		return Value{}, err
	}
	return v.WithSources(expr, sources...), nil
}

// inferIntervalType returns the runtime type of an interval, falling back
// to the static type when both bounds are null.
func inferIntervalType(i Interval) types.IType {
	if i.Low != nil && !i.Low.IsNull() {
		return &types.Interval{PointType: i.Low.RuntimeType()}
	}
	if i.High != nil && !i.High.IsNull() {
		return &types.Interval{PointType: i.High.RuntimeType()}
	}
	if i.StaticType != nil {
		return i.StaticType
	}
	return &types.Interval{PointType: types.Any}
}

// inferListType returns the runtime type of a list from its first non-null
// element, falling back to the static type for empty lists.
func inferListType(elems []Value, static *types.List) types.IType {
	for _, e := range elems {
		if !e.IsNull() {
			return &types.List{ElementType: e.RuntimeType()}
		}
	}
	if static != nil {
		return static
	}
	return &types.List{ElementType: types.Any}
}

// Equal is our custom equality used primarily by cmp.Diff in tests. This is
// not CQL equality. Equal only compares the GolangValue and RuntimeType,
// ignoring SourceExpression and SourceValues.
func (v Value) Equal(a Value) bool {
	if !v.RuntimeType().Equal(a.RuntimeType()) {
		return false
	}
	switch t := v.goValue.(type) {
	case Date:
		av, ok := a.GolangValue().(Date)
		return ok && t.Equal(av)
	case DateTime:
		av, ok := a.GolangValue().(DateTime)
		return ok && t.Equal(av)
	case Time:
		av, ok := a.GolangValue().(Time)
		return ok && t.Equal(av)
	case Interval:
		av, ok := a.GolangValue().(Interval)
		return ok && t.Equal(av)
	case List:
		av, ok := a.GolangValue().(List)
		return ok && t.Equal(av)
	case Tuple:
		av, ok := a.GolangValue().(Tuple)
		return ok && t.Equal(av)
	case ValueSet:
		av, ok := a.GolangValue().(ValueSet)
		return ok && t.Equal(av)
	case Concept:
		av, ok := a.GolangValue().(Concept)
		return ok && t.Equal(av)
	default:
		return v.GolangValue() == a.GolangValue()
	}
}

// simpleJSONMessage renders a value with its runtime type tag.
type simpleJSONMessage struct {
	Type  json.RawMessage `json:"@type"`
	Value any             `json:"value"`
}

// MarshalJSON returns the value as JSON following the CQL serialization
// conventions.
func (v Value) MarshalJSON() ([]byte, error) {
	rt, err := v.RuntimeType().MarshalJSON()
	if err != nil {
		return nil, err
	}

	switch gv := v.goValue.(type) {
	case bool, float64, int32, int64, string, nil:
		return json.Marshal(simpleJSONMessage{Value: gv, Type: rt})
	case Quantity:
		return json.Marshal(simpleJSONMessage{
			Value: map[string]any{"value": gv.Value, "unit": gv.Unit},
			Type:  rt,
		})
	case Ratio:
		return json.Marshal(simpleJSONMessage{
			Value: map[string]any{
				"numerator":   map[string]any{"value": gv.Numerator.Value, "unit": gv.Numerator.Unit},
				"denominator": map[string]any{"value": gv.Denominator.Value, "unit": gv.Denominator.Unit},
			},
			Type: rt,
		})
	case Date:
		date, err := datehelpers.DateString(gv.Date, gv.Precision)
		if err != nil {
			return nil, err
		}
		return json.Marshal(simpleJSONMessage{Type: rt, Value: date})
	case DateTime:
		dt, err := datehelpers.DateTimeString(gv.Date, gv.Precision)
		if err != nil {
			return nil, err
		}
		return json.Marshal(simpleJSONMessage{Type: rt, Value: dt})
	case Time:
		t, err := datehelpers.TimeString(gv.Date, gv.Precision)
		if err != nil {
			return nil, err
		}
		return json.Marshal(simpleJSONMessage{Type: rt, Value: t})
	case Interval:
		iv := map[string]any{
			"lowClosed":  gv.LowInclusive,
			"highClosed": gv.HighInclusive,
		}
		if gv.Low != nil {
			iv["low"] = *gv.Low
		}
		if gv.High != nil {
			iv["high"] = *gv.High
		}
		return json.Marshal(simpleJSONMessage{Type: rt, Value: iv})
	case List:
		// Lists don't embed the type so they can be directly marshalled.
		return json.Marshal(gv.Value)
	case Tuple:
		// Tuples don't embed the type so they can be directly marshalled.
		return json.Marshal(gv.Value)
	case Code:
		return json.Marshal(simpleJSONMessage{Type: rt, Value: map[string]any{
			"system": gv.System, "version": gv.Version, "code": gv.Code, "display": gv.Display,
		}})
	case Concept:
		codes := make([]any, 0, len(gv.Codes))
		for _, c := range gv.Codes {
			if c == nil {
				codes = append(codes, nil)
				continue
			}
			codes = append(codes, map[string]any{
				"system": c.System, "version": c.Version, "code": c.Code, "display": c.Display,
			})
		}
		return json.Marshal(simpleJSONMessage{Type: rt, Value: map[string]any{
			"codes": codes, "display": gv.Display,
		}})
	case ValueSet:
		return json.Marshal(simpleJSONMessage{Type: rt, Value: map[string]any{
			"id": gv.ID, "version": gv.Version,
		}})
	case CodeSystem:
		return json.Marshal(simpleJSONMessage{Type: rt, Value: map[string]any{
			"id": gv.ID, "version": gv.Version,
		}})
	default:
		return nil, fmt.Errorf("tried to marshal unsupported type %T, %w", gv, errUnsupportedType)
	}
}

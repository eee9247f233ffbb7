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
	"fmt"

	"github.com/octofhir/cql-go/types"
)

// The To* helpers unwrap a Value into its Golang representation, returning
// an error when the value holds a different type. Callers that accept null
// should check IsNull first; these helpers treat null as a mismatch.

// ToBool unwraps a Boolean value.
func ToBool(v Value) (bool, error) {
	b, ok := v.GolangValue().(bool)
	if !ok {
		return false, unwrapError(v, types.Boolean)
	}
	return b, nil
}

// ToInt32 unwraps an Integer value.
func ToInt32(v Value) (int32, error) {
	i, ok := v.GolangValue().(int32)
	if !ok {
		return 0, unwrapError(v, types.Integer)
	}
	return i, nil
}

// ToInt64 unwraps a Long value, widening Integer.
func ToInt64(v Value) (int64, error) {
	switch t := v.GolangValue().(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	}
	return 0, unwrapError(v, types.Long)
}

// ToFloat64 unwraps a Decimal value, widening Integer and Long.
func ToFloat64(v Value) (float64, error) {
	switch t := v.GolangValue().(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	}
	return 0, unwrapError(v, types.Decimal)
}

// ToString unwraps a String value.
func ToString(v Value) (string, error) {
	s, ok := v.GolangValue().(string)
	if !ok {
		return "", unwrapError(v, types.String)
	}
	return s, nil
}

// ToQuantity unwraps a Quantity value.
func ToQuantity(v Value) (Quantity, error) {
	q, ok := v.GolangValue().(Quantity)
	if !ok {
		return Quantity{}, unwrapError(v, types.Quantity)
	}
	return q, nil
}

// ToRatio unwraps a Ratio value.
func ToRatio(v Value) (Ratio, error) {
	r, ok := v.GolangValue().(Ratio)
	if !ok {
		return Ratio{}, unwrapError(v, types.Ratio)
	}
	return r, nil
}

// ToDate unwraps a Date value.
func ToDate(v Value) (Date, error) {
	d, ok := v.GolangValue().(Date)
	if !ok {
		return Date{}, unwrapError(v, types.Date)
	}
	return d, nil
}

// ToDateTime unwraps a DateTime value, widening Date.
func ToDateTime(v Value) (DateTime, error) {
	switch t := v.GolangValue().(type) {
	case DateTime:
		return t, nil
	case Date:
		return DateTime{Date: t.Date, Precision: t.Precision}, nil
	}
	return DateTime{}, unwrapError(v, types.DateTime)
}

// ToTime unwraps a Time value.
func ToTime(v Value) (Time, error) {
	t, ok := v.GolangValue().(Time)
	if !ok {
		return Time{}, unwrapError(v, types.Time)
	}
	return t, nil
}

// ToInterval unwraps an Interval value.
func ToInterval(v Value) (Interval, error) {
	i, ok := v.GolangValue().(Interval)
	if !ok {
		return Interval{}, unwrapError(v, &types.Interval{PointType: types.Any})
	}
	return i, nil
}

// ToList unwraps a List value's elements.
func ToList(v Value) ([]Value, error) {
	l, ok := v.GolangValue().(List)
	if !ok {
		return nil, unwrapError(v, &types.List{ElementType: types.Any})
	}
	return l.Value, nil
}

// ToTuple unwraps a Tuple value.
func ToTuple(v Value) (Tuple, error) {
	t, ok := v.GolangValue().(Tuple)
	if !ok {
		return Tuple{}, unwrapError(v, &types.Tuple{})
	}
	return t, nil
}

// ToCodeSystem unwraps a CodeSystem value.
func ToCodeSystem(v Value) (CodeSystem, error) {
	c, ok := v.GolangValue().(CodeSystem)
	if !ok {
		return CodeSystem{}, unwrapError(v, types.CodeSystem)
	}
	return c, nil
}

// ToValueSet unwraps a ValueSet value.
func ToValueSet(v Value) (ValueSet, error) {
	vs, ok := v.GolangValue().(ValueSet)
	if !ok {
		return ValueSet{}, unwrapError(v, types.ValueSet)
	}
	return vs, nil
}

// ToCode unwraps a Code value.
func ToCode(v Value) (Code, error) {
	c, ok := v.GolangValue().(Code)
	if !ok {
		return Code{}, unwrapError(v, types.Code)
	}
	return c, nil
}

// ToConcept unwraps a Concept value, promoting Code.
func ToConcept(v Value) (Concept, error) {
	switch t := v.GolangValue().(type) {
	case Concept:
		return t, nil
	case Code:
		c := t
		return Concept{Codes: []*Code{&c}, Display: t.Display}, nil
	}
	return Concept{}, unwrapError(v, types.Concept)
}

func unwrapError(v Value, want types.IType) error {
	return fmt.Errorf("cannot unwrap %v as %v", v.RuntimeType(), want)
}

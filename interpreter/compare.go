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

package interpreter

import (
	"fmt"
	"strings"
	"time"

	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/ucum"
)

// valuesEqual implements CQL equality: structural, null propagating, with
// numeric cross-type comparison and uncertain (null) temporal comparison.
// The returned value is Boolean or null.
func (i *interpreter) valuesEqual(a, b result.Value) (result.Value, error) {
	if a.IsNull() || b.IsNull() {
		return result.New(nil)
	}

	switch av := a.GolangValue().(type) {
	case bool:
		bv, ok := b.GolangValue().(bool)
		if !ok {
			return result.New(nil)
		}
		return result.New(av == bv)
	case string:
		bv, ok := b.GolangValue().(string)
		if !ok {
			return result.New(nil)
		}
		return result.New(av == bv)
	case int32, int64, float64:
		af, aok := numeric(a)
		bf, bok := numeric(b)
		if !aok || !bok {
			return result.New(nil)
		}
		return result.New(af == bf)
	case result.Quantity:
		bq, err := result.ToQuantity(b)
		if err != nil {
			return result.New(nil)
		}
		converted, convErr := ucum.Convert(bq.Value, bq.Unit, av.Unit)
		if convErr != nil {
			return result.New(false)
		}
		return result.New(av.Value == converted)
	case result.Ratio:
		bv, ok := b.GolangValue().(result.Ratio)
		if !ok {
			return result.New(nil)
		}
		return result.New(av == bv)
	case result.Date, result.DateTime, result.Time:
		cmp, isNull, err := i.compareValues(a, b)
		if err != nil {
			return result.Value{}, err
		}
		if isNull {
			return result.New(nil)
		}
		return result.New(cmp == 0)
	case result.Code:
		bv, ok := b.GolangValue().(result.Code)
		if !ok {
			return result.New(nil)
		}
		return result.New(av == bv)
	case result.Concept:
		bv, ok := b.GolangValue().(result.Concept)
		if !ok {
			return result.New(nil)
		}
		return result.New(av.Equal(bv))
	case result.Tuple:
		bv, ok := b.GolangValue().(result.Tuple)
		if !ok || len(av.Value) != len(bv.Value) {
			return result.New(nil)
		}
		for name, ae := range av.Value {
			be, ok := bv.Value[name]
			if !ok {
				return result.New(false)
			}
			eq, err := i.valuesEqual(ae, be)
			if err != nil {
				return result.Value{}, err
			}
			if eq.IsNull() {
				return eq, nil
			}
			if eqB, _ := eq.GolangValue().(bool); !eqB {
				return result.New(false)
			}
		}
		return result.New(true)
	case result.List:
		bl, err := result.ToList(b)
		if err != nil {
			return result.New(nil)
		}
		if len(av.Value) != len(bl) {
			return result.New(false)
		}
		sawNull := false
		for idx := range av.Value {
			eq, err := i.valuesEqual(av.Value[idx], bl[idx])
			if err != nil {
				return result.Value{}, err
			}
			if eq.IsNull() {
				sawNull = true
				continue
			}
			if eqB, _ := eq.GolangValue().(bool); !eqB {
				return result.New(false)
			}
		}
		if sawNull {
			return result.New(nil)
		}
		return result.New(true)
	case result.Interval:
		bv, ok := b.GolangValue().(result.Interval)
		if !ok {
			return result.New(nil)
		}
		if av.LowInclusive != bv.LowInclusive || av.HighInclusive != bv.HighInclusive {
			return result.New(false)
		}
		lowEq, err := i.boundsEqual(av.Low, bv.Low)
		if err != nil {
			return result.Value{}, err
		}
		highEq, err := i.boundsEqual(av.High, bv.High)
		if err != nil {
			return result.Value{}, err
		}
		if lowEq.IsNull() || highEq.IsNull() {
			return result.New(nil)
		}
		lb, _ := lowEq.GolangValue().(bool)
		hb, _ := highEq.GolangValue().(bool)
		return result.New(lb && hb)
	case result.CodeSystem:
		bv, ok := b.GolangValue().(result.CodeSystem)
		if !ok {
			return result.New(nil)
		}
		return result.New(av == bv)
	case result.ValueSet:
		bv, ok := b.GolangValue().(result.ValueSet)
		if !ok {
			return result.New(nil)
		}
		return result.New(av.Equal(bv))
	}
	return result.New(nil)
}

func (i *interpreter) boundsEqual(a, b *result.Value) (result.Value, error) {
	if a == nil && b == nil {
		return result.New(true)
	}
	if a == nil || b == nil {
		return result.New(nil)
	}
	return i.valuesEqual(*a, *b)
}

// valuesEquivalent implements CQL equivalence, which is total:
// null ~ null is true, strings compare case insensitively, codes ignore
// version and display, and uncertain temporal comparisons are false.
func (i *interpreter) valuesEquivalent(a, b result.Value) (bool, error) {
	if a.IsNull() && b.IsNull() {
		return true, nil
	}
	if a.IsNull() || b.IsNull() {
		return false, nil
	}

	switch av := a.GolangValue().(type) {
	case string:
		bv, ok := b.GolangValue().(string)
		if !ok {
			return false, nil
		}
		return strings.EqualFold(av, bv), nil
	case result.Code:
		bv, ok := b.GolangValue().(result.Code)
		if !ok {
			return false, nil
		}
		return av.Code == bv.Code && av.System == bv.System, nil
	case result.Concept:
		bv, ok := b.GolangValue().(result.Concept)
		if !ok {
			return false, nil
		}
		// Concepts are equivalent when any of their codes are.
		for _, ac := range av.Codes {
			for _, bc := range bv.Codes {
				if ac != nil && bc != nil && ac.Code == bc.Code && ac.System == bc.System {
					return true, nil
				}
			}
		}
		return false, nil
	case result.List:
		bl, err := result.ToList(b)
		if err != nil {
			return false, nil
		}
		if len(av.Value) != len(bl) {
			return false, nil
		}
		for idx := range av.Value {
			eqv, err := i.valuesEquivalent(av.Value[idx], bl[idx])
			if err != nil {
				return false, err
			}
			if !eqv {
				return false, nil
			}
		}
		return true, nil
	case result.Tuple:
		bv, ok := b.GolangValue().(result.Tuple)
		if !ok || len(av.Value) != len(bv.Value) {
			return false, nil
		}
		for name, ae := range av.Value {
			be, ok := bv.Value[name]
			if !ok {
				return false, nil
			}
			eqv, err := i.valuesEquivalent(ae, be)
			if err != nil {
				return false, err
			}
			if !eqv {
				return false, nil
			}
		}
		return true, nil
	}

	eq, err := i.valuesEqual(a, b)
	if err != nil {
		return false, err
	}
	if eq.IsNull() {
		return false, nil
	}
	b2, _ := eq.GolangValue().(bool)
	return b2, nil
}

// numeric widens integer values to float64 for cross-type comparison.
func numeric(v result.Value) (float64, bool) {
	switch t := v.GolangValue().(type) {
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// compareValues orders two values: -1, 0 or 1. isNull is true when either
// operand is null or the temporal comparison is uncertain.
func (i *interpreter) compareValues(a, b result.Value) (cmp int, isNull bool, err error) {
	return i.compareValuesWithPrecision(a, b, model.UNSETDATETIMEPRECISION)
}

func (i *interpreter) compareValuesWithPrecision(a, b result.Value, precision model.DateTimePrecision) (cmp int, isNull bool, err error) {
	if a.IsNull() || b.IsNull() {
		return 0, true, nil
	}
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return compareFloats(af, bf), false, nil
		}
		return 0, false, fmt.Errorf("cannot compare %v with %v", a.RuntimeType(), b.RuntimeType())
	}

	switch av := a.GolangValue().(type) {
	case string:
		bv, err := result.ToString(b)
		if err != nil {
			return 0, false, err
		}
		return strings.Compare(av, bv), false, nil
	case result.Quantity:
		bq, err := result.ToQuantity(b)
		if err != nil {
			return 0, false, err
		}
		converted, convErr := ucum.Convert(bq.Value, bq.Unit, av.Unit)
		if convErr != nil {
			return 0, false, fmt.Errorf("cannot compare quantities: %w", convErr)
		}
		return compareFloats(av.Value, converted), false, nil
	case result.Date:
		bd, err := result.ToDate(b)
		if err != nil {
			bdt, dtErr := result.ToDateTime(b)
			if dtErr != nil {
				return 0, false, err
			}
			return i.temporalCompare(av.Date, av.Precision, bdt.Date, bdt.Precision, precision)
		}
		return i.temporalCompare(av.Date, av.Precision, bd.Date, bd.Precision, precision)
	case result.DateTime:
		bd, err := result.ToDateTime(b)
		if err != nil {
			return 0, false, err
		}
		return i.temporalCompare(av.Date, av.Precision, bd.Date, bd.Precision, precision)
	case result.Time:
		bt, err := result.ToTime(b)
		if err != nil {
			return 0, false, err
		}
		return i.temporalCompare(av.Date, av.Precision, bt.Date, bt.Precision, precision)
	}
	return 0, false, fmt.Errorf("cannot order values of type %v", a.RuntimeType())
}

func (i *interpreter) temporalCompare(a time.Time, aPrec model.DateTimePrecision, b time.Time, bPrec model.DateTimePrecision, cutoff model.DateTimePrecision) (int, bool, error) {
	comparison, err := datehelpers.CompareWithPrecision(a, aPrec, b, bPrec, cutoff)
	if err != nil {
		return 0, false, err
	}
	switch comparison {
	case datehelpers.Uncertain:
		return 0, true, nil
	case datehelpers.Less:
		return -1, false, nil
	case datehelpers.Greater:
		return 1, false, nil
	default:
		return 0, false, nil
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

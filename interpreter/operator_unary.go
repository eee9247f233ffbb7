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
	"math"
	"strings"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
)

// decimalStep is the smallest decimal increment per the CQL decimal
// precision of eight fractional digits.
const decimalStep = 1e-8

// evalUnary evaluates all operators with a single operand. Operators that
// are total (never return null) handle null operands themselves; everything
// else null-propagates here.
func (i *interpreter) evalUnary(u model.IUnaryExpression) (result.Value, error) {
	operand, err := i.evalExpression(u.GetOperand())
	if err != nil {
		return result.Value{}, err
	}

	// Total operators first.
	switch u.(type) {
	case *model.IsNull:
		return result.NewWithSources(operand.IsNull(), u, operand)
	case *model.IsTrue:
		b, ok := operand.GolangValue().(bool)
		return result.NewWithSources(ok && b, u, operand)
	case *model.IsFalse:
		b, ok := operand.GolangValue().(bool)
		return result.NewWithSources(ok && !b, u, operand)
	case *model.Exists:
		if operand.IsNull() {
			return result.NewWithSources(false, u, operand)
		}
		elems, err := result.ToList(operand)
		if err != nil {
			return result.Value{}, err
		}
		for _, e := range elems {
			if !e.IsNull() {
				return result.NewWithSources(true, u, operand)
			}
		}
		return result.NewWithSources(false, u, operand)
	case *model.ConvertsToBoolean, *model.ConvertsToDate, *model.ConvertsToDateTime,
		*model.ConvertsToDecimal, *model.ConvertsToInteger, *model.ConvertsToLong,
		*model.ConvertsToQuantity, *model.ConvertsToString, *model.ConvertsToTime:
		return i.evalConvertsTo(u, operand)
	}

	if operand.IsNull() {
		return result.NewWithSources(nil, u, operand)
	}

	switch t := u.(type) {
	case *model.Not:
		b, err := result.ToBool(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(!b, u, operand)
	case *model.Negate:
		return i.evalNegate(t, operand)
	case *model.Abs:
		return i.evalAbs(t, operand)
	case *model.Truncate:
		f, err := result.ToFloat64(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(int32(math.Trunc(f)), u, operand)
	case *model.Ceiling:
		f, err := result.ToFloat64(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(int32(math.Ceil(f)), u, operand)
	case *model.Floor:
		f, err := result.ToFloat64(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(int32(math.Floor(f)), u, operand)
	case *model.Exp:
		f, err := result.ToFloat64(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(math.Exp(f), u, operand)
	case *model.Ln:
		f, err := result.ToFloat64(operand)
		if err != nil {
			return result.Value{}, err
		}
		if f <= 0 {
			return result.NewWithSources(nil, u, operand)
		}
		return result.NewWithSources(math.Log(f), u, operand)
	case *model.Predecessor:
		return i.evalStep(t, operand, -1)
	case *model.Successor:
		return i.evalStep(t, operand, 1)
	case *model.Upper:
		s, err := result.ToString(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(strings.ToUpper(s), u, operand)
	case *model.Lower:
		s, err := result.ToString(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(strings.ToLower(s), u, operand)
	case *model.Length:
		if s, ok := operand.GolangValue().(string); ok {
			return result.NewWithSources(int32(len(s)), u, operand)
		}
		elems, err := result.ToList(operand)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(int32(len(elems)), u, operand)

	// List operators.
	case *model.First, *model.Last, *model.Single, *model.SingletonFrom,
		*model.Distinct, *model.Flatten, *model.Tail, *model.Count,
		*model.Sum, *model.Min, *model.Max, *model.Avg, *model.Median,
		*model.Mode, *model.StdDev, *model.Variance, *model.AllTrue,
		*model.AnyTrue, *model.Collapse:
		return i.evalListUnary(u, operand)

	// Interval accessors.
	case *model.Start, *model.End, *model.Width, *model.Size, *model.PointFrom:
		return i.evalIntervalUnary(u, operand)

	// Temporal component extraction.
	case *model.DateTimeComponentFrom:
		return i.evalDateTimeComponentFrom(t, operand)
	case *model.DateFrom:
		dt, err := result.ToDateTime(operand)
		if err != nil {
			return result.Value{}, err
		}
		prec := dt.Precision
		if precIsTimeValued(prec) {
			prec = model.DAY
		}
		return result.NewWithSources(result.Date{Date: dayTruncate(dt.Date), Precision: prec}, u, operand)
	case *model.TimeFrom:
		dt, err := result.ToDateTime(operand)
		if err != nil {
			return result.Value{}, err
		}
		if !precIsTimeValued(dt.Precision) {
			return result.NewWithSources(nil, u, operand)
		}
		return result.NewWithSources(timeOfDayFrom(dt.Date, dt.Precision), u, operand)
	case *model.TimezoneOffsetFrom:
		dt, err := result.ToDateTime(operand)
		if err != nil {
			return result.Value{}, err
		}
		_, offsetSeconds := dt.Date.Zone()
		return result.NewWithSources(float64(offsetSeconds)/3600.0, u, operand)

	case *model.CalculateAge:
		return i.evalCalculateAge(t, operand)

	// Conversions.
	case *model.ToBoolean, *model.ToInteger, *model.ToLong, *model.ToDecimal,
		*model.ToString, *model.ToQuantity, *model.ToConcept, *model.ToDate,
		*model.ToDateTime, *model.ToTime:
		return i.evalConversion(u, operand)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, u, "internal error - unsupported unary operator %T", u)
}

func (i *interpreter) evalNegate(u model.IUnaryExpression, operand result.Value) (result.Value, error) {
	switch v := operand.GolangValue().(type) {
	case int32:
		return result.NewWithSources(-v, u, operand)
	case int64:
		return result.NewWithSources(-v, u, operand)
	case float64:
		return result.NewWithSources(-v, u, operand)
	case result.Quantity:
		return result.NewWithSources(result.Quantity{Value: -v.Value, Unit: v.Unit}, u, operand)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, u, "cannot negate %v", operand.RuntimeType())
}

func (i *interpreter) evalAbs(u model.IUnaryExpression, operand result.Value) (result.Value, error) {
	switch v := operand.GolangValue().(type) {
	case int32:
		if v == math.MinInt32 {
			return result.Value{}, evalErrorf(diag.Overflow, u, "Abs overflows for %d", v)
		}
		if v < 0 {
			v = -v
		}
		return result.NewWithSources(v, u, operand)
	case int64:
		if v == math.MinInt64 {
			return result.Value{}, evalErrorf(diag.Overflow, u, "Abs overflows for %d", v)
		}
		if v < 0 {
			v = -v
		}
		return result.NewWithSources(v, u, operand)
	case float64:
		return result.NewWithSources(math.Abs(v), u, operand)
	case result.Quantity:
		return result.NewWithSources(result.Quantity{Value: math.Abs(v.Value), Unit: v.Unit}, u, operand)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, u, "Abs is not defined for %v", operand.RuntimeType())
}

// evalStep implements Predecessor and Successor.
func (i *interpreter) evalStep(u model.IUnaryExpression, operand result.Value, direction int) (result.Value, error) {
	switch v := operand.GolangValue().(type) {
	case int32:
		if (direction > 0 && v == math.MaxInt32) || (direction < 0 && v == math.MinInt32) {
			return result.Value{}, evalErrorf(diag.Overflow, u, "%s overflows", stepName(direction))
		}
		return result.NewWithSources(v+int32(direction), u, operand)
	case int64:
		if (direction > 0 && v == math.MaxInt64) || (direction < 0 && v == math.MinInt64) {
			return result.Value{}, evalErrorf(diag.Overflow, u, "%s overflows", stepName(direction))
		}
		return result.NewWithSources(v+int64(direction), u, operand)
	case float64:
		return result.NewWithSources(v+float64(direction)*decimalStep, u, operand)
	case result.Quantity:
		return result.NewWithSources(result.Quantity{Value: v.Value + float64(direction)*decimalStep, Unit: v.Unit}, u, operand)
	case result.Date:
		stepped, err := datehelpers.AddQuantity(v.Date, v.Precision, datePrecisionUnit(v.Precision), direction)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
		}
		return result.NewWithSources(result.Date{Date: stepped, Precision: v.Precision}, u, operand)
	case result.DateTime:
		stepped, err := datehelpers.AddQuantity(v.Date, v.Precision, datePrecisionUnit(v.Precision), direction)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
		}
		return result.NewWithSources(result.DateTime{Date: stepped, Precision: v.Precision}, u, operand)
	case result.Time:
		stepped, err := datehelpers.AddQuantity(v.Date, v.Precision, datePrecisionUnit(v.Precision), direction)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
		}
		return result.NewWithSources(result.Time{Date: stepped, Precision: v.Precision}, u, operand)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%s is not defined for %v", stepName(direction), operand.RuntimeType())
}

func stepName(direction int) string {
	if direction > 0 {
		return "Successor"
	}
	return "Predecessor"
}

// datePrecisionUnit maps a precision to itself as the stepping unit; unset
// precision steps at millisecond.
func datePrecisionUnit(p model.DateTimePrecision) model.DateTimePrecision {
	if p == model.UNSETDATETIMEPRECISION {
		return model.MILLISECOND
	}
	return p
}

func (i *interpreter) evalDateTimeComponentFrom(t *model.DateTimeComponentFrom, operand result.Value) (result.Value, error) {
	var instant result.DateTime
	switch v := operand.GolangValue().(type) {
	case result.Date:
		instant = result.DateTime{Date: v.Date, Precision: v.Precision}
	case result.DateTime:
		instant = v
	case result.Time:
		instant = result.DateTime{Date: v.Date, Precision: v.Precision}
	default:
		return result.Value{}, evalErrorf(diag.TypeMismatch, t, "cannot extract a component from %v", operand.RuntimeType())
	}
	component, present, err := datehelpers.Component(instant.Date, instant.Precision, t.Precision)
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, t, "%v", err)
	}
	// Components below the value's precision are absent, not zero.
	if !present {
		return result.NewWithSources(nil, t, operand)
	}
	return result.NewWithSources(int32(component), t, operand)
}

func (i *interpreter) evalCalculateAge(t *model.CalculateAge, operand result.Value) (result.Value, error) {
	birth, err := result.ToDateTime(operand)
	if err != nil {
		return result.Value{}, err
	}
	unit := t.Precision
	if unit == model.UNSETDATETIMEPRECISION {
		unit = model.YEAR
	}
	now := result.DateTime{Date: i.evaluationTimestamp, Precision: model.MILLISECOND}
	count, ok, err := datehelpers.DurationBetween(birth.Date, birth.Precision, now.Date, now.Precision, durationPrecision(unit))
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, t, "%v", err)
	}
	if !ok {
		return result.NewWithSources(nil, t, operand)
	}
	return result.NewWithSources(int32(count), t, operand)
}

// durationPrecision maps week to day-based counting since weeks are not a
// comparison precision.
func durationPrecision(p model.DateTimePrecision) model.DateTimePrecision {
	if p == model.WEEK {
		return model.DAY
	}
	return p
}

func precIsTimeValued(p model.DateTimePrecision) bool {
	switch p {
	case model.HOUR, model.MINUTE, model.SECOND, model.MILLISECOND:
		return true
	}
	return false
}

func (i *interpreter) minOfPoint(t types.IType, elm model.IExpression) (result.Value, error) {
	return minValueOf(t, elm, i.evaluationTimestamp.Location())
}

func (i *interpreter) maxOfPoint(t types.IType, elm model.IExpression) (result.Value, error) {
	return maxValueOf(t, elm, i.evaluationTimestamp.Location())
}

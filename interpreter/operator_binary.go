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
	"regexp"
	"strings"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/ucum"
)

// evalBinary evaluates all operators with two operands. Both operands are
// evaluated up front; three-valued logic and the total operators handle
// nulls themselves, everything else null-propagates.
func (i *interpreter) evalBinary(b model.IBinaryExpression) (result.Value, error) {
	left, err := i.evalExpression(b.Left())
	if err != nil {
		return result.Value{}, err
	}
	right, err := i.evalExpression(b.Right())
	if err != nil {
		return result.Value{}, err
	}

	switch t := b.(type) {
	// Three-valued logic.
	case *model.And:
		return i.evalAnd(t, left, right)
	case *model.Or:
		return i.evalOr(t, left, right)
	case *model.XOr:
		if left.IsNull() || right.IsNull() {
			return result.NewWithSources(nil, b, left, right)
		}
		lb, _ := left.GolangValue().(bool)
		rb, _ := right.GolangValue().(bool)
		return result.NewWithSources(lb != rb, b, left, right)
	case *model.Implies:
		return i.evalImplies(t, left, right)

	// Equality and equivalence.
	case *model.Equal:
		eq, err := i.valuesEqual(left, right)
		if err != nil {
			return result.Value{}, err
		}
		return eq.WithSources(b, left, right), nil
	case *model.Equivalent:
		eqv, err := i.valuesEquivalent(left, right)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(eqv, b, left, right)
	}

	if left.IsNull() || right.IsNull() {
		return result.NewWithSources(nil, b, left, right)
	}

	switch t := b.(type) {
	// Orderings.
	case *model.Less:
		return i.evalComparison(b, left, right, func(c int) bool { return c < 0 })
	case *model.LessOrEqual:
		return i.evalComparison(b, left, right, func(c int) bool { return c <= 0 })
	case *model.Greater:
		return i.evalComparison(b, left, right, func(c int) bool { return c > 0 })
	case *model.GreaterOrEqual:
		return i.evalComparison(b, left, right, func(c int) bool { return c >= 0 })

	// Arithmetic.
	case *model.Add:
		return i.addValues(b, left, right)
	case *model.Subtract:
		return i.subtractValues(b, left, right)
	case *model.Multiply:
		return i.multiplyValues(b, left, right)
	case *model.Divide:
		return i.divideValues(b, left, right)
	case *model.TruncatedDivide:
		return i.truncatedDivideValues(b, left, right)
	case *model.Modulo:
		return i.moduloValues(b, left, right)
	case *model.Power:
		return i.powerValues(b, left, right)
	case *model.Log:
		lf, err := result.ToFloat64(left)
		if err != nil {
			return result.Value{}, err
		}
		rf, err := result.ToFloat64(right)
		if err != nil {
			return result.Value{}, err
		}
		if lf <= 0 || rf <= 0 || rf == 1 {
			return result.NewWithSources(nil, b, left, right)
		}
		return result.NewWithSources(math.Log(lf)/math.Log(rf), b, left, right)

	// Strings.
	case *model.StartsWith:
		return i.stringPair(b, left, right, func(l, r string) any { return strings.HasPrefix(l, r) })
	case *model.EndsWith:
		return i.stringPair(b, left, right, func(l, r string) any { return strings.HasSuffix(l, r) })
	case *model.Matches:
		ls, rs, err := stringOperands(left, right)
		if err != nil {
			return result.Value{}, err
		}
		re, reErr := regexp.Compile(rs)
		if reErr != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "invalid regular expression: %v", reErr)
		}
		return result.NewWithSources(re.MatchString(ls), b, left, right)
	case *model.Split:
		ls, rs, err := stringOperands(left, right)
		if err != nil {
			return result.Value{}, err
		}
		parts := strings.Split(ls, rs)
		elems := make([]result.Value, 0, len(parts))
		for _, p := range parts {
			v, err := result.New(p)
			if err != nil {
				return result.Value{}, err
			}
			elems = append(elems, v)
		}
		return result.NewWithSources(result.List{Value: elems, StaticType: binaryStaticListType(b)}, b, left, right)
	case *model.PositionOf:
		return i.stringPair(b, left, right, func(pattern, s string) any { return int32(strings.Index(s, pattern)) })
	case *model.LastPositionOf:
		return i.stringPair(b, left, right, func(pattern, s string) any { return int32(strings.LastIndex(s, pattern)) })

	// Lists.
	case *model.Union:
		return i.unionValues(b, left, right)
	case *model.Intersect:
		return i.intersectValues(b, left, right)
	case *model.Except:
		return i.exceptValues(b, left, right)
	case *model.Indexer:
		return i.indexValue(b, left, right)
	case *model.IndexOf:
		return i.evalIndexOf(b, left, right)
	case *model.Take, *model.Skip:
		return i.evalTakeSkip(b, left, right)
	case *model.Includes:
		return i.evalIncludes(b, left, right, false)
	case *model.ProperlyIncludes:
		return i.evalIncludes(b, left, right, true)

	// Membership.
	case *model.In:
		return i.evalIn(b, left, right, t.Precision)
	case *model.Contains:
		return i.evalContains(b, left, right, t.Precision)
	case *model.IncludedIn:
		return i.evalIncludedIn(b, left, right, t.Precision, false)
	case *model.ProperlyIncludedIn:
		return i.evalIncludedIn(b, left, right, t.Precision, true)

	// Interval and temporal relations.
	case *model.Before:
		return i.relation(b, "Before", left, right, t.Precision)
	case *model.After:
		return i.relation(b, "After", left, right, t.Precision)
	case *model.SameAs:
		return i.relation(b, "SameAs", left, right, t.Precision)
	case *model.SameOrBefore:
		return i.relation(b, "SameOrBefore", left, right, t.Precision)
	case *model.SameOrAfter:
		return i.relation(b, "SameOrAfter", left, right, t.Precision)
	case *model.Overlaps:
		return i.relation(b, "Overlaps", left, right, t.Precision)
	case *model.Meets:
		return i.relation(b, "Meets", left, right, t.Precision)
	case *model.Starts:
		return i.relation(b, "Starts", left, right, t.Precision)
	case *model.Ends:
		return i.relation(b, "Ends", left, right, t.Precision)

	// Temporal durations.
	case *model.DurationBetween:
		return i.evalDurationBetween(b, left, right, t.Precision, false)
	case *model.DifferenceBetween:
		return i.evalDurationBetween(b, left, right, t.Precision, true)

	// Clinical.
	case *model.InValueSet:
		return i.evalInValueSet(t, left, right)
	case *model.InCodeSystem:
		return i.evalInCodeSystem(t, left, right)
	case *model.CalculateAgeAt:
		return i.evalCalculateAgeAt(t, left, right)
	case *model.CanConvertQuantity, *model.ConvertQuantity:
		return i.convertQuantity(b, left, right)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, b, "internal error - unsupported binary operator %T", b)
}

// evalAnd implements the three-valued conjunction truth table.
func (i *interpreter) evalAnd(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	lb, lok := left.GolangValue().(bool)
	rb, rok := right.GolangValue().(bool)
	switch {
	case lok && rok:
		return result.NewWithSources(lb && rb, b, left, right)
	case lok && !lb, rok && !rb:
		return result.NewWithSources(false, b, left, right)
	default:
		return result.NewWithSources(nil, b, left, right)
	}
}

// evalOr implements the three-valued disjunction truth table.
func (i *interpreter) evalOr(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	lb, lok := left.GolangValue().(bool)
	rb, rok := right.GolangValue().(bool)
	switch {
	case lok && rok:
		return result.NewWithSources(lb || rb, b, left, right)
	case lok && lb, rok && rb:
		return result.NewWithSources(true, b, left, right)
	default:
		return result.NewWithSources(nil, b, left, right)
	}
}

// evalImplies: false implies anything is true, null implies true is true.
func (i *interpreter) evalImplies(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	lb, lok := left.GolangValue().(bool)
	rb, rok := right.GolangValue().(bool)
	switch {
	case lok && !lb:
		return result.NewWithSources(true, b, left, right)
	case rok && rb:
		return result.NewWithSources(true, b, left, right)
	case lok && rok:
		return result.NewWithSources(!lb || rb, b, left, right)
	default:
		return result.NewWithSources(nil, b, left, right)
	}
}

func (i *interpreter) evalComparison(b model.IBinaryExpression, left, right result.Value, test func(int) bool) (result.Value, error) {
	cmp, isNull, err := i.compareValues(left, right)
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
	}
	if isNull {
		return result.NewWithSources(nil, b, left, right)
	}
	return result.NewWithSources(test(cmp), b, left, right)
}

func stringOperands(left, right result.Value) (string, string, error) {
	ls, err := result.ToString(left)
	if err != nil {
		return "", "", err
	}
	rs, err := result.ToString(right)
	if err != nil {
		return "", "", err
	}
	return ls, rs, nil
}

func (i *interpreter) stringPair(b model.IBinaryExpression, left, right result.Value, f func(l, r string) any) (result.Value, error) {
	ls, rs, err := stringOperands(left, right)
	if err != nil {
		return result.Value{}, err
	}
	return result.NewWithSources(f(ls, rs), b, left, right)
}

// Arithmetic over the numeric tower, quantities and temporal values.

func (i *interpreter) addValues(b model.IExpression, left, right result.Value) (result.Value, error) {
	return i.arith(b, left, right, "+")
}

func (i *interpreter) subtractValues(b model.IExpression, left, right result.Value) (result.Value, error) {
	return i.arith(b, left, right, "-")
}

func (i *interpreter) multiplyValues(b model.IExpression, left, right result.Value) (result.Value, error) {
	return i.arith(b, left, right, "*")
}

func (i *interpreter) arith(b model.IExpression, left, right result.Value, op string) (result.Value, error) {
	// Temporal + quantity arithmetic.
	switch lv := left.GolangValue().(type) {
	case result.Date, result.DateTime, result.Time:
		return i.temporalAdd(b, left, right, op)
	case result.Quantity:
		rq, err := result.ToQuantity(right)
		if err != nil {
			return result.Value{}, err
		}
		switch op {
		case "+", "-":
			converted, convErr := ucum.Convert(rq.Value, rq.Unit, lv.Unit)
			if convErr != nil {
				return result.Value{}, evalErrorf(diag.IncompatibleUnits, b, "%v", convErr)
			}
			if op == "-" {
				converted = -converted
			}
			return result.NewWithSources(result.Quantity{Value: lv.Value + converted, Unit: lv.Unit}, b, left, right)
		case "*":
			return result.NewWithSources(result.Quantity{
				Value: lv.Value * rq.Value,
				Unit:  ucum.Product(lv.Unit, rq.Unit),
			}, b, left, right)
		}
	}

	// Integer and long arithmetic stays integral and checks overflow.
	switch lv := left.GolangValue().(type) {
	case int32:
		if rv, ok := right.GolangValue().(int32); ok {
			v, err := integerArith(b, int64(lv), int64(rv), op, math.MinInt32, math.MaxInt32)
			if err != nil {
				return result.Value{}, err
			}
			return result.NewWithSources(int32(v), b, left, right)
		}
	case int64:
		if rv, ok := right.GolangValue().(int64); ok {
			v, err := integerArith(b, lv, rv, op, math.MinInt64, math.MaxInt64)
			if err != nil {
				return result.Value{}, err
			}
			return result.NewWithSources(v, b, left, right)
		}
	}

	lf, lok := numeric(left)
	rf, rok := numeric(right)
	if !lok || !rok {
		return result.Value{}, evalErrorf(diag.TypeMismatch, b, "cannot apply %s to %v and %v", op, left.RuntimeType(), right.RuntimeType())
	}
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	}
	if math.IsInf(out, 0) || math.Abs(out) > maxDecimal {
		return result.Value{}, evalErrorf(diag.Overflow, b, "decimal arithmetic overflow")
	}
	return result.NewWithSources(out, b, left, right)
}

func integerArith(b model.IExpression, l, r int64, op string, min, max int64) (int64, error) {
	var out int64
	switch op {
	case "+":
		out = l + r
	case "-":
		out = l - r
	case "*":
		out = l * r
		if l != 0 && out/l != r {
			return 0, evalErrorf(diag.Overflow, b, "integer multiplication overflow")
		}
	}
	if out < min || out > max {
		return 0, evalErrorf(diag.Overflow, b, "integer arithmetic overflow")
	}
	return out, nil
}

// temporalAdd adds or subtracts a quantity from a temporal value,
// preserving the original precision. Additions below the precision are a
// no-op.
func (i *interpreter) temporalAdd(b model.IExpression, left, right result.Value, op string) (result.Value, error) {
	rq, err := result.ToQuantity(right)
	if err != nil {
		return result.Value{}, err
	}
	unit, ok := dateUnitToPrecision(rq.Unit)
	if !ok {
		return result.Value{}, evalErrorf(diag.IncompatibleUnits, b, "cannot add a quantity with unit %q to a temporal value", rq.Unit)
	}
	count := int(rq.Value)
	if op == "-" {
		count = -count
	} else if op != "+" {
		return result.Value{}, evalErrorf(diag.TypeMismatch, b, "cannot apply %s to a temporal value", op)
	}

	switch lv := left.GolangValue().(type) {
	case result.Date:
		stepped, err := datehelpers.AddQuantity(lv.Date, lv.Precision, unit, count)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		return result.NewWithSources(result.Date{Date: stepped, Precision: lv.Precision}, b, left, right)
	case result.DateTime:
		stepped, err := datehelpers.AddQuantity(lv.Date, lv.Precision, unit, count)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		return result.NewWithSources(result.DateTime{Date: stepped, Precision: lv.Precision}, b, left, right)
	case result.Time:
		stepped, err := datehelpers.AddQuantity(lv.Date, lv.Precision, unit, count)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		return result.NewWithSources(result.Time{Date: stepped, Precision: lv.Precision}, b, left, right)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, b, "internal error - temporalAdd on %v", left.RuntimeType())
}

// dateUnitToPrecision maps a temporal keyword or UCUM date unit to a
// precision.
func dateUnitToPrecision(unit string) (model.DateTimePrecision, bool) {
	cql, ok := ucum.DateUnit(unit)
	if !ok {
		return model.UNSETDATETIMEPRECISION, false
	}
	switch cql {
	case "year":
		return model.YEAR, true
	case "month":
		return model.MONTH, true
	case "week":
		return model.WEEK, true
	case "day":
		return model.DAY, true
	case "hour":
		return model.HOUR, true
	case "minute":
		return model.MINUTE, true
	case "second":
		return model.SECOND, true
	case "millisecond":
		return model.MILLISECOND, true
	}
	return model.UNSETDATETIMEPRECISION, false
}

func (i *interpreter) divideValues(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	if lq, ok := left.GolangValue().(result.Quantity); ok {
		rq, err := result.ToQuantity(right)
		if err != nil {
			return result.Value{}, err
		}
		if rq.Value == 0 {
			return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
		}
		return result.NewWithSources(result.Quantity{
			Value: lq.Value / rq.Value,
			Unit:  ucum.Quotient(lq.Unit, rq.Unit),
		}, b, left, right)
	}
	lf, err := result.ToFloat64(left)
	if err != nil {
		return result.Value{}, err
	}
	rf, err := result.ToFloat64(right)
	if err != nil {
		return result.Value{}, err
	}
	if rf == 0 {
		return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
	}
	return result.NewWithSources(lf/rf, b, left, right)
}

// truncatedDivideValues is div: integer division truncated toward zero.
func (i *interpreter) truncatedDivideValues(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	switch lv := left.GolangValue().(type) {
	case int32:
		rv, err := result.ToInt32(right)
		if err != nil {
			return result.Value{}, err
		}
		if rv == 0 {
			return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
		}
		return result.NewWithSources(lv/rv, b, left, right)
	case int64:
		rv, err := result.ToInt64(right)
		if err != nil {
			return result.Value{}, err
		}
		if rv == 0 {
			return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
		}
		return result.NewWithSources(lv/rv, b, left, right)
	}
	lf, err := result.ToFloat64(left)
	if err != nil {
		return result.Value{}, err
	}
	rf, err := result.ToFloat64(right)
	if err != nil {
		return result.Value{}, err
	}
	if rf == 0 {
		return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
	}
	return result.NewWithSources(math.Trunc(lf/rf), b, left, right)
}

// moduloValues has the sign of the divisor.
func (i *interpreter) moduloValues(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	modulo := func(l, r float64) float64 {
		m := math.Mod(l, r)
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m
	}
	switch lv := left.GolangValue().(type) {
	case int32:
		rv, err := result.ToInt32(right)
		if err != nil {
			return result.Value{}, err
		}
		if rv == 0 {
			return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
		}
		return result.NewWithSources(int32(modulo(float64(lv), float64(rv))), b, left, right)
	case int64:
		rv, err := result.ToInt64(right)
		if err != nil {
			return result.Value{}, err
		}
		if rv == 0 {
			return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
		}
		return result.NewWithSources(int64(modulo(float64(lv), float64(rv))), b, left, right)
	}
	lf, err := result.ToFloat64(left)
	if err != nil {
		return result.Value{}, err
	}
	rf, err := result.ToFloat64(right)
	if err != nil {
		return result.Value{}, err
	}
	if rf == 0 {
		return result.Value{}, evalErrorf(diag.DivisionByZero, b, "division by zero")
	}
	return result.NewWithSources(modulo(lf, rf), b, left, right)
}

// powerValues may produce decimal results for fractional or negative
// exponents on integral bases.
func (i *interpreter) powerValues(b model.IBinaryExpression, left, right result.Value) (result.Value, error) {
	lf, err := result.ToFloat64(left)
	if err != nil {
		return result.Value{}, err
	}
	rf, err := result.ToFloat64(right)
	if err != nil {
		return result.Value{}, err
	}
	out := math.Pow(lf, rf)
	if math.IsNaN(out) {
		return result.NewWithSources(nil, b, left, right)
	}
	if math.IsInf(out, 0) {
		return result.Value{}, evalErrorf(diag.Overflow, b, "power overflow")
	}

	_, lInt := left.GolangValue().(int32)
	_, rInt := right.GolangValue().(int32)
	if lInt && rInt && rf >= 0 {
		if out > math.MaxInt32 || out < math.MinInt32 {
			return result.Value{}, evalErrorf(diag.Overflow, b, "integer power overflow")
		}
		return result.NewWithSources(int32(out), b, left, right)
	}
	_, lLong := left.GolangValue().(int64)
	_, rLong := right.GolangValue().(int64)
	if (lInt || lLong) && (rInt || rLong) && rf >= 0 {
		return result.NewWithSources(int64(out), b, left, right)
	}
	return result.NewWithSources(out, b, left, right)
}

// evalIn handles membership in lists and intervals.
func (i *interpreter) evalIn(b model.IBinaryExpression, left, right result.Value, precision model.DateTimePrecision) (result.Value, error) {
	if iv, ok := right.GolangValue().(result.Interval); ok {
		v, err := i.inInterval(b, left, iv, precision)
		if err != nil {
			return result.Value{}, err
		}
		return v.WithSources(b, left, right), nil
	}
	list, err := result.ToList(right)
	if err != nil {
		return result.Value{}, err
	}
	found, err := i.listContains(list, left)
	if err != nil {
		return result.Value{}, err
	}
	return result.NewWithSources(found, b, left, right)
}

func (i *interpreter) evalContains(b model.IBinaryExpression, left, right result.Value, precision model.DateTimePrecision) (result.Value, error) {
	return i.evalIn(b, right, left, precision)
}

func (i *interpreter) evalIncludes(b model.IBinaryExpression, left, right result.Value, properly bool) (result.Value, error) {
	super, err := result.ToList(left)
	if err != nil {
		// A single element on the right behaves like Contains.
		return i.evalIn(b, right, left, model.UNSETDATETIMEPRECISION)
	}
	sub, err := result.ToList(right)
	if err != nil {
		return i.evalIn(b, right, left, model.UNSETDATETIMEPRECISION)
	}
	includes, err := i.listIncludes(super, sub)
	if err != nil {
		return result.Value{}, err
	}
	if properly {
		includes = includes && len(super) > len(sub)
	}
	return result.NewWithSources(includes, b, left, right)
}

func (i *interpreter) evalIncludedIn(b model.IBinaryExpression, left, right result.Value, precision model.DateTimePrecision, properly bool) (result.Value, error) {
	_, lIsInterval := left.GolangValue().(result.Interval)
	_, rIsInterval := right.GolangValue().(result.Interval)
	if rIsInterval && !lIsInterval {
		// A point included in an interval is membership.
		return i.evalIn(b, left, right, precision)
	}
	if lIsInterval && rIsInterval {
		name := "IncludedIn"
		if properly {
			name = "ProperlyIncludedIn"
		}
		v, err := i.intervalRelation(b, name, left, right, precision)
		if err != nil {
			return result.Value{}, err
		}
		return v.WithSources(b, left, right), nil
	}
	sub, err := result.ToList(left)
	if err != nil {
		return result.Value{}, err
	}
	super, err := result.ToList(right)
	if err != nil {
		return result.Value{}, err
	}
	includes, err := i.listIncludes(super, sub)
	if err != nil {
		return result.Value{}, err
	}
	if properly {
		includes = includes && len(super) > len(sub)
	}
	return result.NewWithSources(includes, b, left, right)
}

func (i *interpreter) relation(b model.IBinaryExpression, name string, left, right result.Value, precision model.DateTimePrecision) (result.Value, error) {
	v, err := i.intervalRelation(b, name, left, right, precision)
	if err != nil {
		return result.Value{}, err
	}
	return v.WithSources(b, left, right), nil
}

func (i *interpreter) evalDurationBetween(b model.IBinaryExpression, left, right result.Value, precision model.DateTimePrecision, difference bool) (result.Value, error) {
	low, err := result.ToDateTime(left)
	if err != nil {
		lt, tErr := result.ToTime(left)
		if tErr != nil {
			return result.Value{}, err
		}
		low = result.DateTime{Date: lt.Date, Precision: lt.Precision}
	}
	high, err := result.ToDateTime(right)
	if err != nil {
		rt, tErr := result.ToTime(right)
		if tErr != nil {
			return result.Value{}, err
		}
		high = result.DateTime{Date: rt.Date, Precision: rt.Precision}
	}
	unit := durationPrecision(precision)
	var count int64
	var ok bool
	if difference {
		count, ok, err = datehelpers.DifferenceBetween(low.Date, low.Precision, high.Date, high.Precision, unit)
	} else {
		count, ok, err = datehelpers.DurationBetween(low.Date, low.Precision, high.Date, high.Precision, unit)
	}
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
	}
	if !ok {
		// The result is uncertain below the operands' precision.
		return result.NewWithSources(nil, b, left, right)
	}
	if precision == model.WEEK {
		count /= 7
	}
	return result.NewWithSources(int32(count), b, left, right)
}

func (i *interpreter) evalCalculateAgeAt(t *model.CalculateAgeAt, left, right result.Value) (result.Value, error) {
	birth, err := result.ToDateTime(left)
	if err != nil {
		return result.Value{}, err
	}
	asOf, err := result.ToDateTime(right)
	if err != nil {
		return result.Value{}, err
	}
	unit := durationPrecision(t.Precision)
	count, ok, err := datehelpers.DurationBetween(birth.Date, birth.Precision, asOf.Date, asOf.Precision, unit)
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, t, "%v", err)
	}
	if !ok {
		return result.NewWithSources(nil, t, left, right)
	}
	if t.Precision == model.WEEK {
		count /= 7
	}
	return result.NewWithSources(int32(count), t, left, right)
}

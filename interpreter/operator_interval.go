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
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
	"github.com/octofhir/cql-go/ucum"
)

// intervalPointType returns the interval's point type, falling back to Any.
func intervalPointType(iv result.Interval) types.IType {
	if iv.StaticType != nil {
		return iv.StaticType.PointType
	}
	if iv.Low != nil && !iv.Low.IsNull() {
		return iv.Low.RuntimeType()
	}
	if iv.High != nil && !iv.High.IsNull() {
		return iv.High.RuntimeType()
	}
	return types.Any
}

// startValue resolves the inclusive start boundary. A null low bound is
// unbounded and resolves to the minimum of the point type.
func (i *interpreter) startValue(iv result.Interval, elm model.IExpression) (result.Value, error) {
	if iv.Low == nil || iv.Low.IsNull() {
		return i.minOfPoint(intervalPointType(iv), elm)
	}
	if iv.LowInclusive {
		return *iv.Low, nil
	}
	return i.evalStep(&model.Successor{UnaryExpression: &model.UnaryExpression{Expression: model.ResultType(iv.Low.RuntimeType())}}, *iv.Low, 1)
}

// endValue resolves the inclusive end boundary. A null high bound is
// unbounded and resolves to the maximum of the point type.
func (i *interpreter) endValue(iv result.Interval, elm model.IExpression) (result.Value, error) {
	if iv.High == nil || iv.High.IsNull() {
		return i.maxOfPoint(intervalPointType(iv), elm)
	}
	if iv.HighInclusive {
		return *iv.High, nil
	}
	return i.evalStep(&model.Predecessor{UnaryExpression: &model.UnaryExpression{Expression: model.ResultType(iv.High.RuntimeType())}}, *iv.High, -1)
}

func (i *interpreter) evalIntervalUnary(u model.IUnaryExpression, operand result.Value) (result.Value, error) {
	iv, err := result.ToInterval(operand)
	if err != nil {
		return result.Value{}, err
	}
	switch u.(type) {
	case *model.Start:
		v, err := i.startValue(iv, u)
		if err != nil {
			return result.Value{}, err
		}
		return v.WithSources(u, operand), nil
	case *model.End:
		v, err := i.endValue(iv, u)
		if err != nil {
			return result.Value{}, err
		}
		return v.WithSources(u, operand), nil
	case *model.Width:
		if iv.Low == nil || iv.Low.IsNull() || iv.High == nil || iv.High.IsNull() {
			return result.NewWithSources(nil, u, operand)
		}
		return i.subtractValues(u, *iv.High, *iv.Low)
	case *model.Size:
		start, err := i.startValue(iv, u)
		if err != nil {
			return result.Value{}, err
		}
		end, err := i.endValue(iv, u)
		if err != nil {
			return result.Value{}, err
		}
		diffVal, err := i.subtractValues(u, end, start)
		if err != nil {
			return result.Value{}, err
		}
		one, err := result.New(int32(1))
		if err != nil {
			return result.Value{}, err
		}
		return i.addValues(u, diffVal, one)
	case *model.PointFrom:
		start, err := i.startValue(iv, u)
		if err != nil {
			return result.Value{}, err
		}
		end, err := i.endValue(iv, u)
		if err != nil {
			return result.Value{}, err
		}
		eq, err := i.valuesEqual(start, end)
		if err != nil {
			return result.Value{}, err
		}
		if b, ok := eq.GolangValue().(bool); ok && b {
			return start.WithSources(u, operand), nil
		}
		return result.Value{}, evalErrorf(diag.TypeMismatch, u, "point from requires a unit interval")
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, u, "internal error - unsupported interval operator %T", u)
}

// evalCollapse merges overlapping or meeting intervals in a list.
func (i *interpreter) evalCollapse(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	type boundedInterval struct {
		value result.Value
		iv    result.Interval
	}
	var intervals []boundedInterval
	for _, el := range list {
		if el.IsNull() {
			continue
		}
		iv, err := result.ToInterval(el)
		if err != nil {
			return result.Value{}, err
		}
		intervals = append(intervals, boundedInterval{value: el, iv: iv})
	}
	if len(intervals) == 0 {
		return result.NewWithSources(result.List{StaticType: staticListType(u)}, u, operand)
	}

	// Sort by start.
	var sortErr error
	startOf := func(b boundedInterval) result.Value {
		v, err := i.startValue(b.iv, u)
		if err != nil {
			sortErr = err
		}
		return v
	}
	for x := 1; x < len(intervals); x++ {
		for y := x; y > 0; y-- {
			cmp, isNull, err := i.compareValues(startOf(intervals[y]), startOf(intervals[y-1]))
			if err != nil || sortErr != nil {
				if err == nil {
					err = sortErr
				}
				return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
			}
			if isNull || cmp >= 0 {
				break
			}
			intervals[y], intervals[y-1] = intervals[y-1], intervals[y]
		}
	}

	merged := []result.Interval{intervals[0].iv}
	for _, next := range intervals[1:] {
		last := &merged[len(merged)-1]
		lastEnd, err := i.endValue(*last, u)
		if err != nil {
			return result.Value{}, err
		}
		nextStart, err := i.startValue(next.iv, u)
		if err != nil {
			return result.Value{}, err
		}
		// Merge when the next interval starts at or before the successor of
		// the current end.
		succ, err := i.evalStep(&model.Successor{UnaryExpression: &model.UnaryExpression{Expression: model.ResultType(lastEnd.RuntimeType())}}, lastEnd, 1)
		if err != nil {
			// Unsteppable point types merge only on overlap.
			succ = lastEnd
		}
		cmp, isNull, err := i.compareValues(nextStart, succ)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
		}
		if !isNull && cmp <= 0 {
			// Extend the merged interval if the next reaches further.
			nextEnd, err := i.endValue(next.iv, u)
			if err != nil {
				return result.Value{}, err
			}
			endCmp, endNull, err := i.compareValues(nextEnd, lastEnd)
			if err != nil {
				return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
			}
			if !endNull && endCmp > 0 {
				last.High = next.iv.High
				last.HighInclusive = next.iv.HighInclusive
			}
			continue
		}
		merged = append(merged, next.iv)
	}

	out := make([]result.Value, 0, len(merged))
	for _, iv := range merged {
		v, err := result.New(iv)
		if err != nil {
			return result.Value{}, err
		}
		out = append(out, v)
	}
	return result.NewWithSources(result.List{Value: out, StaticType: staticListType(u)}, u, operand)
}

// inInterval tests point membership with null bounds unbounded.
func (i *interpreter) inInterval(elm model.IExpression, point result.Value, iv result.Interval, precision model.DateTimePrecision) (result.Value, error) {
	start, err := i.startValue(iv, elm)
	if err != nil {
		return result.Value{}, err
	}
	end, err := i.endValue(iv, elm)
	if err != nil {
		return result.Value{}, err
	}
	lowCmp, lowNull, err := i.compareValuesWithPrecision(point, start, precision)
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, elm, "%v", err)
	}
	highCmp, highNull, err := i.compareValuesWithPrecision(point, end, precision)
	if err != nil {
		return result.Value{}, evalErrorf(diag.TypeMismatch, elm, "%v", err)
	}
	if lowNull || highNull {
		return result.New(nil)
	}
	return result.New(lowCmp >= 0 && highCmp <= 0)
}

// intervalRelation evaluates the binary interval relations. Both operands
// are non-null intervals (or points promoted by membership callers).
func (i *interpreter) intervalRelation(b model.IExpression, name string, lObj, rObj result.Value, precision model.DateTimePrecision) (result.Value, error) {
	// Point comparisons for the before/after/same family.
	_, lIsInterval := lObj.GolangValue().(result.Interval)
	_, rIsInterval := rObj.GolangValue().(result.Interval)
	if !lIsInterval && !rIsInterval {
		cmp, isNull, err := i.compareValuesWithPrecision(lObj, rObj, precision)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if isNull {
			return result.New(nil)
		}
		switch name {
		case "Before":
			return result.New(cmp < 0)
		case "After":
			return result.New(cmp > 0)
		case "SameAs":
			return result.New(cmp == 0)
		case "SameOrBefore":
			return result.New(cmp <= 0)
		case "SameOrAfter":
			return result.New(cmp >= 0)
		}
		return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%s is not defined for points", name)
	}

	bounds := func(v result.Value) (start, end result.Value, err error) {
		if iv, ok := v.GolangValue().(result.Interval); ok {
			start, err = i.startValue(iv, b)
			if err != nil {
				return result.Value{}, result.Value{}, err
			}
			end, err = i.endValue(iv, b)
			return start, end, err
		}
		return v, v, nil
	}
	lStart, lEnd, err := bounds(lObj)
	if err != nil {
		return result.Value{}, err
	}
	rStart, rEnd, err := bounds(rObj)
	if err != nil {
		return result.Value{}, err
	}

	cmp := func(a, b2 result.Value) (int, bool, error) {
		return i.compareValuesWithPrecision(a, b2, precision)
	}

	boolOrNull := func(v int, isNull bool, test func(int) bool) (result.Value, error) {
		if isNull {
			return result.New(nil)
		}
		return result.New(test(v))
	}

	switch name {
	case "Before":
		c, isNull, err := cmp(lEnd, rStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		return boolOrNull(c, isNull, func(v int) bool { return v < 0 })
	case "After":
		c, isNull, err := cmp(lStart, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		return boolOrNull(c, isNull, func(v int) bool { return v > 0 })
	case "Meets":
		// Adjacent without overlap, on either side.
		succ, err := i.evalStep(&model.Successor{UnaryExpression: &model.UnaryExpression{Expression: model.ResultType(lEnd.RuntimeType())}}, lEnd, 1)
		if err == nil {
			c, isNull, cErr := cmp(succ, rStart)
			if cErr != nil {
				return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", cErr)
			}
			if !isNull && c == 0 {
				return result.New(true)
			}
		}
		succ2, err := i.evalStep(&model.Successor{UnaryExpression: &model.UnaryExpression{Expression: model.ResultType(rEnd.RuntimeType())}}, rEnd, 1)
		if err != nil {
			return result.New(false)
		}
		c, isNull, err := cmp(succ2, lStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		return boolOrNull(c, isNull, func(v int) bool { return v == 0 })
	case "Overlaps":
		c1, n1, err := cmp(lStart, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		c2, n2, err := cmp(rStart, lEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if n1 || n2 {
			return result.New(nil)
		}
		return result.New(c1 <= 0 && c2 <= 0)
	case "Starts":
		c1, n1, err := cmp(lStart, rStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		c2, n2, err := cmp(lEnd, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if n1 || n2 {
			return result.New(nil)
		}
		return result.New(c1 == 0 && c2 <= 0)
	case "Ends":
		c1, n1, err := cmp(lEnd, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		c2, n2, err := cmp(lStart, rStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if n1 || n2 {
			return result.New(nil)
		}
		return result.New(c1 == 0 && c2 >= 0)
	case "IncludedIn", "ProperlyIncludedIn":
		c1, n1, err := cmp(lStart, rStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		c2, n2, err := cmp(lEnd, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if n1 || n2 {
			return result.New(nil)
		}
		included := c1 >= 0 && c2 <= 0
		if name == "ProperlyIncludedIn" {
			return result.New(included && (c1 > 0 || c2 < 0))
		}
		return result.New(included)
	case "SameAs":
		c1, n1, err := cmp(lStart, rStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		c2, n2, err := cmp(lEnd, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if n1 || n2 {
			return result.New(nil)
		}
		return result.New(c1 == 0 && c2 == 0)
	case "SameOrBefore":
		c, isNull, err := cmp(lEnd, rStart)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if isNull {
			return result.New(nil)
		}
		if c < 0 {
			return result.New(true)
		}
		return i.intervalRelation(b, "SameAs", lObj, rObj, precision)
	case "SameOrAfter":
		c, isNull, err := cmp(lStart, rEnd)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, b, "%v", err)
		}
		if isNull {
			return result.New(nil)
		}
		if c > 0 {
			return result.New(true)
		}
		return i.intervalRelation(b, "SameAs", lObj, rObj, precision)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, b, "internal error - unsupported interval relation %s", name)
}

// convertQuantity converts the left quantity to the unit of the right.
func (i *interpreter) convertQuantity(b model.IBinaryExpression, lObj, rObj result.Value) (result.Value, error) {
	lq, err := result.ToQuantity(lObj)
	if err != nil {
		return result.Value{}, err
	}
	rq, err := result.ToQuantity(rObj)
	if err != nil {
		return result.Value{}, err
	}
	converted, convErr := ucum.Convert(lq.Value, lq.Unit, rq.Unit)
	if _, ok := b.(*model.CanConvertQuantity); ok {
		return result.NewWithSources(convErr == nil, b, lObj, rObj)
	}
	if convErr != nil {
		return result.Value{}, evalErrorf(diag.IncompatibleUnits, b, "%v", convErr)
	}
	return result.NewWithSources(result.Quantity{Value: converted, Unit: rq.Unit}, b, lObj, rObj)
}

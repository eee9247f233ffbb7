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
	"sort"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
	"github.com/octofhir/cql-go/ucum"
)

// evalListUnary handles the unary list operators and aggregates. The
// operand is a non-null list.
func (i *interpreter) evalListUnary(u model.IUnaryExpression, operand result.Value) (result.Value, error) {
	list, err := result.ToList(operand)
	if err != nil {
		return result.Value{}, err
	}

	switch u.(type) {
	case *model.First:
		if len(list) == 0 {
			return result.NewWithSources(nil, u, operand)
		}
		return list[0].WithSources(u, operand), nil
	case *model.Last:
		if len(list) == 0 {
			return result.NewWithSources(nil, u, operand)
		}
		return list[len(list)-1].WithSources(u, operand), nil
	case *model.Single:
		switch len(list) {
		case 0:
			return result.NewWithSources(nil, u, operand)
		case 1:
			return list[0].WithSources(u, operand), nil
		}
		return result.Value{}, evalErrorf(diag.SingletonRequired, u, "Single requires a list with exactly one element, got %d", len(list))
	case *model.SingletonFrom:
		switch len(list) {
		case 0:
			return result.NewWithSources(nil, u, operand)
		case 1:
			return list[0].WithSources(u, operand), nil
		}
		return result.Value{}, evalErrorf(diag.SingletonRequired, u, "singleton from requires a list of length 0 or 1, got %d", len(list))
	case *model.Distinct:
		out, err := i.distinctValues(list)
		if err != nil {
			return result.Value{}, err
		}
		return result.NewWithSources(result.List{Value: out, StaticType: staticListType(u)}, u, operand)
	case *model.Flatten:
		var out []result.Value
		for _, el := range list {
			if el.IsNull() {
				out = append(out, el)
				continue
			}
			inner, err := result.ToList(el)
			if err != nil {
				return result.Value{}, err
			}
			out = append(out, inner...)
		}
		return result.NewWithSources(result.List{Value: out, StaticType: staticListType(u)}, u, operand)
	case *model.Tail:
		if len(list) <= 1 {
			return result.NewWithSources(result.List{StaticType: staticListType(u)}, u, operand)
		}
		return result.NewWithSources(result.List{Value: list[1:], StaticType: staticListType(u)}, u, operand)
	case *model.Count:
		count := int32(0)
		for _, el := range list {
			if !el.IsNull() {
				count++
			}
		}
		return result.NewWithSources(count, u, operand)
	case *model.AllTrue:
		for _, el := range list {
			if el.IsNull() {
				continue
			}
			b, err := result.ToBool(el)
			if err != nil {
				return result.Value{}, err
			}
			if !b {
				return result.NewWithSources(false, u, operand)
			}
		}
		return result.NewWithSources(true, u, operand)
	case *model.AnyTrue:
		for _, el := range list {
			if el.IsNull() {
				continue
			}
			b, err := result.ToBool(el)
			if err != nil {
				return result.Value{}, err
			}
			if b {
				return result.NewWithSources(true, u, operand)
			}
		}
		return result.NewWithSources(false, u, operand)
	case *model.Sum:
		return i.evalSum(u, operand, list)
	case *model.Min, *model.Max:
		return i.evalMinMax(u, operand, list)
	case *model.Avg:
		return i.evalAvg(u, operand, list)
	case *model.Median:
		return i.evalMedian(u, operand, list)
	case *model.Mode:
		return i.evalMode(u, operand, list)
	case *model.StdDev, *model.Variance:
		return i.evalDispersion(u, operand, list)
	case *model.Collapse:
		return i.evalCollapse(u, operand, list)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, u, "internal error - unsupported list operator %T", u)
}

func staticListType(u model.IUnaryExpression) *types.List {
	if lt, ok := u.GetResultType().(*types.List); ok {
		return lt
	}
	return nil
}

// distinctValues removes duplicates by CQL equivalence, preserving order.
func (i *interpreter) distinctValues(list []result.Value) ([]result.Value, error) {
	var out []result.Value
	for _, el := range list {
		dup := false
		for _, seen := range out {
			eqv, err := i.valuesEquivalent(el, seen)
			if err != nil {
				return nil, err
			}
			if eqv {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, el)
		}
	}
	return out, nil
}

func (i *interpreter) evalSum(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	var sum float64
	var unit string
	var kind string
	count := 0
	for _, el := range list {
		if el.IsNull() {
			continue
		}
		count++
		switch v := el.GolangValue().(type) {
		case int32:
			kind, sum = pickKind(kind, "int"), sum+float64(v)
		case int64:
			kind, sum = pickKind(kind, "long"), sum+float64(v)
		case float64:
			kind, sum = pickKind(kind, "dec"), sum+v
		case result.Quantity:
			if kind == "" {
				unit = v.Unit
			}
			converted, err := ucum.Convert(v.Value, v.Unit, unit)
			if err != nil {
				return result.Value{}, evalErrorf(diag.IncompatibleUnits, u, "%v", err)
			}
			kind, sum = pickKind(kind, "qty"), sum+converted
		default:
			return result.Value{}, evalErrorf(diag.TypeMismatch, u, "Sum is not defined for %v", el.RuntimeType())
		}
	}
	if count == 0 {
		return result.NewWithSources(nil, u, operand)
	}
	switch kind {
	case "int":
		return result.NewWithSources(int32(sum), u, operand)
	case "long":
		return result.NewWithSources(int64(sum), u, operand)
	case "qty":
		return result.NewWithSources(result.Quantity{Value: sum, Unit: unit}, u, operand)
	default:
		return result.NewWithSources(sum, u, operand)
	}
}

func pickKind(current, next string) string {
	if current == "" || current == next {
		return next
	}
	// Mixed numerics widen to decimal.
	return "dec"
}

func (i *interpreter) evalMinMax(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	_, wantMax := u.(*model.Max)
	var best *result.Value
	for idx := range list {
		el := list[idx]
		if el.IsNull() {
			continue
		}
		if best == nil {
			best = &el
			continue
		}
		cmp, isNull, err := i.compareValues(el, *best)
		if err != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, u, "%v", err)
		}
		if isNull {
			continue
		}
		if (wantMax && cmp > 0) || (!wantMax && cmp < 0) {
			best = &el
		}
	}
	if best == nil {
		return result.NewWithSources(nil, u, operand)
	}
	return best.WithSources(u, operand), nil
}

// numericElems unwraps the non-null elements as float64s, converting
// quantities into the unit of the first.
func (i *interpreter) numericElems(u model.IUnaryExpression, list []result.Value) ([]float64, string, error) {
	var out []float64
	unit := ""
	for _, el := range list {
		if el.IsNull() {
			continue
		}
		if q, ok := el.GolangValue().(result.Quantity); ok {
			if len(out) == 0 {
				unit = q.Unit
			}
			converted, err := ucum.Convert(q.Value, q.Unit, unit)
			if err != nil {
				return nil, "", evalErrorf(diag.IncompatibleUnits, u, "%v", err)
			}
			out = append(out, converted)
			continue
		}
		f, err := result.ToFloat64(el)
		if err != nil {
			return nil, "", err
		}
		out = append(out, f)
	}
	return out, unit, nil
}

func (i *interpreter) evalAvg(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	elems, unit, err := i.numericElems(u, list)
	if err != nil {
		return result.Value{}, err
	}
	if len(elems) == 0 {
		return result.NewWithSources(nil, u, operand)
	}
	sum := 0.0
	for _, f := range elems {
		sum += f
	}
	avg := sum / float64(len(elems))
	if unit != "" {
		return result.NewWithSources(result.Quantity{Value: avg, Unit: unit}, u, operand)
	}
	return result.NewWithSources(avg, u, operand)
}

func (i *interpreter) evalMedian(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	elems, unit, err := i.numericElems(u, list)
	if err != nil {
		return result.Value{}, err
	}
	if len(elems) == 0 {
		return result.NewWithSources(nil, u, operand)
	}
	sort.Float64s(elems)
	mid := len(elems) / 2
	var median float64
	if len(elems)%2 == 1 {
		median = elems[mid]
	} else {
		median = (elems[mid-1] + elems[mid]) / 2
	}
	if unit != "" {
		return result.NewWithSources(result.Quantity{Value: median, Unit: unit}, u, operand)
	}
	return result.NewWithSources(median, u, operand)
}

func (i *interpreter) evalMode(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	var best *result.Value
	bestCount := 0
	for idx := range list {
		el := list[idx]
		if el.IsNull() {
			continue
		}
		count := 0
		for _, other := range list {
			eqv, err := i.valuesEquivalent(el, other)
			if err != nil {
				return result.Value{}, err
			}
			if eqv {
				count++
			}
		}
		if count > bestCount {
			best = &el
			bestCount = count
		}
	}
	if best == nil {
		return result.NewWithSources(nil, u, operand)
	}
	return best.WithSources(u, operand), nil
}

func (i *interpreter) evalDispersion(u model.IUnaryExpression, operand result.Value, list []result.Value) (result.Value, error) {
	elems, _, err := i.numericElems(u, list)
	if err != nil {
		return result.Value{}, err
	}
	if len(elems) < 2 {
		return result.NewWithSources(nil, u, operand)
	}
	mean := 0.0
	for _, f := range elems {
		mean += f
	}
	mean /= float64(len(elems))
	variance := 0.0
	for _, f := range elems {
		variance += (f - mean) * (f - mean)
	}
	variance /= float64(len(elems) - 1)
	if _, ok := u.(*model.Variance); ok {
		return result.NewWithSources(variance, u, operand)
	}
	return result.NewWithSources(math.Sqrt(variance), u, operand)
}

// indexValue implements the 0-based Indexer over lists and strings;
// out-of-range indexes are null.
func (i *interpreter) indexValue(b model.IBinaryExpression, source, index result.Value) (result.Value, error) {
	idx, err := result.ToInt32(index)
	if err != nil {
		return result.Value{}, err
	}
	if s, ok := source.GolangValue().(string); ok {
		if idx < 0 || int(idx) >= len(s) {
			return result.NewWithSources(nil, b, source, index)
		}
		return result.NewWithSources(string(s[idx]), b, source, index)
	}
	list, err := result.ToList(source)
	if err != nil {
		return result.Value{}, err
	}
	if idx < 0 || int(idx) >= len(list) {
		return result.NewWithSources(nil, b, source, index)
	}
	return list[idx].WithSources(b, source, index), nil
}

// unionValues concatenates with set semantics, preserving first-operand
// order.
func (i *interpreter) unionValues(b model.IBinaryExpression, lObj, rObj result.Value) (result.Value, error) {
	left, err := result.ToList(lObj)
	if err != nil {
		return result.Value{}, err
	}
	right, err := result.ToList(rObj)
	if err != nil {
		return result.Value{}, err
	}
	combined := make([]result.Value, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	out, err := i.distinctValues(combined)
	if err != nil {
		return result.Value{}, err
	}
	return result.NewWithSources(result.List{Value: out, StaticType: binaryStaticListType(b)}, b, lObj, rObj)
}

func (i *interpreter) intersectValues(b model.IBinaryExpression, lObj, rObj result.Value) (result.Value, error) {
	left, err := result.ToList(lObj)
	if err != nil {
		return result.Value{}, err
	}
	right, err := result.ToList(rObj)
	if err != nil {
		return result.Value{}, err
	}
	var out []result.Value
	for _, el := range left {
		found, err := i.listContains(right, el)
		if err != nil {
			return result.Value{}, err
		}
		if found {
			out = append(out, el)
		}
	}
	out, err = i.distinctValues(out)
	if err != nil {
		return result.Value{}, err
	}
	return result.NewWithSources(result.List{Value: out, StaticType: binaryStaticListType(b)}, b, lObj, rObj)
}

func (i *interpreter) exceptValues(b model.IBinaryExpression, lObj, rObj result.Value) (result.Value, error) {
	left, err := result.ToList(lObj)
	if err != nil {
		return result.Value{}, err
	}
	right, err := result.ToList(rObj)
	if err != nil {
		return result.Value{}, err
	}
	var out []result.Value
	for _, el := range left {
		found, err := i.listContains(right, el)
		if err != nil {
			return result.Value{}, err
		}
		if !found {
			out = append(out, el)
		}
	}
	out, err = i.distinctValues(out)
	if err != nil {
		return result.Value{}, err
	}
	return result.NewWithSources(result.List{Value: out, StaticType: binaryStaticListType(b)}, b, lObj, rObj)
}

func binaryStaticListType(b model.IBinaryExpression) *types.List {
	if lt, ok := b.GetResultType().(*types.List); ok {
		return lt
	}
	return nil
}

// listContains reports membership by CQL equivalence.
func (i *interpreter) listContains(list []result.Value, el result.Value) (bool, error) {
	for _, candidate := range list {
		eqv, err := i.valuesEquivalent(el, candidate)
		if err != nil {
			return false, err
		}
		if eqv {
			return true, nil
		}
	}
	return false, nil
}

// listIncludes reports whether every element of sub is in super.
func (i *interpreter) listIncludes(super, sub []result.Value) (bool, error) {
	for _, el := range sub {
		found, err := i.listContains(super, el)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func (i *interpreter) evalTakeSkip(b model.IBinaryExpression, lObj, rObj result.Value) (result.Value, error) {
	list, err := result.ToList(lObj)
	if err != nil {
		return result.Value{}, err
	}
	n, err := result.ToInt32(rObj)
	if err != nil {
		return result.Value{}, err
	}
	if n < 0 {
		n = 0
	}
	bound := int(n)
	if bound > len(list) {
		bound = len(list)
	}
	if _, ok := b.(*model.Take); ok {
		return result.NewWithSources(result.List{Value: list[:bound], StaticType: binaryStaticListType(b)}, b, lObj, rObj)
	}
	return result.NewWithSources(result.List{Value: list[bound:], StaticType: binaryStaticListType(b)}, b, lObj, rObj)
}

func (i *interpreter) evalIndexOf(b model.IBinaryExpression, lObj, rObj result.Value) (result.Value, error) {
	list, err := result.ToList(lObj)
	if err != nil {
		return result.Value{}, err
	}
	for idx, el := range list {
		eqv, err := i.valuesEquivalent(el, rObj)
		if err != nil {
			return result.Value{}, err
		}
		if eqv {
			return result.NewWithSources(int32(idx), b, lObj, rObj)
		}
	}
	return result.NewWithSources(int32(-1), b, lObj, rObj)
}

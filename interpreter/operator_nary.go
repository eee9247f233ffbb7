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
	"time"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
)

// evalNary evaluates the variadic operators.
func (i *interpreter) evalNary(n model.INaryExpression) (result.Value, error) {
	// Coalesce short-circuits on the first non-null operand.
	if _, ok := n.(*model.Coalesce); ok {
		return i.evalCoalesce(n)
	}

	ops := make([]result.Value, 0, len(n.GetOperands()))
	for _, op := range n.GetOperands() {
		v, err := i.evalExpression(op)
		if err != nil {
			return result.Value{}, err
		}
		ops = append(ops, v)
	}

	switch n.(type) {
	case *model.Now:
		return result.NewWithSources(result.DateTime{
			Date:      i.evaluationTimestamp,
			Precision: model.MILLISECOND,
		}, n)
	case *model.Today:
		return result.NewWithSources(result.Date{
			Date:      dayTruncate(i.evaluationTimestamp),
			Precision: model.DAY,
		}, n)
	case *model.TimeOfDay:
		return result.NewWithSources(timeOfDayFrom(i.evaluationTimestamp, model.MILLISECOND), n)
	}

	// The remaining operators null-propagate on any null operand, except
	// for optional trailing arguments handled per operator.
	switch n.(type) {
	case *model.Concatenate:
		var sb strings.Builder
		for _, op := range ops {
			if op.IsNull() {
				return result.NewWithSources(nil, n, ops...)
			}
			s, err := result.ToString(op)
			if err != nil {
				return result.Value{}, err
			}
			sb.WriteString(s)
		}
		return result.NewWithSources(sb.String(), n, ops...)
	case *model.Combine:
		if len(ops) == 0 || ops[0].IsNull() {
			return result.NewWithSources(nil, n, ops...)
		}
		list, err := result.ToList(ops[0])
		if err != nil {
			return result.Value{}, err
		}
		separator := ""
		if len(ops) == 2 {
			if ops[1].IsNull() {
				return result.NewWithSources(nil, n, ops...)
			}
			separator, err = result.ToString(ops[1])
			if err != nil {
				return result.Value{}, err
			}
		}
		var parts []string
		for _, el := range list {
			if el.IsNull() {
				continue
			}
			s, err := result.ToString(el)
			if err != nil {
				return result.Value{}, err
			}
			parts = append(parts, s)
		}
		return result.NewWithSources(strings.Join(parts, separator), n, ops...)
	case *model.Substring:
		if anyNull(ops) {
			return result.NewWithSources(nil, n, ops...)
		}
		s, err := result.ToString(ops[0])
		if err != nil {
			return result.Value{}, err
		}
		start, err := result.ToInt32(ops[1])
		if err != nil {
			return result.Value{}, err
		}
		if start < 0 || int(start) >= len(s) {
			return result.NewWithSources(nil, n, ops...)
		}
		end := len(s)
		if len(ops) == 3 {
			length, err := result.ToInt32(ops[2])
			if err != nil {
				return result.Value{}, err
			}
			if length < 0 {
				length = 0
			}
			if int(start)+int(length) < end {
				end = int(start) + int(length)
			}
		}
		return result.NewWithSources(s[start:end], n, ops...)
	case *model.ReplaceMatches:
		if anyNull(ops) {
			return result.NewWithSources(nil, n, ops...)
		}
		s, err := result.ToString(ops[0])
		if err != nil {
			return result.Value{}, err
		}
		pattern, err := result.ToString(ops[1])
		if err != nil {
			return result.Value{}, err
		}
		replacement, err := result.ToString(ops[2])
		if err != nil {
			return result.Value{}, err
		}
		re, reErr := regexp.Compile(pattern)
		if reErr != nil {
			return result.Value{}, evalErrorf(diag.TypeMismatch, n, "invalid regular expression: %v", reErr)
		}
		return result.NewWithSources(re.ReplaceAllString(s, replacement), n, ops...)
	case *model.Round:
		if anyNull(ops) {
			return result.NewWithSources(nil, n, ops...)
		}
		f, err := result.ToFloat64(ops[0])
		if err != nil {
			return result.Value{}, err
		}
		digits := int32(0)
		if len(ops) == 2 {
			digits, err = result.ToInt32(ops[1])
			if err != nil {
				return result.Value{}, err
			}
		}
		factor := math.Pow(10, float64(digits))
		return result.NewWithSources(math.Round(f*factor)/factor, n, ops...)
	case *model.Date:
		return i.evalDateConstructor(n, ops)
	case *model.DateTime:
		return i.evalDateTimeConstructor(n, ops)
	case *model.Time:
		return i.evalTimeConstructor(n, ops)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, n, "internal error - unsupported operator %T", n)
}

func anyNull(ops []result.Value) bool {
	for _, op := range ops {
		if op.IsNull() {
			return true
		}
	}
	return false
}

func (i *interpreter) evalCoalesce(n model.INaryExpression) (result.Value, error) {
	operands := n.GetOperands()
	// The single-list form coalesces over the list's elements.
	if len(operands) == 1 {
		v, err := i.evalExpression(operands[0])
		if err != nil {
			return result.Value{}, err
		}
		if v.IsNull() {
			return result.NewWithSources(nil, n, v)
		}
		if list, err := result.ToList(v); err == nil {
			for _, el := range list {
				if !el.IsNull() {
					return el.WithSources(n, v), nil
				}
			}
			return result.NewWithSources(nil, n, v)
		}
		return v.WithSources(n, v), nil
	}
	for _, op := range operands {
		v, err := i.evalExpression(op)
		if err != nil {
			return result.Value{}, err
		}
		if !v.IsNull() {
			return v.WithSources(n, v), nil
		}
	}
	return result.NewWithSources(nil, n)
}

// temporalComponents unwraps the integer arguments of a temporal constructor,
// stopping at the first null.
func temporalComponents(ops []result.Value) ([]int, error) {
	var out []int
	for _, op := range ops {
		if op.IsNull() {
			break
		}
		v, err := result.ToInt32(op)
		if err != nil {
			return nil, err
		}
		out = append(out, int(v))
	}
	return out, nil
}

// evalDateConstructor builds a Date with precision equal to the highest
// present component.
func (i *interpreter) evalDateConstructor(n model.INaryExpression, ops []result.Value) (result.Value, error) {
	comps, err := temporalComponents(ops)
	if err != nil {
		return result.Value{}, err
	}
	if len(comps) == 0 {
		return result.NewWithSources(nil, n, ops...)
	}
	year, month, day := comps[0], 1, 1
	precision := model.YEAR
	if len(comps) > 1 {
		month = comps[1]
		precision = model.MONTH
	}
	if len(comps) > 2 {
		day = comps[2]
		precision = model.DAY
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, i.evaluationTimestamp.Location())
	return result.NewWithSources(result.Date{Date: d, Precision: precision}, n, ops...)
}

func (i *interpreter) evalDateTimeConstructor(n model.INaryExpression, ops []result.Value) (result.Value, error) {
	comps, err := temporalComponents(ops)
	if err != nil {
		return result.Value{}, err
	}
	if len(comps) == 0 {
		return result.NewWithSources(nil, n, ops...)
	}
	vals := []int{0, 1, 1, 0, 0, 0, 0}
	precisions := []model.DateTimePrecision{
		model.YEAR, model.MONTH, model.DAY, model.HOUR,
		model.MINUTE, model.SECOND, model.MILLISECOND,
	}
	precision := model.YEAR
	for idx, c := range comps {
		if idx >= len(vals) {
			break
		}
		vals[idx] = c
		precision = precisions[idx]
	}
	d := time.Date(vals[0], time.Month(vals[1]), vals[2], vals[3], vals[4], vals[5],
		vals[6]*int(time.Millisecond), i.evaluationTimestamp.Location())
	return result.NewWithSources(result.DateTime{Date: d, Precision: precision}, n, ops...)
}

func (i *interpreter) evalTimeConstructor(n model.INaryExpression, ops []result.Value) (result.Value, error) {
	comps, err := temporalComponents(ops)
	if err != nil {
		return result.Value{}, err
	}
	if len(comps) == 0 {
		return result.NewWithSources(nil, n, ops...)
	}
	vals := []int{0, 0, 0, 0}
	precisions := []model.DateTimePrecision{
		model.HOUR, model.MINUTE, model.SECOND, model.MILLISECOND,
	}
	precision := model.HOUR
	for idx, c := range comps {
		if idx >= len(vals) {
			break
		}
		vals[idx] = c
		precision = precisions[idx]
	}
	d := time.Date(0, time.January, 1, vals[0], vals[1], vals[2],
		vals[3]*int(time.Millisecond), time.UTC)
	return result.NewWithSources(result.Time{Date: d, Precision: precision}, n, ops...)
}

// dayTruncate zeroes the time-of-day components, keeping the location.
func dayTruncate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// timeOfDayFrom extracts the wall-clock time as a Time value.
func timeOfDayFrom(t time.Time, precision model.DateTimePrecision) result.Time {
	return result.Time{
		Date: time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(),
			(t.Nanosecond()/int(time.Millisecond))*int(time.Millisecond), time.UTC),
		Precision: precision,
	}
}

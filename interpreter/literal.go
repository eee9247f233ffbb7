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
	"strconv"
	"strings"
	"time"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
)

// evalLiteral materializes a literal value from its canonical source form.
func (i *interpreter) evalLiteral(l *model.Literal) (result.Value, error) {
	switch t := l.GetResultType().(type) {
	case types.System:
		switch t {
		case types.Any:
			if l.Value == "null" {
				return result.NewWithSources(nil, l)
			}
		case types.Boolean:
			return result.NewWithSources(l.Value == "true", l)
		case types.Integer:
			v, err := strconv.ParseInt(l.Value, 10, 32)
			if err != nil {
				return result.Value{}, evalErrorf(diag.Overflow, l, "integer literal %s out of range", l.Value)
			}
			return result.NewWithSources(int32(v), l)
		case types.Long:
			v, err := strconv.ParseInt(strings.TrimSuffix(l.Value, "L"), 10, 64)
			if err != nil {
				return result.Value{}, evalErrorf(diag.Overflow, l, "long literal %s out of range", l.Value)
			}
			return result.NewWithSources(v, l)
		case types.Decimal:
			v, err := strconv.ParseFloat(l.Value, 64)
			if err != nil {
				return result.Value{}, evalErrorf(diag.Overflow, l, "invalid decimal literal %s", l.Value)
			}
			return result.NewWithSources(v, l)
		case types.String:
			return result.NewWithSources(l.Value, l)
		case types.Date:
			d, prec, err := datehelpers.ParseDate(strings.TrimPrefix(l.Value, "@"), i.evaluationTimestamp.Location())
			if err != nil {
				return result.Value{}, evalErrorf(diag.InvalidDateTime, l, "%v", err)
			}
			return result.NewWithSources(result.Date{Date: d, Precision: prec}, l)
		case types.DateTime:
			d, prec, err := datehelpers.ParseDateTime(strings.TrimPrefix(l.Value, "@"), i.evaluationTimestamp.Location())
			if err != nil {
				return result.Value{}, evalErrorf(diag.InvalidDateTime, l, "%v", err)
			}
			return result.NewWithSources(result.DateTime{Date: d, Precision: prec}, l)
		case types.Time:
			d, prec, err := datehelpers.ParseTime(strings.TrimPrefix(l.Value, "@T"))
			if err != nil {
				return result.Value{}, evalErrorf(diag.InvalidDateTime, l, "%v", err)
			}
			return result.NewWithSources(result.Time{Date: d, Precision: prec}, l)
		}
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, l, "internal error - unsupported literal type %v", l.GetResultType())
}

func (i *interpreter) evalQuantity(q *model.Quantity) (result.Value, error) {
	return result.NewWithSources(result.Quantity{Value: q.Value, Unit: q.Unit}, q)
}

func (i *interpreter) evalRatio(r *model.Ratio) (result.Value, error) {
	return result.NewWithSources(result.Ratio{
		Numerator:   result.Quantity{Value: r.Numerator.Value, Unit: r.Numerator.Unit},
		Denominator: result.Quantity{Value: r.Denominator.Value, Unit: r.Denominator.Unit},
	}, r)
}

func (i *interpreter) evalCodeSelector(c *model.Code) (result.Value, error) {
	code := result.Code{Code: c.Code, Display: c.Display}
	if c.System != nil {
		csVal, err := i.evalExpression(c.System)
		if err != nil {
			return result.Value{}, err
		}
		cs, err := result.ToCodeSystem(csVal)
		if err != nil {
			return result.Value{}, err
		}
		code.System = cs.ID
		code.Version = cs.Version
	}
	return result.NewWithSources(code, c)
}

func (i *interpreter) evalIntervalSelector(e *model.Interval) (result.Value, error) {
	interval := result.Interval{
		LowInclusive:  e.LowInclusive,
		HighInclusive: e.HighInclusive,
	}
	if st, ok := e.GetResultType().(*types.Interval); ok {
		interval.StaticType = st
	}
	if e.Low != nil {
		low, err := i.evalExpression(e.Low)
		if err != nil {
			return result.Value{}, err
		}
		interval.Low = &low
	}
	if e.High != nil {
		high, err := i.evalExpression(e.High)
		if err != nil {
			return result.Value{}, err
		}
		interval.High = &high
	}
	// Bound flags may be forwarded from another interval through
	// expressions.
	if e.LowClosedExpression != nil {
		v, err := i.evalExpression(e.LowClosedExpression)
		if err != nil {
			return result.Value{}, err
		}
		if b, ok := v.GolangValue().(bool); ok {
			interval.LowInclusive = b
		}
	}
	if e.HighClosedExpression != nil {
		v, err := i.evalExpression(e.HighClosedExpression)
		if err != nil {
			return result.Value{}, err
		}
		if b, ok := v.GolangValue().(bool); ok {
			interval.HighInclusive = b
		}
	}
	return result.NewWithSources(interval, e)
}

func (i *interpreter) evalListSelector(e *model.List) (result.Value, error) {
	elems := make([]result.Value, 0, len(e.List))
	for _, el := range e.List {
		v, err := i.evalExpression(el)
		if err != nil {
			return result.Value{}, err
		}
		elems = append(elems, v)
	}
	list := result.List{Value: elems}
	if st, ok := e.GetResultType().(*types.List); ok {
		list.StaticType = st
	}
	return result.NewWithSources(list, e)
}

func (i *interpreter) evalTupleSelector(e *model.Tuple) (result.Value, error) {
	values := make(map[string]result.Value, len(e.Elements))
	for _, el := range e.Elements {
		v, err := i.evalExpression(el.Value)
		if err != nil {
			return result.Value{}, err
		}
		values[el.Name] = v
	}
	return result.NewWithSources(result.Tuple{Value: values, RuntimeType: e.GetResultType()}, e)
}

func (i *interpreter) evalInstance(e *model.Instance) (result.Value, error) {
	values := make(map[string]result.Value, len(e.Elements))
	for _, el := range e.Elements {
		v, err := i.evalExpression(el.Value)
		if err != nil {
			return result.Value{}, err
		}
		values[el.Name] = v
	}
	return result.NewWithSources(result.Tuple{Value: values, RuntimeType: e.ClassType}, e)
}

func (i *interpreter) evalMinValue(e *model.MinValue) (result.Value, error) {
	return minValueOf(e.ValueType, e, i.evaluationTimestamp.Location())
}

func (i *interpreter) evalMaxValue(e *model.MaxValue) (result.Value, error) {
	return maxValueOf(e.ValueType, e, i.evaluationTimestamp.Location())
}

func minValueOf(t types.IType, elm model.IExpression, loc *time.Location) (result.Value, error) {
	switch t {
	case types.Integer:
		return result.NewWithSources(int32(math.MinInt32), elm)
	case types.Long:
		return result.NewWithSources(int64(math.MinInt64), elm)
	case types.Decimal:
		return result.NewWithSources(-maxDecimal, elm)
	case types.Date:
		return result.NewWithSources(result.Date{
			Date:      time.Date(1, time.January, 1, 0, 0, 0, 0, loc),
			Precision: model.DAY,
		}, elm)
	case types.DateTime:
		return result.NewWithSources(result.DateTime{
			Date:      time.Date(1, time.January, 1, 0, 0, 0, 0, loc),
			Precision: model.MILLISECOND,
		}, elm)
	case types.Time:
		return result.NewWithSources(result.Time{
			Date:      time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC),
			Precision: model.MILLISECOND,
		}, elm)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, elm, "minimum is not defined for type %v", t)
}

func maxValueOf(t types.IType, elm model.IExpression, loc *time.Location) (result.Value, error) {
	switch t {
	case types.Integer:
		return result.NewWithSources(int32(math.MaxInt32), elm)
	case types.Long:
		return result.NewWithSources(int64(math.MaxInt64), elm)
	case types.Decimal:
		return result.NewWithSources(maxDecimal, elm)
	case types.Date:
		return result.NewWithSources(result.Date{
			Date:      time.Date(9999, time.December, 31, 0, 0, 0, 0, loc),
			Precision: model.DAY,
		}, elm)
	case types.DateTime:
		return result.NewWithSources(result.DateTime{
			Date:      time.Date(9999, time.December, 31, 23, 59, 59, 999*int(time.Millisecond), loc),
			Precision: model.MILLISECOND,
		}, elm)
	case types.Time:
		return result.NewWithSources(result.Time{
			Date:      time.Date(0, time.January, 1, 23, 59, 59, 999*int(time.Millisecond), time.UTC),
			Precision: model.MILLISECOND,
		}, elm)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, elm, "maximum is not defined for type %v", t)
}

// maxDecimal mirrors the CQL specification's decimal boundary.
const maxDecimal = 99999999999999999999.99999999

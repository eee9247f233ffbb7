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
	"strconv"
	"strings"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
	"github.com/octofhir/cql-go/ucum"
)

// evalAs implements the cast operator: non-strict casts return null on
// mismatch, strict casts fail.
func (i *interpreter) evalAs(a *model.As) (result.Value, error) {
	operand, err := i.evalExpression(a.GetOperand())
	if err != nil {
		return result.Value{}, err
	}
	if operand.IsNull() {
		return result.NewWithSources(nil, a, operand)
	}
	if types.SubTypeOf(operand.RuntimeType(), a.AsTypeSpecifier, i.registry) {
		return operand.WithSources(a, operand), nil
	}
	if a.Strict {
		return result.Value{}, evalErrorf(diag.StrictCastFailed, a, "cannot cast %v as %v", operand.RuntimeType(), a.AsTypeSpecifier)
	}
	return result.NewWithSources(nil, a, operand)
}

// evalIs is a total predicate over the runtime type.
func (i *interpreter) evalIs(e *model.Is) (result.Value, error) {
	operand, err := i.evalExpression(e.GetOperand())
	if err != nil {
		return result.Value{}, err
	}
	if operand.IsNull() {
		return result.NewWithSources(false, e, operand)
	}
	return result.NewWithSources(types.SubTypeOf(operand.RuntimeType(), e.IsTypeSpecifier, i.registry), e, operand)
}

// evalConversion implements the ToX explicit conversions. The operand is
// non-null.
func (i *interpreter) evalConversion(u model.IUnaryExpression, operand result.Value) (result.Value, error) {
	switch u.(type) {
	case *model.ToBoolean:
		v, ok := convertToBoolean(operand)
		if !ok {
			return result.NewWithSources(nil, u, operand)
		}
		return result.NewWithSources(v, u, operand)
	case *model.ToInteger:
		switch v := operand.GolangValue().(type) {
		case int32:
			return result.NewWithSources(v, u, operand)
		case int64:
			if v > 2147483647 || v < -2147483648 {
				return result.Value{}, evalErrorf(diag.Overflow, u, "ToInteger overflows for %d", v)
			}
			return result.NewWithSources(int32(v), u, operand)
		case bool:
			if v {
				return result.NewWithSources(int32(1), u, operand)
			}
			return result.NewWithSources(int32(0), u, operand)
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
			if err != nil {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(int32(parsed), u, operand)
		}
	case *model.ToLong:
		switch v := operand.GolangValue().(type) {
		case int64:
			return result.NewWithSources(v, u, operand)
		case int32:
			return result.NewWithSources(int64(v), u, operand)
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(parsed, u, operand)
		}
	case *model.ToDecimal:
		switch v := operand.GolangValue().(type) {
		case float64:
			return result.NewWithSources(v, u, operand)
		case int32:
			return result.NewWithSources(float64(v), u, operand)
		case int64:
			return result.NewWithSources(float64(v), u, operand)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(parsed, u, operand)
		case result.Quantity:
			// Value extraction.
			return result.NewWithSources(v.Value, u, operand)
		}
	case *model.ToString:
		s, ok, err := valueToString(operand)
		if err != nil {
			return result.Value{}, err
		}
		if !ok {
			return result.NewWithSources(nil, u, operand)
		}
		return result.NewWithSources(s, u, operand)
	case *model.ToQuantity:
		switch v := operand.GolangValue().(type) {
		case result.Quantity:
			return result.NewWithSources(v, u, operand)
		case int32:
			return result.NewWithSources(result.Quantity{Value: float64(v), Unit: ucum.OneUnit}, u, operand)
		case int64:
			return result.NewWithSources(result.Quantity{Value: float64(v), Unit: ucum.OneUnit}, u, operand)
		case float64:
			return result.NewWithSources(result.Quantity{Value: v, Unit: ucum.OneUnit}, u, operand)
		case string:
			q, ok := parseQuantityString(v)
			if !ok {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(q, u, operand)
		}
	case *model.ToConcept:
		c, err := result.ToConcept(operand)
		if err != nil {
			// A list of codes converts element-wise.
			list, listErr := result.ToList(operand)
			if listErr != nil {
				return result.NewWithSources(nil, u, operand)
			}
			var codes []*result.Code
			for _, el := range list {
				if el.IsNull() {
					codes = append(codes, nil)
					continue
				}
				code, err := result.ToCode(el)
				if err != nil {
					return result.NewWithSources(nil, u, operand)
				}
				codes = append(codes, &code)
			}
			return result.NewWithSources(result.Concept{Codes: codes}, u, operand)
		}
		return result.NewWithSources(c, u, operand)
	case *model.ToDate:
		switch v := operand.GolangValue().(type) {
		case result.Date:
			return result.NewWithSources(v, u, operand)
		case result.DateTime:
			prec := v.Precision
			if precIsTimeValued(prec) {
				prec = model.DAY
			}
			return result.NewWithSources(result.Date{Date: dayTruncate(v.Date), Precision: prec}, u, operand)
		case string:
			d, prec, err := datehelpers.ParseDate(strings.TrimPrefix(v, "@"), i.evaluationTimestamp.Location())
			if err != nil {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(result.Date{Date: d, Precision: prec}, u, operand)
		}
	case *model.ToDateTime:
		switch v := operand.GolangValue().(type) {
		case result.DateTime:
			return result.NewWithSources(v, u, operand)
		case result.Date:
			return result.NewWithSources(result.DateTime{Date: v.Date, Precision: v.Precision}, u, operand)
		case string:
			d, prec, err := datehelpers.ParseDateTime(strings.TrimPrefix(v, "@"), i.evaluationTimestamp.Location())
			if err != nil {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(result.DateTime{Date: d, Precision: prec}, u, operand)
		}
	case *model.ToTime:
		switch v := operand.GolangValue().(type) {
		case result.Time:
			return result.NewWithSources(v, u, operand)
		case result.DateTime:
			if !precIsTimeValued(v.Precision) {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(timeOfDayFrom(v.Date, v.Precision), u, operand)
		case string:
			d, prec, err := datehelpers.ParseTime(strings.TrimPrefix(strings.TrimPrefix(v, "@"), "T"))
			if err != nil {
				return result.NewWithSources(nil, u, operand)
			}
			return result.NewWithSources(result.Time{Date: d, Precision: prec}, u, operand)
		}
	}
	return result.NewWithSources(nil, u, operand)
}

// evalConvertsTo implements the ConvertsToX predicates, which are total and
// true for null.
func (i *interpreter) evalConvertsTo(u model.IUnaryExpression, operand result.Value) (result.Value, error) {
	if operand.IsNull() {
		return result.NewWithSources(true, u, operand)
	}
	conversion := func() model.IUnaryExpression {
		base := &model.UnaryExpression{Expression: model.ResultType(types.Any), Operand: nil}
		switch u.(type) {
		case *model.ConvertsToBoolean:
			return &model.ToBoolean{UnaryExpression: base}
		case *model.ConvertsToDate:
			return &model.ToDate{UnaryExpression: base}
		case *model.ConvertsToDateTime:
			return &model.ToDateTime{UnaryExpression: base}
		case *model.ConvertsToDecimal:
			return &model.ToDecimal{UnaryExpression: base}
		case *model.ConvertsToInteger:
			return &model.ToInteger{UnaryExpression: base}
		case *model.ConvertsToLong:
			return &model.ToLong{UnaryExpression: base}
		case *model.ConvertsToQuantity:
			return &model.ToQuantity{UnaryExpression: base}
		case *model.ConvertsToString:
			return &model.ToString{UnaryExpression: base}
		default:
			return &model.ToTime{UnaryExpression: base}
		}
	}()
	converted, err := i.evalConversion(conversion, operand)
	if err != nil {
		// A hard failure, such as overflow, means the value does not
		// convert.
		return result.NewWithSources(false, u, operand)
	}
	return result.NewWithSources(!converted.IsNull(), u, operand)
}

func convertToBoolean(v result.Value) (bool, bool) {
	switch t := v.GolangValue().(type) {
	case bool:
		return t, true
	case int32:
		return t != 0, true
	case string:
		switch strings.ToLower(t) {
		case "true", "t", "yes", "y", "1":
			return true, true
		case "false", "f", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

// valueToString prints a value in its CQL literal form.
func valueToString(v result.Value) (string, bool, error) {
	switch t := v.GolangValue().(type) {
	case string:
		return t, true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case int32:
		return strconv.FormatInt(int64(t), 10), true, nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case result.Quantity:
		return strconv.FormatFloat(t.Value, 'f', -1, 64) + " '" + t.Unit + "'", true, nil
	case result.Date:
		s, err := datehelpers.DateString(t.Date, t.Precision)
		if err != nil {
			return "", false, err
		}
		return s, true, nil
	case result.DateTime:
		s, err := datehelpers.DateTimeString(t.Date, t.Precision)
		if err != nil {
			return "", false, err
		}
		return s, true, nil
	case result.Time:
		s, err := datehelpers.TimeString(t.Date, t.Precision)
		if err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	return "", false, nil
}

// parseQuantityString parses "<decimal> '<unit>'" quantity strings.
func parseQuantityString(s string) (result.Quantity, bool) {
	s = strings.TrimSpace(s)
	valuePart := s
	unit := ucum.OneUnit
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		valuePart = s[:idx]
		unitPart := strings.TrimSpace(s[idx+1:])
		unitPart = strings.TrimPrefix(unitPart, "'")
		unitPart = strings.TrimSuffix(unitPart, "'")
		if unitPart != "" {
			unit = unitPart
		}
	}
	value, err := strconv.ParseFloat(valuePart, 64)
	if err != nil {
		return result.Quantity{}, false
	}
	return result.Quantity{Value: value, Unit: unit}, true
}

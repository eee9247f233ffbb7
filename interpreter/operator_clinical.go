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
	"errors"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/retriever"
	"github.com/octofhir/cql-go/terminology"
	"github.com/octofhir/cql-go/types"
)

// codesOf extracts terminology codes from a value: a Code, a Concept, a
// list of either, or resource tuples shaped like codings.
func codesOf(v result.Value) []terminology.Code {
	var out []terminology.Code
	switch t := v.GolangValue().(type) {
	case result.Code:
		out = append(out, terminology.Code{Code: t.Code, System: t.System, Display: t.Display})
	case result.Concept:
		for _, c := range t.Codes {
			if c != nil {
				out = append(out, terminology.Code{Code: c.Code, System: c.System, Display: c.Display})
			}
		}
	case string:
		out = append(out, terminology.Code{Code: t})
	case result.List:
		for _, el := range t.Value {
			out = append(out, codesOf(el)...)
		}
	case result.Tuple:
		// Coding-shaped tuples carry code/system pairs, CodeableConcept
		// shaped tuples carry a coding list.
		code, hasCode := t.Value["code"]
		if hasCode {
			if codeStr, ok := code.GolangValue().(string); ok {
				c := terminology.Code{Code: codeStr}
				if system, ok := t.Value["system"]; ok {
					if systemStr, ok := system.GolangValue().(string); ok {
						c.System = systemStr
					}
				}
				out = append(out, c)
			} else {
				out = append(out, codesOf(code)...)
			}
		}
		if coding, ok := t.Value["coding"]; ok {
			out = append(out, codesOf(coding)...)
		}
	}
	return out
}

// evalInValueSet asks the terminology provider for value set membership.
// Provider misses propagate as null.
func (i *interpreter) evalInValueSet(e *model.InValueSet, left, right result.Value) (result.Value, error) {
	if i.terminologyProvider == nil {
		return result.NewWithSources(nil, e, left, right)
	}
	vs, err := result.ToValueSet(right)
	if err != nil {
		return result.Value{}, err
	}
	for _, code := range codesOf(left) {
		member, err := i.terminologyProvider.InValueSet(code, vs.ID, vs.Version)
		if err != nil {
			if errors.Is(err, terminology.ErrNotFound) {
				return result.NewWithSources(nil, e, left, right)
			}
			return result.Value{}, evalErrorf(diag.NotRetrievable, e, "terminology provider: %v", err)
		}
		if member {
			return result.NewWithSources(true, e, left, right)
		}
	}
	return result.NewWithSources(false, e, left, right)
}

// evalInCodeSystem asks the terminology provider for code system
// membership.
func (i *interpreter) evalInCodeSystem(e *model.InCodeSystem, left, right result.Value) (result.Value, error) {
	if i.terminologyProvider == nil {
		return result.NewWithSources(nil, e, left, right)
	}
	cs, err := result.ToCodeSystem(right)
	if err != nil {
		return result.Value{}, err
	}
	for _, code := range codesOf(left) {
		member, err := i.terminologyProvider.InCodeSystem(code, cs.ID, cs.Version)
		if err != nil {
			if errors.Is(err, terminology.ErrNotFound) {
				return result.NewWithSources(nil, e, left, right)
			}
			return result.Value{}, evalErrorf(diag.NotRetrievable, e, "terminology provider: %v", err)
		}
		if member {
			return result.NewWithSources(true, e, left, right)
		}
	}
	return result.NewWithSources(false, e, left, right)
}

// evalRetrieve fetches resources through the data retriever and applies the
// code and date filters to the returned handles.
func (i *interpreter) evalRetrieve(r *model.Retrieve) (result.Value, error) {
	if i.retriever == nil {
		return result.Value{}, evalErrorf(diag.NotRetrievable, r, "no data retriever is configured")
	}

	query := retriever.Query{
		Context:      r.Context,
		DataType:     r.DataType,
		TemplateID:   r.TemplateID,
		CodeProperty: r.CodeProperty,
		DateProperty: r.DateProperty,
	}

	// The codes filter is a value set reference or a list of codes.
	var filterValueSet *result.ValueSet
	var filterCodes []terminology.Code
	if r.Codes != nil {
		codesVal, err := i.evalExpression(r.Codes)
		if err != nil {
			return result.Value{}, err
		}
		if !codesVal.IsNull() {
			if vs, err := result.ToValueSet(codesVal); err == nil {
				filterValueSet = &vs
				query.ValueSetID = vs.ID
			} else {
				filterCodes = codesOf(codesVal)
				query.Codes = filterCodes
			}
		}
	}
	var dateLow, dateHigh *result.Value
	if r.DateRange != nil {
		rangeVal, err := i.evalExpression(r.DateRange)
		if err != nil {
			return result.Value{}, err
		}
		if iv, ok := rangeVal.GolangValue().(result.Interval); ok {
			dateLow, dateHigh = iv.Low, iv.High
			query.DateRangeLow, query.DateRangeHigh = iv.Low, iv.High
		}
	}

	resources, err := i.retriever.Retrieve(i.ctx, query)
	if err != nil {
		return result.Value{}, evalErrorf(diag.NotRetrievable, r, "data retriever: %v", err)
	}

	var out []result.Value
	for _, resource := range resources {
		keep := true
		if r.CodeProperty != "" && (filterValueSet != nil || len(filterCodes) > 0) {
			keep, err = i.resourceMatchesCodes(r, resource, filterValueSet, filterCodes)
			if err != nil {
				return result.Value{}, err
			}
		}
		if keep && r.DateProperty != "" && (dateLow != nil || dateHigh != nil) {
			keep, err = i.resourceInDateRange(r, resource, dateLow, dateHigh)
			if err != nil {
				return result.Value{}, err
			}
		}
		if keep {
			out = append(out, resource)
		}
	}
	list := result.List{Value: out}
	if lt, ok := r.GetResultType().(*types.List); ok {
		list.StaticType = lt
	}
	return result.NewWithSources(list, r)
}

func (i *interpreter) resourceMatchesCodes(r *model.Retrieve, resource result.Value, vs *result.ValueSet, codes []terminology.Code) (bool, error) {
	propVal, err := i.propertyOf(r, resource, r.CodeProperty)
	if err != nil {
		return false, err
	}
	resourceCodes := codesOf(propVal)
	if vs != nil {
		if i.terminologyProvider == nil {
			return false, evalErrorf(diag.NotRetrievable, r, "a terminology provider is required for valueset-filtered retrieves")
		}
		for _, code := range resourceCodes {
			member, err := i.terminologyProvider.InValueSet(code, vs.ID, vs.Version)
			if err != nil {
				if errors.Is(err, terminology.ErrNotFound) {
					continue
				}
				return false, evalErrorf(diag.NotRetrievable, r, "terminology provider: %v", err)
			}
			if member {
				return true, nil
			}
		}
		return false, nil
	}
	for _, code := range resourceCodes {
		for _, filter := range codes {
			if code.Code == filter.Code && (filter.System == "" || code.System == filter.System) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (i *interpreter) resourceInDateRange(r *model.Retrieve, resource result.Value, low, high *result.Value) (bool, error) {
	propVal, err := i.propertyOf(r, resource, r.DateProperty)
	if err != nil {
		return false, err
	}
	if propVal.IsNull() {
		return false, nil
	}
	if low != nil && !low.IsNull() {
		cmp, isNull, err := i.compareValues(propVal, *low)
		if err != nil || isNull || cmp < 0 {
			return false, err
		}
	}
	if high != nil && !high.IsNull() {
		cmp, isNull, err := i.compareValues(propVal, *high)
		if err != nil || isNull || cmp > 0 {
			return false, err
		}
	}
	return true, nil
}

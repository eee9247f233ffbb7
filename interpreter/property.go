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
)

// evalProperty accesses a member of a structured value. Property access on
// a list maps over the elements; absent properties are null unless strict
// mode is on.
func (i *interpreter) evalProperty(p *model.Property) (result.Value, error) {
	source, err := i.evalExpression(p.Source)
	if err != nil {
		return result.Value{}, err
	}
	v, err := i.propertyOf(p, source, p.Path)
	if err != nil {
		return result.Value{}, err
	}
	return v.WithSources(p, source), nil
}

func (i *interpreter) propertyOf(elm model.IExpression, source result.Value, path string) (result.Value, error) {
	if source.IsNull() {
		return result.New(nil)
	}
	switch v := source.GolangValue().(type) {
	case result.Tuple:
		member, ok := v.Value[path]
		if !ok {
			if i.strictProperties {
				return result.Value{}, evalErrorf(diag.UnknownProperty, elm, "property %q is not present on %v", path, source.RuntimeType())
			}
			return result.New(nil)
		}
		return member, nil
	case result.Quantity:
		switch path {
		case "value":
			return result.New(v.Value)
		case "unit":
			return result.New(v.Unit)
		}
	case result.Ratio:
		switch path {
		case "numerator":
			return result.New(v.Numerator)
		case "denominator":
			return result.New(v.Denominator)
		}
	case result.Code:
		switch path {
		case "code":
			return result.New(v.Code)
		case "system":
			return result.New(v.System)
		case "version":
			return result.New(v.Version)
		case "display":
			return result.New(v.Display)
		}
	case result.Concept:
		switch path {
		case "display":
			return result.New(v.Display)
		case "codes":
			elems := make([]result.Value, 0, len(v.Codes))
			for _, c := range v.Codes {
				if c == nil {
					nv, err := result.New(nil)
					if err != nil {
						return result.Value{}, err
					}
					elems = append(elems, nv)
					continue
				}
				cv, err := result.New(*c)
				if err != nil {
					return result.Value{}, err
				}
				elems = append(elems, cv)
			}
			return result.New(result.List{Value: elems})
		}
	case result.Interval:
		switch path {
		case "low":
			if v.Low == nil {
				return result.New(nil)
			}
			return *v.Low, nil
		case "high":
			if v.High == nil {
				return result.New(nil)
			}
			return *v.High, nil
		case "lowClosed":
			return result.New(v.LowInclusive)
		case "highClosed":
			return result.New(v.HighInclusive)
		}
	case result.List:
		// Property access maps over the list.
		out := make([]result.Value, 0, len(v.Value))
		for _, el := range v.Value {
			pv, err := i.propertyOf(elm, el, path)
			if err != nil {
				return result.Value{}, err
			}
			out = append(out, pv)
		}
		return result.New(result.List{Value: out})
	}
	if i.strictProperties {
		return result.Value{}, evalErrorf(diag.UnknownProperty, elm, "property %q is not present on %v", path, source.RuntimeType())
	}
	return result.New(nil)
}

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

package modelinfo

import (
	"testing"

	"github.com/octofhir/cql-go/types"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(&InMemory{
		ModelName:    "SIMPLE",
		ModelURI:     "urn:test:simple",
		ModelVersion: "1.0",
		Types: map[string]*TypeInfo{
			"SIMPLE.Resource": {Name: "SIMPLE.Resource", Properties: map[string]types.IType{
				"id": types.String,
			}},
			"SIMPLE.Observation": {
				Name:            "SIMPLE.Observation",
				BaseType:        "SIMPLE.Resource",
				Retrievable:     true,
				PrimaryCodePath: "code",
				Properties: map[string]types.IType{
					"code":  types.Code,
					"value": types.Quantity,
				},
			},
		},
	})
	if err := r.SetUsing("SIMPLE", "1.0"); err != nil {
		t.Fatalf("SetUsing: %v", err)
	}
	return r
}

func TestResolveType(t *testing.T) {
	r := testRegistry(t)
	got, err := r.ResolveType("Observation")
	if err != nil {
		t.Fatalf("ResolveType: %v", err)
	}
	if !got.Equal(&types.Named{Name: "SIMPLE.Observation"}) {
		t.Errorf("ResolveType = %v", got)
	}
	if got, err := r.ResolveType("Integer"); err != nil || got != types.Integer {
		t.Errorf("ResolveType(Integer) = %v, %v", got, err)
	}
	if _, err := r.ResolveType("Nonexistent"); err == nil {
		t.Error("ResolveType accepted an unknown type")
	}
}

func TestSetUsingValidation(t *testing.T) {
	r := NewRegistry(&InMemory{ModelName: "M", ModelVersion: "2.0"})
	if err := r.SetUsing("M", "2.0"); err != nil {
		t.Errorf("SetUsing matching version: %v", err)
	}
	if err := r.SetUsing("M", "9.9"); err == nil {
		t.Error("SetUsing accepted a version mismatch")
	}
	if err := r.SetUsing("Missing", ""); err == nil {
		t.Error("SetUsing accepted an unregistered model")
	}
}

func TestPropertyType(t *testing.T) {
	r := testRegistry(t)
	obs := &types.Named{Name: "SIMPLE.Observation"}

	got, err := r.PropertyType(obs, "value")
	if err != nil || got != types.Quantity {
		t.Errorf("PropertyType(value) = %v, %v", got, err)
	}
	// Inherited property through the base type.
	got, err = r.PropertyType(obs, "id")
	if err != nil || got != types.String {
		t.Errorf("PropertyType(id) = %v, %v", got, err)
	}
	if _, err := r.PropertyType(obs, "nope"); err == nil {
		t.Error("PropertyType accepted an unknown property")
	}

	// System structured types.
	got, err = r.PropertyType(types.Quantity, "value")
	if err != nil || got != types.Decimal {
		t.Errorf("PropertyType(Quantity.value) = %v, %v", got, err)
	}
	// Lists map property access over the elements.
	got, err = r.PropertyType(&types.List{ElementType: obs}, "value")
	if err != nil || !got.Equal(&types.List{ElementType: types.Quantity}) {
		t.Errorf("PropertyType(List<Observation>.value) = %v, %v", got, err)
	}
	// Intervals expose bounds.
	got, err = r.PropertyType(&types.Interval{PointType: types.Date}, "low")
	if err != nil || got != types.Date {
		t.Errorf("PropertyType(Interval.low) = %v, %v", got, err)
	}
}

func TestHierarchyAndRetrievability(t *testing.T) {
	r := testRegistry(t)
	base, ok := r.BaseOf("SIMPLE.Observation")
	if !ok || base != "SIMPLE.Resource" {
		t.Errorf("BaseOf = %q, %v", base, ok)
	}
	if !types.SubTypeOf(&types.Named{Name: "SIMPLE.Observation"}, &types.Named{Name: "SIMPLE.Resource"}, r) {
		t.Error("Observation should be a subtype of Resource")
	}
	retrievable, err := r.IsRetrievable("SIMPLE.Observation")
	if err != nil || !retrievable {
		t.Errorf("IsRetrievable = %v, %v", retrievable, err)
	}
	path, err := r.PrimaryCodePath("SIMPLE.Observation")
	if err != nil || path != "code" {
		t.Errorf("PrimaryCodePath = %q, %v", path, err)
	}
	if _, err := r.PrimaryCodePath("SIMPLE.Resource"); err == nil {
		t.Error("PrimaryCodePath accepted a type without one")
	}
}

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

package types

import "testing"

// fakeHierarchy maps class names to their bases for subtype tests.
type fakeHierarchy map[string]string

func (f fakeHierarchy) BaseOf(name string) (string, bool) {
	base, ok := f[name]
	return base, ok
}

func TestSubTypeOf(t *testing.T) {
	hierarchy := fakeHierarchy{
		"FHIR.Observation":   "FHIR.DomainResource",
		"FHIR.DomainResource": "FHIR.Resource",
	}
	tests := []struct {
		name string
		sub  IType
		sup  IType
		want bool
	}{
		{"reflexive", Integer, Integer, true},
		{"any is top", &List{ElementType: String}, Any, true},
		{"integer to long", Integer, Long, true},
		{"integer to decimal", Integer, Decimal, true},
		{"long to decimal", Long, Decimal, true},
		{"decimal not to integer", Decimal, Integer, false},
		{"code to concept", Code, Concept, true},
		{"date to datetime", Date, DateTime, true},
		{"datetime not to date", DateTime, Date, false},
		{"valueset to vocabulary", ValueSet, Vocabulary, true},
		{"covariant list", &List{ElementType: Integer}, &List{ElementType: Decimal}, true},
		{"covariant interval", &Interval{PointType: Date}, &Interval{PointType: DateTime}, true},
		{"list not to interval", &List{ElementType: Integer}, &Interval{PointType: Integer}, false},
		{
			"tuple width subtyping",
			&Tuple{ElementTypes: map[string]IType{"a": Integer, "b": String}},
			&Tuple{ElementTypes: map[string]IType{"a": Long}},
			true,
		},
		{
			"tuple missing field",
			&Tuple{ElementTypes: map[string]IType{"a": Integer}},
			&Tuple{ElementTypes: map[string]IType{"a": Integer, "b": String}},
			false,
		},
		{"choice on the right", Integer, &Choice{ChoiceTypes: []IType{String, Integer}}, true},
		{"choice on the left", &Choice{ChoiceTypes: []IType{Integer, Long}}, Decimal, true},
		{"class hierarchy", &Named{Name: "FHIR.Observation"}, &Named{Name: "FHIR.Resource"}, true},
		{"class hierarchy reversed", &Named{Name: "FHIR.Resource"}, &Named{Name: "FHIR.Observation"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SubTypeOf(tc.sub, tc.sup, hierarchy); got != tc.want {
				t.Errorf("SubTypeOf(%v, %v) = %v, want %v", tc.sub, tc.sup, got, tc.want)
			}
		})
	}
}

func TestCommonSupertype(t *testing.T) {
	tests := []struct {
		name string
		in   []IType
		want IType
	}{
		{"identical", []IType{Integer, Integer}, Integer},
		{"numeric chain", []IType{Integer, Decimal}, Decimal},
		{"numeric triple", []IType{Integer, Long, Decimal}, Decimal},
		{"temporal chain", []IType{Date, DateTime}, DateTime},
		{"code chain", []IType{Code, Concept}, Concept},
		{"nil skipped", []IType{nil, Integer}, Integer},
		{"any skipped", []IType{Any, String}, String},
		{"unrelated falls to any", []IType{Integer, String}, Any},
		{"lists widen elementwise", []IType{&List{ElementType: Integer}, &List{ElementType: Decimal}}, &List{ElementType: Decimal}},
		{"empty is any", nil, Any},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CommonSupertype(nil, tc.in...)
			if !got.Equal(tc.want) {
				t.Errorf("CommonSupertype(%v) = %v, want %v", ToStrings(tc.in), got, tc.want)
			}
		})
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		typ  IType
		want string
	}{
		{Integer, "System.Integer"},
		{&List{ElementType: String}, "List<System.String>"},
		{&Interval{PointType: DateTime}, "Interval<System.DateTime>"},
		{&Named{Name: "FHIR.Patient"}, "FHIR.Patient"},
		{&Choice{ChoiceTypes: []IType{String, Integer}}, "Choice<System.Integer, System.String>"},
		{&Tuple{ElementTypes: map[string]IType{"b": Integer, "a": String}}, "Tuple { a System.String, b System.Integer }"},
	}
	for _, tc := range tests {
		got, err := tc.typ.TypeName()
		if err != nil {
			t.Fatalf("TypeName(%v): %v", tc.typ, err)
		}
		if got != tc.want {
			t.Errorf("TypeName(%v) = %q, want %q", tc.typ, got, tc.want)
		}
	}
}

func TestToSystem(t *testing.T) {
	if got := ToSystem("Integer"); got != Integer {
		t.Errorf("ToSystem(Integer) = %v", got)
	}
	if got := ToSystem("System.Quantity"); got != Quantity {
		t.Errorf("ToSystem(System.Quantity) = %v", got)
	}
	if got := ToSystem("NotAType"); got != Unset {
		t.Errorf("ToSystem(NotAType) = %v, want Unset", got)
	}
}

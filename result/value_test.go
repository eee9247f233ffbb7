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

package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/types"
)

func TestNewRuntimeTypes(t *testing.T) {
	tests := []struct {
		in   any
		want types.IType
	}{
		{nil, types.Any},
		{true, types.Boolean},
		{int32(1), types.Integer},
		{int64(1), types.Long},
		{1.5, types.Decimal},
		{"s", types.String},
		{Quantity{Value: 1, Unit: "mg"}, types.Quantity},
		{Code{Code: "c"}, types.Code},
		{Concept{}, types.Concept},
		{CodeSystem{ID: "x"}, types.CodeSystem},
		{ValueSet{ID: "x"}, types.ValueSet},
	}
	for _, tc := range tests {
		v, err := New(tc.in)
		if err != nil {
			t.Fatalf("New(%v): %v", tc.in, err)
		}
		if !v.RuntimeType().Equal(tc.want) {
			t.Errorf("New(%v).RuntimeType() = %v, want %v", tc.in, v.RuntimeType(), tc.want)
		}
	}
}

func TestListRuntimeTypeInference(t *testing.T) {
	one, _ := New(int32(1))
	v, err := New(List{Value: []Value{one}})
	if err != nil {
		t.Fatal(err)
	}
	want := &types.List{ElementType: types.Integer}
	if !v.RuntimeType().Equal(want) {
		t.Errorf("list runtime type = %v, want %v", v.RuntimeType(), want)
	}

	// Empty lists fall back to the static type.
	v, err = New(List{StaticType: &types.List{ElementType: types.String}})
	if err != nil {
		t.Fatal(err)
	}
	if !v.RuntimeType().Equal(&types.List{ElementType: types.String}) {
		t.Errorf("empty list runtime type = %v", v.RuntimeType())
	}
}

func TestIntervalRuntimeTypeInference(t *testing.T) {
	low, _ := New(int32(1))
	v, err := New(Interval{Low: &low, LowInclusive: true, HighInclusive: true})
	if err != nil {
		t.Fatal(err)
	}
	if !v.RuntimeType().Equal(&types.Interval{PointType: types.Integer}) {
		t.Errorf("interval runtime type = %v", v.RuntimeType())
	}
}

func TestTimeValidation(t *testing.T) {
	// Times must be pinned to year 0, month 1, day 1.
	_, err := New(Time{
		Date:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Precision: model.HOUR,
	})
	if err == nil {
		t.Error("New accepted a Time with a date part")
	}
	if _, err := New(Date{Precision: model.HOUR}); err == nil {
		t.Error("New accepted a Date with hour precision")
	}
}

func TestMarshalJSON(t *testing.T) {
	v, err := New(int32(42))
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["@type"] != "System.Integer" || decoded["value"] != 42.0 {
		t.Errorf("marshaled = %v", decoded)
	}
}

func TestLibKeys(t *testing.T) {
	k := LibKey{Name: "Measure", Version: "1.0"}
	if k.Key() != "Measure 1.0" {
		t.Errorf("Key = %q", k.Key())
	}
	if (LibKey{Name: "Measure"}).Key() != "Measure" {
		t.Error("unversioned Key should omit the version")
	}
	u := UnnamedLibKey()
	if !u.IsUnnamed || u.Version == "" {
		t.Errorf("UnnamedLibKey = %+v", u)
	}
	u2 := UnnamedLibKey()
	if u.Version == u2.Version {
		t.Error("unnamed library keys should be unique")
	}
}

func TestToHelpers(t *testing.T) {
	i32, _ := New(int32(7))
	if got, err := ToInt64(i32); err != nil || got != 7 {
		t.Errorf("ToInt64 widening = %v, %v", got, err)
	}
	if got, err := ToFloat64(i32); err != nil || got != 7.0 {
		t.Errorf("ToFloat64 widening = %v, %v", got, err)
	}
	if _, err := ToString(i32); err == nil {
		t.Error("ToString accepted an integer")
	}
	code, _ := New(Code{Code: "a", System: "s", Display: "d"})
	concept, err := ToConcept(code)
	if err != nil || len(concept.Codes) != 1 || concept.Codes[0].Code != "a" {
		t.Errorf("ToConcept promotion = %+v, %v", concept, err)
	}
	date, _ := New(Date{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Precision: model.DAY})
	dt, err := ToDateTime(date)
	if err != nil || dt.Precision != model.DAY {
		t.Errorf("ToDateTime promotion = %+v, %v", dt, err)
	}
}

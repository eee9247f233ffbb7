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

package ucum

import (
	"math"
	"testing"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		val      float64
		from, to string
		want     float64
	}{
		{1, "g", "mg", 1000},
		{500, "mg", "g", 0.5},
		{1, "m", "cm", 100},
		{2, "L", "mL", 2000},
		{1, "h", "min", 60},
		{1, "year", "month", 12},
		{24, "hour", "day", 1},
		{5, "mg", "mg", 5},
	}
	for _, tc := range tests {
		got, err := Convert(tc.val, tc.from, tc.to)
		if err != nil {
			t.Fatalf("Convert(%v, %q, %q): %v", tc.val, tc.from, tc.to, err)
		}
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("Convert(%v, %q, %q) = %v, want %v", tc.val, tc.from, tc.to, got, tc.want)
		}
	}

	if _, err := Convert(1, "mg", "mL"); err == nil {
		t.Error("Convert accepted incompatible units")
	}
}

func TestConvertible(t *testing.T) {
	if !Convertible("g", "mg") {
		t.Error("g and mg should be convertible")
	}
	if Convertible("g", "m") {
		t.Error("g and m should not be convertible")
	}
}

func TestProductAndQuotient(t *testing.T) {
	if got := Product("mg", "1"); got != "mg" {
		t.Errorf("Product(mg, 1) = %q", got)
	}
	if got := Product("m", "m"); got != "m2" {
		t.Errorf("Product(m, m) = %q", got)
	}
	if got := Product("mg", "mL"); got != "mg.mL" {
		t.Errorf("Product(mg, mL) = %q", got)
	}
	if got := Quotient("mg", "mg"); got != OneUnit {
		t.Errorf("Quotient(mg, mg) = %q", got)
	}
	if got := Quotient("mg", "dL"); got != "mg/dL" {
		t.Errorf("Quotient(mg, dL) = %q", got)
	}
}

func TestCheckUnit(t *testing.T) {
	if ok, _ := CheckUnit("mg", false, false); !ok {
		t.Error("mg should be valid")
	}
	if ok, _ := CheckUnit("", false, false); ok {
		t.Error("empty unit should be rejected when not allowed")
	}
	if ok, _ := CheckUnit("", true, false); !ok {
		t.Error("empty unit should be accepted when allowed")
	}
	if ok, _ := CheckUnit("days", false, false); ok {
		t.Error("temporal keyword should be rejected when not allowed")
	}
	if ok, _ := CheckUnit("days", false, true); !ok {
		t.Error("temporal keyword should be accepted when allowed")
	}
	if ok, _ := CheckUnit("mg/dL", false, false); !ok {
		t.Error("quotient unit should be valid")
	}
}

func TestDateUnit(t *testing.T) {
	if got, ok := DateUnit("months"); !ok || got != "month" {
		t.Errorf("DateUnit(months) = %q, %v", got, ok)
	}
	if got, ok := DateUnit("d"); !ok || got != "day" {
		t.Errorf("DateUnit(d) = %q, %v", got, ok)
	}
	if _, ok := DateUnit("mg"); ok {
		t.Error("mg is not a date unit")
	}
}

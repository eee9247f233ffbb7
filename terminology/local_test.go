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

package terminology

import (
	"errors"
	"testing"
)

func TestLocalValueSetMembership(t *testing.T) {
	l := NewLocal()
	l.AddValueSet("urn:oid:bp", "1.0", []Code{
		{System: "http://loinc.org", Code: "8480-6", Display: "Systolic BP"},
		{System: "http://loinc.org", Code: "8462-4"},
	})

	member, err := l.InValueSet(Code{System: "http://loinc.org", Code: "8480-6"}, "urn:oid:bp", "1.0")
	if err != nil {
		t.Fatalf("InValueSet: %v", err)
	}
	if !member {
		t.Error("8480-6 should be a member")
	}

	member, err = l.InValueSet(Code{System: "http://loinc.org", Code: "9999-9"}, "urn:oid:bp", "1.0")
	if err != nil {
		t.Fatalf("InValueSet: %v", err)
	}
	if member {
		t.Error("9999-9 should not be a member")
	}

	// An unversioned lookup binds to the single registered version.
	if _, err := l.InValueSet(Code{Code: "8480-6"}, "urn:oid:bp", ""); err != nil {
		t.Errorf("unversioned lookup failed: %v", err)
	}

	if _, err := l.InValueSet(Code{Code: "x"}, "urn:oid:unknown", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown valueset error = %v, want ErrNotFound", err)
	}
}

func TestLocalLoadJSON(t *testing.T) {
	l := NewLocal()
	err := l.LoadJSON([]byte(`{
		"id": "urn:oid:bp",
		"resourceType": "ValueSet",
		"codes": [{"system": "http://loinc.org", "code": "8480-6"}]
	}`))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	member, err := l.InValueSet(Code{System: "http://loinc.org", Code: "8480-6"}, "urn:oid:bp", "")
	if err != nil || !member {
		t.Errorf("loaded valueset membership = %v, %v", member, err)
	}

	if err := l.LoadJSON([]byte(`{"resourceType": "ValueSet"}`)); err == nil {
		t.Error("LoadJSON accepted a definition without an id")
	}
}

func TestLocalExpandAndDisplay(t *testing.T) {
	l := NewLocal()
	l.AddValueSet("urn:oid:bp", "", []Code{
		{System: "s", Code: "a", Display: "Alpha"},
		{System: "s", Code: "b"},
	})
	codes, err := l.ExpandValueSet("urn:oid:bp", "")
	if err != nil {
		t.Fatalf("ExpandValueSet: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("expansion has %d codes, want 2", len(codes))
	}
	display, err := l.LookupDisplay(Code{System: "s", Code: "a"})
	if err != nil || display != "Alpha" {
		t.Errorf("LookupDisplay = %q, %v", display, err)
	}
	if _, err := l.LookupDisplay(Code{System: "s", Code: "z"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing display error = %v, want ErrNotFound", err)
	}
}

func TestLocalCodeSystem(t *testing.T) {
	l := NewLocal()
	l.AddCodeSystem("http://loinc.org", "2.74", []Code{{System: "http://loinc.org", Code: "8480-6"}})
	member, err := l.InCodeSystem(Code{System: "http://loinc.org", Code: "8480-6"}, "http://loinc.org", "2.74")
	if err != nil || !member {
		t.Errorf("InCodeSystem = %v, %v", member, err)
	}
}

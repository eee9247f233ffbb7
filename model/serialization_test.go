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

package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/octofhir/cql-go/types"
)

// testLibrary builds a small ELM library by hand covering the common node
// shapes.
func testLibrary() *Library {
	add := &Add{BinaryExpression: &BinaryExpression{
		Expression: ResultType(types.Integer),
		Operands: []IExpression{
			&Literal{Expression: ResultType(types.Integer), Value: "1"},
			&Multiply{BinaryExpression: &BinaryExpression{
				Expression: ResultType(types.Integer),
				Operands: []IExpression{
					&Literal{Expression: ResultType(types.Integer), Value: "2"},
					&Literal{Expression: ResultType(types.Integer), Value: "3"},
				},
			}},
		},
	}}

	notEqual := &Not{UnaryExpression: &UnaryExpression{
		Expression: ResultType(types.Boolean),
		Operand: &Equal{BinaryExpression: &BinaryExpression{
			Expression: ResultType(types.Boolean),
			Operands: []IExpression{
				&Literal{Expression: ResultType(types.String), Value: "a"},
				&Literal{Expression: ResultType(types.String), Value: "b"},
			},
		}},
	}}

	interval := &Interval{
		Expression:    ResultType(&types.Interval{PointType: types.Integer}),
		Low:           &Literal{Expression: ResultType(types.Integer), Value: "1"},
		High:          &Literal{Expression: ResultType(types.Integer), Value: "5"},
		LowInclusive:  true,
		HighInclusive: false,
	}

	query := &Query{
		Expression: ResultType(&types.List{ElementType: types.Integer}),
		Source: []*AliasedSource{{
			Expression: ResultType(&types.List{ElementType: types.Integer}),
			Alias:      "N",
			Source: &List{
				Expression: ResultType(&types.List{ElementType: types.Integer}),
				List: []IExpression{
					&Literal{Expression: ResultType(types.Integer), Value: "1"},
				},
			},
		}},
		Where: &Greater{BinaryExpression: &BinaryExpression{
			Expression: ResultType(types.Boolean),
			Operands: []IExpression{
				&AliasRef{Expression: ResultType(types.Integer), Name: "N"},
				&Literal{Expression: ResultType(types.Integer), Value: "0"},
			},
		}},
		Return: &ReturnClause{
			Element:    &Element{ResultType: types.Integer},
			Distinct:   true,
			Expression: &AliasRef{Expression: ResultType(types.Integer), Name: "N"},
		},
	}

	return &Library{
		Identifier: &LibraryIdentifier{
			Element:   &Element{},
			Local:     "RoundTrip",
			Qualified: "RoundTrip",
			Version:   "1.0",
		},
		Valuesets: []*ValuesetDef{{
			Element:     &Element{ResultType: types.ValueSet},
			Name:        "VS",
			ID:          "urn:oid:vs",
			AccessLevel: Public,
		}},
		Statements: &Statements{Defs: []IExpressionDef{
			&ExpressionDef{
				Element:     &Element{ResultType: types.Integer},
				Name:        "Arithmetic",
				Expression:  add,
				AccessLevel: Public,
			},
			&ExpressionDef{
				Element:     &Element{ResultType: types.Boolean},
				Name:        "Canonical",
				Expression:  notEqual,
				AccessLevel: Public,
			},
			&ExpressionDef{
				Element:     &Element{ResultType: interval.GetResultType()},
				Name:        "Window",
				Expression:  interval,
				AccessLevel: Private,
			},
			&ExpressionDef{
				Element:     &Element{ResultType: query.GetResultType()},
				Name:        "Filtered",
				Expression:  query,
				AccessLevel: Public,
			},
		}},
	}
}

func TestSerializeJSONShape(t *testing.T) {
	data, err := Serialize(testLibrary(), FormatJSON, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	lib, ok := doc["library"].(map[string]any)
	if !ok {
		t.Fatal("missing library root")
	}
	ident, ok := lib["identifier"].(map[string]any)
	if !ok || ident["id"] != "RoundTrip" || ident["version"] != "1.0" {
		t.Errorf("identifier = %v", lib["identifier"])
	}
	if _, ok := lib["schemaIdentifier"].(map[string]any); !ok {
		t.Error("missing schemaIdentifier")
	}
	statements, ok := lib["statements"].(map[string]any)
	if !ok {
		t.Fatal("missing statements")
	}
	defs, ok := statements["def"].([]any)
	if !ok || len(defs) != 4 {
		t.Fatalf("statements.def = %v", statements["def"])
	}
	first := defs[0].(map[string]any)
	expr := first["expression"].(map[string]any)
	if expr["type"] != "Add" {
		t.Errorf(`first expression type = %v, want "Add"`, expr["type"])
	}
	operands := expr["operand"].([]any)
	if len(operands) != 2 {
		t.Fatalf("Add has %d operands, want 2", len(operands))
	}
	if rtn := expr["resultTypeName"]; rtn != "{urn:hl7-org:elm-types:r1}Integer" {
		t.Errorf("resultTypeName = %v", rtn)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	lib := testLibrary()
	first, err := Serialize(lib, FormatJSON, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := ParseJSON(first)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	second, err := Serialize(parsed, FormatJSON, false)
	if err != nil {
		t.Fatalf("Serialize after round trip: %v", err)
	}
	var a, b any
	if err := json.Unmarshal(first, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(second, &b); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("round trip changed the document (-first +second):\n%s", diff)
	}
}

func TestSerializeXML(t *testing.T) {
	data, err := Serialize(testLibrary(), FormatXML, true)
	if err != nil {
		t.Fatalf("Serialize XML: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`<?xml version="1.0" encoding="utf-8"?>`,
		`xmlns="urn:hl7-org:elm"`,
		`xsi:type="Add"`,
		`name="Arithmetic"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("XML output missing %q:\n%s", want, out)
		}
	}
}

func TestParseTypeName(t *testing.T) {
	tests := []struct {
		name string
		want types.IType
	}{
		{"{urn:hl7-org:elm-types:r1}Integer", types.Integer},
		{"System.Boolean", types.Boolean},
		{"FHIR.Observation", &types.Named{Name: "FHIR.Observation"}},
		{"List<{urn:hl7-org:elm-types:r1}String>", &types.List{ElementType: types.String}},
		{"Interval<{urn:hl7-org:elm-types:r1}DateTime>", &types.Interval{PointType: types.DateTime}},
		{"Choice<System.Integer, System.String>", &types.Choice{ChoiceTypes: []types.IType{types.Integer, types.String}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTypeName(tc.name)
			if err != nil {
				t.Fatalf("ParseTypeName(%q): %v", tc.name, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseTypeName(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

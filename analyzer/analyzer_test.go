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

package analyzer

import (
	"strings"
	"testing"

	"github.com/lithammer/dedent"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/types"
)

func analyze(t *testing.T, sources ...string) ([]*model.Library, error) {
	t.Helper()
	a, err := New(modelinfo.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a.ParseAndAnalyze(sources)
}

// lastDefExpr returns the expression of the last statement of the only
// library.
func lastDefExpr(t *testing.T, lib *model.Library) model.IExpression {
	t.Helper()
	defs := lib.Statements.Defs
	if len(defs) == 0 {
		t.Fatal("library has no statements")
	}
	return defs[len(defs)-1].GetExpression()
}

func TestLoweringCanonicalForms(t *testing.T) {
	libs, err := analyze(t, "define X: 1 != 2")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	not, ok := lastDefExpr(t, libs[0]).(*model.Not)
	if !ok {
		t.Fatalf("!= lowered to %T, want Not", lastDefExpr(t, libs[0]))
	}
	if _, ok := not.GetOperand().(*model.Equal); !ok {
		t.Errorf("Not operand = %T, want Equal", not.GetOperand())
	}

	libs, err = analyze(t, "define X: 2 between 1 and 3")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	and, ok := lastDefExpr(t, libs[0]).(*model.And)
	if !ok {
		t.Fatalf("between lowered to %T, want And", lastDefExpr(t, libs[0]))
	}
	if _, ok := and.Left().(*model.GreaterOrEqual); !ok {
		t.Errorf("between left = %T, want GreaterOrEqual", and.Left())
	}
	if _, ok := and.Right().(*model.LessOrEqual); !ok {
		t.Errorf("between right = %T, want LessOrEqual", and.Right())
	}
}

func TestImplicitConversionMaterialized(t *testing.T) {
	libs, err := analyze(t, "define X: 1 + 2.5")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	add, ok := lastDefExpr(t, libs[0]).(*model.Add)
	if !ok {
		t.Fatalf("got %T, want Add", lastDefExpr(t, libs[0]))
	}
	if !add.GetResultType().Equal(types.Decimal) {
		t.Errorf("Add result type = %v, want Decimal", add.GetResultType())
	}
	if _, ok := add.Left().(*model.ToDecimal); !ok {
		t.Errorf("Add left = %T, want materialized ToDecimal", add.Left())
	}
}

func TestInferredTypes(t *testing.T) {
	tests := []struct {
		cql  string
		want types.IType
	}{
		{"define X: 1", types.Integer},
		{"define X: 1L", types.Long},
		{"define X: 'a'", types.String},
		{"define X: 1 < 2", types.Boolean},
		{"define X: {1, 2}", &types.List{ElementType: types.Integer}},
		{"define X: {1, 2.0}", &types.List{ElementType: types.Decimal}},
		{"define X: Interval[1, 5]", &types.Interval{PointType: types.Integer}},
		{"define X: Interval[@2024-01-01, @2024-12-31]", &types.Interval{PointType: types.Date}},
		{"define X: if true then 1 else 2.0", types.Decimal},
		{"define X: ({1, 2}) N return N * 2", &types.List{ElementType: types.Integer}},
		{"define X: First({1, 2})", types.Integer},
		{"define X: 5 'mg'", types.Quantity},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			libs, err := analyze(t, tc.cql)
			if err != nil {
				t.Fatalf("analyze: %v", err)
			}
			got := lastDefExpr(t, libs[0]).GetResultType()
			if !got.Equal(tc.want) {
				t.Errorf("inferred type = %v, want %v", got, tc.want)
			}
		})
	}
}

func wantSemanticError(t *testing.T, err error, code diag.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("analysis succeeded, want semantic error")
	}
	le, ok := err.(*LibraryErrors)
	if !ok {
		t.Fatalf("error type = %T, want *LibraryErrors (%v)", err, err)
	}
	for _, d := range le.Diagnostics {
		if d.Code == code {
			return
		}
	}
	t.Errorf("diagnostics %v do not include %v", le.Diagnostics, code)
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		cql  string
		code diag.Code
	}{
		{"undefined identifier", "define X: NotDefined", diag.UndefinedIdentifier},
		{"undefined function", "define X: NoSuchFunction(1)", diag.UndefinedFunction},
		{"type mismatch", "define X: 1 + 'a'", diag.TypeMismatch},
		{"duplicate definition", "define X: 1\ndefine X: 2", diag.DuplicateDefinition},
		{"unknown type", "define X: 1 as FHIR.Observation", diag.UnknownType},
		{"retrieve without model", "define X: [Observation]", diag.UnknownType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := analyze(t, tc.cql)
			wantSemanticError(t, err, tc.code)
		})
	}
}

func TestAmbiguousCall(t *testing.T) {
	src := dedent.Dedent(`
		library Amb version '1.0'
		define function F(a Long, b Integer) returns Integer: 1
		define function F(a Integer, b Long) returns Integer: 2
		define X: F(1, 1)
	`)
	_, err := analyze(t, src)
	wantSemanticError(t, err, diag.AmbiguousCall)
}

func TestCrossLibraryResolution(t *testing.T) {
	helpers := dedent.Dedent(`
		library Helpers version '1.0'
		define Shared: 1
		private define Hidden: 2
	`)
	ok := dedent.Dedent(`
		library Main version '1.0'
		include Helpers version '1.0' called H
		define X: H.Shared
	`)
	if _, err := analyze(t, ok, helpers); err != nil {
		t.Fatalf("cross-library reference failed: %v", err)
	}

	private := dedent.Dedent(`
		library Main version '1.0'
		include Helpers version '1.0' called H
		define X: H.Hidden
	`)
	_, err := analyze(t, private, helpers)
	wantSemanticError(t, err, diag.UndefinedIdentifier)
}

func TestCircularIncludes(t *testing.T) {
	a := dedent.Dedent(`
		library A version '1.0'
		include B version '1.0' called B1
		define X: 1
	`)
	b := dedent.Dedent(`
		library B version '1.0'
		include A version '1.0' called A1
		define Y: 1
	`)
	if _, err := analyze(t, a, b); err == nil || !strings.Contains(err.Error(), "circular") {
		t.Fatalf("got %v, want circular dependency error", err)
	}
}

func TestContextAttachment(t *testing.T) {
	reg := modelinfo.NewRegistry(&modelinfo.InMemory{
		ModelName: "SIMPLE",
		ModelURI:  "urn:test:simple",
		Types: map[string]*modelinfo.TypeInfo{
			"SIMPLE.Patient": {Name: "SIMPLE.Patient", Retrievable: true},
		},
	})
	a, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	src := dedent.Dedent(`
		library Ctx version '1.0'
		using SIMPLE
		define Before: 1
		context Patient
		define After: 2
	`)
	libs, err := a.ParseAndAnalyze([]string{src})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	defs := libs[0].Statements.Defs
	if defs[0].GetContext() != "" {
		t.Errorf("Before context = %q, want empty", defs[0].GetContext())
	}
	if defs[1].GetContext() != "Patient" {
		t.Errorf("After context = %q, want Patient", defs[1].GetContext())
	}
}

func TestFunctionBodyTypeChecked(t *testing.T) {
	src := dedent.Dedent(`
		library Fn version '1.0'
		define function Bad(a Integer) returns String: a + 1
		define X: 1
	`)
	_, err := analyze(t, src)
	wantSemanticError(t, err, diag.TypeMismatch)
}

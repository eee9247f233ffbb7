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

package reference

import (
	"testing"

	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
)

func libIdent(name, version string) *model.LibraryIdentifier {
	return &model.LibraryIdentifier{
		Element:   &model.Element{},
		Local:     name,
		Qualified: name,
		Version:   version,
	}
}

func TestDefineAndResolveLocal(t *testing.T) {
	r := NewResolver[int, int]()
	if err := r.SetCurrentLibrary(libIdent("Lib", "1.0")); err != nil {
		t.Fatal(err)
	}
	if err := r.Define(&Def[int]{Name: "A", Result: 42, IsPublic: true, ValidateIsUnique: true}); err != nil {
		t.Fatal(err)
	}
	got, err := r.ResolveLocal("A")
	if err != nil || got != 42 {
		t.Errorf("ResolveLocal(A) = %d, %v", got, err)
	}
	if err := r.Define(&Def[int]{Name: "A", Result: 1, ValidateIsUnique: true}); err == nil {
		t.Error("duplicate definition was accepted")
	}
	if _, err := r.ResolveLocal("Missing"); err == nil {
		t.Error("ResolveLocal resolved an undefined name")
	}
}

func TestScopes(t *testing.T) {
	r := NewResolver[int, int]()
	r.SetCurrentUnnamed()
	if err := r.Define(&Def[int]{Name: "X", Result: 1}); err != nil {
		t.Fatal(err)
	}

	r.EnterScope(ScopeQuery)
	if err := r.DefineAlias("X", 2); err != nil {
		t.Fatal(err)
	}
	// The inner alias shadows the library definition.
	if got, _ := r.ResolveLocal("X"); got != 2 {
		t.Errorf("shadowed X = %d, want 2", got)
	}
	r.EnterScope(ScopeIteration)
	if err := r.DefineAlias("$this", 3); err != nil {
		t.Fatal(err)
	}
	// Lookup walks outward through the scopes.
	if got, _ := r.ResolveLocal("X"); got != 2 {
		t.Errorf("X from nested scope = %d, want 2", got)
	}
	r.ExitScope()
	if _, err := r.ResolveLocal("$this"); err == nil {
		t.Error("$this survived its scope")
	}
	r.ExitScope()
	if got, _ := r.ResolveLocal("X"); got != 1 {
		t.Errorf("X after scopes = %d, want 1", got)
	}
}

func TestIncludesAndGlobalResolution(t *testing.T) {
	r := NewResolver[int, int]()
	if err := r.SetCurrentLibrary(libIdent("Helpers", "1.0")); err != nil {
		t.Fatal(err)
	}
	if err := r.Define(&Def[int]{Name: "Pub", Result: 10, IsPublic: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.Define(&Def[int]{Name: "Priv", Result: 11}); err != nil {
		t.Fatal(err)
	}

	if err := r.SetCurrentLibrary(libIdent("Main", "1.0")); err != nil {
		t.Fatal(err)
	}
	inc := libIdent("Helpers", "1.0")
	inc.Local = "H"
	if err := r.IncludeLibrary(inc, true); err != nil {
		t.Fatal(err)
	}

	got, err := r.ResolveGlobal("H", "Pub")
	if err != nil || got != 10 {
		t.Errorf("ResolveGlobal(H, Pub) = %d, %v", got, err)
	}
	if _, err := r.ResolveGlobal("H", "Priv"); err == nil {
		t.Error("private definition was resolvable across libraries")
	}
	if _, err := r.ResolveGlobal("Z", "Pub"); err == nil {
		t.Error("unknown library alias resolved")
	}
}

func TestFunctionOverloadsPreserveOrder(t *testing.T) {
	r := NewResolver[int, string]()
	r.SetCurrentUnnamed()
	if err := r.DefineFunc(&Func[string]{Name: "F", Operands: []types.IType{types.Integer}, Result: "int", ValidateIsUnique: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.DefineFunc(&Func[string]{Name: "F", Operands: []types.IType{types.Decimal}, Result: "dec", ValidateIsUnique: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.DefineFunc(&Func[string]{Name: "F", Operands: []types.IType{types.Integer}, Result: "dup", ValidateIsUnique: true}); err == nil {
		t.Error("duplicate signature was accepted")
	}
	overloads, err := r.FuncOverloads("", "F", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(overloads) != 2 || overloads[0].Result != "int" || overloads[1].Result != "dec" {
		t.Errorf("overloads out of declaration order: %+v", overloads)
	}
}

func TestPublicDefs(t *testing.T) {
	r := NewResolver[int, int]()
	if err := r.SetCurrentLibrary(libIdent("Lib", "1.0")); err != nil {
		t.Fatal(err)
	}
	r.Define(&Def[int]{Name: "A", Result: 1, IsPublic: true})
	r.Define(&Def[int]{Name: "B", Result: 2})

	public, err := r.PublicDefs()
	if err != nil {
		t.Fatal(err)
	}
	libDefs := public[resultKeyOf(t, public)]
	if len(libDefs) != 1 || libDefs["A"] != 1 {
		t.Errorf("PublicDefs = %v", public)
	}

	all, err := r.PublicAndPrivateDefs()
	if err != nil {
		t.Fatal(err)
	}
	if len(all[resultKeyOf(t, all)]) != 2 {
		t.Errorf("PublicAndPrivateDefs = %v", all)
	}
}

func resultKeyOf[T any](t *testing.T, m map[result.LibKey]map[string]T) result.LibKey {
	t.Helper()
	for k := range m {
		return k
	}
	t.Fatal("no libraries in result map")
	panic("unreachable")
}

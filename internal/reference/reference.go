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

// Package reference handles resolving references across CQL libraries and
// locally within a library, for both the analyzer and the interpreter.
package reference

import (
	"fmt"

	"github.com/octofhir/cql-go/internal/convert"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
)

// Resolver tracks definitions (expression defs, parameters, valuesets...)
// and scoped aliases across CQL libraries. When a definition is created the
// resolver stores a result: the analyzer stores a model.IExpression and the
// interpreter a result.Value. Resolvers must not be shared between the
// analyzer and the interpreter.
//
// Function overloads preserve declaration order so overload-resolution
// tie-breaks are deterministic.
type Resolver[T any, F any] struct {
	// defs holds all expression, valueset and parameter definitions in all
	// libraries. funcs holds all user defined functions. The current library
	// only has access to its own definitions and to the public definitions
	// of libraries it included. Functions and definitions live in separate
	// namespaces.
	defs  map[defKey]exprDef[T]
	funcs map[defKey][]funcDef[F]

	// defOrder preserves definition order per library for deterministic
	// results listing.
	defOrder map[libKey][]string

	// scopes is the stack of alias scopes. Aliases are cleared when their
	// scope exits, and live in the same namespace as definitions.
	scopes []*Scope[T]

	// libs holds the identifiers of all named libraries seen so far.
	libs map[namedLibKey]struct{}

	// includedLibs maps the local alias of an included library to its
	// qualified identifier, per including library.
	includedLibs map[includeKey]*model.LibraryIdentifier

	// currLib is the library currently being processed.
	currLib libKey

	// unnamedCount generates unique keys for unnamed libraries.
	unnamedCount int
}

// ScopeKind labels the construct a scope belongs to.
type ScopeKind string

// Scope kinds.
const (
	ScopeGlobal    ScopeKind = "global"
	ScopeFunction  ScopeKind = "function"
	ScopeQuery     ScopeKind = "query"
	ScopeWith      ScopeKind = "with"
	ScopeAggregate ScopeKind = "aggregate"
	ScopeSort      ScopeKind = "sort"
	ScopeLet       ScopeKind = "let"
	ScopeIteration ScopeKind = "iteration"
)

// Scope is one frame of the alias stack.
type Scope[T any] struct {
	Kind    ScopeKind
	entries map[string]T
	order   []string
}

type exprDef[T any] struct {
	isPublic bool
	result   T
}

type funcDef[F any] struct {
	isPublic bool
	isFluent bool
	overload convert.Overload[F]
}

type libKey interface{ isLibKey() }

type namedLibKey struct {
	qualified string
	version   string
}

func (namedLibKey) isLibKey() {}

type unnamedLibKey struct{ unnamedID int }

func (unnamedLibKey) isLibKey() {}

type defKey struct {
	library libKey
	name    string
}

type includeKey struct {
	localID    string
	includedBy libKey
}

// NewResolver creates a blank resolver. Type T is stored for definitions
// and aliases, type F for functions.
func NewResolver[T any, F any]() *Resolver[T, F] {
	return &Resolver[T, F]{
		defs:         make(map[defKey]exprDef[T]),
		funcs:        make(map[defKey][]funcDef[F]),
		defOrder:     make(map[libKey][]string),
		libs:         make(map[namedLibKey]struct{}),
		includedLibs: make(map[includeKey]*model.LibraryIdentifier),
	}
}

// ClearDefs clears everything except the built-in functions.
func (r *Resolver[T, F]) ClearDefs() {
	r.defs = make(map[defKey]exprDef[T])
	r.funcs = make(map[defKey][]funcDef[F])
	r.defOrder = make(map[libKey][]string)
	r.scopes = nil
	r.libs = make(map[namedLibKey]struct{})
	r.includedLibs = make(map[includeKey]*model.LibraryIdentifier)
}

// SetCurrentLibrary sets the current library. Either SetCurrentLibrary or
// SetCurrentUnnamed must be called before creating or resolving references.
func (r *Resolver[T, F]) SetCurrentLibrary(m *model.LibraryIdentifier) error {
	l := namedLibKey{qualified: m.Qualified, version: m.Version}
	if _, ok := r.libs[l]; ok {
		return fmt.Errorf("library %s %s already exists", m.Qualified, m.Version)
	}
	r.currLib = l
	r.libs[l] = struct{}{}
	return nil
}

// SetCurrentUnnamed should be called for a library without a library
// declaration. All definitions in unnamed libraries are private.
func (r *Resolver[T, F]) SetCurrentUnnamed() {
	r.currLib = unnamedLibKey{unnamedID: r.unnamedCount}
	r.unnamedCount++
}

// IncludeLibrary records an include statement of the current library.
// ValidateIsUnique is turned off by the interpreter for performance.
func (r *Resolver[T, F]) IncludeLibrary(m *model.LibraryIdentifier, validateIsUnique bool) error {
	if validateIsUnique {
		if err := r.isLocallyUnique(m.Local); err != nil {
			return err
		}
	}
	lib := namedLibKey{qualified: m.Qualified, version: m.Version}
	if _, ok := r.libs[lib]; !ok {
		return fmt.Errorf("library %s %s was included, but does not exist", m.Qualified, m.Version)
	}
	r.includedLibs[includeKey{localID: m.Local, includedBy: r.currLib}] = m
	return nil
}

// ResolveInclude takes the local alias of an included library and returns
// its identifier, or nil when the alias is unknown.
func (r *Resolver[T, F]) ResolveInclude(name string) *model.LibraryIdentifier {
	if i, ok := r.includedLibs[includeKey{localID: name, includedBy: r.currLib}]; ok {
		return i
	}
	return nil
}

// Def holds the information needed to create a definition.
type Def[T any] struct {
	Name     string
	Result   T
	IsPublic bool
	// ValidateIsUnique rejects duplicate names. It is turned off by the
	// interpreter for performance.
	ValidateIsUnique bool
}

// Define creates a new definition. Names must be unique within the library
// regardless of kind: a valueset and a parameter cannot share a name.
func (r *Resolver[T, F]) Define(d *Def[T]) error {
	if d.ValidateIsUnique {
		if err := r.isLocallyUnique(d.Name); err != nil {
			return err
		}
	}
	_, isUnnamed := r.currLib.(unnamedLibKey)
	key := defKey{r.currLib, d.Name}
	if _, exists := r.defs[key]; !exists {
		r.defOrder[r.currLib] = append(r.defOrder[r.currLib], d.Name)
	}
	r.defs[key] = exprDef[T]{isPublic: d.IsPublic && !isUnnamed, result: d.Result}
	return nil
}

// Func holds the information needed to define a function.
type Func[F any] struct {
	Name     string
	Operands []types.IType
	Result   F
	IsPublic bool
	IsFluent bool
	// ValidateIsUnique rejects duplicate signatures. It is turned off by the
	// interpreter for performance.
	ValidateIsUnique bool
}

// DefineFunc creates a user defined function. Functions can be overloaded
// with the same name but must have a unique combination of name and
// operands. Declaration order is preserved.
func (r *Resolver[T, F]) DefineFunc(f *Func[F]) error {
	if f.ValidateIsUnique {
		if err := r.isFuncLocallyUnique(f.Name, f.Operands); err != nil {
			return err
		}
	}
	dKey := defKey{r.currLib, f.Name}
	_, isUnnamed := r.currLib.(unnamedLibKey)
	r.funcs[dKey] = append(r.funcs[dKey], funcDef[F]{
		isPublic: f.IsPublic && !isUnnamed,
		isFluent: f.IsFluent,
		overload: convert.Overload[F]{Operands: f.Operands, Result: f.Result},
	})
	return nil
}

// ResolveLocal resolves a name in the current scope stack, then the current
// library's definitions.
func (r *Resolver[T, F]) ResolveLocal(name string) (T, error) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i].entries[name]; ok {
			return v, nil
		}
	}
	if d, ok := r.defs[defKey{r.currLib, name}]; ok {
		return d.result, nil
	}
	return zero[T](), fmt.Errorf("could not resolve the local reference to %s", name)
}

// ResolveGlobal resolves a reference to a definition in an included
// library. Private definitions are inaccessible.
func (r *Resolver[T, F]) ResolveGlobal(libName string, defName string) (T, error) {
	qKey, ok := r.includedLibs[includeKey{localID: libName, includedBy: r.currLib}]
	if !ok {
		return zero[T](), fmt.Errorf("could not resolve the library name %s", libName)
	}
	d, ok := r.defs[defKey{namedLibKey{qualified: qKey.Qualified, version: qKey.Version}, defName}]
	if !ok {
		return zero[T](), fmt.Errorf("could not resolve the reference to %s.%s", libName, defName)
	}
	if !d.isPublic {
		return zero[T](), fmt.Errorf("%s.%s is private and cannot be referenced", libName, defName)
	}
	return d.result, nil
}

// FuncOverloads returns the declared overloads of a function. An empty
// libName resolves in the current library, otherwise in the included
// library with public access only. FluentOnly restricts to fluent
// functions.
func (r *Resolver[T, F]) FuncOverloads(libName, name string, fluentOnly bool) ([]convert.Overload[F], error) {
	var lib libKey = r.currLib
	requirePublic := false
	if libName != "" {
		qKey, ok := r.includedLibs[includeKey{localID: libName, includedBy: r.currLib}]
		if !ok {
			return nil, fmt.Errorf("could not resolve the library name %s", libName)
		}
		lib = namedLibKey{qualified: qKey.Qualified, version: qKey.Version}
		requirePublic = true
	}
	var out []convert.Overload[F]
	for _, fd := range r.funcs[defKey{lib, name}] {
		if requirePublic && !fd.isPublic {
			continue
		}
		if fluentOnly && !fd.isFluent {
			continue
		}
		out = append(out, fd.overload)
	}
	return out, nil
}

// EnterScope pushes a new alias scope of the given kind.
func (r *Resolver[T, F]) EnterScope(kind ScopeKind) {
	r.scopes = append(r.scopes, &Scope[T]{Kind: kind, entries: map[string]T{}})
}

// ExitScope pops the innermost alias scope.
func (r *Resolver[T, F]) ExitScope() {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// ScopeDepth returns the current scope stack depth.
func (r *Resolver[T, F]) ScopeDepth() int { return len(r.scopes) }

// DefineAlias binds a name in the innermost scope: query aliases, lets,
// function operands and iteration variables.
func (r *Resolver[T, F]) DefineAlias(name string, v T) error {
	if len(r.scopes) == 0 {
		return fmt.Errorf("internal error - defining alias %s with no open scope", name)
	}
	s := r.scopes[len(r.scopes)-1]
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("alias %s already defined in this scope", name)
	}
	s.entries[name] = v
	s.order = append(s.order, name)
	return nil
}

// HasAlias reports whether the name resolves to an alias in any open scope.
func (r *Resolver[T, F]) HasAlias(name string) bool {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i].entries[name]; ok {
			return true
		}
	}
	return false
}

// PublicAndPrivateDefs returns all definitions of all libraries in
// definition order.
func (r *Resolver[T, F]) PublicAndPrivateDefs() (map[result.LibKey]map[string]T, error) {
	return r.collectDefs(false)
}

// PublicDefs returns the public definitions of all libraries in definition
// order.
func (r *Resolver[T, F]) PublicDefs() (map[result.LibKey]map[string]T, error) {
	return r.collectDefs(true)
}

func (r *Resolver[T, F]) collectDefs(publicOnly bool) (map[result.LibKey]map[string]T, error) {
	out := make(map[result.LibKey]map[string]T)
	for lib, names := range r.defOrder {
		var key result.LibKey
		switch l := lib.(type) {
		case namedLibKey:
			key = result.LibKey{Name: l.qualified, Version: l.version}
		case unnamedLibKey:
			key = result.UnnamedLibKey()
		default:
			return nil, fmt.Errorf("internal error - unknown library key %T", lib)
		}
		m := make(map[string]T, len(names))
		for _, name := range names {
			d := r.defs[defKey{lib, name}]
			if publicOnly && !d.isPublic {
				continue
			}
			m[name] = d.result
		}
		if len(m) > 0 {
			out[key] = m
		}
	}
	return out, nil
}

func (r *Resolver[T, F]) isLocallyUnique(name string) error {
	if _, ok := r.defs[defKey{r.currLib, name}]; ok {
		return fmt.Errorf("identifier %s is already defined in this library", name)
	}
	if _, ok := r.includedLibs[includeKey{localID: name, includedBy: r.currLib}]; ok {
		return fmt.Errorf("identifier %s is already used as a library alias", name)
	}
	return nil
}

func (r *Resolver[T, F]) isFuncLocallyUnique(name string, operands []types.IType) error {
	for _, fd := range r.funcs[defKey{r.currLib, name}] {
		if convert.ExactMatch(operands, fd.overload.Operands) {
			return fmt.Errorf("function %v(%v) is already defined in this library", name, types.ToStrings(operands))
		}
	}
	return nil
}

func zero[T any]() T {
	var z T
	return z
}

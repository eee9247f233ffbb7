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

// Package analyzer performs semantic analysis of the surface AST and lowers
// it to the model package's ELM representation: symbol resolution through a
// scoped symbol table, type checking with implicit conversions, and
// operator canonicalization.
package analyzer

import (
	"fmt"
	"strings"

	"gopkg.in/gyuho/goraph.v2"

	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/reference"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/parser"
	"github.com/octofhir/cql-go/result"
)

// refFunc produces a fresh reference node each time a definition is
// referenced. Definitions are stored as thunks so every reference site gets
// its own node with its own span.
type refFunc func() model.IExpression

// Analyzer lowers parsed libraries into the ELM model. It owns the symbol
// table and the system operator tables.
type Analyzer struct {
	registry *modelinfo.Registry
	refs     *reference.Resolver[refFunc, refFunc]
	builtins map[string][]builtinOverload

	// Per-library analysis state.
	diags       []diag.Diagnostic
	srcm        *diag.SourceMap
	currContext string
}

// New returns an Analyzer over the given model registry. The System model
// is always available.
func New(registry *modelinfo.Registry) (*Analyzer, error) {
	a := &Analyzer{
		registry: registry,
		refs:     reference.NewResolver[refFunc, refFunc](),
		builtins: map[string][]builtinOverload{},
	}
	if err := a.loadSystemOperators(); err != nil {
		return nil, err
	}
	return a, nil
}

// LibraryErrors contains the semantic diagnostics for a single library.
type LibraryErrors struct {
	LibKey      result.LibKey
	Diagnostics []diag.Diagnostic
}

func (le *LibraryErrors) Error() string {
	msgs := []string{fmt.Sprintf("error(s) in Library %q:", le.LibKey.String())}
	for i := range le.Diagnostics {
		msgs = append(msgs, le.Diagnostics[i].Error())
	}
	return strings.Join(msgs, "\n")
}

// Unwrap implements the Go standard errors package multi-error Unwrap.
func (le *LibraryErrors) Unwrap() []error {
	if le == nil {
		return nil
	}
	errs := make([]error, 0, len(le.Diagnostics))
	for i := range le.Diagnostics {
		errs = append(errs, &le.Diagnostics[i])
	}
	return errs
}

// ParsedLibrary pairs a parsed AST with the source map its spans resolve
// against.
type ParsedLibrary struct {
	AST       *ast.Library
	SourceMap *diag.SourceMap
}

// Libraries analyzes and lowers a set of parsed libraries. Libraries are
// topologically sorted by their includes so definitions resolve across
// libraries; a dependency cycle is an error.
func (a *Analyzer) Libraries(libs []ParsedLibrary) ([]*model.Library, error) {
	if len(libs) == 0 {
		return nil, result.NewEngineError("", result.ErrLibraryParsing, fmt.Errorf("no CQL libraries were provided"))
	}
	a.refs.ClearDefs()

	sorted, err := topologicalSortLibraries(libs)
	if err != nil {
		return nil, result.NewEngineError("", result.ErrLibraryParsing, err)
	}

	out := make([]*model.Library, 0, len(sorted))
	for _, lib := range sorted {
		a.diags = nil
		a.srcm = lib.SourceMap
		a.currContext = ""
		a.registry.ResetUsing()
		lowered := a.lowerLibrary(lib.AST)
		if diag.HasErrors(a.diags) {
			diag.Sort(a.diags)
			return nil, &LibraryErrors{LibKey: libKeyFromAST(lib.AST), Diagnostics: a.diags}
		}
		out = append(out, lowered)
	}
	return out, nil
}

// Expression analyzes a standalone expression, as used for parameter
// literals. Definitions are not visible; only literals and selectors
// resolve.
func (a *Analyzer) Expression(expr ast.IExpression, srcm *diag.SourceMap) (model.IExpression, error) {
	a.diags = nil
	a.srcm = srcm
	a.refs.SetCurrentUnnamed()
	m := a.lowerExpr(expr)
	if diag.HasErrors(a.diags) {
		diag.Sort(a.diags)
		return nil, &LibraryErrors{LibKey: result.UnnamedLibKey(), Diagnostics: a.diags}
	}
	return m, nil
}

func libKeyFromAST(lib *ast.Library) result.LibKey {
	if lib == nil || lib.Identifier == nil {
		return result.UnnamedLibKey()
	}
	return result.LibKey{Name: qualifiedName(lib.Identifier.Qualified), Version: lib.Identifier.Version}
}

func qualifiedName(q ast.QualifiedIdentifier) string {
	parts := make([]string, 0, len(q.Qualifiers)+1)
	for _, p := range q.Qualifiers {
		parts = append(parts, p.Name)
	}
	parts = append(parts, q.Name.Name)
	return strings.Join(parts, ".")
}

// topologicalSortLibraries orders libraries so that every library comes
// after the libraries it includes. When a library is included without a
// version the greatest version string present is used.
func topologicalSortLibraries(libs []ParsedLibrary) ([]ParsedLibrary, error) {
	byKey := make(map[string]ParsedLibrary, len(libs))
	deps := make(map[result.LibKey][]result.LibKey, len(libs))
	graph := goraph.NewGraph()

	for _, lib := range libs {
		key := libKeyFromAST(lib.AST)
		byKey[key.Key()] = lib
		var includes []result.LibKey
		for _, inc := range lib.AST.Includes {
			includes = append(includes, result.LibKey{Name: qualifiedName(inc.Library), Version: inc.Version})
		}
		deps[key] = includes
		if ok := graph.AddNode(goraph.NewNode(key.Key())); !ok {
			return nil, fmt.Errorf("cql library %q provided more than once", key.String())
		}
	}

	for libID, includes := range deps {
		libNode := goraph.NewNode(libID.Key())
		for _, includedID := range includes {
			// An unversioned include binds to the greatest version present.
			if includedID.Version == "" {
				for candidate := range deps {
					if candidate.Name != includedID.Name {
						continue
					}
					if strings.Compare(includedID.Version, candidate.Version) == -1 {
						includedID = candidate
					}
				}
			}
			includedNode := goraph.NewNode(includedID.Key())
			if err := graph.AddEdge(includedNode.ID(), libNode.ID(), 1); err != nil {
				return nil, fmt.Errorf("failed to import library %q: %w", includedID.String(), err)
			}
		}
	}

	sortedIDs, isValidDag := goraph.TopologicalSort(graph)
	if !isValidDag {
		return nil, fmt.Errorf("included cql libraries are not valid, found circular dependencies")
	}
	sorted := make([]ParsedLibrary, 0, len(sortedIDs))
	for _, id := range sortedIDs {
		lib, ok := byKey[id.String()]
		if !ok {
			return nil, fmt.Errorf("library %q was included, but was not provided", id.String())
		}
		sorted = append(sorted, lib)
	}
	return sorted, nil
}

// errorf records a semantic diagnostic anchored at the node's span.
func (a *Analyzer) errorf(node ast.Node, code diag.Code, format string, args ...any) {
	var loc *diag.Location
	if node != nil && a.srcm != nil {
		l := a.srcm.Locate(node.SourceSpan())
		loc = &l
	}
	a.diags = append(a.diags, diag.Diagnostic{
		Severity: diag.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

func (a *Analyzer) warnf(node ast.Node, code diag.Code, format string, args ...any) {
	var loc *diag.Location
	if node != nil && a.srcm != nil {
		l := a.srcm.Locate(node.SourceSpan())
		loc = &l
	}
	a.diags = append(a.diags, diag.Diagnostic{
		Severity: diag.SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// badExpression records an error and returns a null literal placeholder so
// lowering can continue and report further diagnostics.
func (a *Analyzer) badExpression(node ast.Node, code diag.Code, format string, args ...any) model.IExpression {
	a.errorf(node, code, format, args...)
	return a.nullLiteral(spanOf(node))
}

func spanOf(node ast.Node) diag.Span {
	if node == nil {
		return diag.Span{}
	}
	return node.SourceSpan()
}

// ParseAndAnalyze is a convenience that parses sources in analysis mode and
// lowers them, returning the first failing library's diagnostics.
func (a *Analyzer) ParseAndAnalyze(sources []string) ([]*model.Library, error) {
	parsed := make([]ParsedLibrary, 0, len(sources))
	for _, src := range sources {
		res := parser.Parse(src, parser.Analysis)
		if diag.HasErrors(res.Diagnostics) {
			return nil, &LibraryErrors{LibKey: libKeyFromAST(res.Library), Diagnostics: res.Diagnostics}
		}
		parsed = append(parsed, ParsedLibrary{AST: res.Library, SourceMap: res.SourceMap})
	}
	return a.Libraries(parsed)
}

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
	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/reference"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/types"
)

func accessLevel(m ast.AccessModifier) model.AccessLevel {
	if m == ast.AccessPrivate {
		return model.Private
	}
	return model.Public
}

// lowerLibrary lowers one library's declarations and statements in order:
// usings, includes, parameters, terminology declarations, then statements.
func (a *Analyzer) lowerLibrary(lib *ast.Library) *model.Library {
	out := &model.Library{}

	if lib.Identifier != nil {
		out.Identifier = &model.LibraryIdentifier{
			Element:   &model.Element{Span: lib.Identifier.Span},
			Local:     lib.Identifier.Qualified.Name.Name,
			Qualified: qualifiedName(lib.Identifier.Qualified),
			Version:   lib.Identifier.Version,
		}
		if err := a.refs.SetCurrentLibrary(out.Identifier); err != nil {
			a.errorf(lib, diag.DuplicateDefinition, "%v", err)
			return out
		}
	} else {
		a.refs.SetCurrentUnnamed()
	}

	for _, u := range lib.Usings {
		if err := a.registry.SetUsing(u.Model.Name, u.Version); err != nil {
			a.errorf(identNode(u.Model), diag.UnknownType, "%v", err)
			continue
		}
		uri, err := a.registry.URI(u.Model.Name)
		if err != nil {
			a.errorf(identNode(u.Model), diag.UnknownType, "%v", err)
			continue
		}
		out.Usings = append(out.Usings, &model.Using{
			Element:         &model.Element{Span: u.Span},
			LocalIdentifier: u.Model.Name,
			URI:             uri,
			Version:         u.Version,
		})
	}

	for _, inc := range lib.Includes {
		local := inc.Library.Name.Name
		if inc.HasCalled {
			local = inc.CalledAs.Name
		}
		ident := &model.LibraryIdentifier{
			Element:   &model.Element{Span: inc.Span},
			Local:     local,
			Qualified: qualifiedName(inc.Library),
			Version:   inc.Version,
		}
		if err := a.refs.IncludeLibrary(ident, true); err != nil {
			a.errorf(qualNode(inc.Library), diag.UndefinedLibrary, "%v", err)
			continue
		}
		out.Includes = append(out.Includes, &model.Include{
			Element:    &model.Element{Span: inc.Span},
			Identifier: ident,
		})
	}

	for _, p := range lib.Parameters {
		out.Parameters = append(out.Parameters, a.lowerParameter(p))
	}
	for _, cs := range lib.CodeSystems {
		out.CodeSystems = append(out.CodeSystems, a.lowerCodeSystem(cs))
	}
	for _, vs := range lib.ValueSets {
		out.Valuesets = append(out.Valuesets, a.lowerValueSet(vs))
	}
	for _, c := range lib.Codes {
		out.Codes = append(out.Codes, a.lowerCode(c))
	}
	for _, c := range lib.Concepts {
		out.Concepts = append(out.Concepts, a.lowerConcept(c))
	}

	// Contexts apply to the statements that follow them; the parser collects
	// them globally, so the context in effect for each statement is derived
	// from source order.
	contextAt := func(span diag.Span) string {
		name := ""
		for _, c := range lib.Contexts {
			if c.Span.Start <= span.Start {
				name = qualifiedName(c.Name)
			}
		}
		return name
	}

	out.Statements = &model.Statements{}
	for _, stmt := range lib.Statements {
		switch s := stmt.(type) {
		case *ast.ExpressionDef:
			a.currContext = contextAt(s.Span)
			def := a.lowerExpressionDef(s)
			out.Statements.Defs = append(out.Statements.Defs, def)
		case *ast.FunctionDef:
			a.currContext = contextAt(s.Span)
			def := a.lowerFunctionDef(s)
			if def != nil {
				out.Statements.Defs = append(out.Statements.Defs, def)
			}
		}
	}
	return out
}

func (a *Analyzer) lowerParameter(p *ast.ParameterDef) *model.ParameterDef {
	var paramType types.IType = types.Any
	var dflt model.IExpression
	if p.Type != nil {
		paramType = a.resolveTypeSpecifier(p.Type)
	}
	if p.Default != nil {
		dflt = a.lowerExpr(p.Default)
		if p.Type == nil {
			paramType = dflt.GetResultType()
		} else if !a.implicitlyConvertible(dflt.GetResultType(), paramType) {
			a.errorf(p.Default, diag.TypeMismatch,
				"parameter %s default of type %v cannot be converted to the declared type %v",
				p.Name.Name, dflt.GetResultType(), paramType)
		}
	}
	def := &model.ParameterDef{
		Element:     &model.Element{ResultType: paramType, Span: p.Span},
		Name:        p.Name.Name,
		Default:     dflt,
		AccessLevel: accessLevel(p.Access),
	}
	a.define(p.Name, def.Name, paramType, def.AccessLevel, func(rt types.IType) model.IExpression {
		return &model.ParameterRef{Expression: model.ResultType(rt), Name: def.Name}
	})
	return def
}

func (a *Analyzer) lowerCodeSystem(cs *ast.CodeSystemDef) *model.CodeSystemDef {
	def := &model.CodeSystemDef{
		Element:     &model.Element{ResultType: types.CodeSystem, Span: cs.Span},
		Name:        cs.Name.Name,
		ID:          cs.ID,
		Version:     cs.Version,
		AccessLevel: accessLevel(cs.Access),
	}
	a.define(cs.Name, def.Name, types.CodeSystem, def.AccessLevel, func(rt types.IType) model.IExpression {
		return &model.CodeSystemRef{Expression: model.ResultType(rt), Name: def.Name}
	})
	return def
}

func (a *Analyzer) lowerValueSet(vs *ast.ValueSetDef) *model.ValuesetDef {
	def := &model.ValuesetDef{
		Element:     &model.Element{ResultType: types.ValueSet, Span: vs.Span},
		Name:        vs.Name.Name,
		ID:          vs.ID,
		Version:     vs.Version,
		AccessLevel: accessLevel(vs.Access),
	}
	for _, csName := range vs.CodeSystems {
		ref := a.lowerExpr(&ast.Ref{Expression: &ast.Expression{Span: csName.Span}, Ident: csName})
		csRef, ok := ref.(*model.CodeSystemRef)
		if !ok {
			a.errorf(qualNode(csName), diag.TypeMismatch, "%v does not reference a codesystem", qualifiedName(csName))
			continue
		}
		def.CodeSystems = append(def.CodeSystems, csRef)
	}
	a.define(vs.Name, def.Name, types.ValueSet, def.AccessLevel, func(rt types.IType) model.IExpression {
		return &model.ValuesetRef{Expression: model.ResultType(rt), Name: def.Name}
	})
	return def
}

func (a *Analyzer) lowerCode(c *ast.CodeDef) *model.CodeDef {
	def := &model.CodeDef{
		Element:     &model.Element{ResultType: types.Code, Span: c.Span},
		Name:        c.Name.Name,
		Code:        c.Code,
		Display:     c.Display,
		AccessLevel: accessLevel(c.Access),
	}
	ref := a.lowerExpr(&ast.Ref{Expression: &ast.Expression{Span: c.CodeSystem.Span}, Ident: c.CodeSystem})
	if csRef, ok := ref.(*model.CodeSystemRef); ok {
		def.CodeSystem = csRef
	} else {
		a.errorf(qualNode(c.CodeSystem), diag.TypeMismatch, "%v does not reference a codesystem", qualifiedName(c.CodeSystem))
	}
	a.define(c.Name, def.Name, types.Code, def.AccessLevel, func(rt types.IType) model.IExpression {
		return &model.CodeRef{Expression: model.ResultType(rt), Name: def.Name}
	})
	return def
}

func (a *Analyzer) lowerConcept(c *ast.ConceptDef) *model.ConceptDef {
	def := &model.ConceptDef{
		Element:     &model.Element{ResultType: types.Concept, Span: c.Span},
		Name:        c.Name.Name,
		Display:     c.Display,
		AccessLevel: accessLevel(c.Access),
	}
	for _, codeName := range c.Codes {
		ref := a.lowerExpr(&ast.Ref{Expression: &ast.Expression{Span: codeName.Span}, Ident: codeName})
		codeRef, ok := ref.(*model.CodeRef)
		if !ok {
			a.errorf(qualNode(codeName), diag.TypeMismatch, "%v does not reference a code", qualifiedName(codeName))
			continue
		}
		def.Codes = append(def.Codes, codeRef)
	}
	if len(def.Codes) == 0 {
		a.errorf(identNode(c.Name), diag.TypeMismatch, "concept %s requires at least one code", c.Name.Name)
	}
	a.define(c.Name, def.Name, types.Concept, def.AccessLevel, func(rt types.IType) model.IExpression {
		return &model.ConceptRef{Expression: model.ResultType(rt), Name: def.Name}
	})
	return def
}

func (a *Analyzer) lowerExpressionDef(s *ast.ExpressionDef) *model.ExpressionDef {
	expr := a.lowerExpr(s.Expression)
	def := &model.ExpressionDef{
		Element:     &model.Element{ResultType: expr.GetResultType(), Span: s.Span},
		Name:        s.Name.Name,
		Context:     a.currContext,
		Expression:  expr,
		AccessLevel: accessLevel(s.Access),
	}
	a.define(s.Name, def.Name, expr.GetResultType(), def.AccessLevel, func(rt types.IType) model.IExpression {
		return &model.ExpressionRef{Expression: model.ResultType(rt), Name: def.Name}
	})
	return def
}

func (a *Analyzer) lowerFunctionDef(s *ast.FunctionDef) *model.FunctionDef {
	operandTypes := make([]types.IType, 0, len(s.Operands))
	operands := make([]model.OperandDef, 0, len(s.Operands))
	for _, op := range s.Operands {
		opType := a.resolveTypeSpecifier(op.Type)
		operandTypes = append(operandTypes, opType)
		operands = append(operands, model.OperandDef{
			Expression: model.TypeAndSpan(opType, op.Span),
			Name:       op.Name.Name,
		})
	}

	var declaredReturn types.IType
	if s.ReturnType != nil {
		declaredReturn = a.resolveTypeSpecifier(s.ReturnType)
	}

	// Functions with a declared return type register before their body is
	// lowered so recursive calls resolve.
	fnName := s.Name.Name
	registered := false
	if declaredReturn != nil {
		rt := declaredReturn
		err := a.refs.DefineFunc(&reference.Func[refFunc]{
			Name:     fnName,
			Operands: operandTypes,
			Result: func() model.IExpression {
				return &model.FunctionRef{Expression: model.ResultType(rt), Name: fnName}
			},
			IsPublic:         accessLevel(s.Access) == model.Public,
			IsFluent:         s.Fluent,
			ValidateIsUnique: true,
		})
		if err != nil {
			a.errorf(identNode(s.Name), diag.DuplicateDefinition, "%v", err)
			return nil
		}
		registered = true
	}

	var body model.IExpression
	if !s.External {
		// The function body sees its operands through a function scope.
		a.refs.EnterScope(reference.ScopeFunction)
		for i, op := range s.Operands {
			name := op.Name.Name
			opType := operandTypes[i]
			if err := a.refs.DefineAlias(name, func() model.IExpression {
				return &model.OperandRef{Expression: model.ResultType(opType), Name: name}
			}); err != nil {
				a.errorf(identNode(op.Name), diag.DuplicateDefinition, "%v", err)
			}
		}
		body = a.lowerExpr(s.Expression)
		a.refs.ExitScope()
	}

	returnType := declaredReturn
	if returnType == nil {
		if body != nil {
			returnType = body.GetResultType()
		} else {
			a.errorf(s, diag.TypeMismatch, "external function %s requires a return type", s.Name.Name)
			returnType = types.Any
		}
	} else if body != nil && !a.implicitlyConvertible(body.GetResultType(), returnType) {
		a.errorf(s.Expression, diag.TypeMismatch,
			"function %s body of type %v cannot be converted to the declared return type %v",
			s.Name.Name, body.GetResultType(), returnType)
	}

	def := &model.FunctionDef{
		ExpressionDef: &model.ExpressionDef{
			Element:     &model.Element{ResultType: returnType, Span: s.Span},
			Name:        s.Name.Name,
			Context:     a.currContext,
			Expression:  body,
			AccessLevel: accessLevel(s.Access),
		},
		Operands: operands,
		Fluent:   s.Fluent,
		External: s.External,
	}

	if !registered {
		err := a.refs.DefineFunc(&reference.Func[refFunc]{
			Name:     fnName,
			Operands: operandTypes,
			Result: func() model.IExpression {
				return &model.FunctionRef{Expression: model.ResultType(returnType), Name: fnName}
			},
			IsPublic:         def.AccessLevel == model.Public,
			IsFluent:         s.Fluent,
			ValidateIsUnique: true,
		})
		if err != nil {
			a.errorf(identNode(s.Name), diag.DuplicateDefinition, "%v", err)
			return nil
		}
	}
	return def
}

// define registers a named definition whose references produce fresh nodes.
func (a *Analyzer) define(nameNode ast.Identifier, name string, rt types.IType, access model.AccessLevel, mk func(types.IType) model.IExpression) {
	err := a.refs.Define(&reference.Def[refFunc]{
		Name:             name,
		Result:           func() model.IExpression { return mk(rt) },
		IsPublic:         access == model.Public,
		ValidateIsUnique: true,
	})
	if err != nil {
		a.errorf(identNode(nameNode), diag.DuplicateDefinition, "%v", err)
	}
}

// identNode and qualNode adapt identifiers to ast.Node for diagnostics.
func identNode(i ast.Identifier) ast.Node          { return i }
func qualNode(q ast.QualifiedIdentifier) ast.Node  { return q }

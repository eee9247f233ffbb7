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

package ast

import "github.com/octofhir/cql-go/diag"

// AccessModifier is the visibility of a declaration. Public is the default.
type AccessModifier int

// Access modifiers.
const (
	AccessPublic AccessModifier = iota
	AccessPrivate
)

// LibraryIdentifier is the "library Name version 'v'" declaration.
type LibraryIdentifier struct {
	Span      diag.Span
	Qualified QualifiedIdentifier
	Version   string
}

// UsingDef declares a data model, such as "using FHIR version '4.0.1'".
type UsingDef struct {
	Span    diag.Span
	Model   Identifier
	Version string
}

// IncludeDef declares a library dependency with an optional local alias.
type IncludeDef struct {
	Span      diag.Span
	Library   QualifiedIdentifier
	Version   string
	CalledAs  Identifier
	HasCalled bool
}

// ParameterDef declares a library parameter with an optional type and
// default.
type ParameterDef struct {
	Span    diag.Span
	Access  AccessModifier
	Name    Identifier
	Type    ITypeSpecifier
	Default IExpression
}

// CodeSystemDef declares a code system by id and optional version.
type CodeSystemDef struct {
	Span    diag.Span
	Access  AccessModifier
	Name    Identifier
	ID      string
	Version string
}

// ValueSetDef declares a value set by id, optional version and optional
// code systems.
type ValueSetDef struct {
	Span        diag.Span
	Access      AccessModifier
	Name        Identifier
	ID          string
	Version     string
	CodeSystems []QualifiedIdentifier
}

// CodeDef declares a code within a code system.
type CodeDef struct {
	Span       diag.Span
	Access     AccessModifier
	Name       Identifier
	Code       string
	CodeSystem QualifiedIdentifier
	Display    string
}

// ConceptDef declares a concept as a list of code references.
type ConceptDef struct {
	Span    diag.Span
	Access  AccessModifier
	Name    Identifier
	Codes   []QualifiedIdentifier
	Display string
}

// ContextDef establishes the evaluation context, such as "context Patient".
type ContextDef struct {
	Span diag.Span
	Name QualifiedIdentifier
}

// IStatement is an expression definition or a function definition.
type IStatement interface {
	Node
	isStatement()
}

// ExpressionDef is "define Name: expression".
type ExpressionDef struct {
	Span       diag.Span
	Access     AccessModifier
	Name       Identifier
	Expression IExpression
}

// SourceSpan returns the byte range of the source text the node covers.
func (d *ExpressionDef) SourceSpan() diag.Span { return d.Span }

func (d *ExpressionDef) isStatement() {}

// OperandDef is one declared function parameter.
type OperandDef struct {
	Span diag.Span
	Name Identifier
	Type ITypeSpecifier
}

// FunctionDef is "define [fluent] function Name(params) [returns T]: body".
// External functions have no body.
type FunctionDef struct {
	Span       diag.Span
	Access     AccessModifier
	Name       Identifier
	Operands   []OperandDef
	ReturnType ITypeSpecifier
	Expression IExpression
	Fluent     bool
	External   bool
}

// SourceSpan returns the byte range of the source text the node covers.
func (d *FunctionDef) SourceSpan() diag.Span { return d.Span }

func (d *FunctionDef) isStatement() {}

// Library is one parsed CQL file.
type Library struct {
	Span        diag.Span
	Identifier  *LibraryIdentifier
	Usings      []UsingDef
	Includes    []IncludeDef
	Parameters  []*ParameterDef
	CodeSystems []*CodeSystemDef
	ValueSets   []*ValueSetDef
	Codes       []*CodeDef
	Concepts    []*ConceptDef
	Contexts    []*ContextDef
	Statements  []IStatement
}

// SourceSpan returns the byte range of the source text the node covers.
func (l *Library) SourceSpan() diag.Span { return l.Span }

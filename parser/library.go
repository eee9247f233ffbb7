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

package parser

import (
	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
)

// parseLibrary parses a complete CQL file: the optional library declaration,
// the header declarations in any order, then statements.
func (p *parser) parseLibrary() *ast.Library {
	lib := &ast.Library{}
	start := p.cur().Span.Start

	if p.atKeyword("library") {
		lib.Identifier = p.parseLibraryIdentifier()
	}

	for p.cur().Kind != TokenEOF {
		switch {
		case p.atKeyword("using"):
			lib.Usings = append(lib.Usings, p.parseUsing())
		case p.atKeyword("include"):
			lib.Includes = append(lib.Includes, p.parseInclude())
		case p.atKeyword("parameter") || (p.atAccessModifier() && p.peek(1).Is("parameter")):
			lib.Parameters = append(lib.Parameters, p.parseParameter())
		case p.atKeyword("codesystem") || (p.atAccessModifier() && p.peek(1).Is("codesystem")):
			lib.CodeSystems = append(lib.CodeSystems, p.parseCodeSystem())
		case p.atKeyword("valueset") || (p.atAccessModifier() && p.peek(1).Is("valueset")):
			lib.ValueSets = append(lib.ValueSets, p.parseValueSet())
		case p.atKeyword("code") || (p.atAccessModifier() && p.peek(1).Is("code")):
			lib.Codes = append(lib.Codes, p.parseCode())
		case p.atKeyword("concept") || (p.atAccessModifier() && p.peek(1).Is("concept")):
			lib.Concepts = append(lib.Concepts, p.parseConcept())
		case p.atKeyword("context"):
			lib.Contexts = append(lib.Contexts, p.parseContext())
		case p.atKeyword("define") || (p.atAccessModifier() && p.peek(1).Is("define")):
			lib.Statements = append(lib.Statements, p.parseStatement())
		default:
			p.errorf(p.cur().Span, diag.UnexpectedToken, "expected a declaration, found %q", p.describe(p.cur()))
			// Step past the offending token before synchronizing so a stray
			// access modifier cannot stall the loop.
			p.advance()
			p.synchronize()
		}
	}
	lib.Span = p.spanFrom(start)
	return lib
}

func (p *parser) atAccessModifier() bool {
	return p.atKeyword("public") || p.atKeyword("private")
}

func (p *parser) parseAccessModifier() ast.AccessModifier {
	if p.acceptKeyword("private") {
		return ast.AccessPrivate
	}
	p.acceptKeyword("public")
	return ast.AccessPublic
}

// parseIdentifier parses a bare or quoted identifier.
func (p *parser) parseIdentifier() ast.Identifier {
	t := p.cur()
	switch t.Kind {
	case TokenIdent:
		p.advance()
		return ast.Identifier{Span: t.Span, Name: t.Text}
	case TokenQuotedIdent:
		p.advance()
		return ast.Identifier{Span: t.Span, Name: t.Text, Quoted: true}
	case TokenKeyword:
		p.errorf(t.Span, diag.ReservedKeyword, "%q is a reserved keyword and cannot be used as an identifier", t.Text)
		p.advance()
		return ast.Identifier{Span: t.Span, Name: t.Text}
	}
	p.errorf(t.Span, diag.ExpectedIdentifier, "expected an identifier, found %q", p.describe(t))
	return ast.Identifier{Span: diag.Point(t.Span.Start)}
}

// parseQualifiedIdentifier parses ident ('.' ident)*.
func (p *parser) parseQualifiedIdentifier() ast.QualifiedIdentifier {
	start := p.cur().Span.Start
	first := p.parseIdentifier()
	idents := []ast.Identifier{first}
	for p.at(TokenDot) && (p.peek(1).IsIdent()) {
		p.advance()
		idents = append(idents, p.parseIdentifier())
	}
	return ast.QualifiedIdentifier{
		Span:       p.spanFrom(start),
		Qualifiers: idents[:len(idents)-1],
		Name:       idents[len(idents)-1],
	}
}

func (p *parser) parseVersion() string {
	if p.acceptKeyword("version") {
		v := p.expect(TokenString, "version string")
		return v.Text
	}
	return ""
}

func (p *parser) parseLibraryIdentifier() *ast.LibraryIdentifier {
	start := p.cur().Span.Start
	p.expectKeyword("library")
	qual := p.parseQualifiedIdentifier()
	version := p.parseVersion()
	return &ast.LibraryIdentifier{Span: p.spanFrom(start), Qualified: qual, Version: version}
}

func (p *parser) parseUsing() ast.UsingDef {
	start := p.cur().Span.Start
	p.expectKeyword("using")
	model := p.parseIdentifier()
	version := p.parseVersion()
	return ast.UsingDef{Span: p.spanFrom(start), Model: model, Version: version}
}

func (p *parser) parseInclude() ast.IncludeDef {
	start := p.cur().Span.Start
	p.expectKeyword("include")
	libID := p.parseQualifiedIdentifier()
	version := p.parseVersion()
	inc := ast.IncludeDef{Span: p.spanFrom(start), Library: libID, Version: version}
	if p.acceptKeyword("called") {
		inc.CalledAs = p.parseIdentifier()
		inc.HasCalled = true
	}
	inc.Span = p.spanFrom(start)
	return inc
}

func (p *parser) parseParameter() *ast.ParameterDef {
	start := p.cur().Span.Start
	access := p.parseAccessModifier()
	p.expectKeyword("parameter")
	name := p.parseIdentifier()
	def := &ast.ParameterDef{Span: p.spanFrom(start), Access: access, Name: name}
	if !p.atKeyword("default") && p.startsTypeSpecifier() {
		def.Type = p.parseTypeSpecifier()
	}
	if p.acceptKeyword("default") {
		def.Default = p.parseExpression()
	}
	def.Span = p.spanFrom(start)
	return def
}

func (p *parser) parseCodeSystem() *ast.CodeSystemDef {
	start := p.cur().Span.Start
	access := p.parseAccessModifier()
	p.expectKeyword("codesystem")
	name := p.parseIdentifier()
	p.expect(TokenColon, "':'")
	id := p.expect(TokenString, "codesystem id").Text
	version := p.parseVersion()
	return &ast.CodeSystemDef{Span: p.spanFrom(start), Access: access, Name: name, ID: id, Version: version}
}

func (p *parser) parseValueSet() *ast.ValueSetDef {
	start := p.cur().Span.Start
	access := p.parseAccessModifier()
	p.expectKeyword("valueset")
	name := p.parseIdentifier()
	p.expect(TokenColon, "':'")
	id := p.expect(TokenString, "valueset id").Text
	version := p.parseVersion()
	def := &ast.ValueSetDef{Span: p.spanFrom(start), Access: access, Name: name, ID: id, Version: version}
	if p.acceptKeyword("codesystems") {
		p.expect(TokenLBrace, "'{'")
		for {
			def.CodeSystems = append(def.CodeSystems, p.parseQualifiedIdentifier())
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
		p.expect(TokenRBrace, "'}'")
	}
	def.Span = p.spanFrom(start)
	return def
}

func (p *parser) parseCode() *ast.CodeDef {
	start := p.cur().Span.Start
	access := p.parseAccessModifier()
	p.expectKeyword("code")
	name := p.parseIdentifier()
	p.expect(TokenColon, "':'")
	code := p.expect(TokenString, "code value").Text
	p.expectKeyword("from")
	system := p.parseQualifiedIdentifier()
	def := &ast.CodeDef{Span: p.spanFrom(start), Access: access, Name: name, Code: code, CodeSystem: system}
	if p.acceptKeyword("display") {
		def.Display = p.expect(TokenString, "display string").Text
	}
	def.Span = p.spanFrom(start)
	return def
}

func (p *parser) parseConcept() *ast.ConceptDef {
	start := p.cur().Span.Start
	access := p.parseAccessModifier()
	p.expectKeyword("concept")
	name := p.parseIdentifier()
	p.expect(TokenColon, "':'")
	p.expect(TokenLBrace, "'{'")
	def := &ast.ConceptDef{Span: p.spanFrom(start), Access: access, Name: name}
	for {
		def.Codes = append(def.Codes, p.parseQualifiedIdentifier())
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	p.expect(TokenRBrace, "'}'")
	if p.acceptKeyword("display") {
		def.Display = p.expect(TokenString, "display string").Text
	}
	def.Span = p.spanFrom(start)
	return def
}

func (p *parser) parseContext() *ast.ContextDef {
	start := p.cur().Span.Start
	p.expectKeyword("context")
	name := p.parseQualifiedIdentifier()
	return &ast.ContextDef{Span: p.spanFrom(start), Name: name}
}

// parseStatement parses an expression or function definition.
func (p *parser) parseStatement() ast.IStatement {
	start := p.cur().Span.Start
	access := p.parseAccessModifier()
	p.expectKeyword("define")
	// The modifier may also follow define: "define private X: ...".
	if p.atAccessModifier() {
		access = p.parseAccessModifier()
	}

	fluent := p.acceptKeyword("fluent")
	if fluent || p.atKeyword("function") {
		return p.parseFunctionDef(start, access, fluent)
	}

	name := p.parseIdentifier()
	p.expect(TokenColon, "':'")
	expr := p.parseExpression()
	return &ast.ExpressionDef{Span: p.spanFrom(start), Access: access, Name: name, Expression: expr}
}

func (p *parser) parseFunctionDef(start int, access ast.AccessModifier, fluent bool) *ast.FunctionDef {
	p.expectKeyword("function")
	name := p.parseIdentifier()
	def := &ast.FunctionDef{Access: access, Name: name, Fluent: fluent}

	p.expect(TokenLParen, "'('")
	if !p.at(TokenRParen) {
		for {
			opStart := p.cur().Span.Start
			opName := p.parseIdentifier()
			opType := p.parseTypeSpecifier()
			def.Operands = append(def.Operands, ast.OperandDef{
				Span: p.spanFrom(opStart),
				Name: opName,
				Type: opType,
			})
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}
	p.expect(TokenRParen, "')'")

	if p.acceptKeyword("return") || p.acceptKeyword("returns") {
		def.ReturnType = p.parseTypeSpecifier()
	}

	p.expect(TokenColon, "':'")
	if p.acceptKeyword("external") {
		def.External = true
	} else {
		def.Expression = p.parseExpression()
	}
	def.Span = p.spanFrom(start)
	return def
}

// startsTypeSpecifier reports whether the current token can begin a type
// specifier.
func (p *parser) startsTypeSpecifier() bool {
	t := p.cur()
	switch t.Kind {
	case TokenIdent, TokenQuotedIdent:
		return true
	case TokenKeyword:
		return t.Text == "List" || t.Text == "Interval" || t.Text == "Tuple"
	}
	return false
}

// parseTypeSpecifier parses a type specifier: a qualified name, List<T>,
// Interval<T>, Tuple { name T, ... } or Choice<A, B>.
func (p *parser) parseTypeSpecifier() ast.ITypeSpecifier {
	start := p.cur().Span.Start
	base := &ast.TypeSpecifier{}
	switch {
	case p.atKeyword("List"):
		p.advance()
		p.expect(TokenLt, "'<'")
		elem := p.parseTypeSpecifier()
		p.expect(TokenGt, "'>'")
		base.Span = p.spanFrom(start)
		return &ast.ListType{TypeSpecifier: base, Element: elem}
	case p.atKeyword("Interval"):
		p.advance()
		p.expect(TokenLt, "'<'")
		point := p.parseTypeSpecifier()
		p.expect(TokenGt, "'>'")
		base.Span = p.spanFrom(start)
		return &ast.IntervalType{TypeSpecifier: base, Point: point}
	case p.atKeyword("Tuple"):
		p.advance()
		p.expect(TokenLBrace, "'{'")
		tuple := &ast.TupleType{TypeSpecifier: base}
		for {
			name := p.parseIdentifier()
			typ := p.parseTypeSpecifier()
			tuple.Elements = append(tuple.Elements, ast.TupleTypeElement{Name: name, Type: typ})
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
		p.expect(TokenRBrace, "'}'")
		base.Span = p.spanFrom(start)
		return tuple
	case p.cur().Kind == TokenIdent && p.cur().Text == "Choice" && p.peek(1).Kind == TokenLt:
		p.advance()
		p.advance()
		choice := &ast.ChoiceType{TypeSpecifier: base}
		for {
			choice.Choices = append(choice.Choices, p.parseTypeSpecifier())
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
		p.expect(TokenGt, "'>'")
		base.Span = p.spanFrom(start)
		return choice
	case p.cur().IsIdent():
		ident := p.parseQualifiedIdentifier()
		base.Span = p.spanFrom(start)
		return &ast.NamedType{TypeSpecifier: base, Ident: ident}
	}
	p.errorf(p.cur().Span, diag.ExpectedType, "expected a type specifier, found %q", p.describe(p.cur()))
	base.Span = diag.Point(p.cur().Span.Start)
	return &ast.NamedType{TypeSpecifier: base, Ident: ast.QualifiedIdentifier{Name: ast.Identifier{Name: "Any"}}}
}

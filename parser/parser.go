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

// Package parser offers a hand-written CQL parser: a lexer feeding a
// recursive-descent parser for statements and structured forms, with
// precedence climbing for expressions. It produces the surface AST; the
// analyzer package resolves and lowers it.
package parser

import (
	"fmt"

	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
)

// Mode selects the parser's error behavior.
type Mode int

const (
	// Fast stops at the first error and returns no AST.
	Fast Mode = iota
	// Analysis recovers and continues, returning a possibly-partial AST plus
	// all diagnostics. Unrecoverable subtrees are replaced by ast.Error
	// nodes to preserve tree shape.
	Analysis
)

// Result is the outcome of a parse.
type Result struct {
	// Library is nil in Fast mode when any error occurred.
	Library     *ast.Library
	Diagnostics []diag.Diagnostic
	// SourceMap resolves spans in the diagnostics and AST against the input.
	SourceMap *diag.SourceMap
}

// ExpressionResult is the outcome of parsing a standalone expression.
type ExpressionResult struct {
	Expression  ast.IExpression
	Diagnostics []diag.Diagnostic
	SourceMap   *diag.SourceMap
}

// Parse parses one CQL library source.
func Parse(source string, mode Mode) Result {
	p := newParser(source, mode)
	lib := func() *ast.Library {
		defer p.recoverFast()
		return p.parseLibrary()
	}()
	diag.Sort(p.diags)
	if mode == Fast && diag.HasErrors(p.diags) {
		return Result{Diagnostics: p.diags, SourceMap: p.src}
	}
	return Result{Library: lib, Diagnostics: p.diags, SourceMap: p.src}
}

// ParseExpression parses a standalone CQL expression, as used for parameter
// literals and REPL input.
func ParseExpression(source string) ExpressionResult {
	p := newParser(source, Analysis)
	expr := func() ast.IExpression {
		defer p.recoverFast()
		e := p.parseExpression()
		if p.cur().Kind != TokenEOF {
			p.errorf(p.cur().Span, diag.UnexpectedToken, "unexpected input after expression")
		}
		return e
	}()
	diag.Sort(p.diags)
	return ExpressionResult{Expression: expr, Diagnostics: p.diags, SourceMap: p.src}
}

type parser struct {
	toks  []Token
	pos   int
	src   *diag.SourceMap
	mode  Mode
	diags []diag.Diagnostic
	// suppressQuery disables the single-source query suffix while parsing
	// positions where a trailing alias belongs to an enclosing construct,
	// such as the sources of a from query. Parentheses reset it.
	suppressQuery bool
}

// fastFail is panicked in Fast mode on the first error and recovered at the
// entry points.
type fastFail struct{}

func newParser(source string, mode Mode) *parser {
	lex := newLexer(source)
	toks := lex.tokenize()
	p := &parser{toks: toks, src: lex.srcm, mode: mode}
	p.diags = append(p.diags, lex.diags...)
	if mode == Fast && diag.HasErrors(p.diags) {
		// Lexical errors already doom a fast parse; parsing still proceeds on
		// the tokens we have so spans stay coherent, entry points drop the AST.
		return p
	}
	return p
}

func (p *parser) recoverFast() {
	if r := recover(); r != nil {
		if _, ok := r.(fastFail); !ok {
			panic(r)
		}
	}
}

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peek(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(kind TokenKind) bool { return p.cur().Kind == kind }

func (p *parser) atKeyword(kw string) bool { return p.cur().Is(kw) }

// accept consumes the current token if it has the given kind.
func (p *parser) accept(kind TokenKind) (Token, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	return Token{}, false
}

// acceptKeyword consumes the current token if it is the given keyword.
func (p *parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind TokenKind, what string) Token {
	if p.at(kind) {
		return p.advance()
	}
	p.errorf(p.cur().Span, diag.UnexpectedToken, "expected %s, found %q", what, p.describe(p.cur()))
	return Token{Kind: kind, Span: diag.Point(p.cur().Span.Start)}
}

func (p *parser) expectKeyword(kw string) {
	if !p.acceptKeyword(kw) {
		p.errorf(p.cur().Span, diag.UnexpectedToken, "expected %q, found %q", kw, p.describe(p.cur()))
	}
}

func (p *parser) describe(t Token) string {
	if t.Kind == TokenEOF {
		return "end of input"
	}
	return t.Text
}

func (p *parser) errorf(span diag.Span, code diag.Code, format string, args ...any) {
	loc := p.src.Locate(span)
	p.diags = append(p.diags, diag.Diagnostic{
		Severity: diag.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: &loc,
	})
	if p.mode == Fast {
		panic(fastFail{})
	}
}

func (p *parser) warnf(span diag.Span, code diag.Code, format string, args ...any) {
	loc := p.src.Locate(span)
	p.diags = append(p.diags, diag.Diagnostic{
		Severity: diag.SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: &loc,
	})
}

// spanFrom builds a span from a start offset to the end of the previously
// consumed token.
func (p *parser) spanFrom(start int) diag.Span {
	end := start
	if p.pos > 0 {
		end = p.toks[p.pos-1].Span.End
	}
	if end < start {
		end = start
	}
	return diag.NewSpan(start, end)
}

// synchronize consumes tokens until a synchronizing token: a closing
// delimiter, a comma, or a keyword starting a new definition. It returns the
// span of the consumed range for the Error placeholder node.
func (p *parser) synchronize() diag.Span {
	start := p.cur().Span.Start
	for {
		t := p.cur()
		switch t.Kind {
		case TokenEOF, TokenRParen, TokenRBrace, TokenRBracket, TokenComma:
			return diag.NewSpan(start, t.Span.Start)
		case TokenKeyword:
			if definitionKeywords[t.Text] {
				return diag.NewSpan(start, t.Span.Start)
			}
		}
		p.advance()
	}
}

// errorNode records a diagnostic and produces the Error placeholder after
// synchronizing past the unparsable range.
func (p *parser) errorNode(code diag.Code, format string, args ...any) *ast.Error {
	p.errorf(p.cur().Span, code, format, args...)
	span := p.synchronize()
	return &ast.Error{Expression: &ast.Expression{Span: span}}
}

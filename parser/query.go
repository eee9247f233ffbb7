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

// queryClauseKeywords begin a query body after a source alias.
var queryClauseKeywords = map[string]bool{
	"let": true, "with": true, "without": true, "where": true,
	"return": true, "aggregate": true, "sort": true,
}

// maybeQuery turns "expr Alias <clauses>" into a single-source query. The
// alias must be a bare identifier followed by a query clause keyword; any
// other continuation leaves expr untouched.
func (p *parser) maybeQuery(start int, expr ast.IExpression) ast.IExpression {
	if p.suppressQuery {
		return expr
	}
	if p.cur().Kind != TokenIdent && p.cur().Kind != TokenQuotedIdent {
		return expr
	}
	next := p.peek(1)
	if next.Kind != TokenKeyword || !queryClauseKeywords[next.Text] {
		return expr
	}
	alias := p.parseIdentifier()
	source := ast.AliasedSource{
		Span:   diag.NewSpan(expr.SourceSpan().Start, alias.Span.End),
		Source: expr,
		Alias:  alias,
	}
	return p.parseQueryBody(start, []ast.AliasedSource{source})
}

// parseFromQuery parses the multi-source form:
// from src1 A1, src2 A2 ... <clauses>.
func (p *parser) parseFromQuery() ast.IExpression {
	start := p.cur().Span.Start
	p.expectKeyword("from")
	var sources []ast.AliasedSource
	for {
		srcStart := p.cur().Span.Start
		p.suppressQuery = true
		src := p.parseBinaryExpr(lvlImplies)
		p.suppressQuery = false
		alias := p.parseIdentifier()
		sources = append(sources, ast.AliasedSource{
			Span:   p.spanFrom(srcStart),
			Source: src,
			Alias:  alias,
		})
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	return p.parseQueryBody(start, sources)
}

// parseQueryBody parses the clauses of a query in grammar order: lets,
// relationships, where, return or aggregate, sort.
func (p *parser) parseQueryBody(start int, sources []ast.AliasedSource) ast.IExpression {
	q := &ast.Query{Expression: &ast.Expression{}, Sources: sources}

	for p.atKeyword("let") {
		p.advance()
		for {
			letStart := p.cur().Span.Start
			name := p.parseIdentifier()
			p.expect(TokenColon, "':'")
			value := p.parseExpression()
			q.Lets = append(q.Lets, ast.LetClause{
				Span:       p.spanFrom(letStart),
				Identifier: name,
				Expression: value,
			})
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}

	for p.atKeyword("with") || p.atKeyword("without") {
		relStart := p.cur().Span.Start
		without := p.cur().Text == "without"
		p.advance()
		p.suppressQuery = true
		src := p.parseBinaryExpr(lvlImplies)
		p.suppressQuery = false
		alias := p.parseIdentifier()
		p.expectKeyword("such")
		p.expectKeyword("that")
		suchThat := p.parseExpression()
		q.Relationships = append(q.Relationships, ast.RelationshipClause{
			Span:     p.spanFrom(relStart),
			Without:  without,
			Source:   src,
			Alias:    alias,
			SuchThat: suchThat,
		})
	}

	if p.acceptKeyword("where") {
		q.Where = p.parseExpression()
	}

	switch {
	case p.atKeyword("return"):
		retStart := p.cur().Span.Start
		p.advance()
		ret := &ast.ReturnClause{Distinct: true}
		if p.acceptKeyword("distinct") {
			ret.Distinct = true
		} else if p.acceptKeyword("all") {
			ret.Distinct = false
		}
		ret.Expression = p.parseExpression()
		ret.Span = p.spanFrom(retStart)
		q.Return = ret
	case p.atKeyword("aggregate"):
		aggStart := p.cur().Span.Start
		p.advance()
		agg := &ast.AggregateClause{}
		if p.acceptKeyword("distinct") {
			agg.Distinct = true
		} else {
			p.acceptKeyword("all")
		}
		agg.Identifier = p.parseIdentifier()
		if p.cur().Kind == TokenIdent && p.cur().Text == "starting" {
			p.advance()
			agg.Starting = p.parseExpression()
		}
		p.expect(TokenColon, "':'")
		agg.Expression = p.parseExpression()
		agg.Span = p.spanFrom(aggStart)
		q.Aggregate = agg
	}

	if p.atKeyword("sort") {
		p.advance()
		// "sort asc|desc" orders the elements themselves and takes no by.
		if !p.atKeyword("asc") && !p.atKeyword("ascending") && !p.atKeyword("desc") && !p.atKeyword("descending") {
			p.expectKeyword("by")
		}
		for {
			itemStart := p.cur().Span.Start
			item := ast.SortItem{}
			switch {
			case p.acceptKeyword("asc") || p.acceptKeyword("ascending"):
				item.Direction = ast.SortAscending
			case p.acceptKeyword("desc") || p.acceptKeyword("descending"):
				item.Direction = ast.SortDescending
			default:
				item.Key = p.parseExpression()
				switch {
				case p.acceptKeyword("asc") || p.acceptKeyword("ascending"):
					item.Direction = ast.SortAscending
				case p.acceptKeyword("desc") || p.acceptKeyword("descending"):
					item.Direction = ast.SortDescending
				}
			}
			item.Span = p.spanFrom(itemStart)
			q.Sort = append(q.Sort, item)
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}

	q.Span = p.spanFrom(start)
	return q
}

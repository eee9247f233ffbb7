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

import "github.com/octofhir/cql-go/diag"

// TokenKind identifies the lexical class of a token.
type TokenKind int

// Token kinds.
const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenQuotedIdent
	TokenKeyword
	TokenString
	TokenInteger
	TokenLong
	TokenDecimal
	TokenDate
	TokenDateTime
	TokenTime

	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenColon
	TokenDot
	TokenDollarIdent

	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenCaret
	TokenAmp
	TokenPipe
	TokenEq
	TokenNeq
	TokenEqv
	TokenNeqv
	TokenLt
	TokenLe
	TokenGt
	TokenGe
)

// Token is one lexical token with its source span. For TokenString the Text
// holds the unescaped value; for quoted identifiers the text excludes the
// quotes; for temporal tokens the text excludes the @.
type Token struct {
	Kind TokenKind
	Text string
	Span diag.Span
}

// Is reports whether the token is the given keyword. Keywords are case
// sensitive in CQL.
func (t Token) Is(keyword string) bool {
	return t.Kind == TokenKeyword && t.Text == keyword
}

// IsIdent reports whether the token can serve as an identifier.
func (t Token) IsIdent() bool {
	return t.Kind == TokenIdent || t.Kind == TokenQuotedIdent
}

// keywords are the reserved words of CQL 1.5. Words recognized here lex as
// TokenKeyword; everything else identifier shaped lexes as TokenIdent.
var keywords = map[string]bool{
	"after": true, "aggregate": true, "all": true, "and": true, "as": true,
	"asc": true, "ascending": true, "before": true, "between": true,
	"by": true, "called": true, "case": true, "cast": true, "code": true,
	"codesystem": true, "codesystems": true, "collapse": true,
	"concept": true, "contains": true, "context": true, "convert": true,
	"date": true, "day": true, "days": true, "default": true,
	"define": true, "desc": true, "descending": true, "difference": true,
	"display": true, "distinct": true, "div": true, "during": true,
	"else": true, "end": true, "ends": true, "except": true,
	"exists": true, "expand": true, "external": true, "false": true,
	"flatten": true, "fluent": true, "from": true, "function": true,
	"hour": true, "hours": true, "if": true, "implies": true, "in": true,
	"include": true, "includes": true, "included": true, "intersect": true,
	"Interval": true, "is": true, "let": true, "library": true,
	"List": true, "maximum": true, "meets": true, "millisecond": true,
	"milliseconds": true, "minimum": true, "minute": true, "minutes": true,
	"mod": true, "month": true, "months": true, "not": true, "null": true,
	"occurs": true, "of": true, "or": true, "overlaps": true,
	"parameter": true, "per": true, "point": true, "predecessor": true,
	"private": true, "properly": true, "public": true, "return": true,
	"returns": true, "same": true, "second": true, "seconds": true,
	"singleton": true,
	"sort": true, "start": true, "starts": true, "such": true,
	"successor": true, "then": true, "time": true, "timezoneoffset": true,
	"to": true, "Tuple": true, "union": true, "using": true,
	"valueset": true, "version": true, "week": true, "weeks": true,
	"when": true, "where": true, "width": true, "with": true,
	"within": true, "without": true, "xor": true, "year": true,
	"years": true, "true": true, "duration": true, "that": true,
}

// definitionKeywords start a new top-level declaration; the recovery loop
// synchronizes on them.
var definitionKeywords = map[string]bool{
	"library": true, "using": true, "include": true, "parameter": true,
	"codesystem": true, "valueset": true, "code": true, "concept": true,
	"context": true, "define": true, "public": true, "private": true,
}

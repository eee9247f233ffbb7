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
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/octofhir/cql-go/diag"
)

// lexer scans CQL source text into tokens. Positions are byte offsets into
// the input; line/column derivation is left to diag.SourceMap.
type lexer struct {
	input string
	pos   int
	diags []diag.Diagnostic
	srcm  *diag.SourceMap
}

func newLexer(input string) *lexer {
	return &lexer{input: input, srcm: diag.NewSourceMap(input)}
}

// tokenize scans the whole input. Lexical errors are accumulated as
// diagnostics; scanning continues after each.
func (l *lexer) tokenize() []Token {
	var toks []Token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks
		}
	}
}

func (l *lexer) errorf(span diag.Span, code diag.Code, format string, args ...any) {
	loc := l.srcm.Locate(span)
	l.diags = append(l.diags, diag.Diagnostic{
		Severity: diag.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: &loc,
	})
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *lexer) skipTrivia() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '/' && l.peekByteAt(1) == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.peekByteAt(1) == '*':
			start := l.pos
			l.pos += 2
			for l.pos < len(l.input) && !(l.input[l.pos] == '*' && l.peekByteAt(1) == '/') {
				l.pos++
			}
			if l.pos >= len(l.input) {
				l.errorf(diag.NewSpan(start, len(l.input)), diag.MissingDelimiter, "unterminated block comment")
				return
			}
			l.pos += 2
		default:
			return
		}
	}
}

func (l *lexer) next() Token {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Span: diag.Point(len(l.input))}
	}

	c := l.input[l.pos]
	switch {
	case c == '\'':
		return l.scanString()
	case c == '"':
		return l.scanQuotedIdent()
	case c == '@':
		return l.scanTemporal()
	case c >= '0' && c <= '9':
		return l.scanNumber()
	case c == '_' || c == '$' || isIdentStart(rune(c)) || c >= utf8.RuneSelf:
		return l.scanIdent()
	}

	// Symbols.
	l.pos++
	mk := func(kind TokenKind) Token {
		return Token{Kind: kind, Text: l.input[start:l.pos], Span: diag.NewSpan(start, l.pos)}
	}
	switch c {
	case '(':
		return mk(TokenLParen)
	case ')':
		return mk(TokenRParen)
	case '{':
		return mk(TokenLBrace)
	case '}':
		return mk(TokenRBrace)
	case '[':
		return mk(TokenLBracket)
	case ']':
		return mk(TokenRBracket)
	case ',':
		return mk(TokenComma)
	case ':':
		return mk(TokenColon)
	case '.':
		return mk(TokenDot)
	case '+':
		return mk(TokenPlus)
	case '-':
		return mk(TokenMinus)
	case '*':
		return mk(TokenStar)
	case '/':
		return mk(TokenSlash)
	case '^':
		return mk(TokenCaret)
	case '&':
		return mk(TokenAmp)
	case '|':
		return mk(TokenPipe)
	case '=':
		return mk(TokenEq)
	case '~':
		return mk(TokenEqv)
	case '!':
		if l.peekByte() == '=' {
			l.pos++
			return mk(TokenNeq)
		}
		if l.peekByte() == '~' {
			l.pos++
			return mk(TokenNeqv)
		}
	case '<':
		if l.peekByte() == '=' {
			l.pos++
			return mk(TokenLe)
		}
		return mk(TokenLt)
	case '>':
		if l.peekByte() == '=' {
			l.pos++
			return mk(TokenGe)
		}
		return mk(TokenGt)
	}

	l.errorf(diag.NewSpan(start, l.pos), diag.UnexpectedToken, "unexpected character %q", string(c))
	return l.next()
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) scanIdent() Token {
	start := l.pos
	if l.input[l.pos] == '$' {
		l.pos++
	}
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isIdentPart(r) {
			break
		}
		l.pos += size
	}
	text := l.input[start:l.pos]
	span := diag.NewSpan(start, l.pos)
	if text[0] == '$' {
		return Token{Kind: TokenDollarIdent, Text: text, Span: span}
	}
	if keywords[text] {
		return Token{Kind: TokenKeyword, Text: text, Span: span}
	}
	return Token{Kind: TokenIdent, Text: text, Span: span}
}

// scanString scans a single-quoted string literal supporting the \', \\,
// \n, \t, \r, \f and \u{...} escapes.
func (l *lexer) scanString() Token {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			l.errorf(diag.NewSpan(start, l.pos), diag.UnterminatedString, "unterminated string literal")
			return Token{Kind: TokenString, Text: sb.String(), Span: diag.NewSpan(start, l.pos)}
		}
		c := l.input[l.pos]
		if c == '\'' {
			l.pos++
			return Token{Kind: TokenString, Text: sb.String(), Span: diag.NewSpan(start, l.pos)}
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.input) {
				continue
			}
			esc := l.input[l.pos]
			l.pos++
			switch esc {
			case '\'':
				sb.WriteByte('\'')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'f':
				sb.WriteByte('\f')
			case '"':
				sb.WriteByte('"')
			case 'u':
				if l.peekByte() == '{' {
					end := strings.IndexByte(l.input[l.pos:], '}')
					if end < 0 {
						l.errorf(diag.NewSpan(l.pos-2, l.pos), diag.InvalidEscape, "unterminated unicode escape")
						continue
					}
					hex := l.input[l.pos+1 : l.pos+end]
					var r rune
					if _, err := fmt.Sscanf(hex, "%x", &r); err != nil {
						l.errorf(diag.NewSpan(l.pos-2, l.pos+end+1), diag.InvalidEscape, "invalid unicode escape \\u{%s}", hex)
					} else {
						sb.WriteRune(r)
					}
					l.pos += end + 1
				} else {
					l.errorf(diag.NewSpan(l.pos-2, l.pos), diag.InvalidEscape, "invalid escape sequence \\u")
				}
			default:
				l.errorf(diag.NewSpan(l.pos-2, l.pos), diag.InvalidEscape, "invalid escape sequence \\%s", string(esc))
			}
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}

// scanQuotedIdent scans a double-quoted identifier. The same escapes as
// strings are honored.
func (l *lexer) scanQuotedIdent() Token {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			l.errorf(diag.NewSpan(start, l.pos), diag.UnterminatedString, "unterminated quoted identifier")
			return Token{Kind: TokenQuotedIdent, Text: sb.String(), Span: diag.NewSpan(start, l.pos)}
		}
		c := l.input[l.pos]
		if c == '"' {
			l.pos++
			return Token{Kind: TokenQuotedIdent, Text: sb.String(), Span: diag.NewSpan(start, l.pos)}
		}
		if c == '\\' && l.peekByteAt(1) == '"' {
			sb.WriteByte('"')
			l.pos += 2
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}

// scanNumber scans integer, long and decimal literals.
func (l *lexer) scanNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
	}
	isDecimal := false
	if l.peekByte() == '.' && l.peekByteAt(1) >= '0' && l.peekByteAt(1) <= '9' {
		isDecimal = true
		l.pos++
		for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
			l.pos++
		}
	}
	if isDecimal {
		return Token{Kind: TokenDecimal, Text: l.input[start:l.pos], Span: diag.NewSpan(start, l.pos)}
	}
	if l.peekByte() == 'L' {
		text := l.input[start:l.pos]
		l.pos++
		return Token{Kind: TokenLong, Text: text, Span: diag.NewSpan(start, l.pos)}
	}
	return Token{Kind: TokenInteger, Text: l.input[start:l.pos], Span: diag.NewSpan(start, l.pos)}
}

// scanTemporal scans @-prefixed date, datetime and time literals. The token
// text excludes the leading @. Precision validation happens in the parser.
func (l *lexer) scanTemporal() Token {
	start := l.pos
	l.pos++ // @
	if l.peekByte() == 'T' {
		// Time literal @Thh:mm:ss.fff
		l.pos++
		l.consumeTemporalBody(false)
		return Token{Kind: TokenTime, Text: l.input[start+1 : l.pos], Span: diag.NewSpan(start, l.pos)}
	}

	hasTime := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c >= '0' && c <= '9' || c == '-' {
			l.pos++
			continue
		}
		if c == 'T' {
			hasTime = true
			l.pos++
			l.consumeTemporalBody(true)
			break
		}
		break
	}
	text := l.input[start+1 : l.pos]
	if text == "" {
		l.errorf(diag.NewSpan(start, l.pos), diag.InvalidDateTime, "empty temporal literal")
	}
	if hasTime {
		return Token{Kind: TokenDateTime, Text: text, Span: diag.NewSpan(start, l.pos)}
	}
	return Token{Kind: TokenDate, Text: text, Span: diag.NewSpan(start, l.pos)}
}

// consumeTemporalBody consumes the time-of-day part of a temporal literal,
// with an optional timezone offset when allowOffset is set.
func (l *lexer) consumeTemporalBody(allowOffset bool) {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c >= '0' && c <= '9' || c == ':' || c == '.' {
			l.pos++
			continue
		}
		if allowOffset && (c == 'Z' || c == '+' || c == '-') {
			l.pos++
			continue
		}
		break
	}
}

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
	"strconv"

	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
)

// Precedence levels, loosest to tightest. Level 12 is the prefix operators,
// handled by parseUnary.
const (
	lvlImplies    = 1
	lvlOrXor     = 2
	lvlAnd       = 3
	lvlMembership = 4
	lvlEquality  = 5
	lvlRelational = 6
	lvlUnion     = 7
	lvlTypeOps   = 8
	lvlAdditive  = 9
	lvlMultiplicative = 10
	lvlPower     = 11
)

// parseExpression parses a full expression starting at the loosest level.
func (p *parser) parseExpression() ast.IExpression {
	return p.parseBinaryExpr(lvlImplies)
}

// binOpInfo describes a binary operator sighted at the cursor.
type binOpInfo struct {
	op    ast.BinaryOp
	level int
	// rightAssoc operators parse their right side at the same level.
	rightAssoc bool
	// width is the number of tokens the operator occupies.
	width int
}

// peekBinaryOp classifies the token(s) at the cursor as a binary operator.
// Timing phrases, is/as, and between are handled specially by the caller.
func (p *parser) peekBinaryOp() (binOpInfo, bool) {
	t := p.cur()
	switch t.Kind {
	case TokenEq:
		return binOpInfo{op: ast.OpEqual, level: lvlEquality, width: 1}, true
	case TokenNeq:
		return binOpInfo{op: ast.OpNotEqual, level: lvlEquality, width: 1}, true
	case TokenEqv:
		return binOpInfo{op: ast.OpEquivalent, level: lvlEquality, width: 1}, true
	case TokenNeqv:
		return binOpInfo{op: ast.OpNotEquivalent, level: lvlEquality, width: 1}, true
	case TokenLt:
		return binOpInfo{op: ast.OpLess, level: lvlRelational, width: 1}, true
	case TokenLe:
		return binOpInfo{op: ast.OpLessOrEqual, level: lvlRelational, width: 1}, true
	case TokenGt:
		return binOpInfo{op: ast.OpGreater, level: lvlRelational, width: 1}, true
	case TokenGe:
		return binOpInfo{op: ast.OpGreaterOrEqual, level: lvlRelational, width: 1}, true
	case TokenPipe:
		return binOpInfo{op: ast.OpUnion, level: lvlUnion, width: 1}, true
	case TokenPlus:
		return binOpInfo{op: ast.OpAdd, level: lvlAdditive, width: 1}, true
	case TokenMinus:
		return binOpInfo{op: ast.OpSubtract, level: lvlAdditive, width: 1}, true
	case TokenAmp:
		return binOpInfo{op: ast.OpConcat, level: lvlAdditive, width: 1}, true
	case TokenStar:
		return binOpInfo{op: ast.OpMultiply, level: lvlMultiplicative, width: 1}, true
	case TokenSlash:
		return binOpInfo{op: ast.OpDivide, level: lvlMultiplicative, width: 1}, true
	case TokenCaret:
		return binOpInfo{op: ast.OpPower, level: lvlPower, rightAssoc: true, width: 1}, true
	case TokenKeyword:
		switch t.Text {
		case "implies":
			return binOpInfo{op: ast.OpImplies, level: lvlImplies, rightAssoc: true, width: 1}, true
		case "or":
			return binOpInfo{op: ast.OpOr, level: lvlOrXor, width: 1}, true
		case "xor":
			return binOpInfo{op: ast.OpXor, level: lvlOrXor, width: 1}, true
		case "and":
			return binOpInfo{op: ast.OpAnd, level: lvlAnd, width: 1}, true
		case "in":
			return binOpInfo{op: ast.OpIn, level: lvlMembership, width: 1}, true
		case "contains":
			return binOpInfo{op: ast.OpContains, level: lvlMembership, width: 1}, true
		case "during":
			return binOpInfo{op: ast.OpDuring, level: lvlMembership, width: 1}, true
		case "overlaps":
			return binOpInfo{op: ast.OpOverlaps, level: lvlMembership, width: 1}, true
		case "meets":
			return binOpInfo{op: ast.OpMeets, level: lvlMembership, width: 1}, true
		case "starts":
			return binOpInfo{op: ast.OpStarts, level: lvlMembership, width: 1}, true
		case "ends":
			return binOpInfo{op: ast.OpEnds, level: lvlMembership, width: 1}, true
		case "before":
			return binOpInfo{op: ast.OpBefore, level: lvlMembership, width: 1}, true
		case "after":
			return binOpInfo{op: ast.OpAfter, level: lvlMembership, width: 1}, true
		case "includes":
			return binOpInfo{op: ast.OpIncludes, level: lvlMembership, width: 1}, true
		case "included":
			if p.peek(1).Is("in") {
				return binOpInfo{op: ast.OpIncludedIn, level: lvlMembership, width: 2}, true
			}
		case "properly":
			if p.peek(1).Is("includes") {
				return binOpInfo{op: ast.OpProperlyIncludes, level: lvlMembership, width: 2}, true
			}
			if p.peek(1).Is("included") && p.peek(2).Is("in") {
				return binOpInfo{op: ast.OpProperlyIncludedIn, level: lvlMembership, width: 3}, true
			}
		case "union":
			return binOpInfo{op: ast.OpUnion, level: lvlUnion, width: 1}, true
		case "intersect":
			return binOpInfo{op: ast.OpIntersect, level: lvlUnion, width: 1}, true
		case "except":
			return binOpInfo{op: ast.OpExcept, level: lvlUnion, width: 1}, true
		case "div":
			return binOpInfo{op: ast.OpTruncatedDivide, level: lvlMultiplicative, width: 1}, true
		case "mod":
			return binOpInfo{op: ast.OpModulo, level: lvlMultiplicative, width: 1}, true
		}
	}
	return binOpInfo{}, false
}

// isTimingOp reports whether the operator takes an optional precision
// qualifier after it, in the form "before year of".
func isTimingOp(op ast.BinaryOp) bool {
	switch op {
	case ast.OpDuring, ast.OpIncludedIn, ast.OpIncludes, ast.OpProperlyIncludedIn,
		ast.OpProperlyIncludes, ast.OpOverlaps, ast.OpMeets, ast.OpStarts, ast.OpEnds,
		ast.OpBefore, ast.OpAfter, ast.OpIn, ast.OpContains:
		return true
	}
	return false
}

// precisionKeyword maps a singular or plural precision keyword to its
// precision, or Unset.
func precisionKeyword(t Token) ast.DateTimePrecision {
	if t.Kind != TokenKeyword {
		return ast.PrecisionUnset
	}
	switch t.Text {
	case "year", "years":
		return ast.PrecisionYear
	case "month", "months":
		return ast.PrecisionMonth
	case "week", "weeks":
		return ast.PrecisionWeek
	case "day", "days":
		return ast.PrecisionDay
	case "hour", "hours":
		return ast.PrecisionHour
	case "minute", "minutes":
		return ast.PrecisionMinute
	case "second", "seconds":
		return ast.PrecisionSecond
	case "millisecond", "milliseconds":
		return ast.PrecisionMillisecond
	}
	return ast.PrecisionUnset
}

// parseBinaryExpr is the precedence climbing loop.
func (p *parser) parseBinaryExpr(minLevel int) ast.IExpression {
	start := p.cur().Span.Start
	left := p.parseUnary()

	for {
		// "same [precision] as|or before|or after" is multi-token and decided
		// here rather than in peekBinaryOp.
		if p.atKeyword("same") && lvlMembership >= minLevel {
			left = p.parseSameTiming(start, left)
			continue
		}
		// "X between low and high" expands during lowering.
		if p.atKeyword("between") && lvlMembership >= minLevel {
			p.advance()
			low := p.parseBinaryExpr(lvlEquality)
			p.expectKeyword("and")
			high := p.parseBinaryExpr(lvlEquality)
			left = &ast.Between{
				Expression: &ast.Expression{Span: p.spanFrom(start)},
				Operand:    left, Low: low, High: high,
			}
			continue
		}
		// is / as bind at the type-operator level and take a type specifier.
		if (p.atKeyword("is") || p.atKeyword("as")) && lvlTypeOps >= minLevel {
			isOp := p.cur().Text == "is"
			p.advance()
			typ := p.parseTypeSpecifier()
			if isOp {
				left = &ast.Is{Expression: &ast.Expression{Span: p.spanFrom(start)}, Operand: left, Type: typ}
			} else {
				left = &ast.As{Expression: &ast.Expression{Span: p.spanFrom(start)}, Operand: left, Type: typ}
			}
			continue
		}

		info, ok := p.peekBinaryOp()
		if !ok || info.level < minLevel {
			return left
		}
		for i := 0; i < info.width; i++ {
			p.advance()
		}

		precision := ast.PrecisionUnset
		if isTimingOp(info.op) {
			// Optional "<precision> of" qualifier: "before year of Y".
			if prec := precisionKeyword(p.cur()); prec != ast.PrecisionUnset && p.peek(1).Is("of") {
				precision = prec
				p.advance()
				p.advance()
			}
		}

		nextLevel := info.level + 1
		if info.rightAssoc {
			nextLevel = info.level
		}
		right := p.parseBinaryExpr(nextLevel)
		left = &ast.BinaryExpression{
			Expression: &ast.Expression{Span: p.spanFrom(start)},
			Op:         info.op,
			Left:       left,
			Right:      right,
			Precision:  precision,
		}
	}
}

// parseSameTiming parses "same [precision] as", "same [precision] or before"
// and "same [precision] or after".
func (p *parser) parseSameTiming(start int, left ast.IExpression) ast.IExpression {
	p.expectKeyword("same")
	precision := precisionKeyword(p.cur())
	if precision != ast.PrecisionUnset {
		p.advance()
	}
	op := ast.OpSameAs
	switch {
	case p.acceptKeyword("as"):
		op = ast.OpSameAs
	case p.acceptKeyword("or"):
		switch {
		case p.acceptKeyword("before"):
			op = ast.OpSameOrBefore
		case p.acceptKeyword("after"):
			op = ast.OpSameOrAfter
		default:
			p.errorf(p.cur().Span, diag.UnexpectedToken, "expected 'before' or 'after' after 'same ... or'")
		}
	default:
		p.errorf(p.cur().Span, diag.UnexpectedToken, "expected 'as' or 'or' in 'same' timing phrase")
	}
	right := p.parseBinaryExpr(lvlEquality)
	return &ast.BinaryExpression{
		Expression: &ast.Expression{Span: p.spanFrom(start)},
		Op:         op,
		Left:       left,
		Right:      right,
		Precision:  precision,
	}
}

// parseUnary parses the prefix operators at level 12 and the duration
// phrases, falling through to postfix/primary parsing.
func (p *parser) parseUnary() ast.IExpression {
	start := p.cur().Span.Start
	mkUnary := func(op ast.UnaryOp) ast.IExpression {
		operand := p.parseUnary()
		return &ast.UnaryExpression{
			Expression: &ast.Expression{Span: p.spanFrom(start)},
			Op:         op,
			Operand:    operand,
		}
	}

	switch {
	case p.at(TokenPlus):
		p.advance()
		return mkUnary(ast.UnaryPlus)
	case p.at(TokenMinus):
		p.advance()
		// Fold the sign into numeric literals so INT32 minimum parses.
		return p.parseNegation(start)
	case p.atKeyword("not"):
		p.advance()
		return mkUnary(ast.UnaryNot)
	case p.atKeyword("exists"):
		p.advance()
		return mkUnary(ast.UnaryExists)
	case p.atKeyword("distinct"):
		p.advance()
		return mkUnary(ast.UnaryDistinct)
	case p.atKeyword("flatten"):
		p.advance()
		return mkUnary(ast.UnaryFlatten)
	case p.atKeyword("collapse"):
		p.advance()
		return mkUnary(ast.UnaryCollapse)
	case p.atKeyword("singleton"):
		p.advance()
		p.expectKeyword("from")
		return mkUnary(ast.UnarySingleton)
	case p.atKeyword("point"):
		p.advance()
		p.expectKeyword("from")
		return mkUnary(ast.UnaryPointFrom)
	case p.atKeyword("start"):
		if p.peek(1).Is("of") {
			p.advance()
			p.advance()
			return mkUnary(ast.UnaryStart)
		}
	case p.atKeyword("end"):
		if p.peek(1).Is("of") {
			p.advance()
			p.advance()
			return mkUnary(ast.UnaryEnd)
		}
	case p.atKeyword("width"):
		if p.peek(1).Is("of") {
			p.advance()
			p.advance()
			return mkUnary(ast.UnaryWidth)
		}
	case p.atKeyword("successor"):
		if p.peek(1).Is("of") {
			p.advance()
			p.advance()
			return mkUnary(ast.UnarySuccessor)
		}
	case p.atKeyword("predecessor"):
		if p.peek(1).Is("of") {
			p.advance()
			p.advance()
			return mkUnary(ast.UnaryPredecessor)
		}
	case p.atKeyword("duration") || p.atKeyword("difference"):
		if p.peek(1).Is("in") {
			return p.parseDurationBetween(start, p.cur().Text == "difference")
		}
	case p.atKeyword("minimum"):
		p.advance()
		typ := p.parseTypeSpecifier()
		return &ast.MinValue{Expression: &ast.Expression{Span: p.spanFrom(start)}, Type: typ}
	case p.atKeyword("maximum"):
		p.advance()
		typ := p.parseTypeSpecifier()
		return &ast.MaxValue{Expression: &ast.Expression{Span: p.spanFrom(start)}, Type: typ}
	case p.atKeyword("cast"):
		p.advance()
		operand := p.parseUnary()
		p.expectKeyword("as")
		typ := p.parseTypeSpecifier()
		return &ast.As{Expression: &ast.Expression{Span: p.spanFrom(start)}, Operand: operand, Type: typ, Strict: true}
	case p.atKeyword("convert"):
		p.advance()
		operand := p.parseBinaryExpr(lvlTypeOps + 1)
		p.expectKeyword("to")
		typ := p.parseTypeSpecifier()
		return &ast.Convert{Expression: &ast.Expression{Span: p.spanFrom(start)}, Operand: operand, Type: typ}
	}

	// "<precision>s between A and B" and component extraction
	// "<component> from X".
	if prec := precisionKeyword(p.cur()); prec != ast.PrecisionUnset {
		if p.peek(1).Is("between") {
			p.advance()
			p.advance()
			low := p.parseBinaryExpr(lvlEquality)
			p.expectKeyword("and")
			high := p.parseBinaryExpr(lvlEquality)
			return &ast.DurationBetween{
				Expression: &ast.Expression{Span: p.spanFrom(start)},
				Precision:  prec, Low: low, High: high,
			}
		}
		if p.peek(1).Is("from") {
			component := p.cur().Text
			p.advance()
			p.advance()
			operand := p.parseUnary()
			return &ast.ComponentFrom{
				Expression: &ast.Expression{Span: p.spanFrom(start)},
				Component:  singularPrecision(component),
				Operand:    operand,
			}
		}
	}
	if (p.atKeyword("date") || p.atKeyword("time") || p.atKeyword("timezoneoffset")) && p.peek(1).Is("from") {
		component := p.cur().Text
		p.advance()
		p.advance()
		operand := p.parseUnary()
		return &ast.ComponentFrom{
			Expression: &ast.Expression{Span: p.spanFrom(start)},
			Component:  component,
			Operand:    operand,
		}
	}

	return p.parsePostfix()
}

func singularPrecision(s string) string {
	if len(s) > 1 && s[len(s)-1] == 's' {
		return s[:len(s)-1]
	}
	return s
}

// parseNegation folds a leading minus into numeric literals and wraps
// everything else in a Negate.
func (p *parser) parseNegation(start int) ast.IExpression {
	t := p.cur()
	switch t.Kind {
	case TokenInteger, TokenLong, TokenDecimal:
		lit := p.parsePrimary()
		switch l := lit.(type) {
		case *ast.IntegerLiteral:
			l.Value = -l.Value
			l.Span = p.spanFrom(start)
			return l
		case *ast.LongLiteral:
			l.Value = -l.Value
			l.Span = p.spanFrom(start)
			return l
		case *ast.DecimalLiteral:
			l.Value = -l.Value
			l.Text = "-" + l.Text
			l.Span = p.spanFrom(start)
			return l
		case *ast.QuantityLiteral:
			l.Value = -l.Value
			l.Span = p.spanFrom(start)
			return l
		}
		return lit
	}
	operand := p.parseUnary()
	return &ast.UnaryExpression{
		Expression: &ast.Expression{Span: p.spanFrom(start)},
		Op:         ast.UnaryNegate,
		Operand:    operand,
	}
}

// parseDurationBetween parses "duration in <precision> between A and B" and
// the difference variant.
func (p *parser) parseDurationBetween(start int, isDifference bool) ast.IExpression {
	p.advance() // duration | difference
	p.expectKeyword("in")
	prec := precisionKeyword(p.cur())
	if prec == ast.PrecisionUnset {
		p.errorf(p.cur().Span, diag.UnexpectedToken, "expected a precision, found %q", p.describe(p.cur()))
	} else {
		p.advance()
	}
	p.expectKeyword("between")
	low := p.parseBinaryExpr(lvlEquality)
	p.expectKeyword("and")
	high := p.parseBinaryExpr(lvlEquality)
	if isDifference {
		return &ast.DifferenceBetween{
			Expression: &ast.Expression{Span: p.spanFrom(start)},
			Precision:  prec, Low: low, High: high,
		}
	}
	return &ast.DurationBetween{
		Expression: &ast.Expression{Span: p.spanFrom(start)},
		Precision:  prec, Low: low, High: high,
	}
}

// parsePostfix parses a primary followed by property access, method calls
// and indexers, then checks for a trailing query body.
func (p *parser) parsePostfix() ast.IExpression {
	start := p.cur().Span.Start
	expr := p.parsePrimary()

	for {
		switch {
		case p.at(TokenDot) && p.peek(1).IsIdent():
			p.advance()
			name := p.parseIdentifier()
			if p.at(TokenLParen) {
				// Fluent invocation: the source becomes the first argument.
				args := p.parseArguments()
				args = append([]ast.IExpression{expr}, args...)
				expr = &ast.FunctionCall{
					Expression: &ast.Expression{Span: p.spanFrom(start)},
					Ident:      ast.QualifiedIdentifier{Span: name.Span, Name: name},
					Arguments:  args,
					Fluent:     true,
				}
				continue
			}
			expr = &ast.Property{
				Expression: &ast.Expression{Span: p.spanFrom(start)},
				Source:     expr,
				Name:       name,
			}
		case p.at(TokenLBracket):
			p.advance()
			index := p.parseExpression()
			p.expect(TokenRBracket, "']'")
			expr = &ast.Indexer{
				Expression: &ast.Expression{Span: p.spanFrom(start)},
				Source:     expr,
				Index:      index,
			}
		default:
			return p.maybeQuery(start, expr)
		}
	}
}

// parseArguments parses a parenthesized, comma separated argument list.
func (p *parser) parseArguments() []ast.IExpression {
	p.expect(TokenLParen, "'('")
	var args []ast.IExpression
	if !p.at(TokenRParen) {
		for {
			args = append(args, p.parseExpression())
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}
	p.expect(TokenRParen, "')'")
	return args
}

// parsePrimary parses terms: literals, selectors, retrieves, conditionals,
// queries introduced by from, references and calls.
func (p *parser) parsePrimary() ast.IExpression {
	start := p.cur().Span.Start
	t := p.cur()

	switch t.Kind {
	case TokenInteger:
		p.advance()
		v, err := strconv.ParseInt(t.Text, 10, 32)
		if err != nil {
			p.errorf(t.Span, diag.InvalidNumber, "integer literal out of range: %s", t.Text)
		}
		return p.maybeQuantity(start, float64(v), &ast.IntegerLiteral{
			Expression: &ast.Expression{Span: t.Span}, Value: int32(v),
		})
	case TokenLong:
		p.advance()
		v, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			p.errorf(t.Span, diag.InvalidNumber, "long literal out of range: %s", t.Text)
		}
		return &ast.LongLiteral{Expression: &ast.Expression{Span: t.Span}, Value: v}
	case TokenDecimal:
		p.advance()
		v, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			p.errorf(t.Span, diag.InvalidNumber, "invalid decimal literal: %s", t.Text)
		}
		return p.maybeQuantity(start, v, &ast.DecimalLiteral{
			Expression: &ast.Expression{Span: t.Span}, Value: v, Text: t.Text,
		})
	case TokenString:
		p.advance()
		return &ast.StringLiteral{Expression: &ast.Expression{Span: t.Span}, Value: t.Text}
	case TokenDate:
		p.advance()
		prec, ok := datePrecision(t.Text)
		if !ok {
			p.errorf(t.Span, diag.InvalidDateTime, "invalid date literal @%s", t.Text)
		}
		return &ast.DateLiteral{Expression: &ast.Expression{Span: t.Span}, Text: t.Text, Precision: prec}
	case TokenDateTime:
		p.advance()
		prec, ok := dateTimePrecision(t.Text)
		if !ok {
			p.errorf(t.Span, diag.InvalidDateTime, "invalid datetime literal @%s", t.Text)
		}
		return &ast.DateTimeLiteral{Expression: &ast.Expression{Span: t.Span}, Text: t.Text, Precision: prec}
	case TokenTime:
		p.advance()
		prec, ok := timePrecision(t.Text)
		if !ok {
			p.errorf(t.Span, diag.InvalidDateTime, "invalid time literal @%s", t.Text)
		}
		return &ast.TimeLiteral{Expression: &ast.Expression{Span: t.Span}, Text: t.Text, Precision: prec}
	case TokenLParen:
		p.advance()
		saved := p.suppressQuery
		p.suppressQuery = false
		expr := p.parseExpression()
		p.suppressQuery = saved
		p.expect(TokenRParen, "')'")
		return expr
	case TokenLBrace:
		return p.parseListSelector(start, nil)
	case TokenLBracket:
		return p.parseRetrieve()
	case TokenDollarIdent:
		p.advance()
		switch t.Text {
		case "$this":
			return &ast.ThisRef{Expression: &ast.Expression{Span: t.Span}}
		case "$index":
			return &ast.IndexRef{Expression: &ast.Expression{Span: t.Span}}
		case "$total":
			return &ast.TotalRef{Expression: &ast.Expression{Span: t.Span}}
		}
		p.errorf(t.Span, diag.InvalidIdentifier, "unknown iteration variable %q", t.Text)
		return &ast.Error{Expression: &ast.Expression{Span: t.Span}}
	case TokenKeyword:
		switch t.Text {
		case "null":
			p.advance()
			return &ast.NullLiteral{Expression: &ast.Expression{Span: t.Span}}
		case "true", "false":
			p.advance()
			return &ast.BooleanLiteral{Expression: &ast.Expression{Span: t.Span}, Value: t.Text == "true"}
		case "if":
			return p.parseIf()
		case "case":
			return p.parseCase()
		case "from":
			return p.parseFromQuery()
		case "Interval":
			return p.parseIntervalSelector()
		case "Tuple":
			return p.parseTupleSelector()
		case "List":
			p.advance()
			var elem ast.ITypeSpecifier
			if _, ok := p.accept(TokenLt); ok {
				elem = p.parseTypeSpecifier()
				p.expect(TokenGt, "'>'")
			}
			return p.parseListSelector(start, elem)
		}
	case TokenIdent, TokenQuotedIdent:
		ident := p.parseQualifiedIdentifier()
		if p.at(TokenLParen) {
			args := p.parseArguments()
			// Message(source, condition, code, severity, message) is its own node.
			if len(ident.Qualifiers) == 0 && ident.Name.Name == "Message" && len(args) == 5 {
				return &ast.Message{
					Expression: &ast.Expression{Span: p.spanFrom(start)},
					Source:     args[0],
					Condition:  args[1],
					Code:       args[2],
					Severity:   args[3],
					Message:    args[4],
				}
			}
			return &ast.FunctionCall{
				Expression: &ast.Expression{Span: p.spanFrom(start)},
				Ident:      ident,
				Arguments:  args,
			}
		}
		if p.at(TokenLBrace) {
			return p.parseInstanceSelector(start, ident)
		}
		return &ast.Ref{Expression: &ast.Expression{Span: p.spanFrom(start)}, Ident: ident}
	}

	return p.errorNode(diag.ExpectedExpression, "expected an expression, found %q", p.describe(t))
}

// maybeQuantity upgrades a numeric literal to a quantity when a unit
// follows: a string literal or a temporal keyword.
func (p *parser) maybeQuantity(start int, value float64, lit ast.IExpression) ast.IExpression {
	var unit string
	if p.at(TokenString) {
		unit = p.advance().Text
	} else if prec := precisionKeyword(p.cur()); prec != ast.PrecisionUnset && !p.peek(1).Is("between") && !p.peek(1).Is("from") {
		unit = singularPrecision(p.advance().Text)
	} else {
		return lit
	}
	q := &ast.QuantityLiteral{
		Expression: &ast.Expression{Span: p.spanFrom(start)},
		Value:      value,
		Unit:       unit,
	}
	// A colon after a quantity makes a ratio.
	if p.at(TokenColon) {
		p.advance()
		denom := p.parseUnary()
		dq, ok := denom.(*ast.QuantityLiteral)
		if !ok {
			p.errorf(denom.SourceSpan(), diag.InvalidQuantity, "ratio denominator must be a quantity")
			return q
		}
		return &ast.RatioLiteral{
			Expression: &ast.Expression{Span: p.spanFrom(start)},
			Numerator:  q,
			Denominator: dq,
		}
	}
	return q
}

func (p *parser) parseListSelector(start int, elem ast.ITypeSpecifier) ast.IExpression {
	p.expect(TokenLBrace, "'{'")
	sel := &ast.ListSelector{Expression: &ast.Expression{}, Element: elem}
	if !p.at(TokenRBrace) {
		for {
			sel.Elements = append(sel.Elements, p.parseExpression())
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}
	p.expect(TokenRBrace, "'}'")
	sel.Span = p.spanFrom(start)
	return sel
}

func (p *parser) parseTupleSelector() ast.IExpression {
	start := p.cur().Span.Start
	p.expectKeyword("Tuple")
	p.expect(TokenLBrace, "'{'")
	sel := &ast.TupleSelector{Expression: &ast.Expression{}}
	if !p.at(TokenRBrace) {
		for {
			name := p.parseIdentifier()
			p.expect(TokenColon, "':'")
			value := p.parseExpression()
			sel.Elements = append(sel.Elements, ast.TupleElement{Name: name, Value: value})
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}
	p.expect(TokenRBrace, "'}'")
	sel.Span = p.spanFrom(start)
	return sel
}

func (p *parser) parseInstanceSelector(start int, className ast.QualifiedIdentifier) ast.IExpression {
	p.expect(TokenLBrace, "'{'")
	sel := &ast.InstanceSelector{Expression: &ast.Expression{}, ClassName: className}
	if !p.at(TokenRBrace) {
		for {
			name := p.parseIdentifier()
			p.expect(TokenColon, "':'")
			value := p.parseExpression()
			sel.Elements = append(sel.Elements, ast.TupleElement{Name: name, Value: value})
			if _, ok := p.accept(TokenComma); !ok {
				break
			}
		}
	}
	p.expect(TokenRBrace, "'}'")
	sel.Span = p.spanFrom(start)
	return sel
}

// parseIntervalSelector parses Interval[low, high) and the other bracket
// combinations.
func (p *parser) parseIntervalSelector() ast.IExpression {
	start := p.cur().Span.Start
	p.expectKeyword("Interval")
	lowClosed := true
	switch {
	case p.at(TokenLBracket):
		p.advance()
	case p.at(TokenLParen):
		lowClosed = false
		p.advance()
	default:
		p.errorf(p.cur().Span, diag.UnexpectedToken, "expected '[' or '(' after Interval")
	}
	low := p.parseExpression()
	p.expect(TokenComma, "','")
	high := p.parseExpression()
	highClosed := true
	switch {
	case p.at(TokenRBracket):
		p.advance()
	case p.at(TokenRParen):
		highClosed = false
		p.advance()
	default:
		p.errorf(p.cur().Span, diag.MissingDelimiter, "expected ']' or ')' to close Interval")
	}
	return &ast.IntervalSelector{
		Expression: &ast.Expression{Span: p.spanFrom(start)},
		Low:        low,
		High:       high,
		LowClosed:  lowClosed,
		HighClosed: highClosed,
	}
}

// parseIf parses if-then-else. The else branch is required.
func (p *parser) parseIf() ast.IExpression {
	start := p.cur().Span.Start
	p.expectKeyword("if")
	cond := p.parseExpression()
	p.expectKeyword("then")
	then := p.parseExpression()
	p.expectKeyword("else")
	els := p.parseExpression()
	return &ast.If{
		Expression: &ast.Expression{Span: p.spanFrom(start)},
		Condition:  cond,
		Then:       then,
		Else:       els,
	}
}

// parseCase parses both the comparand and the boolean forms.
func (p *parser) parseCase() ast.IExpression {
	start := p.cur().Span.Start
	p.expectKeyword("case")
	c := &ast.Case{Expression: &ast.Expression{}}
	if !p.atKeyword("when") {
		c.Comparand = p.parseExpression()
	}
	for p.atKeyword("when") {
		itemStart := p.cur().Span.Start
		p.advance()
		when := p.parseExpression()
		p.expectKeyword("then")
		then := p.parseExpression()
		c.Items = append(c.Items, ast.CaseItem{Span: p.spanFrom(itemStart), When: when, Then: then})
	}
	if len(c.Items) == 0 {
		p.errorf(p.cur().Span, diag.UnexpectedToken, "case expression requires at least one when clause")
	}
	p.expectKeyword("else")
	c.Else = p.parseExpression()
	p.expectKeyword("end")
	c.Span = p.spanFrom(start)
	return c
}

// parseRetrieve parses [Type], [Type: codes] and [Type: property in codes].
func (p *parser) parseRetrieve() ast.IExpression {
	start := p.cur().Span.Start
	p.expect(TokenLBracket, "'['")
	dataType := p.parseQualifiedIdentifier()
	r := &ast.Retrieve{Expression: &ast.Expression{}, DataType: dataType}
	if _, ok := p.accept(TokenColon); ok {
		// Either "codes" or "property in codes".
		if p.cur().IsIdent() && p.peek(1).Is("in") {
			r.CodeProperty = p.parseIdentifier()
			p.expectKeyword("in")
		}
		r.Codes = p.parseExpression()
	}
	p.expect(TokenRBracket, "']'")
	r.Span = p.spanFrom(start)
	return r
}

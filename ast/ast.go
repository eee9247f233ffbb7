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

// Package ast defines the surface abstract syntax tree produced by the
// parser. Every node carries the half-open byte span of the source text it
// covers. The tree is untyped; the analyzer resolves and lowers it to the
// model package's ELM representation.
package ast

import "github.com/octofhir/cql-go/diag"

// Node is implemented by every AST node.
type Node interface {
	// SourceSpan returns the byte range of the source text the node covers.
	SourceSpan() diag.Span
}

// IExpression is implemented by all expression nodes.
type IExpression interface {
	Node
	isExpression()
}

// Expression is the base embedded by every expression node.
type Expression struct {
	Span diag.Span
}

// SourceSpan returns the byte range of the source text the node covers.
func (e *Expression) SourceSpan() diag.Span { return e.Span }

func (e *Expression) isExpression() {}

// Identifier is a possibly-quoted name. Quoting affects lexical recognition
// only, not identity.
type Identifier struct {
	Span   diag.Span
	Name   string
	Quoted bool
}

// SourceSpan returns the byte range of the source text the node covers.
func (i Identifier) SourceSpan() diag.Span { return i.Span }

// QualifiedIdentifier is an identifier with optional leading qualifiers,
// such as Helpers."Blood Pressure".
type QualifiedIdentifier struct {
	Span       diag.Span
	Qualifiers []Identifier
	Name       Identifier
}

// SourceSpan returns the byte range of the source text the node covers.
func (q QualifiedIdentifier) SourceSpan() diag.Span { return q.Span }

// LITERALS

// NullLiteral is the null literal.
type NullLiteral struct{ *Expression }

// BooleanLiteral is true or false.
type BooleanLiteral struct {
	*Expression
	Value bool
}

// IntegerLiteral is a 32-bit integer literal.
type IntegerLiteral struct {
	*Expression
	Value int32
}

// LongLiteral is a 64-bit integer literal written with the L suffix.
type LongLiteral struct {
	*Expression
	Value int64
}

// DecimalLiteral is a decimal literal. The unparsed text is retained so the
// analyzer controls the numeric conversion.
type DecimalLiteral struct {
	*Expression
	Value float64
	Text  string
}

// StringLiteral is a single-quoted string literal with escapes resolved.
type StringLiteral struct {
	*Expression
	Value string
}

// DateTimePrecision is the finest component present in a temporal literal.
type DateTimePrecision int

// Precision constants are ordered from coarse to fine so they can be
// compared directly.
const (
	PrecisionUnset DateTimePrecision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionWeek
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
	PrecisionMillisecond
)

// String implements fmt.Stringer.
func (p DateTimePrecision) String() string {
	switch p {
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionWeek:
		return "week"
	case PrecisionDay:
		return "day"
	case PrecisionHour:
		return "hour"
	case PrecisionMinute:
		return "minute"
	case PrecisionSecond:
		return "second"
	case PrecisionMillisecond:
		return "millisecond"
	}
	return "unset"
}

// DateLiteral is @YYYY[-MM[-DD]]. Text retains the literal without the @.
type DateLiteral struct {
	*Expression
	Text      string
	Precision DateTimePrecision
}

// DateTimeLiteral is @YYYY-MM-DDThh[:mm[:ss[.fff]]][Z|±hh:mm].
type DateTimeLiteral struct {
	*Expression
	Text      string
	Precision DateTimePrecision
}

// TimeLiteral is @Thh[:mm[:ss[.fff]]].
type TimeLiteral struct {
	*Expression
	Text      string
	Precision DateTimePrecision
}

// QuantityLiteral is a number with a unit, such as 5 'mg' or 3 months.
type QuantityLiteral struct {
	*Expression
	Value float64
	Unit  string
}

// RatioLiteral is two quantities joined by a colon, such as 1 'mg' : 2 'mL'.
type RatioLiteral struct {
	*Expression
	Numerator   *QuantityLiteral
	Denominator *QuantityLiteral
}

// REFERENCES AND ACCESS

// Ref is a reference to a possibly-qualified identifier. Resolution happens
// in the analyzer.
type Ref struct {
	*Expression
	Ident QualifiedIdentifier
}

// Property accesses a member of a source expression, such as X.effective.
type Property struct {
	*Expression
	Source IExpression
	Name   Identifier
}

// ThisRef is the iteration variable $this.
type ThisRef struct{ *Expression }

// IndexRef is the iteration variable $index.
type IndexRef struct{ *Expression }

// TotalRef is the aggregate accumulator variable $total.
type TotalRef struct{ *Expression }

// OPERATORS

// BinaryOp enumerates the binary operators recognized by the parser.
type BinaryOp int

// Binary operators, loosest first to mirror the precedence table.
const (
	OpInvalid BinaryOp = iota
	OpImplies
	OpOr
	OpXor
	OpAnd
	OpIn
	OpContains
	OpEqual
	OpNotEqual
	OpEquivalent
	OpNotEquivalent
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpUnion
	OpIntersect
	OpExcept
	OpAdd
	OpSubtract
	OpConcat
	OpMultiply
	OpDivide
	OpTruncatedDivide
	OpModulo
	OpPower

	// Interval and timing phrases. These parse as binary forms with an
	// optional precision qualifier.
	OpDuring
	OpIncludedIn
	OpIncludes
	OpProperlyIncludedIn
	OpProperlyIncludes
	OpOverlaps
	OpMeets
	OpStarts
	OpEnds
	OpBefore
	OpAfter
	OpSameAs
	OpSameOrBefore
	OpSameOrAfter
)

// BinaryExpression is any binary operator application. Timing operators may
// carry a precision qualifier, such as "same year as".
type BinaryExpression struct {
	*Expression
	Op        BinaryOp
	Left      IExpression
	Right     IExpression
	Precision DateTimePrecision
}

// UnaryOp enumerates the prefix operators.
type UnaryOp int

// Prefix operators.
const (
	UnaryInvalid UnaryOp = iota
	UnaryNot
	UnaryNegate
	UnaryPlus
	UnaryExists
	UnaryDistinct
	UnaryFlatten
	UnaryCollapse
	UnarySingleton
	UnaryStart
	UnaryEnd
	UnaryWidth
	UnaryPredecessor
	UnarySuccessor
	UnaryPointFrom
)

// UnaryExpression is a prefix operator application.
type UnaryExpression struct {
	*Expression
	Op      UnaryOp
	Operand IExpression
}

// Between is low <= operand <= high; lowering expands it to a conjunction.
type Between struct {
	*Expression
	Operand IExpression
	Low     IExpression
	High    IExpression
}

// ComponentFrom extracts a component of a temporal value, such as
// "year from X" or "date from X". Component is one of the precision names or
// date, time, timezoneoffset.
type ComponentFrom struct {
	*Expression
	Component string
	Operand   IExpression
}

// DurationBetween is "duration in <precision> between a and b" or the
// "<precision>s between a and b" phrase.
type DurationBetween struct {
	*Expression
	Precision DateTimePrecision
	Low       IExpression
	High      IExpression
}

// DifferenceBetween is "difference in <precision> between a and b".
type DifferenceBetween struct {
	*Expression
	Precision DateTimePrecision
	Low       IExpression
	High      IExpression
}

// TYPE OPERATIONS

// ITypeSpecifier is implemented by all type specifier nodes.
type ITypeSpecifier interface {
	Node
	isTypeSpecifier()
}

// TypeSpecifier is the base embedded by every type specifier node.
type TypeSpecifier struct {
	Span diag.Span
}

// SourceSpan returns the byte range of the source text the node covers.
func (t *TypeSpecifier) SourceSpan() diag.Span { return t.Span }

func (t *TypeSpecifier) isTypeSpecifier() {}

// NamedType names a model or system type, possibly qualified.
type NamedType struct {
	*TypeSpecifier
	Ident QualifiedIdentifier
}

// ListType is List<E>.
type ListType struct {
	*TypeSpecifier
	Element ITypeSpecifier
}

// IntervalType is Interval<P>.
type IntervalType struct {
	*TypeSpecifier
	Point ITypeSpecifier
}

// TupleTypeElement is one name/type pair in a tuple type specifier.
type TupleTypeElement struct {
	Name Identifier
	Type ITypeSpecifier
}

// TupleType is Tuple { name Type, ... }.
type TupleType struct {
	*TypeSpecifier
	Elements []TupleTypeElement
}

// ChoiceType is Choice<A, B, ...>.
type ChoiceType struct {
	*TypeSpecifier
	Choices []ITypeSpecifier
}

// As casts the operand to a type. Strict is true for the cast-form
// "cast ... as T" which errors instead of returning null on mismatch.
type As struct {
	*Expression
	Operand IExpression
	Type    ITypeSpecifier
	Strict  bool
}

// Is tests the runtime type of the operand.
type Is struct {
	*Expression
	Operand IExpression
	Type    ITypeSpecifier
}

// Convert is "convert <operand> to <type>".
type Convert struct {
	*Expression
	Operand IExpression
	Type    ITypeSpecifier
}

// MinValue is minimum T.
type MinValue struct {
	*Expression
	Type ITypeSpecifier
}

// MaxValue is maximum T.
type MaxValue struct {
	*Expression
	Type ITypeSpecifier
}

// CONDITIONALS

// If is if-then-else. Else is always present.
type If struct {
	*Expression
	Condition IExpression
	Then      IExpression
	Else      IExpression
}

// CaseItem is one when/then pair.
type CaseItem struct {
	Span diag.Span
	When IExpression
	Then IExpression
}

// Case is a case expression, with or without a comparand.
type Case struct {
	*Expression
	Comparand IExpression
	Items     []CaseItem
	Else      IExpression
}

// COLLECTIONS

// ListSelector is { e1, e2, ... } with an optional element type.
type ListSelector struct {
	*Expression
	Element  ITypeSpecifier
	Elements []IExpression
}

// TupleElement is one name/value pair in a tuple or instance selector.
type TupleElement struct {
	Name  Identifier
	Value IExpression
}

// TupleSelector is Tuple { name: value, ... }.
type TupleSelector struct {
	*Expression
	Elements []TupleElement
}

// InstanceSelector is ClassName { name: value, ... }.
type InstanceSelector struct {
	*Expression
	ClassName QualifiedIdentifier
	Elements  []TupleElement
}

// IntervalSelector is Interval[low, high) and friends.
type IntervalSelector struct {
	*Expression
	Low        IExpression
	High       IExpression
	LowClosed  bool
	HighClosed bool
}

// Indexer is source[index].
type Indexer struct {
	*Expression
	Source IExpression
	Index  IExpression
}

// INVOCATION

// FunctionCall invokes a possibly library-qualified function. Built-in
// operators invoked by name (Coalesce, First, Count...) arrive here and are
// resolved by the analyzer.
type FunctionCall struct {
	*Expression
	Ident     QualifiedIdentifier
	Arguments []IExpression
	// Fluent is true when the call used method syntax: expr.f(args).
	Fluent bool
}

// QUERY AND RETRIEVE

// Retrieve is [Type] or [Type: codes] or [Type: codeProperty in codes].
type Retrieve struct {
	*Expression
	DataType     QualifiedIdentifier
	CodeProperty Identifier
	Codes        IExpression
}

// AliasedSource is "expression AS alias" in a query source list.
type AliasedSource struct {
	Span   diag.Span
	Source IExpression
	Alias  Identifier
}

// LetClause is one let binding in a query.
type LetClause struct {
	Span       diag.Span
	Identifier Identifier
	Expression IExpression
}

// RelationshipClause is a with/without inclusion clause.
type RelationshipClause struct {
	Span     diag.Span
	Without  bool
	Source   IExpression
	Alias    Identifier
	SuchThat IExpression
}

// SortDirection gives the ordering for a sort item.
type SortDirection int

// Sort directions. Ascending is the default.
const (
	SortAscending SortDirection = iota
	SortDescending
)

// SortItem is one key in a sort clause. A nil Key sorts by the element
// itself ($this).
type SortItem struct {
	Span      diag.Span
	Key       IExpression
	Direction SortDirection
}

// ReturnClause carries the return expression and the distinct flag.
// Distinct is the default unless "all" is written.
type ReturnClause struct {
	Span       diag.Span
	Expression IExpression
	Distinct   bool
}

// AggregateClause folds the query rows with a user expression.
type AggregateClause struct {
	Span       diag.Span
	Identifier Identifier
	Starting   IExpression
	Expression IExpression
	Distinct   bool
}

// Query is the full query expression.
type Query struct {
	*Expression
	Sources       []AliasedSource
	Lets          []LetClause
	Relationships []RelationshipClause
	Where         IExpression
	Return        *ReturnClause
	Aggregate     *AggregateClause
	Sort          []SortItem
}

// Message is Message(source, condition, code, severity, message).
type Message struct {
	*Expression
	Source    IExpression
	Condition IExpression
	Code      IExpression
	Severity  IExpression
	Message   IExpression
}

// Error is the placeholder emitted in analysis mode where a subtree could
// not be parsed. It preserves tree shape so later phases can continue.
type Error struct {
	*Expression
}

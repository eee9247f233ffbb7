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

// Package model provides the ELM data structure: the normalized intermediate
// representation of CQL produced by the analyzer and consumed by the
// interpreter and the serializers.
package model

import (
	"github.com/kylelemons/godebug/pretty"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/types"
)

// Library represents a lowered CQL library, typically from one CQL file.
type Library struct {
	Identifier  *LibraryIdentifier
	Usings      []*Using
	Includes    []*Include
	Parameters  []*ParameterDef
	CodeSystems []*CodeSystemDef
	Concepts    []*ConceptDef
	Valuesets   []*ValuesetDef
	Codes       []*CodeDef
	Statements  *Statements
}

func (l *Library) String() string {
	return pretty.Sprint(l)
}

// IElement is an interface implemented by all ELM element structs.
type IElement interface {
	// GetSpan returns the source span of the surface syntax this element was
	// lowered from.
	GetSpan() diag.Span
	// GetResultType returns the inferred static type of the element.
	GetResultType() types.IType
}

// Element is the base for all ELM nodes.
type Element struct {
	ResultType types.IType
	Span       diag.Span
}

// GetSpan returns the element's source span.
func (e *Element) GetSpan() diag.Span {
	if e == nil {
		return diag.Span{}
	}
	return e.Span
}

// GetResultType returns the type of the result which may be Unset if unknown.
func (e *Element) GetResultType() types.IType {
	if e == nil {
		return types.Unset
	}
	return e.ResultType
}

// ResultType is a convenience constructor for an Expression with only the
// result type set.
func ResultType(t types.IType) *Expression {
	return &Expression{Element: &Element{ResultType: t}}
}

// TypeAndSpan is a convenience constructor for an Expression with result
// type and span set.
func TypeAndSpan(t types.IType, span diag.Span) *Expression {
	return &Expression{Element: &Element{ResultType: t, Span: span}}
}

// DateTimePrecision represents the precision of a date, datetime or time
// value or operator. The string form is the ELM spelling.
type DateTimePrecision string

// Precisions, coarse to fine.
const (
	UNSETDATETIMEPRECISION DateTimePrecision = ""
	YEAR                   DateTimePrecision = "Year"
	MONTH                  DateTimePrecision = "Month"
	WEEK                   DateTimePrecision = "Week"
	DAY                    DateTimePrecision = "Day"
	HOUR                   DateTimePrecision = "Hour"
	MINUTE                 DateTimePrecision = "Minute"
	SECOND                 DateTimePrecision = "Second"
	MILLISECOND            DateTimePrecision = "Millisecond"
)

// AccessLevel defines the access modifier for a definition. If the user does
// not specify an access modifier the default is public. If the library is
// unnamed then all definitions are treated as private even when marked
// public.
type AccessLevel string

const (
	// Public means other CQL libraries can access the definition.
	Public AccessLevel = "Public"
	// Private means only the local CQL library can access the definition.
	Private AccessLevel = "Private"
)

// LibraryIdentifier for the library definition. This matches the ELM
// VersionedIdentifier. If nil then this is an unnamed library.
type LibraryIdentifier struct {
	*Element
	Local     string
	Qualified string // The full identifier of the library.
	Version   string
}

// Using defines a Using directive in CQL.
type Using struct {
	*Element
	LocalIdentifier string
	// URI is the model uri, for FHIR "http://hl7.org/fhir".
	URI     string
	Version string
}

// Include defines an Include library statement in CQL.
type Include struct {
	*Element
	Identifier *LibraryIdentifier
}

// ParameterDef is a top-level statement that defines a named CQL parameter.
type ParameterDef struct {
	*Element
	Name        string
	Default     IExpression
	AccessLevel AccessLevel
}

// CodeSystemDef is a named definition that references an external code
// system by ID and version.
type CodeSystemDef struct {
	*Element
	Name        string
	ID          string // 1..1
	Version     string // 0..1
	AccessLevel AccessLevel
}

// ValuesetDef is a named valueset definition that references a value set by ID.
type ValuesetDef struct {
	*Element
	Name        string
	ID          string           // 1..1
	Version     string           // 0..1
	CodeSystems []*CodeSystemRef // 0..*
	AccessLevel AccessLevel
}

// CodeDef is a named definition that references an external code from a
// CodeSystem by ID.
type CodeDef struct {
	*Element
	Name        string
	Code        string         // 1..1
	CodeSystem  *CodeSystemRef // 0..1
	Display     string         // 0..1
	AccessLevel AccessLevel
}

// ConceptDef is a named definition made up of code(s) from one or more
// CodeSystems. At least one code is required.
type ConceptDef struct {
	*Element
	Name        string
	Codes       []*CodeRef // 1..*
	Display     string     // 0..1
	AccessLevel AccessLevel
}

// Statements is a collection of expression and function definitions.
type Statements struct {
	Defs []IExpressionDef
}

// IExpressionDef is implemented by both ExpressionDef and FunctionDef.
type IExpressionDef interface {
	IElement
	GetName() string
	GetContext() string
	GetExpression() IExpression
	GetAccessLevel() AccessLevel
}

// ExpressionDef is a top-level named definition of a CQL expression.
type ExpressionDef struct {
	*Element
	Name        string
	Context     string
	Expression  IExpression
	AccessLevel AccessLevel
}

// GetName returns the name of the definition.
func (e *ExpressionDef) GetName() string { return e.Name }

// GetContext returns the context of the definition.
func (e *ExpressionDef) GetContext() string { return e.Context }

// GetExpression returns the expression of the definition.
func (e *ExpressionDef) GetExpression() IExpression { return e.Expression }

// GetAccessLevel returns the access level of the definition.
func (e *ExpressionDef) GetAccessLevel() AccessLevel { return e.AccessLevel }

// FunctionDef represents a user defined function. CQL built-in operators
// have their own structs in operators.go.
type FunctionDef struct {
	// The body of the function is the Expression field in the ExpressionDef.
	// The return type is the ResultType set in the Element.
	*ExpressionDef
	Operands []OperandDef
	Fluent   bool
	// External functions do not have a function body.
	External bool
}

// OperandDef defines an operand for a user defined function.
type OperandDef struct {
	// The type of the operand is the ResultType set in the Element.
	*Expression
	Name string
}

// IExpression is an interface implemented by all ELM expression structs.
type IExpression interface {
	IElement
	isExpression()
}

// Expression is a base type containing common metadata for all ELM
// expression types.
type Expression struct {
	*Element
}

func (e *Expression) isExpression() {}

// GetResultType returns the type of the result which may be Unset if unknown.
func (e *Expression) GetResultType() types.IType {
	if e == nil {
		return types.Unset
	}
	return e.Element.GetResultType()
}

// Literal represents a CQL literal. The Value carries the canonical source
// form; the ResultType selects the interpretation.
type Literal struct {
	*Expression
	Value string
}

// Quantity is an expression representation of a clinical quantity.
type Quantity struct {
	*Expression
	Value float64
	Unit  string
}

// Ratio expresses a ratio between two Quantities.
type Ratio struct {
	*Expression
	Numerator   Quantity
	Denominator Quantity
}

// An Interval expression.
type Interval struct {
	*Expression
	Low  IExpression
	High IExpression

	// Either LowClosedExpression or LowInclusive should be set.
	LowClosedExpression IExpression
	LowInclusive        bool

	// Either HighClosedExpression or HighInclusive should be set.
	HighClosedExpression IExpression
	HighInclusive        bool
}

// A List expression.
type List struct {
	*Expression
	List []IExpression
}

// Code is a literal code selector.
type Code struct {
	*Expression
	System  *CodeSystemRef
	Code    string
	Display string
}

// Tuple represents a tuple (aka Structured Value).
type Tuple struct {
	*Expression
	Elements []*TupleElement
}

// TupleElement is an element in a CQL Tuple.
type TupleElement struct {
	Name  string
	Value IExpression
}

// Instance represents an instance of a class (aka Named Structured Value).
type Instance struct {
	*Expression
	ClassType types.IType
	Elements  []*InstanceElement
}

// InstanceElement is an element in a CQL structure Instance.
type InstanceElement struct {
	Name  string
	Value IExpression
}

// A MessageSeverity determines the type of a Message and how it is
// processed.
type MessageSeverity string

// Message severities.
const (
	UNSETMESSAGESEVERITY MessageSeverity = ""
	TRACE                MessageSeverity = "Trace"
	MESSAGE              MessageSeverity = "Message"
	WARNING              MessageSeverity = "Warning"
	ERROR                MessageSeverity = "Error"
)

// Message is a CQL expression that surfaces evaluation-time messages to the
// host. When the condition holds, the message is collected on the
// evaluation context; an Error severity halts evaluation instead of being
// collected.
type Message struct {
	*Expression
	Source    IExpression
	Condition IExpression
	Code      IExpression
	Severity  IExpression
	Message   IExpression
}

// A SortDirection determines what ordering to use for a sorted query.
type SortDirection string

// Sort directions.
const (
	UNSETSORTDIRECTION SortDirection = ""
	ASCENDING          SortDirection = "asc"
	DESCENDING         SortDirection = "desc"
)

// A Query expression.
type Query struct {
	*Expression
	Source       []*AliasedSource
	Let          []*LetClause
	Relationship []IRelationshipClause
	Where        IExpression
	Sort         *SortClause
	Aggregate    *AggregateClause // Only Aggregate or Return can be populated, not both.
	Return       *ReturnClause
}

// LetClause is one let binding in a query.
type LetClause struct {
	*Element
	Expression IExpression
	Identifier string
}

// IRelationshipClause is an interface that With and Without meet.
type IRelationshipClause interface {
	IElement
	isRelationshipClause()
}

// RelationshipClause for a Query expression.
type RelationshipClause struct {
	*Element
	// Expression is the source of the inclusion clause.
	Expression IExpression
	Alias      string
	SuchThat   IExpression
}

func (c *RelationshipClause) isRelationshipClause() {}

// With is an inner-join inclusion filter.
type With struct{ *RelationshipClause }

// Without is an anti-join exclusion filter.
type Without struct{ *RelationshipClause }

// SortClause for a Query expression.
type SortClause struct {
	*Element
	ByItems []ISortByItem
}

// AggregateClause for a Query expression.
type AggregateClause struct {
	*Element
	Expression IExpression
	// Starting is the starting value of the aggregate variable. It is always
	// set; when the user omits it the analyzer inserts a null literal.
	Starting IExpression
	// Identifier is the alias for the aggregate variable.
	Identifier string
	Distinct   bool
}

// ReturnClause for a Query expression.
type ReturnClause struct {
	*Element
	Expression IExpression
	Distinct   bool
}

// ISortByItem defines one or more items that a query can be sorted by.
type ISortByItem interface {
	IElement
	isSortByItem()
}

// SortByItem is the base type for all sort item types.
type SortByItem struct {
	*Element
	Direction SortDirection
}

// SortByDirection sorts non-tuple values by the element values themselves.
type SortByDirection struct {
	*SortByItem
}

func (c *SortByDirection) isSortByItem() {}

// SortByColumn sorts by a property path and direction.
type SortByColumn struct {
	*SortByItem
	Path string
}

func (c *SortByColumn) isSortByItem() {}

// SortByExpression sorts by a key expression evaluated with $this bound to
// the element.
type SortByExpression struct {
	*SortByItem
	SortExpression IExpression
}

func (c *SortByExpression) isSortByItem() {}

// AliasedSource is a query source with an alias.
type AliasedSource struct {
	*Expression
	Alias  string
	Source IExpression
}

// Property gets a property from an expression.
type Property struct {
	*Expression
	Source IExpression
	Path   string
}

// A Retrieve expression. Codes filters results to resources whose
// CodeProperty matches the given terminology; DateRange restricts
// DateProperty to the interval.
type Retrieve struct {
	*Expression
	DataType     string
	TemplateID   string
	CodeProperty string
	// Codes is an expression that returns a terminology or list of codes.
	Codes        IExpression
	DateProperty string
	DateRange    IExpression
	// Context is the established evaluation context, such as Patient.
	Context string
}

// Case is a conditional case expression.
type Case struct {
	*Expression
	// If Comparand is provided it is compared against each When in the
	// CaseItems; otherwise each When must be boolean valued.
	Comparand IExpression
	CaseItem  []*CaseItem
	// Else must always be provided.
	Else IExpression
}

// CaseItem is a single case item in a Case expression.
type CaseItem struct {
	*Element
	When IExpression
	Then IExpression
}

// IfThenElse is the ELM If expression.
type IfThenElse struct {
	*Expression
	Condition IExpression
	Then      IExpression
	Else      IExpression
}

// MaxValue is the ELM MaxValue expression.
type MaxValue struct {
	*Expression
	ValueType types.IType
}

// MinValue is the ELM MinValue expression.
type MinValue struct {
	*Expression
	ValueType types.IType
}

// ParameterRef references a ParameterDef.
type ParameterRef struct {
	*Expression
	Name string
	// LibraryName is empty for parameters defined in the local CQL library.
	LibraryName string
}

// ValuesetRef references a ValuesetDef.
type ValuesetRef struct {
	*Expression
	Name        string
	LibraryName string
}

// CodeSystemRef references a CodeSystemDef.
type CodeSystemRef struct {
	*Expression
	Name        string
	LibraryName string
}

// ConceptRef references a ConceptDef.
type ConceptRef struct {
	*Expression
	Name        string
	LibraryName string
}

// CodeRef references a CodeDef.
type CodeRef struct {
	*Expression
	Name        string
	LibraryName string
}

// ExpressionRef references an ExpressionDef.
type ExpressionRef struct {
	*Expression
	Name        string
	LibraryName string
}

// AliasRef references a source alias within the scope of a query.
type AliasRef struct {
	*Expression
	Name string
}

// QueryLetRef references a let binding within the scope of a query.
type QueryLetRef struct {
	*Expression
	Name string
}

// FunctionRef references a user defined function.
type FunctionRef struct {
	*Expression
	Name        string
	LibraryName string
	Operands    []IExpression
}

// OperandRef references an operand within a function body.
type OperandRef struct {
	*Expression
	Name string
}

// IdentifierRef is an unresolved reference, produced only for property
// scopes that resolve at runtime.
type IdentifierRef struct {
	*Expression
	Name string
}

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

package model

import "github.com/octofhir/cql-go/types"

// IUnaryExpression is an interface that all unary expressions meet.
type IUnaryExpression interface {
	IExpression
	GetName() string
	GetOperand() IExpression
	SetOperand(IExpression)
	isUnaryExpression()
}

// UnaryExpression is an ELM expression that has one operand.
type UnaryExpression struct {
	*Expression
	Operand IExpression
}

// GetOperand returns the unary expression's operand.
func (a *UnaryExpression) GetOperand() IExpression { return a.Operand }

// SetOperand sets the unary expression's operand.
func (a *UnaryExpression) SetOperand(operand IExpression) { a.Operand = operand }

func (a *UnaryExpression) isUnaryExpression() {}

// As casts the operand to the given type, returning null (non-strict) or
// failing (strict) on mismatch.
type As struct {
	*UnaryExpression
	AsTypeSpecifier types.IType
	Strict          bool
}

// Is tests the runtime type of the operand.
type Is struct {
	*UnaryExpression
	IsTypeSpecifier types.IType
}

// Negate negates its numeric operand.
type Negate struct{ *UnaryExpression }

// Truncate truncates a decimal towards zero.
type Truncate struct{ *UnaryExpression }

// Exists is true when the operand list has at least one non-null element.
type Exists struct{ *UnaryExpression }

// Not is the three-valued logical negation.
type Not struct{ *UnaryExpression }

// First returns the first element of a list.
type First struct{ *UnaryExpression }

// Last returns the last element of a list.
type Last struct{ *UnaryExpression }

// Single returns the only element of a list, erroring on 2+ elements.
type Single struct{ *UnaryExpression }

// SingletonFrom converts a 0-or-1 element list to its element.
type SingletonFrom struct{ *UnaryExpression }

// Start returns the low boundary of an interval.
type Start struct{ *UnaryExpression }

// End returns the high boundary of an interval.
type End struct{ *UnaryExpression }

// Width returns high - low of an interval.
type Width struct{ *UnaryExpression }

// Size returns the interval size: high - low + point size.
type Size struct{ *UnaryExpression }

// PointFrom extracts the single point from a unit interval.
type PointFrom struct{ *UnaryExpression }

// Predecessor returns the value immediately before the operand.
type Predecessor struct{ *UnaryExpression }

// Successor returns the value immediately after the operand.
type Successor struct{ *UnaryExpression }

// IsNull is true when the operand is null.
type IsNull struct{ *UnaryExpression }

// IsFalse is true when the operand is false.
type IsFalse struct{ *UnaryExpression }

// IsTrue is true when the operand is true.
type IsTrue struct{ *UnaryExpression }

// Distinct removes duplicates (by CQL equivalence) preserving order.
type Distinct struct{ *UnaryExpression }

// Flatten flattens a list of lists by one level.
type Flatten struct{ *UnaryExpression }

// Collapse merges overlapping or meeting intervals in a list.
type Collapse struct{ *UnaryExpression }

// Length returns the length of a string or list.
type Length struct{ *UnaryExpression }

// Upper upper-cases a string.
type Upper struct{ *UnaryExpression }

// Lower lower-cases a string.
type Lower struct{ *UnaryExpression }

// Abs returns the absolute value.
type Abs struct{ *UnaryExpression }

// Ceiling returns the least integer >= operand.
type Ceiling struct{ *UnaryExpression }

// Floor returns the greatest integer <= operand.
type Floor struct{ *UnaryExpression }

// Exp raises e to the operand.
type Exp struct{ *UnaryExpression }

// Ln is the natural logarithm.
type Ln struct{ *UnaryExpression }

// ToBoolean converts the operand to Boolean.
type ToBoolean struct{ *UnaryExpression }

// ToDateTime converts the operand to DateTime.
type ToDateTime struct{ *UnaryExpression }

// ToDate converts the operand to Date.
type ToDate struct{ *UnaryExpression }

// ToDecimal converts the operand to Decimal.
type ToDecimal struct{ *UnaryExpression }

// ToLong converts the operand to Long.
type ToLong struct{ *UnaryExpression }

// ToInteger converts the operand to Integer.
type ToInteger struct{ *UnaryExpression }

// ToQuantity converts the operand to Quantity.
type ToQuantity struct{ *UnaryExpression }

// ToConcept converts the operand to Concept.
type ToConcept struct{ *UnaryExpression }

// ToString converts the operand to String.
type ToString struct{ *UnaryExpression }

// ToTime converts the operand to Time.
type ToTime struct{ *UnaryExpression }

// ConvertsToBoolean is true when the operand could convert to Boolean.
type ConvertsToBoolean struct{ *UnaryExpression }

// ConvertsToDate is true when the operand could convert to Date.
type ConvertsToDate struct{ *UnaryExpression }

// ConvertsToDateTime is true when the operand could convert to DateTime.
type ConvertsToDateTime struct{ *UnaryExpression }

// ConvertsToDecimal is true when the operand could convert to Decimal.
type ConvertsToDecimal struct{ *UnaryExpression }

// ConvertsToInteger is true when the operand could convert to Integer.
type ConvertsToInteger struct{ *UnaryExpression }

// ConvertsToLong is true when the operand could convert to Long.
type ConvertsToLong struct{ *UnaryExpression }

// ConvertsToQuantity is true when the operand could convert to Quantity.
type ConvertsToQuantity struct{ *UnaryExpression }

// ConvertsToString is true when the operand could convert to String.
type ConvertsToString struct{ *UnaryExpression }

// ConvertsToTime is true when the operand could convert to Time.
type ConvertsToTime struct{ *UnaryExpression }

// AllTrue is true when all elements of the operand list are true.
type AllTrue struct{ *UnaryExpression }

// AnyTrue is true when any element of the operand list is true.
type AnyTrue struct{ *UnaryExpression }

// Count returns the number of non-null elements.
type Count struct{ *UnaryExpression }

// Sum sums the non-null elements.
type Sum struct{ *UnaryExpression }

// Min returns the minimum element.
type Min struct{ *UnaryExpression }

// Max returns the maximum element.
type Max struct{ *UnaryExpression }

// Avg returns the average of the non-null elements.
type Avg struct{ *UnaryExpression }

// Median returns the median of the non-null elements.
type Median struct{ *UnaryExpression }

// Mode returns the most frequent element.
type Mode struct{ *UnaryExpression }

// StdDev returns the sample standard deviation.
type StdDev struct{ *UnaryExpression }

// Variance returns the sample variance.
type Variance struct{ *UnaryExpression }

// Tail returns all but the first element of a list.
type Tail struct{ *UnaryExpression }

// DateFrom extracts the date part of a DateTime.
type DateFrom struct{ *UnaryExpression }

// TimeFrom extracts the time part of a DateTime.
type TimeFrom struct{ *UnaryExpression }

// TimezoneOffsetFrom extracts the timezone offset in hours.
type TimezoneOffsetFrom struct{ *UnaryExpression }

// DateTimeComponentFrom extracts a single component at the given precision.
type DateTimeComponentFrom struct {
	*UnaryExpression
	Precision DateTimePrecision
}

// CalculateAge computes the age from a birth date to now at the given
// precision.
type CalculateAge struct {
	*UnaryExpression
	Precision DateTimePrecision
}

// BinaryExpression is an ELM expression that has two operands.
type BinaryExpression struct {
	*Expression
	Operands []IExpression
}

// Left returns the first operand or nil.
func (b *BinaryExpression) Left() IExpression {
	if len(b.Operands) < 1 {
		return nil
	}
	return b.Operands[0]
}

// Right returns the second operand or nil.
func (b *BinaryExpression) Right() IExpression {
	if len(b.Operands) < 2 {
		return nil
	}
	return b.Operands[1]
}

// SetOperands sets the BinaryExpression's operands.
func (b *BinaryExpression) SetOperands(left, right IExpression) {
	b.Operands = []IExpression{left, right}
}

func (b *BinaryExpression) isBinaryExpression() {}

// IBinaryExpression is an interface that all binary expressions meet.
type IBinaryExpression interface {
	IExpression
	GetName() string
	Left() IExpression
	Right() IExpression
	SetOperands(left, right IExpression)
	isBinaryExpression()
}

// Equal is the strict CQL equality.
type Equal struct{ *BinaryExpression }

// Equivalent is the lenient CQL equivalence.
type Equivalent struct{ *BinaryExpression }

// Less is the < comparison.
type Less struct{ *BinaryExpression }

// Greater is the > comparison.
type Greater struct{ *BinaryExpression }

// LessOrEqual is the <= comparison.
type LessOrEqual struct{ *BinaryExpression }

// GreaterOrEqual is the >= comparison.
type GreaterOrEqual struct{ *BinaryExpression }

// And is the three-valued conjunction.
type And struct{ *BinaryExpression }

// Or is the three-valued disjunction.
type Or struct{ *BinaryExpression }

// XOr is the three-valued exclusive or.
type XOr struct{ *BinaryExpression }

// Implies is the three-valued implication.
type Implies struct{ *BinaryExpression }

// Add is addition.
type Add struct{ *BinaryExpression }

// Subtract is subtraction.
type Subtract struct{ *BinaryExpression }

// Multiply is multiplication.
type Multiply struct{ *BinaryExpression }

// Divide is division.
type Divide struct{ *BinaryExpression }

// Modulo is the remainder, carrying the sign of the divisor.
type Modulo struct{ *BinaryExpression }

// TruncatedDivide is integer division truncated toward zero.
type TruncatedDivide struct{ *BinaryExpression }

// Power raises the left operand to the right.
type Power struct{ *BinaryExpression }

// Log is the logarithm of the left operand in the base of the right.
type Log struct{ *BinaryExpression }

// Except removes the right operand's elements from the left.
type Except struct{ *BinaryExpression }

// Intersect keeps the left operand's elements present in the right.
type Intersect struct{ *BinaryExpression }

// Union concatenates with set semantics, preserving first-operand order.
type Union struct{ *BinaryExpression }

// Indexer is 0-based list or string indexing; out of range is null.
type Indexer struct{ *BinaryExpression }

// IndexOf returns the 0-based index of the element in the list, or -1.
type IndexOf struct{ *BinaryExpression }

// Includes is true when the left contains every element of the right.
type Includes struct{ *BinaryExpression }

// ProperlyIncludes is Includes plus strictly greater cardinality.
type ProperlyIncludes struct{ *BinaryExpression }

// Take returns the first N elements of a list.
type Take struct{ *BinaryExpression }

// Skip drops the first N elements of a list.
type Skip struct{ *BinaryExpression }

// StartsWith is true when the left string starts with the right.
type StartsWith struct{ *BinaryExpression }

// EndsWith is true when the left string ends with the right.
type EndsWith struct{ *BinaryExpression }

// Matches is true when the left string matches the right regex.
type Matches struct{ *BinaryExpression }

// Split splits the left string on the right separator.
type Split struct{ *BinaryExpression }

// PositionOf is the index of the left pattern in the right string.
type PositionOf struct{ *BinaryExpression }

// LastPositionOf is the last index of the left pattern in the right string.
type LastPositionOf struct{ *BinaryExpression }

// InCodeSystem tests code membership in a code system via the terminology
// provider.
type InCodeSystem struct{ *BinaryExpression }

// InValueSet tests code membership in a value set via the terminology
// provider.
type InValueSet struct{ *BinaryExpression }

// CanConvertQuantity is true when the left quantity can convert to the unit
// of the right.
type CanConvertQuantity struct{ *BinaryExpression }

// ConvertQuantity converts the left quantity to the unit of the right.
type ConvertQuantity struct{ *BinaryExpression }

// BinaryExpressionWithPrecision is a BinaryExpression with a precision
// property.
type BinaryExpressionWithPrecision struct {
	*BinaryExpression
	Precision DateTimePrecision
}

// Before is the interval/temporal before relation.
type Before BinaryExpressionWithPrecision

// After is the interval/temporal after relation.
type After BinaryExpressionWithPrecision

// SameAs is temporal equality truncated at a precision.
type SameAs BinaryExpressionWithPrecision

// SameOrBefore is SameAs or Before.
type SameOrBefore BinaryExpressionWithPrecision

// SameOrAfter is SameAs or After.
type SameOrAfter BinaryExpressionWithPrecision

// DurationBetween counts whole calendar periods between two temporal values.
type DurationBetween BinaryExpressionWithPrecision

// DifferenceBetween counts boundary crossings between two temporal values.
type DifferenceBetween BinaryExpressionWithPrecision

// In is membership in a list or interval.
type In BinaryExpressionWithPrecision

// IncludedIn is the converse of Includes.
type IncludedIn BinaryExpressionWithPrecision

// ProperlyIncludedIn is the converse of ProperlyIncludes.
type ProperlyIncludedIn BinaryExpressionWithPrecision

// Contains is the converse of In.
type Contains BinaryExpressionWithPrecision

// Overlaps is the interval overlap relation.
type Overlaps BinaryExpressionWithPrecision

// Meets is true when the intervals are adjacent without overlap.
type Meets BinaryExpressionWithPrecision

// Starts is true when the left interval starts the right.
type Starts BinaryExpressionWithPrecision

// Ends is true when the left interval ends the right.
type Ends BinaryExpressionWithPrecision

// CalculateAgeAt computes the age at the time of the second operand.
type CalculateAgeAt BinaryExpressionWithPrecision

// INaryExpression is an interface for expressions with any number of
// operands.
type INaryExpression interface {
	IExpression
	GetName() string
	GetOperands() []IExpression
	SetOperands([]IExpression)
	isNaryExpression()
}

// NaryExpression takes any number of operands including zero.
type NaryExpression struct {
	*Expression
	Operands []IExpression
}

// GetOperands returns the operands of the NaryExpression.
func (n *NaryExpression) GetOperands() []IExpression {
	return n.Operands
}

// SetOperands sets the NaryExpression's operands.
func (n *NaryExpression) SetOperands(ops []IExpression) {
	n.Operands = ops
}

func (n *NaryExpression) isNaryExpression() {}

// Coalesce returns its first non-null operand.
type Coalesce struct{ *NaryExpression }

// Concatenate joins strings, null propagating.
type Concatenate struct{ *NaryExpression }

// Combine joins a list of strings with an optional separator.
type Combine struct{ *NaryExpression }

// Substring takes (string, start [, length]).
type Substring struct{ *NaryExpression }

// ReplaceMatches takes (string, pattern, replacement).
type ReplaceMatches struct{ *NaryExpression }

// Round rounds a decimal to an optional number of digits.
type Round struct{ *NaryExpression }

// Date constructs a Date from (year [, month [, day]]).
type Date struct{ *NaryExpression }

// DateTime constructs a DateTime from components.
type DateTime struct{ *NaryExpression }

// Time constructs a Time from components.
type Time struct{ *NaryExpression }

// Now returns the evaluation timestamp.
type Now struct{ *NaryExpression }

// Today returns the date of the evaluation timestamp.
type Today struct{ *NaryExpression }

// TimeOfDay returns the time of the evaluation timestamp.
type TimeOfDay struct{ *NaryExpression }

// UNARY EXPRESSION GETNAME()

// GetName returns the name of the system operator.
func (a *As) GetName() string { return "As" }

// GetName returns the name of the system operator.
func (i *Is) GetName() string { return "Is" }

// GetName returns the name of the system operator.
func (e *Exists) GetName() string { return "Exists" }

// GetName returns the name of the system operator.
func (n *Not) GetName() string { return "Not" }

// GetName returns the name of the system operator.
func (a *Truncate) GetName() string { return "Truncate" }

// GetName returns the name of the system operator.
func (f *First) GetName() string { return "First" }

// GetName returns the name of the system operator.
func (l *Last) GetName() string { return "Last" }

// GetName returns the name of the system operator.
func (s *Single) GetName() string { return "Single" }

// GetName returns the name of the system operator.
func (s *SingletonFrom) GetName() string { return "SingletonFrom" }

// GetName returns the name of the system operator.
func (a *Start) GetName() string { return "Start" }

// GetName returns the name of the system operator.
func (a *End) GetName() string { return "End" }

// GetName returns the name of the system operator.
func (a *Width) GetName() string { return "Width" }

// GetName returns the name of the system operator.
func (a *Size) GetName() string { return "Size" }

// GetName returns the name of the system operator.
func (a *PointFrom) GetName() string { return "PointFrom" }

// GetName returns the name of the system operator.
func (a *Predecessor) GetName() string { return "Predecessor" }

// GetName returns the name of the system operator.
func (a *Successor) GetName() string { return "Successor" }

// GetName returns the name of the system operator.
func (a *IsNull) GetName() string { return "IsNull" }

// GetName returns the name of the system operator.
func (a *IsFalse) GetName() string { return "IsFalse" }

// GetName returns the name of the system operator.
func (a *IsTrue) GetName() string { return "IsTrue" }

// GetName returns the name of the system operator.
func (a *Distinct) GetName() string { return "Distinct" }

// GetName returns the name of the system operator.
func (a *Flatten) GetName() string { return "Flatten" }

// GetName returns the name of the system operator.
func (a *Collapse) GetName() string { return "Collapse" }

// GetName returns the name of the system operator.
func (a *Length) GetName() string { return "Length" }

// GetName returns the name of the system operator.
func (a *Upper) GetName() string { return "Upper" }

// GetName returns the name of the system operator.
func (a *Lower) GetName() string { return "Lower" }

// GetName returns the name of the system operator.
func (a *Abs) GetName() string { return "Abs" }

// GetName returns the name of the system operator.
func (a *Ceiling) GetName() string { return "Ceiling" }

// GetName returns the name of the system operator.
func (a *Floor) GetName() string { return "Floor" }

// GetName returns the name of the system operator.
func (a *Exp) GetName() string { return "Exp" }

// GetName returns the name of the system operator.
func (a *Ln) GetName() string { return "Ln" }

// GetName returns the name of the system operator.
func (a *ToBoolean) GetName() string { return "ToBoolean" }

// GetName returns the name of the system operator.
func (a *ToDateTime) GetName() string { return "ToDateTime" }

// GetName returns the name of the system operator.
func (a *ToDate) GetName() string { return "ToDate" }

// GetName returns the name of the system operator.
func (a *ToDecimal) GetName() string { return "ToDecimal" }

// GetName returns the name of the system operator.
func (a *ToLong) GetName() string { return "ToLong" }

// GetName returns the name of the system operator.
func (a *ToInteger) GetName() string { return "ToInteger" }

// GetName returns the name of the system operator.
func (a *ToQuantity) GetName() string { return "ToQuantity" }

// GetName returns the name of the system operator.
func (a *ToConcept) GetName() string { return "ToConcept" }

// GetName returns the name of the system operator.
func (a *ToString) GetName() string { return "ToString" }

// GetName returns the name of the system operator.
func (a *ToTime) GetName() string { return "ToTime" }

// GetName returns the name of the system operator.
func (a *ConvertsToBoolean) GetName() string { return "ConvertsToBoolean" }

// GetName returns the name of the system operator.
func (a *ConvertsToDate) GetName() string { return "ConvertsToDate" }

// GetName returns the name of the system operator.
func (a *ConvertsToDateTime) GetName() string { return "ConvertsToDateTime" }

// GetName returns the name of the system operator.
func (a *ConvertsToDecimal) GetName() string { return "ConvertsToDecimal" }

// GetName returns the name of the system operator.
func (a *ConvertsToInteger) GetName() string { return "ConvertsToInteger" }

// GetName returns the name of the system operator.
func (a *ConvertsToLong) GetName() string { return "ConvertsToLong" }

// GetName returns the name of the system operator.
func (a *ConvertsToQuantity) GetName() string { return "ConvertsToQuantity" }

// GetName returns the name of the system operator.
func (a *ConvertsToString) GetName() string { return "ConvertsToString" }

// GetName returns the name of the system operator.
func (a *ConvertsToTime) GetName() string { return "ConvertsToTime" }

// GetName returns the name of the system operator.
func (a *AllTrue) GetName() string { return "AllTrue" }

// GetName returns the name of the system operator.
func (a *AnyTrue) GetName() string { return "AnyTrue" }

// GetName returns the name of the system operator.
func (c *Count) GetName() string { return "Count" }

// GetName returns the name of the system operator.
func (a *Sum) GetName() string { return "Sum" }

// GetName returns the name of the system operator.
func (a *Min) GetName() string { return "Min" }

// GetName returns the name of the system operator.
func (a *Max) GetName() string { return "Max" }

// GetName returns the name of the system operator.
func (a *Avg) GetName() string { return "Avg" }

// GetName returns the name of the system operator.
func (a *Median) GetName() string { return "Median" }

// GetName returns the name of the system operator.
func (a *Mode) GetName() string { return "Mode" }

// GetName returns the name of the system operator.
func (a *StdDev) GetName() string { return "StdDev" }

// GetName returns the name of the system operator.
func (a *Variance) GetName() string { return "Variance" }

// GetName returns the name of the system operator.
func (a *Tail) GetName() string { return "Tail" }

// GetName returns the name of the system operator.
func (a *DateFrom) GetName() string { return "DateFrom" }

// GetName returns the name of the system operator.
func (a *TimeFrom) GetName() string { return "TimeFrom" }

// GetName returns the name of the system operator.
func (a *TimezoneOffsetFrom) GetName() string { return "TimezoneOffsetFrom" }

// GetName returns the name of the system operator.
func (a *DateTimeComponentFrom) GetName() string { return "DateTimeComponentFrom" }

// GetName returns the name of the system operator.
func (a *CalculateAge) GetName() string { return "CalculateAge" }

// GetName returns the name of the system operator.
func (a *Negate) GetName() string { return "Negate" }

// BINARY EXPRESSION GETNAME()

// GetName returns the name of the system operator.
func (a *Equal) GetName() string { return "Equal" }

// GetName returns the name of the system operator.
func (a *Equivalent) GetName() string { return "Equivalent" }

// GetName returns the name of the system operator.
func (a *Less) GetName() string { return "Less" }

// GetName returns the name of the system operator.
func (a *Greater) GetName() string { return "Greater" }

// GetName returns the name of the system operator.
func (a *LessOrEqual) GetName() string { return "LessOrEqual" }

// GetName returns the name of the system operator.
func (a *GreaterOrEqual) GetName() string { return "GreaterOrEqual" }

// GetName returns the name of the system operator.
func (a *And) GetName() string { return "And" }

// GetName returns the name of the system operator.
func (a *Or) GetName() string { return "Or" }

// GetName returns the name of the system operator.
func (a *XOr) GetName() string { return "Xor" }

// GetName returns the name of the system operator.
func (a *Implies) GetName() string { return "Implies" }

// GetName returns the name of the system operator.
func (a *Add) GetName() string { return "Add" }

// GetName returns the name of the system operator.
func (a *Subtract) GetName() string { return "Subtract" }

// GetName returns the name of the system operator.
func (a *Multiply) GetName() string { return "Multiply" }

// GetName returns the name of the system operator.
func (a *Divide) GetName() string { return "Divide" }

// GetName returns the name of the system operator.
func (a *Modulo) GetName() string { return "Modulo" }

// GetName returns the name of the system operator.
func (a *TruncatedDivide) GetName() string { return "TruncatedDivide" }

// GetName returns the name of the system operator.
func (a *Power) GetName() string { return "Power" }

// GetName returns the name of the system operator.
func (a *Log) GetName() string { return "Log" }

// GetName returns the name of the system operator.
func (a *Except) GetName() string { return "Except" }

// GetName returns the name of the system operator.
func (a *Intersect) GetName() string { return "Intersect" }

// GetName returns the name of the system operator.
func (a *Union) GetName() string { return "Union" }

// GetName returns the name of the system operator.
func (a *Indexer) GetName() string { return "Indexer" }

// GetName returns the name of the system operator.
func (a *IndexOf) GetName() string { return "IndexOf" }

// GetName returns the name of the system operator.
func (a *Includes) GetName() string { return "Includes" }

// GetName returns the name of the system operator.
func (a *ProperlyIncludes) GetName() string { return "ProperlyIncludes" }

// GetName returns the name of the system operator.
func (a *Take) GetName() string { return "Take" }

// GetName returns the name of the system operator.
func (a *Skip) GetName() string { return "Skip" }

// GetName returns the name of the system operator.
func (a *StartsWith) GetName() string { return "StartsWith" }

// GetName returns the name of the system operator.
func (a *EndsWith) GetName() string { return "EndsWith" }

// GetName returns the name of the system operator.
func (a *Matches) GetName() string { return "Matches" }

// GetName returns the name of the system operator.
func (a *Split) GetName() string { return "Split" }

// GetName returns the name of the system operator.
func (a *PositionOf) GetName() string { return "PositionOf" }

// GetName returns the name of the system operator.
func (a *LastPositionOf) GetName() string { return "LastPositionOf" }

// GetName returns the name of the system operator.
func (a *InCodeSystem) GetName() string { return "InCodeSystem" }

// GetName returns the name of the system operator.
func (a *InValueSet) GetName() string { return "InValueSet" }

// GetName returns the name of the system operator.
func (a *CanConvertQuantity) GetName() string { return "CanConvertQuantity" }

// GetName returns the name of the system operator.
func (a *ConvertQuantity) GetName() string { return "ConvertQuantity" }

// GetName returns the name of the system operator.
func (a *Before) GetName() string { return "Before" }

// GetName returns the name of the system operator.
func (a *After) GetName() string { return "After" }

// GetName returns the name of the system operator.
func (a *SameAs) GetName() string { return "SameAs" }

// GetName returns the name of the system operator.
func (a *SameOrBefore) GetName() string { return "SameOrBefore" }

// GetName returns the name of the system operator.
func (a *SameOrAfter) GetName() string { return "SameOrAfter" }

// GetName returns the name of the system operator.
func (a *DurationBetween) GetName() string { return "DurationBetween" }

// GetName returns the name of the system operator.
func (a *DifferenceBetween) GetName() string { return "DifferenceBetween" }

// GetName returns the name of the system operator.
func (a *In) GetName() string { return "In" }

// GetName returns the name of the system operator.
func (a *IncludedIn) GetName() string { return "IncludedIn" }

// GetName returns the name of the system operator.
func (a *ProperlyIncludedIn) GetName() string { return "ProperlyIncludedIn" }

// GetName returns the name of the system operator.
func (a *Contains) GetName() string { return "Contains" }

// GetName returns the name of the system operator.
func (a *Overlaps) GetName() string { return "Overlaps" }

// GetName returns the name of the system operator.
func (a *Meets) GetName() string { return "Meets" }

// GetName returns the name of the system operator.
func (a *Starts) GetName() string { return "Starts" }

// GetName returns the name of the system operator.
func (a *Ends) GetName() string { return "Ends" }

// GetName returns the name of the system operator.
func (a *CalculateAgeAt) GetName() string { return "CalculateAgeAt" }

// NARY EXPRESSION GETNAME()

// GetName returns the name of the system operator.
func (a *Coalesce) GetName() string { return "Coalesce" }

// GetName returns the name of the system operator.
func (a *Concatenate) GetName() string { return "Concatenate" }

// GetName returns the name of the system operator.
func (a *Combine) GetName() string { return "Combine" }

// GetName returns the name of the system operator.
func (a *Substring) GetName() string { return "Substring" }

// GetName returns the name of the system operator.
func (a *ReplaceMatches) GetName() string { return "ReplaceMatches" }

// GetName returns the name of the system operator.
func (a *Round) GetName() string { return "Round" }

// GetName returns the name of the system operator.
func (a *Date) GetName() string { return "Date" }

// GetName returns the name of the system operator.
func (a *DateTime) GetName() string { return "DateTime" }

// GetName returns the name of the system operator.
func (a *Time) GetName() string { return "Time" }

// GetName returns the name of the system operator.
func (a *Now) GetName() string { return "Now" }

// GetName returns the name of the system operator.
func (a *Today) GetName() string { return "Today" }

// GetName returns the name of the system operator.
func (a *TimeOfDay) GetName() string { return "TimeOfDay" }

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

package diag

import "fmt"

// Code is a namespaced diagnostic code. Codes are grouped in numeric blocks:
// 1-99 parse, 100-199 semantic, 200-299 evaluation, 300-399 model,
// 400-499 system.
type Code uint16

// Parse error codes (1-99).
const (
	UnexpectedToken    Code = 1
	UnexpectedEOF      Code = 2
	InvalidIdentifier  Code = 3
	InvalidLiteral     Code = 4
	InvalidEscape      Code = 5
	UnterminatedString Code = 6
	InvalidNumber      Code = 7
	InvalidDateTime    Code = 8
	InvalidQuantity    Code = 9
	MissingDelimiter   Code = 10
	ExpectedExpression Code = 12
	ExpectedIdentifier Code = 13
	ExpectedType       Code = 14
	ReservedKeyword    Code = 16
)

// Semantic error codes (100-199).
const (
	UndefinedIdentifier   Code = 100
	UndefinedFunction     Code = 101
	TypeMismatch          Code = 102
	ArityMismatch         Code = 103
	AmbiguousCall         Code = 104
	CircularReference     Code = 105
	InvalidCast           Code = 106
	InvalidPropertyAccess Code = 107
	ContextNotEstablished Code = 108
	DuplicateDefinition   Code = 109
	AccessViolation       Code = 110
	UndefinedLibrary      Code = 111
	PrecisionLoss         Code = 112
)

// Evaluation error codes (200-299).
const (
	DivisionByZero    Code = 200
	Overflow          Code = 201
	IncompatibleUnits Code = 202
	IndexOutOfRange   Code = 203
	SingletonRequired Code = 204
	RecursionLimit    Code = 205
	Timeout           Code = 206
	StrictCastFailed  Code = 207
	MessageError      Code = 208
)

// Model error codes (300-399).
const (
	UnknownType       Code = 300
	UnknownProperty   Code = 301
	NotRetrievable    Code = 302
	NoPrimaryCodePath Code = 303
)

// System error codes (400-499).
const (
	IOError     Code = 400
	ConfigError Code = 401
)

// Group is the diagnostic namespace the code belongs to.
type Group string

const (
	// ParseGroup is for lexer and parser diagnostics.
	ParseGroup Group = "parse"
	// SemanticGroup is for analyzer diagnostics.
	SemanticGroup Group = "semantic"
	// EvaluationGroup is for interpreter diagnostics.
	EvaluationGroup Group = "evaluation"
	// ModelGroup is for model-provider diagnostics.
	ModelGroup Group = "model"
	// SystemGroup is for I/O and configuration diagnostics.
	SystemGroup Group = "system"
)

// Group returns the namespace derived from the code's numeric block.
func (c Code) Group() Group {
	switch {
	case c < 100:
		return ParseGroup
	case c < 200:
		return SemanticGroup
	case c < 300:
		return EvaluationGroup
	case c < 400:
		return ModelGroup
	default:
		return SystemGroup
	}
}

// String renders the code in its canonical CQLnnnn form.
func (c Code) String() string {
	return fmt.Sprintf("CQL%04d", uint16(c))
}

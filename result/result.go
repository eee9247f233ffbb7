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

// Package result defines the evaluation results that can be returned by the
// CQL engine.
package result

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pborman/uuid"

	"github.com/octofhir/cql-go/model"
)

// Libraries returns the results of the evaluation of a set of CQL
// Libraries: each library's expression definitions mapped to their values,
// plus any evaluation-time messages collected from Message expressions.
type Libraries struct {
	// Results maps each library to its expression definition results.
	Results map[LibKey]map[string]Value
	// Messages are the evaluation-time messages in emit order.
	Messages []Message
}

// Message is an evaluation-time message emitted by the CQL Message
// operator. Error severity messages fail the evaluation instead.
type Message struct {
	Severity model.MessageSeverity
	Code     string
	Message  string
	// Source is the value the message was attached to, which the Message
	// operator also returns.
	Source Value
}

type cqlLibJSON struct {
	Name    string           `json:"libName"`
	Version string           `json:"libVersion"`
	ExpDefs map[string]Value `json:"expressionDefinitions"`
}

// MarshalJSON returns the CQL results as a JSON list of libraries:
//
//	[{
//		'libName': 'TESTLIB',
//		'libVersion': '1.0.0',
//		'expressionDefinitions': {'ExpDef': 3, 'ExpDef2': 4},
//	}, ...]
func (l Libraries) MarshalJSON() ([]byte, error) {
	r := []cqlLibJSON{}
	for k, v := range l.Results {
		r = append(r, cqlLibJSON{
			Name:    k.Name,
			Version: k.Version,
			ExpDefs: v,
		})
	}
	return json.Marshal(r)
}

// LibKey is the unique identifier for a CQL Library.
type LibKey struct {
	// Name is the fully qualified identifier of the CQL library.
	Name string
	// Version is empty if no version was specified.
	Version string
	// Unnamed libraries do not have a library identifier. They cannot be
	// referenced and all their definitions are private. Use UnnamedLibKey()
	// to create one.
	IsUnnamed bool
}

// UnnamedLibKey returns a LibKey for a library without an identifier. The
// Name will be "Unnamed Library" and the Version a random UUID.
func UnnamedLibKey() LibKey {
	return LibKey{Name: "Unnamed Library", Version: uuid.New(), IsUnnamed: true}
}

// LibKeyFromModel returns a LibKey from a model.LibraryIdentifier. A nil
// identifier yields an UnnamedLibKey.
func LibKeyFromModel(lib *model.LibraryIdentifier) LibKey {
	if lib == nil {
		return UnnamedLibKey()
	}
	return LibKey{Name: lib.Qualified, Version: lib.Version}
}

// Key returns a unique string key representation of the LibKey.
func (l LibKey) Key() string {
	if l.Version == "" {
		return l.Name
	}
	return l.Name + " " + l.Version
}

// String returns a printable representation of LibKey.
func (l LibKey) String() string {
	if l.IsUnnamed {
		return "Unnamed Library"
	}
	if l.Version == "" {
		return l.Name
	}
	return l.Name + " " + l.Version
}

// DefKey is the unique identifier for a CQL expression definition,
// parameter or valueset.
type DefKey struct {
	Name    string
	Library LibKey
}

// EngineErrorType is the type of error to be set on the EngineError.
type EngineErrorType error

var (
	// ErrLibraryParsing is returned when a library could not be parsed or
	// analyzed.
	ErrLibraryParsing = errors.New("failed to parse library")
	// ErrParameterParsing is returned when a parameter could not be parsed.
	ErrParameterParsing = errors.New("failed to parse parameter")
	// ErrEvaluationError is returned when a runtime error occurs during CQL
	// evaluation.
	ErrEvaluationError = errors.New("failed during CQL evaluation")
)

// EngineError is returned when the CQL engine fails during parsing or
// execution.
type EngineError struct {
	Resource string
	ErrType  EngineErrorType
	Err      error
}

// NewEngineError returns a new EngineError wrapping the nested error that
// was returned during parsing or evaluation.
func NewEngineError(resource string, errType EngineErrorType, err error) EngineError {
	return EngineError{Resource: resource, ErrType: errType, Err: err}
}

func (e EngineError) Error() string {
	return fmt.Sprintf("%s: %s, %s", e.ErrType.Error(), e.Resource, e.Err.Error())
}

func (e EngineError) Unwrap() error {
	return e.Err
}

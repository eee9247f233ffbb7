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

// Package retriever defines the interface between the CQL engine and the
// data source CQL is computed over. Hosts provide an implementation of the
// Retriever interface; implementations must be safe for concurrent use
// because one retriever may back many evaluations in parallel.
package retriever

import (
	"context"

	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/terminology"
)

// Query carries the parameters of a retrieve. The retriever may use the
// code and date filters to reduce the result set, or ignore them: the
// interpreter re-applies both filters to whatever is returned.
type Query struct {
	// Context is the established evaluation context name, such as Patient.
	Context string
	// DataType is the fully qualified type to retrieve, such as
	// FHIR.Observation.
	DataType string
	// TemplateID is an optional profile identifier.
	TemplateID string
	// CodeProperty is the property the code filter applies to.
	CodeProperty string
	// Codes restricts results to resources whose CodeProperty matches one
	// of these codes. Empty means unfiltered.
	Codes []terminology.Code
	// ValueSetID restricts results to resources whose CodeProperty is in
	// the value set. Empty means unfiltered.
	ValueSetID string
	// DateProperty is the property the date filter applies to.
	DateProperty string
	// DateRangeLow and DateRangeHigh bound DateProperty inclusively when
	// non-nil.
	DateRangeLow  *result.Value
	DateRangeHigh *result.Value
}

// Retriever fetches clinical resources for the interpreter. Results are
// opaque resource handles, typically result.Tuple values whose runtime type
// is the model type being retrieved.
type Retriever interface {
	Retrieve(ctx context.Context, query Query) ([]result.Value, error)
}

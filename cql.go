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

// Package cql provides tools for parsing, analyzing, serializing and
// evaluating CQL.
package cql

import (
	"context"
	"fmt"
	"time"

	"github.com/octofhir/cql-go/analyzer"
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/interpreter"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/parser"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/retriever"
	"github.com/octofhir/cql-go/terminology"
)

// ParseConfig configures the parsing and analysis of CQL into ELM.
type ParseConfig struct {
	// DataModels are the model providers available to using declarations.
	// The System model is included by default; DataModels are optional and
	// can be nil in which case the CQL can only use the System model.
	DataModels []modelinfo.Provider

	// Parameters map a parameter's DefKey to a CQL literal. The literal
	// cannot be an expression definition, valueset or other CQL construct,
	// and cannot reference other definitions or call functions. Examples:
	// 100, 'string', Interval[@2013-01-01, @2014-01-01) or {1, 2}.
	// Parameters are optional and can be nil.
	Parameters map[result.DefKey]string
}

// Parse parses and analyzes CQL libraries into ELM, which can then be
// serialized or evaluated. Errors returned by Parse will always be a
// result.EngineError.
func Parse(ctx context.Context, libs []string, config ParseConfig) (*ELM, error) {
	registry := modelinfo.NewRegistry(config.DataModels...)
	a, err := analyzer.New(registry)
	if err != nil {
		return nil, result.NewEngineError("", result.ErrLibraryParsing, err)
	}

	parsed := make([]analyzer.ParsedLibrary, 0, len(libs))
	for _, src := range libs {
		res := parser.Parse(src, parser.Analysis)
		if diag.HasErrors(res.Diagnostics) {
			return nil, result.NewEngineError("", result.ErrLibraryParsing, &analyzer.LibraryErrors{Diagnostics: res.Diagnostics})
		}
		parsed = append(parsed, analyzer.ParsedLibrary{AST: res.Library, SourceMap: res.SourceMap})
	}

	lowered, err := a.Libraries(parsed)
	if err != nil {
		return nil, result.NewEngineError("", result.ErrLibraryParsing, err)
	}

	parsedParams, err := parseParameters(a, config.Parameters)
	if err != nil {
		return nil, err
	}

	return &ELM{
		registry:     registry,
		parsedParams: parsedParams,
		parsedLibs:   lowered,
	}, nil
}

// parseParameters parses each passed parameter as a single CQL literal.
func parseParameters(a *analyzer.Analyzer, params map[result.DefKey]string) (map[result.DefKey]model.IExpression, error) {
	if params == nil {
		return nil, nil
	}
	parsed := make(map[result.DefKey]model.IExpression, len(params))
	for key, src := range params {
		res := parser.ParseExpression(src)
		if diag.HasErrors(res.Diagnostics) {
			return nil, result.NewEngineError(key.Name, result.ErrParameterParsing, &analyzer.LibraryErrors{Diagnostics: res.Diagnostics})
		}
		expr, err := a.Expression(res.Expression, res.SourceMap)
		if err != nil {
			return nil, result.NewEngineError(key.Name, result.ErrParameterParsing, err)
		}
		parsed[key] = expr
	}
	return parsed, nil
}

// ELM is the analyzed CQL, ready to be serialized or evaluated.
type ELM struct {
	registry     *modelinfo.Registry
	parsedParams map[result.DefKey]model.IExpression
	parsedLibs   []*model.Library
}

// Libraries returns the lowered libraries.
func (e *ELM) Libraries() []*model.Library { return e.parsedLibs }

// Serialize renders each library in the HL7 ELM schema shape, one document
// per library, in dependency order.
func (e *ELM) Serialize(format model.Format, pretty bool) ([][]byte, error) {
	out := make([][]byte, 0, len(e.parsedLibs))
	for _, lib := range e.parsedLibs {
		doc, err := model.Serialize(lib, format, pretty)
		if err != nil {
			return nil, result.NewEngineError(result.LibKeyFromModel(lib.Identifier).String(), result.ErrLibraryParsing, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// EvalConfig configures the evaluation of ELM to final CQL results.
type EvalConfig struct {
	// Terminology is the interface through which the interpreter connects
	// to terminology servers. It can be nil if the CQL does not use
	// terminology operations.
	Terminology terminology.Provider

	// EvaluationTimestamp is the time at which the eval request executes,
	// used by operators like Today() and Now(). Defaults to time.Now() at
	// the start of the request.
	EvaluationTimestamp time.Time

	// ReturnPrivateDefs also returns private definitions in the results.
	// By default only public definitions are returned.
	ReturnPrivateDefs bool

	// MaxRecursionDepth bounds expression and function call nesting.
	// Defaults to interpreter.DefaultMaxRecursionDepth.
	MaxRecursionDepth int

	// StrictProperties errors on access to absent properties instead of
	// returning null.
	StrictProperties bool
}

// Eval executes the analyzed CQL against the retriever. The retriever is
// the interface through which the interpreter fetches external data; when
// evaluating against a list of patients, call Eval once per patient with a
// retriever scoped to that patient. The retriever can be nil if the CQL
// does not fetch external data. Eval should not be called from multiple
// goroutines on a single *ELM's evaluation context; the ELM itself is
// immutable and can back many evaluations.
// Errors returned by Eval will always be a result.EngineError.
func (e *ELM) Eval(ctx context.Context, r retriever.Retriever, config EvalConfig) (result.Libraries, error) {
	c := interpreter.Config{
		Registry:            e.registry,
		Parameters:          e.parsedParams,
		Retriever:           r,
		Terminology:         config.Terminology,
		EvaluationTimestamp: config.EvaluationTimestamp,
		ReturnPrivateDefs:   config.ReturnPrivateDefs,
		MaxRecursionDepth:   config.MaxRecursionDepth,
		StrictProperties:    config.StrictProperties,
	}
	return interpreter.Eval(ctx, e.parsedLibs, c)
}

// EvalExpression evaluates a single named expression definition and returns
// its value. All definitions still evaluate (the engine caches each
// definition once per evaluation); the named one is selected from the
// results.
func (e *ELM) EvalExpression(ctx context.Context, name string, r retriever.Retriever, config EvalConfig) (result.Value, error) {
	config.ReturnPrivateDefs = true
	libs, err := e.Eval(ctx, r, config)
	if err != nil {
		return result.Value{}, err
	}
	for _, defs := range libs.Results {
		if v, ok := defs[name]; ok {
			return v, nil
		}
	}
	return result.Value{}, result.NewEngineError(name, result.ErrEvaluationError, fmt.Errorf("expression definition %q was not found", name))
}

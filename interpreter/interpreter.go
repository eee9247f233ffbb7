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

// Package interpreter evaluates the ELM produced by the analyzer: a
// tree-walk with three-valued logic, precision-aware temporal arithmetic
// and pluggable terminology and data providers.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/reference"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/retriever"
	"github.com/octofhir/cql-go/terminology"
	"github.com/octofhir/cql-go/types"
)

// DefaultMaxRecursionDepth bounds expression and function call nesting when
// the config does not set a limit.
const DefaultMaxRecursionDepth = 1000

// Config configures the evaluation of the CQL.
type Config struct {
	Registry            *modelinfo.Registry
	Parameters          map[result.DefKey]model.IExpression
	Retriever           retriever.Retriever
	Terminology         terminology.Provider
	EvaluationTimestamp time.Time
	ReturnPrivateDefs   bool
	MaxRecursionDepth   int
	// StrictProperties errors on access to absent tuple properties instead
	// of returning null.
	StrictProperties bool
}

// Eval evaluates the lowered libraries. The context is checked at
// expression boundaries, so cancellation surfaces as a Timeout evaluation
// error.
func Eval(ctx context.Context, libs []*model.Library, config Config) (result.Libraries, error) {
	i := newInterpreter(ctx, config)
	for _, lib := range libs {
		if err := i.evalLibrary(lib, config.Parameters); err != nil {
			return result.Libraries{}, result.NewEngineError(result.LibKeyFromModel(lib.Identifier).String(), result.ErrEvaluationError, err)
		}
	}

	var defs map[result.LibKey]map[string]result.Value
	var err error
	if config.ReturnPrivateDefs {
		defs, err = i.refs.PublicAndPrivateDefs()
	} else {
		defs, err = i.refs.PublicDefs()
	}
	if err != nil {
		return result.Libraries{}, result.NewEngineError("", result.ErrEvaluationError, err)
	}
	return result.Libraries{Results: defs, Messages: i.messages}, nil
}

func newInterpreter(ctx context.Context, config Config) *interpreter {
	maxDepth := config.MaxRecursionDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRecursionDepth
	}
	timestamp := config.EvaluationTimestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return &interpreter{
		ctx:                 ctx,
		refs:                reference.NewResolver[result.Value, *model.FunctionDef](),
		retriever:           config.Retriever,
		terminologyProvider: config.Terminology,
		registry:            config.Registry,
		evaluationTimestamp: timestamp,
		maxRecursionDepth:   maxDepth,
		strictProperties:    config.StrictProperties,
	}
}

// interpreter executes the lowered libraries.
type interpreter struct {
	ctx                 context.Context
	refs                *reference.Resolver[result.Value, *model.FunctionDef]
	retriever           retriever.Retriever
	terminologyProvider terminology.Provider
	registry            *modelinfo.Registry
	evaluationTimestamp time.Time
	maxRecursionDepth   int
	strictProperties    bool

	recursionDepth int
	messages       []result.Message
}

// evalError is an evaluation failure attributed to the expression whose
// evaluation raised it.
type evalError struct {
	Code diag.Code
	Span diag.Span
	Err  error
}

func (e *evalError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Code, e.Span, e.Err)
}

func (e *evalError) Unwrap() error { return e.Err }

func evalErrorf(code diag.Code, expr model.IExpression, format string, args ...any) error {
	var span diag.Span
	if expr != nil {
		span = expr.GetSpan()
	}
	return &evalError{Code: code, Span: span, Err: fmt.Errorf(format, args...)}
}

// evalLibrary evaluates all definitions a library contains, in order. Each
// top-level expression definition is evaluated exactly once and its value
// memoized in the resolver, which is the expression cache for the
// evaluation.
func (i *interpreter) evalLibrary(lib *model.Library, passedParams map[result.DefKey]model.IExpression) error {
	i.registry.ResetUsing()
	for _, using := range lib.Usings {
		if err := i.registry.SetUsing(using.LocalIdentifier, using.Version); err != nil {
			return err
		}
	}
	if passedParams == nil {
		passedParams = map[result.DefKey]model.IExpression{}
	}

	if lib.Identifier != nil {
		if err := i.refs.SetCurrentLibrary(lib.Identifier); err != nil {
			return err
		}
	} else {
		i.refs.SetCurrentUnnamed()
	}

	if err := i.evalParameters(lib.Parameters, lib.Identifier, passedParams); err != nil {
		return err
	}

	// CodeSystems must be evaluated before ValueSets and Codes.
	for _, cs := range lib.CodeSystems {
		csObj, err := result.New(result.CodeSystem{ID: cs.ID, Version: cs.Version})
		if err != nil {
			return err
		}
		if err := i.define(cs.Name, csObj, cs.AccessLevel); err != nil {
			return err
		}
	}
	for _, vs := range lib.Valuesets {
		var codeSystems []result.CodeSystem
		for _, cs := range vs.CodeSystems {
			csr, err := i.evalExpression(cs)
			if err != nil {
				return err
			}
			csVal, err := result.ToCodeSystem(csr)
			if err != nil {
				return err
			}
			codeSystems = append(codeSystems, csVal)
		}
		vObj, err := result.New(result.ValueSet{ID: vs.ID, Version: vs.Version, CodeSystems: codeSystems})
		if err != nil {
			return err
		}
		if err := i.define(vs.Name, vObj, vs.AccessLevel); err != nil {
			return err
		}
	}
	for _, c := range lib.Codes {
		if c.CodeSystem == nil {
			return fmt.Errorf("the CodeSystem for code %q cannot be null", c.Name)
		}
		cs, err := i.evalExpression(c.CodeSystem)
		if err != nil {
			return err
		}
		csVal, err := result.ToCodeSystem(cs)
		if err != nil {
			return err
		}
		cObj, err := result.New(result.Code{
			Code:    c.Code,
			System:  csVal.ID,
			Version: csVal.Version,
			Display: c.Display,
		})
		if err != nil {
			return err
		}
		if err := i.define(c.Name, cObj, c.AccessLevel); err != nil {
			return err
		}
	}
	for _, c := range lib.Concepts {
		var codes []*result.Code
		for _, codeRef := range c.Codes {
			cr, err := i.evalExpression(codeRef)
			if err != nil {
				return err
			}
			codeVal, err := result.ToCode(cr)
			if err != nil {
				return err
			}
			codes = append(codes, &codeVal)
		}
		cObj, err := result.New(result.Concept{Codes: codes, Display: c.Display})
		if err != nil {
			return err
		}
		if err := i.define(c.Name, cObj, c.AccessLevel); err != nil {
			return err
		}
	}

	for _, inc := range lib.Includes {
		if err := i.refs.IncludeLibrary(inc.Identifier, false); err != nil {
			return err
		}
	}

	if lib.Statements == nil {
		return nil
	}
	for _, s := range lib.Statements.Defs {
		switch t := s.(type) {
		case *model.FunctionDef:
			if err := i.defineFunction(t); err != nil {
				return err
			}
		case *model.ExpressionDef:
			res, err := i.evalExpression(t.Expression)
			if err != nil {
				return err
			}
			if err := i.define(t.Name, res, t.AccessLevel); err != nil {
				return err
			}
		default:
			return errors.New("internal error - unsupported statement type")
		}
	}
	return nil
}

func (i *interpreter) define(name string, v result.Value, access model.AccessLevel) error {
	return i.refs.Define(&reference.Def[result.Value]{
		Name:             name,
		Result:           v,
		IsPublic:         access == model.Public,
		ValidateIsUnique: false,
	})
}

func (i *interpreter) defineFunction(fd *model.FunctionDef) error {
	opTypes := make([]types.IType, 0, len(fd.Operands))
	for _, op := range fd.Operands {
		opTypes = append(opTypes, op.GetResultType())
	}
	return i.refs.DefineFunc(&reference.Func[*model.FunctionDef]{
		Name:             fd.Name,
		Operands:         opTypes,
		Result:           fd,
		IsPublic:         fd.AccessLevel == model.Public,
		IsFluent:         fd.Fluent,
		ValidateIsUnique: false,
	})
}

func (i *interpreter) evalParameters(paramDefs []*model.ParameterDef, id *model.LibraryIdentifier, passedParams map[result.DefKey]model.IExpression) error {
	if id == nil && len(paramDefs) > 0 {
		return fmt.Errorf("unnamed libraries cannot have parameters, got %v", paramDefs[0].Name)
	} else if id == nil {
		return nil
	}

	lKey := result.LibKeyFromModel(id)
	for _, param := range paramDefs {
		var err error
		var pObj result.Value
		pModel, ok := passedParams[result.DefKey{Name: param.Name, Library: lKey}]
		switch {
		case ok:
			pObj, err = i.evalExpression(pModel)
		case param.Default != nil:
			pObj, err = i.evalExpression(param.Default)
		default:
			pObj, err = result.New(nil)
		}
		if err != nil {
			return err
		}
		if err := i.define(param.Name, pObj, param.AccessLevel); err != nil {
			return err
		}
	}
	return nil
}

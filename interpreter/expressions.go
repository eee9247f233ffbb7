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

package interpreter

import (
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/convert"
	"github.com/octofhir/cql-go/internal/reference"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
)

// evalExpression dispatches on the ELM node kind. Cancellation is checked
// here so long evaluations stop at expression boundaries.
func (i *interpreter) evalExpression(elm model.IExpression) (result.Value, error) {
	if err := i.ctx.Err(); err != nil {
		return result.Value{}, evalErrorf(diag.Timeout, elm, "evaluation cancelled: %v", err)
	}
	i.recursionDepth++
	defer func() { i.recursionDepth-- }()
	if i.recursionDepth > i.maxRecursionDepth {
		return result.Value{}, evalErrorf(diag.RecursionLimit, elm, "exceeded the maximum recursion depth of %d", i.maxRecursionDepth)
	}

	switch t := elm.(type) {
	// Values and selectors.
	case *model.Literal:
		return i.evalLiteral(t)
	case *model.Quantity:
		return i.evalQuantity(t)
	case *model.Ratio:
		return i.evalRatio(t)
	case *model.Code:
		return i.evalCodeSelector(t)
	case *model.Interval:
		return i.evalIntervalSelector(t)
	case *model.List:
		return i.evalListSelector(t)
	case *model.Tuple:
		return i.evalTupleSelector(t)
	case *model.Instance:
		return i.evalInstance(t)
	case *model.MinValue:
		return i.evalMinValue(t)
	case *model.MaxValue:
		return i.evalMaxValue(t)

	// References.
	case *model.ExpressionRef:
		return i.evalRef(t, t.Name, t.LibraryName)
	case *model.ParameterRef:
		return i.evalRef(t, t.Name, t.LibraryName)
	case *model.ValuesetRef:
		return i.evalRef(t, t.Name, t.LibraryName)
	case *model.CodeSystemRef:
		return i.evalRef(t, t.Name, t.LibraryName)
	case *model.CodeRef:
		return i.evalRef(t, t.Name, t.LibraryName)
	case *model.ConceptRef:
		return i.evalRef(t, t.Name, t.LibraryName)
	case *model.AliasRef:
		return i.evalRef(t, t.Name, "")
	case *model.QueryLetRef:
		return i.evalRef(t, t.Name, "")
	case *model.OperandRef:
		return i.evalRef(t, t.Name, "")
	case *model.IdentifierRef:
		return i.evalRef(t, t.Name, "")
	case *model.FunctionRef:
		return i.evalFunctionRef(t)

	// Conditionals.
	case *model.IfThenElse:
		return i.evalIfThenElse(t)
	case *model.Case:
		return i.evalCase(t)

	// Structured operators.
	case *model.Query:
		return i.evalQuery(t)
	case *model.Retrieve:
		return i.evalRetrieve(t)
	case *model.Property:
		return i.evalProperty(t)
	case *model.Message:
		return i.evalMessage(t)
	case *model.As:
		return i.evalAs(t)
	case *model.Is:
		return i.evalIs(t)
	}

	if u, ok := elm.(model.IUnaryExpression); ok {
		return i.evalUnary(u)
	}
	if b, ok := elm.(model.IBinaryExpression); ok {
		return i.evalBinary(b)
	}
	if n, ok := elm.(model.INaryExpression); ok {
		return i.evalNary(n)
	}
	return result.Value{}, evalErrorf(diag.TypeMismatch, elm, "internal error - unsupported expression %T", elm)
}

// evalRef resolves a reference: locally scoped aliases first, then the
// current library, then an included library's public definitions.
func (i *interpreter) evalRef(elm model.IExpression, name, libraryName string) (result.Value, error) {
	if libraryName != "" {
		v, err := i.refs.ResolveGlobal(libraryName, name)
		if err != nil {
			return result.Value{}, evalErrorf(diag.UndefinedIdentifier, elm, "%v", err)
		}
		return v, nil
	}
	v, err := i.refs.ResolveLocal(name)
	if err != nil {
		return result.Value{}, evalErrorf(diag.UndefinedIdentifier, elm, "%v", err)
	}
	return v, nil
}

// evalFunctionRef dispatches a user defined function call: the operands are
// evaluated, an exact overload is selected on static operand types, and the body
// runs in a fresh function scope.
func (i *interpreter) evalFunctionRef(f *model.FunctionRef) (result.Value, error) {
	ops := make([]result.Value, 0, len(f.Operands))
	for _, op := range f.Operands {
		v, err := i.evalExpression(op)
		if err != nil {
			return result.Value{}, err
		}
		ops = append(ops, v)
	}

	overloads, err := i.refs.FuncOverloads(f.LibraryName, f.Name, false)
	if err != nil {
		return result.Value{}, evalErrorf(diag.UndefinedFunction, f, "%v", err)
	}
	// Static operand types select the overload; the analyzer already
	// materialized all conversions.
	staticTypes := convert.OperandsToTypes(f.Operands)
	fd, err := convert.ExactOverloadMatch(staticTypes, overloads, i.registry, f.Name)
	if err != nil {
		return result.Value{}, evalErrorf(diag.UndefinedFunction, f, "%v", err)
	}
	if fd.External {
		return result.Value{}, evalErrorf(diag.UndefinedFunction, f, "external function %v has no registered implementation", f.Name)
	}

	i.refs.EnterScope(reference.ScopeFunction)
	defer i.refs.ExitScope()
	for idx, od := range fd.Operands {
		if err := i.refs.DefineAlias(od.Name, ops[idx]); err != nil {
			return result.Value{}, evalErrorf(diag.DuplicateDefinition, f, "%v", err)
		}
	}
	return i.evalExpression(fd.Expression)
}

func (i *interpreter) evalIfThenElse(e *model.IfThenElse) (result.Value, error) {
	cond, err := i.evalExpression(e.Condition)
	if err != nil {
		return result.Value{}, err
	}
	// A null or false condition selects the else branch.
	if b, ok := cond.GolangValue().(bool); ok && b {
		return i.evalExpression(e.Then)
	}
	return i.evalExpression(e.Else)
}

func (i *interpreter) evalCase(e *model.Case) (result.Value, error) {
	var comparand result.Value
	haveComparand := e.Comparand != nil
	if haveComparand {
		var err error
		comparand, err = i.evalExpression(e.Comparand)
		if err != nil {
			return result.Value{}, err
		}
	}
	for _, item := range e.CaseItem {
		when, err := i.evalExpression(item.When)
		if err != nil {
			return result.Value{}, err
		}
		if haveComparand {
			eq, err := i.valuesEqual(comparand, when)
			if err != nil {
				return result.Value{}, err
			}
			if b, ok := eq.GolangValue().(bool); ok && b {
				return i.evalExpression(item.Then)
			}
		} else if b, ok := when.GolangValue().(bool); ok && b {
			return i.evalExpression(item.Then)
		}
	}
	return i.evalExpression(e.Else)
}

// evalMessage evaluates the Message operator: when the condition holds the
// message is collected on the context (or fails evaluation for Error
// severity) and the source value is returned either way.
func (i *interpreter) evalMessage(m *model.Message) (result.Value, error) {
	source, err := i.evalExpression(m.Source)
	if err != nil {
		return result.Value{}, err
	}
	condition := true
	if m.Condition != nil {
		condVal, err := i.evalExpression(m.Condition)
		if err != nil {
			return result.Value{}, err
		}
		b, ok := condVal.GolangValue().(bool)
		condition = ok && b
	}
	if !condition {
		return source.WithSources(m, source), nil
	}

	evalString := func(e model.IExpression) (string, error) {
		if e == nil {
			return "", nil
		}
		v, err := i.evalExpression(e)
		if err != nil {
			return "", err
		}
		if v.IsNull() {
			return "", nil
		}
		return result.ToString(v)
	}
	code, err := evalString(m.Code)
	if err != nil {
		return result.Value{}, err
	}
	severity, err := evalString(m.Severity)
	if err != nil {
		return result.Value{}, err
	}
	text, err := evalString(m.Message)
	if err != nil {
		return result.Value{}, err
	}
	sev := model.MessageSeverity(severity)
	if sev == model.UNSETMESSAGESEVERITY {
		sev = model.MESSAGE
	}
	if sev == model.ERROR {
		return result.Value{}, evalErrorf(diag.MessageError, m, "%s: %s", code, text)
	}
	i.messages = append(i.messages, result.Message{
		Severity: sev,
		Code:     code,
		Message:  text,
		Source:   source,
	})
	return source.WithSources(m, source), nil
}

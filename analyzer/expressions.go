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

package analyzer

import (
	"errors"
	"strconv"
	"time"

	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/convert"
	"github.com/octofhir/cql-go/internal/datehelpers"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/types"
	"github.com/octofhir/cql-go/ucum"
)

func (a *Analyzer) nullLiteral(span diag.Span) model.IExpression {
	return &model.Literal{
		Expression: model.TypeAndSpan(types.Any, span),
		Value:      "null",
	}
}

// lowerExpr lowers a surface expression to its canonical ELM form,
// annotating every node with its inferred type and materializing implicit
// conversions.
func (a *Analyzer) lowerExpr(e ast.IExpression) model.IExpression {
	if e == nil {
		return a.nullLiteral(diag.Span{})
	}
	span := e.SourceSpan()

	switch t := e.(type) {
	case *ast.Error:
		// The parser already reported the syntax error; analysis continues
		// with a null placeholder.
		return a.nullLiteral(span)
	case *ast.NullLiteral:
		return a.nullLiteral(span)
	case *ast.BooleanLiteral:
		v := "false"
		if t.Value {
			v = "true"
		}
		return &model.Literal{Expression: model.TypeAndSpan(types.Boolean, span), Value: v}
	case *ast.IntegerLiteral:
		return &model.Literal{Expression: model.TypeAndSpan(types.Integer, span), Value: strconv.FormatInt(int64(t.Value), 10)}
	case *ast.LongLiteral:
		return &model.Literal{Expression: model.TypeAndSpan(types.Long, span), Value: strconv.FormatInt(t.Value, 10) + "L"}
	case *ast.DecimalLiteral:
		return &model.Literal{Expression: model.TypeAndSpan(types.Decimal, span), Value: t.Text}
	case *ast.StringLiteral:
		return &model.Literal{Expression: model.TypeAndSpan(types.String, span), Value: t.Value}
	case *ast.DateLiteral:
		if _, _, err := datehelpers.ParseDate(t.Text, time.UTC); err != nil {
			a.errorf(t, diag.InvalidDateTime, "%v", err)
		}
		return &model.Literal{Expression: model.TypeAndSpan(types.Date, span), Value: "@" + t.Text}
	case *ast.DateTimeLiteral:
		if _, _, err := datehelpers.ParseDateTime(t.Text, time.UTC); err != nil {
			a.errorf(t, diag.InvalidDateTime, "%v", err)
		}
		return &model.Literal{Expression: model.TypeAndSpan(types.DateTime, span), Value: "@" + t.Text}
	case *ast.TimeLiteral:
		if _, _, err := datehelpers.ParseTime(t.Text); err != nil {
			a.errorf(t, diag.InvalidDateTime, "%v", err)
		}
		return &model.Literal{Expression: model.TypeAndSpan(types.Time, span), Value: "@T" + t.Text}
	case *ast.QuantityLiteral:
		return a.lowerQuantity(t)
	case *ast.RatioLiteral:
		num := a.lowerQuantity(t.Numerator)
		den := a.lowerQuantity(t.Denominator)
		numQ, ok1 := num.(*model.Quantity)
		denQ, ok2 := den.(*model.Quantity)
		if !ok1 || !ok2 {
			return a.badExpression(t, diag.InvalidQuantity, "ratio operands must be quantities")
		}
		return &model.Ratio{
			Expression:  model.TypeAndSpan(types.Ratio, span),
			Numerator:   *numQ,
			Denominator: *denQ,
		}
	case *ast.Ref:
		return a.lowerRef(t)
	case *ast.Property:
		return a.lowerProperty(t)
	case *ast.ThisRef:
		return a.lowerIterationVar(t, "$this")
	case *ast.IndexRef:
		return a.lowerIterationVar(t, "$index")
	case *ast.TotalRef:
		return a.lowerIterationVar(t, "$total")
	case *ast.BinaryExpression:
		return a.lowerBinary(t)
	case *ast.UnaryExpression:
		return a.lowerUnary(t)
	case *ast.Between:
		// a between low and high lowers to
		// And(GreaterOrEqual(a, low), LessOrEqual(a, high)). The operand is
		// lowered per use so every node has a single owner.
		ge := a.resolveBuiltin(t, "GreaterOrEqual", []model.IExpression{a.lowerExpr(t.Operand), a.lowerExpr(t.Low)}, span)
		le := a.resolveBuiltin(t, "LessOrEqual", []model.IExpression{a.lowerExpr(t.Operand), a.lowerExpr(t.High)}, span)
		return a.resolveBuiltin(t, "And", []model.IExpression{ge, le}, span)
	case *ast.DurationBetween:
		return a.lowerDurationBetween(t, span, false)
	case *ast.DifferenceBetween:
		dur := &ast.DurationBetween{Expression: &ast.Expression{Span: span}, Precision: t.Precision, Low: t.Low, High: t.High}
		return a.lowerDurationBetween(dur, span, true)
	case *ast.ComponentFrom:
		return a.lowerComponentFrom(t, span)
	case *ast.If:
		return a.lowerIf(t, span)
	case *ast.Case:
		return a.lowerCase(t, span)
	case *ast.ListSelector:
		return a.lowerList(t, span)
	case *ast.TupleSelector:
		return a.lowerTuple(t, span)
	case *ast.InstanceSelector:
		return a.lowerInstance(t, span)
	case *ast.IntervalSelector:
		return a.lowerInterval(t, span)
	case *ast.Indexer:
		return a.resolveBuiltin(t, "Indexer", []model.IExpression{a.lowerExpr(t.Source), a.lowerExpr(t.Index)}, span)
	case *ast.As:
		operand := a.lowerExpr(t.Operand)
		asType := a.resolveTypeSpecifier(t.Type)
		return &model.As{
			UnaryExpression: &model.UnaryExpression{
				Expression: model.TypeAndSpan(asType, span),
				Operand:    operand,
			},
			AsTypeSpecifier: asType,
			Strict:          t.Strict,
		}
	case *ast.Is:
		operand := a.lowerExpr(t.Operand)
		isType := a.resolveTypeSpecifier(t.Type)
		return &model.Is{
			UnaryExpression: &model.UnaryExpression{
				Expression: model.TypeAndSpan(types.Boolean, span),
				Operand:    operand,
			},
			IsTypeSpecifier: isType,
		}
	case *ast.Convert:
		return a.lowerConvert(t, span)
	case *ast.MinValue:
		return &model.MinValue{
			Expression: model.TypeAndSpan(a.resolveTypeSpecifier(t.Type), span),
			ValueType:  a.resolveTypeSpecifier(t.Type),
		}
	case *ast.MaxValue:
		return &model.MaxValue{
			Expression: model.TypeAndSpan(a.resolveTypeSpecifier(t.Type), span),
			ValueType:  a.resolveTypeSpecifier(t.Type),
		}
	case *ast.Message:
		return a.lowerMessage(t, span)
	case *ast.Retrieve:
		return a.lowerRetrieve(t, span)
	case *ast.Query:
		return a.lowerQuery(t, span)
	case *ast.FunctionCall:
		return a.lowerFunctionCall(t, span)
	}
	return a.badExpression(e, diag.TypeMismatch, "internal error - unsupported expression %T", e)
}

func (a *Analyzer) lowerQuantity(q *ast.QuantityLiteral) model.IExpression {
	if ok, reason := ucum.CheckUnit(q.Unit, true, true); !ok {
		a.errorf(q, diag.InvalidQuantity, "%s", reason)
	}
	unit := q.Unit
	if unit == "" {
		unit = ucum.OneUnit
	}
	return &model.Quantity{
		Expression: model.TypeAndSpan(types.Quantity, q.Span),
		Value:      q.Value,
		Unit:       unit,
	}
}

// lowerIterationVar resolves $this, $index and $total from the innermost
// iteration or aggregate scope.
func (a *Analyzer) lowerIterationVar(node ast.Node, name string) model.IExpression {
	thunk, err := a.refs.ResolveLocal(name)
	if err != nil {
		return a.badExpression(node, diag.UndefinedIdentifier, "%s is not defined in this scope", name)
	}
	return a.reSpan(thunk(), spanOf(node))
}

// reSpan stamps a span onto a freshly created reference node.
func (a *Analyzer) reSpan(e model.IExpression, span diag.Span) model.IExpression {
	switch t := e.(type) {
	case *model.ExpressionRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.ParameterRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.ValuesetRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.CodeSystemRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.CodeRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.ConceptRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.AliasRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.QueryLetRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.OperandRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	case *model.FunctionRef:
		t.Expression = model.TypeAndSpan(t.GetResultType(), span)
	}
	return e
}

// setLibraryName marks a reference as crossing into an included library.
func setLibraryName(e model.IExpression, lib string) bool {
	switch t := e.(type) {
	case *model.ExpressionRef:
		t.LibraryName = lib
	case *model.ParameterRef:
		t.LibraryName = lib
	case *model.ValuesetRef:
		t.LibraryName = lib
	case *model.CodeSystemRef:
		t.LibraryName = lib
	case *model.CodeRef:
		t.LibraryName = lib
	case *model.ConceptRef:
		t.LibraryName = lib
	case *model.FunctionRef:
		t.LibraryName = lib
	default:
		return false
	}
	return true
}

// lowerRef resolves a possibly-qualified reference. Resolution order: local
// scopes, the current library's definitions, then included libraries by
// alias. Remaining qualifier segments become property accesses.
func (a *Analyzer) lowerRef(r *ast.Ref) model.IExpression {
	span := r.SourceSpan()
	segments := append(append([]ast.Identifier{}, r.Ident.Qualifiers...), r.Ident.Name)

	first := segments[0]
	if thunk, err := a.refs.ResolveLocal(first.Name); err == nil {
		expr := a.reSpan(thunk(), span)
		return a.lowerPropertyPath(r, expr, segments[1:])
	}

	if len(segments) >= 2 {
		if lib := a.refs.ResolveInclude(first.Name); lib != nil {
			thunk, err := a.refs.ResolveGlobal(first.Name, segments[1].Name)
			if err != nil {
				return a.badExpression(r, diag.UndefinedIdentifier, "%v", err)
			}
			expr := a.reSpan(thunk(), span)
			setLibraryName(expr, first.Name)
			return a.lowerPropertyPath(r, expr, segments[2:])
		}
	}
	return a.badExpression(r, diag.UndefinedIdentifier, "could not resolve %s", qualifiedName(r.Ident))
}

// lowerPropertyPath chains property accesses off a resolved base.
func (a *Analyzer) lowerPropertyPath(node ast.Node, base model.IExpression, path []ast.Identifier) model.IExpression {
	expr := base
	for _, segment := range path {
		pt, err := a.registry.PropertyType(expr.GetResultType(), segment.Name)
		if err != nil {
			return a.badExpression(node, diag.InvalidPropertyAccess, "%v", err)
		}
		expr = &model.Property{
			Expression: model.TypeAndSpan(pt, segment.Span),
			Source:     expr,
			Path:       segment.Name,
		}
	}
	return expr
}

func (a *Analyzer) lowerProperty(p *ast.Property) model.IExpression {
	source := a.lowerExpr(p.Source)
	return a.lowerPropertyPath(p, source, []ast.Identifier{p.Name})
}

// binaryOpNames maps surface binary operators to the system operator tables.
var binaryOpNames = map[ast.BinaryOp]string{
	ast.OpImplies:            "Implies",
	ast.OpOr:                 "Or",
	ast.OpXor:                "Xor",
	ast.OpAnd:                "And",
	ast.OpIn:                 "In",
	ast.OpContains:           "Contains",
	ast.OpEqual:              "Equal",
	ast.OpEquivalent:         "Equivalent",
	ast.OpLess:               "Less",
	ast.OpLessOrEqual:        "LessOrEqual",
	ast.OpGreater:            "Greater",
	ast.OpGreaterOrEqual:     "GreaterOrEqual",
	ast.OpUnion:              "Union",
	ast.OpIntersect:          "Intersect",
	ast.OpExcept:             "Except",
	ast.OpAdd:                "Add",
	ast.OpSubtract:           "Subtract",
	ast.OpConcat:             "Concatenate",
	ast.OpMultiply:           "Multiply",
	ast.OpDivide:             "Divide",
	ast.OpTruncatedDivide:    "TruncatedDivide",
	ast.OpModulo:             "Modulo",
	ast.OpPower:              "Power",
	ast.OpDuring:             "IncludedIn",
	ast.OpIncludedIn:         "IncludedIn",
	ast.OpIncludes:           "Includes",
	ast.OpProperlyIncludedIn: "ProperlyIncludedIn",
	ast.OpProperlyIncludes:   "ProperlyIncludes",
	ast.OpOverlaps:           "Overlaps",
	ast.OpMeets:              "Meets",
	ast.OpStarts:             "Starts",
	ast.OpEnds:               "Ends",
	ast.OpBefore:             "Before",
	ast.OpAfter:              "After",
	ast.OpSameAs:             "SameAs",
	ast.OpSameOrBefore:       "SameOrBefore",
	ast.OpSameOrAfter:        "SameOrAfter",
}

func modelPrecision(p ast.DateTimePrecision) model.DateTimePrecision {
	switch p {
	case ast.PrecisionYear:
		return model.YEAR
	case ast.PrecisionMonth:
		return model.MONTH
	case ast.PrecisionWeek:
		return model.WEEK
	case ast.PrecisionDay:
		return model.DAY
	case ast.PrecisionHour:
		return model.HOUR
	case ast.PrecisionMinute:
		return model.MINUTE
	case ast.PrecisionSecond:
		return model.SECOND
	case ast.PrecisionMillisecond:
		return model.MILLISECOND
	}
	return model.UNSETDATETIMEPRECISION
}

// setPrecision stamps a temporal precision onto an operator that carries
// one.
func setPrecision(e model.IExpression, p model.DateTimePrecision) {
	if p == model.UNSETDATETIMEPRECISION {
		return
	}
	switch t := e.(type) {
	case *model.Before:
		t.Precision = p
	case *model.After:
		t.Precision = p
	case *model.SameAs:
		t.Precision = p
	case *model.SameOrBefore:
		t.Precision = p
	case *model.SameOrAfter:
		t.Precision = p
	case *model.In:
		t.Precision = p
	case *model.IncludedIn:
		t.Precision = p
	case *model.ProperlyIncludedIn:
		t.Precision = p
	case *model.Contains:
		t.Precision = p
	case *model.Overlaps:
		t.Precision = p
	case *model.Meets:
		t.Precision = p
	case *model.Starts:
		t.Precision = p
	case *model.Ends:
		t.Precision = p
	}
}

func (a *Analyzer) lowerBinary(b *ast.BinaryExpression) model.IExpression {
	span := b.SourceSpan()
	left := a.lowerExpr(b.Left)
	right := a.lowerExpr(b.Right)

	// != and !~ lower to the negated canonical operators.
	switch b.Op {
	case ast.OpNotEqual:
		eq := a.resolveBuiltin(b, "Equal", []model.IExpression{left, right}, span)
		return &model.Not{UnaryExpression: &model.UnaryExpression{
			Expression: model.TypeAndSpan(types.Boolean, span),
			Operand:    eq,
		}}
	case ast.OpNotEquivalent:
		eqv := a.resolveBuiltin(b, "Equivalent", []model.IExpression{left, right}, span)
		return &model.Not{UnaryExpression: &model.UnaryExpression{
			Expression: model.TypeAndSpan(types.Boolean, span),
			Operand:    eqv,
		}}
	}

	name, ok := binaryOpNames[b.Op]
	if !ok {
		return a.badExpression(b, diag.TypeMismatch, "internal error - unsupported binary operator")
	}
	expr := a.resolveBuiltin(b, name, []model.IExpression{left, right}, span)
	setPrecision(expr, modelPrecision(b.Precision))
	return expr
}

var unaryOpNames = map[ast.UnaryOp]string{
	ast.UnaryNot:         "Not",
	ast.UnaryNegate:      "Negate",
	ast.UnaryExists:      "Exists",
	ast.UnaryDistinct:    "Distinct",
	ast.UnaryFlatten:     "Flatten",
	ast.UnaryCollapse:    "Collapse",
	ast.UnarySingleton:   "SingletonFrom",
	ast.UnaryStart:       "Start",
	ast.UnaryEnd:         "End",
	ast.UnaryWidth:       "Width",
	ast.UnaryPredecessor: "Predecessor",
	ast.UnarySuccessor:   "Successor",
	ast.UnaryPointFrom:   "PointFrom",
}

func (a *Analyzer) lowerUnary(u *ast.UnaryExpression) model.IExpression {
	if u.Op == ast.UnaryPlus {
		return a.lowerExpr(u.Operand)
	}
	name, ok := unaryOpNames[u.Op]
	if !ok {
		return a.badExpression(u, diag.TypeMismatch, "internal error - unsupported unary operator")
	}
	operand := a.lowerExpr(u.Operand)
	return a.resolveBuiltin(u, name, []model.IExpression{operand}, u.SourceSpan())
}

func (a *Analyzer) lowerDurationBetween(d *ast.DurationBetween, span diag.Span, difference bool) model.IExpression {
	low := a.lowerExpr(d.Low)
	high := a.lowerExpr(d.High)
	// Mixed Date/DateTime operands widen to DateTime.
	common := types.CommonSupertype(a.registry, low.GetResultType(), high.GetResultType())
	low = a.convertTo(d.Low, low, common)
	high = a.convertTo(d.High, high, common)

	bp := &model.BinaryExpressionWithPrecision{
		BinaryExpression: &model.BinaryExpression{
			Expression: model.TypeAndSpan(types.Integer, span),
			Operands:   []model.IExpression{low, high},
		},
		Precision: modelPrecision(d.Precision),
	}
	if difference {
		return (*model.DifferenceBetween)(bp)
	}
	return (*model.DurationBetween)(bp)
}

func (a *Analyzer) lowerComponentFrom(c *ast.ComponentFrom, span diag.Span) model.IExpression {
	operand := a.lowerExpr(c.Operand)
	u := func(rt types.IType) *model.UnaryExpression {
		return &model.UnaryExpression{
			Expression: model.TypeAndSpan(rt, span),
			Operand:    operand,
		}
	}
	switch c.Component {
	case "date":
		return &model.DateFrom{UnaryExpression: u(types.Date)}
	case "time":
		return &model.TimeFrom{UnaryExpression: u(types.Time)}
	case "timezoneoffset":
		return &model.TimezoneOffsetFrom{UnaryExpression: u(types.Decimal)}
	}
	prec := model.UNSETDATETIMEPRECISION
	switch c.Component {
	case "year":
		prec = model.YEAR
	case "month":
		prec = model.MONTH
	case "week":
		prec = model.WEEK
	case "day":
		prec = model.DAY
	case "hour":
		prec = model.HOUR
	case "minute":
		prec = model.MINUTE
	case "second":
		prec = model.SECOND
	case "millisecond":
		prec = model.MILLISECOND
	default:
		return a.badExpression(c, diag.TypeMismatch, "unknown component %q", c.Component)
	}
	return &model.DateTimeComponentFrom{UnaryExpression: u(types.Integer), Precision: prec}
}

func (a *Analyzer) lowerIf(i *ast.If, span diag.Span) model.IExpression {
	cond := a.lowerExpr(i.Condition)
	cond = a.convertTo(i.Condition, cond, types.Boolean)
	then := a.lowerExpr(i.Then)
	els := a.lowerExpr(i.Else)
	common := types.CommonSupertype(a.registry, then.GetResultType(), els.GetResultType())
	then = a.convertTo(i.Then, then, common)
	els = a.convertTo(i.Else, els, common)
	return &model.IfThenElse{
		Expression: model.TypeAndSpan(common, span),
		Condition:  cond,
		Then:       then,
		Else:       els,
	}
}

func (a *Analyzer) lowerCase(c *ast.Case, span diag.Span) model.IExpression {
	out := &model.Case{Expression: &model.Expression{Element: &model.Element{Span: span}}}

	var comparandType types.IType
	if c.Comparand != nil {
		out.Comparand = a.lowerExpr(c.Comparand)
		comparandType = out.Comparand.GetResultType()
	}

	// Determine the common result type over all thens and the else.
	var resultTypes []types.IType
	thens := make([]model.IExpression, 0, len(c.Items))
	whens := make([]model.IExpression, 0, len(c.Items))
	for _, item := range c.Items {
		when := a.lowerExpr(item.When)
		if comparandType != nil {
			when = a.convertTo(item.When, when, comparandType)
		} else {
			when = a.convertTo(item.When, when, types.Boolean)
		}
		whens = append(whens, when)
		then := a.lowerExpr(item.Then)
		thens = append(thens, then)
		resultTypes = append(resultTypes, then.GetResultType())
	}
	els := a.lowerExpr(c.Else)
	resultTypes = append(resultTypes, els.GetResultType())
	common := types.CommonSupertype(a.registry, resultTypes...)

	for i := range thens {
		thens[i] = a.convertTo(c.Items[i].Then, thens[i], common)
		out.CaseItem = append(out.CaseItem, &model.CaseItem{
			Element: &model.Element{Span: c.Items[i].Span},
			When:    whens[i],
			Then:    thens[i],
		})
	}
	out.Else = a.convertTo(c.Else, els, common)
	out.Element.ResultType = common
	return out
}

func (a *Analyzer) lowerList(l *ast.ListSelector, span diag.Span) model.IExpression {
	elems := make([]model.IExpression, 0, len(l.Elements))
	var elemTypes []types.IType
	for _, el := range l.Elements {
		lowered := a.lowerExpr(el)
		elems = append(elems, lowered)
		elemTypes = append(elemTypes, lowered.GetResultType())
	}
	var elemType types.IType
	if l.Element != nil {
		elemType = a.resolveTypeSpecifier(l.Element)
	} else {
		elemType = types.CommonSupertype(a.registry, elemTypes...)
	}
	for i := range elems {
		elems[i] = a.convertTo(l.Elements[i], elems[i], elemType)
	}
	return &model.List{
		Expression: model.TypeAndSpan(&types.List{ElementType: elemType}, span),
		List:       elems,
	}
}

func (a *Analyzer) lowerTuple(t *ast.TupleSelector, span diag.Span) model.IExpression {
	elemTypes := map[string]types.IType{}
	out := &model.Tuple{Expression: &model.Expression{Element: &model.Element{Span: span}}}
	for _, el := range t.Elements {
		val := a.lowerExpr(el.Value)
		if _, ok := elemTypes[el.Name.Name]; ok {
			a.errorf(identNode(el.Name), diag.DuplicateDefinition, "duplicate tuple element %s", el.Name.Name)
			continue
		}
		elemTypes[el.Name.Name] = val.GetResultType()
		out.Elements = append(out.Elements, &model.TupleElement{Name: el.Name.Name, Value: val})
	}
	out.Element.ResultType = &types.Tuple{ElementTypes: elemTypes}
	return out
}

func (a *Analyzer) lowerInstance(i *ast.InstanceSelector, span diag.Span) model.IExpression {
	classType, err := a.registry.ResolveType(qualifiedName(i.ClassName))
	if err != nil {
		return a.badExpression(i, diag.UnknownType, "%v", err)
	}
	out := &model.Instance{
		Expression: model.TypeAndSpan(classType, span),
		ClassType:  classType,
	}
	for _, el := range i.Elements {
		val := a.lowerExpr(el.Value)
		pt, err := a.registry.PropertyType(classType, el.Name.Name)
		if err != nil {
			a.errorf(identNode(el.Name), diag.InvalidPropertyAccess, "%v", err)
		} else {
			val = a.convertTo(el.Value, val, pt)
		}
		out.Elements = append(out.Elements, &model.InstanceElement{Name: el.Name.Name, Value: val})
	}
	return out
}

func (a *Analyzer) lowerInterval(i *ast.IntervalSelector, span diag.Span) model.IExpression {
	low := a.lowerExpr(i.Low)
	high := a.lowerExpr(i.High)
	point := types.CommonSupertype(a.registry, low.GetResultType(), high.GetResultType())
	low = a.convertTo(i.Low, low, point)
	high = a.convertTo(i.High, high, point)
	return &model.Interval{
		Expression:    model.TypeAndSpan(&types.Interval{PointType: point}, span),
		Low:           low,
		High:          high,
		LowInclusive:  i.LowClosed,
		HighInclusive: i.HighClosed,
	}
}

func (a *Analyzer) lowerConvert(c *ast.Convert, span diag.Span) model.IExpression {
	operand := a.lowerExpr(c.Operand)
	target := a.resolveTypeSpecifier(c.Type)
	if sys, ok := target.(types.System); ok {
		name := ""
		switch sys {
		case types.Boolean:
			name = "ToBoolean"
		case types.Integer:
			name = "ToInteger"
		case types.Long:
			name = "ToLong"
		case types.Decimal:
			name = "ToDecimal"
		case types.String:
			name = "ToString"
		case types.Quantity:
			name = "ToQuantity"
		case types.Date:
			name = "ToDate"
		case types.DateTime:
			name = "ToDateTime"
		case types.Time:
			name = "ToTime"
		case types.Concept:
			name = "ToConcept"
		}
		if name != "" {
			expr := a.resolveBuiltin(c, name, []model.IExpression{operand}, span)
			if narrowing(operand.GetResultType(), target) {
				a.warnf(c, diag.PrecisionLoss, "conversion from %v to %v may lose precision", operand.GetResultType(), target)
			}
			return expr
		}
	}
	// Converting to a class or composite type is a cast.
	return &model.As{
		UnaryExpression: &model.UnaryExpression{
			Expression: model.TypeAndSpan(target, span),
			Operand:    operand,
		},
		AsTypeSpecifier: target,
		Strict:          false,
	}
}

// narrowing reports whether an explicit conversion narrows along the
// numeric or temporal chains.
func narrowing(from, to types.IType) bool {
	return types.SubTypeOf(to, from, nil) && !to.Equal(from)
}

func (a *Analyzer) lowerMessage(m *ast.Message, span diag.Span) model.IExpression {
	source := a.lowerExpr(m.Source)
	out := &model.Message{
		Expression: model.TypeAndSpan(source.GetResultType(), span),
		Source:     source,
	}
	if m.Condition != nil {
		cond := a.lowerExpr(m.Condition)
		out.Condition = a.convertTo(m.Condition, cond, types.Boolean)
	}
	if m.Code != nil {
		code := a.lowerExpr(m.Code)
		out.Code = a.convertTo(m.Code, code, types.String)
	}
	if m.Severity != nil {
		sev := a.lowerExpr(m.Severity)
		out.Severity = a.convertTo(m.Severity, sev, types.String)
	}
	if m.Message != nil {
		msg := a.lowerExpr(m.Message)
		out.Message = a.convertTo(m.Message, msg, types.String)
	}
	return out
}

func (a *Analyzer) lowerRetrieve(r *ast.Retrieve, span diag.Span) model.IExpression {
	typeName := qualifiedName(r.DataType)
	dataType, err := a.registry.ResolveType(typeName)
	if err != nil {
		return a.badExpression(r, diag.UnknownType, "%v", err)
	}
	named, ok := dataType.(*types.Named)
	if !ok {
		return a.badExpression(r, diag.NotRetrievable, "%v cannot be used in a retrieve", dataType)
	}
	retrievable, err := a.registry.IsRetrievable(named.Name)
	if err != nil {
		return a.badExpression(r, diag.UnknownType, "%v", err)
	}
	if !retrievable {
		return a.badExpression(r, diag.NotRetrievable, "%v is not retrievable", named.Name)
	}

	out := &model.Retrieve{
		Expression: model.TypeAndSpan(&types.List{ElementType: named}, span),
		DataType:   named.Name,
		Context:    a.currContext,
	}
	if r.Codes != nil {
		out.Codes = a.lowerExpr(r.Codes)
		if r.CodeProperty.Name != "" {
			out.CodeProperty = r.CodeProperty.Name
		} else {
			path, err := a.registry.PrimaryCodePath(named.Name)
			if err != nil {
				return a.badExpression(r, diag.NoPrimaryCodePath, "%v", err)
			}
			out.CodeProperty = path
		}
	}
	return out
}

// lowerFunctionCall resolves a call against user-defined functions first,
// then the system operator tables.
func (a *Analyzer) lowerFunctionCall(f *ast.FunctionCall, span diag.Span) model.IExpression {
	args := make([]model.IExpression, 0, len(f.Arguments))
	for _, arg := range f.Arguments {
		args = append(args, a.lowerExpr(arg))
	}

	libName := ""
	if len(f.Ident.Qualifiers) == 1 {
		libName = f.Ident.Qualifiers[0].Name
	} else if len(f.Ident.Qualifiers) > 1 {
		return a.badExpression(f, diag.UndefinedFunction, "could not resolve function %s", qualifiedName(f.Ident))
	}
	name := f.Ident.Name.Name

	// User defined functions, in the named or current library.
	overloads, err := a.refs.FuncOverloads(libName, name, f.Fluent)
	if err == nil && len(overloads) > 0 {
		matched, err := convert.OverloadMatch(args, overloads, a.registry, name)
		if err == nil {
			ref, ok := matched.Result().(*model.FunctionRef)
			if !ok {
				return a.badExpression(f, diag.UndefinedFunction, "internal error - %s did not resolve to a function", name)
			}
			ref.Operands = matched.WrappedOperands
			ref.LibraryName = libName
			return a.reSpan(ref, span)
		}
		if errors.Is(err, convert.ErrAmbiguousMatch) {
			return a.badExpression(f, diag.AmbiguousCall, "%v", err)
		}
		// Fall through to the system operators on no match.
	}

	if libName == "" {
		if builtinOverloads, ok := a.builtins[name]; ok {
			matched, err := convert.OverloadMatch(args, builtinOverloads, a.registry, name)
			if err != nil {
				if errors.Is(err, convert.ErrAmbiguousMatch) {
					return a.badExpression(f, diag.AmbiguousCall, "%v", err)
				}
				return a.badExpression(f, diag.TypeMismatch, "%v", err)
			}
			expr, buildErr := matched.Result(matched.WrappedOperands, span)
			if buildErr != nil {
				return a.badExpression(f, diag.TypeMismatch, "%v", buildErr)
			}
			return expr
		}
	}
	return a.badExpression(f, diag.UndefinedFunction, "could not resolve function %s", qualifiedName(f.Ident))
}

// resolveBuiltin matches operands against a system operator's overloads and
// builds the lowered node.
func (a *Analyzer) resolveBuiltin(node ast.Node, name string, args []model.IExpression, span diag.Span) model.IExpression {
	overloads, ok := a.builtins[name]
	if !ok {
		return a.badExpression(node, diag.UndefinedFunction, "internal error - unknown system operator %s", name)
	}
	matched, err := convert.OverloadMatch(args, overloads, a.registry, name)
	if err != nil {
		if errors.Is(err, convert.ErrAmbiguousMatch) {
			return a.badExpression(node, diag.AmbiguousCall, "%v", err)
		}
		return a.badExpression(node, diag.TypeMismatch, "%v", err)
	}
	expr, buildErr := matched.Result(matched.WrappedOperands, span)
	if buildErr != nil {
		return a.badExpression(node, diag.TypeMismatch, "%v", buildErr)
	}
	return expr
}

// implicitlyConvertible reports whether from converts implicitly to to.
func (a *Analyzer) implicitlyConvertible(from, to types.IType) bool {
	res, err := convert.OperandImplicitConverter(from, to, nil, a.registry)
	if err != nil {
		return false
	}
	return res.Matched
}

// convertTo wraps an expression in the conversions needed to reach the
// target type, reporting a type mismatch when none exists.
func (a *Analyzer) convertTo(node ast.Node, expr model.IExpression, target types.IType) model.IExpression {
	if target == nil || target == types.Unset || target.Equal(types.Any) {
		return expr
	}
	res, err := convert.OperandImplicitConverter(expr.GetResultType(), target, expr, a.registry)
	if err != nil {
		a.errorf(node, diag.TypeMismatch, "%v", err)
		return expr
	}
	if !res.Matched {
		a.errorf(node, diag.TypeMismatch, "could not implicitly convert %v to %v", expr.GetResultType(), target)
		return expr
	}
	return res.WrappedOperand
}

// resolveTypeSpecifier resolves a surface type specifier to a type.
func (a *Analyzer) resolveTypeSpecifier(ts ast.ITypeSpecifier) types.IType {
	switch t := ts.(type) {
	case *ast.NamedType:
		resolved, err := a.registry.ResolveType(qualifiedName(t.Ident))
		if err != nil {
			a.errorf(t, diag.UnknownType, "%v", err)
			return types.Any
		}
		return resolved
	case *ast.ListType:
		return &types.List{ElementType: a.resolveTypeSpecifier(t.Element)}
	case *ast.IntervalType:
		return &types.Interval{PointType: a.resolveTypeSpecifier(t.Point)}
	case *ast.TupleType:
		elems := map[string]types.IType{}
		for _, el := range t.Elements {
			elems[el.Name.Name] = a.resolveTypeSpecifier(el.Type)
		}
		return &types.Tuple{ElementTypes: elems}
	case *ast.ChoiceType:
		choice := &types.Choice{}
		for _, alt := range t.Choices {
			choice.ChoiceTypes = append(choice.ChoiceTypes, a.resolveTypeSpecifier(alt))
		}
		return choice
	}
	a.errorf(ts, diag.ExpectedType, "internal error - unsupported type specifier %T", ts)
	return types.Any
}

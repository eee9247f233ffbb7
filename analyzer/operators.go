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
	"fmt"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/convert"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/types"
)

// builder constructs a lowered operator node from converted operands.
type builder func(ops []model.IExpression, span diag.Span) (model.IExpression, error)

// builtinOverload is one system-operator signature and its lowering.
type builtinOverload = convert.Overload[builder]

func (a *Analyzer) register(name string, operands []types.IType, b builder) {
	a.builtins[name] = append(a.builtins[name], builtinOverload{Operands: operands, Result: b})
}

// Type shorthands for the operator tables.
var (
	tBool     = types.IType(types.Boolean)
	tInt      = types.IType(types.Integer)
	tLong     = types.IType(types.Long)
	tDec      = types.IType(types.Decimal)
	tStr      = types.IType(types.String)
	tQty      = types.IType(types.Quantity)
	tDate     = types.IType(types.Date)
	tDateTime = types.IType(types.DateTime)
	tTime     = types.IType(types.Time)
	tAny      = types.IType(types.Any)
	tCode     = types.IType(types.Code)
	tConcept  = types.IType(types.Concept)
	tVS       = types.IType(types.ValueSet)
	tCS       = types.IType(types.CodeSystem)
	tT        = types.IType(convert.GenericType)
	tListT    = types.IType(convert.GenericList)
	tIntervalT = types.IType(convert.GenericInterval)
	tBoolList = types.IType(&types.List{ElementType: types.Boolean})
	tStrList  = types.IType(&types.List{ElementType: types.String})
)

// Result type helpers.

func fixed(t types.IType) func([]model.IExpression) types.IType {
	return func([]model.IExpression) types.IType { return t }
}

func sameAs(i int) func([]model.IExpression) types.IType {
	return func(ops []model.IExpression) types.IType { return ops[i].GetResultType() }
}

func elementOf(i int) func([]model.IExpression) types.IType {
	return func(ops []model.IExpression) types.IType {
		if l, ok := ops[i].GetResultType().(*types.List); ok {
			return l.ElementType
		}
		return types.Any
	}
}

func pointOf(i int) func([]model.IExpression) types.IType {
	return func(ops []model.IExpression) types.IType {
		if iv, ok := ops[i].GetResultType().(*types.Interval); ok {
			return iv.PointType
		}
		return types.Any
	}
}

func flattenedOf(i int) func([]model.IExpression) types.IType {
	return func(ops []model.IExpression) types.IType {
		if l, ok := ops[i].GetResultType().(*types.List); ok {
			if inner, ok := l.ElementType.(*types.List); ok {
				return inner
			}
			return l
		}
		return types.Any
	}
}

// unary registers a unary operator overload.
func (a *Analyzer) unary(name string, operand types.IType, rt func([]model.IExpression) types.IType, mk func(*model.UnaryExpression) model.IExpression) {
	a.register(name, []types.IType{operand}, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
		u := &model.UnaryExpression{
			Expression: model.TypeAndSpan(rt(ops), span),
			Operand:    ops[0],
		}
		return mk(u), nil
	})
}

// binary registers a binary operator overload.
func (a *Analyzer) binary(name string, left, right types.IType, rt func([]model.IExpression) types.IType, mk func(*model.BinaryExpression) model.IExpression) {
	a.register(name, []types.IType{left, right}, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
		b := &model.BinaryExpression{
			Expression: model.TypeAndSpan(rt(ops), span),
			Operands:   ops,
		}
		return mk(b), nil
	})
}

// nary registers an n-ary operator overload.
func (a *Analyzer) nary(name string, operands []types.IType, rt func([]model.IExpression) types.IType, mk func(*model.NaryExpression) model.IExpression) {
	a.register(name, operands, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
		n := &model.NaryExpression{
			Expression: model.TypeAndSpan(rt(ops), span),
			Operands:   ops,
		}
		return mk(n), nil
	})
}

// loadSystemOperators registers the CQL system operators: every operator
// the surface syntax lowers to and every built-in callable by name.
func (a *Analyzer) loadSystemOperators() error {
	// Three-valued logic.
	for _, e := range []struct {
		name string
		mk   func(*model.BinaryExpression) model.IExpression
	}{
		{"And", func(b *model.BinaryExpression) model.IExpression { return &model.And{BinaryExpression: b} }},
		{"Or", func(b *model.BinaryExpression) model.IExpression { return &model.Or{BinaryExpression: b} }},
		{"Xor", func(b *model.BinaryExpression) model.IExpression { return &model.XOr{BinaryExpression: b} }},
		{"Implies", func(b *model.BinaryExpression) model.IExpression { return &model.Implies{BinaryExpression: b} }},
	} {
		a.binary(e.name, tBool, tBool, fixed(tBool), e.mk)
	}
	a.unary("Not", tBool, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.Not{UnaryExpression: u}
	})

	// Equality and equivalence are generic.
	a.binary("Equal", tT, tT, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
		return &model.Equal{BinaryExpression: b}
	})
	a.binary("Equivalent", tT, tT, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
		return &model.Equivalent{BinaryExpression: b}
	})

	// Orderings over the comparable types.
	comparables := []types.IType{tInt, tLong, tDec, tQty, tStr, tDate, tDateTime, tTime}
	for _, e := range []struct {
		name string
		mk   func(*model.BinaryExpression) model.IExpression
	}{
		{"Less", func(b *model.BinaryExpression) model.IExpression { return &model.Less{BinaryExpression: b} }},
		{"Greater", func(b *model.BinaryExpression) model.IExpression { return &model.Greater{BinaryExpression: b} }},
		{"LessOrEqual", func(b *model.BinaryExpression) model.IExpression { return &model.LessOrEqual{BinaryExpression: b} }},
		{"GreaterOrEqual", func(b *model.BinaryExpression) model.IExpression { return &model.GreaterOrEqual{BinaryExpression: b} }},
	} {
		for _, t := range comparables {
			a.binary(e.name, t, t, fixed(tBool), e.mk)
		}
	}

	// Arithmetic.
	numerics := []types.IType{tInt, tLong, tDec, tQty}
	for _, e := range []struct {
		name string
		mk   func(*model.BinaryExpression) model.IExpression
	}{
		{"Add", func(b *model.BinaryExpression) model.IExpression { return &model.Add{BinaryExpression: b} }},
		{"Subtract", func(b *model.BinaryExpression) model.IExpression { return &model.Subtract{BinaryExpression: b} }},
		{"Multiply", func(b *model.BinaryExpression) model.IExpression { return &model.Multiply{BinaryExpression: b} }},
		{"TruncatedDivide", func(b *model.BinaryExpression) model.IExpression { return &model.TruncatedDivide{BinaryExpression: b} }},
		{"Modulo", func(b *model.BinaryExpression) model.IExpression { return &model.Modulo{BinaryExpression: b} }},
	} {
		for _, t := range numerics {
			a.binary(e.name, t, t, sameAs(0), e.mk)
		}
	}
	a.binary("Divide", tDec, tDec, fixed(tDec), func(b *model.BinaryExpression) model.IExpression {
		return &model.Divide{BinaryExpression: b}
	})
	a.binary("Divide", tQty, tQty, fixed(tQty), func(b *model.BinaryExpression) model.IExpression {
		return &model.Divide{BinaryExpression: b}
	})
	a.binary("Power", tInt, tInt, fixed(tInt), func(b *model.BinaryExpression) model.IExpression {
		return &model.Power{BinaryExpression: b}
	})
	a.binary("Power", tLong, tLong, fixed(tLong), func(b *model.BinaryExpression) model.IExpression {
		return &model.Power{BinaryExpression: b}
	})
	a.binary("Power", tDec, tDec, fixed(tDec), func(b *model.BinaryExpression) model.IExpression {
		return &model.Power{BinaryExpression: b}
	})
	a.binary("Log", tDec, tDec, fixed(tDec), func(b *model.BinaryExpression) model.IExpression {
		return &model.Log{BinaryExpression: b}
	})

	// Temporal arithmetic preserves the temporal operand's type.
	for _, t := range []types.IType{tDate, tDateTime, tTime} {
		a.binary("Add", t, tQty, sameAs(0), func(b *model.BinaryExpression) model.IExpression {
			return &model.Add{BinaryExpression: b}
		})
		a.binary("Subtract", t, tQty, sameAs(0), func(b *model.BinaryExpression) model.IExpression {
			return &model.Subtract{BinaryExpression: b}
		})
	}

	for _, t := range numerics {
		a.unary("Negate", t, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
			return &model.Negate{UnaryExpression: u}
		})
		a.unary("Abs", t, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
			return &model.Abs{UnaryExpression: u}
		})
	}
	a.unary("Truncate", tDec, fixed(tInt), func(u *model.UnaryExpression) model.IExpression {
		return &model.Truncate{UnaryExpression: u}
	})
	a.unary("Ceiling", tDec, fixed(tInt), func(u *model.UnaryExpression) model.IExpression {
		return &model.Ceiling{UnaryExpression: u}
	})
	a.unary("Floor", tDec, fixed(tInt), func(u *model.UnaryExpression) model.IExpression {
		return &model.Floor{UnaryExpression: u}
	})
	a.unary("Exp", tDec, fixed(tDec), func(u *model.UnaryExpression) model.IExpression {
		return &model.Exp{UnaryExpression: u}
	})
	a.unary("Ln", tDec, fixed(tDec), func(u *model.UnaryExpression) model.IExpression {
		return &model.Ln{UnaryExpression: u}
	})
	a.nary("Round", []types.IType{tDec}, fixed(tDec), func(n *model.NaryExpression) model.IExpression {
		return &model.Round{NaryExpression: n}
	})
	a.nary("Round", []types.IType{tDec, tInt}, fixed(tDec), func(n *model.NaryExpression) model.IExpression {
		return &model.Round{NaryExpression: n}
	})
	a.unary("Predecessor", tT, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Predecessor{UnaryExpression: u}
	})
	a.unary("Successor", tT, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Successor{UnaryExpression: u}
	})

	// Strings. The surface & operator and + on strings both lower to
	// Concatenate.
	a.nary("Concatenate", []types.IType{tStr, tStr}, fixed(tStr), func(n *model.NaryExpression) model.IExpression {
		return &model.Concatenate{NaryExpression: n}
	})
	a.register("Add", []types.IType{tStr, tStr}, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
		return &model.Concatenate{NaryExpression: &model.NaryExpression{
			Expression: model.TypeAndSpan(tStr, span),
			Operands:   ops,
		}}, nil
	})
	a.nary("Combine", []types.IType{tStrList}, fixed(tStr), func(n *model.NaryExpression) model.IExpression {
		return &model.Combine{NaryExpression: n}
	})
	a.nary("Combine", []types.IType{tStrList, tStr}, fixed(tStr), func(n *model.NaryExpression) model.IExpression {
		return &model.Combine{NaryExpression: n}
	})
	a.binary("Split", tStr, tStr, fixed(tStrList), func(b *model.BinaryExpression) model.IExpression {
		return &model.Split{BinaryExpression: b}
	})
	a.unary("Length", tStr, fixed(tInt), func(u *model.UnaryExpression) model.IExpression {
		return &model.Length{UnaryExpression: u}
	})
	a.unary("Upper", tStr, fixed(tStr), func(u *model.UnaryExpression) model.IExpression {
		return &model.Upper{UnaryExpression: u}
	})
	a.unary("Lower", tStr, fixed(tStr), func(u *model.UnaryExpression) model.IExpression {
		return &model.Lower{UnaryExpression: u}
	})
	a.nary("Substring", []types.IType{tStr, tInt}, fixed(tStr), func(n *model.NaryExpression) model.IExpression {
		return &model.Substring{NaryExpression: n}
	})
	a.nary("Substring", []types.IType{tStr, tInt, tInt}, fixed(tStr), func(n *model.NaryExpression) model.IExpression {
		return &model.Substring{NaryExpression: n}
	})
	a.binary("StartsWith", tStr, tStr, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
		return &model.StartsWith{BinaryExpression: b}
	})
	a.binary("EndsWith", tStr, tStr, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
		return &model.EndsWith{BinaryExpression: b}
	})
	a.binary("Matches", tStr, tStr, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
		return &model.Matches{BinaryExpression: b}
	})
	a.nary("ReplaceMatches", []types.IType{tStr, tStr, tStr}, fixed(tStr), func(n *model.NaryExpression) model.IExpression {
		return &model.ReplaceMatches{NaryExpression: n}
	})
	a.binary("PositionOf", tStr, tStr, fixed(tInt), func(b *model.BinaryExpression) model.IExpression {
		return &model.PositionOf{BinaryExpression: b}
	})
	a.binary("LastPositionOf", tStr, tStr, fixed(tInt), func(b *model.BinaryExpression) model.IExpression {
		return &model.LastPositionOf{BinaryExpression: b}
	})
	a.binary("Indexer", tStr, tInt, fixed(tStr), func(b *model.BinaryExpression) model.IExpression {
		return &model.Indexer{BinaryExpression: b}
	})

	// Nullological.
	a.unary("IsNull", tAny, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.IsNull{UnaryExpression: u}
	})
	a.unary("IsTrue", tBool, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.IsTrue{UnaryExpression: u}
	})
	a.unary("IsFalse", tBool, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.IsFalse{UnaryExpression: u}
	})
	// Coalesce takes 2 to 5 uniform arguments or a single list.
	for arity := 2; arity <= 5; arity++ {
		operands := make([]types.IType, arity)
		for i := range operands {
			operands[i] = tT
		}
		a.nary("Coalesce", operands, sameAs(0), func(n *model.NaryExpression) model.IExpression {
			return &model.Coalesce{NaryExpression: n}
		})
	}
	a.nary("Coalesce", []types.IType{tListT}, elementOf(0), func(n *model.NaryExpression) model.IExpression {
		return &model.Coalesce{NaryExpression: n}
	})

	// Lists.
	a.unary("Exists", tListT, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.Exists{UnaryExpression: u}
	})
	a.unary("First", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.First{UnaryExpression: u}
	})
	a.unary("Last", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Last{UnaryExpression: u}
	})
	a.unary("Single", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Single{UnaryExpression: u}
	})
	a.unary("SingletonFrom", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.SingletonFrom{UnaryExpression: u}
	})
	a.unary("Distinct", tListT, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Distinct{UnaryExpression: u}
	})
	a.unary("Flatten", tListT, flattenedOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Flatten{UnaryExpression: u}
	})
	a.unary("Length", tListT, fixed(tInt), func(u *model.UnaryExpression) model.IExpression {
		return &model.Length{UnaryExpression: u}
	})
	a.unary("Count", tListT, fixed(tInt), func(u *model.UnaryExpression) model.IExpression {
		return &model.Count{UnaryExpression: u}
	})
	a.unary("Tail", tListT, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Tail{UnaryExpression: u}
	})
	a.binary("Take", tListT, tInt, sameAs(0), func(b *model.BinaryExpression) model.IExpression {
		return &model.Take{BinaryExpression: b}
	})
	a.binary("Skip", tListT, tInt, sameAs(0), func(b *model.BinaryExpression) model.IExpression {
		return &model.Skip{BinaryExpression: b}
	})
	a.binary("IndexOf", tListT, tT, fixed(tInt), func(b *model.BinaryExpression) model.IExpression {
		return &model.IndexOf{BinaryExpression: b}
	})
	a.binary("Indexer", tListT, tInt, elementOf(0), func(b *model.BinaryExpression) model.IExpression {
		return &model.Indexer{BinaryExpression: b}
	})
	for _, e := range []struct {
		name string
		mk   func(*model.BinaryExpression) model.IExpression
	}{
		{"Union", func(b *model.BinaryExpression) model.IExpression { return &model.Union{BinaryExpression: b} }},
		{"Intersect", func(b *model.BinaryExpression) model.IExpression { return &model.Intersect{BinaryExpression: b} }},
		{"Except", func(b *model.BinaryExpression) model.IExpression { return &model.Except{BinaryExpression: b} }},
	} {
		a.binary(e.name, tListT, tListT, sameAs(0), e.mk)
	}
	a.unary("AllTrue", tBoolList, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.AllTrue{UnaryExpression: u}
	})
	a.unary("AnyTrue", tBoolList, fixed(tBool), func(u *model.UnaryExpression) model.IExpression {
		return &model.AnyTrue{UnaryExpression: u}
	})
	for _, t := range []types.IType{tInt, tLong, tDec, tQty} {
		a.unary("Sum", &types.List{ElementType: t}, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
			return &model.Sum{UnaryExpression: u}
		})
	}
	a.unary("Min", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Min{UnaryExpression: u}
	})
	a.unary("Max", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Max{UnaryExpression: u}
	})
	for _, t := range []types.IType{tDec, tQty} {
		a.unary("Avg", &types.List{ElementType: t}, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
			return &model.Avg{UnaryExpression: u}
		})
		a.unary("Median", &types.List{ElementType: t}, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
			return &model.Median{UnaryExpression: u}
		})
	}
	a.unary("Mode", tListT, elementOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Mode{UnaryExpression: u}
	})
	a.unary("StdDev", &types.List{ElementType: types.Decimal}, fixed(tDec), func(u *model.UnaryExpression) model.IExpression {
		return &model.StdDev{UnaryExpression: u}
	})
	a.unary("Variance", &types.List{ElementType: types.Decimal}, fixed(tDec), func(u *model.UnaryExpression) model.IExpression {
		return &model.Variance{UnaryExpression: u}
	})

	// Membership.
	a.binaryPrec("In", tT, tListT, fixed(tBool), func(b *model.BinaryExpressionWithPrecision) model.IExpression {
		return (*model.In)(b)
	})
	a.binaryPrec("In", tT, tIntervalT, fixed(tBool), func(b *model.BinaryExpressionWithPrecision) model.IExpression {
		return (*model.In)(b)
	})
	a.binaryPrec("Contains", tListT, tT, fixed(tBool), func(b *model.BinaryExpressionWithPrecision) model.IExpression {
		return (*model.Contains)(b)
	})
	a.binaryPrec("Contains", tIntervalT, tT, fixed(tBool), func(b *model.BinaryExpressionWithPrecision) model.IExpression {
		return (*model.Contains)(b)
	})

	// Interval accessors.
	a.unary("Start", tIntervalT, pointOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Start{UnaryExpression: u}
	})
	a.unary("End", tIntervalT, pointOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.End{UnaryExpression: u}
	})
	a.unary("Width", tIntervalT, pointOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Width{UnaryExpression: u}
	})
	a.unary("Size", tIntervalT, pointOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Size{UnaryExpression: u}
	})
	a.unary("PointFrom", tIntervalT, pointOf(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.PointFrom{UnaryExpression: u}
	})
	a.unary("Collapse", &types.List{ElementType: &types.Interval{PointType: types.Any}}, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Collapse{UnaryExpression: u}
	})
	a.unary("Collapse", tListT, sameAs(0), func(u *model.UnaryExpression) model.IExpression {
		return &model.Collapse{UnaryExpression: u}
	})

	// Interval and temporal relations. Each is defined over interval pairs,
	// interval/point mixes and plain temporal pairs.
	type precMk struct {
		name string
		mk   func(*model.BinaryExpressionWithPrecision) model.IExpression
	}
	relations := []precMk{
		{"Before", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.Before)(b) }},
		{"After", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.After)(b) }},
		{"SameAs", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.SameAs)(b) }},
		{"SameOrBefore", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.SameOrBefore)(b) }},
		{"SameOrAfter", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.SameOrAfter)(b) }},
	}
	for _, rel := range relations {
		for _, t := range []types.IType{tDate, tDateTime, tTime, tInt, tLong, tDec, tQty} {
			a.binaryPrec(rel.name, t, t, fixed(tBool), rel.mk)
		}
		a.binaryPrec(rel.name, tIntervalT, tIntervalT, fixed(tBool), rel.mk)
	}
	intervalRelations := []precMk{
		{"Overlaps", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.Overlaps)(b) }},
		{"Meets", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.Meets)(b) }},
		{"Starts", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.Starts)(b) }},
		{"Ends", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.Ends)(b) }},
	}
	for _, rel := range intervalRelations {
		a.binaryPrec(rel.name, tIntervalT, tIntervalT, fixed(tBool), rel.mk)
	}
	inclusions := []precMk{
		{"Includes", func(b *model.BinaryExpressionWithPrecision) model.IExpression {
			return &model.Includes{BinaryExpression: b.BinaryExpression}
		}},
		{"ProperlyIncludes", func(b *model.BinaryExpressionWithPrecision) model.IExpression {
			return &model.ProperlyIncludes{BinaryExpression: b.BinaryExpression}
		}},
	}
	for _, rel := range inclusions {
		a.binaryPrec(rel.name, tListT, tListT, fixed(tBool), rel.mk)
		a.binaryPrec(rel.name, tListT, tT, fixed(tBool), rel.mk)
	}
	a.binaryPrec("Includes", tIntervalT, tIntervalT, fixed(tBool), func(b *model.BinaryExpressionWithPrecision) model.IExpression {
		return (*model.IncludedIn)(swapOperands(b))
	})
	incIn := []precMk{
		{"IncludedIn", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.IncludedIn)(b) }},
		{"ProperlyIncludedIn", func(b *model.BinaryExpressionWithPrecision) model.IExpression { return (*model.ProperlyIncludedIn)(b) }},
	}
	for _, rel := range incIn {
		a.binaryPrec(rel.name, tListT, tListT, fixed(tBool), rel.mk)
		a.binaryPrec(rel.name, tIntervalT, tIntervalT, fixed(tBool), rel.mk)
		a.binaryPrec(rel.name, tT, tIntervalT, fixed(tBool), rel.mk)
	}

	// Temporal constructors and clock operators.
	for arity := 1; arity <= 3; arity++ {
		operands := make([]types.IType, arity)
		for i := range operands {
			operands[i] = tInt
		}
		a.nary("Date", operands, fixed(tDate), func(n *model.NaryExpression) model.IExpression {
			return &model.Date{NaryExpression: n}
		})
	}
	for arity := 1; arity <= 7; arity++ {
		operands := make([]types.IType, arity)
		for i := range operands {
			operands[i] = tInt
		}
		a.nary("DateTime", operands, fixed(tDateTime), func(n *model.NaryExpression) model.IExpression {
			return &model.DateTime{NaryExpression: n}
		})
	}
	for arity := 1; arity <= 4; arity++ {
		operands := make([]types.IType, arity)
		for i := range operands {
			operands[i] = tInt
		}
		a.nary("Time", operands, fixed(tTime), func(n *model.NaryExpression) model.IExpression {
			return &model.Time{NaryExpression: n}
		})
	}
	a.nary("Now", nil, fixed(tDateTime), func(n *model.NaryExpression) model.IExpression {
		return &model.Now{NaryExpression: n}
	})
	a.nary("Today", nil, fixed(tDate), func(n *model.NaryExpression) model.IExpression {
		return &model.Today{NaryExpression: n}
	})
	a.nary("TimeOfDay", nil, fixed(tTime), func(n *model.NaryExpression) model.IExpression {
		return &model.TimeOfDay{NaryExpression: n}
	})

	// Explicit conversions.
	toConversions := []struct {
		name string
		from []types.IType
		to   types.IType
		mk   func(*model.UnaryExpression) model.IExpression
	}{
		{"ToBoolean", []types.IType{tStr, tInt, tBool}, tBool, func(u *model.UnaryExpression) model.IExpression { return &model.ToBoolean{UnaryExpression: u} }},
		{"ToInteger", []types.IType{tStr, tLong, tBool, tInt}, tInt, func(u *model.UnaryExpression) model.IExpression { return &model.ToInteger{UnaryExpression: u} }},
		{"ToLong", []types.IType{tStr, tInt, tLong}, tLong, func(u *model.UnaryExpression) model.IExpression { return &model.ToLong{UnaryExpression: u} }},
		{"ToDecimal", []types.IType{tStr, tInt, tLong, tQty, tDec}, tDec, func(u *model.UnaryExpression) model.IExpression { return &model.ToDecimal{UnaryExpression: u} }},
		{"ToQuantity", []types.IType{tStr, tInt, tDec, tQty}, tQty, func(u *model.UnaryExpression) model.IExpression { return &model.ToQuantity{UnaryExpression: u} }},
		{"ToString", []types.IType{tBool, tInt, tLong, tDec, tQty, tDate, tDateTime, tTime, tStr}, tStr, func(u *model.UnaryExpression) model.IExpression { return &model.ToString{UnaryExpression: u} }},
		{"ToDate", []types.IType{tStr, tDateTime, tDate}, tDate, func(u *model.UnaryExpression) model.IExpression { return &model.ToDate{UnaryExpression: u} }},
		{"ToDateTime", []types.IType{tStr, tDate, tDateTime}, tDateTime, func(u *model.UnaryExpression) model.IExpression { return &model.ToDateTime{UnaryExpression: u} }},
		{"ToTime", []types.IType{tStr, tDateTime, tTime}, tTime, func(u *model.UnaryExpression) model.IExpression { return &model.ToTime{UnaryExpression: u} }},
		{"ToConcept", []types.IType{tCode, &types.List{ElementType: types.Code}}, tConcept, func(u *model.UnaryExpression) model.IExpression { return &model.ToConcept{UnaryExpression: u} }},
	}
	for _, conv := range toConversions {
		for _, from := range conv.from {
			a.unary(conv.name, from, fixed(conv.to), conv.mk)
		}
	}

	// ConvertsToX predicates are total over Any.
	convertsTo := []struct {
		name string
		mk   func(*model.UnaryExpression) model.IExpression
	}{
		{"ConvertsToBoolean", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToBoolean{UnaryExpression: u} }},
		{"ConvertsToDate", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToDate{UnaryExpression: u} }},
		{"ConvertsToDateTime", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToDateTime{UnaryExpression: u} }},
		{"ConvertsToDecimal", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToDecimal{UnaryExpression: u} }},
		{"ConvertsToInteger", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToInteger{UnaryExpression: u} }},
		{"ConvertsToLong", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToLong{UnaryExpression: u} }},
		{"ConvertsToQuantity", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToQuantity{UnaryExpression: u} }},
		{"ConvertsToString", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToString{UnaryExpression: u} }},
		{"ConvertsToTime", func(u *model.UnaryExpression) model.IExpression { return &model.ConvertsToTime{UnaryExpression: u} }},
	}
	for _, conv := range convertsTo {
		a.unary(conv.name, tAny, fixed(tBool), conv.mk)
	}

	// Clinical operators.
	ages := []struct {
		name      string
		precision model.DateTimePrecision
	}{
		{"CalculateAgeInYears", model.YEAR},
		{"CalculateAgeInMonths", model.MONTH},
		{"CalculateAgeInWeeks", model.WEEK},
		{"CalculateAgeInDays", model.DAY},
	}
	for _, age := range ages {
		precision := age.precision
		for _, t := range []types.IType{tDate, tDateTime} {
			a.register(age.name, []types.IType{t}, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
				return &model.CalculateAge{
					UnaryExpression: &model.UnaryExpression{
						Expression: model.TypeAndSpan(tInt, span),
						Operand:    ops[0],
					},
					Precision: precision,
				}, nil
			})
			a.register(age.name+"At", []types.IType{t, t}, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
				return (*model.CalculateAgeAt)(&model.BinaryExpressionWithPrecision{
					BinaryExpression: &model.BinaryExpression{
						Expression: model.TypeAndSpan(tInt, span),
						Operands:   ops,
					},
					Precision: precision,
				}), nil
			})
		}
	}
	for _, operand := range []types.IType{tCode, tConcept, tStr} {
		a.binary("InValueSet", operand, tVS, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
			return &model.InValueSet{BinaryExpression: b}
		})
		a.binary("InCodeSystem", operand, tCS, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
			return &model.InCodeSystem{BinaryExpression: b}
		})
	}
	a.binary("CanConvertQuantity", tQty, tQty, fixed(tBool), func(b *model.BinaryExpression) model.IExpression {
		return &model.CanConvertQuantity{BinaryExpression: b}
	})
	a.binary("ConvertQuantity", tQty, tQty, fixed(tQty), func(b *model.BinaryExpression) model.IExpression {
		return &model.ConvertQuantity{BinaryExpression: b}
	})

	return a.validateOperatorTables()
}

// binaryPrec registers an overload for an operator carrying a precision.
// The precision itself is attached by the lowering site.
func (a *Analyzer) binaryPrec(name string, left, right types.IType, rt func([]model.IExpression) types.IType, mk func(*model.BinaryExpressionWithPrecision) model.IExpression) {
	a.register(name, []types.IType{left, right}, func(ops []model.IExpression, span diag.Span) (model.IExpression, error) {
		b := &model.BinaryExpressionWithPrecision{
			BinaryExpression: &model.BinaryExpression{
				Expression: model.TypeAndSpan(rt(ops), span),
				Operands:   ops,
			},
		}
		return mk(b), nil
	})
}

func swapOperands(b *model.BinaryExpressionWithPrecision) *model.BinaryExpressionWithPrecision {
	b.Operands = []model.IExpression{b.Operands[1], b.Operands[0]}
	return b
}

// validateOperatorTables catches duplicate registrations early.
func (a *Analyzer) validateOperatorTables() error {
	for name, overloads := range a.builtins {
		for i := range overloads {
			for j := i + 1; j < len(overloads); j++ {
				if convert.ExactMatch(overloads[i].Operands, overloads[j].Operands) {
					return fmt.Errorf("internal error - built-in CQL function %v(%v) registered twice", name, types.ToStrings(overloads[i].Operands))
				}
			}
		}
	}
	return nil
}

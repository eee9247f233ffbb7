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

// Package convert is responsible for all things related to implicit
// conversions: inserting conversion nodes into the model at analysis time
// and scoring overload candidates with the conversion cost model.
package convert

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/types"
)

// ErrAmbiguousMatch is returned when two or more overloads were matched
// with the same score and neither is strictly more specific.
var ErrAmbiguousMatch = errors.New("ambiguous match")

// ErrNoMatch is returned when no overloads were matched.
var ErrNoMatch = errors.New("no matching overloads")

// Conversion costs. Identity is free, numeric promotions are cheap, the
// temporal and code promotions are mid-range, and anything through Any is a
// last resort. Container conversions inherit their element cost plus one.
const (
	costIdentity       = 0
	costIntegerToLong  = 1
	costLongToDecimal  = 1
	costIntToDecimal   = 2
	costDateToDateTime = 5
	costCodeToConcept  = 10
	costAny            = 100
)

// Overload holds the declared operands and the result returned if those
// operands are matched by an invocation.
type Overload[F any] struct {
	Operands []types.IType
	// Result is what is returned by OverloadMatch.
	Result F
}

// MatchedOverload is returned by OverloadMatch.
type MatchedOverload[F any] struct {
	// Result is the result of the overload that was matched.
	Result F
	// WrappedOperands are the operands wrapped in the conversion operators
	// needed to convert them to the matched overload.
	WrappedOperands []model.IExpression
}

// OverloadMatch returns the least-converting overload by summing each
// argument's conversion cost. Cost ties go to the strictly more specific
// candidate (every argument cost <=, at least one <); identical cost
// vectors resolve by declaration order; anything else is ErrAmbiguousMatch.
// Name is only used for error messages.
func OverloadMatch[F any](invoked []model.IExpression, overloads []Overload[F], reg *modelinfo.Registry, name string) (MatchedOverload[F], error) {
	if len(overloads) == 0 {
		return MatchedOverload[F]{}, fmt.Errorf("could not resolve %v(%v): %w", name, OperandsToString(invoked), ErrNoMatch)
	}

	// Replace generic overloads with concrete instantiations for this
	// invocation.
	concrete := make([]Overload[F], 0, len(overloads))
	for _, overload := range overloads {
		if isGeneric(overload.Operands) {
			co, matched, err := instantiateGeneric(invoked, overload, reg)
			if err != nil {
				return MatchedOverload[F]{}, fmt.Errorf("%v(%v): %w", name, OperandsToString(invoked), err)
			}
			if matched {
				concrete = append(concrete, co)
			}
		} else {
			concrete = append(concrete, overload)
		}
	}

	type scored struct {
		overload Overload[F]
		costs    []int
		total    int
		wrapped  []model.IExpression
	}
	var best *scored
	ambiguous := false

	for _, overload := range concrete {
		if len(overload.Operands) != len(invoked) {
			continue
		}
		costs := make([]int, len(invoked))
		wrapped := make([]model.IExpression, len(invoked))
		total := 0
		matched := true
		for i := range invoked {
			res, err := OperandImplicitConverter(invoked[i].GetResultType(), overload.Operands[i], invoked[i], reg)
			if err != nil {
				return MatchedOverload[F]{}, fmt.Errorf("%v(%v): %w", name, OperandsToString(invoked), err)
			}
			if !res.Matched {
				matched = false
				break
			}
			costs[i] = res.Score
			total += res.Score
			wrapped[i] = res.WrappedOperand
		}
		if !matched {
			continue
		}
		cand := scored{overload: overload, costs: costs, total: total, wrapped: wrapped}
		switch {
		case best == nil || cand.total < best.total:
			best = &cand
			ambiguous = false
		case cand.total == best.total:
			switch dominance(best.costs, cand.costs) {
			case 0:
				// Identical cost vectors: declaration order keeps the earlier
				// candidate.
			case 1:
				// best dominates, keep it.
			case -1:
				best = &cand
				ambiguous = false
			default:
				ambiguous = true
			}
		}
	}
	if best == nil {
		var available strings.Builder
		if len(concrete) > 0 {
			available.WriteString(" available overloads: [")
			for i, overload := range concrete {
				if i > 0 {
					available.WriteString(", ")
				}
				available.WriteString(fmt.Sprintf("%v(%v)", name, types.ToStrings(overload.Operands)))
			}
			available.WriteString("]")
		}
		return MatchedOverload[F]{}, fmt.Errorf("could not resolve %v(%v): %w%v",
			name, OperandsToString(invoked), ErrNoMatch, available.String())
	}
	if ambiguous {
		return MatchedOverload[F]{}, fmt.Errorf("%v(%v) %w", name, OperandsToString(invoked), ErrAmbiguousMatch)
	}
	return MatchedOverload[F]{Result: best.overload.Result, WrappedOperands: best.wrapped}, nil
}

// dominance compares per-argument cost vectors: 0 identical, 1 when a
// dominates (all <=, some <), -1 when b dominates, 2 when incomparable.
func dominance(a, b []int) int {
	aBetter, bBetter := false, false
	for i := range a {
		if a[i] < b[i] {
			aBetter = true
		}
		if b[i] < a[i] {
			bBetter = true
		}
	}
	switch {
	case !aBetter && !bBetter:
		return 0
	case aBetter && !bBetter:
		return 1
	case bBetter && !aBetter:
		return -1
	}
	return 2
}

// ConvertedOperand is the result of OperandImplicitConverter.
type ConvertedOperand struct {
	// Matched is true if the invoked type can be implicitly converted to the
	// declared type.
	Matched bool
	// Score is the conversion cost.
	Score int
	// WrappedOperand is the operand wrapped in the conversion operators
	// needed to convert it.
	WrappedOperand model.IExpression
}

// OperandImplicitConverter wraps the operand in the system operators needed
// to convert it from invokedType to declaredType, always returning the
// least-converting path. It may be called with a nil opToWrap when only the
// score matters.
func OperandImplicitConverter(invokedType, declaredType types.IType, opToWrap model.IExpression, reg *modelinfo.Registry) (ConvertedOperand, error) {
	if invokedType == nil || invokedType == types.Unset {
		return ConvertedOperand{}, fmt.Errorf("internal error - invokedType is %v", invokedType)
	}
	if declaredType == nil || declaredType == types.Unset {
		return ConvertedOperand{}, fmt.Errorf("internal error - declaredType is %v", declaredType)
	}

	// EXACT MATCH
	if invokedType.Equal(declaredType) {
		return ConvertedOperand{Matched: true, Score: costIdentity, WrappedOperand: opToWrap}, nil
	}

	min := ConvertedOperand{Score: math.MaxInt}
	consider := func(c ConvertedOperand) {
		if c.Matched && c.Score < min.Score {
			min = c
		}
	}

	// NULL / ANY: everything converts from Any through a non-strict cast.
	if invokedType.Equal(types.Any) {
		consider(ConvertedOperand{
			Matched:        true,
			Score:          costAny,
			WrappedOperand: wrapAs(opToWrap, declaredType),
		})
	}
	// Every type converts to Any, the top type.
	if declaredType.Equal(types.Any) {
		consider(ConvertedOperand{Matched: true, Score: costAny, WrappedOperand: opToWrap})
	}

	// SUBTYPE and promotion chains.
	if cost, ok := promotionCost(invokedType, declaredType, reg); ok {
		consider(ConvertedOperand{
			Matched:        true,
			Score:          cost,
			WrappedOperand: wrapPromotion(opToWrap, invokedType, declaredType),
		})
	}

	// CHOICE on the invoked side: cast to the alternative, then convert.
	if invokedChoice, ok := invokedType.(*types.Choice); ok {
		for _, alt := range invokedChoice.ChoiceTypes {
			r, err := OperandImplicitConverter(alt, declaredType, wrapAs(opToWrap, alt), reg)
			if err != nil {
				return ConvertedOperand{}, err
			}
			if r.Matched {
				r.Score++
				consider(r)
			}
		}
	}

	// CHOICE on the declared side: convert to the alternative, then cast up.
	if declaredChoice, ok := declaredType.(*types.Choice); ok {
		for _, alt := range declaredChoice.ChoiceTypes {
			r, err := OperandImplicitConverter(invokedType, alt, opToWrap, reg)
			if err != nil {
				return ConvertedOperand{}, err
			}
			if r.Matched {
				consider(ConvertedOperand{
					Matched:        true,
					Score:          r.Score + 1,
					WrappedOperand: wrapAs(r.WrappedOperand, declaredType),
				})
			}
		}
	}

	// Covariant containers inherit the element conversion cost plus one.
	if invokedInterval, ok := invokedType.(*types.Interval); ok {
		if declaredInterval, ok := declaredType.(*types.Interval); ok {
			low := &model.Property{Source: opToWrap, Path: "low", Expression: model.ResultType(invokedInterval.PointType)}
			high := &model.Property{Source: opToWrap, Path: "high", Expression: model.ResultType(invokedInterval.PointType)}
			rLow, err := OperandImplicitConverter(invokedInterval.PointType, declaredInterval.PointType, low, reg)
			if err != nil {
				return ConvertedOperand{}, err
			}
			rHigh, err := OperandImplicitConverter(invokedInterval.PointType, declaredInterval.PointType, high, reg)
			if err != nil {
				return ConvertedOperand{}, err
			}
			if rLow.Matched && rHigh.Matched {
				wrapped := &model.Interval{
					Low:  rLow.WrappedOperand,
					High: rHigh.WrappedOperand,
					// The operand can be any interval expression, so the bound
					// flags are forwarded as properties.
					LowClosedExpression:  &model.Property{Source: opToWrap, Path: "lowClosed", Expression: model.ResultType(types.Boolean)},
					HighClosedExpression: &model.Property{Source: opToWrap, Path: "highClosed", Expression: model.ResultType(types.Boolean)},
					Expression:           model.ResultType(declaredType),
				}
				consider(ConvertedOperand{Matched: true, Score: rLow.Score + 1, WrappedOperand: wrapped})
			}
		}
	}
	if invokedList, ok := invokedType.(*types.List); ok {
		if declaredList, ok := declaredType.(*types.List); ok {
			ref := &model.AliasRef{Name: "X", Expression: model.ResultType(invokedList.ElementType)}
			r, err := OperandImplicitConverter(invokedList.ElementType, declaredList.ElementType, ref, reg)
			if err != nil {
				return ConvertedOperand{}, err
			}
			if r.Matched {
				wrapped := &model.Query{
					Source: []*model.AliasedSource{{
						Alias:      "X",
						Source:     opToWrap,
						Expression: model.ResultType(invokedList),
					}},
					Return: &model.ReturnClause{
						Expression: r.WrappedOperand,
						Distinct:   false,
						Element:    &model.Element{ResultType: declaredList.ElementType},
					},
					Expression: model.ResultType(declaredType),
				}
				consider(ConvertedOperand{Matched: true, Score: r.Score + 1, WrappedOperand: wrapped})
			}
		}
	}

	if min.Score == math.MaxInt {
		return ConvertedOperand{Matched: false}, nil
	}
	return min, nil
}

// promotionCost returns the implicit conversion cost along the subtype and
// promotion chains, false when none applies.
func promotionCost(from, to types.IType, reg *modelinfo.Registry) (int, bool) {
	fromSys, fromIsSys := from.(types.System)
	toSys, toIsSys := to.(types.System)
	if fromIsSys && toIsSys {
		switch {
		case fromSys == types.Integer && toSys == types.Long:
			return costIntegerToLong, true
		case fromSys == types.Long && toSys == types.Decimal:
			return costLongToDecimal, true
		case fromSys == types.Integer && toSys == types.Decimal:
			return costIntToDecimal, true
		case fromSys == types.Date && toSys == types.DateTime:
			return costDateToDateTime, true
		case fromSys == types.Code && toSys == types.Concept:
			return costCodeToConcept, true
		case (fromSys == types.ValueSet || fromSys == types.CodeSystem) && toSys == types.Vocabulary:
			return costIntegerToLong, true
		}
		return 0, false
	}
	// Class-type subtyping through the model hierarchy.
	if _, ok := from.(*types.Named); ok {
		if types.SubTypeOf(from, to, reg) {
			return costIntegerToLong, true
		}
	}
	return 0, false
}

// wrapPromotion wraps an operand in the conversion operator for a
// promotion. Subtype relations that need no runtime conversion pass the
// operand through.
func wrapPromotion(op model.IExpression, from, to types.IType) model.IExpression {
	if op == nil {
		return nil
	}
	unary := func() *model.UnaryExpression {
		return &model.UnaryExpression{Operand: op, Expression: model.ResultType(to)}
	}
	switch to {
	case types.Long:
		return &model.ToLong{UnaryExpression: unary()}
	case types.Decimal:
		return &model.ToDecimal{UnaryExpression: unary()}
	case types.DateTime:
		return &model.ToDateTime{UnaryExpression: unary()}
	case types.Concept:
		return &model.ToConcept{UnaryExpression: unary()}
	}
	return op
}

func wrapAs(op model.IExpression, to types.IType) model.IExpression {
	if op == nil {
		return nil
	}
	return &model.As{
		UnaryExpression: &model.UnaryExpression{
			Operand:    op,
			Expression: model.ResultType(to),
		},
		AsTypeSpecifier: to,
		Strict:          false,
	}
}

// OperandsToString returns a print friendly representation of the operands.
func OperandsToString(operands []model.IExpression) string {
	var sb strings.Builder
	for i, operand := range operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		if operand == nil || operand.GetResultType() == nil {
			sb.WriteString("nil")
		} else {
			sb.WriteString(operand.GetResultType().String())
		}
	}
	return sb.String()
}

// OperandsToTypes returns the result types of the operands.
func OperandsToTypes(operands []model.IExpression) []types.IType {
	var out []types.IType
	for _, operand := range operands {
		out = append(out, operand.GetResultType())
	}
	return out
}

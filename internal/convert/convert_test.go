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

package convert

import (
	"errors"
	"testing"

	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/types"
)

func literalOf(t types.IType) model.IExpression {
	return &model.Literal{Expression: model.ResultType(t), Value: "x"}
}

func TestOperandImplicitConverterCosts(t *testing.T) {
	reg := modelinfo.NewRegistry()
	tests := []struct {
		name     string
		from, to types.IType
		want     int
		matched  bool
	}{
		{"identity", types.Integer, types.Integer, 0, true},
		{"integer to long", types.Integer, types.Long, 1, true},
		{"long to decimal", types.Long, types.Decimal, 1, true},
		{"integer to decimal", types.Integer, types.Decimal, 2, true},
		{"date to datetime", types.Date, types.DateTime, 5, true},
		{"code to concept", types.Code, types.Concept, 10, true},
		{"any to anything", types.Any, types.Integer, 100, true},
		{"list element inherits", &types.List{ElementType: types.Integer}, &types.List{ElementType: types.Decimal}, 3, true},
		{"interval point inherits", &types.Interval{PointType: types.Date}, &types.Interval{PointType: types.DateTime}, 6, true},
		{"no narrowing", types.Decimal, types.Integer, 0, false},
		{"no cross kind", types.String, types.Integer, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := OperandImplicitConverter(tc.from, tc.to, literalOf(tc.from), reg)
			if err != nil {
				t.Fatalf("OperandImplicitConverter: %v", err)
			}
			if got.Matched != tc.matched {
				t.Fatalf("Matched = %v, want %v", got.Matched, tc.matched)
			}
			if tc.matched && got.Score != tc.want {
				t.Errorf("Score = %d, want %d", got.Score, tc.want)
			}
		})
	}
}

func TestOverloadMatchPicksLowestCost(t *testing.T) {
	reg := modelinfo.NewRegistry()
	overloads := []Overload[string]{
		{Operands: []types.IType{types.Decimal}, Result: "decimal"},
		{Operands: []types.IType{types.Long}, Result: "long"},
		{Operands: []types.IType{types.Integer}, Result: "integer"},
	}
	matched, err := OverloadMatch([]model.IExpression{literalOf(types.Integer)}, overloads, reg, "Test")
	if err != nil {
		t.Fatalf("OverloadMatch: %v", err)
	}
	if matched.Result != "integer" {
		t.Errorf("Result = %q, want the identity overload", matched.Result)
	}
}

func TestOverloadMatchAmbiguous(t *testing.T) {
	reg := modelinfo.NewRegistry()
	// Integer converts to Long and to Date-free Decimal at different costs,
	// so force a genuine tie with two single-conversion candidates.
	overloads := []Overload[string]{
		{Operands: []types.IType{types.Long, types.Integer}, Result: "a"},
		{Operands: []types.IType{types.Integer, types.Long}, Result: "b"},
	}
	_, err := OverloadMatch(
		[]model.IExpression{literalOf(types.Integer), literalOf(types.Integer)},
		overloads, reg, "Test")
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("got %v, want ErrAmbiguousMatch", err)
	}
}

func TestOverloadMatchDeclarationOrderTie(t *testing.T) {
	reg := modelinfo.NewRegistry()
	// Identical signatures: declaration order wins deterministically.
	overloads := []Overload[string]{
		{Operands: []types.IType{types.Integer}, Result: "first"},
		{Operands: []types.IType{types.Integer}, Result: "second"},
	}
	matched, err := OverloadMatch([]model.IExpression{literalOf(types.Integer)}, overloads, reg, "Test")
	if err != nil {
		t.Fatalf("OverloadMatch: %v", err)
	}
	if matched.Result != "first" {
		t.Errorf("Result = %q, want the earlier declaration", matched.Result)
	}
}

func TestOverloadMatchNoMatch(t *testing.T) {
	reg := modelinfo.NewRegistry()
	overloads := []Overload[string]{
		{Operands: []types.IType{types.String}, Result: "s"},
	}
	_, err := OverloadMatch([]model.IExpression{literalOf(types.Integer)}, overloads, reg, "Test")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("got %v, want ErrNoMatch", err)
	}
}

func TestGenericOverloads(t *testing.T) {
	reg := modelinfo.NewRegistry()
	overloads := []Overload[string]{
		{Operands: []types.IType{GenericType, GenericType}, Result: "equal"},
	}
	matched, err := OverloadMatch(
		[]model.IExpression{literalOf(types.Integer), literalOf(types.Decimal)},
		overloads, reg, "Equal")
	if err != nil {
		t.Fatalf("OverloadMatch: %v", err)
	}
	if matched.Result != "equal" {
		t.Errorf("Result = %q", matched.Result)
	}
	// The integer operand is wrapped in a conversion to the unified Decimal.
	if _, ok := matched.WrappedOperands[0].(*model.ToDecimal); !ok {
		t.Errorf("first operand = %T, want ToDecimal wrapper", matched.WrappedOperands[0])
	}

	listOverloads := []Overload[string]{
		{Operands: []types.IType{GenericList}, Result: "list"},
	}
	if _, err := OverloadMatch(
		[]model.IExpression{literalOf(&types.List{ElementType: types.Integer})},
		listOverloads, reg, "Exists"); err != nil {
		t.Fatalf("generic list overload: %v", err)
	}
}

func TestExactOverloadMatch(t *testing.T) {
	reg := modelinfo.NewRegistry()
	overloads := []Overload[string]{
		{Operands: []types.IType{types.Decimal}, Result: "decimal"},
		{Operands: []types.IType{types.Integer}, Result: "integer"},
	}
	got, err := ExactOverloadMatch([]types.IType{types.Integer}, overloads, reg, "Test")
	if err != nil {
		t.Fatalf("ExactOverloadMatch: %v", err)
	}
	if got != "integer" {
		t.Errorf("got %q, want integer", got)
	}
	if _, err := ExactOverloadMatch([]types.IType{types.String}, overloads, reg, "Test"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("got %v, want ErrNoMatch", err)
	}
}

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

	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/types"
)

// Generic types define the generic system-operator overloads, the overloads
// with T in the CQL reference. Only the analyzer's operator tables use
// them; the model's ResultType is never Generic.
type Generic string

const (
	// GenericType represents a generic CQL type, shown as T in the CQL
	// reference. Never nest a GenericType inside a real type; use the
	// wrappers below.
	GenericType Generic = "GenericType"
	// GenericInterval represents Interval<T>.
	GenericInterval Generic = "GenericInterval"
	// GenericList represents List<T>.
	GenericList Generic = "GenericList"
)

// Equal is a strict equal.
func (g Generic) Equal(a types.IType) bool {
	aBase, ok := a.(Generic)
	if !ok {
		return false
	}
	return g == aBase
}

// String implements fmt.Stringer.
func (g Generic) String() string {
	return "Generic." + string(g)
}

// TypeName should never be called for Generics.
func (g Generic) TypeName() (string, error) {
	return "", errors.New("generic type does not have a type name")
}

// MarshalJSON should never be called for Generics.
func (g Generic) MarshalJSON() ([]byte, error) {
	return nil, errors.New("generics should not be marshalled")
}

func isGeneric(operands []types.IType) bool {
	for _, operand := range operands {
		if operand.Equal(GenericType) || operand.Equal(GenericInterval) || operand.Equal(GenericList) {
			return true
		}
	}
	return false
}

// instantiateGeneric takes the invoked operands, a generic overload such as
// (T, String, T) and returns the least-converting concrete overload that
// satisfies the generic constraints. False means no concrete instantiation
// works.
func instantiateGeneric[F any](invoked []model.IExpression, genericDeclared Overload[F], reg *modelinfo.Registry) (Overload[F], bool, error) {
	if len(invoked) != len(genericDeclared.Operands) {
		return Overload[F]{}, false, nil
	}

	// Collect the invoked types that must unify with T.
	var genericInvoked []types.IType
	for i := range invoked {
		switch genericDeclared.Operands[i] {
		case GenericType:
			genericInvoked = append(genericInvoked, invoked[i].GetResultType())
		case GenericInterval:
			if interval, ok := invoked[i].GetResultType().(*types.Interval); ok {
				genericInvoked = append(genericInvoked, interval.PointType)
			} else {
				genericInvoked = append(genericInvoked, invoked[i].GetResultType())
			}
		case GenericList:
			if list, ok := invoked[i].GetResultType().(*types.List); ok {
				genericInvoked = append(genericInvoked, list.ElementType)
			} else {
				genericInvoked = append(genericInvoked, invoked[i].GetResultType())
			}
		}
	}

	inferred := types.CommonSupertype(reg, genericInvoked...)

	concrete := make([]types.IType, len(genericDeclared.Operands))
	for i := range genericDeclared.Operands {
		switch genericDeclared.Operands[i] {
		case GenericType:
			concrete[i] = inferred
		case GenericInterval:
			if _, ok := inferred.(*types.Interval); ok {
				concrete[i] = inferred
			} else {
				concrete[i] = &types.Interval{PointType: inferred}
			}
		case GenericList:
			concrete[i] = &types.List{ElementType: inferred}
		default:
			concrete[i] = genericDeclared.Operands[i]
		}
	}

	genericDeclared.Operands = concrete
	return genericDeclared, true, nil
}

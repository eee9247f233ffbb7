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
	"fmt"

	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/types"
)

// ExactOverloadMatch finds the overload whose declared operands admit the
// invoked runtime types by identity or subtyping, with no implicit
// conversions. The interpreter uses this to dispatch user-defined function
// calls: the analyzer has already materialized all conversions, so runtime
// resolution never converts.
func ExactOverloadMatch[F any](invoked []types.IType, overloads []Overload[F], reg *modelinfo.Registry, name string) (F, error) {
	var zero F
	var matched []Overload[F]
	for _, overload := range overloads {
		if len(overload.Operands) != len(invoked) {
			continue
		}
		ok := true
		for i := range invoked {
			if invoked[i] == nil {
				ok = false
				break
			}
			if !invoked[i].Equal(overload.Operands[i]) && !types.SubTypeOf(invoked[i], overload.Operands[i], reg) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, overload)
		}
	}
	switch len(matched) {
	case 0:
		return zero, fmt.Errorf("could not resolve %v(%v): %w", name, types.ToStrings(invoked), ErrNoMatch)
	case 1:
		return matched[0].Result, nil
	default:
		// Prefer an identity match before declaring ambiguity.
		for _, overload := range matched {
			exact := true
			for i := range invoked {
				if !invoked[i].Equal(overload.Operands[i]) {
					exact = false
					break
				}
			}
			if exact {
				return overload.Result, nil
			}
		}
		// Declaration order breaks remaining ties deterministically.
		return matched[0].Result, nil
	}
}

// ExactMatch reports whether two operand lists are identical types.
func ExactMatch(a, b []types.IType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

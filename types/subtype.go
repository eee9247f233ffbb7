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

package types

// ClassHierarchy supplies base-type edges for Named (model defined) types.
// The model provider implements this; a nil hierarchy means Named types are
// only subtypes of themselves and Any.
type ClassHierarchy interface {
	// BaseOf returns the fully qualified base type name for the named type,
	// or false if the type has no base (other than Any).
	BaseOf(typeName string) (string, bool)
}

// SubTypeOf reports whether sub <: super in the CQL lattice. The relation is
// reflexive; Any is the top; the numeric chain is
// Integer <: Long <: Decimal; Code <: Concept; Date <: DateTime;
// ValueSet and CodeSystem are subtypes of Vocabulary; List and Interval are
// covariant in their element/point type; Tuple uses structural width
// subtyping; Choice matches if any alternative matches on either side.
func SubTypeOf(sub, super IType, h ClassHierarchy) bool {
	if sub == nil || super == nil {
		return false
	}
	if super.Equal(Any) {
		return true
	}
	if sub.Equal(super) {
		return true
	}

	// Choice on either side: any alternative may satisfy the relation.
	if subChoice, ok := sub.(*Choice); ok {
		for _, alt := range subChoice.ChoiceTypes {
			if SubTypeOf(alt, super, h) {
				return true
			}
		}
		return false
	}
	if superChoice, ok := super.(*Choice); ok {
		for _, alt := range superChoice.ChoiceTypes {
			if SubTypeOf(sub, alt, h) {
				return true
			}
		}
		return false
	}

	switch s := sub.(type) {
	case System:
		for _, base := range systemBases(s) {
			if SubTypeOf(base, super, h) {
				return true
			}
		}
		return false
	case *Named:
		if h == nil {
			return false
		}
		if baseName, ok := h.BaseOf(s.Name); ok {
			return SubTypeOf(typeFromName(baseName), super, h)
		}
		return false
	case *List:
		superList, ok := super.(*List)
		if !ok {
			return false
		}
		return SubTypeOf(s.ElementType, superList.ElementType, h)
	case *Interval:
		superInterval, ok := super.(*Interval)
		if !ok {
			return false
		}
		return SubTypeOf(s.PointType, superInterval.PointType, h)
	case *Tuple:
		superTuple, ok := super.(*Tuple)
		if !ok {
			return false
		}
		// Width subtyping: every field of the target must exist in the source
		// with a subtype compatible type.
		for name, superElem := range superTuple.ElementTypes {
			subElem, ok := s.ElementTypes[name]
			if !ok {
				return false
			}
			if !SubTypeOf(subElem, superElem, h) {
				return false
			}
		}
		return true
	}
	return false
}

// systemBases returns the direct supertypes of a system type, excluding Any.
func systemBases(s System) []IType {
	switch s {
	case Integer:
		return []IType{Long}
	case Long:
		return []IType{Decimal}
	case Code:
		return []IType{Concept}
	case Date:
		return []IType{DateTime}
	case ValueSet, CodeSystem:
		return []IType{Vocabulary}
	}
	return nil
}

// typeFromName resolves a qualified name to a System or Named type.
func typeFromName(name string) IType {
	if s := ToSystem(name); s != Unset {
		return s
	}
	return &Named{Name: name}
}

// CommonSupertype returns the least common ancestor of the given types,
// widening along the numeric, temporal and code chains, falling back to
// Choice-free Any when no chain connects them. Nil entries are skipped (a
// null literal takes the type of its siblings).
func CommonSupertype(h ClassHierarchy, ts ...IType) IType {
	var acc IType
	for _, t := range ts {
		if t == nil || t.Equal(Any) {
			continue
		}
		if acc == nil {
			acc = t
			continue
		}
		acc = commonPair(acc, t, h)
	}
	if acc == nil {
		return Any
	}
	return acc
}

func commonPair(a, b IType, h ClassHierarchy) IType {
	if SubTypeOf(a, b, h) {
		return b
	}
	if SubTypeOf(b, a, h) {
		return a
	}
	// Covariant containers widen element-wise.
	if aList, ok := a.(*List); ok {
		if bList, ok := b.(*List); ok {
			return &List{ElementType: commonPair(aList.ElementType, bList.ElementType, h)}
		}
	}
	if aInterval, ok := a.(*Interval); ok {
		if bInterval, ok := b.(*Interval); ok {
			return &Interval{PointType: commonPair(aInterval.PointType, bInterval.PointType, h)}
		}
	}
	// Walk the chains upward from a looking for an ancestor of b.
	for _, ancestor := range ancestors(a, h) {
		if SubTypeOf(b, ancestor, h) {
			return ancestor
		}
	}
	return Any
}

// ancestors returns all strict supertypes of t in chain order, ending with Any.
func ancestors(t IType, h ClassHierarchy) []IType {
	var out []IType
	switch v := t.(type) {
	case System:
		for _, base := range systemBases(v) {
			out = append(out, base)
			out = append(out, ancestors(base, h)...)
		}
	case *Named:
		if h != nil {
			if baseName, ok := h.BaseOf(v.Name); ok {
				base := typeFromName(baseName)
				out = append(out, base)
				out = append(out, ancestors(base, h)...)
			}
		}
	}
	out = append(out, Any)
	return out
}

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

package diag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSpan(t *testing.T) {
	s := NewSpan(2, 5)
	if s.Len() != 3 || s.IsEmpty() {
		t.Errorf("span %v: Len=%d IsEmpty=%v", s, s.Len(), s.IsEmpty())
	}
	if p := Point(4); !p.IsEmpty() {
		t.Errorf("point span %v should be empty", p)
	}
	m := NewSpan(2, 5).Merge(NewSpan(4, 9))
	if m != (Span{Start: 2, End: 9}) {
		t.Errorf("Merge = %v", m)
	}
	if !NewSpan(0, 10).Contains(NewSpan(2, 5)) {
		t.Error("Contains failed")
	}
	if NewSpan(0, 3).Contains(NewSpan(2, 5)) {
		t.Error("Contains accepted an overlapping span")
	}
}

func TestSourceMapPositions(t *testing.T) {
	src := "define A: 1\ndefine B:\n  2"
	m := NewSourceMap(src)
	tests := []struct {
		offset   int
		line, col int
	}{
		{0, 1, 1},
		{7, 1, 8},
		{12, 2, 1},
		{24, 3, 3},
	}
	for _, tc := range tests {
		line, col := m.Position(tc.offset)
		if line != tc.line || col != tc.col {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", tc.offset, line, col, tc.line, tc.col)
		}
	}
	if got := m.Snippet(NewSpan(0, 6)); got != "define" {
		t.Errorf("Snippet = %q", got)
	}
}

func TestCodeGroups(t *testing.T) {
	tests := []struct {
		code Code
		want Group
	}{
		{UnexpectedToken, ParseGroup},
		{TypeMismatch, SemanticGroup},
		{DivisionByZero, EvaluationGroup},
		{UnknownType, ModelGroup},
		{IOError, SystemGroup},
	}
	for _, tc := range tests {
		if got := tc.code.Group(); got != tc.want {
			t.Errorf("%v.Group() = %v, want %v", tc.code, got, tc.want)
		}
	}
	if got := DivisionByZero.String(); got != "CQL0200" {
		t.Errorf("String() = %q, want CQL0200", got)
	}
}

func TestSortDiagnostics(t *testing.T) {
	loc := func(start int) *Location {
		return &Location{Span: NewSpan(start, start + 1), Line: 1, Col: start + 1}
	}
	ds := []Diagnostic{
		{Severity: SeverityWarning, Code: PrecisionLoss, Location: loc(0)},
		{Severity: SeverityError, Code: TypeMismatch, Location: loc(9)},
		{Severity: SeverityError, Code: UnexpectedToken, Location: loc(3)},
	}
	Sort(ds)
	var got []Code
	for _, d := range ds {
		got = append(got, d.Code)
	}
	want := []Code{UnexpectedToken, TypeMismatch, PrecisionLoss}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sorted order (-want +got):\n%s", diff)
	}
}

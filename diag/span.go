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

// Package diag holds source spans and structured diagnostics shared by the
// parser, analyzer and interpreter.
package diag

import "fmt"

// Span is a half-open byte range [Start, End) into the original source text.
// Every AST and ELM node carries one.
type Span struct {
	Start int
	End   int
}

// NewSpan returns the span [start, end).
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// Point returns a zero-width span at pos.
func Point(pos int) Span {
	return Span{Start: pos, End: pos}
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool { return s.Start >= s.End }

// Merge returns the smallest span covering both s and o.
func (s Span) Merge(o Span) Span {
	m := s
	if o.Start < m.Start {
		m.Start = o.Start
	}
	if o.End > m.End {
		m.End = o.End
	}
	return m
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// String implements fmt.Stringer.
func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// SourceMap derives line and column information from a source buffer on
// demand. Line starts are computed once at construction; lookups are a
// binary search.
type SourceMap struct {
	src        string
	lineStarts []int
}

// NewSourceMap indexes src for line/column lookups.
func NewSourceMap(src string) *SourceMap {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &SourceMap{src: src, lineStarts: starts}
}

// Position returns the 1-based line and column of the byte offset. Offsets
// past the end of the source resolve to the last position.
func (m *SourceMap) Position(offset int) (line, col int) {
	if offset > len(m.src) {
		offset = len(m.src)
	}
	lo, hi := 0, len(m.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - m.lineStarts[lo] + 1
}

// Snippet returns the source text covered by the span.
func (m *SourceMap) Snippet(s Span) string {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > len(m.src) {
		end = len(m.src)
	}
	if start >= end {
		return ""
	}
	return m.src[start:end]
}

// Location is a resolved source location: the span plus derived line/column
// of its start.
type Location struct {
	Span Span
	Line int
	Col  int
}

// Locate resolves a span against the source map.
func (m *SourceMap) Locate(s Span) Location {
	line, col := m.Position(s.Start)
	return Location{Span: s, Line: line, Col: col}
}

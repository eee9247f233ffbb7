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

package parser

import (
	"strings"

	"github.com/octofhir/cql-go/ast"
)

// datePrecision derives the precision of a date literal body
// (YYYY[-MM[-DD]]) from its shape. The full value check happens in the
// analyzer via datehelpers.
func datePrecision(text string) (ast.DateTimePrecision, bool) {
	switch strings.Count(text, "-") {
	case 0:
		if len(text) == 4 {
			return ast.PrecisionYear, true
		}
	case 1:
		return ast.PrecisionMonth, true
	case 2:
		return ast.PrecisionDay, true
	}
	return ast.PrecisionUnset, false
}

// dateTimePrecision derives the precision of a datetime literal body
// (YYYY-MM-DDThh[:mm[:ss[.fff]]][Z|(+|-)hh:mm]).
func dateTimePrecision(text string) (ast.DateTimePrecision, bool) {
	tIdx := strings.IndexByte(text, 'T')
	if tIdx < 0 {
		return ast.PrecisionUnset, false
	}
	datePart := text[:tIdx]
	if _, ok := datePrecision(datePart); !ok {
		return ast.PrecisionUnset, false
	}
	timePart := text[tIdx+1:]
	// A bare T promotes a date to a DateTime at its date precision.
	if timePart == "" {
		return datePrecision(datePart)
	}
	return timeOfDayPrecision(trimOffset(timePart))
}

// timePrecision derives the precision of a time literal body
// (hh[:mm[:ss[.fff]]]).
func timePrecision(text string) (ast.DateTimePrecision, bool) {
	return timeOfDayPrecision(text)
}

func trimOffset(timePart string) string {
	if i := strings.IndexAny(timePart, "Z+"); i >= 0 {
		return timePart[:i]
	}
	// A minus inside the time-of-day can only start an offset.
	if i := strings.IndexByte(timePart, '-'); i >= 0 {
		return timePart[:i]
	}
	return timePart
}

func timeOfDayPrecision(text string) (ast.DateTimePrecision, bool) {
	if text == "" {
		return ast.PrecisionUnset, false
	}
	if strings.Contains(text, ".") {
		return ast.PrecisionMillisecond, true
	}
	switch strings.Count(text, ":") {
	case 0:
		return ast.PrecisionHour, true
	case 1:
		return ast.PrecisionMinute, true
	case 2:
		return ast.PrecisionSecond, true
	}
	return ast.PrecisionUnset, false
}

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

package datehelpers

import (
	"fmt"
	"time"

	"github.com/octofhir/cql-go/model"
)

// Comparison is the result of a precision-aware temporal comparison.
type Comparison int

// Comparison outcomes. Uncertain is returned when the shared prefix is
// equal but the precisions differ, and surfaces to CQL as null.
const (
	Uncertain Comparison = iota - 2
	Less
	EqualTo
	Greater
)

// precisionIndex orders precisions coarse to fine. Week is not a
// comparison precision.
func precisionIndex(p model.DateTimePrecision) (int, error) {
	switch p {
	case model.YEAR:
		return 0, nil
	case model.MONTH:
		return 1, nil
	case model.DAY:
		return 2, nil
	case model.HOUR:
		return 3, nil
	case model.MINUTE:
		return 4, nil
	case model.SECOND:
		return 5, nil
	case model.MILLISECOND:
		return 6, nil
	}
	return 0, fmt.Errorf("%v %w", p, ErrUnsupportedPrecision)
}

// PrecisionAtLeast reports whether p is at least as fine as min.
func PrecisionAtLeast(p, min model.DateTimePrecision) (bool, error) {
	pi, err := precisionIndex(p)
	if err != nil {
		return false, err
	}
	mi, err := precisionIndex(min)
	if err != nil {
		return false, err
	}
	return pi >= mi, nil
}

// component extracts the precision component of a UTC-normalized time.
// Date and DateTime values compare after normalizing to UTC; Time values
// are already wall-clock UTC.
func component(t time.Time, idx int) int {
	switch idx {
	case 0:
		return t.Year()
	case 1:
		return int(t.Month())
	case 2:
		return t.Day()
	case 3:
		return t.Hour()
	case 4:
		return t.Minute()
	case 5:
		return t.Second()
	default:
		return t.Nanosecond() / int(time.Millisecond)
	}
}

// CompareWithPrecision compares two temporal values component by component,
// stopping at the coarser of the two precisions (or at cutoff if finer).
// Equality on the shared prefix with equal precision is EqualTo; inequality
// on any compared component is that ordering; equality on the shared prefix
// with unequal precision is Uncertain.
//
// Timezone-aware values are normalized to UTC before comparison.
func CompareWithPrecision(a time.Time, aPrec model.DateTimePrecision, b time.Time, bPrec model.DateTimePrecision, cutoff model.DateTimePrecision) (Comparison, error) {
	aIdx, err := precisionIndex(aPrec)
	if err != nil {
		return Uncertain, err
	}
	bIdx, err := precisionIndex(bPrec)
	if err != nil {
		return Uncertain, err
	}
	shared := aIdx
	if bIdx < shared {
		shared = bIdx
	}
	limited := false
	if cutoff != model.UNSETDATETIMEPRECISION {
		cIdx, err := precisionIndex(cutoff)
		if err != nil {
			return Uncertain, err
		}
		if cIdx <= shared {
			shared = cIdx
			limited = true
		}
	}

	au, bu := a.UTC(), b.UTC()
	for i := 0; i <= shared; i++ {
		ac, bc := component(au, i), component(bu, i)
		if ac < bc {
			return Less, nil
		}
		if ac > bc {
			return Greater, nil
		}
	}
	if limited || aIdx == bIdx {
		return EqualTo, nil
	}
	return Uncertain, nil
}

// Compare compares at the shared precision of the operands.
func Compare(a time.Time, aPrec model.DateTimePrecision, b time.Time, bPrec model.DateTimePrecision) (Comparison, error) {
	return CompareWithPrecision(a, aPrec, b, bPrec, model.UNSETDATETIMEPRECISION)
}

// Component returns the value of the given precision component, and false
// when the value's precision is coarser than the requested component.
func Component(t time.Time, prec model.DateTimePrecision, want model.DateTimePrecision) (int, bool, error) {
	pIdx, err := precisionIndex(prec)
	if err != nil {
		return 0, false, err
	}
	wIdx, err := precisionIndex(want)
	if err != nil {
		return 0, false, err
	}
	if wIdx > pIdx {
		return 0, false, nil
	}
	return component(t, wIdx), true, nil
}

// AddQuantity adds a count of precision units to a temporal value,
// preserving the original precision. Additions below the value's precision
// are a no-op per the CQL arithmetic rules.
func AddQuantity(t time.Time, prec model.DateTimePrecision, unit model.DateTimePrecision, count int) (time.Time, error) {
	pIdx, err := precisionIndex(prec)
	if err != nil {
		return time.Time{}, err
	}
	var uIdx int
	if unit == model.WEEK {
		// Weeks add at day granularity.
		uIdx = 2
		count *= 7
	} else {
		uIdx, err = precisionIndex(unit)
		if err != nil {
			return time.Time{}, err
		}
	}
	if uIdx > pIdx {
		return t, nil
	}
	switch uIdx {
	case 0:
		return addMonths(t, count*12), nil
	case 1:
		return addMonths(t, count), nil
	case 2:
		return t.AddDate(0, 0, count), nil
	case 3:
		return t.Add(time.Duration(count) * time.Hour), nil
	case 4:
		return t.Add(time.Duration(count) * time.Minute), nil
	case 5:
		return t.Add(time.Duration(count) * time.Second), nil
	default:
		return t.Add(time.Duration(count) * time.Millisecond), nil
	}
}

// addMonths adds calendar months, clamping the day-of-month to the length
// of the target month rather than normalizing past it. January 31 plus one
// month is the last day of February.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := year*12 + int(month) - 1 + months
	newYear := total / 12
	newMonth := total % 12
	if newMonth < 0 {
		newMonth += 12
		newYear--
	}
	maxDay := daysIn(newYear, time.Month(newMonth+1))
	if day > maxDay {
		day = maxDay
	}
	hour, minute, sec := t.Clock()
	return time.Date(newYear, time.Month(newMonth+1), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in a month, per the proleptic
// Gregorian calendar.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DurationBetween returns the whole number of precision units between two
// temporal values. When either operand's precision is coarser than the
// requested unit the result is uncertain and ok is false.
func DurationBetween(a time.Time, aPrec model.DateTimePrecision, b time.Time, bPrec model.DateTimePrecision, unit model.DateTimePrecision) (int64, bool, error) {
	uIdx, err := precisionIndex(unit)
	if err != nil {
		return 0, false, err
	}
	aIdx, err := precisionIndex(aPrec)
	if err != nil {
		return 0, false, err
	}
	bIdx, err := precisionIndex(bPrec)
	if err != nil {
		return 0, false, err
	}
	if uIdx > aIdx || uIdx > bIdx {
		return 0, false, nil
	}

	au, bu := a.UTC(), b.UTC()
	switch uIdx {
	case 0, 1:
		months := int64(bu.Year()-au.Year())*12 + int64(bu.Month()-au.Month())
		// Partial months do not count.
		if bu.After(au) && daysBefore(bu, au) {
			months--
		} else if au.After(bu) && daysBefore(au, bu) {
			months++
		}
		if uIdx == 0 {
			return months / 12, true, nil
		}
		return months, true, nil
	case 2:
		return int64(bu.Sub(au).Hours() / 24), true, nil
	case 3:
		return int64(bu.Sub(au).Hours()), true, nil
	case 4:
		return int64(bu.Sub(au).Minutes()), true, nil
	case 5:
		return int64(bu.Sub(au).Seconds()), true, nil
	default:
		return bu.Sub(au).Milliseconds(), true, nil
	}
}

// daysBefore reports whether later's day-of-month/time-of-day is before
// earlier's, meaning the final partial month has not completed.
func daysBefore(later, earlier time.Time) bool {
	if later.Day() != earlier.Day() {
		return later.Day() < earlier.Day()
	}
	lh, lm, ls := later.Clock()
	eh, em, es := earlier.Clock()
	if lh != eh {
		return lh < eh
	}
	if lm != em {
		return lm < em
	}
	return ls < es
}

// DifferenceBetween counts precision-boundary crossings between two temporal
// values, truncating both to the requested precision first.
func DifferenceBetween(a time.Time, aPrec model.DateTimePrecision, b time.Time, bPrec model.DateTimePrecision, unit model.DateTimePrecision) (int64, bool, error) {
	uIdx, err := precisionIndex(unit)
	if err != nil {
		return 0, false, err
	}
	aIdx, err := precisionIndex(aPrec)
	if err != nil {
		return 0, false, err
	}
	bIdx, err := precisionIndex(bPrec)
	if err != nil {
		return 0, false, err
	}
	if uIdx > aIdx || uIdx > bIdx {
		return 0, false, nil
	}

	au := truncateTo(a.UTC(), uIdx)
	bu := truncateTo(b.UTC(), uIdx)
	switch uIdx {
	case 0:
		return int64(bu.Year() - au.Year()), true, nil
	case 1:
		return int64(bu.Year()-au.Year())*12 + int64(bu.Month()-au.Month()), true, nil
	case 2:
		return int64(bu.Sub(au).Hours() / 24), true, nil
	case 3:
		return int64(bu.Sub(au).Hours()), true, nil
	case 4:
		return int64(bu.Sub(au).Minutes()), true, nil
	case 5:
		return int64(bu.Sub(au).Seconds()), true, nil
	default:
		return bu.Sub(au).Milliseconds(), true, nil
	}
}

// truncateTo zeroes all components finer than the precision index.
func truncateTo(t time.Time, idx int) time.Time {
	year, month, day := t.Year(), t.Month(), t.Day()
	hour, minute, sec := t.Hour(), t.Minute(), t.Second()
	ms := t.Nanosecond() / int(time.Millisecond)
	switch idx {
	case 0:
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	case 1:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	case 2:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	case 3:
		return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	case 4:
		return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	case 5:
		return time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	default:
		return time.Date(year, month, day, hour, minute, sec, ms*int(time.Millisecond), time.UTC)
	}
}

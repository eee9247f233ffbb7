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

// Package datehelpers provides functions for parsing, printing and comparing
// CQL date, datetime and time values at explicit precision.
package datehelpers

import (
	"errors"
	"fmt"
	regex "regexp"
	"time"

	"github.com/octofhir/cql-go/model"
)

// Constants for parsing CQL date, datetime and time strings.
var (
	// Date layout constants.
	dateYear  = "2006"
	dateMonth = "2006-01"
	dateDay   = "2006-01-02"

	// DateTime layout constants.
	dateTimeYear             = "2006T"
	dateTimeMonth            = "2006-01T"
	dateTimeDay              = "2006-01-02T"
	dateTimeHour             = "2006-01-02T15"
	dateTimeMinute           = "2006-01-02T15:04"
	dateTimeSecond           = "2006-01-02T15:04:05"
	dateTimeOneMillisecond   = "2006-01-02T15:04:05.0"
	dateTimeTwoMillisecond   = "2006-01-02T15:04:05.00"
	dateTimeThreeMillisecond = "2006-01-02T15:04:05.000"

	// Time layout constants.
	timeHour             = "15"
	timeMinute           = "15:04"
	timeSecond           = "15:04:05"
	timeOneMillisecond   = "15:04:05.0"
	timeTwoMillisecond   = "15:04:05.00"
	timeThreeMillisecond = "15:04:05.000"

	// Timezone layout, uses "Z" for UTC and -07:00 style for others.
	tzFormat = "Z07:00"
)

// ErrUnsupportedPrecision is returned when a precision is not supported.
var ErrUnsupportedPrecision = errors.New("unsupported precision")

var fracSecondsCheck = regex.MustCompile(`\.\d{4}`)

// ParseDate parses a CQL Date string body (without the leading @) into a
// golang time at its precision.
//
// CQL Dates do not have timezone offsets, but when converting a Date to a
// DateTime the offset of the evaluation timestamp is used, so all Dates are
// placed in the evaluation location.
func ParseDate(str string, evaluationLoc *time.Location) (time.Time, model.DateTimePrecision, error) {
	if evaluationLoc == nil {
		return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("internal error - evaluationLoc must be set when calling ParseDate")
	}

	dates := []struct {
		layout    string
		precision model.DateTimePrecision
	}{
		{layout: dateYear, precision: model.YEAR},
		{layout: dateMonth, precision: model.MONTH},
		{layout: dateDay, precision: model.DAY},
	}

	var err error
	var parsedTime time.Time
	for _, d := range dates {
		parsedTime, err = time.ParseInLocation(d.layout, str, evaluationLoc)
		if err == nil {
			return parsedTime, d.precision, nil
		}
	}
	return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("got Date @%s, want format @YYYY-MM-DD", str)
}

// ParseDateTime parses a CQL DateTime string body into a golang time at its
// precision. If str does not include an offset evaluationLoc is used.
func ParseDateTime(str string, evaluationLoc *time.Location) (time.Time, model.DateTimePrecision, error) {
	if evaluationLoc == nil {
		return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("internal error - evaluationLoc must be set when calling ParseDateTime")
	}

	// time.ParseInLocation allows any number of fractional seconds no matter
	// the layout, so four or more digits are rejected up front.
	if fracSecondsCheck.MatchString(str) {
		return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("got DateTime @%s with more than millisecond precision", str)
	}

	dateTimes := []struct {
		layout    string
		precision model.DateTimePrecision
	}{
		{layout: dateTimeYear, precision: model.YEAR},
		{layout: dateTimeMonth, precision: model.MONTH},
		{layout: dateTimeDay, precision: model.DAY},
		{layout: dateTimeHour, precision: model.HOUR},
		{layout: dateTimeMinute, precision: model.MINUTE},
		// Millisecond layouts come before the seconds layout, which would
		// otherwise accept the fraction and report SECOND precision.
		{layout: dateTimeOneMillisecond, precision: model.MILLISECOND},
		{layout: dateTimeTwoMillisecond, precision: model.MILLISECOND},
		{layout: dateTimeThreeMillisecond, precision: model.MILLISECOND},
		{layout: dateTimeSecond, precision: model.SECOND},
	}

	var err error
	var parsedTime time.Time
	for _, d := range dateTimes {
		// Try with an explicit offset first, then fall back to the evaluation
		// location.
		parsedTime, err = time.Parse(d.layout+tzFormat, str)
		if err == nil {
			return parsedTime, d.precision, nil
		}
		parsedTime, err = time.ParseInLocation(d.layout, str, evaluationLoc)
		if err == nil {
			return parsedTime, d.precision, nil
		}
	}
	return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("got DateTime @%s, want format @YYYY-MM-DDThh:mm:ss.fff(Z|((+|-)hh:mm))", str)
}

// ParseTime parses a CQL Time string body (without the leading @T) into a
// golang time at its precision. Times are wall-clock values: year 0, month 1,
// day 1 in UTC.
func ParseTime(str string) (time.Time, model.DateTimePrecision, error) {
	if fracSecondsCheck.MatchString(str) {
		return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("got Time @T%s with more than millisecond precision", str)
	}

	layouts := []struct {
		layout    string
		precision model.DateTimePrecision
	}{
		{layout: timeHour, precision: model.HOUR},
		{layout: timeMinute, precision: model.MINUTE},
		{layout: timeOneMillisecond, precision: model.MILLISECOND},
		{layout: timeTwoMillisecond, precision: model.MILLISECOND},
		{layout: timeThreeMillisecond, precision: model.MILLISECOND},
		{layout: timeSecond, precision: model.SECOND},
	}

	var err error
	var parsedTime time.Time
	for _, l := range layouts {
		parsedTime, err = time.ParseInLocation(l.layout, str, time.UTC)
		if err == nil {
			return parsedTime, l.precision, nil
		}
	}
	return time.Time{}, model.UNSETDATETIMEPRECISION, fmt.Errorf("got Time @T%s, want format @Thh:mm:ss.fff", str)
}

// DateString returns a CQL Date string representation of a Date.
func DateString(d time.Time, precision model.DateTimePrecision) (string, error) {
	var s string
	switch precision {
	case model.YEAR:
		s = d.Format(dateYear)
	case model.MONTH:
		s = d.Format(dateMonth)
	case model.DAY, model.UNSETDATETIMEPRECISION:
		s = d.Format(dateDay)
	default:
		return "", fmt.Errorf("unsupported precision in Date with value %v %w", precision, ErrUnsupportedPrecision)
	}
	return "@" + s, nil
}

// DateTimeString returns a CQL DateTime string representation of a DateTime.
func DateTimeString(d time.Time, precision model.DateTimePrecision) (string, error) {
	var dtFormat string
	switch precision {
	case model.YEAR:
		dtFormat = dateTimeYear
	case model.MONTH:
		dtFormat = dateTimeMonth
	case model.DAY:
		dtFormat = dateTimeDay
	case model.HOUR:
		dtFormat = dateTimeHour
	case model.MINUTE:
		dtFormat = dateTimeMinute
	case model.SECOND:
		dtFormat = dateTimeSecond
	case model.MILLISECOND, model.UNSETDATETIMEPRECISION:
		dtFormat = dateTimeThreeMillisecond
	default:
		return "", fmt.Errorf("unsupported precision in DateTime with value %v %w", precision, ErrUnsupportedPrecision)
	}
	return "@" + d.Format(dtFormat+tzFormat), nil
}

// TimeString returns a CQL Time string representation of a Time.
func TimeString(d time.Time, precision model.DateTimePrecision) (string, error) {
	var tFormat string
	switch precision {
	case model.HOUR:
		tFormat = timeHour
	case model.MINUTE:
		tFormat = timeMinute
	case model.SECOND:
		tFormat = timeSecond
	case model.MILLISECOND, model.UNSETDATETIMEPRECISION:
		tFormat = timeThreeMillisecond
	default:
		return "", fmt.Errorf("unsupported precision in Time with value %v %w", precision, ErrUnsupportedPrecision)
	}
	return "@T" + d.Format(tFormat), nil
}

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
	"testing"
	"time"

	"github.com/octofhir/cql-go/model"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in       string
		wantPrec model.DateTimePrecision
	}{
		{"2024", model.YEAR},
		{"2024-03", model.MONTH},
		{"2024-03-31", model.DAY},
	}
	for _, tc := range tests {
		got, prec, err := ParseDate(tc.in, time.UTC)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if prec != tc.wantPrec {
			t.Errorf("ParseDate(%q) precision = %v, want %v", tc.in, prec, tc.wantPrec)
		}
		if got.Year() != 2024 {
			t.Errorf("ParseDate(%q) year = %d", tc.in, got.Year())
		}
	}
	if _, _, err := ParseDate("03-2024", time.UTC); err == nil {
		t.Error("ParseDate accepted an invalid date")
	}
}

func TestParseDateTime(t *testing.T) {
	got, prec, err := ParseDateTime("2024-03-31T12:30:15.250Z", time.UTC)
	if err != nil {
		t.Fatalf("ParseDateTime: %v", err)
	}
	if prec != model.MILLISECOND {
		t.Errorf("precision = %v, want millisecond", prec)
	}
	if got.Hour() != 12 || got.Nanosecond() != 250*int(time.Millisecond) {
		t.Errorf("parsed = %v", got)
	}

	// An explicit offset is honored.
	got, _, err = ParseDateTime("2024-03-31T12:00:00+02:00", time.UTC)
	if err != nil {
		t.Fatalf("ParseDateTime with offset: %v", err)
	}
	if got.UTC().Hour() != 10 {
		t.Errorf("offset datetime normalized to %v, want 10:00 UTC", got.UTC())
	}

	if _, _, err := ParseDateTime("2024-03-31T12:00:00.1234", time.UTC); err == nil {
		t.Error("accepted sub-millisecond precision")
	}
}

func TestParseTime(t *testing.T) {
	got, prec, err := ParseTime("10:30")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if prec != model.MINUTE || got.Hour() != 10 || got.Minute() != 30 {
		t.Errorf("ParseTime = %v at %v", got, prec)
	}
}

func TestCompareWithPrecision(t *testing.T) {
	day := func(y, m, d int) time.Time {
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		name   string
		a      time.Time
		aPrec  model.DateTimePrecision
		b      time.Time
		bPrec  model.DateTimePrecision
		cutoff model.DateTimePrecision
		want   Comparison
	}{
		{"less", day(2024, 1, 1), model.DAY, day(2024, 1, 2), model.DAY, "", Less},
		{"greater", day(2024, 2, 1), model.DAY, day(2024, 1, 2), model.DAY, "", Greater},
		{"equal", day(2024, 1, 1), model.DAY, day(2024, 1, 1), model.DAY, "", EqualTo},
		{"uncertain prefix", day(2024, 1, 1), model.YEAR, day(2024, 1, 2), model.DAY, "", Uncertain},
		{"unequal prefix decides", day(2023, 1, 1), model.YEAR, day(2024, 1, 2), model.DAY, "", Less},
		{"cutoff makes equal", day(2024, 1, 10), model.DAY, day(2024, 1, 20), model.DAY, model.MONTH, EqualTo},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CompareWithPrecision(tc.a, tc.aPrec, tc.b, tc.bPrec, tc.cutoff)
			if err != nil {
				t.Fatalf("CompareWithPrecision: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAddQuantity(t *testing.T) {
	jan31 := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	got, err := AddQuantity(jan31, model.DAY, model.MONTH, 1)
	if err != nil {
		t.Fatalf("AddQuantity: %v", err)
	}
	// January 31 plus one month clamps to the leap-year February 29.
	want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Jan 31 + 1 month = %v, want %v", got, want)
	}

	// Adding below the value's precision is a no-op.
	jan := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	got, err = AddQuantity(jan, model.MONTH, model.DAY, 10)
	if err != nil {
		t.Fatalf("AddQuantity below precision: %v", err)
	}
	if !got.Equal(jan) {
		t.Errorf("month-precision + days = %v, want unchanged %v", got, jan)
	}

	// Weeks add at day granularity.
	got, err = AddQuantity(jan, model.DAY, model.WEEK, 2)
	if err != nil {
		t.Fatalf("AddQuantity weeks: %v", err)
	}
	if got.Day() != 15 {
		t.Errorf("Jan 1 + 2 weeks = %v, want day 15", got)
	}
}

func TestDurationBetween(t *testing.T) {
	a := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	got, ok, err := DurationBetween(a, model.DAY, b, model.DAY, model.YEAR)
	if err != nil || !ok {
		t.Fatalf("DurationBetween: ok=%v err=%v", ok, err)
	}
	if got != 4 {
		t.Errorf("years between = %d, want 4", got)
	}

	// A partial final month does not count.
	c := time.Date(2020, time.March, 14, 0, 0, 0, 0, time.UTC)
	got, ok, err = DurationBetween(a, model.DAY, c, model.DAY, model.MONTH)
	if err != nil || !ok {
		t.Fatalf("DurationBetween months: ok=%v err=%v", ok, err)
	}
	if got != 2 {
		t.Errorf("months between = %d, want 2", got)
	}

	// Uncertain below the operands' precision.
	_, ok, err = DurationBetween(a, model.YEAR, b, model.DAY, model.MONTH)
	if err != nil {
		t.Fatalf("DurationBetween uncertain: %v", err)
	}
	if ok {
		t.Error("month count at year precision should be uncertain")
	}
}

func TestDifferenceBetween(t *testing.T) {
	a := time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)
	b := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	got, ok, err := DifferenceBetween(a, model.DAY, b, model.DAY, model.YEAR)
	if err != nil || !ok {
		t.Fatalf("DifferenceBetween: ok=%v err=%v", ok, err)
	}
	// One year boundary is crossed even though the duration is a day.
	if got != 1 {
		t.Errorf("difference in years = %d, want 1", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	d, prec, err := ParseDate("2024-03-31", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	s, err := DateString(d, prec)
	if err != nil {
		t.Fatal(err)
	}
	if s != "@2024-03-31" {
		t.Errorf("DateString = %q", s)
	}

	tm, prec, err := ParseTime("10:30:01")
	if err != nil {
		t.Fatal(err)
	}
	ts, err := TimeString(tm, prec)
	if err != nil {
		t.Fatal(err)
	}
	if ts != "@T10:30:01" {
		t.Errorf("TimeString = %q", ts)
	}
}

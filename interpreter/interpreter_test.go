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

package interpreter_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lithammer/dedent"

	cql "github.com/octofhir/cql-go"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
)

var defaultEvalTimestamp = time.Date(2024, time.March, 31, 1, 20, 30, 1e8, time.UTC)

// evalDefine parses and evaluates a library whose last definition is named
// X, returning X's value.
func evalDefine(t *testing.T, cqlSource string) result.Value {
	t.Helper()
	v, err := evalDefineErr(t, cqlSource)
	if err != nil {
		t.Fatalf("evaluating %q: %v", cqlSource, err)
	}
	return v
}

func evalDefineErr(t *testing.T, cqlSource string) (result.Value, error) {
	t.Helper()
	lib := dedent.Dedent(`
		library Tests version '1.0'
		` + cqlSource)
	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{})
	if err != nil {
		t.Fatalf("parsing %q: %v", cqlSource, err)
	}
	return elm.EvalExpression(context.Background(), "X", nil, cql.EvalConfig{
		EvaluationTimestamp: defaultEvalTimestamp,
	})
}

func wantValue(t *testing.T, val any) result.Value {
	t.Helper()
	v, err := result.New(val)
	if err != nil {
		t.Fatalf("result.New(%v): %v", val, err)
	}
	return v
}

func wantList(t *testing.T, vals ...any) result.Value {
	t.Helper()
	elems := make([]result.Value, 0, len(vals))
	for _, v := range vals {
		elems = append(elems, wantValue(t, v))
	}
	return wantValue(t, result.List{Value: elems})
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: 1 + 2 * 3", int32(7)},
		{"define X: (1 + 2) * 3", int32(9)},
		{"define X: 7 div 2", int32(3)},
		{"define X: -7 div 2", int32(-3)},
		{"define X: 7 mod 3", int32(1)},
		{"define X: -7 mod 3", int32(2)},
		{"define X: 7 mod -3", int32(-2)},
		{"define X: 10 / 4", 2.5},
		{"define X: 2 ^ 3 ^ 2", int32(512)},
		{"define X: 1 + 2L", int64(3)},
		{"define X: 1 + 2.5", 3.5},
		{"define X: Abs(-4)", int32(4)},
		{"define X: Ceiling(1.1)", int32(2)},
		{"define X: Floor(1.9)", int32(1)},
		{"define X: Truncate(1.9)", int32(1)},
		{"define X: Round(1.55, 1)", 1.6},
		{"define X: successor of 5", int32(6)},
		{"define X: predecessor of 5", int32(4)},
		{"define X: 2 'mg' + 3 'mg'", result.Quantity{Value: 5, Unit: "mg"}},
		{"define X: 1 'g' + 500 'mg'", result.Quantity{Value: 1.5, Unit: "g"}},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	tests := []struct {
		cql     string
		wantErr string
	}{
		{"define X: 1 div 0", "division by zero"},
		{"define X: 1 mod 0", "division by zero"},
		{"define X: 1.0 / 0.0", "division by zero"},
		{"define X: 2147483647 + 1", "overflow"},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			_, err := evalDefineErr(t, tc.cql)
			if err == nil {
				t.Fatalf("%s succeeded, want error containing %q", tc.cql, tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("%s returned %v, want error containing %q", tc.cql, err, tc.wantErr)
			}
		})
	}
}

func TestThreeValuedLogic(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		// and
		{"define X: true and true", true},
		{"define X: true and false", false},
		{"define X: true and null", nil},
		{"define X: false and true", false},
		{"define X: false and false", false},
		{"define X: false and null", false},
		{"define X: null and true", nil},
		{"define X: null and false", false},
		{"define X: null and null", nil},
		// or
		{"define X: true or true", true},
		{"define X: true or false", true},
		{"define X: true or null", true},
		{"define X: false or true", true},
		{"define X: false or false", false},
		{"define X: false or null", nil},
		{"define X: null or true", true},
		{"define X: null or false", nil},
		{"define X: null or null", nil},
		// xor
		{"define X: true xor false", true},
		{"define X: true xor true", false},
		{"define X: null xor true", nil},
		{"define X: false xor null", nil},
		// implies
		{"define X: false implies false", true},
		{"define X: true implies false", false},
		{"define X: true implies true", true},
		{"define X: null implies true", true},
		{"define X: null implies false", nil},
		{"define X: true implies null", nil},
		// not
		{"define X: not true", false},
		{"define X: not false", true},
		{"define X: not null", nil},
		// total predicates
		{"define X: IsNull(null)", true},
		{"define X: IsTrue(null)", false},
		{"define X: IsFalse(false)", true},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestEqualityAndEquivalence(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: null = null", nil},
		{"define X: null ~ null", true},
		{"define X: 1 ~ null", false},
		{"define X: 'Hello' = 'hello'", false},
		{"define X: 'Hello' ~ 'hello'", true},
		{"define X: 1 = 1", true},
		{"define X: 1 != 2", true},
		{"define X: 1 !~ 2", true},
		{"define X: 1 = 1.0", true},
		{"define X: {1, 2} = {1, 2}", true},
		{"define X: {1, 2} = {2, 1}", false},
		{"define X: Tuple { a: 1 } = Tuple { a: 1 }", true},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestNullPropagation(t *testing.T) {
	tests := []string{
		"define X: 1 + null",
		"define X: null * 3",
		"define X: null < 1",
		"define X: Upper(null as String)",
		"define X: null & 'a'",
	}
	for _, tc := range tests {
		t.Run(tc, func(t *testing.T) {
			got := evalDefine(t, tc)
			if !got.IsNull() {
				t.Errorf("%s = %v, want null", tc, got.GolangValue())
			}
		})
	}
}

func TestConditionals(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: if true then 1 else 2", int32(1)},
		{"define X: if false then 1 else 2", int32(2)},
		{"define X: if null then 1 else 2", int32(2)},
		{"define X: Coalesce(null, null, 3, 4)", int32(3)},
		{"define X: Coalesce(null, null, 'found', 'other')", "found"},
		{"define X: case when true then 'a' when true then 'b' else 'c' end", "a"},
		{"define X: case when false then 'a' when true then 'b' else 'c' end", "b"},
		{"define X: case when false then 'a' when false then 'b' else 'c' end", "c"},
		{"define X: case 2 when 1 then 'one' when 2 then 'two' else 'many' end", "two"},
		{"define X: case 9 when 1 then 'one' when 2 then 'two' else 'many' end", "many"},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestTemporal(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: @2024-01-15 < @2024-02-01", true},
		{"define X: @2024-01-01 < @2024-01-02", true},
		// Uncertain comparison: shared prefix equal, precisions differ.
		{"define X: @2024 < @2024-01-02", nil},
		{"define X: duration in years between @2020-01-01 and @2024-01-01", int32(4)},
		{"define X: duration in months between @2020-01-01 and @2020-03-15", int32(2)},
		{"define X: difference in years between @2020-12-31 and @2021-01-01", int32(1)},
		{"define X: year from @2024-05-12", int32(2024)},
		{"define X: month from @2024-05-12", int32(5)},
		// Component below precision is absent, not zero.
		{"define X: day from @2024-05", nil},
		{"define X: @2024-01-31 + 1 month", result.Date{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Precision: model.MONTH}},
		{"define X: @2024-01 + 1 day", result.Date{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Precision: model.MONTH}},
		{"define X: @2024-01-15 same month as @2024-01-20", true},
		{"define X: @2024-01-15 before month of @2024-03-20", true},
		{"define X: Date(2024, 1, 15)", result.Date{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Precision: model.DAY}},
		{"define X: Date(2024)", result.Date{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Precision: model.YEAR}},
		{"define X: Today()", result.Date{Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Precision: model.DAY}},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestLists(t *testing.T) {
	tests := []struct {
		cql  string
		want []any
	}{
		{"define X: {1, 2} union {2, 3}", []any{int32(1), int32(2), int32(3)}},
		{"define X: {1, 2, 3} intersect {2, 3, 4}", []any{int32(2), int32(3)}},
		{"define X: {1, 2, 3} except {2}", []any{int32(1), int32(3)}},
		{"define X: distinct {1, 1, 2}", []any{int32(1), int32(2)}},
		{"define X: flatten {{1}, {2, 3}}", []any{int32(1), int32(2), int32(3)}},
		{"define X: Take({1, 2, 3}, 2)", []any{int32(1), int32(2)}},
		{"define X: Skip({1, 2, 3}, 1)", []any{int32(2), int32(3)}},
		{"define X: Tail({1, 2, 3})", []any{int32(2), int32(3)}},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantList(t, tc.want...)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}

	scalars := []struct {
		cql  string
		want any
	}{
		{"define X: exists {1}", true},
		{"define X: exists {}", false},
		{"define X: exists {null}", false},
		{"define X: First({1, 2})", int32(1)},
		{"define X: Last({1, 2})", int32(2)},
		{"define X: {1, 2, 3}[1]", int32(2)},
		{"define X: {1, 2, 3}[9]", nil},
		{"define X: 2 in {1, 2}", true},
		{"define X: {1, 2} contains 3", false},
		{"define X: Count({1, null, 3})", int32(2)},
		{"define X: Sum({1, 2, 3})", int32(6)},
		{"define X: Min({3, 1, 2})", int32(1)},
		{"define X: Max({3, 1, 2})", int32(3)},
		{"define X: Avg({1.0, 2.0, 3.0})", 2.0},
		{"define X: Median({1.0, 9.0, 2.0})", 2.0},
		{"define X: AllTrue({true, true})", true},
		{"define X: AnyTrue({false, true})", true},
		{"define X: IndexOf({'a', 'b'}, 'b')", int32(1)},
		{"define X: {1, 2} includes {2}", true},
		{"define X: {2} included in {1, 2}", true},
	}
	for _, tc := range scalars {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: 'a' & 'b'", "ab"},
		{"define X: 'a' + 'b'", "ab"},
		{"define X: Upper('abc')", "ABC"},
		{"define X: Lower('ABC')", "abc"},
		{"define X: Length('abc')", int32(3)},
		{"define X: Substring('hello', 1, 3)", "ell"},
		{"define X: StartsWith('hello', 'he')", true},
		{"define X: EndsWith('hello', 'lo')", true},
		{"define X: Matches('1234', '\\\\d+')", true},
		{"define X: Combine({'a', 'b'}, '-')", "a-b"},
		{"define X: PositionOf('ll', 'hello')", int32(2)},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestIntervals(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: 3 in Interval[1, 5]", true},
		{"define X: 5 in Interval[1, 5)", false},
		{"define X: start of Interval[1, 5]", int32(1)},
		{"define X: end of Interval[1, 5]", int32(5)},
		{"define X: end of Interval[1, 5)", int32(4)},
		{"define X: width of Interval[2, 5]", int32(3)},
		{"define X: Interval[1, 3] overlaps Interval[2, 5]", true},
		{"define X: Interval[1, 2] meets Interval[3, 5]", true},
		{"define X: Interval[1, 2] before Interval[3, 5]", true},
		{"define X: Interval[3, 5] after Interval[1, 2]", true},
		{"define X: Interval[2, 3] included in Interval[1, 5]", true},
		{"define X: Interval[1, 5] includes Interval[2, 3]", true},
		{"define X: Interval[2, 3] during Interval[1, 5]", true},
		{"define X: Interval[1, 3] starts Interval[1, 5]", true},
		{"define X: Interval[3, 5] ends Interval[1, 5]", true},
		{"define X: point from Interval[3, 3]", int32(3)},
		{"define X: 3 in Interval[1, null]", true},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}
}

func TestQueries(t *testing.T) {
	tests := []struct {
		cql  string
		want []any
	}{
		{"define X: ({1, 2, 3, 4, 5}) N where N > 2 return N * 2", []any{int32(6), int32(8), int32(10)}},
		{"define X: from ({1, 2}) A, ({10, 20}) B return all A + B", []any{int32(11), int32(21), int32(12), int32(22)}},
		{"define X: ({1, 2, 3}) A with ({2, 3, 4}) B such that A = B return A", []any{int32(2), int32(3)}},
		{"define X: ({1, 2, 3}) A without ({2, 3, 4}) B such that A = B return A", []any{int32(1)}},
		{"define X: ({1, 2, 2, 3}) N return N", []any{int32(1), int32(2), int32(3)}},
		{"define X: ({1, 2, 2, 3}) N return all N", []any{int32(1), int32(2), int32(2), int32(3)}},
		{"define X: ({3, 1, 2}) N sort by $this", []any{int32(1), int32(2), int32(3)}},
		{"define X: ({3, 1, 2}) N sort desc", []any{int32(3), int32(2), int32(1)}},
		{"define X: ({1, 2, 3}) N let D: N * 2 where D > 2 return D", []any{int32(4), int32(6)}},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantList(t, tc.want...)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}

	t.Run("aggregate", func(t *testing.T) {
		got := evalDefine(t, "define X: ({1, 2, 3, 4}) N aggregate R starting 0: R + N")
		want := wantValue(t, int32(10))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("aggregate returned diff (-want +got):\n%s", diff)
		}
	})
}

func TestTypeOperators(t *testing.T) {
	tests := []struct {
		cql  string
		want any
	}{
		{"define X: 5 is Integer", true},
		{"define X: 5 is String", false},
		{"define X: null is Integer", false},
		{"define X: 5 as Integer", int32(5)},
		{"define X: 'a' as Integer", nil},
		{"define X: convert '5' to Integer", int32(5)},
		{"define X: convert 5 to String", "5"},
		{"define X: convert '2.5' to Decimal", 2.5},
		{"define X: ToInteger('42')", int32(42)},
		{"define X: ToString(4.2)", "4.2"},
		{"define X: ConvertsToInteger('42')", true},
		{"define X: ConvertsToInteger('abc')", false},
		{"define X: ConvertsToInteger(null)", true},
		{"define X: minimum Integer", int32(-2147483648)},
		{"define X: maximum Integer", int32(2147483647)},
	}
	for _, tc := range tests {
		t.Run(tc.cql, func(t *testing.T) {
			got := evalDefine(t, tc.cql)
			want := wantValue(t, tc.want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s returned diff (-want +got):\n%s", tc.cql, diff)
			}
		})
	}

	t.Run("strict cast fails", func(t *testing.T) {
		_, err := evalDefineErr(t, "define X: cast 'a' as Integer")
		if err == nil {
			t.Fatal("strict cast succeeded, want error")
		}
	})
}

func TestUserDefinedFunctions(t *testing.T) {
	lib := dedent.Dedent(`
		library Tests version '1.0'
		define function Double(a Integer): a * 2
		define function Double(a Decimal): a * 2.0
		define fluent function tripled(a Integer): a * 3
		define X: Double(21) + 7.tripled()
	`)
	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{})
	if err != nil {
		t.Fatalf("parsing library: %v", err)
	}
	got, err := elm.EvalExpression(context.Background(), "X", nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp})
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}
	want := wantValue(t, int32(63))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function call returned diff (-want +got):\n%s", diff)
	}
}

func TestIncludedLibraries(t *testing.T) {
	helpers := dedent.Dedent(`
		library Helpers version '1.0'
		define Shared: 40
		private define Hidden: 1
	`)
	main := dedent.Dedent(`
		library Main version '1.0'
		include Helpers version '1.0' called H
		define X: H.Shared + 2
	`)
	elm, err := cql.Parse(context.Background(), []string{main, helpers}, cql.ParseConfig{})
	if err != nil {
		t.Fatalf("parsing libraries: %v", err)
	}
	got, err := elm.EvalExpression(context.Background(), "X", nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp})
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}
	want := wantValue(t, int32(42))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("included library returned diff (-want +got):\n%s", diff)
	}
}

func TestParameters(t *testing.T) {
	lib := dedent.Dedent(`
		library Tests version '1.0'
		parameter Threshold Integer default 10
		define X: Threshold + 1
	`)
	t.Run("default", func(t *testing.T) {
		elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{})
		if err != nil {
			t.Fatalf("parsing library: %v", err)
		}
		got, err := elm.EvalExpression(context.Background(), "X", nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp})
		if err != nil {
			t.Fatalf("evaluating: %v", err)
		}
		if diff := cmp.Diff(wantValue(t, int32(11)), got); diff != "" {
			t.Errorf("parameter default returned diff (-want +got):\n%s", diff)
		}
	})
	t.Run("passed", func(t *testing.T) {
		key := result.DefKey{Name: "Threshold", Library: result.LibKey{Name: "Tests", Version: "1.0"}}
		elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{
			Parameters: map[result.DefKey]string{key: "99"},
		})
		if err != nil {
			t.Fatalf("parsing library: %v", err)
		}
		got, err := elm.EvalExpression(context.Background(), "X", nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp})
		if err != nil {
			t.Fatalf("evaluating: %v", err)
		}
		if diff := cmp.Diff(wantValue(t, int32(100)), got); diff != "" {
			t.Errorf("passed parameter returned diff (-want +got):\n%s", diff)
		}
	})
}

func TestMessages(t *testing.T) {
	lib := dedent.Dedent(`
		library Tests version '1.0'
		define X: Message(42, true, 'CODE-1', 'Warning', 'something looks off')
	`)
	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{})
	if err != nil {
		t.Fatalf("parsing library: %v", err)
	}
	libs, err := elm.Eval(context.Background(), nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp})
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}
	if len(libs.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(libs.Messages))
	}
	msg := libs.Messages[0]
	if msg.Severity != model.WARNING || msg.Code != "CODE-1" || msg.Message != "something looks off" {
		t.Errorf("unexpected message %+v", msg)
	}
	// The Message operator returns its source.
	got := libs.Results[result.LibKey{Name: "Tests", Version: "1.0"}]["X"]
	if diff := cmp.Diff(wantValue(t, int32(42)), got); diff != "" {
		t.Errorf("message source returned diff (-want +got):\n%s", diff)
	}

	t.Run("error severity fails evaluation", func(t *testing.T) {
		bad := dedent.Dedent(`
			library Tests version '1.0'
			define X: Message(1, true, 'E', 'Error', 'boom')
		`)
		elm, err := cql.Parse(context.Background(), []string{bad}, cql.ParseConfig{})
		if err != nil {
			t.Fatalf("parsing library: %v", err)
		}
		if _, err := elm.Eval(context.Background(), nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp}); err == nil {
			t.Fatal("error severity message did not fail evaluation")
		}
	})
}

func TestRecursionLimit(t *testing.T) {
	lib := dedent.Dedent(`
		library Tests version '1.0'
		define function Loop(a Integer) returns Integer: Loop(a + 1)
		define X: Loop(0)
	`)
	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{})
	if err != nil {
		t.Fatalf("parsing library: %v", err)
	}
	_, err = elm.EvalExpression(context.Background(), "X", nil, cql.EvalConfig{
		EvaluationTimestamp: defaultEvalTimestamp,
		MaxRecursionDepth:   50,
	})
	if err == nil || !strings.Contains(err.Error(), "recursion") {
		t.Fatalf("got %v, want recursion limit error", err)
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lib := "library Tests version '1.0'\ndefine X: 1 + 2"
	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{})
	if err != nil {
		t.Fatalf("parsing library: %v", err)
	}
	if _, err := elm.Eval(ctx, nil, cql.EvalConfig{EvaluationTimestamp: defaultEvalTimestamp}); err == nil {
		t.Fatal("cancelled evaluation succeeded, want error")
	}
}

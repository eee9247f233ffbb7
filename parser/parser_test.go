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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lithammer/dedent"

	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
)

// parseExpr parses an expression and fails the test on diagnostics.
func parseExpr(t *testing.T, src string) ast.IExpression {
	t.Helper()
	res := ParseExpression(src)
	if diag.HasErrors(res.Diagnostics) {
		t.Fatalf("ParseExpression(%q) diagnostics: %v", src, res.Diagnostics)
	}
	return res.Expression
}

func TestOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as Add(1, Multiply(2, 3)).
	expr := parseExpr(t, "1 + 2 * 3")
	add, ok := expr.(*ast.BinaryExpression)
	if !ok || add.Op != ast.OpAdd {
		t.Fatalf("got %T, want Add at the root", expr)
	}
	if lit, ok := add.Left.(*ast.IntegerLiteral); !ok || lit.Value != 1 {
		t.Errorf("Add left = %v, want literal 1", add.Left)
	}
	mul, ok := add.Right.(*ast.BinaryExpression)
	if !ok || mul.Op != ast.OpMultiply {
		t.Fatalf("Add right = %T, want Multiply", add.Right)
	}
}

func TestRightAssociativity(t *testing.T) {
	// a implies b implies c parses as Implies(a, Implies(b, c)).
	expr := parseExpr(t, "a implies b implies c")
	outer, ok := expr.(*ast.BinaryExpression)
	if !ok || outer.Op != ast.OpImplies {
		t.Fatalf("got %T, want Implies at the root", expr)
	}
	inner, ok := outer.Right.(*ast.BinaryExpression)
	if !ok || inner.Op != ast.OpImplies {
		t.Fatalf("Implies right = %T, want nested Implies", outer.Right)
	}
	if _, ok := outer.Left.(*ast.Ref); !ok {
		t.Errorf("Implies left = %T, want Ref", outer.Left)
	}

	// 2 ^ 3 ^ 2 parses as Power(2, Power(3, 2)).
	expr = parseExpr(t, "2 ^ 3 ^ 2")
	pow, ok := expr.(*ast.BinaryExpression)
	if !ok || pow.Op != ast.OpPower {
		t.Fatalf("got %T, want Power at the root", expr)
	}
	if _, ok := pow.Right.(*ast.BinaryExpression); !ok {
		t.Fatalf("Power right = %T, want nested Power", pow.Right)
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		src   string
		check func(t *testing.T, e ast.IExpression)
	}{
		{"null", func(t *testing.T, e ast.IExpression) {
			if _, ok := e.(*ast.NullLiteral); !ok {
				t.Errorf("got %T, want NullLiteral", e)
			}
		}},
		{"true", func(t *testing.T, e ast.IExpression) {
			b, ok := e.(*ast.BooleanLiteral)
			if !ok || !b.Value {
				t.Errorf("got %v, want true literal", e)
			}
		}},
		{"42", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.IntegerLiteral)
			if !ok || l.Value != 42 {
				t.Errorf("got %v, want integer 42", e)
			}
		}},
		{"42L", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.LongLiteral)
			if !ok || l.Value != 42 {
				t.Errorf("got %v, want long 42", e)
			}
		}},
		{"4.25", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.DecimalLiteral)
			if !ok || l.Value != 4.25 {
				t.Errorf("got %v, want decimal 4.25", e)
			}
		}},
		{`'a\'b'`, func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.StringLiteral)
			if !ok || l.Value != "a'b" {
				t.Errorf("got %v, want string a'b", e)
			}
		}},
		{"@2024-01-15", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.DateLiteral)
			if !ok || l.Precision != ast.PrecisionDay {
				t.Errorf("got %v, want day-precision date", e)
			}
		}},
		{"@2024-01", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.DateLiteral)
			if !ok || l.Precision != ast.PrecisionMonth {
				t.Errorf("got %v, want month-precision date", e)
			}
		}},
		{"@2024-01-15T10:30:00.000Z", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.DateTimeLiteral)
			if !ok || l.Precision != ast.PrecisionMillisecond {
				t.Errorf("got %v, want millisecond-precision datetime", e)
			}
		}},
		{"@T10:30", func(t *testing.T, e ast.IExpression) {
			l, ok := e.(*ast.TimeLiteral)
			if !ok || l.Precision != ast.PrecisionMinute {
				t.Errorf("got %v, want minute-precision time", e)
			}
		}},
		{"5 'mg'", func(t *testing.T, e ast.IExpression) {
			q, ok := e.(*ast.QuantityLiteral)
			if !ok || q.Value != 5 || q.Unit != "mg" {
				t.Errorf("got %v, want 5 mg quantity", e)
			}
		}},
		{"3 months", func(t *testing.T, e ast.IExpression) {
			q, ok := e.(*ast.QuantityLiteral)
			if !ok || q.Unit != "month" {
				t.Errorf("got %v, want month quantity", e)
			}
		}},
		{"1 'mg' : 2 'mL'", func(t *testing.T, e ast.IExpression) {
			if _, ok := e.(*ast.RatioLiteral); !ok {
				t.Errorf("got %T, want RatioLiteral", e)
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			tc.check(t, parseExpr(t, tc.src))
		})
	}
}

func TestQueryParsing(t *testing.T) {
	expr := parseExpr(t, "({1, 2}) N where N > 1 return all N")
	q, ok := expr.(*ast.Query)
	if !ok {
		t.Fatalf("got %T, want Query", expr)
	}
	if len(q.Sources) != 1 || q.Sources[0].Alias.Name != "N" {
		t.Errorf("query sources = %+v, want single alias N", q.Sources)
	}
	if q.Where == nil {
		t.Error("query has no where clause")
	}
	if q.Return == nil || q.Return.Distinct {
		t.Errorf("query return = %+v, want all (non-distinct)", q.Return)
	}

	expr = parseExpr(t, "from ({1}) A, ({2}) B return A + B")
	q, ok = expr.(*ast.Query)
	if !ok {
		t.Fatalf("got %T, want Query", expr)
	}
	if len(q.Sources) != 2 {
		t.Fatalf("from query has %d sources, want 2", len(q.Sources))
	}
	if q.Sources[1].Alias.Name != "B" {
		t.Errorf("second source alias = %q, want B", q.Sources[1].Alias.Name)
	}

	expr = parseExpr(t, "({1}) A with ({2}) B such that A = B return A")
	q = expr.(*ast.Query)
	if len(q.Relationships) != 1 || q.Relationships[0].Without {
		t.Errorf("relationships = %+v, want one with clause", q.Relationships)
	}

	expr = parseExpr(t, "({1}) N aggregate R starting 0: R + N")
	q = expr.(*ast.Query)
	if q.Aggregate == nil || q.Aggregate.Identifier.Name != "R" {
		t.Fatalf("aggregate = %+v, want identifier R", q.Aggregate)
	}
	if q.Aggregate.Starting == nil {
		t.Error("aggregate has no starting expression")
	}
}

func TestTimingPhrases(t *testing.T) {
	expr := parseExpr(t, "a same year as b")
	bin, ok := expr.(*ast.BinaryExpression)
	if !ok || bin.Op != ast.OpSameAs || bin.Precision != ast.PrecisionYear {
		t.Errorf("got %+v, want SameAs at year precision", expr)
	}

	expr = parseExpr(t, "a before month of b")
	bin = expr.(*ast.BinaryExpression)
	if bin.Op != ast.OpBefore || bin.Precision != ast.PrecisionMonth {
		t.Errorf("got %+v, want Before at month precision", bin)
	}

	expr = parseExpr(t, "a properly included in b")
	bin = expr.(*ast.BinaryExpression)
	if bin.Op != ast.OpProperlyIncludedIn {
		t.Errorf("got op %v, want ProperlyIncludedIn", bin.Op)
	}

	expr = parseExpr(t, "x between 1 and 10")
	if _, ok := expr.(*ast.Between); !ok {
		t.Errorf("got %T, want Between", expr)
	}

	expr = parseExpr(t, "years between a and b")
	db, ok := expr.(*ast.DurationBetween)
	if !ok || db.Precision != ast.PrecisionYear {
		t.Errorf("got %+v, want year DurationBetween", expr)
	}

	expr = parseExpr(t, "difference in months between a and b")
	diffB, ok := expr.(*ast.DifferenceBetween)
	if !ok || diffB.Precision != ast.PrecisionMonth {
		t.Errorf("got %+v, want month DifferenceBetween", expr)
	}
}

func TestLibraryParsing(t *testing.T) {
	src := dedent.Dedent(`
		library MyMeasure version '2.1'
		using FHIR version '4.0.1'
		include Common version '1.0' called C
		parameter Period Interval<DateTime>
		codesystem LOINC: 'http://loinc.org'
		valueset "Blood Pressure": 'urn:oid:bp' version '1.2'
		code SBP: '8480-6' from LOINC display 'Systolic BP'
		concept BP: { SBP } display 'Blood pressure'
		context Patient
		define private Inner: 1
		define public Outer: Inner + 1
		define function Double(x Integer) returns Integer: x * 2
		define fluent function doubled(x Integer): x * 2
	`)
	res := Parse(src, Analysis)
	if diag.HasErrors(res.Diagnostics) {
		t.Fatalf("diagnostics: %v", res.Diagnostics)
	}
	lib := res.Library
	if lib.Identifier == nil || lib.Identifier.Qualified.Name.Name != "MyMeasure" || lib.Identifier.Version != "2.1" {
		t.Errorf("library identifier = %+v", lib.Identifier)
	}
	if len(lib.Usings) != 1 || lib.Usings[0].Model.Name != "FHIR" {
		t.Errorf("usings = %+v", lib.Usings)
	}
	if len(lib.Includes) != 1 || !lib.Includes[0].HasCalled || lib.Includes[0].CalledAs.Name != "C" {
		t.Errorf("includes = %+v", lib.Includes)
	}
	if len(lib.Parameters) != 1 || lib.Parameters[0].Name.Name != "Period" {
		t.Errorf("parameters = %+v", lib.Parameters)
	}
	if len(lib.CodeSystems) != 1 || len(lib.ValueSets) != 1 || len(lib.Codes) != 1 || len(lib.Concepts) != 1 {
		t.Errorf("terminology declarations missing: %d %d %d %d",
			len(lib.CodeSystems), len(lib.ValueSets), len(lib.Codes), len(lib.Concepts))
	}
	if lib.ValueSets[0].Version != "1.2" {
		t.Errorf("valueset version = %q, want 1.2", lib.ValueSets[0].Version)
	}
	if len(lib.Contexts) != 1 {
		t.Errorf("contexts = %+v", lib.Contexts)
	}
	if len(lib.Statements) != 4 {
		t.Fatalf("statements = %d, want 4", len(lib.Statements))
	}
	inner, ok := lib.Statements[0].(*ast.ExpressionDef)
	if !ok || inner.Access != ast.AccessPrivate {
		t.Errorf("first statement = %+v, want private define", lib.Statements[0])
	}
	fn, ok := lib.Statements[2].(*ast.FunctionDef)
	if !ok || fn.Name.Name != "Double" || len(fn.Operands) != 1 || fn.ReturnType == nil {
		t.Errorf("function def = %+v", lib.Statements[2])
	}
	fluent, ok := lib.Statements[3].(*ast.FunctionDef)
	if !ok || !fluent.Fluent {
		t.Errorf("fluent function def = %+v", lib.Statements[3])
	}
}

func TestFastModeStopsAtFirstError(t *testing.T) {
	res := Parse("define X: 1 +", Fast)
	if res.Library != nil {
		t.Error("fast mode returned an AST despite errors")
	}
	if !diag.HasErrors(res.Diagnostics) {
		t.Error("fast mode returned no diagnostics")
	}
}

func TestAnalysisModeRecovers(t *testing.T) {
	src := dedent.Dedent(`
		library Recover version '1.0'
		define Bad: 1 + + +
		define Good: 2
	`)
	res := Parse(src, Analysis)
	if !diag.HasErrors(res.Diagnostics) {
		t.Fatal("analysis mode reported no diagnostics for invalid input")
	}
	if res.Library == nil {
		t.Fatal("analysis mode returned no AST")
	}
	var names []string
	for _, stmt := range res.Library.Statements {
		if def, ok := stmt.(*ast.ExpressionDef); ok {
			names = append(names, def.Name.Name)
		}
	}
	if diff := cmp.Diff([]string{"Bad", "Good"}, names); diff != "" {
		t.Errorf("recovered statements (-want +got):\n%s", diff)
	}
}

func TestSpansCoverExpressions(t *testing.T) {
	src := "1 + 2 * 3"
	res := ParseExpression(src)
	if diag.HasErrors(res.Diagnostics) {
		t.Fatalf("diagnostics: %v", res.Diagnostics)
	}
	span := res.Expression.SourceSpan()
	if span.Start != 0 || span.End != len(src) {
		t.Errorf("root span = %v, want [0, %d)", span, len(src))
	}
	add := res.Expression.(*ast.BinaryExpression)
	mulSpan := add.Right.SourceSpan()
	if got := src[mulSpan.Start:mulSpan.End]; got != "2 * 3" {
		t.Errorf("right operand span covers %q, want %q", got, "2 * 3")
	}
}

func TestReservedKeywordAsIdentifier(t *testing.T) {
	res := Parse("define exists: 1", Analysis)
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == diag.ReservedKeyword {
			found = true
		}
	}
	if !found {
		t.Errorf("no reserved-keyword diagnostic, got %v", res.Diagnostics)
	}
}

func TestQuotedIdentifiers(t *testing.T) {
	expr := parseExpr(t, `"Blood Pressure"`)
	ref, ok := expr.(*ast.Ref)
	if !ok || ref.Ident.Name.Name != "Blood Pressure" || !ref.Ident.Name.Quoted {
		t.Errorf("got %+v, want quoted Blood Pressure ref", expr)
	}
}

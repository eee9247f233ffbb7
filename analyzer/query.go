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

package analyzer

import (
	"github.com/octofhir/cql-go/ast"
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/reference"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/types"
)

// lowerQuery lowers a query, building the query scope in the order sources,
// lets, with-aliases. Later bindings can reference earlier ones. Iteration
// and aggregate scopes nest inside the query scope.
func (a *Analyzer) lowerQuery(q *ast.Query, span diag.Span) model.IExpression {
	out := &model.Query{Expression: &model.Expression{Element: &model.Element{Span: span}}}

	// A query over a single non-list source produces a single row.
	scalarSource := false

	a.refs.EnterScope(reference.ScopeQuery)
	defer a.refs.ExitScope()

	var firstElemType types.IType = types.Any
	for i, src := range q.Sources {
		lowered := a.lowerExpr(src.Source)
		elemType := lowered.GetResultType()
		if l, ok := elemType.(*types.List); ok {
			elemType = l.ElementType
		} else if len(q.Sources) == 1 {
			scalarSource = true
		}
		if i == 0 {
			firstElemType = elemType
		}
		aliasName := src.Alias.Name
		aliasType := elemType
		if err := a.refs.DefineAlias(aliasName, func() model.IExpression {
			return &model.AliasRef{Expression: model.ResultType(aliasType), Name: aliasName}
		}); err != nil {
			a.errorf(identNode(src.Alias), diag.DuplicateDefinition, "%v", err)
		}
		out.Source = append(out.Source, &model.AliasedSource{
			Expression: model.TypeAndSpan(lowered.GetResultType(), src.Span),
			Alias:      aliasName,
			Source:     lowered,
		})
	}

	for _, let := range q.Lets {
		lowered := a.lowerExpr(let.Expression)
		letName := let.Identifier.Name
		letType := lowered.GetResultType()
		if err := a.refs.DefineAlias(letName, func() model.IExpression {
			return &model.QueryLetRef{Expression: model.ResultType(letType), Name: letName}
		}); err != nil {
			a.errorf(identNode(let.Identifier), diag.DuplicateDefinition, "%v", err)
		}
		out.Let = append(out.Let, &model.LetClause{
			Element:    &model.Element{ResultType: letType, Span: let.Span},
			Identifier: letName,
			Expression: lowered,
		})
	}

	for _, rel := range q.Relationships {
		lowered := a.lowerExpr(rel.Source)
		elemType := lowered.GetResultType()
		if l, ok := elemType.(*types.List); ok {
			elemType = l.ElementType
		}
		a.refs.EnterScope(reference.ScopeWith)
		relAlias := rel.Alias.Name
		relType := elemType
		if err := a.refs.DefineAlias(relAlias, func() model.IExpression {
			return &model.AliasRef{Expression: model.ResultType(relType), Name: relAlias}
		}); err != nil {
			a.errorf(identNode(rel.Alias), diag.DuplicateDefinition, "%v", err)
		}
		suchThat := a.lowerExpr(rel.SuchThat)
		suchThat = a.convertTo(rel.SuchThat, suchThat, types.Boolean)
		a.refs.ExitScope()

		rc := &model.RelationshipClause{
			Element:    &model.Element{ResultType: lowered.GetResultType(), Span: rel.Span},
			Expression: lowered,
			Alias:      relAlias,
			SuchThat:   suchThat,
		}
		if rel.Without {
			out.Relationship = append(out.Relationship, &model.Without{RelationshipClause: rc})
		} else {
			out.Relationship = append(out.Relationship, &model.With{RelationshipClause: rc})
		}
	}

	if q.Where != nil {
		where := a.lowerExpr(q.Where)
		out.Where = a.convertTo(q.Where, where, types.Boolean)
	}

	// The element type the query produces per row before sorting.
	rowType := firstElemType
	if len(q.Sources) > 1 {
		// Multi-source queries without a return produce tuples of the
		// sources.
		elemTypes := map[string]types.IType{}
		for _, src := range out.Source {
			st := src.Source.GetResultType()
			if l, ok := st.(*types.List); ok {
				st = l.ElementType
			}
			elemTypes[src.Alias] = st
		}
		rowType = &types.Tuple{ElementTypes: elemTypes}
	}

	switch {
	case q.Aggregate != nil:
		agg := q.Aggregate
		var starting model.IExpression
		var totalType types.IType = types.Any
		if agg.Starting != nil {
			starting = a.lowerExpr(agg.Starting)
			totalType = starting.GetResultType()
		} else {
			starting = a.nullLiteral(agg.Span)
		}

		a.refs.EnterScope(reference.ScopeAggregate)
		aggName := agg.Identifier.Name
		tt := totalType
		mkTotal := func() model.IExpression {
			return &model.AliasRef{Expression: model.ResultType(tt), Name: aggName}
		}
		if err := a.refs.DefineAlias(aggName, mkTotal); err != nil {
			a.errorf(identNode(agg.Identifier), diag.DuplicateDefinition, "%v", err)
		}
		a.refs.DefineAlias("$total", mkTotal)
		expr := a.lowerExpr(agg.Expression)
		a.refs.ExitScope()

		out.Aggregate = &model.AggregateClause{
			Element:    &model.Element{ResultType: expr.GetResultType(), Span: agg.Span},
			Expression: expr,
			Starting:   starting,
			Identifier: aggName,
			Distinct:   agg.Distinct,
		}
		out.Element.ResultType = expr.GetResultType()
	case q.Return != nil:
		ret := a.lowerExpr(q.Return.Expression)
		rowType = ret.GetResultType()
		out.Return = &model.ReturnClause{
			Element:    &model.Element{ResultType: rowType, Span: q.Return.Span},
			Expression: ret,
			Distinct:   q.Return.Distinct,
		}
		if scalarSource {
			out.Element.ResultType = rowType
		} else {
			out.Element.ResultType = &types.List{ElementType: rowType}
		}
	default:
		if scalarSource {
			out.Element.ResultType = rowType
		} else {
			out.Element.ResultType = &types.List{ElementType: rowType}
		}
	}

	if len(q.Sort) > 0 {
		if out.Aggregate != nil {
			a.errorf(q, diag.TypeMismatch, "a query cannot have both aggregate and sort clauses")
		}
		sc := &model.SortClause{Element: &model.Element{Span: span}}
		for _, item := range q.Sort {
			sc.ByItems = append(sc.ByItems, a.lowerSortItem(item, rowType))
		}
		out.Sort = sc
	}
	return out
}

// lowerSortItem lowers one sort key. A nil key sorts the elements
// themselves; a bare property name on a structured row sorts by column;
// anything else is a key expression evaluated with $this bound to the row.
func (a *Analyzer) lowerSortItem(item ast.SortItem, rowType types.IType) model.ISortByItem {
	direction := model.ASCENDING
	if item.Direction == ast.SortDescending {
		direction = model.DESCENDING
	}
	base := &model.SortByItem{
		Element:   &model.Element{Span: item.Span},
		Direction: direction,
	}
	if item.Key == nil {
		return &model.SortByDirection{SortByItem: base}
	}
	if _, ok := item.Key.(*ast.ThisRef); ok {
		return &model.SortByDirection{SortByItem: base}
	}
	if ref, ok := item.Key.(*ast.Ref); ok && len(ref.Ident.Qualifiers) == 0 {
		if _, err := a.registry.PropertyType(rowType, ref.Ident.Name.Name); err == nil {
			return &model.SortByColumn{SortByItem: base, Path: ref.Ident.Name.Name}
		}
	}
	// Key expression with $this bound to the row element.
	a.refs.EnterScope(reference.ScopeIteration)
	rt := rowType
	a.refs.DefineAlias("$this", func() model.IExpression {
		return &model.AliasRef{Expression: model.ResultType(rt), Name: "$this"}
	})
	key := a.lowerExpr(item.Key)
	a.refs.ExitScope()
	return &model.SortByExpression{SortByItem: base, SortExpression: key}
}

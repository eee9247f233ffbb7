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

package interpreter

import (
	"sort"

	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/internal/reference"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/types"
)

// queryRow is one combination of source values, keyed by alias.
type queryRow map[string]result.Value

// evalQuery runs the query pipeline: Cartesian product of the sources,
// relationship filters, lets, where, then aggregate or return, then sort.
func (i *interpreter) evalQuery(q *model.Query) (result.Value, error) {
	// 1. Evaluate each source and form the Cartesian product, first source
	// major.
	type sourceList struct {
		alias  string
		values []result.Value
		isList bool
	}
	sources := make([]sourceList, 0, len(q.Source))
	for _, src := range q.Source {
		v, err := i.evalExpression(src.Source)
		if err != nil {
			return result.Value{}, err
		}
		sl := sourceList{alias: src.Alias}
		if list, err := result.ToList(v); err == nil {
			sl.values = list
			sl.isList = true
		} else {
			sl.values = []result.Value{v}
		}
		sources = append(sources, sl)
	}
	scalarQuery := len(sources) == 1 && !sources[0].isList

	rows := []queryRow{{}}
	for _, src := range sources {
		var next []queryRow
		for _, row := range rows {
			for _, v := range src.values {
				extended := make(queryRow, len(row)+1)
				for k, val := range row {
					extended[k] = val
				}
				extended[src.alias] = v
				next = append(next, extended)
			}
		}
		rows = next
	}

	// 2. Relationship clauses: with is a semi-join, without an anti-join.
	for _, rel := range q.Relationship {
		var rc *model.RelationshipClause
		without := false
		switch r := rel.(type) {
		case *model.With:
			rc = r.RelationshipClause
		case *model.Without:
			rc = r.RelationshipClause
			without = true
		default:
			return result.Value{}, evalErrorf(diag.TypeMismatch, q, "internal error - unknown relationship clause %T", rel)
		}
		relSource, err := i.evalExpression(rc.Expression)
		if err != nil {
			return result.Value{}, err
		}
		var relValues []result.Value
		if list, err := result.ToList(relSource); err == nil {
			relValues = list
		} else if !relSource.IsNull() {
			relValues = []result.Value{relSource}
		}

		var kept []queryRow
		for _, row := range rows {
			matched := false
			for _, relVal := range relValues {
				ok, err := i.rowSatisfies(rc.SuchThat, row, map[string]result.Value{rc.Alias: relVal})
				if err != nil {
					return result.Value{}, err
				}
				if ok {
					matched = true
					break
				}
			}
			if matched != without {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	// 3 + 4. Lets evaluate per row, then where filters.
	var kept []queryRow
	for _, row := range rows {
		i.refs.EnterScope(reference.ScopeQuery)
		bindRow(i.refs, row)
		ok := true
		var evalErr error
		for _, let := range q.Let {
			v, err := i.evalExpression(let.Expression)
			if err != nil {
				evalErr = err
				break
			}
			row[let.Identifier] = v
			if err := i.refs.DefineAlias(let.Identifier, v); err != nil {
				evalErr = err
				break
			}
		}
		if evalErr == nil && q.Where != nil {
			w, err := i.evalExpression(q.Where)
			if err != nil {
				evalErr = err
			} else {
				b, isBool := w.GolangValue().(bool)
				// Null filters out the row.
				ok = isBool && b
			}
		}
		i.refs.ExitScope()
		if evalErr != nil {
			return result.Value{}, evalErr
		}
		if ok {
			kept = append(kept, row)
		}
	}
	rows = kept

	// 5. Aggregate folds with the user expression and returns $total.
	if q.Aggregate != nil {
		return i.evalAggregateClause(q, rows)
	}

	// 6. Return (or the bare source rows).
	var out []result.Value
	distinct := false
	for _, row := range rows {
		var v result.Value
		var err error
		if q.Return != nil {
			i.refs.EnterScope(reference.ScopeQuery)
			bindRow(i.refs, row)
			v, err = i.evalExpression(q.Return.Expression)
			i.refs.ExitScope()
			if err != nil {
				return result.Value{}, err
			}
		} else {
			v, err = i.rowValue(q, row)
			if err != nil {
				return result.Value{}, err
			}
		}
		out = append(out, v)
	}
	if q.Return != nil {
		distinct = q.Return.Distinct
	}
	if distinct {
		var err error
		out, err = i.distinctValues(out)
		if err != nil {
			return result.Value{}, err
		}
	}

	// 7. Stable sort by the given keys and directions.
	if q.Sort != nil && len(q.Sort.ByItems) > 0 {
		if err := i.sortValues(q, out); err != nil {
			return result.Value{}, err
		}
	}

	if scalarQuery {
		if len(out) == 0 {
			return result.NewWithSources(nil, q)
		}
		return out[0].WithSources(q), nil
	}
	list := result.List{Value: out}
	if lt, ok := q.GetResultType().(*types.List); ok {
		list.StaticType = lt
	}
	return result.NewWithSources(list, q)
}

// bindRow defines the row's aliases and lets in the current scope.
func bindRow(refs *reference.Resolver[result.Value, *model.FunctionDef], row queryRow) {
	for alias, v := range row {
		// Row maps are freshly built per query, duplicate aliases cannot
		// occur.
		_ = refs.DefineAlias(alias, v)
	}
}

// rowSatisfies evaluates a boolean expression with the row plus extra
// bindings in scope.
func (i *interpreter) rowSatisfies(expr model.IExpression, row queryRow, extra map[string]result.Value) (bool, error) {
	i.refs.EnterScope(reference.ScopeWith)
	defer i.refs.ExitScope()
	bindRow(i.refs, row)
	for alias, v := range extra {
		if err := i.refs.DefineAlias(alias, v); err != nil {
			return false, err
		}
	}
	v, err := i.evalExpression(expr)
	if err != nil {
		return false, err
	}
	b, ok := v.GolangValue().(bool)
	return ok && b, nil
}

// rowValue is the value a query row produces when there is no return
// clause: the single source's element, or a tuple over the aliases.
func (i *interpreter) rowValue(q *model.Query, row queryRow) (result.Value, error) {
	if len(q.Source) == 1 {
		return row[q.Source[0].Alias], nil
	}
	values := make(map[string]result.Value, len(q.Source))
	elemTypes := make(map[string]types.IType, len(q.Source))
	for _, src := range q.Source {
		v := row[src.Alias]
		values[src.Alias] = v
		elemTypes[src.Alias] = v.RuntimeType()
	}
	return result.New(result.Tuple{Value: values, RuntimeType: &types.Tuple{ElementTypes: elemTypes}})
}

// evalAggregateClause folds the rows: $total starts at the starting
// expression and each row rebinds $total to the aggregate expression.
func (i *interpreter) evalAggregateClause(q *model.Query, rows []queryRow) (result.Value, error) {
	agg := q.Aggregate
	total, err := i.evalExpression(agg.Starting)
	if err != nil {
		return result.Value{}, err
	}

	if agg.Distinct {
		var seen []queryRow
		for _, row := range rows {
			dup := false
			for _, s := range seen {
				same := true
				for alias, v := range row {
					eqv, err := i.valuesEquivalent(v, s[alias])
					if err != nil {
						return result.Value{}, err
					}
					if !eqv {
						same = false
						break
					}
				}
				if same {
					dup = true
					break
				}
			}
			if !dup {
				seen = append(seen, row)
			}
		}
		rows = seen
	}

	for _, row := range rows {
		i.refs.EnterScope(reference.ScopeAggregate)
		bindRow(i.refs, row)
		if err := i.refs.DefineAlias(agg.Identifier, total); err != nil {
			i.refs.ExitScope()
			return result.Value{}, err
		}
		_ = i.refs.DefineAlias("$total", total)
		total, err = i.evalExpression(agg.Expression)
		i.refs.ExitScope()
		if err != nil {
			return result.Value{}, err
		}
	}
	return total.WithSources(q), nil
}

// sortValues stable-sorts the result list in place by the sort items.
func (i *interpreter) sortValues(q *model.Query, out []result.Value) error {
	items := q.Sort.ByItems
	var sortErr error

	key := func(item model.ISortByItem, v result.Value) (result.Value, error) {
		switch si := item.(type) {
		case *model.SortByDirection:
			return v, nil
		case *model.SortByColumn:
			return i.propertyOf(q, v, si.Path)
		case *model.SortByExpression:
			i.refs.EnterScope(reference.ScopeSort)
			defer i.refs.ExitScope()
			if err := i.refs.DefineAlias("$this", v); err != nil {
				return result.Value{}, err
			}
			return i.evalExpression(si.SortExpression)
		}
		return result.Value{}, evalErrorf(diag.TypeMismatch, q, "internal error - unknown sort item %T", item)
	}

	sort.SliceStable(out, func(x, y int) bool {
		if sortErr != nil {
			return false
		}
		for _, item := range items {
			kx, err := key(item, out[x])
			if err != nil {
				sortErr = err
				return false
			}
			ky, err := key(item, out[y])
			if err != nil {
				sortErr = err
				return false
			}
			// Nulls sort first ascending and last descending.
			switch {
			case kx.IsNull() && ky.IsNull():
				continue
			case kx.IsNull():
				return directionLess(item, true)
			case ky.IsNull():
				return directionLess(item, false)
			}
			cmp, isNull, err := i.compareValues(kx, ky)
			if err != nil {
				sortErr = err
				return false
			}
			if isNull || cmp == 0 {
				continue
			}
			return directionLess(item, cmp < 0)
		}
		return false
	})
	return sortErr
}

// directionLess flips the ordering for descending items.
func directionLess(item model.ISortByItem, less bool) bool {
	direction := model.ASCENDING
	switch si := item.(type) {
	case *model.SortByDirection:
		direction = si.Direction
	case *model.SortByColumn:
		direction = si.Direction
	case *model.SortByExpression:
		direction = si.Direction
	}
	if direction == model.DESCENDING {
		return !less
	}
	return less
}

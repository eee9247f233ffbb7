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

package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/octofhir/cql-go/types"
)

// ParseJSON decodes an ELM JSON document produced by Serialize back into a
// Library. Spans are not carried by the interchange format and come back
// zero.
func ParseJSON(data []byte) (*Library, error) {
	var doc struct {
		Library map[string]any `json:"library"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid ELM JSON: %w", err)
	}
	if doc.Library == nil {
		return nil, fmt.Errorf("invalid ELM JSON: missing library root")
	}
	return libraryFromMap(doc.Library)
}

// ParseTypeName resolves the ELM qualified-name convention back to a type:
// the elm-types URN becomes a System type, Interval</List</Choice</Tuple
// specifiers parse structurally, anything else is a Named type.
func ParseTypeName(name string) (types.IType, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "{"+systemTypesURN+"}") {
		return types.ToSystem("System." + strings.TrimPrefix(name, "{"+systemTypesURN+"}")), nil
	}
	switch {
	case strings.HasPrefix(name, "Interval<") && strings.HasSuffix(name, ">"):
		inner, err := ParseTypeName(name[len("Interval<") : len(name)-1])
		if err != nil {
			return nil, err
		}
		return &types.Interval{PointType: inner}, nil
	case strings.HasPrefix(name, "List<") && strings.HasSuffix(name, ">"):
		inner, err := ParseTypeName(name[len("List<") : len(name)-1])
		if err != nil {
			return nil, err
		}
		return &types.List{ElementType: inner}, nil
	case strings.HasPrefix(name, "Choice<") && strings.HasSuffix(name, ">"):
		parts, err := splitTopLevel(name[len("Choice<") : len(name)-1])
		if err != nil {
			return nil, err
		}
		choice := &types.Choice{}
		for _, p := range parts {
			ct, err := ParseTypeName(p)
			if err != nil {
				return nil, err
			}
			choice.ChoiceTypes = append(choice.ChoiceTypes, ct)
		}
		return choice, nil
	case strings.HasPrefix(name, "Tuple {") && strings.HasSuffix(name, "}"):
		body := strings.TrimSpace(name[len("Tuple {") : len(name)-1])
		tuple := &types.Tuple{ElementTypes: map[string]types.IType{}}
		if body == "" {
			return tuple, nil
		}
		parts, err := splitTopLevel(body)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			sp := strings.IndexByte(p, ' ')
			if sp < 0 {
				return nil, fmt.Errorf("invalid tuple element %q", p)
			}
			et, err := ParseTypeName(p[sp+1:])
			if err != nil {
				return nil, err
			}
			tuple.ElementTypes[p[:sp]] = et
		}
		return tuple, nil
	}
	if s := types.ToSystem(name); s != types.Unset {
		return s, nil
	}
	return &types.Named{Name: name}, nil
}

// splitTopLevel splits on commas that are not nested inside <>, {} or ().
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '{', '(':
			depth++
		case '>', '}', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced type specifier %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[last:]))
	return parts, nil
}

func libraryFromMap(root map[string]any) (*Library, error) {
	lib := &Library{}
	if ident, ok := root["identifier"].(map[string]any); ok {
		lib.Identifier = &LibraryIdentifier{
			Element:   &Element{},
			Qualified: str(ident, "id"),
			Local:     str(ident, "id"),
			Version:   str(ident, "version"),
		}
	}
	for _, def := range defs(root, "usings") {
		lib.Usings = append(lib.Usings, &Using{
			Element:         &Element{},
			LocalIdentifier: str(def, "localIdentifier"),
			URI:             str(def, "uri"),
			Version:         str(def, "version"),
		})
	}
	for _, def := range defs(root, "includes") {
		lib.Includes = append(lib.Includes, &Include{
			Element: &Element{},
			Identifier: &LibraryIdentifier{
				Element:   &Element{},
				Local:     str(def, "localIdentifier"),
				Qualified: str(def, "path"),
				Version:   str(def, "version"),
			},
		})
	}
	for _, def := range defs(root, "parameters") {
		p := &ParameterDef{
			Element:     &Element{},
			Name:        str(def, "name"),
			AccessLevel: AccessLevel(str(def, "accessLevel")),
		}
		if d, ok := def["default"].(map[string]any); ok {
			expr, err := exprFromMap(d)
			if err != nil {
				return nil, err
			}
			p.Default = expr
		}
		if ts, ok := def["parameterTypeSpecifier"].(map[string]any); ok {
			t, err := ParseTypeName(str(ts, "name"))
			if err != nil {
				return nil, err
			}
			p.ResultType = t
		}
		lib.Parameters = append(lib.Parameters, p)
	}
	for _, def := range defs(root, "codeSystems") {
		lib.CodeSystems = append(lib.CodeSystems, &CodeSystemDef{
			Element:     &Element{ResultType: types.CodeSystem},
			Name:        str(def, "name"),
			ID:          str(def, "id"),
			Version:     str(def, "version"),
			AccessLevel: AccessLevel(str(def, "accessLevel")),
		})
	}
	for _, def := range defs(root, "valueSets") {
		vs := &ValuesetDef{
			Element:     &Element{ResultType: types.ValueSet},
			Name:        str(def, "name"),
			ID:          str(def, "id"),
			Version:     str(def, "version"),
			AccessLevel: AccessLevel(str(def, "accessLevel")),
		}
		if refs, ok := def["codeSystem"].([]any); ok {
			for _, r := range refs {
				if rm, ok := r.(map[string]any); ok {
					vs.CodeSystems = append(vs.CodeSystems, &CodeSystemRef{
						Expression:  ResultType(types.CodeSystem),
						Name:        str(rm, "name"),
						LibraryName: str(rm, "libraryName"),
					})
				}
			}
		}
		lib.Valuesets = append(lib.Valuesets, vs)
	}
	for _, def := range defs(root, "codes") {
		c := &CodeDef{
			Element:     &Element{ResultType: types.Code},
			Name:        str(def, "name"),
			Code:        str(def, "id"),
			Display:     str(def, "display"),
			AccessLevel: AccessLevel(str(def, "accessLevel")),
		}
		if rm, ok := def["codeSystem"].(map[string]any); ok {
			c.CodeSystem = &CodeSystemRef{
				Expression:  ResultType(types.CodeSystem),
				Name:        str(rm, "name"),
				LibraryName: str(rm, "libraryName"),
			}
		}
		lib.Codes = append(lib.Codes, c)
	}
	for _, def := range defs(root, "concepts") {
		c := &ConceptDef{
			Element:     &Element{ResultType: types.Concept},
			Name:        str(def, "name"),
			Display:     str(def, "display"),
			AccessLevel: AccessLevel(str(def, "accessLevel")),
		}
		if refs, ok := def["code"].([]any); ok {
			for _, r := range refs {
				if rm, ok := r.(map[string]any); ok {
					c.Codes = append(c.Codes, &CodeRef{
						Expression:  ResultType(types.Code),
						Name:        str(rm, "name"),
						LibraryName: str(rm, "libraryName"),
					})
				}
			}
		}
		lib.Concepts = append(lib.Concepts, c)
	}

	stmtDefs := defs(root, "statements")
	if len(stmtDefs) > 0 {
		lib.Statements = &Statements{}
		for _, def := range stmtDefs {
			var expr IExpression
			if em, ok := def["expression"].(map[string]any); ok {
				var err error
				expr, err = exprFromMap(em)
				if err != nil {
					return nil, err
				}
			}
			ed := &ExpressionDef{
				Element:     &Element{},
				Name:        str(def, "name"),
				Context:     str(def, "context"),
				Expression:  expr,
				AccessLevel: AccessLevel(str(def, "accessLevel")),
			}
			if expr != nil {
				ed.ResultType = expr.GetResultType()
			}
			if str(def, "type") == "FunctionDef" {
				fd := &FunctionDef{
					ExpressionDef: ed,
					Fluent:        boolean(def, "fluent"),
					External:      boolean(def, "external"),
				}
				if ops, ok := def["operand"].([]any); ok {
					for _, o := range ops {
						om, ok := o.(map[string]any)
						if !ok {
							continue
						}
						opType := types.IType(types.Any)
						if ts, ok := om["operandTypeSpecifier"].(map[string]any); ok {
							t, err := ParseTypeName(str(ts, "name"))
							if err != nil {
								return nil, err
							}
							opType = t
						}
						fd.Operands = append(fd.Operands, OperandDef{
							Expression: ResultType(opType),
							Name:       str(om, "name"),
						})
					}
				}
				lib.Statements.Defs = append(lib.Statements.Defs, fd)
			} else {
				lib.Statements.Defs = append(lib.Statements.Defs, ed)
			}
		}
	}
	return lib, nil
}

func defs(root map[string]any, key string) []map[string]any {
	section, ok := root[key].(map[string]any)
	if !ok {
		return nil
	}
	arr, ok := section["def"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func num(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func (m mapHelper) expr(key string) (IExpression, error) {
	sub, ok := m[key].(map[string]any)
	if !ok {
		return nil, nil
	}
	return exprFromMap(sub)
}

type mapHelper map[string]any

func baseExpr(m map[string]any) (*Expression, error) {
	e := &Expression{Element: &Element{ResultType: types.Unset}}
	if rtn := str(m, "resultTypeName"); rtn != "" {
		t, err := ParseTypeName(rtn)
		if err != nil {
			return nil, err
		}
		e.Element.ResultType = t
	}
	return e, nil
}

func operandList(m map[string]any) ([]IExpression, error) {
	raw, ok := m["operand"]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case map[string]any:
		e, err := exprFromMap(v)
		if err != nil {
			return nil, err
		}
		return []IExpression{e}, nil
	case []any:
		out := make([]IExpression, 0, len(v))
		for _, item := range v {
			im, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid operand entry %T", item)
			}
			e, err := exprFromMap(im)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid operand %T", raw)
}

func exprFromMap(m map[string]any) (IExpression, error) {
	typ := str(m, "type")
	base, err := baseExpr(m)
	if err != nil {
		return nil, err
	}
	h := mapHelper(m)

	switch typ {
	case "Null":
		if base.Element.ResultType == types.Unset {
			base.Element.ResultType = types.Any
		}
		return &Literal{Expression: base, Value: "null"}, nil
	case "Literal":
		if vt := str(m, "valueType"); vt != "" {
			t, err := ParseTypeName(vt)
			if err != nil {
				return nil, err
			}
			base.Element.ResultType = t
		}
		return &Literal{Expression: base, Value: str(m, "value")}, nil
	case "Quantity":
		base.Element.ResultType = types.Quantity
		return &Quantity{Expression: base, Value: num(m, "value"), Unit: str(m, "unit")}, nil
	case "Ratio":
		numM, _ := m["numerator"].(map[string]any)
		denM, _ := m["denominator"].(map[string]any)
		numE, err := exprFromMap(numM)
		if err != nil {
			return nil, err
		}
		denE, err := exprFromMap(denM)
		if err != nil {
			return nil, err
		}
		numQ, ok1 := numE.(*Quantity)
		denQ, ok2 := denE.(*Quantity)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("ratio operands must be quantities")
		}
		base.Element.ResultType = types.Ratio
		return &Ratio{Expression: base, Numerator: *numQ, Denominator: *denQ}, nil
	case "Code":
		c := &Code{Expression: base, Code: str(m, "code"), Display: str(m, "display")}
		if sm, ok := m["system"].(map[string]any); ok {
			c.System = &CodeSystemRef{
				Expression:  ResultType(types.CodeSystem),
				Name:        str(sm, "name"),
				LibraryName: str(sm, "libraryName"),
			}
		}
		return c, nil
	case "Interval":
		low, err := h.expr("low")
		if err != nil {
			return nil, err
		}
		high, err := h.expr("high")
		if err != nil {
			return nil, err
		}
		lce, err := h.expr("lowClosedExpression")
		if err != nil {
			return nil, err
		}
		hce, err := h.expr("highClosedExpression")
		if err != nil {
			return nil, err
		}
		return &Interval{
			Expression: base, Low: low, High: high,
			LowInclusive: boolean(m, "lowClosed"), HighInclusive: boolean(m, "highClosed"),
			LowClosedExpression: lce, HighClosedExpression: hce,
		}, nil
	case "List":
		l := &List{Expression: base}
		if elems, ok := m["element"].([]any); ok {
			for _, el := range elems {
				em, ok := el.(map[string]any)
				if !ok {
					continue
				}
				e, err := exprFromMap(em)
				if err != nil {
					return nil, err
				}
				l.List = append(l.List, e)
			}
		}
		return l, nil
	case "Tuple":
		t := &Tuple{Expression: base}
		if elems, ok := m["element"].([]any); ok {
			for _, el := range elems {
				em, ok := el.(map[string]any)
				if !ok {
					continue
				}
				vm, _ := em["value"].(map[string]any)
				v, err := exprFromMap(vm)
				if err != nil {
					return nil, err
				}
				t.Elements = append(t.Elements, &TupleElement{Name: str(em, "name"), Value: v})
			}
		}
		return t, nil
	case "Instance":
		classType, err := ParseTypeName(str(m, "classType"))
		if err != nil {
			return nil, err
		}
		inst := &Instance{Expression: base, ClassType: classType}
		if elems, ok := m["element"].([]any); ok {
			for _, el := range elems {
				em, ok := el.(map[string]any)
				if !ok {
					continue
				}
				vm, _ := em["value"].(map[string]any)
				v, err := exprFromMap(vm)
				if err != nil {
					return nil, err
				}
				inst.Elements = append(inst.Elements, &InstanceElement{Name: str(em, "name"), Value: v})
			}
		}
		return inst, nil
	case "Message":
		msg := &Message{Expression: base}
		for key, dst := range map[string]*IExpression{
			"source": &msg.Source, "condition": &msg.Condition, "code": &msg.Code,
			"severity": &msg.Severity, "message": &msg.Message,
		} {
			e, err := h.expr(key)
			if err != nil {
				return nil, err
			}
			*dst = e
		}
		return msg, nil
	case "If":
		cond, err := h.expr("condition")
		if err != nil {
			return nil, err
		}
		then, err := h.expr("then")
		if err != nil {
			return nil, err
		}
		els, err := h.expr("else")
		if err != nil {
			return nil, err
		}
		return &IfThenElse{Expression: base, Condition: cond, Then: then, Else: els}, nil
	case "Case":
		c := &Case{Expression: base}
		cmp, err := h.expr("comparand")
		if err != nil {
			return nil, err
		}
		c.Comparand = cmp
		if items, ok := m["caseItem"].([]any); ok {
			for _, item := range items {
				im, ok := item.(map[string]any)
				if !ok {
					continue
				}
				ih := mapHelper(im)
				when, err := ih.expr("when")
				if err != nil {
					return nil, err
				}
				then, err := ih.expr("then")
				if err != nil {
					return nil, err
				}
				c.CaseItem = append(c.CaseItem, &CaseItem{Element: &Element{}, When: when, Then: then})
			}
		}
		els, err := h.expr("else")
		if err != nil {
			return nil, err
		}
		c.Else = els
		return c, nil
	case "MinValue":
		t, err := ParseTypeName(str(m, "valueType"))
		if err != nil {
			return nil, err
		}
		return &MinValue{Expression: base, ValueType: t}, nil
	case "MaxValue":
		t, err := ParseTypeName(str(m, "valueType"))
		if err != nil {
			return nil, err
		}
		return &MaxValue{Expression: base, ValueType: t}, nil
	case "Retrieve":
		codes, err := h.expr("codes")
		if err != nil {
			return nil, err
		}
		dateRange, err := h.expr("dateRange")
		if err != nil {
			return nil, err
		}
		return &Retrieve{
			Expression: base, DataType: str(m, "dataType"),
			TemplateID: str(m, "templateId"), CodeProperty: str(m, "codeProperty"),
			Codes: codes, DateProperty: str(m, "dateProperty"), DateRange: dateRange,
			Context: str(m, "context"),
		}, nil
	case "Property":
		source, err := h.expr("source")
		if err != nil {
			return nil, err
		}
		return &Property{Expression: base, Source: source, Path: str(m, "path")}, nil
	case "Query":
		return queryFromMap(m, base)
	case "As":
		t, err := ParseTypeName(str(m, "asType"))
		if err != nil {
			return nil, err
		}
		ops, err := operandList(m)
		if err != nil || len(ops) != 1 {
			return nil, fmt.Errorf("As requires one operand: %v", err)
		}
		return &As{
			UnaryExpression: &UnaryExpression{Expression: base, Operand: ops[0]},
			AsTypeSpecifier: t,
			Strict:          boolean(m, "strict"),
		}, nil
	case "Is":
		t, err := ParseTypeName(str(m, "isType"))
		if err != nil {
			return nil, err
		}
		ops, err := operandList(m)
		if err != nil || len(ops) != 1 {
			return nil, fmt.Errorf("Is requires one operand: %v", err)
		}
		return &Is{
			UnaryExpression: &UnaryExpression{Expression: base, Operand: ops[0]},
			IsTypeSpecifier: t,
		}, nil
	case "ExpressionRef":
		return &ExpressionRef{Expression: base, Name: str(m, "name"), LibraryName: str(m, "libraryName")}, nil
	case "ParameterRef":
		return &ParameterRef{Expression: base, Name: str(m, "name"), LibraryName: str(m, "libraryName")}, nil
	case "ValueSetRef":
		return &ValuesetRef{Expression: base, Name: str(m, "name"), LibraryName: str(m, "libraryName")}, nil
	case "CodeSystemRef":
		return &CodeSystemRef{Expression: base, Name: str(m, "name"), LibraryName: str(m, "libraryName")}, nil
	case "CodeRef":
		return &CodeRef{Expression: base, Name: str(m, "name"), LibraryName: str(m, "libraryName")}, nil
	case "ConceptRef":
		return &ConceptRef{Expression: base, Name: str(m, "name"), LibraryName: str(m, "libraryName")}, nil
	case "AliasRef":
		return &AliasRef{Expression: base, Name: str(m, "name")}, nil
	case "QueryLetRef":
		return &QueryLetRef{Expression: base, Name: str(m, "name")}, nil
	case "OperandRef":
		return &OperandRef{Expression: base, Name: str(m, "name")}, nil
	case "IdentifierRef":
		return &IdentifierRef{Expression: base, Name: str(m, "name")}, nil
	case "FunctionRef":
		ops, err := operandList(m)
		if err != nil {
			return nil, err
		}
		return &FunctionRef{
			Expression: base, Name: str(m, "name"),
			LibraryName: str(m, "libraryName"), Operands: ops,
		}, nil
	}

	// Generic operator paths.
	ops, err := operandList(m)
	if err != nil {
		return nil, err
	}
	precision := DateTimePrecision(str(m, "precision"))
	if e, ok := unaryFromName(typ, base, ops, precision); ok {
		return e, nil
	}
	if e, ok := binaryFromName(typ, base, ops, precision); ok {
		return e, nil
	}
	if e, ok := naryFromName(typ, base, ops); ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown ELM expression type %q", typ)
}

func queryFromMap(m map[string]any, base *Expression) (IExpression, error) {
	q := &Query{Expression: base}
	if sources, ok := m["source"].([]any); ok {
		for _, s := range sources {
			sm, ok := s.(map[string]any)
			if !ok {
				continue
			}
			em, _ := sm["expression"].(map[string]any)
			src, err := exprFromMap(em)
			if err != nil {
				return nil, err
			}
			q.Source = append(q.Source, &AliasedSource{
				Expression: ResultType(src.GetResultType()),
				Alias:      str(sm, "alias"),
				Source:     src,
			})
		}
	}
	if lets, ok := m["let"].([]any); ok {
		for _, l := range lets {
			lm, ok := l.(map[string]any)
			if !ok {
				continue
			}
			em, _ := lm["expression"].(map[string]any)
			expr, err := exprFromMap(em)
			if err != nil {
				return nil, err
			}
			q.Let = append(q.Let, &LetClause{Element: &Element{}, Identifier: str(lm, "identifier"), Expression: expr})
		}
	}
	if rels, ok := m["relationship"].([]any); ok {
		for _, r := range rels {
			rm, ok := r.(map[string]any)
			if !ok {
				continue
			}
			em, _ := rm["expression"].(map[string]any)
			expr, err := exprFromMap(em)
			if err != nil {
				return nil, err
			}
			stm, _ := rm["suchThat"].(map[string]any)
			suchThat, err := exprFromMap(stm)
			if err != nil {
				return nil, err
			}
			rc := &RelationshipClause{Element: &Element{}, Expression: expr, Alias: str(rm, "alias"), SuchThat: suchThat}
			if str(rm, "type") == "Without" {
				q.Relationship = append(q.Relationship, &Without{RelationshipClause: rc})
			} else {
				q.Relationship = append(q.Relationship, &With{RelationshipClause: rc})
			}
		}
	}
	h := mapHelper(m)
	where, err := h.expr("where")
	if err != nil {
		return nil, err
	}
	q.Where = where
	if rm, ok := m["return"].(map[string]any); ok {
		em, _ := rm["expression"].(map[string]any)
		expr, err := exprFromMap(em)
		if err != nil {
			return nil, err
		}
		q.Return = &ReturnClause{Element: &Element{}, Expression: expr, Distinct: boolean(rm, "distinct")}
	}
	if am, ok := m["aggregate"].(map[string]any); ok {
		ah := mapHelper(am)
		expr, err := ah.expr("expression")
		if err != nil {
			return nil, err
		}
		starting, err := ah.expr("starting")
		if err != nil {
			return nil, err
		}
		q.Aggregate = &AggregateClause{
			Element: &Element{}, Expression: expr, Starting: starting,
			Identifier: str(am, "identifier"), Distinct: boolean(am, "distinct"),
		}
	}
	if sm, ok := m["sort"].(map[string]any); ok {
		sc := &SortClause{Element: &Element{}}
		if items, ok := sm["by"].([]any); ok {
			for _, item := range items {
				im, ok := item.(map[string]any)
				if !ok {
					continue
				}
				sbi := &SortByItem{Element: &Element{}, Direction: SortDirection(str(im, "direction"))}
				switch str(im, "type") {
				case "ByColumn":
					sc.ByItems = append(sc.ByItems, &SortByColumn{SortByItem: sbi, Path: str(im, "path")})
				case "ByExpression":
					em, _ := im["expression"].(map[string]any)
					expr, err := exprFromMap(em)
					if err != nil {
						return nil, err
					}
					sc.ByItems = append(sc.ByItems, &SortByExpression{SortByItem: sbi, SortExpression: expr})
				default:
					sc.ByItems = append(sc.ByItems, &SortByDirection{SortByItem: sbi})
				}
			}
		}
		q.Sort = sc
	}
	return q, nil
}

func unaryFromName(name string, base *Expression, ops []IExpression, precision DateTimePrecision) (IExpression, bool) {
	if len(ops) != 1 {
		return nil, false
	}
	u := &UnaryExpression{Expression: base, Operand: ops[0]}
	switch name {
	case "Negate":
		return &Negate{u}, true
	case "Truncate":
		return &Truncate{u}, true
	case "Exists":
		return &Exists{u}, true
	case "Not":
		return &Not{u}, true
	case "First":
		return &First{u}, true
	case "Last":
		return &Last{u}, true
	case "Single":
		return &Single{u}, true
	case "SingletonFrom":
		return &SingletonFrom{u}, true
	case "Start":
		return &Start{u}, true
	case "End":
		return &End{u}, true
	case "Width":
		return &Width{u}, true
	case "Size":
		return &Size{u}, true
	case "PointFrom":
		return &PointFrom{u}, true
	case "Predecessor":
		return &Predecessor{u}, true
	case "Successor":
		return &Successor{u}, true
	case "IsNull":
		return &IsNull{u}, true
	case "IsFalse":
		return &IsFalse{u}, true
	case "IsTrue":
		return &IsTrue{u}, true
	case "Distinct":
		return &Distinct{u}, true
	case "Flatten":
		return &Flatten{u}, true
	case "Collapse":
		return &Collapse{u}, true
	case "Length":
		return &Length{u}, true
	case "Upper":
		return &Upper{u}, true
	case "Lower":
		return &Lower{u}, true
	case "Abs":
		return &Abs{u}, true
	case "Ceiling":
		return &Ceiling{u}, true
	case "Floor":
		return &Floor{u}, true
	case "Exp":
		return &Exp{u}, true
	case "Ln":
		return &Ln{u}, true
	case "ToBoolean":
		return &ToBoolean{u}, true
	case "ToDateTime":
		return &ToDateTime{u}, true
	case "ToDate":
		return &ToDate{u}, true
	case "ToDecimal":
		return &ToDecimal{u}, true
	case "ToLong":
		return &ToLong{u}, true
	case "ToInteger":
		return &ToInteger{u}, true
	case "ToQuantity":
		return &ToQuantity{u}, true
	case "ToConcept":
		return &ToConcept{u}, true
	case "ToString":
		return &ToString{u}, true
	case "ToTime":
		return &ToTime{u}, true
	case "ConvertsToBoolean":
		return &ConvertsToBoolean{u}, true
	case "ConvertsToDate":
		return &ConvertsToDate{u}, true
	case "ConvertsToDateTime":
		return &ConvertsToDateTime{u}, true
	case "ConvertsToDecimal":
		return &ConvertsToDecimal{u}, true
	case "ConvertsToInteger":
		return &ConvertsToInteger{u}, true
	case "ConvertsToLong":
		return &ConvertsToLong{u}, true
	case "ConvertsToQuantity":
		return &ConvertsToQuantity{u}, true
	case "ConvertsToString":
		return &ConvertsToString{u}, true
	case "ConvertsToTime":
		return &ConvertsToTime{u}, true
	case "AllTrue":
		return &AllTrue{u}, true
	case "AnyTrue":
		return &AnyTrue{u}, true
	case "Count":
		return &Count{u}, true
	case "Sum":
		return &Sum{u}, true
	case "Min":
		return &Min{u}, true
	case "Max":
		return &Max{u}, true
	case "Avg":
		return &Avg{u}, true
	case "Median":
		return &Median{u}, true
	case "Mode":
		return &Mode{u}, true
	case "StdDev":
		return &StdDev{u}, true
	case "Variance":
		return &Variance{u}, true
	case "Tail":
		return &Tail{u}, true
	case "DateFrom":
		return &DateFrom{u}, true
	case "TimeFrom":
		return &TimeFrom{u}, true
	case "TimezoneOffsetFrom":
		return &TimezoneOffsetFrom{u}, true
	case "DateTimeComponentFrom":
		return &DateTimeComponentFrom{UnaryExpression: u, Precision: precision}, true
	case "CalculateAge":
		return &CalculateAge{UnaryExpression: u, Precision: precision}, true
	}
	return nil, false
}

func binaryFromName(name string, base *Expression, ops []IExpression, precision DateTimePrecision) (IExpression, bool) {
	if len(ops) != 2 {
		return nil, false
	}
	b := &BinaryExpression{Expression: base, Operands: ops}
	bp := &BinaryExpressionWithPrecision{BinaryExpression: b, Precision: precision}
	switch name {
	case "Equal":
		return &Equal{b}, true
	case "Equivalent":
		return &Equivalent{b}, true
	case "Less":
		return &Less{b}, true
	case "Greater":
		return &Greater{b}, true
	case "LessOrEqual":
		return &LessOrEqual{b}, true
	case "GreaterOrEqual":
		return &GreaterOrEqual{b}, true
	case "And":
		return &And{b}, true
	case "Or":
		return &Or{b}, true
	case "Xor":
		return &XOr{b}, true
	case "Implies":
		return &Implies{b}, true
	case "Add":
		return &Add{b}, true
	case "Subtract":
		return &Subtract{b}, true
	case "Multiply":
		return &Multiply{b}, true
	case "Divide":
		return &Divide{b}, true
	case "Modulo":
		return &Modulo{b}, true
	case "TruncatedDivide":
		return &TruncatedDivide{b}, true
	case "Power":
		return &Power{b}, true
	case "Log":
		return &Log{b}, true
	case "Except":
		return &Except{b}, true
	case "Intersect":
		return &Intersect{b}, true
	case "Union":
		return &Union{b}, true
	case "Indexer":
		return &Indexer{b}, true
	case "IndexOf":
		return &IndexOf{b}, true
	case "Includes":
		return &Includes{b}, true
	case "ProperlyIncludes":
		return &ProperlyIncludes{b}, true
	case "Take":
		return &Take{b}, true
	case "Skip":
		return &Skip{b}, true
	case "StartsWith":
		return &StartsWith{b}, true
	case "EndsWith":
		return &EndsWith{b}, true
	case "Matches":
		return &Matches{b}, true
	case "Split":
		return &Split{b}, true
	case "PositionOf":
		return &PositionOf{b}, true
	case "LastPositionOf":
		return &LastPositionOf{b}, true
	case "InCodeSystem":
		return &InCodeSystem{b}, true
	case "InValueSet":
		return &InValueSet{b}, true
	case "CanConvertQuantity":
		return &CanConvertQuantity{b}, true
	case "ConvertQuantity":
		return &ConvertQuantity{b}, true
	case "Before":
		return (*Before)(bp), true
	case "After":
		return (*After)(bp), true
	case "SameAs":
		return (*SameAs)(bp), true
	case "SameOrBefore":
		return (*SameOrBefore)(bp), true
	case "SameOrAfter":
		return (*SameOrAfter)(bp), true
	case "DurationBetween":
		return (*DurationBetween)(bp), true
	case "DifferenceBetween":
		return (*DifferenceBetween)(bp), true
	case "In":
		return (*In)(bp), true
	case "IncludedIn":
		return (*IncludedIn)(bp), true
	case "ProperlyIncludedIn":
		return (*ProperlyIncludedIn)(bp), true
	case "Contains":
		return (*Contains)(bp), true
	case "Overlaps":
		return (*Overlaps)(bp), true
	case "Meets":
		return (*Meets)(bp), true
	case "Starts":
		return (*Starts)(bp), true
	case "Ends":
		return (*Ends)(bp), true
	case "CalculateAgeAt":
		return (*CalculateAgeAt)(bp), true
	}
	return nil, false
}

func naryFromName(name string, base *Expression, ops []IExpression) (IExpression, bool) {
	n := &NaryExpression{Expression: base, Operands: ops}
	switch name {
	case "Coalesce":
		return &Coalesce{n}, true
	case "Concatenate":
		return &Concatenate{n}, true
	case "Combine":
		return &Combine{n}, true
	case "Substring":
		return &Substring{n}, true
	case "ReplaceMatches":
		return &ReplaceMatches{n}, true
	case "Round":
		return &Round{n}, true
	case "Date":
		return &Date{n}, true
	case "DateTime":
		return &DateTime{n}, true
	case "Time":
		return &Time{n}, true
	case "Now":
		return &Now{n}, true
	case "Today":
		return &Today{n}, true
	case "TimeOfDay":
		return &TimeOfDay{n}, true
	}
	return nil, false
}

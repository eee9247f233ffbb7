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
	"sort"
	"strings"

	"github.com/octofhir/cql-go/types"
)

// Format selects the ELM serialization format.
type Format int

// Serialization formats.
const (
	FormatJSON Format = iota
	FormatXML
)

const (
	elmSchemaID      = "urn:hl7-org:elm"
	elmSchemaVersion = "r1"
	systemTypesURN   = "urn:hl7-org:elm-types:r1"
)

// Serialize renders the library in the HL7 ELM schema shape. Serialization
// is purely structural: no evaluation, no analysis.
func Serialize(l *Library, format Format, pretty bool) ([]byte, error) {
	root, err := libraryToMap(l)
	if err != nil {
		return nil, err
	}
	if format == FormatXML {
		return serializeXML(root, pretty)
	}
	doc := map[string]any{"library": root}
	if pretty {
		return json.MarshalIndent(doc, "", "   ")
	}
	return json.Marshal(doc)
}

// qname renders a type in the ELM qualified-name convention: system types
// use the elm-types URN, model types keep their qualified name.
func qname(t types.IType) (string, error) {
	name, err := t.TypeName()
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(name, "System.") {
		return "{" + systemTypesURN + "}" + strings.TrimPrefix(name, "System."), nil
	}
	return name, nil
}

func libraryToMap(l *Library) (map[string]any, error) {
	root := map[string]any{
		"schemaIdentifier": map[string]any{"id": elmSchemaID, "version": elmSchemaVersion},
	}
	if l.Identifier != nil {
		ident := map[string]any{"id": l.Identifier.Qualified}
		if l.Identifier.Version != "" {
			ident["version"] = l.Identifier.Version
		}
		root["identifier"] = ident
	}

	if len(l.Usings) > 0 {
		defs := make([]any, 0, len(l.Usings))
		for _, u := range l.Usings {
			def := map[string]any{"localIdentifier": u.LocalIdentifier, "uri": u.URI}
			if u.Version != "" {
				def["version"] = u.Version
			}
			defs = append(defs, def)
		}
		root["usings"] = map[string]any{"def": defs}
	}
	if len(l.Includes) > 0 {
		defs := make([]any, 0, len(l.Includes))
		for _, inc := range l.Includes {
			def := map[string]any{
				"localIdentifier": inc.Identifier.Local,
				"path":            inc.Identifier.Qualified,
			}
			if inc.Identifier.Version != "" {
				def["version"] = inc.Identifier.Version
			}
			defs = append(defs, def)
		}
		root["includes"] = map[string]any{"def": defs}
	}
	if len(l.Parameters) > 0 {
		defs := make([]any, 0, len(l.Parameters))
		for _, p := range l.Parameters {
			def := map[string]any{"name": p.Name, "accessLevel": string(p.AccessLevel)}
			if p.Default != nil {
				dflt, err := exprToMap(p.Default)
				if err != nil {
					return nil, err
				}
				def["default"] = dflt
			}
			if p.GetResultType() != nil && p.GetResultType() != types.Unset {
				qn, err := qname(p.GetResultType())
				if err != nil {
					return nil, err
				}
				def["parameterTypeSpecifier"] = map[string]any{"type": "NamedTypeSpecifier", "name": qn}
			}
			defs = append(defs, def)
		}
		root["parameters"] = map[string]any{"def": defs}
	}
	if len(l.CodeSystems) > 0 {
		defs := make([]any, 0, len(l.CodeSystems))
		for _, cs := range l.CodeSystems {
			def := map[string]any{"name": cs.Name, "id": cs.ID, "accessLevel": string(cs.AccessLevel)}
			if cs.Version != "" {
				def["version"] = cs.Version
			}
			defs = append(defs, def)
		}
		root["codeSystems"] = map[string]any{"def": defs}
	}
	if len(l.Valuesets) > 0 {
		defs := make([]any, 0, len(l.Valuesets))
		for _, vs := range l.Valuesets {
			def := map[string]any{"name": vs.Name, "id": vs.ID, "accessLevel": string(vs.AccessLevel)}
			if vs.Version != "" {
				def["version"] = vs.Version
			}
			if len(vs.CodeSystems) > 0 {
				refs := make([]any, 0, len(vs.CodeSystems))
				for _, csr := range vs.CodeSystems {
					refs = append(refs, refToMap("CodeSystemRef", csr.Name, csr.LibraryName))
				}
				def["codeSystem"] = refs
			}
			defs = append(defs, def)
		}
		root["valueSets"] = map[string]any{"def": defs}
	}
	if len(l.Codes) > 0 {
		defs := make([]any, 0, len(l.Codes))
		for _, c := range l.Codes {
			def := map[string]any{"name": c.Name, "id": c.Code, "accessLevel": string(c.AccessLevel)}
			if c.Display != "" {
				def["display"] = c.Display
			}
			if c.CodeSystem != nil {
				def["codeSystem"] = refToMap("CodeSystemRef", c.CodeSystem.Name, c.CodeSystem.LibraryName)
			}
			defs = append(defs, def)
		}
		root["codes"] = map[string]any{"def": defs}
	}
	if len(l.Concepts) > 0 {
		defs := make([]any, 0, len(l.Concepts))
		for _, c := range l.Concepts {
			def := map[string]any{"name": c.Name, "accessLevel": string(c.AccessLevel)}
			if c.Display != "" {
				def["display"] = c.Display
			}
			refs := make([]any, 0, len(c.Codes))
			for _, cr := range c.Codes {
				refs = append(refs, refToMap("CodeRef", cr.Name, cr.LibraryName))
			}
			def["code"] = refs
			defs = append(defs, def)
		}
		root["concepts"] = map[string]any{"def": defs}
	}
	if l.Statements != nil && len(l.Statements.Defs) > 0 {
		defs := make([]any, 0, len(l.Statements.Defs))
		for _, d := range l.Statements.Defs {
			m, err := statementToMap(d)
			if err != nil {
				return nil, err
			}
			defs = append(defs, m)
		}
		root["statements"] = map[string]any{"def": defs}
	}
	return root, nil
}

func statementToMap(d IExpressionDef) (map[string]any, error) {
	def := map[string]any{
		"name":        d.GetName(),
		"accessLevel": string(d.GetAccessLevel()),
	}
	if d.GetContext() != "" {
		def["context"] = d.GetContext()
	}
	if fd, ok := d.(*FunctionDef); ok {
		def["type"] = "FunctionDef"
		def["fluent"] = fd.Fluent
		def["external"] = fd.External
		ops := make([]any, 0, len(fd.Operands))
		for _, op := range fd.Operands {
			qn, err := qname(op.GetResultType())
			if err != nil {
				return nil, err
			}
			ops = append(ops, map[string]any{
				"name":                 op.Name,
				"operandTypeSpecifier": map[string]any{"type": "NamedTypeSpecifier", "name": qn},
			})
		}
		def["operand"] = ops
	} else {
		def["type"] = "ExpressionDef"
	}
	if d.GetExpression() != nil {
		expr, err := exprToMap(d.GetExpression())
		if err != nil {
			return nil, err
		}
		def["expression"] = expr
	}
	return def, nil
}

func refToMap(typ, name, libraryName string) map[string]any {
	m := map[string]any{"type": typ, "name": name}
	if libraryName != "" {
		m["libraryName"] = libraryName
	}
	return m
}

// precisionOf returns the precision of the operator structs carrying one.
func precisionOf(e IExpression) (DateTimePrecision, bool) {
	switch t := e.(type) {
	case *Before:
		return t.Precision, true
	case *After:
		return t.Precision, true
	case *SameAs:
		return t.Precision, true
	case *SameOrBefore:
		return t.Precision, true
	case *SameOrAfter:
		return t.Precision, true
	case *DurationBetween:
		return t.Precision, true
	case *DifferenceBetween:
		return t.Precision, true
	case *In:
		return t.Precision, true
	case *IncludedIn:
		return t.Precision, true
	case *ProperlyIncludedIn:
		return t.Precision, true
	case *Contains:
		return t.Precision, true
	case *Overlaps:
		return t.Precision, true
	case *Meets:
		return t.Precision, true
	case *Starts:
		return t.Precision, true
	case *Ends:
		return t.Precision, true
	case *CalculateAgeAt:
		return t.Precision, true
	case *DateTimeComponentFrom:
		return t.Precision, true
	case *CalculateAge:
		return t.Precision, true
	}
	return UNSETDATETIMEPRECISION, false
}

func exprToMap(e IExpression) (map[string]any, error) {
	if e == nil {
		return nil, nil
	}
	m := map[string]any{}
	if rt := e.GetResultType(); rt != nil && rt != types.Unset {
		qn, err := qname(rt)
		if err != nil {
			return nil, err
		}
		m["resultTypeName"] = qn
	}

	addOperands := func(ops ...IExpression) error {
		arr := make([]any, 0, len(ops))
		for _, op := range ops {
			om, err := exprToMap(op)
			if err != nil {
				return err
			}
			arr = append(arr, om)
		}
		m["operand"] = arr
		return nil
	}

	switch t := e.(type) {
	case *Literal:
		m["type"] = "Literal"
		qn, err := qname(t.GetResultType())
		if err != nil {
			return nil, err
		}
		m["valueType"] = qn
		if t.Value != "null" {
			m["value"] = t.Value
		} else {
			m["type"] = "Null"
			delete(m, "valueType")
		}
		return m, nil
	case *Quantity:
		m["type"] = "Quantity"
		m["value"] = t.Value
		if t.Unit != "" {
			m["unit"] = t.Unit
		}
		return m, nil
	case *Ratio:
		m["type"] = "Ratio"
		num, err := exprToMap(&t.Numerator)
		if err != nil {
			return nil, err
		}
		den, err := exprToMap(&t.Denominator)
		if err != nil {
			return nil, err
		}
		m["numerator"] = num
		m["denominator"] = den
		return m, nil
	case *Code:
		m["type"] = "Code"
		m["code"] = t.Code
		if t.Display != "" {
			m["display"] = t.Display
		}
		if t.System != nil {
			m["system"] = refToMap("CodeSystemRef", t.System.Name, t.System.LibraryName)
		}
		return m, nil
	case *Interval:
		m["type"] = "Interval"
		low, err := exprToMap(t.Low)
		if err != nil {
			return nil, err
		}
		high, err := exprToMap(t.High)
		if err != nil {
			return nil, err
		}
		m["low"] = low
		m["high"] = high
		m["lowClosed"] = t.LowInclusive
		m["highClosed"] = t.HighInclusive
		if t.LowClosedExpression != nil {
			lce, err := exprToMap(t.LowClosedExpression)
			if err != nil {
				return nil, err
			}
			m["lowClosedExpression"] = lce
		}
		if t.HighClosedExpression != nil {
			hce, err := exprToMap(t.HighClosedExpression)
			if err != nil {
				return nil, err
			}
			m["highClosedExpression"] = hce
		}
		return m, nil
	case *List:
		m["type"] = "List"
		elems := make([]any, 0, len(t.List))
		for _, el := range t.List {
			em, err := exprToMap(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, em)
		}
		m["element"] = elems
		return m, nil
	case *Tuple:
		m["type"] = "Tuple"
		elems := make([]any, 0, len(t.Elements))
		for _, el := range t.Elements {
			vm, err := exprToMap(el.Value)
			if err != nil {
				return nil, err
			}
			elems = append(elems, map[string]any{"name": el.Name, "value": vm})
		}
		m["element"] = elems
		return m, nil
	case *Instance:
		m["type"] = "Instance"
		qn, err := qname(t.ClassType)
		if err != nil {
			return nil, err
		}
		m["classType"] = qn
		elems := make([]any, 0, len(t.Elements))
		for _, el := range t.Elements {
			vm, err := exprToMap(el.Value)
			if err != nil {
				return nil, err
			}
			elems = append(elems, map[string]any{"name": el.Name, "value": vm})
		}
		m["element"] = elems
		return m, nil
	case *Message:
		m["type"] = "Message"
		for key, sub := range map[string]IExpression{
			"source": t.Source, "condition": t.Condition, "code": t.Code,
			"severity": t.Severity, "message": t.Message,
		} {
			if sub == nil {
				continue
			}
			sm, err := exprToMap(sub)
			if err != nil {
				return nil, err
			}
			m[key] = sm
		}
		return m, nil
	case *IfThenElse:
		m["type"] = "If"
		cond, err := exprToMap(t.Condition)
		if err != nil {
			return nil, err
		}
		then, err := exprToMap(t.Then)
		if err != nil {
			return nil, err
		}
		els, err := exprToMap(t.Else)
		if err != nil {
			return nil, err
		}
		m["condition"] = cond
		m["then"] = then
		m["else"] = els
		return m, nil
	case *Case:
		m["type"] = "Case"
		if t.Comparand != nil {
			cm, err := exprToMap(t.Comparand)
			if err != nil {
				return nil, err
			}
			m["comparand"] = cm
		}
		items := make([]any, 0, len(t.CaseItem))
		for _, ci := range t.CaseItem {
			wm, err := exprToMap(ci.When)
			if err != nil {
				return nil, err
			}
			tm, err := exprToMap(ci.Then)
			if err != nil {
				return nil, err
			}
			items = append(items, map[string]any{"when": wm, "then": tm})
		}
		m["caseItem"] = items
		em, err := exprToMap(t.Else)
		if err != nil {
			return nil, err
		}
		m["else"] = em
		return m, nil
	case *MinValue:
		m["type"] = "MinValue"
		qn, err := qname(t.ValueType)
		if err != nil {
			return nil, err
		}
		m["valueType"] = qn
		return m, nil
	case *MaxValue:
		m["type"] = "MaxValue"
		qn, err := qname(t.ValueType)
		if err != nil {
			return nil, err
		}
		m["valueType"] = qn
		return m, nil
	case *Retrieve:
		m["type"] = "Retrieve"
		m["dataType"] = t.DataType
		if t.TemplateID != "" {
			m["templateId"] = t.TemplateID
		}
		if t.CodeProperty != "" {
			m["codeProperty"] = t.CodeProperty
		}
		if t.Codes != nil {
			cm, err := exprToMap(t.Codes)
			if err != nil {
				return nil, err
			}
			m["codes"] = cm
		}
		if t.DateProperty != "" {
			m["dateProperty"] = t.DateProperty
		}
		if t.DateRange != nil {
			dm, err := exprToMap(t.DateRange)
			if err != nil {
				return nil, err
			}
			m["dateRange"] = dm
		}
		if t.Context != "" {
			m["context"] = t.Context
		}
		return m, nil
	case *Property:
		m["type"] = "Property"
		m["path"] = t.Path
		if t.Source != nil {
			sm, err := exprToMap(t.Source)
			if err != nil {
				return nil, err
			}
			m["source"] = sm
		}
		return m, nil
	case *Query:
		return queryToMap(t, m)
	case *As:
		m["type"] = "As"
		m["strict"] = t.Strict
		qn, err := qname(t.AsTypeSpecifier)
		if err != nil {
			return nil, err
		}
		m["asType"] = qn
		om, err := exprToMap(t.Operand)
		if err != nil {
			return nil, err
		}
		m["operand"] = om
		return m, nil
	case *Is:
		m["type"] = "Is"
		qn, err := qname(t.IsTypeSpecifier)
		if err != nil {
			return nil, err
		}
		m["isType"] = qn
		om, err := exprToMap(t.Operand)
		if err != nil {
			return nil, err
		}
		m["operand"] = om
		return m, nil
	case *ExpressionRef:
		m["type"] = "ExpressionRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		return m, nil
	case *ParameterRef:
		m["type"] = "ParameterRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		return m, nil
	case *ValuesetRef:
		m["type"] = "ValueSetRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		return m, nil
	case *CodeSystemRef:
		m["type"] = "CodeSystemRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		return m, nil
	case *CodeRef:
		m["type"] = "CodeRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		return m, nil
	case *ConceptRef:
		m["type"] = "ConceptRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		return m, nil
	case *AliasRef:
		m["type"] = "AliasRef"
		m["name"] = t.Name
		return m, nil
	case *QueryLetRef:
		m["type"] = "QueryLetRef"
		m["name"] = t.Name
		return m, nil
	case *OperandRef:
		m["type"] = "OperandRef"
		m["name"] = t.Name
		return m, nil
	case *IdentifierRef:
		m["type"] = "IdentifierRef"
		m["name"] = t.Name
		return m, nil
	case *FunctionRef:
		m["type"] = "FunctionRef"
		m["name"] = t.Name
		if t.LibraryName != "" {
			m["libraryName"] = t.LibraryName
		}
		if err := addOperands(t.Operands...); err != nil {
			return nil, err
		}
		return m, nil
	}

	// Generic operator paths.
	if u, ok := e.(IUnaryExpression); ok {
		m["type"] = u.GetName()
		if prec, has := precisionOf(e); has && prec != UNSETDATETIMEPRECISION {
			m["precision"] = string(prec)
		}
		om, err := exprToMap(u.GetOperand())
		if err != nil {
			return nil, err
		}
		m["operand"] = om
		return m, nil
	}
	if b, ok := e.(IBinaryExpression); ok {
		m["type"] = b.GetName()
		if prec, has := precisionOf(e); has && prec != UNSETDATETIMEPRECISION {
			m["precision"] = string(prec)
		}
		if err := addOperands(b.Left(), b.Right()); err != nil {
			return nil, err
		}
		return m, nil
	}
	if n, ok := e.(INaryExpression); ok {
		m["type"] = n.GetName()
		if err := addOperands(n.GetOperands()...); err != nil {
			return nil, err
		}
		return m, nil
	}

	return nil, fmt.Errorf("internal error - cannot serialize expression %T", e)
}

func queryToMap(q *Query, m map[string]any) (map[string]any, error) {
	m["type"] = "Query"
	sources := make([]any, 0, len(q.Source))
	for _, s := range q.Source {
		sm, err := exprToMap(s.Source)
		if err != nil {
			return nil, err
		}
		sources = append(sources, map[string]any{"alias": s.Alias, "expression": sm})
	}
	m["source"] = sources
	if len(q.Let) > 0 {
		lets := make([]any, 0, len(q.Let))
		for _, l := range q.Let {
			lm, err := exprToMap(l.Expression)
			if err != nil {
				return nil, err
			}
			lets = append(lets, map[string]any{"identifier": l.Identifier, "expression": lm})
		}
		m["let"] = lets
	}
	if len(q.Relationship) > 0 {
		rels := make([]any, 0, len(q.Relationship))
		for _, r := range q.Relationship {
			var rc *RelationshipClause
			typ := "With"
			switch rel := r.(type) {
			case *With:
				rc = rel.RelationshipClause
			case *Without:
				rc = rel.RelationshipClause
				typ = "Without"
			default:
				return nil, fmt.Errorf("internal error - unknown relationship clause %T", r)
			}
			em, err := exprToMap(rc.Expression)
			if err != nil {
				return nil, err
			}
			stm, err := exprToMap(rc.SuchThat)
			if err != nil {
				return nil, err
			}
			rels = append(rels, map[string]any{
				"type": typ, "alias": rc.Alias, "expression": em, "suchThat": stm,
			})
		}
		m["relationship"] = rels
	}
	if q.Where != nil {
		wm, err := exprToMap(q.Where)
		if err != nil {
			return nil, err
		}
		m["where"] = wm
	}
	if q.Return != nil {
		rm, err := exprToMap(q.Return.Expression)
		if err != nil {
			return nil, err
		}
		m["return"] = map[string]any{"distinct": q.Return.Distinct, "expression": rm}
	}
	if q.Aggregate != nil {
		am, err := exprToMap(q.Aggregate.Expression)
		if err != nil {
			return nil, err
		}
		agg := map[string]any{
			"identifier": q.Aggregate.Identifier,
			"distinct":   q.Aggregate.Distinct,
			"expression": am,
		}
		if q.Aggregate.Starting != nil {
			sm, err := exprToMap(q.Aggregate.Starting)
			if err != nil {
				return nil, err
			}
			agg["starting"] = sm
		}
		m["aggregate"] = agg
	}
	if q.Sort != nil && len(q.Sort.ByItems) > 0 {
		items := make([]any, 0, len(q.Sort.ByItems))
		for _, item := range q.Sort.ByItems {
			switch si := item.(type) {
			case *SortByDirection:
				items = append(items, map[string]any{"type": "ByDirection", "direction": string(si.Direction)})
			case *SortByColumn:
				items = append(items, map[string]any{"type": "ByColumn", "path": si.Path, "direction": string(si.Direction)})
			case *SortByExpression:
				em, err := exprToMap(si.SortExpression)
				if err != nil {
					return nil, err
				}
				items = append(items, map[string]any{"type": "ByExpression", "expression": em, "direction": string(si.Direction)})
			}
		}
		m["sort"] = map[string]any{"by": items}
	}
	return m, nil
}

// xmlNode is a minimal element tree used for the XML rendering of the
// generic map form: scalar entries become attributes, nested maps and
// arrays become child elements, and "type" becomes xsi:type.
type xmlNode struct {
	name     string
	attrs    [][2]string
	children []*xmlNode
}

func serializeXML(root map[string]any, pretty bool) ([]byte, error) {
	node := mapToXML("library", root)
	node.attrs = append([][2]string{
		{"xmlns", elmSchemaID},
		{"xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance"},
	}, node.attrs...)
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	if pretty {
		sb.WriteString("\n")
	}
	writeXML(&sb, node, 0, pretty)
	return []byte(sb.String()), nil
}

func mapToXML(name string, m map[string]any) *xmlNode {
	node := &xmlNode{name: name}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		switch val := v.(type) {
		case map[string]any:
			node.children = append(node.children, mapToXML(k, val))
		case []any:
			for _, item := range val {
				if im, ok := item.(map[string]any); ok {
					node.children = append(node.children, mapToXML(k, im))
				} else {
					node.children = append(node.children, &xmlNode{
						name:  k,
						attrs: [][2]string{{"value", fmt.Sprintf("%v", item)}},
					})
				}
			}
		default:
			attrName := k
			if k == "type" {
				attrName = "xsi:type"
			}
			node.attrs = append(node.attrs, [2]string{attrName, fmt.Sprintf("%v", val)})
		}
	}
	return node
}

func writeXML(sb *strings.Builder, n *xmlNode, depth int, pretty bool) {
	indent := ""
	if pretty {
		indent = strings.Repeat("   ", depth)
		sb.WriteString(indent)
	}
	sb.WriteString("<" + n.name)
	for _, attr := range n.attrs {
		sb.WriteString(fmt.Sprintf(" %s=%q", attr[0], xmlEscape(attr[1])))
	}
	if len(n.children) == 0 {
		sb.WriteString("/>")
		if pretty {
			sb.WriteString("\n")
		}
		return
	}
	sb.WriteString(">")
	if pretty {
		sb.WriteString("\n")
	}
	for _, child := range n.children {
		writeXML(sb, child, depth+1, pretty)
	}
	if pretty {
		sb.WriteString(indent)
	}
	sb.WriteString("</" + n.name + ">")
	if pretty {
		sb.WriteString("\n")
	}
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

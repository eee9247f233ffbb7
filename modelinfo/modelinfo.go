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

// Package modelinfo defines the interface between the CQL engine and the
// data models CQL is authored against. Hosts provide an implementation of
// the Provider interface (or populate the InMemory provider); the System
// model is always available.
package modelinfo

import (
	"fmt"
	"strings"

	"github.com/octofhir/cql-go/types"
)

// TypeInfo describes one class type of a data model.
type TypeInfo struct {
	// Name is the fully qualified type name, such as FHIR.Observation.
	Name string
	// BaseType is the fully qualified name of the parent type, empty when
	// the parent is Any.
	BaseType string
	// Properties maps property names to their types.
	Properties map[string]types.IType
	// Retrievable is true when the type can appear in a retrieve.
	Retrievable bool
	// PrimaryCodePath is the property a retrieve filters by default.
	PrimaryCodePath string
}

// Provider supplies type information for one data model.
type Provider interface {
	// Name returns the model's local name, such as FHIR.
	Name() string
	// URI returns the model's uri, such as http://hl7.org/fhir.
	URI() string
	// Version returns the model version.
	Version() string
	// GetType returns the info for a fully qualified or unqualified type
	// name, or false when the model does not define it.
	GetType(name string) (*TypeInfo, bool)
}

// InMemory is a Provider backed by a map, suitable for tests and hosts that
// assemble model info programmatically.
type InMemory struct {
	ModelName    string
	ModelURI     string
	ModelVersion string
	Types        map[string]*TypeInfo
}

// Name returns the model's local name.
func (m *InMemory) Name() string { return m.ModelName }

// URI returns the model's uri.
func (m *InMemory) URI() string { return m.ModelURI }

// Version returns the model version.
func (m *InMemory) Version() string { return m.ModelVersion }

// GetType returns the info for the type name, qualified or not.
func (m *InMemory) GetType(name string) (*TypeInfo, bool) {
	if t, ok := m.Types[name]; ok {
		return t, true
	}
	t, ok := m.Types[m.ModelName+"."+name]
	return t, ok
}

// Registry tracks the models available to a set of libraries and answers
// the analyzer's and interpreter's type questions. The System model is
// always registered.
type Registry struct {
	providers map[string]Provider
	// using tracks the models activated by the current library's using
	// declarations, keyed by local name.
	using map[string]bool
}

// NewRegistry returns a Registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}, using: map[string]bool{}}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// SetUsing activates a model for the current library. It fails when no
// provider for the model is registered.
func (r *Registry) SetUsing(name, version string) error {
	p, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("data model %q is not loaded", name)
	}
	if version != "" && p.Version() != "" && version != p.Version() {
		return fmt.Errorf("data model %q version %q is not loaded, have %q", name, version, p.Version())
	}
	r.using[name] = true
	return nil
}

// ResetUsing clears the active models, called between libraries.
func (r *Registry) ResetUsing() {
	r.using = map[string]bool{}
}

// URI returns the uri of a registered model.
func (r *Registry) URI(name string) (string, error) {
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("data model %q is not loaded", name)
	}
	return p.URI(), nil
}

// ResolveType resolves a possibly-qualified type name to a type. System
// types resolve always; model types resolve against the active models.
func (r *Registry) ResolveType(name string) (types.IType, error) {
	if s := types.ToSystem(name); s != types.Unset {
		return s, nil
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		modelName := name[:i]
		if modelName == "System" {
			return nil, fmt.Errorf("unknown System type %q", name)
		}
		p, ok := r.providers[modelName]
		if !ok || !r.using[modelName] {
			return nil, fmt.Errorf("data model %q is not in scope", modelName)
		}
		if info, ok := p.GetType(name); ok {
			return &types.Named{Name: info.Name}, nil
		}
		return nil, fmt.Errorf("type %q not found in model %q", name, modelName)
	}
	for modelName := range r.using {
		if info, ok := r.providers[modelName].GetType(name); ok {
			return &types.Named{Name: info.Name}, nil
		}
	}
	return nil, fmt.Errorf("type %q not found in any loaded data model", name)
}

// typeInfo finds the TypeInfo for a named type in any registered model.
func (r *Registry) typeInfo(name string) (*TypeInfo, bool) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		if p, ok := r.providers[name[:i]]; ok {
			return p.GetType(name)
		}
		return nil, false
	}
	for _, p := range r.providers {
		if info, ok := p.GetType(name); ok {
			return info, true
		}
	}
	return nil, false
}

// PropertyType returns the type of a property on a parent type. System
// structured types carry their properties here; class types come from the
// model providers.
func (r *Registry) PropertyType(parent types.IType, property string) (types.IType, error) {
	switch t := parent.(type) {
	case *types.Tuple:
		if pt, ok := t.ElementTypes[property]; ok {
			return pt, nil
		}
		return nil, fmt.Errorf("property %q is not defined on %v", property, parent)
	case *types.Interval:
		switch property {
		case "low", "high":
			return t.PointType, nil
		case "lowClosed", "highClosed":
			return types.Boolean, nil
		}
		return nil, fmt.Errorf("property %q is not defined on %v", property, parent)
	case *types.List:
		// Property access on a list maps over the elements.
		et, err := r.PropertyType(t.ElementType, property)
		if err != nil {
			return nil, err
		}
		return &types.List{ElementType: et}, nil
	case *types.Choice:
		var found []types.IType
		for _, alt := range t.ChoiceTypes {
			if pt, err := r.PropertyType(alt, property); err == nil {
				found = append(found, pt)
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("property %q is not defined on %v", property, parent)
		}
		return types.CommonSupertype(r, found...), nil
	case types.System:
		if pt, ok := systemProperties[t][property]; ok {
			return pt, nil
		}
		return nil, fmt.Errorf("property %q is not defined on %v", property, parent)
	case *types.Named:
		for name := t.Name; name != ""; {
			info, ok := r.typeInfo(name)
			if !ok {
				return nil, fmt.Errorf("type %q not found in any loaded data model", name)
			}
			if pt, ok := info.Properties[property]; ok {
				return pt, nil
			}
			name = info.BaseType
		}
		return nil, fmt.Errorf("property %q is not defined on %v", property, parent)
	}
	return nil, fmt.Errorf("property %q is not defined on %v", property, parent)
}

// BaseOf implements types.ClassHierarchy over the registered models.
func (r *Registry) BaseOf(typeName string) (string, bool) {
	info, ok := r.typeInfo(typeName)
	if !ok || info.BaseType == "" {
		return "", false
	}
	return info.BaseType, true
}

// IsRetrievable reports whether the named type can appear in a retrieve.
func (r *Registry) IsRetrievable(name string) (bool, error) {
	info, ok := r.typeInfo(name)
	if !ok {
		return false, fmt.Errorf("type %q not found in any loaded data model", name)
	}
	return info.Retrievable, nil
}

// PrimaryCodePath returns the default code-filter property of a
// retrievable type.
func (r *Registry) PrimaryCodePath(name string) (string, error) {
	info, ok := r.typeInfo(name)
	if !ok {
		return "", fmt.Errorf("type %q not found in any loaded data model", name)
	}
	if info.PrimaryCodePath == "" {
		return "", fmt.Errorf("type %q has no primary code path", name)
	}
	return info.PrimaryCodePath, nil
}

// systemProperties are the properties of the structured System types.
var systemProperties = map[types.System]map[string]types.IType{
	types.Quantity: {
		"value": types.Decimal,
		"unit":  types.String,
	},
	types.Ratio: {
		"numerator":   types.Quantity,
		"denominator": types.Quantity,
	},
	types.Code: {
		"code":    types.String,
		"system":  types.String,
		"version": types.String,
		"display": types.String,
	},
	types.Concept: {
		"codes":   &types.List{ElementType: types.Code},
		"display": types.String,
	},
}

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

package terminology

import (
	"encoding/json"
	"fmt"
	"sync"
)

// vocabKey identifies a value set or code system by id and version.
type vocabKey struct {
	ID      string
	Version string
}

// vocabDef is the JSON form the local provider loads:
//
//	{
//	  "id": "urn:oid:bp-valueset",
//	  "version": "1.0",
//	  "resourceType": "ValueSet",
//	  "codes": [{"system": "http://loinc.org", "code": "8480-6"}]
//	}
type vocabDef struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	ResourceType string `json:"resourceType"`
	Codes        []Code `json:"codes"`
}

// Local is an in-memory terminology provider loaded from JSON definitions.
// It is safe for concurrent use by multiple evaluations.
type Local struct {
	mu          sync.RWMutex
	valueSets   map[vocabKey]map[codeKey]Code
	codeSystems map[vocabKey]map[codeKey]Code
}

// NewLocal returns an empty Local provider. Definitions are added with
// LoadJSON or AddValueSet/AddCodeSystem.
func NewLocal() *Local {
	return &Local{
		valueSets:   map[vocabKey]map[codeKey]Code{},
		codeSystems: map[vocabKey]map[codeKey]Code{},
	}
}

// NewLocalFromJSON returns a Local provider preloaded from JSON vocabulary
// definitions.
func NewLocalFromJSON(docs [][]byte) (*Local, error) {
	l := NewLocal()
	for _, doc := range docs {
		if err := l.LoadJSON(doc); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// LoadJSON adds one vocabulary definition.
func (l *Local) LoadJSON(doc []byte) error {
	var def vocabDef
	if err := json.Unmarshal(doc, &def); err != nil {
		return fmt.Errorf("invalid vocabulary definition: %w", err)
	}
	if def.ID == "" {
		return fmt.Errorf("vocabulary definition requires an id")
	}
	switch def.ResourceType {
	case "", "ValueSet":
		l.AddValueSet(def.ID, def.Version, def.Codes)
	case "CodeSystem":
		l.AddCodeSystem(def.ID, def.Version, def.Codes)
	default:
		return fmt.Errorf("unsupported vocabulary resourceType %q", def.ResourceType)
	}
	return nil
}

// AddValueSet registers a value set and its codes.
func (l *Local) AddValueSet(id, version string, codes []Code) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := vocabKey{ID: id, Version: version}
	m, ok := l.valueSets[key]
	if !ok {
		m = map[codeKey]Code{}
		l.valueSets[key] = m
	}
	for _, c := range codes {
		m[c.key()] = c
	}
}

// AddCodeSystem registers a code system and its codes.
func (l *Local) AddCodeSystem(id, version string, codes []Code) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := vocabKey{ID: id, Version: version}
	m, ok := l.codeSystems[key]
	if !ok {
		m = map[codeKey]Code{}
		l.codeSystems[key] = m
	}
	for _, c := range codes {
		m[c.key()] = c
	}
}

// lookup finds a vocabulary by id, trying the exact version then the
// unversioned entry.
func lookup(m map[vocabKey]map[codeKey]Code, id, version string) (map[codeKey]Code, bool) {
	if codes, ok := m[vocabKey{ID: id, Version: version}]; ok {
		return codes, true
	}
	if version != "" {
		return nil, false
	}
	// An unversioned request matches any single registered version.
	var found map[codeKey]Code
	count := 0
	for key, codes := range m {
		if key.ID == id {
			found = codes
			count++
		}
	}
	if count == 1 {
		return found, true
	}
	return nil, false
}

// InValueSet reports whether the code is a member of the value set.
func (l *Local) InValueSet(code Code, valueSetID, valueSetVersion string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	codes, ok := lookup(l.valueSets, valueSetID, valueSetVersion)
	if !ok {
		return false, fmt.Errorf("valueset %q: %w", valueSetID, ErrNotFound)
	}
	_, member := codes[code.key()]
	return member, nil
}

// InCodeSystem reports whether the code is defined by the code system.
func (l *Local) InCodeSystem(code Code, codeSystemID, codeSystemVersion string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	codes, ok := lookup(l.codeSystems, codeSystemID, codeSystemVersion)
	if !ok {
		return false, fmt.Errorf("codesystem %q: %w", codeSystemID, ErrNotFound)
	}
	_, member := codes[code.key()]
	return member, nil
}

// ExpandValueSet returns all codes of the value set.
func (l *Local) ExpandValueSet(valueSetID, valueSetVersion string) ([]Code, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	codes, ok := lookup(l.valueSets, valueSetID, valueSetVersion)
	if !ok {
		return nil, fmt.Errorf("valueset %q: %w", valueSetID, ErrNotFound)
	}
	out := make([]Code, 0, len(codes))
	for _, c := range codes {
		out = append(out, c)
	}
	return out, nil
}

// LookupDisplay returns the display string for a code from any code system
// that defines it.
func (l *Local) LookupDisplay(code Code) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, codes := range l.codeSystems {
		if c, ok := codes[code.key()]; ok && c.Display != "" {
			return c.Display, nil
		}
	}
	for _, codes := range l.valueSets {
		if c, ok := codes[code.key()]; ok && c.Display != "" {
			return c.Display, nil
		}
	}
	return "", fmt.Errorf("display for %s %s: %w", code.System, code.Code, ErrNotFound)
}

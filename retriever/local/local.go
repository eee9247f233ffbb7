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

// Package local provides a Retriever over JSON resources held in memory,
// suitable for tests and the CLI. Resources are JSON objects with a
// resourceType property:
//
//	{"resourceType": "Observation", "id": "1", "code": {...}}
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/retriever"
	"github.com/octofhir/cql-go/types"
)

// Retriever is an in-memory JSON-backed data source. It is safe for
// concurrent use once loaded.
type Retriever struct {
	// ModelName qualifies resource types, such as FHIR.
	ModelName string

	mu sync.RWMutex
	// resources maps a bare resource type name to its instances.
	resources map[string][]result.Value
}

var _ retriever.Retriever = &Retriever{}

// New returns an empty local retriever for the given model.
func New(modelName string) *Retriever {
	return &Retriever{ModelName: modelName, resources: map[string][]result.Value{}}
}

// NewFromJSON returns a local retriever loaded from JSON documents. Each
// document is either a single resource object or an array of them.
func NewFromJSON(modelName string, docs [][]byte) (*Retriever, error) {
	r := New(modelName)
	for _, doc := range docs {
		if err := r.LoadJSON(doc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewFromDirectory loads every .json file in a directory.
func NewFromDirectory(modelName, dir string) (*Retriever, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	r := New(modelName)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := os.ReadFile(dir + string(os.PathSeparator) + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		if err := r.LoadJSON(doc); err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
	}
	return r, nil
}

// LoadJSON adds a resource object or array of resource objects.
func (r *Retriever) LoadJSON(doc []byte) error {
	var raw any
	if err := json.Unmarshal(doc, &raw); err != nil {
		return fmt.Errorf("invalid resource JSON: %w", err)
	}
	switch v := raw.(type) {
	case map[string]any:
		return r.addResource(v)
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("resource array entries must be objects, got %T", item)
			}
			if err := r.addResource(obj); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("resource JSON must be an object or array, got %T", raw)
}

func (r *Retriever) addResource(obj map[string]any) error {
	resourceType, _ := obj["resourceType"].(string)
	if resourceType == "" {
		return fmt.Errorf("resource is missing resourceType")
	}
	qualified := resourceType
	if r.ModelName != "" {
		qualified = r.ModelName + "." + resourceType
	}
	value, err := jsonToValue(obj, &types.Named{Name: qualified})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.resources[resourceType] = append(r.resources[resourceType], value)
	r.mu.Unlock()
	glog.V(2).Infof("local retriever loaded %s resource", qualified)
	return nil
}

// Retrieve returns all resources of the requested type. Code and date
// filtering is left to the interpreter, which re-applies both filters.
func (r *Retriever) Retrieve(_ context.Context, query retriever.Query) ([]result.Value, error) {
	bare := query.DataType
	if idx := strings.LastIndexByte(bare, '.'); idx >= 0 {
		bare = bare[idx+1:]
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]result.Value, len(r.resources[bare]))
	copy(out, r.resources[bare])
	return out, nil
}

// jsonToValue converts decoded JSON to a CQL value. Objects become tuples;
// the root object carries the resource's named type.
func jsonToValue(raw any, runtimeType types.IType) (result.Value, error) {
	switch v := raw.(type) {
	case nil:
		return result.New(nil)
	case bool:
		return result.New(v)
	case string:
		return result.New(v)
	case float64:
		// JSON numbers with no fractional part surface as integers so code
		// can compare them without explicit conversion.
		if v == float64(int64(v)) && v >= -2147483648 && v <= 2147483647 {
			return result.New(int32(v))
		}
		return result.New(v)
	case []any:
		elems := make([]result.Value, 0, len(v))
		for _, item := range v {
			ev, err := jsonToValue(item, nil)
			if err != nil {
				return result.Value{}, err
			}
			elems = append(elems, ev)
		}
		return result.New(result.List{Value: elems})
	case map[string]any:
		values := make(map[string]result.Value, len(v))
		elemTypes := make(map[string]types.IType, len(v))
		for name, item := range v {
			ev, err := jsonToValue(item, nil)
			if err != nil {
				return result.Value{}, err
			}
			values[name] = ev
			elemTypes[name] = ev.RuntimeType()
		}
		rt := runtimeType
		if rt == nil {
			rt = &types.Tuple{ElementTypes: elemTypes}
		}
		return result.New(result.Tuple{Value: values, RuntimeType: rt})
	}
	return result.Value{}, fmt.Errorf("unsupported JSON value %T", raw)
}

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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lithammer/dedent"

	cql "github.com/octofhir/cql-go"
	"github.com/octofhir/cql-go/modelinfo"
	"github.com/octofhir/cql-go/result"
	"github.com/octofhir/cql-go/retriever/local"
	"github.com/octofhir/cql-go/terminology"
	"github.com/octofhir/cql-go/types"
)

// simpleModel is a minimal clinical model with a retrievable Observation.
func simpleModel() modelinfo.Provider {
	return &modelinfo.InMemory{
		ModelName:    "SIMPLE",
		ModelURI:     "urn:test:simple",
		ModelVersion: "1.0",
		Types: map[string]*modelinfo.TypeInfo{
			"SIMPLE.Patient": {
				Name:        "SIMPLE.Patient",
				Retrievable: true,
				Properties: map[string]types.IType{
					"id":        types.String,
					"birthDate": types.Date,
				},
			},
			"SIMPLE.Observation": {
				Name:            "SIMPLE.Observation",
				Retrievable:     true,
				PrimaryCodePath: "code",
				Properties: map[string]types.IType{
					"id":        types.String,
					"code":      types.Code,
					"status":    types.String,
					"effective": types.DateTime,
					"value":     types.Quantity,
				},
			},
		},
	}
}

func TestRetrieveWithValueSetFilter(t *testing.T) {
	lib := dedent.Dedent(`
		library Measure version '1.0'
		using SIMPLE version '1.0'
		valueset "BP VS": 'urn:oid:bp'
		context Patient
		define X: [Observation: "BP VS"]
	`)

	dataRetriever, err := local.NewFromJSON("SIMPLE", [][]byte{
		[]byte(`{"resourceType": "Observation", "id": "obs-1", "code": {"system": "http://loinc.org", "code": "8480-6"}}`),
		[]byte(`{"resourceType": "Observation", "id": "obs-2", "code": {"system": "http://loinc.org", "code": "1234-5"}}`),
	})
	if err != nil {
		t.Fatalf("building retriever: %v", err)
	}

	terminologyProvider := terminology.NewLocal()
	terminologyProvider.AddValueSet("urn:oid:bp", "", []terminology.Code{
		{System: "http://loinc.org", Code: "8480-6"},
	})

	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{
		DataModels: []modelinfo.Provider{simpleModel()},
	})
	if err != nil {
		t.Fatalf("parsing library: %v", err)
	}
	got, err := elm.EvalExpression(context.Background(), "X", dataRetriever, cql.EvalConfig{
		Terminology:         terminologyProvider,
		EvaluationTimestamp: defaultEvalTimestamp,
	})
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}

	list, err := result.ToList(got)
	if err != nil {
		t.Fatalf("retrieve did not return a list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("retrieve returned %d resources, want 1", len(list))
	}
	tuple, err := result.ToTuple(list[0])
	if err != nil {
		t.Fatalf("resource is not a tuple: %v", err)
	}
	gotID, err := result.ToString(tuple.Value["id"])
	if err != nil {
		t.Fatalf("resource id: %v", err)
	}
	if diff := cmp.Diff("obs-1", gotID); diff != "" {
		t.Errorf("retrieve kept the wrong resource (-want +got):\n%s", diff)
	}
}

func TestRetrieveUnfilteredAndProperties(t *testing.T) {
	lib := dedent.Dedent(`
		library Measure version '1.0'
		using SIMPLE version '1.0'
		context Patient
		define Observations: [Observation]
		define X: Observations O where O.status = 'final' return O.id
	`)

	dataRetriever, err := local.NewFromJSON("SIMPLE", [][]byte{
		[]byte(`{"resourceType": "Observation", "id": "obs-1", "status": "final"}`),
		[]byte(`{"resourceType": "Observation", "id": "obs-2", "status": "draft"}`),
	})
	if err != nil {
		t.Fatalf("building retriever: %v", err)
	}

	elm, err := cql.Parse(context.Background(), []string{lib}, cql.ParseConfig{
		DataModels: []modelinfo.Provider{simpleModel()},
	})
	if err != nil {
		t.Fatalf("parsing library: %v", err)
	}
	got, err := elm.EvalExpression(context.Background(), "X", dataRetriever, cql.EvalConfig{
		EvaluationTimestamp: defaultEvalTimestamp,
	})
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}
	want := wantList(t, "obs-1")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query over retrieve returned diff (-want +got):\n%s", diff)
	}
}

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

// The cli command validates, translates and evaluates CQL libraries from
// the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	cql "github.com/octofhir/cql-go"
	"github.com/octofhir/cql-go/diag"
	"github.com/octofhir/cql-go/model"
	"github.com/octofhir/cql-go/parser"
	"github.com/octofhir/cql-go/retriever/local"
	"github.com/octofhir/cql-go/terminology"
)

var (
	cqlPaths         []string
	dataDir          string
	terminologyPaths []string
	modelName        string
	format           string
	pretty           bool
)

func main() {
	root := &cobra.Command{
		Use:           "cli",
		Short:         "Parse, translate and evaluate CQL libraries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&cqlPaths, "cql", nil, "CQL library files (repeatable)")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Parse and analyze libraries, printing diagnostics",
		RunE:  runValidate,
	}

	translate := &cobra.Command{
		Use:   "translate",
		Short: "Emit ELM for the given libraries",
		RunE:  runTranslate,
	}
	translate.Flags().StringVar(&format, "format", "json", "output format: json or xml")
	translate.Flags().BoolVar(&pretty, "pretty", false, "indent the output")

	eval := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate libraries against a JSON data directory",
		RunE:  runEval,
	}
	eval.Flags().StringVar(&dataDir, "data", "", "directory of JSON resource files")
	eval.Flags().StringSliceVar(&terminologyPaths, "terminology", nil, "JSON vocabulary definition files (repeatable)")
	eval.Flags().StringVar(&modelName, "model", "", "data model name qualifying retrieved resources")

	root.AddCommand(validate, translate, eval)

	if err := root.Execute(); err != nil {
		glog.Exitf("cli failed: %v", err)
	}
}

func readLibraries() ([]string, error) {
	if len(cqlPaths) == 0 {
		return nil, fmt.Errorf("at least one --cql file is required")
	}
	libs := make([]string, 0, len(cqlPaths))
	for _, path := range cqlPaths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		libs = append(libs, string(src))
	}
	return libs, nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	libs, err := readLibraries()
	if err != nil {
		return err
	}
	failed := false
	for idx, src := range libs {
		res := parser.Parse(src, parser.Analysis)
		name := filepath.Base(cqlPaths[idx])
		for _, d := range res.Diagnostics {
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", name, d.Error())
		}
		if diag.HasErrors(res.Diagnostics) {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("validation failed")
	}
	// Full analysis catches semantic errors the per-file pass cannot.
	if _, err := cql.Parse(context.Background(), libs, cql.ParseConfig{}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runTranslate(cmd *cobra.Command, _ []string) error {
	libs, err := readLibraries()
	if err != nil {
		return err
	}
	elm, err := cql.Parse(context.Background(), libs, cql.ParseConfig{})
	if err != nil {
		return err
	}
	f := model.FormatJSON
	if strings.EqualFold(format, "xml") {
		f = model.FormatXML
	}
	docs, err := elm.Serialize(f, pretty)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Fprintln(cmd.OutOrStdout(), string(doc))
	}
	return nil
}

func runEval(cmd *cobra.Command, _ []string) error {
	libs, err := readLibraries()
	if err != nil {
		return err
	}
	elm, err := cql.Parse(context.Background(), libs, cql.ParseConfig{})
	if err != nil {
		return err
	}

	var dataRetriever *local.Retriever
	if dataDir != "" {
		dataRetriever, err = local.NewFromDirectory(modelName, dataDir)
		if err != nil {
			return err
		}
		glog.Infof("loaded data directory %s", dataDir)
	}

	var terminologyProvider *terminology.Local
	if len(terminologyPaths) > 0 {
		docs := make([][]byte, 0, len(terminologyPaths))
		for _, path := range terminologyPaths {
			doc, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			docs = append(docs, doc)
		}
		terminologyProvider, err = terminology.NewLocalFromJSON(docs)
		if err != nil {
			return err
		}
	}

	config := cql.EvalConfig{}
	if terminologyProvider != nil {
		config.Terminology = terminologyProvider
	}
	var results any
	if dataRetriever != nil {
		results, err = elm.Eval(context.Background(), dataRetriever, config)
	} else {
		results, err = elm.Eval(context.Background(), nil, config)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

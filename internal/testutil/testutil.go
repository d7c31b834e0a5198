// Package testutil loads the YAML scenario fixtures of the compiler test
// suite: a glob of YAML files, each a map of named cases,
// merged into one set with duplicate names rejected.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Scenario is one named compiler test case: a ViewDefinition plus the SQL
// fragments its compiled output must contain.
type Scenario struct {
	// ViewDefinition is the raw JSON text of the view under test.
	ViewDefinition string `yaml:"view_definition"`
	// Resource is the FHIR resource type the scenario targets, duplicated
	// here from ViewDefinition for readability; LoadScenarios does not check
	// it against the view.
	Resource string
	// Contains lists substrings the compiled SQL must contain.
	Contains []string
	// NotContains lists substrings the compiled SQL must not contain.
	NotContains []string `yaml:"not_contains"`
	// ErrorContains, if set, means Compile is expected to fail with an error
	// whose message contains this text.
	ErrorContains string `yaml:"error_contains"`
}

// LoadScenarios reads every YAML file matching pattern and merges their
// top-level maps into one set of named Scenarios. A name repeated across
// files (or within one file) is a fixture authoring error.
func LoadScenarios(pattern string) (map[string]Scenario, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	out := map[string]Scenario{}
	for _, file := range files {
		buf, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var batch map[string]Scenario
		dec := yaml.NewDecoder(bytes.NewReader(buf), yaml.DisallowUnknownField())
		if err := dec.Decode(&batch); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", file, err)
		}

		for name, scenario := range batch {
			if _, exists := out[name]; exists {
				return nil, fmt.Errorf("duplicate scenario name %q (seen again in %s)", name, file)
			}
			out[name] = scenario
		}
	}
	return out, nil
}

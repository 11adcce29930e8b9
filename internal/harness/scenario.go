package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/provsync/internal/builder"
)

// Scenario is a sequence of reconciliations followed by store assertions.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// RunIDs fixes the run ids handed out to successive passes.
	RunIDs []string `yaml:"run_ids,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step reconciles Record to Graph, or retires it.
type Step struct {
	Record string              `yaml:"record"`
	Graph  *builder.RecordSpec `yaml:"graph,omitempty"`
	Retire bool                `yaml:"retire,omitempty"`
	Expect *Expect             `yaml:"expect,omitempty"`
}

// Expect constrains a step's outcome. Without Error the step must succeed
// and execute exactly Actions.
type Expect struct {
	Actions []string `yaml:"actions"`
	Error   string   `yaml:"error,omitempty"`
}

// Assertion checks the store after all steps ran.
type Assertion struct {
	// Type is one of fetch, owners or records.
	Type string `yaml:"type"`

	// Record is the fetched record (fetch).
	Record string `yaml:"record,omitempty"`

	// Nodes and Edges are the exact expected contents (fetch). Edges are
	// written "source->target relation".
	Nodes []string `yaml:"nodes,omitempty"`
	Edges []string `yaml:"edges,omitempty"`

	// Entity is a node id or "source->target" (owners).
	Entity string `yaml:"entity,omitempty"`

	// Equals is the expected owner set (owners) or record list (records).
	Equals []string `yaml:"equals,omitempty"`
}

// Assertion type constants.
const (
	AssertFetch   = "fetch"
	AssertOwners  = "owners"
	AssertRecords = "records"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario yaml: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Record == "" {
			return fmt.Errorf("steps[%d]: record is required", i)
		}
		switch {
		case step.Graph == nil && !step.Retire:
			return fmt.Errorf("steps[%d]: one of graph or retire is required", i)
		case step.Graph != nil && step.Retire:
			return fmt.Errorf("steps[%d]: graph and retire are mutually exclusive", i)
		}
		if step.Graph != nil && step.Graph.ID != "" && step.Graph.ID != step.Record {
			return fmt.Errorf("steps[%d]: graph id %q does not match record %q", i, step.Graph.ID, step.Record)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFetch:
		if a.Record == "" {
			return fmt.Errorf("fetch requires record")
		}
	case AssertOwners:
		if a.Entity == "" {
			return fmt.Errorf("owners requires entity")
		}
	case AssertRecords:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/automata/internal/config"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Settings overrides config.Defaults for this scenario.
	Settings *config.File `yaml:"settings,omitempty"`

	// CycleToken pins every cycle to one token. If empty, tokens are
	// cycle-1, cycle-2, ... in submit order.
	CycleToken string `yaml:"cycle_token,omitempty"`

	// Steps are run in order against one engine.
	Steps []Step `yaml:"steps"`
}

// Step replaces the source buffer and submits it.
type Step struct {
	Source string  `yaml:"source"`
	Force  bool    `yaml:"force,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists what a step must have produced. Nil fields are not checked.
type Expect struct {
	Noop         bool     `yaml:"noop,omitempty"`
	Status       string   `yaml:"status,omitempty"`
	Rebuilt      []string `yaml:"rebuilt,omitempty"`
	Reused       []string `yaml:"reused,omitempty"`
	Failed       []string `yaml:"failed,omitempty"`
	Skipped      []string `yaml:"skipped,omitempty"`
	RenderOrder  []string `yaml:"render_order,omitempty"`
	Operations   []string `yaml:"operations,omitempty"`
	LogContains  []string `yaml:"log_contains,omitempty"`
	CompileError string   `yaml:"compile_error,omitempty"`
}

// Valid cycle statuses for expect.status.
var knownStatuses = []string{
	"completed",
	"compile_failed",
	"build_failed",
	"operations_failed",
	"superseded",
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	scenarios := []*Scenario{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
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
		if step.Expect == nil {
			continue
		}
		e := step.Expect
		if e.Status != "" && !slices.Contains(knownStatuses, e.Status) {
			return fmt.Errorf("steps[%d].expect: unknown status %q", i, e.Status)
		}
		if e.Noop && (e.Status != "" || e.CompileError != "") {
			return fmt.Errorf("steps[%d].expect: noop cannot be combined with status or compile_error", i)
		}
	}

	return nil
}

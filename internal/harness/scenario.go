package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/game"
)

// Scenario defines a scripted round.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bands are registered before the first step.
	Bands []band.ID `yaml:"bands"`

	// Draws are the picker results, in order.
	Draws []int `yaml:"draws"`

	// MinLength overrides the engine's minimum sequence length.
	MinLength int `yaml:"min_length,omitempty"`

	// TimeUnit overrides the cue spacing.
	TimeUnit time.Duration `yaml:"time_unit,omitempty"`

	// Steps drive the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scripted input. Exactly one action field is set, except for
// a check step, which carries only Expect.
type Step struct {
	Start     bool           `yaml:"start,omitempty"`
	Advance   time.Duration  `yaml:"advance,omitempty"`
	Tick      bool           `yaml:"tick,omitempty"`
	Add       band.ID        `yaml:"add,omitempty"`
	Remove    band.ID        `yaml:"remove,omitempty"`
	Gesture   *GestureStep   `yaml:"gesture,omitempty"`
	Heartbeat *HeartbeatStep `yaml:"heartbeat,omitempty"`

	// Expect is checked after the step runs.
	Expect *Expect `yaml:"expect,omitempty"`
}

// GestureStep is a direction change reported by a band.
type GestureStep struct {
	Band      band.ID        `yaml:"band"`
	TS        band.Timestamp `yaml:"ts"`
	Direction band.Direction `yaml:"direction"`
}

// HeartbeatStep certifies a band's device time.
type HeartbeatStep struct {
	Band band.ID        `yaml:"band"`
	TS   band.Timestamp `yaml:"ts"`
}

// Expect is a subset match on engine state. Nil fields are not checked.
type Expect struct {
	State    *string     `yaml:"state,omitempty"`
	Progress *int        `yaml:"progress,omitempty"`
	Misses   *int        `yaml:"misses,omitempty"`
	Backlog  *int        `yaml:"backlog,omitempty"`
	Sequence []game.Step `yaml:"sequence,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a line appears in the trace
	// - "trace_order": Check lines appear in order
	// - "trace_count": Check the number of events of an event type
	Type string `yaml:"type"`

	// Line is the expected trace line (used by trace_contains).
	Line string `yaml:"line,omitempty"`

	// Lines is the expected line order (used by trace_order).
	Lines []string `yaml:"lines,omitempty"`

	// Event is the trace event type (used by trace_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

var stateNames = []string{
	game.Idle.String(),
	game.Countdown.String(),
	game.Listening.String(),
	game.Finished.String(),
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]string, []*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, fmt.Errorf("list scenarios: %w", err)
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return paths, scenarios, nil
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

	if s.MinLength < 0 {
		return fmt.Errorf("min_length must be non-negative")
	}

	if s.TimeUnit < 0 {
		return fmt.Errorf("time_unit must be non-negative")
	}

	for i, d := range s.Draws {
		if d < 0 {
			return fmt.Errorf("draws[%d]: must be non-negative", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step has exactly one action, or none with an
// expect clause.
func validateStep(index int, st *Step) error {
	actions := 0
	for _, set := range []bool{
		st.Start,
		st.Advance != 0,
		st.Tick,
		st.Add != 0,
		st.Remove != 0,
		st.Gesture != nil,
		st.Heartbeat != nil,
	} {
		if set {
			actions++
		}
	}

	switch {
	case actions > 1:
		return fmt.Errorf("steps[%d]: exactly one action per step, got %d", index, actions)
	case actions == 0 && st.Expect == nil:
		return fmt.Errorf("steps[%d]: an action or expect is required", index)
	}

	if st.Advance < 0 {
		return fmt.Errorf("steps[%d]: advance must be positive", index)
	}
	if st.Gesture != nil && !st.Gesture.Direction.Valid() {
		return fmt.Errorf("steps[%d]: gesture direction %d is invalid", index, st.Gesture.Direction)
	}
	if st.Expect != nil && st.Expect.State != nil && !slices.Contains(stateNames, *st.Expect.State) {
		return fmt.Errorf("steps[%d].expect: unknown state %q", index, *st.Expect.State)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

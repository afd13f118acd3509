package devserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/docboxhq/docbox/internal/progress"
)

// Scenario scripts one simulated sync job: an ordered list of phases
// with per-phase tick counts and workload numbers. The simulator plays
// the steps back in order and interpolates the counters inside each
// step.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one phase of a scripted job.
type Step struct {
	Phase progress.Phase `yaml:"phase"`
	// Ticks is how many progress updates this step emits. Minimum 1.
	Ticks int `yaml:"ticks"`
	// Directories and Files are the totals discovered or processed by
	// the end of the step.
	Directories int64 `yaml:"directories"`
	Files       int64 `yaml:"files"`
	// Bytes is the payload volume processed by the end of the step.
	Bytes int64 `yaml:"bytes"`
	// Warnings accumulate linearly across the step.
	Warnings int64 `yaml:"warnings"`
	// Error aborts the job with this message when the step completes.
	// Only meaningful on a "failed" step.
	Error string `yaml:"error"`
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devserver: read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("devserver: parse scenario: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("devserver: scenario %q has no steps", s.Name)
	}

	for i, step := range s.Steps {
		if _, err := progress.ParsePhase(string(step.Phase)); err != nil {
			return fmt.Errorf("devserver: scenario %q step %d: %w", s.Name, i, err)
		}
		if step.Phase.Terminal() && i != len(s.Steps)-1 {
			return fmt.Errorf("devserver: scenario %q: terminal phase %q before the last step", s.Name, step.Phase)
		}
	}

	last := s.Steps[len(s.Steps)-1]
	if !last.Phase.Terminal() {
		return fmt.Errorf("devserver: scenario %q must end in a terminal phase, got %q", s.Name, last.Phase)
	}

	return nil
}

// DefaultScenario is a small healthy run through every active phase.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name: "default",
		Steps: []Step{
			{Phase: progress.PhaseInitializing, Ticks: 1},
			{Phase: progress.PhaseEvaluating, Ticks: 2},
			{Phase: progress.PhaseDiscoveringDirectories, Ticks: 3, Directories: 12},
			{Phase: progress.PhaseDiscoveringFiles, Ticks: 4, Directories: 12, Files: 240},
			{Phase: progress.PhaseProcessingFiles, Ticks: 12, Directories: 12, Files: 240, Bytes: 64 << 20},
			{Phase: progress.PhaseSavingMetadata, Ticks: 2, Directories: 12, Files: 240, Bytes: 64 << 20},
			{Phase: progress.PhaseCompleted, Ticks: 1, Directories: 12, Files: 240, Bytes: 64 << 20},
		},
	}
}

// FailingScenario aborts mid-processing, for exercising error paths.
func FailingScenario() *Scenario {
	return &Scenario{
		Name: "failing",
		Steps: []Step{
			{Phase: progress.PhaseInitializing, Ticks: 1},
			{Phase: progress.PhaseEvaluating, Ticks: 1},
			{Phase: progress.PhaseDiscoveringDirectories, Ticks: 2, Directories: 4},
			{Phase: progress.PhaseDiscoveringFiles, Ticks: 2, Directories: 4, Files: 50},
			{Phase: progress.PhaseProcessingFiles, Ticks: 4, Directories: 4, Files: 50, Bytes: 8 << 20},
			{Phase: progress.PhaseFailed, Ticks: 1, Directories: 4, Files: 50, Error: "source unreachable"},
		},
	}
}

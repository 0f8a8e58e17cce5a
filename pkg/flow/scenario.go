package flow

import "fmt"

// Scenario represents a parsed scenario file: a header and an ordered step list.
type Scenario struct {
	SourcePath string // Path to the source file
	Config     Config // Scenario configuration
	Steps      []Step // Steps to execute, strictly in order
}

// Config represents scenario-level configuration.
type Config struct {
	Name       string `yaml:"name"`
	AppPackage string `yaml:"appPackage"` // Screens of this package report their title text

	// TitleLocator finds the screen title used by checkpoints.
	TitleLocator *Locator `yaml:"titleLocator"`

	// Timeout is the default per-step wait in ms.
	Timeout int `yaml:"timeout"`
}

// Name returns the configured name or the source path.
func (s *Scenario) Name() string {
	if s.Config.Name != "" {
		return s.Config.Name
	}
	return s.SourcePath
}

// Validate checks the title locator and every step locator. It returns the
// index of the first invalid step, or -1 when the step list is valid.
func (s *Scenario) Validate() (int, error) {
	if s.Config.TitleLocator != nil {
		if err := s.Config.TitleLocator.Validate(); err != nil {
			return -1, fmt.Errorf("titleLocator: %w", err)
		}
	}
	for i, step := range s.Steps {
		ls, ok := step.(LocatorStep)
		if !ok {
			continue
		}
		if err := ls.Target().Validate(); err != nil {
			return i, fmt.Errorf("step %d (%s): %w", i+1, step.Type(), err)
		}
	}
	return -1, nil
}

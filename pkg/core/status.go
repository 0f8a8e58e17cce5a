package core

import "fmt"

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusWarned                    // Tolerated absence under a warn policy
	StatusFailed                    // Aborted the scenario
	StatusSkipped                   // Not executed because an earlier step aborted
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusWarned:
		return "warned"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusWarned, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status lets the scenario continue (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// MarshalText encodes the status by name in reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *StepStatus) UnmarshalText(text []byte) error {
	for v := StatusPending; v <= StatusSkipped; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", text)
}

// ScenarioState is the runner's state machine: Pending -> Running -> {Completed, Aborted}.
type ScenarioState int

const (
	ScenarioPending ScenarioState = iota
	ScenarioRunning
	ScenarioCompleted
	ScenarioAborted
)

func (s ScenarioState) String() string {
	switch s {
	case ScenarioPending:
		return "pending"
	case ScenarioRunning:
		return "running"
	case ScenarioCompleted:
		return "completed"
	case ScenarioAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Completed and Aborted.
func (s ScenarioState) IsTerminal() bool {
	return s == ScenarioCompleted || s == ScenarioAborted
}

// MarshalText encodes the state by name in reports.
func (s ScenarioState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *ScenarioState) UnmarshalText(text []byte) error {
	for v := ScenarioPending; v <= ScenarioAborted; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown scenario state %q", text)
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, checkpoint mismatch, failed expectation
	ErrCategoryConnection                      // Automation server transport failure
	ErrCategoryConfig                          // Invalid locator, invalid configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

package core

import (
	"time"
)

// StepResult captures the outcome of executing a single step
type StepResult struct {
	// Identity
	Index   int    `json:"index"`   // 0-based position in scenario
	Command string `json:"command"` // tapOn, readText, checkpoint, ...
	Label   string `json:"label,omitempty"`

	// Locator
	Expression string `json:"expression,omitempty"` // Compiled query expression
	OnMissing  string `json:"onMissing,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"-"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Elapsed   time.Duration `json:"elapsed,omitempty"` // Time spent waiting for the element

	// Output
	Message string `json:"message,omitempty"`
	Value   string `json:"value,omitempty"` // Text or attribute read by the step

	// Error details
	Error string `json:"error,omitempty"`

	// Debug artifacts
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScenarioResult captures the outcome of one scenario run
type ScenarioResult struct {
	RunID    string        `json:"runId"`
	Name     string        `json:"name"`
	FilePath string        `json:"filePath,omitempty"`
	State    ScenarioState `json:"state"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps    []StepResult `json:"steps"`
	Warnings []LogEntry   `json:"warnings,omitempty"`

	// Abort details
	FailedStep int    `json:"failedStep"` // -1 when completed
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}

// Passed reports whether the scenario reached Completed.
func (r *ScenarioResult) Passed() bool {
	return r.State == ScenarioCompleted
}

// Counts returns the number of steps per status.
func (r *ScenarioResult) Counts() map[StepStatus]int {
	counts := make(map[StepStatus]int)
	for _, s := range r.Steps {
		counts[s.Status]++
	}
	return counts
}

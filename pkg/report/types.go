// Package report writes the JSON run report and its artifacts.
//
// Layout:
//   - report.json: the run with per-step status, expression and wait time
//   - assets/<runId>/: page sources captured by dumpSource steps or on abort
package report

import (
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Report is the content of report.json.
type Report struct {
	Version    string             `json:"version"`
	RunID      string             `json:"runId"`
	Name       string             `json:"name"`
	SourceFile string             `json:"sourceFile,omitempty"`
	State      core.ScenarioState `json:"state"`
	StartTime  time.Time          `json:"startTime"`
	EndTime    time.Time          `json:"endTime"`
	Duration   int64              `json:"duration"` // milliseconds
	Runner     RunnerInfo         `json:"runner"`
	Summary    Summary            `json:"summary"`
	Steps      []Step             `json:"steps"`
	Warnings   []core.LogEntry    `json:"warnings,omitempty"`
	FailedStep *int               `json:"failedStep,omitempty"`
	Error      *Error             `json:"error,omitempty"`
}

// RunnerInfo contains onboard-runner information.
type RunnerInfo struct {
	Version   string `json:"version"`
	ServerURL string `json:"serverUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Summary contains aggregated step counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Step is one executed (or skipped) step.
type Step struct {
	Index      int             `json:"index"`
	Type       string          `json:"type"`
	Label      string          `json:"label,omitempty"`
	Expression string          `json:"expression,omitempty"`
	OnMissing  string          `json:"onMissing,omitempty"`
	Status     core.StepStatus `json:"status"`
	StartTime  *time.Time      `json:"startTime,omitempty"`
	Duration   int64           `json:"duration"`          // milliseconds
	Elapsed    int64           `json:"elapsed,omitempty"` // element wait, milliseconds
	Value      string          `json:"value,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      *Error          `json:"error,omitempty"`
	Artifacts  StepArtifacts   `json:"artifacts"`
}

// Error contains error details.
type Error struct {
	Type     string `json:"type"`     // element_not_found, checkpoint_mismatch, transport, ...
	Category string `json:"category"` // assertion, connection, config
	Message  string `json:"message"`
}

// StepArtifacts contains artifact paths relative to the report directory.
type StepArtifacts struct {
	PageSource string `json:"pageSource,omitempty"`
}

// Package executor runs scenarios step by step against one automation session.
package executor

import (
	"context"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/devicelab-dev/onboard-runner/pkg/interact"
	"github.com/google/uuid"
)

// ArtifactMode determines when to capture page source.
type ArtifactMode int

const (
	// ArtifactOnFailure captures page source only when the scenario aborts.
	ArtifactOnFailure ArtifactMode = iota
	// ArtifactAlways captures page source after every step.
	ArtifactAlways
	// ArtifactNever disables artifact capture.
	ArtifactNever
)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	// DefaultTimeout bounds element waits for steps and scenarios that set none.
	DefaultTimeout time.Duration
	Artifacts      ArtifactMode

	// Live progress callbacks
	OnScenarioStart func(name string, totalSteps int)
	OnStepComplete  func(idx int, desc string, status core.StepStatus, durationMs int64, err string)
	OnWarning       func(idx int, desc string, message string)
	OnScenarioEnd   func(result *core.ScenarioResult)
}

// Runner executes scenarios against a session.
type Runner struct {
	config  RunnerConfig
	session core.Session
	facade  *interact.Facade
}

// New creates a new Runner. The caller owns session and closes it.
func New(session core.Session, cfg RunnerConfig) *Runner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = flow.DefaultTimeout
	}
	return &Runner{
		config:  cfg,
		session: session,
		facade:  interact.New(session),
	}
}

// Run executes every step of scenario in order and returns the result.
// Run never returns nil; the terminal state is Completed or Aborted.
func (r *Runner) Run(ctx context.Context, scenario *flow.Scenario) *core.ScenarioResult {
	timeout := r.config.DefaultTimeout
	if scenario.Config.Timeout > 0 {
		timeout = time.Duration(scenario.Config.Timeout) * time.Millisecond
	}

	sr := &scenarioRunner{
		ctx:      ctx,
		scenario: scenario,
		session:  r.session,
		facade:   r.facade,
		config:   r.config,
		timeout:  timeout,
		result: &core.ScenarioResult{
			RunID:      uuid.NewString(),
			Name:       scenario.Name(),
			FilePath:   scenario.SourcePath,
			State:      core.ScenarioPending,
			FailedStep: -1,
		},
	}
	return sr.run()
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/devicelab-dev/onboard-runner/pkg/interact"
	"github.com/devicelab-dev/onboard-runner/pkg/locator"
	"github.com/devicelab-dev/onboard-runner/pkg/logger"
)

// DefaultSwipeDuration applies when a swipe step sets no duration.
const DefaultSwipeDuration = 300 // ms

// scenarioRunner executes a single scenario.
type scenarioRunner struct {
	ctx      context.Context
	scenario *flow.Scenario
	session  core.Session
	facade   *interact.Facade
	config   RunnerConfig
	timeout  time.Duration
	result   *core.ScenarioResult
}

func (sr *scenarioRunner) run() *core.ScenarioResult {
	start := time.Now()
	steps := sr.scenario.Steps

	sr.result.StartTime = start
	sr.result.Steps = make([]core.StepResult, len(steps))
	for i, step := range steps {
		sr.result.Steps[i] = core.StepResult{
			Index:     i,
			Command:   string(step.Type()),
			Label:     step.Label(),
			OnMissing: string(step.Policy()),
			Status:    core.StatusPending,
		}
	}

	sr.transition(core.ScenarioRunning)
	logger.Info("scenario %q started (run %s, %d steps)", sr.result.Name, sr.result.RunID, len(steps))
	if sr.config.OnScenarioStart != nil {
		sr.config.OnScenarioStart(sr.result.Name, len(steps))
	}

	if idx, err := sr.scenario.Validate(); err != nil {
		sr.reject(idx, err)
	}

	for i, step := range steps {
		if sr.result.State != core.ScenarioRunning {
			break
		}
		if err := sr.ctx.Err(); err != nil {
			sr.abort(i, core.ErrCancelled.WithCause(err))
			break
		}

		res := sr.executeStep(i, step)
		sr.result.Steps[i] = res

		if sr.config.OnStepComplete != nil {
			sr.config.OnStepComplete(i, step.Describe(), res.Status, res.Duration.Milliseconds(), res.Error)
		}

		if res.Status == core.StatusFailed {
			sr.result.FailedStep = i
			sr.abort(i+1, sr.result.Err)
			break
		}
	}

	if sr.result.State == core.ScenarioRunning {
		sr.transition(core.ScenarioCompleted)
	}
	sr.result.Duration = time.Since(start)

	logger.Info("scenario %q %s in %dms (%d warnings)",
		sr.result.Name, sr.result.State, sr.result.Duration.Milliseconds(), len(sr.result.Warnings))
	if sr.config.OnScenarioEnd != nil {
		sr.config.OnScenarioEnd(sr.result)
	}
	return sr.result
}

// transition moves the state machine forward. Terminal states are final.
func (sr *scenarioRunner) transition(to core.ScenarioState) {
	if sr.result.State.IsTerminal() {
		return
	}
	logger.Debug("scenario state %s -> %s", sr.result.State, to)
	sr.result.State = to
}

// abort marks steps from idx on as skipped and ends the scenario.
func (sr *scenarioRunner) abort(idx int, err error) {
	for j := idx; j < len(sr.result.Steps); j++ {
		sr.result.Steps[j].Status = core.StatusSkipped
	}
	sr.result.Err = err
	if err != nil {
		sr.result.Error = err.Error()
	}
	sr.transition(core.ScenarioAborted)
	logger.Error("scenario aborted: %v", err)
}

// reject aborts before any step runs. idx is the offending step, -1 for the scenario header.
func (sr *scenarioRunner) reject(idx int, err error) {
	sr.abort(0, err)
	sr.result.FailedStep = idx
	if idx < 0 {
		return
	}
	res := &sr.result.Steps[idx]
	res.Status = core.StatusFailed
	res.Error = err.Error()
	if ee, ok := core.AsExecutionError(err); ok {
		res.Category = ee.Category
	}
	if sr.config.OnStepComplete != nil {
		sr.config.OnStepComplete(idx, sr.scenario.Steps[idx].Describe(), res.Status, 0, res.Error)
	}
}

// executeStep executes a single step and records its outcome.
func (sr *scenarioRunner) executeStep(idx int, step flow.Step) core.StepResult {
	res := sr.result.Steps[idx]
	res.StartTime = time.Now()
	res.Status = core.StatusRunning

	if ls, ok := step.(flow.LocatorStep); ok {
		if q, err := locator.Build(ls.Target()); err == nil {
			res.Expression = q.String()
		}
	}

	logger.With(logger.Fields{"step": idx, "command": res.Command, "expression": res.Expression}).
		Debug("step started")

	timeout := step.Timeout(sr.timeout)
	err := sr.dispatch(step, timeout, &res)
	res.Duration = time.Since(res.StartTime)
	if res.Elapsed == 0 {
		res.Elapsed = res.Duration
	}

	switch {
	case err == nil:
		res.Status = core.StatusPassed

	case step.Policy() == flow.Warn && core.IsAbsence(err):
		res.Status = core.StatusWarned
		res.Message = fmt.Sprintf("%s (tolerated: %s)", err.Error(), describeWait(res))
		sr.warn(idx, step, res.Message)

	default:
		res.Status = core.StatusFailed
		res.Error = fmt.Sprintf("%s (%s)", err.Error(), describeWait(res))
		if ee, ok := core.AsExecutionError(err); ok {
			res.Category = ee.Category
		}
		sr.result.Err = err
		logger.With(logger.Fields{"step": idx, "expression": res.Expression, "elapsedMs": res.Elapsed.Milliseconds()}).
			Errorf("%s failed: %v", step.Describe(), err)
	}

	if (res.Status == core.StatusFailed && sr.config.Artifacts != ArtifactNever) ||
		sr.config.Artifacts == ArtifactAlways {
		sr.captureSource(&res)
	}
	return res
}

// dispatch routes the step to the facade.
func (sr *scenarioRunner) dispatch(step flow.Step, timeout time.Duration, res *core.StepResult) error {
	switch s := step.(type) {
	case *flow.TapOnStep:
		out, err := sr.facade.Tap(s.Locator, s.Policy(), timeout)
		res.Elapsed = out.Elapsed
		if out.Expression != "" {
			res.Expression = out.Expression
		}
		if err != nil {
			return err
		}
		if out.Status == interact.NotFound {
			return out.Miss
		}
		return nil

	case *flow.ReadTextStep:
		text, err := sr.facade.ReadText(s.Locator, timeout)
		if err != nil {
			return err
		}
		res.Value = text
		return expectValue("text", s.Expect, text)

	case *flow.ReadAttributeStep:
		value, err := sr.facade.ReadAttribute(s.Locator, s.Attribute, timeout)
		if err != nil {
			return err
		}
		res.Value = value
		return expectValue(string(s.Attribute), s.Expect, value)

	case *flow.AssertSelectedStep:
		selected, err := sr.facade.IsSelected(s.Locator, timeout)
		if err != nil {
			return err
		}
		res.Value = fmt.Sprint(selected)
		if !selected {
			return core.ErrAssertionFailed.WithMessage(fmt.Sprintf("element %s is not selected", s.Locator.Describe()))
		}
		return nil

	case *flow.AssertAllPresentStep:
		missing, err := sr.facade.MissingValues(s.Locator, s.Values, timeout)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return core.ErrValuesMissing.
				WithMessage(fmt.Sprintf("values not present: %s", strings.Join(missing, ", "))).
				WithDetails(map[string]interface{}{"expression": res.Expression, "missing": missing})
		}
		return nil

	case *flow.CheckpointStep:
		cfg := sr.scenario.Config
		title, err := sr.facade.ScreenTitle(cfg.TitleLocator, cfg.AppPackage, timeout)
		if err != nil {
			return err
		}
		res.Value = title
		if title != s.ExpectedTitle {
			return core.ErrCheckpointMismatch.
				WithMessage(fmt.Sprintf("screen title %q does not match checkpoint %q", title, s.ExpectedTitle)).
				WithDetails(map[string]interface{}{"expected": s.ExpectedTitle, "actual": title})
		}
		return nil

	case *flow.SwipeStep:
		duration := s.Duration
		if duration <= 0 {
			duration = DefaultSwipeDuration
		}
		return sr.facade.Swipe(s.StartX, s.StartY, s.EndX, s.EndY, duration)

	case *flow.DumpSourceStep:
		src, err := sr.facade.PageSource()
		if err != nil {
			return err
		}
		res.Attachments = append(res.Attachments, core.NewPageSourceAttachment("", []byte(src)))
		return nil

	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported step type: %s", step.Type()))
	}
}

func (sr *scenarioRunner) warn(idx int, step flow.Step, message string) {
	sr.result.Warnings = append(sr.result.Warnings, core.LogEntry{Level: "warn", Step: idx, Message: message})
	logger.With(logger.Fields{"step": idx}).Warnf("%s: %s", step.Describe(), message)
	if sr.config.OnWarning != nil {
		sr.config.OnWarning(idx, step.Describe(), message)
	}
}

// captureSource attaches the current page source, best effort.
func (sr *scenarioRunner) captureSource(res *core.StepResult) {
	for _, a := range res.Attachments {
		if a.Name == core.AttachmentPageSource {
			return
		}
	}
	src, err := sr.session.Source()
	if err != nil {
		logger.Warn("could not capture page source: %v", err)
		return
	}
	res.Attachments = append(res.Attachments, core.NewPageSourceAttachment("", []byte(src)))
}

func expectValue(name string, expect *string, got string) error {
	if expect == nil || *expect == got {
		return nil
	}
	return core.ErrAssertionFailed.
		WithMessage(fmt.Sprintf("expected %s %q, got %q", name, *expect, got)).
		WithDetails(map[string]interface{}{"expected": *expect, "actual": got})
}

func describeWait(res core.StepResult) string {
	if res.Expression == "" {
		return fmt.Sprintf("after %dms", res.Elapsed.Milliseconds())
	}
	return fmt.Sprintf("expression %s, waited %dms", res.Expression, res.Elapsed.Milliseconds())
}

// IsCancelled reports whether a result was aborted by context cancellation.
func IsCancelled(result *core.ScenarioResult) bool {
	return errors.Is(result.Err, core.ErrCancelled)
}

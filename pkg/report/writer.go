package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// FileName is the report file written in the output directory.
const FileName = "report.json"

// Write saves result's attachments under outputDir/assets and writes report.json.
// It returns the report path.
func Write(outputDir string, result *core.ScenarioResult, info RunnerInfo) (string, error) {
	assetsRel := filepath.Join("assets", result.RunID)
	if err := ensureDir(filepath.Join(outputDir, assetsRel)); err != nil {
		return "", fmt.Errorf("create assets dir: %w", err)
	}

	for i := range result.Steps {
		if err := saveAttachments(outputDir, assetsRel, &result.Steps[i]); err != nil {
			return "", err
		}
	}

	rep := Build(result, info)
	path := filepath.Join(outputDir, FileName)
	if err := atomicWriteJSON(path, rep); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Build converts a scenario result to the report schema.
func Build(result *core.ScenarioResult, info RunnerInfo) *Report {
	rep := &Report{
		Version:    Version,
		RunID:      result.RunID,
		Name:       result.Name,
		SourceFile: result.FilePath,
		State:      result.State,
		StartTime:  result.StartTime,
		EndTime:    result.StartTime.Add(result.Duration),
		Duration:   result.Duration.Milliseconds(),
		Runner:     info,
		Warnings:   result.Warnings,
		Steps:      make([]Step, len(result.Steps)),
	}

	for i, s := range result.Steps {
		step := Step{
			Index:      s.Index,
			Type:       s.Command,
			Label:      s.Label,
			Expression: s.Expression,
			OnMissing:  s.OnMissing,
			Status:     s.Status,
			Duration:   s.Duration.Milliseconds(),
			Elapsed:    s.Elapsed.Milliseconds(),
			Value:      s.Value,
			Message:    s.Message,
		}
		if !s.StartTime.IsZero() {
			start := s.StartTime
			step.StartTime = &start
		}
		if s.Error != "" {
			step.Error = &Error{Type: "error", Category: s.Category.String(), Message: s.Error}
		}
		for _, a := range s.Attachments {
			if a.Name == core.AttachmentPageSource {
				step.Artifacts.PageSource = a.Path
			}
		}
		rep.Steps[i] = step

		switch s.Status {
		case core.StatusPassed:
			rep.Summary.Passed++
		case core.StatusWarned:
			rep.Summary.Warned++
		case core.StatusFailed:
			rep.Summary.Failed++
		case core.StatusSkipped:
			rep.Summary.Skipped++
		}
	}
	rep.Summary.Total = len(rep.Steps)

	if result.State == core.ScenarioAborted {
		if result.FailedStep >= 0 {
			idx := result.FailedStep
			rep.FailedStep = &idx
		}
		rep.Error = errorOf(result)
		if rep.FailedStep != nil && rep.Steps[*rep.FailedStep].Error != nil {
			rep.Steps[*rep.FailedStep].Error.Type = rep.Error.Type
		}
	}
	return rep
}

func errorOf(result *core.ScenarioResult) *Error {
	e := &Error{Type: "unknown", Category: core.ErrCategoryNone.String(), Message: result.Error}
	if ee, ok := core.AsExecutionError(result.Err); ok {
		e.Type = ee.Code
		e.Category = ee.Category.String()
	}
	return e
}

// Load reads a report.json.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- report path from caller
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &rep, nil
}

func saveAttachments(outputDir, assetsRel string, step *core.StepResult) error {
	for j := range step.Attachments {
		a := &step.Attachments[j]
		if len(a.Body) == 0 || a.Path != "" {
			continue
		}
		rel := filepath.Join(assetsRel, fmt.Sprintf("step-%03d-%s.xml", step.Index, a.Name))
		if err := os.WriteFile(filepath.Join(outputDir, rel), a.Body, 0o644); err != nil {
			return fmt.Errorf("save %s for step %d: %w", a.Name, step.Index, err)
		}
		a.Path = rel
	}
	return nil
}

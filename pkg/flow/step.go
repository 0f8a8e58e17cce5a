// Package flow handles parsing and representation of onboarding scenario files.
package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds each step's element wait unless the step or scenario overrides it.
const DefaultTimeout = 10 * time.Second

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Interaction
	StepTapOn StepType = "tapOn"
	StepSwipe StepType = "swipe"

	// Reads and assertions
	StepReadText         StepType = "readText"
	StepReadAttribute    StepType = "readAttribute"
	StepAssertSelected   StepType = "assertSelected"
	StepAssertAllPresent StepType = "assertAllPresent"
	StepCheckpoint       StepType = "checkpoint"

	// Diagnostics
	StepDumpSource StepType = "dumpSource"
)

// OnMissing is a step's policy for an element that never appears.
type OnMissing string

// OnMissing values.
const (
	Fail OnMissing = "fail"
	Warn OnMissing = "warn"
)

// UnmarshalYAML accepts fail/warn, case-insensitively.
func (p *OnMissing) UnmarshalYAML(node *yaml.Node) error {
	switch OnMissing(strings.ToLower(node.Value)) {
	case Fail, "":
		*p = Fail
	case Warn:
		*p = Warn
	default:
		return fmt.Errorf("onMissing must be %q or %q, got %q", Fail, Warn, node.Value)
	}
	return nil
}

// Step is the interface for all scenario steps.
type Step interface {
	Type() StepType
	Policy() OnMissing
	Label() string
	Describe() string
	Timeout(def time.Duration) time.Duration
}

// LocatorStep is a step that resolves an element before acting.
type LocatorStep interface {
	Step
	Target() Locator
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType  `yaml:"-"`
	OnMissing OnMissing `yaml:"onMissing"`
	StepLabel string    `yaml:"label"`
	TimeoutMs int       `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// Policy returns the failure policy, defaulting to Fail.
func (b *BaseStep) Policy() OnMissing {
	if b.OnMissing == Warn {
		return Warn
	}
	return Fail
}

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// Timeout returns the step's wait bound, or def when unset.
func (b *BaseStep) Timeout(def time.Duration) time.Duration {
	if b.TimeoutMs > 0 {
		return time.Duration(b.TimeoutMs) * time.Millisecond
	}
	if def > 0 {
		return def
	}
	return DefaultTimeout
}

// ============================================
// Interaction Steps
// ============================================

// TapOnStep taps on an element.
type TapOnStep struct {
	BaseStep `yaml:",inline"`
	Locator  Locator
}

// Target returns the step's locator.
func (s *TapOnStep) Target() Locator { return s.Locator }

// Describe returns "tapOn: <locator>".
func (s *TapOnStep) Describe() string { return describe(s.StepType, s.Locator.Describe()) }

// SwipeStep performs a coordinate swipe gesture.
type SwipeStep struct {
	BaseStep `yaml:",inline"`
	StartX   int `yaml:"startX"`
	StartY   int `yaml:"startY"`
	EndX     int `yaml:"endX"`
	EndY     int `yaml:"endY"`
	Duration int `yaml:"duration"` // ms
}

// Describe returns "swipe: (x1,y1) -> (x2,y2)".
func (s *SwipeStep) Describe() string {
	return describe(s.StepType, fmt.Sprintf("(%d,%d) -> (%d,%d)", s.StartX, s.StartY, s.EndX, s.EndY))
}

// ============================================
// Read / Assertion Steps
// ============================================

// ReadTextStep reads an element's text, optionally asserting its value.
type ReadTextStep struct {
	BaseStep `yaml:",inline"`
	Locator  Locator
	Expect   *string `yaml:"expect"`
}

// Target returns the step's locator.
func (s *ReadTextStep) Target() Locator { return s.Locator }

// Describe returns "readText: <locator>".
func (s *ReadTextStep) Describe() string { return describe(s.StepType, s.Locator.Describe()) }

// ReadAttributeStep reads one attribute of an element, optionally asserting its value.
type ReadAttributeStep struct {
	BaseStep  `yaml:",inline"`
	Locator   Locator
	Attribute core.Attribute `yaml:"attribute"`
	Expect    *string        `yaml:"expect"`
}

// Target returns the step's locator.
func (s *ReadAttributeStep) Target() Locator { return s.Locator }

// Describe returns "readAttribute: <locator> @name".
func (s *ReadAttributeStep) Describe() string {
	return describe(s.StepType, s.Locator.Describe()+" @"+string(s.Attribute))
}

// AssertSelectedStep asserts an element is in the selected state.
type AssertSelectedStep struct {
	BaseStep `yaml:",inline"`
	Locator  Locator
}

// Target returns the step's locator.
func (s *AssertSelectedStep) Target() Locator { return s.Locator }

// Describe returns "assertSelected: <locator>".
func (s *AssertSelectedStep) Describe() string { return describe(s.StepType, s.Locator.Describe()) }

// AssertAllPresentStep asserts every value appears among the texts of the matched elements.
type AssertAllPresentStep struct {
	BaseStep `yaml:",inline"`
	Locator  Locator
	Values   []string `yaml:"values"`
}

// Target returns the step's locator.
func (s *AssertAllPresentStep) Target() Locator { return s.Locator }

// Describe returns "assertAllPresent: <locator> [a, b]".
func (s *AssertAllPresentStep) Describe() string {
	return describe(s.StepType, fmt.Sprintf("%s [%s]", s.Locator.Describe(), strings.Join(s.Values, ", ")))
}

// CheckpointStep compares the current screen title to an expected literal.
// A mismatch always aborts, regardless of OnMissing.
type CheckpointStep struct {
	BaseStep      `yaml:",inline"`
	ExpectedTitle string `yaml:"title"`
}

// Policy is always Fail for checkpoints.
func (s *CheckpointStep) Policy() OnMissing { return Fail }

// Describe returns `checkpoint: "title"`.
func (s *CheckpointStep) Describe() string {
	return describe(s.StepType, fmt.Sprintf("%q", s.ExpectedTitle))
}

// ============================================
// Diagnostic Steps
// ============================================

// DumpSourceStep writes the current page source to the run's assets.
type DumpSourceStep struct {
	BaseStep `yaml:",inline"`
}

// ============================================
// Constructors
// ============================================

// Constructors do not validate locators. The parser rejects invalid ones,
// and the runner checks Scenario.Validate before the first step.

// Tap builds a tapOn step.
func Tap(loc Locator, onMissing OnMissing) *TapOnStep {
	return &TapOnStep{BaseStep: BaseStep{StepType: StepTapOn, OnMissing: onMissing}, Locator: loc}
}

// ReadText builds a readText step.
func ReadText(loc Locator) *ReadTextStep {
	return &ReadTextStep{BaseStep: BaseStep{StepType: StepReadText, OnMissing: Fail}, Locator: loc}
}

// ReadAttribute builds a readAttribute step.
func ReadAttribute(loc Locator, attr core.Attribute) *ReadAttributeStep {
	return &ReadAttributeStep{BaseStep: BaseStep{StepType: StepReadAttribute, OnMissing: Fail}, Locator: loc, Attribute: attr}
}

// AssertSelected builds an assertSelected step.
func AssertSelected(loc Locator) *AssertSelectedStep {
	return &AssertSelectedStep{BaseStep: BaseStep{StepType: StepAssertSelected, OnMissing: Fail}, Locator: loc}
}

// AssertAllPresent builds an assertAllPresent step.
func AssertAllPresent(loc Locator, onMissing OnMissing, values ...string) *AssertAllPresentStep {
	return &AssertAllPresentStep{BaseStep: BaseStep{StepType: StepAssertAllPresent, OnMissing: onMissing}, Locator: loc, Values: values}
}

// Checkpoint builds a checkpoint step.
func Checkpoint(title string) *CheckpointStep {
	return &CheckpointStep{BaseStep: BaseStep{StepType: StepCheckpoint, OnMissing: Fail}, ExpectedTitle: title}
}

func describe(t StepType, detail string) string {
	if detail == "" {
		return string(t)
	}
	return string(t) + ": " + detail
}

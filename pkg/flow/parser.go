package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error (e.g. core.ErrInvalidLocator).
func (e *ParseError) Unwrap() error { return e.Err }

// ParseFile parses a single scenario YAML file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML content.
// A scenario is either a single step list, or a config document followed by "---" and a step list.
func Parse(data []byte, sourcePath string) (*Scenario, error) {
	docs, err := splitDocuments(data, sourcePath)
	if err != nil {
		return nil, err
	}

	scenario := &Scenario{SourcePath: sourcePath}

	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty scenario file"}
	case 1:
		if err := parseSteps(docs[0], scenario); err != nil {
			return nil, err
		}
	default:
		if err := parseConfig(docs[0], scenario); err != nil {
			return nil, err
		}
		if err := parseSteps(docs[1], scenario); err != nil {
			return nil, err
		}
	}

	if len(scenario.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Message: "scenario has no steps"}
	}
	return scenario, nil
}

func splitDocuments(data []byte, sourcePath string) ([]*yaml.Node, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid yaml: %v", err), Err: err}
		}
		if len(doc.Content) == 0 {
			continue
		}
		docs = append(docs, doc.Content[0])
	}
	return docs, nil
}

func parseConfig(node *yaml.Node, scenario *Scenario) error {
	var config Config
	if err := node.Decode(&config); err != nil {
		return wrapParseError(scenario.SourcePath, node.Line, fmt.Errorf("invalid config: %w", err))
	}
	if config.TitleLocator != nil {
		if err := config.TitleLocator.Validate(); err != nil {
			return wrapParseError(scenario.SourcePath, node.Line, fmt.Errorf("titleLocator: %w", err))
		}
	}
	scenario.Config = config
	return nil
}

func parseSteps(node *yaml.Node, scenario *Scenario) error {
	if node.Kind != yaml.SequenceNode {
		return &ParseError{
			Path:    scenario.SourcePath,
			Line:    node.Line,
			Message: "steps must be a list",
		}
	}

	for _, stepNode := range node.Content {
		step, err := parseStep(stepNode, scenario.SourcePath)
		if err != nil {
			return err
		}
		scenario.Steps = append(scenario.Steps, step)
	}
	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- dumpSource" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		if !isStepType(node.Value) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", node.Value),
			}
		}
		return decodeStep(StepType(node.Value), &yaml.Node{Kind: yaml.MappingNode}, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "unknown step type",
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepTapOn, StepSwipe, StepReadText, StepReadAttribute,
		StepAssertSelected, StepAssertAllPresent, StepCheckpoint, StepDumpSource:
		return true
	}
	return false
}

// stepFields is the union of every key a step body may carry.
// Locator is a named inline field so its UnmarshalYAML is not promoted onto stepFields.
type stepFields struct {
	Loc       Locator   `yaml:",inline"`
	OnMissing OnMissing `yaml:"onMissing"`
	Optional  bool      `yaml:"optional"` // shorthand for onMissing: warn
	Label     string    `yaml:"label"`
	Timeout   int       `yaml:"timeout"`
	Expect    *string   `yaml:"expect"`
	Attribute string    `yaml:"attribute"`
	Values    []string  `yaml:"values"`
	Title     string    `yaml:"title"`
	StartX    int       `yaml:"startX"`
	StartY    int       `yaml:"startY"`
	EndX      int       `yaml:"endX"`
	EndY      int       `yaml:"endY"`
	Duration  int       `yaml:"duration"`
}

func (f *stepFields) base(t StepType) BaseStep {
	policy := f.OnMissing
	if f.Optional {
		policy = Warn
	}
	if policy == "" {
		policy = Fail
	}
	return BaseStep{StepType: t, OnMissing: policy, StepLabel: f.Label, TimeoutMs: f.Timeout}
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	var f stepFields
	if valueNode.Kind == yaml.ScalarNode {
		// Scalar shorthand: text locator, or the title for checkpoints
		if stepType == StepCheckpoint {
			f.Title = valueNode.Value
		} else {
			f.Loc.Text = valueNode.Value
		}
	} else if err := valueNode.Decode(&f); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	var step Step
	switch stepType {
	case StepTapOn:
		step = &TapOnStep{BaseStep: f.base(stepType), Locator: f.Loc}

	case StepReadText:
		step = &ReadTextStep{BaseStep: f.base(stepType), Locator: f.Loc, Expect: f.Expect}

	case StepReadAttribute:
		attr, ok := core.ParseAttribute(f.Attribute)
		if !ok {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    valueNode.Line,
				Message: fmt.Sprintf("readAttribute: unsupported attribute %q", f.Attribute),
			}
		}
		step = &ReadAttributeStep{BaseStep: f.base(stepType), Locator: f.Loc, Attribute: attr, Expect: f.Expect}

	case StepAssertSelected:
		step = &AssertSelectedStep{BaseStep: f.base(stepType), Locator: f.Loc}

	case StepAssertAllPresent:
		if len(f.Values) == 0 {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "assertAllPresent: values are required"}
		}
		step = &AssertAllPresentStep{BaseStep: f.base(stepType), Locator: f.Loc, Values: f.Values}

	case StepCheckpoint:
		if f.Title == "" {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "checkpoint: title is required"}
		}
		base := f.base(stepType)
		base.OnMissing = Fail
		return &CheckpointStep{BaseStep: base, ExpectedTitle: f.Title}, nil

	case StepSwipe:
		return &SwipeStep{
			BaseStep: f.base(stepType),
			StartX:   f.StartX,
			StartY:   f.StartY,
			EndX:     f.EndX,
			EndY:     f.EndY,
			Duration: f.Duration,
		}, nil

	case StepDumpSource:
		return &DumpSourceStep{BaseStep: f.base(stepType)}, nil

	default:
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    valueNode.Line,
			Message: fmt.Sprintf("unknown step type: %s", stepType),
		}
	}

	// Locator invariants are checked here, not at resolve time
	if err := f.Loc.Validate(); err != nil {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    valueNode.Line,
			Message: fmt.Sprintf("%s: %v", stepType, err),
			Err:     err,
		}
	}
	return step, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
		Err:     err,
	}
}

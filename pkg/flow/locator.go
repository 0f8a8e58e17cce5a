// Package flow handles parsing and representation of onboarding scenario files.
package flow

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"gopkg.in/yaml.v3"
)

// Locator represents structural element selection criteria.
// Pure data structure - the locator package compiles it into a query expression.
type Locator struct {
	ID   string `yaml:"id"`   // resource-id attribute
	Text string `yaml:"text"` // text attribute

	// Raw is a ready-made query expression. When set it wins over ID and Text.
	Raw string `yaml:"xpath"`

	// Clickable re-resolves the match to its nearest clickable descendant.
	Clickable bool `yaml:"clickable"`
}

// ByID returns a locator matching the resource-id attribute.
func ByID(id string) Locator { return Locator{ID: id} }

// ByText returns a locator matching the text attribute.
func ByText(text string) Locator { return Locator{Text: text} }

// ByIDAndText returns a locator requiring both attributes on the same node.
func ByIDAndText(id, text string) Locator { return Locator{ID: id, Text: text} }

// ByXPath returns a locator for a raw query expression.
func ByXPath(expr string) Locator { return Locator{Raw: expr} }

// UnmarshalYAML allows Locator to be unmarshaled from string (text) or struct.
func (l *Locator) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.Text = node.Value
		return nil
	}

	type plain Locator
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*l = Locator(raw)
	return nil
}

// IsEmpty returns true if none of id, text and raw expression is set.
func (l Locator) IsEmpty() bool {
	return l.ID == "" && l.Text == "" && l.Raw == ""
}

// Validate enforces the construction invariant: at least one of id, text, xpath.
func (l Locator) Validate() error {
	if l.IsEmpty() {
		return core.ErrInvalidLocator.WithMessage("invalid locator: one of id, text or xpath is required")
	}
	return nil
}

// Describe returns a human-readable description like id="x" text="y".
func (l Locator) Describe() string {
	var parts []string
	switch {
	case l.Raw != "":
		parts = append(parts, "xpath="+l.Raw)
	default:
		if l.ID != "" {
			parts = append(parts, fmt.Sprintf("id=%q", l.ID))
		}
		if l.Text != "" {
			parts = append(parts, fmt.Sprintf("text=%q", l.Text))
		}
	}
	if l.Clickable {
		parts = append(parts, "clickable")
	}
	return strings.Join(parts, " ")
}

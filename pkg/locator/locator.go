// Package locator compiles structural locators into query expressions for the automation session.
package locator

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/onboard-runner/pkg/flow"
)

// ClickableDescendant selects clickable nodes below a matched node, in document order.
const ClickableDescendant = ".//*[@clickable='true']"

// Query is a compiled locator.
type Query struct {
	// Expression is evaluated against the whole tree.
	Expression string

	// Descendant, when set, is evaluated within each match; the first result replaces the match.
	Descendant string
}

// String returns the expression, with the descendant step appended when present.
func (q Query) String() string {
	if q.Descendant == "" {
		return q.Expression
	}
	return q.Expression + " >> " + q.Descendant
}

// Build compiles loc. A raw expression is returned unchanged; id and text
// are combined into a single predicate so both must hold on the same node.
func Build(loc flow.Locator) (Query, error) {
	if err := loc.Validate(); err != nil {
		return Query{}, err
	}

	q := Query{}
	switch {
	case loc.Raw != "":
		q.Expression = loc.Raw
	case loc.ID != "" && loc.Text != "":
		q.Expression = fmt.Sprintf("//*[@resource-id=%s and @text=%s]", Quote(loc.ID), Quote(loc.Text))
	case loc.ID != "":
		q.Expression = fmt.Sprintf("//*[@resource-id=%s]", Quote(loc.ID))
	default:
		q.Expression = fmt.Sprintf("//*[@text=%s]", Quote(loc.Text))
	}

	if loc.Clickable {
		q.Descendant = ClickableDescendant
	}
	return q, nil
}

// Quote renders s as an XPath 1.0 string literal.
// XPath has no escape sequences, so a value holding both quote kinds becomes a concat() call.
func Quote(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	parts := strings.Split(s, `"`)
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

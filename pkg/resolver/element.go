package resolver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// Element is an opaque handle to one matched node.
// It is valid until the tree mutates; callers must not keep it across steps.
type Element struct {
	handle     core.NodeHandle
	session    core.Session
	expression string
	elapsed    time.Duration
}

// Handle returns the session's node handle.
func (e *Element) Handle() core.NodeHandle { return e.handle }

// Expression returns the compiled query that matched this element.
func (e *Element) Expression() string { return e.expression }

// Elapsed returns how long the resolver waited before the match.
func (e *Element) Elapsed() time.Duration { return e.elapsed }

// Text reads the text attribute.
func (e *Element) Text() (string, error) {
	return e.session.Attribute(e.handle, core.AttrText)
}

// Attribute reads one of the enumerated attributes.
func (e *Element) Attribute(name core.Attribute) (string, error) {
	return e.session.Attribute(e.handle, name)
}

// Selected reads the selected attribute as a bool. An unset attribute is false.
func (e *Element) Selected() (bool, error) {
	v, err := e.session.Attribute(e.handle, core.AttrSelected)
	if err != nil || v == "" {
		return false, err
	}
	selected, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.ErrTransport.
			WithMessage(fmt.Sprintf("unexpected selected value %q on %s", v, e.expression)).
			WithCause(err)
	}
	return selected, nil
}

// Tap taps the element. The tree is considered changed afterwards.
func (e *Element) Tap() error {
	return e.session.Tap(e.handle)
}

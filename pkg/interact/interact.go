// Package interact provides the element-level actions scenario steps are built from.
package interact

import (
	"errors"
	"strings"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/devicelab-dev/onboard-runner/pkg/logger"
	"github.com/devicelab-dev/onboard-runner/pkg/resolver"
)

// Status says whether an action found its element.
type Status int

const (
	Found Status = iota
	NotFound
)

func (s Status) String() string {
	if s == Found {
		return "found"
	}
	return "not_found"
}

// Outcome is the result of a tolerant action.
type Outcome struct {
	Status     Status
	Expression string
	Elapsed    time.Duration

	// Miss is the tolerated ElementNotFound when Status is NotFound.
	Miss error
}

// Facade performs actions against one session. Every call resolves afresh.
type Facade struct {
	session  core.Session
	resolver *resolver.Resolver
}

// New creates a facade over session.
func New(session core.Session) *Facade {
	return &Facade{
		session:  session,
		resolver: resolver.New(session),
	}
}

// Tap resolves loc and taps it. Under Warn a missing element is logged and
// reported as NotFound with a nil error; every other error propagates.
func (f *Facade) Tap(loc flow.Locator, onMissing flow.OnMissing, timeout time.Duration) (Outcome, error) {
	start := time.Now()
	el, err := f.resolver.ResolveOne(loc, timeout)
	if err != nil {
		if onMissing == flow.Warn && errors.Is(err, core.ErrElementNotFound) {
			out := Outcome{Status: NotFound, Elapsed: time.Since(start), Miss: err}
			if ee, ok := core.AsExecutionError(err); ok {
				out.Expression = ee.Detail("expression")
			}
			logger.With(logger.Fields{"expression": out.Expression, "elapsedMs": out.Elapsed.Milliseconds()}).
				Warn("tap target not found, continuing")
			return out, nil
		}
		return Outcome{Status: NotFound, Elapsed: time.Since(start)}, err
	}

	out := Outcome{Status: Found, Expression: el.Expression(), Elapsed: el.Elapsed()}
	if err := el.Tap(); err != nil {
		return out, err
	}
	logger.Debug("tapped %s after %dms", out.Expression, out.Elapsed.Milliseconds())
	return out, nil
}

// ReadText returns the text of the element matching loc.
func (f *Facade) ReadText(loc flow.Locator, timeout time.Duration) (string, error) {
	return f.ReadAttribute(loc, core.AttrText, timeout)
}

// ReadAttribute returns one attribute of the element matching loc.
func (f *Facade) ReadAttribute(loc flow.Locator, attr core.Attribute, timeout time.Duration) (string, error) {
	el, err := f.resolver.ResolveOne(loc, timeout)
	if err != nil {
		return "", err
	}
	return el.Attribute(attr)
}

// IsSelected reports the selected state of the element matching loc.
// A missing element is not selected.
func (f *Facade) IsSelected(loc flow.Locator, timeout time.Duration) (bool, error) {
	el, err := f.resolver.ResolveOne(loc, timeout)
	if errors.Is(err, core.ErrElementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return el.Selected()
}

// CheckAllPresent reports whether every expected value is the text of some element matching loc.
func (f *Facade) CheckAllPresent(loc flow.Locator, expected []string, timeout time.Duration) (bool, error) {
	missing, err := f.MissingValues(loc, expected, timeout)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// MissingValues returns the expected values absent from the texts of one snapshot of matches.
// When nothing matches at all every value is missing.
func (f *Facade) MissingValues(loc flow.Locator, expected []string, timeout time.Duration) ([]string, error) {
	elements, err := f.resolver.ResolveAll(loc, timeout)
	if errors.Is(err, core.ErrElementNotFound) {
		return append([]string(nil), expected...), nil
	}
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			return nil, err
		}
		present[text] = struct{}{}
	}

	var missing []string
	for _, v := range expected {
		if _, ok := present[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing, nil
}

// ScreenTitle returns the title text when the current screen belongs to
// appPackage and a title locator is given, otherwise the screen identifier.
func (f *Facade) ScreenTitle(titleLoc *flow.Locator, appPackage string, timeout time.Duration) (string, error) {
	screen, err := f.session.CurrentScreen()
	if err != nil {
		return "", err
	}
	if titleLoc == nil || appPackage == "" || !strings.Contains(screen, appPackage) {
		return screen, nil
	}
	return f.ReadText(*titleLoc, timeout)
}

// Swipe performs a coordinate gesture.
func (f *Facade) Swipe(startX, startY, endX, endY, durationMs int) error {
	return f.session.Swipe(startX, startY, endX, endY, durationMs)
}

// PageSource returns the current page source.
func (f *Facade) PageSource() (string, error) {
	return f.session.Source()
}

// Package mock provides a scripted session for testing without a real device.
package mock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// Screen is one scripted state of the element tree.
type Screen struct {
	Name     string
	Activity string

	nodes   map[core.NodeHandle]map[core.Attribute]string
	matches map[string]match
	within  map[string][]core.NodeHandle
	onTap   map[core.NodeHandle]string
	source  string
}

type match struct {
	after time.Duration // time on screen before the nodes appear
	nodes []core.NodeHandle
}

// NewScreen creates an empty screen.
func NewScreen(name, activity string) *Screen {
	return &Screen{
		Name:     name,
		Activity: activity,
		nodes:    make(map[core.NodeHandle]map[core.Attribute]string),
		matches:  make(map[string]match),
		within:   make(map[string][]core.NodeHandle),
		onTap:    make(map[core.NodeHandle]string),
	}
}

// Node registers a node and its attributes.
func (sc *Screen) Node(handle core.NodeHandle, attrs map[core.Attribute]string) *Screen {
	sc.nodes[handle] = attrs
	return sc
}

// Match makes expression return handles immediately.
func (sc *Screen) Match(expression string, handles ...core.NodeHandle) *Screen {
	return sc.MatchAfter(expression, 0, handles...)
}

// MatchAfter makes expression return handles once the screen has been current for delay.
func (sc *Screen) MatchAfter(expression string, delay time.Duration, handles ...core.NodeHandle) *Screen {
	sc.matches[expression] = match{after: delay, nodes: handles}
	for _, h := range handles {
		if _, ok := sc.nodes[h]; !ok {
			sc.nodes[h] = map[core.Attribute]string{}
		}
	}
	return sc
}

// Within makes a relative expression evaluated under parent return handles.
func (sc *Screen) Within(parent core.NodeHandle, expression string, handles ...core.NodeHandle) *Screen {
	sc.within[withinKey(parent, expression)] = handles
	for _, h := range handles {
		if _, ok := sc.nodes[h]; !ok {
			sc.nodes[h] = map[core.Attribute]string{}
		}
	}
	return sc
}

// OnTap navigates to the named screen when handle is tapped.
func (sc *Screen) OnTap(handle core.NodeHandle, next string) *Screen {
	sc.onTap[handle] = next
	return sc
}

// Source sets the page source returned for this screen.
func (sc *Screen) Source(xml string) *Screen {
	sc.source = xml
	return sc
}

func withinKey(parent core.NodeHandle, expression string) string {
	return string(parent) + "|" + expression
}

// Session is a scripted implementation of core.Session.
type Session struct {
	// QueryErr, when set, is returned by every Query call.
	QueryErr error
	// TapErr, when set, is returned by every Tap call.
	TapErr error

	mu        sync.Mutex
	screens   map[string]*Screen
	current   *Screen
	enteredAt time.Time
	queries   map[string]int
	taps      []core.NodeHandle
	swipes    int
	closed    int
}

// New creates a session starting on the first screen.
func New(screens ...*Screen) *Session {
	s := &Session{
		screens: make(map[string]*Screen),
		queries: make(map[string]int),
	}
	for _, sc := range screens {
		s.screens[sc.Name] = sc
	}
	if len(screens) > 0 {
		s.current = screens[0]
	}
	s.enteredAt = time.Now()
	return s
}

// Query returns the scripted matches visible on the current screen.
func (s *Session) Query(expression string) ([]core.NodeHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries[expression]++
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	if s.current == nil {
		return nil, nil
	}
	m, ok := s.current.matches[expression]
	if !ok || time.Since(s.enteredAt) < m.after {
		return nil, nil
	}
	return append([]core.NodeHandle(nil), m.nodes...), nil
}

// QueryWithin returns the scripted descendants of parent.
func (s *Session) QueryWithin(parent core.NodeHandle, expression string) ([]core.NodeHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNode(parent); err != nil {
		return nil, err
	}
	return append([]core.NodeHandle(nil), s.current.within[withinKey(parent, expression)]...), nil
}

// Tap records the tap and follows any scripted navigation.
func (s *Session) Tap(node core.NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TapErr != nil {
		return s.TapErr
	}
	if err := s.checkNode(node); err != nil {
		return err
	}
	s.taps = append(s.taps, node)
	if next, ok := s.current.onTap[node]; ok {
		sc, found := s.screens[next]
		if !found {
			return fmt.Errorf("mock: unknown screen %q", next)
		}
		s.current = sc
		s.enteredAt = time.Now()
	}
	return nil
}

// Attribute returns a scripted attribute, "" when unset.
func (s *Session) Attribute(node core.NodeHandle, name core.Attribute) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNode(node); err != nil {
		return "", err
	}
	return s.current.nodes[node][name], nil
}

// CurrentScreen returns the current screen's activity.
func (s *Session) CurrentScreen() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "", nil
	}
	return s.current.Activity, nil
}

// Swipe counts the gesture.
func (s *Session) Swipe(startX, startY, endX, endY, durationMs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swipes++
	return nil
}

// Source returns the scripted source, or a generated hierarchy listing the screen's nodes.
func (s *Session) Source() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "<hierarchy/>", nil
	}
	if s.current.source != "" {
		return s.current.source, nil
	}

	handles := make([]string, 0, len(s.current.nodes))
	for h := range s.current.nodes {
		handles = append(handles, string(h))
	}
	sort.Strings(handles)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<hierarchy screen=%q>", s.current.Name)
	for _, h := range handles {
		fmt.Fprintf(&sb, "<node id=%q/>", h)
	}
	sb.WriteString("</hierarchy>")
	return sb.String(), nil
}

// Close counts close calls.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// checkNode rejects handles that do not exist on the current screen.
func (s *Session) checkNode(node core.NodeHandle) error {
	if s.current == nil {
		return core.ErrTransport.WithMessage("stale element reference: " + string(node))
	}
	if _, ok := s.current.nodes[node]; !ok {
		return core.ErrTransport.WithMessage("stale element reference: " + string(node))
	}
	return nil
}

// Queries returns how many times expression was queried.
func (s *Session) Queries(expression string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[expression]
}

// Taps returns the tapped handles in order.
func (s *Session) Taps() []core.NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.NodeHandle(nil), s.taps...)
}

// Swipes returns the number of swipe gestures.
func (s *Session) Swipes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swipes
}

// CloseCount returns how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ScreenName returns the current screen's name.
func (s *Session) ScreenName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Name
}

var _ core.Session = (*Session)(nil)

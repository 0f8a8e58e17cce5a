// Package snapshot implements core.Session over a captured page source.
//
// Queries are evaluated locally with XPath, so locators can be checked
// against a dumpSource artifact without a device. The tree never changes:
// taps and swipes are recorded but have no effect.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// Session is a read-only session over one page source document.
type Session struct {
	source   string
	activity string
	doc      *xmlquery.Node
	order    map[*xmlquery.Node]int // preorder position of every element

	mu      sync.Mutex
	handles map[*xmlquery.Node]core.NodeHandle
	nodes   map[core.NodeHandle]*xmlquery.Node
	taps    []core.NodeHandle
}

// Load reads a page source file.
func Load(path, activity string) (*Session, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided page source
	if err != nil {
		return nil, fmt.Errorf("read page source: %w", err)
	}
	return Parse(bytes.NewReader(data), activity)
}

// Parse parses a page source document. activity is reported by CurrentScreen.
func Parse(r io.Reader, activity string) (*Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse page source: %w", err)
	}
	return &Session{
		source:   string(data),
		activity: activity,
		doc:      doc,
		order:    documentOrder(doc),
		handles:  make(map[*xmlquery.Node]core.NodeHandle),
		nodes:    make(map[core.NodeHandle]*xmlquery.Node),
	}, nil
}

// Query evaluates expression against the whole document.
func (s *Session) Query(expression string) ([]core.NodeHandle, error) {
	return s.query(s.doc, expression)
}

// QueryWithin evaluates a relative expression against parent's subtree.
func (s *Session) QueryWithin(parent core.NodeHandle, expression string) ([]core.NodeHandle, error) {
	node, err := s.node(parent)
	if err != nil {
		return nil, err
	}
	return s.query(node, expression)
}

func (s *Session) query(top *xmlquery.Node, expression string) ([]core.NodeHandle, error) {
	found, err := xmlquery.QueryAll(top, expression)
	if err != nil {
		return nil, core.ErrTransport.WithMessage(fmt.Sprintf("invalid selector %q", expression)).WithCause(err)
	}
	// xpath does not guarantee document order for descendant axes.
	sort.SliceStable(found, func(i, j int) bool {
		return s.order[found[i]] < s.order[found[j]]
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.NodeHandle, 0, len(found))
	for _, n := range found {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		h, ok := s.handles[n]
		if !ok {
			h = core.NodeHandle(fmt.Sprintf("node-%d", len(s.handles)+1))
			s.handles[n] = h
			s.nodes[h] = n
		}
		out = append(out, h)
	}
	return out, nil
}

func documentOrder(doc *xmlquery.Node) map[*xmlquery.Node]int {
	order := make(map[*xmlquery.Node]int)
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		order[n] = len(order)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return order
}

// Tap records the tap.
func (s *Session) Tap(node core.NodeHandle) error {
	if _, err := s.node(node); err != nil {
		return err
	}
	s.mu.Lock()
	s.taps = append(s.taps, node)
	s.mu.Unlock()
	return nil
}

// Attribute returns the XML attribute of the same name, "" when absent.
func (s *Session) Attribute(node core.NodeHandle, name core.Attribute) (string, error) {
	n, err := s.node(node)
	if err != nil {
		return "", err
	}
	return n.SelectAttr(string(name)), nil
}

// CurrentScreen returns the activity given at load time.
func (s *Session) CurrentScreen() (string, error) {
	return s.activity, nil
}

// Swipe is a no-op.
func (s *Session) Swipe(startX, startY, endX, endY, durationMs int) error {
	return nil
}

// Source returns the document as loaded.
func (s *Session) Source() (string, error) {
	return s.source, nil
}

// Close is a no-op.
func (s *Session) Close() error {
	return nil
}

// Taps returns the tapped handles in order.
func (s *Session) Taps() []core.NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.NodeHandle(nil), s.taps...)
}

func (s *Session) node(h core.NodeHandle) (*xmlquery.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[h]
	if !ok {
		return nil, core.ErrTransport.WithMessage("stale element reference: " + string(h))
	}
	return n, nil
}

var _ core.Session = (*Session)(nil)

package appium

import (
	"errors"
	"sync"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// Session implements core.Session over an Appium server.
// Every wire failure is reported as core.ErrTransport.
type Session struct {
	client    *Client
	closeOnce sync.Once
	closeErr  error
}

// Open connects to serverURL and creates a session with capabilities.
func Open(serverURL string, capabilities map[string]interface{}) (*Session, error) {
	return OpenWith(NewClient(serverURL), capabilities)
}

// OpenWith creates a session using a configured client.
func OpenWith(client *Client, capabilities map[string]interface{}) (*Session, error) {
	if err := client.Connect(capabilities); err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}
	return &Session{client: client}, nil
}

// ID returns the WebDriver session ID.
func (s *Session) ID() string {
	return s.client.SessionID()
}

// Query finds every node matching an XPath expression.
func (s *Session) Query(expression string) ([]core.NodeHandle, error) {
	ids, err := s.client.FindElements("xpath", expression)
	if err != nil {
		return nil, transport("query "+expression, err)
	}
	return handles(ids), nil
}

// QueryWithin finds nodes matching a relative XPath expression under parent.
func (s *Session) QueryWithin(parent core.NodeHandle, expression string) ([]core.NodeHandle, error) {
	ids, err := s.client.FindElementsFrom(string(parent), "xpath", expression)
	if err != nil {
		return nil, transport("query "+expression, err)
	}
	return handles(ids), nil
}

// Tap clicks the node.
func (s *Session) Tap(node core.NodeHandle) error {
	if err := s.client.ClickElement(string(node)); err != nil {
		return transport("tap", err)
	}
	return nil
}

// Attribute reads one attribute of the node.
func (s *Session) Attribute(node core.NodeHandle, name core.Attribute) (string, error) {
	v, err := s.client.GetElementAttribute(string(node), string(name))
	if err != nil {
		return "", transport("read "+string(name), err)
	}
	return v, nil
}

// CurrentScreen returns the current activity.
func (s *Session) CurrentScreen() (string, error) {
	activity, err := s.client.CurrentActivity()
	if err != nil {
		return "", transport("current activity", err)
	}
	return activity, nil
}

// Swipe performs a coordinate gesture.
func (s *Session) Swipe(startX, startY, endX, endY, durationMs int) error {
	if err := s.client.Swipe(startX, startY, endX, endY, durationMs); err != nil {
		return transport("swipe", err)
	}
	return nil
}

// Source returns the page source.
func (s *Session) Source() (string, error) {
	src, err := s.client.Source()
	if err != nil {
		return "", transport("page source", err)
	}
	return src, nil
}

// Close deletes the remote session. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.client.Disconnect(); err != nil {
			s.closeErr = transport("close session", err)
		}
	})
	return s.closeErr
}

func handles(ids []string) []core.NodeHandle {
	out := make([]core.NodeHandle, len(ids))
	for i, id := range ids {
		out[i] = core.NodeHandle(id)
	}
	return out
}

func transport(op string, err error) error {
	e := core.ErrTransport.WithMessage(op + " failed").WithCause(err)
	var wdErr *WebDriverError
	if errors.As(err, &wdErr) {
		e = e.WithDetails(map[string]interface{}{"webdriverError": wdErr.Type, "httpStatus": wdErr.Status})
	}
	return e
}

var _ core.Session = (*Session)(nil)

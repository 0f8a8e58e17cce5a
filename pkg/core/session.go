package core

// NodeHandle identifies one node of the remote element tree.
// It is only valid until the next tree mutation (tap, navigation, dialog dismissal).
type NodeHandle string

// Session is one running remote-automation connection owning a single device/app instance.
// Implementations: Appium (W3C WebDriver), mock.
// Query calls read a single snapshot of the tree; nothing is cached between calls.
type Session interface {
	// Query returns every node matching expression in the current tree.
	Query(expression string) ([]NodeHandle, error)

	// QueryWithin evaluates a relative expression against the subtree of parent.
	QueryWithin(parent NodeHandle, expression string) ([]NodeHandle, error)

	// Tap taps the node's on-screen location.
	Tap(node NodeHandle) error

	// Attribute reads one attribute of the node.
	Attribute(node NodeHandle, name Attribute) (string, error)

	// CurrentScreen returns the platform screen identifier (Android activity).
	CurrentScreen() (string, error)

	// Swipe performs a coordinate gesture.
	Swipe(startX, startY, endX, endY, durationMs int) error

	// Source returns the page source of the current tree.
	Source() (string, error)

	// Close releases the session.
	Close() error
}

// Attribute is one of the fixed set of node attributes the engine may read.
type Attribute string

// Readable attributes.
const (
	AttrText        Attribute = "text"
	AttrResourceID  Attribute = "resource-id"
	AttrContentDesc Attribute = "content-desc"
	AttrClass       Attribute = "class"
	AttrClickable   Attribute = "clickable"
	AttrEnabled     Attribute = "enabled"
	AttrSelected    Attribute = "selected"
	AttrChecked     Attribute = "checked"
	AttrDisplayed   Attribute = "displayed"
)

// Attributes lists every readable attribute.
var Attributes = []Attribute{
	AttrText, AttrResourceID, AttrContentDesc, AttrClass,
	AttrClickable, AttrEnabled, AttrSelected, AttrChecked, AttrDisplayed,
}

// ParseAttribute validates an attribute name.
func ParseAttribute(name string) (Attribute, bool) {
	for _, a := range Attributes {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// LogEntry represents a single log message captured during execution
type LogEntry struct {
	Level   string `json:"level"` // warn, error
	Step    int    `json:"step"`
	Message string `json:"message"`
}

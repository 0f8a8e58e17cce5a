// Package core provides the execution model types for onboard-runner.
package core

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // page_source
	ContentType string `json:"contentType"` // MIME type
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentPageSource = "page_source"
)

// Common content types
const (
	ContentTypeXML  = "application/xml"
	ContentTypeText = "text/plain"
)

// NewPageSourceAttachment creates a page source attachment
func NewPageSourceAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentPageSource,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}

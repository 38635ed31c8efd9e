package email

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Sender delivers a single message and reports what the transport assigned to it.
// Implementations must be safe for concurrent use.
type Sender interface {
	Deliver(ctx context.Context, msg Message) (Receipt, error)
}

// Message is a plain-text email. The HTML alternative is derived from Body.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tag     string `json:"tag,omitempty"` // Optional
}

// Receipt identifies a delivered message.
type Receipt struct {
	MessageID  string `json:"message_id"`
	PreviewURL string `json:"preview_url,omitempty"` // set by transports that keep a viewable copy
}

// emailRegex accepts anything shaped like local@domain.tld without whitespace.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidAddress reports whether s looks like an email address.
func IsValidAddress(s string) bool {
	return emailRegex.MatchString(s)
}

// Validate checks that the message can be handed to a transport.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	case !IsValidAddress(m.To):
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidParams)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	case strings.TrimSpace(m.Body) == "":
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// HTMLBody wraps the escaped text body in a paragraph.
func (m Message) HTMLBody() string {
	return "<p>" + html.EscapeString(m.Body) + "</p>"
}

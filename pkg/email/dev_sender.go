package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender implements Sender for local development.
// It saves each message as an HTML file plus JSON metadata and reports the
// HTML file as the preview URL.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender creates a development sender that saves emails to dir.
// The directory is created on first delivery.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

// emailMetadata contains the email data saved to JSON (excluding HTML content).
type emailMetadata struct {
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Tag       string `json:"tag,omitempty"`
}

// Deliver writes the message to the configured directory.
func (d *DevSender) Deliver(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Receipt{}, fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	now := d.now()
	messageID := uuid.NewString()

	identifier := msg.Tag
	if identifier == "" {
		identifier = msg.Subject
	}
	baseFilename := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), messageID[:8])

	htmlPath := filepath.Join(d.dir, baseFilename+".html")
	if err := os.WriteFile(htmlPath, []byte(msg.HTMLBody()), 0o644); err != nil {
		return Receipt{}, fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSendEmail, err)
	}

	jsonData, err := json.MarshalIndent(emailMetadata{
		MessageID: messageID,
		Timestamp: now.Format(time.RFC3339),
		SendTo:    msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Tag:       msg.Tag,
	}, "", "  ")
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: failed to marshal metadata: %v", ErrFailedToSendEmail, err)
	}

	jsonPath := filepath.Join(d.dir, baseFilename+".json")
	if err := os.WriteFile(jsonPath, jsonData, 0o644); err != nil {
		return Receipt{}, fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSendEmail, err)
	}

	preview := htmlPath
	if abs, err := filepath.Abs(htmlPath); err == nil {
		preview = abs
	}

	return Receipt{
		MessageID:  messageID,
		PreviewURL: "file://" + filepath.ToSlash(preview),
	}, nil
}

// sanitizeRegex matches characters that are not alphanumeric, dash, underscore, or dot
var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename converts a string into a safe, lowercase filename fragment.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}

	if s == "" {
		s = "email"
	}

	return strings.ToLower(s)
}

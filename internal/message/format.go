// Package message builds the payload delivered to a chat platform.
package message

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"

	"github.com/kernel/askai/internal/platform"
)

// MaxLength is the largest formatted message, in characters, that may be
// delivered. Characters are UTF-16 code units, as browsers count them.
const MaxLength = 16384

// Message is a single delivery request.
type Message struct {
	Text         string `json:"text"`
	Instructions string `json:"instructions"`
	Model        string `json:"model,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// Validation is the outcome of Validate.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// FormatForClipboard renders m as instructions followed by the text in a
// triple-quoted block. Either part is omitted when blank.
func FormatForClipboard(m Message) string {
	var b strings.Builder
	if instructions := strings.TrimSpace(m.Instructions); instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	if text := strings.TrimSpace(m.Text); text != "" {
		b.WriteString("\"\"\"\n")
		b.WriteString(text)
		b.WriteString("\n\"\"\"")
	}
	return b.String()
}

// BuildDeepLinkURL returns the URL that opens p with m pre-filled. The model
// parameter is added only when it differs from the platform default.
func BuildDeepLinkURL(p platform.Platform, m Message) (string, error) {
	if !p.DeepLink {
		return "", fmt.Errorf("%s does not support deep links", p.Name)
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return "", fmt.Errorf("invalid %s URL: %w", p.Name, err)
	}

	q := url.Values{}
	q.Set("q", FormatForClipboard(m))
	if m.Model != "" && m.Model != p.DefaultModel {
		q.Set("model", m.Model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Validate is the gate every message passes before delivery.
func Validate(m Message) Validation {
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.Instructions) == "" {
		return Validation{Error: "Please enter some text or instructions"}
	}
	if n := Length(FormatForClipboard(m)); n > MaxLength {
		return Validation{Error: fmt.Sprintf("Message too long (%d characters). Maximum is %d characters.", n, MaxLength)}
	}
	return Validation{Valid: true}
}

// Length counts text in UTF-16 code units. Characters outside the Basic
// Multilingual Plane, most emoji among them, count twice.
func Length(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// Truncate shortens text to at most max characters as counted by Length,
// never splitting a surrogate pair. A non-positive max leaves text unchanged.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	n := 0
	for i, r := range text {
		n += utf16.RuneLen(r)
		if n > max {
			return text[:i]
		}
	}
	return text
}

package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content part types
const (
	PartTypeText  = "text"
	PartTypeImage = "image"
)

// ContentPart is one element of mixed content: either inline text or a
// reference to a stored image.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Content is the tagged union of message content shapes: plain text or an
// ordered sequence of typed parts. Exactly one variant is populated. On the
// wire it is either a JSON string or a JSON array of parts.
type Content struct {
	Text  *string       `json:"-"`
	Parts []ContentPart `json:"-"`
}

// TextContent builds the plain-text variant.
func TextContent(s string) Content {
	return Content{Text: &s}
}

// PartsContent builds the mixed-content variant.
func PartsContent(parts []ContentPart) Content {
	return Content{Parts: parts}
}

// IsZero reports whether neither variant is populated.
func (c Content) IsZero() bool {
	return c.Text == nil && c.Parts == nil
}

// MarshalJSON emits a string for the text variant and an array for the
// parts variant.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return []byte(`""`), nil
}

// UnmarshalJSON accepts either a JSON string or a JSON array of parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = &s
		c.Parts = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		c.Parts = parts
		c.Text = nil
		return nil
	}
	if trimmed == "null" {
		*c = Content{}
		return nil
	}
	return fmt.Errorf("content must be a string or an array of parts")
}

// Signature returns the normalized comparison form of the content. Volatile
// whitespace differences are stripped so that two renderings of the same
// message compare equal. Each variant has its own signature shape so a text
// message never collides with a single-part mixed message of different type.
func (c Content) Signature() string {
	if c.Text != nil {
		return "t:" + normalizeWhitespace(*c.Text)
	}
	if len(c.Parts) > 0 {
		var b strings.Builder
		for _, p := range c.Parts {
			switch p.Type {
			case PartTypeImage:
				b.WriteString("|img:")
				b.WriteString(p.ImageRef)
			default:
				b.WriteString("|txt:")
				b.WriteString(normalizeWhitespace(p.Text))
			}
		}
		return "p" + b.String()
	}
	return ""
}

// Equal reports whether two contents have the same normalized signature.
func (c Content) Equal(other Content) bool {
	return c.Signature() == other.Signature()
}

// normalizeWhitespace trims the string and collapses interior whitespace
// runs to a single space.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

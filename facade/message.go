package facade

import "strings"

// Part is one block of a multi-part message body (text plus image_url
// blocks in the common chat-completions shape). Non-text parts pass
// through the guard unchanged; only text parts are ever scanned.
type Part struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message is one conversation entry in the wire-agnostic shape the guard
// consumes. Content carries a plain string body; Parts carries a
// multi-part body. When Parts is non-empty it takes precedence.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Parts      []Part `json:"parts,omitempty"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ScanText returns the scannable view of the message: the concatenated
// text parts for a multi-part body, the plain content otherwise. The
// envelope itself is never serialized into the scan target.
func (m Message) ScanText() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "" || p.Type == "text" {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
	}
	return strings.Join(texts, "\n")
}

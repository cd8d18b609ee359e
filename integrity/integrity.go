// Package integrity implements the HMAC Integrity Chain: per-message
// authentication codes plus a chained hash over the whole conversation,
// so tampering with any signed message (or reordering the chain) is
// detectable.
//
// No example repo in the pack signs conversation messages; crypto/hmac
// and crypto/sha256 are the standard-library contract for HMAC in Go, and
// no third-party library is the idiomatic choice here.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Message is the minimal shape the integrity chain signs: a role and its
// content.
type Message struct {
	Role    string
	Content string
}

// fieldSep is the canonical separator between role and content in the
// signed payload, chosen (ASCII Record Separator) so it cannot appear in
// ordinary message text.
const fieldSep = "\x1e"

// Signer signs and verifies messages with HMAC over a shared secret.
type Signer struct {
	secret        []byte
	newHash       func() hash.Hash
	assistantOnly bool
}

// Option configures a Signer.
type Option func(*Signer)

// WithAssistantOnly controls whether non-assistant messages are signed.
// Defaults to true: assistant output is what an attacker rewrites.
func WithAssistantOnly(v bool) Option {
	return func(s *Signer) { s.assistantOnly = v }
}

// New creates a Signer using HMAC-SHA256 over the given secret.
func New(secret []byte, opts ...Option) *Signer {
	s := &Signer{secret: secret, newHash: sha256.New, assistantOnly: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sign returns the lowercase hex HMAC signature of one message.
func (s *Signer) Sign(m Message) string {
	mac := hmac.New(s.newHash, s.secret)
	mac.Write([]byte(m.Role + fieldSep + m.Content))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedMessage pairs a Message with its signature (empty for
// non-assistant entries when assistantOnly is set).
type SignedMessage struct {
	Message   Message
	Signature string
}

// Conversation is signConversation's output: every message paired with
// its signature, plus a chain hash over the whole sequence.
type Conversation struct {
	Messages  []SignedMessage
	ChainHash string
}

// SignConversation signs every message (subject to assistantOnly) and
// computes a chain hash over the ordered (role, content, signature)
// tuples.
func (s *Signer) SignConversation(messages []Message) Conversation {
	signed := make([]SignedMessage, len(messages))
	for i, m := range messages {
		sig := ""
		if !s.assistantOnly || m.Role == "assistant" {
			sig = s.Sign(m)
		}
		signed[i] = SignedMessage{Message: m, Signature: sig}
	}
	return Conversation{Messages: signed, ChainHash: s.chainHash(signed)}
}

func (s *Signer) chainHash(signed []SignedMessage) string {
	mac := hmac.New(s.newHash, s.secret)
	for _, sm := range signed {
		mac.Write([]byte(sm.Message.Role + fieldSep + sm.Message.Content + fieldSep + sm.Signature))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyResult is verifyConversation's output.
type VerifyResult struct {
	Valid           bool
	TamperedIndices []int
	ChainValid      bool
}

// VerifyConversation recomputes each message's signature (skipping
// empty-signature slots, which were never signed) and the chain hash,
// reporting which indices were tampered with.
func (s *Signer) VerifyConversation(c Conversation) VerifyResult {
	var tampered []int
	for i, sm := range c.Messages {
		if sm.Signature == "" {
			continue
		}
		if s.Sign(sm.Message) != sm.Signature {
			tampered = append(tampered, i)
		}
	}
	chainValid := s.chainHash(c.Messages) == c.ChainHash
	return VerifyResult{
		Valid:           chainValid && len(tampered) == 0,
		TamperedIndices: tampered,
		ChainValid:      chainValid,
	}
}

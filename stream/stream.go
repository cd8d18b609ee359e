// Package stream implements the Stream Monitor: a text-to-text transform
// that passes output chunks through immediately while concurrently
// scanning an overlap-buffered tail for canary leaks, PII, secrets, and
// injection payloads, terminating the downstream the instant a violation
// fires: a pipeline stage with a tail buffer, a synchronous bounded
// scan, and a termination signal to the consumer.
package stream

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/patterns"
)

// ViolationType identifies why the stream monitor terminated or redacted.
type ViolationType string

const (
	ViolationCanaryLeak        ViolationType = "canary_leak"
	ViolationPIIDetected       ViolationType = "pii_detected"
	ViolationSecretDetected    ViolationType = "secret_detected"
	ViolationInjectionPayload  ViolationType = "injection_payload"
	ViolationMarkdownInjection ViolationType = "markdown_injection"
)

// Violation describes one triggering event observed mid-stream.
type Violation struct {
	Type     ViolationType
	Matched  string
	Label    string // e.g. "SSN", "EMAIL" for pii_detected
	Position int
}

// Config tunes Monitor construction.
type Config struct {
	// Canaries are literal secret tokens whose appearance anywhere in the
	// stream proves prompt/context leakage.
	Canaries []string
	// ChunkSize is the nominal size used to compute the overlap window;
	// the retained tail is ChunkSize + the longest pattern's match
	// headroom. Default 50.
	ChunkSize int
	// PIIRedaction, when true, substitutes "[REDACTED-{LABEL}]" for PII
	// matches instead of terminating the stream.
	PIIRedaction bool
	// Library is used to re-run the Pattern Library's injection-payload
	// catalogue (C6) over the tail window. A nil Library falls back to
	// patterns.New() at default balanced sensitivity.
	Library     *patterns.Library
	Sensitivity patterns.Sensitivity
}

const defaultChunkSize = 50

// overlapHeadroom is added to ChunkSize when sizing the retained tail, an
// upper bound on the longest pattern this package matches so that a
// violation string split across a chunk boundary is still fully visible
// in at least one scan window.
const overlapHeadroom = 50

// Monitor is a single stream's scanning state: the retained tail from the
// previous chunk, plus the configuration used to scan each new one. held
// carries text withheld from emission because it could be the opening of
// a canary token split across a chunk boundary; it is either released
// with the next chunk or discarded on termination, so no byte of a
// canary is ever delivered downstream.
type Monitor struct {
	cfg        Config
	tail       string
	held       string
	overlapLen int
	terminated bool
}

// New creates a Monitor for one stream.
func New(cfg Config) *Monitor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Library == nil {
		cfg.Library = patterns.New()
	}
	if cfg.Sensitivity == "" {
		cfg.Sensitivity = patterns.Balanced
	}
	return &Monitor{cfg: cfg, overlapLen: cfg.ChunkSize + overlapHeadroom}
}

// Result is what Feed returns for one chunk: the text safe to emit
// downstream, and whether the stream should terminate after emitting it.
type Result struct {
	Emit      string
	Violation *Violation
	Terminate bool
}

// Feed scans one chunk, concatenated with the retained tail from the
// previous call, and returns what is safe to emit downstream. Once a
// chunk triggers termination, every subsequent call to Feed returns an
// empty, terminated Result: termination is idempotent.
func (m *Monitor) Feed(chunk string) Result {
	if m.terminated {
		return Result{Terminate: true}
	}

	window := m.tail + chunk

	if v := scanCanaries(window, m.cfg.Canaries); v != nil {
		m.terminated = true
		return Result{Violation: v, Terminate: true}
	}
	if v := scanSecrets(window); v != nil {
		m.terminated = true
		return Result{Violation: v, Terminate: true}
	}
	if v := scanInjection(window, m.cfg.Library, m.cfg.Sensitivity); v != nil {
		m.terminated = true
		return Result{Violation: v, Terminate: true}
	}
	if v := scanMarkdownInjection(window); v != nil {
		m.terminated = true
		return Result{Violation: v, Terminate: true}
	}

	// Release previously-held text with this chunk, then withhold any new
	// window suffix that could be the opening of a split canary.
	emit := m.held + chunk
	emittedTail := m.tail[:len(m.tail)-len(m.held)]
	hold := canaryHoldback(window, m.cfg.Canaries)
	if hold > len(emit) {
		hold = len(emit)
	}
	m.held = emit[len(emit)-hold:]
	emit = emit[:len(emit)-hold]

	if v, redacted, ok := scanAndRedactPII(window, m.cfg.PIIRedaction); ok {
		if m.cfg.PIIRedaction {
			emit = redactChunk(emit, emittedTail, redacted)
		} else {
			m.terminated = true
			return Result{Violation: v, Terminate: true}
		}
	}

	m.updateTail(window)
	return Result{Emit: emit}
}

// canaryHoldback returns the byte length of the longest window suffix
// that is a proper prefix of any canary token.
func canaryHoldback(window string, canaries []string) int {
	longest := 0
	for _, c := range canaries {
		if c == "" {
			continue
		}
		for k := len(c) - 1; k > longest; k-- {
			if k <= len(window) && strings.HasSuffix(window, c[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}

// updateTail retains the trailing overlapLen runes of window for the next
// call's scan.
func (m *Monitor) updateTail(window string) {
	runes := []rune(window)
	if len(runes) <= m.overlapLen {
		m.tail = window
		return
	}
	m.tail = string(runes[len(runes)-m.overlapLen:])
}

func scanCanaries(window string, canaries []string) *Violation {
	for _, c := range canaries {
		if c == "" {
			continue
		}
		if idx := strings.Index(window, c); idx >= 0 {
			return &Violation{Type: ViolationCanaryLeak, Matched: c, Position: idx}
		}
	}
	return nil
}

func scanInjection(window string, lib *patterns.Library, sens patterns.Sensitivity) *Violation {
	dets := lib.Scan(window, sens)
	for _, d := range dets {
		if d.Severity == detect.SeverityHigh || d.Severity == detect.SeverityCritical {
			return &Violation{Type: ViolationInjectionPayload, Matched: d.Matched, Position: d.Position.Start}
		}
	}
	return nil
}

var markdownDangerRe = regexp.MustCompile(`(?i)javascript:|<script[\s>]`)

func scanMarkdownInjection(window string) *Violation {
	if loc := markdownDangerRe.FindStringIndex(window); loc != nil {
		return &Violation{Type: ViolationMarkdownInjection, Matched: window[loc[0]:loc[1]], Position: loc[0]}
	}
	return nil
}

// redactedMatch is a PII (or secret) match location plus its label, used
// to drive redaction substitution against the emitted chunk.
type redactedMatch struct {
	start, end int
	label      string
}

func scanAndRedactPII(window string, _ bool) (*Violation, []redactedMatch, bool) {
	var matches []redactedMatch
	for label, re := range piiPatterns {
		for _, loc := range re.FindAllStringIndex(window, -1) {
			if label == "IP" && isExcludedIP(window[loc[0]:loc[1]]) {
				continue
			}
			if label == "CREDIT_CARD" && !luhnValid(window[loc[0]:loc[1]]) {
				continue
			}
			matches = append(matches, redactedMatch{loc[0], loc[1], label})
		}
	}
	if len(matches) == 0 {
		return nil, nil, false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	v := &Violation{Type: ViolationPIIDetected, Matched: window[matches[0].start:matches[0].end], Label: matches[0].label, Position: matches[0].start}
	return v, matches, true
}

// redactChunk substitutes "[REDACTED-{LABEL}]" for any PII match that
// falls (even partially) within the newly-arrived chunk portion of
// window = tail + chunk. Match positions are byte offsets into window.
func redactChunk(chunk, tail string, matches []redactedMatch) string {
	tailLen := len(tail)

	type span struct {
		start, end int
		label      string
	}
	var spans []span
	for _, m := range matches {
		start := m.start - tailLen
		end := m.end - tailLen
		if end <= 0 || start >= len(chunk) {
			continue // match falls entirely within the already-emitted tail
		}
		if start < 0 {
			start = 0
		}
		if end > len(chunk) {
			end = len(chunk)
		}
		spans = append(spans, span{start, end, m.label})
	}
	if len(spans) == 0 {
		return chunk
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.start < last {
			continue
		}
		b.WriteString(chunk[last:s.start])
		b.WriteString("[REDACTED-" + s.label + "]")
		last = s.end
	}
	b.WriteString(chunk[last:])
	return b.String()
}

// secretPatterns catches common API-key and bearer-token shapes.
var secretPatterns = map[string]*regexp.Regexp{
	"OPENAI_KEY": regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	"AWS_KEY":    regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	"BEARER":     regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`),
}

func scanSecrets(window string) *Violation {
	for label, re := range secretPatterns {
		if loc := re.FindStringIndex(window); loc != nil {
			return &Violation{Type: ViolationSecretDetected, Matched: window[loc[0]:loc[1]], Label: label, Position: loc[0]}
		}
	}
	return nil
}

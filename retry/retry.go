// Package retry is the Auto-Retry Handler: when an input scan blocks, it
// escalates through configured paths (a paranoid-sensitivity rescan, a
// sandbox-extraction detour, or both in sequence) before the facade gives
// up and applies its recovery mode.
package retry

import (
	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/patterns"
	"github.com/nox-hq/aegis/quarantine"
	"github.com/nox-hq/aegis/scanner"
)

// Escalation selects how a retry attempt tries to recover.
type Escalation string

// Escalation paths, closed set.
const (
	// EscalationStricterScanner rescans the content at paranoid
	// sensitivity: a scan that stays blocked under the stricter catalogue
	// confirms the block, one that comes back clean suggests the original
	// detection was a low-confidence artifact.
	EscalationStricterScanner Escalation = "stricter_scanner"
	// EscalationSandbox signals the caller to route the content through
	// the sandbox extractor instead of the normal path. The handler
	// reports success; the routing itself is the caller's responsibility.
	EscalationSandbox Escalation = "sandbox"
	// EscalationCombined tries stricter_scanner on the first attempt and
	// sandbox on subsequent ones.
	EscalationCombined Escalation = "combined"
)

// DefaultMaxAttempts bounds the retry loop.
const DefaultMaxAttempts = 2

// Context is handed to the OnRetry callback once per attempt.
type Context struct {
	Attempt    int
	Escalation Escalation
	Detections []detect.Detection
}

// Result is one AttemptRetry outcome.
type Result struct {
	Attempt    int
	Succeeded  bool
	Escalation Escalation
	ScanResult *detect.ScanResult
	Exhausted  bool
}

// Config tunes a Handler.
type Config struct {
	MaxAttempts int
	Escalation  Escalation
	OnRetry     func(Context)
}

// Handler drives the escalation paths. It holds the pattern library so
// the stricter_scanner path can rebuild the Input Scanner at paranoid
// sensitivity without mutating the session's configured scanner.
type Handler struct {
	cfg     Config
	library *patterns.Library
	base    scanner.Config
}

// New creates a Handler over the same library and base scanner config the
// session's Input Scanner uses.
func New(library *patterns.Library, base scanner.Config, cfg Config) *Handler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Escalation == "" {
		cfg.Escalation = EscalationStricterScanner
	}
	return &Handler{cfg: cfg, library: library, base: base}
}

// MaxAttempts reports the configured attempt bound.
func (h *Handler) MaxAttempts() int { return h.cfg.MaxAttempts }

// AttemptRetry runs one escalation attempt against quarantined content
// that a prior scan blocked. attempt is 1-based; attempts past
// MaxAttempts return an exhausted Result without escalating.
func (h *Handler) AttemptRetry(q quarantine.Q[string], detections []detect.Detection, attempt int) Result {
	if attempt > h.cfg.MaxAttempts {
		return Result{Attempt: attempt, Succeeded: false, Exhausted: true}
	}

	esc := h.cfg.Escalation
	if esc == EscalationCombined {
		if attempt == 1 {
			esc = EscalationStricterScanner
		} else {
			esc = EscalationSandbox
		}
	}

	if h.cfg.OnRetry != nil {
		h.cfg.OnRetry(Context{Attempt: attempt, Escalation: esc, Detections: detections})
	}

	switch esc {
	case EscalationSandbox:
		// The caller owns the sandbox routing; reporting success here
		// hands the content over to that path.
		return Result{Attempt: attempt, Succeeded: true, Escalation: esc}
	default:
		strict := h.base
		strict.Sensitivity = patterns.Paranoid
		res := scanner.New(h.library, strict).Scan(q)
		return Result{
			Attempt:    attempt,
			Succeeded:  res.Safe,
			Escalation: esc,
			ScanResult: &res,
		}
	}
}

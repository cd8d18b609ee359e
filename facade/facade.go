// Package facade is the session-scoped controller gluing the guard
// components together: input scanning with recovery modes, the stream
// monitor, the action validator, the agent-loop guard, the HMAC integrity
// chain, the LLM-judge, the multi-modal scanner, auto-retry escalation,
// and the audit/alerting fan-out. One Guard owns one session's state;
// concurrent sessions get independent Guards.
//
// The subcomponents are constructed once, run in a fixed order per
// operation, and their outputs merged, with structured events emitted
// along the way.
package facade

import (
	"fmt"
	"regexp"
	"time"

	"github.com/nox-hq/aegis/agentloop"
	"github.com/nox-hq/aegis/alerting"
	"github.com/nox-hq/aegis/audit"
	"github.com/nox-hq/aegis/integrity"
	"github.com/nox-hq/aegis/judge"
	"github.com/nox-hq/aegis/multimodal"
	"github.com/nox-hq/aegis/patterns"
	"github.com/nox-hq/aegis/policy"
	"github.com/nox-hq/aegis/retry"
	"github.com/nox-hq/aegis/scanner"
	"github.com/nox-hq/aegis/session"
	"github.com/nox-hq/aegis/validator"
)

// ScanStrategy selects which conversation slice guardInput scans.
type ScanStrategy string

// Scan strategies.
const (
	// ScanLastUser scans only the most recent user message.
	ScanLastUser ScanStrategy = "last-user"
	// ScanAllUser scans every user message and runs trajectory analysis.
	ScanAllUser ScanStrategy = "all-user"
	// ScanFullHistory scans every message with content and runs
	// trajectory analysis.
	ScanFullHistory ScanStrategy = "full-history"
)

// RecoveryMode selects what happens when a scan blocks input.
type RecoveryMode string

// Recovery modes.
const (
	RecoveryContinue          RecoveryMode = "continue"
	RecoveryResetLast         RecoveryMode = "reset-last"
	RecoveryQuarantineSession RecoveryMode = "quarantine-session"
	RecoveryTerminateSession  RecoveryMode = "terminate-session"
	RecoveryAutoRetry         RecoveryMode = "auto-retry"
)

// CustomPattern is a user-supplied regex appended to the pattern library
// at medium severity.
type CustomPattern struct {
	ID          string
	Description string
	Regex       string
}

// Config assembles one Guard. Zero values fall back to the defaults:
// balanced sensitivity, last-user strategy, continue recovery.
type Config struct {
	// SessionID binds the Guard to a host-supplied session identifier;
	// empty generates one.
	SessionID string
	// Policy is the resolved, read-only policy this session enforces.
	Policy policy.Policy
	// Sensitivity overrides the policy's input sensitivity when set.
	Sensitivity patterns.Sensitivity
	// CustomPatterns extend the pattern library.
	CustomPatterns []CustomPattern
	// ScanStrategy is the default for GuardInput.
	ScanStrategy ScanStrategy
	// RecoveryMode applies on any input block.
	RecoveryMode RecoveryMode
	// Secret keys the HMAC integrity chain; empty disables signing.
	Secret []byte
	// Judge is the optional LLM-judge; nil makes JudgeOutput fail with
	// ErrJudgeNotConfigured.
	Judge *judge.Judge
	// Extractor is the optional media-text extractor; nil makes
	// ScanMedia fail with ErrMultiModalNotConfigured.
	Extractor         multimodal.ExtractorFunc
	MaxFileSize       int
	AllowedMediaTypes []multimodal.MediaType
	// Retry tunes the auto-retry handler; only consulted when
	// RecoveryMode is auto-retry.
	Retry retry.Config
	// AlertRules and AlertActions configure the alerting engine.
	AlertRules   []alerting.Rule
	AlertActions map[alerting.ActionKind]alerting.ActionFunc
	// Bus receives every audit entry; nil constructs an in-memory bus.
	Bus *audit.Bus
	// OnApproval resolves require-approval tool calls.
	OnApproval validator.ApprovalFunc
	// DoW bounds the denial-of-wallet window.
	DoW validator.DoWThresholds
	// MCPParamScan enables the validator's recursive parameter scan.
	MCPParamScan bool
}

// Guard is the per-session facade over every guard component.
type Guard struct {
	cfg     Config
	state   *session.State
	library *patterns.Library
	scanCfg scanner.Config
	scanner *scanner.Scanner
	check   *validator.Validator
	loop    *agentloop.Guard
	signer  *integrity.Signer
	retryH  *retry.Handler
	media   *multimodal.Scanner
	alerts  *alerting.Engine
	bus     *audit.Bus
}

// New assembles a Guard from cfg. It fails only on malformed custom
// patterns; every optional collaborator may be absent.
func New(cfg Config) (*Guard, error) {
	if cfg.ScanStrategy == "" {
		cfg.ScanStrategy = ScanLastUser
	}
	if cfg.RecoveryMode == "" {
		cfg.RecoveryMode = RecoveryContinue
	}

	g := &Guard{cfg: cfg, state: session.NewWithID(cfg.SessionID)}

	g.bus = cfg.Bus
	if g.bus == nil {
		g.bus = audit.NewBus()
	}
	if len(cfg.AlertRules) > 0 {
		g.alerts = alerting.New(cfg.AlertRules, cfg.AlertActions)
	}

	g.library = patterns.New()
	for _, p := range cfg.CustomPatterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("custom pattern %q: %w", p.ID, err)
		}
		g.library.AddCustom(p.ID, p.Description, re)
	}

	g.scanCfg = scanner.DefaultConfig()
	g.scanCfg.Sensitivity = resolveSensitivity(cfg)
	g.scanner = scanner.New(g.library, g.scanCfg)

	g.check = validator.New(validator.Config{
		Policy:          cfg.Policy,
		DoW:             cfg.DoW,
		OnApproval:      cfg.OnApproval,
		OnAudit:         g.emitCallback,
		MCPParamScan:    cfg.MCPParamScan,
		Scanner:         g.scanner,
		ScanSensitivity: string(g.scanCfg.Sensitivity),
	})

	g.loop = agentloop.New(g.scanner, func(event string, res agentloop.StepResult, opts agentloop.Options) {
		decision := audit.DecisionAllowed
		if !res.Safe {
			decision = audit.DecisionBlocked
		}
		g.emit(event, decision, opts.RequestID, map[string]any{
			"step":            opts.Step,
			"cumulative_risk": res.CumulativeRisk,
			"reason":          res.Reason,
		})
	})

	if len(cfg.Secret) > 0 {
		g.signer = integrity.New(cfg.Secret)
	}

	g.retryH = retry.New(g.library, g.scanCfg, cfg.Retry)

	if cfg.Extractor != nil {
		g.media = multimodal.New(multimodal.Config{
			Extractor:         cfg.Extractor,
			MaxFileSize:       cfg.MaxFileSize,
			AllowedMediaTypes: cfg.AllowedMediaTypes,
			Scanner:           g.scanner,
			OnAudit:           g.emitCallback,
		})
	}

	return g, nil
}

// SessionID returns the session identifier this Guard is bound to.
func (g *Guard) SessionID() string { return g.state.ID }

// AuditTrail returns the in-memory audit ring, oldest first.
func (g *Guard) AuditTrail() []audit.Entry { return g.bus.Entries() }

// ActiveAlerts returns the alerting engine's unresolved alerts, or nil
// when no rules are configured.
func (g *Guard) ActiveAlerts() []alerting.Alert {
	if g.alerts == nil {
		return nil
	}
	return g.alerts.ActiveAlerts()
}

func resolveSensitivity(cfg Config) patterns.Sensitivity {
	if cfg.Sensitivity != "" {
		return cfg.Sensitivity
	}
	if s := cfg.Policy.Input.Sensitivity; s != "" {
		return patterns.Sensitivity(s)
	}
	return patterns.Balanced
}

// emit routes one audit entry to the bus and the alerting engine.
func (g *Guard) emit(event string, decision audit.Decision, requestID string, ctx map[string]any) {
	now := time.Now().UTC()
	g.bus.Emit(audit.Entry{
		Timestamp: now,
		Event:     event,
		Decision:  decision,
		SessionID: g.state.ID,
		RequestID: requestID,
		Context:   ctx,
	})
	if g.alerts != nil {
		g.alerts.RecordEvent(alerting.AuditEntry{
			Timestamp: now,
			Event:     event,
			Decision:  string(decision),
			SessionID: g.state.ID,
		}, now)
	}
}

// emitCallback adapts emit to the string-typed callback shape the
// validator and multi-modal scanner expect.
func (g *Guard) emitCallback(event string, decision string, ctx map[string]any) {
	g.emit(event, audit.Decision(decision), "", ctx)
}

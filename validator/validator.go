// Package validator is the Action Validator: it enforces capability ACL,
// rate-limit, denial-of-wallet, parameter-safety, MCP parameter scan, and
// data-exfiltration rules over proposed tool invocations, in a frozen
// evaluation order, short-circuiting on first block.
//
// The per-tool rate bucket is a sliding window of timestamps rather than
// a blocking limiter: validation is a synchronous yes/no check, never a
// wait. golang.org/x/time/rate drives the denial-of-wallet window
// rollover instead, where blocking is never needed.
package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/policy"
	"github.com/nox-hq/aegis/scanner"
)

// ProposedAction is the tool call a request wants to make.
type ProposedAction struct {
	Tool   string
	Params map[string]any
}

// Request is the Action Validator's input: the original user request
// text, the proposed action, and optionally the previous tool output (for
// exfiltration fingerprinting).
type Request struct {
	OriginalRequest    string
	ProposedAction     ProposedAction
	PreviousToolOutput string
}

// CheckResult is the Action Validator's verdict.
type CheckResult struct {
	Allowed          bool
	Reason           string
	RequiresApproval bool
	AwaitedApproval  bool
}

// ApprovalFunc is invoked when a request reaches the approval step. An
// error or nil func is treated as a block.
type ApprovalFunc func(Request) (bool, error)

// AuditFunc receives one audit event per block/approve decision. It
// never blocks validation; callers that need ordering guarantees should
// make AuditFunc itself synchronous and fast.
type AuditFunc func(event string, decision string, context map[string]any)

// DoWThresholds bounds the rolling denial-of-wallet window.
type DoWThresholds struct {
	MaxToolCalls       int
	MaxOperations      int
	MaxSandboxTriggers int
	Window             time.Duration
}

// DefaultDoWThresholds bounds a session to 100 tool calls, 500 total
// operations, and 50 sandbox triggers per rolling five-minute window.
func DefaultDoWThresholds() DoWThresholds {
	return DoWThresholds{MaxToolCalls: 100, MaxOperations: 500, MaxSandboxTriggers: 50, Window: 5 * time.Minute}
}

// Config configures a Validator instance.
type Config struct {
	Policy          policy.Policy
	DoW             DoWThresholds
	OnApproval      ApprovalFunc
	OnAudit         AuditFunc
	MCPParamScan    bool
	Scanner         *scanner.Scanner
	ScanSensitivity string
}

// Validator holds the mutable rate/DoW/exfiltration state for one
// session. It is not safe for concurrent use without external
// serialization, matching the Facade's single-session-owns-its-state
// contract.
type Validator struct {
	cfg     Config
	buckets map[string]*tokenBucket
	dow     *rollingWindow
	fprints map[string]struct{}
}

// New creates a Validator for one session.
func New(cfg Config) *Validator {
	if cfg.DoW.Window <= 0 {
		cfg.DoW = DefaultDoWThresholds()
	}
	return &Validator{
		cfg:     cfg,
		buckets: make(map[string]*tokenBucket),
		dow:     newRollingWindow(cfg.DoW.Window),
		fprints: make(map[string]struct{}),
	}
}

// tokenBucket is a per-tool sliding-window call counter: a ring of
// admission timestamps pruned to the window on each check.
type tokenBucket struct {
	window time.Duration
	max    int
	calls  []time.Time
}

func (b *tokenBucket) allow(now time.Time) bool {
	cutoff := now.Add(-b.window)
	kept := b.calls[:0]
	for _, t := range b.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.calls = kept
	return len(b.calls) < b.max
}

func (b *tokenBucket) record(now time.Time) {
	b.calls = append(b.calls, now)
}

// rollingWindow tracks the denial-of-wallet counters over one rolling
// window, resetting when the window elapses. A single-token
// rate.Limiter that refills once per window acts as the "has the window
// elapsed" probe: Limiter.AllowN takes an explicit timestamp instead of
// reading the clock, which keeps this testable without real sleeps.
type rollingWindow struct {
	toolCalls       int
	sandboxTriggers int
	resetGate       *rate.Limiter
}

func newRollingWindow(window time.Duration) *rollingWindow {
	return &rollingWindow{
		resetGate: rate.NewLimiter(rate.Every(window), 1),
	}
}

func (w *rollingWindow) maybeReset(now time.Time) {
	if w.resetGate.AllowN(now, 1) {
		w.toolCalls = 0
		w.sandboxTriggers = 0
	}
}

func (w *rollingWindow) operations() int { return w.toolCalls + w.sandboxTriggers }

// Check runs the full frozen evaluation order against req and returns the
// verdict. now is injected for deterministic testing; production callers
// pass time.Now().
func (v *Validator) Check(ctx context.Context, req Request, now time.Time) CheckResult {
	tool := req.ProposedAction.Tool

	// 1. Policy ACL.
	acl := v.cfg.Policy.EvaluateACL(tool)
	if !acl.Allowed {
		return v.deny(acl.Reason, tool, req)
	}

	// 2. Rate limit.
	if limit, ok := v.cfg.Policy.Limits[tool]; ok {
		b := v.bucketFor(tool, limit)
		if !b.allow(now) {
			return v.deny(fmt.Sprintf("rate limit exceeded for tool %q", tool), tool, req)
		}
	}

	// 3. Denial-of-wallet.
	v.dow.maybeReset(now)
	th := v.cfg.DoW
	if v.dow.toolCalls+1 > th.MaxToolCalls {
		return v.deny("denial-of-wallet: tool call budget exhausted", tool, req)
	}
	if v.dow.operations()+1 > th.MaxOperations {
		return v.deny("denial-of-wallet: operation budget exhausted", tool, req)
	}

	// 4. Parameter safety.
	if reason, bad := checkParamSafety(req.ProposedAction.Params); bad {
		return v.deny(reason, tool, req)
	}

	// 5. MCP parameter scan.
	if v.cfg.MCPParamScan && v.cfg.Scanner != nil {
		if reason, bad := v.scanParams(req.ProposedAction.Params); bad {
			return v.deny(reason, tool, req)
		}
	}

	// 6. Exfiltration guard.
	if v.cfg.Policy.DataFlow.NoExfiltration {
		if reason, bad := v.checkExfiltration(req); bad {
			return v.deny(reason, tool, req)
		}
	}

	// Approval, if the ACL step flagged it.
	if acl.RequiresApproval {
		if v.cfg.OnApproval == nil {
			return v.deny("approval required but no approval callback configured", tool, req)
		}
		approved, err := v.cfg.OnApproval(req)
		if err != nil || !approved {
			return v.deny("approval denied", tool, req)
		}
		v.admit(tool, now, req)
		v.audit("action_approved", "allowed", tool)
		return CheckResult{Allowed: true, RequiresApproval: true, AwaitedApproval: true}
	}

	v.admit(tool, now, req)
	v.audit("action_allowed", "allowed", tool)
	return CheckResult{Allowed: true}
}

func (v *Validator) bucketFor(tool string, limit policy.Limit) *tokenBucket {
	b, ok := v.buckets[tool]
	if !ok {
		b = &tokenBucket{window: policy.ParseWindow(limit.Window), max: limit.Max}
		v.buckets[tool] = b
	}
	return b
}

// admit records the call against the rate bucket, DoW counters, and read
// fingerprints now that it has been allowed; a blocked call never
// consumes budget.
func (v *Validator) admit(tool string, now time.Time, req Request) {
	if b, ok := v.buckets[tool]; ok {
		b.record(now)
	}
	v.dow.toolCalls++
	v.recordReadData(req.PreviousToolOutput)
	for _, val := range req.ProposedAction.Params {
		if s, ok := val.(string); ok {
			v.recordReadData(s)
		}
	}
}

// RecordSandboxTrigger increments the denial-of-wallet sandbox-trigger
// counter, invoked by the Auto-Retry Handler when it escalates to C13.
func (v *Validator) RecordSandboxTrigger(now time.Time) {
	v.dow.maybeReset(now)
	v.dow.sandboxTriggers++
}

func (v *Validator) deny(reason, tool string, req Request) CheckResult {
	v.audit("action_blocked", "blocked", tool, reason)
	return CheckResult{Allowed: false, Reason: reason}
}

func (v *Validator) audit(event, decision, tool string, extra ...string) {
	if v.cfg.OnAudit == nil {
		return
	}
	ctx := map[string]any{"tool": tool}
	if len(extra) > 0 {
		ctx["reason"] = extra[0]
	}
	v.cfg.OnAudit(event, decision, ctx)
}

// shellMeta are the characters rejected in command/cmd/shell-named
// parameters.
const shellMeta = ";|&`$<>"

var sqlDangerSubstrings = []string{"union select", "union all select", ";drop", "-- "}

func checkParamSafety(params map[string]any) (reason string, blocked bool) {
	for key, val := range params {
		s, ok := val.(string)
		if !ok {
			continue
		}
		lowerKey := strings.ToLower(key)
		switch lowerKey {
		case "command", "cmd", "shell":
			if strings.ContainsAny(s, shellMeta) {
				return fmt.Sprintf("parameter %q contains shell metacharacters", key), true
			}
		case "query", "sql":
			lower := strings.ToLower(s)
			for _, sig := range sqlDangerSubstrings {
				if strings.Contains(lower, sig) {
					return fmt.Sprintf("parameter %q matches a SQL-injection signature", key), true
				}
			}
		}
	}
	return "", false
}

// scanParams recursively flattens params into strings and runs the Input
// Scanner over the concatenation.
func (v *Validator) scanParams(params map[string]any) (reason string, blocked bool) {
	flat := flattenParams(params)
	if flat == "" {
		return "", false
	}
	res := v.cfg.Scanner.ScanText(flat)
	if !res.Safe {
		return "MCP parameter scan flagged unsafe content", true
	}
	return "", false
}

func flattenParams(v any) string {
	var b strings.Builder
	flattenInto(&b, v)
	return b.String()
}

func flattenInto(b *strings.Builder, v any) {
	switch val := v.(type) {
	case string:
		b.WriteString(val)
		b.WriteByte(' ')
	case map[string]any:
		for _, vv := range val {
			flattenInto(b, vv)
		}
	case []any:
		for _, vv := range val {
			flattenInto(b, vv)
		}
	}
}

// RecordReadData fingerprints every line (>=16 chars) of d and remembers
// it for the exfiltration guard. The Facade calls this whenever a
// read-like tool returns data, in addition to the automatic fingerprinting
// of PreviousToolOutput in Check/admit.
func (v *Validator) RecordReadData(d string) {
	v.recordReadData(d)
}

func (v *Validator) recordReadData(d string) {
	for _, line := range strings.Split(d, "\n") {
		if len(line) >= 16 {
			v.fprints[detect.LineFingerprint(line)] = struct{}{}
		}
	}
}

func (v *Validator) checkExfiltration(req Request) (reason string, blocked bool) {
	patterns := v.cfg.Policy.ExfiltrationToolPatterns()
	if !policy.MatchesAnyGlob(patterns, req.ProposedAction.Tool) {
		return "", false
	}
	for key, val := range req.ProposedAction.Params {
		s, ok := val.(string)
		if !ok {
			continue
		}
		if v.containsFingerprintedData(s) {
			return fmt.Sprintf("parameter %q contains previously-read data, exfiltration blocked", key), true
		}
	}
	return "", false
}

func (v *Validator) containsFingerprintedData(s string) bool {
	if len(s) >= 16 {
		if _, ok := v.fprints[detect.LineFingerprint(s)]; ok {
			return true
		}
	}
	for _, line := range strings.Split(s, "\n") {
		if len(line) >= 16 {
			if _, ok := v.fprints[detect.LineFingerprint(line)]; ok {
				return true
			}
		}
	}
	return false
}

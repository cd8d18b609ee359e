// Package policy holds the Policy data model and capability-ACL
// evaluation used by the Action Validator: capability allow/deny/approval
// globs, per-tool rate limits, and the data-flow exfiltration switch.
package policy

import (
	"strconv"
	"strings"
	"time"
)

// Limit configures a per-tool rate-limit window: at most Max calls per
// Window.
type Limit struct {
	Max    int
	Window string
}

// Limits maps a tool name to its rate-limit configuration.
type Limits map[string]Limit

// Capabilities is the policy's allow/deny/requireApproval glob lists.
type Capabilities struct {
	Allow           []string
	Deny            []string
	RequireApproval []string
}

// DataFlow controls the Action Validator's exfiltration guard.
type DataFlow struct {
	NoExfiltration           bool
	ExfiltrationToolPatterns []string
}

// DefaultExfiltrationToolPatterns is used when DataFlow.ExfiltrationToolPatterns
// is empty.
var DefaultExfiltrationToolPatterns = []string{"send_*", "email_*", "http_*", "webhook_*"}

// Input/Output/Alignment are opaque sub-policies consumed by the Input
// Scanner, Stream Monitor, and LLM-Judge respectively; the Action
// Validator does not interpret them, but they travel with the resolved
// Policy so the Facade can hand each component its slice.
type Input struct {
	Sensitivity string
}

type Output struct {
	PIIRedaction bool
	Canaries     []string
}

type Alignment struct {
	JudgeEnabled          bool
	JudgeTriggerThreshold float64
}

// Policy is the resolved, read-only configuration the Facade and its
// subcomponents act on. Policy-file parsing (JSON/YAML) lives in the
// config package; this package only models the resolved shape and
// evaluates it.
type Policy struct {
	Version      int
	Capabilities Capabilities
	Limits       Limits
	Input        Input
	Output       Output
	Alignment    Alignment
	DataFlow     DataFlow
}

// Default returns a minimally permissive Policy: no capability lists (so
// the allow-list default-deny rule does not engage), no rate limits, and
// exfiltration guarding off.
func Default() Policy {
	return Policy{Version: 1}
}

// ACLDecision is the result of evaluating one tool name against a
// Policy's capability lists.
type ACLDecision struct {
	Allowed         bool
	Reason          string
	RequiresApproval bool
}

// EvaluateACL applies the frozen evaluation order: deny, then
// requireApproval, then allow, with default-deny when the allow list is
// non-empty and nothing matched.
func (p Policy) EvaluateACL(tool string) ACLDecision {
	for _, g := range p.Capabilities.Deny {
		if globMatch(g, tool) {
			return ACLDecision{Allowed: false, Reason: "tool matches deny list entry " + quote(g)}
		}
	}
	for _, g := range p.Capabilities.RequireApproval {
		if globMatch(g, tool) {
			return ACLDecision{Allowed: true, RequiresApproval: true, Reason: "tool requires approval per entry " + quote(g)}
		}
	}
	for _, g := range p.Capabilities.Allow {
		if globMatch(g, tool) {
			return ACLDecision{Allowed: true}
		}
	}
	if len(p.Capabilities.Allow) > 0 {
		return ACLDecision{Allowed: false, Reason: "tool not present in non-empty allow list"}
	}
	return ACLDecision{Allowed: true}
}

func quote(s string) string { return "\"" + s + "\"" }

// globMatch implements the policy's glob dialect: "*" matches everything,
// "prefix_*" matches by prefix, anything else requires an exact match.
func globMatch(glob, tool string) bool {
	if glob == "*" {
		return true
	}
	if strings.HasSuffix(glob, "*") {
		return strings.HasPrefix(tool, strings.TrimSuffix(glob, "*"))
	}
	return glob == tool
}

// ParseWindow parses a "{N}{s|m|h|d}" duration like "60s" or "5m". On any
// parse failure it returns the default of 60 seconds, matching the
// Validator's tolerant-of-malformed-input contract.
func ParseWindow(s string) time.Duration {
	const fallback = 60 * time.Second
	if len(s) < 2 {
		return fallback
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return fallback
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	default:
		return fallback
	}
}

// ExfiltrationToolPatterns returns the DataFlow's configured patterns, or
// the package default when unset.
func (p Policy) ExfiltrationToolPatterns() []string {
	if len(p.DataFlow.ExfiltrationToolPatterns) > 0 {
		return p.DataFlow.ExfiltrationToolPatterns
	}
	return DefaultExfiltrationToolPatterns
}

// MatchesAnyGlob reports whether tool matches any of the given glob
// patterns under the policy's glob dialect.
func MatchesAnyGlob(patterns []string, tool string) bool {
	for _, g := range patterns {
		if globMatch(g, tool) {
			return true
		}
	}
	return false
}

// Package agentloop is the Agent-Loop Guard: it bounds a multi-step
// agentic reasoning loop by step count and cumulative risk budget, and
// narrows the available tool set as the loop advances (privilege decay),
// so a compromised later step has a shrinking blast radius.
package agentloop

import (
	"sort"

	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/quarantine"
	"github.com/nox-hq/aegis/scanner"
)

// Default step and cumulative-risk bounds for one agent loop.
const (
	DefaultMaxSteps   = 25
	DefaultRiskBudget = 3.0
)

// DecayStep is one entry in the privilege-decay schedule: at or after
// StepThreshold, the available tool count is multiplied by Fraction.
type DecayStep struct {
	StepThreshold int
	Fraction      float64
}

// DefaultDecaySchedule narrows the tool set to 75% at step 10, half at
// step 15, and a quarter at step 20.
func DefaultDecaySchedule() []DecayStep {
	return []DecayStep{
		{StepThreshold: 10, Fraction: 0.75},
		{StepThreshold: 15, Fraction: 0.5},
		{StepThreshold: 20, Fraction: 0.25},
	}
}

// Options configures one guardChainStep call.
type Options struct {
	Step           int
	MaxSteps       int
	CumulativeRisk float64
	RiskBudget     float64
	InitialTools   []string
	DecaySchedule  []DecayStep
	SessionID      string
	RequestID      string
}

// StepResult is guardChainStep's return value.
type StepResult struct {
	Safe            bool
	Reason          string
	CumulativeRisk  float64
	ScanResult      detect.ScanResult
	AvailableTools  []string
	BudgetExhausted bool
}

// AuditFunc receives one event per guardChainStep invocation.
type AuditFunc func(event string, result StepResult, opts Options)

// Guard evaluates one step of an agent's reasoning loop.
type Guard struct {
	scanner *scanner.Scanner
	onAudit AuditFunc
}

// New creates a Guard backed by the given Input Scanner.
func New(s *scanner.Scanner, onAudit AuditFunc) *Guard {
	return &Guard{scanner: s, onAudit: onAudit}
}

// GuardStep runs the frozen evaluation order: step-budget check, scan
// the model output, risk-budget check, safety check, then compute the
// decayed available tool set.
func (g *Guard) GuardStep(output string, opts Options) StepResult {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.RiskBudget <= 0 {
		opts.RiskBudget = DefaultRiskBudget
	}
	if opts.DecaySchedule == nil {
		opts.DecaySchedule = DefaultDecaySchedule()
	}

	if opts.Step > opts.MaxSteps {
		res := StepResult{
			Safe:            false,
			Reason:          "step budget exhausted",
			CumulativeRisk:  opts.CumulativeRisk,
			AvailableTools:  ApplyDecay(opts.InitialTools, opts.Step, opts.DecaySchedule),
			BudgetExhausted: true,
		}
		g.audit("chain_step_blocked", res, opts)
		return res
	}

	q := quarantine.Wrap(output, quarantine.SourceModelOutput)
	scanResult := g.scanner.Scan(q)
	newRisk := opts.CumulativeRisk + scanResult.Score

	availableTools := ApplyDecay(opts.InitialTools, opts.Step, opts.DecaySchedule)

	if newRisk >= opts.RiskBudget {
		res := StepResult{
			Safe: false, Reason: "cumulative risk budget exceeded",
			CumulativeRisk: newRisk, ScanResult: scanResult, AvailableTools: availableTools,
		}
		g.audit("chain_step_blocked", res, opts)
		return res
	}
	if !scanResult.Safe {
		res := StepResult{
			Safe: false, Reason: "step output failed safety scan",
			CumulativeRisk: newRisk, ScanResult: scanResult, AvailableTools: availableTools,
		}
		g.audit("chain_step_blocked", res, opts)
		return res
	}

	res := StepResult{
		Safe: true, CumulativeRisk: newRisk, ScanResult: scanResult, AvailableTools: availableTools,
	}
	g.audit("chain_step_allowed", res, opts)
	return res
}

func (g *Guard) audit(event string, res StepResult, opts Options) {
	if g.onAudit != nil {
		g.onAudit(event, res, opts)
	}
}

// ApplyDecay narrows tools to the fraction scheduled for the largest
// threshold at or below step, preserving prefix order/priority, flooring
// the count, and never returning zero tools for a non-empty input.
func ApplyDecay(tools []string, step int, schedule []DecayStep) []string {
	if len(tools) == 0 {
		return nil
	}
	sorted := append([]DecayStep(nil), schedule...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StepThreshold < sorted[j].StepThreshold })

	fraction := 1.0
	for _, d := range sorted {
		if step >= d.StepThreshold {
			fraction = d.Fraction
		}
	}

	count := int(float64(len(tools)) * fraction)
	if count < 1 {
		count = 1
	}
	if count > len(tools) {
		count = len(tools)
	}
	return append([]string(nil), tools[:count]...)
}

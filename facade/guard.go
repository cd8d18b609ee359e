package facade

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nox-hq/aegis/agentloop"
	"github.com/nox-hq/aegis/audit"
	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/integrity"
	"github.com/nox-hq/aegis/judge"
	"github.com/nox-hq/aegis/multimodal"
	"github.com/nox-hq/aegis/quarantine"
	"github.com/nox-hq/aegis/retry"
	"github.com/nox-hq/aegis/stream"
	"github.com/nox-hq/aegis/trajectory"
	"github.com/nox-hq/aegis/validator"
)

// scanConcurrency bounds the per-call scan fan-out for the multi-message
// strategies.
const scanConcurrency = 4

// InputResult is GuardInput's success output.
type InputResult struct {
	Safe bool
	// Messages echoes the input, minus the offending entry under the
	// reset-last recovery mode.
	Messages []Message
	// ScanResults holds one result per scanned target, in scan order.
	ScanResults []detect.ScanResult
	// Trajectory is set for the all-user and full-history strategies.
	Trajectory *trajectory.Result
	// RemovedIndex is the original index removed under reset-last, -1
	// otherwise.
	RemovedIndex int
	// Retried marks a block recovered through auto-retry escalation.
	Retried bool
}

// scanTarget pairs a message index with its scannable text.
type scanTarget struct {
	index int
	text  string
}

// GuardInput scans the conversation slice selected by the strategy
// (the configured default when strategy is empty) and applies the
// session's recovery mode on any block.
func (g *Guard) GuardInput(ctx context.Context, messages []Message, strategy ScanStrategy) (*InputResult, error) {
	if g.state.Quarantined {
		return nil, &SessionQuarantinedError{SessionID: g.state.ID}
	}
	if strategy == "" {
		strategy = g.cfg.ScanStrategy
	}

	targets := selectTargets(messages, strategy)
	results := g.scanTargets(ctx, targets)

	res := &InputResult{
		Safe:         true,
		Messages:     messages,
		ScanResults:  results,
		RemovedIndex: -1,
	}

	if strategy == ScanAllUser || strategy == ScanFullHistory {
		tr := g.scanner.AnalyzeTrajectory(toTrajectoryMessages(messages))
		res.Trajectory = &tr
		if tr.EscalationDetected {
			g.emit("trajectory_escalation", audit.DecisionFlagged, "", map[string]any{
				"keywords": tr.EscalationKeywords,
			})
		}
	}

	for i, sr := range results {
		if sr.Safe {
			continue
		}
		return g.applyRecovery(messages, targets[i], sr, res)
	}

	g.emit("input_scanned", audit.DecisionAllowed, "", map[string]any{
		"strategy": string(strategy),
		"targets":  len(targets),
	})
	return res, nil
}

// scanTargets fans the scans out with bounded concurrency, preserving
// target order in the result slice. Scans are pure CPU work; the group
// exists to overlap them on multi-message strategies, not to propagate
// errors.
func (g *Guard) scanTargets(ctx context.Context, targets []scanTarget) []detect.ScanResult {
	results := make([]detect.ScanResult, len(targets))
	if len(targets) <= 1 {
		for i, t := range targets {
			results[i] = g.scanner.ScanText(t.text)
		}
		return results
	}

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(scanConcurrency)
	for i, t := range targets {
		grp.Go(func() error {
			results[i] = g.scanner.ScanText(t.text)
			return nil
		})
	}
	grp.Wait()
	return results
}

// applyRecovery applies the configured recovery mode to the first blocking scan.
func (g *Guard) applyRecovery(messages []Message, offender scanTarget, sr detect.ScanResult, res *InputResult) (*InputResult, error) {
	blockCtx := map[string]any{
		"score":      sr.Score,
		"detections": len(sr.Detections),
		"index":      offender.index,
	}

	switch g.cfg.RecoveryMode {
	case RecoveryResetLast:
		g.emit("input_reset_last", audit.DecisionBlocked, "", blockCtx)
		kept := make([]Message, 0, len(messages)-1)
		kept = append(kept, messages[:offender.index]...)
		kept = append(kept, messages[offender.index+1:]...)
		res.Safe = false
		res.Messages = kept
		res.RemovedIndex = offender.index
		return res, nil

	case RecoveryQuarantineSession:
		g.state.Quarantined = true
		g.emit("session_quarantined", audit.DecisionBlocked, "", blockCtx)
		return nil, &SessionQuarantinedError{SessionID: g.state.ID}

	case RecoveryTerminateSession:
		g.emit("session_terminated", audit.DecisionBlocked, "", blockCtx)
		return nil, &SessionTerminatedError{SessionID: g.state.ID, ScanResult: sr}

	case RecoveryAutoRetry:
		if rr, ok := g.autoRetry(offender, sr); ok {
			if rr != nil {
				res.ScanResults = append(res.ScanResults, *rr)
			}
			res.Retried = true
			g.emit("input_retry_succeeded", audit.DecisionAllowed, "", blockCtx)
			return res, nil
		}
		g.emit("input_blocked", audit.DecisionBlocked, "", blockCtx)
		return nil, &InputBlockedError{ScanResult: sr}

	default: // RecoveryContinue
		g.emit("input_blocked", audit.DecisionBlocked, "", blockCtx)
		return nil, &InputBlockedError{ScanResult: sr}
	}
}

// autoRetry walks the escalation attempts until one succeeds or the
// handler exhausts. A sandbox escalation counts against the
// denial-of-wallet sandbox-trigger budget.
func (g *Guard) autoRetry(offender scanTarget, sr detect.ScanResult) (*detect.ScanResult, bool) {
	q := quarantine.Wrap(offender.text, quarantine.SourceUserInput)
	for attempt := 1; ; attempt++ {
		r := g.retryH.AttemptRetry(q, sr.Detections, attempt)
		if r.Exhausted {
			return nil, false
		}
		if !r.Succeeded {
			continue
		}
		if r.Escalation == retry.EscalationSandbox {
			g.check.RecordSandboxTrigger(time.Now())
		}
		return r.ScanResult, true
	}
}

// selectTargets picks the message slice a strategy scans.
func selectTargets(messages []Message, strategy ScanStrategy) []scanTarget {
	var targets []scanTarget
	switch strategy {
	case ScanAllUser:
		for i, m := range messages {
			if m.Role == "user" && m.ScanText() != "" {
				targets = append(targets, scanTarget{i, m.ScanText()})
			}
		}
	case ScanFullHistory:
		for i, m := range messages {
			if m.ScanText() != "" {
				targets = append(targets, scanTarget{i, m.ScanText()})
			}
		}
	default: // ScanLastUser
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "user" && messages[i].ScanText() != "" {
				targets = append(targets, scanTarget{i, messages[i].ScanText()})
				break
			}
		}
	}
	return targets
}

func toTrajectoryMessages(messages []Message) []trajectory.Message {
	out := make([]trajectory.Message, len(messages))
	for i, m := range messages {
		out[i] = trajectory.Message{Role: m.Role, Content: m.ScanText()}
	}
	return out
}

// CreateStreamTransform builds the live output monitor for this session:
// canaries and redaction from the policy's output section, the session's
// pattern library at its sensitivity, violations mirrored to the audit
// bus before the caller's callback runs.
func (g *Guard) CreateStreamTransform(downstream io.Writer, onViolation stream.OnViolationFunc, strategy stream.ChunkStrategy) *stream.Transform {
	monitor := stream.New(stream.Config{
		Canaries:     g.cfg.Policy.Output.Canaries,
		PIIRedaction: g.cfg.Policy.Output.PIIRedaction,
		Library:      g.library,
		Sensitivity:  g.scanCfg.Sensitivity,
	})
	return stream.NewTransform(monitor, downstream, func(v stream.Violation) {
		g.emit("stream_violation", audit.DecisionBlocked, "", map[string]any{
			"type":     string(v.Type),
			"label":    v.Label,
			"position": v.Position,
		})
		if onViolation != nil {
			onViolation(v)
		}
	}, strategy)
}

// ChainStepOptions tunes one GuardChainStep call. Zero values defer to
// the session's running step counter and the agent-loop guard's
// defaults.
type ChainStepOptions struct {
	Step          int
	MaxSteps      int
	RiskBudget    float64
	InitialTools  []string
	DecaySchedule []agentloop.DecayStep
	RequestID     string
}

// GuardChainStep evaluates one step of an agent loop against the
// session's running step counter and cumulative risk, then folds the
// outcome back into the session state.
func (g *Guard) GuardChainStep(output string, opts ChainStepOptions) agentloop.StepResult {
	step := opts.Step
	if step <= 0 {
		step = g.state.StepCount + 1
	}

	res := g.loop.GuardStep(output, agentloop.Options{
		Step:           step,
		MaxSteps:       opts.MaxSteps,
		CumulativeRisk: g.state.CumulativeRisk,
		RiskBudget:     opts.RiskBudget,
		InitialTools:   opts.InitialTools,
		DecaySchedule:  opts.DecaySchedule,
		SessionID:      g.state.ID,
		RequestID:      opts.RequestID,
	})

	g.state.StepCount = step
	g.state.CumulativeRisk = res.CumulativeRisk
	return res
}

// JudgeOutput runs the LLM-judge over a user request / model output pair.
func (g *Guard) JudgeOutput(ctx context.Context, userRequest, modelOutput string, jctx *judge.Context) (judge.Verdict, error) {
	if g.cfg.Judge == nil {
		return judge.Verdict{}, ErrJudgeNotConfigured
	}

	v := g.cfg.Judge.Evaluate(ctx, userRequest, modelOutput, jctx)

	decision := audit.DecisionAllowed
	switch v.Decision {
	case judge.DecisionRejected:
		decision = audit.DecisionBlocked
	case judge.DecisionFlagged:
		decision = audit.DecisionFlagged
	}
	g.emit("output_judged", decision, "", map[string]any{
		"decision":   string(v.Decision),
		"confidence": v.Confidence,
	})
	return v, nil
}

// ScanMedia runs the multi-modal pipeline over raw media bytes.
func (g *Guard) ScanMedia(ctx context.Context, content []byte, mediaType multimodal.MediaType) (multimodal.Result, error) {
	if g.media == nil {
		return multimodal.Result{}, ErrMultiModalNotConfigured
	}
	return g.media.ScanMedia(ctx, content, mediaType)
}

// CheckAction validates a proposed tool call against the session policy.
func (g *Guard) CheckAction(ctx context.Context, req validator.Request) validator.CheckResult {
	return g.check.Check(ctx, req, time.Now())
}

// RecordToolOutput fingerprints data returned by a read-like tool for
// the exfiltration guard.
func (g *Guard) RecordToolOutput(output string) {
	g.check.RecordReadData(output)
}

// SignConversation signs the conversation with the session secret and
// records the chain head on the session state.
func (g *Guard) SignConversation(messages []Message) (integrity.Conversation, error) {
	if g.signer == nil {
		return integrity.Conversation{}, ErrIntegrityNotConfigured
	}
	conv := g.signer.SignConversation(toIntegrityMessages(messages))
	g.state.SignedChainHead = conv.ChainHash
	return conv, nil
}

// VerifyConversation checks a previously signed conversation for
// tampering.
func (g *Guard) VerifyConversation(conv integrity.Conversation) (integrity.VerifyResult, error) {
	if g.signer == nil {
		return integrity.VerifyResult{}, ErrIntegrityNotConfigured
	}
	res := g.signer.VerifyConversation(conv)
	if !res.Valid {
		g.emit("conversation_tampered", audit.DecisionBlocked, "", map[string]any{
			"tampered_indices": res.TamperedIndices,
		})
	}
	return res, nil
}

func toIntegrityMessages(messages []Message) []integrity.Message {
	out := make([]integrity.Message, len(messages))
	for i, m := range messages {
		out[i] = integrity.Message{Role: m.Role, Content: m.ScanText()}
	}
	return out
}

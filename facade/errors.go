package facade

import (
	"errors"
	"fmt"

	"github.com/nox-hq/aegis/detect"
)

// Programmer errors: the caller asked for an operation whose collaborator
// was never configured.
var (
	ErrJudgeNotConfigured      = errors.New("facade: no LLM-judge configured")
	ErrMultiModalNotConfigured = errors.New("facade: no media extractor configured")
	ErrIntegrityNotConfigured  = errors.New("facade: no signing secret configured")
)

// InputBlockedError is raised when a scan blocks input and the recovery
// mode is continue (or auto-retry exhausted its attempts). It carries the
// full scan result so the host can inspect, log, or re-prompt.
type InputBlockedError struct {
	ScanResult detect.ScanResult
}

func (e *InputBlockedError) Error() string {
	return fmt.Sprintf("input blocked: score %.2f, %d detections", e.ScanResult.Score, len(e.ScanResult.Detections))
}

// SessionQuarantinedError is session-terminal: once raised, every further
// guardInput call on the same facade raises it again. Recovery requires a
// new facade.
type SessionQuarantinedError struct {
	SessionID string
}

func (e *SessionQuarantinedError) Error() string {
	return fmt.Sprintf("session %s is quarantined", e.SessionID)
}

// SessionTerminatedError is session-terminal and carries the scan result
// that triggered termination.
type SessionTerminatedError struct {
	SessionID  string
	ScanResult detect.ScanResult
}

func (e *SessionTerminatedError) Error() string {
	return fmt.Sprintf("session %s terminated: score %.2f", e.SessionID, e.ScanResult.Score)
}

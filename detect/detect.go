// Package detect defines the shared Detection/ScanResult data model used
// by every guard component downstream of the pattern library: a small,
// dependency-free set of types that every component reads and writes
// without owning.
package detect

// Severity is the graded risk level of a single detection.
type Severity string

// Severity constants, ordered low to critical, with weights used by the
// composite scorer in package scanner.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the numeric weight used in composite score computation.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 0.2
	case SeverityMedium:
		return 0.4
	case SeverityHigh:
		return 0.6
	case SeverityCritical:
		return 1.0
	default:
		return 0
	}
}

// Type identifies the kind of detection. It is a closed set mirrored from
// the pattern library's categories plus the synthetic types produced by
// the entropy/perplexity/script/trajectory analyzers and the judge.
type Type string

// Detection type constants.
const (
	TypeInstructionOverride Type = "instruction_override"
	TypeRoleManipulation    Type = "role_manipulation"
	TypeSkeletonKey         Type = "skeleton_key"
	TypeDelimiterEscape     Type = "delimiter_escape"
	TypeEncodingAttack      Type = "encoding_attack"
	TypeAdversarialSuffix   Type = "adversarial_suffix"
	TypePerplexityAnomaly   Type = "perplexity_anomaly"
	TypeEntropyAnomaly      Type = "entropy_anomaly"
	TypeManyShot            Type = "many_shot"
	TypeMultiLanguage       Type = "multi_language"
	TypeVirtualization      Type = "virtualization"
	TypeMarkdownInjection   Type = "markdown_injection"
	TypeIndirectInjection   Type = "indirect_injection"
	TypeToolAbuse           Type = "tool_abuse"
	TypeDataExfiltration    Type = "data_exfiltration"
	TypePrivilegeEscalation Type = "privilege_escalation"
	TypeMemoryPoisoning     Type = "memory_poisoning"
	TypeChainInjection      Type = "chain_injection"
	TypeHistoryManipulation Type = "history_manipulation"
	TypeDenialOfWallet      Type = "denial_of_wallet"
	TypeLLMJudgeRejected    Type = "llm_judge_rejected"
	TypeIntentMisalignment  Type = "intent_misalignment"
	TypeCanaryLeak          Type = "canary_leak"
	TypePIIDetected         Type = "pii_detected"
	TypeSecretDetected      Type = "secret_detected"
	TypeDelimiterInjection  Type = "delimiter_injection"
	TypeCustom              Type = "custom"
)

// Position marks where a detection's matched text begins and ends within
// the scanned text, as UTF-16 code unit offsets (matching the Language/
// Script Detector's position convention).
type Position struct {
	Start int
	End   int
}

// Detection is a single signal raised by any scanning component.
type Detection struct {
	Type        Type
	Pattern     string
	Matched     string
	Severity    Severity
	Position    Position
	Description string
}

// Language summarizes the Language/Script Detector's output for a scan.
type Language struct {
	Primary  string
	Unknown  bool
	Switches []ScriptSwitch
}

// ScriptSwitch records a transition between two non-neutral scripts.
type ScriptSwitch struct {
	Position int
	From     string
	To       string
}

// EntropyResult is the Entropy Analyzer's output.
type EntropyResult struct {
	Mean      float64
	MaxWindow float64
	Anomalous bool
}

// PerplexityResult is the Perplexity Analyzer's output.
type PerplexityResult struct {
	Perplexity          float64
	Anomalous           bool
	WindowScores        []float64
	MaxWindowPerplexity float64
}

// JudgeVerdict mirrors the LLM-Judge's evaluate() result, embedded in a
// ScanResult when a judge pass has been run against the same text.
type JudgeVerdict struct {
	Decision        string
	Confidence      float64
	Reasoning       string
	Approved        bool
	ExecutionTimeMs int64
}

// ScanResult is the Input Scanner's (and Stream/Multi-Modal/Agent-Loop
// Guard's) output for a single piece of text.
type ScanResult struct {
	Safe       bool
	Score      float64
	Detections []Detection
	Normalized string
	Language   Language
	Entropy    EntropyResult
	Perplexity *PerplexityResult
	Judge      *JudgeVerdict
}

// HasSeverityAtLeast reports whether any detection meets or exceeds the
// given severity.
func (r ScanResult) HasSeverityAtLeast(min Severity) bool {
	for _, d := range r.Detections {
		if d.Severity.Weight() >= min.Weight() {
			return true
		}
	}
	return false
}

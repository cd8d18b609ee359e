// Package scanner is the Input Scanner: it fuses the encoding normalizer,
// pattern library, entropy analyzer, perplexity analyzer, and script
// detector into a single composite ScanResult, the signal every other
// guard component (stream monitor, agent-loop guard, multi-modal scanner)
// builds on: a fixed battery of sub-detectors run over one input, their
// results merged into a composite risk score.
package scanner

import (
	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/entropy"
	"github.com/nox-hq/aegis/normalize"
	"github.com/nox-hq/aegis/patterns"
	"github.com/nox-hq/aegis/perplexity"
	"github.com/nox-hq/aegis/quarantine"
	"github.com/nox-hq/aegis/script"
	"github.com/nox-hq/aegis/trajectory"
)

// SafeThreshold is the composite score ceiling below which a ScanResult
// can be considered safe, absent any high/critical detection.
const SafeThreshold = 0.5

// Config tunes which sub-analyzers run and at what sensitivity.
type Config struct {
	Sensitivity       patterns.Sensitivity
	RunEntropy        bool
	RunPerplexity     bool
	RunScript         bool
	EntropyThreshold  float64
	PerplexityProfile []perplexity.Profile
	SafeThreshold     float64
}

// DefaultConfig returns a Config with balanced sensitivity and all
// three statistical analyzers enabled.
func DefaultConfig() Config {
	return Config{
		Sensitivity:   patterns.Balanced,
		RunEntropy:    true,
		RunPerplexity: true,
		RunScript:     true,
		SafeThreshold: SafeThreshold,
	}
}

// Scanner runs the fused scan pipeline against quarantined text.
type Scanner struct {
	cfg     Config
	library *patterns.Library
}

// New creates a Scanner with the given library (built with patterns.New,
// with any custom regexes already added) and config.
func New(library *patterns.Library, cfg Config) *Scanner {
	if cfg.SafeThreshold <= 0 {
		cfg.SafeThreshold = SafeThreshold
	}
	if cfg.Sensitivity == "" {
		cfg.Sensitivity = patterns.Balanced
	}
	return &Scanner{cfg: cfg, library: library}
}

// Scan runs the Input Scanner's fixed pipeline over a quarantined string:
// normalize, pattern match, statistical anomaly detection, then composite
// scoring.
func (s *Scanner) Scan(q quarantine.Q[string]) detect.ScanResult {
	text, _ := quarantine.Unwrap(q, "input-scanner: scanning quarantined content")
	return s.ScanText(text)
}

// ScanText runs the same pipeline directly over a raw string, for callers
// that have already crossed the trust boundary (e.g. the stream monitor
// scanning in-flight chunks, or the agent-loop guard scanning model
// output already wrapped and unwrapped upstream).
func (s *Scanner) ScanText(text string) detect.ScanResult {
	normalized := normalize.Normalize(text)

	detections := s.library.Scan(normalized, s.cfg.Sensitivity)

	var entResult detect.EntropyResult
	if s.cfg.RunEntropy {
		r := entropy.Analyze(normalized, entropy.DefaultWindow, s.cfg.EntropyThreshold)
		entResult = detect.EntropyResult{Mean: r.Mean, MaxWindow: r.MaxWindow, Anomalous: r.Anomalous}
		if r.Anomalous {
			detections = append(detections, detect.Detection{
				Type:        detect.TypeEntropyAnomaly,
				Pattern:     "entropy-window",
				Matched:     "",
				Severity:    detect.SeverityMedium,
				Description: "localized high-entropy span (possible adversarial suffix or encoded payload)",
			})
		}
	}

	var perplexResult *detect.PerplexityResult
	if s.cfg.RunPerplexity {
		r := perplexity.Analyze(normalized, s.cfg.PerplexityProfile, 0, 0, 0)
		perplexResult = &detect.PerplexityResult{
			Perplexity:          r.Perplexity,
			Anomalous:           r.Anomalous,
			WindowScores:        r.WindowScores,
			MaxWindowPerplexity: r.MaxWindowPerplexity,
		}
		if r.Anomalous {
			detections = append(detections, detect.Detection{
				Type:        detect.TypePerplexityAnomaly,
				Pattern:     "perplexity-window",
				Matched:     "",
				Severity:    detect.SeverityMedium,
				Description: "text window poorly fits known language profiles",
			})
		}
	}

	var lang detect.Language
	if s.cfg.RunScript {
		lang = script.Detect(normalized)
		if len(lang.Switches) > 1 {
			detections = append(detections, detect.Detection{
				Type:        detect.TypeMultiLanguage,
				Pattern:     "script-switch",
				Matched:     "",
				Severity:    detect.SeverityLow,
				Description: "multiple script transitions within a single message",
			})
		}
	}

	score, saturated := compositeScore(detections)
	safe := score < s.cfg.SafeThreshold && !hasHighOrCritical(detections)
	if saturated {
		safe = false
	}

	return detect.ScanResult{
		Safe:       safe,
		Score:      score,
		Detections: detections,
		Normalized: normalized,
		Language:   lang,
		Entropy:    entResult,
		Perplexity: perplexResult,
	}
}

// AnalyzeTrajectory delegates to the Trajectory Analyzer over the
// user-role subsequence of messages.
func (s *Scanner) AnalyzeTrajectory(messages []trajectory.Message) trajectory.Result {
	return trajectory.Analyze(messages)
}

// compositeScore sums severity weights with no positional decay and
// clamps to [0,1]. Any critical detection saturates the score to 1.0.
func compositeScore(detections []detect.Detection) (score float64, saturated bool) {
	var sum float64
	for _, d := range detections {
		if d.Severity == detect.SeverityCritical {
			saturated = true
		}
		sum += d.Severity.Weight()
	}
	if saturated {
		return 1.0, true
	}
	if sum > 1.0 {
		sum = 1.0
	}
	return sum, false
}

func hasHighOrCritical(detections []detect.Detection) bool {
	for _, d := range detections {
		if d.Severity == detect.SeverityHigh || d.Severity == detect.SeverityCritical {
			return true
		}
	}
	return false
}

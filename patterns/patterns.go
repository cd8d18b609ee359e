// Package patterns is the Pattern Library: a typed catalogue of regex
// families keyed by detection type, each tagged with a severity and a
// minimum sensitivity level at which it applies.
package patterns

import (
	"regexp"
	"sync"

	"github.com/nox-hq/aegis/detect"
)

// Sensitivity controls how much of the catalogue is evaluated.
type Sensitivity string

// Sensitivity levels, from most to least inclusive.
const (
	Paranoid   Sensitivity = "paranoid"
	Balanced   Sensitivity = "balanced"
	Permissive Sensitivity = "permissive"
)

// applies reports whether a pattern of the given severity runs at this
// sensitivity level: paranoid runs everything, balanced drops low
// severity, permissive runs only critical.
func (s Sensitivity) applies(sev detect.Severity) bool {
	switch s {
	case Paranoid:
		return true
	case Permissive:
		return sev == detect.SeverityCritical
	default: // Balanced, and unrecognized values fall back to balanced.
		return sev != detect.SeverityLow
	}
}

// Pattern is one entry in the catalogue: a compiled regex tagged with the
// DetectionType and Severity it represents.
type Pattern struct {
	ID          string
	Type        detect.Type
	Severity    detect.Severity
	Description string
	re          *regexp.Regexp
}

// Library is an ordered, compiled set of patterns plus any user-supplied
// custom patterns appended at construction.
type Library struct {
	mu       sync.RWMutex
	builtins []Pattern
	custom   []Pattern
}

// New returns a Library seeded with the built-in catalogue.
func New() *Library {
	return &Library{builtins: builtinPatterns()}
}

// AddCustom appends a user-supplied regex as a medium-severity custom
// pattern, always evaluated regardless of sensitivity (matching the Input
// Scanner's contract that custom patterns are appended to C6's output).
func (l *Library) AddCustom(id, description string, re *regexp.Regexp) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.custom = append(l.custom, Pattern{
		ID:          id,
		Type:        detect.TypeCustom,
		Severity:    detect.SeverityMedium,
		Description: description,
		re:          re,
	})
}

// Patterns returns a copy of the catalogue, built-ins first, for
// introspection (catalog listings, MCP tool discovery). The compiled
// regex is not exposed.
func (l *Library) Patterns() []Pattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Pattern, 0, len(l.builtins)+len(l.custom))
	out = append(out, l.builtins...)
	out = append(out, l.custom...)
	return out
}

// Scan runs every pattern applicable at the given sensitivity against
// text and returns one Detection per match. Custom patterns always run.
func (l *Library) Scan(text string, sensitivity Sensitivity) []detect.Detection {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []detect.Detection
	for _, p := range l.builtins {
		if !sensitivity.applies(p.Severity) {
			continue
		}
		out = append(out, matchAll(p, text)...)
	}
	for _, p := range l.custom {
		out = append(out, matchAll(p, text)...)
	}
	return out
}

func matchAll(p Pattern, text string) []detect.Detection {
	locs := p.re.FindAllStringIndex(text, -1)
	if locs == nil {
		return nil
	}
	out := make([]detect.Detection, 0, len(locs))
	for _, loc := range locs {
		out = append(out, detect.Detection{
			Type:        p.Type,
			Pattern:     p.ID,
			Matched:     text[loc[0]:loc[1]],
			Severity:    p.Severity,
			Position:    detect.Position{Start: loc[0], End: loc[1]},
			Description: p.Description,
		})
	}
	return out
}

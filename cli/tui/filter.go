package tui

import (
	"strings"

	"github.com/nox-hq/aegis/audit"
)

// decisionOrder defines the cycle order for the decision filter toggle.
var decisionOrder = []audit.Decision{
	audit.DecisionBlocked,
	audit.DecisionFlagged,
	audit.DecisionAllowed,
	audit.DecisionInfo,
}

// filterState tracks the active filter configuration.
type filterState struct {
	decisionIdx int    // -1 = all, 0..3 = specific decision
	search      string // free-text search query
	searching   bool   // true when search input is active
}

func newFilterState() filterState {
	return filterState{decisionIdx: -1}
}

// cycleDecision advances the decision filter to the next value.
func (f *filterState) cycleDecision() {
	f.decisionIdx++
	if f.decisionIdx >= len(decisionOrder) {
		f.decisionIdx = -1
	}
}

// activeDecision returns the current decision filter, or "all".
func (f *filterState) activeDecision() string {
	if f.decisionIdx < 0 {
		return "all"
	}
	return string(decisionOrder[f.decisionIdx])
}

// matchesEntry returns true if the entry passes all active filters.
func (f *filterState) matchesEntry(e audit.Entry) bool {
	if f.decisionIdx >= 0 {
		if e.Decision != decisionOrder[f.decisionIdx] {
			return false
		}
	}

	if f.search != "" {
		q := strings.ToLower(f.search)
		if !strings.Contains(strings.ToLower(e.Event), q) &&
			!strings.Contains(strings.ToLower(e.SessionID), q) &&
			!strings.Contains(strings.ToLower(e.RequestID), q) {
			return false
		}
	}

	return true
}

// filterEntries returns entries that pass the active filters.
func (f *filterState) filterEntries(all []audit.Entry) []audit.Entry {
	var result []audit.Entry
	for _, e := range all {
		if f.matchesEntry(e) {
			result = append(result, e)
		}
	}
	return result
}

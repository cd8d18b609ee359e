package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nox-hq/aegis/audit"
)

func sampleEntries() []audit.Entry {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []audit.Entry{
		{Timestamp: base, Event: "input_scanned", Decision: audit.DecisionAllowed, SessionID: "aaaa-1"},
		{Timestamp: base.Add(time.Second), Event: "input_blocked", Decision: audit.DecisionBlocked, SessionID: "aaaa-1",
			Context: map[string]any{"score": 0.9}},
		{Timestamp: base.Add(2 * time.Second), Event: "action_blocked", Decision: audit.DecisionBlocked, SessionID: "bbbb-2"},
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestListViewShowsEntries(t *testing.T) {
	m := New(sampleEntries())
	view := m.View()
	if !strings.Contains(view, "3 audit entries") {
		t.Fatalf("expected entry count in header, got:\n%s", view)
	}
	if !strings.Contains(view, "input_blocked") {
		t.Fatalf("expected events listed, got:\n%s", view)
	}
}

func TestDecisionFilterCycles(t *testing.T) {
	m := New(sampleEntries())
	m.Update(keyMsg("d")) // first cycle: blocked
	view := m.View()
	if !strings.Contains(view, "[blocked]") {
		t.Fatalf("expected blocked filter active, got:\n%s", view)
	}
	if strings.Contains(view, "input_scanned") {
		t.Fatalf("allowed entry should be filtered out, got:\n%s", view)
	}
	if !strings.Contains(view, "2 audit entries (of 3 total)") {
		t.Fatalf("expected filtered count, got:\n%s", view)
	}
}

func TestEnterOpensDetailView(t *testing.T) {
	m := New(sampleEntries())
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()
	if !strings.Contains(view, "input_scanned") || !strings.Contains(view, "ALLOWED") {
		t.Fatalf("expected detail view of the first entry, got:\n%s", view)
	}
}

func TestDetailShowsContext(t *testing.T) {
	m := New(sampleEntries())
	m.Update(keyMsg("j")) // move to the blocked entry
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()
	if !strings.Contains(view, "score") {
		t.Fatalf("expected context keys rendered, got:\n%s", view)
	}
}

func TestSearchFiltersEntries(t *testing.T) {
	m := New(sampleEntries())
	m.Update(keyMsg("/"))
	for _, r := range "action" {
		m.Update(keyMsg(string(r)))
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()
	if !strings.Contains(view, "action_blocked") || strings.Contains(view, "input_scanned") {
		t.Fatalf("search should narrow to matching events, got:\n%s", view)
	}
}

func TestNavigationClampsAtEnds(t *testing.T) {
	m := New(sampleEntries())
	m.Update(keyMsg("k")) // up at the top stays put
	if m.cursor != 0 {
		t.Fatalf("cursor moved above the top: %d", m.cursor)
	}
	for i := 0; i < 10; i++ {
		m.Update(keyMsg("j"))
	}
	if m.cursor != 2 {
		t.Fatalf("cursor moved past the end: %d", m.cursor)
	}
}

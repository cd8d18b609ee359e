package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// renderDetail renders the detail view for a single audit entry.
func renderDetail(m *Model) string {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return "No entry selected."
	}

	e := m.filtered[m.cursor]

	var b strings.Builder

	// Header.
	badge := decisionStyle(e.Decision).Render(strings.ToUpper(string(e.Decision)))
	b.WriteString(fmt.Sprintf(" %s · %s\n", eventStyle.Render(e.Event), badge))
	b.WriteString(headerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	// Timestamp and identifiers.
	b.WriteString(" " + subtleStyle.Render(e.Timestamp.Format(time.RFC3339)) + "\n")
	if e.SessionID != "" {
		b.WriteString(" " + contextKeyStyle.Render("session ") + sessionStyle.Render(e.SessionID) + "\n")
	}
	if e.RequestID != "" {
		b.WriteString(" " + contextKeyStyle.Render("request ") + sessionStyle.Render(e.RequestID) + "\n")
	}
	b.WriteString("\n")

	// Context map, sorted for a stable view.
	if len(e.Context) > 0 {
		b.WriteString(" " + contextKeyStyle.Render("Context") + "\n")
		ckeys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			ckeys = append(ckeys, k)
		}
		sort.Strings(ckeys)
		for _, k := range ckeys {
			b.WriteString(fmt.Sprintf("   %s: %v\n", subtleStyle.Render(k), e.Context[k]))
		}
		b.WriteString("\n")
	}

	// Position in trail.
	b.WriteString(subtleStyle.Render(fmt.Sprintf(" entry %d of %d", m.cursor+1, len(m.filtered))))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(" n/p next/prev  esc back  q quit"))
	b.WriteString("\n")

	return b.String()
}

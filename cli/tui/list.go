package tui

import (
	"fmt"
	"strings"

	"github.com/nox-hq/aegis/audit"
)

// renderList renders the audit entry list view.
func renderList(m *Model) string {
	var b strings.Builder

	// Header.
	title := titleStyle.Render(fmt.Sprintf(" Aegis — %d audit entries", len(m.filtered)))
	if len(m.entries) != len(m.filtered) {
		title += subtleStyle.Render(fmt.Sprintf(" (of %d total)", len(m.entries)))
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	// Filter status.
	filterLine := subtleStyle.Render(" Filter: ") +
		"[" + m.filter.activeDecision() + "]"
	if m.filter.search != "" {
		filterLine += subtleStyle.Render("  Search: ") + "[" + m.filter.search + "]"
	}
	b.WriteString(filterLine)
	b.WriteString("\n\n")

	// Entry list.
	if len(m.filtered) == 0 {
		b.WriteString(subtleStyle.Render("  No entries match the current filters.\n"))
	} else {
		visibleLines := m.height - 8 // Header + filter + help lines.
		if visibleLines < 1 {
			visibleLines = 1
		}
		start := m.cursor - visibleLines/2
		if start < 0 {
			start = 0
		}
		end := start + visibleLines
		if end > len(m.filtered) {
			end = len(m.filtered)
			start = end - visibleLines
			if start < 0 {
				start = 0
			}
		}

		for i := start; i < end; i++ {
			b.WriteString(renderEntryLine(m.filtered[i], i == m.cursor))
			b.WriteString("\n")
		}
	}

	// Search input.
	if m.filter.searching {
		b.WriteString("\n")
		b.WriteString(" Search: " + m.filter.search + "█")
		b.WriteString("\n")
	}

	// Help.
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(" ↑↓ navigate  enter detail  / search  d decision  q quit"))
	b.WriteString("\n")

	return b.String()
}

// renderEntryLine renders a single audit entry line in the list.
func renderEntryLine(e audit.Entry, selected bool) string {
	badge := decisionBadge(e.Decision)
	ts := subtleStyle.Render(e.Timestamp.Format("15:04:05"))
	event := eventStyle.Render(fmt.Sprintf("%-24s", e.Event))

	session := ""
	if e.SessionID != "" {
		session = sessionStyle.Render(shortID(e.SessionID))
	}

	line := fmt.Sprintf(" %s  %s  %s  %s", ts, badge, event, session)

	if selected {
		return selectedStyle.Render("▸") + line
	}
	return " " + line
}

// shortID truncates a UUID-shaped session ID to its first segment.
func shortID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

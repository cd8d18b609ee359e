// Package catalog is the central registry of built-in pattern metadata:
// every pattern-library entry joined with its severity, detection type,
// and compliance framework controls, keyed by pattern ID. The CLI's
// patterns listing and the MCP server's introspection tool both read
// from here.
package catalog

import (
	"sort"

	"github.com/nox-hq/aegis/compliance"
	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/patterns"
)

// PatternMeta is the extended metadata for one built-in pattern.
type PatternMeta struct {
	ID                   string               `json:"id"`
	Type                 string               `json:"type"`
	Severity             string               `json:"severity"`
	Description          string               `json:"description"`
	ComplianceFrameworks []compliance.Control `json:"compliance_frameworks,omitempty"`
}

// Catalog returns the complete built-in pattern metadata keyed by
// pattern ID.
func Catalog() map[string]PatternMeta {
	lib := patterns.New()
	out := make(map[string]PatternMeta)
	for _, p := range lib.Patterns() {
		out[p.ID] = PatternMeta{
			ID:                   p.ID,
			Type:                 string(p.Type),
			Severity:             string(p.Severity),
			Description:          p.Description,
			ComplianceFrameworks: compliance.ForType(p.Type),
		}
	}
	return out
}

// Sorted returns the catalogue as a slice ordered by pattern ID, for
// deterministic listings.
func Sorted() []PatternMeta {
	cat := Catalog()
	out := make([]PatternMeta, 0, len(cat))
	for _, m := range cat {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByType groups the catalogue by detection type.
func ByType() map[detect.Type][]PatternMeta {
	out := make(map[detect.Type][]PatternMeta)
	for _, m := range Sorted() {
		t := detect.Type(m.Type)
		out[t] = append(out[t], m)
	}
	return out
}

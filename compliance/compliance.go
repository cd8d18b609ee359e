// Package compliance maps detection types to published security
// taxonomies: the OWASP Top 10 for LLM Applications and MITRE ATLAS.
// This gives every detection a stable external reference for audit
// reporting and framework-filtered views.
package compliance

import (
	"strings"

	"github.com/nox-hq/aegis/detect"
)

// Framework identifies a taxonomy.
type Framework string

// Supported frameworks.
const (
	OWASPLLM   Framework = "OWASP-LLM-Top-10"
	MITREATLAS Framework = "MITRE-ATLAS"
)

// SupportedFrameworks lists every framework aegis maps to.
var SupportedFrameworks = []Framework{OWASPLLM, MITREATLAS}

// Control is a single control or technique within a framework.
type Control struct {
	Framework Framework `json:"framework"`
	ControlID string    `json:"control_id"`
	Title     string    `json:"title"`
}

// Taxonomy shorthand used by the mapping table.
var (
	llm01 = Control{OWASPLLM, "LLM01", "Prompt Injection"}
	llm02 = Control{OWASPLLM, "LLM02", "Sensitive Information Disclosure"}
	llm04 = Control{OWASPLLM, "LLM04", "Model Denial of Service"}
	llm05 = Control{OWASPLLM, "LLM05", "Improper Output Handling"}
	llm06 = Control{OWASPLLM, "LLM06", "Excessive Agency"}
	llm08 = Control{OWASPLLM, "LLM08", "Vector and Embedding Weaknesses"}

	atlasInject  = Control{MITREATLAS, "AML.T0051", "LLM Prompt Injection"}
	atlasJail    = Control{MITREATLAS, "AML.T0054", "LLM Jailbreak"}
	atlasExfil   = Control{MITREATLAS, "AML.T0057", "LLM Data Leakage"}
	atlasEvasion = Control{MITREATLAS, "AML.T0015", "Evade ML Model"}
	atlasPoison  = Control{MITREATLAS, "AML.T0070", "RAG Poisoning"}
	atlasCost    = Control{MITREATLAS, "AML.T0034", "Cost Harvesting"}
)

// mappings associates each detection type with its framework controls.
var mappings = map[detect.Type][]Control{
	detect.TypeInstructionOverride: {llm01, atlasInject},
	detect.TypeRoleManipulation:    {llm01, atlasJail},
	detect.TypeSkeletonKey:         {llm01, atlasJail},
	detect.TypeDelimiterEscape:     {llm01, atlasInject},
	detect.TypeEncodingAttack:      {llm01, atlasEvasion},
	detect.TypeAdversarialSuffix:   {llm01, atlasEvasion},
	detect.TypePerplexityAnomaly:   {llm01, atlasEvasion},
	detect.TypeEntropyAnomaly:      {llm01, atlasEvasion},
	detect.TypeManyShot:            {llm01, atlasJail},
	detect.TypeMultiLanguage:       {llm01, atlasEvasion},
	detect.TypeVirtualization:      {llm01, atlasJail},
	detect.TypeMarkdownInjection:   {llm05, atlasInject},
	detect.TypeIndirectInjection:   {llm01, atlasInject, atlasPoison},
	detect.TypeToolAbuse:           {llm06, atlasInject},
	detect.TypeDataExfiltration:    {llm02, atlasExfil},
	detect.TypePrivilegeEscalation: {llm06, atlasJail},
	detect.TypeMemoryPoisoning:     {llm08, atlasPoison},
	detect.TypeChainInjection:      {llm01, atlasInject},
	detect.TypeHistoryManipulation: {llm01, atlasInject},
	detect.TypeDenialOfWallet:      {llm04, atlasCost},
	detect.TypeLLMJudgeRejected:    {llm05},
	detect.TypeIntentMisalignment:  {llm06},
	detect.TypeCanaryLeak:          {llm02, atlasExfil},
	detect.TypePIIDetected:         {llm02, atlasExfil},
	detect.TypeSecretDetected:      {llm02, atlasExfil},
	detect.TypeDelimiterInjection:  {llm01, atlasInject},
}

// Mappings returns every detection-type-to-control association.
func Mappings() map[detect.Type][]Control {
	out := make(map[detect.Type][]Control, len(mappings))
	for k, v := range mappings {
		out[k] = append([]Control(nil), v...)
	}
	return out
}

// ForType returns the controls a detection type maps to, nil for
// unmapped types (including custom).
func ForType(t detect.Type) []Control {
	return append([]Control(nil), mappings[t]...)
}

// FilterByFramework keeps only controls of the given framework,
// case-insensitively, dropping detection types left with no controls.
func FilterByFramework(fw Framework, all map[detect.Type][]Control) map[detect.Type][]Control {
	want := strings.ToUpper(string(fw))
	out := make(map[detect.Type][]Control)
	for t, controls := range all {
		var kept []Control
		for _, c := range controls {
			if strings.ToUpper(string(c.Framework)) == want {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			out[t] = kept
		}
	}
	return out
}

// TypesForFramework returns every detection type that maps into the
// given framework.
func TypesForFramework(fw Framework) []detect.Type {
	filtered := FilterByFramework(fw, Mappings())
	types := make([]detect.Type, 0, len(filtered))
	for t := range filtered {
		types = append(types, t)
	}
	return types
}

package patterns

import (
	"regexp"

	"github.com/nox-hq/aegis/detect"
)

// builtinPatterns returns the catalogue's default regex families. The
// categories and much of the wording are adapted from a published
// prompt-injection pattern catalogue (instruction override, jailbreak
// personas, fake system markers, data exfiltration phrasing, obfuscation,
// authority manipulation, and erosion/multi-turn framing), retargeted
// onto this system's DetectionType values.
func builtinPatterns() []Pattern {
	defs := []struct {
		id      string
		typ     detect.Type
		sev     detect.Severity
		desc    string
		pattern string
	}{
		// Instruction override.
		// The noun tolerates up to two leading word characters: homoglyph
		// normalization can weld a stray letter onto it ("einstructions"
		// from a Cyrillic е glued to "instructions").
		{"IO-001", detect.TypeInstructionOverride, detect.SeverityHigh,
			"ignore/disregard previous or prior instructions",
			`(?i)(ignore|disregard|discard)\s+(all\s+)?(previous|prior|above|earlier)\s+\w{0,2}(instructions?|prompts?|rules?|directives?)`},
		{"IO-002", detect.TypeInstructionOverride, detect.SeverityHigh,
			"forget/wipe everything said so far",
			`(?i)(forget|erase|clear|wipe)\s+(everything|all)\s+(said|told|mentioned)?`},
		{"IO-003", detect.TypeInstructionOverride, detect.SeverityHigh,
			"these instructions override/supersede prior ones",
			`(?i)(new|these|my)\s+instructions?\s+(override|supersede|replace)`},
		{"IO-004", detect.TypeInstructionOverride, detect.SeverityMedium,
			"stop following/obeying the rules",
			`(?i)(stop|cease|quit)\s+(following|obeying|adhering\s+to|listening\s+to)\s+(the\s+)?(rules?|instructions?|guidelines?)`},

		// Skeleton key / jailbreak persona.
		{"JB-001", detect.TypeSkeletonKey, detect.SeverityCritical,
			"DAN / do anything now jailbreak persona",
			`(?i)\b(DAN|do anything now)\b`},
		{"JB-002", detect.TypeSkeletonKey, detect.SeverityHigh,
			"developer/debug/maintenance/admin mode claim",
			`(?i)(developer|debug|maintenance|admin)\s+mode`},
		{"JB-003", detect.TypeSkeletonKey, detect.SeverityHigh,
			"unrestricted/unfiltered/uncensored persona request",
			`(?i)(unrestricted|unfiltered|uncensored)\s+(AI|assistant|mode|version)`},
		{"JB-004", detect.TypeSkeletonKey, detect.SeverityMedium,
			"no ethical/moral/safety guidelines claim",
			`(?i)(no|without)\s+(ethical|moral|safety)\s+(guidelines?|restrictions?|limits?)`},
		{"JB-005", detect.TypeRoleManipulation, detect.SeverityMedium,
			"roleplay as an evil/malicious persona",
			`(?i)(roleplay|pretend to be|act as)\s+(an?\s+)?(evil|malicious|hacker|criminal)`},

		// Fake system/delimiter markers.
		{"SS-001", detect.TypeDelimiterEscape, detect.SeverityHigh,
			"bracketed system/admin/root/internal marker",
			`(?i)\[(SYSTEM|ADMIN|ROOT|INTERNAL)\]`},
		{"SS-002", detect.TypeDelimiterEscape, detect.SeverityHigh,
			"double-angle-bracket system marker",
			`<<\s*SYSTEM\s*>>`},
		{"SS-003", detect.TypeDelimiterEscape, detect.SeverityHigh,
			"fake system/prompt XML tag",
			`(?i)</?\s*(system|prompt)\s*>`},
		{"SS-004", detect.TypeDelimiterEscape, detect.SeverityMedium,
			"Llama-style instruction/system markers",
			`\[INST\]|<<SYS>>|<</SYS>>|\[/INST\]`},

		// Data exfiltration / disclosure.
		{"DE-001", detect.TypeDataExfiltration, detect.SeverityHigh,
			"request to reveal the system or initial prompt",
			`(?i)(reveal|show|print)\s+(the\s+)?(system|initial)\s+prompt`},
		{"DE-002", detect.TypeDataExfiltration, detect.SeverityMedium,
			"request to repeat/recite prior instructions",
			`(?i)(show|reveal|repeat|recite)\s+(your\s+)?instructions?`},
		{"DE-003", detect.TypeDataExfiltration, detect.SeverityCritical,
			"request to leak api keys/secrets/credentials",
			`(?i)leak\s+(the\s+)?(api\s*keys?|secrets?|credentials?|tokens?|passwords?|env(ironment)?\s+vars?)`},

		// Obfuscation / encoding attacks.
		{"OB-001", detect.TypeEncodingAttack, detect.SeverityMedium,
			"zero-width character smuggling",
			`[\x{200B}-\x{200D}\x{FEFF}\x{2060}]`},
		{"OB-002", detect.TypeEncodingAttack, detect.SeverityMedium,
			"Unicode tag-character smuggling",
			`[\x{E0000}-\x{E007F}]`},
		{"OB-003", detect.TypeEncodingAttack, detect.SeverityHigh,
			"base64 instruction smuggling",
			`(?i)(decode|execute|run|eval)\s+.{0,20}base64`},

		// Abuse / malicious execution requests.
		{"AM-001", detect.TypeToolAbuse, detect.SeverityCritical,
			"shell command injection via destructive commands",
			`(?i)(rm\s+-rf|curl\s*\||wget\s*\||chmod\s+|chown\s+|sudo\s+)`},
		{"AM-002", detect.TypeToolAbuse, detect.SeverityHigh,
			"arbitrary code execution request",
			`(?i)(execute|run)\s+(arbitrary|this)\s+code`},
		{"AM-003", detect.TypeDataExfiltration, detect.SeverityHigh,
			"data exfiltration via network request",
			`(?i)(send|post|upload|exfiltrate)\s+.{0,30}(to|via)\s+.{0,30}(http|webhook|url)`},

		// Privilege escalation claims.
		{"PE-001", detect.TypePrivilegeEscalation, detect.SeverityHigh,
			"claim of admin/root/superuser authority",
			`(?i)(i am|as)\s+(the\s+)?(admin|root|superuser|administrator)`},
		{"PE-002", detect.TypePrivilegeEscalation, detect.SeverityMedium,
			"emergency/urgent override claim",
			`(?i)(emergency|urgent|critical)\s+override`},

		// Multi-turn erosion framing.
		{"MT-001", detect.TypeVirtualization, detect.SeverityMedium,
			"game-setup erosion framing",
			`(?i)let'?s\s+play\s+a\s+game\s+where`},
		{"MT-002", detect.TypeVirtualization, detect.SeverityLow,
			"educational-pretext erosion framing",
			`(?i)(for|as)\s+(educational|research)\s+purposes\s+only`},
		{"MT-003", detect.TypeVirtualization, detect.SeverityMedium,
			"hypothetical-scenario erosion framing",
			`(?i)(hypothetically|in a hypothetical scenario)`},

		// Filter bypass requests.
		{"DP-001", detect.TypeInstructionOverride, detect.SeverityHigh,
			"bypass safety/security/content filter request",
			`(?i)bypass\s+(the\s+)?(safety|security|content)\s+filter`},
		{"DP-002", detect.TypeInstructionOverride, detect.SeverityHigh,
			"disable content filtering request",
			`(?i)disable\s+(the\s+)?content\s+filter(ing)?`},
		{"DP-003", detect.TypeInstructionOverride, detect.SeverityMedium,
			"switch to unfiltered/uncensored/raw mode",
			`(?i)switch\s+to\s+(unfiltered|uncensored|raw)\s+mode`},

		// Markdown/content injection.
		{"MD-001", detect.TypeMarkdownInjection, detect.SeverityHigh,
			"javascript: URL scheme",
			`(?i)javascript:`},
		{"MD-002", detect.TypeMarkdownInjection, detect.SeverityHigh,
			"script tag injection",
			`(?i)<script[\s>]`},

		// Memory / chain / history manipulation, agentic abuse.
		{"MP-001", detect.TypeMemoryPoisoning, detect.SeverityHigh,
			"instruction to remember false facts for later turns",
			`(?i)remember\s+(this\s+)?(forever|permanently|for\s+all\s+future)`},
		{"CI-001", detect.TypeChainInjection, detect.SeverityHigh,
			"tool output embeds further instructions to the model",
			`(?i)(as\s+the\s+tool\s+result|tool\s+output)[,:]?\s+you\s+(must|should)\s+now`},
		{"HM-001", detect.TypeHistoryManipulation, detect.SeverityHigh,
			"claim that earlier turns never happened",
			`(?i)(that|the)\s+(conversation|message)\s+(above|before)\s+(never\s+happened|didn'?t\s+happen)`},
	}

	out := make([]Pattern, 0, len(defs))
	for _, d := range defs {
		out = append(out, Pattern{
			ID:          d.id,
			Type:        d.typ,
			Severity:    d.sev,
			Description: d.desc,
			re:          regexp.MustCompile(d.pattern),
		})
	}
	return out
}

// Package normalize implements the Encoding Normalizer: a deterministic,
// idempotent pipeline that strips zero-width characters, maps common
// homoglyphs back to Latin, decodes HTML entities, and opportunistically
// decodes base64 blocks that look like smuggled text.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// zeroWidth strips the zero-width and BOM code points an attacker can use
// to break up a blocked phrase without changing its visual rendering.
var zeroWidth = strings.NewReplacer(
	"​", "", // zero width space
	"‌", "", // zero width non-joiner
	"‍", "", // zero width joiner
	"\uFEFF", "", // byte order mark
	"⁠", "", // word joiner
)

// homoglyphs maps look-alike Cyrillic and Greek letters back to the Latin
// letters they're commonly substituted for in obfuscated prompts.
var homoglyphs = strings.NewReplacer(
	"а", "a", "е", "e", "о", "o", "р", "p", "с", "c", "х", "x", "у", "y",
	"ο", "o", "ρ", "p", "α", "a",
)

var htmlNamedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": "\"",
	"apos": "'",
}

var htmlEntityRe = regexp.MustCompile(`&(#[0-9]+|#x[0-9a-fA-F]+|[a-zA-Z]+);`)

func decodeHTMLEntities(s string) string {
	return htmlEntityRe.ReplaceAllStringFunc(s, func(m string) string {
		body := m[1 : len(m)-1] // strip & and ;
		if strings.HasPrefix(body, "#x") || strings.HasPrefix(body, "#X") {
			n, err := strconv.ParseInt(body[2:], 16, 32)
			if err != nil {
				return m
			}
			return string(rune(n))
		}
		if strings.HasPrefix(body, "#") {
			n, err := strconv.ParseInt(body[1:], 10, 32)
			if err != nil {
				return m
			}
			return string(rune(n))
		}
		if r, ok := htmlNamedEntities[body]; ok {
			return r
		}
		return m
	})
}

// base64Candidate matches runs of base64-alphabet characters at least 24
// characters long, long enough to be worth attempting a decode but short
// enough to avoid pathological backtracking on huge inputs.
var base64Candidate = regexp.MustCompile(`[A-Za-z0-9+/]{24,}={0,2}`)

// Normalize runs the full deterministic pipeline over s and returns the
// normalized text. Normalize is idempotent: Normalize(Normalize(s)) ==
// Normalize(s).
func Normalize(s string) string {
	s = zeroWidth.Replace(s)
	s = homoglyphs.Replace(s)
	s = decodeHTMLEntities(s)
	s = norm.NFKC.String(s)
	s = decodeBase64Runs(s)
	return s
}

func decodeBase64Runs(s string) string {
	return base64Candidate.ReplaceAllStringFunc(s, func(candidate string) string {
		decoded, ok := tryDecodeBase64(candidate)
		if !ok {
			return candidate
		}
		return decoded
	})
}

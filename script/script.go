// Package script classifies text by Unicode script and tracks transitions
// between scripts, the signal the Language/Script Detector contributes to
// the Input Scanner: mixed-script text (Latin sprinkled with Cyrillic
// look-alikes, for instance) is a common prompt-injection obfuscation.
package script

import (
	"unicode"

	"github.com/nox-hq/aegis/detect"
)

// Names of the scripts this package distinguishes. Anything else Unicode
// classifies collapses to "neutral" or "unknown".
const (
	Latin      = "Latin"
	Cyrillic   = "Cyrillic"
	CJK        = "CJK"
	Arabic     = "Arabic"
	Greek      = "Greek"
	Devanagari = "Devanagari"
	Thai       = "Thai"
	Hebrew     = "Hebrew"
	Neutral    = "neutral"
)

// scriptTables maps each tracked script name to its unicode.RangeTable.
// CJK folds together Han, Hiragana, and Katakana, matching common usage.
var scriptTables = map[string]*unicode.RangeTable{
	Latin:      unicode.Latin,
	Cyrillic:   unicode.Cyrillic,
	Arabic:     unicode.Arabic,
	Greek:      unicode.Greek,
	Devanagari: unicode.Devanagari,
	Thai:       unicode.Thai,
	Hebrew:     unicode.Hebrew,
}

var cjkTables = []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana}

// classify returns the script name for a single rune, or Neutral for
// digits, punctuation, whitespace, and General Punctuation.
func classify(r rune) string {
	if unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) ||
		unicode.In(r, unicode.Sk, unicode.Sm, unicode.So, unicode.Sc) {
		return Neutral
	}
	for _, t := range cjkTables {
		if unicode.Is(t, r) {
			return CJK
		}
	}
	for name, t := range scriptTables {
		if unicode.Is(t, r) {
			return name
		}
	}
	return Neutral
}

// utf16Len returns the number of UTF-16 code units r would occupy, i.e. 1
// for runes in the BMP and 2 for supplementary-plane runes (surrogate
// pairs), matching the position convention the rest of the guard uses.
func utf16Len(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// Detect classifies every code point in text, tracks transitions between
// distinct non-neutral scripts, and reports the most frequent non-neutral
// script as primary.
func Detect(text string) detect.Language {
	counts := make(map[string]int)
	var switches []detect.ScriptSwitch

	prevScript := ""
	pos := 0
	for _, r := range text {
		s := classify(r)
		if s != Neutral {
			counts[s]++
			if prevScript != "" && prevScript != Neutral && prevScript != s {
				switches = append(switches, detect.ScriptSwitch{
					Position: pos,
					From:     prevScript,
					To:       s,
				})
			}
			prevScript = s
		} else {
			// Neutral code points (digits, punctuation, whitespace) don't
			// reset the "previous non-neutral script" tracker, so that
			// "hello, world" (Latin, comma+space, Latin) isn't counted as
			// a script switch, but "helloПривет" still is.
		}
		pos += utf16Len(r)
	}

	primary := ""
	best := 0
	for name, c := range counts {
		if c > best {
			best = c
			primary = name
		}
	}

	return detect.Language{
		Primary:  primary,
		Unknown:  primary == "",
		Switches: switches,
	}
}

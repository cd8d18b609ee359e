package stream

import "regexp"

// piiPatterns catalogues the PII shapes the Stream Monitor redacts or
// terminates on. Keys are the label embedded in "[REDACTED-{LABEL}]" and
// in Violation.Label.
var piiPatterns = map[string]*regexp.Regexp{
	"SSN":           regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"CREDIT_CARD":   regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
	"EMAIL":         regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
	"PHONE":         regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
	"IP":            regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	"PASSPORT":      regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{6,9}\b`),
	"DOB":           regexp.MustCompile(`(?i)\b(?:born|dob|date of birth)\D{0,10}(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`),
	"IBAN":          regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`),
	"ROUTING":       regexp.MustCompile(`\b(?:routing\s*(?:number|#)?\s*[:#]?\s*)\d{9}\b`),
	"MRN":           regexp.MustCompile(`(?i)\bMRN[:#]?\s*\d{6,10}\b`),
}

// excludedIPs never trigger IP PII detection: loopback and the unspecified
// address are not meaningfully identifying.
var excludedIPs = map[string]bool{
	"0.0.0.0":   true,
	"127.0.0.1": true,
}

func isExcludedIP(s string) bool {
	return excludedIPs[s]
}

// luhnValid reports whether a digit string (possibly interspersed with
// spaces or dashes, as credit-card numbers commonly are) passes the Luhn
// checksum.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
			continue
		default:
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

package normalize

import "encoding/base64"

// tryDecodeBase64 attempts to decode candidate as base64, accepting the
// result only when at least 80% of the decoded bytes are printable
// ASCII, the threshold separating "real" text worth rescanning from
// incidental base64-shaped binary data.
func tryDecodeBase64(candidate string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		decoded, err := enc.DecodeString(trimPadding(candidate, enc))
		if err != nil || len(decoded) == 0 {
			continue
		}
		if isPrintable(decoded) {
			return string(decoded), true
		}
	}
	return "", false
}

func trimPadding(s string, enc *base64.Encoding) string {
	if enc == base64.RawStdEncoding {
		for len(s) > 0 && s[len(s)-1] == '=' {
			s = s[:len(s)-1]
		}
	}
	return s
}

// isPrintable reports whether at least 80% of data's bytes are printable
// ASCII (0x20-0x7E) or common whitespace.
func isPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	printable := 0
	for _, b := range data {
		if (b >= 0x20 && b <= 0x7E) || b == '\n' || b == '\t' || b == '\r' {
			printable++
		}
	}
	return float64(printable)/float64(len(data)) > 0.8
}

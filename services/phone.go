package services

import (
	"strings"
	"unicode"
)

// NormalizePhone strips non-digits and formats 10 or 11 digit Brazilian numbers
// as "(DD) NNNN-NNNN" or "(DD) NNNNN-NNNN". ok is false for any other length.
func NormalizePhone(text string) (string, bool) {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
		}
	}
	d := b.String()
	switch len(d) {
	case 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:], true
	case 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:], true
	default:
		return "", false
	}
}

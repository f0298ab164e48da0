// Package digits folds localized decimal digits to ASCII.
package digits

import "strings"

// zeros lists the code point of the zero digit for each supported decimal
// alphabet. Each alphabet occupies ten consecutive code points.
var zeros = []rune{
	0x0660, // Arabic-Indic
	0x06F0, // Extended Arabic-Indic (Persian, Urdu)
	0x07C0, // NKo
	0x0966, // Devanagari
	0x09E6, // Bengali
	0x0DE6, // Sinhala Lith
	0x0E50, // Thai
	0xFF10, // Fullwidth
}

// ASCII returns the ASCII digit for r and true when r is a digit of one of
// the supported alphabets.
func ASCII(r rune) (rune, bool) {
	for _, z := range zeros {
		if r >= z && r <= z+9 {
			return '0' + (r - z), true
		}
	}
	return r, false
}

// Normalize replaces every localized digit in s with its ASCII equivalent.
// All other characters are returned unchanged.
func Normalize(s string) string {
	if isASCII(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		d, _ := ASCII(r)
		return d
	}, s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

package domain

import (
	"strings"
	"unicode"
)

const (
	maskPrefix    = "**** **** **** "
	maskedBlank   = "**** **** **** ****"
	visibleDigits = 4
)

// MaskPAN hides all but the last four characters of a card number,
// e.g. "4111 1111 1111 1234" -> "**** **** **** 1234".
func MaskPAN(pan string) string {
	if strings.TrimSpace(pan) == "" {
		return maskedBlank
	}
	compact := StripSpaces(pan)
	if len(compact) <= visibleDigits {
		return maskPrefix + compact
	}
	return maskPrefix + compact[len(compact)-visibleDigits:]
}

// StripSpaces removes every whitespace character from s.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

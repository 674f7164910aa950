// Package phone normalizes recipient phone numbers.
//
// The rules default to South Korea: a bare domestic number is assumed to be
// Korean and gets country code 82. This is a deployment policy, not a general
// E.164 normalizer; numbers that already carry another country code pass
// through untouched as long as they are not 10 or 11 digits long.
package phone

import "strings"

const (
	// CountryCode is prepended to domestic numbers.
	CountryCode = "82"
	// MobilePrefix is the domestic mobile trunk prefix.
	MobilePrefix = "010"

	minDigits = 10
	maxDigits = 15
)

// Normalize strips every non-digit character and rewrites domestic numbers
// into international form. Stripping happens before any prefix check, so
// "+82 10-1234-5678" becomes "821012345678" and "010-1234-5678" becomes
// "821012345678".
func Normalize(raw string) string {
	digits := digitsOnly(raw)

	switch {
	case strings.HasPrefix(digits, MobilePrefix):
		return CountryCode + digits[1:]
	case strings.HasPrefix(digits, CountryCode):
		return digits
	case len(digits) == 10 || len(digits) == 11:
		return CountryCode + strings.TrimLeft(digits, "0")
	default:
		return digits
	}
}

// Validate reports whether raw normalizes to a plausible international
// number of 10 to 15 digits.
func Validate(raw string) bool {
	n := len(Normalize(raw))
	return n >= minDigits && n <= maxDigits
}

// E164 returns the normalized number with a leading plus sign.
func E164(raw string) string {
	return "+" + Normalize(raw)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

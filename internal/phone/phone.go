// Package phone canonicalizes free-form phone numbers so that identity
// matching and deduplication always compare the same representation.
package phone

import "strings"

// Normalize strips all non-digit characters and applies RU canonicalization:
// a bare 10-digit number gets the country code prepended, an 11-digit number
// starting with 8 has it replaced by 7. Returns "" when the input does not
// look like a phone number (fewer than 10 digits).
func Normalize(raw string) string {
	digits := stripNonDigits(raw)

	switch {
	case len(digits) < 10:
		return ""
	case len(digits) == 10:
		return "7" + digits
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	default:
		return digits
	}
}

// Variants returns the lookup forms tried against the upstream provider, most
// likely first. The canonical form must come from Normalize.
func Variants(canonical string) []string {
	if canonical == "" {
		return nil
	}

	variants := []string{canonical}
	if len(canonical) == 11 && canonical[0] == '7' {
		variants = append(variants,
			"8"+canonical[1:],
			"+"+canonical,
			canonical[1:],
		)
	}
	return variants
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package schema

import "strings"

// DeriveKey turns a label into a machine key: lower-case, every run of
// characters outside [a-z0-9] replaced by a single underscore, leading and
// trailing underscores trimmed. "Date of Birth" becomes "date_of_birth".
// Returns "" when the label has no letters or digits.
func DeriveKey(label string) string {
	var b strings.Builder
	pending := false
	for _, c := range strings.ToLower(label) {
		if (c >= 'a' && c <= 'z') || isDigit(c) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(c)
			continue
		}
		pending = true
	}
	return b.String()
}

// ValidKey reports whether key is a non-empty run of [a-z0-9_].
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, c := range key {
		if !(c >= 'a' && c <= 'z') && !isDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

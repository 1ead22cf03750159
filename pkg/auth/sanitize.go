package auth

import (
	"html"
	"strings"
	"unicode"

	"github.com/tendant/blog-auth/pkg/domain"
)

const maxUsernameBaseLen = 20

// SanitizeInput escapes HTML and removes control characters.
func SanitizeInput(input string) string {
	return html.EscapeString(removeControlChars(input))
}

// SanitizeName trims a name field and strips control characters and markup.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = removeControlChars(name)
	return html.EscapeString(name)
}

// ValidateStringLength validates that a string is within the specified length constraints.
func ValidateStringLength(field, value string, min, max int) error {
	length := len([]rune(value))

	if min > 0 && length < min {
		if min == 1 {
			return domain.NewValidationError("%s is required", field)
		}
		return domain.NewValidationError("%s must be at least %d characters long", field, min)
	}

	if max > 0 && length > max {
		return domain.NewValidationError("%s must be at most %d characters long", field, max)
	}

	return nil
}

// UsernameBase derives the deterministic username stem from name parts:
// lowercase ASCII letters and digits only, capped in length, "user" if empty.
func UsernameBase(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		for _, r := range strings.ToLower(p) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
	}
	base := b.String()
	if base == "" {
		base = "user"
	}
	if len(base) > maxUsernameBaseLen {
		base = base[:maxUsernameBaseLen]
	}
	return base
}

// removeControlChars removes control characters except newline and tab.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

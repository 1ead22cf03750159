package auth

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/blog-auth/pkg/domain"
)

// Common disposable email domains to block (can be extended)
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
}

// Email validation regex (stricter than RFC 5322 for practical use)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
// Failures are returned as *domain.ValidationError.
func ValidateEmail(email string, strict bool, blockDisposable bool) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewValidationError("email address is required")
	}

	if len(email) > maxEmailLength {
		return domain.NewValidationError("email address is too long (max %d characters)", maxEmailLength)
	}

	normalized := NormalizeEmail(email)

	// Display names such as "Jane <jane@example.com>" are not accepted.
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return domain.NewValidationError("invalid email address format")
	}

	if strict && !emailRegex.MatchString(addr.Address) {
		return domain.NewValidationError("invalid email address format")
	}

	if blockDisposable && disposableDomains[getDomain(addr.Address)] {
		return domain.NewValidationError("disposable email addresses are not allowed")
	}

	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailLocalPart returns the part of an address before the @.
func emailLocalPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// getDomain extracts the domain from an email address.
func getDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

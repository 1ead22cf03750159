package auth

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/tendant/blog-auth/internal/config"
	"github.com/tendant/blog-auth/pkg/domain"
)

// Strength scores range from 0 (trivially guessable) to 4 (very strong).
const (
	MaxStrengthScore      = 4
	DefaultMinScore       = 3
	DefaultMinPasswordLen = 8
)

// commonPasswords are rejected outright, and so is any password that reduces to
// one of them once trailing digits and symbols are stripped.
var commonPasswords = toSet(
	"password", "passw0rd", "qwerty", "qwertyuiop", "letmein", "welcome",
	"admin", "iloveyou", "monkey", "dragon", "football", "baseball",
	"sunshine", "princess", "abc123", "123456", "12345678", "123456789",
	"1234567890", "111111", "trustno1", "superman", "master", "shadow",
	"login", "starwars", "whatever", "blog",
)

var keyboardRuns = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"0123456789",
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
}

// PasswordPolicy defines password strength and complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	MinScore         int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		MinScore:         cfg.MinScore,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// DefaultPasswordPolicy returns the policy used when nothing is configured.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{MinLength: DefaultMinPasswordLen, MinScore: DefaultMinScore}
}

// ValidatePassword checks a password against the policy. userInputs are values
// the password should not be built from, such as the user's name or email.
// Failures are returned as *domain.ValidationError; weak passwords carry feedback.
func (p *PasswordPolicy) ValidatePassword(password string, userInputs ...string) error {
	if password == "" {
		return domain.NewValidationError("password is required")
	}
	if p.MinLength > 0 && len([]rune(password)) < p.MinLength {
		return domain.NewValidationError("password must be at least %d characters long", p.MinLength)
	}
	if len(password) > maxPasswordBytes {
		return domain.NewValidationError("password must be at most %d bytes long", maxPasswordBytes)
	}
	if p.RequireUppercase && !containsUppercase(password) {
		return domain.NewValidationError("password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !containsLowercase(password) {
		return domain.NewValidationError("password must contain at least one lowercase letter")
	}
	if p.RequireNumber && !containsNumber(password) {
		return domain.NewValidationError("password must contain at least one number")
	}
	if p.RequireSpecial && !containsSpecial(password) {
		return domain.NewValidationError("password must contain at least one special character")
	}

	feedback := p.Evaluate(password, userInputs...)
	if feedback.Score < p.MinScore {
		return &domain.ValidationError{
			Message:  "password is too weak",
			Feedback: &feedback,
		}
	}
	return nil
}

// Evaluate scores a password from 0 to 4 and explains the score.
func (p *PasswordPolicy) Evaluate(password string, userInputs ...string) domain.PasswordFeedback {
	lower := strings.ToLower(password)

	if isCommonPassword(lower) {
		return domain.PasswordFeedback{
			Score:   0,
			Warning: "This is a very common password.",
			Suggestions: []string{
				"Avoid common words and predictable number suffixes.",
				"Use a few unrelated words together.",
			},
		}
	}

	score := entropyScore(password)
	var fb domain.PasswordFeedback

	if hasRepeats(lower, 3) {
		score--
		fb.Warning = "Repeated characters are easy to guess."
		fb.Suggestions = append(fb.Suggestions, "Avoid repeated characters like \"aaa\".")
	}
	if hasSequence(lower, 4) {
		score--
		if fb.Warning == "" {
			fb.Warning = "Sequences like \"abcd\" or \"1234\" are easy to guess."
		}
		fb.Suggestions = append(fb.Suggestions, "Avoid keyboard patterns and sequences.")
	}
	if containsPersonal(lower, userInputs) {
		score--
		if fb.Warning == "" {
			fb.Warning = "Passwords containing your name or email are easy to guess."
		}
		fb.Suggestions = append(fb.Suggestions, "Do not include your name or email address.")
	}

	if score < 0 {
		score = 0
	}
	if score > MaxStrengthScore {
		score = MaxStrengthScore
	}
	fb.Score = score

	if score < DefaultMinScore && len(fb.Suggestions) == 0 {
		fb.Warning = "This password is too easy to guess."
		fb.Suggestions = []string{
			"Use a longer password.",
			"Mix upper and lower case letters, numbers and symbols.",
		}
	}
	return fb
}

// GetRequirements returns a human-readable description of the policy.
func (p *PasswordPolicy) GetRequirements() string {
	var requirements []string

	if p.MinLength > 0 {
		requirements = append(requirements, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUppercase {
		requirements = append(requirements, "one uppercase letter")
	}
	if p.RequireLowercase {
		requirements = append(requirements, "one lowercase letter")
	}
	if p.RequireNumber {
		requirements = append(requirements, "one number")
	}
	if p.RequireSpecial {
		requirements = append(requirements, "one special character")
	}
	if len(requirements) == 0 {
		return "Password must be hard to guess"
	}
	return "Password must contain " + strings.Join(requirements, ", ")
}

// entropyScore maps the brute-force search space of the password to 0..4.
func entropyScore(password string) int {
	pool := 0
	if containsLowercase(password) {
		pool += 26
	}
	if containsUppercase(password) {
		pool += 26
	}
	if containsNumber(password) {
		pool += 10
	}
	if containsSpecial(password) {
		pool += 33
	}
	if pool == 0 {
		return 0
	}
	bits := float64(len([]rune(password))) * math.Log2(float64(pool))
	switch {
	case bits < 28:
		return 0
	case bits < 40:
		return 1
	case bits < 60:
		return 2
	case bits < 80:
		return 3
	default:
		return 4
	}
}

func isCommonPassword(lower string) bool {
	if commonPasswords[lower] {
		return true
	}
	base := strings.TrimRightFunc(lower, func(r rune) bool {
		return unicode.IsDigit(r) || (!unicode.IsLetter(r) && !unicode.IsSpace(r))
	})
	base = strings.TrimLeftFunc(base, unicode.IsDigit)
	return base != "" && commonPasswords[base]
}

// hasRepeats reports whether any character occurs n or more times in a row.
func hasRepeats(s string, n int) bool {
	run := 1
	rs := []rune(s)
	for i := 1; i < len(rs); i++ {
		if rs[i] == rs[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// hasSequence reports whether s contains n characters in alphabet, digit or
// keyboard order, forwards or backwards.
func hasSequence(s string, n int) bool {
	if len(s) < n {
		return false
	}
	for i := 0; i+n <= len(s); i++ {
		window := s[i : i+n]
		rev := reverse(window)
		for _, run := range keyboardRuns {
			if strings.Contains(run, window) || strings.Contains(run, rev) {
				return true
			}
		}
	}
	return false
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func containsPersonal(lower string, userInputs []string) bool {
	for _, in := range userInputs {
		for _, part := range personalTokens(in) {
			if len(part) >= 3 && strings.Contains(lower, part) {
				return true
			}
		}
	}
	return false
}

// personalTokens splits a name or email into lowercase words.
func personalTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsUppercase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func containsLowercase(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

func containsNumber(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// containsSpecial checks if string contains at least one special character.
func containsSpecial(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

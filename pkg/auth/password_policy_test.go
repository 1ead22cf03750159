package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/tendant/blog-auth/pkg/domain"

	"github.com/tendant/blog-auth/internal/config"
)

func TestPasswordPolicy_ValidatePassword(t *testing.T) {
	all := PasswordPolicy{
		MinLength:        12,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}

	tests := []struct {
		name     string
		policy   PasswordPolicy
		password string
		wantMsg  string // empty means accepted
	}{
		{"empty", PasswordPolicy{}, "", "password is required"},
		{"no requirements", PasswordPolicy{}, "a", ""},
		{"min length met", PasswordPolicy{MinLength: 8}, "12345678", ""},
		{"min length short", PasswordPolicy{MinLength: 8}, "1234567", "password must be at least 8 characters long"},
		{"min length counts runes", PasswordPolicy{MinLength: 4}, "ééé", "password must be at least 4 characters long"},
		{"uppercase present", PasswordPolicy{RequireUppercase: true}, "Drafts", ""},
		{"uppercase missing", PasswordPolicy{RequireUppercase: true}, "drafts", "password must contain at least one uppercase letter"},
		{"lowercase present", PasswordPolicy{RequireLowercase: true}, "Drafts", ""},
		{"lowercase missing", PasswordPolicy{RequireLowercase: true}, "DRAFTS", "password must contain at least one lowercase letter"},
		{"number present", PasswordPolicy{RequireNumber: true}, "Drafts42", ""},
		{"number missing", PasswordPolicy{RequireNumber: true}, "Drafts", "password must contain at least one number"},
		{"special present", PasswordPolicy{RequireSpecial: true}, "Drafts!", ""},
		{"special missing", PasswordPolicy{RequireSpecial: true}, "Drafts42", "password must contain at least one special character"},
		{"all met", all, "InkAndQuill42!", ""},
		{"all but special", all, "InkAndQuill42", "password must contain at least one special character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.ValidatePassword(tt.password)
			if tt.wantMsg == "" {
				if err != nil {
					t.Errorf("ValidatePassword(%q) = %v, want nil", tt.password, err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidatePassword(%q) = %v, want *domain.ValidationError", tt.password, err)
			}
			if verr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", verr.Message, tt.wantMsg)
			}
		})
	}
}

func TestNewPasswordPolicy(t *testing.T) {
	got := NewPasswordPolicy(config.PasswordPolicyConfig{
		MinLength:        12,
		MinScore:         2,
		RequireUppercase: true,
		RequireNumber:    true,
	})

	want := PasswordPolicy{MinLength: 12, MinScore: 2, RequireUppercase: true, RequireNumber: true}
	if *got != want {
		t.Errorf("NewPasswordPolicy() = %+v, want %+v", *got, want)
	}
}

func TestPasswordPolicy_GetRequirements(t *testing.T) {
	tests := []struct {
		name   string
		policy PasswordPolicy
		want   string
	}{
		{
			name:   "no requirements",
			policy: PasswordPolicy{},
			want:   "Password must be hard to guess",
		},
		{
			name:   "min length only",
			policy: PasswordPolicy{MinLength: 8},
			want:   "Password must contain at least 8 characters",
		},
		{
			name: "all requirements",
			policy: PasswordPolicy{
				MinLength:        12,
				RequireUppercase: true,
				RequireLowercase: true,
				RequireNumber:    true,
				RequireSpecial:   true,
			},
			want: "Password must contain at least 12 characters, one uppercase letter, one lowercase letter, one number, one special character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.GetRequirements()
			if got != tt.want {
				t.Errorf("GetRequirements() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordPolicy_Evaluate(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name        string
		password    string
		inputs      []string
		wantScore   int
		wantWarning string
	}{
		{
			name:        "common password",
			password:    "password",
			wantScore:   0,
			wantWarning: "This is a very common password.",
		},
		{
			name:        "common password with suffix",
			password:    "Password1!",
			wantScore:   0,
			wantWarning: "This is a very common password.",
		},
		{
			name:        "too short",
			password:    "Ab1!",
			wantScore:   0,
			wantWarning: "This password is too easy to guess.",
		},
		{
			name:        "repeated characters",
			password:    "aaaaaaaaaaaa",
			wantScore:   1,
			wantWarning: "Repeated characters are easy to guess.",
		},
		{
			name:        "sequence",
			password:    "abcd1234XYZ!",
			wantScore:   2,
			wantWarning: "Sequences like \"abcd\" or \"1234\" are easy to guess.",
		},
		{
			name:        "contains first name",
			password:    "Jane-Velvet-77",
			inputs:      []string{"Jane", "Doe", "jane.doe"},
			wantScore:   3,
			wantWarning: "Passwords containing your name or email are easy to guess.",
		},
		{
			name:      "long passphrase",
			password:  "correcthorsebatterystaple",
			wantScore: 4,
		},
		{
			name:      "mixed classes",
			password:  "Velvet-Otter-42-Quill",
			inputs:    []string{"Jane", "Doe", "jane.doe"},
			wantScore: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := policy.Evaluate(tt.password, tt.inputs...)
			if fb.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", fb.Score, tt.wantScore)
			}
			if fb.Warning != tt.wantWarning {
				t.Errorf("Warning = %q, want %q", fb.Warning, tt.wantWarning)
			}
			if fb.Score < DefaultMinScore && len(fb.Suggestions) == 0 {
				t.Error("weak password without suggestions")
			}
		})
	}
}

func TestPasswordPolicy_RejectsWeakWithFeedback(t *testing.T) {
	policy := DefaultPasswordPolicy()

	err := policy.ValidatePassword("password123", "Jane", "Doe")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *domain.ValidationError", err)
	}
	if verr.Message != "password is too weak" {
		t.Errorf("Message = %q", verr.Message)
	}
	if verr.Feedback == nil || verr.Feedback.Score != 0 {
		t.Errorf("Feedback = %+v, want score 0", verr.Feedback)
	}

	if err := policy.ValidatePassword("Velvet-Otter-42-Quill", "Jane", "Doe"); err != nil {
		t.Errorf("strong password rejected: %v", err)
	}
}

func TestPasswordPolicy_TooLongForBcrypt(t *testing.T) {
	policy := DefaultPasswordPolicy()

	err := policy.ValidatePassword(strings.Repeat("Ab1!", 19))
	if err == nil || !strings.Contains(err.Error(), "at most 72 bytes") {
		t.Errorf("error = %v, want byte limit error", err)
	}
}

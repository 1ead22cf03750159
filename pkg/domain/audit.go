package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType names an authentication event.
type AuditEventType string

const (
	AuditSignup             AuditEventType = "signup"
	AuditSignin             AuditEventType = "signin"
	AuditGoogleSignin       AuditEventType = "google_signin"
	AuditAccountLocked      AuditEventType = "account_locked"
	AuditForgotPassword     AuditEventType = "forgot_password"
	AuditResetPassword      AuditEventType = "reset_password"
	AuditVerifyEmail        AuditEventType = "verify_email"
	AuditResendVerification AuditEventType = "resend_verification"
	AuditRefreshToken       AuditEventType = "refresh_token"
	AuditSignout            AuditEventType = "signout"
	AuditPasswordOTP        AuditEventType = "password_otp_requested"
	AuditPasswordUpdate     AuditEventType = "password_updated"
)

// AuditEvent is an immutable record of an authentication event.
type AuditEvent struct {
	ID        uuid.UUID         `json:"id"`
	Type      AuditEventType    `json:"type"`
	UserID    *uuid.UUID        `json:"userId,omitempty"`
	Success   bool              `json:"success"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

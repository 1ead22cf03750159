package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

type sentMail struct {
	to  string
	msg string
}

func newTestService(t *testing.T, sendErr error) (*EmailService, *[]sentMail) {
	t.Helper()
	svc := NewEmailService(EmailConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "noreply@example.com",
		FromName:   "Blog",
		AppBaseURL: "https://blog.example.com/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var sent []sentMail
	svc.send = func(ctx context.Context, to string, msg []byte) error {
		sent = append(sent, sentMail{to: to, msg: string(msg)})
		return sendErr
	}
	return svc, &sent
}

func TestEmailService_Send(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "jane@example.com", FirstName: "Jane", Username: "janedoe"}

	tests := []struct {
		name        string
		kind        domain.NotificationKind
		token       string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "verification link",
			kind:        domain.NotificationVerifyEmail,
			token:       "abc123",
			wantSubject: "Subject: Verify Your Email Address",
			wantBody:    "https://blog.example.com/verify-email/abc123",
		},
		{
			name:        "reset link",
			kind:        domain.NotificationPasswordReset,
			token:       "def456",
			wantSubject: "Subject: Reset Your Password",
			wantBody:    "https://blog.example.com/reset-password/def456",
		},
		{
			name:        "password change code",
			kind:        domain.NotificationPasswordOTP,
			token:       "042917",
			wantSubject: "Subject: Your Password Change Code",
			wantBody:    "<strong>042917</strong>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, sent := newTestService(t, nil)

			if err := svc.Send(context.Background(), user, tt.token, tt.kind); err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if len(*sent) != 1 {
				t.Fatalf("sent %d emails, want 1", len(*sent))
			}
			got := (*sent)[0]
			if got.to != user.Email {
				t.Errorf("to = %q, want %q", got.to, user.Email)
			}
			for _, want := range []string{tt.wantSubject, tt.wantBody, "From: Blog <noreply@example.com>", "Hi Jane"} {
				if !strings.Contains(got.msg, want) {
					t.Errorf("message missing %q", want)
				}
			}
		})
	}
}

func TestEmailService_SendErrors(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "jane@example.com"}

	svc, _ := newTestService(t, errors.New("connection refused"))
	if err := svc.Send(context.Background(), user, "t", domain.NotificationVerifyEmail); err == nil {
		t.Error("Send() expected delivery error, got nil")
	}

	svc, sent := newTestService(t, nil)
	if err := svc.Send(context.Background(), user, "t", domain.NotificationKind("newsletter")); err == nil {
		t.Error("Send() expected error for unknown kind, got nil")
	}
	if len(*sent) != 0 {
		t.Error("unknown kind should not send")
	}
}

func TestEmailService_DisabledLogsOnly(t *testing.T) {
	svc := NewEmailService(EmailConfig{AppBaseURL: "http://localhost:5173"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	called := false
	svc.send = func(context.Context, string, []byte) error {
		called = true
		return nil
	}

	user := &domain.User{ID: uuid.New(), Email: "jane@example.com"}
	if err := svc.Send(context.Background(), user, "t", domain.NotificationVerifyEmail); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if called || svc.Enabled() {
		t.Error("disabled service should not send")
	}
}

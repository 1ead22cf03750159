package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/blog-auth/pkg/domain"
)

type EmailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	FromName   string
	AppBaseURL string
	Timeout    time.Duration
}

// EmailService delivers verification links, reset links and password change
// codes over SMTP. With no host configured it logs instead of sending.
type EmailService struct {
	config EmailConfig
	logger *slog.Logger
	send   func(ctx context.Context, to string, msg []byte) error
}

func NewEmailService(config EmailConfig, logger *slog.Logger) *EmailService {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	config.AppBaseURL = strings.TrimRight(config.AppBaseURL, "/")
	s := &EmailService{config: config, logger: logger}
	s.send = s.sendSMTP
	return s
}

// Enabled reports whether an SMTP host is configured.
func (s *EmailService) Enabled() bool {
	return s.config.Host != ""
}

// Send renders the message for kind and delivers it to the user.
func (s *EmailService) Send(ctx context.Context, user *domain.User, token string, kind domain.NotificationKind) error {
	subject, body, err := s.render(user, token, kind)
	if err != nil {
		return err
	}

	if !s.Enabled() {
		s.logger.Warn("smtp not configured, email not sent", "kind", kind, "user_id", user.ID)
		return nil
	}

	return s.send(ctx, user.Email, s.message(user.Email, subject, body))
}

func (s *EmailService) render(user *domain.User, token string, kind domain.NotificationKind) (subject, body string, err error) {
	name := user.FirstName
	if name == "" {
		name = user.Username
	}

	switch kind {
	case domain.NotificationVerifyEmail:
		verifyURL := s.config.AppBaseURL + "/verify-email/" + token
		return "Verify Your Email Address", fmt.Sprintf(`<html><body>
		<h2>Verify Your Email Address</h2>
		<p>Hi %s, thank you for registering! Please verify your email address to complete your registration.</p>
		<p><a href="%s">Click here to verify your email</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire in 24 hours.</p>
	</body></html>`, name, verifyURL, verifyURL), nil

	case domain.NotificationPasswordReset:
		resetURL := s.config.AppBaseURL + "/reset-password/" + token
		return "Reset Your Password", fmt.Sprintf(`<html><body>
		<h2>Reset Your Password</h2>
		<p>Hi %s, a password reset has been requested for your account.</p>
		<p><a href="%s">Click here to reset your password</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire in 15 minutes.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, name, resetURL, resetURL), nil

	case domain.NotificationPasswordOTP:
		return "Your Password Change Code", fmt.Sprintf(`<html><body>
		<h2>Confirm Your Password Change</h2>
		<p>Hi %s, use this code to change your password:</p>
		<p style="font-size: 24px; letter-spacing: 4px;"><strong>%s</strong></p>
		<p>This code will expire in 15 minutes.</p>
		<p>If you did not try to change your password, someone may know your current password. Please change it.</p>
	</body></html>`, name, token), nil
	}

	return "", "", fmt.Errorf("unknown notification kind %q", kind)
}

func (s *EmailService) message(to, subject, body string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)
	return []byte(msg)
}

// sendSMTP is smtp.SendMail with a context-bound connection.
func (s *EmailService) sendSMTP(ctx context.Context, to string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.config.User != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(s.config.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// OTPStore is an in-memory auth.OTPStore.
type OTPStore struct {
	mu   sync.Mutex
	otps map[uuid.UUID]domain.PasswordOTP
}

// NewOTPStore creates an empty store.
func NewOTPStore() *OTPStore {
	return &OTPStore{otps: make(map[uuid.UUID]domain.PasswordOTP)}
}

func (s *OTPStore) Replace(ctx context.Context, otp *domain.PasswordOTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[otp.UserID] = *otp
	return nil
}

func (s *OTPStore) Get(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.PasswordOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	otp, ok := s.otps[userID]
	if !ok || !otp.IsValid(now) {
		return nil, domain.ErrOTPNotFound
	}
	return &otp, nil
}

func (s *OTPStore) IncrementAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	otp, ok := s.otps[userID]
	if !ok {
		return 0, domain.ErrOTPNotFound
	}
	otp.Attempts++
	s.otps[userID] = otp
	return otp.Attempts, nil
}

func (s *OTPStore) Consume(ctx context.Context, userID uuid.UUID, codeHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	otp, ok := s.otps[userID]
	if !ok || !otp.IsValid(now) || otp.CodeHash != codeHash {
		return domain.ErrOTPNotFound
	}
	delete(s.otps, userID)
	return nil
}

func (s *OTPStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, userID)
	return nil
}

// Has reports whether any OTP, expired or not, is stored for the user.
func (s *OTPStore) Has(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.otps[userID]
	return ok
}

// Message is one delivery captured by Mailer.
type Message struct {
	UserID uuid.UUID
	Email  string
	Token  string
	Kind   domain.NotificationKind
}

// Mailer records sent messages. Set Err to make every send fail.
type Mailer struct {
	mu       sync.Mutex
	Err      error
	messages []Message
}

func (m *Mailer) Send(ctx context.Context, user *domain.User, token string, kind domain.NotificationKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, Message{UserID: user.ID, Email: user.Email, Token: token, Kind: kind})
	return nil
}

// Messages returns a copy of the sent messages.
func (m *Mailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Last returns the most recent message of the given kind.
func (m *Mailer) Last(kind domain.NotificationKind) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Kind == kind {
			return m.messages[i], true
		}
	}
	return Message{}, false
}

// Verifier is a bot verifier returning a fixed score or error.
type Verifier struct {
	Score float64
	Err   error
	Calls int
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (float64, error) {
	v.Calls++
	return v.Score, v.Err
}

// Auditor records audit events synchronously.
type Auditor struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *Auditor) Record(ctx context.Context, e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

// Events returns the recorded events of the given type.
func (a *Auditor) Events(typ domain.AuditEventType) []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEvent
	for _, e := range a.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

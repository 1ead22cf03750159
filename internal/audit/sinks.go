package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tendant/blog-auth/pkg/domain"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs each event at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, e domain.AuditEvent) error {
	attrs := []any{
		"event_id", e.ID,
		"type", e.Type,
		"success", e.Success,
		"ip", e.IP,
		"user_agent", e.UserAgent,
	}
	if e.UserID != nil {
		attrs = append(attrs, "user_id", e.UserID.String())
	}
	for k, v := range e.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// MultiSink writes every event to each of its sinks. A failing sink does
// not stop the others.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e domain.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

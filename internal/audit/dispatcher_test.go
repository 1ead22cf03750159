package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (s *recordingSink) Write(ctx context.Context, e domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(typ domain.AuditEventType) domain.AuditEvent {
	return domain.AuditEvent{ID: uuid.New(), Type: typ, Success: true, IP: "10.0.0.1", CreatedAt: time.Now()}
}

func TestDispatcher_DeliversAndDrainsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Config{BufferSize: 16}, discardLogger())

	// Queue before the worker starts; Run must drain them even when
	// cancelled straight away.
	for i := 0; i < 10; i++ {
		d.Record(context.Background(), event(domain.AuditSignin))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := sink.count(); got != 10 {
		t.Errorf("sink received %d events, want 10", got)
	}
}

func TestDispatcher_DropIfFull(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Config{BufferSize: 2, DropIfFull: true}, discardLogger())

	for i := 0; i < 5; i++ {
		d.Record(context.Background(), event(domain.AuditSignup))
	}

	if got := d.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestDispatcher_BlockingRecordHonoursContext(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Config{BufferSize: 1}, discardLogger())

	d.Record(context.Background(), event(domain.AuditSignup))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Record(ctx, event(domain.AuditSignup))

	if time.Since(start) > time.Second {
		t.Error("Record did not return after context deadline")
	}
	if got := d.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestDispatcher_SinkErrorsAreCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("database unavailable")}
	d := NewDispatcher(sink, Config{BufferSize: 4}, discardLogger())

	d.Record(context.Background(), event(domain.AuditSignin))
	d.Record(context.Background(), event(domain.AuditSignin))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Run(ctx)

	if got := d.Failed(); got != 2 {
		t.Errorf("Failed() = %d, want 2", got)
	}
}

func TestDispatcher_RecordAfterStopDoesNotBlock(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Config{BufferSize: 1}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Run(ctx)

	d.Record(context.Background(), event(domain.AuditSignin))
	done := make(chan struct{})
	go func() {
		d.Record(context.Background(), event(domain.AuditSignin))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked after the dispatcher stopped")
	}
}

func TestDispatcher_RecordAfterStopIsCounted(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Config{BufferSize: 4, DropIfFull: true}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Run(ctx)

	d.Record(context.Background(), event(domain.AuditSignin))

	if got := d.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if got := len(d.ch); got != 0 {
		t.Errorf("buffered events after stop = %d, want 0", got)
	}
}

func TestDispatcher_EveryEventDeliveredOrDropped(t *testing.T) {
	for _, dropIfFull := range []bool{false, true} {
		sink := &recordingSink{}
		d := NewDispatcher(sink, Config{BufferSize: 8, DropIfFull: dropIfFull}, discardLogger())

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		go func() {
			_ = d.Run(ctx)
			close(stopped)
		}()

		const total = 200
		var wg sync.WaitGroup
		for i := 0; i < total; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Record(context.Background(), event(domain.AuditSignin))
			}()
		}
		cancel()
		wg.Wait()
		<-stopped

		if got := uint64(sink.count()) + d.Dropped(); got != total {
			t.Errorf("DropIfFull=%v: delivered + dropped = %d, want %d", dropIfFull, got, total)
		}
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	userID := uuid.New()
	e := event(domain.AuditAccountLocked)
	e.UserID = &userID
	e.Details = map[string]string{"reason": "max_attempts"}

	if err := sink.Write(context.Background(), e); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if line["type"] != string(domain.AuditAccountLocked) {
		t.Errorf("type = %v, want %q", line["type"], domain.AuditAccountLocked)
	}
	if line["user_id"] != userID.String() {
		t.Errorf("user_id = %v, want %q", line["user_id"], userID)
	}
	if line["detail_reason"] != "max_attempts" {
		t.Errorf("detail_reason = %v, want %q", line["detail_reason"], "max_attempts")
	}
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("broker down")}
	sink := MultiSink{failing, ok}

	err := sink.Write(context.Background(), event(domain.AuditSignout))
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Errorf("Write error = %v, want broker down", err)
	}
	if ok.count() != 1 {
		t.Error("healthy sink did not receive the event after another sink failed")
	}
}

func TestKafkaMessage(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		userID  *uuid.UUID
		wantKey func(e domain.AuditEvent) string
	}{
		{
			name:    "keyed by user",
			userID:  &userID,
			wantKey: func(domain.AuditEvent) string { return userID.String() },
		},
		{
			name:    "anonymous falls back to event id",
			userID:  nil,
			wantKey: func(e domain.AuditEvent) string { return e.ID.String() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := event(domain.AuditSignin)
			e.UserID = tt.userID

			msg, err := kafkaMessage(e)
			if err != nil {
				t.Fatalf("kafkaMessage failed: %v", err)
			}
			if string(msg.Key) != tt.wantKey(e) {
				t.Errorf("Key = %q, want %q", msg.Key, tt.wantKey(e))
			}

			var decoded domain.AuditEvent
			if err := json.Unmarshal(msg.Value, &decoded); err != nil {
				t.Fatalf("Value is not JSON: %v", err)
			}
			if decoded.ID != e.ID || decoded.Type != e.Type {
				t.Errorf("decoded = %+v, want id %v type %v", decoded, e.ID, e.Type)
			}
			if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(e.Type) {
				t.Errorf("Headers = %v", msg.Headers)
			}
		})
	}
}

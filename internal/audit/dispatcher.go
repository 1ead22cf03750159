// Package audit delivers authentication events to durable sinks off the
// request path.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendant/blog-auth/pkg/domain"
)

// Sink persists or forwards a single audit event.
type Sink interface {
	Write(ctx context.Context, event domain.AuditEvent) error
}

// Config controls dispatcher buffering.
type Config struct {
	BufferSize   int
	DropIfFull   bool
	WriteTimeout time.Duration
}

// DefaultConfig returns the dispatcher settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		BufferSize:   1024,
		DropIfFull:   true,
		WriteTimeout: 5 * time.Second,
	}
}

// Dispatcher queues events in a buffered channel and writes them to a sink
// from a single worker. Sink failures are logged and never reach the caller.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	logger  *slog.Logger
	ch      chan domain.AuditEvent
	dropped atomic.Uint64
	failed  atomic.Uint64

	// mu is held shared by Record while it enqueues and exclusively by Run
	// when it stops, so no event is queued after the final drain.
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher. Events are delivered once Run is started.
func NewDispatcher(sink Sink, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		ch:     make(chan domain.AuditEvent, cfg.BufferSize),
	}
}

// Record enqueues an event. With DropIfFull set, a full buffer drops the
// event instead of blocking; otherwise Record waits for room or for ctx.
// Events recorded after Run has stopped are dropped.
func (d *Dispatcher) Record(ctx context.Context, event domain.AuditEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.dropped.Add(1)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
			d.logger.Warn("audit buffer full, event dropped", "type", event.Type)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Run writes queued events until ctx is cancelled, then drains what is
// already buffered and returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case event := <-d.ch:
			d.write(event)
		case <-ctx.Done():
			d.stop()
			return nil
		}
	}
}

// stop refuses new events and writes out the buffer. Records already past
// the stopped check may be waiting for room, so the buffer keeps draining
// until the exclusive lock is held.
func (d *Dispatcher) stop() {
	stopped := make(chan struct{})
	go func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(stopped)
	}()

	for {
		select {
		case event := <-d.ch:
			d.write(event)
		case <-stopped:
			for {
				select {
				case event := <-d.ch:
					d.write(event)
				default:
					return
				}
			}
		}
	}
}

// Dropped reports how many events were never queued.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Failed reports how many queued events the sink rejected.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

func (d *Dispatcher) write(event domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if err := d.sink.Write(ctx, event); err != nil {
		d.failed.Add(1)
		d.logger.Error("failed to write audit event",
			"type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
	}
}

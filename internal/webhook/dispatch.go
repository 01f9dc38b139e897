// AngelaMos | 2026
// dispatch.go

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/socialsync/internal/core"
)

type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Dispatcher runs each event on its own goroutine, detached from the
// delivery request. Failures are logged and counted, never returned.
type Dispatcher struct {
	handlers map[Kind]Handler
	timeout  time.Duration
	logger   *slog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closing bool
	wg      sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handlers: make(map[Kind]Handler),
		timeout:  timeout,
		logger:   logger,
		base:     base,
		cancel:   cancel,
	}
}

// Register binds h to kind. It must be called before the first Dispatch.
func (d *Dispatcher) Register(kind Kind, h Handler) {
	d.handlers[kind] = h
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	h, ok := d.handlers[ev.Kind]
	if !ok {
		d.logger.Debug("no handler for event kind", "event_kind", ev.Kind)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closing {
		d.logger.Warn("dropping event during shutdown",
			"event_kind", ev.Kind,
			"event_id", ev.ID,
		)
		return
	}

	parent := trace.SpanContextFromContext(ctx)

	d.wg.Add(1)
	go d.run(parent, h, ev)
}

func (d *Dispatcher) run(parent trace.SpanContext, h Handler, ev Event) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()

	ctx, span := core.StartSpan(
		trace.ContextWithRemoteSpanContext(ctx, parent),
		"webhook.handle",
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("event.id", ev.ID),
	)
	defer span.End()

	start := time.Now()
	var err error

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
		if err != nil {
			core.SetSpanError(ctx, err)
			d.logger.Error("webhook event handler failed",
				"event_kind", ev.Kind,
				"event_id", ev.ID,
				"error", err,
			)
		}
		core.RecordWebhookEvent(string(ev.Kind), time.Since(start), err)
	}()

	err = h.Handle(ctx, ev)
}

// Shutdown stops accepting events and waits for in-flight handlers. When
// ctx ends first, running handlers are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

package workers

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain/event"
	"log/slog"
	"sync"
	"time"
)

// EventFanout hands every session event to each registered sink.
//
// Fan-out is synchronous: Fanout returns once every sink consumed the event
// or timed out, so a view is refreshed within the handling of the record
// that changed it. Sinks are called in registration order. A failing sink is
// logged and does not prevent the others from receiving the event.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	mu          sync.RWMutex
	log         *slog.Logger
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, sinkTimeout: sinkTimeout, sinks: sinks}
}

func (f *EventFanout) Add(sinks ...contract.EventSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sinks...)
}

// Fanout One sink after the other
func (f *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()

	for _, sink := range sinks {
		f.consume(ctx, sink, evt)
	}
}

func (f *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	if f.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.sinkTimeout)
		defer cancel()
	}
	if err := sink.Consume(ctx, evt); err != nil {
		f.log.Warn("Sink failed to consume event", "event", evt.Name(), "error", err)
	}
}

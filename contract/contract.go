//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"flash-chat/domain"
	"flash-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives session notifications, typically to refresh a view.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// SubscribeOptions tunes where a child-added subscription starts.
// An empty After replays the whole collection.
type SubscribeOptions struct {
	After string
}

// ILog is the external persistent log service.
//
// SubscribeChildAdded delivers every record already present, in log order,
// then every new record in arrival order. The callback is invoked from a
// single goroutine, one record at a time, and must not call Cancel.
type ILog interface {
	Write(ctx context.Context, collection string, fields map[string]any) (string, error)
	SubscribeChildAdded(ctx context.Context, collection string, opts SubscribeOptions, onRecord func(domain.Record)) (Subscription, error)
}

// Subscription is a live child-added registration.
// Cancel returns once the last callback has returned. Done is closed when
// delivery stopped, whatever the reason; Err then tells a cancel (nil) from
// a drop (wraps errors.ErrFeedDisconnected).
type Subscription interface {
	Cancel()
	Done() <-chan struct{}
	Err() error
}

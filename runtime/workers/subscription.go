package workers

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/domain/event"
	"flash-chat/errors"
	"flash-chat/observability"
	"fmt"
	"log/slog"
	"sync"
)

// Cursor remembers the key of the last record a feed handled, so that a new
// subscription resumes right after it instead of replaying the history.
type Cursor struct {
	mu  sync.Mutex
	key string
}

func (c *Cursor) Load() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *Cursor) Store(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

// SubscriptionWorker owns one child-added registration against the log.
//
// Records pushed by the log are queued on a channel and handled by Run's
// goroutine only, which makes it the single writer of the store: decode,
// append, then fan the store notifications out before taking the next record.
// Run returns nil when its context ends and an error wrapping
// errors.ErrFeedDisconnected when the registration dropped.
type SubscriptionWorker struct {
	log        *slog.Logger
	remote     contract.ILog
	collection string
	store      *domain.MessageStore
	fanout     *EventFanout
	cursor     *Cursor
	bufferSize int
}

func NewSubscriptionWorker(log *slog.Logger, remote contract.ILog, collection string,
	store *domain.MessageStore, fanout *EventFanout, cursor *Cursor, bufferSize int) *SubscriptionWorker {
	return &SubscriptionWorker{
		log:        log,
		remote:     remote,
		collection: collection,
		store:      store,
		fanout:     fanout,
		cursor:     cursor,
		bufferSize: bufferSize,
	}
}

func (w *SubscriptionWorker) Run(ctx context.Context) error {
	records := make(chan domain.Record, w.bufferSize)
	after := w.cursor.Load()
	sub, err := w.remote.SubscribeChildAdded(ctx, w.collection, contract.SubscribeOptions{After: after},
		func(r domain.Record) {
			select {
			case records <- r:
			case <-ctx.Done():
			}
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return w.disconnected(ctx, fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, err))
	}
	defer sub.Cancel()
	w.log.Debug("Subscribed to log", "collection", w.collection, "after", after)

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping subscription", "collection", w.collection)
			return nil
		case r := <-records:
			w.Deliver(ctx, r)
		case <-sub.Done():
			// Every callback returned before Done was closed:
			// what is buffered is all that will ever arrive.
			w.drain(ctx, records)
			if ctx.Err() != nil {
				return nil
			}
			err = sub.Err()
			if err == nil {
				err = errors.ErrFeedDisconnected
			}
			return w.disconnected(ctx, err)
		}
	}
}

// Deliver handles one record. Malformed records are reported and skipped,
// the stream goes on.
func (w *SubscriptionWorker) Deliver(ctx context.Context, r domain.Record) {
	message, err := domain.DecodeRecord(r)
	if err != nil {
		w.log.Warn("Skipping malformed record", "key", r.Key, "error", err)
		observability.RecordsRejected.Inc()
		w.cursor.Store(r.Key)
		w.fanout.Fanout(ctx, event.RecordRejected{Key: r.Key, Err: err})
		return
	}
	w.store.Append(message)
	w.cursor.Store(r.Key)
	observability.RecordsDelivered.Inc()
	for _, evt := range w.store.FlushEvents() {
		w.fanout.Fanout(ctx, evt)
	}
}

func (w *SubscriptionWorker) drain(ctx context.Context, records chan domain.Record) {
	for {
		select {
		case r := <-records:
			w.Deliver(ctx, r)
		default:
			return
		}
	}
}

func (w *SubscriptionWorker) disconnected(ctx context.Context, err error) error {
	w.log.Warn("Feed disconnected", "collection", w.collection, "error", err)
	observability.FeedDisconnects.Inc()
	w.fanout.Fanout(ctx, event.FeedDisconnected{Err: err})
	return err
}

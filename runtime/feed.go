package runtime

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/domain/event"
	"flash-chat/errors"
	"flash-chat/observability"
	"flash-chat/runtime/workers"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Unsubscribed State = iota
	Subscribed
	Closed
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribed:
		return "subscribed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type FeedConfig struct {
	Collection  string
	BufferSize  int
	SinkTimeout time.Duration
	Restart     workers.RestartPolicy
}

// MessageFeed connects a session store to the external log.
//
// Reading goes through one supervised SubscriptionWorker: every record the
// log pushes, history first then live, is appended to the store in delivery
// order. Writing goes straight to the log and never touches the store; a
// sent message shows up once the subscription echoes it back.
//
// The lifecycle is Unsubscribed -> Subscribed -> Closed. Closed is terminal.
// Sinks may read State while Subscribe or Unsubscribe waits for delivery to
// stop: lifecycle serializes those two, mu only guards state.
type MessageFeed struct {
	lifecycle sync.Mutex
	mu        sync.Mutex
	log       *slog.Logger
	remote contract.ILog
	store  *domain.MessageStore
	fanout *workers.EventFanout
	cursor *workers.Cursor
	config FeedConfig
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	sends  sync.WaitGroup
}

func NewMessageFeed(log *slog.Logger, remote contract.ILog, store *domain.MessageStore,
	config FeedConfig, sinks ...contract.EventSink) *MessageFeed {
	if config.Collection == "" {
		config.Collection = domain.DefaultCollection
	}
	return &MessageFeed{
		log:    log.With("collection", config.Collection),
		remote: remote,
		store:  store,
		fanout: workers.NewEventFanout(log, config.SinkTimeout, sinks...),
		cursor: &workers.Cursor{},
		config: config,
	}
}

// Subscribe registers the feed against the log. Registration and delivery
// happen in the background; failures are reported as FeedDisconnected
// events and retried according to the restart policy.
//
// Subscribing again cancels the live registration first and resumes right
// after the last record handled, so history is never appended twice.
func (f *MessageFeed) Subscribe(ctx context.Context) error {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()

	switch f.State() {
	case Closed:
		return errors.ErrFeedClosed
	case Subscribed:
		f.log.Info("Already subscribed, canceling the prior registration")
		f.stop()
	}

	worker := workers.NewSubscriptionWorker(f.log, f.remote, f.config.Collection,
		f.store, f.fanout, f.cursor, f.config.BufferSize)
	supervisor := workers.NewSupervisor(f.log, f.config.Restart)
	supervisor.Add(worker)

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(subCtx)
	}()

	f.cancel, f.done = cancel, done
	f.setState(Subscribed)
	return nil
}

// Unsubscribe cancels delivery and waits until it stopped.
// It is safe to call more than once; the feed cannot be subscribed again.
func (f *MessageFeed) Unsubscribe() {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()
	if f.State() == Subscribed {
		f.stop()
		f.log.Info("Unsubscribed")
	}
	f.setState(Closed)
}

// stop must be called with f.lifecycle held.
func (f *MessageFeed) stop() {
	f.cancel()
	<-f.done
	f.cancel, f.done = nil, nil
}

func (f *MessageFeed) setState(state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

func (f *MessageFeed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Send writes a message to the log without waiting for the outcome.
// The returned channel yields exactly one result, then is closed. A failed
// write wraps errors.ErrWriteFailed and is never retried.
func (f *MessageFeed) Send(ctx context.Context, sender, body string) <-chan error {
	result := make(chan error, 1)
	message, err := domain.NewMessage(sender, body)
	if err != nil {
		result <- err
		close(result)
		return result
	}

	f.sends.Add(1)
	go func() {
		defer f.sends.Done()
		defer close(result)
		result <- f.write(ctx, message)
	}()
	return result
}

func (f *MessageFeed) write(ctx context.Context, message domain.Message) error {
	key, err := f.remote.Write(ctx, f.config.Collection, domain.EncodeMessage(message))
	// The caller may have given up on ctx, sinks still deserve the outcome.
	notifyCtx := context.WithoutCancel(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", errors.ErrWriteFailed, err)
		f.log.Error("Message not saved", "sender", message.Sender, "error", err)
		observability.MessagesSent.WithLabelValues("failed").Inc()
		f.fanout.Fanout(notifyCtx, event.SendFailed{Sender: message.Sender, Body: message.Body, Err: err})
		return err
	}
	f.log.Debug("Message saved successfully", "key", key)
	observability.MessagesSent.WithLabelValues("ok").Inc()
	f.fanout.Fanout(notifyCtx, event.MessageSent{Key: key, Sender: message.Sender, Body: message.Body})
	return nil
}

// WaitSends blocks until every write started by Send has completed.
func (f *MessageFeed) WaitSends() {
	f.sends.Wait()
}

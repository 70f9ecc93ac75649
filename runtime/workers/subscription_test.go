package workers

import (
	"context"
	"flash-chat/domain"
	"flash-chat/domain/event"
	"flash-chat/errors"
	"flash-chat/infrastructure/memory"
	"flash-chat/mocks"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) snapshot() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func newWorker(remote *memory.Log, sink *recordingSink) (*SubscriptionWorker, *domain.MessageStore, *Cursor) {
	store := domain.NewMessageStore()
	cursor := &Cursor{}
	fanout := NewEventFanout(slog.Default(), time.Second, sink)
	return NewSubscriptionWorker(slog.Default(), remote, domain.DefaultCollection, store, fanout, cursor, 16), store, cursor
}

func TestSubscriptionWorker_SkipsMalformedRecord(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote := memory.NewLog()
	sink := &recordingSink{}
	worker, store, cursor := newWorker(remote, sink)

	// Given a log holding a valid, a malformed and another valid record
	_, err := remote.Write(ctx, domain.DefaultCollection, map[string]any{domain.SenderField: "a@x.com", domain.BodyField: "one"})
	req.NoError(err)
	badKey, err := remote.Write(ctx, domain.DefaultCollection, map[string]any{domain.SenderField: "a@x.com"})
	req.NoError(err)
	lastKey, err := remote.Write(ctx, domain.DefaultCollection, map[string]any{domain.SenderField: "b@x.com", domain.BodyField: "two"})
	req.NoError(err)

	go func() { _ = worker.Run(ctx) }()

	// Then only the valid records reach the store, in order
	req.Eventually(func() bool { return store.Count() == 2 }, time.Second, 5*time.Millisecond)
	req.Equal([]domain.Message{{Sender: "a@x.com", Body: "one"}, {Sender: "b@x.com", Body: "two"}}, store.All())
	req.Eventually(func() bool { return cursor.Load() == lastKey }, time.Second, 5*time.Millisecond)

	// And the malformed one was reported
	var rejected []event.RecordRejected
	for _, e := range sink.snapshot() {
		if r, ok := e.(event.RecordRejected); ok {
			rejected = append(rejected, r)
		}
	}
	req.Len(rejected, 1)
	req.Equal(badKey, rejected[0].Key)
	req.ErrorIs(rejected[0].Err, errors.ErrMalformedRecord)
}

func TestSubscriptionWorker_ReturnsOnDisconnect(t *testing.T) {
	req := require.New(t)
	remote := memory.NewLog()
	sink := &recordingSink{}
	worker, _, _ := newWorker(remote, sink)

	result := make(chan error, 1)
	go func() { result <- worker.Run(context.Background()) }()

	// Drop until the registration exists and the worker notices
	deadline := time.After(time.Second)
	var err error
wait:
	for {
		remote.DropSubscribers(domain.DefaultCollection)
		select {
		case err = <-result:
			break wait
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			req.FailNow("worker should return after a disconnect")
		}
	}
	req.ErrorIs(err, errors.ErrFeedDisconnected)
	events := sink.snapshot()
	req.NotEmpty(events)
	req.IsType(event.FeedDisconnected{}, events[len(events)-1])
}

func TestSubscriptionWorker_ReturnsNilOnCancel(t *testing.T) {
	req := require.New(t)
	worker, _, _ := newWorker(memory.NewLog(), &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() { result <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-result:
		req.NoError(err)
	case <-time.After(time.Second):
		req.FailNow("worker should stop with its context")
	}
}

func TestSubscriptionWorker_SubscribeFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	remote := mocks.NewMockILog(ctrl)
	sink := &recordingSink{}
	cursor := &Cursor{}
	cursor.Store("k42")

	// Given a log refusing the registration
	remote.EXPECT().
		SubscribeChildAdded(gomock.Any(), domain.DefaultCollection, gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("connection refused")).
		Times(1)

	worker := NewSubscriptionWorker(slog.Default(), remote, domain.DefaultCollection,
		domain.NewMessageStore(), NewEventFanout(slog.Default(), time.Second, sink), cursor, 16)

	err := worker.Run(context.Background())
	req.ErrorIs(err, errors.ErrFeedDisconnected)
	req.Len(sink.snapshot(), 1)
}

func TestSubscriptionWorker_BackToBackDeliveries(t *testing.T) {
	req := require.New(t)
	sink := &recordingSink{}
	worker, store, cursor := newWorker(memory.NewLog(), sink)
	ctx := context.Background()

	// Given a store that already holds one message
	worker.Deliver(ctx, domain.Record{Key: "k1", Fields: domain.EncodeMessage(domain.Message{Sender: "a@x.com", Body: "zero"})})
	previous := store.Count()

	// When two records are delivered back to back without any read in between
	worker.Deliver(ctx, domain.Record{Key: "k2", Fields: domain.EncodeMessage(domain.Message{Sender: "a@x.com", Body: "one"})})
	worker.Deliver(ctx, domain.Record{Key: "k3", Fields: domain.EncodeMessage(domain.Message{Sender: "b@x.com", Body: "two"})})

	// Then both are present, in delivery order
	req.Equal(previous+2, store.Count())
	req.Equal([]domain.Message{
		{Sender: "a@x.com", Body: "zero"},
		{Sender: "a@x.com", Body: "one"},
		{Sender: "b@x.com", Body: "two"},
	}, store.All())
	req.Equal("k3", cursor.Load())

	// And the notifications carry the same order
	var indices []int
	for _, e := range sink.snapshot() {
		if appended, ok := e.(event.MessageAppended); ok {
			indices = append(indices, appended.Index)
		}
	}
	req.Equal([]int{0, 1, 2}, indices)
}

// Package tail follows an ordered log from a cursor: it replays what is
// already there, then waits for appends and delivers them in order.
package tail

import (
	"context"
	"flash-chat/domain"
	"flash-chat/errors"
	"fmt"
	"sync"
)

// Signal wakes every follower waiting for an append.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Wait returns a channel closed by the next Notify.
// Grab it before reading the log so that no append can slip in between.
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}

// Handle is the subscription returned to callers of a log.
// It satisfies contract.Subscription.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	err    error
}

// NewHandle derives the delivery context from ctx. The delivery goroutine
// must call Finish exactly once when it returns.
func NewHandle(ctx context.Context) (context.Context, *Handle) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &Handle{cancel: cancel, done: make(chan struct{})}
}

// Cancel stops delivery and waits for the delivery goroutine to exit.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Finish records why delivery stopped and releases waiters.
func (h *Handle) Finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}

// FetchFunc returns the records strictly after the given key, in log order.
// An empty key means from the beginning.
type FetchFunc func(ctx context.Context, after string) ([]domain.Record, error)

// Follow delivers records to onRecord from a dedicated goroutine until ctx
// is done, the handle is canceled, or fetch fails.
func Follow(ctx context.Context, signal *Signal, after string, fetch FetchFunc, onRecord func(domain.Record)) *Handle {
	ctx, h := NewHandle(ctx)
	go func() {
		h.Finish(follow(ctx, signal, after, fetch, onRecord))
	}()
	return h
}

func follow(ctx context.Context, signal *Signal, after string, fetch FetchFunc, onRecord func(domain.Record)) error {
	for {
		wake := signal.Wait()
		records, err := fetch(ctx, after)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, err)
		}
		for _, r := range records {
			if ctx.Err() != nil {
				return nil
			}
			onRecord(r)
			after = r.Key
		}
		if len(records) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		}
	}
}

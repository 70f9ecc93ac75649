// Package memory is an in-process log with child-added semantics.
// It backs tests and single-process runs of the chat.
package memory

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"flash-chat/infrastructure/tail"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

var errDropped = fmt.Errorf("subscribers dropped")

type collection struct {
	records []domain.Record
	index   map[string]int
	signal  *tail.Signal
	epoch   int
}

// Log keeps every collection in memory for the life of the process.
// Keys are UUIDv7 taken under the write lock, so they sort in write order.
type Log struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

func NewLog() *Log {
	return &Log{collections: make(map[string]*collection)}
}

func (l *Log) Write(ctx context.Context, name string, fields map[string]any) (string, error) {
	if err := domain.ValidateCollection(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", errors.ErrLogClosed
	}
	key := uuid.Must(uuid.NewV7()).String()
	c := l.collection(name)
	c.index[key] = len(c.records)
	c.records = append(c.records, domain.Record{Key: key, Fields: maps.Clone(fields)})
	l.mu.Unlock()

	c.signal.Notify()
	return key, nil
}

func (l *Log) SubscribeChildAdded(ctx context.Context, name string, opts contract.SubscribeOptions, onRecord func(domain.Record)) (contract.Subscription, error) {
	if err := domain.ValidateCollection(name); err != nil {
		return nil, err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.ErrLogClosed
	}
	c := l.collection(name)
	if _, ok := c.index[opts.After]; opts.After != "" && !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownCursor, opts.After)
	}
	epoch := c.epoch
	l.mu.Unlock()

	fetch := func(_ context.Context, after string) ([]domain.Record, error) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		if l.closed {
			return nil, errors.ErrLogClosed
		}
		if c.epoch != epoch {
			return nil, errDropped
		}
		start := 0
		if after != "" {
			start = c.index[after] + 1
		}
		return slices.Clone(c.records[start:]), nil
	}
	return tail.Follow(ctx, c.signal, opts.After, fetch, onRecord), nil
}

// Len returns the number of records in a collection.
func (l *Log) Len(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if c, ok := l.collections[name]; ok {
		return len(c.records)
	}
	return 0
}

// DropSubscribers ends every live subscription on a collection as if the
// connection to the service had been lost.
func (l *Log) DropSubscribers(name string) {
	l.mu.Lock()
	c := l.collection(name)
	c.epoch++
	l.mu.Unlock()
	c.signal.Notify()
}

// Close ends all subscriptions and refuses further writes.
func (l *Log) Close() error {
	l.mu.Lock()
	l.closed = true
	signals := make([]*tail.Signal, 0, len(l.collections))
	for _, c := range l.collections {
		signals = append(signals, c.signal)
	}
	l.mu.Unlock()
	for _, s := range signals {
		s.Notify()
	}
	return nil
}

// collection must be called with l.mu held for writing.
func (l *Log) collection(name string) *collection {
	c, ok := l.collections[name]
	if !ok {
		c = &collection{index: make(map[string]int), signal: tail.NewSignal()}
		l.collections[name] = c
	}
	return c
}

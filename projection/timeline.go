// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"flash-chat/domain/event"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Entry is one line of the timeline.
type Entry struct {
	Index  int
	Sender string
	Body   string
	Own    bool
}

// Timeline mirrors a session store as a list of entries tagged with
// ownership. It is safe to feed from several goroutines.
type Timeline struct {
	owner    string
	mu       sync.Mutex
	entries  []Entry
	rejected int
	lastErr  error
	onEntry  func(Entry)
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{owner: owner}
}

// OnEntry registers a callback run for every new entry, in order,
// while the timeline lock is held.
func (t *Timeline) OnEntry(fn func(Entry)) *Timeline {
	t.onEntry = fn
	return t
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch evt := e.(type) {
	case event.MessageAppended:
		// Appends come with their store index: anything already seen is dropped
		if evt.Index < len(t.entries) {
			return nil
		}
		entry := Entry{Index: evt.Index, Sender: evt.Sender, Body: evt.Body, Own: evt.Sender == t.owner}
		t.entries = append(t.entries, entry)
		if t.onEntry != nil {
			t.onEntry(entry)
		}
	case event.RecordRejected:
		t.rejected++
	case event.SendFailed:
		t.lastErr = evt.Err
	case event.FeedDisconnected:
		t.lastErr = evt.Err
	}
	return nil
}

func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

// Own returns the entries written by the timeline owner.
func (t *Timeline) Own() []Entry {
	return lo.Filter(t.Entries(), func(e Entry, _ int) bool { return e.Own })
}

// Senders lists every participant seen so far, in order of first message.
func (t *Timeline) Senders() []string {
	return lo.Uniq(lo.Map(t.Entries(), func(e Entry, _ int) string { return e.Sender }))
}

func (t *Timeline) Rejected() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rejected
}

func (t *Timeline) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

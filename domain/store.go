package domain

import (
	"flash-chat/domain/event"
	"slices"
	"sync"
)

// MessageStore is the ordered message history of one session.
// It is append-only: entries keep their delivery order and are never
// removed or rewritten. Appends are serialized so that Count always equals
// the number of appends received.
type MessageStore struct {
	mu       sync.RWMutex
	messages []Message
	outbox   []event.DomainEvent
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append adds the message at the end of the history and queues a
// MessageAppended notification for the presentation layer.
func (s *MessageStore) Append(message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	s.outbox = append(s.outbox, event.MessageAppended{
		Index:  len(s.messages) - 1,
		Sender: message.Sender,
		Body:   message.Body,
	})
}

// All returns a snapshot of the history in delivery order.
// The returned slice is owned by the caller.
func (s *MessageStore) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *MessageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// FlushEvents drains the pending notifications, oldest first.
func (s *MessageStore) FlushEvents() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.outbox
	s.outbox = nil
	return events
}

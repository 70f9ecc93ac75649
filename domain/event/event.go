// Package event holds the notifications emitted while a chat session runs.
// Events carry plain values so that they can cross package boundaries
// without pulling the domain along.
package event

// DomainEvent is anything a sink can be asked to consume.
type DomainEvent interface {
	Name() string
}

const (
	MessageAppendedType  = "message_appended"
	RecordRejectedType   = "record_rejected"
	FeedDisconnectedType = "feed_disconnected"
	MessageSentType      = "message_sent"
	SendFailedType       = "send_failed"
)

// MessageAppended is emitted once per store append. Index is the position
// of the message in the store, starting at 0.
type MessageAppended struct {
	Index  int
	Sender string
	Body   string
}

func (MessageAppended) Name() string { return MessageAppendedType }

// RecordRejected is emitted when a record delivered by the log could not be
// decoded. The record is skipped.
type RecordRejected struct {
	Key string
	Err error
}

func (RecordRejected) Name() string { return RecordRejectedType }

// FeedDisconnected is emitted when the live subscription dropped.
type FeedDisconnected struct {
	Err error
}

func (FeedDisconnected) Name() string { return FeedDisconnectedType }

// MessageSent reports that the log acknowledged a write.
// The message reaches the store only when the subscription echoes it.
type MessageSent struct {
	Key    string
	Sender string
	Body   string
}

func (MessageSent) Name() string { return MessageSentType }

// SendFailed reports a write the log refused or never acknowledged.
type SendFailed struct {
	Sender string
	Body   string
	Err    error
}

func (SendFailed) Name() string { return SendFailedType }

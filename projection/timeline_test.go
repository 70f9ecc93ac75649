package projection

import (
	"context"
	"flash-chat/domain/event"
	"flash-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Consume_MessageAppended(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("Alice")
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.MessageAppended{Index: 0, Sender: "Alice", Body: "Hello Bob"}))
	req.NoError(timeline.Consume(ctx, event.MessageAppended{Index: 1, Sender: "Clara", Body: "Hi Bob"}))

	entries := timeline.Entries()
	req.Len(entries, 2)
	req.Equal("Alice", entries[0].Sender)
	req.True(entries[0].Own)
	req.Equal("Clara", entries[1].Sender)
	req.False(entries[1].Own)
	req.Len(timeline.Own(), 1)
	req.Equal([]string{"Alice", "Clara"}, timeline.Senders())
}

func TestTimeline_Drops_Replayed_Appends(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("Alice")
	ctx := context.Background()

	var rendered []int
	timeline.OnEntry(func(e Entry) { rendered = append(rendered, e.Index) })

	req.NoError(timeline.Consume(ctx, event.MessageAppended{Index: 0, Sender: "Bob", Body: "one"}))
	req.NoError(timeline.Consume(ctx, event.MessageAppended{Index: 0, Sender: "Bob", Body: "one"}))
	req.NoError(timeline.Consume(ctx, event.MessageAppended{Index: 1, Sender: "Bob", Body: "two"}))

	req.Equal([]int{0, 1}, rendered)
	req.Len(timeline.Entries(), 2)
}

func TestTimeline_Tracks_Failures(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("Alice")
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.RecordRejected{Key: "k", Err: errors.ErrMalformedRecord}))
	req.NoError(timeline.Consume(ctx, event.SendFailed{Sender: "Alice", Body: "x", Err: errors.ErrWriteFailed}))

	req.Equal(1, timeline.Rejected())
	req.ErrorIs(timeline.LastError(), errors.ErrWriteFailed)
	req.Empty(timeline.Entries())
}

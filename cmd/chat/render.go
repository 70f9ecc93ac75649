package main

import (
	"context"
	"flash-chat/domain/event"
	"flash-chat/projection"
	"io"
	"sync"

	"github.com/gookit/color"
)

// Palette of the mobile chat screen.
var (
	ownAvatar   = color.HEX("#3EB489") // mint
	ownBubble   = color.HEXStyle("#FFFFFF", "#5DADE2")
	otherAvatar = color.HEX("#EF4836") // watermelon
	otherBubble = color.HEXStyle("#FFFFFF", "#95A5A6")
	notice      = color.HEX("#F5AB35")
)

// Renderer prints timeline entries and send outcomes to a terminal.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Entry prints one message line, own messages in mint and sky blue,
// others in watermelon and gray.
func (r *Renderer) Entry(e projection.Entry) {
	avatar, bubble := otherAvatar, otherBubble
	if e.Own {
		avatar, bubble = ownAvatar, ownBubble
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	color.Fprintln(r.out, avatar.Sprint("● "+e.Sender), bubble.Sprintf(" %s ", e.Body))
}

// Notice prints a status line.
func (r *Renderer) Notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	color.Fprintln(r.out, notice.Sprint("» "+msg))
}

// Consume reports send failures and dropped feeds.
func (r *Renderer) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.SendFailed:
		r.Notice("message not sent: " + evt.Err.Error())
	case event.FeedDisconnected:
		r.Notice("connection lost: " + evt.Err.Error())
	case event.RecordRejected:
		r.Notice("skipped an unreadable message")
	}
	return nil
}

// Package domain contains core concepts of the chat system.
// This file defines the Message value and its construction rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"flash-chat/errors"
	"strings"
)

// Message is one chat line as shown to the user.
// It carries no identifier and no timestamp: ordering is owned by the log.
type Message struct {
	Sender string
	Body   string
}

// NewMessage builds a Message, refusing an empty sender or a blank body.
func NewMessage(sender, body string) (Message, error) {
	if sender == "" {
		return Message{}, errors.ErrEmptySender
	}
	if strings.TrimSpace(body) == "" {
		return Message{}, errors.ErrEmptyBody
	}
	return Message{Sender: sender, Body: body}, nil
}
